package vm

import (
	"fmt"

	"flint/debug"
	e "flint/errors"

	"github.com/sirupsen/logrus"
)

type VM struct {
	chunk   *Chunk
	ip      int
	stack   []Value
	globals map[VStr]Value
}

func NewVM() *VM { return &VM{globals: map[VStr]Value{}} }

func (vm *VM) push(val Value) { vm.stack = append(vm.stack, val) }

func (vm *VM) pop() (last Value) {
	len_ := len(vm.stack)
	vm.stack, last = vm.stack[:len_-1], vm.stack[len_-1]
	return
}

func (vm *VM) peek(distance int) Value { return vm.stack[len(vm.stack)-1-distance] }

// Interpret compiles and runs src, returning the value produced by the
// final OpReturn. In REPL mode a failed statement parse falls back to
// compiling src as a single expression, so bare expressions echo their
// values.
func (vm *VM) Interpret(src string, isREPL bool) (Value, error) {
	parser := NewParser()
	chunk := NewChunk()
	err := parser.Compile(src, chunk)
	if isREPL && err != nil {
		declsErr := err
		chunk = NewChunk()
		if err = parser.CompileExpr(src, chunk); err != nil {
			return nil, fmt.Errorf("%w\ncaused by:\n%s", declsErr, err)
		}
	}
	if err != nil {
		return nil, err
	}

	vm.chunk = chunk
	vm.ip = 0
	vm.stack = vm.stack[:0]
	return vm.run()
}

func (vm *VM) run() (Value, error) {
	if vm.chunk == nil {
		return nil, &e.RuntimeError{Line: -1, Reason: "chunk uninitialized"}
	}

	readByte := func() (res byte) {
		res = vm.chunk.code[vm.ip]
		vm.ip++
		return
	}
	readU16 := func() (res uint16) {
		res = vm.chunk.readU16(vm.ip)
		vm.ip += 2
		return
	}
	readConst := func(idx int) Value { return vm.chunk.consts[idx] }

	// The line of the instruction being executed, for error reports.
	line := -1
	runtimeError := func(format string, a ...any) error {
		return &e.RuntimeError{Line: line, Reason: fmt.Sprintf(format, a...)}
	}
	binOp := func(f func(v, w Value) (Value, bool), expected string) error {
		rhs, lhs := vm.pop(), vm.pop()
		res, ok := f(lhs, rhs)
		if !ok {
			return runtimeError("Operands must be %s.", expected)
		}
		vm.push(res)
		return nil
	}
	getGlobal := func(idx int) error {
		name := readConst(idx).(VStr)
		val, ok := vm.globals[name]
		if !ok {
			return runtimeError("Undefined variable '%s'.", string(name))
		}
		vm.push(val)
		return nil
	}
	defGlobal := func(idx int) {
		name := readConst(idx).(VStr)
		vm.globals[name] = vm.peek(0)
		vm.pop()
	}
	setGlobal := func(idx int) error {
		name := readConst(idx).(VStr)
		if _, ok := vm.globals[name]; !ok {
			return runtimeError("Undefined variable '%s'.", string(name))
		}
		vm.globals[name] = vm.peek(0)
		return nil
	}

	for {
		line = vm.chunk.lines[vm.ip]
		if debug.DEBUG {
			logrus.Debugln(vm.stackTrace())
			instDump, _ := vm.chunk.DisassembleInst(vm.ip)
			logrus.Debugln(instDump)
		}

		var err error
		switch inst := OpCode(readByte()); inst {
		case OpReturn:
			if len(vm.stack) > 0 {
				return vm.pop(), nil
			}
			return VNull{}, nil
		case OpConst:
			vm.push(readConst(int(readByte())))
		case OpConst16:
			vm.push(readConst(int(readU16())))
		case OpNull:
			vm.push(VNull{})
		case OpTrue:
			vm.push(VBool(true))
		case OpFalse:
			vm.push(VBool(false))
		case OpPop:
			vm.pop()
		case OpGetLocal:
			vm.push(vm.stack[readByte()])
		case OpGetLocal16:
			vm.push(vm.stack[readU16()])
		case OpSetLocal:
			vm.stack[readByte()] = vm.peek(0)
		case OpSetLocal16:
			vm.stack[readU16()] = vm.peek(0)
		case OpGetGlobal:
			err = getGlobal(int(readByte()))
		case OpGetGlobal16:
			err = getGlobal(int(readU16()))
		case OpDefGlobal:
			defGlobal(int(readByte()))
		case OpDefGlobal16:
			defGlobal(int(readU16()))
		case OpSetGlobal:
			err = setGlobal(int(readByte()))
		case OpSetGlobal16:
			err = setGlobal(int(readU16()))
		case OpEqual:
			rhs, lhs := vm.pop(), vm.pop()
			vm.push(VEq(lhs, rhs))
		case OpGreater:
			err = binOp(VGreater, "numbers")
		case OpLess:
			err = binOp(VLess, "numbers")
		case OpAdd:
			err = binOp(VAdd, "two numbers or two strings")
		case OpSub:
			err = binOp(VSub, "numbers")
		case OpMul:
			err = binOp(VMul, "numbers")
		case OpDiv:
			err = binOp(VDiv, "numbers")
		case OpNot:
			vm.push(!VTruthy(vm.pop()))
		case OpNeg:
			res, ok := VNeg(vm.pop())
			if !ok {
				err = runtimeError("Operand must be a number.")
				break
			}
			vm.push(res)
		case OpPrint:
			switch val := vm.pop().(type) {
			case VStr:
				fmt.Println(string(val))
			default:
				fmt.Println(val)
			}
		case OpJump:
			vm.ip += int(readU16())
		case OpJumpUnless:
			offset := int(readU16())
			if !VTruthy(vm.peek(0)) {
				vm.ip += offset
			}
		case OpLoop:
			vm.ip -= int(readU16())
		default:
			err = runtimeError("unknown instruction '%d'", inst)
		}
		if err != nil {
			return nil, err
		}
	}
}

func (vm *VM) stackTrace() string {
	res := "          "
	for _, slot := range vm.stack {
		res += fmt.Sprintf("[ %s ]", slot)
	}
	return res
}
