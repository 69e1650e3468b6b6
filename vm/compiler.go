package vm

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"flint/debug"
	e "flint/errors"
	"flint/utils"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

type Parser struct {
	*Scanner
	*Compiler
	chunk      *Chunk
	prev, curr Token

	errors   *multierror.Error
	hadError bool
	// Whether the parser is trying to sync, i.e. in the error recovery process.
	panicMode bool
	openJumps int

	// Where diagnostics go. Everything else stays off this sink.
	errOut io.Writer
}

func NewParser() *Parser { return &Parser{errOut: os.Stderr} }

type Compiler struct {
	locals []Local
	depth  int
}

func NewCompiler() *Compiler { return &Compiler{} }

// Local is a block-scoped variable occupying one VM stack slot. Between its
// declaration and the end of its initializer it can be shadow-checked but
// not read.
type Local struct {
	name        Token
	depth       int
	initialized bool
}

const maxLocals = math.MaxUint8 + 1

func (p *Parser) addLocal(name Token) {
	if len(p.locals) >= maxLocals {
		p.Error("Too many local variables in scope.")
		return
	}
	p.locals = append(p.locals, Local{name: name, depth: p.depth})
}

/* Single-pass compilation */

func (p *Parser) emitConst(val Value) { p.emitOpArg(OpConst, OpConst16, p.makeConst(val)) }

func (p *Parser) makeConst(val Value) int {
	const_ := p.chunk.AddConst(val)
	if const_ > math.MaxUint16 {
		p.Error("Too many constants in one chunk.")
		return 0
	}
	return const_
}

func (p *Parser) num(_canAssign bool) {
	val, err := strconv.ParseFloat(p.prev.String(), 64)
	if err != nil {
		p.errors = multierror.Append(p.errors, err)
	}
	p.emitConst(VNum(val))
}

func (p *Parser) grouping(_canAssign bool) {
	p.expr()
	p.consume(TRParen, "Expect ')' after expression.")
}

func (p *Parser) lit(_canAssign bool) {
	switch p.prev.Type {
	case TFalse:
		p.emitBytes(byte(OpFalse))
	case TNull:
		p.emitBytes(byte(OpNull))
	case TTrue:
		p.emitBytes(byte(OpTrue))
	default:
		panic(e.Unreachable)
	}
}

func (p *Parser) str(_canAssign bool) {
	runes := p.prev.Runes
	// COPY the lexeme inside the quotes into the intern pool.
	unquoted := string(runes[1 : len(runes)-1])
	p.emitConst(NewVStr(unquoted))
}

func (p *Parser) var_(canAssign bool) { p.namedVar(p.prev, canAssign) }

func (p *Parser) namedVar(name Token, canAssign bool) {
	var (
		arg                    int
		get, get16, set, set16 OpCode
	)
	if slot, ok := p.resolveLocal(name); ok {
		arg = slot
		get, get16, set, set16 = OpGetLocal, OpGetLocal16, OpSetLocal, OpSetLocal16
	} else {
		arg = p.identConst(name)
		get, get16, set, set16 = OpGetGlobal, OpGetGlobal16, OpSetGlobal, OpSetGlobal16
	}

	switch {
	case canAssign && p.match(TEqual):
		p.expr()
		p.emitOpArg(set, set16, arg)
	default:
		p.emitOpArg(get, get16, arg)
	}
}

func (p *Parser) unary(_canAssign bool) {
	op := p.prev.Type

	// Compile the RHS.
	p.parsePrec(PrecUnary)

	// Emit the operator instruction.
	switch op {
	case TBang:
		p.emitBytes(byte(OpNot))
	case TMinus:
		p.emitBytes(byte(OpNeg))
	default:
		panic(e.Unreachable)
	}
}

func (p *Parser) binary(_canAssign bool) {
	op := p.prev.Type
	rule := parseRules[op]

	// Compile the RHS.
	p.parsePrec(rule.Prec + 1)

	// Emit the operator instruction.
	switch op {
	case TBangEqual:
		p.emitBytes(byte(OpEqual), byte(OpNot))
	case TEqualEqual:
		p.emitBytes(byte(OpEqual))
	case TGreater:
		p.emitBytes(byte(OpGreater))
	case TGreaterEqual:
		p.emitBytes(byte(OpLess), byte(OpNot))
	case TLess:
		p.emitBytes(byte(OpLess))
	case TLessEqual:
		p.emitBytes(byte(OpGreater), byte(OpNot))
	case TPlus:
		p.emitBytes(byte(OpAdd))
	case TMinus:
		p.emitBytes(byte(OpSub))
	case TStar:
		p.emitBytes(byte(OpMul))
	case TSlash:
		p.emitBytes(byte(OpDiv))
	default:
		panic(e.Unreachable)
	}
}

func (p *Parser) and(_canAssign bool) {
	// If the LHS is falsey, then `LHS and RHS == LHS`.
	// So we skip the RHS and leave the LHS as the result.
	endJump := p.emitJump(OpJumpUnless)
	// If the LHS is truthy, then `LHS and RHS == RHS`.
	// So we pop out the LHS.
	p.emitBytes(byte(OpPop))
	p.parsePrec(PrecAnd)
	p.patchJump(endJump)
}

func (p *Parser) or(_canAssign bool) {
	// If the LHS is truthy, then `LHS or RHS == LHS`.
	// So we skip the RHS and leave the LHS as the result.
	elseJump := p.emitJump(OpJumpUnless) // <-- else
	endJump := p.emitJump(OpJump)        // <-- then
	// If the LHS is falsey, then `LHS or RHS == RHS`.
	// So we pop out the LHS.
	p.patchJump(elseJump) // --> else
	p.emitBytes(byte(OpPop))
	p.parsePrec(PrecOr)
	p.patchJump(endJump) // --> then
}

func (p *Parser) expr() { p.parsePrec(PrecAssign) }

func (p *Parser) exprStmt() {
	p.expr()
	p.consume(TSemi, "Expect ';' after expression.")
	p.emitBytes(byte(OpPop))
}

func (p *Parser) printStmt() {
	p.expr()
	p.consume(TSemi, "Expect ';' after value.")
	p.emitBytes(byte(OpPrint))
}

func (p *Parser) block() {
	for !p.check(TRBrace) && !p.check(TEOF) {
		p.decl()
	}
	p.consume(TRBrace, "Expect '}' after block.")
}

func (p *Parser) ifStmt() {
	p.consume(TLParen, "Expect '(' after 'if'.")
	p.expr()
	p.consume(TRParen, "Expect ')' after condition.")

	thenJump := p.emitJump(OpJumpUnless) // <-- `else` branch starts.
	p.emitBytes(byte(OpPop))             // Drop the predicate before the `then` statement.
	p.stmt()

	elseJump := p.emitJump(OpJump) // <-- `then` branch stops.
	p.patchJump(thenJump)          // --> `else` branch continues.

	p.emitBytes(byte(OpPop)) // Drop the predicate before the `else` statement.
	if p.match(TElse) {
		p.stmt()
	}
	p.patchJump(elseJump) // --> `then` branch continues.
}

func (p *Parser) whileStmt() {
	loopStart := len(p.chunk.code)
	p.consume(TLParen, "Expect '(' after 'while'.")
	p.expr()
	p.consume(TRParen, "Expect ')' after condition.")

	exitJump := p.emitJump(OpJumpUnless)
	p.emitBytes(byte(OpPop)) // Pop the condition.
	p.stmt()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emitBytes(byte(OpPop)) // Pop the condition.
}

func (p *Parser) forStmt() {
	// for (init; cond; incr) body
	p.beginScope()
	defer p.endScope()

	// init
	p.consume(TLParen, "Expect '(' after 'for'.")
	switch {
	case p.match(TSemi):
		// Noop.
	case p.match(TVar):
		p.varDecl()
	default:
		p.exprStmt()
	}

	// cond
	loopStart := len(p.chunk.code)
	exitJump := (*Jump)(nil)
	if !p.match(TSemi) {
		p.expr()
		p.consume(TSemi, "Expect ';' after loop condition.")
		exitJump = utils.Box(p.emitJump(OpJumpUnless)) // <-- !!cond == false
		p.emitBytes(byte(OpPop))                       // Pop the condition.
	}

	// incr
	if !p.match(TRParen) {
		bodyJump := p.emitJump(OpJump) // <-- body
		incrStart := len(p.chunk.code)
		// Parse an exprStmt sans the trailing ';'.
		p.expr()
		p.emitBytes(byte(OpPop)) // Pure side effect.
		p.consume(TRParen, "Expect ')' after for clauses.")

		p.emitLoop(loopStart) // --> towards the next iteration
		loopStart = incrStart
		p.patchJump(bodyJump) // --> body
	}

	// body
	p.stmt()
	p.emitLoop(loopStart) // --> incr (if it exists, otherwise the next iteration)

	if exitJump != nil {
		p.patchJump(*exitJump)   // --> !!cond == false
		p.emitBytes(byte(OpPop)) // Pop the condition.
	}
}

func (p *Parser) stmt() {
	switch {
	case p.match(TPrint):
		p.printStmt()
	case p.match(TFor):
		p.forStmt()
	case p.match(TIf):
		p.ifStmt()
	case p.match(TWhile):
		p.whileStmt()
	case p.match(TLBrace):
		p.beginScope()
		p.block()
		p.endScope()
	default:
		p.exprStmt()
	}
}

func (p *Parser) varDecl() {
	global := p.parseVar("Expect variable name.")
	switch {
	case p.match(TEqual):
		p.expr()
	default:
		p.emitBytes(byte(OpNull))
	}
	p.consume(TSemi, "Expect ';' after variable declaration.")
	p.defVar(global)
}

func (p *Parser) decl() {
	switch {
	case p.match(TVar):
		p.varDecl()
	default:
		p.stmt()
	}
	if p.panicMode {
		p.sync()
	}
}

type ParseFn = func(p *Parser, canAssign bool)

type ParseRule struct {
	Prefix, Infix ParseFn
	Prec
}

var parseRules []ParseRule

func init() {
	parseRules = []ParseRule{
		TLParen:       {(*Parser).grouping, nil, PrecNone},
		TMinus:        {(*Parser).unary, (*Parser).binary, PrecTerm},
		TPlus:         {nil, (*Parser).binary, PrecTerm},
		TSlash:        {nil, (*Parser).binary, PrecFactor},
		TStar:         {nil, (*Parser).binary, PrecFactor},
		TBang:         {(*Parser).unary, nil, PrecNone},
		TBangEqual:    {nil, (*Parser).binary, PrecEqual},
		TEqualEqual:   {nil, (*Parser).binary, PrecEqual},
		TGreater:      {nil, (*Parser).binary, PrecComp},
		TGreaterEqual: {nil, (*Parser).binary, PrecComp},
		TLess:         {nil, (*Parser).binary, PrecComp},
		TLessEqual:    {nil, (*Parser).binary, PrecComp},
		TIdent:        {(*Parser).var_, nil, PrecNone},
		TStr:          {(*Parser).str, nil, PrecNone},
		TNum:          {(*Parser).num, nil, PrecNone},
		TAnd:          {nil, (*Parser).and, PrecAnd},
		TFalse:        {(*Parser).lit, nil, PrecNone},
		TNull:         {(*Parser).lit, nil, PrecNone},
		TOr:           {nil, (*Parser).or, PrecOr},
		TTrue:         {(*Parser).lit, nil, PrecNone},
		TEOF:          {},
	}
}

func (p *Parser) parsePrec(prec Prec) {
	p.advance()

	// Parse LHS.
	prefix := parseRules[p.prev.Type].Prefix
	if prefix == nil {
		p.Error("Expect expression.")
		return
	}
	canAssign := prec <= PrecAssign
	prefix(p, canAssign)

	// Parse RHS if there's one maintaining rule.Prec >= prec.
	for {
		rule := parseRules[p.curr.Type]
		if rule.Prec < prec {
			break
		}
		p.advance()
		if rule.Infix == nil {
			panic(e.Unreachable)
		}
		rule.Infix(p, canAssign)
	}

	// An `=` left over by the loop above means the LHS is no assignee.
	if canAssign && p.match(TEqual) {
		p.Error("Invalid assignment target.")
	}
}

/* Parsing helpers */

func (p *Parser) check(ty TokenType) bool     { return p.curr.Type == ty }
func (p *Parser) checkPrev(ty TokenType) bool { return p.prev.Type == ty }

func (p *Parser) advance() {
	p.prev = p.curr
	for {
		// Skip until the first non-TErr token.
		if p.curr = p.ScanToken(); !p.check(TErr) {
			break
		}
		p.ErrorAtCurr(p.curr.String())
	}
}

func (p *Parser) match(ty TokenType) (matched bool) {
	if !p.check(ty) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) consume(ty TokenType, errorMsg string) *Token {
	if !p.check(ty) {
		p.ErrorAtCurr(errorMsg)
		return nil
	}
	p.advance()
	return &p.prev
}

/* Compiling helpers */

// Compile translates a whole script into chunk. On error the chunk contents
// are unspecified and must not be executed.
func (p *Parser) Compile(src string, chunk *Chunk) error {
	return p.compileWithRule(src, chunk, func(p *Parser) {
		for !p.match(TEOF) {
			p.decl()
		}
	})
}

// CompileExpr translates a single expression, leaving its value for OpReturn.
// This is the REPL's echo path.
func (p *Parser) CompileExpr(src string, chunk *Chunk) error {
	return p.compileWithRule(src, chunk, func(p *Parser) {
		p.expr()
		p.consume(TEOF, "Expect end of expression.")
	})
}

func (p *Parser) compileWithRule(src string, chunk *Chunk, rule func(*Parser)) error {
	p.Compiler = NewCompiler()
	p.Scanner = NewScanner(src)
	p.chunk = chunk
	p.errors, p.hadError, p.panicMode, p.openJumps = nil, false, false, 0

	p.advance()
	rule(p)
	p.endCompiler()

	if p.hadError {
		return p.errors.ErrorOrNil()
	}
	return nil
}

func (p *Parser) emitBytes(bs ...byte) {
	for _, b := range bs {
		p.chunk.Write(b, p.prev.Line)
	}
}

// emitOpArg emits the 8-bit form of an instruction when arg fits in one
// byte, and the 16-bit (big-endian) form otherwise.
func (p *Parser) emitOpArg(short, wide OpCode, arg int) {
	if arg <= math.MaxUint8 {
		p.emitBytes(byte(short), byte(arg))
		return
	}
	p.emitBytes(byte(wide), byte(arg>>8), byte(arg))
}

func (p *Parser) emitReturn() { p.emitBytes(byte(OpReturn)) }

func (p *Parser) endCompiler() {
	p.emitReturn()
	debug.Assertf(p.hadError || p.openJumps == 0,
		"%d unpatched jumps at end of compilation", p.openJumps)
	if debug.DEBUG {
		logrus.Debugln(p.chunk.Disassemble("code"))
	}
}

func (p *Parser) identConst(name Token) int { return p.makeConst(NewVStr(name.String())) }

func (p *Parser) markInit() {
	if p.depth == 0 {
		return
	}
	p.locals[len(p.locals)-1].initialized = true
}

func (p *Parser) defVar(global int) {
	if p.depth > 0 {
		// Local vars live on the stack. Mark it as initialized.
		p.markInit()
		return
	}
	p.emitOpArg(OpDefGlobal, OpDefGlobal16, global)
}

func (p *Parser) parseVar(errorMsg string) (global int) {
	p.consume(TIdent, errorMsg)
	p.declVar()
	if p.depth > 0 {
		return 0 // Local vars are not resolved by name, but stay on the stack.
	}
	return p.identConst(p.prev)
}

func (p *Parser) declVar() {
	if p.depth == 0 {
		return
	}
	name := p.prev
	// Search the current scope for a declaration of the same name.
	for i := len(p.locals) - 1; i >= 0; i-- {
		local := p.locals[i]
		if local.depth < p.depth {
			break // Variable shadowing in a deeper scope is allowed.
		}
		if name.Eq(local.name) {
			p.Error("Already a variable with this name in this scope.")
		}
	}
	p.addLocal(name)
}

func (p *Parser) beginScope() { p.depth++ }

func (p *Parser) endScope() {
	p.depth--
	for len(p.locals) > 0 && p.locals[len(p.locals)-1].depth > p.depth {
		p.emitBytes(byte(OpPop)) // Pop off the local on the stack.
		p.locals = p.locals[:len(p.locals)-1]
	}
}

func (p *Parser) resolveLocal(name Token) (slot int, ok bool) {
	// Search for the latest variable declaration of the same name.
	for i := len(p.locals) - 1; i >= 0; i-- {
		local := p.locals[i]
		if name.Eq(local.name) {
			if !local.initialized {
				p.Error("Can't read local variable in its own initializer.")
			}
			return i, true
		}
	}
	return 0, false // Global variable.
}

// Jump is the handle to a forward jump whose distance is not known yet.
// Every emitJump must be paired with exactly one patchJump.
type Jump struct{ offset int }

func (p *Parser) emitJump(inst OpCode) Jump {
	p.emitBytes(byte(inst), 0xff, 0xff)
	p.openJumps++
	return Jump{offset: len(p.chunk.code) - 2}
}

func (p *Parser) patchJump(j Jump) {
	p.openJumps--
	// A jump uses 2 bytes to encode the offset, so
	// -2 to adjust for the bytecode for the jump offset itself:
	// [OpJump] [0xff@offset] [0xff@(offset+1)] [GOAL@(offset+2)] ... [CURR@(len-1)]
	jump := len(p.chunk.code) - (j.offset + 2)
	if jump > math.MaxUint16 {
		p.Error("Too much code to jump over.")
		return
	}
	p.chunk.patchU16(j.offset, uint16(jump))
}

func (p *Parser) emitLoop(start int) {
	p.emitBytes(byte(OpLoop))
	// [start] ... [OpLoop@(len-1)] [offset] [offset] [CURR@(len+2)]
	offset := len(p.chunk.code) + 2 - start // The bytes to jump backwards over.
	if offset > math.MaxUint16 {
		p.Error("Loop body too large.")
	}
	p.emitBytes(byte(offset>>8), byte(offset))
}

/* Precedence */

//go:generate stringer -type=Prec
type Prec int

const (
	PrecNone   Prec = iota
	PrecAssign      // =
	PrecOr          // or
	PrecAnd         // and
	PrecEqual       // == !=
	PrecComp        // < > <= >=
	PrecTerm        // + -
	PrecFactor      // * /
	PrecUnary       // ! -
	PrecCall        // . ()
	PrecPrimary
)

/* Error handling */

func (p *Parser) sync() {
	p.panicMode = false
	for !p.check(TEOF) && !p.checkPrev(TSemi) {
		switch p.curr.Type {
		case TClass, TFn, TVar, TFor, TIf, TWhile, TPrint, TReturn:
			return
		default:
			p.advance()
		}
	}
}

func (p *Parser) ErrorAt(tk Token, reason string) {
	// Failure is counted even while syncing; only the message is suppressed.
	p.hadError = true
	if p.panicMode {
		return
	}
	p.panicMode = true

	at, reason1 := "", reason
	switch tk.Type {
	case TEOF:
		at = " at end"
		reason1 = "at end: " + reason
	case TErr:
		// A lexical error is its own message; there is no lexeme to point at.
	default:
		at = fmt.Sprintf(" at '%s'", tk)
		reason1 = fmt.Sprintf("at '%s': %s", tk, reason)
	}
	fmt.Fprintf(p.errOut, "[line %d] Error%s: %s\n", tk.Line, at, reason)

	err := &e.CompilationError{Line: tk.Line, Reason: reason1}
	if debug.DEBUG {
		logrus.Debugln(p.chunk.Disassemble("ErrorAt"))
		logrus.Debugln(err)
	}
	p.errors = multierror.Append(p.errors, err)
}

func (p *Parser) Error(reason string)       { p.ErrorAt(p.prev, reason) }
func (p *Parser) ErrorAtCurr(reason string) { p.ErrorAt(p.curr, reason) }
func (p *Parser) HadError() bool            { return p.hadError }
