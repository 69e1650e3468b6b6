package vm_test

import (
	"fmt"
	"testing"

	"flint/vm"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/stretchr/testify/assert"
)

type TestPair struct{ input, output string }

func assertEval(t *testing.T, errSubstr string, pairs ...TestPair) {
	t.Helper()
	t.Parallel()
	vm_ := vm.NewVM()
	for _, pair := range pairs {
		val, err := vm_.Interpret(pair.input+"\n", true)
		switch {
		case errSubstr == "":
			assert.Nil(t, err)
		case err != nil:
			assert.ErrorContains(t, err, errSubstr)
			return
		}
		valStr := fmt.Sprintf("%s", val)
		assert.Equal(t, pair.output, valStr)
	}
	assert.Empty(t, errSubstr, "a successful test must have an empty errSubStr")
}

func TestCalculator(t *testing.T) {
	assertEval(t, "", []TestPair{
		{"2 +2", "4"},
		{"11.4 + 5.14 / 19198.10", "11.400267734827926"},
		{"-6 *(-4+ -3) == 6*4 + 2  *((((9))))", "true"},
		{
			heredoc.Doc(`
				4/1 - 4/3 + 4/5 - 4/7 + 4/9 - 4/11
					+ 4/13 - 4/15 + 4/17 - 4/19 + 4/21 - 4/23
			`),
			"3.058402765927333",
		},
		{
			heredoc.Doc(`
				3
					+ 4/(2*3*4)
					- 4/(4*5*6)
					+ 4/(6*7*8)
					- 4/(8*9*10)
					+ 4/(10*11*12)
					- 4/(12*13*14)
			`),
			"3.1408813408813407",
		},
	}...)
}

func TestUnaryAndEquality(t *testing.T) {
	assertEval(t, "", []TestPair{
		{"!true", "false"},
		{"!null", "true"},
		{"!0", "false"},
		{"-(-3)", "3"},
		{"1 != 2", "true"},
		{"null == null", "true"},
		{"null == false", "false"},
		{`"a" == "a"`, "true"},
		{`"a" == "b"`, "false"},
	}...)
}

func TestStrings(t *testing.T) {
	assertEval(t, "", []TestPair{
		{`var greet = "fl" + "int";`, "null"},
		{"greet", `"flint"`},
		{`greet == "flint"`, "true"},
		{`greet + "!"`, `"flint!"`},
	}...)
}

func TestVarsBlocks(t *testing.T) {
	assertEval(t, "", []TestPair{
		{"var foo = 2;", "null"},
		{"foo", "2"},
		{"foo + 3 == 1 + foo * foo", "true"},
		{"var bar;", "null"},
		{"bar", "null"},
		{"bar = foo = 2;", "null"},
		{"foo", "2"},
		{"bar", "2"},
		{"{ foo = foo + 1; var bar; var foo1 = foo; foo1 = foo1 + 1; }", "null"},
		{"foo", "3"},
	}...)
}

func TestVarOwnInit(t *testing.T) {
	assertEval(t, "Can't read local variable in its own initializer.",
		[]TestPair{
			{"var foo = 2;", "null"},
			{"{ var foo = foo; }", ""},
		}...,
	)
}

func TestInvalidAssignTarget(t *testing.T) {
	assertEval(t, "Invalid assignment target.",
		[]TestPair{
			{"var a = 1; var b = 2; var c = 3;", "null"},
			{"a + b = c;", ""},
		}...,
	)
}

func TestIfElse(t *testing.T) {
	assertEval(t, "", []TestPair{
		{"var foo = 2;", "null"},
		{"if (foo == 2) foo = foo + 1; else { foo = 42; }", "null"},
		{"foo", "3"},
		{"if (foo == 2) { foo = foo + 1; } else foo = null;", "null"},
		{"foo", "null"},
		{"if (!foo) foo = 1;", "null"},
		{"foo", "1"},
		{"if (foo) foo = 2;", "null"},
		{"foo", "2"},
	}...)
}

func TestAndOr(t *testing.T) {
	assertEval(t, "", []TestPair{
		{`"trick" or __TREAT__`, `"trick"`},
		{"996 or 007", "996"},
		{`null or "hi"`, `"hi"`},
		{"null and what", "null"},
		{`true and "then_what"`, `"then_what"`},
		{"var B = 66;", "null"},
		{"2*B or !2*B", "132"},
	}...)
}

func TestIfAndOr(t *testing.T) {
	assertEval(t, "", []TestPair{
		{"var foo = 2;", "null"},
		{
			"if (foo != 2 and whatever) foo = foo + 42; else { foo = 3; }",
			"null",
		},
		{"foo", "3"},
		{
			"if (0 <= foo and foo <= 3) { foo = foo + 1; } else { foo = null; }",
			"null",
		},
		{"foo", "4"},
		{"if (!!!(2 + 2 != 5) or !!!!!!!!foo) foo = 1;", "null"},
		{"foo", "1"},
		{"if (true or whatever) foo = 2;", "null"},
		{"foo", "2"},
	}...)
}

func TestWhile(t *testing.T) {
	assertEval(t, "", []TestPair{
		{"var i = 1; var product = 1;", "null"},
		{"while (i <= 5) { product = product * i; i = i + 1; }", "null"},
		{"product", "120"},
	}...)
}

func TestFor(t *testing.T) {
	assertEval(t, "", []TestPair{
		{"var sum = 0;", "null"},
		{"for (var i = 1; i <= 5; i = i + 1) sum = sum + i;", "null"},
		{"sum", "15"},
	}...)
}

func TestForFib(t *testing.T) {
	assertEval(t, "", []TestPair{
		{"var fib = 0;", "null"},
		{
			heredoc.Doc(`
				{
					var a = 0;
					var b = 1;
					for (var i = 0; i < 10; i = i + 1) {
						var c = a + b;
						a = b;
						b = c;
					}
					fib = a;
				}
			`),
			"null",
		},
		{"fib", "55"},
	}...)
}

func TestForCondOnly(t *testing.T) {
	assertEval(t, "", []TestPair{
		{"var m = 0;", "null"},
		{"for (; m < 3;) m = m + 1;", "null"},
		{"m", "3"},
	}...)
}

func TestForNoClauses(t *testing.T) {
	// Without clauses the loop spins until the body blows up, which is
	// as close to `break` as the language gets.
	assertEval(t, "Operands must be two numbers or two strings.", []TestPair{
		{"var n = 0;", "null"},
		{`for (;;) { n = n + 1; if (n == 3) n = n + ""; }`, ""},
	}...)
}

func TestUndefinedVariable(t *testing.T) {
	assertEval(t, "Undefined variable 'bogus'.",
		[]TestPair{{"bogus;", ""}}...,
	)
}

func TestAssignUndefined(t *testing.T) {
	assertEval(t, "Undefined variable 'nope'.",
		[]TestPair{{"nope = 1;", ""}}...,
	)
}

func TestTypeErrors(t *testing.T) {
	assertEval(t, "Operands must be numbers.",
		[]TestPair{{`1 < "one";`, ""}}...,
	)
}

func TestAddTypeError(t *testing.T) {
	assertEval(t, "Operands must be two numbers or two strings.",
		[]TestPair{{`1 + "one";`, ""}}...,
	)
}

func TestNegateTypeError(t *testing.T) {
	assertEval(t, "Operand must be a number.",
		[]TestPair{{"-null;", ""}}...,
	)
}

func TestShadowing(t *testing.T) {
	assertEval(t, "", []TestPair{
		{"var x = 1;", "null"},
		{"{ var x = 2; x = x * 10; }", "null"},
		{"x", "1"},
	}...)
}
