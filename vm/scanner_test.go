package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func scanAll(src string) (types []TokenType) {
	s := NewScanner(src)
	for {
		tk := s.ScanToken()
		types = append(types, tk.Type)
		if tk.Type == TEOF {
			return
		}
	}
}

func TestScanKeywords(t *testing.T) {
	assert.Equal(t,
		[]TokenType{
			TAnd, TClass, TElse, TFalse, TFn, TFor, TIf,
			TNull, TOr, TPrint, TReturn, TTrue, TVar, TWhile, TEOF,
		},
		scanAll("and class else false fn for if null or print return true var while"))
}

func TestScanIdentsNearKeywords(t *testing.T) {
	assert.Equal(t,
		[]TokenType{TIdent, TIdent, TIdent, TIdent, TIdent, TEOF},
		scanAll("fnord nullable android classy f"))
}

func TestScanOperators(t *testing.T) {
	assert.Equal(t,
		[]TokenType{
			TBangEqual, TEqualEqual, TLessEqual, TGreaterEqual,
			TBang, TEqual, TLess, TGreater, TEOF,
		},
		scanAll("!= == <= >= ! = < >"))
}

func TestScanNumberAndString(t *testing.T) {
	s := NewScanner(`12.5 "hi there"`)

	num := s.ScanToken()
	assert.Equal(t, TNum, num.Type)
	assert.Equal(t, "12.5", num.String())

	str := s.ScanToken()
	assert.Equal(t, TStr, str.Type)
	assert.Equal(t, `"hi there"`, str.String())
}

func TestScanUnterminatedString(t *testing.T) {
	tk := NewScanner(`"oops`).ScanToken()
	assert.Equal(t, TErr, tk.Type)
	assert.Equal(t, "Unterminated string.", tk.String())
}

func TestScanUnexpectedCharacter(t *testing.T) {
	tk := NewScanner("@").ScanToken()
	assert.Equal(t, TErr, tk.Type)
	assert.Equal(t, "Unexpected character.", tk.String())
}

func TestScanLinesAndComments(t *testing.T) {
	s := NewScanner("1\n// a comment\n2")
	assert.Equal(t, 1, s.ScanToken().Line)

	tk := s.ScanToken()
	assert.Equal(t, TNum, tk.Type)
	assert.Equal(t, 3, tk.Line)

	assert.Equal(t, TEOF, s.ScanToken().Type)
}
