package internal

import (
	"errors"
	"github.com/stretchr/testify/assert"
	"math/big"
	"testing"
)

func runEvaluator(input string, cond bool, target PrimKind) (Expr, []error) {
	src := &tokenList{tokens: tokenize(input, Position{File: "test.idl", Line: 1}, DefaultLevel)}

	var errs []error
	ev := evaluator{src: src, cond: cond, target: target, report: func(err error) {
		errs = append(errs, err)
	}}
	ex, err := ev.parse()
	if err != nil {
		errs = append(errs, err)
	}
	return ex, errs
}

func semErrKind(err error) SemErrKind {
	var sErr *SemanticErr
	if errors.As(err, &sErr) {
		return sErr.kind
	}
	return -1
}

func TestEvaluator_Integers(t *testing.T) {
	tests := []struct {
		input string
		value int64
		rep   string
	}{
		{input: "1 + 2 * 3", value: 7, rep: "1 + 2 * 3"},
		{input: "(1 + 2) * 3", value: 9, rep: "(1 + 2) * 3"},
		{input: "0x10 | 017", value: 31, rep: "0x10 | 017"},
		{input: "1 << 4 >> 2", value: 4, rep: "1 << 4 >> 2"},
		{input: "7 % 3", value: 1, rep: "7 % 3"},
		{input: "-7 / 2", value: -3, rep: "-7 / 2"},
		{input: "6 & 3 ^ 1", value: 3, rep: "6 & 3 ^ 1"},
		{input: "- -4", value: 4, rep: "--4"},
	}

	for _, test := range tests {
		ex, errs := runEvaluator(test.input, false, PrimLong)

		assert.Nil(t, errs, test.input)
		assert.Equal(t, IntLit, ex.Lit.Kind, test.input)
		assert.Equal(t, test.value, ex.Lit.Int.Int64(), test.input)
		assert.Equal(t, test.rep, ex.Rep, test.input)
	}
}

func TestEvaluator_ComplementUsesTargetWidth(t *testing.T) {
	ex, errs := runEvaluator("~0", false, PrimULong)
	assert.Nil(t, errs)
	assert.Equal(t, "4294967295", ex.Lit.Int.String())

	ex, errs = runEvaluator("~0", false, PrimOctet)
	assert.Nil(t, errs)
	assert.Equal(t, "255", ex.Lit.Int.String())

	ex, errs = runEvaluator("~0", false, PrimLong)
	assert.Nil(t, errs)
	assert.Equal(t, "-1", ex.Lit.Int.String())
}

func TestEvaluator_OtherLiterals(t *testing.T) {
	ex, errs := runEvaluator("1.5 * 2", false, PrimDouble)
	assert.Nil(t, errs)
	assert.Equal(t, Literal{Kind: FloatLit, Float: 3}, ex.Lit)

	ex, errs = runEvaluator("TRUE ^ FALSE", false, PrimBoolean)
	assert.Nil(t, errs)
	assert.Equal(t, Literal{Kind: BoolLit, Bool: true}, ex.Lit)

	ex, errs = runEvaluator(`"ab" "cd"`, false, PrimString)
	assert.Nil(t, errs)
	assert.Equal(t, "abcd", ex.Lit.Str)
	assert.Equal(t, `"abcd"`, ex.Rep)

	ex, errs = runEvaluator(`L'x'`, false, PrimWChar)
	assert.Nil(t, errs)
	assert.Equal(t, Literal{Kind: CharLit, Char: 'x', Wide: true}, ex.Lit)
	assert.Equal(t, "L'x'", ex.Rep)
}

func TestEvaluator_Errors(t *testing.T) {
	tests := []string{"1 / 0", "1 % 0", "1 << 64", "'a' + 1", "~1.5", "2.0 % 1.0"}

	for _, input := range tests {
		ex, errs := runEvaluator(input, false, PrimLong)

		assert.Len(t, errs, 1, input)
		assert.Equal(t, EvalErrKind, semErrKind(errs[0]), input)
		assert.Equal(t, "0", ex.Lit.String(), input)
	}
}

func TestEvaluator_SyntaxError(t *testing.T) {
	_, errs := runEvaluator("1 +", false, PrimLong)

	assert.Len(t, errs, 1)
	var pErr *ParseErr
	assert.True(t, errors.As(errs[0], &pErr))
	assert.Equal(t, "expression", pErr.context)

	_, errs = runEvaluator("(1 + 2", false, PrimLong)
	assert.Len(t, errs, 1)
	assert.Equal(t, "expected ')', found <eof> while parsing expression", errs[0].(*ParseErr).Message())
}

func TestEvaluator_Conditions(t *testing.T) {
	tests := []struct {
		input string
		value bool
	}{
		{input: "1 < 2 && !0", value: true},
		{input: "2 <= 1 || 3 == 4", value: false},
		{input: "5 != 5", value: false},
		{input: "1 + 1 >= 2", value: true},
		{input: "!(1 > 0)", value: false},
	}

	for _, test := range tests {
		ex, errs := runEvaluator(test.input, true, PrimNone)

		assert.Nil(t, errs, test.input)
		assert.Equal(t, test.value, ex.Lit.truthy(), test.input)
	}
}

func TestCheckRange(t *testing.T) {
	assert.True(t, checkRange(big.NewInt(0), PrimUShort))
	assert.True(t, checkRange(big.NewInt(65535), PrimUShort))
	assert.False(t, checkRange(big.NewInt(65536), PrimUShort))
	assert.False(t, checkRange(big.NewInt(-1), PrimUShort))

	assert.True(t, checkRange(big.NewInt(-32768), PrimShort))
	assert.False(t, checkRange(big.NewInt(32768), PrimShort))

	maxULL, _ := new(big.Int).SetString("18446744073709551615", 10)
	assert.True(t, checkRange(maxULL, PrimULongLong))
	assert.False(t, checkRange(new(big.Int).Add(maxULL, big.NewInt(1)), PrimULongLong))
	assert.False(t, checkRange(maxULL, PrimLongLong))

	assert.False(t, checkRange(big.NewInt(1), PrimDouble))
}

func TestVerifyConst(t *testing.T) {
	pos := Position{File: "test.idl", Line: 1}
	intExpr := func(v int64) Expr {
		return Expr{Lit: intLit(v), Rep: big.NewInt(v).String()}
	}

	ex, err := verifyConst(intExpr(3), ConstType{Prim: PrimDouble}, pos)
	assert.Nil(t, err)
	assert.Equal(t, Literal{Kind: FloatLit, Float: 3}, ex.Lit)

	_, err = verifyConst(intExpr(70000), ConstType{Prim: PrimUShort}, pos)
	assert.Equal(t, RangeErrKind, semErrKind(err))
	assert.Equal(t, "test.idl:1: 70000 is out of range for unsigned short", err.Error())

	_, err = verifyConst(Expr{Lit: Literal{Kind: BoolLit, Bool: true}, Rep: "TRUE"}, ConstType{Prim: PrimLong}, pos)
	assert.Equal(t, ExprTypeErrKind, semErrKind(err))

	_, err = verifyConst(Expr{Lit: Literal{Kind: CharLit, Char: 'a'}, Rep: "'a'"}, ConstType{Prim: PrimWChar}, pos)
	assert.Equal(t, ExprTypeErrKind, semErrKind(err))

	_, err = verifyConst(Expr{Lit: Literal{Kind: CharLit, Char: 'a', Wide: true}, Rep: "L'a'"}, ConstType{Prim: PrimWChar}, pos)
	assert.Nil(t, err)

	_, err = verifyConst(Expr{Lit: Literal{Kind: StringLit, Str: "abcd"}, Rep: `"abcd"`}, ConstType{Prim: PrimString, Max: 3}, pos)
	assert.Equal(t, RangeErrKind, semErrKind(err))
	assert.Contains(t, err.Error(), "string<3>")

	_, err = verifyConst(Expr{Lit: Literal{Kind: FloatLit, Float: 1e40}, Rep: "1e40"}, ConstType{Prim: PrimFloat}, pos)
	assert.Equal(t, RangeErrKind, semErrKind(err))

	_, err = verifyConst(Expr{Lit: Literal{Kind: EnumLit, Enum: 5, Int: big.NewInt(0), Str: "A"}, Rep: "A"}, ConstType{Prim: PrimEnum, Enum: 6}, pos)
	assert.Equal(t, ExprTypeErrKind, semErrKind(err))
}

func TestLiteral_String(t *testing.T) {
	assert.Equal(t, "L'a'", Literal{Kind: CharLit, Char: 'a', Wide: true}.String())
	assert.Equal(t, `"a\"b"`, Literal{Kind: StringLit, Str: `a"b`}.String())
	assert.Equal(t, "FALSE", Literal{Kind: BoolLit}.String())
	assert.Equal(t, "0.25", Literal{Kind: FloatLit, Float: 0.25}.String())
	assert.Equal(t, "-12", intLit(-12).String())
}

func TestParseInteger(t *testing.T) {
	assert.Equal(t, "31", parseInteger("0x1F").String())
	assert.Equal(t, "15", parseInteger("017").String())
	assert.Equal(t, "0", parseInteger("0").String())
	assert.Equal(t, "120", parseInteger("120").String())
}
