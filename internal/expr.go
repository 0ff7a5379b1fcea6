package internal

import (
	"fmt"
	"math"
	"math/big"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

type LitKind int

const (
	IntLit LitKind = iota
	FloatLit
	BoolLit
	CharLit
	StringLit
	EnumLit
)

func (k LitKind) String() string {
	switch k {
	case IntLit:
		return "integer"
	case FloatLit:
		return "floating point"
	case BoolLit:
		return "boolean"
	case CharLit:
		return "character"
	case StringLit:
		return "string"
	case EnumLit:
		return "enumerator"
	}
	return "<unknown>"
}

// Literal is the value of a constant expression. Integers are arbitrary
// precision and never narrowed.
type Literal struct {
	Kind  LitKind
	Int   *big.Int
	Float float64
	Bool  bool
	Char  rune
	Str   string
	Wide  bool
	Enum  Ref // enumerator literals: the enum, with Int holding the ordinal
}

func intLit(v int64) Literal {
	return Literal{Kind: IntLit, Int: big.NewInt(v)}
}

func (l Literal) String() string {
	switch l.Kind {
	case IntLit:
		return l.Int.String()
	case FloatLit:
		return strconv.FormatFloat(l.Float, 'g', -1, 64)
	case BoolLit:
		if l.Bool {
			return "TRUE"
		}
		return "FALSE"
	case CharLit:
		return quoteLit(string(l.Char), '\'', l.Wide)
	case StringLit:
		return quoteLit(l.Str, '"', l.Wide)
	case EnumLit:
		return l.Str
	}
	return ""
}

func quoteLit(s string, quote byte, wide bool) string {
	q := strconv.Quote(s)
	if quote == '\'' {
		q = "'" + q[1:len(q)-1] + "'"
	}
	if wide {
		return "L" + q
	}
	return q
}

func (l Literal) equal(o Literal) bool {
	if l.Kind != o.Kind {
		return false
	}
	switch l.Kind {
	case IntLit:
		return l.Int.Cmp(o.Int) == 0
	case FloatLit:
		return l.Float == o.Float
	case BoolLit:
		return l.Bool == o.Bool
	case CharLit:
		return l.Char == o.Char
	case StringLit:
		return l.Str == o.Str
	case EnumLit:
		return l.Enum == o.Enum && l.Int.Cmp(o.Int) == 0
	}
	return false
}

func (l Literal) truthy() bool {
	switch l.Kind {
	case IntLit, EnumLit:
		return l.Int.Sign() != 0
	case FloatLit:
		return l.Float != 0
	case BoolLit:
		return l.Bool
	case CharLit:
		return l.Char != 0
	case StringLit:
		return l.Str != ""
	}
	return false
}

// Expr is an evaluated expression together with its source representation.
type Expr struct {
	Lit Literal
	Rep string
}

// ConstType is the type an expression is checked against.
type ConstType struct {
	Prim PrimKind
	Max  int // bound of a bounded string, 0 when unbounded
	Enum Ref
}

func (t ConstType) String() string {
	if t.Max > 0 {
		return fmt.Sprintf("%s<%d>", t.Prim, t.Max)
	}
	return t.Prim.String()
}

type tokenSource interface {
	peek() Token
	eat()
}

// nameHook evaluates a name appearing as a primary expression.
type nameHook func(src tokenSource) (Expr, error)

// evaluator parses and evaluates constant expressions. In cond mode it also
// accepts the logical and relational operators of #if lines.
type evaluator struct {
	src    tokenSource
	cond   bool
	target PrimKind
	name   nameHook
	report func(error)
}

func (e *evaluator) parse() (Expr, error) {
	if e.cond {
		return e.orElse()
	}
	return e.or()
}

func (e *evaluator) evalErr(pos Position, rep string, detail string) {
	if e.report != nil {
		e.report(makeSemErr(pos, EvalErrKind, rep, detail))
	}
}

type operand func() (Expr, error)

// binaryLevel parses a left associative chain of the given operators.
func (e *evaluator) binaryLevel(next operand, ops ...TokKind) (Expr, error) {
	left, err := next()
	if err != nil {
		return Expr{}, err
	}
	for {
		tok := e.src.peek()
		if !slices.Contains(ops, tok.Kind) {
			return left, nil
		}
		e.src.eat()
		right, err := next()
		if err != nil {
			return Expr{}, err
		}
		left = e.binary(tok, left, right)
	}
}

func (e *evaluator) orElse() (Expr, error)  { return e.binaryLevel(e.andAlso, TokOrOr) }
func (e *evaluator) andAlso() (Expr, error) { return e.binaryLevel(e.or, TokAndAnd) }
func (e *evaluator) or() (Expr, error)      { return e.binaryLevel(e.xor, TokPipe) }
func (e *evaluator) xor() (Expr, error)     { return e.binaryLevel(e.and, TokCaret) }

func (e *evaluator) and() (Expr, error) {
	if e.cond {
		return e.binaryLevel(e.equality, TokAmp)
	}
	return e.binaryLevel(e.shift, TokAmp)
}

func (e *evaluator) equality() (Expr, error) { return e.binaryLevel(e.relational, TokEqEq, TokNotEq) }

func (e *evaluator) relational() (Expr, error) {
	return e.binaryLevel(e.shift, TokLAngle, TokRAngle, TokLessEq, TokGreaterEq)
}

func (e *evaluator) shift() (Expr, error) { return e.binaryLevel(e.add, TokShl, TokShr) }
func (e *evaluator) add() (Expr, error)   { return e.binaryLevel(e.mult, TokPlus, TokMinus) }
func (e *evaluator) mult() (Expr, error)  { return e.binaryLevel(e.unary, TokStar, TokSlash, TokPercent) }

func (e *evaluator) unary() (Expr, error) {
	tok := e.src.peek()
	switch tok.Kind {
	case TokPlus, TokMinus, TokTilde:
	case TokBang:
		if !e.cond {
			return e.primary()
		}
	default:
		return e.primary()
	}
	e.src.eat()
	operand, err := e.unary()
	if err != nil {
		return Expr{}, err
	}
	return e.applyUnary(tok, operand), nil
}

func (e *evaluator) primary() (Expr, error) {
	tok := e.src.peek()
	switch tok.Kind {
	case TokInteger, TokFloat, TokChar, TokTrue, TokFalse:
		e.src.eat()
		return e.literal(tok), nil
	case TokString:
		return e.stringLiteral(), nil
	case TokLParen:
		e.src.eat()
		inner, err := e.parse()
		if err != nil {
			return Expr{}, err
		}
		if closing := e.src.peek(); closing.Kind != TokRParen {
			return Expr{}, makeExpectErr(closing, TokRParen).withContext("expression")
		}
		e.src.eat()
		return Expr{Lit: inner.Lit, Rep: "(" + inner.Rep + ")"}, nil
	case TokIden, TokScope:
		if e.name != nil {
			return e.name(e.src)
		}
	}
	return Expr{}, makeExpectErr(tok, TokInteger, TokFloat, TokChar, TokString, TokTrue, TokFalse, TokIden, TokLParen).withContext("expression")
}

func (e *evaluator) literal(tok Token) Expr {
	ex := Expr{Rep: tok.Value}
	switch tok.Kind {
	case TokInteger:
		ex.Lit = Literal{Kind: IntLit, Int: parseInteger(tok.Value)}
	case TokFloat:
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			e.evalErr(tok.Pos, tok.Value, "floating point value out of range")
		}
		ex.Lit = Literal{Kind: FloatLit, Float: f}
	case TokChar:
		r, _ := utf8.DecodeRuneInString(tok.Value)
		ex.Lit = Literal{Kind: CharLit, Char: r, Wide: tok.Wide}
		ex.Rep = ex.Lit.String()
	case TokTrue:
		ex.Lit = Literal{Kind: BoolLit, Bool: true}
	case TokFalse:
		ex.Lit = Literal{Kind: BoolLit}
	}
	return ex
}

// stringLiteral concatenates adjacent string literals.
func (e *evaluator) stringLiteral() Expr {
	var sb strings.Builder
	first := e.src.peek()
	for e.src.peek().Kind == TokString {
		sb.WriteString(e.src.peek().Value)
		e.src.eat()
	}
	lit := Literal{Kind: StringLit, Str: sb.String(), Wide: first.Wide}
	return Expr{Lit: lit, Rep: lit.String()}
}

// parseInteger converts a decimal, octal or hexadecimal lexeme.
func parseInteger(lexeme string) *big.Int {
	v := new(big.Int)
	switch {
	case len(lexeme) > 2 && (lexeme[:2] == "0x" || lexeme[:2] == "0X"):
		v.SetString(lexeme[2:], 16)
	case len(lexeme) > 1 && lexeme[0] == '0':
		v.SetString(lexeme[1:], 8)
	default:
		v.SetString(lexeme, 10)
	}
	return v
}

func (e *evaluator) applyUnary(op Token, x Expr) Expr {
	rep := op.Value + x.Rep
	lit := x.Lit
	switch {
	case op.Kind == TokBang:
		return Expr{Lit: Literal{Kind: BoolLit, Bool: !lit.truthy()}, Rep: rep}
	case lit.Kind == IntLit && op.Kind == TokMinus:
		return Expr{Lit: Literal{Kind: IntLit, Int: new(big.Int).Neg(lit.Int)}, Rep: rep}
	case lit.Kind == IntLit && op.Kind == TokPlus:
		return Expr{Lit: lit, Rep: rep}
	case lit.Kind == IntLit && op.Kind == TokTilde:
		return Expr{Lit: Literal{Kind: IntLit, Int: complement(lit.Int, e.target)}, Rep: rep}
	case lit.Kind == FloatLit && op.Kind == TokMinus:
		return Expr{Lit: Literal{Kind: FloatLit, Float: -lit.Float}, Rep: rep}
	case lit.Kind == FloatLit && op.Kind == TokPlus:
		return Expr{Lit: lit, Rep: rep}
	}
	e.evalErr(op.Pos, rep, fmt.Sprintf("operator %s does not apply to a %s operand", op.Kind, lit.Kind))
	return Expr{Lit: intLit(0), Rep: rep}
}

var unsignedWidths = map[PrimKind]uint{PrimOctet: 8, PrimUShort: 16, PrimULong: 32, PrimULongLong: 64}

// complement is the bitwise not of v within the width of an unsigned target,
// and two's complement otherwise.
func complement(v *big.Int, target PrimKind) *big.Int {
	if width, ok := unsignedWidths[target]; ok && v.Sign() >= 0 {
		mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), width), big.NewInt(1))
		return new(big.Int).Xor(v, mask)
	}
	return new(big.Int).Not(v)
}

func (e *evaluator) binary(op Token, l Expr, r Expr) Expr {
	rep := l.Rep + " " + op.Value + " " + r.Rep
	lit, detail := applyBinary(op.Kind, l.Lit, r.Lit)
	if detail != "" {
		e.evalErr(op.Pos, rep, detail)
		return Expr{Lit: intLit(0), Rep: rep}
	}
	return Expr{Lit: lit, Rep: rep}
}

// applyBinary computes l op r, returning a description of the failure when the operands do not permit it.
func applyBinary(op TokKind, l Literal, r Literal) (Literal, string) {
	switch op {
	case TokOrOr:
		return Literal{Kind: BoolLit, Bool: l.truthy() || r.truthy()}, ""
	case TokAndAnd:
		return Literal{Kind: BoolLit, Bool: l.truthy() && r.truthy()}, ""
	case TokEqEq, TokNotEq, TokLAngle, TokRAngle, TokLessEq, TokGreaterEq:
		return compare(op, l, r)
	}

	if l.Kind == BoolLit && r.Kind == BoolLit {
		switch op {
		case TokPipe:
			return Literal{Kind: BoolLit, Bool: l.Bool || r.Bool}, ""
		case TokAmp:
			return Literal{Kind: BoolLit, Bool: l.Bool && r.Bool}, ""
		case TokCaret:
			return Literal{Kind: BoolLit, Bool: l.Bool != r.Bool}, ""
		}
	}

	if l.Kind == IntLit && r.Kind == IntLit {
		return intBinary(op, l.Int, r.Int)
	}
	if isNumeric(l) && isNumeric(r) {
		return floatBinary(op, toFloat(l), toFloat(r))
	}
	return Literal{}, fmt.Sprintf("operator %s does not apply to %s and %s operands", op, l.Kind, r.Kind)
}

func isNumeric(l Literal) bool {
	return l.Kind == IntLit || l.Kind == FloatLit
}

func toFloat(l Literal) float64 {
	if l.Kind == IntLit {
		f, _ := new(big.Float).SetInt(l.Int).Float64()
		return f
	}
	return l.Float
}

func intBinary(op TokKind, x *big.Int, y *big.Int) (Literal, string) {
	z := new(big.Int)
	switch op {
	case TokPlus:
		z.Add(x, y)
	case TokMinus:
		z.Sub(x, y)
	case TokStar:
		z.Mul(x, y)
	case TokSlash, TokPercent:
		if y.Sign() == 0 {
			return Literal{}, "division by zero"
		}
		if op == TokSlash {
			z.Quo(x, y)
		} else {
			z.Rem(x, y)
		}
	case TokPipe:
		z.Or(x, y)
	case TokCaret:
		z.Xor(x, y)
	case TokAmp:
		z.And(x, y)
	case TokShl, TokShr:
		if y.Sign() < 0 || y.Cmp(big.NewInt(64)) >= 0 {
			return Literal{}, fmt.Sprintf("shift count %s must be between 0 and 63", y)
		}
		if op == TokShl {
			z.Lsh(x, uint(y.Int64()))
		} else {
			z.Rsh(x, uint(y.Int64()))
		}
	default:
		return Literal{}, fmt.Sprintf("operator %s does not apply to integers", op)
	}
	return Literal{Kind: IntLit, Int: z}, ""
}

func floatBinary(op TokKind, x float64, y float64) (Literal, string) {
	var z float64
	switch op {
	case TokPlus:
		z = x + y
	case TokMinus:
		z = x - y
	case TokStar:
		z = x * y
	case TokSlash:
		if y == 0 {
			return Literal{}, "division by zero"
		}
		z = x / y
	default:
		return Literal{}, fmt.Sprintf("operator %s does not apply to floating point operands", op)
	}
	return Literal{Kind: FloatLit, Float: z}, ""
}

func compare(op TokKind, l Literal, r Literal) (Literal, string) {
	var c int
	switch {
	case l.Kind == IntLit && r.Kind == IntLit:
		c = l.Int.Cmp(r.Int)
	case isNumeric(l) && isNumeric(r):
		x, y := toFloat(l), toFloat(r)
		switch {
		case x < y:
			c = -1
		case x > y:
			c = 1
		}
	case op == TokEqEq || op == TokNotEq:
		eq := l.equal(r)
		return Literal{Kind: BoolLit, Bool: eq == (op == TokEqEq)}, ""
	default:
		return Literal{}, fmt.Sprintf("cannot compare %s and %s operands", l.Kind, r.Kind)
	}
	var b bool
	switch op {
	case TokEqEq:
		b = c == 0
	case TokNotEq:
		b = c != 0
	case TokLAngle:
		b = c < 0
	case TokRAngle:
		b = c > 0
	case TokLessEq:
		b = c <= 0
	case TokGreaterEq:
		b = c >= 0
	}
	return Literal{Kind: BoolLit, Bool: b}, ""
}

type intRange struct {
	min *big.Int
	max *big.Int
}

func bigPow2(n uint) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), n)
}

func signedRange(bits uint) intRange {
	return intRange{min: new(big.Int).Neg(bigPow2(bits - 1)), max: new(big.Int).Sub(bigPow2(bits-1), big.NewInt(1))}
}

func unsignedRange(bits uint) intRange {
	return intRange{min: big.NewInt(0), max: new(big.Int).Sub(bigPow2(bits), big.NewInt(1))}
}

var intRanges = map[PrimKind]intRange{
	PrimOctet:     unsignedRange(8),
	PrimShort:     signedRange(16),
	PrimUShort:    unsignedRange(16),
	PrimLong:      signedRange(32),
	PrimULong:     unsignedRange(32),
	PrimLongLong:  signedRange(64),
	PrimULongLong: unsignedRange(64),
}

// checkRange reports whether v fits the integral type prim.
func checkRange(v *big.Int, prim PrimKind) bool {
	rng, ok := intRanges[prim]
	if !ok || v == nil {
		return false
	}
	return v.Cmp(rng.min) >= 0 && v.Cmp(rng.max) <= 0
}

func checkFloat32(f float64) bool {
	abs := math.Abs(f)
	return abs == 0 || (abs <= math.MaxFloat32 && abs >= math.SmallestNonzeroFloat32)
}

// verifyConst checks ex against the target type, coercing integers assigned
// to floating point targets. The returned expression is usable even when an
// error is returned.
func verifyConst(ex Expr, target ConstType, pos Position) (Expr, error) {
	lit := ex.Lit
	mismatch := func() (Expr, error) {
		return ex, makeSemErr(pos, ExprTypeErrKind, fmt.Sprintf("%s value %s", lit.Kind, ex.Rep), target.String())
	}
	outOfRange := func() (Expr, error) {
		return ex, makeSemErr(pos, RangeErrKind, ex.Rep, target.String())
	}

	switch {
	case target.Prim.isInteger():
		if lit.Kind != IntLit {
			return mismatch()
		}
		if !checkRange(lit.Int, target.Prim) {
			return outOfRange()
		}
	case target.Prim.isFloat():
		if lit.Kind == IntLit {
			ex.Lit = Literal{Kind: FloatLit, Float: toFloat(lit)}
		} else if lit.Kind != FloatLit {
			return mismatch()
		}
		if target.Prim == PrimFloat && !checkFloat32(ex.Lit.Float) {
			return outOfRange()
		}
	case target.Prim == PrimBoolean:
		if lit.Kind != BoolLit {
			return mismatch()
		}
	case target.Prim == PrimChar || target.Prim == PrimWChar:
		if lit.Kind != CharLit || lit.Wide != (target.Prim == PrimWChar) {
			return mismatch()
		}
	case target.Prim == PrimString || target.Prim == PrimWString:
		if lit.Kind != StringLit || lit.Wide != (target.Prim == PrimWString) {
			return mismatch()
		}
		if target.Max > 0 && utf8.RuneCountInString(lit.Str) > target.Max {
			return ex, makeSemErr(pos, RangeErrKind, ex.Rep, target.String())
		}
	case target.Prim == PrimEnum:
		if lit.Kind != EnumLit || lit.Enum != target.Enum {
			return mismatch()
		}
	default:
		return mismatch()
	}
	return ex, nil
}
