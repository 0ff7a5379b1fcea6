package internal

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func runCompilerWith(opts Options, input string) (*Compiler, []string) {
	c, err := NewCompiler(opts, NewReporter(nil, false, false), nil)
	if err != nil {
		panic(err)
	}
	_ = c.CompileSource("test.idl", input)
	return c, c.Reporter().Messages()
}

func runParser(input string) (*Symtab, []string) {
	c, msgs := runCompilerWith(DefaultOptions(), input)
	return c.Symtab(), msgs
}

func TestParser_ModuleReopen(t *testing.T) {
	input := `
	module M {
		const long N = 3;
		typedef sequence<long, N> Seq;
		struct S { Seq s; long a[N][2]; };
	};
	module M {
		typedef S T;
	};
	`
	st, msgs := runParser(input)
	assert.Nil(t, msgs)

	m := st.Lookup("M")
	assert.Len(t, st.Roots(), 1)
	assert.Len(t, m.Contained, 4)
	assert.Equal(t, st.Lookup("M/S").Ref(), st.Lookup("M/T").Type)

	seq := st.Get(st.Lookup("M/Seq").Type)
	assert.Equal(t, SequenceEntryKind, seq.Kind)
	assert.Equal(t, "3", seq.Data.(*SequenceData).Max.Lit.String())
	assert.Equal(t, "sequence<long, 3>", TypeName(st, seq.Ref()))

	s := st.Lookup("M/S")
	assert.Len(t, s.Struct().Members, 2)
	dims := st.Lookup("M/S/a").Dims()
	assert.Len(t, dims, 2)
	assert.Equal(t, "N", dims[0].Rep)
	assert.Equal(t, "3", dims[0].Lit.String())
	assert.Equal(t, "2", dims[1].Lit.String())

	assert.Equal(t, "IDL:M/S:1.0", s.RepID.String())
	assert.Equal(t, "::M::S", s.ScopedName())
}

func TestParser_ForwardInterface(t *testing.T) {
	input := `
	interface A;
	interface B : A {};
	interface A { void op(); };
	`
	st, msgs := runParser(input)
	assert.Nil(t, msgs)

	a := st.Lookup("A")
	b := st.Lookup("B")
	assert.Equal(t, InterfaceEntryKind, a.Kind)
	assert.Equal(t, []Ref{a.Ref()}, b.Iface().DerivedFrom)
	assert.Equal(t, []string{"A"}, b.Iface().DerivedNames)
	assert.Equal(t, []Ref{st.Lookup("A/op").Ref()}, b.Iface().Inherited)
	assert.Equal(t, []Ref{b.Ref()}, a.Iface().Derivers)
	assert.Equal(t, []Ref{st.Builtin("Object").Ref()}, a.Iface().DerivedFrom)
}

func TestParser_ForwardSpreadsToGrandchildren(t *testing.T) {
	input := `
	interface A;
	interface B : A {};
	interface C : B {};
	interface A { void op(); attribute long n; };
	`
	st, msgs := runParser(input)
	assert.Nil(t, msgs)

	inherited := []Ref{st.Lookup("A/op").Ref(), st.Lookup("A/n").Ref()}
	assert.Equal(t, inherited, st.Lookup("B").Iface().Inherited)
	assert.Equal(t, inherited, st.Lookup("C").Iface().Inherited)
}

func TestParser_UndefinedForward(t *testing.T) {
	input := `
	interface A;
	interface B : A {};
	interface Unused;
	`
	_, msgs := runParser(input)

	assert.Equal(t, []string{`2: forward declaration "::A" is never defined`}, msgs)
}

func TestParser_ForwardFlavorMismatch(t *testing.T) {
	input := `
	abstract interface A;
	interface A {};
	`
	_, msgs := runParser(input)

	assert.Equal(t, []string{`3: "A" does not match its forward declaration`}, msgs)
}

func TestParser_Redeclarations(t *testing.T) {
	input := `
	struct Foo { long a; short A; };
	typedef long foo;
	typedef long X;
	typedef short X;
	interface I { void f(in long a, in long A); };
	`
	_, msgs := runParser(input)

	expMsgs := []string{
		`2: "A" differs only in case from "a"`,
		`3: "foo" differs only in case from "Foo"`,
		`5: "X" is already declared`,
		`6: "A" is already declared`,
	}
	assert.Equal(t, expMsgs, msgs)
}

func TestParser_BooleanUnion(t *testing.T) {
	input := `
	union U switch (boolean) {
		case TRUE: long a;
		case FALSE: short b;
		default: char c;
	};
	union V switch (boolean) {
		case TRUE: long a;
		default: short b;
	};
	`
	st, msgs := runParser(input)

	assert.Equal(t, []string{`2: union "U" has more branches than its discriminator has values`}, msgs)

	v := st.Lookup("V").Union()
	assert.Len(t, v.Branches, 2)
	assert.Equal(t, 1, v.Default)
	assert.True(t, v.Branches[0].Labels[0].Lit.Bool)
}

func TestParser_BooleanUnionCaseCount(t *testing.T) {
	input := `
	union U switch (boolean) {
		case TRUE: long a;
		case FALSE: short b;
		case TRUE: char c;
	};
	union V switch (boolean) {
		case TRUE: long a;
		case FALSE: short b;
	};
	`
	st, msgs := runParser(input)

	expMsgs := []string{
		`5: case label TRUE is already used`,
		`2: union "U" has more branches than its discriminator has values`,
	}
	assert.Equal(t, expMsgs, msgs)
	assert.Len(t, st.Lookup("U").Union().Branches[2].Labels, 1)
	assert.Equal(t, -1, st.Lookup("V").Union().Default)
}

func TestParser_InlineSwitchEnum(t *testing.T) {
	input := `
	union U switch (enum Kind { A, B }) {
		case A: long a;
		case B: short b;
	};
	union V switch (enum Kind { A, B }) {
		case A: long a;
	};
	`
	st, msgs := runParser(input)
	assert.Nil(t, msgs)

	for _, name := range []string{"U", "V"} {
		kind := st.Lookup(name + "/Kind")
		assert.NotNil(t, kind, name)
		assert.Equal(t, EnumEntryKind, kind.Kind, name)
		assert.Equal(t, kind.Ref(), st.Lookup(name).Type, name)
		assert.Equal(t, EnumeratorEntryKind, st.Lookup(name+"/A").Kind, name)
		assert.Equal(t, "IDL:"+name+"/Kind:1.0", kind.RepID.String(), name)
	}
	assert.Nil(t, st.Lookup("Kind"))
	assert.Nil(t, st.Lookup("A"))

	label := st.Lookup("V").Union().Branches[0].Labels[0]
	assert.Equal(t, st.Lookup("V/Kind").Ref(), label.Lit.Enum)
}

func TestParser_CaseClashScope(t *testing.T) {
	input := `
	struct Point { long x; long y; };
	struct point { long x; long Y; };
	`
	_, msgs := runParser(input)

	assert.Equal(t, []string{`3: "point" differs only in case from "Point"`}, msgs)
}

func TestParser_UnionLabels(t *testing.T) {
	input := `
	union U switch (long) {
		case 1: case 2: long a;
		case 1: short b;
		default: char c;
		default: char d;
	};
	union W switch (float) {
		case 1: long a;
	};
	`
	_, msgs := runParser(input)

	expMsgs := []string{
		`4: case label 1 is already used`,
		`6: union "U" has more than one default label`,
		`8: "float" cannot be a union discriminator`,
	}
	assert.Equal(t, expMsgs, msgs)
}

func TestParser_EnumUnion(t *testing.T) {
	input := `
	module M { enum Color { red, green }; };
	union V switch (M::Color) {
		case red: long a;
		case M::green: short b;
	};
	`
	st, msgs := runParser(input)
	assert.Nil(t, msgs)

	v := st.Lookup("V")
	assert.Equal(t, st.Lookup("M/Color").Ref(), v.Type)
	labels := v.Union().Branches[1].Labels
	assert.Equal(t, EnumLit, labels[0].Lit.Kind)
	assert.Equal(t, "green", labels[0].Lit.String())
	assert.Equal(t, EnumeratorEntryKind, st.Lookup("M/red").Kind)
}

func TestParser_Oneway(t *testing.T) {
	input := `
	exception E {};
	interface I {
		oneway long f();
		oneway void g() raises (E);
		oneway void h(in long a, out long b);
		oneway void ok(in long a);
	};
	`
	st, msgs := runParser(input)

	expMsgs := []string{
		`4: oneway operation "f" must return void`,
		`5: oneway operation "g" cannot raise exceptions`,
		`6: oneway operation "h" can only have in parameters`,
	}
	assert.Equal(t, expMsgs, msgs)
	assert.True(t, st.Lookup("I/ok").Method().Oneway)
}

func TestParser_Raises(t *testing.T) {
	input := `
	struct S { long a; };
	exception E { string why; };
	interface I {
		void f() raises (S);
		void g() raises (E, E);
		void h() raises (Nope);
		void k(in long a) raises (E) context ("x", "y");
	};
	`
	st, msgs := runParser(input)

	expMsgs := []string{
		`5: "S" is not an exception`,
		`6: "E" is already raised`,
		`7: "Nope" is undeclared`,
	}
	assert.Equal(t, expMsgs, msgs)

	k := st.Lookup("I/k").Method()
	assert.Equal(t, []Ref{st.Lookup("E").Ref()}, k.Raises)
	assert.Equal(t, []string{"x", "y"}, k.Contexts)
}

func TestParser_InterfaceInheritance(t *testing.T) {
	input := `
	struct S {};
	interface I {};
	interface J : I, I {};
	interface K : S {};
	abstract interface AI : I {};
	local interface L {};
	interface N : L {};
	local interface LL : L, I {};
	`
	st, msgs := runParser(input)

	expMsgs := []string{
		`4: "I" is already inherited`,
		`5: "S" is not an interface`,
		`6: abstract "AI" cannot inherit non-abstract "I"`,
		`8: unconstrained "N" cannot inherit local "L"`,
	}
	assert.Equal(t, expMsgs, msgs)
	assert.Equal(t, LocalFlavor, st.Lookup("LL").Iface().Flavor)
}

func TestParser_MethodClash(t *testing.T) {
	input := `
	interface A { void op(); };
	interface B { void op(); };
	interface C : A, B {};
	interface D : A { void OP(); };
	interface E : A {};
	interface F : A, E {};
	`
	st, msgs := runParser(input)

	expMsgs := []string{
		`4: "::A::op" clashes with inherited "::B::op"`,
		`5: "::D::OP" clashes with inherited "::A::op"`,
	}
	assert.Equal(t, expMsgs, msgs)
	assert.Equal(t, []Ref{st.Lookup("A/op").Ref()}, st.Lookup("F").Iface().Inherited)
}

func TestParser_ScopedNames(t *testing.T) {
	input := `
	module Outer {
		typedef long T;
		module Inner {
			struct S { T a; ::Outer::T b; Outer::T c; };
		};
	};
	interface Base { typedef short Num; };
	interface Derived : Base {
		attribute Num n;
		struct P { Num x; };
	};
	typedef Outer::Inner::S Alias;
	typedef Derived::Num Inherited;
	typedef Outer Bad;
	typedef Missing::X Bad2;
	const long C = 1;
	typedef C Bad3;
	`
	st, msgs := runParser(input)

	expMsgs := []string{
		`15: module "Outer" is not a type`,
		`16: "Missing::X" is undeclared`,
		`18: "C" is not a type`,
	}
	assert.Equal(t, expMsgs, msgs)

	outerT := st.Lookup("Outer/T").Ref()
	for _, member := range []string{"a", "b", "c"} {
		assert.Equal(t, outerT, st.Lookup("Outer/Inner/S/"+member).Type, member)
	}
	num := st.Lookup("Base/Num").Ref()
	assert.Equal(t, num, st.Lookup("Derived/n").Type)
	assert.Equal(t, num, st.Lookup("Derived/P/x").Type)
	assert.Equal(t, num, st.Lookup("Inherited").Type)
	assert.Equal(t, st.Lookup("Outer/Inner/S").Ref(), st.Lookup("Alias").Type)
}

func TestParser_Overrides(t *testing.T) {
	opts := DefaultOptions()
	opts.Overrides = map[string]string{"Int32": "long", "Point": "::Geo::Point"}
	input := `
	module Geo { struct Point { double x; double y; }; };
	typedef Int32 Count;
	typedef Point Where;
	`
	c, msgs := runCompilerWith(opts, input)
	assert.Nil(t, msgs)

	st := c.Symtab()
	assert.Equal(t, st.Builtin("long").Ref(), st.Lookup("Count").Type)
	assert.Equal(t, st.Lookup("Geo/Point").Ref(), st.Lookup("Where").Type)
}

func TestParser_IncompleteStruct(t *testing.T) {
	input := `
	struct Node;
	typedef sequence<Node> Nodes;
	struct Node { long v; Nodes next; };
	`
	st, msgs := runParser(input)
	assert.Nil(t, msgs)

	node := st.Lookup("Node")
	assert.True(t, node.Referencable)
	seq := st.Get(st.Lookup("Nodes").Type)
	assert.Equal(t, node.Ref(), seq.Type)
}

func TestParser_IncompleteMisuse(t *testing.T) {
	input := `
	struct Q;
	typedef Q QQ;
	struct R { R r; };
	`
	_, msgs := runParser(input)

	expMsgs := []string{
		`3: "Q" is incomplete and can only be used as a sequence element`,
		`4: "R" cannot contain a member of its own type`,
		`2: forward declaration "::Q" is never defined`,
	}
	assert.Equal(t, expMsgs, msgs)
}

func TestParser_Constants(t *testing.T) {
	input := `
	const unsigned short A = 65535;
	const unsigned short B = 65536;
	const unsigned short C2 = -1;
	const long D = A + 1;
	const double E = 2;
	const string<3> S = "abcd";
	const boolean F = 1;
	const char G = 'x';
	enum Color { red, green };
	const Color H = green;
	const any Z = 1;
	typedef long Arr[0];
	const long K = Color;
	`
	st, msgs := runParser(input)

	expMsgs := []string{
		`3: 65536 is out of range for unsigned short`,
		`4: -1 is out of range for unsigned short`,
		`7: "abcd" is out of range for string<3>`,
		`8: integer value 1 cannot be assigned to boolean`,
		`12: "any" cannot be the type of a constant`,
		`13: 0 must be a positive integer`,
		`14: "Color" is not a constant`,
	}
	assert.Equal(t, expMsgs, msgs)

	constValue := func(name string) Literal {
		return st.Lookup(name).Data.(*ConstData).Value.Lit
	}
	assert.Equal(t, "65536", constValue("D").String())
	assert.Equal(t, Literal{Kind: FloatLit, Float: 2}, constValue("E"))
	assert.Equal(t, EnumLit, constValue("H").Kind)
	assert.Equal(t, int64(1), constValue("H").Int.Int64())
	assert.Equal(t, "'x'", constValue("G").String())
}

func TestParser_Values(t *testing.T) {
	input := `
	valuetype V1 { public long a; private short b; factory make(in long a); };
	abstract valuetype AV { void op(); };
	valuetype V2 : V1, AV {};
	valuetype V3 : AV, V1 {};
	abstract valuetype AV2 { public long x; };
	valuetype Box long;
	valuetype Box2 Box;
	custom valuetype CB long;
	valuetype V4 { factory bad(out long a); };
	valuetype V5 : truncatable V1 supports I {};
	interface I { void ping(); };
	`
	st, msgs := runParser(input)

	expMsgs := []string{
		`5: "V3" can only inherit a concrete value first, found "V1"`,
		`6: abstract value "AV2" cannot declare state members`,
		`8: value box "Box2" cannot box another value box`,
		`9: value box "CB" cannot be custom`,
		`10: initializer parameter "a" must be in`,
		`11: "I" is undeclared`,
	}
	assert.Equal(t, expMsgs, msgs)

	v1 := st.Lookup("V1").Iface()
	assert.Len(t, v1.State, 2)
	assert.Len(t, v1.Initializers, 1)
	assert.Equal(t, []Ref{st.Builtin("ValueBase").Ref()}, v1.DerivedFrom)
	assert.Nil(t, v1.DerivedNames)

	v2 := st.Lookup("V2").Iface()
	assert.Equal(t, []Ref{st.Lookup("AV/op").Ref()}, v2.Inherited)
	assert.Equal(t, []string{"V1", "AV"}, v2.DerivedNames)

	assert.True(t, st.Lookup("V5").Iface().Truncatable)
	assert.Equal(t, st.Builtin("long").Ref(), st.Lookup("Box").Type)
}

func TestParser_ValueSupports(t *testing.T) {
	input := `
	interface I { void ping(); };
	valuetype V supports I { public long a; };
	valuetype W : V {};
	valuetype X supports V {};
	`
	st, msgs := runParser(input)

	assert.Equal(t, []string{`5: "V" is not an interface`}, msgs)
	v := st.Lookup("V").Iface()
	assert.Equal(t, []Ref{st.Lookup("I").Ref()}, v.Supports)
	assert.Equal(t, []Ref{st.Lookup("I/ping").Ref()}, v.Inherited)
	assert.Equal(t, []Ref{st.Lookup("I/ping").Ref()}, st.Lookup("W").Iface().Inherited)
}

func TestParser_ValueBoxForward(t *testing.T) {
	input := `
	valuetype V;
	valuetype V long;
	`
	_, msgs := runParser(input)

	assert.Equal(t, []string{`3: value box "V" cannot define a forward declared value`}, msgs)
}

func TestParser_Recovery(t *testing.T) {
	input := `
	struct S { long a };
	typedef long T;
	interface I { void f(; long g(); };
	`
	st, msgs := runParser(input)

	expMsgs := []string{
		`2: expected ';', found '}'`,
		`4: expected 'in', 'out' or 'inout', found ';' while parsing parameter`,
	}
	assert.Equal(t, expMsgs, msgs)
	assert.NotNil(t, st.Lookup("T"))
	assert.NotNil(t, st.Lookup("I/g"))
	assert.Nil(t, st.Lookup("I/f"))
}

func TestParser_EofInScope(t *testing.T) {
	input := `
	module M { struct S { long a; };
	`
	_, msgs := runParser(input)

	assert.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "expected '}', found <eof> while parsing module")
}

func TestParser_TemplateTypes(t *testing.T) {
	input := `
	typedef sequence<sequence<long>> SS;
	typedef wstring<8> W;
	interface I {
		readonly attribute string<4> name, alias;
		Object self();
	};
	`
	st, msgs := runParser(input)
	assert.Nil(t, msgs)

	assert.Equal(t, "sequence<sequence<long>>", TypeName(st, st.Lookup("SS").Type))
	assert.Equal(t, "wstring<8>", TypeName(st, st.Lookup("W").Type))
	assert.True(t, st.Lookup("I/alias").Data.(*AttributeData).ReadOnly)
	assert.Equal(t, st.Builtin("Object").Ref(), st.Lookup("I/self").Type)
	assert.Len(t, st.Lookup("I").Iface().Methods, 3)
}

func TestParser_KeywordWarnings(t *testing.T) {
	input := `
	typedef long component;
	typedef long _interface;
	`
	st, msgs := runParser(input)

	assert.Equal(t, []string{`2: warning: "component" collides with a keyword`}, msgs)
	assert.NotNil(t, st.Lookup("component"))
	assert.NotNil(t, st.Lookup("interface"))
}

func TestParser_Comments(t *testing.T) {
	input := `
	// A point.
	struct P {
		// Horizontal.
		long x;
	};
	`
	st, msgs := runParser(input)
	assert.Nil(t, msgs)

	assert.Equal(t, "// A point.", st.Lookup("P").Comment)
	assert.Equal(t, "// Horizontal.", st.Lookup("P/x").Comment)
}

func TestParseErr_Message(t *testing.T) {
	tok := Token{TokVal: TokVal{Kind: TokIden, Value: "x"}, Pos: Position{File: "a.idl", Line: 2}}
	err := makeExpectErr(tok, TokSemicolon, TokComma, TokRBrace).withContext("member")

	assert.Equal(t, "a.idl:2: expected ';', ',' or '}', found 'x' while parsing member", err.Error())
	assert.Equal(t, "member", err.withContext("outer").context)
}
