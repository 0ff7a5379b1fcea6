package internal

import (
	"github.com/stretchr/testify/assert"
	"os"
	"testing"
)

func runWithFiles(opts Options, files map[string]string, input string, handlers ...PragmaHandler) (*Compiler, []string) {
	c, err := NewCompiler(opts, NewReporter(nil, false, false), nil)
	if err != nil {
		panic(err)
	}
	c.readFile = func(path string) ([]byte, error) {
		if src, ok := files[path]; ok {
			return []byte(src), nil
		}
		return nil, os.ErrNotExist
	}
	for _, h := range handlers {
		c.RegisterPragma(h)
	}
	_ = c.CompileSource("main.idl", input)
	return c, c.Reporter().Messages()
}

func TestPreprocessor_Macros(t *testing.T) {
	input := `
#define ADD(a, b) a + b
#define TWO 2
#define CAT(a, b) a ## b
#define T T
#define F(a) a
const long Z = ADD(TWO, 3);
typedef long CAT(Foo, Bar);
typedef long T;
typedef long F;
`
	st, msgs := runParser(input)
	assert.Nil(t, msgs)

	z := st.Lookup("Z").Data.(*ConstData).Value
	assert.Equal(t, "5", z.Lit.String())
	assert.NotNil(t, st.Lookup("FooBar"))
	assert.NotNil(t, st.Lookup("T"))
	assert.NotNil(t, st.Lookup("F"))
}

func TestPreprocessor_MacroArity(t *testing.T) {
	input := `
#define F(a) a
const long X = F(1, 2);
`
	_, msgs := runParser(input)

	assert.NotEmpty(t, msgs)
	assert.Equal(t, `3: macro "F" expects 1 argument`, msgs[0])
}

func TestPreprocessor_Conditionals(t *testing.T) {
	input := `
#define FEATURE
#define VALUE 3
#if 1
typedef long A1;
#else
typedef long A2;
#endif
#if 0
typedef long B1;
#elif defined(FEATURE) && VALUE > 2
typedef long B2;
#else
typedef long B3;
#endif
#if 0
#if 1
typedef long C1;
#endif
typedef long C2;
#endif
#ifndef FEATURE
typedef long D1;
#endif
#undef FEATURE
#ifdef FEATURE
typedef long E1;
#endif
#if UNKNOWN
typedef long F1;
#endif
`
	st, msgs := runParser(input)
	assert.Nil(t, msgs)

	for _, name := range []string{"A1", "B2"} {
		assert.NotNil(t, st.Lookup(name), name)
	}
	for _, name := range []string{"A2", "B1", "B3", "C1", "C2", "D1", "E1", "F1"} {
		assert.Nil(t, st.Lookup(name), name)
	}
}

func TestPreprocessor_IfElseDefinesOneBranch(t *testing.T) {
	st, msgs := runParser("#if 0\nconst long W = 1;\n#else\nconst long W = 2;\n#endif\n")
	assert.Nil(t, msgs)
	assert.Equal(t, "2", st.Lookup("W").Data.(*ConstData).Value.Lit.String())

	st, msgs = runParser("#if 1\nconst long W = 1;\n#else\nconst long W = 2;\n#endif\n")
	assert.Nil(t, msgs)
	assert.Equal(t, "1", st.Lookup("W").Data.(*ConstData).Value.Lit.String())
}

func TestPreprocessor_DirectiveErrors(t *testing.T) {
	input := `
#endif
#if
#endif
#foo
#error stop here
#warning careful
#line 40
#if 1
typedef long T;
`
	st, msgs := runParser(input)

	expMsgs := []string{
		`2: #endif without #if`,
		`3: missing expression in directive #if`,
		`5: unknown directive #foo`,
		`6: #error stop here`,
		`7: warning: #warning careful`,
		`9: unterminated #if`,
	}
	assert.Equal(t, expMsgs, msgs)
	assert.NotNil(t, st.Lookup("T"))
}

func TestPreprocessor_PredefinedSymbols(t *testing.T) {
	opts := DefaultOptions()
	opts.Defines = []string{"SIZE=4", "FLAG"}
	input := `
typedef long Arr[SIZE];
#ifdef FLAG
typedef long F;
#endif
`
	c, msgs := runCompilerWith(opts, input)
	assert.Nil(t, msgs)

	st := c.Symtab()
	assert.Equal(t, "4", st.Lookup("Arr").Dims()[0].Lit.String())
	assert.NotNil(t, st.Lookup("F"))
}

func TestPreprocessor_MissingInclude(t *testing.T) {
	input := `
#include "missing.idl"
typedef long T;
`
	c, msgs := runWithFiles(DefaultOptions(), nil, input)

	assert.Equal(t, []string{`2: cannot find include file "missing.idl"`}, msgs)
	assert.NotNil(t, c.Symtab().Lookup("T"))
}

func TestPreprocessor_Include(t *testing.T) {
	files := map[string]string{
		"inc.idl": "struct Inc { long a; };\n#pragma prefix \"inner\"\nstruct Inner2 {};\n",
	}
	input := `
#pragma prefix "outer"
#include "inc.idl"
struct Main { Inc i; };
`
	c, msgs := runWithFiles(DefaultOptions(), files, input)
	assert.Nil(t, msgs)

	st := c.Symtab()
	inc := st.Lookup("Inc")
	assert.Equal(t, "inc.idl", inc.File)
	assert.False(t, inc.Emit)
	assert.Equal(t, "IDL:Inc:1.0", inc.RepID.String())
	assert.Equal(t, "IDL:inner/Inner2:1.0", st.Lookup("Inner2").RepID.String())
	assert.Equal(t, "IDL:outer/Main:1.0", st.Lookup("Main").RepID.String())

	var emitted []EntryKind
	for _, e := range c.EmitList() {
		emitted = append(emitted, e.Kind)
	}
	assert.Equal(t, []EntryKind{IncludeEntryKind, StructEntryKind}, emitted)
	assert.Equal(t, "inc.idl", c.EmitList()[0].Name)
}

func TestPreprocessor_IncludeSearchPath(t *testing.T) {
	opts := DefaultOptions()
	opts.IncludePaths = []string{"idl"}
	files := map[string]string{"idl/base.idl": "typedef long Base;\n"}

	c, msgs := runWithFiles(opts, files, "#include <base.idl>\ntypedef Base Derived;\n")
	assert.Nil(t, msgs)
	assert.Equal(t, "idl/base.idl", c.Symtab().Lookup("Base").File)
}

func TestPreprocessor_RecursiveInclude(t *testing.T) {
	files := map[string]string{"a.idl": "#include \"a.idl\"\ntypedef long A;\n"}

	c, msgs := runWithFiles(DefaultOptions(), files, "#include \"a.idl\"\n")
	assert.Equal(t, []string{`1: "a.idl" includes itself`}, msgs)
	assert.NotNil(t, c.Symtab().Lookup("A"))

	self := map[string]string{"main.idl": "#include \"main.idl\"\n"}
	_, msgs = runWithFiles(DefaultOptions(), self, "#include \"main.idl\"\n")
	assert.Equal(t, []string{`1: "main.idl" includes itself`}, msgs)
}

func TestPreprocessor_UnterminatedInInclude(t *testing.T) {
	files := map[string]string{"a.idl": "#ifdef X\ntypedef long A;\n"}

	_, msgs := runWithFiles(DefaultOptions(), files, "#include \"a.idl\"\ntypedef long B;\n")
	assert.Equal(t, []string{`1: unterminated #ifdef`}, msgs)
}

func TestPreprocessor_Pragmas(t *testing.T) {
	input := `
module M {
	interface I {};
	#pragma ID I "IDL:custom/I:2.0"
	struct S {};
	#pragma version S 3.4
};
#pragma ID M::Nope "IDL:x:1.0"
#pragma version M::S bad
#pragma ID M::I "IDL:other:1.0"
#pragma something else here
`
	st, msgs := runParser(input)

	expMsgs := []string{
		`8: "M::Nope" is undeclared`,
		`9: malformed #pragma version: expected <major>.<minor>`,
		`10: malformed #pragma ID: ::M::I already has repository ID "IDL:custom/I:2.0"`,
	}
	assert.Equal(t, expMsgs, msgs)
	assert.Equal(t, "IDL:custom/I:2.0", st.Lookup("M/I").RepID.String())
	assert.Equal(t, "IDL:M/S:3.4", st.Lookup("M/S").RepID.String())

	roots := st.Roots()
	pragma := st.Get(roots[len(roots)-1])
	assert.Equal(t, PragmaEntryKind, pragma.Kind)
	assert.Equal(t, "something", pragma.Name)
	assert.Equal(t, "else here", pragma.Data.(*PragmaData).Text)
}

func TestPreprocessor_PrefixScopes(t *testing.T) {
	input := `
#pragma prefix "acme.com"
module M {
	#pragma prefix "inner.org"
	struct A {};
};
struct B {};
`
	st, msgs := runParser(input)
	assert.Nil(t, msgs)

	assert.Equal(t, "IDL:acme.com/M:1.0", st.Lookup("M").RepID.String())
	assert.Equal(t, "IDL:inner.org/A:1.0", st.Lookup("M/A").RepID.String())
	assert.Equal(t, "IDL:acme.com/B:1.0", st.Lookup("B").RepID.String())
}

type recordingHandler struct {
	pragmas []string
	opened  []string
	closed  []string
}

func (h *recordingHandler) Pragma(name string, text string, pos Position) bool {
	if name != "mine" {
		return false
	}
	h.pragmas = append(h.pragmas, text)
	return true
}

func (h *recordingHandler) OpenScope(e *Entry) {
	h.opened = append(h.opened, e.Name)
}

func (h *recordingHandler) CloseScope(e *Entry) {
	h.closed = append(h.closed, e.Name)
}

func TestPreprocessor_PragmaHandler(t *testing.T) {
	h := &recordingHandler{}
	input := `
#pragma mine one two
module M { struct S { long a; }; };
#pragma other
`
	c, msgs := runWithFiles(DefaultOptions(), nil, input, h)
	assert.Nil(t, msgs)

	assert.Equal(t, []string{"one two"}, h.pragmas)
	assert.Equal(t, []string{"M", "S"}, h.opened)
	assert.Equal(t, []string{"S", "M"}, h.closed)

	var pragmas []string
	for _, e := range c.Symtab().Entries() {
		if e.Kind == PragmaEntryKind {
			pragmas = append(pragmas, e.Name)
		}
	}
	assert.Equal(t, []string{"other"}, pragmas)
}
