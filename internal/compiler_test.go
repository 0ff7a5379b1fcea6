package internal

import (
	"bytes"
	"errors"
	"github.com/stretchr/testify/assert"
	"os"
	"path/filepath"
	"testing"
)

type failingGenerator struct {
	seen []string
}

func (g *failingGenerator) Generate(_ *Symtab, e *Entry) error {
	g.seen = append(g.seen, e.ScopedName())
	if e.Name == "Bad" {
		return errors.New("boom")
	}
	return nil
}

func writeProject(t *testing.T) (string, string) {
	dir, shared := t.TempDir(), t.TempDir()
	files := map[string]string{
		filepath.Join(dir, "base.idl"):      "struct Base { long a; };\n",
		filepath.Join(shared, "shared.idl"): "typedef long Shared;\n",
		filepath.Join(dir, "main.idl"):      "#include \"base.idl\"\n#include <shared.idl>\nstruct Main { Base b; Shared s; };\n",
	}
	for path, text := range files {
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir, shared
}

func emittedKinds(c *Compiler) []EntryKind {
	var kinds []EntryKind
	for _, e := range c.EmitList() {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func TestCompiler_Compile(t *testing.T) {
	dir, shared := writeProject(t)
	opts := DefaultOptions()
	opts.IncludePaths = []string{shared}

	c, err := NewCompiler(opts, NewReporter(nil, false, false), nil)
	assert.Nil(t, err)
	assert.Nil(t, c.Compile(filepath.Join(dir, "main.idl")))

	st := c.Symtab()
	assert.Equal(t, filepath.Join(dir, "base.idl"), st.Lookup("Base").File)
	assert.Equal(t, filepath.Join(shared, "shared.idl"), st.Lookup("Shared").File)
	assert.False(t, st.Lookup("Base").Emit)
	assert.True(t, st.Lookup("Main").Emit)
	assert.Equal(t, []EntryKind{IncludeEntryKind, IncludeEntryKind, StructEntryKind}, emittedKinds(c))
}

func TestCompiler_EmitAll(t *testing.T) {
	dir, shared := writeProject(t)
	opts := DefaultOptions()
	opts.IncludePaths = []string{shared}
	opts.EmitAll = true

	c, err := NewCompiler(opts, NewReporter(nil, false, false), nil)
	assert.Nil(t, err)
	assert.Nil(t, c.Compile(filepath.Join(dir, "main.idl")))

	expected := []EntryKind{IncludeEntryKind, StructEntryKind, IncludeEntryKind, TypedefEntryKind, StructEntryKind}
	assert.Equal(t, expected, emittedKinds(c))
	assert.True(t, c.Symtab().Lookup("Base").Emit)
}

func TestCompiler_MissingFile(t *testing.T) {
	c, err := NewCompiler(DefaultOptions(), NewReporter(nil, false, false), nil)
	assert.Nil(t, err)

	err = c.Compile(filepath.Join(t.TempDir(), "nope.idl"))
	assert.True(t, os.IsNotExist(err))
}

func TestCompiler_BadLevel(t *testing.T) {
	opts := DefaultOptions()
	opts.Level = "1.0"
	_, err := NewCompiler(opts, NewReporter(nil, false, false), nil)
	assert.NotNil(t, err)
}

func TestCompiler_ErrorsSkipGeneration(t *testing.T) {
	gen := &failingGenerator{}
	c, err := NewCompiler(DefaultOptions(), NewReporter(nil, false, false), gen)
	assert.Nil(t, err)

	err = c.CompileSource("test.idl", "struct S { Missing m; };\n")
	assert.True(t, errors.Is(err, ErrCompileFailed))
	assert.Nil(t, gen.seen)
}

func TestCompiler_GeneratorError(t *testing.T) {
	gen := &failingGenerator{}
	c, err := NewCompiler(DefaultOptions(), NewReporter(nil, false, false), gen)
	assert.Nil(t, err)

	err = c.CompileSource("test.idl", "struct Bad {};\nstruct Good {};\n")
	assert.True(t, errors.Is(err, ErrCompileFailed))
	assert.Equal(t, []string{"::Bad", "::Good"}, gen.seen)
	assert.Equal(t, []string{"0: generating ::Bad: boom"}, c.Reporter().Messages())
}

func TestCompiler_Verbose(t *testing.T) {
	var out bytes.Buffer
	c, err := NewCompiler(DefaultOptions(), NewReporter(&out, false, true), nil)
	assert.Nil(t, err)
	assert.Nil(t, c.CompileSource("test.idl", "module M { struct S {}; };\n"))

	assert.Equal(t, "parsing test.idl\ngenerating ::M\n", out.String())
}

func TestCompiler_NoWarn(t *testing.T) {
	opts := DefaultOptions()
	opts.NoWarn = true
	c, err := NewCompiler(opts, NewReporter(nil, true, false), nil)
	assert.Nil(t, err)

	assert.Nil(t, c.CompileSource("test.idl", "#warning careful\ntypedef long T;\n"))
	assert.Nil(t, c.Reporter().Messages())
}

func TestReporter_Output(t *testing.T) {
	var out bytes.Buffer
	rep := NewReporter(&out, false, false)
	rep.addSource("a.idl", "line one\n\tbad x")

	rep.Error(makeSemErr(Position{File: "a.idl", Line: 2, Col: 6}, UndeclaredErrKind, "x", ""))
	rep.Warn(Position{File: "a.idl", Line: 1, Col: 1}, "odd %s", "line")
	rep.Error(errors.New("boom"))

	expected := "a.idl:2: \"x\" is undeclared\n\tbad x\n\t    ^\n" +
		"a.idl:1: warning: odd line\nline one\n^\n" +
		"idlc: boom\n"
	assert.Equal(t, expected, out.String())
	assert.Equal(t, 2, rep.ErrorCount())
	assert.Len(t, rep.Reports(), 3)
	assert.Equal(t, SevWarning, rep.Reports()[1].Severity)
}
