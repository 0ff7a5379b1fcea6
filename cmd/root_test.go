package cmd

import (
	"bytes"
	"errors"
	"github.com/stretchr/testify/assert"
	"idlc/internal"
	"os"
	"path/filepath"
	"testing"
)

func runRoot(args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func writeIdl(t *testing.T, text string) string {
	path := filepath.Join(t.TempDir(), "test.idl")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDumpCmd(t *testing.T) {
	path := writeIdl(t, "module M { struct S { long a; }; };\n")

	out, _, err := runRoot("dump", path)
	assert.Nil(t, err)
	assert.Equal(t, "module M {\n\tstruct S {\n\t\tlong a;\n\t};\n};\n", out)
}

func TestCheckCmd(t *testing.T) {
	good := writeIdl(t, "typedef long T;\n")
	bad := writeIdl(t, "typedef Missing T;\n")

	_, errOut, err := runRoot("check", good, bad)
	assert.True(t, errors.Is(err, internal.ErrCompileFailed))
	assert.Contains(t, errOut, `"Missing" is undeclared`)
}

func TestGenCmd(t *testing.T) {
	path := writeIdl(t, "struct Point { double x; };\n")
	target := filepath.Join(t.TempDir(), "point.go")

	_, _, err := runRoot("gen", "--package", "geo", "-o", target, path)
	assert.Nil(t, err)

	data, err := os.ReadFile(target)
	assert.Nil(t, err)
	assert.Contains(t, string(data), "package geo\n")
	assert.Contains(t, string(data), "type Point struct {\n\tX float64\n}\n")
}

func TestLoadOptions_Overrides(t *testing.T) {
	overrides = []string{"Int32=long"}
	defer func() { overrides = nil }()

	result, err := loadOptions(rootCmd)
	assert.Nil(t, err)
	assert.Equal(t, map[string]string{"Int32": "long"}, result.Overrides)

	overrides = []string{"broken"}
	_, err = loadOptions(rootCmd)
	assert.NotNil(t, err)
}
