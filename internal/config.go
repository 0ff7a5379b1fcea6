package internal

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Options configure a compile. They are usually loaded from a YAML file and
// then overridden by command line flags.
type Options struct {
	IncludePaths []string          `yaml:"include"`
	Defines      []string          `yaml:"define"`
	EmitAll      bool              `yaml:"emitAll"`
	Level        string            `yaml:"level"`
	NoWarn       bool              `yaml:"noWarn"`
	Verbose      bool              `yaml:"verbose"`
	Overrides    map[string]string `yaml:"overrides"`
	Generator    string            `yaml:"generator"`
	Package      string            `yaml:"package"`
}

func DefaultOptions() Options {
	return Options{Level: DefaultLevel.String(), Generator: "none", Package: "idl"}
}

func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, err
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("%s: %w", path, err)
	}
	if _, err := ParseLevel(opts.Level); err != nil {
		return opts, fmt.Errorf("%s: %w", path, err)
	}
	return opts, nil
}

// symbols splits the predefined symbols into names and replacement text.
func (o Options) symbols() map[string]string {
	m := make(map[string]string, len(o.Defines))
	for _, def := range o.Defines {
		name, value, _ := strings.Cut(def, "=")
		m[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return m
}

// ParseOverride parses a NAME=ALIAS pair given on the command line.
func ParseOverride(s string) (string, string, error) {
	name, alias, ok := strings.Cut(s, "=")
	name, alias = strings.TrimSpace(name), strings.TrimSpace(alias)
	if !ok || name == "" || alias == "" {
		return "", "", fmt.Errorf("override %q must have the form NAME=ALIAS", s)
	}
	return name, alias, nil
}
