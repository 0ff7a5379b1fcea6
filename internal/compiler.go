package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrCompileFailed = errors.New("compilation failed")

type repScope struct {
	prefix string
	name   string
}

// Compiler is the state of one compile: options, symbol table, diagnostics
// and the repository ID scopes. A new Compiler is made for every compile.
type Compiler struct {
	opts     Options
	level    Level
	st       *Symtab
	rep      *Reporter
	gen      Generator
	handlers []PragmaHandler
	repIDs   []repScope
	mainFile string
	emitList []Ref
	readFile func(path string) ([]byte, error)
}

func NewCompiler(opts Options, rep *Reporter, gen Generator) (*Compiler, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if gen == nil {
		gen = NoopGenerator{}
	}
	return &Compiler{
		opts:     opts,
		level:    level,
		st:       NewSymtab(),
		rep:      rep,
		gen:      gen,
		repIDs:   []repScope{{}},
		readFile: os.ReadFile,
	}, nil
}

// RegisterPragma adds a handler consulted, in registration order, for pragmas the compiler does not know.
func (c *Compiler) RegisterPragma(h PragmaHandler) {
	c.handlers = append(c.handlers, h)
}

func (c *Compiler) Symtab() *Symtab {
	return c.st
}

func (c *Compiler) Reporter() *Reporter {
	return c.rep
}

func (c *Compiler) Compile(path string) error {
	data, err := c.readFile(path)
	if err != nil {
		return err
	}
	return c.CompileSource(path, string(data))
}

func (c *Compiler) CompileSource(path string, src string) error {
	c.mainFile = path
	c.rep.addSource(path, src)
	c.rep.Infof("parsing %s", path)

	sc := newScanner(c.level)
	if err := sc.pushFile(path, src, nil); err != nil {
		return err
	}
	p := newParser(c, sc)
	p.parse()

	c.checkForwards()
	c.buildEmitList()

	if c.rep.HasErrors() {
		return ErrCompileFailed
	}
	for _, r := range c.emitList {
		e := c.st.Get(r)
		c.rep.Infof("generating %s", e.ScopedName())
		if err := c.gen.Generate(c.st, e); err != nil {
			c.rep.Error(fmt.Errorf("generating %s: %w", e.ScopedName(), err))
		}
	}
	if c.rep.HasErrors() {
		return ErrCompileFailed
	}
	return nil
}

// EmitList is the ordered list of top level entries handed to the generator.
func (c *Compiler) EmitList() []*Entry {
	var entries []*Entry
	for _, r := range c.emitList {
		entries = append(entries, c.st.Get(r))
	}
	return entries
}

func (c *Compiler) emitting(file string) bool {
	return c.opts.EmitAll || file == c.mainFile
}

func (c *Compiler) buildEmitList() {
	c.emitList = nil
	for _, r := range c.st.Roots() {
		e := c.st.Get(r)
		if e.SupersededBy != NoRef {
			continue
		}
		if e.Emit || (e.Kind == ModuleEntryKind && c.containsEmitted(e)) {
			c.emitList = append(c.emitList, r)
		}
	}
}

func (c *Compiler) containsEmitted(m *Entry) bool {
	for _, r := range m.Contained {
		e := c.st.Get(r)
		if e.Emit {
			return true
		}
		if e.Kind == ModuleEntryKind && c.containsEmitted(e) {
			return true
		}
	}
	return false
}

// checkForwards reports forward declarations that were inherited from, or
// used as incomplete struct and union types, but never defined.
func (c *Compiler) checkForwards() {
	for _, e := range c.st.Entries() {
		if e.SupersededBy != NoRef || e.Builtin {
			continue
		}
		var pending bool
		switch {
		case e.isForward():
			pending = len(e.Forward().Derivers) > 0
		case e.Kind == StructEntryKind || e.Kind == UnionEntryKind:
			pending = !e.Referencable && len(e.Referrers) > 0
		}
		if pending {
			c.rep.Error(makeSemErr(e.Pos, UndefinedForwardErrKind, e.ScopedName(), ""))
		}
	}
}

func (c *Compiler) repTop() *repScope {
	return &c.repIDs[len(c.repIDs)-1]
}

func joinRepName(scope string, name string) string {
	if scope == "" {
		return name
	}
	return scope + "/" + name
}

// pushRepScope opens the repository ID scope of a module, interface, value, struct, union or exception.
func (c *Compiler) pushRepScope(name string) {
	top := c.repTop()
	c.repIDs = append(c.repIDs, repScope{prefix: top.prefix, name: joinRepName(top.name, name)})
}

// pushFileRepScope opens the scope of an included file, which starts without a prefix.
func (c *Compiler) pushFileRepScope() {
	top := c.repTop()
	c.repIDs = append(c.repIDs, repScope{name: top.name})
}

func (c *Compiler) popRepScope() {
	if len(c.repIDs) > 1 {
		c.repIDs = c.repIDs[:len(c.repIDs)-1]
	}
}

// setPrefix applies a #pragma prefix to the declarations that follow in the current scope.
func (c *Compiler) setPrefix(prefix string) {
	top := c.repTop()
	top.prefix = prefix
	top.name = ""
}

func (c *Compiler) repIDFor(name string) RepID {
	top := c.repTop()
	return RepID{Prefix: top.prefix, Name: joinRepName(top.name, name), Version: "1.0"}
}

// findInclude searches for an included file. Quoted names are first looked
// up next to the including file.
func (c *Compiler) findInclude(name string, angled bool, from string) (string, []byte, error) {
	var candidates []string
	if !angled && from != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(from), name))
	}
	candidates = append(candidates, name)
	for _, dir := range c.opts.IncludePaths {
		candidates = append(candidates, filepath.Join(dir, name))
	}
	for _, path := range candidates {
		data, err := c.readFile(path)
		if err == nil {
			return filepath.Clean(path), data, nil
		}
	}
	return "", nil, os.ErrNotExist
}
