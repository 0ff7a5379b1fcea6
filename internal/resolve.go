package internal

import (
	"strings"
)

type scopedName struct {
	global bool
	parts  []string
	pos    Position
}

func (sn scopedName) String() string {
	s := strings.Join(sn.parts, "::")
	if sn.global {
		return "::" + s
	}
	return s
}

// parseScopedName reads a name of the form ::a::b, a::b or a.
func parseScopedName(src tokenSource) (scopedName, error) {
	tok := src.peek()
	sn := scopedName{pos: tok.Pos}
	if tok.Kind == TokScope {
		sn.global = true
		src.eat()
		tok = src.peek()
	}
	for {
		switch {
		case tok.Kind == TokIden:
		case (tok.Kind == TokObject || tok.Kind == TokValueBase) && len(sn.parts) == 0:
		default:
			return sn, makeExpectErr(tok, TokIden).withContext("scoped name")
		}
		sn.parts = append(sn.parts, tok.Value)
		src.eat()
		if src.peek().Kind != TokScope {
			return sn, nil
		}
		src.eat()
		tok = src.peek()
	}
}

func (p *Parser) containerOf(e *Entry) *Entry {
	if e == nil {
		return nil
	}
	return p.st.Get(e.Container)
}

// memberOf finds name declared directly in scope, or at file scope when scope is nil.
func (p *Parser) memberOf(scope *Entry, name string) *Entry {
	if scope == nil {
		return p.st.Lookup(name)
	}
	return p.st.Lookup(scope.FullName() + "/" + name)
}

// inherited searches the inheritance graph of scope for name, nearest ancestors first.
func (p *Parser) inherited(scope *Entry, name string, seen map[Ref]bool) *Entry {
	d := scope.Iface()
	if d == nil {
		return nil
	}
	for _, refs := range [][]Ref{d.DerivedFrom, d.Supports} {
		for _, r := range refs {
			parent := p.st.Resolve(r)
			if parent == nil || seen[parent.self] {
				continue
			}
			seen[parent.self] = true
			if e := p.memberOf(parent, name); e != nil {
				return e
			}
			if e := p.inherited(parent, name, seen); e != nil {
				return e
			}
		}
	}
	return nil
}

// overridden resolves name through the configured name overrides.
func (p *Parser) overridden(name string) *Entry {
	alias, ok := p.c.opts.Overrides[name]
	if !ok {
		return nil
	}
	if e := p.st.Builtin(alias); e != nil {
		return e
	}
	path := strings.ReplaceAll(strings.TrimPrefix(alias, "::"), "::", "/")
	return p.st.Lookup(path)
}

// unqualified resolves the first segment of a scoped name: the current scope,
// its inheritance scope, the name overrides, the enclosing scopes outwards,
// and finally the inheritance scope of the nearest enclosing interface.
func (p *Parser) unqualified(name string) *Entry {
	cur := p.st.Get(p.current)
	if e := p.memberOf(cur, name); e != nil {
		return e
	}
	if cur != nil {
		if e := p.inherited(cur, name, make(map[Ref]bool)); e != nil {
			return e
		}
	}
	if e := p.overridden(name); e != nil {
		return e
	}
	if cur != nil {
		for s := p.containerOf(cur); ; s = p.containerOf(s) {
			if e := p.memberOf(s, name); e != nil {
				return e
			}
			if s == nil {
				break
			}
		}
	}
	for s := p.containerOf(cur); s != nil; s = p.containerOf(s) {
		if s.Iface() != nil {
			return p.inherited(s, name, make(map[Ref]bool))
		}
	}
	return nil
}

// lookupName resolves sn without reporting anything.
func (p *Parser) lookupName(sn scopedName) *Entry {
	if len(sn.parts) == 0 {
		return nil
	}
	var e *Entry
	if sn.global {
		e = p.memberOf(nil, sn.parts[0])
	} else {
		e = p.unqualified(sn.parts[0])
	}
	for _, part := range sn.parts[1:] {
		if e == nil {
			return nil
		}
		scope := p.st.Underlying(e.self)
		if scope == nil {
			return nil
		}
		next := p.memberOf(scope, part)
		if next == nil {
			next = p.inherited(scope, part, make(map[Ref]bool))
		}
		e = next
	}
	return e
}

// resolveName looks up sn and reports it when undeclared. A module is only an
// acceptable result when moduleOK is set, as it is for pragma targets.
func (p *Parser) resolveName(sn scopedName, moduleOK bool) *Entry {
	e := p.lookupName(sn)
	if e == nil {
		p.report(makeUndeclaredErr(sn.pos, sn.String()))
		return nil
	}
	if e.Kind == ModuleEntryKind && !moduleOK {
		p.report(makeSemErr(sn.pos, ModuleNotTypeErrKind, sn.String(), ""))
		return nil
	}
	return e
}

func (p *Parser) resolvePragmaTarget(sn scopedName) *Entry {
	return p.resolveName(sn, true)
}

// scopedType parses a scoped name that must denote a type. Unresolvable names
// are reported and yield NoRef so parsing can continue.
func (p *Parser) scopedType(mustBeReferencable bool) (Ref, error) {
	sn, err := parseScopedName(p)
	if err != nil {
		return NoRef, err
	}
	e := p.resolveName(sn, false)
	if e == nil {
		return NoRef, nil
	}
	if !e.Kind.isType() {
		p.report(makeSemErr(sn.pos, NotTypeErrKind, sn.String(), ""))
		return NoRef, nil
	}
	if mustBeReferencable && !e.Referencable {
		p.report(makeSemErr(sn.pos, IncompleteErrKind, sn.String(), ""))
	}
	return e.self, nil
}
