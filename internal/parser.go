package internal

import (
	"errors"
	"math/big"
	"slices"
	"strings"
)

// Parser reads IDL definitions from the token stream of a Scanner, hands
// directives and macro invocations to the Preprocessor and declares every
// definition in the symbol table as soon as it is read.
type Parser struct {
	c    *Compiler
	st   *Symtab
	sc   *Scanner
	prep *Preprocessor

	tok       Token
	current   Ref
	depth     int
	comment   string
	enumScope *Entry // enum of the discriminator while parsing case labels
	hasEofErr bool   // stores whether an error has been emitted after token stream has reached eof
}

func newParser(c *Compiler, sc *Scanner) *Parser {
	p := &Parser{c: c, st: c.st, sc: sc}
	p.prep = newPreprocessor(c, sc, p)
	return p
}

func (p *Parser) report(err error) {
	p.c.rep.Error(err)
}

// fetch returns the next token meant for the grammar.
func (p *Parser) fetch() Token {
	for {
		tok := p.sc.next()
		switch {
		case tok.Kind == TokErr:
			p.report(tok.Err)
			continue
		case tok.Kind.isDirective():
			p.prep.process(tok)
			continue
		case tok.Kind == TokIden && !tok.Escaped && p.prep.expand(tok):
			continue
		}
		p.tokenWarnings(tok)
		return tok
	}
}

func (p *Parser) tokenWarnings(tok Token) {
	switch {
	case tok.Collides:
		p.c.rep.Warn(tok.Pos, "\"%s\" collides with a keyword", tok.Value)
	case tok.Deprecated:
		p.c.rep.Warn(tok.Pos, "\"%s\" is deprecated", tok.Value)
	}
}

func (p *Parser) peek() Token {
	return p.tok
}

func (p *Parser) next() Token {
	tok := p.tok
	if tok.Kind != TokEof {
		p.tok = p.fetch()
	}
	return tok
}

func (p *Parser) eat() {
	p.next()
}

func (p *Parser) accept(kind TokKind) bool {
	if p.tok.Kind != kind {
		return false
	}
	p.eat()
	return true
}

// expect consumes a token of the given kind. A mismatched token is left in place.
func (p *Parser) expect(kind TokKind) (Token, error) {
	if p.tok.Kind != kind {
		return p.tok, makeExpectErr(p.tok, kind)
	}
	return p.next(), nil
}

// closeAngle consumes the '>' closing a template type, splitting a '>>'.
func (p *Parser) closeAngle() error {
	if p.tok.Kind == TokShr {
		p.tok.Kind = TokRAngle
		p.tok.Value = ">"
		p.tok.Pos.Col++
		return nil
	}
	_, err := p.expect(TokRAngle)
	return err
}

func (p *Parser) emitError(err error) {
	if !p.hasEofErr {
		// don't emit anymore errors if a single err has been emitted after reaching eof
		p.report(err)
	}
	p.hasEofErr = p.tok.Kind == TokEof
}

// endStatement consumes the ';' ending a declaration. A missing ';' is reported and assumed.
func (p *Parser) endStatement() {
	if !p.accept(TokSemicolon) {
		p.emitError(makeExpectErr(p.tok, TokSemicolon))
	}
}

// skipToSemicolon discards tokens up to and including the next ';' outside
// braces. It stops before a '}' that closes the scope being parsed.
func (p *Parser) skipToSemicolon() error {
	depth := 0
	for {
		switch p.tok.Kind {
		case TokEof:
			if depth > 0 || p.depth > 0 {
				return ErrEof
			}
			return nil
		case TokLBrace:
			depth++
		case TokRBrace:
			if depth == 0 && p.depth > 0 {
				return nil
			}
			if depth > 0 {
				depth--
			}
		case TokSemicolon:
			if depth == 0 {
				p.eat()
				return nil
			}
		}
		p.eat()
	}
}

// recover reports err and resynchronizes at the next declaration. A non-nil result ends the parse.
func (p *Parser) recover(err error) error {
	if errors.Is(err, ErrEof) {
		return err
	}
	p.emitError(err)
	return p.skipToSemicolon()
}

func (p *Parser) parse() {
	p.tok = p.fetch()
	for p.tok.Kind != TokEof {
		if err := p.definition(); err != nil {
			if err := p.recover(err); err != nil {
				p.emitError(makeExpectErr(p.tok, TokRBrace).withContext("scope"))
				break
			}
		}
	}
	p.prep.finish()
}

func (p *Parser) openScope(scope *Entry) {
	p.current = scope.self
	p.depth++
	p.c.pushRepScope(scope.Name)
	p.prep.openScope(scope)
}

func (p *Parser) closeScope(scope *Entry, prev Ref) {
	p.prep.closeScope(scope)
	p.c.popRepScope()
	p.depth--
	p.current = prev
}

// body parses '{' item* '}' inside scope. Errors in an item are reported and
// skipped so the rest of the body is still parsed.
func (p *Parser) body(scope *Entry, item func() error) error {
	if p.tok.Kind != TokLBrace {
		return makeExpectErr(p.tok, TokLBrace)
	}
	prev := p.current
	p.openScope(scope)
	p.eat()
	for p.tok.Kind != TokRBrace {
		if p.tok.Kind == TokEof {
			p.closeScope(scope, prev)
			return makeExpectErr(p.tok, TokRBrace)
		}
		if err := item(); err != nil {
			if err := p.recover(err); err != nil {
				p.closeScope(scope, prev)
				return err
			}
		}
	}
	p.closeScope(scope, prev)
	p.eat()
	return nil
}

func (p *Parser) newEntryIn(container Ref, kind EntryKind, name Token, data any) *Entry {
	e := &Entry{
		Kind:         kind,
		Name:         name.Value,
		Container:    container,
		File:         name.Pos.File,
		Pos:          name.Pos,
		Comment:      p.comment,
		Referencable: true,
		Emit:         p.c.emitting(name.Pos.File),
		Data:         data,
	}
	e.RepID = p.c.repIDFor(name.Value)
	p.st.add(e)
	return e
}

func (p *Parser) newEntry(kind EntryKind, name Token, data any) *Entry {
	return p.newEntryIn(p.current, kind, name, data)
}

// newAnon creates an entry for a type written inline, such as a bounded string or a sequence.
func (p *Parser) newAnon(kind EntryKind, pos Position, data any) *Entry {
	name := Token{TokVal: TokVal{Kind: TokIden, Value: p.st.anonName()}, Pos: pos}
	e := p.newEntry(kind, name, data)
	e.Comment = ""
	e.Emit = false
	p.st.insert(e)
	return e
}

// declare enters e into the symbol table. It returns the entry the name
// denotes afterwards, which is e unless e repeats a forward declaration.
func (p *Parser) declare(e *Entry) *Entry {
	prev := p.st.Lookup(e.FullName())
	if prev == nil {
		if clash := p.st.lookupFold(e.FullName()); clash != nil {
			if p.indexed(e.Container) {
				p.report(makeSemErr(e.Pos, CaseClashErrKind, e.Name, clash.Name))
			}
			return e
		}
		p.st.insert(e)
		p.st.contain(e)
		return e
	}

	switch {
	case e.isForward() && (prev.Kind == e.Kind || prev.Kind == definitionOf(e.Kind)):
		if prev.flavor() != e.flavor() {
			p.report(makeSemErr(e.Pos, ForwardMismatchErrKind, e.Name, ""))
		}
		return prev
	case prev.isForward() && e.Kind == definitionOf(prev.Kind):
		if prev.flavor() != e.flavor() {
			p.report(makeSemErr(e.Pos, ForwardMismatchErrKind, e.Name, ""))
		}
		if prev.RepID.Prefix != e.RepID.Prefix {
			p.report(makeSemErr(e.Pos, RepIDPrefixErrKind, e.Name, ""))
		}
		p.st.replaceForward(prev, e)
		p.st.contain(e)
		return e
	case prev.Kind == ForwardValueEntryKind && e.Kind == ValueBoxEntryKind:
		p.report(makeSemErr(e.Pos, BoxForwardErrKind, e.Name, ""))
		return e
	case (e.Kind == StructEntryKind || e.Kind == UnionEntryKind) && prev.Kind == e.Kind && !(prev.Referencable && e.Referencable):
		if !e.Referencable {
			return prev
		}
		if prev.File != e.File {
			p.report(makeSemErr(e.Pos, NotInSameFileErrKind, e.Name, ""))
		}
		p.st.replaceForward(prev, e)
		p.st.contain(e)
		return e
	}
	p.report(makeRedeclaredErr(e.Pos, e.Name))
	return e
}

// indexed reports whether r is the entry its name denotes. Scopes rejected
// for a case clash are not, and their members do not report clashes again.
func (p *Parser) indexed(r Ref) bool {
	c := p.st.Get(r)
	return c == nil || c.Builtin || p.st.Lookup(c.FullName()) == c
}

func definitionOf(kind EntryKind) EntryKind {
	switch kind {
	case ForwardEntryKind:
		return InterfaceEntryKind
	case ForwardValueEntryKind:
		return ValueEntryKind
	}
	return kind
}

func (p *Parser) definition() error {
	p.comment = p.tok.Comment
	var err error
	switch p.tok.Kind {
	case TokTypedef, TokStruct, TokUnion, TokEnum, TokNative:
		err = p.typeDcl()
	case TokConst:
		err = p.constDcl()
	case TokException:
		err = p.exceptDcl()
	case TokInterface:
		err = p.interfaceDcl(NormalFlavor)
	case TokLocal:
		p.eat()
		if p.tok.Kind != TokInterface {
			return makeExpectErr(p.tok, TokInterface).withContext("local interface")
		}
		err = p.interfaceDcl(LocalFlavor)
	case TokAbstract:
		p.eat()
		switch p.tok.Kind {
		case TokInterface:
			err = p.interfaceDcl(AbstractFlavor)
		case TokValuetype:
			err = p.valueDcl(true, false)
		default:
			return makeExpectErr(p.tok, TokInterface, TokValuetype).withContext("abstract definition")
		}
	case TokCustom:
		p.eat()
		if p.tok.Kind != TokValuetype {
			return makeExpectErr(p.tok, TokValuetype).withContext("custom value")
		}
		err = p.valueDcl(false, true)
	case TokValuetype:
		err = p.valueDcl(false, false)
	case TokModule:
		err = p.moduleDcl()
	default:
		return makeExpectErr(p.tok, TokModule, TokInterface, TokValuetype, TokTypedef, TokStruct,
			TokUnion, TokEnum, TokConst, TokException, TokNative).withContext("definition")
	}
	if err != nil {
		return err
	}
	p.endStatement()
	return nil
}

func (p *Parser) moduleDcl() error {
	p.eat()
	name, err := p.expect(TokIden)
	if err != nil {
		return withContext(err, "module")
	}
	m := p.st.Lookup(p.st.qualify(p.current, name.Value))
	if m == nil || m.Kind != ModuleEntryKind {
		m = p.declare(p.newEntry(ModuleEntryKind, name, nil))
	} else if p.c.emitting(name.Pos.File) {
		m.Emit = true
	}
	return withContext(p.body(m, p.definition), "module")
}

var baseTypeKinds = []TokKind{TokShort, TokLong, TokUnsigned, TokFloatType, TokDouble, TokCharType, TokWChar, TokBoolean, TokOctet, TokAny}

// baseType parses a primitive type. ok is false when the current token does not start one.
func (p *Parser) baseType() (t Ref, ok bool, err error) {
	var name string
	switch p.tok.Kind {
	case TokShort:
		name = "short"
	case TokFloatType:
		name = "float"
	case TokDouble:
		name = "double"
	case TokCharType:
		name = "char"
	case TokWChar:
		name = "wchar"
	case TokBoolean:
		name = "boolean"
	case TokOctet:
		name = "octet"
	case TokAny:
		name = "any"
	case TokLong:
		p.eat()
		switch {
		case p.accept(TokLong):
			name = "long long"
		case p.accept(TokDouble):
			name = "long double"
		default:
			name = "long"
		}
		return p.st.builtins[name], true, nil
	case TokUnsigned:
		p.eat()
		switch {
		case p.accept(TokShort):
			name = "unsigned short"
		case p.accept(TokLong):
			name = "unsigned long"
			if p.accept(TokLong) {
				name = "unsigned long long"
			}
		default:
			return NoRef, true, makeExpectErr(p.tok, TokShort, TokLong).withContext("unsigned type")
		}
		return p.st.builtins[name], true, nil
	default:
		return NoRef, false, nil
	}
	p.eat()
	return p.st.builtins[name], true, nil
}

func (p *Parser) typeSpec(mustBeReferencable bool) (Ref, error) {
	var e *Entry
	var err error
	switch p.tok.Kind {
	case TokStruct:
		e, err = p.structType()
	case TokUnion:
		e, err = p.unionType()
	case TokEnum:
		e, err = p.enumType()
	default:
		return p.simpleTypeSpec(mustBeReferencable)
	}
	if e == nil {
		return NoRef, err
	}
	return e.self, err
}

func (p *Parser) simpleTypeSpec(mustBeReferencable bool) (Ref, error) {
	switch p.tok.Kind {
	case TokSequence:
		return p.sequenceType()
	case TokStringType, TokWString:
		return p.stringType()
	case TokIden, TokScope, TokObject, TokValueBase:
		return p.scopedType(mustBeReferencable)
	}
	t, ok, err := p.baseType()
	if !ok {
		expected := append([]TokKind{TokIden, TokSequence, TokStringType, TokWString}, baseTypeKinds...)
		return NoRef, makeExpectErr(p.tok, expected...).withContext("type")
	}
	return t, err
}

// paramTypeSpec parses the types allowed for parameters, attributes and results.
func (p *Parser) paramTypeSpec() (Ref, error) {
	switch p.tok.Kind {
	case TokStringType, TokWString:
		return p.stringType()
	case TokIden, TokScope, TokObject, TokValueBase:
		return p.scopedType(true)
	}
	t, ok, err := p.baseType()
	if !ok {
		expected := append([]TokKind{TokIden, TokStringType, TokWString}, baseTypeKinds...)
		return NoRef, makeExpectErr(p.tok, expected...).withContext("parameter type")
	}
	return t, err
}

func (p *Parser) sequenceType() (Ref, error) {
	start := p.next()
	if _, err := p.expect(TokLAngle); err != nil {
		return NoRef, withContext(err, "sequence")
	}
	elem, err := p.simpleTypeSpec(false)
	if err != nil {
		return NoRef, withContext(err, "sequence")
	}
	data := &SequenceData{}
	if p.accept(TokComma) {
		max, err := p.positiveIntConst()
		if err != nil {
			return NoRef, withContext(err, "sequence")
		}
		data.Max = &max
	}
	if err := p.closeAngle(); err != nil {
		return NoRef, withContext(err, "sequence")
	}
	seq := p.newAnon(SequenceEntryKind, start.Pos, data)
	p.st.setType(seq, elem)
	return seq.self, nil
}

func (p *Parser) stringType() (Ref, error) {
	start := p.next()
	if p.tok.Kind != TokLAngle {
		return p.st.builtins[start.Value], nil
	}
	p.eat()
	max, err := p.positiveIntConst()
	if err != nil {
		return NoRef, withContext(err, start.Value)
	}
	if err := p.closeAngle(); err != nil {
		return NoRef, withContext(err, start.Value)
	}
	s := p.newAnon(StringEntryKind, start.Pos, &StringData{Wide: start.Kind == TokWString, Max: &max})
	return s.self, nil
}

func (p *Parser) constExp(target ConstType) (Expr, error) {
	ev := evaluator{src: p, target: target.Prim, name: p.constName, report: p.report}
	return ev.parse()
}

// positiveIntConst evaluates an array dimension or template bound. Invalid
// bounds are reported and replaced by 1.
func (p *Parser) positiveIntConst() (Expr, error) {
	pos := p.tok.Pos
	ex, err := p.constExp(ConstType{Prim: PrimULong})
	if err != nil {
		return Expr{}, err
	}
	if ex.Lit.Kind != IntLit || ex.Lit.Int.Sign() <= 0 {
		p.report(makeSemErr(pos, NotPositiveErrKind, ex.Rep, ""))
		return Expr{Lit: intLit(1), Rep: "1"}, nil
	}
	if _, err := verifyConst(ex, ConstType{Prim: PrimULong}, pos); err != nil {
		p.report(err)
		return Expr{Lit: intLit(1), Rep: "1"}, nil
	}
	return ex, nil
}

// constName evaluates a name used inside a constant expression.
func (p *Parser) constName(src tokenSource) (Expr, error) {
	sn, err := parseScopedName(src)
	if err != nil {
		return Expr{}, err
	}
	fallback := Expr{Lit: intLit(0), Rep: sn.String()}

	var e *Entry
	if p.enumScope != nil && !sn.global && len(sn.parts) == 1 {
		e = p.memberOf(p.containerOf(p.enumScope), sn.parts[0])
	}
	if e == nil {
		if e = p.resolveName(sn, false); e == nil {
			return fallback, nil
		}
	}

	switch d := e.Data.(type) {
	case *ConstData:
		return Expr{Lit: d.Value.Lit, Rep: sn.String()}, nil
	case *EnumeratorData:
		lit := Literal{Kind: EnumLit, Int: big.NewInt(int64(d.Index)), Str: e.Name, Enum: d.Enum}
		return Expr{Lit: lit, Rep: sn.String()}, nil
	}
	p.report(makeSemErr(sn.pos, NotConstErrKind, sn.String(), ""))
	return fallback, nil
}

// constTypeOf maps a resolved type to the type constants are checked against.
func (p *Parser) constTypeOf(e *Entry) ConstType {
	if e == nil {
		return ConstType{}
	}
	switch d := e.Data.(type) {
	case *PrimitiveData:
		return ConstType{Prim: d.Prim}
	case *StringData:
		ct := ConstType{Prim: PrimString}
		if d.Wide {
			ct.Prim = PrimWString
		}
		if d.Max != nil {
			ct.Max = int(d.Max.Lit.Int.Int64())
		}
		return ct
	case *EnumData:
		return ConstType{Prim: PrimEnum, Enum: e.self}
	}
	return ConstType{}
}

func (p *Parser) constType() (Ref, ConstType, error) {
	long := p.st.builtins["long"]
	var t Ref
	var desc string
	pos := p.tok.Pos
	switch p.tok.Kind {
	case TokStringType, TokWString:
		r, err := p.stringType()
		if err != nil {
			return long, ConstType{Prim: PrimLong}, err
		}
		return r, p.constTypeOf(p.st.Get(r)), nil
	case TokIden, TokScope:
		sn, err := parseScopedName(p)
		if err != nil {
			return long, ConstType{Prim: PrimLong}, err
		}
		e := p.resolveName(sn, false)
		if e == nil {
			return long, ConstType{Prim: PrimLong}, nil
		}
		t, desc = e.self, sn.String()
	default:
		r, ok, err := p.baseType()
		if !ok {
			expected := append([]TokKind{TokIden, TokStringType, TokWString}, baseTypeKinds...)
			return long, ConstType{Prim: PrimLong}, makeExpectErr(p.tok, expected...).withContext("constant type")
		}
		if err != nil {
			return long, ConstType{Prim: PrimLong}, err
		}
		t, desc = r, p.st.Get(r).Name
	}
	ct := p.constTypeOf(p.st.Underlying(t))
	if ct.Prim == PrimNone || ct.Prim == PrimAny {
		p.report(makeSemErr(pos, ConstTypeErrKind, desc, ""))
		return long, ConstType{Prim: PrimLong}, nil
	}
	return t, ct, nil
}

func (p *Parser) constDcl() error {
	p.eat()
	t, ct, err := p.constType()
	if err != nil {
		return withContext(err, "const")
	}
	name, err := p.expect(TokIden)
	if err != nil {
		return withContext(err, "const")
	}
	if _, err := p.expect(TokEqual); err != nil {
		return withContext(err, "const")
	}
	pos := p.tok.Pos
	ex, err := p.constExp(ct)
	if err != nil {
		return withContext(err, "const")
	}
	ex, err = verifyConst(ex, ct, pos)
	if err != nil {
		p.report(err)
	}
	e := p.newEntry(ConstEntryKind, name, &ConstData{Target: ct, Value: ex})
	p.st.setType(e, t)
	p.declare(e)
	return nil
}

func (p *Parser) typeDcl() error {
	switch p.tok.Kind {
	case TokTypedef:
		p.eat()
		return withContext(p.typedefDcl(), "typedef")
	case TokStruct:
		_, err := p.structType()
		return err
	case TokUnion:
		_, err := p.unionType()
		return err
	case TokEnum:
		_, err := p.enumType()
		return err
	case TokNative:
		p.eat()
		name, err := p.expect(TokIden)
		if err != nil {
			return withContext(err, "native")
		}
		p.declare(p.newEntry(NativeEntryKind, name, nil))
		return nil
	}
	return makeExpectErr(p.tok, TokTypedef, TokStruct, TokUnion, TokEnum, TokNative).withContext("type declaration")
}

func (p *Parser) typedefDcl() error {
	t, err := p.typeSpec(true)
	if err != nil {
		return err
	}
	decls, err := p.declarators()
	if err != nil {
		return err
	}
	for _, d := range decls {
		e := p.newEntry(TypedefEntryKind, d.name, &TypedefData{Dims: d.dims})
		p.st.setType(e, t)
		p.declare(e)
	}
	return nil
}

type declarator struct {
	name Token
	dims []Expr
}

func (p *Parser) declarators() ([]declarator, error) {
	var decls []declarator
	for {
		d, err := p.declarator()
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
		if !p.accept(TokComma) {
			return decls, nil
		}
	}
}

func (p *Parser) declarator() (declarator, error) {
	name, err := p.expect(TokIden)
	if err != nil {
		return declarator{}, withContext(err, "declarator")
	}
	d := declarator{name: name}
	for p.accept(TokLBrack) {
		dim, err := p.positiveIntConst()
		if err != nil {
			return declarator{}, withContext(err, "array dimension")
		}
		if _, err := p.expect(TokRBrack); err != nil {
			return declarator{}, withContext(err, "array dimension")
		}
		d.dims = append(d.dims, dim)
	}
	return d, nil
}

// newMember declares a member of scope, which must not have the type of scope itself.
func (p *Parser) newMember(scope *Entry, d declarator, t Ref, data *MemberData) *Entry {
	data.Dims = d.dims
	m := p.newEntry(MemberEntryKind, d.name, data)
	p.st.setType(m, t)
	if t != NoRef && p.st.Deref(t) == scope.self {
		p.report(makeSemErr(d.name.Pos, RecursiveErrKind, scope.Name, ""))
	}
	p.declare(m)
	return m
}

// member parses one member line of a struct or exception.
func (p *Parser) member(scope *Entry) error {
	p.comment = p.tok.Comment
	t, err := p.typeSpec(true)
	if err != nil {
		return withContext(err, "member")
	}
	decls, err := p.declarators()
	if err != nil {
		return withContext(err, "member")
	}
	sd := scope.Struct()
	for _, d := range decls {
		m := p.newMember(scope, d, t, &MemberData{})
		sd.Members = append(sd.Members, m.self)
	}
	p.endStatement()
	return nil
}

func (p *Parser) structType() (*Entry, error) {
	p.eat()
	name, err := p.expect(TokIden)
	if err != nil {
		return nil, withContext(err, "struct")
	}
	e := p.newEntry(StructEntryKind, name, &StructData{})
	if p.tok.Kind == TokSemicolon {
		e.Referencable = false
		return p.declare(e), nil
	}
	p.declare(e)
	err = p.body(e, func() error { return p.member(e) })
	return e, withContext(err, "struct")
}

func (p *Parser) exceptDcl() error {
	p.eat()
	name, err := p.expect(TokIden)
	if err != nil {
		return withContext(err, "exception")
	}
	e := p.newEntry(ExceptionEntryKind, name, &StructData{})
	p.declare(e)
	return withContext(p.body(e, func() error { return p.member(e) }), "exception")
}

func (p *Parser) enumType() (*Entry, error) {
	p.eat()
	name, err := p.expect(TokIden)
	if err != nil {
		return nil, withContext(err, "enum")
	}
	e := p.newEntry(EnumEntryKind, name, &EnumData{})
	p.declare(e)
	if _, err := p.expect(TokLBrace); err != nil {
		return e, withContext(err, "enum")
	}
	d := e.Enum()
	for {
		tok, err := p.expect(TokIden)
		if err != nil {
			return e, withContext(err, "enum")
		}
		el := p.newEntry(EnumeratorEntryKind, tok, &EnumeratorData{Enum: e.self, Index: len(d.Elements)})
		el.Type = e.self
		p.declare(el)
		d.Elements = append(d.Elements, tok.Value)
		d.Enumerators = append(d.Enumerators, el.self)
		if !p.accept(TokComma) {
			break
		}
	}
	if _, err := p.expect(TokRBrace); err != nil {
		return e, withContext(err, "enum")
	}
	return e, nil
}

func (p *Parser) unionType() (*Entry, error) {
	p.eat()
	name, err := p.expect(TokIden)
	if err != nil {
		return nil, withContext(err, "union")
	}
	e := p.newEntry(UnionEntryKind, name, &UnionData{Default: -1})
	if p.tok.Kind == TokSemicolon {
		e.Referencable = false
		return p.declare(e), nil
	}
	p.declare(e)
	if _, err := p.expect(TokSwitch); err != nil {
		return e, withContext(err, "union")
	}
	if _, err := p.expect(TokLParen); err != nil {
		return e, withContext(err, "union")
	}
	disc, err := p.switchTypeSpec(e)
	if err != nil {
		return e, withContext(err, "union discriminator")
	}
	if _, err := p.expect(TokRParen); err != nil {
		return e, withContext(err, "union")
	}
	p.st.setType(e, disc)
	if err := p.body(e, func() error { return p.unionCase(e) }); err != nil {
		return e, withContext(err, "union")
	}
	p.verifyUnion(e)
	return e, nil
}

func validDiscriminator(e *Entry) bool {
	if e.Kind == EnumEntryKind {
		return true
	}
	switch e.Prim() {
	case PrimShort, PrimUShort, PrimLong, PrimULong, PrimLongLong, PrimULongLong, PrimChar, PrimWChar, PrimBoolean:
		return true
	}
	return false
}

// switchTypeSpec parses the discriminator type of u. An enum written inline
// is declared inside the union.
func (p *Parser) switchTypeSpec(u *Entry) (Ref, error) {
	pos := p.tok.Pos
	var t Ref
	switch p.tok.Kind {
	case TokEnum:
		prev := p.current
		p.current = u.self
		p.c.pushRepScope(u.Name)
		e, err := p.enumType()
		p.c.popRepScope()
		p.current = prev
		if err != nil {
			return NoRef, err
		}
		t = e.self
	case TokIden, TokScope:
		sn, err := parseScopedName(p)
		if err != nil {
			return NoRef, err
		}
		e := p.resolveName(sn, false)
		if e == nil {
			return NoRef, nil
		}
		t = e.self
	default:
		r, ok, err := p.baseType()
		if !ok {
			expected := append([]TokKind{TokIden, TokEnum}, baseTypeKinds...)
			return NoRef, makeExpectErr(p.tok, expected...)
		}
		if err != nil {
			return NoRef, err
		}
		t = r
	}
	if u := p.st.Underlying(t); u == nil || !validDiscriminator(u) {
		p.report(makeSemErr(pos, DiscriminatorErrKind, p.st.Get(t).Name, ""))
		return NoRef, nil
	}
	return t, nil
}

// caseLabel evaluates a label against the discriminator type. Without a
// valid discriminator the label is evaluated unchecked.
func (p *Parser) caseLabel(disc *Entry) (Expr, error) {
	ct := ConstType{Prim: PrimLong}
	if disc != nil {
		ct = p.constTypeOf(disc)
		if disc.Kind == EnumEntryKind {
			p.enumScope = disc
			defer func() { p.enumScope = nil }()
		}
	}
	pos := p.tok.Pos
	ex, err := p.constExp(ct)
	if err != nil || disc == nil {
		return ex, err
	}
	ex, verr := verifyConst(ex, ct, pos)
	if verr != nil {
		p.report(verr)
	}
	return ex, nil
}

func labelUsed(ud *UnionData, current []Expr, label Expr) bool {
	for _, br := range ud.Branches {
		for _, l := range br.Labels {
			if l.Lit.equal(label.Lit) {
				return true
			}
		}
	}
	for _, l := range current {
		if l.Lit.equal(label.Lit) {
			return true
		}
	}
	return false
}

// unionCase parses the labels and the member of one union branch.
func (p *Parser) unionCase(u *Entry) error {
	p.comment = p.tok.Comment
	ud := u.Union()
	disc := p.st.Underlying(u.Type)
	var br Branch
	labeled := false
	for p.tok.Kind == TokCase || p.tok.Kind == TokDefault {
		labeled = true
		pos := p.tok.Pos
		if p.accept(TokDefault) {
			if ud.Default >= 0 || br.IsDefault {
				p.report(makeSemErr(pos, DefaultTwiceErrKind, u.Name, ""))
			}
			br.IsDefault = true
		} else {
			p.eat()
			pos = p.tok.Pos
			label, err := p.caseLabel(disc)
			if err != nil {
				return withContext(err, "case label")
			}
			if labelUsed(ud, br.Labels, label) {
				p.report(makeSemErr(pos, DupLabelErrKind, label.Rep, ""))
			}
			br.Labels = append(br.Labels, label)
		}
		if _, err := p.expect(TokColon); err != nil {
			return withContext(err, "case label")
		}
	}
	if !labeled {
		return makeExpectErr(p.tok, TokCase, TokDefault).withContext("union body")
	}

	t, err := p.typeSpec(true)
	if err != nil {
		return withContext(err, "union branch")
	}
	d, err := p.declarator()
	if err != nil {
		return withContext(err, "union branch")
	}
	m := p.newMember(u, d, t, &MemberData{})
	br.Member = m.self
	if br.IsDefault {
		ud.Default = len(ud.Branches)
	}
	ud.Branches = append(ud.Branches, br)
	p.endStatement()
	return nil
}

// verifyUnion checks that the labels do not outnumber the values of a boolean or enum discriminator.
func (p *Parser) verifyUnion(u *Entry) {
	disc := p.st.Underlying(u.Type)
	if disc == nil {
		return
	}
	limit := -1
	switch {
	case disc.Prim() == PrimBoolean:
		limit = 2
	case disc.Kind == EnumEntryKind:
		limit = len(disc.Enum().Elements)
	}
	if limit < 0 {
		return
	}
	count := 0
	for _, br := range u.Union().Branches {
		count += len(br.Labels)
		if br.IsDefault {
			count++
		}
	}
	if count > limit {
		p.report(makeSemErr(u.Pos, NoDefaultErrKind, u.Name, ""))
	}
}

func (p *Parser) interfaceDcl(flavor IfaceFlavor) error {
	p.eat()
	name, err := p.expect(TokIden)
	if err != nil {
		return withContext(err, "interface")
	}
	if p.tok.Kind == TokSemicolon {
		p.declare(p.newEntry(ForwardEntryKind, name, &ForwardData{Flavor: flavor}))
		return nil
	}

	e := p.newEntry(InterfaceEntryKind, name, &InterfaceData{Flavor: flavor})
	p.declare(e)
	if p.accept(TokColon) {
		if err := p.inheritance(e); err != nil {
			return withContext(err, "interface inheritance")
		}
	}
	d := e.Iface()
	if len(d.DerivedFrom) == 0 && flavor != AbstractFlavor {
		object := p.st.Builtin("Object")
		d.DerivedFrom = []Ref{object.self}
	}
	if err := p.body(e, p.export); err != nil {
		return withContext(err, "interface")
	}
	p.spreadMethods(e, make(map[Ref]bool))
	return nil
}

func (p *Parser) inheritance(e *Entry) error {
	for {
		sn, err := parseScopedName(p)
		if err != nil {
			return err
		}
		if parent := p.resolveName(sn, false); parent != nil {
			p.addParent(e, parent, sn)
		}
		if !p.accept(TokComma) {
			return nil
		}
	}
}

func (p *Parser) addParent(e *Entry, parent *Entry, sn scopedName) {
	d := e.Iface()
	switch {
	case parent.Kind != InterfaceEntryKind && parent.Kind != ForwardEntryKind:
		p.report(makeSemErr(sn.pos, NotInterfaceErrKind, sn.String(), ""))
		return
	case parent.self == e.self || slices.Contains(d.DerivedFrom, parent.self):
		p.report(makeSemErr(sn.pos, AlreadyDerivedErrKind, sn.String(), ""))
		return
	}
	switch flavor := parent.flavor(); {
	case d.Flavor == AbstractFlavor && flavor != AbstractFlavor:
		p.report(makeSemErr(sn.pos, AbstractParentErrKind, e.Name, parent.Name))
	case d.Flavor != LocalFlavor && flavor == LocalFlavor:
		p.report(makeSemErr(sn.pos, LocalParentErrKind, e.Name, parent.Name))
	}
	d.DerivedFrom = append(d.DerivedFrom, parent.self)
	d.DerivedNames = append(d.DerivedNames, sn.String())
	addDeriver(parent, e)
	p.inheritMethods(e, parent, sn.pos)
}

// addDeriver records child under parent so a forward parent can hand down its methods once defined.
func addDeriver(parent *Entry, child *Entry) {
	switch d := parent.Data.(type) {
	case *ForwardData:
		if !slices.Contains(d.Derivers, child.self) {
			d.Derivers = append(d.Derivers, child.self)
		}
	case *InterfaceData:
		if !slices.Contains(d.Derivers, child.self) {
			d.Derivers = append(d.Derivers, child.self)
		}
	}
}

func (p *Parser) inheritedNamed(iface *Entry, name string) *Entry {
	for _, r := range iface.Iface().Inherited {
		if m := p.st.Get(r); strings.EqualFold(m.Name, name) {
			return m
		}
	}
	return nil
}

// inheritMethods makes the operations and attributes of parent available in child.
func (p *Parser) inheritMethods(child *Entry, parent *Entry, pos Position) {
	cd, pd := child.Iface(), parent.Iface()
	if cd == nil || pd == nil {
		return
	}
	for _, r := range slices.Concat(pd.Inherited, pd.Methods) {
		if slices.Contains(cd.Inherited, r) || slices.Contains(cd.Methods, r) {
			continue
		}
		m := p.st.Get(r)
		clash := p.inheritedNamed(child, m.Name)
		if clash == nil {
			for _, own := range cd.Methods {
				if o := p.st.Get(own); strings.EqualFold(o.Name, m.Name) {
					clash = o
					break
				}
			}
		}
		if clash != nil {
			p.report(makeSemErr(pos, MethodClashErrKind, clash.ScopedName(), m.ScopedName()))
			continue
		}
		cd.Inherited = append(cd.Inherited, r)
	}
}

// spreadMethods hands the methods of parent to interfaces that inherited it
// while it was only forward declared, and on to their own derivers.
func (p *Parser) spreadMethods(parent *Entry, seen map[Ref]bool) {
	for _, r := range parent.Iface().Derivers {
		if seen[r] {
			continue
		}
		seen[r] = true
		child := p.st.Get(r)
		p.inheritMethods(child, parent, child.Pos)
		if child.Iface() != nil {
			p.spreadMethods(child, seen)
		}
	}
}

func startsParamType(kind TokKind) bool {
	switch kind {
	case TokIden, TokScope, TokObject, TokValueBase, TokStringType, TokWString:
		return true
	}
	return slices.Contains(baseTypeKinds, kind)
}

// export parses one declaration inside an interface or value body.
func (p *Parser) export() error {
	p.comment = p.tok.Comment
	var err error
	switch kind := p.tok.Kind; {
	case kind == TokTypedef || kind == TokStruct || kind == TokUnion || kind == TokEnum || kind == TokNative:
		err = p.typeDcl()
	case kind == TokConst:
		err = p.constDcl()
	case kind == TokException:
		err = p.exceptDcl()
	case kind == TokReadonly || kind == TokAttribute:
		err = p.attrDcl()
	case kind == TokOneway || kind == TokVoid || startsParamType(kind):
		err = p.opDcl()
	default:
		return makeExpectErr(p.tok, TokTypedef, TokStruct, TokUnion, TokEnum, TokNative, TokConst,
			TokException, TokReadonly, TokAttribute, TokOneway, TokVoid, TokIden).withContext("interface body")
	}
	if err != nil {
		return err
	}
	p.endStatement()
	return nil
}

// addMethod declares an operation or attribute of iface.
func (p *Parser) addMethod(iface *Entry, m *Entry) {
	p.declare(m)
	d := iface.Iface()
	if d == nil {
		return
	}
	if clash := p.inheritedNamed(iface, m.Name); clash != nil {
		p.report(makeSemErr(m.Pos, MethodClashErrKind, m.ScopedName(), clash.ScopedName()))
	}
	d.Methods = append(d.Methods, m.self)
}

func (p *Parser) attrDcl() error {
	readonly := p.accept(TokReadonly)
	if _, err := p.expect(TokAttribute); err != nil {
		return withContext(err, "attribute")
	}
	t, err := p.paramTypeSpec()
	if err != nil {
		return withContext(err, "attribute")
	}
	iface := p.st.Get(p.current)
	for {
		name, err := p.expect(TokIden)
		if err != nil {
			return withContext(err, "attribute")
		}
		a := p.newEntry(AttributeEntryKind, name, &AttributeData{ReadOnly: readonly})
		p.st.setType(a, t)
		p.addMethod(iface, a)
		if !p.accept(TokComma) {
			return nil
		}
	}
}

func (p *Parser) opDcl() error {
	oneway := p.accept(TokOneway)
	ret := NoRef
	void := p.accept(TokVoid)
	if !void {
		t, err := p.paramTypeSpec()
		if err != nil {
			return withContext(err, "operation")
		}
		ret = t
	}
	name, err := p.expect(TokIden)
	if err != nil {
		return withContext(err, "operation")
	}
	m := p.newEntry(MethodEntryKind, name, &MethodData{Oneway: oneway})
	p.st.setType(m, ret)
	if err := p.parameters(m, false); err != nil {
		return withContext(err, "operation")
	}
	raises := p.tok.Kind == TokRaises
	if raises {
		if err := p.raises(m); err != nil {
			return withContext(err, "raises")
		}
	}
	if p.tok.Kind == TokContext {
		if err := p.contexts(m); err != nil {
			return withContext(err, "context")
		}
	}
	p.addMethod(p.st.Get(p.current), m)
	if oneway {
		p.checkOneway(m, void, raises)
	}
	return nil
}

func (p *Parser) checkOneway(m *Entry, void bool, raises bool) {
	if !void {
		p.report(makeSemErr(m.Pos, OnewayErrKind, m.Name, "must return void"))
	}
	if raises {
		p.report(makeSemErr(m.Pos, OnewayErrKind, m.Name, "cannot raise exceptions"))
	}
	for _, r := range m.Method().Params {
		if param := p.st.Get(r); param.Data.(*ParamData).Dir != DirIn {
			p.report(makeSemErr(param.Pos, OnewayErrKind, m.Name, "can only have in parameters"))
			return
		}
	}
}

// parameters parses a parameter list. Initializers only take in parameters.
func (p *Parser) parameters(m *Entry, init bool) error {
	if _, err := p.expect(TokLParen); err != nil {
		return err
	}
	if p.accept(TokRParen) {
		return nil
	}
	d := m.Method()
	for {
		var dir ParamDir
		switch p.tok.Kind {
		case TokIn:
			dir = DirIn
		case TokOut:
			dir = DirOut
		case TokInout:
			dir = DirInout
		default:
			return makeExpectErr(p.tok, TokIn, TokOut, TokInout).withContext("parameter")
		}
		p.eat()
		t, err := p.paramTypeSpec()
		if err != nil {
			return err
		}
		name, err := p.expect(TokIden)
		if err != nil {
			return err
		}
		if init && dir != DirIn {
			p.report(makeSemErr(name.Pos, InitParamErrKind, name.Value, ""))
		}
		for _, r := range d.Params {
			if strings.EqualFold(p.st.Get(r).Name, name.Value) {
				p.report(makeRedeclaredErr(name.Pos, name.Value))
				break
			}
		}
		param := p.newEntryIn(m.self, ParameterEntryKind, name, &ParamData{Dir: dir})
		p.st.setType(param, t)
		d.Params = append(d.Params, param.self)
		if !p.accept(TokComma) {
			break
		}
	}
	_, err := p.expect(TokRParen)
	return err
}

func (p *Parser) raises(m *Entry) error {
	p.eat()
	if _, err := p.expect(TokLParen); err != nil {
		return err
	}
	d := m.Method()
	for {
		sn, err := parseScopedName(p)
		if err != nil {
			return err
		}
		if e := p.resolveName(sn, false); e != nil {
			switch {
			case e.Kind != ExceptionEntryKind:
				p.report(makeSemErr(sn.pos, NotExceptionErrKind, sn.String(), ""))
			case slices.Contains(d.Raises, e.self):
				p.report(makeSemErr(sn.pos, DupRaisesErrKind, sn.String(), ""))
			default:
				d.Raises = append(d.Raises, e.self)
			}
		}
		if !p.accept(TokComma) {
			break
		}
	}
	_, err := p.expect(TokRParen)
	return err
}

func (p *Parser) contexts(m *Entry) error {
	p.eat()
	if _, err := p.expect(TokLParen); err != nil {
		return err
	}
	d := m.Method()
	for {
		tok, err := p.expect(TokString)
		if err != nil {
			return err
		}
		d.Contexts = append(d.Contexts, tok.Value)
		if !p.accept(TokComma) {
			break
		}
	}
	_, err := p.expect(TokRParen)
	return err
}

func startsBoxedType(kind TokKind) bool {
	switch kind {
	case TokSequence, TokStruct, TokUnion, TokEnum:
		return true
	}
	return startsParamType(kind)
}

func (p *Parser) valueDcl(abstract bool, custom bool) error {
	p.eat()
	name, err := p.expect(TokIden)
	if err != nil {
		return withContext(err, "valuetype")
	}
	flavor := NormalFlavor
	if abstract {
		flavor = AbstractFlavor
	}

	switch {
	case p.tok.Kind == TokSemicolon:
		if custom {
			return makeExpectErr(p.tok, TokLBrace, TokColon, TokSupports).withContext("custom valuetype")
		}
		p.declare(p.newEntry(ForwardValueEntryKind, name, &ForwardData{Flavor: flavor}))
		return nil
	case startsBoxedType(p.tok.Kind):
		return withContext(p.valueBox(name, abstract, custom), "value box")
	}

	e := p.newEntry(ValueEntryKind, name, &InterfaceData{Flavor: flavor, Custom: custom})
	p.declare(e)
	if p.accept(TokColon) {
		if err := p.valueInheritance(e); err != nil {
			return withContext(err, "value inheritance")
		}
	}
	if p.accept(TokSupports) {
		if err := p.supports(e); err != nil {
			return withContext(err, "supports")
		}
	}
	d := e.Iface()
	if len(d.DerivedFrom) == 0 && !abstract {
		base := p.st.Builtin("ValueBase")
		d.DerivedFrom = []Ref{base.self}
	}
	if err := p.body(e, func() error { return p.valueElement(e) }); err != nil {
		return withContext(err, "valuetype")
	}
	p.spreadMethods(e, make(map[Ref]bool))
	return nil
}

func (p *Parser) valueBox(name Token, abstract bool, custom bool) error {
	if abstract {
		p.report(makeSemErr(name.Pos, BoxModifierErrKind, name.Value, "abstract"))
	}
	if custom {
		p.report(makeSemErr(name.Pos, BoxModifierErrKind, name.Value, "custom"))
	}
	e := p.newEntry(ValueBoxEntryKind, name, nil)
	p.declare(e)
	t, err := p.typeSpec(true)
	if err != nil {
		return err
	}
	if boxed := p.st.Underlying(t); boxed != nil && boxed.Kind == ValueBoxEntryKind {
		p.report(makeSemErr(name.Pos, NestedBoxErrKind, name.Value, ""))
	}
	p.st.setType(e, t)
	return nil
}

func (p *Parser) valueInheritance(e *Entry) error {
	d := e.Iface()
	for i := 0; ; i++ {
		if p.tok.Kind == TokTruncatable {
			if i > 0 {
				return makeExpectErr(p.tok, TokIden)
			}
			p.eat()
			d.Truncatable = true
		}
		sn, err := parseScopedName(p)
		if err != nil {
			return err
		}
		if parent := p.resolveName(sn, false); parent != nil {
			p.addValueParent(e, parent, sn, i)
		}
		if !p.accept(TokComma) {
			return nil
		}
	}
}

// addValueParent adds a value base. Only the first base may be concrete and
// abstract values only inherit abstract ones.
func (p *Parser) addValueParent(e *Entry, parent *Entry, sn scopedName, index int) {
	d := e.Iface()
	switch {
	case parent.Kind != ValueEntryKind && parent.Kind != ForwardValueEntryKind:
		p.report(makeSemErr(sn.pos, NotValueErrKind, sn.String(), ""))
		return
	case parent.self == e.self || slices.Contains(d.DerivedFrom, parent.self):
		p.report(makeSemErr(sn.pos, AlreadyDerivedErrKind, sn.String(), ""))
		return
	}
	if parent.flavor() != AbstractFlavor {
		switch {
		case d.Flavor == AbstractFlavor:
			p.report(makeSemErr(sn.pos, AbstractParentErrKind, e.Name, parent.Name))
		case index > 0:
			p.report(makeSemErr(sn.pos, ConcreteParentErrKind, e.Name, parent.Name))
		}
	}
	d.DerivedFrom = append(d.DerivedFrom, parent.self)
	d.DerivedNames = append(d.DerivedNames, sn.String())
	addDeriver(parent, e)
	p.inheritMethods(e, parent, sn.pos)
}

func (p *Parser) supports(e *Entry) error {
	d := e.Iface()
	for {
		sn, err := parseScopedName(p)
		if err != nil {
			return err
		}
		if iface := p.resolveName(sn, false); iface != nil {
			switch {
			case iface.Kind != InterfaceEntryKind && iface.Kind != ForwardEntryKind:
				p.report(makeSemErr(sn.pos, NotInterfaceErrKind, sn.String(), ""))
			case slices.Contains(d.Supports, iface.self):
				p.report(makeSemErr(sn.pos, AlreadyDerivedErrKind, sn.String(), ""))
			default:
				d.Supports = append(d.Supports, iface.self)
				d.SupportNames = append(d.SupportNames, sn.String())
				addDeriver(iface, e)
				p.inheritMethods(e, iface, sn.pos)
			}
		}
		if !p.accept(TokComma) {
			return nil
		}
	}
}

// valueElement parses a state member, an initializer or an export of a value body.
func (p *Parser) valueElement(e *Entry) error {
	p.comment = p.tok.Comment
	d := e.Iface()
	switch p.tok.Kind {
	case TokPublic, TokPrivate:
		public := p.next().Kind == TokPublic
		if d.Flavor == AbstractFlavor {
			p.report(makeSemErr(e.Pos, AbstractStateErrKind, e.Name, "state members"))
		}
		t, err := p.typeSpec(true)
		if err != nil {
			return withContext(err, "state member")
		}
		decls, err := p.declarators()
		if err != nil {
			return withContext(err, "state member")
		}
		for _, dcl := range decls {
			m := p.newMember(e, dcl, t, &MemberData{Public: public, State: true})
			d.State = append(d.State, m.self)
		}
		p.endStatement()
		return nil
	case TokFactory, TokInit:
		p.eat()
		if d.Flavor == AbstractFlavor {
			p.report(makeSemErr(e.Pos, AbstractStateErrKind, e.Name, "initializers"))
		}
		name, err := p.expect(TokIden)
		if err != nil {
			return withContext(err, "initializer")
		}
		m := p.newEntry(MethodEntryKind, name, &MethodData{Factory: true})
		if err := p.parameters(m, true); err != nil {
			return withContext(err, "initializer")
		}
		if p.tok.Kind == TokRaises {
			if err := p.raises(m); err != nil {
				return withContext(err, "raises")
			}
		}
		p.declare(m)
		d.Initializers = append(d.Initializers, m.self)
		p.endStatement()
		return nil
	}
	return p.export()
}

func (p *Parser) addInclude(name string, path string, pos Position) {
	tok := Token{TokVal: TokVal{Kind: TokString, Value: name}, Pos: pos}
	e := p.newEntry(IncludeEntryKind, tok, &IncludeData{Path: path})
	e.Comment = ""
	p.st.contain(e)
}

func (p *Parser) addPragma(name string, text string, pos Position) {
	tok := Token{TokVal: TokVal{Kind: TokIden, Value: name}, Pos: pos}
	e := p.newEntry(PragmaEntryKind, tok, &PragmaData{Text: text})
	e.Comment = ""
	p.st.contain(e)
}
