package internal

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// PragmaHandler claims pragmas the compiler has no built-in meaning for.
type PragmaHandler interface {
	Pragma(name string, text string, pos Position) bool
}

// ScopeHandler is implemented by pragma handlers that need to know when a
// module, interface, value, struct, union or exception body opens and closes.
type ScopeHandler interface {
	OpenScope(e *Entry)
	CloseScope(e *Entry)
}

// declHost is the part of the parser directives act upon.
type declHost interface {
	resolvePragmaTarget(sn scopedName) *Entry
	addInclude(name string, path string, pos Position)
	addPragma(name string, text string, pos Position)
}

type macro struct {
	name   string
	params []string
	fn     bool
	body   string
}

type condFrame struct {
	directive string
	taken     bool
	sawElse   bool
	pos       Position
	file      string
}

type Preprocessor struct {
	c          *Compiler
	sc         *Scanner
	host       declHost
	macros     map[string]*macro
	conds      []condFrame
	files      []string
	evaluating map[string]bool
}

func newPreprocessor(c *Compiler, sc *Scanner, host declHost) *Preprocessor {
	pp := &Preprocessor{
		c:          c,
		sc:         sc,
		host:       host,
		macros:     make(map[string]*macro),
		files:      []string{filepath.Clean(c.mainFile)},
		evaluating: make(map[string]bool),
	}
	for name, value := range c.opts.symbols() {
		pp.macros[name] = &macro{name: name, body: value}
	}
	return pp
}

func (pp *Preprocessor) report(err error) {
	pp.c.rep.Error(err)
}

// process carries out a directive. The rest of the directive line is read from the scanner.
func (pp *Preprocessor) process(tok Token) {
	switch tok.Kind {
	case TokDefine:
		pp.define(tok)
	case TokUndef:
		name, _ := splitIden(pp.sc.readLine())
		delete(pp.macros, name)
	case TokIf:
		line := pp.sc.readLine()
		pp.pushCond(tok, pp.evalCond(tok, line))
	case TokIfdef, TokIfndef:
		name, _ := splitIden(pp.sc.readLine())
		_, defined := pp.macros[name]
		pp.pushCond(tok, defined == (tok.Kind == TokIfdef))
	case TokElif, TokElse:
		pp.sc.readLine()
		if len(pp.conds) == 0 {
			pp.report(makeSemErr(tok.Pos, StrayCondErrKind, tok.Value, ""))
			return
		}
		if tok.Kind == TokElse {
			pp.top().sawElse = true
		}
		pp.skip()
	case TokEndif:
		pp.sc.readLine()
		if len(pp.conds) == 0 {
			pp.report(makeSemErr(tok.Pos, StrayCondErrKind, tok.Value, ""))
			return
		}
		pp.conds = pp.conds[:len(pp.conds)-1]
	case TokInclude:
		pp.include(tok)
	case TokPragma:
		pp.pragma(tok)
	case TokErrorDir:
		pp.report(makeSemErr(tok.Pos, UserErrKind, pp.sc.readLine(), ""))
	case TokWarningDir:
		pp.c.rep.Warn(tok.Pos, "#warning %s", pp.sc.readLine())
	case TokLineDir, TokNullDir:
		pp.sc.readLine()
	default:
		pp.sc.readLine()
		pp.report(makeSemErr(tok.Pos, DirectiveErrKind, tok.Value, "unknown"))
	}
}

// splitIden splits a leading identifier off line. The remainder is not trimmed
// so that a function-like macro can be told apart from an object-like one.
func splitIden(line string) (string, string) {
	line = strings.TrimLeft(line, " \t")
	end := 0
	for end < len(line) && isIdenPart(rune(line[end])) {
		end++
	}
	return line[:end], line[end:]
}

func (pp *Preprocessor) define(tok Token) {
	name, rest := splitIden(pp.sc.readLine())
	if name == "" {
		pp.report(makeSemErr(tok.Pos, DirectiveErrKind, tok.Value, "malformed"))
		return
	}
	m := &macro{name: name}
	if strings.HasPrefix(rest, "(") {
		end := strings.IndexByte(rest, ')')
		if end < 0 {
			pp.report(makeSemErr(tok.Pos, DirectiveErrKind, tok.Value, "malformed"))
			return
		}
		m.fn = true
		for _, param := range strings.Split(rest[1:end], ",") {
			if param = strings.TrimSpace(param); param != "" {
				m.params = append(m.params, param)
			}
		}
		rest = rest[end+1:]
	}
	m.body = strings.TrimSpace(rest)
	pp.macros[name] = m
}

var pasteRe = regexp.MustCompile(`\s*##\s*`)

// substitute binds the parameters to the argument texts by whole word replacement.
func (m *macro) substitute(args []string) string {
	bind := make(map[string]string, len(m.params))
	for i, param := range m.params {
		bind[param] = args[i]
	}

	var sb strings.Builder
	body := m.body
	for i := 0; i < len(body); {
		ch := body[i]
		switch {
		case ch == '"' || ch == '\'':
			j := skipQuoted(body, i)
			sb.WriteString(body[i:j])
			i = j
		case isIdenStart(rune(ch)):
			j := i
			for j < len(body) && isIdenPart(rune(body[j])) {
				j++
			}
			word := body[i:j]
			if arg, ok := bind[word]; ok {
				sb.WriteString(arg)
			} else {
				sb.WriteString(word)
			}
			i = j
		default:
			sb.WriteByte(ch)
			i++
		}
	}
	return pasteRe.ReplaceAllString(sb.String(), "")
}

func skipQuoted(s string, i int) int {
	quote := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case quote:
			return j + 1
		}
	}
	return len(s)
}

// expand replaces a macro invocation with its expansion. It returns false
// when tok does not name a macro that can be expanded here.
func (pp *Preprocessor) expand(tok Token) bool {
	m, ok := pp.macros[tok.Value]
	if !ok || pp.sc.macroActive(m.name) {
		return false
	}
	body := pp.pasteAll(m.body)
	if m.fn {
		args, invoked, err := pp.sc.readMacroArgs()
		if !invoked {
			return false
		}
		if err != nil {
			pp.report(makeSemErr(tok.Pos, MacroArityErrKind, m.name, "has an "+err.Error()))
			return true
		}
		if len(m.params) == 0 && len(args) == 1 && args[0] == "" {
			args = nil
		}
		if len(args) != len(m.params) {
			detail := "expects " + pluralArgs(len(m.params))
			pp.report(makeSemErr(tok.Pos, MacroArityErrKind, m.name, detail))
			return true
		}
		body = m.substitute(args)
	}
	pp.sc.keepComment(tok.Comment)
	if err := pp.sc.scanString(m.name, body, tok.Pos); err != nil {
		pp.report(makeSemErr(tok.Pos, DepthErrKind, m.name, err.Error()))
	}
	return true
}

func (pp *Preprocessor) pasteAll(body string) string {
	return pasteRe.ReplaceAllString(body, "")
}

func pluralArgs(n int) string {
	switch n {
	case 0:
		return "no arguments"
	case 1:
		return "1 argument"
	}
	return fmt.Sprintf("%d arguments", n)
}

func (pp *Preprocessor) top() *condFrame {
	return &pp.conds[len(pp.conds)-1]
}

func (pp *Preprocessor) pushCond(tok Token, taken bool) {
	pp.conds = append(pp.conds, condFrame{directive: tok.Value, taken: taken, pos: tok.Pos, file: tok.Pos.File})
	if !taken {
		pp.skip()
	}
}

// skip discards source up to the directive that resumes scanning for the
// innermost conditional, tracking nested conditionals on the way.
func (pp *Preprocessor) skip() {
	depth := 0
	for {
		tok, ok := pp.sc.skipToDirective()
		if !ok {
			return
		}
		switch tok.Kind {
		case TokIf, TokIfdef, TokIfndef:
			pp.sc.readLine()
			depth++
		case TokEndif:
			pp.sc.readLine()
			if depth == 0 {
				pp.conds = pp.conds[:len(pp.conds)-1]
				return
			}
			depth--
		case TokElif:
			line := pp.sc.readLine()
			if depth == 0 {
				frame := pp.top()
				if !frame.taken && !frame.sawElse && pp.evalCond(tok, line) {
					frame.taken = true
					return
				}
			}
		case TokElse:
			pp.sc.readLine()
			if depth == 0 {
				frame := pp.top()
				frame.sawElse = true
				if !frame.taken {
					frame.taken = true
					return
				}
			}
		default:
			pp.sc.readLine()
		}
	}
}

type tokenList struct {
	tokens []Token
	curr   int
}

func (l *tokenList) peek() Token {
	return l.tokens[l.curr]
}

func (l *tokenList) eat() {
	if l.tokens[l.curr].Kind != TokEof {
		l.curr++
	}
}

func (pp *Preprocessor) evalCond(tok Token, line string) bool {
	src := &tokenList{tokens: tokenize(line, tok.Pos, pp.c.level)}
	if src.peek().Kind == TokEof {
		pp.report(makeSemErr(tok.Pos, DirectiveErrKind, tok.Value, "missing expression in"))
		return false
	}
	ev := evaluator{src: src, cond: true, name: pp.condName, report: pp.report}
	ex, err := ev.parse()
	if err == nil && src.peek().Kind != TokEof {
		err = makeExpectErr(src.peek(), TokEof).withContext("#" + tok.Value)
	}
	if err != nil {
		pp.report(err)
		return false
	}
	return ex.Lit.truthy()
}

// condName evaluates identifiers on #if lines: defined tests, macros, and
// zero for anything else.
func (pp *Preprocessor) condName(src tokenSource) (Expr, error) {
	tok := src.peek()
	if tok.Kind != TokIden {
		return Expr{}, makeExpectErr(tok, TokIden).withContext("#if")
	}
	src.eat()

	if tok.Value == "defined" {
		paren := src.peek().Kind == TokLParen
		if paren {
			src.eat()
		}
		name := src.peek()
		if name.Kind != TokIden {
			return Expr{}, makeExpectErr(name, TokIden).withContext("defined")
		}
		src.eat()
		if paren {
			if closing := src.peek(); closing.Kind != TokRParen {
				return Expr{}, makeExpectErr(closing, TokRParen).withContext("defined")
			}
			src.eat()
		}
		_, ok := pp.macros[name.Value]
		return Expr{Lit: Literal{Kind: BoolLit, Bool: ok}, Rep: "defined(" + name.Value + ")"}, nil
	}

	m, ok := pp.macros[tok.Value]
	if !ok || m.fn || pp.evaluating[m.name] {
		return Expr{Lit: intLit(0), Rep: tok.Value}, nil
	}
	pp.evaluating[m.name] = true
	defer delete(pp.evaluating, m.name)

	sub := &tokenList{tokens: tokenize(m.body, tok.Pos, pp.c.level)}
	if sub.peek().Kind == TokEof {
		return Expr{Lit: intLit(0), Rep: tok.Value}, nil
	}
	ev := evaluator{src: sub, cond: true, name: pp.condName, report: pp.report}
	ex, err := ev.parse()
	return Expr{Lit: ex.Lit, Rep: tok.Value}, err
}

func includeName(line string) (string, bool, bool) {
	line = strings.TrimSpace(line)
	if len(line) < 2 {
		return "", false, false
	}
	var closing byte
	switch line[0] {
	case '"':
		closing = '"'
	case '<':
		closing = '>'
	default:
		return "", false, false
	}
	end := strings.IndexByte(line[1:], closing)
	if end <= 0 {
		return "", false, false
	}
	return line[1 : end+1], closing == '>', true
}

func (pp *Preprocessor) include(tok Token) {
	name, angled, ok := includeName(pp.sc.readLine())
	if !ok {
		pp.report(makeSemErr(tok.Pos, DirectiveErrKind, tok.Value, "malformed"))
		return
	}
	path, data, err := pp.c.findInclude(name, angled, tok.Pos.File)
	if err != nil {
		pp.report(makeSemErr(tok.Pos, IncludeNotFoundErrKind, name, ""))
		return
	}
	if slices.Contains(pp.files, path) {
		pp.report(makeSemErr(tok.Pos, RecursiveIncludeErrKind, path, ""))
		return
	}

	pp.host.addInclude(name, path, tok.Pos)
	src := string(data)
	if err := pp.sc.pushFile(path, src, func() { pp.leaveFile(path) }); err != nil {
		pp.report(makeSemErr(tok.Pos, DepthErrKind, name, err.Error()))
		return
	}
	pp.c.rep.addSource(path, src)
	pp.c.rep.Infof("including %s", path)
	pp.files = append(pp.files, path)
	pp.c.pushFileRepScope()
}

func (pp *Preprocessor) leaveFile(path string) {
	pp.closeConds(path)
	pp.files = pp.files[:len(pp.files)-1]
	pp.c.popRepScope()
}

// closeConds reports conditionals opened in file that are still open when it ends.
func (pp *Preprocessor) closeConds(file string) {
	for len(pp.conds) > 0 && pp.top().file == file {
		frame := pp.conds[len(pp.conds)-1]
		pp.conds = pp.conds[:len(pp.conds)-1]
		pp.report(makeSemErr(frame.pos, UnterminatedCondErrKind, frame.directive, ""))
	}
}

// finish reports conditionals left open at the end of the compile.
func (pp *Preprocessor) finish() {
	for len(pp.conds) > 0 {
		pp.closeConds(pp.top().file)
	}
}

func (pp *Preprocessor) pragma(tok Token) {
	name, rest := splitIden(pp.sc.readLine())
	rest = strings.TrimSpace(rest)
	switch name {
	case "ID":
		pp.pragmaID(tok, rest)
	case "prefix":
		pp.pragmaPrefix(tok, rest)
	case "version":
		pp.pragmaVersion(tok, rest)
	default:
		for _, h := range pp.c.handlers {
			if h.Pragma(name, rest, tok.Pos) {
				return
			}
		}
		pp.host.addPragma(name, rest, tok.Pos)
	}
}

// pragmaTarget reads the scoped name that starts a pragma and resolves it.
func (pp *Preprocessor) pragmaTarget(tok Token, pragma string, src *tokenList) (*Entry, bool) {
	sn, err := parseScopedName(src)
	if err != nil {
		pp.report(makeSemErr(tok.Pos, PragmaErrKind, pragma, "expected a scoped name"))
		return nil, false
	}
	return pp.host.resolvePragmaTarget(sn), true
}

func (pp *Preprocessor) pragmaID(tok Token, text string) {
	src := &tokenList{tokens: tokenize(text, tok.Pos, pp.c.level)}
	e, ok := pp.pragmaTarget(tok, "ID", src)
	if !ok {
		return
	}
	idTok := src.peek()
	if idTok.Kind != TokString {
		pp.report(makeSemErr(tok.Pos, PragmaErrKind, "ID", "expected a repository ID string"))
		return
	}
	if e == nil {
		return
	}
	id := idTok.Value
	if !strings.Contains(id, ":") {
		pp.report(makeSemErr(tok.Pos, PragmaErrKind, "ID", "repository ID \""+id+"\" has no format"))
		return
	}
	if e.RepID.Explicit != "" && e.RepID.Explicit != id {
		pp.report(makeSemErr(tok.Pos, PragmaErrKind, "ID", e.ScopedName()+" already has repository ID \""+e.RepID.Explicit+"\""))
		return
	}
	e.RepID.Explicit = id
}

func (pp *Preprocessor) pragmaPrefix(tok Token, text string) {
	src := &tokenList{tokens: tokenize(text, tok.Pos, pp.c.level)}
	if src.peek().Kind != TokString {
		pp.report(makeSemErr(tok.Pos, PragmaErrKind, "prefix", "expected a string"))
		return
	}
	pp.c.setPrefix(src.peek().Value)
}

var versionRe = regexp.MustCompile(`^[0-9]+\.[0-9]+$`)

func (pp *Preprocessor) pragmaVersion(tok Token, text string) {
	src := &tokenList{tokens: tokenize(text, tok.Pos, pp.c.level)}
	e, ok := pp.pragmaTarget(tok, "version", src)
	if !ok {
		return
	}
	version := src.peek()
	if version.Kind != TokFloat || !versionRe.MatchString(version.Value) {
		pp.report(makeSemErr(tok.Pos, PragmaErrKind, "version", "expected <major>.<minor>"))
		return
	}
	if e == nil {
		return
	}
	if e.RepID.Explicit != "" {
		pp.report(makeSemErr(tok.Pos, PragmaErrKind, "version", e.ScopedName()+" already has an explicit repository ID"))
		return
	}
	e.RepID.Version = version.Value
}

func (pp *Preprocessor) openScope(e *Entry) {
	for _, h := range pp.c.handlers {
		if sh, ok := h.(ScopeHandler); ok {
			sh.OpenScope(e)
		}
	}
}

func (pp *Preprocessor) closeScope(e *Entry) {
	for _, h := range pp.c.handlers {
		if sh, ok := h.(ScopeHandler); ok {
			sh.CloseScope(e)
		}
	}
}
