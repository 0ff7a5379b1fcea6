package internal

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	TokErr TokKind = iota
	TokEof

	TokIden
	TokInteger
	TokFloat
	TokChar
	TokString

	TokSemicolon
	TokLBrace
	TokRBrace
	TokColon
	TokComma
	TokScope
	TokLParen
	TokRParen
	TokLAngle
	TokRAngle
	TokLBrack
	TokRBrack
	TokEqual
	TokPipe
	TokCaret
	TokAmp
	TokShl
	TokShr
	TokPlus
	TokMinus
	TokStar
	TokSlash
	TokPercent
	TokTilde
	TokBang
	TokOrOr
	TokAndAnd
	TokEqEq
	TokNotEq
	TokLessEq
	TokGreaterEq

	TokAbstract
	TokAny
	TokAttribute
	TokBoolean
	TokCase
	TokCharType
	TokConst
	TokContext
	TokCustom
	TokDefault
	TokDouble
	TokEnum
	TokException
	TokFactory
	TokFalse
	TokFixed
	TokFloatType
	TokIn
	TokInout
	TokInit
	TokInterface
	TokLocal
	TokLong
	TokModule
	TokNative
	TokObject
	TokOctet
	TokOneway
	TokOut
	TokPrivate
	TokPublic
	TokRaises
	TokReadonly
	TokSequence
	TokShort
	TokStringType
	TokStruct
	TokSupports
	TokSwitch
	TokTrue
	TokTruncatable
	TokTypedef
	TokUnion
	TokUnsigned
	TokValueBase
	TokValuetype
	TokVoid
	TokWChar
	TokWString

	TokComponent
	TokConsumes
	TokEmits
	TokEventtype
	TokFinder
	TokGetraises
	TokHome
	TokImport
	TokMultiple
	TokPrimarykey
	TokProvides
	TokPublishes
	TokSetraises
	TokTypeid
	TokTypeprefix
	TokUses

	TokDefine
	TokUndef
	TokIf
	TokIfdef
	TokIfndef
	TokElif
	TokElse
	TokEndif
	TokInclude
	TokPragma
	TokErrorDir
	TokWarningDir
	TokLineDir
	TokNullDir
	TokUnknownDir
)

type TokKind int

var tokNames = map[TokKind]string{
	TokErr:       "<error>",
	TokEof:       "<eof>",
	TokIden:      "<identifier>",
	TokInteger:   "<integer>",
	TokFloat:     "<float>",
	TokChar:      "<character>",
	TokString:    "<string>",
	TokSemicolon: "';'",
	TokLBrace:    "'{'",
	TokRBrace:    "'}'",
	TokColon:     "':'",
	TokComma:     "','",
	TokScope:     "'::'",
	TokLParen:    "'('",
	TokRParen:    "')'",
	TokLAngle:    "'<'",
	TokRAngle:    "'>'",
	TokLBrack:    "'['",
	TokRBrack:    "']'",
	TokEqual:     "'='",
	TokPipe:      "'|'",
	TokCaret:     "'^'",
	TokAmp:       "'&'",
	TokShl:       "'<<'",
	TokShr:       "'>>'",
	TokPlus:      "'+'",
	TokMinus:     "'-'",
	TokStar:      "'*'",
	TokSlash:     "'/'",
	TokPercent:   "'%'",
	TokTilde:     "'~'",
	TokBang:      "'!'",
	TokOrOr:      "'||'",
	TokAndAnd:    "'&&'",
	TokEqEq:      "'=='",
	TokNotEq:     "'!='",
	TokLessEq:    "'<='",
	TokGreaterEq: "'>='",
	TokNullDir:   "'#'",
}

func (t TokKind) String() string {
	if s, ok := tokNames[t]; ok {
		return s
	}
	return ""
}

func (t TokKind) isDirective() bool {
	return t >= TokDefine && t <= TokUnknownDir
}

// Level is the revision of the language grammar a compile is run against.
type Level int

const (
	Level22 Level = iota + 1
	Level23
	Level24
	Level30
)

const DefaultLevel = Level24

func ParseLevel(s string) (Level, error) {
	switch s {
	case "2.2":
		return Level22, nil
	case "2.3":
		return Level23, nil
	case "", "2.4":
		return Level24, nil
	case "3.0":
		return Level30, nil
	}
	return 0, fmt.Errorf("unknown language level %q, expected 2.2, 2.3, 2.4 or 3.0", s)
}

func (l Level) String() string {
	switch l {
	case Level22:
		return "2.2"
	case Level23:
		return "2.3"
	case Level24:
		return "2.4"
	case Level30:
		return "3.0"
	}
	return "<unknown>"
}

type keyword struct {
	kind       TokKind
	since      Level
	deprecated Level // 0 when the keyword is never deprecated
}

var keywords = map[string]keyword{
	"abstract":    {TokAbstract, Level23, 0},
	"any":         {TokAny, Level22, 0},
	"attribute":   {TokAttribute, Level22, 0},
	"boolean":     {TokBoolean, Level22, 0},
	"case":        {TokCase, Level22, 0},
	"char":        {TokCharType, Level22, 0},
	"const":       {TokConst, Level22, 0},
	"context":     {TokContext, Level22, 0},
	"custom":      {TokCustom, Level23, 0},
	"default":     {TokDefault, Level22, 0},
	"double":      {TokDouble, Level22, 0},
	"enum":        {TokEnum, Level22, 0},
	"exception":   {TokException, Level22, 0},
	"factory":     {TokFactory, Level24, 0},
	"FALSE":       {TokFalse, Level22, 0},
	"fixed":       {TokFixed, Level22, 0},
	"float":       {TokFloatType, Level22, 0},
	"in":          {TokIn, Level22, 0},
	"inout":       {TokInout, Level22, 0},
	"init":        {TokInit, Level23, Level24},
	"interface":   {TokInterface, Level22, 0},
	"local":       {TokLocal, Level24, 0},
	"long":        {TokLong, Level22, 0},
	"module":      {TokModule, Level22, 0},
	"native":      {TokNative, Level22, 0},
	"Object":      {TokObject, Level22, 0},
	"octet":       {TokOctet, Level22, 0},
	"oneway":      {TokOneway, Level22, 0},
	"out":         {TokOut, Level22, 0},
	"private":     {TokPrivate, Level23, 0},
	"public":      {TokPublic, Level23, 0},
	"raises":      {TokRaises, Level22, 0},
	"readonly":    {TokReadonly, Level22, 0},
	"sequence":    {TokSequence, Level22, 0},
	"short":       {TokShort, Level22, 0},
	"string":      {TokStringType, Level22, 0},
	"struct":      {TokStruct, Level22, 0},
	"supports":    {TokSupports, Level23, 0},
	"switch":      {TokSwitch, Level22, 0},
	"TRUE":        {TokTrue, Level22, 0},
	"truncatable": {TokTruncatable, Level23, 0},
	"typedef":     {TokTypedef, Level22, 0},
	"union":       {TokUnion, Level22, 0},
	"unsigned":    {TokUnsigned, Level22, 0},
	"ValueBase":   {TokValueBase, Level23, 0},
	"valuetype":   {TokValuetype, Level23, 0},
	"void":        {TokVoid, Level22, 0},
	"wchar":       {TokWChar, Level22, 0},
	"wstring":     {TokWString, Level22, 0},

	"component":  {TokComponent, Level30, 0},
	"consumes":   {TokConsumes, Level30, 0},
	"emits":      {TokEmits, Level30, 0},
	"eventtype":  {TokEventtype, Level30, 0},
	"finder":     {TokFinder, Level30, 0},
	"getraises":  {TokGetraises, Level30, 0},
	"home":       {TokHome, Level30, 0},
	"import":     {TokImport, Level30, 0},
	"multiple":   {TokMultiple, Level30, 0},
	"primarykey": {TokPrimarykey, Level30, 0},
	"provides":   {TokProvides, Level30, 0},
	"publishes":  {TokPublishes, Level30, 0},
	"setraises":  {TokSetraises, Level30, 0},
	"typeid":     {TokTypeid, Level30, 0},
	"typeprefix": {TokTypeprefix, Level30, 0},
	"uses":       {TokUses, Level30, 0},
}

var lowerKeywords = func() map[string]string {
	m := make(map[string]string, len(keywords))
	for k := range keywords {
		m[strings.ToLower(k)] = k
	}
	return m
}()

var directives = map[string]TokKind{
	"define":  TokDefine,
	"undef":   TokUndef,
	"if":      TokIf,
	"ifdef":   TokIfdef,
	"ifndef":  TokIfndef,
	"elif":    TokElif,
	"else":    TokElse,
	"endif":   TokEndif,
	"include": TokInclude,
	"pragma":  TokPragma,
	"error":   TokErrorDir,
	"warning": TokWarningDir,
	"line":    TokLineDir,
}

func init() {
	for word, kw := range keywords {
		tokNames[kw.kind] = "'" + word + "'"
	}
	for word, kind := range directives {
		tokNames[kind] = "'#" + word + "'"
	}
	tokNames[TokUnknownDir] = "<directive>"
}

type Position struct {
	File string
	Line int
	Col  int
}

func (p Position) Header() string {
	return fmt.Sprintf("%s:%d:", p.File, p.Line)
}

type TokVal struct {
	Kind  TokKind
	Value string
}

func (t TokVal) String() string {
	return t.Value
}

type Token struct {
	TokVal
	Pos        Position
	Comment    string
	Escaped    bool // written with a leading underscore
	Collides   bool // a keyword at another language level or in another case
	Deprecated bool
	Wide       bool
	Err        error // set on TokErr tokens
}

// Describe renders the token the way diagnostics quote it.
func (t Token) Describe() string {
	switch t.Kind {
	case TokEof, TokErr:
		return t.Kind.String()
	case TokString:
		return fmt.Sprintf("%q", t.Value)
	case TokChar:
		return fmt.Sprintf("'%s'", t.Value)
	}
	return "'" + t.Value + "'"
}

type scanContext struct {
	file    string
	input   string
	curr    int
	width   int
	line    int
	col     int
	bol     bool // only whitespace seen since the start of the line
	isMacro bool
	macro   string
	origin  Position // invocation site of a macro expansion
	onExit  func()
}

// Scanner turns source text into tokens. Included files and macro expansions
// are pushed as nested contexts; running off the end of a nested context
// resumes the enclosing one.
type Scanner struct {
	ctxs    []*scanContext
	level   Level
	comment []string
	start   Position
}

const maxScanDepth = 1024

const eof = 0

const digits = "0123456789"
const hexDigits = "0123456789abcdefABCDEF"
const octDigits = "01234567"

func newScanner(level Level) *Scanner {
	if level == 0 {
		level = DefaultLevel
	}
	return &Scanner{level: level}
}

var errScanDepth = fmt.Errorf("nesting deeper than %d contexts", maxScanDepth)

func (s *Scanner) pushFile(file string, input string, onExit func()) error {
	if len(s.ctxs) >= maxScanDepth {
		return errScanDepth
	}
	s.ctxs = append(s.ctxs, &scanContext{file: file, input: input, line: 1, col: 1, bol: true, onExit: onExit})
	return nil
}

// scanString redirects scanning to the expansion text of a macro invoked at pos.
func (s *Scanner) scanString(macro string, text string, pos Position) error {
	if len(s.ctxs) >= maxScanDepth {
		return errScanDepth
	}
	s.ctxs = append(s.ctxs, &scanContext{
		file: pos.File, input: text, line: 1, col: 1, isMacro: true, macro: macro, origin: pos,
	})
	return nil
}

func (s *Scanner) macroActive(name string) bool {
	for _, ctx := range s.ctxs {
		if ctx.isMacro && ctx.macro == name {
			return true
		}
	}
	return false
}

func (s *Scanner) keepComment(comment string) {
	if comment != "" {
		s.comment = append([]string{comment}, s.comment...)
	}
}

func (s *Scanner) top() *scanContext {
	return s.ctxs[len(s.ctxs)-1]
}

func (s *Scanner) pop() {
	ctx := s.top()
	s.ctxs = s.ctxs[:len(s.ctxs)-1]
	if ctx.onExit != nil {
		ctx.onExit()
	}
}

func (s *Scanner) position() Position {
	ctx := s.top()
	if ctx.isMacro {
		return ctx.origin
	}
	return Position{File: ctx.file, Line: ctx.line, Col: ctx.col}
}

func (s *Scanner) mark() {
	s.start = s.position()
}

func (s *Scanner) peek() rune {
	ctx := s.top()
	if ctx.curr >= len(ctx.input) {
		ctx.width = 0
		return eof
	}
	var r rune
	r, ctx.width = utf8.DecodeRuneInString(ctx.input[ctx.curr:])
	return r
}

// peekByte looks n bytes past the current position.
func (s *Scanner) peekByte(n int) byte {
	ctx := s.top()
	if ctx.curr+n >= len(ctx.input) {
		return eof
	}
	return ctx.input[ctx.curr+n]
}

func (s *Scanner) consume() {
	ctx := s.top()
	if ctx.curr >= len(ctx.input) {
		return
	}
	r, w := utf8.DecodeRuneInString(ctx.input[ctx.curr:])
	ctx.curr += w
	switch r {
	case '\n':
		ctx.line++
		ctx.col = 1
		ctx.bol = true
	case ' ', '\t', '\r', '\f', '\v':
		ctx.col++
	default:
		ctx.col++
		ctx.bol = false
	}
}

func (s *Scanner) accept(valid string) bool {
	if r := s.peek(); r != eof && strings.ContainsRune(valid, r) {
		s.consume()
		return true
	}
	return false
}

func (s *Scanner) acceptWhile(valid string) int {
	n := 0
	for s.accept(valid) {
		n++
	}
	return n
}

func isIdenStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdenPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func (s *Scanner) makeToken(kind TokKind, value string) Token {
	tok := Token{TokVal: TokVal{Kind: kind, Value: value}, Pos: s.start}
	if len(s.comment) > 0 {
		tok.Comment = strings.Join(s.comment, "\n")
		s.comment = s.comment[:0]
	}
	return tok
}

func (s *Scanner) errToken(kind LexErrKind, text string) Token {
	tok := Token{TokVal: TokVal{Kind: TokErr, Value: text}, Pos: s.start}
	tok.Err = makeLexErr(s.start, kind, text)
	return tok
}

func (s *Scanner) next() Token {
	for {
		if tok, ok := s.skipSpace(); !ok {
			return tok
		}
		ctx := s.top()
		if ctx.curr >= len(ctx.input) {
			if len(s.ctxs) == 1 {
				s.mark()
				return s.makeToken(TokEof, "")
			}
			s.pop()
			continue
		}
		return s.lex()
	}
}

func (s *Scanner) skipSpace() (Token, bool) {
	for {
		r := s.peek()
		switch {
		case r == ' ' || r == '\t' || r == '\r' || r == '\n' || r == '\f' || r == '\v':
			s.consume()
		case r == '/' && s.peekByte(1) == '/':
			s.comment = append(s.comment, s.lineComment())
		case r == '/' && s.peekByte(1) == '*':
			s.mark()
			text, ok := s.blockComment()
			if !ok {
				return s.errToken(UnterminatedCommentErrKind, "/*"), false
			}
			s.comment = append(s.comment, text)
		default:
			return Token{}, true
		}
	}
}

func (s *Scanner) lineComment() string {
	ctx := s.top()
	begin := ctx.curr
	for r := s.peek(); r != '\n' && r != eof; r = s.peek() {
		s.consume()
	}
	return strings.TrimRight(ctx.input[begin:ctx.curr], "\r")
}

func (s *Scanner) blockComment() (string, bool) {
	ctx := s.top()
	begin := ctx.curr
	s.consume()
	s.consume()
	for {
		r := s.peek()
		if r == eof {
			return "", false
		}
		if r == '*' && s.peekByte(1) == '/' {
			s.consume()
			s.consume()
			return ctx.input[begin:ctx.curr], true
		}
		s.consume()
	}
}

func (s *Scanner) lex() Token {
	s.mark()
	ctx := s.top()
	r := s.peek()
	switch {
	case r == '#':
		if ctx.bol && !ctx.isMacro {
			return s.lexDirective()
		}
		s.consume()
		return s.errToken(InvalidCharErrKind, "#")
	case isIdenStart(r):
		return s.lexIden()
	case isDigit(r) || (r == '.' && isDigit(rune(s.peekByte(1)))):
		return s.lexNumber()
	case r == '\'':
		return s.lexChar(false)
	case r == '"':
		return s.lexString(false)
	}

	s.consume()
	switch r {
	case ';':
		return s.makeToken(TokSemicolon, ";")
	case '{':
		return s.makeToken(TokLBrace, "{")
	case '}':
		return s.makeToken(TokRBrace, "}")
	case ',':
		return s.makeToken(TokComma, ",")
	case '(':
		return s.makeToken(TokLParen, "(")
	case ')':
		return s.makeToken(TokRParen, ")")
	case '[':
		return s.makeToken(TokLBrack, "[")
	case ']':
		return s.makeToken(TokRBrack, "]")
	case '^':
		return s.makeToken(TokCaret, "^")
	case '+':
		return s.makeToken(TokPlus, "+")
	case '-':
		return s.makeToken(TokMinus, "-")
	case '*':
		return s.makeToken(TokStar, "*")
	case '/':
		return s.makeToken(TokSlash, "/")
	case '%':
		return s.makeToken(TokPercent, "%")
	case '~':
		return s.makeToken(TokTilde, "~")
	case ':':
		if s.accept(":") {
			return s.makeToken(TokScope, "::")
		}
		return s.makeToken(TokColon, ":")
	case '<':
		if s.accept("<") {
			return s.makeToken(TokShl, "<<")
		}
		if s.accept("=") {
			return s.makeToken(TokLessEq, "<=")
		}
		return s.makeToken(TokLAngle, "<")
	case '>':
		if s.accept(">") {
			return s.makeToken(TokShr, ">>")
		}
		if s.accept("=") {
			return s.makeToken(TokGreaterEq, ">=")
		}
		return s.makeToken(TokRAngle, ">")
	case '|':
		if s.accept("|") {
			return s.makeToken(TokOrOr, "||")
		}
		return s.makeToken(TokPipe, "|")
	case '&':
		if s.accept("&") {
			return s.makeToken(TokAndAnd, "&&")
		}
		return s.makeToken(TokAmp, "&")
	case '=':
		if s.accept("=") {
			return s.makeToken(TokEqEq, "==")
		}
		return s.makeToken(TokEqual, "=")
	case '!':
		if s.accept("=") {
			return s.makeToken(TokNotEq, "!=")
		}
		return s.makeToken(TokBang, "!")
	}
	return s.errToken(InvalidCharErrKind, string(r))
}

func (s *Scanner) lexDirective() Token {
	s.consume()
	s.acceptWhile(" \t")
	ctx := s.top()
	begin := ctx.curr
	for isIdenPart(s.peek()) {
		s.consume()
	}
	name := ctx.input[begin:ctx.curr]
	if kind, ok := directives[name]; ok {
		return s.makeToken(kind, name)
	}
	if name == "" {
		return s.makeToken(TokNullDir, "")
	}
	return s.makeToken(TokUnknownDir, name)
}

func (s *Scanner) lexIden() Token {
	ctx := s.top()
	if s.peek() == 'L' {
		switch s.peekByte(1) {
		case '\'':
			s.consume()
			return s.lexChar(true)
		case '"':
			s.consume()
			return s.lexString(true)
		}
	}
	begin := ctx.curr
	escaped := s.accept("_")
	for isIdenPart(s.peek()) {
		s.consume()
	}
	lexeme := ctx.input[begin:ctx.curr]
	if escaped {
		if len(lexeme) == 1 {
			return s.errToken(EscapedIdenErrKind, lexeme)
		}
		tok := s.makeToken(TokIden, lexeme[1:])
		tok.Escaped = true
		return tok
	}
	return s.classify(lexeme)
}

func (s *Scanner) classify(lexeme string) Token {
	if kw, ok := keywords[lexeme]; ok {
		if kw.since > s.level {
			tok := s.makeToken(TokIden, lexeme)
			tok.Collides = true
			return tok
		}
		tok := s.makeToken(kw.kind, lexeme)
		tok.Deprecated = kw.deprecated != 0 && s.level >= kw.deprecated
		return tok
	}
	tok := s.makeToken(TokIden, lexeme)
	if _, ok := lowerKeywords[strings.ToLower(lexeme)]; ok {
		tok.Collides = true
	}
	return tok
}

func (s *Scanner) lexNumber() Token {
	ctx := s.top()
	begin := ctx.curr
	kind := TokInteger
	if s.peek() == '0' && (s.peekByte(1) == 'x' || s.peekByte(1) == 'X') {
		s.consume()
		s.consume()
		if s.acceptWhile(hexDigits) == 0 {
			return s.numErr(begin)
		}
	} else {
		s.acceptWhile(digits)
		if s.accept(".") {
			kind = TokFloat
			s.acceptWhile(digits)
		}
		if s.accept("eE") {
			kind = TokFloat
			s.accept("+-")
			if s.acceptWhile(digits) == 0 {
				return s.numErr(begin)
			}
		}
		lexeme := ctx.input[begin:ctx.curr]
		if kind == TokInteger && len(lexeme) > 1 && lexeme[0] == '0' && strings.ContainsAny(lexeme, "89") {
			return s.numErr(begin)
		}
	}
	if isIdenPart(s.peek()) {
		return s.numErr(begin)
	}
	return s.makeToken(kind, ctx.input[begin:ctx.curr])
}

func (s *Scanner) numErr(begin int) Token {
	ctx := s.top()
	for isIdenPart(s.peek()) || s.peek() == '.' {
		s.consume()
	}
	return s.errToken(NumErrKind, ctx.input[begin:ctx.curr])
}

var escapes = map[rune]rune{
	'n': '\n', 't': '\t', 'v': '\v', 'b': '\b', 'r': '\r', 'f': '\f', 'a': '\a',
	'\\': '\\', '?': '?', '\'': '\'', '"': '"',
}

// lexEscape decodes the escape sequence starting at the current backslash.
func (s *Scanner) lexEscape() (rune, bool) {
	s.consume()
	r := s.peek()
	if ch, ok := escapes[r]; ok {
		s.consume()
		return ch, true
	}
	switch {
	case r == 'x':
		s.consume()
		return s.escDigits(hexDigits, 16, 2)
	case r == 'u':
		s.consume()
		return s.escDigits(hexDigits, 16, 4)
	case strings.ContainsRune(octDigits, r) && r != eof:
		return s.escDigits(octDigits, 8, 3)
	}
	return 0, false
}

func (s *Scanner) escDigits(valid string, base rune, max int) (rune, bool) {
	var v rune
	n := 0
	for ; n < max; n++ {
		r := s.peek()
		if r == eof || !strings.ContainsRune(valid, r) {
			break
		}
		s.consume()
		v = v*base + digitVal(r)
	}
	return v, n > 0
}

func digitVal(r rune) rune {
	switch {
	case r >= '0' && r <= '9':
		return r - '0'
	case r >= 'a' && r <= 'f':
		return r - 'a' + 10
	case r >= 'A' && r <= 'F':
		return r - 'A' + 10
	}
	return 0
}

// lexQuoted reads a literal closed by quote, decoding escapes on the way.
func (s *Scanner) lexQuoted(quote rune) (string, *Token) {
	s.consume()
	var sb strings.Builder
	for {
		r := s.peek()
		switch {
		case r == eof || r == '\n':
			tok := s.errToken(UnterminatedLitErrKind, string(quote))
			return "", &tok
		case r == quote:
			s.consume()
			return sb.String(), nil
		case r == '\\':
			ch, ok := s.lexEscape()
			if !ok {
				s.resync(quote)
				tok := s.errToken(EscSeqErrKind, "\\")
				return "", &tok
			}
			sb.WriteRune(ch)
		default:
			s.consume()
			sb.WriteRune(r)
		}
	}
}

// resync skips the rest of a malformed literal.
func (s *Scanner) resync(quote rune) {
	for r := s.peek(); r != eof && r != '\n'; r = s.peek() {
		s.consume()
		if r == quote {
			return
		}
	}
}

func (s *Scanner) lexChar(wide bool) Token {
	value, errTok := s.lexQuoted('\'')
	if errTok != nil {
		return *errTok
	}
	if utf8.RuneCountInString(value) != 1 {
		return s.errToken(CharLenErrKind, value)
	}
	tok := s.makeToken(TokChar, value)
	tok.Wide = wide
	return tok
}

func (s *Scanner) lexString(wide bool) Token {
	value, errTok := s.lexQuoted('"')
	if errTok != nil {
		return *errTok
	}
	tok := s.makeToken(TokString, value)
	tok.Wide = wide
	return tok
}

// readLine returns the remainder of the current line with continuation lines
// joined and comments removed. The terminating newline is consumed.
func (s *Scanner) readLine() string {
	var sb strings.Builder
	for {
		r := s.peek()
		switch {
		case r == eof:
			return strings.TrimSpace(sb.String())
		case r == '\n':
			s.consume()
			return strings.TrimSpace(sb.String())
		case r == '\\' && (s.peekByte(1) == '\n' || (s.peekByte(1) == '\r' && s.peekByte(2) == '\n')):
			s.consume()
			s.accept("\r")
			s.consume()
			sb.WriteByte(' ')
		case r == '/' && s.peekByte(1) == '/':
			for r := s.peek(); r != '\n' && r != eof; r = s.peek() {
				s.consume()
			}
		case r == '/' && s.peekByte(1) == '*':
			s.blockComment()
			sb.WriteByte(' ')
		case r == '"' || r == '\'':
			s.copyQuoted(&sb, r)
		default:
			s.consume()
			sb.WriteRune(r)
		}
	}
}

// copyQuoted copies a quoted literal verbatim, stopping at the end of the line.
func (s *Scanner) copyQuoted(sb *strings.Builder, quote rune) {
	s.consume()
	sb.WriteRune(quote)
	for {
		r := s.peek()
		switch {
		case r == eof || r == '\n':
			return
		case r == '\\':
			s.consume()
			sb.WriteRune(r)
			if next := s.peek(); next != eof && next != '\n' {
				s.consume()
				sb.WriteRune(next)
			}
		default:
			s.consume()
			sb.WriteRune(r)
			if r == quote {
				return
			}
		}
	}
}

// skipToDirective skips the text of an excluded conditional branch and
// returns the next directive. It returns false at the end of the context.
func (s *Scanner) skipToDirective() (Token, bool) {
	var discard strings.Builder
	for {
		ctx := s.top()
		r := s.peek()
		switch {
		case r == eof:
			return Token{}, false
		case r == '#' && ctx.bol && !ctx.isMacro:
			s.mark()
			s.comment = s.comment[:0]
			return s.lexDirective(), true
		case r == '/' && s.peekByte(1) == '*':
			s.blockComment()
		case r == '/' && s.peekByte(1) == '/':
			s.lineComment()
		case r == '"' || r == '\'':
			s.copyQuoted(&discard, r)
			discard.Reset()
		default:
			s.consume()
		}
	}
}

// readMacroArgs reads the parenthesized argument list of a function-like
// macro invocation. When no '(' follows, the input is left untouched and
// false is returned.
func (s *Scanner) readMacroArgs() ([]string, bool, error) {
	ctx := s.top()
	saved := *ctx
	for r := s.peek(); r == ' ' || r == '\t' || r == '\r' || r == '\n'; r = s.peek() {
		s.consume()
	}
	if s.peek() != '(' {
		*ctx = saved
		return nil, false, nil
	}
	s.consume()

	var args []string
	var sb strings.Builder
	depth := 0
	for {
		r := s.peek()
		switch {
		case r == eof:
			return nil, true, fmt.Errorf("unterminated argument list")
		case r == '(':
			depth++
			s.consume()
			sb.WriteRune(r)
		case r == ')' && depth == 0:
			s.consume()
			return append(args, strings.TrimSpace(sb.String())), true, nil
		case r == ')':
			depth--
			s.consume()
			sb.WriteRune(r)
		case r == ',' && depth == 0:
			s.consume()
			args = append(args, strings.TrimSpace(sb.String()))
			sb.Reset()
		case r == '"' || r == '\'':
			s.copyQuoted(&sb, r)
		case r == '\n' || r == '\r':
			s.consume()
			sb.WriteByte(' ')
		default:
			s.consume()
			sb.WriteRune(r)
		}
	}
}

// tokenize scans a standalone piece of text, as found on a directive line.
func tokenize(text string, pos Position, level Level) []Token {
	sc := newScanner(level)
	_ = sc.pushFile(pos.File, text, nil)
	sc.top().line = pos.Line
	sc.top().bol = false
	var tokens []Token
	for {
		tok := sc.next()
		tokens = append(tokens, tok)
		if tok.Kind == TokEof {
			return tokens
		}
	}
}
