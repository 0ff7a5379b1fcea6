package internal

import (
	"errors"
	"fmt"
	"strings"
)

// Diagnostic is implemented by every error the compiler reports against a source location.
type Diagnostic interface {
	error
	Position() Position
	Message() string
}

type LexErrKind int

const (
	InvalidCharErrKind LexErrKind = iota
	UnterminatedCommentErrKind
	UnterminatedLitErrKind
	EscSeqErrKind
	NumErrKind
	CharLenErrKind
	EscapedIdenErrKind
)

type LexErr struct {
	pos  Position
	kind LexErrKind
	text string
}

func makeLexErr(pos Position, kind LexErrKind, text string) error {
	return &LexErr{pos: pos, kind: kind, text: text}
}

func (err *LexErr) Position() Position { return err.pos }

func (err *LexErr) Message() string {
	switch err.kind {
	case InvalidCharErrKind:
		return fmt.Sprintf("invalid character '%s'", err.text)
	case UnterminatedCommentErrKind:
		return "unterminated comment"
	case UnterminatedLitErrKind:
		return fmt.Sprintf("unterminated literal, missing closing %s", err.text)
	case EscSeqErrKind:
		return "malformed escape sequence"
	case NumErrKind:
		return fmt.Sprintf("%s is not a valid number", err.text)
	case CharLenErrKind:
		return fmt.Sprintf("character literal '%s' must contain exactly one character", err.text)
	case EscapedIdenErrKind:
		return "an escaped identifier must have at least one character after '_'"
	}
	panic(fmt.Sprintf("assertion error: unknown lex errKind: %d", err.kind))
}

func (err *LexErr) Error() string {
	return err.pos.Header() + " " + err.Message()
}

type ParseErr struct {
	actual   Token
	expected []TokKind
	context  string
}

func makeExpectErr(actual Token, expected ...TokKind) *ParseErr {
	return &ParseErr{actual: actual, expected: expected}
}

// withContext names the production being parsed unless a nested production already did.
func (err *ParseErr) withContext(context string) *ParseErr {
	if err.context == "" {
		err.context = context
	}
	return err
}

func (err *ParseErr) token() Token {
	return err.actual
}

func (err *ParseErr) Position() Position { return err.actual.Pos }

func (err *ParseErr) Message() string {
	var sb strings.Builder

	sb.WriteString("expected ")
	for i, tok := range err.expected {
		dlm := ""
		if i == len(err.expected)-2 {
			dlm = " or "
		} else if i != len(err.expected)-1 {
			dlm = ", "
		}
		sb.WriteString(tok.String())
		sb.WriteString(dlm)
	}

	sb.WriteString(", found ")
	sb.WriteString(err.actual.Describe())

	if err.context != "" {
		sb.WriteString(" while parsing ")
		sb.WriteString(err.context)
	}
	return sb.String()
}

func (err *ParseErr) Error() string {
	return err.actual.Pos.Header() + " " + err.Message()
}

// withContext annotates err when it is a syntax error.
func withContext(err error, context string) error {
	var pErr *ParseErr
	if errors.As(err, &pErr) {
		pErr.withContext(context)
	}
	return err
}

var ErrEof = errors.New("reached end of stream while parsing")

type SemErrKind int

const (
	UndeclaredErrKind SemErrKind = iota
	RedeclaredErrKind
	CaseClashErrKind
	ModuleNotTypeErrKind
	NotTypeErrKind
	NotConstErrKind
	ExprTypeErrKind
	RangeErrKind
	NotPositiveErrKind
	EvalErrKind
	ConstTypeErrKind
	AlreadyDerivedErrKind
	NotInterfaceErrKind
	NotValueErrKind
	AbstractParentErrKind
	ConcreteParentErrKind
	LocalParentErrKind
	ForwardMismatchErrKind
	RepIDPrefixErrKind
	BoxForwardErrKind
	NestedBoxErrKind
	BoxModifierErrKind
	AbstractStateErrKind
	RecursiveErrKind
	IncompleteErrKind
	DefaultTwiceErrKind
	NoDefaultErrKind
	DupLabelErrKind
	DiscriminatorErrKind
	OnewayErrKind
	NotExceptionErrKind
	DupRaisesErrKind
	InitParamErrKind
	MethodClashErrKind
	UndefinedForwardErrKind
	NotInSameFileErrKind
	IncludeNotFoundErrKind
	RecursiveIncludeErrKind
	MacroArityErrKind
	DepthErrKind
	UnterminatedCondErrKind
	StrayCondErrKind
	PragmaErrKind
	DirectiveErrKind
	UserErrKind
)

type SemanticErr struct {
	pos    Position
	kind   SemErrKind
	name   string
	detail string
}

func makeSemErr(pos Position, kind SemErrKind, name string, detail string) error {
	return &SemanticErr{pos: pos, kind: kind, name: name, detail: detail}
}

func makeUndeclaredErr(pos Position, name string) error {
	return &SemanticErr{pos: pos, kind: UndeclaredErrKind, name: name}
}

func makeRedeclaredErr(pos Position, name string) error {
	return &SemanticErr{pos: pos, kind: RedeclaredErrKind, name: name}
}

func (err *SemanticErr) Position() Position { return err.pos }

func (err *SemanticErr) Kind() SemErrKind { return err.kind }

func (err *SemanticErr) Message() string {
	switch err.kind {
	case UndeclaredErrKind:
		return fmt.Sprintf("\"%s\" is undeclared", err.name)
	case RedeclaredErrKind:
		return fmt.Sprintf("\"%s\" is already declared", err.name)
	case CaseClashErrKind:
		return fmt.Sprintf("\"%s\" differs only in case from \"%s\"", err.name, err.detail)
	case ModuleNotTypeErrKind:
		return fmt.Sprintf("module \"%s\" is not a type", err.name)
	case NotTypeErrKind:
		return fmt.Sprintf("\"%s\" is not a type", err.name)
	case NotConstErrKind:
		return fmt.Sprintf("\"%s\" is not a constant", err.name)
	case ExprTypeErrKind:
		return fmt.Sprintf("%s cannot be assigned to %s", err.name, err.detail)
	case RangeErrKind:
		return fmt.Sprintf("%s is out of range for %s", err.name, err.detail)
	case NotPositiveErrKind:
		return fmt.Sprintf("%s must be a positive integer", err.name)
	case EvalErrKind:
		return fmt.Sprintf("cannot evaluate %s: %s", err.name, err.detail)
	case ConstTypeErrKind:
		return fmt.Sprintf("\"%s\" cannot be the type of a constant", err.name)
	case AlreadyDerivedErrKind:
		return fmt.Sprintf("\"%s\" is already inherited", err.name)
	case NotInterfaceErrKind:
		return fmt.Sprintf("\"%s\" is not an interface", err.name)
	case NotValueErrKind:
		return fmt.Sprintf("\"%s\" is not a value type", err.name)
	case AbstractParentErrKind:
		return fmt.Sprintf("abstract \"%s\" cannot inherit non-abstract \"%s\"", err.name, err.detail)
	case ConcreteParentErrKind:
		return fmt.Sprintf("\"%s\" can only inherit a concrete value first, found \"%s\"", err.name, err.detail)
	case LocalParentErrKind:
		return fmt.Sprintf("unconstrained \"%s\" cannot inherit local \"%s\"", err.name, err.detail)
	case ForwardMismatchErrKind:
		return fmt.Sprintf("\"%s\" does not match its forward declaration", err.name)
	case RepIDPrefixErrKind:
		return fmt.Sprintf("\"%s\" has a different repository prefix than its forward declaration", err.name)
	case BoxForwardErrKind:
		return fmt.Sprintf("value box \"%s\" cannot define a forward declared value", err.name)
	case NestedBoxErrKind:
		return fmt.Sprintf("value box \"%s\" cannot box another value box", err.name)
	case BoxModifierErrKind:
		return fmt.Sprintf("value box \"%s\" cannot be %s", err.name, err.detail)
	case AbstractStateErrKind:
		return fmt.Sprintf("abstract value \"%s\" cannot declare %s", err.name, err.detail)
	case RecursiveErrKind:
		return fmt.Sprintf("\"%s\" cannot contain a member of its own type", err.name)
	case IncompleteErrKind:
		return fmt.Sprintf("\"%s\" is incomplete and can only be used as a sequence element", err.name)
	case DefaultTwiceErrKind:
		return fmt.Sprintf("union \"%s\" has more than one default label", err.name)
	case NoDefaultErrKind:
		return fmt.Sprintf("union \"%s\" has more branches than its discriminator has values", err.name)
	case DupLabelErrKind:
		return fmt.Sprintf("case label %s is already used", err.name)
	case DiscriminatorErrKind:
		return fmt.Sprintf("\"%s\" cannot be a union discriminator", err.name)
	case OnewayErrKind:
		return fmt.Sprintf("oneway operation \"%s\" %s", err.name, err.detail)
	case NotExceptionErrKind:
		return fmt.Sprintf("\"%s\" is not an exception", err.name)
	case DupRaisesErrKind:
		return fmt.Sprintf("\"%s\" is already raised", err.name)
	case InitParamErrKind:
		return fmt.Sprintf("initializer parameter \"%s\" must be in", err.name)
	case MethodClashErrKind:
		return fmt.Sprintf("\"%s\" clashes with inherited \"%s\"", err.name, err.detail)
	case UndefinedForwardErrKind:
		return fmt.Sprintf("forward declaration \"%s\" is never defined", err.name)
	case NotInSameFileErrKind:
		return fmt.Sprintf("\"%s\" must be defined in the same file as its forward declaration", err.name)
	case IncludeNotFoundErrKind:
		return fmt.Sprintf("cannot find include file \"%s\"", err.name)
	case RecursiveIncludeErrKind:
		return fmt.Sprintf("\"%s\" includes itself", err.name)
	case MacroArityErrKind:
		return fmt.Sprintf("macro \"%s\" %s", err.name, err.detail)
	case DepthErrKind:
		return fmt.Sprintf("cannot expand \"%s\": %s", err.name, err.detail)
	case UnterminatedCondErrKind:
		return fmt.Sprintf("unterminated #%s", err.name)
	case StrayCondErrKind:
		return fmt.Sprintf("#%s without #if", err.name)
	case PragmaErrKind:
		return fmt.Sprintf("malformed #pragma %s: %s", err.name, err.detail)
	case DirectiveErrKind:
		return fmt.Sprintf("%s directive #%s", err.detail, err.name)
	case UserErrKind:
		return fmt.Sprintf("#error %s", err.name)
	}
	panic(fmt.Sprintf("assertion error: unknown semantic errKind: %d", err.kind))
}

func (err *SemanticErr) Error() string {
	return err.pos.Header() + " " + err.Message()
}
