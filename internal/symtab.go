package internal

import (
	"fmt"
	"strings"
)

// Ref is a handle to an entry owned by a Symtab. NoRef marks an absent or
// unresolved reference.
type Ref int32

const NoRef Ref = 0

type EntryKind int

const (
	ModuleEntryKind EntryKind = iota
	InterfaceEntryKind
	ForwardEntryKind
	ValueEntryKind
	ValueBoxEntryKind
	ForwardValueEntryKind
	StructEntryKind
	UnionEntryKind
	EnumEntryKind
	EnumeratorEntryKind
	ExceptionEntryKind
	TypedefEntryKind
	MemberEntryKind
	SequenceEntryKind
	StringEntryKind
	PrimitiveEntryKind
	ConstEntryKind
	AttributeEntryKind
	MethodEntryKind
	ParameterEntryKind
	NativeEntryKind
	PragmaEntryKind
	IncludeEntryKind
)

func (k EntryKind) String() string {
	switch k {
	case ModuleEntryKind:
		return "module"
	case InterfaceEntryKind:
		return "interface"
	case ForwardEntryKind:
		return "forward interface"
	case ValueEntryKind:
		return "valuetype"
	case ValueBoxEntryKind:
		return "value box"
	case ForwardValueEntryKind:
		return "forward valuetype"
	case StructEntryKind:
		return "struct"
	case UnionEntryKind:
		return "union"
	case EnumEntryKind:
		return "enum"
	case EnumeratorEntryKind:
		return "enumerator"
	case ExceptionEntryKind:
		return "exception"
	case TypedefEntryKind:
		return "typedef"
	case MemberEntryKind:
		return "member"
	case SequenceEntryKind:
		return "sequence"
	case StringEntryKind:
		return "string"
	case PrimitiveEntryKind:
		return "primitive"
	case ConstEntryKind:
		return "const"
	case AttributeEntryKind:
		return "attribute"
	case MethodEntryKind:
		return "operation"
	case ParameterEntryKind:
		return "parameter"
	case NativeEntryKind:
		return "native"
	case PragmaEntryKind:
		return "pragma"
	case IncludeEntryKind:
		return "include"
	}
	return "<unknown>"
}

// isType reports whether entries of this kind can appear where a type is expected.
func (k EntryKind) isType() bool {
	switch k {
	case InterfaceEntryKind, ForwardEntryKind, ValueEntryKind, ValueBoxEntryKind, ForwardValueEntryKind,
		StructEntryKind, UnionEntryKind, EnumEntryKind, TypedefEntryKind, SequenceEntryKind,
		StringEntryKind, PrimitiveEntryKind, NativeEntryKind:
		return true
	}
	return false
}

type PrimKind int

const (
	PrimNone PrimKind = iota
	PrimShort
	PrimUShort
	PrimLong
	PrimULong
	PrimLongLong
	PrimULongLong
	PrimFloat
	PrimDouble
	PrimLongDouble
	PrimChar
	PrimWChar
	PrimBoolean
	PrimOctet
	PrimAny
	PrimString
	PrimWString
	PrimEnum
)

var primNames = map[PrimKind]string{
	PrimShort:      "short",
	PrimUShort:     "unsigned short",
	PrimLong:       "long",
	PrimULong:      "unsigned long",
	PrimLongLong:   "long long",
	PrimULongLong:  "unsigned long long",
	PrimFloat:      "float",
	PrimDouble:     "double",
	PrimLongDouble: "long double",
	PrimChar:       "char",
	PrimWChar:      "wchar",
	PrimBoolean:    "boolean",
	PrimOctet:      "octet",
	PrimAny:        "any",
	PrimString:     "string",
	PrimWString:    "wstring",
	PrimEnum:       "enum",
}

func (k PrimKind) String() string {
	if s, ok := primNames[k]; ok {
		return s
	}
	return "<none>"
}

func (k PrimKind) isInteger() bool {
	return k >= PrimShort && k <= PrimULongLong || k == PrimOctet
}

func (k PrimKind) isFloat() bool {
	return k == PrimFloat || k == PrimDouble || k == PrimLongDouble
}

// RepID is a repository identifier. Explicit holds an identifier assigned
// with #pragma ID and takes precedence over the derived form.
type RepID struct {
	Prefix   string
	Name     string
	Version  string
	Explicit string
}

func (id RepID) String() string {
	if id.Explicit != "" {
		return id.Explicit
	}
	var sb strings.Builder
	sb.WriteString("IDL:")
	if id.Prefix != "" {
		sb.WriteString(id.Prefix)
		sb.WriteByte('/')
	}
	sb.WriteString(id.Name)
	sb.WriteByte(':')
	if id.Version == "" {
		sb.WriteString("1.0")
	} else {
		sb.WriteString(id.Version)
	}
	return sb.String()
}

// Entry is a single declaration. Fields shared by every kind live here, the
// kind specific part lives in Data.
type Entry struct {
	Kind         EntryKind
	Name         string
	Container    Ref
	RepID        RepID
	File         string
	Pos          Position
	Comment      string
	Referencable bool
	Emit         bool
	Builtin      bool

	// Type is the element, aliased, member, parameter, attribute, constant or
	// return type, depending on Kind.
	Type Ref

	SupersededBy Ref
	Contained    []Ref
	Referrers    []Ref // entries whose Type points at this entry while it is incomplete

	Data any

	self Ref
	path string
}

func (e *Entry) Ref() Ref {
	return e.self
}

// FullName is the slash separated qualified name.
func (e *Entry) FullName() string {
	return e.path
}

// ScopedName renders the qualified name the way it is written in source.
func (e *Entry) ScopedName() string {
	if e.Builtin {
		return e.Name
	}
	return "::" + strings.ReplaceAll(e.path, "/", "::")
}

func (e *Entry) String() string {
	return fmt.Sprintf("%s %s", e.Kind, e.ScopedName())
}

type IfaceFlavor int

const (
	NormalFlavor IfaceFlavor = iota
	AbstractFlavor
	LocalFlavor
)

func (f IfaceFlavor) String() string {
	switch f {
	case AbstractFlavor:
		return "abstract"
	case LocalFlavor:
		return "local"
	}
	return ""
}

// InterfaceData is the payload of interfaces and value types.
type InterfaceData struct {
	Flavor       IfaceFlavor
	DerivedFrom  []Ref
	DerivedNames []string
	Methods      []Ref // operations and attributes declared here
	Inherited    []Ref // operations and attributes inherited from ancestors
	Derivers     []Ref

	Custom       bool
	Truncatable  bool
	Supports     []Ref
	SupportNames []string
	Initializers []Ref
	State        []Ref
}

type ForwardData struct {
	Flavor   IfaceFlavor
	Derivers []Ref
}

type StructData struct {
	Members []Ref
}

type Branch struct {
	Labels    []Expr
	IsDefault bool
	Member    Ref
}

type UnionData struct {
	Branches []Branch
	Default  int // index of the default branch, -1 when absent
}

type EnumData struct {
	Elements    []string
	Enumerators []Ref
}

type EnumeratorData struct {
	Enum  Ref
	Index int
}

// TypedefData carries the array dimensions of typedefs and members.
type TypedefData struct {
	Dims []Expr
}

type SequenceData struct {
	Max *Expr
}

type StringData struct {
	Wide bool
	Max  *Expr
}

type PrimitiveData struct {
	Prim PrimKind
}

type ConstData struct {
	Target ConstType
	Value  Expr
}

type AttributeData struct {
	ReadOnly bool
}

type MethodData struct {
	Oneway   bool
	Factory  bool
	Params   []Ref
	Raises   []Ref
	Contexts []string
}

type ParamDir int

const (
	DirIn ParamDir = iota
	DirOut
	DirInout
)

func (d ParamDir) String() string {
	switch d {
	case DirOut:
		return "out"
	case DirInout:
		return "inout"
	}
	return "in"
}

type ParamData struct {
	Dir ParamDir
}

type MemberData struct {
	Dims   []Expr
	Public bool
	State  bool
}

type PragmaData struct {
	Text string
}

type IncludeData struct {
	Path string
}

func (e *Entry) Iface() *InterfaceData {
	d, _ := e.Data.(*InterfaceData)
	return d
}

func (e *Entry) Forward() *ForwardData {
	d, _ := e.Data.(*ForwardData)
	return d
}

func (e *Entry) Struct() *StructData {
	d, _ := e.Data.(*StructData)
	return d
}

func (e *Entry) Union() *UnionData {
	d, _ := e.Data.(*UnionData)
	return d
}

func (e *Entry) Enum() *EnumData {
	d, _ := e.Data.(*EnumData)
	return d
}

func (e *Entry) Method() *MethodData {
	d, _ := e.Data.(*MethodData)
	return d
}

func (e *Entry) Member() *MemberData {
	d, _ := e.Data.(*MemberData)
	return d
}

func (e *Entry) Prim() PrimKind {
	if d, ok := e.Data.(*PrimitiveData); ok {
		return d.Prim
	}
	return PrimNone
}

// Dims returns the array dimensions of a typedef or member.
func (e *Entry) Dims() []Expr {
	switch d := e.Data.(type) {
	case *TypedefData:
		return d.Dims
	case *MemberData:
		return d.Dims
	}
	return nil
}

func (e *Entry) isForward() bool {
	return e.Kind == ForwardEntryKind || e.Kind == ForwardValueEntryKind
}

// isIncomplete reports whether references to e must be patched once its definition appears.
func (e *Entry) isIncomplete() bool {
	return e.isForward() || !e.Referencable
}

func (e *Entry) flavor() IfaceFlavor {
	switch d := e.Data.(type) {
	case *InterfaceData:
		return d.Flavor
	case *ForwardData:
		return d.Flavor
	}
	return NormalFlavor
}
