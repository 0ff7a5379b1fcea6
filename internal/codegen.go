package internal

import (
	"fmt"
	"go/format"
	"go/token"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Generator receives every entry of the emit list after a successful parse.
type Generator interface {
	Generate(st *Symtab, e *Entry) error
}

// NoopGenerator only lets the compile run its checks.
type NoopGenerator struct{}

func (NoopGenerator) Generate(*Symtab, *Entry) error {
	return nil
}

// Emitter is a Generator whose result is a single output file.
type Emitter interface {
	Generator
	Output() ([]byte, error)
}

// NewGenerator returns the generator registered under name.
func NewGenerator(name string, pack string) (Generator, error) {
	switch name {
	case "", "none":
		return NoopGenerator{}, nil
	case "dump":
		return &DumpGenerator{}, nil
	case "go":
		return NewGoGenerator(pack), nil
	}
	return nil, fmt.Errorf("unknown generator %q", name)
}

// GoGenerator renders the emitted declarations as Go type declarations.
type GoGenerator struct {
	pack string
	b    CodeBuilder
}

func NewGoGenerator(pack string) *GoGenerator {
	return &GoGenerator{pack: pack}
}

func (g *GoGenerator) Generate(st *Symtab, e *Entry) error {
	g.b.st = st
	g.b.build(e)
	return nil
}

// Output returns the generated file, formatted.
func (g *GoGenerator) Output() ([]byte, error) {
	var b CodeBuilder
	b.buildPackage(g.pack)
	b.w(g.b.sb.String())
	src, err := format.Source([]byte(b.sb.String()))
	if err != nil {
		return nil, fmt.Errorf("formatting generated code: %w", err)
	}
	return src, nil
}

var goPrims = map[PrimKind]string{
	PrimShort:      "int16",
	PrimUShort:     "uint16",
	PrimLong:       "int32",
	PrimULong:      "uint32",
	PrimLongLong:   "int64",
	PrimULongLong:  "uint64",
	PrimFloat:      "float32",
	PrimDouble:     "float64",
	PrimLongDouble: "float64",
	PrimChar:       "byte",
	PrimWChar:      "rune",
	PrimBoolean:    "bool",
	PrimOctet:      "byte",
	PrimAny:        "any",
}

type CodeBuilder struct {
	sb strings.Builder
	st *Symtab
}

// write this operation is common enough to extract it out to a utility function
func (b *CodeBuilder) w(s string) {
	b.sb.WriteString(s)
}

func exported(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

func goIdent(s string) string {
	if token.IsKeyword(s) {
		return s + "_"
	}
	return s
}

// goName flattens the qualified name of e into a single exported Go identifier.
func goName(e *Entry) string {
	parts := strings.Split(e.FullName(), "/")
	for i, part := range parts {
		parts[i] = exported(part)
	}
	return strings.Join(parts, "_")
}

func (b *CodeBuilder) build(e *Entry) {
	if e.SupersededBy != NoRef {
		return
	}
	switch e.Kind {
	case ModuleEntryKind:
		for _, r := range e.Contained {
			if child := b.st.Get(r); child.Emit || child.Kind == ModuleEntryKind {
				b.build(child)
			}
		}
	case StructEntryKind:
		b.buildStruct(e)
	case ExceptionEntryKind:
		b.buildException(e)
	case UnionEntryKind:
		b.buildUnion(e)
	case EnumEntryKind:
		b.buildEnum(e)
	case TypedefEntryKind:
		b.buildTypedef(e)
	case ConstEntryKind:
		b.buildConst(e)
	case InterfaceEntryKind:
		b.buildInterface(e)
	case ValueEntryKind:
		b.buildValue(e)
	case ValueBoxEntryKind:
		b.buildDoc(e)
		fmt.Fprintf(&b.sb, "type %s struct {\nValue %s\n}\n\n", goName(e), b.typeRef(e.Type))
	case NativeEntryKind:
		b.buildDoc(e)
		fmt.Fprintf(&b.sb, "type %s any\n\n", goName(e))
	}
}

// buildNested builds the types declared inside a struct, union, exception or interface.
func (b *CodeBuilder) buildNested(e *Entry) {
	for _, r := range e.Contained {
		b.build(b.st.Get(r))
	}
}

func commentLines(text string) []string {
	var lines []string
	for _, block := range strings.Split(text, "\n") {
		block = strings.TrimSpace(block)
		block = strings.TrimPrefix(block, "//")
		block = strings.TrimPrefix(block, "/*")
		block = strings.TrimSuffix(block, "*/")
		block = strings.TrimPrefix(strings.TrimSpace(block), "*")
		if block = strings.TrimSpace(block); block != "" {
			lines = append(lines, block)
		}
	}
	return lines
}

func (b *CodeBuilder) buildDoc(e *Entry) {
	for _, line := range commentLines(e.Comment) {
		b.w("// ")
		b.w(line)
		b.w("\n")
	}
}

func (b *CodeBuilder) buildDims(dims []Expr) {
	for _, dim := range dims {
		b.w("[")
		b.w(dim.Lit.String())
		b.w("]")
	}
}

func (b *CodeBuilder) typeRef(r Ref) string {
	e := b.st.Resolve(r)
	if e == nil {
		return "any"
	}
	switch e.Kind {
	case PrimitiveEntryKind:
		return goPrims[e.Prim()]
	case StringEntryKind:
		return "string"
	case SequenceEntryKind:
		return "[]" + b.typeRef(e.Type)
	case InterfaceEntryKind, ForwardEntryKind:
		if e.Builtin {
			return "any"
		}
		return goName(e)
	case ValueEntryKind, ForwardValueEntryKind:
		if e.Builtin {
			return "any"
		}
		return "*" + goName(e)
	}
	return goName(e)
}

func (b *CodeBuilder) buildField(m *Entry) {
	b.w(exported(m.Name))
	b.w(" ")
	b.buildDims(m.Dims())
	b.w(b.typeRef(m.Type))
	b.w("\n")
}

func (b *CodeBuilder) buildStruct(strct *Entry) {
	if !strct.Referencable {
		return
	}

	// build out the struct type definition
	b.buildDoc(strct)
	b.w("type ")
	b.w(goName(strct))
	b.w(" struct {\n")
	for _, r := range strct.Struct().Members {
		b.buildField(b.st.Get(r))
	}
	b.w("}\n\n")

	b.buildNested(strct)
}

func (b *CodeBuilder) buildException(exc *Entry) {
	b.buildStruct(exc)
	fmt.Fprintf(&b.sb, "func (*%s) Error() string {\nreturn %q\n}\n\n", goName(exc), exc.RepID.String())
}

func (b *CodeBuilder) buildUnion(union *Entry) {
	if !union.Referencable {
		return
	}
	name := goName(union)

	// build out the union type definition
	b.buildDoc(union)
	b.w("type ")
	b.w(name)
	b.w(" interface {\n")
	b.w("is")
	b.w(name)
	b.w("()\n")
	b.w("}\n\n")

	// each union branch is a struct that contains the member as a single field
	for _, br := range union.Union().Branches {
		m := b.st.Get(br.Member)
		option := name + exported(m.Name) + "Option"
		b.w("type ")
		b.w(option)
		b.w(" struct {\n")
		b.buildField(m)
		b.w("}\n\n")
		fmt.Fprintf(&b.sb, "func (%s) is%s() {}\n\n", option, name)
	}

	b.buildNested(union)
}

func (b *CodeBuilder) buildEnum(enum *Entry) {
	name := goName(enum)

	// build out the enum type definition and cases
	b.buildDoc(enum)
	b.w("type ")
	b.w(name)
	b.w(" uint32\n\n")
	b.w("const (\n")
	for i, c := range enum.Enum().Elements {
		b.w(name)
		b.w("_")
		b.w(c)
		if i == 0 {
			b.w(" ")
			b.w(name)
			b.w(" = iota")
		}
		b.w("\n")
	}
	b.w(")\n\n")
}

func (b *CodeBuilder) buildTypedef(td *Entry) {
	b.buildDoc(td)
	b.w("type ")
	b.w(goName(td))
	b.w(" ")
	b.buildDims(td.Dims())
	b.w(b.typeRef(td.Type))
	b.w("\n\n")
}

func (b *CodeBuilder) constValue(lit Literal) string {
	switch lit.Kind {
	case IntLit:
		return lit.Int.String()
	case FloatLit:
		return strconv.FormatFloat(lit.Float, 'g', -1, 64)
	case BoolLit:
		return strconv.FormatBool(lit.Bool)
	case CharLit:
		return strconv.QuoteRune(lit.Char)
	case StringLit:
		return strconv.Quote(lit.Str)
	case EnumLit:
		if enum := b.st.Get(lit.Enum); enum != nil {
			return goName(enum) + "_" + lit.Str
		}
	}
	return "nil"
}

func (b *CodeBuilder) buildConst(c *Entry) {
	d := c.Data.(*ConstData)
	b.buildDoc(c)
	fmt.Fprintf(&b.sb, "const %s %s = %s\n\n", goName(c), b.typeRef(c.Type), b.constValue(d.Value.Lit))
}

// buildSignature writes an operation as a Go method. Out and inout parameters become pointers.
func (b *CodeBuilder) buildSignature(m *Entry) {
	b.w(exported(m.Name))
	b.w("(")
	for i, r := range m.Method().Params {
		param := b.st.Get(r)
		if i > 0 {
			b.w(", ")
		}
		b.w(goIdent(param.Name))
		b.w(" ")
		if param.Data.(*ParamData).Dir != DirIn {
			b.w("*")
		}
		b.w(b.typeRef(param.Type))
	}
	b.w(")")
	if m.Type != NoRef {
		b.w(" ")
		b.w(b.typeRef(m.Type))
	}
	b.w("\n")
}

func (b *CodeBuilder) buildMethods(d *InterfaceData) {
	for _, r := range d.Methods {
		m := b.st.Get(r)
		b.buildDoc(m)
		if m.Kind == AttributeEntryKind {
			fmt.Fprintf(&b.sb, "%s() %s\n", exported(m.Name), b.typeRef(m.Type))
			if !m.Data.(*AttributeData).ReadOnly {
				fmt.Fprintf(&b.sb, "Set%s(v %s)\n", exported(m.Name), b.typeRef(m.Type))
			}
			continue
		}
		b.buildSignature(m)
	}
}

func (b *CodeBuilder) buildInterface(iface *Entry) {
	d := iface.Iface()
	b.buildDoc(iface)
	b.w("type ")
	b.w(goName(iface))
	b.w(" interface {\n")
	for _, r := range d.DerivedFrom {
		if parent := b.st.Resolve(r); parent != nil && !parent.Builtin {
			b.w(goName(parent))
			b.w("\n")
		}
	}
	b.buildMethods(d)
	b.w("}\n\n")

	b.buildNested(iface)
}

// buildValue writes the state of a value type as a struct and its operations as an interface.
func (b *CodeBuilder) buildValue(value *Entry) {
	d := value.Iface()
	name := goName(value)
	b.buildDoc(value)
	b.w("type ")
	b.w(name)
	b.w(" struct {\n")
	for _, r := range d.DerivedFrom {
		if parent := b.st.Resolve(r); parent != nil && !parent.Builtin && parent.Kind == ValueEntryKind {
			b.w(goName(parent))
			b.w("\n")
		}
	}
	for _, r := range d.State {
		b.buildField(b.st.Get(r))
	}
	b.w("}\n\n")

	if len(d.Methods) > 0 || len(d.Supports) > 0 {
		b.w("type ")
		b.w(name)
		b.w("Operations interface {\n")
		for _, r := range d.Supports {
			if iface := b.st.Resolve(r); iface != nil {
				b.w(goName(iface))
				b.w("\n")
			}
		}
		b.buildMethods(d)
		b.w("}\n\n")
	}

	b.buildNested(value)
}

func (b *CodeBuilder) buildPackage(pack string) {
	b.w("// Code generated by idlc. DO NOT EDIT.\n\n")
	b.w("package ")
	b.w(pack)
	b.w("\n\n")
}
