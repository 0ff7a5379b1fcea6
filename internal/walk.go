package internal

import (
	"fmt"
	"strings"
)

// DumpGenerator writes the emitted declarations back out as normalized IDL,
// with every name resolved and every constant evaluated.
type DumpGenerator struct {
	sb strings.Builder
}

func (g *DumpGenerator) Generate(st *Symtab, e *Entry) error {
	WriteEntry(&g.sb, st, e, 0)
	return nil
}

func (g *DumpGenerator) String() string {
	return g.sb.String()
}

func (g *DumpGenerator) Output() ([]byte, error) {
	return []byte(g.sb.String()), nil
}

// WriteSymtab dumps the given top level entries.
func WriteSymtab(st *Symtab, entries []*Entry) string {
	var sb strings.Builder
	for _, e := range entries {
		WriteEntry(&sb, st, e, 0)
	}
	return sb.String()
}

func writeIndents(sb *strings.Builder, depth int) {
	for range depth {
		sb.WriteString("\t")
	}
}

// TypeName renders a type reference the way it would be written in IDL.
func TypeName(st *Symtab, r Ref) string {
	e := st.Resolve(r)
	if e == nil {
		return "<unresolved>"
	}
	switch e.Kind {
	case SequenceEntryKind:
		if max := e.Data.(*SequenceData).Max; max != nil {
			return fmt.Sprintf("sequence<%s, %s>", TypeName(st, e.Type), max.Lit)
		}
		return fmt.Sprintf("sequence<%s>", TypeName(st, e.Type))
	case StringEntryKind:
		d := e.Data.(*StringData)
		name := "string"
		if d.Wide {
			name = "wstring"
		}
		if d.Max != nil {
			return fmt.Sprintf("%s<%s>", name, d.Max.Lit)
		}
		return name
	}
	return e.ScopedName()
}

func writeDims(sb *strings.Builder, dims []Expr) {
	for _, dim := range dims {
		fmt.Fprintf(sb, "[%s]", dim.Lit)
	}
}

func writeNested(sb *strings.Builder, st *Symtab, e *Entry, depth int) {
	for _, r := range e.Contained {
		WriteEntry(sb, st, st.Get(r), depth)
	}
}

func writeMember(sb *strings.Builder, st *Symtab, m *Entry, depth int) {
	writeIndents(sb, depth)
	if md := m.Member(); md != nil && md.State {
		if md.Public {
			sb.WriteString("public ")
		} else {
			sb.WriteString("private ")
		}
	}
	fmt.Fprintf(sb, "%s %s", TypeName(st, m.Type), m.Name)
	writeDims(sb, m.Dims())
	sb.WriteString(";\n")
}

func writeMembers(sb *strings.Builder, st *Symtab, refs []Ref, depth int) {
	for _, r := range refs {
		writeMember(sb, st, st.Get(r), depth)
	}
}

func writeBases(sb *strings.Builder, prefix string, names []string) {
	if len(names) > 0 {
		sb.WriteString(prefix)
		sb.WriteString(strings.Join(names, ", "))
	}
}

// WriteEntry dumps e and everything it contains at the given indentation.
func WriteEntry(sb *strings.Builder, st *Symtab, e *Entry, depth int) {
	if e.SupersededBy != NoRef {
		return
	}
	switch e.Kind {
	case ModuleEntryKind:
		writeIndents(sb, depth)
		fmt.Fprintf(sb, "module %s {\n", e.Name)
		writeNested(sb, st, e, depth+1)
		writeIndents(sb, depth)
		sb.WriteString("};\n")
	case InterfaceEntryKind:
		d := e.Iface()
		writeIndents(sb, depth)
		if d.Flavor != NormalFlavor {
			fmt.Fprintf(sb, "%s ", d.Flavor)
		}
		fmt.Fprintf(sb, "interface %s", e.Name)
		writeBases(sb, " : ", d.DerivedNames)
		sb.WriteString(" {\n")
		writeNested(sb, st, e, depth+1)
		writeIndents(sb, depth)
		sb.WriteString("};\n")
	case ValueEntryKind:
		d := e.Iface()
		writeIndents(sb, depth)
		switch {
		case d.Flavor == AbstractFlavor:
			sb.WriteString("abstract ")
		case d.Custom:
			sb.WriteString("custom ")
		}
		fmt.Fprintf(sb, "valuetype %s", e.Name)
		if d.Truncatable {
			writeBases(sb, " : truncatable ", d.DerivedNames)
		} else {
			writeBases(sb, " : ", d.DerivedNames)
		}
		writeBases(sb, " supports ", d.SupportNames)
		sb.WriteString(" {\n")
		writeMembers(sb, st, d.State, depth+1)
		writeNested(sb, st, e, depth+1)
		writeIndents(sb, depth)
		sb.WriteString("};\n")
	case ForwardEntryKind, ForwardValueEntryKind:
		writeIndents(sb, depth)
		if flavor := e.flavor(); flavor != NormalFlavor {
			fmt.Fprintf(sb, "%s ", flavor)
		}
		if e.Kind == ForwardEntryKind {
			fmt.Fprintf(sb, "interface %s;\n", e.Name)
		} else {
			fmt.Fprintf(sb, "valuetype %s;\n", e.Name)
		}
	case ValueBoxEntryKind:
		writeIndents(sb, depth)
		fmt.Fprintf(sb, "valuetype %s %s;\n", e.Name, TypeName(st, e.Type))
	case StructEntryKind, ExceptionEntryKind:
		writeIndents(sb, depth)
		if !e.Referencable {
			fmt.Fprintf(sb, "struct %s;\n", e.Name)
			return
		}
		fmt.Fprintf(sb, "%s %s {\n", e.Kind, e.Name)
		writeNested(sb, st, e, depth+1)
		writeMembers(sb, st, e.Struct().Members, depth+1)
		writeIndents(sb, depth)
		sb.WriteString("};\n")
	case UnionEntryKind:
		writeIndents(sb, depth)
		if !e.Referencable {
			fmt.Fprintf(sb, "union %s;\n", e.Name)
			return
		}
		fmt.Fprintf(sb, "union %s switch (%s) {\n", e.Name, TypeName(st, e.Type))
		writeNested(sb, st, e, depth+1)
		for _, br := range e.Union().Branches {
			for _, label := range br.Labels {
				writeIndents(sb, depth+1)
				fmt.Fprintf(sb, "case %s:\n", label.Lit)
			}
			if br.IsDefault {
				writeIndents(sb, depth+1)
				sb.WriteString("default:\n")
			}
			writeMember(sb, st, st.Get(br.Member), depth+2)
		}
		writeIndents(sb, depth)
		sb.WriteString("};\n")
	case EnumEntryKind:
		writeIndents(sb, depth)
		fmt.Fprintf(sb, "enum %s { %s };\n", e.Name, strings.Join(e.Enum().Elements, ", "))
	case TypedefEntryKind:
		writeIndents(sb, depth)
		fmt.Fprintf(sb, "typedef %s %s", TypeName(st, e.Type), e.Name)
		writeDims(sb, e.Dims())
		sb.WriteString(";\n")
	case ConstEntryKind:
		writeIndents(sb, depth)
		fmt.Fprintf(sb, "const %s %s = %s;\n", TypeName(st, e.Type), e.Name, e.Data.(*ConstData).Value.Lit)
	case NativeEntryKind:
		writeIndents(sb, depth)
		fmt.Fprintf(sb, "native %s;\n", e.Name)
	case AttributeEntryKind:
		writeIndents(sb, depth)
		if e.Data.(*AttributeData).ReadOnly {
			sb.WriteString("readonly ")
		}
		fmt.Fprintf(sb, "attribute %s %s;\n", TypeName(st, e.Type), e.Name)
	case MethodEntryKind:
		writeIndents(sb, depth)
		WriteMethod(sb, st, e)
		sb.WriteString(";\n")
	case IncludeEntryKind:
		writeIndents(sb, depth)
		fmt.Fprintf(sb, "#include \"%s\"\n", e.Name)
	case PragmaEntryKind:
		writeIndents(sb, depth)
		fmt.Fprintf(sb, "#pragma %s %s\n", e.Name, e.Data.(*PragmaData).Text)
	}
}

// WriteMethod renders an operation or initializer signature.
func WriteMethod(sb *strings.Builder, st *Symtab, m *Entry) {
	d := m.Method()
	switch {
	case d.Factory:
		sb.WriteString("factory ")
	case d.Oneway:
		sb.WriteString("oneway ")
	}
	if !d.Factory {
		if m.Type == NoRef {
			sb.WriteString("void ")
		} else {
			sb.WriteString(TypeName(st, m.Type))
			sb.WriteString(" ")
		}
	}
	sb.WriteString(m.Name)
	sb.WriteString("(")
	for i, r := range d.Params {
		param := st.Get(r)
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "%s %s %s", param.Data.(*ParamData).Dir, TypeName(st, param.Type), param.Name)
	}
	sb.WriteString(")")
	if len(d.Raises) > 0 {
		var names []string
		for _, r := range d.Raises {
			names = append(names, st.Get(r).ScopedName())
		}
		fmt.Fprintf(sb, " raises (%s)", strings.Join(names, ", "))
	}
	if len(d.Contexts) > 0 {
		fmt.Fprintf(sb, " context (\"%s\")", strings.Join(d.Contexts, "\", \""))
	}
}
