package internal

import (
	"fmt"
	"slices"
	"strings"
)

// Symtab owns every entry of a compile. Entries are addressed by Ref and
// indexed by qualified name, exactly and case-insensitively.
type Symtab struct {
	entries  []*Entry
	names    map[string]Ref
	lower    map[string]Ref
	roots    []Ref
	builtins map[string]Ref
	anon     int
}

func NewSymtab() *Symtab {
	st := &Symtab{
		entries:  []*Entry{nil},
		names:    make(map[string]Ref),
		lower:    make(map[string]Ref),
		builtins: make(map[string]Ref),
	}
	st.addBuiltins()
	return st
}

var builtinPrims = []PrimKind{
	PrimShort, PrimUShort, PrimLong, PrimULong, PrimLongLong, PrimULongLong,
	PrimFloat, PrimDouble, PrimLongDouble, PrimChar, PrimWChar, PrimBoolean, PrimOctet, PrimAny,
}

func (st *Symtab) addBuiltins() {
	for _, prim := range builtinPrims {
		e := &Entry{Kind: PrimitiveEntryKind, Name: prim.String(), Referencable: true, Builtin: true, Data: &PrimitiveData{Prim: prim}}
		st.builtins[e.Name] = st.add(e)
	}
	for _, wide := range []bool{false, true} {
		e := &Entry{Kind: StringEntryKind, Name: "string", Referencable: true, Builtin: true, Data: &StringData{Wide: wide}}
		if wide {
			e.Name = "wstring"
		}
		st.builtins[e.Name] = st.add(e)
	}

	object := &Entry{Kind: InterfaceEntryKind, Name: "Object", Referencable: true, Builtin: true, Data: &InterfaceData{}}
	object.RepID = RepID{Name: "omg.org/CORBA/Object"}
	st.add(object)
	st.insert(object)
	st.builtins[object.Name] = object.self

	valueBase := &Entry{Kind: ValueEntryKind, Name: "ValueBase", Referencable: true, Builtin: true, Data: &InterfaceData{Flavor: AbstractFlavor}}
	valueBase.RepID = RepID{Name: "omg.org/CORBA/ValueBase"}
	st.add(valueBase)
	st.insert(valueBase)
	st.builtins[valueBase.Name] = valueBase.self
}

// add places e in the arena and computes its qualified name.
func (st *Symtab) add(e *Entry) Ref {
	e.self = Ref(len(st.entries))
	st.entries = append(st.entries, e)
	e.path = st.qualify(e.Container, e.Name)
	return e.self
}

func (st *Symtab) qualify(container Ref, name string) string {
	if c := st.Get(container); c != nil {
		return c.path + "/" + name
	}
	return name
}

// anonName generates a unique name for a declaration that has none in source.
func (st *Symtab) anonName() string {
	st.anon++
	return fmt.Sprintf("$anon%d", st.anon)
}

// insert indexes e under its qualified name.
func (st *Symtab) insert(e *Entry) {
	st.names[e.path] = e.self
	st.lower[strings.ToLower(e.path)] = e.self
}

// contain records e in its container, or as a root when declared at file
// scope. Members and enumerators are listed by their parent instead.
func (st *Symtab) contain(e *Entry) {
	if e.Kind == MemberEntryKind || e.Kind == EnumeratorEntryKind {
		return
	}
	if c := st.Get(e.Container); c != nil {
		if !slices.Contains(c.Contained, e.self) {
			c.Contained = append(c.Contained, e.self)
		}
		return
	}
	if !slices.Contains(st.roots, e.self) {
		st.roots = append(st.roots, e.self)
	}
}

func (st *Symtab) Get(r Ref) *Entry {
	if r <= NoRef || int(r) >= len(st.entries) {
		return nil
	}
	return st.entries[r]
}

// Deref follows the chain of forward declarations superseded by their definitions.
func (st *Symtab) Deref(r Ref) Ref {
	for {
		e := st.Get(r)
		if e == nil || e.SupersededBy == NoRef {
			return r
		}
		r = e.SupersededBy
	}
}

func (st *Symtab) Resolve(r Ref) *Entry {
	return st.Get(st.Deref(r))
}

// Lookup finds an entry by slash separated qualified name.
func (st *Symtab) Lookup(path string) *Entry {
	return st.Resolve(st.names[path])
}

// lookupFold finds an entry whose qualified name matches path ignoring case.
func (st *Symtab) lookupFold(path string) *Entry {
	return st.Resolve(st.lower[strings.ToLower(path)])
}

func (st *Symtab) Builtin(name string) *Entry {
	return st.Get(st.builtins[name])
}

func (st *Symtab) Roots() []Ref {
	return st.roots
}

// Entries lists every entry in creation order.
func (st *Symtab) Entries() []*Entry {
	return st.entries[1:]
}

// setType points e at t, remembering e as a referrer when t is still incomplete.
func (st *Symtab) setType(e *Entry, t Ref) {
	e.Type = t
	if target := st.Get(t); target != nil && target.isIncomplete() {
		target.Referrers = append(target.Referrers, e.self)
	}
}

// Underlying unwraps typedefs without array dimensions.
func (st *Symtab) Underlying(r Ref) *Entry {
	e := st.Resolve(r)
	for i := 0; e != nil && e.Kind == TypedefEntryKind && len(e.Dims()) == 0 && i < len(st.entries); i++ {
		e = st.Resolve(e.Type)
	}
	return e
}

// replaceForward makes def the entry known under fwd's name and repoints
// every reference that was made to fwd while it was incomplete.
func (st *Symtab) replaceForward(fwd *Entry, def *Entry) {
	fwd.SupersededBy = def.self
	st.insert(def)

	for _, r := range fwd.Referrers {
		if referrer := st.Get(r); referrer != nil && referrer.Type == fwd.self {
			referrer.Type = def.self
		}
	}
	fwd.Referrers = nil

	fd := fwd.Forward()
	dd := def.Iface()
	if fd == nil || dd == nil {
		return
	}
	for _, r := range fd.Derivers {
		deriver := st.Get(r)
		if deriver == nil {
			continue
		}
		if id := deriver.Iface(); id != nil {
			replaceRef(id.DerivedFrom, fwd.self, def.self)
			replaceRef(id.Supports, fwd.self, def.self)
		}
		if !slices.Contains(dd.Derivers, r) {
			dd.Derivers = append(dd.Derivers, r)
		}
	}
	fd.Derivers = nil
}

func replaceRef(refs []Ref, old Ref, repl Ref) {
	for i, r := range refs {
		if r == old {
			refs[i] = repl
		}
	}
}
