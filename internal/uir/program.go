package uir

import (
	"vslcrv/internal/diag"
	"vslcrv/internal/token"
)

// MemberKind tags what a Module's name->member map entry points to.
type MemberKind int

const (
	MemberFunc MemberKind = iota
	MemberStruct
	MemberVar
)

// Member is one named entry in a Module (spec §3: "name -> member
// (Function | Struct | Variable)").
type Member struct {
	Kind   MemberKind
	Func   FuncID
	Struct StructID
	Var    VarID
}

// Module holds a name->member map, a name->child-module map, and an
// optional parent link. Parent is an id, never an owning back-reference
// (spec §9's cyclic-reference design note).
type Module struct {
	Name     string
	Members  map[string]Member
	Children map[string]ModuleID
	Parent   ModuleID // NoID[Module]() at the root.
	Origin   token.Span
}

// NewModule allocates an empty module and returns its handle.
func (p *Program) NewModule(name string, parent ModuleID, origin token.Span) ModuleID {
	return p.Modules.Push(Module{
		Name:     name,
		Members:  map[string]Member{},
		Children: map[string]ModuleID{},
		Parent:   parent,
		Origin:   origin,
	})
}

// Generic is a single generic parameter declaration.
type Generic struct {
	Name   string
	Origin token.Span
}

// Field is a declared struct field: its type and declaration order. Order
// determines both construction validation and L-IR field-offset layout.
type Field struct {
	Type   TypeID
	Order  int
	Origin token.Span
}

// Struct holds its fields in both a lookup map and an explicit declaration
// order slice, since Go maps have no stable iteration order and spec §4.5
// needs field order for offset computation.
type Struct struct {
	Name       string
	Generics   []GenericID
	Fields     map[string]Field
	FieldOrder []string
	Origin     token.Span
}

// FieldType returns the declared type of struct field name, instantiated
// with gargs for the struct's own generic parameters. Exported so
// internal/unify can check field assignments without reaching into
// Program's unexported substitution helper.
func (p *Program) FieldType(sid StructID, gargs []TypeID, name string) TypeID {
	s := p.Structs.Get(sid)
	return p.substituteField(s, name, gargs)
}

// FieldOffset returns the byte offset of field name within an instance of
// struct s instantiated with gargs, by summing the (possibly
// generic-substituted) sizes of every field declared before it.
func (p *Program) FieldOffset(sid StructID, gargs []TypeID, name string) int {
	s := p.Structs.Get(sid)
	off := 0
	for _, fn := range s.FieldOrder {
		if fn == name {
			return off
		}
		off += p.TypeSize(p.substituteField(s, fn, gargs))
	}
	return off
}

// Func is a declared function: generics, value parameters, return type and
// lowered instruction body.
type Func struct {
	Name      string
	Generics  []GenericID
	Params    []VarID
	Ret       TypeID
	Instrs    []InstrInst
	Origin    token.Span
	MakesCall bool // set by AST->U-IR lowering (internal/lower) when the body contains a call; read by L-IR frame layout (spec §4.5).
}

// FlatInstrs returns an iterator-like flat slice over every instruction in
// the function, descending into If/Loop bodies — spec §4.2's "flat
// iterator traversing nested If/Loop bodies".
func (f *Func) FlatInstrs() []*InstrInst {
	var out []*InstrInst
	var walk func([]InstrInst)
	walk = func(is []InstrInst) {
		for i := range is {
			out = append(out, &is[i])
			switch is[i].Kind {
			case IIf:
				walk(is[i].Body)
			case ILoop:
				walk(is[i].Body)
			}
		}
	}
	walk(f.Instrs)
	return out
}

// Var is a declared (or sub-variable) value slot. Parent/Children form the
// struct-field sub-variable graph described in spec §3 and §9: owned by
// id, never by back-reference.
type Var struct {
	Name     string
	Type     TypeID
	Origin   token.Span
	Parent   VarID // NoID[Var]() if not a field sub-variable.
	Children map[string]VarID
	Offset   int // byte offset from Parent's base, valid only if Parent.Valid().
}

// Data is a read-only data item (string/array literal content).
type Data struct {
	Bytes  []byte
	Type   TypeID
	Origin token.Span
}

// Program is the single aggregate owning every per-compilation table
// (spec §9: "global mutable state is confined to the per-compilation
// Program aggregate").
type Program struct {
	Modules  Table[Module]
	Funcs    Table[Func]
	Structs  Table[Struct]
	Vars     Table[Var]
	Types    Table[Type]
	Generics Table[Generic]
	Data     Table[Data]
	Idents   Table[IdentExpr]

	Root  ModuleID
	Diags *diag.Bag
}

// NewProgram creates an empty program with a root module and the builtin
// Unit type pre-interned at index 0.
func NewProgram() *Program {
	p := &Program{Diags: &diag.Bag{}}
	p.NewType(Unit()) // index 0, mirrors BuiltinType::Unit in original_source
	p.Root = p.NewModule("root", NoID[Module](), token.Builtin())
	return p
}

// NewVar allocates a fresh local/temporary variable.
func (p *Program) NewVar(name string, ty TypeID, origin token.Span) VarID {
	return p.Vars.Push(Var{Name: name, Type: ty, Origin: origin, Parent: NoID[Var](), Children: map[string]VarID{}})
}

// ChildVar returns (creating if absent) the sub-variable of parent naming
// struct field `field`, per spec §3/§4.1: "absent children are lazily
// created by finding the struct's field of that name, allocating a
// sub-variable with the field's (instantiated) type and the declared
// offset".
func (p *Program) ChildVar(parent VarID, field string) (VarID, bool) {
	pv := p.Vars.Get(parent)
	if c, ok := pv.Children[field]; ok {
		return c, true
	}
	_, pt := p.RealType(pv.Type)
	baseType := pt
	if pt.Kind == TyRef {
		_, inner := p.RealType(pt.Elem)
		baseType = inner
	}
	if baseType.Kind != TyStruct {
		return NoID[Var](), false
	}
	s := p.Structs.Get(baseType.Struct)
	fld, ok := s.Fields[field]
	if !ok {
		return NoID[Var](), false
	}
	ft := p.substituteField(s, field, baseType.Args)
	off := p.FieldOffset(baseType.Struct, baseType.Args, field)
	child := p.Vars.Push(Var{
		Name:     pv.Name + "." + field,
		Type:     ft,
		Origin:   fld.Origin,
		Parent:   parent,
		Children: map[string]VarID{},
		Offset:   off,
	})
	// Re-fetch pv: Vars.Push may have grown the backing slice, invalidating
	// the earlier pointer.
	p.Vars.Get(parent).Children[field] = child
	return child, true
}
