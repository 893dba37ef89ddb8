package uir

import "vslcrv/internal/token"

// IdentStatus is the resolution state machine of an identifier expression
// (spec §3): Unresolved -> {Resolved | Failed} (possibly via a Ref chain).
// Cooked is a terminal state the resolver honours but never assigns itself.
type IdentStatus int

const (
	IdentUnresolved IdentStatus = iota
	IdentRef
	IdentResolved
	IdentFailed
	IdentCooked
)

// ResKind distinguishes what an identifier expression ultimately names.
type ResKind int

const (
	ResVar ResKind = iota
	ResFunc
	ResStruct
	ResType
	ResGeneric
	ResModule
)

func (k ResKind) String() string {
	switch k {
	case ResVar:
		return "variable"
	case ResFunc:
		return "function"
	case ResStruct:
		return "struct"
	case ResType:
		return "type"
	case ResGeneric:
		return "generic"
	case ResModule:
		return "module"
	}
	return "?"
}

// Res is a fully resolved identifier-expression occurrence.
type Res struct {
	Kind ResKind

	Var VarID

	Func     FuncID
	FuncArgs []TypeID

	Struct     StructID
	StructArgs []TypeID

	Type TypeID

	Generic GenericID

	Module ModuleID
}

// MemberSep distinguishes `::` (module/type member) from `.` (field)
// lookups, each with different lookup rules in the resolver (spec §4.1).
type MemberSep int

const (
	SepMember MemberSep = iota
	SepField
)

func (s MemberSep) String() string {
	if s == SepField {
		return "."
	}
	return "::"
}

// UnvalidatedMember is an identifier expression's base before its kind and
// generic arity have been checked against the declaration it names.
type UnvalidatedMember struct {
	ParentMod ModuleID
	Name      string
	Args      []TypeID
	// InferArgs marks a struct reference whose generic arguments were
	// omitted at the construction site (spec §4.2 Construct: e.g.
	// `Pair{a: 1, b: 2}`) rather than genuinely wrong arity: the resolver
	// fills the resolved struct's StructArgs with one Infer slot per
	// declared generic instead of
	// raising a generic argument count mismatch, leaving unify's
	// checkConstruct to pin each slot down from the field values supplied.
	InferArgs bool
	Origin    token.Span
}

// ResBase is either a not-yet-validated member reference or an already
// validated Res, per spec §4.1's "base (either a validated Res or an
// unvalidated member reference)".
type ResBase struct {
	Validated   bool
	Res         Res
	Unvalidated UnvalidatedMember
}

// PathSeg is one remaining member in an identifier expression's path.
type PathSeg struct {
	Name string
	Args []TypeID
	// InferArgs, like UnvalidatedMember.InferArgs, marks a struct member
	// reached via this segment (e.g. `mod::Pair{...}`) whose generic args
	// were omitted and are to be inferred rather than arity-checked.
	InferArgs bool
	Sep       MemberSep
	Origin    token.Span
}

// IdentExpr is a dotted/qualified source expression (spec §3:
// `a::b::c.d.e`) in one of five states.
type IdentExpr struct {
	Status IdentStatus
	Base   ResBase
	// Path holds the remaining (unconsumed) member segments, innermost
	// first (i.e. the next segment to resolve is Path[0]) — a "reverse
	// stack" in the sense that resolution pops from the front, not that
	// the slice itself is stored backwards.
	Path   []PathSeg
	Ref    IdentExprID
	ErrMsg string // non-empty when Status == IdentFailed and an error was recorded.
	Origin token.Span
}

// NewUnresolvedIdent allocates an identifier expression awaiting
// resolution against the given module-scoped base name.
func (p *Program) NewUnresolvedIdent(parentMod ModuleID, name string, args []TypeID, path []PathSeg, origin token.Span) IdentExprID {
	return p.NewUnresolvedConstructIdent(parentMod, name, args, false, path, origin)
}

// NewUnresolvedConstructIdent is NewUnresolvedIdent with control over
// inferArgs: set it when name denotes a struct being constructed with
// omitted generic arguments (spec §4.2 Construct), so the resolver defers
// arity checking to unify's field-driven inference instead of rejecting it
// outright.
func (p *Program) NewUnresolvedConstructIdent(parentMod ModuleID, name string, args []TypeID, inferArgs bool, path []PathSeg, origin token.Span) IdentExprID {
	return p.Idents.Push(IdentExpr{
		Status: IdentUnresolved,
		Base: ResBase{
			Validated: false,
			Unvalidated: UnvalidatedMember{
				ParentMod: parentMod,
				Name:      name,
				Args:      args,
				InferArgs: inferArgs,
				Origin:    origin,
			},
		},
		Path:   path,
		Origin: origin,
	})
}

// ResDisplay renders a Res for diagnostics, e.g. "function 'id'".
func (p *Program) ResDisplay(r Res) string {
	name := "?"
	switch r.Kind {
	case ResVar:
		name = p.Vars.Get(r.Var).Name
	case ResFunc:
		name = p.Funcs.Get(r.Func).Name
	case ResStruct:
		name = p.Structs.Get(r.Struct).Name
	case ResType:
		name = p.TypeName(r.Type)
	case ResGeneric:
		name = p.Generics.Get(r.Generic).Name
	case ResModule:
		name = p.Modules.Get(r.Module).Name
	}
	return r.Kind.String() + " '" + name + "'"
}
