package uir

// TypeKind tags the Type sum type (spec §3). Ptr and Deref are transient
// internal variants: Ptr is the union-find link used during unification,
// Deref is an unresolved indirection. No pass currently produces a Deref
// type: a Deref instruction's destination starts out as Infer instead.
type TypeKind int

const (
	TyBits TypeKind = iota
	TyUnit
	TyRef
	TySlice
	TyArray
	TyStruct
	TyFnRef
	TyGeneric
	TyInfer
	TyError
	TyPtr
	TyDeref
)

func (k TypeKind) String() string {
	switch k {
	case TyBits:
		return "bits"
	case TyUnit:
		return "unit"
	case TyRef:
		return "ref"
	case TySlice:
		return "slice"
	case TyArray:
		return "array"
	case TyStruct:
		return "struct"
	case TyFnRef:
		return "fnref"
	case TyGeneric:
		return "generic"
	case TyInfer:
		return "infer"
	case TyError:
		return "error"
	case TyPtr:
		return "ptr"
	case TyDeref:
		return "deref"
	}
	return "?"
}

// Type is the sum-typed representation described in spec §3. Types are
// allocated freely into Program.Types and are interned by index: identity
// is by TypeID, structural equality is by recursive comparison via
// Program.SameType.
type Type struct {
	Kind TypeKind

	Width int // Bits(width)

	Elem TypeID // Ref(Type), Slice(Type), Array(Type,_), Ptr(Type), Deref(Type)
	Len  int    // Array(_, length)

	Struct StructID // Struct(id, args), FnRef target struct n/a
	Fn     FuncID   // FnRef(id, args)
	Args   []TypeID // generic-arg Types for Struct/FnRef

	Generic GenericID // Generic(id)
}

// Bits builds a Bits(width) type literal.
func Bits(width int) Type { return Type{Kind: TyBits, Width: width} }

// Unit builds the Unit type literal.
func Unit() Type { return Type{Kind: TyUnit} }

// NewType interns t into the program's type table and returns its handle.
func (p *Program) NewType(t Type) TypeID {
	return p.Types.Push(t)
}

// Real chases Ptr links (with path compression) from id until it reaches a
// non-Ptr variant, or Infer if the chain is still unresolved. Spec §3 /
// §8.1 (type handle closure): the terminal variant returned is never Ptr.
func (p *Program) Real(id TypeID) TypeID {
	visited := []TypeID{}
	cur := id
	for {
		t := p.Types.Get(cur)
		if t.Kind != TyPtr {
			break
		}
		visited = append(visited, cur)
		cur = t.Elem
	}
	// Path compression: point every visited Ptr node directly at the
	// resolved target so future chases are O(1).
	for _, v := range visited {
		p.Types.Get(v).Elem = cur
	}
	return cur
}

// RealType is a convenience wrapper returning both the resolved handle and
// its concrete Type value.
func (p *Program) RealType(id TypeID) (TypeID, Type) {
	r := p.Real(id)
	return r, *p.Types.Get(r)
}

// Point makes dst an alias of src via the union-find Ptr indirection. Used
// only by the unifier (internal/unify) when dst resolves to Infer.
func (p *Program) Point(dst, src TypeID) {
	p.Types.Get(dst).Kind = TyPtr
	p.Types.Get(dst).Elem = src
}

// SameType performs a structural equality check between two resolved
// types, recursing through Ref/Slice/Array/Struct/FnRef. It does not unify
// Infer slots (unlike unify.Unifier.Match) — it is a read-only predicate used
// by diagnostics and tests.
func (p *Program) SameType(a, b TypeID) bool {
	a, ta := p.RealType(a)
	b, tb := p.RealType(b)
	if a == b {
		return true
	}
	if ta.Kind != tb.Kind {
		return false
	}
	switch ta.Kind {
	case TyBits:
		return ta.Width == tb.Width
	case TyUnit, TyInfer, TyError:
		return true
	case TyRef, TySlice, TyPtr, TyDeref:
		return p.SameType(ta.Elem, tb.Elem)
	case TyArray:
		return ta.Len == tb.Len && p.SameType(ta.Elem, tb.Elem)
	case TyStruct:
		if ta.Struct != tb.Struct || len(ta.Args) != len(tb.Args) {
			return false
		}
		for i := range ta.Args {
			if !p.SameType(ta.Args[i], tb.Args[i]) {
				return false
			}
		}
		return true
	case TyFnRef:
		if ta.Fn != tb.Fn || len(ta.Args) != len(tb.Args) {
			return false
		}
		for i := range ta.Args {
			if !p.SameType(ta.Args[i], tb.Args[i]) {
				return false
			}
		}
		return true
	case TyGeneric:
		return ta.Generic == tb.Generic
	}
	return false
}

// TypeSize returns the byte size of a concrete type, rounded up to 8 bytes
// per spec §4.5's stack-slot rule. Struct size is the sum of its
// (recursively rounded) field sizes; Slice is a (pointer,length) pair;
// Array is element size times length.
func (p *Program) TypeSize(id TypeID) int {
	_, t := p.RealType(id)
	switch t.Kind {
	case TyUnit:
		return 0
	case TyBits:
		return roundUp8((t.Width + 7) / 8)
	case TyRef, TyFnRef:
		return 8
	case TySlice:
		return 16
	case TyArray:
		return roundUp8(p.TypeSize(t.Elem) * t.Len)
	case TyStruct:
		s := p.Structs.Get(t.Struct)
		total := 0
		for _, name := range s.FieldOrder {
			total += p.TypeSize(p.substituteField(s, name, t.Args))
		}
		return roundUp8(total)
	case TyGeneric, TyInfer, TyError:
		return 8
	}
	return 8
}

func (p *Program) substituteField(s *Struct, name string, args []TypeID) TypeID {
	f := s.Fields[name]
	if len(args) == 0 || len(s.Generics) == 0 {
		return f.Type
	}
	sub := make(map[GenericID]TypeID, len(s.Generics))
	for i, g := range s.Generics {
		if i < len(args) {
			sub[g] = args[i]
		}
	}
	return p.Instantiate(f.Type, sub)
}

func roundUp8(n int) int {
	return (n + 7) &^ 7
}

// TypeName renders a human-readable name for diagnostics.
func (p *Program) TypeName(id TypeID) string {
	_, t := p.RealType(id)
	switch t.Kind {
	case TyBits:
		return "b" + itoa(t.Width)
	case TyUnit:
		return "()"
	case TyInfer:
		return "<infer>"
	case TyError:
		return "<error>"
	case TyRef:
		return "&" + p.TypeName(t.Elem)
	case TySlice:
		return "[" + p.TypeName(t.Elem) + "]"
	case TyArray:
		return "[" + p.TypeName(t.Elem) + "; " + itoa(t.Len) + "]"
	case TyGeneric:
		return p.Generics.Get(t.Generic).Name
	case TyStruct:
		name := p.Structs.Get(t.Struct).Name
		return name + genericArgsStr(p, t.Args)
	case TyFnRef:
		name := p.Funcs.Get(t.Fn).Name
		return "fn:" + name + genericArgsStr(p, t.Args)
	}
	return "?"
}

func genericArgsStr(p *Program, args []TypeID) string {
	if len(args) == 0 {
		return ""
	}
	s := "<"
	for i, a := range args {
		if i > 0 {
			s += ", "
		}
		s += p.TypeName(a)
	}
	return s + ">"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
