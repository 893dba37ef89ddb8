// Package uir is the untyped upper intermediate representation (spec §3):
// functions, structs, variables, types, identifiers and modules, addressed
// by dense per-kind integer handles so that a handle from one kind table
// can never be reinterpreted as belonging to another (spec §3 "Kinds are
// disjoint").
package uir

// ID is a dense handle into the Table[T] holding values of kind T. Kinds
// are disjoint by construction: an ID[Func] and an ID[Var] are distinct Go
// types even though both are backed by an int, so the compiler rejects
// cross-kind reinterpretation at the call site.
type ID[T any] int

// NoID returns the sentinel handle meaning "absent". Table.Push starts
// counting at 0, so -1 never collides with a real entry.
func NoID[T any]() ID[T] {
	return ID[T](-1)
}

// Valid reports whether id refers to a real table entry.
func (id ID[T]) Valid() bool {
	return id >= 0
}

// Table is a dense, append-only arena for one identifier kind.
type Table[T any] struct {
	items []T
}

// Push appends v and returns its handle.
func (t *Table[T]) Push(v T) ID[T] {
	id := ID[T](len(t.items))
	t.items = append(t.items, v)
	return id
}

// Get returns a mutable pointer to the value behind id.
func (t *Table[T]) Get(id ID[T]) *T {
	return &t.items[id]
}

// Len returns the number of entries in the table.
func (t *Table[T]) Len() int {
	return len(t.items)
}

// All returns every handle currently in the table, in insertion order.
func (t *Table[T]) All() []ID[T] {
	ids := make([]ID[T], t.Len())
	for i := range ids {
		ids[i] = ID[T](i)
	}
	return ids
}

type (
	FuncID      = ID[Func]
	VarID       = ID[Var]
	StructID    = ID[Struct]
	TypeID      = ID[Type]
	GenericID   = ID[Generic]
	ModuleID    = ID[Module]
	DataID      = ID[Data]
	IdentExprID = ID[IdentExpr]
)
