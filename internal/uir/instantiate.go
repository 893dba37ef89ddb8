package uir

// Instantiate substitutes every Generic(id) type reachable from ty that
// appears as a key in sub with its mapped Type, interning a fresh Type only
// where the substitution actually changes something (spec §4.3: "If the
// original type contains no generics bound in the map, return the original
// handle unchanged (sharing)").
func (p *Program) Instantiate(ty TypeID, sub map[GenericID]TypeID) TypeID {
	if len(sub) == 0 {
		return ty
	}
	id, t := p.RealType(ty)
	switch t.Kind {
	case TyGeneric:
		if repl, ok := sub[t.Generic]; ok {
			return repl
		}
		return id
	case TyRef:
		e := p.Instantiate(t.Elem, sub)
		if e == t.Elem {
			return id
		}
		return p.NewType(Type{Kind: TyRef, Elem: e})
	case TySlice:
		e := p.Instantiate(t.Elem, sub)
		if e == t.Elem {
			return id
		}
		return p.NewType(Type{Kind: TySlice, Elem: e})
	case TyArray:
		e := p.Instantiate(t.Elem, sub)
		if e == t.Elem {
			return id
		}
		return p.NewType(Type{Kind: TyArray, Elem: e, Len: t.Len})
	case TyStruct:
		changed := false
		args := make([]TypeID, len(t.Args))
		for i, a := range t.Args {
			args[i] = p.Instantiate(a, sub)
			if args[i] != a {
				changed = true
			}
		}
		if !changed {
			return id
		}
		return p.NewType(Type{Kind: TyStruct, Struct: t.Struct, Args: args})
	case TyFnRef:
		changed := false
		args := make([]TypeID, len(t.Args))
		for i, a := range t.Args {
			args[i] = p.Instantiate(a, sub)
			if args[i] != a {
				changed = true
			}
		}
		if !changed {
			return id
		}
		return p.NewType(Type{Kind: TyFnRef, Fn: t.Fn, Args: args})
	default:
		return id
	}
}

// InstantiateFromParams builds the substitution map from a declaration's
// ordered generic parameters and the provided argument types, then returns
// Instantiate(ty, sub). Mirrors inst_typedef in spec §4.3.
func (p *Program) InstantiateFromParams(params []GenericID, gargs []TypeID, ty TypeID) TypeID {
	if len(params) == 0 {
		return ty
	}
	sub := make(map[GenericID]TypeID, len(params))
	for i, g := range params {
		if i < len(gargs) {
			sub[g] = gargs[i]
		}
	}
	return p.Instantiate(ty, sub)
}
