// Package unify implements the type unifier of spec §4.2: a structural
// match between the type of every instruction's operands, resolving Infer
// slots via the union-find Ptr indirection (uir.Program.Point) and
// reporting a diagnostic wherever two concrete types cannot be reconciled.
package unify

import (
	"github.com/sirupsen/logrus"

	"vslcrv/internal/token"
	"vslcrv/internal/uir"
)

// Unifier type-checks U-IR instruction bodies against a Program's type
// table. Besides the Program, its only state is loopDepth, the Loop nesting
// depth during checkBlock's descent (spec §9: type resolution mutates only
// Program.Types).
type Unifier struct {
	p *uir.Program
	// loopDepth counts enclosing ILoop bodies during checkBlock's recursive
	// descent; IBreak/IContinue at depth 0 are BadControlFlow.
	loopDepth int
}

// New returns a Unifier over p.
func New(p *uir.Program) *Unifier {
	return &Unifier{p: p}
}

func breakOrContinue(k uir.InstrKind) string {
	if k == uir.IBreak {
		return "break"
	}
	return "continue"
}

// Run type-checks every declared function's body in turn (spec §4.2,
// §4.4's lowering having already produced one Infer-bearing instruction
// list per function).
func Run(p *uir.Program) {
	u := New(p)
	for _, fid := range p.Funcs.All() {
		logrus.WithField("func", p.Funcs.Get(fid).Name).Debug("unifying function body")
		u.checkFunc(fid)
	}
}

func (u *Unifier) checkFunc(fid uir.FuncID) {
	f := u.p.Funcs.Get(fid)
	u.checkBlock(f.Instrs, f.Ret)
	u.checkReturn(f)
}

func (u *Unifier) checkReturn(f *uir.Func) {
	p := u.p
	_, rt := p.RealType(f.Ret)
	if rt.Kind == uir.TyUnit {
		return
	}
	if !endsInReturn(f.Instrs) {
		p.Diags.Error(f.Origin, "function '%s' does not return a value on all paths", f.Name)
	}
}

// endsInReturn is a conservative, non-flow-sensitive check: only a trailing
// value-carrying Ret satisfies it. An If or a Loop as the last statement
// does not, since no body is inspected to prove that every path returns.
func endsInReturn(instrs []uir.InstrInst) bool {
	if len(instrs) == 0 {
		return false
	}
	switch last := instrs[len(instrs)-1]; last.Kind {
	case uir.IRet:
		return last.Src.Valid()
	default:
		return false
	}
}

func (u *Unifier) checkBlock(instrs []uir.InstrInst, ret uir.TypeID) {
	for i := range instrs {
		u.checkInstr(&instrs[i], ret)
	}
}

func (u *Unifier) checkInstr(in *uir.InstrInst, ret uir.TypeID) {
	p := u.p
	switch in.Kind {
	case uir.IMv:
		u.Match(p.Vars.Get(in.Dst).Type, p.Vars.Get(in.Src).Type, in.Origin)

	case uir.IRef:
		src := p.Vars.Get(in.Src)
		refTy := p.NewType(uir.Type{Kind: uir.TyRef, Elem: src.Type})
		u.Match(p.Vars.Get(in.Dst).Type, refTy, in.Origin)

	case uir.IDeref:
		u.checkDeref(in)

	case uir.ILoadData:
		data := p.Data.Get(in.Data)
		u.Match(p.Vars.Get(in.Dst).Type, data.Type, in.Origin)

	case uir.ILoadSlice:
		data := p.Data.Get(in.Data)
		sliceTy := p.NewType(uir.Type{Kind: uir.TySlice, Elem: data.Type})
		u.Match(p.Vars.Get(in.Dst).Type, sliceTy, in.Origin)

	case uir.ILoadFn:
		fnTy := p.NewType(uir.Type{Kind: uir.TyFnRef, Fn: in.Fn})
		u.Match(p.Vars.Get(in.Dst).Type, fnTy, in.Origin)

	case uir.ICall:
		u.checkCall(in)

	case uir.IAsmBlock:
		// Register bindings reference already-concretely-typed variables;
		// the back-end, not the unifier, checks register-class fit.

	case uir.IRet:
		if !in.Src.Valid() {
			u.Match(ret, p.NewType(uir.Unit()), in.Origin)
			return
		}
		u.Match(ret, p.Vars.Get(in.Src).Type, in.Origin)

	case uir.IConstruct:
		u.checkConstruct(in)

	case uir.IIf:
		cond := p.Vars.Get(in.Cond)
		u.Match(cond.Type, p.NewType(uir.Bits(64)), in.Origin)
		u.checkBlock(in.Body, ret)

	case uir.ILoop:
		u.loopDepth++
		u.checkBlock(in.Body, ret)
		u.loopDepth--

	case uir.IBreak, uir.IContinue:
		if u.loopDepth == 0 {
			p.Diags.Error(in.Origin, "BadControlFlow: %s outside of a loop", breakOrContinue(in.Kind))
		}
	}
}

func (u *Unifier) checkDeref(in *uir.InstrInst) {
	p := u.p
	dst := p.Vars.Get(in.Dst)
	src := p.Vars.Get(in.Src)
	srcID, st := p.RealType(src.Type)
	if st.Kind == uir.TyInfer {
		// Src's type is still open: force it to be &dst's-type so later
		// passes see a concrete Ref instead of re-deriving it here.
		p.Point(srcID, p.NewType(uir.Type{Kind: uir.TyRef, Elem: dst.Type}))
		return
	}
	if st.Kind != uir.TyRef {
		p.Diags.Error(in.Origin, "cannot dereference non-reference type %s", p.TypeName(src.Type))
		return
	}
	u.Match(dst.Type, st.Elem, in.Origin)
}

func (u *Unifier) checkCall(in *uir.InstrInst) {
	p := u.p
	fnVar := p.Vars.Get(in.CallFn)
	_, ft := p.RealType(fnVar.Type)
	if ft.Kind != uir.TyFnRef {
		p.Diags.Error(in.Origin, "cannot call non-function value of type %s", p.TypeName(fnVar.Type))
		return
	}
	fn := p.Funcs.Get(ft.Fn)
	if len(in.CallArgs) != len(fn.Params) {
		p.Diags.Error(in.Origin, "function '%s' expects %d argument(s), got %d", fn.Name, len(fn.Params), len(in.CallArgs))
		return
	}
	for i, argVar := range in.CallArgs {
		paramTy := p.Vars.Get(fn.Params[i]).Type
		instTy := p.InstantiateFromParams(fn.Generics, ft.Args, paramTy)
		u.Match(instTy, p.Vars.Get(argVar).Type, in.Origin)
	}
	retTy := p.InstantiateFromParams(fn.Generics, ft.Args, fn.Ret)
	u.Match(p.Vars.Get(in.Dst).Type, retTy, in.Origin)
}

func (u *Unifier) checkConstruct(in *uir.InstrInst) {
	p := u.p
	dst := p.Vars.Get(in.Dst)
	_, dt := p.RealType(dst.Type)
	if dt.Kind != uir.TyStruct {
		p.Diags.Error(in.Origin, "cannot construct non-struct type %s", p.TypeName(dst.Type))
		return
	}
	s := p.Structs.Get(dt.Struct)
	u.inferConstructGenerics(in, dt, s)
	seen := make(map[string]bool, len(in.Fields))
	for _, fi := range in.Fields {
		seen[fi.Name] = true
		if _, ok := s.Fields[fi.Name]; !ok {
			p.Diags.Error(in.Origin, "unknown field '%s' in struct '%s'", fi.Name, s.Name)
			continue
		}
		fieldTy := p.FieldType(dt.Struct, dt.Args, fi.Name)
		u.Match(fieldTy, p.Vars.Get(fi.Var).Type, in.Origin)
	}
	for _, name := range s.FieldOrder {
		if !seen[name] {
			p.Diags.Error(in.Origin, "missing field '%s' in construction of struct '%s'", name, s.Name)
		}
	}
}

// inferConstructGenerics fills in any of dt's generic arguments that
// the resolver left as an Infer slot (spec §4.2 Construct: an omitted
// generic argument at a construction site, e.g. `Pair{a: 1, b: 2}`) by
// matching each field declared with a bare generic-parameter type directly
// against the value supplied for it. Mirrors the reference resolver's
// Construct case, which derives omitted generic arguments purely from the
// fields actually supplied rather than from an explicit argument list.
func (u *Unifier) inferConstructGenerics(in *uir.InstrInst, dt uir.Type, s *uir.Struct) {
	p := u.p
	if len(dt.Args) == 0 {
		return
	}
	byGeneric := make(map[uir.GenericID]int, len(s.Generics))
	for i, g := range s.Generics {
		byGeneric[g] = i
	}
	for _, fi := range in.Fields {
		f, ok := s.Fields[fi.Name]
		if !ok {
			continue
		}
		decl := p.Types.Get(f.Type)
		if decl.Kind != uir.TyGeneric {
			continue
		}
		idx, ok := byGeneric[decl.Generic]
		if !ok {
			continue
		}
		if _, at := p.RealType(dt.Args[idx]); at.Kind != uir.TyInfer {
			continue // already bound, by an explicit argument or an earlier field
		}
		u.Match(dt.Args[idx], p.Vars.Get(fi.Var).Type, in.Origin)
	}
}

// Match unifies dst and src, reporting a type-mismatch diagnostic at origin
// when they cannot be reconciled. Returns true on success; the Infer slots
// it resolves along the way stay resolved even when a later obligation
// fails, matching the teacher's non-backtracking, accumulate-then-report
// error model.
func (u *Unifier) Match(dst, src uir.TypeID, origin token.Span) bool {
	if u.match(dst, src) {
		return true
	}
	u.p.Diags.Error(origin, "type mismatch: expected %s, found %s", u.p.TypeName(dst), u.p.TypeName(src))
	return false
}

func (u *Unifier) match(dst, src uir.TypeID) bool {
	p := u.p
	d, dt := p.RealType(dst)
	s, st := p.RealType(src)
	if d == s {
		return true
	}
	if dt.Kind == uir.TyError || st.Kind == uir.TyError {
		return true
	}
	if dt.Kind == uir.TyInfer {
		p.Point(d, s)
		return true
	}
	if st.Kind == uir.TyInfer {
		p.Point(s, d)
		return true
	}
	if dt.Kind != st.Kind {
		return false
	}
	switch dt.Kind {
	case uir.TyBits:
		return dt.Width == st.Width
	case uir.TyUnit:
		return true
	case uir.TyRef, uir.TySlice:
		return u.match(dt.Elem, st.Elem)
	case uir.TyArray:
		return dt.Len == st.Len && u.match(dt.Elem, st.Elem)
	case uir.TyStruct:
		if dt.Struct != st.Struct || len(dt.Args) != len(st.Args) {
			return false
		}
		ok := true
		for i := range dt.Args {
			ok = u.match(dt.Args[i], st.Args[i]) && ok
		}
		return ok
	case uir.TyFnRef:
		if dt.Fn != st.Fn || len(dt.Args) != len(st.Args) {
			return false
		}
		ok := true
		for i := range dt.Args {
			ok = u.match(dt.Args[i], st.Args[i]) && ok
		}
		return ok
	case uir.TyGeneric:
		return dt.Generic == st.Generic
	}
	return false
}
