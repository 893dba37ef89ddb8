// Package resolve implements the identifier resolver of spec §4.1: a
// fixpoint walk over every unresolved identifier expression in a
// uir.Program, honoring generics and cross-module references, reporting
// generic-arity and unknown-member errors.
package resolve

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"vslcrv/internal/uir"
)

// Resolver drives the fixpoint described in spec §4.1. It holds no state
// beyond the Program it resolves against (spec §5: resolution mutates only
// the type table and identifier-expression statuses, owned by this phase).
type Resolver struct {
	p *uir.Program
}

// New returns a Resolver over p.
func New(p *uir.Program) *Resolver {
	return &Resolver{p: p}
}

// Run resolves every identifier expression currently in the program to a
// Resolved or Failed terminal state. Termination: each pass either resolves
// at least one expression (progress) or produces no change; on no-change,
// remaining unresolved expressions are reported (spec §4.1, §8.2).
func (r *Resolver) Run() {
	ids := r.p.Idents.All()
	for pass := 0; ; pass++ {
		progress := false
		var pending []uir.IdentExprID
		for _, id := range ids {
			ie := r.p.Idents.Get(id)
			if ie.Status == uir.IdentResolved || ie.Status == uir.IdentCooked || ie.Status == uir.IdentFailed {
				continue
			}
			if r.step(id) {
				progress = true
			}
			ie = r.p.Idents.Get(id)
			if ie.Status == uir.IdentUnresolved || ie.Status == uir.IdentRef {
				pending = append(pending, id)
			}
		}
		logrus.WithFields(logrus.Fields{"pass": pass, "pending": len(pending), "progress": progress}).Debug("resolve fixpoint pass")
		if len(pending) == 0 {
			return
		}
		if !progress {
			for _, id := range pending {
				r.fail(id, "could not resolve identifier: no progress possible")
			}
			return
		}
	}
}

// step attempts to make progress on one identifier expression. It returns
// true if the expression's state changed (validated its base, consumed a
// path segment, followed a Ref, or reached a terminal state).
func (r *Resolver) step(id uir.IdentExprID) bool {
	ie := r.p.Idents.Get(id)

	if ie.Status == uir.IdentRef {
		other := r.p.Idents.Get(ie.Ref)
		switch other.Status {
		case uir.IdentResolved, uir.IdentCooked:
			ie.Status = uir.IdentResolved
			ie.Base.Res = other.Base.Res
			ie.Base.Validated = true
			return true
		case uir.IdentFailed:
			ie.Status = uir.IdentFailed
			ie.ErrMsg = other.ErrMsg
			return true
		default:
			return false
		}
	}

	progressed := false
	if !ie.Base.Validated {
		res, ok, failMsg := r.validateBase(ie.Base.Unvalidated)
		if failMsg != "" {
			ie.Status = uir.IdentFailed
			ie.ErrMsg = failMsg
			return true
		}
		if !ok {
			return false
		}
		ie.Base.Res = res
		ie.Base.Validated = true
		progressed = true
	}

	for len(ie.Path) > 0 {
		seg := ie.Path[0]
		next, resolvedNow, errMsg := r.resolveSegment(ie.Base.Res, seg)
		if errMsg != "" {
			ie.Status = uir.IdentFailed
			ie.ErrMsg = errMsg
			return true
		}
		if !resolvedNow {
			return progressed
		}
		ie.Base.Res = next
		ie.Path = ie.Path[1:]
		progressed = true
	}

	if len(ie.Path) == 0 {
		ie.Status = uir.IdentResolved
		return true
	}
	return progressed
}

// validateBase looks up an unvalidated member reference in its parent
// module and checks generic arity. Returns (res, found, errMsg): found is
// false when the name isn't defined yet (a later declaration may still
// supply it); errMsg is non-empty only once the name IS found but its
// generic arity is wrong. The kind of the member found is not checked here.
func (r *Resolver) validateBase(uv uir.UnvalidatedMember) (uir.Res, bool, string) {
	res, found := r.lookupBase(uv)
	if !found {
		return uir.Res{}, false, ""
	}
	if res.Kind == uir.ResFunc {
		f := r.p.Funcs.Get(res.Func)
		if len(res.FuncArgs) != len(f.Generics) {
			return uir.Res{}, false, fmt.Sprintf("generic argument count mismatch for function '%s': expected %d, got %d",
				f.Name, len(f.Generics), len(res.FuncArgs))
		}
	}
	if res.Kind == uir.ResStruct {
		s := r.p.Structs.Get(res.Struct)
		if uv.InferArgs && len(res.StructArgs) == 0 {
			res.StructArgs = r.inferArgs(len(s.Generics))
		} else if len(res.StructArgs) != len(s.Generics) {
			return uir.Res{}, false, fmt.Sprintf("generic argument count mismatch for struct '%s': expected %d, got %d",
				s.Name, len(s.Generics), len(res.StructArgs))
		}
	}
	return res, true, ""
}

// inferArgs allocates n fresh Infer type slots, one per a struct's omitted
// generic argument at a construction site; unify.checkConstruct pins each
// one down once it matches the corresponding field's declared type against
// the value supplied.
func (r *Resolver) inferArgs(n int) []uir.TypeID {
	args := make([]uir.TypeID, n)
	for i := range args {
		args[i] = r.p.NewType(uir.Type{Kind: uir.TyInfer})
	}
	return args
}

func (r *Resolver) lookupBase(uv uir.UnvalidatedMember) (uir.Res, bool) {
	mod := r.p.Modules.Get(uv.ParentMod)
	if mem, ok := mod.Members[uv.Name]; ok {
		return r.resFromMember(mem, uv.Args), true
	}
	if cid, ok := mod.Children[uv.Name]; ok {
		return uir.Res{Kind: uir.ResModule, Module: cid}, true
	}
	return uir.Res{}, false
}

func (r *Resolver) resFromMember(mem uir.Member, gargs []uir.TypeID) uir.Res {
	switch mem.Kind {
	case uir.MemberFunc:
		return uir.Res{Kind: uir.ResFunc, Func: mem.Func, FuncArgs: gargs}
	case uir.MemberStruct:
		return uir.Res{Kind: uir.ResStruct, Struct: mem.Struct, StructArgs: gargs}
	case uir.MemberVar:
		return uir.Res{Kind: uir.ResVar, Var: mem.Var}
	}
	return uir.Res{}
}

// resolveSegment consumes one path segment against the current base Res,
// following the dispatch table of spec §4.1.
func (r *Resolver) resolveSegment(base uir.Res, seg uir.PathSeg) (uir.Res, bool, string) {
	switch {
	case seg.Sep == uir.SepMember && base.Kind == uir.ResModule:
		mod := r.p.Modules.Get(base.Module)
		if mem, ok := mod.Members[seg.Name]; ok {
			res := r.resFromMember(mem, seg.Args)
			if res.Kind == uir.ResFunc {
				f := r.p.Funcs.Get(res.Func)
				if len(seg.Args) != len(f.Generics) {
					return uir.Res{}, false, fmt.Sprintf("generic argument count mismatch for function '%s': expected %d, got %d",
						f.Name, len(f.Generics), len(seg.Args))
				}
			}
			if res.Kind == uir.ResStruct {
				s := r.p.Structs.Get(res.Struct)
				if seg.InferArgs && len(seg.Args) == 0 {
					res.StructArgs = r.inferArgs(len(s.Generics))
				} else if len(seg.Args) != len(s.Generics) {
					return uir.Res{}, false, fmt.Sprintf("generic argument count mismatch for struct '%s': expected %d, got %d",
						s.Name, len(s.Generics), len(seg.Args))
				}
			}
			return res, true, ""
		}
		if cid, ok := mod.Children[seg.Name]; ok {
			return uir.Res{Kind: uir.ResModule, Module: cid}, true, ""
		}
		return uir.Res{}, false, "" // may be defined by a later pass
	case seg.Sep == uir.SepField && base.Kind == uir.ResVar:
		child, ok := r.p.ChildVar(base.Var, seg.Name)
		if !ok {
			return uir.Res{}, false, fmt.Sprintf("unknown member %s of %s", seg.Name, r.p.ResDisplay(base))
		}
		return uir.Res{Kind: uir.ResVar, Var: child}, true, ""
	default:
		return uir.Res{}, false, fmt.Sprintf("unknown member %s%s of %s", seg.Sep, seg.Name, r.p.ResDisplay(base))
	}
}

func (r *Resolver) fail(id uir.IdentExprID, msg string) {
	ie := r.p.Idents.Get(id)
	ie.Status = uir.IdentFailed
	ie.ErrMsg = msg
}

// ReportFailures pushes a diagnostic for every identifier expression left in
// the Failed state, in table order (stable for a given input, spec §5). Call
// once, after Run returns, so each failure is reported exactly once.
func ReportFailures(p *uir.Program) {
	for _, id := range p.Idents.All() {
		ie := p.Idents.Get(id)
		if ie.Status == uir.IdentFailed && ie.ErrMsg != "" {
			p.Diags.Error(ie.Origin, "%s", ie.ErrMsg)
		}
	}
}
