// Package lower turns a parsed ast.Module tree into uir.Program
// declarations and instruction bodies (spec §4.4). Lowering runs in four
// sub-passes over the whole tree — declare, struct fields, function
// signatures, function bodies — so that every module/struct/function name
// is already known by the time any function body is lowered: a call or
// construction naming a sibling declared later in the same file, or in a
// module declared later in the tree, resolves without needing a second
// compilation pass.
package lower

import (
	"vslcrv/internal/ast"
	"vslcrv/internal/resolve"
	"vslcrv/internal/token"
	"vslcrv/internal/uir"
)

// Lowerer drives AST-to-U-IR lowering against one Program.
type Lowerer struct {
	p *uir.Program
}

// New returns a Lowerer targeting p.
func New(p *uir.Program) *Lowerer {
	return &Lowerer{p: p}
}

// Lower declares and lowers the full module tree rooted at root into the
// Program's root module.
func (l *Lowerer) Lower(root *ast.Module) {
	l.declareModule(root, l.p.Root)
	l.lowerStructFieldsRec(root, l.p.Root)
	l.lowerFuncSigsRec(root, l.p.Root)
	l.lowerFuncBodiesRec(root, l.p.Root)
}

// ---- declare pass: allocate empty Module/Struct/Func/Generic records ----

func (l *Lowerer) declareModule(m *ast.Module, mid uir.ModuleID) {
	mod := l.p.Modules.Get(mid)
	for _, s := range m.Structs {
		gens := l.declareGenerics(s.Generics)
		sid := l.p.Structs.Push(uir.Struct{
			Name:     s.Name,
			Generics: gens,
			Fields:   map[string]uir.Field{},
			Origin:   s.Span,
		})
		mod.Members[s.Name] = uir.Member{Kind: uir.MemberStruct, Struct: sid}
	}
	for _, f := range m.Funcs {
		gens := l.declareGenerics(f.Generics)
		fid := l.p.Funcs.Push(uir.Func{
			Name:     f.Name,
			Generics: gens,
			Ret:      uir.NoID[uir.Type](),
			Origin:   f.Span,
		})
		mod.Members[f.Name] = uir.Member{Kind: uir.MemberFunc, Func: fid}
	}
	for _, child := range m.Children {
		cid := l.p.NewModule(child.Name, mid, child.Span)
		mod.Children[child.Name] = cid
		l.declareModule(child, cid)
	}
}

func (l *Lowerer) declareGenerics(gs []*ast.GenericParam) []uir.GenericID {
	if len(gs) == 0 {
		return nil
	}
	out := make([]uir.GenericID, len(gs))
	for i, g := range gs {
		out[i] = l.p.Generics.Push(uir.Generic{Name: g.Name, Origin: g.Span})
	}
	return out
}

func genericScope(p *uir.Program, gens []uir.GenericID) map[string]uir.GenericID {
	m := make(map[string]uir.GenericID, len(gens))
	for _, g := range gens {
		m[p.Generics.Get(g).Name] = g
	}
	return m
}

// ---- struct-field pass ----

func (l *Lowerer) lowerStructFieldsRec(m *ast.Module, mid uir.ModuleID) {
	mod := l.p.Modules.Get(mid)
	for _, s := range m.Structs {
		l.lowerStructFields(s, mod.Members[s.Name].Struct, mid)
	}
	for _, child := range m.Children {
		l.lowerStructFieldsRec(child, mod.Children[child.Name])
	}
}

func (l *Lowerer) lowerStructFields(s *ast.Struct, sid uir.StructID, mid uir.ModuleID) {
	st := l.p.Structs.Get(sid)
	gen := genericScope(l.p, st.Generics)
	order := make([]string, 0, len(s.Fields))
	for i, f := range s.Fields {
		ty := l.lowerType(f.Type, mid, gen)
		st.Fields[f.Name] = uir.Field{Type: ty, Order: i, Origin: f.Span}
		order = append(order, f.Name)
	}
	st.FieldOrder = order
}

// ---- function-signature pass ----

func (l *Lowerer) lowerFuncSigsRec(m *ast.Module, mid uir.ModuleID) {
	mod := l.p.Modules.Get(mid)
	for _, f := range m.Funcs {
		l.lowerFuncSig(f, mod.Members[f.Name].Func, mid)
	}
	for _, child := range m.Children {
		l.lowerFuncSigsRec(child, mod.Children[child.Name])
	}
}

func (l *Lowerer) lowerFuncSig(f *ast.Func, fid uir.FuncID, mid uir.ModuleID) {
	fn := l.p.Funcs.Get(fid)
	gen := genericScope(l.p, fn.Generics)
	params := make([]uir.VarID, len(f.Params))
	for i, pa := range f.Params {
		params[i] = l.p.NewVar(pa.Name, l.lowerType(pa.Type, mid, gen), pa.Span)
	}
	fn.Params = params
	fn.Ret = l.lowerType(f.Ret, mid, gen)
}

// ---- function-body pass ----

func (l *Lowerer) lowerFuncBodiesRec(m *ast.Module, mid uir.ModuleID) {
	mod := l.p.Modules.Get(mid)
	for _, f := range m.Funcs {
		l.lowerFuncBody(f, mod.Members[f.Name].Func, mid)
	}
	for _, child := range m.Children {
		l.lowerFuncBodiesRec(child, mod.Children[child.Name])
	}
}

func (l *Lowerer) lowerFuncBody(f *ast.Func, fid uir.FuncID, mid uir.ModuleID) {
	fn := l.p.Funcs.Get(fid)
	gen := genericScope(l.p, fn.Generics)
	c := newCtx(l, mid, gen)
	for _, v := range fn.Params {
		c.define(l.p.Vars.Get(v).Name, v)
	}
	var instrs []uir.InstrInst
	for _, st := range f.Body {
		instrs = append(instrs, l.lowerStmt(c, st)...)
	}
	fn.Instrs = instrs
	fn.MakesCall = c.makesCall
}

// ---- type-expression lowering ----

func (l *Lowerer) lowerType(te *ast.TypeExpr, mid uir.ModuleID, gen map[string]uir.GenericID) uir.TypeID {
	if te == nil {
		return l.p.NewType(uir.Unit())
	}
	switch {
	case te.Ref != nil:
		return l.p.NewType(uir.Type{Kind: uir.TyRef, Elem: l.lowerType(te.Ref, mid, gen)})
	case te.Slice != nil:
		return l.p.NewType(uir.Type{Kind: uir.TySlice, Elem: l.lowerType(te.Slice, mid, gen)})
	case te.Array != nil:
		return l.p.NewType(uir.Type{Kind: uir.TyArray, Elem: l.lowerType(te.Array, mid, gen), Len: te.ArrayN})
	}
	if w, ok := bitsWidth(te.Name); ok {
		return l.p.NewType(uir.Bits(w))
	}
	if te.Name == "Unit" {
		return l.p.NewType(uir.Unit())
	}
	if gid, ok := gen[te.Name]; ok {
		return l.p.NewType(uir.Type{Kind: uir.TyGeneric, Generic: gid})
	}
	if sid, ok := l.findStruct(mid, te.Name); ok {
		args := make([]uir.TypeID, len(te.Args))
		for i, a := range te.Args {
			args[i] = l.lowerType(a, mid, gen)
		}
		return l.p.NewType(uir.Type{Kind: uir.TyStruct, Struct: sid, Args: args})
	}
	l.p.Diags.Error(te.Span, "unknown type '%s'", te.Name)
	return l.p.NewType(uir.Type{Kind: uir.TyError})
}

// bitsWidth parses the "bNN" builtin integer type spelling (e.g. b64, b1).
func bitsWidth(name string) (int, bool) {
	if len(name) < 2 || name[0] != 'b' {
		return 0, false
	}
	w := 0
	for _, ch := range name[1:] {
		if ch < '0' || ch > '9' {
			return 0, false
		}
		w = w*10 + int(ch-'0')
	}
	return w, w > 0
}

// findStruct searches mid and its ancestor modules for a struct member
// named name (spec §4.1's lexical-scoping rule: innermost module first).
func (l *Lowerer) findStruct(mid uir.ModuleID, name string) (uir.StructID, bool) {
	for mid.Valid() {
		mod := l.p.Modules.Get(mid)
		if mem, ok := mod.Members[name]; ok && mem.Kind == uir.MemberStruct {
			return mem.Struct, true
		}
		mid = mod.Parent
	}
	return uir.NoID[uir.Struct](), false
}

// ---- lowering context: per-function lexical scope stack ----

type ctx struct {
	l         *Lowerer
	mid       uir.ModuleID
	gen       map[string]uir.GenericID
	scopes    []map[string]uir.VarID
	makesCall bool
}

func newCtx(l *Lowerer, mid uir.ModuleID, gen map[string]uir.GenericID) *ctx {
	return &ctx{l: l, mid: mid, gen: gen, scopes: []map[string]uir.VarID{{}}}
}

func (c *ctx) push() { c.scopes = append(c.scopes, map[string]uir.VarID{}) }
func (c *ctx) pop()  { c.scopes = c.scopes[:len(c.scopes)-1] }

func (c *ctx) define(name string, v uir.VarID) {
	c.scopes[len(c.scopes)-1][name] = v
}

func (c *ctx) lookup(name string) (uir.VarID, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if v, ok := c.scopes[i][name]; ok {
			return v, true
		}
	}
	return uir.NoID[uir.Var](), false
}

// resolveIdent resolves a source identifier expression to what it names. A
// bare local name (no path, no generic args) is resolved directly against
// the lexical scope stack; anything else is resolved via an unresolved
// uir.IdentExpr run through internal/resolve immediately, which is safe
// because every module/struct/function in the program is already declared
// by the time any function body is lowered.
func (c *ctx) resolveIdent(ie *ast.IdentExpr) uir.Res {
	return c.resolveIdentArgs(ie, false)
}

// resolveConstructStruct resolves a struct-construction expression's struct
// name (spec §4.2 Construct, e.g. `Pair{a: 1, b: 2}`). Unlike resolveIdent,
// an identifier segment with no explicit generic arguments here is not an
// arity error: it means the arguments are to be inferred from the fields
// supplied, so the resolver hands back one Infer slot per declared generic
// for unify.checkConstruct to pin down.
func (c *ctx) resolveConstructStruct(ie *ast.IdentExpr) uir.Res {
	return c.resolveIdentArgs(ie, true)
}

func (c *ctx) resolveIdentArgs(ie *ast.IdentExpr, inferArgs bool) uir.Res {
	p := c.l.p
	if len(ie.Path) == 0 && len(ie.Args) == 0 && !inferArgs {
		if v, ok := c.lookup(ie.Base); ok {
			return uir.Res{Kind: uir.ResVar, Var: v}
		}
	}
	baseArgs := make([]uir.TypeID, len(ie.Args))
	for i, a := range ie.Args {
		baseArgs[i] = c.l.lowerType(a, c.mid, c.gen)
	}
	path := make([]uir.PathSeg, len(ie.Path))
	for i, seg := range ie.Path {
		args := make([]uir.TypeID, len(seg.Args))
		for j, a := range seg.Args {
			args[j] = c.l.lowerType(a, c.mid, c.gen)
		}
		sep := uir.SepMember
		if seg.Field {
			sep = uir.SepField
		}
		// Only the final segment can be the struct being constructed.
		segInfer := inferArgs && i == len(ie.Path)-1
		path[i] = uir.PathSeg{Name: seg.Name, Args: args, Sep: sep, InferArgs: segInfer, Origin: seg.Span}
	}
	baseInfer := inferArgs && len(ie.Path) == 0
	id := p.NewUnresolvedConstructIdent(c.mid, ie.Base, baseArgs, baseInfer, path, ie.Span)
	resolve.New(p).Run()
	rie := p.Idents.Get(id)
	if rie.Status == uir.IdentFailed {
		p.Diags.Error(ie.Span, "%s", rie.ErrMsg)
		return uir.Res{Kind: uir.ResType, Type: p.NewType(uir.Type{Kind: uir.TyError})}
	}
	return rie.Base.Res
}

// ---- statement lowering ----

func (l *Lowerer) lowerStmt(c *ctx, s ast.Stmt) []uir.InstrInst {
	p := l.p
	switch st := s.(type) {
	case *ast.LetStmt:
		v, instrs := l.lowerExpr(c, st.Init)
		var ty uir.TypeID
		if st.Type != nil {
			ty = l.lowerType(st.Type, c.mid, c.gen)
		} else {
			ty = p.Vars.Get(v).Type
		}
		dst := p.NewVar(st.Name, ty, st.Span)
		instrs = append(instrs, uir.Mv(dst, v, st.Span))
		c.define(st.Name, dst)
		return instrs

	case *ast.AssignStmt:
		tv, instrs := l.lowerLValue(c, st.Target)
		v, vi := l.lowerExpr(c, st.Value)
		instrs = append(instrs, vi...)
		instrs = append(instrs, uir.Mv(tv, v, st.Span))
		return instrs

	case *ast.ExprStmt:
		_, instrs := l.lowerExpr(c, st.X)
		return instrs

	case *ast.IfStmt:
		cond, instrs := l.lowerExpr(c, st.Cond)
		c.push()
		var body []uir.InstrInst
		for _, s2 := range st.Body {
			body = append(body, l.lowerStmt(c, s2)...)
		}
		c.pop()
		instrs = append(instrs, uir.If(cond, body, st.Span))
		return instrs

	case *ast.LoopStmt:
		c.push()
		var body []uir.InstrInst
		for _, s2 := range st.Body {
			body = append(body, l.lowerStmt(c, s2)...)
		}
		c.pop()
		return []uir.InstrInst{uir.Loop(body, st.Span)}

	case *ast.BreakStmt:
		return []uir.InstrInst{uir.Break(st.Span)}

	case *ast.ContinueStmt:
		return []uir.InstrInst{uir.Continue(st.Span)}

	case *ast.ReturnStmt:
		if st.Value == nil {
			return []uir.InstrInst{uir.Ret(uir.NoID[uir.Var](), st.Span)}
		}
		v, instrs := l.lowerExpr(c, st.Value)
		instrs = append(instrs, uir.Ret(v, st.Span))
		return instrs

	case *ast.AsmStmt:
		return l.lowerAsm(c, st)
	}
	return nil
}

func (l *Lowerer) lowerLValue(c *ctx, e ast.Expr) (uir.VarID, []uir.InstrInst) {
	if ie, ok := e.(*ast.IdentExpr); ok {
		res := c.resolveIdent(ie)
		if res.Kind == uir.ResVar {
			return res.Var, nil
		}
		l.p.Diags.Error(ie.Span, "%s is not assignable", l.p.ResDisplay(res))
		return l.errVar(ie.Span), nil
	}
	l.p.Diags.Error(token.Builtin(), "invalid assignment target")
	return l.errVar(token.Builtin()), nil
}

func (l *Lowerer) lowerAsm(c *ctx, st *ast.AsmStmt) []uir.InstrInst {
	p := l.p
	args := make([]uir.AsmRegBind, 0, len(st.Args))
	for _, a := range st.Args {
		v, ok := c.lookup(a.Var)
		if !ok {
			p.Diags.Error(a.Span, "unknown variable '%s' in asm binding", a.Var)
			continue
		}
		dir := uir.DirIn
		if a.Out {
			dir = uir.DirOut
		}
		args = append(args, uir.AsmRegBind{Var: v, Reg: a.Reg, Dir: dir})
	}
	lines := make([]uir.AsmLine, len(st.Instr))
	for i, in := range st.Instr {
		lines[i] = uir.AsmLine{Mnemonic: in.Mnemonic, Operands: in.Operands, Origin: in.Span}
	}
	return []uir.InstrInst{uir.AsmBlock(args, lines, st.Span)}
}

// ---- expression lowering ----

// lowerExpr lowers e to an instruction sequence producing its value in the
// returned variable.
func (l *Lowerer) lowerExpr(c *ctx, e ast.Expr) (uir.VarID, []uir.InstrInst) {
	p := l.p
	switch x := e.(type) {
	case *ast.IdentExpr:
		res := c.resolveIdent(x)
		switch res.Kind {
		case uir.ResVar:
			return res.Var, nil
		case uir.ResFunc:
			fnTy := p.NewType(uir.Type{Kind: uir.TyFnRef, Fn: res.Func, Args: res.FuncArgs})
			dst := p.NewVar("", fnTy, x.Span)
			return dst, []uir.InstrInst{uir.LoadFn(dst, res.Func, x.Span)}
		default:
			p.Diags.Error(x.Span, "%s is not a value", p.ResDisplay(res))
			return l.errVar(x.Span), nil
		}

	case *ast.IntLit:
		bitsTy := p.NewType(uir.Bits(64))
		data := p.Data.Push(uir.Data{Bytes: encodeInt(x.Value), Type: bitsTy, Origin: x.Span})
		dst := p.NewVar("", bitsTy, x.Span)
		return dst, []uir.InstrInst{uir.LoadData(dst, data, x.Span)}

	case *ast.StringLit:
		elemTy := p.NewType(uir.Bits(8))
		data := p.Data.Push(uir.Data{Bytes: []byte(x.Value), Type: elemTy, Origin: x.Span})
		dst := p.NewVar("", p.NewType(uir.Type{Kind: uir.TySlice, Elem: elemTy}), x.Span)
		return dst, []uir.InstrInst{uir.LoadSlice(dst, data, x.Span)}

	case *ast.RefExpr:
		src, instrs := l.lowerExpr(c, x.X)
		dst := p.NewVar("", p.NewType(uir.Type{Kind: uir.TyRef, Elem: p.Vars.Get(src).Type}), x.Span)
		instrs = append(instrs, uir.Ref(dst, src, x.Span))
		return dst, instrs

	case *ast.DerefExpr:
		src, instrs := l.lowerExpr(c, x.X)
		dst := p.NewVar("", p.NewType(uir.Type{Kind: uir.TyInfer}), x.Span)
		instrs = append(instrs, uir.Deref(dst, src, x.Span))
		return dst, instrs

	case *ast.CallExpr:
		return l.lowerCall(c, x)

	case *ast.ConstructExpr:
		return l.lowerConstruct(c, x)
	}
	p.Diags.Error(token.Builtin(), "unsupported expression")
	return l.errVar(token.Builtin()), nil
}

func (l *Lowerer) lowerCall(c *ctx, x *ast.CallExpr) (uir.VarID, []uir.InstrInst) {
	p := l.p
	fnVar, instrs := l.lowerExpr(c, x.Fn)
	args := make([]uir.VarID, len(x.Args))
	for i, a := range x.Args {
		v, ai := l.lowerExpr(c, a)
		instrs = append(instrs, ai...)
		args[i] = v
	}
	_, ft := p.RealType(p.Vars.Get(fnVar).Type)
	retTy := p.NewType(uir.Type{Kind: uir.TyInfer})
	if ft.Kind == uir.TyFnRef {
		fn := p.Funcs.Get(ft.Fn)
		retTy = p.InstantiateFromParams(fn.Generics, ft.Args, fn.Ret)
	} else if ft.Kind != uir.TyError {
		p.Diags.Error(x.Span, "cannot call non-function value of type %s", p.TypeName(p.Vars.Get(fnVar).Type))
	}
	dst := p.NewVar("", retTy, x.Span)
	instrs = append(instrs, uir.Call(dst, fnVar, args, x.Span))
	c.makesCall = true
	return dst, instrs
}

func (l *Lowerer) lowerConstruct(c *ctx, x *ast.ConstructExpr) (uir.VarID, []uir.InstrInst) {
	p := l.p
	res := c.resolveConstructStruct(x.Struct)
	if res.Kind != uir.ResStruct {
		p.Diags.Error(x.Span, "%s is not a struct", p.ResDisplay(res))
		return l.errVar(x.Span), nil
	}
	structTy := p.NewType(uir.Type{Kind: uir.TyStruct, Struct: res.Struct, Args: res.StructArgs})
	dst := p.NewVar("", structTy, x.Span)
	var instrs []uir.InstrInst
	fields := make([]uir.FieldInit, len(x.Fields))
	for i, fi := range x.Fields {
		v, vi := l.lowerExpr(c, fi.Value)
		instrs = append(instrs, vi...)
		fields[i] = uir.FieldInit{Name: fi.Name, Var: v}
	}
	instrs = append(instrs, uir.Construct(dst, fields, x.Span))
	return dst, instrs
}

func (l *Lowerer) errVar(span token.Span) uir.VarID {
	return l.p.NewVar("", l.p.NewType(uir.Type{Kind: uir.TyError}), span)
}

func encodeInt(v int64) []byte {
	u := uint64(v)
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
	return b
}
