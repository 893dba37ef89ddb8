// Package lir implements the location-aware low IR of spec §4.5: a stack
// frame is laid out for every function (return address slot if it makes a
// call, locals, incoming arguments in reverse, a return-value slot), and
// every U-IR instruction is lowered to an L-IR instruction referencing
// stack-relative operands instead of abstract variables.
package lir

import (
	"vslcrv/internal/token"
	"vslcrv/internal/uir"
)

// Slot is a function-local stack location, offset from the stack pointer
// as it stands after the function's prologue has reserved the frame.
type Slot struct {
	Var    uir.VarID
	Offset int
	Size   int
}

// Frame is the full stack layout for one function.
type Frame struct {
	Slots    map[uir.VarID]*Slot
	Order    []*Slot
	Params   []*Slot // incoming parameters, in declaration order (not reversed)
	Size     int
	SavesRA  bool
	RAOffset int
}

func newFrame() *Frame {
	return &Frame{Slots: map[uir.VarID]*Slot{}}
}

func (f *Frame) alloc(p *uir.Program, v uir.VarID) *Slot {
	if s, ok := f.Slots[v]; ok {
		return s
	}
	vr := p.Vars.Get(v)
	size := p.TypeSize(vr.Type)
	s := &Slot{Var: v, Offset: f.Size, Size: size}
	f.Size += size
	f.Slots[v] = s
	f.Order = append(f.Order, s)
	return s
}

// Kind tags the L-IR instruction sum type.
type Kind int

const (
	KMv Kind = iota
	KLoadAddr // Dst = address-of Src (Ref) or address-of a function (LoadFn).
	KLoad     // Dst = *Src (Deref): load through the pointer held in Src.
	KLoadData
	KCall
	KAsmBlock
	KRet
	KMark
	KJump
	KBranch
)

// Label identifies a jump target synthesized for If/Loop control flow.
type Label int

// Instr is one L-IR instruction: stack-relative operands instead of
// abstract uir.VarID values, plus the handful of control-flow pseudo-ops
// (Jump/Branch/Mark) that did not exist at the U-IR level.
type Instr struct {
	Kind Kind

	Dst *Slot
	Src *Slot

	Data uir.DataID
	Fn   uir.FuncID // target of a LoadFn-derived KLoadAddr.

	CallFn   *Slot
	CallArgs []*Slot

	AsmArgs  []uir.AsmRegBind
	AsmLines []uir.AsmLine

	RetSlot *Slot // valid only when Kind == KRet and the function is non-Unit.

	Target Label // Jump/Branch target.
	Cond   *Slot // Branch condition; branches when false (skip-body pattern).
	Label  Label // Mark's own label.

	Origin token.Span
}

// Func is one lowered function: its frame layout and flat L-IR body.
type Func struct {
	ID     uir.FuncID
	Name   string
	Frame  *Frame
	Instrs []Instr
	Ret    uir.TypeID
}

// Program is every lowered function plus the shared Data table carried
// over unchanged from U-IR (read-only bytes never need stack slots).
type Program struct {
	Funcs []*Func
	Data  *uir.Table[uir.Data]
}

// Lower lowers every function in p into L-IR form (spec §4.5).
func Lower(p *uir.Program) *Program {
	out := &Program{Data: &p.Data}
	for _, fid := range p.Funcs.All() {
		out.Funcs = append(out.Funcs, lowerFunc(p, fid, p.Funcs.Get(fid)))
	}
	return out
}

func lowerFunc(p *uir.Program, fid uir.FuncID, f *uir.Func) *Func {
	frame := newFrame()
	if f.MakesCall {
		frame.SavesRA = true
		frame.RAOffset = frame.Size
		frame.Size += 8
	}
	// Locals (including temporaries) first, in declaration order, skipping
	// parameters so they can be placed after — spec §4.5's slot ordering:
	// "RA if makes_call, locals, reversed incoming args, return slot".
	paramSet := make(map[uir.VarID]bool, len(f.Params))
	for _, pv := range f.Params {
		paramSet[pv] = true
	}
	walkVars(f, func(v uir.VarID) {
		if !paramSet[v] {
			frame.alloc(p, v)
		}
	})
	for i := len(f.Params) - 1; i >= 0; i-- {
		frame.alloc(p, f.Params[i])
	}
	frame.Params = make([]*Slot, len(f.Params))
	for i, pv := range f.Params {
		frame.Params[i] = frame.Slots[pv]
	}
	var retSlot *Slot
	_, rt := p.RealType(f.Ret)
	if rt.Kind != uir.TyUnit {
		retSlot = &Slot{Offset: frame.Size, Size: p.TypeSize(f.Ret)}
		frame.Size += retSlot.Size
	}

	lb := &lowerBuilder{p: p, frame: frame, retSlot: retSlot}
	lb.block(f.Instrs)

	return &Func{ID: fid, Name: f.Name, Frame: frame, Instrs: lb.out, Ret: f.Ret}
}

// walkVars visits every Var mentioned by any instruction in f's body
// (recursing into If/Loop), in first-use order, each exactly once.
func walkVars(f *uir.Func, visit func(uir.VarID)) {
	seen := map[uir.VarID]bool{}
	see := func(v uir.VarID) {
		if v.Valid() && !seen[v] {
			seen[v] = true
			visit(v)
		}
	}
	var walk func([]uir.InstrInst)
	walk = func(instrs []uir.InstrInst) {
		for _, in := range instrs {
			// Only the VarID fields in.Kind uses are read: the others hold the
			// zero value, which is also a real handle.
			switch in.Kind {
			case uir.IMv, uir.IRef, uir.IDeref:
				see(in.Dst)
				see(in.Src)
			case uir.ICall:
				see(in.Dst)
				see(in.CallFn)
			case uir.ILoadData, uir.ILoadSlice, uir.ILoadFn, uir.IConstruct:
				see(in.Dst)
			case uir.IRet:
				see(in.Src)
			case uir.IIf:
				see(in.Cond)
			}
			for _, a := range in.CallArgs {
				see(a)
			}
			for _, a := range in.AsmArgs {
				see(a.Var)
			}
			for _, fi := range in.Fields {
				see(fi.Var)
			}
			switch in.Kind {
			case uir.IIf, uir.ILoop:
				walk(in.Body)
			}
		}
	}
	walk(f.Instrs)
}

type lowerBuilder struct {
	p          *uir.Program
	frame      *Frame
	retSlot    *Slot
	labels     int
	out        []Instr
	loopStarts []Label
	loopEnds   []Label
}

func (lb *lowerBuilder) newLabel() Label {
	lb.labels++
	return Label(lb.labels)
}

func (lb *lowerBuilder) slot(v uir.VarID) *Slot {
	return lb.frame.alloc(lb.p, v)
}

func (lb *lowerBuilder) emit(in Instr) { lb.out = append(lb.out, in) }

func (lb *lowerBuilder) block(instrs []uir.InstrInst) {
	for _, in := range instrs {
		lb.instr(in)
	}
}

func (lb *lowerBuilder) instr(in uir.InstrInst) {
	switch in.Kind {
	case uir.IMv:
		lb.emit(Instr{Kind: KMv, Dst: lb.slot(in.Dst), Src: lb.slot(in.Src), Origin: in.Origin})

	case uir.IRef:
		lb.emit(Instr{Kind: KLoadAddr, Dst: lb.slot(in.Dst), Src: lb.slot(in.Src), Origin: in.Origin})

	case uir.IDeref:
		lb.emit(Instr{Kind: KLoad, Dst: lb.slot(in.Dst), Src: lb.slot(in.Src), Origin: in.Origin})

	case uir.ILoadData, uir.ILoadSlice:
		lb.emit(Instr{Kind: KLoadData, Dst: lb.slot(in.Dst), Data: in.Data, Origin: in.Origin})

	case uir.ILoadFn:
		lb.emit(Instr{Kind: KLoadAddr, Dst: lb.slot(in.Dst), Fn: in.Fn, Origin: in.Origin})

	case uir.ICall:
		args := make([]*Slot, len(in.CallArgs))
		for i, a := range in.CallArgs {
			args[i] = lb.slot(a)
		}
		lb.emit(Instr{Kind: KCall, Dst: lb.slot(in.Dst), CallFn: lb.slot(in.CallFn), CallArgs: args, Origin: in.Origin})

	case uir.IAsmBlock:
		lb.emit(Instr{Kind: KAsmBlock, AsmArgs: in.AsmArgs, AsmLines: in.AsmLines, Origin: in.Origin})

	case uir.IRet:
		r := Instr{Kind: KRet, Origin: in.Origin}
		if in.Src.Valid() {
			src := lb.slot(in.Src)
			r.RetSlot = lb.retSlot
			r.Src = src
		}
		lb.emit(r)

	case uir.IConstruct:
		// A Construct lowers to one Mv per field into the destination's
		// field sub-slots; field offsets come from the struct layout, not
		// from separate Var allocations, so they're computed here directly.
		dstSlot := lb.slot(in.Dst)
		_, dt := lb.p.RealType(lb.p.Vars.Get(in.Dst).Type)
		for _, fi := range in.Fields {
			off := lb.p.FieldOffset(dt.Struct, dt.Args, fi.Name)
			fieldSlot := &Slot{Offset: dstSlot.Offset + off, Size: lb.slot(fi.Var).Size}
			lb.emit(Instr{Kind: KMv, Dst: fieldSlot, Src: lb.slot(fi.Var), Origin: in.Origin})
		}

	case uir.IIf:
		skip := lb.newLabel()
		lb.emit(Instr{Kind: KBranch, Cond: lb.slot(in.Cond), Target: skip, Origin: in.Origin})
		lb.block(in.Body)
		lb.emit(Instr{Kind: KMark, Label: skip, Origin: in.Origin})

	case uir.ILoop:
		top := lb.newLabel()
		end := lb.newLabel()
		lb.loopEnds = append(lb.loopEnds, end)
		lb.loopStarts = append(lb.loopStarts, top)
		lb.emit(Instr{Kind: KMark, Label: top, Origin: in.Origin})
		lb.block(in.Body)
		lb.emit(Instr{Kind: KJump, Target: top, Origin: in.Origin})
		lb.emit(Instr{Kind: KMark, Label: end, Origin: in.Origin})
		lb.loopEnds = lb.loopEnds[:len(lb.loopEnds)-1]
		lb.loopStarts = lb.loopStarts[:len(lb.loopStarts)-1]

	case uir.IBreak:
		// unify.Run rejects a Break outside any enclosing Loop as
		// BadControlFlow before this lowering pass ever runs, so loopEnds is
		// always non-empty here.
		n := len(lb.loopEnds)
		lb.emit(Instr{Kind: KJump, Target: lb.loopEnds[n-1], Origin: in.Origin})

	case uir.IContinue:
		n := len(lb.loopStarts)
		lb.emit(Instr{Kind: KJump, Target: lb.loopStarts[n-1], Origin: in.Origin})
	}
}
