package lir

import (
	"testing"

	"vslcrv/internal/token"
	"vslcrv/internal/uir"
)

// buildSimpleFunc builds `fn f(a: b64, b: b64) -> b64 { let c = a; return c; }`
// directly against uir tables, bypassing the parser/lower passes, to pin
// down the frame-layout invariants this package owns.
func buildSimpleFunc(p *uir.Program) uir.FuncID {
	b64 := p.NewType(uir.Bits(64))
	a := p.NewVar("a", b64, token.Builtin())
	b := p.NewVar("b", b64, token.Builtin())
	c := p.NewVar("c", b64, token.Builtin())
	fid := p.Funcs.Push(uir.Func{
		Name:   "f",
		Params: []uir.VarID{a, b},
		Ret:    b64,
		Instrs: []uir.InstrInst{
			uir.Mv(c, a, token.Builtin()),
			uir.Ret(c, token.Builtin()),
		},
	})
	return fid
}

func TestFrameLayoutOrdersLocalsBeforeReversedParams(t *testing.T) {
	p := uir.NewProgram()
	fid := buildSimpleFunc(p)
	lp := Lower(p)

	var f *Func
	for _, fn := range lp.Funcs {
		if fn.ID == fid {
			f = fn
		}
	}
	if f == nil {
		t.Fatal("lowered function not found")
	}

	frame := f.Frame
	if len(frame.Params) != 2 {
		t.Fatalf("Frame.Params has %d entries, want 2", len(frame.Params))
	}
	// c (the local) must come before both params in frame.Order, and params
	// are placed in reverse declaration order within their own region
	// (spec §4.5: "locals, then reversed incoming args, then return slot").
	var cSlot, aSlot, bSlot *Slot
	for _, s := range frame.Order {
		switch s.Var {
		case frame.Params[0].Var:
			aSlot = s
		case frame.Params[1].Var:
			bSlot = s
		default:
			cSlot = s
		}
	}
	if cSlot == nil || aSlot == nil || bSlot == nil {
		t.Fatal("expected all three slots (c, a, b) to be allocated")
	}
	if cSlot.Offset >= aSlot.Offset || cSlot.Offset >= bSlot.Offset {
		t.Errorf("local 'c' (offset %d) must precede params a (%d) and b (%d)", cSlot.Offset, aSlot.Offset, bSlot.Offset)
	}
	if bSlot.Offset >= aSlot.Offset {
		t.Errorf("params are reversed: want b (%d) before a (%d)", bSlot.Offset, aSlot.Offset)
	}
	// Frame.Params itself stays in declaration order for codegen's
	// register-spill prologue, regardless of the reversed stack layout.
	if frame.Params[0].Var != aSlot.Var || frame.Params[1].Var != bSlot.Var {
		t.Error("Frame.Params must list params in declaration order, not stack order")
	}
}

func TestFrameSizeAndOffsetsAreEightByteMultiples(t *testing.T) {
	p := uir.NewProgram()
	fid := buildSimpleFunc(p)
	lp := Lower(p)
	for _, f := range lp.Funcs {
		if f.ID != fid {
			continue
		}
		if f.Frame.Size%8 != 0 {
			t.Errorf("frame size %d is not a multiple of 8", f.Frame.Size)
		}
		for _, s := range f.Frame.Order {
			if s.Offset%8 != 0 {
				t.Errorf("slot %v offset %d is not 8-byte aligned", s.Var, s.Offset)
			}
		}
	}
}

func TestNoCallMeansNoRASave(t *testing.T) {
	p := uir.NewProgram()
	fid := buildSimpleFunc(p)
	lp := Lower(p)
	for _, f := range lp.Funcs {
		if f.ID == fid && f.Frame.SavesRA {
			t.Error("a function that makes no call should not reserve a return-address slot")
		}
	}
}
