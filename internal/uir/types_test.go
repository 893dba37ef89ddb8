package uir

import "testing"

func TestTypeSizeRoundsUpToEightBytes(t *testing.T) {
	p := NewProgram()
	cases := []struct {
		width int
		want  int
	}{
		{1, 8}, {8, 8}, {9, 8}, {64, 8}, {65, 16},
	}
	for _, c := range cases {
		id := p.NewType(Bits(c.width))
		if got := p.TypeSize(id); got != c.want {
			t.Errorf("TypeSize(Bits(%d)) = %d, want %d", c.width, got, c.want)
		}
	}
}

func TestTypeSizeAggregates(t *testing.T) {
	p := NewProgram()
	b64 := p.NewType(Bits(64))
	if got := p.TypeSize(p.NewType(Type{Kind: TyRef, Elem: b64})); got != 8 {
		t.Errorf("TypeSize(Ref) = %d, want 8", got)
	}
	if got := p.TypeSize(p.NewType(Type{Kind: TySlice, Elem: b64})); got != 16 {
		t.Errorf("TypeSize(Slice) = %d, want 16", got)
	}
	arr := p.NewType(Type{Kind: TyArray, Elem: b64, Len: 3})
	if got := p.TypeSize(arr); got != 24 {
		t.Errorf("TypeSize(Array(b64, 3)) = %d, want 24", got)
	}
}

func TestTypeSizeStruct(t *testing.T) {
	p := NewProgram()
	b8 := p.NewType(Bits(8))
	b64 := p.NewType(Bits(64))
	sid := p.Structs.Push(Struct{
		Name:       "Pair",
		Fields:     map[string]Field{"a": {Type: b8, Order: 0}, "b": {Type: b64, Order: 1}},
		FieldOrder: []string{"a", "b"},
	})
	st := p.NewType(Type{Kind: TyStruct, Struct: sid})
	// Each field individually rounds up to 8 before summing (spec §4.5's
	// stack-slot rule applies per field, not to the packed total).
	if got := p.TypeSize(st); got != 16 {
		t.Errorf("TypeSize(struct{b8,b64}) = %d, want 16", got)
	}
}

func TestRealChasesPtrChainWithCompression(t *testing.T) {
	p := NewProgram()
	infer := p.NewType(Type{Kind: TyInfer})
	a := p.NewType(Type{Kind: TyPtr, Elem: infer})
	bID := p.NewType(Type{Kind: TyPtr, Elem: a})
	c := p.NewType(Type{Kind: TyPtr, Elem: bID})

	concrete := p.NewType(Bits(32))
	p.Point(infer, concrete)

	got, rt := p.RealType(c)
	if rt.Kind != TyBits || rt.Width != 32 {
		t.Fatalf("RealType(c) = %+v, want Bits(32)", rt)
	}
	// Path compression: chasing c again must be a single hop now.
	if elem := p.Types.Get(c).Elem; elem != got {
		t.Errorf("after RealType, c's Elem = %v, want %v (compressed)", elem, got)
	}
}

func TestSameTypeStructural(t *testing.T) {
	p := NewProgram()
	b64a := p.NewType(Bits(64))
	b64b := p.NewType(Bits(64))
	if !p.SameType(b64a, b64b) {
		t.Error("two separately-interned Bits(64) types should compare structurally equal")
	}
	b32 := p.NewType(Bits(32))
	if p.SameType(b64a, b32) {
		t.Error("Bits(64) and Bits(32) must not compare equal")
	}
	refA := p.NewType(Type{Kind: TyRef, Elem: b64a})
	refB := p.NewType(Type{Kind: TyRef, Elem: b64b})
	if !p.SameType(refA, refB) {
		t.Error("Ref(Bits(64)) types over structurally-equal elements should match")
	}
}
