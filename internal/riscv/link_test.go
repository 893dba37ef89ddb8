package riscv

import "testing"

// TestLinkForwardAndBackwardRefs builds two functions that call each other
// (a forward reference from f0 to f1, and a backward one from f1 to f0) and
// checks the patched jal immediates land on the right targets.
func TestLinkForwardAndBackwardRefs(t *testing.T) {
	a := NewAssembler()
	const f0, f1 Symbol = 0, 1
	a.AddFunc(f0, []Word{
		JalRef(Ra, f1), // forward ref, patched once f1 is laid out
		Raw(Jalr(Zero, Ra, 0)),
	})
	a.AddFunc(f1, []Word{
		JalRef(Ra, f0), // backward ref, resolvable immediately
		Raw(Jalr(Zero, Ra, 0)),
	})
	a.SetStart(f0)

	code, start, err := a.Link()
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if start != 0 {
		t.Fatalf("start offset = %d, want 0", start)
	}
	if len(code) != 16 {
		t.Fatalf("code length = %d, want 16 (4 words)", len(code))
	}

	f0Jal := decodeJImm(code[0:4])
	if f0Jal != 8 {
		t.Fatalf("f0's jal to f1: offset = %d, want 8", f0Jal)
	}
	f1Jal := decodeJImm(code[8:12])
	if f1Jal != -8 {
		t.Fatalf("f1's jal to f0: offset = %d, want -8", f1Jal)
	}
}

// TestLinkRefDefine checks an intra-function label (an If/Loop jump target)
// resolves against its own function body without needing a separate Symbol
// table entry outside the two tables Assembler already tracks.
func TestLinkRefDefine(t *testing.T) {
	a := NewAssembler()
	const fn, label Symbol = 0, 100
	a.AddFunc(fn, []Word{
		BranchRef(Zero, Zero, label), // branch to the label defined below
		Raw(Addi(T0, Zero, 1)),
		DefineRef(label),
		Raw(Jalr(Zero, Ra, 0)),
	})
	code, _, err := a.Link()
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if len(code) != 12 {
		t.Fatalf("code length = %d, want 12 (DefineRef contributes no bytes)", len(code))
	}
}

func TestLinkUndefinedSymbol(t *testing.T) {
	a := NewAssembler()
	a.AddFunc(0, []Word{JalRef(Ra, 99)})
	if _, _, err := a.Link(); err == nil {
		t.Fatal("expected an error for a symbol that is never defined")
	}
}

func TestLinkDataBeforeFunctions(t *testing.T) {
	a := NewAssembler()
	const data, fn Symbol = 0, 1
	a.AddData(data, []byte{1, 2, 3})
	a.AddFunc(fn, []Word{Raw(Addi(Zero, Zero, 0))})
	code, _, err := a.Link()
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	// data is laid out first, padded to a 4-byte boundary before code starts.
	if len(code) != 8 {
		t.Fatalf("code length = %d, want 8 (3 data bytes padded to 4, then 1 word)", len(code))
	}
	if code[0] != 1 || code[1] != 2 || code[2] != 3 {
		t.Fatalf("data bytes not laid out first: % x", code[:4])
	}
}

func decodeJImm(word []byte) int32 {
	w := uint32(word[0]) | uint32(word[1])<<8 | uint32(word[2])<<16 | uint32(word[3])<<24
	imm20 := (w >> 31) & 1
	imm10_1 := (w >> 21) & 0x3ff
	imm11 := (w >> 20) & 1
	imm19_12 := (w >> 12) & 0xff
	u := (imm20 << 20) | (imm19_12 << 12) | (imm11 << 11) | (imm10_1 << 1)
	v := int32(u)
	if imm20 == 1 {
		v |= ^int32(0x1fffff) // sign-extend from bit 20
	}
	return v
}
