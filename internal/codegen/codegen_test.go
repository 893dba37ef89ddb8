package codegen

import (
	"testing"

	"vslcrv/internal/riscv"
)

func TestLoadImmFitsInSingleAddi(t *testing.T) {
	words := loadImm(riscv.T0, 42)
	if len(words) != 1 {
		t.Fatalf("loadImm(42) produced %d words, want 1 (fits addi's 12-bit immediate)", len(words))
	}
}

func TestLoadImmNeedsLuiAddiPair(t *testing.T) {
	words := loadImm(riscv.T0, 1<<20)
	if len(words) != 2 {
		t.Fatalf("loadImm(1<<20) produced %d words, want 2 (lui+addi)", len(words))
	}
}

func TestLoadImmNegative(t *testing.T) {
	words := loadImm(riscv.T0, -4096)
	if len(words) != 2 {
		t.Fatalf("loadImm(-4096) produced %d words, want 2 (outside addi's 12-bit immediate)", len(words))
	}
	words = loadImm(riscv.T0, -5000)
	if len(words) != 2 {
		t.Fatalf("loadImm(-5000) produced %d words, want 2", len(words))
	}
}

func TestDecodeIntRoundTrip(t *testing.T) {
	cases := []int64{0, 1, -1, 42, -42, 1 << 40, -(1 << 40)}
	for _, v := range cases {
		b := make([]byte, 8)
		u := uint64(v)
		for i := 0; i < 8; i++ {
			b[i] = byte(u >> (8 * i))
		}
		if got := decodeInt(b); got != v {
			t.Errorf("decodeInt(encode(%d)) = %d", v, got)
		}
	}
}
