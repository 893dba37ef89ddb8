package riscv

import "testing"

func TestAddi(t *testing.T) {
	// addi a0, zero, 5 -> imm=5, rs1=0, funct3=0, rd=a0(10), opcode=0010011
	got := Addi(A0, Zero, 5)
	want := uint32(5)<<20 | uint32(A0)<<7 | opImm
	if got != want {
		t.Fatalf("Addi: got %#x, want %#x", got, want)
	}
}

func TestAddiNegativeImmediate(t *testing.T) {
	got := Addi(Sp, Sp, -16)
	// imm field is the low 12 bits of the two's-complement value.
	want := uint32(0xff0)<<20 | uint32(Sp)<<15 | uint32(Sp)<<7 | opImm
	if got != want {
		t.Fatalf("Addi(-16): got %#x, want %#x", got, want)
	}
}

func TestSdLd(t *testing.T) {
	sd := Sd(Ra, Sp, 8)
	ld := Ld(Ra, Sp, 8)
	// Storing then loading the same register/offset must use the store and
	// load opcodes respectively.
	if sd&0x7f != opStore {
		t.Fatalf("Sd: opcode = %#b, want opStore", sd&0x7f)
	}
	if ld&0x7f != opLoad {
		t.Fatalf("Ld: opcode = %#b, want opLoad", ld&0x7f)
	}
}

func TestEcallEbreakDistinct(t *testing.T) {
	ec, eb := Ecall(), Ebreak()
	if ec == eb {
		t.Fatal("Ecall and Ebreak must encode differently (imm 0 vs 1)")
	}
	if ec&0x7f != opSystem || eb&0x7f != opSystem {
		t.Fatal("Ecall/Ebreak must both use opSystem")
	}
}

func TestJalDistinguishesOffsetsAndRd(t *testing.T) {
	if Jal(Ra, 16) == Jal(Ra, 32) {
		t.Fatal("Jal must encode different offsets differently")
	}
	if Jal(Ra, 16) == Jal(Zero, 16) {
		t.Fatal("Jal must encode different rd registers differently")
	}
	if Jal(Ra, 16)&0x7f != opJal {
		t.Fatalf("Jal: opcode = %#b, want opJal", Jal(Ra, 16)&0x7f)
	}
}

func TestFitsSigned(t *testing.T) {
	cases := []struct {
		v     int64
		width int
		want  bool
	}{
		{0, 12, true},
		{2047, 12, true},
		{2048, 12, false},
		{-2048, 12, true},
		{-2049, 12, false},
	}
	for _, c := range cases {
		if got := FitsSigned(c.v, c.width); got != c.want {
			t.Errorf("FitsSigned(%d, %d) = %v, want %v", c.v, c.width, got, c.want)
		}
	}
}
