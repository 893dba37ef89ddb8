// Package riscv encodes RISC-V64 instructions to their 32-bit machine code
// and links a set of functions plus read-only data into one flat byte
// image, grounded on original_source's compiler/arch/riscv instruction
// encoders and compiler/program.rs two-pass linker.
package riscv

import "github.com/bits-and-blooms/bitset"

// immBitSet turns a 32-bit two's-complement immediate into a bitset so
// every instruction encoder extracts its scattered immediate fields
// through one tested abstraction instead of ad hoc shifting and masking
// at each call site.
func immBitSet(imm int32) *bitset.BitSet {
	bs := bitset.New(32)
	u := uint32(imm)
	for i := uint(0); i < 32; i++ {
		if u&(1<<i) != 0 {
			bs.Set(i)
		}
	}
	return bs
}

// bitsRange extracts bits [hi:lo] (inclusive) of bs, returned as the low
// bits of the result word.
func bitsRange(bs *bitset.BitSet, hi, lo int) uint32 {
	var out uint32
	for i := lo; i <= hi; i++ {
		if bs.Test(uint(i)) {
			out |= 1 << uint(i-lo)
		}
	}
	return out
}

func bit(bs *bitset.BitSet, i int) uint32 {
	if bs.Test(uint(i)) {
		return 1
	}
	return 0
}

// FitsSigned reports whether v fits in a signed field of the given width.
func FitsSigned(v int64, width int) bool {
	lo := -(int64(1) << uint(width-1))
	hi := (int64(1) << uint(width-1)) - 1
	return v >= lo && v <= hi
}
