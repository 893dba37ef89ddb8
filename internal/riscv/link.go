package riscv

import "fmt"

// Symbol identifies a linker-visible location: a function entry point or a
// read-only data blob, addressed by a dense integer exactly as
// original_source's compiler/program.rs AddrID does.
type Symbol int

// RefKind distinguishes how a Word's final encoding depends on the address
// of the symbol it references, resolved only once every function and data
// blob has been laid out (spec §4.6's two-pass linker).
type RefKind int

const (
	RefNone RefKind = iota
	RefJal          // pc-relative J-type jump/call.
	RefBranch       // pc-relative B-type conditional branch.
	RefAuipcHi      // `la` expansion, first word: auipc rd, hi20(sym-pc).
	RefAddiLo       // `la` expansion, second word: addi rd, rd, lo12(sym-pc). Must immediately follow its RefAuipcHi word in the same function.
	RefDefine       // defines Sym's address at this position; contributes zero bytes. Used for intra-function labels (If/Loop targets), which need a Symbol of their own since the linker's only notion of an address is "where a Symbol was defined".
)

// Word is one instruction slot in a function body before layout: either
// already a concrete encoding, or a forward reference awaiting a symbol's
// address.
type Word struct {
	Concrete bool
	Bits     uint32

	Kind RefKind
	Sym  Symbol
	Rd   Reg
	Rs1  Reg
	Rs2  Reg
}

// Raw wraps an already-encoded instruction word (anything with no symbolic
// reference: register-register ALU ops, ecall/ebreak, loads/stores off a
// known-constant offset).
func Raw(bits uint32) Word { return Word{Concrete: true, Bits: bits} }

// JalRef builds a direct jump/call Word resolved against sym's final
// address once layout completes.
func JalRef(rd Reg, sym Symbol) Word { return Word{Kind: RefJal, Sym: sym, Rd: rd} }

// BranchRef builds a conditional-branch Word (beq rs1, rs2, sym).
func BranchRef(rs1, rs2 Reg, sym Symbol) Word {
	return Word{Kind: RefBranch, Sym: sym, Rs1: rs1, Rs2: rs2}
}

// DefineRef marks sym as defined at this exact position in its containing
// function's word list (an intra-function label), contributing no bytes.
func DefineRef(sym Symbol) Word { return Word{Kind: RefDefine, Sym: sym} }

// LaRef builds the two-word `la rd, sym` expansion (auipc+addi), per
// spec §4.6: "La expands to auipc+addi". The returned words must stay
// adjacent in the emitted function body.
func LaRef(rd Reg, sym Symbol) [2]Word {
	return [2]Word{
		{Kind: RefAuipcHi, Sym: sym, Rd: rd},
		{Kind: RefAddiLo, Sym: sym, Rd: rd},
	}
}

// Func is one function's linker-ready body.
type Func struct {
	Sym   Symbol
	Words []Word
}

// Data is one read-only data blob.
type Data struct {
	Sym   Symbol
	Bytes []byte
}

// Assembler accumulates functions and data blobs, then lays them out into
// one flat byte image (spec §4.6): read-only data first (4-byte aligned),
// then functions, in insertion order, patching forward references as each
// referenced symbol's address becomes known.
type Assembler struct {
	funcs    []Func
	data     []Data
	start    Symbol
	hasStart bool
}

// NewAssembler returns an empty Assembler.
func NewAssembler() *Assembler { return &Assembler{} }

// AddData appends a read-only data blob under sym.
func (a *Assembler) AddData(sym Symbol, b []byte) { a.data = append(a.data, Data{sym, b}) }

// AddFunc appends a function body under sym.
func (a *Assembler) AddFunc(sym Symbol, words []Word) { a.funcs = append(a.funcs, Func{sym, words}) }

// SetStart marks sym as the program's entry point.
func (a *Assembler) SetStart(sym Symbol) { a.start, a.hasStart = sym, true }

type pendingPatch struct {
	pos int
	w   Word
}

// Link lays out every data blob and function, patches forward references,
// and returns the final byte image along with the start symbol's byte
// offset into it.
func (a *Assembler) Link() ([]byte, uint64, error) {
	addr := make(map[Symbol]uint64, len(a.funcs)+len(a.data))
	var out []byte

	for _, d := range a.data {
		addr[d.Sym] = uint64(len(out))
		out = append(out, d.Bytes...)
	}
	for len(out)%4 != 0 {
		out = append(out, 0)
	}

	missing := make(map[Symbol][]pendingPatch)
	define := func(sym Symbol, pos int) error {
		addr[sym] = uint64(pos)
		waiting, ok := missing[sym]
		if !ok {
			return nil
		}
		for _, pnd := range waiting {
			bits, resolved := a.resolve(pnd.w, pnd.pos, addr)
			if !resolved {
				return fmt.Errorf("internal error: symbol %d still unresolved after definition", pnd.w.Sym)
			}
			copy(out[pnd.pos:pnd.pos+4], le32(bits))
		}
		delete(missing, sym)
		return nil
	}

	for _, f := range a.funcs {
		if err := define(f.Sym, len(out)); err != nil {
			return nil, 0, err
		}
		for _, w := range f.Words {
			if w.Kind == RefDefine {
				if err := define(w.Sym, len(out)); err != nil {
					return nil, 0, err
				}
				continue
			}
			pos := len(out)
			bits, ok := a.resolve(w, pos, addr)
			out = append(out, le32(bits)...)
			if !ok {
				missing[w.Sym] = append(missing[w.Sym], pendingPatch{pos, w})
			}
		}
	}
	if len(missing) > 0 {
		for sym := range missing {
			return nil, 0, fmt.Errorf("undefined symbol %d referenced but never defined", sym)
		}
	}

	var start uint64
	if a.hasStart {
		s, ok := addr[a.start]
		if !ok {
			return nil, 0, fmt.Errorf("start symbol not found")
		}
		start = s
	}
	return out, start, nil
}

// resolve computes w's final 32-bit encoding given its position pos in the
// output and the addresses assigned so far. ok is false when w references
// a symbol not yet laid out (a placeholder zero word is still returned so
// the caller can reserve the slot and patch it later).
func (a *Assembler) resolve(w Word, pos int, addr map[Symbol]uint64) (uint32, bool) {
	if w.Concrete {
		return w.Bits, true
	}
	target, ok := addr[w.Sym]
	if !ok {
		return 0, false
	}
	switch w.Kind {
	case RefJal:
		return JType(int32(int64(target)-int64(pos)), w.Rd, opJal), true
	case RefBranch:
		return BType(w.Rs2, w.Rs1, 0b000, int32(int64(target)-int64(pos)), opBranch), true
	case RefAuipcHi:
		offset := int64(target) - int64(pos)
		hi, _ := splitHiLo(offset)
		return UType(int32(hi<<12), w.Rd, opAuipc), true
	case RefAddiLo:
		// The paired auipc always sits immediately before this word
		// (LaRef emits them together), so its pc is pos-4.
		auipcPos := pos - 4
		offset := int64(target) - int64(auipcPos)
		_, lo := splitHiLo(offset)
		return IType(int32(lo), w.Rd, 0b000, w.Rd, opImm), true
	}
	return 0, true
}

// splitHiLo splits a 32-bit pc-relative offset into the (hi20, lo12) pair
// an auipc+addi pair needs, compensating for addi's sign-extension of
// lo12 exactly as the standard `la` pseudo-instruction does.
func splitHiLo(offset int64) (hi, lo int64) {
	lo = offset & 0xfff
	if lo >= 0x800 {
		lo -= 0x1000
	}
	hi = (offset - lo) >> 12
	return hi, lo
}

func le32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
