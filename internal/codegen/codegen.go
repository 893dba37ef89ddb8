// Package codegen lowers L-IR (internal/lir) into RISC-V64 machine words
// (internal/riscv), the final stage of spec §4.6 before linking. It carries
// no register allocator: every variable lives at its stack-frame slot for
// its whole lifetime, and a fixed scratch register pair (t0, t1) ferries
// values between memory and the instructions that need them in a register —
// the same "everything lives on the stack" simplification the teacher and
// original_source's interpreter both use for a first working backend.
package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"vslcrv/internal/lir"
	"vslcrv/internal/riscv"
	"vslcrv/internal/uir"
)

// Gen translates every function in lp into a riscv.Assembler ready to link.
// p is the U-IR program lp was lowered from, needed for Data bytes/lengths
// and Var types that L-IR slots no longer carry directly.
func Gen(p *uir.Program, lp *lir.Program) (*riscv.Assembler, error) {
	g := &gen{
		p:      p,
		lp:     lp,
		asm:    riscv.NewAssembler(),
		labels: map[*lir.Func]map[lir.Label]riscv.Symbol{},
		next:   riscv.Symbol(p.Funcs.Len() + p.Data.Len()),
	}
	for did := 0; did < p.Data.Len(); did++ {
		d := p.Data.Get(uir.DataID(did))
		g.asm.AddData(g.dataSym(uir.DataID(did)), d.Bytes)
	}
	for _, f := range lp.Funcs {
		words, err := g.genFunc(f)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", f.Name, err)
		}
		g.asm.AddFunc(g.funcSym(f.ID), words)
	}
	if mid, ok := p.Modules.Get(p.Root).Members["main"]; ok && mid.Kind == uir.MemberFunc {
		g.asm.AddFunc(startSym, g.genStart(g.funcSym(mid.Func)))
		g.asm.SetStart(startSym)
	}
	return g.asm, nil
}

// startSym is the one reserved symbol outside the func/data/label space:
// the process entry stub that calls main and exits cleanly.
const startSym riscv.Symbol = -1

type gen struct {
	p      *uir.Program
	lp     *lir.Program
	asm    *riscv.Assembler
	labels map[*lir.Func]map[lir.Label]riscv.Symbol
	next   riscv.Symbol
}

func (g *gen) funcSym(fid uir.FuncID) riscv.Symbol { return riscv.Symbol(int(fid)) }
func (g *gen) dataSym(did uir.DataID) riscv.Symbol { return riscv.Symbol(g.p.Funcs.Len() + int(did)) }

func (g *gen) labelSym(f *lir.Func, l lir.Label) riscv.Symbol {
	m, ok := g.labels[f]
	if !ok {
		m = map[lir.Label]riscv.Symbol{}
		g.labels[f] = m
	}
	if s, ok := m[l]; ok {
		return s
	}
	s := g.next
	g.next++
	m[l] = s
	return s
}

// genStart builds the process entry stub: jal main, then the Linux exit
// syscall (a7=93, a0=0) so an empty or returning main exits cleanly under
// emulation (spec's "empty main" acceptance scenario).
func (g *gen) genStart(main riscv.Symbol) []riscv.Word {
	var out []riscv.Word
	out = append(out, riscv.JalRef(riscv.Ra, main))
	out = append(out, loadImm(riscv.A7, 93)...)
	out = append(out, loadImm(riscv.A0, 0)...)
	out = append(out, riscv.Raw(riscv.Ecall()))
	return out
}

type fgen struct {
	*gen
	f *lir.Func
	w []riscv.Word
}

func (g *gen) genFunc(f *lir.Func) ([]riscv.Word, error) {
	fg := &fgen{gen: g, f: f}
	fg.prologue()
	for i := range f.Instrs {
		if err := fg.instr(&f.Instrs[i]); err != nil {
			return nil, err
		}
	}
	// A function whose body never reached a Ret (a Unit-returning function
	// falling off the end of its block) still needs its epilogue.
	fg.epilogue()
	return fg.w, nil
}

func (fg *fgen) emit(w riscv.Word) { fg.w = append(fg.w, w) }

func (fg *fgen) prologue() {
	size := fg.f.Frame.Size
	if size != 0 {
		fg.emit(riscv.Raw(riscv.Addi(riscv.Sp, riscv.Sp, -int32(size))))
	}
	if fg.f.Frame.SavesRA {
		fg.emit(riscv.Raw(riscv.Sd(riscv.Ra, riscv.Sp, int32(fg.f.Frame.RAOffset))))
	}
	// Spill incoming arguments from the a0-a7 calling-convention registers
	// into their parameter slots; the caller (fgen.call) placed them there
	// before the jal, and every reference to a parameter inside the body
	// reads it back from its frame slot like any other variable.
	for i, s := range fg.f.Frame.Params {
		if i >= len(argRegs) {
			break
		}
		fg.emit(fg.store(argRegs[i], s))
	}
}

func (fg *fgen) epilogue() {
	if fg.f.Frame.SavesRA {
		fg.emit(riscv.Raw(riscv.Ld(riscv.Ra, riscv.Sp, int32(fg.f.Frame.RAOffset))))
	}
	if fg.f.Frame.Size != 0 {
		fg.emit(riscv.Raw(riscv.Addi(riscv.Sp, riscv.Sp, int32(fg.f.Frame.Size))))
	}
	fg.emit(riscv.Raw(riscv.Jalr(riscv.Zero, riscv.Ra, 0)))
}

// load/store move an 8-byte-or-smaller slot through a scratch register.
func (fg *fgen) load(reg riscv.Reg, s *lir.Slot) riscv.Word {
	return riscv.Raw(riscv.Ld(reg, riscv.Sp, int32(s.Offset)))
}
func (fg *fgen) store(reg riscv.Reg, s *lir.Slot) riscv.Word {
	return riscv.Raw(riscv.Sd(reg, riscv.Sp, int32(s.Offset)))
}

// copy moves src's whole value into dst, 8 bytes at a time — correct for
// any slot size since uir.Program.TypeSize always rounds up to a multiple
// of 8 (spec §4.5).
func (fg *fgen) copy(dst, src *lir.Slot) {
	size := dst.Size
	if size == 0 {
		return
	}
	for off := 0; off < size; off += 8 {
		fg.emit(riscv.Raw(riscv.Ld(riscv.T0, riscv.Sp, int32(src.Offset+off))))
		fg.emit(riscv.Raw(riscv.Sd(riscv.T0, riscv.Sp, int32(dst.Offset+off))))
	}
}

// loadImm loads a constant (up to 32 bits signed) into reg, expanding to
// lui+addi when it doesn't fit a single 12-bit addi immediate — the
// constant-building half of the standard `li` pseudo-instruction (the
// pc-relative half, `la`, lives in internal/riscv as LaRef).
func loadImm(reg riscv.Reg, v int64) []riscv.Word {
	if riscv.FitsSigned(v, 12) {
		return []riscv.Word{riscv.Raw(riscv.Addi(reg, riscv.Zero, int32(v)))}
	}
	lo := v & 0xfff
	if lo >= 0x800 {
		lo -= 0x1000
	}
	hi := (v - lo) >> 12
	return []riscv.Word{
		riscv.Raw(riscv.Lui(reg, int32(hi<<12))),
		riscv.Raw(riscv.Addi(reg, reg, int32(lo))),
	}
}

// decodeInt reverses internal/lower's little-endian 8-byte int encoding.
func decodeInt(b []byte) int64 {
	var u uint64
	for i := 0; i < 8 && i < len(b); i++ {
		u |= uint64(b[i]) << (8 * uint(i))
	}
	return int64(u)
}

func (fg *fgen) instr(in *lir.Instr) error {
	switch in.Kind {
	case lir.KMv:
		fg.copy(in.Dst, in.Src)

	case lir.KLoadAddr:
		return fg.loadAddr(in)

	case lir.KLoad:
		fg.emit(fg.load(riscv.T0, in.Src))
		for off := 0; off < in.Dst.Size; off += 8 {
			fg.emit(riscv.Raw(riscv.Ld(riscv.T1, riscv.T0, int32(off))))
			fg.emit(riscv.Raw(riscv.Sd(riscv.T1, riscv.Sp, int32(in.Dst.Offset+off))))
		}

	case lir.KLoadData:
		return fg.loadData(in)

	case lir.KCall:
		return fg.call(in)

	case lir.KAsmBlock:
		return fg.asmBlock(in)

	case lir.KRet:
		if in.RetSlot != nil && in.Src != nil {
			fg.emit(fg.load(riscv.A0, in.Src))
		}
		fg.epilogue()

	case lir.KMark:
		fg.emit(riscv.DefineRef(fg.labelSym(fg.f, in.Label)))

	case lir.KJump:
		fg.emit(riscv.JalRef(riscv.Zero, fg.labelSym(fg.f, in.Target)))

	case lir.KBranch:
		// "branches when false" (spec §4.5's If lowering: skip the body when
		// the condition does not hold).
		fg.emit(fg.load(riscv.T0, in.Cond))
		fg.emit(riscv.BranchRef(riscv.T0, riscv.Zero, fg.labelSym(fg.f, in.Target)))
	}
	return nil
}

func (fg *fgen) loadAddr(in *lir.Instr) error {
	if in.Src == nil {
		// LoadFn: the address of a whole function, resolved at link time.
		words := riscv.LaRef(riscv.T0, fg.funcSym(in.Fn))
		fg.emit(words[0])
		fg.emit(words[1])
		fg.emit(fg.store(riscv.T0, in.Dst))
		return nil
	}
	// Ref: the address of a stack slot is just its frame-relative offset
	// off the current (already-adjusted) stack pointer.
	if !riscv.FitsSigned(int64(in.Src.Offset), 12) {
		return fmt.Errorf("frame offset %d exceeds addi's 12-bit immediate", in.Src.Offset)
	}
	fg.emit(riscv.Raw(riscv.Addi(riscv.T0, riscv.Sp, int32(in.Src.Offset))))
	fg.emit(fg.store(riscv.T0, in.Dst))
	return nil
}

// loadData lowers a LoadData/LoadSlice reference to one of the data table's
// read-only blobs. A Bits-typed destination (an integer literal) holds the
// decoded value itself rather than a pointer to it — the encoded bytes are
// known at link time, so the literal becomes a plain immediate instead of
// a memory indirection. Every other destination type is the blob's
// address, widened to a (pointer, length) pair for a Slice destination.
func (fg *fgen) loadData(in *lir.Instr) error {
	d := fg.p.Data.Get(in.Data)
	if in.Dst.Var.Valid() {
		_, vt := fg.p.RealType(fg.p.Vars.Get(in.Dst.Var).Type)
		if vt.Kind == uir.TyBits {
			v := decodeInt(d.Bytes)
			for _, w := range loadImm(riscv.T0, v) {
				fg.emit(w)
			}
			fg.emit(fg.store(riscv.T0, in.Dst))
			return nil
		}
	}
	words := riscv.LaRef(riscv.T0, fg.dataSym(in.Data))
	fg.emit(words[0])
	fg.emit(words[1])
	fg.emit(fg.store(riscv.T0, in.Dst))
	if in.Dst.Size > 8 {
		// Slice: (pointer, length) pair — the length is a link-time constant
		// (the data blob's own byte count), so it loads as an immediate
		// rather than needing its own symbol.
		for _, w := range loadImm(riscv.T1, int64(len(d.Bytes))) {
			fg.emit(w)
		}
		fg.emit(riscv.Raw(riscv.Sd(riscv.T1, riscv.Sp, int32(in.Dst.Offset+8))))
	}
	return nil
}

// argRegs is the fixed argument-register sequence this backend uses in
// place of a real register allocator (spec §4.5/§4.6 describe Call's args
// as a plain (var,size) list; this compiler places up to 8 of them in
// a0-a7, the standard RISC-V integer argument registers, and returns a
// single scalar in a0 — see DESIGN.md for why larger aggregates aren't
// supported).
var argRegs = [8]riscv.Reg{riscv.A0, riscv.A1, riscv.A2, riscv.A3, riscv.A4, riscv.A5, riscv.A6, riscv.A7}

func (fg *fgen) call(in *lir.Instr) error {
	if len(in.CallArgs) > len(argRegs) {
		return fmt.Errorf("call passes %d arguments, only %d supported", len(in.CallArgs), len(argRegs))
	}
	for i, a := range in.CallArgs {
		fg.emit(fg.load(argRegs[i], a))
	}
	fg.emit(fg.load(riscv.T0, in.CallFn))
	fg.emit(riscv.Raw(riscv.Jalr(riscv.Ra, riscv.T0, 0)))
	if in.Dst != nil {
		fg.emit(fg.store(riscv.A0, in.Dst))
	}
	return nil
}

// regByName maps the RISC-V ABI register mnemonics an asm block may bind or
// reference to their Reg value.
var regByName = map[string]riscv.Reg{
	"zero": riscv.Zero, "ra": riscv.Ra, "sp": riscv.Sp, "gp": riscv.Gp, "tp": riscv.Tp,
	"t0": riscv.T0, "t1": riscv.T1, "t2": riscv.T2,
	"s0": riscv.S0, "fp": riscv.S0, "s1": riscv.S1,
	"a0": riscv.A0, "a1": riscv.A1, "a2": riscv.A2, "a3": riscv.A3,
	"a4": riscv.A4, "a5": riscv.A5, "a6": riscv.A6, "a7": riscv.A7,
	"s2": riscv.S2, "s3": riscv.S3, "s4": riscv.S4, "s5": riscv.S5,
	"s6": riscv.S6, "s7": riscv.S7, "s8": riscv.S8, "s9": riscv.S9,
	"s10": riscv.S10, "s11": riscv.S11,
	"t3": riscv.T3, "t4": riscv.T4, "t5": riscv.T5, "t6": riscv.T6,
}

func (fg *fgen) asmBlock(in *lir.Instr) error {
	frame := fg.f.Frame
	for _, bind := range in.AsmArgs {
		if bind.Dir != uir.DirIn {
			continue
		}
		reg, ok := regByName[bind.Reg]
		if !ok {
			return fmt.Errorf("unknown register %q in asm block", bind.Reg)
		}
		slot, ok := frame.Slots[bind.Var]
		if !ok {
			return fmt.Errorf("asm argument variable has no frame slot")
		}
		fg.emit(fg.load(reg, slot))
	}
	for _, line := range in.AsmLines {
		words, err := fg.asmLine(line)
		if err != nil {
			return err
		}
		fg.w = append(fg.w, words...)
	}
	for _, bind := range in.AsmArgs {
		if bind.Dir != uir.DirOut {
			continue
		}
		reg, ok := regByName[bind.Reg]
		if !ok {
			return fmt.Errorf("unknown register %q in asm block", bind.Reg)
		}
		slot, ok := frame.Slots[bind.Var]
		if !ok {
			return fmt.Errorf("asm argument variable has no frame slot")
		}
		fg.emit(fg.store(reg, slot))
	}
	return nil
}

// asmLine encodes one raw instruction line inside an asm block. Only the
// mnemonics a hand-written syscall trampoline actually needs are
// recognized (spec §4.5's inline-asm acceptance scenario is a Linux
// write+exit sequence); anything else is a compile error naming the
// mnemonic, not a silent no-op.
func (fg *fgen) asmLine(l uir.AsmLine) ([]riscv.Word, error) {
	ops := l.Operands
	reg := func(i int) (riscv.Reg, error) {
		r, ok := regByName[strings.TrimSpace(ops[i])]
		if !ok {
			return 0, fmt.Errorf("unknown register %q", ops[i])
		}
		return r, nil
	}
	imm := func(i int) (int64, error) {
		s := strings.TrimSpace(ops[i])
		return strconv.ParseInt(s, 0, 64)
	}
	switch strings.ToLower(l.Mnemonic) {
	case "ecall":
		return []riscv.Word{riscv.Raw(riscv.Ecall())}, nil
	case "ebreak":
		return []riscv.Word{riscv.Raw(riscv.Ebreak())}, nil
	case "nop":
		return []riscv.Word{riscv.Raw(riscv.Addi(riscv.Zero, riscv.Zero, 0))}, nil
	case "mv":
		rd, err := reg(0)
		if err != nil {
			return nil, err
		}
		rs, err := reg(1)
		if err != nil {
			return nil, err
		}
		return []riscv.Word{riscv.Raw(riscv.Addi(rd, rs, 0))}, nil
	case "li":
		rd, err := reg(0)
		if err != nil {
			return nil, err
		}
		v, err := imm(1)
		if err != nil {
			return nil, err
		}
		return loadImm(rd, v), nil
	case "add":
		rd, e1 := reg(0)
		rs1, e2 := reg(1)
		rs2, e3 := reg(2)
		if e1 != nil || e2 != nil || e3 != nil {
			return nil, fmt.Errorf("add: bad operands")
		}
		return []riscv.Word{riscv.Raw(riscv.Add(rd, rs1, rs2))}, nil
	case "sub":
		rd, e1 := reg(0)
		rs1, e2 := reg(1)
		rs2, e3 := reg(2)
		if e1 != nil || e2 != nil || e3 != nil {
			return nil, fmt.Errorf("sub: bad operands")
		}
		return []riscv.Word{riscv.Raw(riscv.Sub(rd, rs1, rs2))}, nil
	case "addi":
		rd, e1 := reg(0)
		rs1, e2 := reg(1)
		v, e3 := imm(2)
		if e1 != nil || e2 != nil || e3 != nil {
			return nil, fmt.Errorf("addi: bad operands")
		}
		return []riscv.Word{riscv.Raw(riscv.Addi(rd, rs1, int32(v)))}, nil
	}
	return nil, fmt.Errorf("unsupported asm mnemonic %q", l.Mnemonic)
}
