package uir

import "vslcrv/internal/token"

// InstrKind tags the U-IR instruction sum type (spec §3).
type InstrKind int

const (
	IMv InstrKind = iota
	IRef
	IDeref
	ILoadData
	ILoadSlice
	ILoadFn
	ICall
	IAsmBlock
	IRet
	IConstruct
	IIf
	ILoop
	IBreak
	IContinue
)

func (k InstrKind) String() string {
	names := [...]string{"mv", "ref", "deref", "loaddata", "loadslice", "loadfn",
		"call", "asm", "ret", "construct", "if", "loop", "break", "continue"}
	if int(k) < len(names) {
		return names[k]
	}
	return "?"
}

// AsmArgDir is the direction of an inline-asm register binding (spec §3
// AsmBlock: "each asm argument binds a variable to a named register
// (direction: In/Out)").
type AsmArgDir int

const (
	DirIn AsmArgDir = iota
	DirOut
)

// AsmRegBind binds a Variable to a named physical register for the
// duration of an AsmBlock.
type AsmRegBind struct {
	Var VarID
	Reg string
	Dir AsmArgDir
}

// AsmLine is one raw instruction mnemonic inside an inline-asm block. It is
// not validated against the RISC-V ISA until L-IR->RISC-V emission; at the
// U-IR level it is opaque text the back-end interprets (spec §4.5:
// "unresolved variable register references are a compiler error" is
// checked there, not here).
type AsmLine struct {
	Mnemonic string
	Operands []string
	Origin   token.Span
}

// FieldInit is one `name: var` binding in a Construct instruction.
type FieldInit struct {
	Name string
	Var  VarID
}

// Instr is the tagged union of every U-IR instruction kind. Only the
// fields relevant to Kind are populated; this mirrors the teacher's and
// original_source's practice of one Rust enum per instruction kind,
// expressed in Go as a single struct with a discriminant (idiomatic Go has
// no sum types; this is the standard interpreter-table pattern used
// throughout the examples pack, e.g. ir/upper/instr.rs).
type Instr struct {
	Kind InstrKind

	Dst VarID
	Src VarID

	Data DataID

	Fn FuncID // LoadFn target

	CallFn   VarID // materialized FnRef variable (spec §4.3)
	CallArgs []VarID

	AsmArgs  []AsmRegBind
	AsmLines []AsmLine

	Fields []FieldInit

	Cond VarID
	Body []InstrInst

	Origin token.Span
}

// InstrInst pairs an Instr with the source origin of this particular
// instance (spec §3: "Source origin ... attached to every ... instruction
// instance").
type InstrInst struct {
	Instr
}

// Mv builds a Mv{dst,src} instruction instance.
func Mv(dst, src VarID, origin token.Span) InstrInst {
	return InstrInst{Instr{Kind: IMv, Dst: dst, Src: src, Origin: origin}}
}

// Ref builds a Ref{dst,src} instruction instance.
func Ref(dst, src VarID, origin token.Span) InstrInst {
	return InstrInst{Instr{Kind: IRef, Dst: dst, Src: src, Origin: origin}}
}

// Deref builds a Deref{dst,src} instruction instance.
func Deref(dst, src VarID, origin token.Span) InstrInst {
	return InstrInst{Instr{Kind: IDeref, Dst: dst, Src: src, Origin: origin}}
}

// LoadData builds a LoadData{dst,src} instruction instance.
func LoadData(dst VarID, src DataID, origin token.Span) InstrInst {
	return InstrInst{Instr{Kind: ILoadData, Dst: dst, Data: src, Origin: origin}}
}

// LoadSlice builds a LoadSlice{dst,src} instruction instance.
func LoadSlice(dst VarID, src DataID, origin token.Span) InstrInst {
	return InstrInst{Instr{Kind: ILoadSlice, Dst: dst, Data: src, Origin: origin}}
}

// LoadFn builds a LoadFn{dst,src} instruction instance, materializing a
// Variable of FnRef type so uniform Variable-based lowering can proceed.
func LoadFn(dst VarID, src FuncID, origin token.Span) InstrInst {
	return InstrInst{Instr{Kind: ILoadFn, Dst: dst, Fn: src, Origin: origin}}
}

// Call builds a Call{dst,f,args} instruction instance.
func Call(dst, f VarID, args []VarID, origin token.Span) InstrInst {
	return InstrInst{Instr{Kind: ICall, Dst: dst, CallFn: f, CallArgs: args, Origin: origin}}
}

// AsmBlock builds an AsmBlock{in,out,instrs} instruction instance.
func AsmBlock(args []AsmRegBind, lines []AsmLine, origin token.Span) InstrInst {
	return InstrInst{Instr{Kind: IAsmBlock, AsmArgs: args, AsmLines: lines, Origin: origin}}
}

// Ret builds a Ret{src?} instruction instance; src is NoID[Var]() for a
// bare `return;` from a Unit-returning function.
func Ret(src VarID, origin token.Span) InstrInst {
	return InstrInst{Instr{Kind: IRet, Src: src, Origin: origin}}
}

// Construct builds a Construct{dst,struct,fields} instruction instance.
func Construct(dst VarID, fields []FieldInit, origin token.Span) InstrInst {
	return InstrInst{Instr{Kind: IConstruct, Dst: dst, Fields: fields, Origin: origin}}
}

// If builds an If{cond,body} instruction instance.
func If(cond VarID, body []InstrInst, origin token.Span) InstrInst {
	return InstrInst{Instr{Kind: IIf, Cond: cond, Body: body, Origin: origin}}
}

// Loop builds a Loop{body} instruction instance.
func Loop(body []InstrInst, origin token.Span) InstrInst {
	return InstrInst{Instr{Kind: ILoop, Body: body, Origin: origin}}
}

// Break builds a Break instruction instance.
func Break(origin token.Span) InstrInst { return InstrInst{Instr{Kind: IBreak, Origin: origin}} }

// Continue builds a Continue instruction instance.
func Continue(origin token.Span) InstrInst {
	return InstrInst{Instr{Kind: IContinue, Origin: origin}}
}
