// Package compile drives the whole pipeline end to end: tokens -> AST ->
// U-IR -> identifier resolution -> unification -> L-IR -> RISC-V64 ->
// ELF64 executable (spec §1's module chain). It is the thin orchestration
// layer cmd/vslcrv calls into, mirroring how the teacher keeps its
// Compiler.Compile a short sequence of named phases rather than inlining
// everything into main.
package compile

import (
	"fmt"

	"vslcrv/internal/ast"
	"vslcrv/internal/codegen"
	"vslcrv/internal/diag"
	"vslcrv/internal/elf"
	"vslcrv/internal/frontend"
	"vslcrv/internal/lir"
	"vslcrv/internal/lower"
	"vslcrv/internal/resolve"
	"vslcrv/internal/uir"
	"vslcrv/internal/unify"
)

// Result is everything a caller might want out of a successful compile:
// the final executable bytes plus the Program for introspection (tests
// inspect diagnostics and U-IR state directly; cmd/vslcrv only wants ELF).
type Result struct {
	ELF []byte
	P   *uir.Program
}

// Source is one input file: its interned file id (for diagnostic spans),
// display name, and text.
type Source struct {
	File uint32
	Name string
	Text string
}

// Compile runs the full pipeline over a single source file and returns the
// linked ELF64 image, or an error wrapping every accumulated diagnostic
// once any phase boundary finds p.Diags non-empty of errors (spec §7:
// "code is only emitted when no error-kind diagnostic was recorded").
func Compile(src Source) (*Result, error) {
	astMod, errs := frontend.Parse(src.File, src.Text)
	if len(errs) > 0 {
		return nil, fmt.Errorf("parse error: %w", errs[0])
	}
	return compileModule(astMod, []Source{src})
}

// CompileFiles is the multi-file counterpart of Compile: every source is
// parsed concurrently (frontend.LoadFiles) and merged into one module
// before the rest of the pipeline runs exactly as it does for a single
// file.
func CompileFiles(srcs []Source) (*Result, error) {
	files := make([]frontend.File, len(srcs))
	for i, s := range srcs {
		files[i] = frontend.File{ID: s.File, Name: s.Name, Text: s.Text}
	}
	astMod, errs := frontend.LoadFiles(files)
	if len(errs) > 0 {
		return nil, fmt.Errorf("parse error: %w", errs[0])
	}
	return compileModule(astMod, srcs)
}

func compileModule(astMod *ast.Module, srcs []Source) (*Result, error) {
	byFile := make(map[uint32]Source, len(srcs))
	for _, s := range srcs {
		byFile[s.File] = s
	}

	p := uir.NewProgram()
	lower.New(p).Lower(astMod)

	r := resolve.New(p)
	r.Run()
	resolve.ReportFailures(p)
	if p.Diags.HasErrors() {
		return nil, diagErr(p.Diags, byFile)
	}

	unify.Run(p)
	if p.Diags.HasErrors() {
		return nil, diagErr(p.Diags, byFile)
	}

	lp := lir.Lower(p)

	asm, err := codegen.Gen(p, lp)
	if err != nil {
		return nil, fmt.Errorf("codegen: %w", err)
	}

	code, start, err := asm.Link()
	if err != nil {
		return nil, fmt.Errorf("link: %w", err)
	}

	return &Result{ELF: elf.Write(code, start), P: p}, nil
}

func diagErr(bag *diag.Bag, byFile map[uint32]Source) error {
	text := bag.Render(func(file uint32) (string, string) {
		s := byFile[file]
		return s.Name, s.Text
	})
	return fmt.Errorf("%d diagnostic(s):\n%s", bag.Len(), text)
}
