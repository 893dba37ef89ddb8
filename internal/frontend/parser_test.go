package frontend

import (
	"testing"

	"vslcrv/internal/ast"
)

func TestParseAsmBlock(t *testing.T) {
	src := `
fn main() {
	let x: b64 = 1;
	asm {
		in a0 = x;
		out a0 = x;
		addi a0, a0, 1;
		ecall;
	}
}
`
	m, errs := Parse(0, src)
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	if len(m.Funcs) != 1 {
		t.Fatalf("expected 1 function, got %d", len(m.Funcs))
	}
	body := m.Funcs[0].Body
	if len(body) != 2 {
		t.Fatalf("expected 2 statements (let, asm), got %d", len(body))
	}
	asmStmt, ok := body[1].(*ast.AsmStmt)
	if !ok {
		t.Fatalf("expected second statement to be an AsmStmt, got %T", body[1])
	}
	if len(asmStmt.Args) != 2 {
		t.Fatalf("expected 2 register bindings, got %d", len(asmStmt.Args))
	}
	if asmStmt.Args[0].Out {
		t.Error("first binding ('in a0 = x') must not be Out")
	}
	if !asmStmt.Args[1].Out {
		t.Error("second binding ('out a0 = x') must be Out")
	}
	if len(asmStmt.Instr) != 2 {
		t.Fatalf("expected 2 raw instruction lines, got %d", len(asmStmt.Instr))
	}
	if asmStmt.Instr[0].Mnemonic != "addi" || len(asmStmt.Instr[0].Operands) != 3 {
		t.Errorf("addi line: got mnemonic %q, %d operands", asmStmt.Instr[0].Mnemonic, len(asmStmt.Instr[0].Operands))
	}
	if asmStmt.Instr[1].Mnemonic != "ecall" || len(asmStmt.Instr[1].Operands) != 0 {
		t.Errorf("ecall line: got mnemonic %q, %d operands", asmStmt.Instr[1].Mnemonic, len(asmStmt.Instr[1].Operands))
	}
}

func TestParseStructAndGenericConstruct(t *testing.T) {
	src := `
struct Box<T> {
	value: T,
}

fn main() {
	let b: Box<b64> = Box<b64>{value: 42};
}
`
	m, errs := Parse(0, src)
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	if len(m.Structs) != 1 || m.Structs[0].Name != "Box" {
		t.Fatalf("expected struct Box, got %+v", m.Structs)
	}
	if len(m.Structs[0].Generics) != 1 || m.Structs[0].Generics[0].Name != "T" {
		t.Fatalf("expected one generic param T, got %+v", m.Structs[0].Generics)
	}
	let, ok := m.Funcs[0].Body[0].(*ast.LetStmt)
	if !ok {
		t.Fatalf("expected a LetStmt, got %T", m.Funcs[0].Body[0])
	}
	ce, ok := let.Init.(*ast.ConstructExpr)
	if !ok {
		t.Fatalf("expected a ConstructExpr, got %T", let.Init)
	}
	if len(ce.Fields) != 1 || ce.Fields[0].Name != "value" {
		t.Fatalf("expected one field 'value', got %+v", ce.Fields)
	}
}

func TestParseUnexpectedTokenRecovers(t *testing.T) {
	src := `
let stray = 1;
fn main() {
}
`
	m, errs := Parse(0, src)
	if len(errs) == 0 {
		t.Fatal("expected a parse error for the stray token")
	}
	if len(m.Funcs) != 1 {
		t.Fatalf("expected recovery to still pick up 'main', got %d funcs", len(m.Funcs))
	}
}
