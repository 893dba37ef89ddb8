package frontend

import (
	"fmt"
	"strconv"

	"vslcrv/internal/ast"
	"vslcrv/internal/token"
)

// Parser is a simple recursive-descent parser over a flat token stream.
// It is a collaborator (spec §1): grammar completeness is not the subject
// of this specification, only enough surface is implemented to drive the
// modules that are specified (U-IR, resolution, unification, L-IR, RISC-V,
// ELF) end to end.
type Parser struct {
	file uint32
	toks []token.Token
	pos  int
}

// Parse tokenizes and parses src into a root Module named "main-module",
// recovering from recoverable errors at the next `;` or `}` the way the
// teacher's goyacc-driven parser resynchronizes (spec §7).
func Parse(file uint32, src string) (*ast.Module, []error) {
	toks, err := Lex(file, src)
	if err != nil {
		return nil, []error{err}
	}
	p := &Parser{file: file, toks: toks}
	return p.parseModule("main-module")
}

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) atEOF() bool       { return p.cur().Kind == token.EOF }
func (p *Parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k token.Kind) (token.Token, error) {
	if p.cur().Kind != k {
		return p.cur(), fmt.Errorf("expected %s, got %s %q", k, p.cur().Kind, p.cur().Text)
	}
	return p.advance(), nil
}

// sync advances to the next `;` or `}` (consuming it) for error recovery.
func (p *Parser) sync() {
	for !p.atEOF() {
		k := p.advance().Kind
		if k == token.Semi || k == token.RBrace {
			return
		}
	}
}

func (p *Parser) parseModule(name string) (*ast.Module, []error) {
	m := &ast.Module{Name: name}
	var errs []error
	for !p.atEOF() {
		switch p.cur().Kind {
		case token.KwFn:
			f, err := p.parseFunc()
			if err != nil {
				errs = append(errs, err)
				p.sync()
				continue
			}
			m.Funcs = append(m.Funcs, f)
		case token.KwStruct:
			s, err := p.parseStruct()
			if err != nil {
				errs = append(errs, err)
				p.sync()
				continue
			}
			m.Structs = append(m.Structs, s)
		case token.KwTrait:
			t, err := p.parseTrait()
			if err != nil {
				errs = append(errs, err)
				p.sync()
				continue
			}
			m.Traits = append(m.Traits, t)
		default:
			errs = append(errs, fmt.Errorf("unexpected token at module level: %s %q", p.cur().Kind, p.cur().Text))
			p.advance()
		}
	}
	return m, errs
}

func (p *Parser) parseGenerics() ([]*ast.GenericParam, error) {
	var gs []*ast.GenericParam
	if p.cur().Kind != token.Lt {
		return gs, nil
	}
	p.advance()
	for p.cur().Kind != token.Gt {
		t, err := p.expect(token.Ident)
		if err != nil {
			return gs, err
		}
		gs = append(gs, &ast.GenericParam{Name: t.Text, Span: t.Span})
		if p.cur().Kind == token.Comma {
			p.advance()
		}
	}
	p.advance()
	return gs, nil
}

func (p *Parser) parseGenericArgs() ([]*ast.TypeExpr, error) {
	var args []*ast.TypeExpr
	if p.cur().Kind != token.Lt {
		return args, nil
	}
	p.advance()
	for p.cur().Kind != token.Gt {
		te, err := p.parseType()
		if err != nil {
			return args, err
		}
		args = append(args, te)
		if p.cur().Kind == token.Comma {
			p.advance()
		}
	}
	p.advance()
	return args, nil
}

func (p *Parser) parseType() (*ast.TypeExpr, error) {
	start := p.cur().Span
	switch p.cur().Kind {
	case token.Amp:
		p.advance()
		inner, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return &ast.TypeExpr{Ref: inner, Span: start}, nil
	case token.LBracket:
		p.advance()
		inner, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if p.cur().Kind == token.Semi {
			p.advance()
			n, err := p.expect(token.IntLit)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBracket); err != nil {
				return nil, err
			}
			v, _ := strconv.ParseInt(n.Text, 10, 64)
			return &ast.TypeExpr{Array: inner, ArrayN: int(v), Span: start}, nil
		}
		if _, err := p.expect(token.RBracket); err != nil {
			return nil, err
		}
		return &ast.TypeExpr{Slice: inner, Span: start}, nil
	case token.Ident, token.KwFn:
		name := p.advance().Text
		args, err := p.parseGenericArgs()
		if err != nil {
			return nil, err
		}
		return &ast.TypeExpr{Name: name, Args: args, Span: start}, nil
	}
	return nil, fmt.Errorf("expected type, got %s %q", p.cur().Kind, p.cur().Text)
}

func (p *Parser) parseFunc() (*ast.Func, error) {
	start := p.cur().Span
	if _, err := p.expect(token.KwFn); err != nil {
		return nil, err
	}
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	gens, err := p.parseGenerics()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	var params []*ast.Param
	for p.cur().Kind != token.RParen {
		pn, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Colon); err != nil {
			return nil, err
		}
		pt, err := p.parseType()
		if err != nil {
			return nil, err
		}
		params = append(params, &ast.Param{Name: pn.Text, Type: pt, Span: pn.Span})
		if p.cur().Kind == token.Comma {
			p.advance()
		}
	}
	p.advance()
	var ret *ast.TypeExpr
	if p.cur().Kind == token.Arrow {
		p.advance()
		ret, err = p.parseType()
		if err != nil {
			return nil, err
		}
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.Func{Name: name.Text, Generics: gens, Params: params, Ret: ret, Body: body, Span: start}, nil
}

func (p *Parser) parseStruct() (*ast.Struct, error) {
	start := p.cur().Span
	p.advance()
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	gens, err := p.parseGenerics()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	var fields []*ast.StructField
	for p.cur().Kind != token.RBrace {
		fn, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Colon); err != nil {
			return nil, err
		}
		ft, err := p.parseType()
		if err != nil {
			return nil, err
		}
		fields = append(fields, &ast.StructField{Name: fn.Text, Type: ft, Span: fn.Span})
		if p.cur().Kind == token.Comma {
			p.advance()
		}
	}
	p.advance()
	return &ast.Struct{Name: name.Text, Generics: gens, Fields: fields, Span: start}, nil
}

func (p *Parser) parseTrait() (*ast.Trait, error) {
	start := p.cur().Span
	p.advance()
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	depth := 1
	for depth > 0 && !p.atEOF() {
		switch p.advance().Kind {
		case token.LBrace:
			depth++
		case token.RBrace:
			depth--
		}
	}
	return &ast.Trait{Name: name.Text, Span: start}, nil
}

func (p *Parser) parseBlock() ([]ast.Stmt, error) {
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	var stmts []ast.Stmt
	for p.cur().Kind != token.RBrace {
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	p.advance()
	return stmts, nil
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	start := p.cur().Span
	switch p.cur().Kind {
	case token.KwLet:
		p.advance()
		name, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		var ty *ast.TypeExpr
		if p.cur().Kind == token.Colon {
			p.advance()
			ty, err = p.parseType()
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(token.Eq); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Semi); err != nil {
			return nil, err
		}
		return &ast.LetStmt{Name: name.Text, Type: ty, Init: val, Span: start}, nil
	case token.KwIf:
		p.advance()
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &ast.IfStmt{Cond: cond, Body: body, Span: start}, nil
	case token.KwLoop:
		p.advance()
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &ast.LoopStmt{Body: body, Span: start}, nil
	case token.KwBreak:
		p.advance()
		if _, err := p.expect(token.Semi); err != nil {
			return nil, err
		}
		return &ast.BreakStmt{Span: start}, nil
	case token.KwContinue:
		p.advance()
		if _, err := p.expect(token.Semi); err != nil {
			return nil, err
		}
		return &ast.ContinueStmt{Span: start}, nil
	case token.KwReturn:
		p.advance()
		if p.cur().Kind == token.Semi {
			p.advance()
			return &ast.ReturnStmt{Span: start}, nil
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Semi); err != nil {
			return nil, err
		}
		return &ast.ReturnStmt{Value: val, Span: start}, nil
	case token.KwAsm:
		return p.parseAsm()
	default:
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.cur().Kind == token.Eq {
			p.advance()
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.Semi); err != nil {
				return nil, err
			}
			return &ast.AssignStmt{Target: x, Value: v, Span: start}, nil
		}
		if _, err := p.expect(token.Semi); err != nil {
			return nil, err
		}
		return &ast.ExprStmt{X: x, Span: start}, nil
	}
}

// parseAsm parses `asm { in a0 = x; out a0 = y; instr; ... }`. This is a
// deliberately simple surface syntax: asm argument binding is the spec's
// concern (§3 AsmBlock in/out), the exact mnemonic-line grammar is not.
func (p *Parser) parseAsm() (ast.Stmt, error) {
	start := p.cur().Span
	p.advance()
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	var args []*ast.AsmArg
	var instrs []*ast.AsmInstr
	for p.cur().Kind != token.RBrace {
		line := p.cur().Span
		switch p.cur().Text {
		case "in", "out":
			out := p.cur().Text == "out"
			p.advance()
			reg, err := p.expect(token.Ident)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.Eq); err != nil {
				return nil, err
			}
			v, err := p.expect(token.Ident)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.Semi); err != nil {
				return nil, err
			}
			args = append(args, &ast.AsmArg{Reg: reg.Text, Var: v.Text, Out: out, Span: line})
		default:
			mn, err := p.expect(token.Ident)
			if err != nil {
				return nil, err
			}
			var ops []string
			for p.cur().Kind != token.Semi {
				ops = append(ops, p.advance().Text)
				if p.cur().Kind == token.Comma {
					p.advance()
				}
			}
			p.advance()
			instrs = append(instrs, &ast.AsmInstr{Mnemonic: mn.Text, Operands: ops, Span: line})
		}
	}
	p.advance()
	return &ast.AsmStmt{Args: args, Instr: instrs, Span: start}, nil
}

// parseExpr parses the small expression grammar: references, derefs,
// literals, dotted/qualified identifiers with generic args, calls and
// struct-construction literals.
func (p *Parser) parseExpr() (ast.Expr, error) {
	start := p.cur().Span
	switch p.cur().Kind {
	case token.Amp:
		p.advance()
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.RefExpr{X: x, Span: start}, nil
	case token.Star:
		p.advance()
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.DerefExpr{X: x, Span: start}, nil
	case token.IntLit:
		t := p.advance()
		v, _ := strconv.ParseInt(t.Text, 10, 64)
		return &ast.IntLit{Value: v, Span: t.Span}, nil
	case token.StringLit:
		t := p.advance()
		raw := t.Text
		if len(raw) >= 2 {
			raw = raw[1 : len(raw)-1]
		}
		return &ast.StringLit{Value: unescape(raw), Span: t.Span}, nil
	case token.Ident:
		return p.parsePostfix(start)
	}
	return nil, fmt.Errorf("expected expression, got %s %q", p.cur().Kind, p.cur().Text)
}

func (p *Parser) parsePostfix(start token.Span) (ast.Expr, error) {
	base := p.advance().Text
	gargs, err := p.parseGenericArgs()
	if err != nil {
		return nil, err
	}
	ident := &ast.IdentExpr{Base: base, Args: gargs, Span: start}
	for p.cur().Kind == token.ColonColon || p.cur().Kind == token.Dot {
		field := p.cur().Kind == token.Dot
		p.advance()
		name, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		segArgs, err := p.parseGenericArgs()
		if err != nil {
			return nil, err
		}
		ident.Path = append(ident.Path, &ast.PathSegment{Name: name.Text, Args: segArgs, Field: field, Span: name.Span})
	}
	var x ast.Expr = ident
	if p.cur().Kind == token.LParen {
		p.advance()
		var args []ast.Expr
		for p.cur().Kind != token.RParen {
			a, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.cur().Kind == token.Comma {
				p.advance()
			}
		}
		p.advance()
		x = &ast.CallExpr{Fn: ident, Args: args, Span: start}
	} else if p.cur().Kind == token.LBrace {
		p.advance()
		var fields []*ast.FieldInit
		for p.cur().Kind != token.RBrace {
			fname := p.cur().Span
			n, err := p.expect(token.Ident)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.Colon); err != nil {
				return nil, err
			}
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			fields = append(fields, &ast.FieldInit{Name: n.Text, Value: v, Span: fname})
			if p.cur().Kind == token.Comma {
				p.advance()
			}
		}
		p.advance()
		x = &ast.ConstructExpr{Struct: ident, Fields: fields, Span: start}
	}
	return x, nil
}

func unescape(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				out = append(out, '\n')
			case 't':
				out = append(out, '\t')
			case 'r':
				out = append(out, '\r')
			case '0':
				out = append(out, 0)
			default:
				out = append(out, s[i])
			}
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
