// Package frontend is a collaborator, not the specified subject of this
// repository: it tokenizes and parses source text into the internal/ast
// tree that internal/lower consumes. Its lexer follows Rob Pike's
// state-function design (as the teacher's frontend/lexer.go credits), but
// runs synchronously to a token slice instead of over channels, matching
// the single-threaded, non-blocking compilation model (spec §5).
package frontend

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"vslcrv/internal/token"
)

type stateFunc func(*lexer) stateFunc

type lexer struct {
	file   uint32
	input  string
	start  int
	pos    int
	width  int
	tokens []token.Token
	err    error
}

const eof = 0

// Lex tokenizes src and returns the token stream, or the first lexical
// error encountered (unterminated literal, unknown escape, unexpected rune).
func Lex(file uint32, src string) ([]token.Token, error) {
	l := &lexer{file: file, input: src, tokens: make([]token.Token, 0, len(src)/4+8)}
	for state := lexAny; state != nil && l.err == nil; {
		state = state(l)
	}
	if l.err != nil {
		return nil, l.err
	}
	l.emit(token.EOF)
	return l.tokens, nil
}

func (l *lexer) next() rune {
	if l.pos >= len(l.input) {
		l.width = 0
		return eof
	}
	r, w := utf8.DecodeRuneInString(l.input[l.pos:])
	l.width = w
	l.pos += w
	return r
}

func (l *lexer) backup() {
	l.pos -= l.width
}

func (l *lexer) peek() rune {
	r := l.next()
	l.backup()
	return r
}

func (l *lexer) ignore() {
	l.start = l.pos
}

func (l *lexer) emit(k token.Kind) {
	l.tokens = append(l.tokens, token.Token{
		Kind: k,
		Text: l.input[l.start:l.pos],
		Span: token.Span{File: l.file, Start: token.Pos(l.start), End: token.Pos(l.pos)},
	})
	l.start = l.pos
}

func (l *lexer) errorf(format string, args ...interface{}) stateFunc {
	l.err = fmt.Errorf(format, args...)
	return nil
}

func lexAny(l *lexer) stateFunc {
	for {
		r := l.next()
		switch {
		case r == eof:
			return nil
		case r == ' ' || r == '\t' || r == '\r' || r == '\n':
			l.ignore()
		case r == '/' && l.peek() == '/':
			for l.peek() != '\n' && l.peek() != eof {
				l.next()
			}
			l.ignore()
		case isDigit(r):
			l.backup()
			return lexNumber
		case isAlpha(r):
			l.backup()
			return lexIdent
		case r == '"':
			return lexString
		default:
			l.backup()
			return lexPunct
		}
	}
}

func lexNumber(l *lexer) stateFunc {
	for isDigit(l.peek()) {
		l.next()
	}
	l.emit(token.IntLit)
	return lexAny
}

func lexIdent(l *lexer) stateFunc {
	for isAlpha(l.peek()) || isDigit(l.peek()) {
		l.next()
	}
	s := l.input[l.start:l.pos]
	if kw, ok := token.Keywords[s]; ok {
		l.emit(kw)
	} else {
		l.emit(token.Ident)
	}
	return lexAny
}

func lexString(l *lexer) stateFunc {
	for {
		r := l.next()
		switch r {
		case eof, '\n':
			return l.errorf("unterminated string literal")
		case '\\':
			switch l.next() {
			case 'n', 't', 'r', '\\', '"', '0':
			default:
				l.backup()
				return l.errorf("unknown escape sequence")
			}
		case '"':
			l.emit(token.StringLit)
			return lexAny
		}
	}
}

var punct = []struct {
	s string
	k token.Kind
}{
	{"::", token.ColonColon},
	{"->", token.Arrow},
	{"(", token.LParen}, {")", token.RParen},
	{"{", token.LBrace}, {"}", token.RBrace},
	{"[", token.LBracket}, {"]", token.RBracket},
	{",", token.Comma}, {":", token.Colon}, {".", token.Dot},
	{"=", token.Eq}, {"&", token.Amp}, {"*", token.Star}, {";", token.Semi},
	{"<", token.Lt}, {">", token.Gt},
}

func lexPunct(l *lexer) stateFunc {
	rest := l.input[l.pos:]
	for _, p := range punct {
		if strings.HasPrefix(rest, p.s) {
			for range p.s {
				l.next()
			}
			l.emit(p.k)
			return lexAny
		}
	}
	r := l.next()
	return l.errorf("unexpected token %q", r)
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
func isAlpha(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
