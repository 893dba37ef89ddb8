// Package diag accumulates and renders compiler diagnostics. It adapts the
// teacher's perror accumulation idiom (util/perror.go): an append-only
// buffer of reported problems, queried at phase boundaries. The teacher's
// version used a channel + goroutine to make Append safe from worker
// threads; this compiler is single-threaded and non-blocking (spec §5), so
// Bag is a plain slice with no synchronization.
package diag

import (
	"fmt"
	"strings"

	"vslcrv/internal/token"
)

// Kind distinguishes a hard error from an advisory hint (spec §6).
type Kind int

const (
	KindError Kind = iota
	KindHint
)

func (k Kind) String() string {
	if k == KindHint {
		return "hint"
	}
	return "error"
}

// Diagnostic is one reported problem anchored at a source span.
type Diagnostic struct {
	Kind    Kind
	Message string
	Span    token.Span
}

// Bag is an append-only diagnostics buffer for one compilation.
type Bag struct {
	items []Diagnostic
}

// Error appends an error-kind diagnostic.
func (b *Bag) Error(span token.Span, format string, args ...interface{}) {
	b.items = append(b.items, Diagnostic{Kind: KindError, Message: fmt.Sprintf(format, args...), Span: span})
}

// Hint appends a hint-kind diagnostic.
func (b *Bag) Hint(span token.Span, format string, args ...interface{}) {
	b.items = append(b.items, Diagnostic{Kind: KindHint, Message: fmt.Sprintf(format, args...), Span: span})
}

// Len returns the number of buffered diagnostics.
func (b *Bag) Len() int { return len(b.items) }

// HasErrors reports whether any error-kind diagnostic was recorded. Code is
// only emitted when this is false at the middle-end/back-end boundary
// (spec §7).
func (b *Bag) HasErrors() bool {
	for _, d := range b.items {
		if d.Kind == KindError {
			return true
		}
	}
	return false
}

// All returns the buffered diagnostics in emission order.
func (b *Bag) All() []Diagnostic {
	return b.items
}

// Render writes diagnostics in the §6 shape:
//
//	<kind>: <message>
//	<line> | <source text>
//	       |   ^^^^
//
// source provides the full text of each file-id for span rendering; a
// builtin-origin span (token.BuiltinFile) suppresses source rendering.
func (b *Bag) Render(source func(file uint32) (name string, text string)) string {
	var sb strings.Builder
	for _, d := range b.items {
		fmt.Fprintf(&sb, "%s: %s\n", d.Kind, d.Message)
		if d.Span.IsBuiltin() || source == nil {
			continue
		}
		name, text := source(d.Span.File)
		renderSpan(&sb, name, text, d.Span)
	}
	return sb.String()
}

func renderSpan(sb *strings.Builder, name, text string, span token.Span) {
	lines := splitLines(text)
	startLine, startCol := lineCol(lines, int(span.Start))
	endLine, endCol := lineCol(lines, int(span.End))
	if startLine < 0 || startLine >= len(lines) {
		return
	}
	if startLine > 0 {
		fmt.Fprintf(sb, "%d | %s\n", startLine, lines[startLine-1])
	}
	fmt.Fprintf(sb, "%d | %s\n", startLine+1, lines[startLine])
	pad := strings.Repeat(" ", len(fmt.Sprintf("%d ", startLine+1)))
	caretStart := startCol
	caretEnd := endCol
	if startLine != endLine {
		caretEnd = len(lines[startLine])
	}
	if caretEnd <= caretStart {
		caretEnd = caretStart + 1
	}
	fmt.Fprintf(sb, "%s|%s%s\n", pad, strings.Repeat(" ", caretStart), strings.Repeat("^", caretEnd-caretStart))
	if endLine != startLine && endLine >= 0 && endLine < len(lines) {
		fmt.Fprintf(sb, "%d | %s\n", endLine+1, lines[endLine])
	}
	_ = name
}

func splitLines(text string) []string {
	return strings.Split(text, "\n")
}

func lineCol(lines []string, offset int) (int, int) {
	pos := 0
	for i, l := range lines {
		if offset <= pos+len(l) {
			return i, offset - pos
		}
		pos += len(l) + 1
	}
	return len(lines) - 1, 0
}
