package frontend

import (
	"golang.org/x/sync/errgroup"

	"vslcrv/internal/ast"
)

// File is one source file handed to LoadFiles: its interned file id (for
// diagnostic spans) and text.
type File struct {
	ID   uint32
	Name string
	Text string
}

// LoadFiles parses every file concurrently and merges their top-level
// declarations into one module — the multi-file counterpart of Parse, for
// programs split across translation units. Each goroutine only touches its
// own token stream and returns its own AST, so running them concurrently
// via errgroup never races on shared compiler state (the one bounded-
// concurrency spot this compiler allows, since it's parsing of text the
// caller already read, not mutation of a Program).
func LoadFiles(files []File) (*ast.Module, []error) {
	mods := make([]*ast.Module, len(files))
	errs := make([][]error, len(files))

	var g errgroup.Group
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			m, e := Parse(f.ID, f.Text)
			mods[i], errs[i] = m, e
			return nil
		})
	}
	_ = g.Wait() // per-file errors are collected into errs, not returned here

	merged := &ast.Module{Name: "main-module"}
	var all []error
	for i, m := range mods {
		all = append(all, errs[i]...)
		if m == nil {
			continue
		}
		merged.Funcs = append(merged.Funcs, m.Funcs...)
		merged.Structs = append(merged.Structs, m.Structs...)
		merged.Children = append(merged.Children, m.Children...)
	}
	return merged, all
}
