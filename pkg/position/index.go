package position

import (
	"context"
	"iter"
	"slices"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/walteh/boolsp/pkg/ast"
	"github.com/walteh/boolsp/pkg/types"
)

// Resolver binds type references and definitions to type entities.
type Resolver interface {
	Resolve(node ast.Node) (*types.Type, error)
}

// Entry maps one syntax node onto the span of source that names it.
type Entry struct {
	Span   Span
	Node   ast.Node
	Format Format

	describe func() (string, bool)
}

// Description returns the hover text for the entry. It is computed on first
// use; failures to compute it mean there is no description.
func (e *Entry) Description() (string, bool) {
	if e.describe == nil {
		return "", false
	}
	return e.describe()
}

// Index is the position mapping of one compiled file. It is immutable once
// built and safe for concurrent readers.
type Index struct {
	file    string
	entries []*Entry
	byNode  map[ast.Node]*Entry
}

// Build walks mod and records an entry for every named construct the editor
// can highlight or describe. resolver may be nil.
func Build(ctx context.Context, file string, mod *ast.Module, resolver Resolver) *Index {
	b := &builder{
		ix:       &Index{file: file, byNode: make(map[ast.Node]*Entry)},
		resolver: resolver,
	}

	if mod != nil {
		ast.Inspect(mod, b.visit)
	}

	slices.SortStableFunc(b.ix.entries, func(a, c *Entry) int {
		switch {
		case a.Span.Before(c.Span):
			return -1
		case c.Span.Before(a.Span):
			return 1
		}
		return 0
	})

	zerolog.Ctx(ctx).Trace().Str("file", file).Int("entries", len(b.ix.entries)).Msg("built position index")

	return b.ix
}

type builder struct {
	ix       *Index
	resolver Resolver
}

func (b *builder) add(node ast.Node, span Span, format Format, describe func() string) {
	e := &Entry{Span: span, Node: node, Format: format}
	if describe != nil {
		e.describe = sync.OnceValues(func() (desc string, ok bool) {
			defer func() {
				if r := recover(); r != nil {
					desc, ok = "", false
				}
			}()
			desc = describe()
			return desc, desc != ""
		})
	}
	b.ix.entries = append(b.ix.entries, e)
	b.ix.byNode[node] = e
}

func (b *builder) visit(node ast.Node) bool {
	switch n := node.(type) {
	case *ast.TypeDefinition:
		b.add(n, SpanOfNode(n.Name), FormatType, func() string {
			return types.FromDefinition(b.ix.file, n).Describe()
		})
	case *ast.SimpleTypeReference:
		b.add(n, SpanOfNode(n), FormatType, func() string {
			return b.describeReference(n)
		})
	case *ast.Method:
		b.add(n, SpanOfNode(n.Name), FormatMethod, func() string {
			return n.Signature()
		})
	case *ast.MacroStatement:
		b.add(n, SpanOfNode(n.Name), FormatMacro, func() string {
			return "macro " + n.Name.Name
		})
	case *ast.Import:
		b.add(n, Span{Line: n.NamePos.Line, Column: n.NamePos.Column, EndColumn: n.NameEnd().Column}, FormatNamespace, func() string {
			return "namespace " + n.Namespace
		})
	case *ast.NamespaceDeclaration:
		b.add(n, Span{Line: n.Pos.Line, Column: n.Pos.Column, EndColumn: n.Pos.Column + len("namespace")}, FormatKeyword, nil)
	}
	return true
}

func (b *builder) describeReference(ref *ast.SimpleTypeReference) string {
	if b.resolver == nil {
		return ""
	}
	t, err := b.resolver.Resolve(ref)
	if err != nil || t.IsError() {
		return ""
	}
	return t.Describe()
}

func (ix *Index) File() string {
	return ix.file
}

func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.entries)
}

// Entries returns the entries ordered by position.
func (ix *Index) Entries() []*Entry {
	if ix == nil {
		return nil
	}
	return slices.Clone(ix.entries)
}

// NodeAt returns the innermost entry whose span contains the 1-based point.
func (ix *Index) NodeAt(line, col int) (*Entry, bool) {
	if ix == nil {
		return nil, false
	}

	// first entry starting after the point
	i := sort.Search(len(ix.entries), func(i int) bool {
		s := ix.entries[i].Span
		return s.Line > line || (s.Line == line && s.Column > col)
	})

	var best *Entry
	for j := i - 1; j >= 0; j-- {
		e := ix.entries[j]
		if e.Span.Line != line {
			break
		}
		if e.Span.Contains(line, col) && (best == nil || e.Span.Length() < best.Span.Length()) {
			best = e
		}
	}
	return best, best != nil
}

// SpanOf returns the recorded span of node.
func (ix *Index) SpanOf(node ast.Node) (Span, bool) {
	if ix == nil {
		return Span{}, false
	}
	e, ok := ix.byNode[node]
	if !ok {
		return Span{}, false
	}
	return e.Span, true
}

// EntryOf returns the entry recorded for node.
func (ix *Index) EntryOf(node ast.Node) (*Entry, bool) {
	if ix == nil {
		return nil, false
	}
	e, ok := ix.byNode[node]
	return e, ok
}

// ClassificationSpans yields the classified spans on lines startLine through
// endLine inclusive, in order. An endLine of zero or less means the end of
// the file. The sequence can be iterated any number of times.
func (ix *Index) ClassificationSpans(startLine, endLine int) iter.Seq[Classification] {
	return func(yield func(Classification) bool) {
		if ix == nil {
			return
		}
		i := sort.Search(len(ix.entries), func(i int) bool {
			return ix.entries[i].Span.Line >= startLine
		})
		for ; i < len(ix.entries); i++ {
			e := ix.entries[i]
			if endLine > 0 && e.Span.Line > endLine {
				return
			}
			if !yield(Classification{Span: e.Span, Format: e.Format}) {
				return
			}
		}
	}
}
