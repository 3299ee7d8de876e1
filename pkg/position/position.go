package position

import (
	"fmt"

	"fortio.org/safecast"

	"github.com/walteh/boolsp/pkg/ast"
)

// Place is a zero-based protocol position.
type Place struct {
	Line      int
	Character int
}

type Range struct {
	Start Place
	End   Place
}

// Span is a single-line source range. Line and Column are 1-based and
// EndColumn is exclusive.
type Span struct {
	Line      int
	Column    int
	EndColumn int
}

// SpanOfNode returns the span covering node's first line. Nodes that span
// several lines are cut at the end of their first token run.
func SpanOfNode(node ast.Node) Span {
	start, end := node.Position()
	s := Span{Line: start.Line, Column: start.Column, EndColumn: end.Column}
	if end.Line != start.Line || s.EndColumn <= s.Column {
		s.EndColumn = s.Column + 1
	}
	return s
}

func (s Span) Length() int {
	return s.EndColumn - s.Column
}

// Contains reports whether the 1-based point lies inside the span.
func (s Span) Contains(line, col int) bool {
	return line == s.Line && col >= s.Column && col < s.EndColumn
}

// Before orders spans by start, wider spans first on ties.
func (s Span) Before(o Span) bool {
	if s.Line != o.Line {
		return s.Line < o.Line
	}
	if s.Column != o.Column {
		return s.Column < o.Column
	}
	return s.EndColumn > o.EndColumn
}

// Range converts the span to zero-based protocol coordinates.
func (s Span) Range() Range {
	return Range{
		Start: Place{Line: s.Line - 1, Character: s.Column - 1},
		End:   Place{Line: s.Line - 1, Character: s.EndColumn - 1},
	}
}

// Uint32 returns the zero-based line, character and length of the span for
// wire encodings.
func (s Span) Uint32() (line, char, length uint32, err error) {
	if line, err = safecast.Conv[uint32](s.Line - 1); err != nil {
		return 0, 0, 0, err
	}
	if char, err = safecast.Conv[uint32](s.Column - 1); err != nil {
		return 0, 0, 0, err
	}
	if length, err = safecast.Conv[uint32](s.Length()); err != nil {
		return 0, 0, 0, err
	}
	return line, char, length, nil
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d", s.Line, s.Column, s.EndColumn)
}

// Format names how a span is classified for highlighting.
type Format string

const (
	FormatKeyword   Format = "keyword"
	FormatComment   Format = "comment"
	FormatType      Format = "type"
	FormatMacro     Format = "macro"
	FormatMethod    Format = "method"
	FormatNamespace Format = "namespace"
	FormatString    Format = "string"
	FormatNumber    Format = "number"
)

// Formats lists every format in legend order.
var Formats = []Format{
	FormatKeyword,
	FormatComment,
	FormatType,
	FormatMacro,
	FormatMethod,
	FormatNamespace,
	FormatString,
	FormatNumber,
}

// Classification is a classified span.
type Classification struct {
	Span   Span
	Format Format
}
