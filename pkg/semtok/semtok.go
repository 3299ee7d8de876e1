package semtok

import (
	"slices"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/boolsp/pkg/ast"
	"github.com/walteh/boolsp/pkg/lexer"
	"github.com/walteh/boolsp/pkg/position"
	"github.com/walteh/boolsp/pkg/token"
)

// Lexical classifies text without compiling it. Keywords, comments, string
// and number literals are reported; everything else is left to the index.
func Lexical(file string, text []byte) ([]Token, error) {
	toks, err := lexer.Raw(file, string(text))
	if err != nil {
		return nil, errors.Errorf("tokenizing %s: %w", file, err)
	}

	var out []Token
	for _, tok := range toks {
		var format position.Format
		switch {
		case tok.Kind == token.Comment:
			format = position.FormatComment
		case tok.Kind == token.String:
			format = position.FormatString
		case tok.Kind == token.Int, tok.Kind == token.Float:
			format = position.FormatNumber
		case tok.Kind.IsKeyword():
			format = position.FormatKeyword
		default:
			continue
		}
		out = append(out, splitLines(tok, format)...)
	}
	return out, nil
}

// splitLines cuts a token whose text crosses line breaks into one token per
// non-empty line.
func splitLines(tok token.Token, format position.Format) []Token {
	text := strings.ReplaceAll(tok.Text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var out []Token
	line, col := tok.Line, tok.Column
	for _, part := range strings.Split(text, "\n") {
		if part != "" {
			out = append(out, Token{
				Span:   position.Span{Line: line, Column: col, EndColumn: col + len(part)},
				Format: format,
			})
		}
		line++
		col = 1
	}
	return out
}

// FromIndex returns the tokens recorded in ix for lines startLine through
// endLine inclusive. An endLine of zero or less means the end of the file.
func FromIndex(ix *position.Index, startLine, endLine int) []Token {
	if ix == nil {
		return nil
	}

	var out []Token
	for _, e := range ix.Entries() {
		if e.Span.Line < startLine || (endLine > 0 && e.Span.Line > endLine) {
			continue
		}
		tok := Token{Span: e.Span, Format: e.Format}
		switch e.Node.(type) {
		case *ast.TypeDefinition, *ast.Method:
			tok.Modifiers |= ModifierDeclaration
		}
		out = append(out, tok)
	}
	return out
}

// InRange keeps the tokens on lines startLine through endLine inclusive.
func InRange(tokens []Token, startLine, endLine int) []Token {
	return slices.DeleteFunc(slices.Clone(tokens), func(t Token) bool {
		return t.Span.Line < startLine || (endLine > 0 && t.Span.Line > endLine)
	})
}

// Merge combines lexical and semantic tokens into one ordered, non-overlapping
// list. A semantic token replaces every lexical token it overlaps.
func Merge(lexical, semantic []Token) []Token {
	sem := slices.Clone(semantic)
	sortTokens(sem)

	out := make([]Token, 0, len(lexical)+len(sem))
	out = appendDisjoint(out, sem)

	for _, lt := range lexical {
		if !overlapsAny(sem, lt.Span) {
			out = append(out, lt)
		}
	}

	sortTokens(out)
	return out
}

func appendDisjoint(out, sorted []Token) []Token {
	for _, t := range sorted {
		if n := len(out); n > 0 && overlaps(out[n-1].Span, t.Span) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func overlapsAny(sorted []Token, s position.Span) bool {
	i, _ := slices.BinarySearchFunc(sorted, s.Line, func(t Token, line int) int {
		return t.Span.Line - line
	})
	for ; i < len(sorted) && sorted[i].Span.Line == s.Line; i++ {
		if overlaps(sorted[i].Span, s) {
			return true
		}
	}
	return false
}

func overlaps(a, b position.Span) bool {
	return a.Line == b.Line && a.Column < b.EndColumn && b.Column < a.EndColumn
}

func sortTokens(tokens []Token) {
	slices.SortStableFunc(tokens, func(a, b Token) int {
		switch {
		case a.Span.Before(b.Span):
			return -1
		case b.Span.Before(a.Span):
			return 1
		}
		return 0
	})
}

// Encode produces the relative five-integer encoding of tokens, which must
// be ordered and non-overlapping.
func Encode(tokens []Token) ([]uint32, error) {
	data := make([]uint32, 0, len(tokens)*5)

	var prevLine, prevChar uint32
	for i, t := range tokens {
		line, char, length, err := t.Span.Uint32()
		if err != nil {
			return nil, errors.Errorf("encoding token %d at %s: %w", i, t.Span, err)
		}
		typ, ok := typeIndex[t.Format]
		if !ok {
			return nil, errors.Errorf("encoding token %d at %s: unknown format %q", i, t.Span, t.Format)
		}
		if i > 0 && (line < prevLine || (line == prevLine && char < prevChar)) {
			return nil, errors.Errorf("encoding token %d at %s: out of order", i, t.Span)
		}

		deltaChar := char
		if line == prevLine {
			deltaChar = char - prevChar
		}
		data = append(data, line-prevLine, deltaChar, length, typ, uint32(t.Modifiers))
		prevLine, prevChar = line, char
	}
	return data, nil
}
