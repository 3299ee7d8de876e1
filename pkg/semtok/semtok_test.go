package semtok_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/boolsp/pkg/compiler"
	"github.com/walteh/boolsp/pkg/position"
	"github.com/walteh/boolsp/pkg/semtok"
	"github.com/walteh/boolsp/pkg/types"
)

const source = "namespace Demo\n# note\nclass Widget:\n  def Run(x as int):\n    print \"hi\"\n"

func span(line, col, end int) position.Span {
	return position.Span{Line: line, Column: col, EndColumn: end}
}

func TestLexical(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []semtok.Token
	}{
		{
			name: "mixed",
			text: source,
			want: []semtok.Token{
				{Span: span(1, 1, 10), Format: position.FormatKeyword},
				{Span: span(2, 1, 7), Format: position.FormatComment},
				{Span: span(3, 1, 6), Format: position.FormatKeyword},
				{Span: span(4, 3, 6), Format: position.FormatKeyword},
				{Span: span(4, 13, 15), Format: position.FormatKeyword},
				{Span: span(5, 11, 15), Format: position.FormatString},
			},
		},
		{
			name: "numbers",
			text: "x = 1.5 + 0x1F\n",
			want: []semtok.Token{
				{Span: span(1, 5, 8), Format: position.FormatNumber},
				{Span: span(1, 11, 15), Format: position.FormatNumber},
			},
		},
		{
			name: "multi-line string is split per line",
			text: "x = \"\"\"a\nbc\"\"\"\n",
			want: []semtok.Token{
				{Span: span(1, 5, 9), Format: position.FormatString},
				{Span: span(2, 1, 6), Format: position.FormatString},
			},
		},
		{
			name: "block comment",
			text: "/* a\n\nb */ pass\n",
			want: []semtok.Token{
				{Span: span(1, 1, 5), Format: position.FormatComment},
				{Span: span(3, 1, 5), Format: position.FormatComment},
				{Span: span(3, 6, 10), Format: position.FormatKeyword},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := semtok.Lexical("a.boo", []byte(tt.text))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromIndex(t *testing.T) {
	ctx := context.Background()
	cc, err := compiler.NewPipeline().Compile(ctx, &compiler.Request{
		Inputs:     []compiler.Input{{Name: "w.boo", Text: []byte(source)}},
		References: []*types.Table{types.Builtin()},
	})
	require.NoError(t, err)
	ix := position.Build(ctx, "w.boo", cc.Modules["w.boo"], cc)

	all := semtok.FromIndex(ix, 1, 0)
	assert.Contains(t, all, semtok.Token{Span: span(3, 7, 13), Format: position.FormatType, Modifiers: semtok.ModifierDeclaration})
	assert.Contains(t, all, semtok.Token{Span: span(4, 7, 10), Format: position.FormatMethod, Modifiers: semtok.ModifierDeclaration})
	assert.Contains(t, all, semtok.Token{Span: span(5, 5, 10), Format: position.FormatMacro})

	ranged := semtok.FromIndex(ix, 3, 3)
	assert.Equal(t, []semtok.Token{
		{Span: span(3, 7, 13), Format: position.FormatType, Modifiers: semtok.ModifierDeclaration},
	}, ranged)

	assert.Nil(t, semtok.FromIndex(nil, 1, 0))
}

func TestMerge(t *testing.T) {
	lexical := []semtok.Token{
		{Span: span(1, 1, 10), Format: position.FormatKeyword},
		{Span: span(2, 1, 6), Format: position.FormatKeyword},
		{Span: span(2, 10, 14), Format: position.FormatString},
	}
	semantic := []semtok.Token{
		{Span: span(2, 12, 16), Format: position.FormatType},
		{Span: span(1, 1, 10), Format: position.FormatKeyword},
		{Span: span(2, 13, 15), Format: position.FormatMethod},
	}

	got := semtok.Merge(lexical, semantic)
	assert.Equal(t, []semtok.Token{
		{Span: span(1, 1, 10), Format: position.FormatKeyword},
		{Span: span(2, 1, 6), Format: position.FormatKeyword},
		{Span: span(2, 12, 16), Format: position.FormatType},
	}, got)

	assert.Empty(t, semtok.Merge(nil, nil))
}

func TestInRange(t *testing.T) {
	tokens := []semtok.Token{
		{Span: span(1, 1, 2), Format: position.FormatNumber},
		{Span: span(2, 1, 2), Format: position.FormatNumber},
		{Span: span(3, 1, 2), Format: position.FormatNumber},
	}
	assert.Equal(t, tokens[1:2], semtok.InRange(tokens, 2, 2))
	assert.Equal(t, tokens[1:], semtok.InRange(tokens, 2, 0))
	assert.Len(t, tokens, 3)
}

func TestEncode(t *testing.T) {
	data, err := semtok.Encode([]semtok.Token{
		{Span: span(1, 1, 10), Format: position.FormatKeyword},
		{Span: span(3, 7, 13), Format: position.FormatType, Modifiers: semtok.ModifierDeclaration},
		{Span: span(3, 15, 16), Format: position.FormatNumber},
	})
	require.NoError(t, err)
	assert.Equal(t, []uint32{
		0, 0, 9, 0, 0,
		2, 6, 6, 2, 1,
		0, 8, 1, 7, 0,
	}, data)

	data, err = semtok.Encode(nil)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestEncode_Errors(t *testing.T) {
	tests := []struct {
		name   string
		tokens []semtok.Token
		want   string
	}{
		{
			name: "out of order",
			tokens: []semtok.Token{
				{Span: span(2, 1, 2), Format: position.FormatNumber},
				{Span: span(1, 1, 2), Format: position.FormatNumber},
			},
			want: "out of order",
		},
		{
			name:   "unknown format",
			tokens: []semtok.Token{{Span: span(1, 1, 2), Format: "color"}},
			want:   "unknown format",
		},
		{
			name:   "negative position",
			tokens: []semtok.Token{{Span: span(0, 1, 2), Format: position.FormatNumber}},
			want:   "encoding token 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := semtok.Encode(tt.tokens)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLegend(t *testing.T) {
	assert.Equal(t, []string{"keyword", "comment", "type", "macro", "method", "namespace", "string", "number"}, semtok.TokenTypes)
	assert.Equal(t, []string{"declaration"}, semtok.TokenModifiers)
	assert.Equal(t, "declaration", semtok.ModifierDeclaration.String())
}
