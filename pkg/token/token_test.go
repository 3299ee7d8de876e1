package token_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/walteh/boolsp/pkg/token"
)

func TestLookup(t *testing.T) {
	assert.Equal(t, token.Class, token.Lookup("class"))
	assert.Equal(t, token.End, token.Lookup("end"))
	assert.Equal(t, token.Ident, token.Lookup("Class"))
	assert.Equal(t, token.Ident, token.Lookup("InitializeComponent"))
}

func TestDowngrade(t *testing.T) {
	end := token.Token{Kind: token.End, Text: "end", Line: 3, Column: 1}
	got := end.Downgrade()

	assert.Equal(t, token.Ident, got.Kind)
	assert.Equal(t, "end", got.Text)
	assert.Equal(t, token.End, end.Kind, "original value must not change")

	other := token.Token{Kind: token.Def, Text: "def"}
	assert.Equal(t, other, other.Downgrade())
}

func TestKindClasses(t *testing.T) {
	assert.True(t, token.If.IsKeyword())
	assert.True(t, token.End.IsKeyword())
	assert.False(t, token.Ident.IsKeyword())
	assert.True(t, token.Colon.IsOperator())
	assert.False(t, token.If.IsOperator())
	assert.Equal(t, "if", token.If.String())
}
