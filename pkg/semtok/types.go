package semtok

import (
	"github.com/walteh/boolsp/pkg/position"
)

// Modifier is a bit set of token modifiers.
type Modifier uint32

const (
	// ModifierDeclaration marks the name in a type or method declaration
	ModifierDeclaration Modifier = 1 << iota
)

// TokenTypes is the token type legend advertised to clients. The index of a
// format in it is its wire value.
var TokenTypes = func() []string {
	out := make([]string, len(position.Formats))
	for i, f := range position.Formats {
		out[i] = string(f)
	}
	return out
}()

// TokenModifiers is the modifier legend; bit i is TokenModifiers[i].
var TokenModifiers = []string{"declaration"}

var typeIndex = func() map[position.Format]uint32 {
	m := make(map[position.Format]uint32, len(position.Formats))
	for i, f := range position.Formats {
		m[f] = uint32(i)
	}
	return m
}()

// Token is one classified single-line span.
type Token struct {
	Span      position.Span
	Format    position.Format
	Modifiers Modifier
}

func (m Modifier) String() string {
	if m&ModifierDeclaration != 0 {
		return "declaration"
	}
	return ""
}
