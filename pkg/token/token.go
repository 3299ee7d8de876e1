// Package token defines the tokens exchanged between the raw lexer, the
// indentation filter and the parser.
package token

import (
	"fmt"
)

// Kind identifies the lexical class of a token.
type Kind int

const (
	Illegal Kind = iota
	EOF
	// EOS terminates a logical statement. The raw lexer emits one per
	// newline run; the filter synthesizes one more before EOF.
	EOS
	Whitespace
	Comment

	Ident
	Int
	Float
	String

	// End is the reserved block terminator. Outside of layout-aware parsing
	// it is downgraded to Ident before anyone sees it.
	End

	keywordStart
	And
	As
	Class
	Def
	Elif
	Else
	Enum
	False
	For
	From
	If
	Import
	In
	Interface
	Is
	Isa
	Namespace
	Not
	Null
	Of
	Or
	Pass
	Return
	Self
	Struct
	True
	Unless
	While
	keywordEnd

	operatorStart
	Colon
	Comma
	Dot
	LParen
	RParen
	LBrack
	RBrack
	LBrace
	RBrace
	Assign
	Op
	operatorEnd
)

var kindNames = map[Kind]string{
	Illegal:    "ILLEGAL",
	EOF:        "EOF",
	EOS:        "EOS",
	Whitespace: "WS",
	Comment:    "COMMENT",
	Ident:      "ID",
	Int:        "INT",
	Float:      "FLOAT",
	String:     "STRING",
	End:        "END",
	And:        "and",
	As:         "as",
	Class:      "class",
	Def:        "def",
	Elif:       "elif",
	Else:       "else",
	Enum:       "enum",
	False:      "false",
	For:        "for",
	From:       "from",
	If:         "if",
	Import:     "import",
	In:         "in",
	Interface:  "interface",
	Is:         "is",
	Isa:        "isa",
	Namespace:  "namespace",
	Not:        "not",
	Null:       "null",
	Of:         "of",
	Or:         "or",
	Pass:       "pass",
	Return:     "return",
	Self:       "self",
	Struct:     "struct",
	True:       "true",
	Unless:     "unless",
	While:      "while",
	Colon:      ":",
	Comma:      ",",
	Dot:        ".",
	LParen:     "(",
	RParen:     ")",
	LBrack:     "[",
	RBrack:     "]",
	LBrace:     "{",
	RBrace:     "}",
	Assign:     "=",
	Op:         "OP",
}

var keywords = func() map[string]Kind {
	m := make(map[string]Kind)
	for k := keywordStart + 1; k < keywordEnd; k++ {
		m[kindNames[k]] = k
	}
	m["end"] = End
	return m
}()

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsKeyword reports whether k is a reserved word. End counts as a keyword
// until it is downgraded.
func (k Kind) IsKeyword() bool {
	return k == End || (k > keywordStart && k < keywordEnd)
}

func (k Kind) IsOperator() bool {
	return k > operatorStart && k < operatorEnd
}

// Lookup maps an identifier spelling to its keyword kind, or Ident.
func Lookup(ident string) Kind {
	if k, ok := keywords[ident]; ok {
		return k
	}
	return Ident
}

// Token is an immutable lexeme. Line and Column are 1-based.
type Token struct {
	Kind   Kind
	Text   string
	File   string
	Line   int
	Column int

	// Skip marks trivia (whitespace, comments) the filter buffers instead of
	// delivering.
	Skip bool
}

// Downgrade returns the token with the reserved terminator kind rewritten to
// a plain identifier. Every other kind is returned unchanged.
func (t Token) Downgrade() Token {
	if t.Kind == End {
		t.Kind = Ident
	}
	return t
}

// EndColumn is the column just past the token's text on its starting line.
func (t Token) EndColumn() int {
	return t.Column + len(t.Text)
}

func (t Token) String() string {
	switch t.Kind {
	case EOF, EOS:
		return t.Kind.String()
	}
	if t.Kind.IsKeyword() || t.Kind.IsOperator() && t.Kind != Op {
		return t.Text
	}
	return fmt.Sprintf("%s(%q)", t.Kind, t.Text)
}

// Source is a pull-based token stream.
type Source interface {
	Next() (Token, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (Token, error)

func (f SourceFunc) Next() (Token, error) { return f() }
