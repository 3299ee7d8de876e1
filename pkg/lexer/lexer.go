// Package lexer provides the raw, whitespace-emitting lexer for boo sources and
// the adapter that exposes it as a pull-based token.Source.
package lexer

import (
	"github.com/alecthomas/participle/v2/lexer"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/boolsp/pkg/token"
)

var (
	// Rules defines the raw lexer rules. Nothing is elided: whitespace,
	// newlines and comments all come out as tokens so that the layout filter
	// can inspect the text between substantive tokens.
	Rules = lexer.Rules{
		"Root": {
			{Name: "Comment", Pattern: `#[^\r\n]*|//[^\r\n]*`, Action: nil},
			{Name: "BlockComment", Pattern: `/\*(?s:.*?)\*/`, Action: nil},
			{Name: "String", Pattern: `"""(?s:.*?)"""|"(?:\\.|[^"\\\r\n])*"|'(?:\\.|[^'\\\r\n])*'`, Action: nil},
			{Name: "Float", Pattern: `[0-9]+\.[0-9]+(?:[eE][-+]?[0-9]+)?`, Action: nil},
			{Name: "Int", Pattern: `0[xX][0-9a-fA-F]+|[0-9]+`, Action: nil},
			{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`, Action: nil},
			{Name: "Newline", Pattern: `\r\n|\r|\n`, Action: nil},
			{Name: "Space", Pattern: `[ \t\f]+`, Action: nil},
			{Name: "Op", Pattern: `==|!=|<=|>=|\+=|-=|\*=|/=|->|\*\*|<<|>>|[-+*/%<>!&|^~@]`, Action: nil},
			{Name: "Assign", Pattern: `=`, Action: nil},
			{Name: "Punct", Pattern: `[:,.()\[\]{}]`, Action: nil},
			{Name: "Char", Pattern: `.`, Action: nil},
		},
	}

	// Definition is the stateful participle lexer built from Rules.
	Definition = lexer.MustStateful(Rules)

	symbolNames = func() map[lexer.TokenType]string {
		m := make(map[lexer.TokenType]string)
		for name, typ := range Definition.Symbols() {
			m[typ] = name
		}
		return m
	}()
)

var punctKinds = map[string]token.Kind{
	":": token.Colon,
	",": token.Comma,
	".": token.Dot,
	"(": token.LParen,
	")": token.RParen,
	"[": token.LBrack,
	"]": token.RBrack,
	"{": token.LBrace,
	"}": token.RBrace,
}

// Adapter wraps a participle lexer and converts its tokens into token.Token
// values. Newline runs at bracket depth zero that follow a substantive token
// produce an EOS token followed by the newline itself as skippable trivia.
type Adapter struct {
	file    string
	raw     lexer.Lexer
	pending []token.Token
	depth   int
	needEOS bool
	done    bool
}

var _ token.Source = (*Adapter)(nil)

// NewAdapter lexes text as the contents of file.
func NewAdapter(file, text string) (*Adapter, error) {
	raw, err := Definition.LexString(file, text)
	if err != nil {
		return nil, errors.Errorf("starting lexer for %s: %w", file, err)
	}
	return &Adapter{file: file, raw: raw}, nil
}

// Next returns the next raw token. After EOF it keeps returning EOF.
func (a *Adapter) Next() (token.Token, error) {
	if len(a.pending) > 0 {
		tok := a.pending[0]
		a.pending = a.pending[1:]
		return tok, nil
	}

	if a.done {
		return token.Token{Kind: token.EOF, File: a.file}, nil
	}

	raw, err := a.raw.Next()
	if err != nil {
		return token.Token{}, errors.Errorf("lexing %s: %w", a.file, err)
	}

	tok := token.Token{
		Text:   raw.Value,
		File:   a.file,
		Line:   raw.Pos.Line,
		Column: raw.Pos.Column,
	}

	if raw.EOF() {
		a.done = true
		tok.Kind = token.EOF
		return tok, nil
	}

	switch symbolNames[raw.Type] {
	case "Comment", "BlockComment":
		tok.Kind = token.Comment
		tok.Skip = true
	case "Space":
		tok.Kind = token.Whitespace
		tok.Skip = true
	case "Newline":
		tok.Kind = token.Whitespace
		tok.Skip = true
		if a.depth == 0 && a.needEOS {
			a.needEOS = false
			a.pending = append(a.pending, tok)
			return token.Token{
				Kind:   token.EOS,
				Text:   "<EOL>",
				File:   a.file,
				Line:   tok.Line,
				Column: tok.Column,
			}, nil
		}
	case "String":
		tok.Kind = token.String
	case "Float":
		tok.Kind = token.Float
	case "Int":
		tok.Kind = token.Int
	case "Ident":
		tok.Kind = token.Lookup(raw.Value)
	case "Op":
		tok.Kind = token.Op
	case "Assign":
		tok.Kind = token.Assign
	case "Punct":
		tok.Kind = punctKinds[raw.Value]
		switch tok.Kind {
		case token.LParen, token.LBrack, token.LBrace:
			a.depth++
		case token.RParen, token.RBrack, token.RBrace:
			if a.depth > 0 {
				a.depth--
			}
		}
	default:
		tok.Kind = token.Illegal
	}

	if !tok.Skip {
		a.needEOS = true
	}

	return tok, nil
}

// Raw returns every token the adapter produces for text, trivia included,
// up to and including EOF.
func Raw(file, text string) ([]token.Token, error) {
	a, err := NewAdapter(file, text)
	if err != nil {
		return nil, err
	}
	var out []token.Token
	for {
		tok, err := a.Next()
		if err != nil {
			return out, err
		}
		out = append(out, tok)
		if tok.Kind == token.EOF {
			return out, nil
		}
	}
}
