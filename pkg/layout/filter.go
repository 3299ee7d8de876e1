// Package layout implements the indentation filter that sits between the raw
// lexer and the parser.
//
// The filter drops trivia while remembering its text, checks that every
// line is indented with a single character, synthesizes the statement
// terminator that closes the last line of a file, and hands the reserved
// block terminator to the parser as an ordinary identifier.
package layout

import (
	"fmt"
	"iter"
	"strings"

	"github.com/walteh/boolsp/pkg/lexer"
	"github.com/walteh/boolsp/pkg/token"
)

// IndentationError is raised when an indentation prefix mixes the expected
// indent character with another one.
type IndentationError struct {
	File     string
	Line     int
	Column   int
	Expected byte
}

func (e *IndentationError) Error() string {
	return fmt.Sprintf("%s:%d:%d: mixed indentation, expected the use of %s", e.File, e.Line, e.Column, describeIndent(e.Expected))
}

// Message is the error text without the location prefix.
func (e *IndentationError) Message() string {
	return "mixed indentation, expected the use of " + describeIndent(e.Expected)
}

func describeIndent(c byte) string {
	switch c {
	case '\t':
		return "tabs"
	case '\f':
		return "form feeds"
	default:
		return "spaces"
	}
}

// Option configures a Filter.
type Option func(*Filter)

// WithExpectedIndent seeds the expected indent character instead of learning
// it from the first indented line. A zero byte leaves it unset.
func WithExpectedIndent(c byte) Option {
	return func(f *Filter) {
		f.expected = c
	}
}

// Filter converts a raw token stream into the stream the parser consumes.
// It is stateful and must not be shared between goroutines.
type Filter struct {
	src      token.Source
	pending  []token.Token
	buf      strings.Builder
	expected byte
	err      error
}

var _ token.Source = (*Filter)(nil)

// NewFilter wraps src.
func NewFilter(src token.Source, opts ...Option) *Filter {
	f := &Filter{src: src}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Expected returns the indent character in force, or 0 if none has been seen.
func (f *Filter) Expected() byte {
	return f.expected
}

// Next returns the next token. Once an error has been returned every later
// call returns it again.
func (f *Filter) Next() (token.Token, error) {
	if f.err != nil {
		return token.Token{}, f.err
	}

	if len(f.pending) == 0 {
		if err := f.fill(); err != nil {
			f.err = err
			return token.Token{}, err
		}
	}

	tok := f.pending[0]
	f.pending = f.pending[1:]

	return tok.Downgrade(), nil
}

// All iterates over the stream up to and including EOF, or until the first
// error.
func (f *Filter) All() iter.Seq2[token.Token, error] {
	return func(yield func(token.Token, error) bool) {
		for {
			tok, err := f.Next()
			if !yield(tok, err) || err != nil || tok.Kind == token.EOF {
				return
			}
		}
	}
}

func (f *Filter) fill() error {
	f.buf.Reset()

	tok, err := f.readAndBuffer()
	if err != nil {
		return err
	}

	if err := f.flush(tok); err != nil {
		return err
	}

	if tok.Kind == token.EOF {
		f.pending = append(f.pending, token.Token{
			Kind:   token.EOS,
			Text:   "<EOL>",
			File:   tok.File,
			Line:   tok.Line,
			Column: tok.EndColumn(),
		})
	}

	f.pending = append(f.pending, tok)
	return nil
}

func (f *Filter) readAndBuffer() (token.Token, error) {
	for {
		tok, err := f.src.Next()
		if err != nil {
			return token.Token{}, err
		}
		if tok.Skip {
			f.buf.WriteString(tok.Text)
			continue
		}
		return tok, nil
	}
}

// flush validates the indentation prefix found in the buffered trivia in
// front of tok.
func (f *Filter) flush(tok token.Token) error {
	if f.buf.Len() == 0 {
		return nil
	}

	text := f.buf.String()
	nl := strings.LastIndexAny(text, "\r\n")
	if nl < 0 {
		return nil
	}

	prefix := text[nl+1:]
	if i := strings.IndexFunc(prefix, func(r rune) bool { return r != ' ' && r != '\t' && r != '\f' }); i >= 0 {
		prefix = prefix[:i]
	}
	if prefix == "" {
		return nil
	}

	if f.expected == 0 {
		f.expected = prefix[0]
	}

	rest := strings.TrimLeft(prefix, string(f.expected))
	if strings.ReplaceAll(prefix, string(f.expected), "") == "" {
		return nil
	}

	return &IndentationError{
		File:     tok.File,
		Line:     tok.Line,
		Column:   len(prefix) - len(rest) + 1,
		Expected: f.expected,
	}
}

// Tokenize runs text through the raw lexer and the filter and returns every
// token up to and including EOF.
func Tokenize(file, text string, opts ...Option) ([]token.Token, error) {
	src, err := lexer.NewAdapter(file, text)
	if err != nil {
		return nil, err
	}
	var out []token.Token
	for tok, err := range NewFilter(src, opts...).All() {
		if err != nil {
			return out, err
		}
		out = append(out, tok)
	}
	return out, nil
}
