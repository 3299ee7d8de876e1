// Package compiler defines the contract between the compile orchestrator and
// the compiler it drives, and provides the default front end used by the
// editor: parsing, type declaration and type reference resolution.
package compiler

import (
	"context"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/boolsp/pkg/ast"
	"github.com/walteh/boolsp/pkg/diagnostic"
	"github.com/walteh/boolsp/pkg/types"
)

var (
	ErrNilRequest     = errors.Base("nil compile request")
	ErrDuplicateInput = errors.Base("duplicate compile input")
	ErrNotAnalyzed    = errors.Base("node was not analyzed")
)

// DefaultEntryPoint is the method whose body is analyzed when only the entry
// point is requested.
const DefaultEntryPoint = "InitializeComponent"

// Bodies selects how much of each method body is analyzed.
type Bodies int

const (
	// BodiesFull analyzes every method body.
	BodiesFull Bodies = iota
	// BodiesEntryPointOnly analyzes only the body of Options.EntryPoint.
	// Declarations and signatures are always analyzed.
	BodiesEntryPointOnly
)

func (b Bodies) String() string {
	if b == BodiesEntryPointOnly {
		return "entrypoint"
	}
	return "full"
}

// ParseBodies is the inverse of Bodies.String.
func ParseBodies(s string) (Bodies, error) {
	switch strings.ToLower(s) {
	case "", "full":
		return BodiesFull, nil
	case "entrypoint", "entry-point", "entry_point":
		return BodiesEntryPointOnly, nil
	}
	return BodiesFull, errors.Errorf("unknown body analysis mode %q", s)
}

type Options struct {
	Bodies     Bodies
	EntryPoint string
	// Parallelism bounds how many inputs are parsed at once. Zero or less
	// means one per input.
	Parallelism int
}

func DefaultOptions() Options {
	return Options{
		Bodies:     BodiesFull,
		EntryPoint: DefaultEntryPoint,
	}
}

// Input is one file to compile.
type Input struct {
	Name string
	Text []byte
	// Indent seeds the expected indentation character, 0 to learn it.
	Indent byte
}

// Request is everything one compiler invocation needs.
type Request struct {
	Inputs []Input
	// Prebuilt are modules of files outside the compile set whose
	// declarations must stay visible.
	Prebuilt   []*ast.Module
	References []*types.Table
	Options    Options
}

// Context is the result of one compiler invocation. It is immutable once
// returned.
type Context struct {
	Modules     map[string]*ast.Module
	Diagnostics []diagnostic.Diagnostic
	Types       *types.Registry
	Options     Options

	bindings map[ast.Node]*types.Type
}

// Resolve returns the type entity bound to a type reference or type
// definition. Unresolvable references return types.ErrorType; nodes the
// compiler skipped return ErrNotAnalyzed.
func (c *Context) Resolve(node ast.Node) (*types.Type, error) {
	if c == nil {
		return nil, errors.WithStack(ErrNotAnalyzed)
	}
	if g, ok := node.(*ast.GenericTypeReference); ok {
		node = g.Base
	}
	if t, ok := c.bindings[node]; ok {
		return t, nil
	}
	return nil, errors.WithStack(ErrNotAnalyzed)
}

// DiagnosticsFor returns the diagnostics originating in file.
func (c *Context) DiagnosticsFor(file string) []diagnostic.Diagnostic {
	var out []diagnostic.Diagnostic
	for _, d := range c.Diagnostics {
		if d.File == file {
			out = append(out, d)
		}
	}
	return out
}

// Compiler compiles a set of inputs in one invocation.
type Compiler interface {
	Compile(ctx context.Context, req *Request) (*Context, error)
}

// Func adapts a function to Compiler.
type Func func(ctx context.Context, req *Request) (*Context, error)

func (f Func) Compile(ctx context.Context, req *Request) (*Context, error) {
	return f(ctx, req)
}
