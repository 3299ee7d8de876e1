package compiler

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/walteh/boolsp/pkg/ast"
	"github.com/walteh/boolsp/pkg/diagnostic"
	"github.com/walteh/boolsp/pkg/layout"
	"github.com/walteh/boolsp/pkg/parser"
	"github.com/walteh/boolsp/pkg/types"
)

// Pipeline is the bundled Compiler. It parses every input, declares the
// types of inputs and prebuilt modules, then binds type references.
type Pipeline struct{}

var _ Compiler = (*Pipeline)(nil)

func NewPipeline() *Pipeline {
	return &Pipeline{}
}

type parsed struct {
	input  Input
	module *ast.Module
	errs   []*parser.SyntaxError
}

func (p *Pipeline) Compile(ctx context.Context, req *Request) (*Context, error) {
	if req == nil {
		return nil, errors.WithStack(ErrNilRequest)
	}

	seen := make(map[string]bool, len(req.Inputs))
	for _, in := range req.Inputs {
		if seen[in.Name] {
			return nil, errors.Errorf("%w: %s", ErrDuplicateInput, in.Name)
		}
		seen[in.Name] = true
	}

	opts := req.Options
	if opts.EntryPoint == "" {
		opts.EntryPoint = DefaultEntryPoint
	}

	units, err := parseAll(ctx, req.Inputs, opts.Parallelism)
	if err != nil {
		return nil, err
	}

	cc := &Context{
		Modules:  make(map[string]*ast.Module, len(units)),
		Types:    types.NewRegistry(req.References...),
		Options:  opts,
		bindings: make(map[ast.Node]*types.Type),
	}

	for _, u := range units {
		cc.Modules[u.input.Name] = u.module
		for _, se := range u.errs {
			code := diagnostic.CodeSyntax
			if se.Lexical {
				code = diagnostic.CodeLexical
			}
			cc.Diagnostics = append(cc.Diagnostics, diagnostic.New(code, u.input.Name, se.Line, se.Column, se.Length, "%s", se.Message))
		}
	}

	// prebuilt declarations first so a clash is reported on the file being
	// edited
	for _, mod := range req.Prebuilt {
		if mod == nil || seen[mod.File] {
			continue
		}
		for _, td := range mod.Types() {
			t := types.FromDefinition(mod.File, td)
			if prev, err := cc.Types.Declare(t); err == nil {
				cc.bindings[td] = t
			} else {
				cc.bindings[td] = prev
			}
		}
	}

	for _, u := range units {
		cc.declare(u.input.Name, u.module)
	}

	for _, u := range units {
		newResolver(cc, u.input.Name, u.module).run()
	}

	diagnostic.Sort(cc.Diagnostics)

	zerolog.Ctx(ctx).Debug().
		Int("inputs", len(req.Inputs)).
		Int("prebuilt", len(req.Prebuilt)).
		Int("references", len(req.References)).
		Int("diagnostics", len(cc.Diagnostics)).
		Str("bodies", opts.Bodies.String()).
		Msg("compiled")

	return cc, nil
}

func parseAll(ctx context.Context, inputs []Input, parallelism int) ([]*parsed, error) {
	units := make([]*parsed, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}

	for i, in := range inputs {
		g.Go(func() error {
			var opts []layout.Option
			if in.Indent != 0 {
				opts = append(opts, layout.WithExpectedIndent(in.Indent))
			}
			mod, errs, err := parser.Parse(gctx, in.Text, in.Name, opts...)
			if err != nil {
				return errors.Errorf("compiling %s: %w", in.Name, err)
			}
			units[i] = &parsed{input: in, module: mod, errs: errs}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return units, nil
}

func (cc *Context) declare(file string, mod *ast.Module) {
	for _, td := range mod.Types() {
		t := types.FromDefinition(file, td)
		prev, err := cc.Types.Declare(t)
		if err != nil {
			cc.bindings[td] = prev
			cc.Diagnostics = append(cc.Diagnostics, diagnostic.New(diagnostic.CodeDuplicateType, file,
				td.Name.Pos.Line, td.Name.Pos.Column, len(td.Name.Name),
				"type '%s' is already declared in %s", t.FullName(), prev.Source))
			continue
		}
		cc.bindings[td] = t
	}
}

type resolver struct {
	cc      *Context
	file    string
	mod     *ast.Module
	scopes  []string
	aliases map[string]string
	used    map[string]bool
}

func newResolver(cc *Context, file string, mod *ast.Module) *resolver {
	r := &resolver{
		cc:      cc,
		file:    file,
		mod:     mod,
		aliases: make(map[string]string),
		used:    make(map[string]bool),
	}
	if mod.Namespace != nil {
		r.scopes = append(r.scopes, mod.Namespace.Name)
	}
	for _, imp := range mod.Imports {
		if imp.Alias != nil {
			r.aliases[imp.Alias.Name] = imp.Namespace
			continue
		}
		r.scopes = append(r.scopes, imp.Namespace)
	}
	return r
}

func (r *resolver) run() {
	ast.Inspect(r.mod, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.Method:
			r.method(n)
			return false
		case *ast.SimpleTypeReference:
			r.bind(n)
		}
		return true
	})
	r.checkImports()
}

func (r *resolver) method(m *ast.Method) {
	for _, p := range m.Parameters {
		r.refs(p)
	}
	if m.ReturnType != nil {
		r.refs(m.ReturnType)
	}
	if m.Body == nil {
		return
	}
	if r.cc.Options.Bodies == BodiesEntryPointOnly && m.Name.Name != r.cc.Options.EntryPoint {
		return
	}
	r.refs(m.Body)
}

func (r *resolver) refs(n ast.Node) {
	ast.Inspect(n, func(n ast.Node) bool {
		if ref, ok := n.(*ast.SimpleTypeReference); ok {
			r.bind(ref)
		}
		return true
	})
}

func (r *resolver) bind(ref *ast.SimpleTypeReference) {
	name := ref.Name
	alias := ""
	if head, rest, ok := strings.Cut(name, "."); ok {
		if ns, ok := r.aliases[head]; ok {
			name, alias = ns+"."+rest, head
		}
	}

	t, ns, ok := r.cc.Types.Resolve(name, r.scopes)
	r.cc.bindings[ref] = t

	if !ok {
		r.cc.Diagnostics = append(r.cc.Diagnostics, diagnostic.New(diagnostic.CodeUnresolvedType, r.file,
			ref.Pos.Line, ref.Pos.Column, len(ref.Name),
			"the name '%s' does not denote a valid type", ref.Name))
		return
	}

	switch {
	case alias != "":
		r.used[r.aliases[alias]] = true
	case ns != "":
		r.used[ns] = true
	default:
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			r.used[name[:i]] = true
		}
	}

	if t.Name == "duck" && t.Namespace == "" {
		r.cc.Diagnostics = append(r.cc.Diagnostics, diagnostic.New(diagnostic.CodeDuckTyping, r.file,
			ref.Pos.Line, ref.Pos.Column, len(ref.Name),
			"members of '%s' are resolved at run time", ref.Name))
	}
}

func (r *resolver) checkImports() {
	for _, imp := range r.mod.Imports {
		start := imp.NamePos
		if !r.cc.Types.HasNamespace(imp.Namespace) {
			r.cc.Diagnostics = append(r.cc.Diagnostics, diagnostic.New(diagnostic.CodeUnknownNamespace, r.file,
				start.Line, start.Column, len(imp.Namespace),
				"namespace '%s' not found, maybe an assembly reference is missing", imp.Namespace))
			continue
		}
		// skipped bodies may hold the only use
		if r.cc.Options.Bodies == BodiesFull && !r.used[imp.Namespace] {
			r.cc.Diagnostics = append(r.cc.Diagnostics, diagnostic.New(diagnostic.CodeUnusedImport, r.file,
				start.Line, start.Column, len(imp.Namespace),
				"namespace '%s' is never used", imp.Namespace))
		}
	}
}
