package parser

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/boolsp/pkg/ast"
	"github.com/walteh/boolsp/pkg/layout"
	"github.com/walteh/boolsp/pkg/lexer"
	"github.com/walteh/boolsp/pkg/token"
)

// SyntaxError is a recoverable problem found while reading a file. Lexical
// errors stop the parse; every other kind is recovered from at the next
// statement.
type SyntaxError struct {
	File    string
	Line    int
	Column  int
	Length  int
	Message string
	Lexical bool
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
}

// Parse reads content as the file filename. The returned module is never
// nil; whatever could be read before and around the reported problems is in
// it. The error return is reserved for failures to read the input at all.
func Parse(ctx context.Context, content []byte, filename string, opts ...layout.Option) (*ast.Module, []*SyntaxError, error) {
	raw, err := lexer.NewAdapter(filename, string(content))
	if err != nil {
		return nil, nil, errors.Errorf("parsing %s: %w", filename, err)
	}

	mod, errs := ParseSource(filename, layout.NewFilter(raw, opts...))

	zerolog.Ctx(ctx).Trace().
		Str("file", filename).
		Int("members", len(mod.Members)).
		Int("errors", len(errs)).
		Msg("parsed module")

	return mod, errs, nil
}

// ParseSource parses an already filtered token stream.
func ParseSource(filename string, src token.Source) (*ast.Module, []*SyntaxError) {
	p := &parser{file: filename, src: src}
	p.advance()
	mod := p.parseModule()
	return mod, p.errs
}

var modifiers = map[string]bool{
	"public":    true,
	"private":   true,
	"protected": true,
	"internal":  true,
	"static":    true,
	"final":     true,
	"abstract":  true,
	"virtual":   true,
	"override":  true,
	"partial":   true,
	"transient": true,
	"new":       true,
}

type parser struct {
	file      string
	src       token.Source
	tok       token.Token
	ahead     []token.Token
	prevEnd   ast.Position
	errs      []*SyntaxError
	lastErr   ast.Position
	failed    bool
	namespace string
}

func pos(t token.Token) ast.Position {
	return ast.Position{Line: t.Line, Column: t.Column}
}

func (p *parser) read() token.Token {
	if p.failed {
		return token.Token{Kind: token.EOF, File: p.file, Line: p.tok.Line, Column: p.tok.Column}
	}
	tok, err := p.src.Next()
	if err != nil {
		p.failed = true
		p.lexicalError(err)
		return token.Token{Kind: token.EOF, File: p.file, Line: p.tok.Line, Column: p.tok.Column}
	}
	return tok
}

func (p *parser) lexicalError(err error) {
	se := &SyntaxError{File: p.file, Line: p.tok.Line, Column: p.tok.Column, Length: 1, Message: err.Error(), Lexical: true}
	var ierr *layout.IndentationError
	if errors.As(err, &ierr) {
		se.Line, se.Column, se.Message = ierr.Line, ierr.Column, ierr.Message()
	}
	if se.Line == 0 {
		se.Line, se.Column = 1, 1
	}
	p.errs = append(p.errs, se)
}

func (p *parser) advance() {
	if p.tok.Line > 0 && p.tok.Kind != token.EOS && p.tok.Kind != token.EOF {
		p.prevEnd = ast.Position{Line: p.tok.Line, Column: p.tok.EndColumn()}
	}
	if len(p.ahead) > 0 {
		p.tok = p.ahead[0]
		p.ahead = p.ahead[1:]
		return
	}
	p.tok = p.read()
}

// peek returns the token n positions after the current one.
func (p *parser) peek(n int) token.Token {
	for len(p.ahead) < n {
		p.ahead = append(p.ahead, p.read())
	}
	return p.ahead[n-1]
}

func (p *parser) errorAt(t token.Token, format string, args ...any) {
	at := pos(t)
	if at == p.lastErr || p.failed {
		return
	}
	p.lastErr = at
	length := len(t.Text)
	if length == 0 {
		length = 1
	}
	p.errs = append(p.errs, &SyntaxError{
		File:    p.file,
		Line:    t.Line,
		Column:  t.Column,
		Length:  length,
		Message: fmt.Sprintf(format, args...),
	})
}

func (p *parser) unexpected() {
	switch p.tok.Kind {
	case token.EOS:
		p.errorAt(p.tok, "unexpected end of line")
	case token.EOF:
		p.errorAt(p.tok, "unexpected end of file")
	default:
		p.errorAt(p.tok, "unexpected token '%s'", p.tok.Text)
	}
}

func (p *parser) got(k token.Kind) bool {
	if p.tok.Kind == k {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expect(k token.Kind) bool {
	if p.got(k) {
		return true
	}
	p.unexpected()
	return false
}

func (p *parser) skipEOS() {
	for p.tok.Kind == token.EOS {
		p.advance()
	}
}

// sync skips the rest of the current line. When the line opened a block,
// the block's lines are skipped too so they are not reported again.
func (p *parser) sync(col int) {
	opened := false
	for p.tok.Kind != token.EOS && p.tok.Kind != token.EOF {
		opened = p.tok.Kind == token.Colon
		p.advance()
	}
	p.skipEOS()
	if opened {
		p.skipIndented(col)
	}
}

func (p *parser) skipIndented(col int) {
	for p.tok.Kind != token.EOF && p.tok.Column > col {
		for p.tok.Kind != token.EOS && p.tok.Kind != token.EOF {
			p.advance()
		}
		p.skipEOS()
	}
}

// endStatement consumes the terminator of a simple statement.
func (p *parser) endStatement(col int) {
	if p.tok.Kind == token.EOS || p.tok.Kind == token.EOF {
		p.skipEOS()
		return
	}
	p.unexpected()
	p.sync(col)
}

func (p *parser) isBlockEnd() bool {
	return p.tok.Kind == token.Ident && p.tok.Text == "end" && (p.peek(1).Kind == token.EOS || p.peek(1).Kind == token.EOF)
}

// parseIndented parses the body of a block whose header starts at column
// headerCol. The current token must be the header's colon. Inline bodies
// (`def f(): pass`) hold a single item.
func (p *parser) parseIndented(headerCol int, item func()) (start ast.Position) {
	colon := p.tok
	if !p.expect(token.Colon) {
		p.sync(headerCol)
		return pos(colon)
	}

	if p.tok.Kind != token.EOS {
		start = pos(p.tok)
		item()
		return start
	}

	p.skipEOS()
	if p.tok.Kind == token.EOF || p.tok.Column <= headerCol {
		p.errorAt(p.tok, "expected an indented block")
		return pos(colon)
	}

	start = pos(p.tok)
	indent := p.tok.Column
	reported := false
	for {
		p.skipEOS()
		if p.tok.Kind == token.EOF || p.tok.Column < indent {
			return start
		}
		if p.tok.Column > indent && !reported {
			p.errorAt(p.tok, "unexpected indent")
			reported = true
		}
		if p.isBlockEnd() {
			p.advance()
			p.skipEOS()
			return start
		}
		before := p.tok
		item()
		if p.tok == before {
			// no progress; drop the line
			p.sync(before.Column)
		}
	}
}

func (p *parser) parseModule() *ast.Module {
	mod := &ast.Module{File: p.file}

	p.skipEOS()
	if p.tok.Kind == token.Namespace {
		start := pos(p.tok)
		p.advance()
		name, _, ok := p.parseDottedName()
		if ok {
			mod.Namespace = &ast.NamespaceDeclaration{Name: name, Pos: start, EndPos: p.prevEnd}
			p.namespace = name
		}
		p.endStatement(start.Column)
	}

	for {
		p.skipEOS()
		if p.tok.Kind != token.Import {
			break
		}
		if imp := p.parseImport(); imp != nil {
			mod.Imports = append(mod.Imports, imp)
		}
	}

	for {
		p.skipEOS()
		if p.tok.Kind == token.EOF {
			break
		}
		if p.tok.Kind == token.Import {
			p.errorAt(p.tok, "imports must precede all other declarations")
			if imp := p.parseImport(); imp != nil {
				mod.Imports = append(mod.Imports, imp)
			}
			continue
		}
		before := p.tok
		if m := p.parseMember(nil); m != nil {
			mod.Members = append(mod.Members, m)
		} else if p.tok == before {
			if s := p.parseStmt(); s != nil {
				mod.Globals = append(mod.Globals, s)
			}
		}
		if p.tok == before {
			p.unexpected()
			p.sync(before.Column)
		}
	}

	mod.EndPos = ast.Position{Line: p.tok.Line, Column: p.tok.Column}
	return mod
}

func (p *parser) parseDottedName() (string, ast.Position, bool) {
	start := p.tok
	if start.Kind != token.Ident {
		p.unexpected()
		return "", pos(start), false
	}
	name := start.Text
	p.advance()
	for p.tok.Kind == token.Dot && p.peek(1).Kind == token.Ident {
		p.advance()
		name += "." + p.tok.Text
		p.advance()
	}
	return name, pos(start), true
}

func (p *parser) parseImport() *ast.Import {
	start := p.tok
	p.advance()

	name, namePos, ok := p.parseDottedName()
	if !ok {
		p.sync(start.Column)
		return nil
	}
	imp := &ast.Import{Namespace: name, NamePos: namePos, Pos: pos(start)}

	if p.got(token.From) {
		switch p.tok.Kind {
		case token.String:
			imp.Assembly = unquote(p.tok.Text)
			p.advance()
		case token.Ident:
			imp.Assembly, _, _ = p.parseDottedName()
		default:
			p.unexpected()
		}
	}

	if p.got(token.As) {
		if p.tok.Kind == token.Ident {
			imp.Alias = ast.NewIdent(p.tok.Text, pos(p.tok))
			p.advance()
		} else {
			p.unexpected()
		}
	}

	imp.EndPos = p.prevEnd
	p.endStatement(start.Column)
	return imp
}

func (p *parser) skipAttributes() {
	for p.tok.Kind == token.LBrack {
		depth := 0
		for {
			switch p.tok.Kind {
			case token.LBrack:
				depth++
			case token.RBrack:
				depth--
			case token.EOF:
				return
			}
			p.advance()
			if depth == 0 {
				break
			}
		}
		p.skipEOS()
	}
}

func (p *parser) parseModifiers() []string {
	var mods []string
	for p.tok.Kind == token.Ident && modifiers[p.tok.Text] {
		next := p.peek(1).Kind
		if next != token.Ident && next != token.Class && next != token.Interface &&
			next != token.Struct && next != token.Enum && next != token.Def {
			break
		}
		mods = append(mods, p.tok.Text)
		p.advance()
	}
	return mods
}

// parseMember parses a declaration that may appear at module level (outer is
// nil) or in a type body. It returns nil without consuming anything when the
// current line is not a declaration.
func (p *parser) parseMember(outer *ast.TypeDefinition) ast.Member {
	start := p.tok
	if outer == nil && !p.looksLikeDeclaration() {
		return nil
	}

	p.skipAttributes()
	mods := p.parseModifiers()

	switch p.tok.Kind {
	case token.Class, token.Interface, token.Struct, token.Enum:
		if td := p.parseTypeDefinition(start, outer, mods); td != nil {
			return td
		}
		return nil
	case token.Def:
		if m := p.parseMethod(start, outer, mods); m != nil {
			return m
		}
		return nil
	}

	if outer == nil {
		p.unexpected()
		p.sync(start.Column)
		return nil
	}

	switch {
	case p.tok.Kind == token.Pass:
		p.advance()
		p.endStatement(start.Column)
		return nil
	case p.tok.Kind == token.Ident && outer.Kind == ast.EnumType:
		return p.parseEnumValue(start)
	case p.tok.Kind == token.Ident && (p.peek(1).Kind == token.As || p.peek(1).Kind == token.Assign):
		return p.parseField(start, mods)
	case p.tok.Kind == token.Ident:
		// macros are allowed in type bodies
		return p.parseMacro(start)
	}

	p.unexpected()
	p.sync(start.Column)
	return nil
}

func (p *parser) looksLikeDeclaration() bool {
	for i := 0; ; i++ {
		t := p.tok
		if i > 0 {
			t = p.peek(i)
		}
		switch {
		case t.Kind == token.Class, t.Kind == token.Interface, t.Kind == token.Struct,
			t.Kind == token.Enum, t.Kind == token.Def:
			return true
		case t.Kind == token.LBrack && i == 0:
			return true
		case t.Kind == token.Ident && modifiers[t.Text]:
			continue
		default:
			return false
		}
	}
}

func (p *parser) parseTypeDefinition(start token.Token, outer *ast.TypeDefinition, mods []string) *ast.TypeDefinition {
	td := &ast.TypeDefinition{
		Modifiers: mods,
		Outer:     outer,
		Namespace: p.namespace,
		Pos:       pos(start),
	}
	switch p.tok.Kind {
	case token.Interface:
		td.Kind = ast.InterfaceType
	case token.Struct:
		td.Kind = ast.StructType
	case token.Enum:
		td.Kind = ast.EnumType
	default:
		td.Kind = ast.ClassType
	}
	p.advance()

	if p.tok.Kind != token.Ident {
		p.unexpected()
		p.sync(start.Column)
		return nil
	}
	td.Name = ast.NewIdent(p.tok.Text, pos(p.tok))
	p.advance()

	if p.got(token.LParen) {
		for p.tok.Kind != token.RParen && p.tok.Kind != token.EOS && p.tok.Kind != token.EOF {
			if ref := p.parseTypeReference(); ref != nil {
				td.Bases = append(td.Bases, ref)
			} else {
				break
			}
			if !p.got(token.Comma) {
				break
			}
		}
		p.expect(token.RParen)
	}

	p.parseIndented(start.Column, func() {
		p.skipEOS()
		s := p.tok
		if m := p.parseMember(td); m != nil {
			td.Members = append(td.Members, m)
		} else if p.tok == s {
			p.unexpected()
			p.sync(s.Column)
		}
	})
	td.EndPos = p.prevEnd
	return td
}

func (p *parser) parseEnumValue(start token.Token) *ast.EnumValue {
	ev := &ast.EnumValue{Name: ast.NewIdent(p.tok.Text, pos(p.tok))}
	p.advance()
	if p.got(token.Assign) {
		ev.Value = p.parseExpr()
	}
	p.endStatement(start.Column)
	return ev
}

func (p *parser) parseField(start token.Token, mods []string) *ast.Field {
	f := &ast.Field{
		Name:      ast.NewIdent(p.tok.Text, pos(p.tok)),
		Modifiers: mods,
		Pos:       pos(start),
	}
	p.advance()
	if p.got(token.As) {
		f.Type = p.parseTypeReference()
	}
	if p.got(token.Assign) {
		f.Init = p.parseExpr()
	}
	f.EndPos = p.prevEnd
	if p.tok.Kind == token.Colon {
		// property accessors
		p.advance()
		p.skipEOS()
		p.skipIndented(start.Column)
		return f
	}
	p.endStatement(start.Column)
	return f
}

func (p *parser) parseMethod(start token.Token, owner *ast.TypeDefinition, mods []string) *ast.Method {
	p.advance()
	if p.tok.Kind != token.Ident {
		p.unexpected()
		p.sync(start.Column)
		return nil
	}
	m := &ast.Method{
		Name:      ast.NewIdent(p.tok.Text, pos(p.tok)),
		Modifiers: mods,
		Owner:     owner,
		Pos:       pos(start),
	}
	p.advance()

	if p.expect(token.LParen) {
		for p.tok.Kind != token.RParen && p.tok.Kind != token.EOS && p.tok.Kind != token.EOF {
			if p.tok.Kind == token.Op && p.tok.Text == "*" {
				p.advance()
			}
			if p.tok.Kind != token.Ident {
				p.unexpected()
				break
			}
			param := &ast.Parameter{Name: ast.NewIdent(p.tok.Text, pos(p.tok))}
			p.advance()
			if p.got(token.As) {
				param.Type = p.parseTypeReference()
			}
			m.Parameters = append(m.Parameters, param)
			if !p.got(token.Comma) {
				break
			}
		}
		p.expect(token.RParen)
	}

	if p.got(token.As) {
		m.ReturnType = p.parseTypeReference()
	}

	if p.tok.Kind != token.Colon && owner != nil && owner.Kind == ast.InterfaceType {
		m.EndPos = p.prevEnd
		p.endStatement(start.Column)
		return m
	}

	m.Body = &ast.Block{}
	m.Body.Pos = p.parseIndented(start.Column, func() {
		if s := p.parseStmt(); s != nil {
			m.Body.Stmts = append(m.Body.Stmts, s)
		}
	})
	m.Body.EndPos = p.prevEnd
	m.EndPos = p.prevEnd
	return m
}

func (p *parser) parseTypeReference() ast.TypeReference {
	switch p.tok.Kind {
	case token.LParen:
		start := pos(p.tok)
		p.advance()
		elem := p.parseTypeReference()
		if elem == nil {
			return nil
		}
		p.expect(token.RParen)
		return &ast.ArrayTypeReference{Element: elem, Pos: start, EndPos: p.prevEnd}
	case token.Ident:
		name, at, _ := p.parseDottedName()
		base := ast.NewSimpleTypeReference(name, at)
		if p.tok.Kind == token.LBrack && p.peek(1).Kind == token.Of {
			p.advance()
			p.advance()
			g := &ast.GenericTypeReference{Base: base}
			for {
				arg := p.parseTypeReference()
				if arg == nil {
					break
				}
				g.Arguments = append(g.Arguments, arg)
				if !p.got(token.Comma) {
					break
				}
			}
			p.expect(token.RBrack)
			g.EndPos = p.prevEnd
			return g
		}
		return base
	}
	p.unexpected()
	return nil
}

// block parses an indented statement block following a header.
func (p *parser) block(headerCol int) *ast.Block {
	b := &ast.Block{}
	b.Pos = p.parseIndented(headerCol, func() {
		if s := p.parseStmt(); s != nil {
			b.Stmts = append(b.Stmts, s)
		}
	})
	b.EndPos = p.prevEnd
	return b
}

func (p *parser) parseStmt() ast.Stmt {
	start := p.tok
	switch start.Kind {
	case token.Pass:
		p.advance()
		p.endStatement(start.Column)
		return &ast.PassStmt{Pos: pos(start)}

	case token.Return:
		p.advance()
		r := &ast.ReturnStmt{Pos: pos(start)}
		if p.tok.Kind != token.EOS && p.tok.Kind != token.EOF {
			r.Result = p.parseExpr()
		}
		r.EndPos = p.prevEnd
		p.endStatement(start.Column)
		return r

	case token.If, token.Unless:
		return p.parseIf()

	case token.While:
		p.advance()
		w := &ast.WhileStmt{Pos: pos(start), Cond: p.parseExpr()}
		w.Body = p.block(start.Column)
		w.EndPos = p.prevEnd
		return w

	case token.For:
		if f := p.parseFor(); f != nil {
			return f
		}
		return nil

	case token.Class, token.Interface, token.Struct, token.Enum, token.Def:
		p.errorAt(start, "'%s' is not allowed here", start.Text)
		p.sync(start.Column)
		return nil

	case token.Ident:
		next := p.peek(1)
		if next.Kind == token.As {
			return p.parseDeclaration()
		}
		if startsMacro(next) {
			return p.parseMacro(start)
		}
	}

	x := p.parseExpr()
	if p.tok.Kind == token.Assign || isCompoundAssign(p.tok) {
		op := p.tok.Text
		p.advance()
		x = &ast.BinaryExpr{Op: op, X: x, Y: p.parseExpr()}
	}
	p.endStatement(start.Column)
	return &ast.ExprStmt{X: x}
}

func startsMacro(next token.Token) bool {
	switch next.Kind {
	case token.Ident, token.Int, token.Float, token.String,
		token.True, token.False, token.Null, token.Self, token.Not, token.Colon:
		return true
	}
	return false
}

func isCompoundAssign(t token.Token) bool {
	if t.Kind != token.Op {
		return false
	}
	switch t.Text {
	case "+=", "-=", "*=", "/=":
		return true
	}
	return false
}

func (p *parser) parseMacro(start token.Token) *ast.MacroStatement {
	m := &ast.MacroStatement{Name: ast.NewIdent(p.tok.Text, pos(p.tok))}
	p.advance()
	for p.tok.Kind != token.Colon && p.tok.Kind != token.EOS && p.tok.Kind != token.EOF {
		m.Arguments = append(m.Arguments, p.parseExpr())
		if !p.got(token.Comma) {
			break
		}
	}
	if p.tok.Kind == token.Colon {
		m.Body = p.block(start.Column)
		m.EndPos = p.prevEnd
		return m
	}
	m.EndPos = p.prevEnd
	p.endStatement(start.Column)
	return m
}

func (p *parser) parseDeclaration() *ast.DeclarationStmt {
	start := p.tok
	d := &ast.DeclarationStmt{Name: ast.NewIdent(p.tok.Text, pos(p.tok))}
	p.advance()
	p.advance()
	d.Type = p.parseTypeReference()
	if p.got(token.Assign) {
		d.Init = p.parseExpr()
	}
	p.endStatement(start.Column)
	return d
}

func (p *parser) parseIf() *ast.IfStmt {
	start := p.tok
	s := &ast.IfStmt{Pos: pos(start), Unless: start.Kind == token.Unless}
	p.advance()
	s.Cond = p.parseExpr()
	s.Then = p.block(start.Column)

	p.skipEOS()
	if p.tok.Column == start.Column {
		switch p.tok.Kind {
		case token.Elif:
			s.Else = p.parseIf()
		case token.Else:
			els := p.tok
			p.advance()
			s.Else = p.block(els.Column)
		}
	}
	s.EndPos = p.prevEnd
	return s
}

func (p *parser) parseFor() *ast.ForStmt {
	start := p.tok
	p.advance()
	f := &ast.ForStmt{Pos: pos(start)}
	for p.tok.Kind == token.Ident {
		v := &ast.DeclarationStmt{Name: ast.NewIdent(p.tok.Text, pos(p.tok))}
		p.advance()
		if p.got(token.As) {
			v.Type = p.parseTypeReference()
		}
		f.Vars = append(f.Vars, v)
		if !p.got(token.Comma) {
			break
		}
	}
	if len(f.Vars) == 0 || !p.expect(token.In) {
		p.sync(start.Column)
		return nil
	}
	f.Iterable = p.parseExpr()
	f.Body = p.block(start.Column)
	f.EndPos = p.prevEnd
	return f
}
