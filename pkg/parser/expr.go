package parser

import (
	"strconv"
	"strings"

	"github.com/walteh/boolsp/pkg/ast"
	"github.com/walteh/boolsp/pkg/token"
)

func (p *parser) parseExpr() ast.Expr {
	return p.parseOr()
}

func (p *parser) parseOr() ast.Expr {
	x := p.parseAnd()
	for p.tok.Kind == token.Or || (p.tok.Kind == token.Op && p.tok.Text == "||") {
		op := p.tok.Text
		p.advance()
		x = &ast.BinaryExpr{Op: op, X: x, Y: p.parseAnd()}
	}
	return x
}

func (p *parser) parseAnd() ast.Expr {
	x := p.parseNot()
	for p.tok.Kind == token.And || (p.tok.Kind == token.Op && p.tok.Text == "&&") {
		op := p.tok.Text
		p.advance()
		x = &ast.BinaryExpr{Op: op, X: x, Y: p.parseNot()}
	}
	return x
}

func (p *parser) parseNot() ast.Expr {
	if p.tok.Kind == token.Not {
		start := pos(p.tok)
		p.advance()
		return &ast.UnaryExpr{Op: "not", X: p.parseNot(), Pos: start}
	}
	return p.parseComparison()
}

var comparisonOps = map[string]bool{
	"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true,
}

func (p *parser) parseComparison() ast.Expr {
	x := p.parseAdditive()
	for {
		switch {
		case p.tok.Kind == token.Op && comparisonOps[p.tok.Text]:
			op := p.tok.Text
			p.advance()
			x = &ast.BinaryExpr{Op: op, X: x, Y: p.parseAdditive()}
		case p.tok.Kind == token.Is:
			p.advance()
			op := "is"
			if p.got(token.Not) {
				op = "is not"
			}
			x = &ast.BinaryExpr{Op: op, X: x, Y: p.parseAdditive()}
		case p.tok.Kind == token.In:
			p.advance()
			x = &ast.BinaryExpr{Op: "in", X: x, Y: p.parseAdditive()}
		case p.tok.Kind == token.Not && p.peek(1).Kind == token.In:
			p.advance()
			p.advance()
			x = &ast.BinaryExpr{Op: "not in", X: x, Y: p.parseAdditive()}
		case p.tok.Kind == token.Isa, p.tok.Kind == token.As:
			op := p.tok.Text
			p.advance()
			ref := p.parseTypeReference()
			if ref == nil {
				return x
			}
			x = &ast.TypeExpr{Op: op, X: x, Type: ref}
		default:
			return x
		}
	}
}

var additiveOps = map[string]bool{"+": true, "-": true, "|": true, "^": true, "&": true}

func (p *parser) parseAdditive() ast.Expr {
	x := p.parseMultiplicative()
	for p.tok.Kind == token.Op && additiveOps[p.tok.Text] {
		op := p.tok.Text
		p.advance()
		x = &ast.BinaryExpr{Op: op, X: x, Y: p.parseMultiplicative()}
	}
	return x
}

var multiplicativeOps = map[string]bool{"*": true, "/": true, "%": true, "<<": true, ">>": true, "**": true}

func (p *parser) parseMultiplicative() ast.Expr {
	x := p.parseUnary()
	for p.tok.Kind == token.Op && multiplicativeOps[p.tok.Text] {
		op := p.tok.Text
		p.advance()
		x = &ast.BinaryExpr{Op: op, X: x, Y: p.parseUnary()}
	}
	return x
}

func (p *parser) parseUnary() ast.Expr {
	if p.tok.Kind == token.Op {
		switch p.tok.Text {
		case "-", "+", "~", "!":
			start := p.tok
			p.advance()
			return &ast.UnaryExpr{Op: start.Text, X: p.parseUnary(), Pos: pos(start)}
		}
	}
	return p.parsePostfix(p.parsePrimary())
}

func (p *parser) parsePostfix(x ast.Expr) ast.Expr {
	for {
		switch p.tok.Kind {
		case token.Dot:
			p.advance()
			if p.tok.Kind != token.Ident {
				p.unexpected()
				return x
			}
			x = &ast.MemberExpr{X: x, Name: ast.NewIdent(p.tok.Text, pos(p.tok))}
			p.advance()
		case token.LParen:
			p.advance()
			args := p.parseList(token.RParen)
			x = &ast.CallExpr{Fn: x, Args: args, EndPos: p.prevEnd}
		case token.LBrack:
			p.advance()
			args := p.parseList(token.RBrack)
			x = &ast.IndexExpr{X: x, Args: args, EndPos: p.prevEnd}
		default:
			return x
		}
	}
}

// parseList parses comma separated expressions up to and including the
// closing token.
func (p *parser) parseList(closing token.Kind) []ast.Expr {
	var items []ast.Expr
	for p.tok.Kind != closing && p.tok.Kind != token.EOF && p.tok.Kind != token.EOS {
		items = append(items, p.parseExpr())
		if !p.got(token.Comma) {
			break
		}
	}
	p.expect(closing)
	return items
}

func (p *parser) parsePrimary() ast.Expr {
	t := p.tok
	switch t.Kind {
	case token.Ident:
		p.advance()
		return ast.NewIdent(t.Text, pos(t))
	case token.Int:
		p.advance()
		return &ast.Literal{Kind: ast.IntLiteral, Value: t.Text, Pos: pos(t)}
	case token.Float:
		p.advance()
		return &ast.Literal{Kind: ast.FloatLiteral, Value: t.Text, Pos: pos(t)}
	case token.String:
		p.advance()
		return &ast.Literal{Kind: ast.StringLiteral, Value: t.Text, Pos: pos(t)}
	case token.True, token.False:
		p.advance()
		return &ast.Literal{Kind: ast.BoolLiteral, Value: t.Text, Pos: pos(t)}
	case token.Null:
		p.advance()
		return &ast.Literal{Kind: ast.NullLiteral, Value: t.Text, Pos: pos(t)}
	case token.Self:
		p.advance()
		return &ast.SelfExpr{Pos: pos(t)}
	case token.LParen:
		p.advance()
		x := p.parseExpr()
		p.expect(token.RParen)
		return x
	case token.LBrack:
		p.advance()
		items := p.parseList(token.RBrack)
		return &ast.ListExpr{Items: items, Pos: pos(t), EndPos: p.prevEnd}
	case token.LBrace:
		p.advance()
		h := &ast.HashExpr{Pos: pos(t)}
		for p.tok.Kind != token.RBrace && p.tok.Kind != token.EOF && p.tok.Kind != token.EOS {
			h.Keys = append(h.Keys, p.parseExpr())
			if !p.expect(token.Colon) {
				h.Values = append(h.Values, &ast.BadExpr{Pos: pos(p.tok), EndPos: pos(p.tok)})
				break
			}
			h.Values = append(h.Values, p.parseExpr())
			if !p.got(token.Comma) {
				break
			}
		}
		p.expect(token.RBrace)
		h.EndPos = p.prevEnd
		return h
	}

	p.unexpected()
	return &ast.BadExpr{Pos: pos(t), EndPos: pos(t)}
}

func unquote(s string) string {
	if strings.HasPrefix(s, `"""`) && strings.HasSuffix(s, `"""`) && len(s) >= 6 {
		return s[3 : len(s)-3]
	}
	if strings.HasPrefix(s, "'") && len(s) >= 2 {
		s = `"` + strings.ReplaceAll(s[1:len(s)-1], `"`, `\"`) + `"`
	}
	if u, err := strconv.Unquote(s); err == nil {
		return u
	}
	return strings.Trim(s, `"'`)
}
