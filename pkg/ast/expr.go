package ast

// LiteralKind classifies a Literal.
type LiteralKind int

const (
	IntLiteral LiteralKind = iota
	FloatLiteral
	StringLiteral
	BoolLiteral
	NullLiteral
)

type Literal struct {
	Kind  LiteralKind
	Value string
	Pos   Position
}

func (n *Literal) Position() (start, end Position) {
	return n.Pos, Position{Line: n.Pos.Line, Column: n.Pos.Column + len(n.Value)}
}

func (*Literal) exprNode() {}

type SelfExpr struct {
	Pos Position
}

func (n *SelfExpr) Position() (start, end Position) {
	return n.Pos, Position{Line: n.Pos.Line, Column: n.Pos.Column + len("self")}
}

func (*SelfExpr) exprNode() {}

// MemberExpr is `X.Name`.
type MemberExpr struct {
	X    Expr
	Name *Ident
}

func (n *MemberExpr) Position() (start, end Position) {
	start, _ = n.X.Position()
	_, end = n.Name.Position()
	return
}

func (*MemberExpr) exprNode() {}

type CallExpr struct {
	Fn     Expr
	Args   []Expr
	EndPos Position
}

func (n *CallExpr) Position() (start, end Position) {
	start, _ = n.Fn.Position()
	return start, n.EndPos
}

func (*CallExpr) exprNode() {}

// IndexExpr is `X[a, b]`.
type IndexExpr struct {
	X      Expr
	Args   []Expr
	EndPos Position
}

func (n *IndexExpr) Position() (start, end Position) {
	start, _ = n.X.Position()
	return start, n.EndPos
}

func (*IndexExpr) exprNode() {}

// BinaryExpr includes assignments, whose Op is "=" or a compound operator.
type BinaryExpr struct {
	Op string
	X  Expr
	Y  Expr
}

func (n *BinaryExpr) Position() (start, end Position) {
	start, _ = n.X.Position()
	_, end = n.Y.Position()
	return
}

func (*BinaryExpr) exprNode() {}

type UnaryExpr struct {
	Op  string
	X   Expr
	Pos Position
}

func (n *UnaryExpr) Position() (start, end Position) {
	_, end = n.X.Position()
	return n.Pos, end
}

func (*UnaryExpr) exprNode() {}

// TypeExpr is `X as T` (cast) or `X isa T` (type test).
type TypeExpr struct {
	Op   string
	X    Expr
	Type TypeReference
}

func (n *TypeExpr) Position() (start, end Position) {
	start, _ = n.X.Position()
	_, end = n.Type.Position()
	return
}

func (*TypeExpr) exprNode() {}

// ListExpr is `[a, b]`.
type ListExpr struct {
	Items  []Expr
	Pos    Position
	EndPos Position
}

func (n *ListExpr) Position() (start, end Position) {
	return n.Pos, n.EndPos
}

func (*ListExpr) exprNode() {}

// HashExpr is `{k: v}`.
type HashExpr struct {
	Keys   []Expr
	Values []Expr
	Pos    Position
	EndPos Position
}

func (n *HashExpr) Position() (start, end Position) {
	return n.Pos, n.EndPos
}

func (*HashExpr) exprNode() {}

// BadExpr stands in for an expression that failed to parse.
type BadExpr struct {
	Pos    Position
	EndPos Position
}

func (n *BadExpr) Position() (start, end Position) {
	return n.Pos, n.EndPos
}

func (*BadExpr) exprNode() {}
