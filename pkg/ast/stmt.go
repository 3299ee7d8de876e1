package ast

// Block is an indented statement list.
type Block struct {
	Stmts  []Stmt
	Pos    Position
	EndPos Position
}

func (n *Block) Position() (start, end Position) {
	return n.Pos, n.EndPos
}

// ExprStmt is an expression evaluated for its effect, assignments included.
type ExprStmt struct {
	X Expr
}

func (n *ExprStmt) Position() (start, end Position) {
	return n.X.Position()
}

func (*ExprStmt) stmtNode() {}

// DeclarationStmt is a local `name as Type [= init]`.
type DeclarationStmt struct {
	Name *Ident
	Type TypeReference
	Init Expr
}

func (n *DeclarationStmt) Position() (start, end Position) {
	start, end = n.Name.Position()
	if n.Type != nil {
		_, end = n.Type.Position()
	}
	if n.Init != nil {
		_, end = n.Init.Position()
	}
	return
}

func (*DeclarationStmt) stmtNode() {}

type ReturnStmt struct {
	Result Expr
	Pos    Position
	EndPos Position
}

func (n *ReturnStmt) Position() (start, end Position) {
	return n.Pos, n.EndPos
}

func (*ReturnStmt) stmtNode() {}

type PassStmt struct {
	Pos Position
}

func (n *PassStmt) Position() (start, end Position) {
	return n.Pos, Position{Line: n.Pos.Line, Column: n.Pos.Column + len("pass")}
}

func (*PassStmt) stmtNode() {}

// IfStmt covers if, unless and elif chains. Else is either a *Block or a
// nested *IfStmt.
type IfStmt struct {
	Unless bool
	Cond   Expr
	Then   *Block
	Else   Stmt
	Pos    Position
	EndPos Position
}

func (n *IfStmt) Position() (start, end Position) {
	return n.Pos, n.EndPos
}

func (*IfStmt) stmtNode() {}
func (*Block) stmtNode()  {}

type WhileStmt struct {
	Cond   Expr
	Body   *Block
	Pos    Position
	EndPos Position
}

func (n *WhileStmt) Position() (start, end Position) {
	return n.Pos, n.EndPos
}

func (*WhileStmt) stmtNode() {}

// ForStmt is `for a, b in iterable:`.
type ForStmt struct {
	Vars     []*DeclarationStmt
	Iterable Expr
	Body     *Block
	Pos      Position
	EndPos   Position
}

func (n *ForStmt) Position() (start, end Position) {
	return n.Pos, n.EndPos
}

func (*ForStmt) stmtNode() {}

// MacroStatement is a statement introduced by a bare name followed by
// arguments or a block, like `print "x"` or `using file:`.
type MacroStatement struct {
	Name      *Ident
	Arguments []Expr
	Body      *Block
	EndPos    Position
}

func (n *MacroStatement) Position() (start, end Position) {
	return n.Name.Pos, n.EndPos
}

func (*MacroStatement) stmtNode()   {}
func (*MacroStatement) memberNode() {}
