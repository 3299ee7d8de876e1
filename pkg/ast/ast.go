package ast

import (
	"strings"
)

// Node represents a syntax tree node
type Node interface {
	// Position returns the start and end position of the node. End is
	// exclusive.
	Position() (start, end Position)
}

// Position represents a 1-based position in a source file
type Position struct {
	Line   int
	Column int
}

// Before reports whether p comes strictly before o.
func (p Position) Before(o Position) bool {
	return p.Line < o.Line || (p.Line == o.Line && p.Column < o.Column)
}

// Member is a node that can appear in a module or type body.
type Member interface {
	Node
	memberNode()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// TypeReference is a node naming a type.
type TypeReference interface {
	Node
	typeRefNode()
}

// Module is the root of a single compiled file.
type Module struct {
	File      string
	Namespace *NamespaceDeclaration
	Imports   []*Import
	Members   []Member
	Globals   []Stmt
	EndPos    Position
}

func (n *Module) Position() (start, end Position) {
	return Position{Line: 1, Column: 1}, n.EndPos
}

// Types returns every type definition in the module, nested ones included,
// in source order.
func (n *Module) Types() []*TypeDefinition {
	var out []*TypeDefinition
	Inspect(n, func(node Node) bool {
		if td, ok := node.(*TypeDefinition); ok {
			out = append(out, td)
		}
		return true
	})
	return out
}

// Ident is a name together with its location.
type Ident struct {
	Name string
	Pos  Position
}

func NewIdent(name string, pos Position) *Ident {
	return &Ident{Name: name, Pos: pos}
}

func (n *Ident) Position() (start, end Position) {
	return n.Pos, Position{Line: n.Pos.Line, Column: n.Pos.Column + len(n.Name)}
}

func (*Ident) exprNode() {}

// NamespaceDeclaration is the optional `namespace A.B` header.
type NamespaceDeclaration struct {
	Name   string
	Pos    Position
	EndPos Position
}

func (n *NamespaceDeclaration) Position() (start, end Position) {
	return n.Pos, n.EndPos
}

// Import is an `import A.B [from asm] [as alias]` declaration. NamePos is
// the position of the namespace text.
type Import struct {
	Namespace string
	NamePos   Position
	Assembly  string
	Alias     *Ident
	Pos       Position
	EndPos    Position
}

func (n *Import) Position() (start, end Position) {
	return n.Pos, n.EndPos
}

// NameEnd is the exclusive end of the namespace text.
func (n *Import) NameEnd() Position {
	return Position{Line: n.NamePos.Line, Column: n.NamePos.Column + len(n.Namespace)}
}

// TypeKind distinguishes the flavours of type definition.
type TypeKind int

const (
	ClassType TypeKind = iota
	InterfaceType
	StructType
	EnumType
)

func (k TypeKind) String() string {
	switch k {
	case InterfaceType:
		return "interface"
	case StructType:
		return "struct"
	case EnumType:
		return "enum"
	default:
		return "class"
	}
}

// TypeDefinition is a class, interface, struct or enum.
type TypeDefinition struct {
	Kind      TypeKind
	Name      *Ident
	Modifiers []string
	Bases     []TypeReference
	Members   []Member
	Namespace string
	Outer     *TypeDefinition
	Pos       Position
	EndPos    Position
}

func (n *TypeDefinition) Position() (start, end Position) {
	return n.Pos, n.EndPos
}

// FullName is the namespace-qualified name, nested types joined with dots.
func (n *TypeDefinition) FullName() string {
	parts := []string{n.Name.Name}
	for o := n.Outer; o != nil; o = o.Outer {
		parts = append([]string{o.Name.Name}, parts...)
	}
	if n.Namespace != "" {
		parts = append([]string{n.Namespace}, parts...)
	}
	return strings.Join(parts, ".")
}

func (*TypeDefinition) memberNode() {}

// Field is a `name as Type [= init]` member.
type Field struct {
	Name      *Ident
	Modifiers []string
	Type      TypeReference
	Init      Expr
	Pos       Position
	EndPos    Position
}

func (n *Field) Position() (start, end Position) {
	return n.Pos, n.EndPos
}

func (*Field) memberNode() {}

// EnumValue is a member of an enum body.
type EnumValue struct {
	Name  *Ident
	Value Expr
}

func (n *EnumValue) Position() (start, end Position) {
	start, end = n.Name.Position()
	if n.Value != nil {
		_, end = n.Value.Position()
	}
	return
}

func (*EnumValue) memberNode() {}

// Parameter is a method parameter.
type Parameter struct {
	Name *Ident
	Type TypeReference
}

func (n *Parameter) Position() (start, end Position) {
	start, end = n.Name.Position()
	if n.Type != nil {
		_, end = n.Type.Position()
	}
	return
}

// Method is a `def` member. Body is nil for interface members.
type Method struct {
	Name       *Ident
	Modifiers  []string
	Parameters []*Parameter
	ReturnType TypeReference
	Body       *Block
	Owner      *TypeDefinition
	Pos        Position
	EndPos     Position
}

func (n *Method) Position() (start, end Position) {
	return n.Pos, n.EndPos
}

// Signature renders the method header the way it was declared.
func (n *Method) Signature() string {
	var sb strings.Builder
	sb.WriteString("def ")
	sb.WriteString(n.Name.Name)
	sb.WriteString("(")
	for i, p := range n.Parameters {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Name.Name)
		if p.Type != nil {
			sb.WriteString(" as ")
			sb.WriteString(TypeString(p.Type))
		}
	}
	sb.WriteString(")")
	if n.ReturnType != nil {
		sb.WriteString(" as ")
		sb.WriteString(TypeString(n.ReturnType))
	}
	return sb.String()
}

func (*Method) memberNode() {}

// SimpleTypeReference names a type by a possibly dotted name.
type SimpleTypeReference struct {
	Name string
	Pos  Position
}

func NewSimpleTypeReference(name string, pos Position) *SimpleTypeReference {
	return &SimpleTypeReference{Name: name, Pos: pos}
}

func (n *SimpleTypeReference) Position() (start, end Position) {
	return n.Pos, Position{Line: n.Pos.Line, Column: n.Pos.Column + len(n.Name)}
}

func (*SimpleTypeReference) typeRefNode() {}

// ArrayTypeReference is `(T)`.
type ArrayTypeReference struct {
	Element TypeReference
	Pos     Position
	EndPos  Position
}

func (n *ArrayTypeReference) Position() (start, end Position) {
	return n.Pos, n.EndPos
}

func (*ArrayTypeReference) typeRefNode() {}

// GenericTypeReference is `T[of A, B]`.
type GenericTypeReference struct {
	Base      *SimpleTypeReference
	Arguments []TypeReference
	EndPos    Position
}

func (n *GenericTypeReference) Position() (start, end Position) {
	return n.Base.Pos, n.EndPos
}

func (*GenericTypeReference) typeRefNode() {}

// TypeString renders a type reference in source form.
func TypeString(ref TypeReference) string {
	switch r := ref.(type) {
	case *SimpleTypeReference:
		return r.Name
	case *ArrayTypeReference:
		return "(" + TypeString(r.Element) + ")"
	case *GenericTypeReference:
		args := make([]string, 0, len(r.Arguments))
		for _, a := range r.Arguments {
			args = append(args, TypeString(a))
		}
		return r.Base.Name + "[of " + strings.Join(args, ", ") + "]"
	default:
		return "?"
	}
}
