package ast

// Inspect traverses the tree rooted at node in depth-first source order. It
// calls f(node) and, if f returns true, visits the children of node.
func Inspect(node Node, f func(Node) bool) {
	if isNil(node) || !f(node) {
		return
	}

	switch n := node.(type) {
	case *Module:
		if n.Namespace != nil {
			Inspect(n.Namespace, f)
		}
		for _, imp := range n.Imports {
			Inspect(imp, f)
		}
		for _, m := range n.Members {
			Inspect(m, f)
		}
		for _, s := range n.Globals {
			Inspect(s, f)
		}
	case *Import:
		if n.Alias != nil {
			Inspect(n.Alias, f)
		}
	case *TypeDefinition:
		Inspect(n.Name, f)
		for _, b := range n.Bases {
			Inspect(b, f)
		}
		for _, m := range n.Members {
			Inspect(m, f)
		}
	case *Field:
		Inspect(n.Name, f)
		inspectOpt(n.Type, f)
		inspectOpt(n.Init, f)
	case *EnumValue:
		Inspect(n.Name, f)
		inspectOpt(n.Value, f)
	case *Method:
		Inspect(n.Name, f)
		for _, p := range n.Parameters {
			Inspect(p, f)
		}
		inspectOpt(n.ReturnType, f)
		if n.Body != nil {
			Inspect(n.Body, f)
		}
	case *Parameter:
		Inspect(n.Name, f)
		inspectOpt(n.Type, f)
	case *ArrayTypeReference:
		Inspect(n.Element, f)
	case *GenericTypeReference:
		Inspect(n.Base, f)
		for _, a := range n.Arguments {
			Inspect(a, f)
		}
	case *Block:
		for _, s := range n.Stmts {
			Inspect(s, f)
		}
	case *ExprStmt:
		Inspect(n.X, f)
	case *DeclarationStmt:
		Inspect(n.Name, f)
		inspectOpt(n.Type, f)
		inspectOpt(n.Init, f)
	case *ReturnStmt:
		inspectOpt(n.Result, f)
	case *IfStmt:
		Inspect(n.Cond, f)
		Inspect(n.Then, f)
		inspectOpt(n.Else, f)
	case *WhileStmt:
		Inspect(n.Cond, f)
		Inspect(n.Body, f)
	case *ForStmt:
		for _, v := range n.Vars {
			Inspect(v, f)
		}
		Inspect(n.Iterable, f)
		Inspect(n.Body, f)
	case *MacroStatement:
		Inspect(n.Name, f)
		for _, a := range n.Arguments {
			Inspect(a, f)
		}
		if n.Body != nil {
			Inspect(n.Body, f)
		}
	case *MemberExpr:
		Inspect(n.X, f)
		Inspect(n.Name, f)
	case *CallExpr:
		Inspect(n.Fn, f)
		for _, a := range n.Args {
			Inspect(a, f)
		}
	case *IndexExpr:
		Inspect(n.X, f)
		for _, a := range n.Args {
			Inspect(a, f)
		}
	case *BinaryExpr:
		Inspect(n.X, f)
		Inspect(n.Y, f)
	case *UnaryExpr:
		Inspect(n.X, f)
	case *TypeExpr:
		Inspect(n.X, f)
		Inspect(n.Type, f)
	case *ListExpr:
		for _, it := range n.Items {
			Inspect(it, f)
		}
	case *HashExpr:
		for i := range n.Keys {
			Inspect(n.Keys[i], f)
			Inspect(n.Values[i], f)
		}
	}
}

func inspectOpt(node Node, f func(Node) bool) {
	if !isNil(node) {
		Inspect(node, f)
	}
}

// isNil catches typed nils stored in interface fields.
func isNil(node Node) bool {
	if node == nil {
		return true
	}
	switch n := node.(type) {
	case *Block:
		return n == nil
	case *IfStmt:
		return n == nil
	case *SimpleTypeReference:
		return n == nil
	case *Ident:
		return n == nil
	}
	return false
}

// EnclosingMethod returns the method whose body contains pos, or nil.
func EnclosingMethod(m *Module, pos Position) *Method {
	var found *Method
	Inspect(m, func(node Node) bool {
		start, end := node.Position()
		if pos.Before(start) || !pos.Before(end) {
			if _, ok := node.(*Module); !ok {
				return false
			}
		}
		if meth, ok := node.(*Method); ok {
			found = meth
		}
		return true
	})
	return found
}
