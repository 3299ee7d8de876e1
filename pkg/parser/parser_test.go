package parser_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/boolsp/pkg/ast"
	"github.com/walteh/boolsp/pkg/parser"
)

const formSource = `namespace Demo.App
import System.IO
import Boo.Lang from "Boo.Lang.dll"

class Form1(Form, IDisposable):
    _count as int = 0

    def InitializeComponent():
        x as Button = Button()
        print "hello"
        if _count > 0:
            _count = 1
        else:
            pass

    def Count() as int:
        return _count

enum Color:
    Red
    Green = 2

interface IThing:
    def Do(x as string) as bool
`

func TestParse_Module(t *testing.T) {
	mod, errs, err := parser.Parse(context.Background(), []byte(formSource), "form.boo")
	require.NoError(t, err)
	require.Empty(t, errs)

	require.NotNil(t, mod.Namespace)
	assert.Equal(t, "Demo.App", mod.Namespace.Name)

	require.Len(t, mod.Imports, 2)
	assert.Equal(t, "System.IO", mod.Imports[0].Namespace)
	assert.Equal(t, ast.Position{Line: 2, Column: 8}, mod.Imports[0].NamePos)
	assert.Equal(t, "Boo.Lang.dll", mod.Imports[1].Assembly)

	require.Len(t, mod.Members, 3)

	form, ok := mod.Members[0].(*ast.TypeDefinition)
	require.True(t, ok)
	assert.Equal(t, ast.ClassType, form.Kind)
	assert.Equal(t, "Demo.App.Form1", form.FullName())
	require.Len(t, form.Bases, 2)
	assert.Equal(t, "Form", ast.TypeString(form.Bases[0]))
	require.Len(t, form.Members, 3)

	field, ok := form.Members[0].(*ast.Field)
	require.True(t, ok)
	assert.Equal(t, "_count", field.Name.Name)
	assert.Equal(t, "int", ast.TypeString(field.Type))

	init, ok := form.Members[1].(*ast.Method)
	require.True(t, ok)
	assert.Equal(t, "InitializeComponent", init.Name.Name)
	assert.Same(t, form, init.Owner)
	require.NotNil(t, init.Body)
	require.Len(t, init.Body.Stmts, 3)
	assert.IsType(t, &ast.DeclarationStmt{}, init.Body.Stmts[0])
	assert.IsType(t, &ast.MacroStatement{}, init.Body.Stmts[1])

	ifStmt, ok := init.Body.Stmts[2].(*ast.IfStmt)
	require.True(t, ok)
	require.Len(t, ifStmt.Then.Stmts, 1)
	assert.IsType(t, &ast.Block{}, ifStmt.Else)

	count, ok := form.Members[2].(*ast.Method)
	require.True(t, ok)
	assert.Equal(t, "def Count() as int", count.Signature())

	color, ok := mod.Members[1].(*ast.TypeDefinition)
	require.True(t, ok)
	assert.Equal(t, ast.EnumType, color.Kind)
	assert.Len(t, color.Members, 2)

	thing, ok := mod.Members[2].(*ast.TypeDefinition)
	require.True(t, ok)
	require.Len(t, thing.Members, 1)
	do := thing.Members[0].(*ast.Method)
	assert.Nil(t, do.Body)
	assert.Equal(t, "def Do(x as string) as bool", do.Signature())
}

func TestParse_Blocks(t *testing.T) {
	tests := []struct {
		name      string
		source    string
		members   int
		globals   int
		bodyStmts int
		errs      []string
	}{
		{
			name:      "inline body",
			source:    "def f(): pass\n",
			members:   1,
			bodyStmts: 1,
		},
		{
			name:      "end closes a block",
			source:    "def f():\n  pass\n  end\nx = 1\n",
			members:   1,
			globals:   1,
			bodyStmts: 1,
		},
		{
			name:      "dedent closes a block",
			source:    "def f():\n    a()\n    b()\nprint 1\n",
			members:   1,
			globals:   1,
			bodyStmts: 2,
		},
		{
			name:      "missing indented block",
			source:    "def f():\npass\n",
			members:   1,
			globals:   1,
			bodyStmts: 0,
			errs:      []string{"expected an indented block"},
		},
		{
			name:      "bad return type recovers",
			source:    "def f() as :\n  pass\nclass A:\n  pass\n",
			members:   2,
			bodyStmts: 1,
			errs:      []string{"unexpected token ':'"},
		},
		{
			name:      "unexpected indent",
			source:    "def f():\n  a()\n    b()\n",
			members:   1,
			bodyStmts: 2,
			errs:      []string{"unexpected indent"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod, errs, err := parser.Parse(context.Background(), []byte(tt.source), "test.boo")
			require.NoError(t, err)

			var msgs []string
			for _, e := range errs {
				msgs = append(msgs, e.Message)
			}
			assert.Equal(t, tt.errs, msgs)
			assert.Len(t, mod.Members, tt.members)
			assert.Len(t, mod.Globals, tt.globals)

			require.NotEmpty(t, mod.Members)
			m, ok := mod.Members[0].(*ast.Method)
			require.True(t, ok)
			require.NotNil(t, m.Body)
			assert.Len(t, m.Body.Stmts, tt.bodyStmts)
		})
	}
}

func TestParse_SyntaxErrorPosition(t *testing.T) {
	_, errs, err := parser.Parse(context.Background(), []byte("def f() as :\n  pass\n"), "test.boo")
	require.NoError(t, err)
	require.Len(t, errs, 1)

	assert.Equal(t, 1, errs[0].Line)
	assert.Equal(t, 12, errs[0].Column)
	assert.False(t, errs[0].Lexical)
}

func TestParse_LexicalError(t *testing.T) {
	src := "class A:\n  pass\nclass B:\n\tpass\n"
	mod, errs, err := parser.Parse(context.Background(), []byte(src), "test.boo")
	require.NoError(t, err)
	require.NotEmpty(t, errs)

	assert.True(t, errs[0].Lexical)
	assert.Equal(t, 4, errs[0].Line)
	assert.Equal(t, 1, errs[0].Column)
	assert.Contains(t, errs[0].Message, "spaces")

	require.NotEmpty(t, mod.Members)
	assert.Equal(t, "A", mod.Members[0].(*ast.TypeDefinition).Name.Name)
}

func TestParse_Expressions(t *testing.T) {
	src := "x = a.b(1, 'two')[0] as List[of int]\nok = y isa string and not z in items\n"
	mod, errs, err := parser.Parse(context.Background(), []byte(src), "test.boo")
	require.NoError(t, err)
	require.Empty(t, errs)
	require.Len(t, mod.Globals, 2)

	first := mod.Globals[0].(*ast.ExprStmt).X.(*ast.BinaryExpr)
	assert.Equal(t, "=", first.Op)
	cast, ok := first.Y.(*ast.TypeExpr)
	require.True(t, ok)
	assert.Equal(t, "as", cast.Op)
	assert.Equal(t, "List[of int]", ast.TypeString(cast.Type))
	assert.IsType(t, &ast.IndexExpr{}, cast.X)

	var refs []string
	ast.Inspect(mod, func(n ast.Node) bool {
		if r, ok := n.(*ast.SimpleTypeReference); ok {
			refs = append(refs, r.Name)
		}
		return true
	})
	assert.Equal(t, []string{"List", "int", "string"}, refs)
}
