package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/boolsp/pkg/ast"
	"github.com/walteh/boolsp/pkg/types"
)

func TestRegistry_Resolve(t *testing.T) {
	ext := types.NewTable("Acme.Widgets",
		&types.Type{Name: "Button", Namespace: "Acme.Widgets", Kind: types.Class},
	)
	reg := types.NewRegistry(types.Builtin(), ext)

	local := &types.Type{Name: "Form1", Namespace: "Demo", Kind: types.Class, Source: "form.boo"}
	_, err := reg.Declare(local)
	require.NoError(t, err)

	tests := []struct {
		name     string
		ref      string
		scopes   []string
		want     string
		wantNS   string
		resolved bool
	}{
		{name: "primitive", ref: "int", want: "struct System.Int32", resolved: true},
		{name: "qualified builtin", ref: "System.IO.File", want: "class System.IO.File", resolved: true},
		{name: "import scope", ref: "Button", scopes: []string{"System", "Acme.Widgets"}, want: "class Acme.Widgets.Button", wantNS: "Acme.Widgets", resolved: true},
		{name: "own namespace", ref: "Form1", scopes: []string{"Demo"}, want: "class Demo.Form1", wantNS: "Demo", resolved: true},
		{name: "unknown", ref: "Nope", scopes: []string{"System"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ns, ok := reg.Resolve(tt.ref, tt.scopes)
			assert.Equal(t, tt.resolved, ok)
			if !tt.resolved {
				assert.True(t, got.IsError())
				return
			}
			assert.Equal(t, tt.want, got.Describe())
			assert.Equal(t, tt.wantNS, ns)
		})
	}
}

func TestRegistry_DeclareDuplicate(t *testing.T) {
	reg := types.NewRegistry()
	first := &types.Type{Name: "A", Namespace: "N"}

	_, err := reg.Declare(first)
	require.NoError(t, err)

	prev, err := reg.Declare(&types.Type{Name: "A", Namespace: "N"})
	require.ErrorIs(t, err, types.ErrDuplicateType)
	assert.Same(t, first, prev)
	assert.True(t, reg.HasNamespace("N"))
}

func TestTable_Namespaces(t *testing.T) {
	tbl := types.Builtin()
	assert.Equal(t, types.BuiltinName, tbl.Name)
	assert.True(t, tbl.HasNamespace("System"))
	assert.True(t, tbl.HasNamespace("System.Collections.Generic"))
	assert.False(t, tbl.HasNamespace("Acme"))
	assert.Equal(t, tbl.Len(), len(tbl.Types()))
}

func TestFromDefinition(t *testing.T) {
	outer := &ast.TypeDefinition{Kind: ast.ClassType, Name: ast.NewIdent("Outer", ast.Position{Line: 1, Column: 7}), Namespace: "N"}
	inner := &ast.TypeDefinition{Kind: ast.EnumType, Name: ast.NewIdent("Inner", ast.Position{Line: 2, Column: 10}), Namespace: "N", Outer: outer}

	got := types.FromDefinition("a.boo", inner)
	assert.Equal(t, "N.Outer.Inner", got.FullName())
	assert.Equal(t, "enum N.Outer.Inner", got.Describe())
	assert.Equal(t, "a.boo", got.Source)
	assert.Same(t, inner, got.Decl)
}
