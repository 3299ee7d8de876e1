package references_test

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/boolsp/pkg/references"
	"github.com/walteh/boolsp/pkg/types"
)

const acme = `types:
  - name: Widget
    namespace: Acme
  - name: IGadget
    namespace: Acme.Parts
    kind: interface
`

func names(tables []*types.Table) []string {
	var out []string
	for _, t := range tables {
		out = append(out, t.Name)
	}
	return out
}

func TestLoad(t *testing.T) {
	tbl, err := references.Load("Acme", []byte(acme))
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())

	w, ok := tbl.Lookup("Acme.Widget")
	require.True(t, ok)
	assert.Equal(t, "class Acme.Widget", w.Describe())
	assert.Equal(t, "Acme", w.Source)

	g, ok := tbl.Lookup("Acme.Parts.IGadget")
	require.True(t, ok)
	assert.Equal(t, types.Interface, g.Kind)
	assert.True(t, tbl.HasNamespace("Acme"))
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []string
	}{
		{name: "unknown field", data: "types:\n  - name: A\n    color: red\n", want: []string{"color"}},
		{name: "bad kinds and missing names", data: "types:\n  - name: A\n    kind: blob\n  - namespace: X\n", want: []string{"blob", "missing name"}},
		{name: "not yaml", data: "types: [", want: []string{"parsing manifest"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := references.Load("bad", []byte(tt.data))
			require.Error(t, err)
			for _, w := range tt.want {
				assert.Contains(t, err.Error(), w)
			}
		})
	}
}

func TestManager_Tables(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/refs/acme.yaml", []byte(acme), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/proj/refs/broken.yaml", []byte("types: ["), 0o644))

	m := references.NewManager(fs, "/proj",
		references.Reference{Name: "Acme", Path: "refs/acme.yaml"},
		references.Reference{Name: "Missing", Path: "refs/missing.yaml"},
		references.Reference{Name: "Broken", Path: "/proj/refs/broken.yaml"},
		references.Reference{Name: "NoManifest"},
	)

	tables, err := m.Tables(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Broken")
	assert.Equal(t, []string{types.BuiltinName, "Acme"}, names(tables))
}

func TestManager_Notifications(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/acme.yaml", []byte(acme), 0o644))

	m := references.NewManager(fs, "/proj")

	calls := 0
	unsubscribe := m.Subscribe(func(context.Context) { calls++ })

	m.Add(ctx, references.Reference{Name: "Acme", Path: "acme.yaml"})
	assert.Equal(t, 1, calls)

	tables, err := m.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{types.BuiltinName, "Acme"}, names(tables))

	// manifest edited on disk
	require.NoError(t, afero.WriteFile(fs, "/proj/acme.yaml", []byte("types:\n  - name: Other\n"), 0o644))
	assert.True(t, m.Refresh(ctx, "/proj/acme.yaml"))
	assert.False(t, m.Refresh(ctx, "/proj/unrelated.yaml"))
	assert.Equal(t, 2, calls)

	tables, err = m.Tables(ctx)
	require.NoError(t, err)
	_, ok := tables[1].Lookup("Other")
	assert.True(t, ok)

	assert.False(t, m.Remove(ctx, "Nope"))
	assert.True(t, m.Remove(ctx, "Acme"))
	assert.Equal(t, 3, calls)

	unsubscribe()
	m.Add(ctx, references.Reference{Name: "Acme", Path: "acme.yaml"})
	assert.Equal(t, 3, calls)
}

func TestManager_Sync(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/acme.yaml", []byte(acme), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/proj/other.yaml", []byte("types:\n  - name: Other\n"), 0o644))

	acmeRef := references.Reference{Name: "Acme", Path: "acme.yaml"}
	m := references.NewManager(fs, "/proj", acmeRef, references.Reference{Name: "Old", Path: "old.yaml"})

	calls := 0
	m.Subscribe(func(context.Context) { calls++ })

	tests := []struct {
		name        string
		refs        []references.Reference
		wantChanged bool
		want        []string
	}{
		{
			name:        "remove and add",
			refs:        []references.Reference{acmeRef, {Name: "Other", Path: "other.yaml"}},
			wantChanged: true,
			want:        []string{"Acme", "Other"},
		},
		{
			name:        "same set",
			refs:        []references.Reference{{Name: "Other", Path: "other.yaml"}, acmeRef},
			wantChanged: false,
			want:        []string{"Acme", "Other"},
		},
		{
			name:        "path changed",
			refs:        []references.Reference{acmeRef, {Name: "Other", Path: "acme.yaml"}},
			wantChanged: true,
			want:        []string{"Acme", "Other"},
		},
		{
			name:        "emptied",
			refs:        nil,
			wantChanged: true,
			want:        nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := calls
			assert.Equal(t, tt.wantChanged, m.Sync(ctx, tt.refs))
			assert.Equal(t, tt.wantChanged, calls > before)

			var got []string
			for _, r := range m.References() {
				got = append(got, r.Name)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	tables, err := m.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{types.BuiltinName}, names(tables))
}

func TestManager_MissingManifestIsUnresolved(t *testing.T) {
	m := references.NewManager(afero.NewMemMapFs(), "/proj", references.Reference{Name: "Ghost", Path: "ghost.yaml"})
	tables, err := m.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{types.BuiltinName}, names(tables))
}
