package check_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/boolsp/cmd/boolsp/check"
	"github.com/walteh/boolsp/pkg/diagnostic"
)

func newFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, text := range files {
		require.NoError(t, afero.WriteFile(fsys, name, []byte(text), 0o644))
	}
	return fsys
}

func TestRun(t *testing.T) {
	tests := []struct {
		name      string
		files     map[string]string
		format    string
		wantErr   error
		contains  []string
		wantEmpty bool
	}{
		{
			name: "clean project",
			files: map[string]string{
				"/proj/widget.boo": "namespace Demo\nclass Widget:\n  pass\n",
				"/proj/form.boo":   "namespace Demo\nclass Form:\n  w as Widget\n",
			},
			wantEmpty: true,
		},
		{
			name: "unresolved type is a warning",
			files: map[string]string{
				"/proj/form.boo": "class Form:\n  w as Missing\n",
			},
			contains: []string{"/proj/form.boo:2:8: warning " + diagnostic.CodeUnresolvedType},
		},
		{
			name: "mixed indentation fails the check",
			files: map[string]string{
				"/proj/a.boo": "class A:\n  pass\n\tx = 1\n",
				"/proj/b.boo": "class B:\n  pass\n",
			},
			wantErr:  check.ErrDiagnostics,
			contains: []string{"/proj/a.boo:", "error " + diagnostic.CodeLexical},
		},
		{
			name: "excluded by config",
			files: map[string]string{
				"/proj/boolsp.yaml":    "exclude:\n  - vendor/**\n",
				"/proj/vendor/bad.boo": "class A:\n  pass\n\tx = 1\n",
				"/proj/src/widget.boo": "class Widget:\n  pass\n",
			},
			wantEmpty: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &check.Handler{
				Fs:      newFs(t, tt.files),
				Dir:     "/proj",
				Format:  tt.format,
				NoColor: true,
			}

			var out bytes.Buffer
			err := h.Run(context.Background(), &out)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			if tt.wantEmpty {
				assert.Empty(t, out.String())
			}
			for _, s := range tt.contains {
				assert.Contains(t, out.String(), s)
			}
		})
	}
}

func TestRun_JSON(t *testing.T) {
	h := &check.Handler{
		Fs: newFs(t, map[string]string{
			"/proj/form.boo": "class Form:\n  w as Missing\n",
		}),
		Dir:    "/proj",
		Format: "json",
	}

	var out bytes.Buffer
	require.NoError(t, h.Run(context.Background(), &out))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, diagnostic.CodeUnresolvedType, got[0]["code"])
}

func TestRun_UnknownFormat(t *testing.T) {
	h := &check.Handler{Fs: afero.NewMemMapFs(), Dir: "/proj", Format: "xml"}
	err := h.Run(context.Background(), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown format "xml"`)
}
