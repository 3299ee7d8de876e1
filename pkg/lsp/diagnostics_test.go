package lsp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/boolsp/pkg/diagnostic"
	"github.com/walteh/boolsp/pkg/lsp/protocol"
)

func TestPublisher_Params(t *testing.T) {
	ctx := context.Background()
	p := newPublisher(nil)

	later := diagnostic.MarkerOf(diagnostic.New(diagnostic.CodeUnresolvedType, "/proj/a.boo", 3, 9, 6, "unknown type 'Widget'"))
	first := diagnostic.MarkerOf(diagnostic.New(diagnostic.CodeSyntax, "/proj/a.boo", 1, 5, 0, "unexpected token"))
	p.Add(ctx, later)
	p.Add(ctx, first)
	p.Flush(ctx, "/proj/a.boo", 4)

	tests := []struct {
		name    string
		version int32
	}{
		{name: "compiled buffer", version: 4},
		{name: "disk text", version: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := p.params(ctx, "/proj/a.boo", tt.version)
			assert.Equal(t, protocol.DocumentURI("file:///proj/a.boo"), params.URI)
			assert.Equal(t, tt.version, params.Version)

			require.Len(t, params.Diagnostics, 2)
			assert.Equal(t, diagnostic.CodeSyntax, params.Diagnostics[0].Code)
			assert.Equal(t, protocol.Range{Start: protocol.Position{Line: 0, Character: 4}, End: protocol.Position{Line: 0, Character: 5}}, params.Diagnostics[0].Range)
			assert.Equal(t, protocol.SeverityWarning, params.Diagnostics[1].Severity)
		})
	}

	p.Remove(ctx, first)
	p.Remove(ctx, later)
	assert.Empty(t, p.params(ctx, "/proj/a.boo", 5).Diagnostics)
}
