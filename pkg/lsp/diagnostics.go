package lsp

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/walteh/boolsp/pkg/diagnostic"
	"github.com/walteh/boolsp/pkg/lsp/protocol"
	"github.com/walteh/boolsp/pkg/workspace"
)

// publisher is the diagnostic.Sink of the language server. It collects the
// marker changes of a file and publishes the complete set on Flush, which is
// the only shape textDocument/publishDiagnostics accepts.
type publisher struct {
	client *protocol.Client

	mu      sync.Mutex
	markers map[string]map[diagnostic.MarkerKey]diagnostic.Marker
}

var _ diagnostic.Sink = (*publisher)(nil)

func newPublisher(client *protocol.Client) *publisher {
	return &publisher{
		client:  client,
		markers: make(map[string]map[diagnostic.MarkerKey]diagnostic.Marker),
	}
}

func (p *publisher) Add(_ context.Context, m diagnostic.Marker) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.markers[m.File] == nil {
		p.markers[m.File] = make(map[diagnostic.MarkerKey]diagnostic.Marker)
	}
	p.markers[m.File][m.MarkerKey] = m
}

func (p *publisher) Remove(_ context.Context, m diagnostic.Marker) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.markers[m.File], m.MarkerKey)
	if len(p.markers[m.File]) == 0 {
		delete(p.markers, m.File)
	}
}

func (p *publisher) Flush(ctx context.Context, file string, version int32) {
	params := p.params(ctx, file, version)
	if p.client == nil {
		return
	}
	if err := p.client.PublishDiagnostics(ctx, params); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("file", file).Msg("publishing diagnostics")
	}
}

// params builds the notification for file. version is the buffer version the
// markers were computed from, never the buffer's current one.
func (p *publisher) params(ctx context.Context, file string, version int32) *protocol.PublishDiagnosticsParams {
	p.mu.Lock()
	markers := make([]diagnostic.Marker, 0, len(p.markers[file]))
	for _, m := range p.markers[file] {
		markers = append(markers, m)
	}
	p.mu.Unlock()

	slices.SortFunc(markers, func(a, b diagnostic.Marker) int {
		if a.Line != b.Line {
			return a.Line - b.Line
		}
		return a.Column - b.Column
	})

	params := &protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentURI(workspace.URI(file)),
		Version:     version,
		Diagnostics: make([]protocol.Diagnostic, 0, len(markers)),
	}

	for _, m := range markers {
		r, err := markerRange(m)
		if err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Str("code", m.Code).Msg("dropping marker outside the document")
			continue
		}
		params.Diagnostics = append(params.Diagnostics, protocol.Diagnostic{
			Range:    r,
			Severity: protocol.DiagnosticSeverity(diagnostic.LSPSeverity(m.Severity)),
			Code:     m.Code,
			Source:   serverName,
			Message:  m.Message,
		})
	}
	return params
}
