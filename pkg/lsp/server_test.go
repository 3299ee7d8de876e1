package lsp_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/boolsp/pkg/config"
	"github.com/walteh/boolsp/pkg/lsp"
	"github.com/walteh/boolsp/pkg/lsp/protocol"
	"github.com/walteh/boolsp/pkg/references"
	"github.com/walteh/boolsp/pkg/semtok"
)

const (
	widget = "namespace Demo\nclass Widget:\n  pass\n"
	form   = "namespace Demo\nclass Form:\n  w as Widget\n"

	formURI = protocol.DocumentURI("file:///proj/form.boo")
)

type harness struct {
	t      *testing.T
	ctx    context.Context
	fs     afero.Fs
	server *lsp.Server
	inst   *protocol.ServerInstance
	client *jrpc2.Client

	mu    sync.Mutex
	diags map[protocol.DocumentURI]*protocol.PublishDiagnosticsParams
	logs  []protocol.LogMessageParams
}

func newHarness(t *testing.T, ctx context.Context, files map[string]string, opts ...lsp.Option) *harness {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/proj", 0o755))
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}

	h := &harness{
		t:     t,
		ctx:   ctx,
		fs:    fs,
		diags: make(map[protocol.DocumentURI]*protocol.PublishDiagnosticsParams),
	}

	serverReader, clientWriter := io.Pipe()
	clientReader, serverWriter := io.Pipe()

	h.server = lsp.NewServer(fs, opts...)
	h.inst = h.server.BuildServerInstance(ctx, &jrpc2.ServerOptions{RPCLog: &protocol.RPCLogger{}})
	h.inst.Start(serverReader, serverWriter)

	h.client = jrpc2.NewClient(channel.LSP(clientReader, clientWriter), &jrpc2.ClientOptions{
		OnNotify: h.onNotify,
	})

	t.Cleanup(func() {
		h.client.Close()
		h.inst.Stop()
	})
	return h
}

func (h *harness) onNotify(req *jrpc2.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch req.Method() {
	case "textDocument/publishDiagnostics":
		var params protocol.PublishDiagnosticsParams
		if err := req.UnmarshalParams(&params); err == nil {
			h.diags[params.URI] = &params
		}
	case "window/logMessage":
		var params protocol.LogMessageParams
		if err := req.UnmarshalParams(&params); err == nil {
			h.logs = append(h.logs, params)
		}
	}
}

func (h *harness) published(uri protocol.DocumentURI) (*protocol.PublishDiagnosticsParams, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.diags[uri]
	return p, ok
}

func (h *harness) initialize() *protocol.InitializeResult {
	h.t.Helper()
	var result protocol.InitializeResult
	require.NoError(h.t, h.client.CallResult(h.ctx, "initialize", &protocol.ParamInitialize{
		ProcessID: 1,
		RootURI:   "file:///proj",
	}, &result))
	require.NoError(h.t, h.client.Notify(h.ctx, "initialized", &protocol.InitializedParams{}))
	return &result
}

func (h *harness) open(uri protocol.DocumentURI, text string) {
	h.t.Helper()
	require.NoError(h.t, h.client.Notify(h.ctx, "textDocument/didOpen", &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, LanguageID: "boo", Version: 1, Text: text},
	}))
}

// compiled waits until file has a result compiled from text.
func (h *harness) compiled(file, text string) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		pm := h.server.Project()
		if pm == nil {
			return false
		}
		res, ok := pm.Result(file)
		return ok && res.Snapshot != nil && string(res.Snapshot.Text) == text
	}, 5*time.Second, 10*time.Millisecond)
}

func position(line, char uint32) protocol.Position {
	return protocol.Position{Line: line, Character: char}
}

func TestInitialize_Capabilities(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	h := newHarness(t, ctx, nil, lsp.WithVersion("v1.2.3"))
	result := h.initialize()

	caps := result.Capabilities
	require.NotNil(t, caps.TextDocumentSync)
	assert.True(t, caps.TextDocumentSync.OpenClose)
	assert.Equal(t, protocol.Incremental, caps.TextDocumentSync.Change)
	assert.True(t, caps.HoverProvider)
	assert.True(t, caps.DefinitionProvider)
	require.NotNil(t, caps.SemanticTokensProvider)
	assert.Equal(t, semtok.TokenTypes, caps.SemanticTokensProvider.Legend.TokenTypes)
	assert.Equal(t, semtok.TokenModifiers, caps.SemanticTokensProvider.Legend.TokenModifiers)
	assert.True(t, caps.SemanticTokensProvider.Full)
	assert.True(t, caps.SemanticTokensProvider.Range)
	assert.Equal(t, &protocol.ServerInfo{Name: "boolsp", Version: "v1.2.3"}, result.ServerInfo)

	var again protocol.InitializeResult
	err := h.client.CallResult(ctx, "initialize", &protocol.ParamInitialize{RootURI: "file:///proj"}, &again)
	require.Error(t, err)
}

func TestRequestsBeforeInitialize(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	h := newHarness(t, ctx, nil)

	var out protocol.Hover
	err := h.client.CallResult(ctx, "textDocument/hover", protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: formURI},
		},
	}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server not initialized")
}

func TestHoverAndDefinition(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	h := newHarness(t, ctx, map[string]string{"/proj/widget.boo": widget})
	h.initialize()
	h.open(formURI, form)
	h.compiled("/proj/form.boo", form)

	at := protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: formURI},
		Position:     position(2, 8),
	}

	var hov protocol.Hover
	require.NoError(t, h.client.CallResult(ctx, "textDocument/hover", protocol.HoverParams{TextDocumentPositionParams: at}, &hov))
	assert.Equal(t, protocol.Markdown, hov.Contents.Kind)
	assert.Equal(t, "```boo\nclass Demo.Widget\n```", hov.Contents.Value)
	require.NotNil(t, hov.Range)
	assert.Equal(t, protocol.Range{Start: position(2, 7), End: position(2, 13)}, *hov.Range)

	var locs []protocol.Location
	require.NoError(t, h.client.CallResult(ctx, "textDocument/definition", protocol.DefinitionParams{TextDocumentPositionParams: at}, &locs))
	assert.Equal(t, []protocol.Location{{
		URI:   "file:///proj/widget.boo",
		Range: protocol.Range{Start: position(1, 6), End: position(1, 12)},
	}}, locs)

	// whitespace has neither
	at.Position = position(2, 0)
	var none *protocol.Hover
	require.NoError(t, h.client.CallResult(ctx, "textDocument/hover", protocol.HoverParams{TextDocumentPositionParams: at}, &none))
	assert.Nil(t, none)
}

func TestSemanticTokens(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	h := newHarness(t, ctx, map[string]string{"/proj/widget.boo": widget})
	h.initialize()
	h.open(formURI, form)
	h.compiled("/proj/form.boo", form)

	var full protocol.SemanticTokens
	require.NoError(t, h.client.CallResult(ctx, "textDocument/semanticTokens/full", protocol.SemanticTokensParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: formURI},
	}, &full))
	assert.Equal(t, []uint32{
		0, 0, 9, 0, 0, // namespace
		1, 0, 5, 0, 0, // class
		0, 6, 4, 2, 1, // Form
		1, 4, 2, 0, 0, // as
		0, 3, 6, 2, 0, // Widget
	}, full.Data)

	var ranged protocol.SemanticTokens
	require.NoError(t, h.client.CallResult(ctx, "textDocument/semanticTokens/range", protocol.SemanticTokensRangeParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: formURI},
		Range:        protocol.Range{Start: position(2, 0), End: position(2, 20)},
	}, &ranged))
	assert.Equal(t, []uint32{
		2, 4, 2, 0, 0,
		0, 3, 6, 2, 0,
	}, ranged.Data)
}

func TestSemanticTokens_LexicalWhileStale(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	h := newHarness(t, ctx, nil)
	h.initialize()

	// not a source, so never compiled
	uri := protocol.DocumentURI("file:///proj/notes.txt")
	h.open(uri, "class X:\n  pass # later\n")

	var full protocol.SemanticTokens
	require.NoError(t, h.client.CallResult(ctx, "textDocument/semanticTokens/full", protocol.SemanticTokensParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	}, &full))
	assert.Equal(t, []uint32{
		0, 0, 5, 0, 0, // class
		1, 2, 4, 0, 0, // pass
		0, 5, 7, 1, 0, // # later
	}, full.Data)
}

func TestDiagnostics_DidChange(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	h := newHarness(t, ctx, nil)
	h.initialize()

	text := "class Form:\n  w as Missing\n"
	h.open(formURI, text)

	require.Eventually(t, func() bool {
		p, ok := h.published(formURI)
		return ok && len(p.Diagnostics) == 1
	}, 5*time.Second, 10*time.Millisecond)

	p, _ := h.published(formURI)
	d := p.Diagnostics[0]
	assert.Equal(t, "BCW0011", d.Code)
	assert.Equal(t, protocol.SeverityWarning, d.Severity)
	assert.Equal(t, "boolsp", d.Source)
	assert.Equal(t, protocol.Range{Start: position(1, 7), End: position(1, 14)}, d.Range)
	assert.Equal(t, int32(1), p.Version)

	require.NoError(t, h.client.Notify(ctx, "textDocument/didChange", &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: formURI},
			Version:                2,
		},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{{
			Range: &protocol.Range{Start: position(1, 7), End: position(1, 14)},
			Text:  "Form",
		}},
	}))

	require.Eventually(t, func() bool {
		p, ok := h.published(formURI)
		return ok && len(p.Diagnostics) == 0 && p.Version == 2
	}, 5*time.Second, 10*time.Millisecond)
	h.compiled("/proj/form.boo", "class Form:\n  w as Form\n")
}

func TestDiagnostics_ReferenceManifestChanged(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := config.Default()
	cfg.References = []references.Reference{{Name: "Acme", Path: "refs/acme.yaml"}}

	h := newHarness(t, ctx, nil, lsp.WithConfig(cfg))
	h.initialize()

	uri := protocol.DocumentURI("file:///proj/gadget.boo")
	h.open(uri, "class Gadget:\n  w as Acme.Widget\n")

	require.Eventually(t, func() bool {
		p, ok := h.published(uri)
		return ok && len(p.Diagnostics) == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, afero.WriteFile(h.fs, "/proj/refs/acme.yaml", []byte("types:\n  - name: Widget\n    namespace: Acme\n"), 0o644))
	require.NoError(t, h.client.Notify(ctx, "workspace/didChangeWatchedFiles", &protocol.DidChangeWatchedFilesParams{
		Changes: []protocol.FileEvent{{URI: "file:///proj/refs/acme.yaml", Type: protocol.Created}},
	}))

	require.Eventually(t, func() bool {
		p, ok := h.published(uri)
		return ok && len(p.Diagnostics) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDiagnostics_ConfigReferencesEdited(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	h := newHarness(t, ctx, map[string]string{
		"/proj/boolsp.yaml":    "sources:\n  - \"**/*.boo\"\n",
		"/proj/refs/acme.yaml": "types:\n  - name: Widget\n    namespace: Acme\n",
	})
	h.initialize()

	uri := protocol.DocumentURI("file:///proj/gadget.boo")
	h.open(uri, "class Gadget:\n  w as Acme.Widget\n")

	require.Eventually(t, func() bool {
		p, ok := h.published(uri)
		return ok && len(p.Diagnostics) == 1
	}, 5*time.Second, 10*time.Millisecond)

	configChanged := func(text string) {
		require.NoError(t, afero.WriteFile(h.fs, "/proj/boolsp.yaml", []byte(text), 0o644))
		require.NoError(t, h.client.Notify(ctx, "workspace/didChangeWatchedFiles", &protocol.DidChangeWatchedFilesParams{
			Changes: []protocol.FileEvent{{URI: "file:///proj/boolsp.yaml", Type: protocol.Changed}},
		}))
	}

	configChanged("references:\n  - name: Acme\n    path: refs/acme.yaml\n")
	require.Eventually(t, func() bool {
		p, ok := h.published(uri)
		return ok && len(p.Diagnostics) == 0
	}, 5*time.Second, 10*time.Millisecond)

	configChanged("references: []\n")
	require.Eventually(t, func() bool {
		p, ok := h.published(uri)
		return ok && len(p.Diagnostics) == 1
	}, 5*time.Second, 10*time.Millisecond)

	// an invalid edit keeps the current references
	configChanged("references:\n  - name: Acme\n    path: refs/acme.yaml\n  - path: refs/other.yaml\n")
	assert.Never(t, func() bool {
		p, ok := h.published(uri)
		return ok && len(p.Diagnostics) == 0
	}, 300*time.Millisecond, 10*time.Millisecond)
}

func TestDidClose_FallsBackToDisk(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	h := newHarness(t, ctx, map[string]string{"/proj/form.boo": form, "/proj/widget.boo": widget})
	h.initialize()
	h.compiled("/proj/form.boo", form)

	edited := "namespace Demo\nclass Form:\n  w as Gizmo\n"
	h.open(formURI, edited)
	require.Eventually(t, func() bool {
		p, ok := h.published(formURI)
		return ok && len(p.Diagnostics) == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, h.client.Notify(ctx, "textDocument/didClose", &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: formURI},
	}))
	h.compiled("/proj/form.boo", form)

	require.Eventually(t, func() bool {
		p, ok := h.published(formURI)
		return ok && len(p.Diagnostics) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestLogsAreForwarded(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ctx = zerolog.New(io.Discard).Level(zerolog.InfoLevel).WithContext(ctx)

	h := newHarness(t, ctx, nil)
	h.initialize()

	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		for _, l := range h.logs {
			if l.Message == "initialized" && l.Type == protocol.Info && !l.IsDependency {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
}

func TestShutdownAndExit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	h := newHarness(t, ctx, map[string]string{"/proj/widget.boo": widget})
	h.initialize()
	h.compiled("/proj/widget.boo", widget)

	_, err := h.client.Call(ctx, "shutdown", nil)
	require.NoError(t, err)
	require.NoError(t, h.client.Notify(ctx, "exit", nil))

	done := make(chan struct{})
	go func() {
		_ = h.inst.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("server did not stop after exit")
	}
}
