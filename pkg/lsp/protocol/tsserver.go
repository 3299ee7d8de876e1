package protocol

import (
	"context"
	"io"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"
	"gitlab.com/tozd/go/errors"
)

// Server is the set of requests and notifications a language server
// answers.
type Server interface {
	Initialize(context.Context, *ParamInitialize) (*InitializeResult, error)
	Initialized(context.Context, *InitializedParams) error
	Shutdown(context.Context) error
	Exit(context.Context) error

	DidOpen(context.Context, *DidOpenTextDocumentParams) error
	DidChange(context.Context, *DidChangeTextDocumentParams) error
	DidSave(context.Context, *DidSaveTextDocumentParams) error
	DidClose(context.Context, *DidCloseTextDocumentParams) error
	DidChangeWatchedFiles(context.Context, *DidChangeWatchedFilesParams) error

	Hover(context.Context, *HoverParams) (*Hover, error)
	Definition(context.Context, *DefinitionParams) ([]Location, error)
	SemanticTokensFull(context.Context, *SemanticTokensParams) (*SemanticTokens, error)
	SemanticTokensRange(context.Context, *SemanticTokensRangeParams) (*SemanticTokens, error)
}

func buildServerDispatchMap(server Server) handler.Map {
	return handler.Map{
		"initialize":                        createHandler(server.Initialize),
		"initialized":                       createEmptyResultHandler(server.Initialized),
		"shutdown":                          createEmptyHandler(server.Shutdown),
		"exit":                              createEmptyHandler(server.Exit),
		"$/cancelRequest":                   createEmptyResultHandler(cancelRequest),
		"$/setTrace":                        createEmptyResultHandler(setTrace),
		"textDocument/didOpen":              createEmptyResultHandler(server.DidOpen),
		"textDocument/didChange":            createEmptyResultHandler(server.DidChange),
		"textDocument/didSave":              createEmptyResultHandler(server.DidSave),
		"textDocument/didClose":             createEmptyResultHandler(server.DidClose),
		"textDocument/hover":                createHandler(server.Hover),
		"textDocument/definition":           createHandler(server.Definition),
		"textDocument/semanticTokens/full":  createHandler(server.SemanticTokensFull),
		"textDocument/semanticTokens/range": createHandler(server.SemanticTokensRange),
		"workspace/didChangeWatchedFiles":   createEmptyResultHandler(server.DidChangeWatchedFiles),
	}
}

// Requests run one at a time, so a cancellation always arrives after the
// request it names has finished.
func cancelRequest(_ context.Context, _ *CancelParams) error {
	return nil
}

type SetTraceParams struct {
	Value string `json:"value"`
}

func setTrace(_ context.Context, _ *SetTraceParams) error {
	return nil
}

// ServerInstance is a Server bound to a jrpc2 server. Its Client pushes
// notifications over the same connection.
type ServerInstance struct {
	server *jrpc2.Server
	client *Client
	ctx    context.Context
}

// NewServerInstance builds the jrpc2 server for server. Push is always
// enabled and requests are handled in arrival order. Handlers run with a
// logger that forwards to the editor.
func NewServerInstance(ctx context.Context, server Server, opts *jrpc2.ServerOptions) *ServerInstance {
	if opts == nil {
		opts = &jrpc2.ServerOptions{}
	}
	opts.AllowPush = true
	opts.Concurrency = 1

	inst := &ServerInstance{}
	opts.NewContext = func() context.Context {
		return inst.ctx
	}

	inst.server = jrpc2.NewServer(buildServerDispatchMap(server), opts)
	inst.client = NewClient(inst.server)
	inst.ctx = ApplyServerInstanceToZerolog(ctx, inst.client)

	return inst
}

// Context is the base context of every handler.
func (s *ServerInstance) Context() context.Context {
	return s.ctx
}

func (s *ServerInstance) Client() *Client {
	return s.client
}

// Start begins serving on the LSP framed stream and returns immediately.
func (s *ServerInstance) Start(r io.Reader, w io.WriteCloser) {
	s.server.Start(channel.LSP(r, w))
}

// StartAndWait serves until the connection closes.
func (s *ServerInstance) StartAndWait(r io.Reader, w io.WriteCloser) error {
	s.Start(r, w)
	return s.Wait()
}

func (s *ServerInstance) Wait() error {
	if err := s.server.Wait(); err != nil && !errors.Is(err, io.EOF) && !channel.IsErrClosing(err) {
		return errors.Errorf("serving: %w", err)
	}
	return nil
}

func (s *ServerInstance) Stop() {
	s.server.Stop()
}
