// Package lsp serves the boo language over the Language Server Protocol.
package lsp

import (
	"bytes"
	"context"
	"path"
	"slices"
	"sync"

	"github.com/creachadair/jrpc2"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/boolsp/pkg/ast"
	"github.com/walteh/boolsp/pkg/compiler"
	"github.com/walteh/boolsp/pkg/config"
	"github.com/walteh/boolsp/pkg/diagnostic"
	"github.com/walteh/boolsp/pkg/hover"
	"github.com/walteh/boolsp/pkg/lsp/protocol"
	"github.com/walteh/boolsp/pkg/position"
	"github.com/walteh/boolsp/pkg/project"
	"github.com/walteh/boolsp/pkg/references"
	"github.com/walteh/boolsp/pkg/semtok"
	"github.com/walteh/boolsp/pkg/workspace"
)

const serverName = "boolsp"

var _ protocol.Server = (*Server)(nil)

// Server represents an LSP server instance
type Server struct {
	id       string
	version  string
	fs       afero.Fs
	cfg      *config.Config
	compiler compiler.Compiler

	// set by BuildServerInstance
	ctx    context.Context
	client *protocol.Client
	stop   func()

	mu          sync.Mutex
	initialized bool
	shutdown    bool
	cancelRun   context.CancelFunc
	runDone     chan struct{}
	unsubscribe func()

	root      string
	workspace *workspace.Workspace
	refs      *references.Manager
	project   *project.Manager
	tracker   *diagnostic.Tracker
}

type Option func(*Server)

// WithConfig fixes the configuration instead of discovering it under the
// workspace root.
func WithConfig(cfg *config.Config) Option {
	return func(s *Server) { s.cfg = cfg }
}

func WithCompiler(c compiler.Compiler) Option {
	return func(s *Server) { s.compiler = c }
}

func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

func NewServer(fsys afero.Fs, opts ...Option) *Server {
	s := &Server{
		id:       xid.New().String(),
		fs:       fsys,
		compiler: compiler.NewPipeline(),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuildServerInstance binds the server to a jrpc2 server.
func (s *Server) BuildServerInstance(ctx context.Context, opts *jrpc2.ServerOptions) *protocol.ServerInstance {
	inst := protocol.NewServerInstance(ctx, s, opts)
	s.ctx = inst.Context()
	s.client = inst.Client()
	s.stop = inst.Stop
	return inst
}

// Project is nil until the server is initialized.
func (s *Server) Project() *project.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project
}

func (s *Server) Initialize(ctx context.Context, params *protocol.ParamInitialize) (*protocol.InitializeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil, protocol.InvalidRequest
	}

	root := rootOf(params)
	cfg := s.cfg
	if cfg == nil {
		found, file, err := config.Find(s.fs, root)
		if err != nil {
			return nil, errors.Errorf("loading configuration: %w", err)
		}
		cfg = found
		if file != "" {
			zerolog.Ctx(ctx).Info().Str("config", file).Msg("using configuration")
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("invalid configuration: %w", err)
	}

	s.root = root
	s.workspace = workspace.New(s.fs, root, workspace.WithSources(cfg.Sources...), workspace.WithExclude(cfg.Exclude...))
	s.refs = references.NewManager(s.fs, root, cfg.References...)
	s.tracker = diagnostic.NewTracker(newPublisher(s.client))
	s.project = project.NewManager(s.workspace, s.compiler,
		project.WithReferences(s.refs),
		project.WithIndent(s.workspace),
		project.WithPolicy(cfg.Policy()),
		project.WithCompileOptions(cfg.CompileOptions()),
		project.WithIdleInterval(cfg.Idle()),
		project.WithListener(project.TrackDiagnostics(s.tracker)),
	)
	s.unsubscribe = s.refs.Subscribe(func(context.Context) {
		s.project.MarkReferencesChanged()
		s.project.Trigger()
	})
	s.initialized = true

	zerolog.Ctx(ctx).Info().Str("root", root).Str("server_id", s.id).Msg("initialized")

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.Incremental,
				Save:      &protocol.SaveOptions{IncludeText: false},
			},
			HoverProvider:      true,
			DefinitionProvider: true,
			SemanticTokensProvider: &protocol.SemanticTokensOptions{
				Legend: protocol.SemanticTokensLegend{
					TokenTypes:     semtok.TokenTypes,
					TokenModifiers: semtok.TokenModifiers,
				},
				Range: true,
				Full:  true,
			},
		},
		ServerInfo: &protocol.ServerInfo{Name: serverName, Version: s.version},
	}, nil
}

func rootOf(params *protocol.ParamInitialize) string {
	switch {
	case params.RootURI != "":
		return workspace.NormalizeURI(string(params.RootURI))
	case len(params.WorkspaceFolders) > 0:
		return workspace.NormalizeURI(string(params.WorkspaceFolders[0].URI))
	case params.RootPath != "":
		return path.Clean(params.RootPath)
	}
	return "/"
}

// session returns the project state, or an error before initialize.
func (s *Server) session() (*workspace.Workspace, *project.Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil, nil, protocol.ServerNotInitialized
	}
	return s.workspace, s.project, nil
}

func (s *Server) Initialized(ctx context.Context, _ *protocol.InitializedParams) error {
	ws, pm, err := s.session()
	if err != nil {
		return err
	}

	if err := pm.LoadWorkspace(ctx, ws); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("loading workspace")
	}

	runCtx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.cancelRun, s.runDone = cancel, done
	s.mu.Unlock()

	go func() {
		defer close(done)
		_ = pm.Run(runCtx)
	}()
	pm.Trigger()

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	cancel, done, unsubscribe := s.cancelRun, s.runDone, s.unsubscribe
	s.shutdown = true
	s.cancelRun, s.unsubscribe = nil, nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
		<-done
	}

	zerolog.Ctx(ctx).Info().Msg("shut down")
	return nil
}

// Exit stops the connection. It returns before the stop completes since the
// stop waits for this handler.
func (s *Server) Exit(ctx context.Context) error {
	if err := s.Shutdown(ctx); err != nil {
		return err
	}
	if s.stop != nil {
		go s.stop()
	}
	return nil
}

func (s *Server) touch(pm *project.Manager, file string) {
	pm.Track(file)
	pm.MarkDirty(file)
	pm.Trigger()
}

func (s *Server) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	ws, pm, err := s.session()
	if err != nil {
		return err
	}

	doc := params.TextDocument
	file := ws.Open(string(doc.URI), doc.Version, doc.Text)
	if !ws.IsSource(file) {
		zerolog.Ctx(ctx).Debug().Str("file", file).Msg("opened file is not a source")
		return nil
	}
	s.touch(pm, file)
	return nil
}

func (s *Server) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	ws, pm, err := s.session()
	if err != nil {
		return err
	}

	edits := make([]workspace.Edit, 0, len(params.ContentChanges))
	for _, c := range params.ContentChanges {
		if c.Range == nil {
			edits = append(edits, workspace.Edit{Full: true, Text: c.Text})
			continue
		}
		edits = append(edits, workspace.Edit{Range: fromRange(*c.Range), Text: c.Text})
	}

	file, err := ws.Apply(string(params.TextDocument.URI), params.TextDocument.Version, edits)
	if err != nil {
		return errors.Errorf("changing document: %w", err)
	}
	if ws.IsSource(file) {
		s.touch(pm, file)
	}
	return nil
}

// reloadConfig re-reads the configuration when file is a configuration file
// of the root and applies its reference list. It reports whether file was
// one. A fixed configuration is never reloaded.
func (s *Server) reloadConfig(ctx context.Context, file string) bool {
	if s.cfg != nil || path.Dir(file) != s.root || !slices.Contains(config.FileNames, path.Base(file)) {
		return false
	}

	logger := zerolog.Ctx(ctx)
	cfg, used, err := config.Find(s.fs, s.root)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		logger.Warn().Err(err).Str("config", file).Msg("ignoring configuration change")
		return true
	}

	if s.refs.Sync(ctx, cfg.References) {
		logger.Info().Str("config", used).Int("references", len(cfg.References)).Msg("references reloaded")
	}
	return true
}

func (s *Server) DidSave(ctx context.Context, params *protocol.DidSaveTextDocumentParams) error {
	ws, pm, err := s.session()
	if err != nil {
		return err
	}

	file := ws.Path(string(params.TextDocument.URI))
	if s.reloadConfig(ctx, file) || s.refs.Refresh(ctx, file) {
		return nil
	}
	if ws.IsSource(file) {
		s.touch(pm, file)
	}
	return nil
}

func (s *Server) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	ws, pm, err := s.session()
	if err != nil {
		return err
	}

	file := ws.Close(string(params.TextDocument.URI))
	if !ws.IsSource(file) {
		return nil
	}

	exists, err := afero.Exists(ws.Fs(), file)
	if err != nil {
		return errors.Errorf("checking %s: %w", file, err)
	}
	if exists {
		s.touch(pm, file)
		return nil
	}
	pm.Untrack(ctx, file)
	pm.Trigger()
	return nil
}

func (s *Server) DidChangeWatchedFiles(ctx context.Context, params *protocol.DidChangeWatchedFilesParams) error {
	ws, pm, err := s.session()
	if err != nil {
		return err
	}

	for _, change := range params.Changes {
		file := ws.Path(string(change.URI))
		if s.reloadConfig(ctx, file) || s.refs.Refresh(ctx, file) {
			continue
		}
		if !ws.IsSource(file) {
			continue
		}
		if change.Type == protocol.Deleted {
			if _, open := ws.Document(file); !open {
				pm.Untrack(ctx, file)
				continue
			}
		}
		pm.Track(file)
		pm.MarkDirty(file)
	}
	pm.Trigger()
	return nil
}

// result returns the published result of the document at uri.
func (s *Server) result(ctx context.Context, uri protocol.DocumentURI) (*project.Result, error) {
	ws, pm, err := s.session()
	if err != nil {
		return nil, err
	}
	file := ws.Path(string(uri))
	res, ok := pm.Result(file)
	if !ok {
		zerolog.Ctx(ctx).Debug().Str("file", file).Msg("no compile result yet")
		return nil, nil
	}
	return res, nil
}

func (s *Server) Hover(ctx context.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	res, err := s.result(ctx, params.TextDocument.URI)
	if err != nil || res == nil {
		return nil, err
	}

	line, col := point(params.Position)
	info := hover.ForPoint(ctx, res.Index, line, col)
	if info == nil {
		return nil, nil
	}

	out := &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.Markdown, Value: info.Markdown()},
	}
	if r, err := toRange(info.Span); err == nil {
		out.Range = &r
	}
	return out, nil
}

func (s *Server) Definition(ctx context.Context, params *protocol.DefinitionParams) ([]protocol.Location, error) {
	res, err := s.result(ctx, params.TextDocument.URI)
	if err != nil || res == nil {
		return nil, err
	}

	line, col := point(params.Position)
	entry, ok := res.Index.NodeAt(line, col)
	if !ok {
		return nil, nil
	}

	var def *ast.TypeDefinition
	file := res.File
	switch n := entry.Node.(type) {
	case *ast.TypeDefinition:
		def = n
	case *ast.SimpleTypeReference:
		t, err := res.Context.Resolve(n)
		if err != nil || t.IsError() || t.Decl == nil {
			return nil, nil
		}
		def, file = t.Decl, t.Source
	default:
		return nil, nil
	}

	r, err := toRange(position.SpanOfNode(def.Name))
	if err != nil {
		return nil, errors.Errorf("locating %s: %w", def.Name.Name, err)
	}
	return []protocol.Location{{URI: protocol.DocumentURI(workspace.URI(file)), Range: r}}, nil
}

func (s *Server) SemanticTokensFull(ctx context.Context, params *protocol.SemanticTokensParams) (*protocol.SemanticTokens, error) {
	return s.semanticTokens(ctx, params.TextDocument.URI, 1, 0)
}

func (s *Server) SemanticTokensRange(ctx context.Context, params *protocol.SemanticTokensRangeParams) (*protocol.SemanticTokens, error) {
	return s.semanticTokens(ctx, params.TextDocument.URI, int(params.Range.Start.Line)+1, int(params.Range.End.Line)+1)
}

// semanticTokens classifies the current text. Index tokens are merged in
// only while the published result was compiled from that same text.
func (s *Server) semanticTokens(ctx context.Context, uri protocol.DocumentURI, startLine, endLine int) (*protocol.SemanticTokens, error) {
	ws, pm, err := s.session()
	if err != nil {
		return nil, err
	}
	file := ws.Path(string(uri))

	snap, err := ws.Snapshot(ctx, file)
	if err != nil {
		return nil, errors.Errorf("reading %s: %w", file, err)
	}

	lexical, err := semtok.Lexical(file, snap.Text)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("lexical classification stopped early")
	}
	lexical = semtok.InRange(lexical, startLine, endLine)

	var semantic []semtok.Token
	if res, ok := pm.Result(file); ok && res.Snapshot != nil && bytes.Equal(res.Snapshot.Text, snap.Text) {
		semantic = semtok.FromIndex(res.Index, startLine, endLine)
	}

	data, err := semtok.Encode(semtok.Merge(lexical, semantic))
	if err != nil {
		return nil, errors.Errorf("encoding semantic tokens: %w", err)
	}
	return &protocol.SemanticTokens{Data: data}, nil
}
