// Package project orchestrates compilation for the editor: it tracks dirty
// files, runs single-flight compile passes and publishes per-file results
// that queries read without ever waiting on a pass.
package project

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/boolsp/pkg/ast"
	"github.com/walteh/boolsp/pkg/compiler"
	"github.com/walteh/boolsp/pkg/diagnostic"
	"github.com/walteh/boolsp/pkg/position"
	"github.com/walteh/boolsp/pkg/types"
	"github.com/walteh/boolsp/pkg/workspace"
)

var ErrPassInProgress = errors.Base("compile pass in progress")

// DefaultIdleInterval is how often Run checks for pending work.
const DefaultIdleInterval = 100 * time.Millisecond

// Result is everything published for one file by a compile pass. A Result
// is never modified after it is published.
type Result struct {
	File        string
	AST         *ast.Module
	Diagnostics []diagnostic.Diagnostic
	Index       *position.Index
	Snapshot    *workspace.Snapshot
	Pass        uuid.UUID
	Context     *compiler.Context
}

// Listener is told about every published result. next is nil when a file
// stops being tracked.
type Listener interface {
	Recompiled(ctx context.Context, file string, prev, next *Result)
}

type ListenerFunc func(ctx context.Context, file string, prev, next *Result)

func (f ListenerFunc) Recompiled(ctx context.Context, file string, prev, next *Result) {
	f(ctx, file, prev, next)
}

// TableSource supplies the reference type tables of a pass.
type TableSource interface {
	Tables(ctx context.Context) ([]*types.Table, error)
}

// IndentSource supplies the expected indentation of a file.
type IndentSource interface {
	IndentStyle(ctx context.Context, file string) (indent byte, tabWidth int)
}

// SourceLister discovers the files of a project.
type SourceLister interface {
	Sources(ctx context.Context) ([]string, error)
}

// PassReport summarizes one compile pass.
type PassReport struct {
	ID                uuid.UUID
	Files             []string
	ReferencesChanged bool
	Diagnostics       int
	Duration          time.Duration
}

type slot struct {
	result atomic.Pointer[Result]
	stale  atomic.Bool
}

type Manager struct {
	text      workspace.TextProvider
	compiler  compiler.Compiler
	refs      TableSource
	indent    IndentSource
	policy    *diagnostic.Policy
	opts      compiler.Options
	idle      time.Duration
	listeners []Listener

	slots *sync.Map // map[string]*slot

	// mu guards the queue and slot membership. Slots are only added or
	// removed while it is held.
	mu          sync.Mutex
	dirty       map[string]struct{}
	refsChanged bool

	// publish orders listener calls so an Untrack is never followed by a
	// notification for the file it removed.
	publish sync.Mutex

	pass    sync.Mutex
	trigger chan struct{}
}

type Option func(*Manager)

func WithReferences(src TableSource) Option {
	return func(m *Manager) { m.refs = src }
}

func WithIndent(src IndentSource) Option {
	return func(m *Manager) { m.indent = src }
}

func WithPolicy(p *diagnostic.Policy) Option {
	return func(m *Manager) { m.policy = p }
}

func WithCompileOptions(opts compiler.Options) Option {
	return func(m *Manager) { m.opts = opts }
}

func WithIdleInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.idle = d
		}
	}
}

func WithListener(l Listener) Option {
	return func(m *Manager) { m.listeners = append(m.listeners, l) }
}

func NewManager(text workspace.TextProvider, c compiler.Compiler, opts ...Option) *Manager {
	m := &Manager{
		text:     text,
		compiler: c,
		policy:   diagnostic.DefaultPolicy(),
		opts:     compiler.DefaultOptions(),
		idle:     DefaultIdleInterval,
		slots:    &sync.Map{},
		dirty:    make(map[string]struct{}),
		trigger:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Track starts tracking file. Tracking does not compile it.
func (m *Manager) Track(file string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots.LoadOrStore(file, &slot{})
}

// Untrack forgets file and its published result. A pass running
// concurrently does not bring the file back.
func (m *Manager) Untrack(ctx context.Context, file string) {
	m.publish.Lock()
	defer m.publish.Unlock()

	m.mu.Lock()
	delete(m.dirty, file)
	v, ok := m.slots.LoadAndDelete(file)
	m.mu.Unlock()

	if !ok {
		return
	}
	if prev := v.(*slot).result.Load(); prev != nil {
		m.notify(ctx, file, prev, nil)
	}
}

// Files returns the tracked files in order.
func (m *Manager) Files() []string {
	var out []string
	m.slots.Range(func(k, _ any) bool {
		out = append(out, k.(string))
		return true
	})
	slices.Sort(out)
	return out
}

// Result returns the last published result for file.
func (m *Manager) Result(file string) (*Result, bool) {
	v, ok := m.slots.Load(file)
	if !ok {
		return nil, false
	}
	r := v.(*slot).result.Load()
	return r, r != nil
}

// IsStale reports whether the references changed since file's result was
// published.
func (m *Manager) IsStale(file string) bool {
	v, ok := m.slots.Load(file)
	return ok && v.(*slot).stale.Load()
}

// MarkDirty queues file for the next pass.
func (m *Manager) MarkDirty(file string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirty[file] = struct{}{}
}

// MarkReferencesChanged queues every tracked file for the next pass. Their
// current results stay published and are reported stale until then.
func (m *Manager) MarkReferencesChanged() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refsChanged = true
	m.slots.Range(func(_, v any) bool {
		v.(*slot).stale.Store(true)
		return true
	})
}

// Trigger asks Run to start a pass without waiting for the next tick.
func (m *Manager) Trigger() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// LoadWorkspace tracks every discovered source file and queues it.
func (m *Manager) LoadWorkspace(ctx context.Context, src SourceLister) error {
	files, err := src.Sources(ctx)
	if err != nil {
		return errors.Errorf("loading workspace: %w", err)
	}
	for _, f := range files {
		m.Track(f)
		m.MarkDirty(f)
	}
	zerolog.Ctx(ctx).Info().Int("files", len(files)).Msg("workspace loaded")
	return nil
}

// drain takes the queued work. Queued files that are not tracked yet are
// tracked from here on.
func (m *Manager) drain() ([]string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	files := make([]string, 0, len(m.dirty))
	for f := range m.dirty {
		files = append(files, f)
		m.slots.LoadOrStore(f, &slot{})
	}
	clear(m.dirty)
	changed := m.refsChanged
	m.refsChanged = false
	return files, changed
}

func (m *Manager) requeue(files []string, refsChanged bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range files {
		m.dirty[f] = struct{}{}
	}
	m.refsChanged = m.refsChanged || refsChanged
}

// CompilePass compiles everything queued since the last pass and publishes
// the results. With nothing queued it returns nil, nil without calling the
// compiler. Concurrent calls run one after another.
func (m *Manager) CompilePass(ctx context.Context) (*PassReport, error) {
	m.pass.Lock()
	defer m.pass.Unlock()
	return m.compilePass(ctx)
}

// TryCompilePass is CompilePass, except that it returns ErrPassInProgress
// instead of waiting for a running pass. Queued work is left for the next
// pass.
func (m *Manager) TryCompilePass(ctx context.Context) (*PassReport, error) {
	if !m.pass.TryLock() {
		return nil, errors.WithStack(ErrPassInProgress)
	}
	defer m.pass.Unlock()
	return m.compilePass(ctx)
}

func (m *Manager) compilePass(ctx context.Context) (*PassReport, error) {
	files, refsChanged := m.drain()
	if len(files) == 0 && !refsChanged {
		return nil, nil
	}

	start := time.Now()
	report := &PassReport{ID: uuid.New(), ReferencesChanged: refsChanged}
	logger := zerolog.Ctx(ctx).With().Str("pass", report.ID.String()).Logger()
	ctx = logger.WithContext(ctx)

	set := slices.Clone(files)
	if refsChanged {
		set = append(set, m.Files()...)
	}
	slices.Sort(set)
	set = slices.Compact(set)

	fail := func(err error) (*PassReport, error) {
		m.requeue(files, refsChanged)
		logger.Error().Err(err).Strs("files", set).Msg("compile pass failed, work requeued")
		return nil, err
	}

	req := &compiler.Request{Options: m.opts}
	snaps := make(map[string]*workspace.Snapshot, len(set))
	kept := make([]string, 0, len(set))
	for _, f := range set {
		snap, err := m.text.Snapshot(ctx, f)
		if errors.Is(err, workspace.ErrNotFound) {
			// gone from disk without a buffer: nothing left to compile
			logger.Debug().Str("file", f).Msg("dropping file that no longer exists")
			m.Untrack(ctx, f)
			continue
		}
		if err != nil {
			return fail(errors.Errorf("snapshot of %s: %w", f, err))
		}
		snaps[f] = snap
		kept = append(kept, f)

		in := compiler.Input{Name: f, Text: snap.Text}
		if m.indent != nil {
			in.Indent, _ = m.indent.IndentStyle(ctx, f)
		}
		req.Inputs = append(req.Inputs, in)
	}

	set = kept
	report.Files = set
	if len(set) == 0 {
		report.Duration = time.Since(start)
		return report, nil
	}

	inSet := make(map[string]bool, len(set))
	for _, f := range set {
		inSet[f] = true
	}

	for _, f := range m.Files() {
		if inSet[f] {
			continue
		}
		if r, ok := m.Result(f); ok && r.AST != nil {
			req.Prebuilt = append(req.Prebuilt, r.AST)
		}
	}

	if m.refs != nil {
		tables, err := m.refs.Tables(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("some references failed to load")
		}
		req.References = tables
	} else {
		req.References = []*types.Table{types.Builtin()}
	}

	if err := ctx.Err(); err != nil {
		return fail(errors.Errorf("compile pass %s: %w", report.ID, err))
	}

	logger.Debug().Strs("files", set).Int("prebuilt", len(req.Prebuilt)).Bool("references_changed", refsChanged).Msg("compiling")

	cc, err := m.compiler.Compile(ctx, req)
	if err != nil {
		return fail(errors.Errorf("compile pass %s: %w", report.ID, err))
	}
	if cc == nil {
		return fail(errors.Errorf("compile pass %s: compiler returned no result", report.ID))
	}

	type published struct {
		file       string
		prev, next *Result
	}
	results := make([]*Result, 0, len(set))
	for _, f := range set {
		mod := cc.Modules[f]
		results = append(results, &Result{
			File:        f,
			AST:         mod,
			Diagnostics: m.policy.Filter(cc.DiagnosticsFor(f)),
			Index:       position.Build(ctx, f, mod, cc),
			Snapshot:    snaps[f],
			Pass:        report.ID,
			Context:     cc,
		})
	}

	m.publish.Lock()
	defer m.publish.Unlock()

	var out []published
	m.mu.Lock()
	for _, next := range results {
		v, ok := m.slots.Load(next.File)
		if !ok {
			// untracked while compiling
			continue
		}
		s := v.(*slot)
		prev := s.result.Swap(next)
		// a references change queued during this pass keeps the file stale
		s.stale.Store(m.refsChanged)
		report.Diagnostics += len(next.Diagnostics)
		out = append(out, published{file: next.File, prev: prev, next: next})
	}
	m.mu.Unlock()

	for _, p := range out {
		m.notify(ctx, p.file, p.prev, p.next)
	}

	report.Duration = time.Since(start)
	logger.Debug().Int("files", len(set)).Int("diagnostics", report.Diagnostics).Dur("took", report.Duration).Msg("compile pass done")

	return report, nil
}

func (m *Manager) notify(ctx context.Context, file string, prev, next *Result) {
	for _, l := range m.listeners {
		l.Recompiled(ctx, file, prev, next)
	}
}

// TrackDiagnostics returns a Listener that keeps t in step with the
// published diagnostics.
func TrackDiagnostics(t *diagnostic.Tracker) Listener {
	return ListenerFunc(func(ctx context.Context, file string, _, next *Result) {
		if next == nil {
			t.Clear(ctx, file)
			return
		}
		var version int32
		if next.Snapshot != nil {
			version = next.Snapshot.Version
		}
		t.Update(ctx, file, version, next.Diagnostics)
	})
}

// Run compiles queued work whenever the idle interval elapses or Trigger is
// called, until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.idle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-m.trigger:
		}

		if _, err := m.TryCompilePass(ctx); err != nil && !errors.Is(err, ErrPassInProgress) {
			zerolog.Ctx(ctx).Debug().Err(err).Msg("background compile pass")
		}
	}
}
