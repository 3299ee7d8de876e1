// Package references keeps the set of external type tables a project is
// compiled against.
package references

import (
	"bytes"
	"context"
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/walteh/boolsp/pkg/types"
)

// Reference names a manifest describing the types of one external
// assembly.
type Reference struct {
	Name string `json:"name" yaml:"name" hcl:"name,label"`
	Path string `json:"path" yaml:"path" hcl:"path,attr"`
}

// Manifest is the on-disk description of a reference.
type Manifest struct {
	Types []ManifestType `yaml:"types"`
}

type ManifestType struct {
	Name      string `yaml:"name"`
	Namespace string `yaml:"namespace,omitempty"`
	Kind      string `yaml:"kind,omitempty"`
}

// ParseKind maps a manifest kind onto a type kind. An empty kind is a class.
func ParseKind(s string) (types.Kind, error) {
	switch strings.ToLower(s) {
	case "", "class":
		return types.Class, nil
	case "interface":
		return types.Interface, nil
	case "struct":
		return types.Struct, nil
	case "enum":
		return types.Enum, nil
	}
	return types.Class, errors.Errorf("unknown type kind %q", s)
}

// Load parses a manifest into a table named name.
func Load(name string, data []byte) (*types.Table, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, errors.Errorf("parsing manifest %s: %w", name, err)
	}

	var errs error
	out := make([]*types.Type, 0, len(m.Types))
	for i, mt := range m.Types {
		if mt.Name == "" {
			errs = multierr.Append(errs, errors.Errorf("types[%d]: missing name", i))
			continue
		}
		kind, err := ParseKind(mt.Kind)
		if err != nil {
			errs = multierr.Append(errs, errors.Errorf("types[%d] %s: %w", i, mt.Name, err))
			continue
		}
		out = append(out, &types.Type{Name: mt.Name, Namespace: mt.Namespace, Kind: kind, Source: name})
	}
	if errs != nil {
		return nil, errors.Errorf("loading manifest %s: %w", name, errs)
	}
	return types.NewTable(name, out...), nil
}

// Manager tracks references and the tables loaded for them. Tables are
// loaded lazily and cached until the reference or its manifest changes.
type Manager struct {
	fs   afero.Fs
	root string

	mu     sync.Mutex
	refs   map[string]Reference
	tables map[string]*types.Table
	subs   map[int]func(context.Context)
	nextID int
}

func NewManager(fsys afero.Fs, root string, refs ...Reference) *Manager {
	m := &Manager{
		fs:     fsys,
		root:   root,
		refs:   make(map[string]Reference),
		tables: make(map[string]*types.Table),
		subs:   make(map[int]func(context.Context)),
	}
	for _, r := range refs {
		m.refs[r.Name] = r
	}
	return m
}

// Subscribe registers fn to be called after every change to the reference
// set. The returned func removes the subscription.
func (m *Manager) Subscribe(fn func(ctx context.Context)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

func (m *Manager) notify(ctx context.Context) {
	m.mu.Lock()
	subs := make([]func(context.Context), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(ctx)
	}
}

// Add adds or replaces a reference.
func (m *Manager) Add(ctx context.Context, ref Reference) {
	m.mu.Lock()
	m.refs[ref.Name] = ref
	delete(m.tables, ref.Name)
	m.mu.Unlock()

	zerolog.Ctx(ctx).Debug().Str("reference", ref.Name).Str("path", ref.Path).Msg("reference added")
	m.notify(ctx)
}

// Remove drops a reference. It reports whether the reference existed.
func (m *Manager) Remove(ctx context.Context, name string) bool {
	m.mu.Lock()
	_, ok := m.refs[name]
	delete(m.refs, name)
	delete(m.tables, name)
	m.mu.Unlock()

	if ok {
		zerolog.Ctx(ctx).Debug().Str("reference", name).Msg("reference removed")
		m.notify(ctx)
	}
	return ok
}

// Refresh drops the cached tables of every reference whose manifest is at
// file. It reports whether any reference was affected.
func (m *Manager) Refresh(ctx context.Context, file string) bool {
	file = path.Clean(file)

	m.mu.Lock()
	var hit []string
	for name, r := range m.refs {
		if m.manifestPath(r) == file {
			hit = append(hit, name)
			delete(m.tables, name)
		}
	}
	m.mu.Unlock()

	if len(hit) == 0 {
		return false
	}
	zerolog.Ctx(ctx).Debug().Strs("references", hit).Msg("reference manifest changed")
	m.notify(ctx)
	return true
}

// Sync makes the reference set equal to refs, adding new or changed
// references and removing the others. It reports whether anything changed.
func (m *Manager) Sync(ctx context.Context, refs []Reference) bool {
	want := make(map[string]Reference, len(refs))
	for _, r := range refs {
		want[r.Name] = r
	}

	changed := false
	for _, cur := range m.References() {
		if _, ok := want[cur.Name]; !ok {
			changed = m.Remove(ctx, cur.Name) || changed
		}
	}

	m.mu.Lock()
	var add []Reference
	for _, r := range refs {
		if cur, ok := m.refs[r.Name]; !ok || cur != r {
			add = append(add, r)
		}
	}
	m.mu.Unlock()

	for _, r := range add {
		m.Add(ctx, r)
		changed = true
	}
	return changed
}

func (m *Manager) manifestPath(r Reference) string {
	if path.IsAbs(r.Path) {
		return path.Clean(r.Path)
	}
	return path.Join(m.root, r.Path)
}

// References returns the configured references ordered by name.
func (m *Manager) References() []Reference {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Reference, 0, len(m.refs))
	for _, r := range m.refs {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Reference) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Tables returns the builtin table followed by the table of every
// reference that resolves, ordered by name. A reference whose manifest does
// not exist is unresolved and simply contributes nothing. Malformed
// manifests are reported in the combined error; the tables that did load
// are still returned.
func (m *Manager) Tables(ctx context.Context) ([]*types.Table, error) {
	out := []*types.Table{types.Builtin()}

	var errs error
	for _, r := range m.References() {
		if r.Name == types.BuiltinName {
			continue
		}

		m.mu.Lock()
		tbl, ok := m.tables[r.Name]
		m.mu.Unlock()

		if !ok {
			var err error
			tbl, err = m.load(ctx, r)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			if tbl == nil {
				continue
			}
			m.mu.Lock()
			if cur, still := m.refs[r.Name]; still && cur == r {
				m.tables[r.Name] = tbl
			}
			m.mu.Unlock()
		}
		out = append(out, tbl)
	}
	return out, errs
}

func (m *Manager) load(ctx context.Context, r Reference) (*types.Table, error) {
	if r.Path == "" {
		zerolog.Ctx(ctx).Debug().Str("reference", r.Name).Msg("reference has no manifest, unresolved")
		return nil, nil
	}
	p := m.manifestPath(r)
	data, err := afero.ReadFile(m.fs, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			zerolog.Ctx(ctx).Debug().Str("reference", r.Name).Str("path", p).Msg("reference manifest missing, unresolved")
			return nil, nil
		}
		return nil, errors.Errorf("reading reference %s: %w", r.Name, err)
	}
	return Load(r.Name, data)
}
