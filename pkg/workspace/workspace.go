package workspace

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/editorconfig/editorconfig-core-go/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

var (
	ErrNotFound = errors.Base("file not found")
	ErrNotOpen  = errors.Base("document is not open")
)

// DefaultSources matches every source file under the root.
var DefaultSources = []string{"**/*.boo"}

// Snapshot is a stable copy of one file's text.
type Snapshot struct {
	File       string
	Text       []byte
	Version    int32
	FromBuffer bool
}

// TextProvider returns the current text of a file.
type TextProvider interface {
	Snapshot(ctx context.Context, file string) (*Snapshot, error)
}

// Document represents an open editor buffer
type Document struct {
	Path    string
	Version int32
	Text    string
}

// Workspace tracks open buffers on top of a filesystem. Buffers win over
// disk contents.
type Workspace struct {
	fs      afero.Fs
	root    string
	sources []string
	exclude []string
	buffers *sync.Map // map[string]*Document
}

var _ TextProvider = (*Workspace)(nil)

type Option func(*Workspace)

func WithSources(patterns ...string) Option {
	return func(w *Workspace) {
		if len(patterns) > 0 {
			w.sources = patterns
		}
	}
}

func WithExclude(patterns ...string) Option {
	return func(w *Workspace) {
		w.exclude = append(w.exclude, patterns...)
	}
}

func New(fsys afero.Fs, root string, opts ...Option) *Workspace {
	w := &Workspace{
		fs:      fsys,
		root:    path.Clean(NormalizeURI(root)),
		sources: DefaultSources,
		buffers: &sync.Map{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Workspace) Root() string {
	return w.root
}

func (w *Workspace) Fs() afero.Fs {
	return w.fs
}

// Path turns a URI or a root-relative path into the workspace path of a
// file.
func (w *Workspace) Path(uri string) string {
	p := NormalizeURI(uri)
	if !path.IsAbs(p) {
		p = path.Join(w.root, p)
	}
	return path.Clean(p)
}

// Open starts tracking a buffer and returns its path.
func (w *Workspace) Open(uri string, version int32, text string) string {
	p := w.Path(uri)
	w.buffers.Store(p, &Document{Path: p, Version: version, Text: text})
	return p
}

// Change replaces the full text of an open buffer.
func (w *Workspace) Change(uri string, version int32, text string) (string, error) {
	return w.Apply(uri, version, []Edit{{Full: true, Text: text}})
}

// Apply applies edits in order to an open buffer.
func (w *Workspace) Apply(uri string, version int32, edits []Edit) (string, error) {
	p := w.Path(uri)
	v, ok := w.buffers.Load(p)
	if !ok {
		return p, errors.Errorf("applying changes to %s: %w", p, ErrNotOpen)
	}
	text := v.(*Document).Text
	for _, e := range edits {
		text = e.apply(text)
	}
	w.buffers.Store(p, &Document{Path: p, Version: version, Text: text})
	return p, nil
}

// Close stops tracking a buffer; the file falls back to its disk contents.
func (w *Workspace) Close(uri string) string {
	p := w.Path(uri)
	w.buffers.Delete(p)
	return p
}

// Document returns a copy of an open buffer.
func (w *Workspace) Document(uri string) (Document, bool) {
	v, ok := w.buffers.Load(w.Path(uri))
	if !ok {
		return Document{}, false
	}
	return *v.(*Document), true
}

// Snapshot implements TextProvider.
func (w *Workspace) Snapshot(ctx context.Context, file string) (*Snapshot, error) {
	p := w.Path(file)
	if v, ok := w.buffers.Load(p); ok {
		doc := v.(*Document)
		return &Snapshot{File: p, Text: []byte(doc.Text), Version: doc.Version, FromBuffer: true}, nil
	}

	data, err := afero.ReadFile(w.fs, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Errorf("reading %s: %w", p, ErrNotFound)
		}
		return nil, errors.Errorf("reading %s: %w", p, err)
	}
	zerolog.Ctx(ctx).Trace().Str("file", p).Int("bytes", len(data)).Msg("read from disk")
	return &Snapshot{File: p, Text: bytes.Clone(data)}, nil
}

// IsSource reports whether p matches the source patterns and none of the
// exclude patterns.
func (w *Workspace) IsSource(p string) bool {
	rel, ok := w.rel(w.Path(p))
	if !ok {
		return false
	}
	return matchAny(w.sources, rel) && !matchAny(w.exclude, rel)
}

func (w *Workspace) rel(p string) (string, bool) {
	if p == w.root {
		return "", false
	}
	prefix := strings.TrimSuffix(w.root, "/") + "/"
	if !strings.HasPrefix(p, prefix) {
		return "", false
	}
	return strings.TrimPrefix(p, prefix), true
}

func matchAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

// Sources lists every source file under the root in lexical order.
func (w *Workspace) Sources(ctx context.Context) ([]string, error) {
	var out []string
	err := afero.Walk(w.fs, w.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if rel, ok := w.rel(p); ok && matchAny(w.exclude, rel) {
				return fs.SkipDir
			}
			return nil
		}
		if w.IsSource(p) {
			out = append(out, path.Clean(p))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Errorf("discovering sources under %s: %w", w.root, err)
	}

	w.buffers.Range(func(k, _ any) bool {
		if p := k.(string); w.IsSource(p) && !slices.Contains(out, p) {
			out = append(out, p)
		}
		return true
	})

	slices.Sort(out)
	zerolog.Ctx(ctx).Debug().Str("root", w.root).Int("sources", len(out)).Msg("discovered sources")
	return out, nil
}

// IndentStyle reads the .editorconfig files governing file and returns the
// expected indent character (0 when unspecified) and the tab width.
func (w *Workspace) IndentStyle(ctx context.Context, file string) (indent byte, tabWidth int) {
	p := w.Path(file)
	tabWidth = 4

	var dirs []string
	for dir := path.Dir(p); ; dir = path.Dir(dir) {
		dirs = append(dirs, dir)
		if dir == "/" || dir == "." || dir == w.root {
			break
		}
	}

	style := ""
	// nearest file wins, so apply from the farthest one down
	var found []*editorconfig.Definition
	for _, dir := range dirs {
		data, err := afero.ReadFile(w.fs, path.Join(dir, ".editorconfig"))
		if err != nil {
			continue
		}
		ec, err := editorconfig.Parse(bytes.NewReader(data))
		if err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Str("dir", dir).Msg("ignoring unreadable .editorconfig")
			continue
		}
		rel := strings.TrimPrefix(p, strings.TrimSuffix(dir, "/"))
		def, err := ec.GetDefinitionForFilename(rel)
		if err != nil {
			continue
		}
		found = append(found, def)
		if ec.Root {
			break
		}
	}

	for i := len(found) - 1; i >= 0; i-- {
		def := found[i]
		if def.IndentStyle != "" {
			style = def.IndentStyle
		}
		if def.TabWidth > 0 {
			tabWidth = def.TabWidth
		}
	}

	switch style {
	case editorconfig.IndentStyleSpaces:
		indent = ' '
	case editorconfig.IndentStyleTab:
		indent = '\t'
	}
	return indent, tabWidth
}

// NormalizeURI strips the file scheme from a document URI.
func NormalizeURI(uri string) string {
	uri = strings.TrimPrefix(uri, "file://")
	// remove the file:/private prefix
	uri = strings.TrimPrefix(uri, "file:")
	return uri
}

// URI returns the document URI of a workspace path.
func URI(p string) string {
	return "file://" + p
}
