package types

import (
	"slices"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/boolsp/pkg/ast"
)

var ErrDuplicateType = errors.Base("duplicate type")

// Kind classifies a type entity.
type Kind int

const (
	Class Kind = iota
	Interface
	Struct
	Enum
	// Error is the kind of the entity that unresolvable references bind to.
	Error
)

func (k Kind) String() string {
	switch k {
	case Interface:
		return "interface"
	case Struct:
		return "struct"
	case Enum:
		return "enum"
	case Error:
		return "error"
	default:
		return "class"
	}
}

// KindOf maps a declaration kind onto a type kind.
func KindOf(k ast.TypeKind) Kind {
	switch k {
	case ast.InterfaceType:
		return Interface
	case ast.StructType:
		return Struct
	case ast.EnumType:
		return Enum
	default:
		return Class
	}
}

// Type is a named type, either declared in a compiled file or provided by a
// reference table.
type Type struct {
	Name      string
	Namespace string
	Kind      Kind
	// Alias is the full name of the type a builtin short name stands for.
	Alias string
	// Source is the reference table name or the declaring file.
	Source string
	Decl   *ast.TypeDefinition
}

// ErrorType is what a reference that could not be resolved binds to.
var ErrorType = &Type{Name: "?", Kind: Error}

func (t *Type) FullName() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

func (t *Type) IsError() bool {
	return t == nil || t.Kind == Error
}

// Describe renders the one line summary shown for the type, e.g.
// "class Demo.Form1" or "struct System.Int32".
func (t *Type) Describe() string {
	name := t.FullName()
	if t.Alias != "" {
		name = t.Alias
	}
	return t.Kind.String() + " " + name
}

// FromDefinition builds the type entity for a declaration in file.
func FromDefinition(file string, td *ast.TypeDefinition) *Type {
	full := td.FullName()
	ns, name := "", full
	if i := strings.LastIndexByte(full, '.'); i >= 0 {
		ns, name = full[:i], full[i+1:]
	}
	return &Type{
		Name:      name,
		Namespace: ns,
		Kind:      KindOf(td.Kind),
		Source:    file,
		Decl:      td,
	}
}

// Table is an immutable set of types contributed by one reference.
type Table struct {
	Name       string
	types      map[string]*Type
	namespaces map[string]bool
}

func NewTable(name string, types ...*Type) *Table {
	t := &Table{
		Name:       name,
		types:      make(map[string]*Type, len(types)),
		namespaces: make(map[string]bool),
	}
	for _, typ := range types {
		if typ.Source == "" {
			typ.Source = name
		}
		t.types[typ.FullName()] = typ
		for ns := typ.Namespace; ns != ""; {
			t.namespaces[ns] = true
			i := strings.LastIndexByte(ns, '.')
			if i < 0 {
				break
			}
			ns = ns[:i]
		}
	}
	return t
}

func (t *Table) Lookup(fullName string) (*Type, bool) {
	typ, ok := t.types[fullName]
	return typ, ok
}

func (t *Table) HasNamespace(ns string) bool {
	return t.namespaces[ns]
}

func (t *Table) Len() int {
	return len(t.types)
}

// Types returns the table's types ordered by full name.
func (t *Table) Types() []*Type {
	out := make([]*Type, 0, len(t.types))
	for _, typ := range t.types {
		out = append(out, typ)
	}
	slices.SortFunc(out, func(a, b *Type) int {
		return strings.Compare(a.FullName(), b.FullName())
	})
	return out
}

// Registry holds the types declared by one compile pass on top of the
// reference tables. It is built single-threaded and read-only afterwards.
type Registry struct {
	local      map[string]*Type
	namespaces map[string]bool
	tables     []*Table
}

func NewRegistry(tables ...*Table) *Registry {
	return &Registry{
		local:      make(map[string]*Type),
		namespaces: make(map[string]bool),
		tables:     tables,
	}
}

// Declare adds a locally declared type. Declaring the same full name twice
// returns ErrDuplicateType along with the existing entity.
func (r *Registry) Declare(t *Type) (*Type, error) {
	full := t.FullName()
	if prev, ok := r.local[full]; ok {
		return prev, errors.Errorf("%w: %s", ErrDuplicateType, full)
	}
	r.local[full] = t
	if t.Namespace != "" {
		r.namespaces[t.Namespace] = true
	}
	return t, nil
}

// Lookup finds a type by full name, local declarations first.
func (r *Registry) Lookup(fullName string) (*Type, bool) {
	if t, ok := r.local[fullName]; ok {
		return t, true
	}
	for _, tbl := range r.tables {
		if t, ok := tbl.Lookup(fullName); ok {
			return t, true
		}
	}
	return nil, false
}

func (r *Registry) HasNamespace(ns string) bool {
	if r.namespaces[ns] {
		return true
	}
	for _, tbl := range r.tables {
		if tbl.HasNamespace(ns) {
			return true
		}
	}
	return false
}

// Resolve looks name up as written and then inside each of the given
// namespaces in order. It returns the namespace that matched ("" for a
// global or fully qualified match).
func (r *Registry) Resolve(name string, namespaces []string) (*Type, string, bool) {
	if t, ok := r.Lookup(name); ok {
		return t, "", true
	}
	for _, ns := range namespaces {
		if ns == "" {
			continue
		}
		if t, ok := r.Lookup(ns + "." + name); ok {
			return t, ns, true
		}
	}
	return ErrorType, "", false
}

// Locals returns the locally declared types ordered by full name.
func (r *Registry) Locals() []*Type {
	out := make([]*Type, 0, len(r.local))
	for _, t := range r.local {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b *Type) int {
		return strings.Compare(a.FullName(), b.FullName())
	})
	return out
}
