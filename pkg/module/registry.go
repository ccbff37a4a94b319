package module

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lightkeeper-hq/lightkeeper/pkg/lkerror"
)

// Settings is the raw settings mapping passed to a module constructor,
// taken verbatim from the hosts/groups configuration files.
type Settings map[string]string

// Factory builds a fresh module instance from settings. It returns
// lkerror.InvalidParameter-kinded errors for malformed settings.
type Factory[T any] func(settings Settings) (T, error)

type entry[T any] struct {
	metadata Metadata
	factory  Factory[T]
}

// Registry is a compile/init-time table mapping Spec to a constructor.
// One Registry instance exists per module kind (connectors, monitors,
// commands); modules are registered once during process init and the
// registry is read-only thereafter.
type Registry[T any] struct {
	mu      sync.RWMutex
	entries map[Spec]entry[T]
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{entries: make(map[Spec]entry[T])}
}

// Register adds a module to the registry. It panics on a duplicate Spec,
// since duplicate registration is a programming error caught at init time,
// not a runtime condition callers should handle.
func (r *Registry[T]) Register(metadata Metadata, factory Factory[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[metadata.Spec]; exists {
		panic(fmt.Sprintf("module %s already registered", metadata.Spec))
	}

	r.entries[metadata.Spec] = entry[T]{metadata: metadata, factory: factory}
}

// New constructs a fresh instance of the module identified by spec.
func (r *Registry[T]) New(spec Spec, settings Settings) (T, error) {
	r.mu.RLock()
	e, ok := r.entries[spec]
	r.mu.RUnlock()

	var zero T

	if !ok {
		return zero, lkerror.New(lkerror.NotFound, fmt.Sprintf("unknown module %s", spec))
	}

	instance, err := e.factory(settings)
	if err != nil {
		return zero, lkerror.Wrap(lkerror.InvalidParameter, fmt.Sprintf("bad settings for %s", spec), err)
	}

	return instance, nil
}

// Metadata returns the metadata registered for spec.
func (r *Registry[T]) Metadata(spec Spec) (Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[spec]

	return e.metadata, ok
}

// Metadatas returns every registered module's metadata, sorted by spec
// string for stable UI listings.
func (r *Registry[T]) Metadatas() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Metadata, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.metadata)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Spec.String() < out[j].Spec.String()
	})

	return out
}

// ChildrenOf returns every registered Spec whose metadata's ParentModule equals
// parent, i.e. the extension modules chained off it.
func (r *Registry[T]) ChildrenOf(parent Spec) []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Spec

	for spec, e := range r.entries {
		if e.metadata.ParentModule != nil && *e.metadata.ParentModule == parent {
			out = append(out, spec)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })

	return out
}
