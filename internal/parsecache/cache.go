// Package parsecache is the bounded LRU of parsed syntax-tree bundles (C3).
// It is instance-scoped: every Context owns its own Cache and nothing here
// is shared across process-wide state, per spec.md §9's "Global LRU" note.
package parsecache

import (
	"github.com/maypok86/otter"
)

// DefaultCapacity matches spec.md §4.3's stated default.
const DefaultCapacity = 500

// Bundle is the parsed syntax-tree bundle cached per absolute path: AST
// root, parse errors, comments and source text. The core treats the AST
// root as an opaque value owned by the parser collaborator.
type Bundle struct {
	AST      any
	Errors   []error
	Comments []string
	Source   string
}

// Cache is the bounded, path-keyed LRU described in spec.md §4.3, built on
// the teacher's otter.Cache usage in internal/graph/searcher.go — here
// weighted by entry count (capacity N) rather than by byte size, since
// spec.md's bound is stated as an entry count.
type Cache struct {
	inner otter.Cache[string, Bundle]
}

// New builds a Cache with the given capacity; capacity <= 0 uses
// DefaultCapacity.
func New(capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	inner, err := otter.MustBuilder[string, Bundle](capacity).
		Cost(func(key string, value Bundle) uint32 { return 1 }).
		Build()
	if err != nil {
		return nil, err
	}
	return &Cache{inner: inner}, nil
}

// Set stores a bundle for an absolute path.
func (c *Cache) Set(path string, bundle Bundle) {
	c.inner.Set(path, bundle)
}

// Get returns the cached bundle for path, or (Bundle{}, false) on a miss.
// It never falls back to parsing — that is the caller's job.
func (c *Cache) Get(path string) (Bundle, bool) {
	return c.inner.Get(path)
}

// Invalidate drops any cached bundle for path.
func (c *Cache) Invalidate(path string) {
	c.inner.Delete(path)
}

// Close releases background resources held by the underlying LRU.
func (c *Cache) Close() {
	c.inner.Close()
}
