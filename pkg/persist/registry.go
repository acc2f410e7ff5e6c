package persist

import (
	"sort"

	"github.com/sariayt/LGC-EQTY/pkg/container"
	"github.com/sariayt/LGC-EQTY/pkg/errors"
	"github.com/sariayt/LGC-EQTY/pkg/value"
)

// WriterFunc persists node n under key inside parent.
type WriterFunc func(w *Writer, parent *container.Group, key string, n value.Node) error

// ReaderFunc reconstructs the node stored under key inside parent, guided by
// its metadata sub-tree.
type ReaderFunc func(r *Reader, parent *container.Group, key string, meta *Meta) (value.Node, error)

type strategy struct {
	write WriterFunc
	read  ReaderFunc
}

// Registry maps tags to writer and reader strategies.
//
// A Registry is configuration: build it once, then pass it to [Save] and
// [Load] through [Options]. Use [Registry.Clone] to derive a variant with
// extra tags without affecting other callers.
type Registry struct {
	strategies map[value.Tag]strategy
	opaque     ReaderFunc
}

// NewRegistry returns a registry with the six core tags registered and the
// opaque-scalar reader as fallback.
func NewRegistry() *Registry {
	r := &Registry{
		strategies: make(map[value.Tag]strategy),
		opaque:     readOpaque,
	}
	r.Register(value.TagScalar, writeScalar, readScalar)
	r.Register(value.TagArray, writeArray, readArray)
	r.Register(value.TagSequence, writeSequence, readSequence)
	r.Register(value.TagOrderedMapping, writeOrderedMapping, readOrderedMapping)
	r.Register(value.TagGrouping, writeGrouping, readGrouping)
	r.Register(value.TagTable, writeTable, readTable)
	return r
}

// Register adds or replaces the strategies for tag.
func (r *Registry) Register(tag value.Tag, w WriterFunc, rd ReaderFunc) {
	r.strategies[tag] = strategy{write: w, read: rd}
}

// SetOpaque replaces the fallback reader used for unregistered tags.
func (r *Registry) SetOpaque(rd ReaderFunc) {
	if rd != nil {
		r.opaque = rd
	}
}

// Clone returns an independent copy of r.
func (r *Registry) Clone() *Registry {
	c := &Registry{
		strategies: make(map[value.Tag]strategy, len(r.strategies)),
		opaque:     r.opaque,
	}
	for tag, s := range r.strategies {
		c.strategies[tag] = s
	}
	return c
}

// Tags returns the registered tags, sorted.
func (r *Registry) Tags() []value.Tag {
	tags := make([]value.Tag, 0, len(r.strategies))
	for tag := range r.strategies {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// Has reports whether tag is registered.
func (r *Registry) Has(tag value.Tag) bool {
	_, ok := r.strategies[tag]
	return ok
}

// ResolveWriter returns the writer for the runtime shape of n. An [value.Opaque]
// node whose tag is not registered is written back verbatim under that tag.
func (r *Registry) ResolveWriter(n value.Node) (WriterFunc, error) {
	if n == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "nil node")
	}
	if s, ok := r.strategies[n.Tag()]; ok && s.write != nil {
		return s.write, nil
	}
	if _, ok := n.(*value.Opaque); ok {
		return writeOpaque, nil
	}
	return nil, errors.New(errors.ErrCodeUnregisteredType, "no writer registered for tag %q (%T)", n.Tag(), n)
}

// ResolveReader returns the reader for a recorded tag. Unknown tags resolve
// to the opaque-scalar reader and ok is false.
func (r *Registry) ResolveReader(tag value.Tag) (rd ReaderFunc, ok bool) {
	if s, found := r.strategies[tag]; found && s.read != nil {
		return s.read, true
	}
	return r.opaque, false
}
