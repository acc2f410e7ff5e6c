package value

import (
	"fmt"
	"sort"
	"strconv"
)

// Tag identifies the kind of a [Node]. Tags are recorded verbatim in the
// metadata tree of a container.
type Tag string

// Core tags.
const (
	TagScalar         Tag = "scalar"
	TagArray          Tag = "array"
	TagSequence       Tag = "sequence"
	TagOrderedMapping Tag = "ordered_mapping"
	TagGrouping       Tag = "grouping"
	TagTable          Tag = "table"
)

// CoreTags returns the six built-in tags in a stable order.
func CoreTags() []Tag {
	return []Tag{TagScalar, TagArray, TagSequence, TagOrderedMapping, TagGrouping, TagTable}
}

// Node is any value the persistence engine can store.
type Node interface {
	Tag() Tag
}

// =============================================================================
// Scalar
// =============================================================================

// ScalarKind is the atomic type held by a [Scalar].
type ScalarKind string

// Scalar kinds.
const (
	KindFloat  ScalarKind = "float64"
	KindInt    ScalarKind = "int64"
	KindString ScalarKind = "string"
	KindBool   ScalarKind = "bool"
)

// Scalar is a single atomic value. Only the field matching Kind is meaningful.
type Scalar struct {
	Kind  ScalarKind
	Float float64
	Int   int64
	Text  string
	Bool  bool
}

// Float returns a float64 scalar.
func Float(f float64) Scalar { return Scalar{Kind: KindFloat, Float: f} }

// Int returns an int64 scalar.
func Int(i int64) Scalar { return Scalar{Kind: KindInt, Int: i} }

// Text returns a string scalar.
func Text(s string) Scalar { return Scalar{Kind: KindString, Text: s} }

// Bool returns a bool scalar.
func Bool(b bool) Scalar { return Scalar{Kind: KindBool, Bool: b} }

func (Scalar) Tag() Tag { return TagScalar }

// String returns the canonical text form of s, the form stored on disk.
func (s Scalar) String() string {
	switch s.Kind {
	case KindFloat:
		return strconv.FormatFloat(s.Float, 'g', -1, 64)
	case KindInt:
		return strconv.FormatInt(s.Int, 10)
	case KindBool:
		return strconv.FormatBool(s.Bool)
	default:
		return s.Text
	}
}

// ParseScalar parses the canonical text form produced by [Scalar.String].
func ParseScalar(kind ScalarKind, text string) (Scalar, error) {
	switch kind {
	case KindFloat:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Scalar{}, err
		}
		return Float(f), nil
	case KindInt:
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Scalar{}, err
		}
		return Int(i), nil
	case KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Scalar{}, err
		}
		return Bool(b), nil
	case KindString, "":
		return Text(text), nil
	default:
		return Scalar{}, fmt.Errorf("unknown scalar kind %q", kind)
	}
}

// =============================================================================
// Sequence
// =============================================================================

// Sequence is an ordered list of scalars.
type Sequence struct {
	Items []Scalar
}

// Strings builds a sequence of string scalars.
func Strings(items ...string) *Sequence {
	seq := &Sequence{Items: make([]Scalar, len(items))}
	for i, s := range items {
		seq.Items[i] = Text(s)
	}
	return seq
}

func (*Sequence) Tag() Tag { return TagSequence }

// Len returns the number of items.
func (s *Sequence) Len() int { return len(s.Items) }

// Texts returns the canonical text form of every item.
func (s *Sequence) Texts() []string {
	out := make([]string, len(s.Items))
	for i, it := range s.Items {
		out[i] = it.String()
	}
	return out
}

// =============================================================================
// OrderedMapping
// =============================================================================

// Entry is one row of an [OrderedMapping].
type Entry struct {
	Label  string
	Values []string
}

// OrderedMapping is an order-significant list of labelled value lists.
// Every entry must carry the same number of values.
type OrderedMapping struct {
	Entries []Entry
}

func (*OrderedMapping) Tag() Tag { return TagOrderedMapping }

// Append adds an entry at the end, preserving insertion order.
func (m *OrderedMapping) Append(label string, values ...string) {
	m.Entries = append(m.Entries, Entry{Label: label, Values: values})
}

// Labels returns the labels in insertion order.
func (m *OrderedMapping) Labels() []string {
	out := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		out[i] = e.Label
	}
	return out
}

// Get returns the values stored under label.
func (m *OrderedMapping) Get(label string) ([]string, bool) {
	for _, e := range m.Entries {
		if e.Label == label {
			return e.Values, true
		}
	}
	return nil, false
}

// Width returns the number of values per entry, or -1 if entries disagree.
func (m *OrderedMapping) Width() int {
	if len(m.Entries) == 0 {
		return 0
	}
	w := len(m.Entries[0].Values)
	for _, e := range m.Entries[1:] {
		if len(e.Values) != w {
			return -1
		}
	}
	return w
}

// =============================================================================
// Grouping
// =============================================================================

// Grouping is an unordered mapping from name to node.
type Grouping map[string]Node

func (Grouping) Tag() Tag { return TagGrouping }

// Keys returns the grouping keys sorted lexically.
func (g Grouping) Keys() []string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// =============================================================================
// Opaque
// =============================================================================

// Opaque holds a node whose tag was not registered when it was read.
// Values is the text form of whatever the container stored for it.
type Opaque struct {
	Type   Tag
	Values []string
	Attrs  map[string]string
}

func (o *Opaque) Tag() Tag { return o.Type }
