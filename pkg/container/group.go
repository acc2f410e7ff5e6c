package container

import (
	"sort"

	"github.com/sariayt/LGC-EQTY/pkg/errors"
)

// Entry is anything stored under a name inside a group: a *Group or a
// *Dataset. Both carry attributes.
type Entry interface {
	Attr(key string) (string, bool)
	Attrs() map[string]string
}

// Group is a named namespace of datasets and nested groups.
type Group struct {
	groups   map[string]*Group
	datasets map[string]*Dataset
	attrs    map[string]string
}

// NewGroup returns an empty group.
func NewGroup() *Group {
	return &Group{
		groups:   make(map[string]*Group),
		datasets: make(map[string]*Dataset),
	}
}

// CreateGroup adds an empty child group. It fails if name is invalid or
// already taken by a group or dataset.
func (g *Group) CreateGroup(name string) (*Group, error) {
	if err := g.checkFree(name); err != nil {
		return nil, err
	}
	child := NewGroup()
	g.groups[name] = child
	return child, nil
}

// CreateDataset stores ds under name. It fails if name is invalid or already
// taken.
func (g *Group) CreateDataset(name string, ds *Dataset) error {
	if err := g.checkFree(name); err != nil {
		return err
	}
	if err := ds.validate(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "dataset %q", name)
	}
	g.datasets[name] = ds
	return nil
}

// Group returns the child group called name.
func (g *Group) Group(name string) (*Group, bool) {
	c, ok := g.groups[name]
	return c, ok
}

// Dataset returns the dataset called name.
func (g *Group) Dataset(name string) (*Dataset, bool) {
	d, ok := g.datasets[name]
	return d, ok
}

// Entry returns the group or dataset called name.
func (g *Group) Entry(name string) (Entry, bool) {
	if c, ok := g.groups[name]; ok {
		return c, true
	}
	if d, ok := g.datasets[name]; ok {
		return d, true
	}
	return nil, false
}

// Keys returns the names of all child groups and datasets, sorted.
func (g *Group) Keys() []string {
	keys := make([]string, 0, len(g.groups)+len(g.datasets))
	for k := range g.groups {
		keys = append(keys, k)
	}
	for k := range g.datasets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of child entries.
func (g *Group) Len() int { return len(g.groups) + len(g.datasets) }

// SetAttr sets a string attribute on the group.
func (g *Group) SetAttr(key, value string) {
	if g.attrs == nil {
		g.attrs = make(map[string]string)
	}
	g.attrs[key] = value
}

// Attr returns the attribute stored under key.
func (g *Group) Attr(key string) (string, bool) {
	v, ok := g.attrs[key]
	return v, ok
}

// Attrs returns a copy of all attributes.
func (g *Group) Attrs() map[string]string {
	return copyAttrs(g.attrs)
}

func (g *Group) checkFree(name string) error {
	if err := errors.ValidateKey(name); err != nil {
		return err
	}
	if _, ok := g.Entry(name); ok {
		return errors.New(errors.ErrCodeInvalidKey, "entry %q already exists", name)
	}
	return nil
}
