package persist

import (
	stderrors "errors"
	"fmt"

	"github.com/sariayt/LGC-EQTY/pkg/value"
)

// Failure is one entry, or one table column, that could not be read.
type Failure struct {
	Path string
	Err  error
}

func (f Failure) Error() string { return fmt.Sprintf("%s: %v", displayPath(f.Path), f.Err) }

// Unwrap gives errors.Is and errors.As access to the cause.
func (f Failure) Unwrap() error { return f.Err }

// Degraded is one entry read through the opaque fallback because its tag was
// not registered.
type Degraded struct {
	Path string
	Tag  value.Tag
}

// Manifest records what a load could not fully reconstruct.
type Manifest struct {
	Failures []Failure
	Degraded []Degraded
}

// OK reports whether every entry was reconstructed through its own reader.
func (m *Manifest) OK() bool {
	return m == nil || (len(m.Failures) == 0 && len(m.Degraded) == 0)
}

// Err joins all failures into one error, or returns nil when there are none.
// Degraded entries are not errors.
func (m *Manifest) Err() error {
	if m == nil || len(m.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(m.Failures))
	for i, f := range m.Failures {
		errs[i] = f
	}
	return stderrors.Join(errs...)
}

// Failed reports whether path, or an ancestor of it, was recorded as failed.
func (m *Manifest) Failed(path string) bool {
	if m == nil {
		return false
	}
	for _, f := range m.Failures {
		if f.Path == path || hasPathPrefix(path, f.Path) {
			return true
		}
	}
	return false
}

func (m *Manifest) fail(path string, err error) {
	m.Failures = append(m.Failures, Failure{Path: path, Err: err})
}

func (m *Manifest) degrade(path string, tag value.Tag) {
	m.Degraded = append(m.Degraded, Degraded{Path: path, Tag: tag})
}

func hasPathPrefix(path, prefix string) bool {
	return len(path) > len(prefix) && path[len(prefix)] == '/' && path[:len(prefix)] == prefix
}
