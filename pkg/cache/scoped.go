package cache

// ScopedKeyer wraps a Keyer with a prefix so several projects can share one
// backend without their checkpoints colliding.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "equities:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// BatchKey generates a prefixed batch key.
func (k *ScopedKeyer) BatchKey(opts BatchKeyOpts) string {
	return k.prefix + k.inner.BatchKey(opts)
}

// ResultKey generates a prefixed result key.
func (k *ScopedKeyer) ResultKey(opts BatchKeyOpts) string {
	return k.prefix + k.inner.ResultKey(opts)
}
