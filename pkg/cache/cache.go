// Package cache provides byte-level caching for market-data checkpoints.
//
// A [Cache] stores opaque payloads under string keys with an optional TTL.
// Payloads written by the market-data runner are persisted containers
// produced by persist.Encode, so any backend can hold them.
//
// Backends:
//   - [FileCache]: one file per key under a directory, for CLI use
//   - [RedisCache]: shared checkpoints across machines
//   - [MongoCache]: document store with a TTL index
//   - [NullCache]: disables caching
//
// Keys are produced by a [Keyer] so all backends agree on naming.
package cache

import (
	"context"
	"time"
)

// Cache is a byte store keyed by string.
type Cache interface {
	// Get returns the payload for key. A miss is reported as ok == false
	// with a nil error.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)

	// Set stores data under key. A ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// BatchKeyOpts identifies one market-data batch request.
type BatchKeyOpts struct {
	Securities []string
	Fields     []string
	Start      time.Time
	End        time.Time
	// Overrides are per-field request overrides, already rendered as
	// name=value pairs.
	Overrides []string
}

// Keyer generates cache keys.
type Keyer interface {
	// BatchKey names the checkpoint of one batch.
	BatchKey(opts BatchKeyOpts) string

	// ResultKey names the structured result of a whole run.
	ResultKey(opts BatchKeyOpts) string
}

// DefaultKeyer hashes request parameters into fixed-length keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// BatchKey implements Keyer.
func (DefaultKeyer) BatchKey(opts BatchKeyOpts) string {
	return hashKey("batch", opts.Securities, opts.Fields, day(opts.Start), day(opts.End), opts.Overrides)
}

// ResultKey implements Keyer.
func (DefaultKeyer) ResultKey(opts BatchKeyOpts) string {
	return hashKey("result", opts.Securities, opts.Fields, day(opts.Start), day(opts.End), opts.Overrides)
}

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
