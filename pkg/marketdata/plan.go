package marketdata

import (
	"math"
	"time"
)

// Provider limits the plan is sized against.
const (
	MaxDailyHits      = 500000
	HitHeadroom       = 0.9
	MaxResponseBytes  = 0.1e9
	MaxFieldsPerQuery = 25
	MaxFieldsPerBatch = 8
)

// Plan splits a download into batches of fields.
type Plan struct {
	Batches        int
	FieldsPerBatch int
	// Delay is set when the daily hit limit, not response size or field
	// count, drives the batch count. Batches then have to be spread over
	// several days.
	Delay bool
}

// NewPlan sizes a download of fields for assets over days calendar days.
//
// The batch count is twice the largest of the hit, field-count and size
// bounds. Fields per batch are capped at [MaxFieldsPerBatch], after which the
// batch count is recomputed so no batch is empty.
func NewPlan(assets, fields, days int) Plan {
	if fields <= 0 {
		return Plan{}
	}
	maxHits := HitHeadroom * MaxDailyHits
	hits := math.Ceil(float64(assets) * float64(fields) / maxHits)
	perQuery := math.Ceil(float64(fields) / MaxFieldsPerQuery)
	size := math.Ceil(float64(fields) * float64(days) * float64(assets) * 8 / MaxResponseBytes)

	bound := max(hits, perQuery, size)
	batches := 2 * bound
	perBatch := int(min(math.Ceil(float64(fields)/batches), MaxFieldsPerBatch))
	return Plan{
		Batches:        int(math.Ceil(float64(fields) / float64(perBatch))),
		FieldsPerBatch: perBatch,
		Delay:          hits > 1 && hits == bound,
	}
}

// Split cuts fields into the plan's batches, preserving order.
func (p Plan) Split(fields []string) [][]string {
	if p.FieldsPerBatch <= 0 {
		return nil
	}
	out := make([][]string, 0, p.Batches)
	for start := 0; start < len(fields); start += p.FieldsPerBatch {
		end := min(start+p.FieldsPerBatch, len(fields))
		out = append(out, fields[start:end])
	}
	return out
}

// Days counts calendar days from start to end, inclusive. It is zero when end
// is before start.
func Days(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	if e.Before(s) {
		return 0
	}
	return int(e.Sub(s).Hours()/24) + 1
}
