package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/sariayt/LGC-EQTY/pkg/value"
)

// Column names every source must produce.
const (
	SecurityColumn = "Security"
	DateColumn     = "Date"
)

// DateLayout is the text form of the Date column.
const DateLayout = "2006-01-02"

// Override sets a request override for one field.
type Override struct {
	Field string
	Value string
}

func (o Override) String() string { return fmt.Sprintf("%s=%s", o.Field, o.Value) }

// HistoricalRequest asks for daily or periodic history of fields for
// securities between Start and End, inclusive.
type HistoricalRequest struct {
	Securities  []string
	Fields      []string
	Start       time.Time
	End         time.Time
	Periodicity string
	Overrides   []Override
}

// Source fetches historical data. The returned table has a string
// [SecurityColumn], a string [DateColumn] in [DateLayout] and one float64 or
// int64 column per requested field. Transient failures should be wrapped with
// cache.Retryable so the runner retries them.
type Source interface {
	Historical(ctx context.Context, req HistoricalRequest) (*value.Table, error)
}
