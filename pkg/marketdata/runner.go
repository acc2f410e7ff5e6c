package marketdata

import (
	"bytes"
	"context"
	"slices"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sariayt/LGC-EQTY/pkg/cache"
	"github.com/sariayt/LGC-EQTY/pkg/container"
	"github.com/sariayt/LGC-EQTY/pkg/errors"
	"github.com/sariayt/LGC-EQTY/pkg/observability"
	"github.com/sariayt/LGC-EQTY/pkg/persist"
	"github.com/sariayt/LGC-EQTY/pkg/value"
)

// Keys of a batch checkpoint.
const (
	checkpointData   = "d"
	checkpointFields = "batchFields"
)

// pacingSlack is added after midnight before a paced batch resumes.
const pacingSlack = 5 * time.Minute

// Request describes a full download.
type Request struct {
	Securities  []string
	Fields      []string
	Start       time.Time
	End         time.Time
	Periodicity string
	// Overrides lists, per field, the overrides that field is requested
	// with. Overridden fields are fetched on their own.
	Overrides map[string][]Override
}

func (r Request) validate() error {
	if len(r.Securities) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "no securities requested")
	}
	if len(r.Fields) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "no fields requested")
	}
	if r.End.Before(r.Start) {
		return errors.New(errors.ErrCodeInvalidInput, "end %s is before start %s",
			r.End.Format(DateLayout), r.Start.Format(DateLayout))
	}
	return nil
}

// Runner downloads a [Request] batch by batch. Every batch is checkpointed in
// Cache before the next one starts, so an interrupted run resumes from the
// last completed batch.
type Runner struct {
	Source Source
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// Concurrency bounds parallel batches. It is forced to 1 when the plan
	// paces batches across days.
	Concurrency int
	// MaxFieldsPerBatch, when positive, lowers the plan's batch width.
	MaxFieldsPerBatch int
	// TTL is the lifetime of cached checkpoints; zero keeps them forever.
	TTL         time.Duration
	Compression container.Compression
	// Backoff retries transient source failures. Its waits go through Sleep
	// unless it sets its own.
	Backoff cache.Backoff

	// Sleep and Now are replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// NewRunner creates a runner. Nil cache, keyer or logger select a null
// cache, the default keyer and the default logger.
func NewRunner(src Source, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Source:      src,
		Cache:       c,
		Keyer:       keyer,
		Logger:      logger,
		Concurrency: 1,
		Backoff:     cache.DefaultBackoff,
		Sleep:       sleep,
		Now:         time.Now,
	}
}

// Plan returns the batch plan Run would use for req.
func (r *Runner) Plan(req Request) Plan {
	p := NewPlan(len(unique(req.Securities)), len(req.Fields), Days(req.Start, req.End))
	if r.MaxFieldsPerBatch > 0 && r.MaxFieldsPerBatch < p.FieldsPerBatch {
		p.FieldsPerBatch = r.MaxFieldsPerBatch
		p.Batches = (len(req.Fields) + p.FieldsPerBatch - 1) / p.FieldsPerBatch
	}
	return p
}

// Run downloads req and returns the structured result. A result cached by an
// earlier identical run is returned without contacting the source.
func (r *Runner) Run(ctx context.Context, req Request) (*FieldData, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	req.Securities = unique(req.Securities)
	logger := r.Logger.With("run", uuid.NewString()[:8])

	resultKey := r.Keyer.ResultKey(r.keyOpts(req, req.Fields))
	if g, ok := r.lookup(ctx, logger, resultKey); ok {
		if fd, err := FieldDataFrom(g); err == nil {
			logger.Info("using cached result", "securities", len(req.Securities), "fields", len(req.Fields))
			return fd, nil
		}
		logger.Warn("ignoring unreadable cached result", "key", resultKey)
	}

	plan := r.Plan(req)
	batches := plan.Split(req.Fields)
	limit := max(r.Concurrency, 1)
	if plan.Delay {
		logger.Warn("daily limit is likely to be reached, batches are delayed", "batches", len(batches))
		limit = 1
	}
	logger.Info("downloading field data",
		"securities", len(req.Securities),
		"fields", len(req.Fields),
		"batches", len(batches),
		"fields_per_batch", plan.FieldsPerBatch)

	tables := make([]*value.Table, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, fields := range batches {
		g.Go(func() error {
			startDay := r.Now()
			t, cached, err := r.batch(gctx, logger, i, req, fields)
			if err != nil {
				return err
			}
			tables[i] = t
			if plan.Delay && !cached && i < len(batches)-1 {
				return r.pace(gctx, logger, startDay)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Info("download complete")

	stacked, err := Stack(tables...)
	if err != nil {
		return nil, err
	}
	fd, err := Structure(stacked)
	if err != nil {
		return nil, err
	}
	r.store(ctx, logger, resultKey, fd.Grouping())
	return fd, nil
}

// batch fetches one batch, or reads its checkpoint.
func (r *Runner) batch(ctx context.Context, logger *log.Logger, i int, req Request, fields []string) (t *value.Table, cached bool, err error) {
	start := time.Now()
	observability.Fetch().OnBatchStart(ctx, i, len(fields))
	defer func() {
		rows := 0
		if t != nil {
			rows = t.NumRows()
		}
		observability.Fetch().OnBatchComplete(ctx, i, rows, cached, time.Since(start), err)
	}()

	key := r.Keyer.BatchKey(r.keyOpts(req, fields))
	if g, ok := r.lookup(ctx, logger, key); ok {
		if t, err := checkpointTable(g, fields); err == nil {
			logger.Debug("using checkpoint", "batch", i)
			return t, true, nil
		}
		logger.Warn("ignoring unreadable checkpoint", "batch", i, "key", key)
	}

	var plain []string
	var parts []*value.Table
	for _, f := range fields {
		if len(req.Overrides[f]) == 0 {
			plain = append(plain, f)
		}
	}
	if len(plain) > 0 {
		part, err := r.fetch(ctx, logger, req, plain, nil)
		if err != nil {
			return nil, false, err
		}
		parts = append(parts, part)
	}
	for _, f := range fields {
		if ov := req.Overrides[f]; len(ov) > 0 {
			part, err := r.fetch(ctx, logger, req, []string{f}, ov)
			if err != nil {
				return nil, false, err
			}
			parts = append(parts, part)
		}
	}

	t, err = Stack(parts...)
	if err != nil {
		return nil, false, err
	}
	r.store(ctx, logger, key, value.Grouping{
		checkpointData:   t,
		checkpointFields: value.Strings(fields...),
	})
	logger.Info("fetched batch", "batch", i, "fields", fields, "rows", t.NumRows())
	return t, false, nil
}

// fetch calls the source with retries. A rate-limited response waits for the
// requested interval before the next attempt.
func (r *Runner) fetch(ctx context.Context, logger *log.Logger, req Request, fields []string, overrides []Override) (*value.Table, error) {
	hr := HistoricalRequest{
		Securities:  req.Securities,
		Fields:      fields,
		Start:       req.Start,
		End:         req.End,
		Periodicity: req.Periodicity,
		Overrides:   overrides,
	}
	b := r.Backoff
	if b.Sleep == nil {
		b.Sleep = r.Sleep
	}
	var t *value.Table
	err := b.Retry(ctx, func() error {
		var err error
		t, err = r.Source.Historical(ctx, hr)
		wait, limited := errors.RetryAfter(err)
		if !limited {
			return err
		}
		logger.Warn("rate limited", "fields", fields, "retry_after", wait)
		if wait > 0 {
			if werr := r.Sleep(ctx, wait); werr != nil {
				return werr
			}
		}
		return cache.Retryable(err)
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "fetch %v", fields)
	}
	return t, nil
}

// pace waits for the next calendar day when the batch finished on the day it
// started, so each day's hit allowance covers one batch.
func (r *Runner) pace(ctx context.Context, logger *log.Logger, startDay time.Time) error {
	now := r.Now()
	y, m, d := startDay.Date()
	if ny, nm, nd := now.Date(); ny != y || nm != m || nd != d {
		return nil
	}
	resume := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location()).Add(pacingSlack)
	logger.Info("delaying next batch", "until", resume.Format(time.DateTime))
	return r.Sleep(ctx, resume.Sub(now))
}

func (r *Runner) keyOpts(req Request, fields []string) cache.BatchKeyOpts {
	var overrides []string
	for _, f := range fields {
		for _, o := range req.Overrides[f] {
			overrides = append(overrides, f+":"+o.String())
		}
	}
	return cache.BatchKeyOpts{
		Securities: req.Securities,
		Fields:     fields,
		Start:      req.Start,
		End:        req.End,
		Overrides:  overrides,
	}
}

// lookup reads and decodes a cached container. Cache and decode errors are
// logged and treated as misses.
func (r *Runner) lookup(ctx context.Context, logger *log.Logger, key string) (value.Grouping, bool) {
	data, ok, err := r.Cache.Get(ctx, key)
	if err != nil {
		logger.Warn("cache read failed", "key", key, "err", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	res, err := persist.Decode(bytes.NewReader(data), persist.Options{Strict: true, Logger: logger})
	if err != nil {
		logger.Warn("cache entry is not a readable container", "key", key, "err", err)
		return nil, false
	}
	return res.Value, true
}

// store checkpoints g under key. Failures are logged; a run never fails
// because its cache is unavailable.
func (r *Runner) store(ctx context.Context, logger *log.Logger, key string, g value.Grouping) {
	var buf bytes.Buffer
	if err := persist.Encode(&buf, g, persist.Options{Compression: r.Compression, Logger: logger}); err != nil {
		logger.Warn("encode checkpoint failed", "key", key, "err", err)
		return
	}
	if err := r.Cache.Set(ctx, key, buf.Bytes(), r.TTL); err != nil {
		logger.Warn("cache write failed", "key", key, "err", err)
	}
}

func checkpointTable(g value.Grouping, fields []string) (*value.Table, error) {
	seq, ok := g[checkpointFields].(*value.Sequence)
	if !ok || !slices.Equal(seq.Texts(), fields) {
		return nil, errors.New(errors.ErrCodeFormat, "checkpoint fields do not match batch")
	}
	t, ok := g[checkpointData].(*value.Table)
	if !ok {
		return nil, errors.New(errors.ErrCodeFormat, "checkpoint has no table")
	}
	return t, nil
}

func unique(vs []string) []string {
	out := slices.Clone(vs)
	sort.Strings(out)
	return slices.Compact(out)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
