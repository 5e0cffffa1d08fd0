package replay

import (
	"context"
	"fmt"
	"iter"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/SmitUplenchwar2687/tickreplay/internal/cachepath"
	"github.com/SmitUplenchwar2687/tickreplay/internal/clock"
	"github.com/SmitUplenchwar2687/tickreplay/internal/errs"
	"github.com/SmitUplenchwar2687/tickreplay/internal/feed"
	"github.com/SmitUplenchwar2687/tickreplay/internal/logger"
	"github.com/SmitUplenchwar2687/tickreplay/internal/metrics"
	"github.com/SmitUplenchwar2687/tickreplay/internal/registry"
	"github.com/SmitUplenchwar2687/tickreplay/internal/slice"
)

const tracerName = "github.com/SmitUplenchwar2687/tickreplay/internal/replay"

// Replayer replays cached slices in chronological order.
//
// A Replayer holds configuration only; every Replay call owns its own
// cursor, so one Replayer may serve concurrent replays.
type Replayer struct {
	cacheDir string
	registry *registry.Registry
	waiter   *slice.Waiter
	clock    clock.Clock
	logger   logger.Interface
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// Summary aggregates statistics of one replay.
type Summary struct {
	Exchange     string        `json:"exchange"`
	From         time.Time     `json:"from"`
	To           time.Time     `json:"to"`
	Slices       int           `json:"slices"`
	Records      int           `json:"records"`
	EmptyLines   int           `json:"empty_lines"`
	WallDuration time.Duration `json:"wall_duration"`
}

// Option configures a Replayer.
type Option func(*Replayer)

// WithRegistry replaces the built-in exchange registry.
func WithRegistry(reg *registry.Registry) Option {
	return func(r *Replayer) { r.registry = reg }
}

// WithWaiter replaces the default slice waiter.
func WithWaiter(w *slice.Waiter) Option {
	return func(r *Replayer) { r.waiter = w }
}

// WithClock sets the clock used for timing. It does not affect the waiter.
func WithClock(c clock.Clock) Option {
	return func(r *Replayer) { r.clock = c }
}

// WithLogger sets the diagnostics hook. Logging is off by default.
func WithLogger(l logger.Interface) Option {
	return func(r *Replayer) { r.logger = l }
}

// WithMetrics records replay progress in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Replayer) { r.metrics = m }
}

// WithTracerProvider overrides the global OpenTelemetry provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Replayer) { r.tracer = tp.Tracer(tracerName) }
}

// New creates a Replayer reading slices under cacheDir.
func New(cacheDir string, opts ...Option) *Replayer {
	r := &Replayer{
		cacheDir: cacheDir,
		registry: registry.Default(),
		clock:    clock.NewRealClock(),
		logger:   logger.Nop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.waiter == nil {
		r.waiter = slice.NewWaiter()
	}
	return r
}

// CacheDir returns the cache root the replayer reads from.
func (r *Replayer) CacheDir() string {
	return r.cacheDir
}

// Replay validates req and returns the sequence of its records.
//
// Validation errors are returned directly and nothing touches the
// filesystem. Otherwise the sequence walks [From, To) one slice at a time,
// waiting for each slice file before decoding it, and yields records in
// slice order and file order. An error is yielded once and ends the
// sequence. Stopping early closes the slice being read. The sequence can be
// ranged over more than once; each pass starts again at From.
func (r *Replayer) Replay(ctx context.Context, req feed.Request) (iter.Seq2[feed.Response, error], error) {
	if err := Validate(req, r.registry); err != nil {
		return nil, err
	}
	from, to, err := req.Range()
	if err != nil {
		return nil, err
	}
	filters := cloneFilters(req.Filters)

	return func(yield func(feed.Response, error) bool) {
		r.replay(ctx, req.Exchange, from, to, filters, req.DecodeResponse, &Summary{}, yield)
	}, nil
}

// Run replays req, calling cb for every record, and returns a summary.
// An error from cb stops the replay at once and is returned as is. On
// error the summary covers the slices completed before it.
func (r *Replayer) Run(ctx context.Context, req feed.Request, cb func(feed.Response) error) (*Summary, error) {
	if err := Validate(req, r.registry); err != nil {
		return nil, err
	}
	from, to, err := req.Range()
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	var runErr error
	r.replay(ctx, req.Exchange, from, to, cloneFilters(req.Filters), req.DecodeResponse, summary,
		func(resp feed.Response, err error) bool {
			if err != nil {
				runErr = err
				return false
			}
			if cb != nil {
				if err := cb(resp); err != nil {
					runErr = err
					return false
				}
			}
			return true
		})
	return summary, runErr
}

func (r *Replayer) replay(
	ctx context.Context,
	exchange string,
	from, to time.Time,
	filters []feed.Filter,
	decode bool,
	summary *Summary,
	yield func(feed.Response, error) bool,
) {
	if logger.ReplayID(ctx) == "" {
		ctx = logger.WithReplayID(ctx, "")
	}
	ctx, span := r.tracer.Start(ctx, "replay", trace.WithAttributes(
		attribute.String("exchange", exchange),
		attribute.String("from", from.Format(time.RFC3339Nano)),
		attribute.String("to", to.Format(time.RFC3339Nano)),
		attribute.Int("filters", len(filters)),
	))
	defer span.End()
	defer r.metrics.ReplayStarted()()

	start := r.clock.Now()
	summary.Exchange, summary.From, summary.To = exchange, from, to
	defer func() { summary.WallDuration = r.clock.Since(start) }()

	r.logger.DebugContext(ctx, "replay started",
		logger.NewField("exchange", exchange),
		logger.NewField("from", from),
		logger.NewField("to", to),
		logger.NewField("filters", filters))

	fail := func(err error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.metrics.ReplayFailed(string(errs.CodeOf(err)))
		r.logger.ErrorContext(ctx, err, logger.NewField("exchange", exchange))
		yield(feed.Response{}, err)
	}

	for cursor := from; cursor.Before(to); cursor = cursor.Add(feed.SliceDuration) {
		if err := ctx.Err(); err != nil {
			fail(err)
			return
		}

		path := cachepath.Resolve(r.cacheDir, exchange, cursor, filters)
		r.logger.DebugContext(ctx, "getting slice", logger.NewField("path", path))

		waitStart := r.clock.Now()
		if _, err := r.waiter.Wait(ctx, path); err != nil {
			fail(fmt.Errorf("waiting for slice %s: %w", cursor.Format(time.RFC3339), err))
			return
		}
		r.metrics.SliceWaited(exchange, r.clock.Since(waitStart))

		stats, stopped, err := r.emitSlice(ctx, path, decode, yield)
		summary.Records += stats.Records
		summary.EmptyLines += stats.EmptyLines
		if err != nil {
			fail(err)
			return
		}
		if stopped {
			return
		}

		summary.Slices++
		r.metrics.SliceProcessed(exchange, stats.Records)
		r.logger.DebugContext(ctx, "processed slice",
			logger.NewField("path", path),
			logger.NewField("messages_count", stats.Records))
	}

	r.logger.DebugContext(ctx, "replay finished",
		logger.NewField("exchange", exchange),
		logger.NewField("slices", summary.Slices),
		logger.NewField("records", summary.Records),
		logger.NewField("total_time", r.clock.Since(start).String()))
}

// emitSlice yields every record of one slice. stopped reports that the
// consumer asked to stop.
func (r *Replayer) emitSlice(
	ctx context.Context,
	path string,
	decode bool,
	yield func(feed.Response, error) bool,
) (stats slice.Stats, stopped bool, err error) {
	_, span := r.tracer.Start(ctx, "replay.slice", trace.WithAttributes(attribute.String("path", path)))
	defer func() {
		span.SetAttributes(attribute.Int("records", stats.Records))
		span.End()
	}()

	for resp, derr := range slice.DecodeWithStats(path, decode, &stats) {
		if derr != nil {
			return stats, false, derr
		}
		if !yield(resp, nil) {
			return stats, true, nil
		}
	}
	return stats, false, nil
}

func cloneFilters(filters []feed.Filter) []feed.Filter {
	if filters == nil {
		return nil
	}
	out := make([]feed.Filter, len(filters))
	for i, f := range filters {
		out[i] = feed.NewFilter(f.Name, f.Symbols...)
	}
	return out
}
