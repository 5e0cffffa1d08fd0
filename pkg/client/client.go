// Package client is the public entry point for replaying cached market data.
//
//	c := client.New("", "/data/tardis-cache", os.Getenv("TARDIS_API_KEY"))
//	seq, err := c.Replay(ctx, "bitmex", "2019-06-01", "2019-06-02",
//		[]client.Filter{client.NewFilter("trade", "XBTUSD")}, true)
//	if err != nil {
//		return err
//	}
//	for rec, err := range seq {
//		...
//	}
package client

import (
	"context"
	"iter"
	"time"

	"github.com/SmitUplenchwar2687/tickreplay/internal/config"
	"github.com/SmitUplenchwar2687/tickreplay/internal/feed"
	"github.com/SmitUplenchwar2687/tickreplay/internal/logger"
	"github.com/SmitUplenchwar2687/tickreplay/internal/replay"
	"github.com/SmitUplenchwar2687/tickreplay/internal/slice"
	"github.com/SmitUplenchwar2687/tickreplay/pkg/clock"
)

// Filter selects one channel and optionally a set of symbols.
type Filter = feed.Filter

// Response is one replayed record.
type Response = feed.Response

// Summary aggregates statistics of one replay.
type Summary = replay.Summary

// Logger is the structured logger the client reports to.
type Logger = logger.Interface

// Notifier wakes a waiting replay when a slice is announced.
type Notifier = slice.Notifier

// NewFilter creates a filter for the channel.
func NewFilter(name string, symbols ...string) Filter {
	return feed.NewFilter(name, symbols...)
}

// Client replays slices from a local cache.
type Client struct {
	endpoint string
	apiKey   string
	replayer *replay.Replayer
}

type settings struct {
	clock        clock.Clock
	logger       Logger
	notifier     Notifier
	pollInterval time.Duration
	waitTimeout  time.Duration
}

// Option configures a Client.
type Option func(*settings)

// WithClock sets the clock used for waiting and timing.
func WithClock(c clock.Clock) Option {
	return func(s *settings) { s.clock = c }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithPollInterval sets how often a missing slice is checked for.
func WithPollInterval(d time.Duration) Option {
	return func(s *settings) { s.pollInterval = d }
}

// WithWaitTimeout bounds the wait for one slice. Zero waits forever.
func WithWaitTimeout(d time.Duration) Option {
	return func(s *settings) { s.waitTimeout = d }
}

// WithNotifier wakes waiting replays as soon as a slice is announced.
func WithNotifier(n Notifier) Option {
	return func(s *settings) { s.notifier = n }
}

// New creates a client. An empty endpoint uses the default tardis API URL
// and an empty cacheDir uses <tmp>/.tardis-cache. The endpoint and API key
// are kept for the component that fills the cache; replays only read
// cacheDir.
func New(endpoint, cacheDir, apiKey string, opts ...Option) *Client {
	def := config.Default()
	if endpoint == "" {
		endpoint = def.Endpoint
	}
	if cacheDir == "" {
		cacheDir = def.CacheDir
	}

	s := settings{
		clock:        clock.NewRealClock(),
		logger:       logger.Nop(),
		pollInterval: def.Replay.PollInterval,
	}
	for _, opt := range opts {
		opt(&s)
	}

	waiterOpts := []slice.WaiterOption{
		slice.WithClock(s.clock),
		slice.WithPollInterval(s.pollInterval),
		slice.WithTimeout(s.waitTimeout),
	}
	if s.notifier != nil {
		waiterOpts = append(waiterOpts, slice.WithNotifier(s.notifier))
	}

	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		replayer: replay.New(cacheDir,
			replay.WithWaiter(slice.NewWaiter(waiterOpts...)),
			replay.WithClock(s.clock),
			replay.WithLogger(s.logger),
		),
	}
}

// Endpoint returns the configured API endpoint.
func (c *Client) Endpoint() string { return c.endpoint }

// CacheDir returns the cache root the client reads from.
func (c *Client) CacheDir() string { return c.replayer.CacheDir() }

// Replay validates the arguments and returns the records of every slice in
// [from, to), one minute at a time. Invalid arguments fail here, before any
// file is touched. Ranging over the sequence waits for slices that do not
// exist yet; breaking out of the loop stops the replay.
func (c *Client) Replay(ctx context.Context, exchange, from, to string, filters []Filter, decode bool) (iter.Seq2[Response, error], error) {
	return c.replayer.Replay(ctx, feed.Request{
		Exchange:       exchange,
		From:           from,
		To:             to,
		Filters:        filters,
		DecodeResponse: decode,
	})
}

// Run replays like Replay and calls fn for every record. An error from fn
// stops the replay and is returned.
func (c *Client) Run(ctx context.Context, exchange, from, to string, filters []Filter, decode bool, fn func(Response) error) (*Summary, error) {
	return c.replayer.Run(ctx, feed.Request{
		Exchange:       exchange,
		From:           from,
		To:             to,
		Filters:        filters,
		DecodeResponse: decode,
	}, fn)
}
