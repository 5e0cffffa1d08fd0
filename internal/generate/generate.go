// Package generate writes synthetic cache slices, for demos and for tests
// that need a populated cache without recorded market data.
package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/SmitUplenchwar2687/tickreplay/internal/cachepath"
	"github.com/SmitUplenchwar2687/tickreplay/internal/feed"
	"github.com/SmitUplenchwar2687/tickreplay/internal/notify"
	"github.com/SmitUplenchwar2687/tickreplay/internal/slice"
)

const (
	// PatternSteady spreads messages evenly.
	PatternSteady = "steady"
	// PatternBurst clusters messages with quiet gaps.
	PatternBurst = "burst"
	// PatternRamp makes messages denser over time.
	PatternRamp = "ramp"
)

// DefaultSymbols is used when no filter names symbols.
var DefaultSymbols = []string{"XBTUSD", "ETHUSD"}

// Options controls what is generated.
type Options struct {
	Exchange string
	Filters  []feed.Filter
	Count    int
	Duration time.Duration
	Pattern  string
	Start    time.Time
	Seed     int64
}

// DefaultOptions returns the CLI defaults.
func DefaultOptions() Options {
	return Options{
		Exchange: "bitmex",
		Count:    600,
		Duration: 5 * time.Minute,
		Pattern:  PatternSteady,
	}
}

// Record is one generated message.
type Record struct {
	Timestamp time.Time
	Payload   []byte
}

type trade struct {
	Timestamp string  `json:"timestamp"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Size      int     `json:"size"`
	Price     float64 `json:"price"`
}

type message struct {
	Table  string  `json:"table"`
	Action string  `json:"action"`
	Data   []trade `json:"data"`
}

// Records generates opts.Count messages in timestamp order.
func Records(opts Options) ([]Record, error) {
	if opts.Count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", opts.Count)
	}
	if opts.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %s", opts.Duration)
	}
	if opts.Pattern == "" {
		opts.Pattern = PatternSteady
	}
	if opts.Start.IsZero() {
		opts.Start = time.Now().UTC().Truncate(feed.SliceDuration)
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}

	rng := rand.New(rand.NewSource(opts.Seed))

	var times []time.Time
	switch opts.Pattern {
	case PatternBurst:
		times = burstTimes(rng, opts.Start, opts.Count, opts.Duration)
	case PatternRamp:
		times = rampTimes(opts.Start, opts.Count, opts.Duration)
	default:
		times = steadyTimes(opts.Start, opts.Count, opts.Duration)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	table, symbols := tableAndSymbols(opts.Filters)
	prices := make(map[string]float64, len(symbols))
	for i, s := range symbols {
		prices[s] = 8000 + float64(i)*100
	}

	records := make([]Record, len(times))
	for i, ts := range times {
		sym := symbols[rng.Intn(len(symbols))]
		prices[sym] += float64(rng.Intn(11)-5) * 0.5
		side := "Buy"
		if rng.Intn(2) == 0 {
			side = "Sell"
		}

		payload, err := json.Marshal(message{
			Table:  table,
			Action: "insert",
			Data: []trade{{
				Timestamp: ts.UTC().Format("2006-01-02T15:04:05.000Z"),
				Symbol:    sym,
				Side:      side,
				Size:      1 + rng.Intn(5000),
				Price:     prices[sym],
			}},
		})
		if err != nil {
			return nil, fmt.Errorf("encoding message: %w", err)
		}
		records[i] = Record{Timestamp: ts, Payload: payload}
	}
	return records, nil
}

// WriteCache generates records and writes one slice per minute of
// [Start, Start+Duration) under cacheDir, empty minutes included. Each
// written path is announced through pub when pub is non-nil.
func WriteCache(ctx context.Context, cacheDir string, opts Options, pub notify.Publisher) ([]string, error) {
	if opts.Start.IsZero() {
		opts.Start = time.Now().UTC().Truncate(feed.SliceDuration)
	}
	records, err := Records(opts)
	if err != nil {
		return nil, err
	}

	buckets := make(map[time.Time][][]byte)
	for _, rec := range records {
		minute := rec.Timestamp.UTC().Truncate(feed.SliceDuration)
		buckets[minute] = append(buckets[minute], slice.FormatLine(rec.Timestamp, rec.Payload))
	}

	end := opts.Start.Add(opts.Duration)
	var paths []string
	for minute := opts.Start.UTC().Truncate(feed.SliceDuration); minute.Before(end); minute = minute.Add(feed.SliceDuration) {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		path := cachepath.Resolve(cacheDir, opts.Exchange, minute, opts.Filters)
		if err := slice.WriteFile(path, buckets[minute]); err != nil {
			return paths, err
		}
		paths = append(paths, path)
		if pub != nil {
			if err := pub.Publish(ctx, path); err != nil {
				return paths, err
			}
		}
	}
	return paths, nil
}

func tableAndSymbols(filters []feed.Filter) (string, []string) {
	table := "trade"
	var symbols []string
	for i, f := range filters {
		if i == 0 {
			table = f.Name
		}
		symbols = append(symbols, f.Symbols...)
	}
	if len(symbols) == 0 {
		symbols = DefaultSymbols
	}
	return table, symbols
}

func steadyTimes(start time.Time, count int, dur time.Duration) []time.Time {
	interval := dur / time.Duration(count)
	times := make([]time.Time, count)
	for i := range times {
		times[i] = start.Add(time.Duration(i) * interval)
	}
	return times
}

func burstTimes(rng *rand.Rand, start time.Time, count int, dur time.Duration) []time.Time {
	times := make([]time.Time, 0, count)
	numBursts := 4
	burstSize := count / numBursts
	burstGap := dur / time.Duration(numBursts)

	for b := 0; b < numBursts; b++ {
		burstStart := start.Add(time.Duration(b) * burstGap)
		for i := 0; i < burstSize; i++ {
			ts := burstStart.Add(time.Duration(rng.Intn(1000)) * time.Millisecond)
			if !ts.Before(start.Add(dur)) {
				ts = burstStart
			}
			times = append(times, ts)
		}
	}

	for len(times) < count {
		times = append(times, start.Add(time.Duration(rng.Int63n(int64(dur)))))
	}
	return times
}

func rampTimes(start time.Time, count int, dur time.Duration) []time.Time {
	times := make([]time.Time, count)
	for i := range times {
		frac := float64(i) / float64(count)
		times[i] = start.Add(time.Duration(frac * frac * float64(dur)))
	}
	return times
}
