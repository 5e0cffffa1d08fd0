// Package cachepath maps a slice to its location in the local cache.
//
// The layout is a contract shared with the downloader that fills the cache,
// so it is versioned. SchemeV1 is:
//
//	<cacheDir>/feeds/<exchange>/<filtersHash>/<YYYY>/<MM>/<DD>/<HH>/<mm>.json.gz
//
// filtersHash is "default" when no filters are given, otherwise the hex
// SHA-256 of the filters serialized as a compact JSON array in the order
// given, with "symbols" omitted for all-symbol filters. Time fields come from
// the UTC slice start at minute granularity.
package cachepath

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/SmitUplenchwar2687/tickreplay/internal/feed"
)

// Scheme identifies a cache layout version.
type Scheme int

const (
	// SchemeV1 is the feeds/<exchange>/<hash>/<date path>.json.gz layout.
	SchemeV1 Scheme = 1

	// DefaultFiltersHash names the directory of unfiltered slices.
	DefaultFiltersHash = "default"
	// Extension is appended to every slice file.
	Extension = ".json.gz"

	feedsDir = "feeds"
)

// Resolve returns the SchemeV1 path of the slice starting at ts.
func Resolve(cacheDir, exchange string, ts time.Time, filters []feed.Filter) string {
	return SchemeV1.Resolve(cacheDir, exchange, ts, filters)
}

// Resolve returns the path of the slice starting at ts under this scheme.
func (s Scheme) Resolve(cacheDir, exchange string, ts time.Time, filters []feed.Filter) string {
	switch s {
	case SchemeV1:
		return filepath.Join(cacheDir, feedsDir, exchange, FiltersHash(filters), datePath(ts)+Extension)
	default:
		panic(fmt.Sprintf("cachepath: unknown scheme %d", int(s)))
	}
}

// FiltersHash returns the directory name for a filter set.
func FiltersHash(filters []feed.Filter) string {
	if len(filters) == 0 {
		return DefaultFiltersHash
	}
	// Marshal of []feed.Filter cannot fail.
	data, _ := json.Marshal(filters)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func datePath(ts time.Time) string {
	ts = ts.UTC()
	return filepath.Join(
		fmt.Sprintf("%04d", ts.Year()),
		fmt.Sprintf("%02d", int(ts.Month())),
		fmt.Sprintf("%02d", ts.Day()),
		fmt.Sprintf("%02d", ts.Hour()),
		fmt.Sprintf("%02d", ts.Minute()),
	)
}
