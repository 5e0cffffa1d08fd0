// Package slice reads and writes cache slices: gzip files holding one
// minute of newline-delimited messages for one exchange and filter set.
//
// Each line is a fixed-width local timestamp, a space, and the message
// payload:
//
//	2019-06-01T00:00:00.2386600Z {"table":"trade","action":"insert",...}
//
// The timestamp is TimestampWidth bytes wide and its first ParseWidth bytes
// carry microsecond precision.
package slice

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"time"

	"github.com/SmitUplenchwar2687/tickreplay/internal/errs"
	"github.com/SmitUplenchwar2687/tickreplay/internal/feed"
)

const (
	// TimestampWidth is the width of the producer's timestamp prefix,
	// which is followed by a single space.
	TimestampWidth = 28
	// ParseWidth is how much of the prefix is parsed: the trailing
	// seventh fractional digit and the Z are dropped.
	ParseWidth = TimestampWidth - 2
	// TimestampLayout parses the first ParseWidth bytes of a line.
	TimestampLayout = "2006-01-02T15:04:05.999999"

	// fractionOffset is where the '.' before the fraction sits.
	fractionOffset = len("2006-01-02T15:04:05")

	readBufferSize = 64 * 1024
)

// Stats counts what a decode pass saw. Lines includes empty lines.
type Stats struct {
	Lines      int
	EmptyLines int
	Records    int
}

// Decode returns a one-pass sequence over the records in the slice at path.
// The file is opened when iteration starts and closed when it ends, fails,
// or the consumer stops early. After the first error nothing more is
// yielded.
func Decode(path string, decode bool) iter.Seq2[feed.Response, error] {
	return DecodeWithStats(path, decode, nil)
}

// DecodeWithStats is Decode that also fills stats, if non-nil, as lines are
// consumed.
func DecodeWithStats(path string, decode bool, stats *Stats) iter.Seq2[feed.Response, error] {
	if stats == nil {
		stats = &Stats{}
	}
	return func(yield func(feed.Response, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(feed.Response{}, errs.CorruptSlice(path, err))
			return
		}
		defer f.Close()

		gz, err := gzip.NewReader(f)
		if err != nil {
			yield(feed.Response{}, errs.CorruptSlice(path, err))
			return
		}
		defer gz.Close()

		r := bufio.NewReaderSize(gz, readBufferSize)
		for lineNo := 1; ; lineNo++ {
			line, err := r.ReadBytes('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				yield(feed.Response{}, errs.CorruptSlice(path, err))
				return
			}
			if len(line) == 0 && err != nil {
				return
			}

			stats.Lines++
			line = bytes.TrimRight(line, "\r\n")
			if len(line) == 0 {
				stats.EmptyLines++
			} else {
				resp, perr := ParseLine(line, decode)
				if perr != nil {
					yield(feed.Response{}, errs.MalformedRecord(path, perr, "line %d", lineNo))
					return
				}
				stats.Records++
				if !yield(resp, nil) {
					return
				}
			}

			if err != nil {
				return
			}
		}
	}
}

// ParseLine splits one non-empty line into a Response. In raw mode it never
// fails.
func ParseLine(line []byte, decode bool) (feed.Response, error) {
	var resp feed.Response

	idx := delimiterIndex(line)
	if idx < 0 {
		if decode {
			return resp, fmt.Errorf("no delimiter within the first %d bytes", TimestampWidth+1)
		}
		resp.RawLocalTimestamp = line
		resp.RawMessage = []byte{}
		return resp, nil
	}

	resp.RawLocalTimestamp = line[:idx]
	resp.RawMessage = line[idx+1:]
	if !decode {
		return resp, nil
	}

	ts, err := ParseTimestamp(resp.RawLocalTimestamp)
	if err != nil {
		return resp, err
	}
	var msg any
	if err := json.Unmarshal(resp.RawMessage, &msg); err != nil {
		return resp, fmt.Errorf("invalid message payload: %w", err)
	}

	resp.LocalTimestamp = ts
	resp.Message = msg
	resp.Decoded = true
	return resp, nil
}

// ParseTimestamp parses a local timestamp prefix as UTC with microsecond
// precision. The fractional part is required.
func ParseTimestamp(prefix []byte) (time.Time, error) {
	if len(prefix) > ParseWidth {
		prefix = prefix[:ParseWidth]
	}
	if len(prefix) <= fractionOffset+1 || prefix[fractionOffset] != '.' {
		return time.Time{}, fmt.Errorf("invalid local timestamp %q: missing fractional seconds", prefix)
	}
	ts, err := time.ParseInLocation(TimestampLayout, string(prefix), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid local timestamp %q: %w", prefix, err)
	}
	return ts, nil
}

// delimiterIndex finds the space ending the timestamp. The producer puts it
// at TimestampWidth; shorter prefixes are accepted.
func delimiterIndex(line []byte) int {
	limit := min(len(line), TimestampWidth+1)
	return bytes.IndexByte(line[:limit], ' ')
}
