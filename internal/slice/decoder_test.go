package slice

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SmitUplenchwar2687/tickreplay/internal/errs"
	"github.com/SmitUplenchwar2687/tickreplay/internal/feed"
)

// writeGzip writes content verbatim as a gzip file.
func writeGzip(t *testing.T, content string) string {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	path := filepath.Join(t.TempDir(), "00.json.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func collect(t *testing.T, path string, decode bool) ([]feed.Response, error) {
	t.Helper()
	var out []feed.Response
	for resp, err := range Decode(path, decode) {
		if err != nil {
			return out, err
		}
		out = append(out, resp)
	}
	return out, nil
}

func TestDecode_RoundTrip(t *testing.T) {
	path := writeGzip(t, "2021-01-01T00:00:00.123456 {\"a\":1}\n")

	got, err := collect(t, path, true)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.True(t, got[0].Decoded)
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 123456000, time.UTC), got[0].LocalTimestamp)
	assert.Equal(t, map[string]any{"a": float64(1)}, got[0].Message)
}

func TestDecode_RawMode(t *testing.T) {
	line := "2021-01-01T00:00:00.123456 {\"a\":1}"
	path := writeGzip(t, line+"\n")

	got, err := collect(t, path, false)
	require.NoError(t, err)
	require.Len(t, got, 1)

	r := got[0]
	assert.False(t, r.Decoded)
	assert.Nil(t, r.Message)
	assert.Equal(t, "2021-01-01T00:00:00.123456", string(r.RawLocalTimestamp))
	assert.Equal(t, `{"a":1}`, string(r.RawMessage))

	rebuilt := string(r.RawLocalTimestamp) + " " + string(r.RawMessage)
	assert.Equal(t, line, rebuilt)
}

func TestDecode_ProducerFormat(t *testing.T) {
	path := writeGzip(t, "2019-06-01T00:00:00.2386600Z {\"table\":\"trade\"}\n")

	got, err := collect(t, path, true)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, time.Date(2019, 6, 1, 0, 0, 0, 238660000, time.UTC), got[0].LocalTimestamp)
	assert.Equal(t, map[string]any{"table": "trade"}, got[0].Message)
	assert.Len(t, got[0].RawLocalTimestamp, TimestampWidth)
}

func TestDecode_SkipsEmptyLines(t *testing.T) {
	path := writeGzip(t, "\n2021-01-01T00:00:00.123456 {\"a\":1}\n")

	var stats Stats
	var got []feed.Response
	for resp, err := range DecodeWithStats(path, true, &stats) {
		require.NoError(t, err)
		got = append(got, resp)
	}

	assert.Len(t, got, 1)
	assert.Equal(t, Stats{Lines: 2, EmptyLines: 1, Records: 1}, stats)
}

func TestDecode_LastLineWithoutNewline(t *testing.T) {
	path := writeGzip(t, "2021-01-01T00:00:00.000001 1\n2021-01-01T00:00:00.000002 2")

	got, err := collect(t, path, true)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, float64(2), got[1].Message)
}

func TestDecode_CRLF(t *testing.T) {
	path := writeGzip(t, "2021-01-01T00:00:00.000001 {\"a\":1}\r\n")

	got, err := collect(t, path, false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, `{"a":1}`, string(got[0].RawMessage))
}

func TestDecode_MalformedTimestamp(t *testing.T) {
	path := writeGzip(t, "not-a-timestamp-at-all-xxxx {\"a\":1}\n")

	_, err := collect(t, path, true)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeMalformedRecord))
}

func TestDecode_MalformedPayload(t *testing.T) {
	path := writeGzip(t, "2021-01-01T00:00:00.000001 {\"a\":1}\n2021-01-01T00:00:00.000002 {oops\n")

	got, err := collect(t, path, true)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeMalformedRecord))
	assert.Len(t, got, 1, "records before the bad line are still emitted")
}

func TestDecode_RawModeNeverValidates(t *testing.T) {
	path := writeGzip(t, "garbage {oops\nnodelimiteratallnodelimiteratall\n")

	got, err := collect(t, path, false)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "garbage", string(got[0].RawLocalTimestamp))
	assert.Equal(t, "nodelimiteratallnodelimiteratall", string(got[1].RawLocalTimestamp))
	assert.Empty(t, got[1].RawMessage)
}

func TestDecode_MissingDelimiterDecoded(t *testing.T) {
	path := writeGzip(t, "2021-01-01T00:00:00.000001xx{\"a\":1}\n")

	_, err := collect(t, path, true)
	assert.True(t, errs.Is(err, errs.CodeMalformedRecord))
}

func TestDecode_NotGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.json.gz")
	require.NoError(t, os.WriteFile(path, []byte("2021-01-01T00:00:00.000001 {}\n"), 0o644))

	_, err := collect(t, path, false)
	assert.True(t, errs.Is(err, errs.CodeCorruptSlice))
}

func TestDecode_Truncated(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	for i := 0; i < 200; i++ {
		gz.Write(FormatLine(time.Date(2021, 1, 1, 0, 0, i%60, 0, time.UTC), []byte(`{"seq":1}`)))
		gz.Write([]byte{'\n'})
	}
	require.NoError(t, gz.Close())

	data := buf.Bytes()
	path := filepath.Join(t.TempDir(), "truncated.json.gz")
	require.NoError(t, os.WriteFile(path, data[:len(data)/2], 0o644))

	_, err := collect(t, path, true)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeCorruptSlice))
}

func TestDecode_MissingFile(t *testing.T) {
	_, err := collect(t, filepath.Join(t.TempDir(), "missing.json.gz"), true)
	assert.True(t, errs.Is(err, errs.CodeCorruptSlice))
}

func TestDecode_EarlyBreakStopsReading(t *testing.T) {
	path := writeGzip(t, "2021-01-01T00:00:00.000001 1\n2021-01-01T00:00:00.000002 2\n2021-01-01T00:00:00.000003 3\n")

	var stats Stats
	for _, err := range DecodeWithStats(path, true, &stats) {
		require.NoError(t, err)
		break
	}
	assert.Equal(t, 1, stats.Records)
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp([]byte("2021-01-01T00:00:00.5"))
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, time.Duration(ts.Nanosecond()))

	_, err = ParseTimestamp([]byte("2021-01-01"))
	assert.Error(t, err)

	_, err = ParseTimestamp([]byte("2021-01-01T00:00:00"))
	assert.Error(t, err, "fraction is required")

	_, err = ParseTimestamp([]byte("2021-01-01T00:00:00."))
	assert.Error(t, err, "fraction needs at least one digit")
}

func TestDecode_TimestampWithoutFraction(t *testing.T) {
	path := writeGzip(t, "2021-01-01T00:00:00 {\"a\":1}\n")

	_, err := collect(t, path, true)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeMalformedRecord))

	recs, err := collect(t, path, false)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
