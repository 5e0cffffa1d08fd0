package feed

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SmitUplenchwar2687/tickreplay/internal/errs"
)

func TestParseISO(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2021-01-01", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2021-01-01T00:02", time.Date(2021, 1, 1, 0, 2, 0, 0, time.UTC)},
		{"2021-01-01T00:02:03", time.Date(2021, 1, 1, 0, 2, 3, 0, time.UTC)},
		{"2021-01-01 00:02:03", time.Date(2021, 1, 1, 0, 2, 3, 0, time.UTC)},
		{"2021-01-01T00:00:00.123456", time.Date(2021, 1, 1, 0, 0, 0, 123456000, time.UTC)},
		{"2021-01-01T00:00:00Z", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2021-01-01T02:00:00+02:00", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseISO(tt.in)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestParseISO_Invalid(t *testing.T) {
	for _, in := range []string{"", "yesterday", "2021-13-01", "01/02/2021"} {
		_, err := ParseISO(in)
		assert.Error(t, err, "ParseISO(%q)", in)
	}
}

func TestParseFilters(t *testing.T) {
	filters, err := ParseFilters([]byte(`[{"name":"trade","symbols":["XBTUSD"]},{"name":"orderBookL2"}]`))
	require.NoError(t, err)
	require.Len(t, filters, 2)
	assert.Equal(t, NewFilter("trade", "XBTUSD"), filters[0])
	assert.True(t, filters[1].AllSymbols())
}

func TestParseFilters_Empty(t *testing.T) {
	for _, in := range []string{"", "  ", "null"} {
		filters, err := ParseFilters([]byte(in))
		require.NoError(t, err)
		assert.Nil(t, filters)
	}
}

func TestParseFilters_TypeErrors(t *testing.T) {
	tests := map[string]string{
		"not a list":          `{"name":"trade"}`,
		"name not string":     `[{"name":5}]`,
		"symbols not list":    `[{"name":"trade","symbols":"XBTUSD"}]`,
		"symbol not a string": `[{"name":"trade","symbols":["XBTUSD",1]}]`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFilters([]byte(in))
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.CodeInvalidArgument))
		})
	}
}

func TestParseFilterFlag(t *testing.T) {
	f, err := ParseFilterFlag("trade:XBTUSD, ETHUSD")
	require.NoError(t, err)
	assert.Equal(t, NewFilter("trade", "XBTUSD", "ETHUSD"), f)

	f, err = ParseFilterFlag("orderBookL2")
	require.NoError(t, err)
	assert.True(t, f.AllSymbols())

	_, err = ParseFilterFlag(":XBTUSD")
	assert.True(t, errs.Is(err, errs.CodeInvalidArgument))
}

func TestRequestRange(t *testing.T) {
	from, to, err := Request{From: "2021-01-01", To: "2021-01-01T00:02:00"}.Range()
	require.NoError(t, err)
	assert.Equal(t, 2*SliceDuration, to.Sub(from))
}

func TestNewFilter_CopiesSymbols(t *testing.T) {
	symbols := []string{"XBTUSD"}
	f := NewFilter("trade", symbols...)
	symbols[0] = "mutated"
	assert.Equal(t, []string{"XBTUSD"}, f.Symbols)
}

func TestResponse_MarshalJSON(t *testing.T) {
	decoded := Response{
		LocalTimestamp: time.Date(2019, 6, 1, 0, 0, 0, 238660000, time.UTC),
		Message:        map[string]any{"table": "trade"},
		Decoded:        true,
	}
	got, err := json.Marshal(decoded)
	require.NoError(t, err)
	assert.JSONEq(t, `{"localTimestamp":"2019-06-01T00:00:00.23866Z","message":{"table":"trade"}}`, string(got))

	raw := Response{
		RawLocalTimestamp: []byte("2019-06-01T00:00:00.2386600Z"),
		RawMessage:        []byte(`{"table":"trade"}`),
	}
	got, err = json.Marshal(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"localTimestamp":"2019-06-01T00:00:00.2386600Z","message":{"table":"trade"}}`, string(got))

	raw.RawMessage = []byte("{oops")
	got, err = json.Marshal(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"localTimestamp":"2019-06-01T00:00:00.2386600Z","message":"{oops"}`, string(got))
}
