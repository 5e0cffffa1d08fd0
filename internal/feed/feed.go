// Package feed holds the types shared by the replay pipeline: channel
// filters, replay requests and the records a replay emits.
package feed

import (
	"encoding/json"
	"time"
)

// SliceDuration is the fixed width of one cache slice.
const SliceDuration = 60 * time.Second

// Filter restricts a replay to one channel and, optionally, to a set of
// symbols. A nil Symbols selects every symbol on the channel.
type Filter struct {
	Name    string   `json:"name"`
	Symbols []string `json:"symbols,omitempty"`
}

// NewFilter creates a filter for the channel. The symbols are copied.
func NewFilter(name string, symbols ...string) Filter {
	f := Filter{Name: name}
	if len(symbols) > 0 {
		f.Symbols = append([]string(nil), symbols...)
	}
	return f
}

// AllSymbols reports whether the filter selects every symbol.
func (f Filter) AllSymbols() bool {
	return f.Symbols == nil
}

// Request describes one replay.
type Request struct {
	Exchange string   `json:"exchange"`
	From     string   `json:"from"`
	To       string   `json:"to"`
	Filters  []Filter `json:"filters,omitempty"`
	// DecodeResponse switches between parsed and raw record output.
	DecodeResponse bool `json:"decode_response"`
}

// Range parses From and To. It assumes the request passed validation.
func (r Request) Range() (from, to time.Time, err error) {
	from, err = ParseISO(r.From)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err = ParseISO(r.To)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

// Response is one replayed message.
//
// The raw fields are always set and alias nothing else. LocalTimestamp and
// Message are only set when the request asked for decoding.
type Response struct {
	LocalTimestamp time.Time
	Message        any

	RawLocalTimestamp []byte
	RawMessage        []byte
	Decoded           bool
}

// MarshalJSON writes {"localTimestamp":..., "message":...}. Raw records keep
// the timestamp text as written and embed the payload verbatim when it is
// valid JSON, as a string otherwise.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Decoded {
		return json.Marshal(struct {
			LocalTimestamp time.Time `json:"localTimestamp"`
			Message        any       `json:"message"`
		}{r.LocalTimestamp, r.Message})
	}

	var msg any = string(r.RawMessage)
	if json.Valid(r.RawMessage) {
		msg = json.RawMessage(r.RawMessage)
	}
	return json.Marshal(struct {
		LocalTimestamp string `json:"localTimestamp"`
		Message        any    `json:"message"`
	}{string(r.RawLocalTimestamp), msg})
}
