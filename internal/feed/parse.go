package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/SmitUplenchwar2687/tickreplay/internal/errs"
)

// isoLayouts are the date/time forms accepted for request bounds, without
// zone designators. A trailing Z or numeric offset is handled separately.
var isoLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
}

// ParseISO parses an ISO-8601 date or date-time. Values without a zone are
// taken as UTC; values with one are converted to UTC.
func ParseISO(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
		for _, zone := range []string{"Z07:00", "Z0700"} {
			if t, err := time.Parse(layout+zone, s); err == nil {
				return t.UTC(), nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("%q is not an ISO date string", s)
}

type rawFilter struct {
	Name    json.RawMessage `json:"name"`
	Symbols json.RawMessage `json:"symbols"`
}

// ParseFilters decodes a JSON filter list, reporting type errors the way
// request validation does. Empty input and "null" mean no filtering.
func ParseFilters(data []byte) ([]Filter, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	var raw []rawFilter
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errs.InvalidArgument("filters", "Invalid 'filters' argument. Please provide valid filters Channel list")
	}

	filters := make([]Filter, 0, len(raw))
	for _, r := range raw {
		var name string
		if err := json.Unmarshal(r.Name, &name); err != nil {
			return nil, errs.InvalidArgument("name", "Invalid 'name' argument: %s. Please provide channel name string.", string(r.Name))
		}

		f := Filter{Name: name}
		if len(r.Symbols) > 0 && !bytes.Equal(r.Symbols, []byte("null")) {
			var symbols []string
			if err := json.Unmarshal(r.Symbols, &symbols); err != nil {
				return nil, errs.InvalidArgument("symbols", "Invalid 'symbols[]' argument: %s. Please provide list of symbol strings.", string(r.Symbols))
			}
			f.Symbols = symbols
		}
		filters = append(filters, f)
	}
	return filters, nil
}

// ParseFilterFlag parses the compact CLI form "channel" or
// "channel:SYM1,SYM2".
func ParseFilterFlag(s string) (Filter, error) {
	name, symbols, found := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return Filter{}, errs.InvalidArgument("name", "Invalid filter %q. Please provide channel[:SYMBOL,...].", s)
	}
	if !found {
		return Filter{Name: name}, nil
	}

	var list []string
	for _, sym := range strings.Split(symbols, ",") {
		if sym = strings.TrimSpace(sym); sym != "" {
			list = append(list, sym)
		}
	}
	return NewFilter(name, list...), nil
}
