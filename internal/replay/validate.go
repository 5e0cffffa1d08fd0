package replay

import (
	"strings"

	"github.com/SmitUplenchwar2687/tickreplay/internal/errs"
	"github.com/SmitUplenchwar2687/tickreplay/internal/feed"
	"github.com/SmitUplenchwar2687/tickreplay/internal/registry"
)

// Validate checks a request against the registry. Rules are applied in
// order and the first failure is returned as an invalid_argument error.
// It performs no I/O and does not modify req.
func Validate(req feed.Request, reg *registry.Registry) error {
	if !reg.IsExchange(req.Exchange) {
		return errs.InvalidArgument("exchange",
			"Invalid 'exchange' argument: %s. Please provide one of the following exchanges: %s.",
			req.Exchange, strings.Join(reg.Exchanges(), ", "))
	}

	from, err := feed.ParseISO(req.From)
	if err != nil {
		return errs.InvalidArgument("from_date",
			"Invalid 'from_date' argument: %s. Please provide valid ISO date string.", req.From)
	}
	to, err := feed.ParseISO(req.To)
	if err != nil {
		return errs.InvalidArgument("to_date",
			"Invalid 'to_date' argument: %s. Please provide valid ISO date string.", req.To)
	}
	if !from.Before(to) {
		return errs.InvalidArgument("to_date",
			"Invalid 'from_date' and 'to_date' arguments combination. Please provide 'to_date' date string that is later than 'from_date'.")
	}

	for _, f := range req.Filters {
		if !reg.IsChannel(req.Exchange, f.Name) {
			return errs.InvalidArgument("name",
				"Invalid 'name' argument: %s. Please provide one of the following channels: %s.",
				f.Name, strings.Join(reg.Channels(req.Exchange), ", "))
		}
		for _, s := range f.Symbols {
			if s == "" {
				return errs.InvalidArgument("symbols",
					"Invalid 'symbols[]' argument: %q. Please provide list of symbol strings.", f.Symbols)
			}
		}
	}
	return nil
}
