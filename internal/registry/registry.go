// Package registry lists the exchanges the provider serves and the channels
// each exchange exposes. It is consulted by request validation only.
package registry

import (
	"sort"
)

// Registry maps exchange identifiers to their channel names.
// It is immutable after construction and safe for concurrent use.
type Registry struct {
	exchanges []string
	channels  map[string][]string
}

// New creates a registry from an exchange -> channels table. Exchanges are
// listed in sorted order; channel order is kept as given.
func New(table map[string][]string) *Registry {
	r := &Registry{
		exchanges: make([]string, 0, len(table)),
		channels:  make(map[string][]string, len(table)),
	}
	for exchange, channels := range table {
		r.exchanges = append(r.exchanges, exchange)
		r.channels[exchange] = append([]string(nil), channels...)
	}
	sort.Strings(r.exchanges)
	return r
}

// Exchanges returns every known exchange identifier.
func (r *Registry) Exchanges() []string {
	return append([]string(nil), r.exchanges...)
}

// IsExchange reports whether exchange is known.
func (r *Registry) IsExchange(exchange string) bool {
	_, ok := r.channels[exchange]
	return ok
}

// Channels returns the channels registered for exchange, or nil.
func (r *Registry) Channels(exchange string) []string {
	channels, ok := r.channels[exchange]
	if !ok {
		return nil
	}
	return append([]string(nil), channels...)
}

// IsChannel reports whether name is a channel of exchange.
func (r *Registry) IsChannel(exchange, name string) bool {
	for _, c := range r.channels[exchange] {
		if c == name {
			return true
		}
	}
	return false
}

var defaultRegistry = New(defaultChannels)

// Default returns the built-in registry.
func Default() *Registry {
	return defaultRegistry
}
