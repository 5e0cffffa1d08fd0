package server

import (
	"net/http"

	"github.com/SmitUplenchwar2687/tickreplay/internal/logger"
	"github.com/SmitUplenchwar2687/tickreplay/internal/replay"
	internalserver "github.com/SmitUplenchwar2687/tickreplay/internal/server"
	"github.com/SmitUplenchwar2687/tickreplay/pkg/clock"
)

// Server streams replays over HTTP and WebSocket.
type Server = internalserver.Server

// Option configures a Server.
type Option = internalserver.Option

// Sessions tracks live WebSocket replays.
type Sessions = internalserver.Sessions

// SessionInfo describes one live WebSocket replay.
type SessionInfo = internalserver.SessionInfo

// New creates a server that replays from cacheDir.
func New(addr, cacheDir string, opts ...Option) *Server {
	return internalserver.New(addr, replay.New(cacheDir), opts...)
}

// WithClock sets the clock used for timestamps in responses and logs.
func WithClock(c clock.Clock) Option {
	return internalserver.WithClock(c)
}

// WithLogger sets the request and session logger.
func WithLogger(l logger.Interface) Option {
	return internalserver.WithLogger(l)
}

// LoggingMiddleware logs one debug line per request.
func LoggingMiddleware(next http.Handler, log logger.Interface, clk clock.Clock) http.Handler {
	return internalserver.LoggingMiddleware(next, log, clk)
}
