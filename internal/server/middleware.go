package server

import (
	"bufio"
	"fmt"
	"net"
	"net/http"

	"github.com/SmitUplenchwar2687/tickreplay/internal/clock"
	"github.com/SmitUplenchwar2687/tickreplay/internal/logger"
)

// statusRecorder keeps the response status for logging. It passes Flush
// and Hijack through so streaming and WebSocket handlers still work.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// LoggingMiddleware logs one debug line per request once it completes.
func LoggingMiddleware(next http.Handler, log logger.Interface, clk clock.Clock) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := clk.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		remote := r.RemoteAddr
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			remote = forwarded
		}
		log.Debug("http request",
			logger.NewField("method", r.Method),
			logger.NewField("path", r.URL.Path),
			logger.NewField("status", rec.status),
			logger.NewField("remote", remote),
			logger.NewField("duration", clk.Since(start).String()))
	})
}
