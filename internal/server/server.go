package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/SmitUplenchwar2687/tickreplay/internal/clock"
	"github.com/SmitUplenchwar2687/tickreplay/internal/errs"
	"github.com/SmitUplenchwar2687/tickreplay/internal/feed"
	"github.com/SmitUplenchwar2687/tickreplay/internal/logger"
	"github.com/SmitUplenchwar2687/tickreplay/internal/metrics"
	"github.com/SmitUplenchwar2687/tickreplay/internal/registry"
	"github.com/SmitUplenchwar2687/tickreplay/internal/replay"
)

// Server exposes replays over HTTP and WebSocket.
type Server struct {
	httpServer *http.Server
	replayer   *replay.Replayer
	registry   *registry.Registry
	clock      clock.Clock
	logger     logger.Interface
	metrics    *metrics.Metrics
	sessions   *Sessions
	mux        *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the clock used for timestamps and request timing.
func WithClock(c clock.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithLogger sets the request and session logger.
func WithLogger(l logger.Interface) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics serves m on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithRegistry sets the registry listed by /api/exchanges. It should be
// the one the replayer validates against.
func WithRegistry(reg *registry.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// New creates a server replaying through rep.
func New(addr string, rep *replay.Replayer, opts ...Option) *Server {
	s := &Server{
		replayer: rep,
		registry: registry.Default(),
		clock:    clock.NewRealClock(),
		logger:   logger.Nop(),
		sessions: NewSessions(),
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           LoggingMiddleware(s.mux, s.logger, s.clock),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/exchanges", s.handleExchanges)
	s.mux.HandleFunc("/api/sessions", s.handleSessions)
	s.mux.HandleFunc("/api/replay", s.handleReplay)
	s.mux.HandleFunc("/ws/replay", s.handleReplayWS)
	if s.metrics != nil {
		s.mux.Handle("/metrics", s.metrics.Handler())
	}
}

// Handler returns the root handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Sessions returns the live WebSocket sessions.
func (s *Server) Sessions() *Sessions {
	return s.sessions
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "tickreplay",
		"status":  "running",
		"time":    s.clock.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type exchangeInfo struct {
	ID       string   `json:"id"`
	Channels []string `json:"channels"`
}

func (s *Server) handleExchanges(w http.ResponseWriter, r *http.Request) {
	ids := s.registry.Exchanges()
	out := make([]exchangeInfo, len(ids))
	for i, id := range ids {
		out[i] = exchangeInfo{ID: id, Channels: s.registry.Channels(id)}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.List())
}

// handleReplay streams a replay as newline-delimited JSON.
// GET /api/replay?exchange=..&from=..&to=..&filters=<json>&decode=true
func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	req, err := parseReplayQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx := logger.WithReplayID(r.Context(), "")
	seq, err := s.replayer.Replay(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("X-Replay-Id", logger.ReplayID(ctx))
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	for resp, err := range seq {
		if err != nil {
			_ = enc.Encode(errorBody(err))
			return
		}
		if err := enc.Encode(resp); err != nil {
			s.logger.Warn("replay stream write failed", logger.NewField("error", err.Error()))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// parseReplayQuery reads a replay request from the URL query. decode
// defaults to true.
func parseReplayQuery(r *http.Request) (feed.Request, error) {
	q := r.URL.Query()
	req := feed.Request{
		Exchange:       q.Get("exchange"),
		From:           q.Get("from"),
		To:             q.Get("to"),
		DecodeResponse: true,
	}

	if raw := q.Get("filters"); raw != "" {
		filters, err := feed.ParseFilters([]byte(raw))
		if err != nil {
			return req, err
		}
		req.Filters = filters
	}
	if raw := q.Get("decode"); raw != "" {
		decode, err := strconv.ParseBool(raw)
		if err != nil {
			return req, errs.InvalidArgument("decode", "Invalid 'decode' argument: %s. Please provide true or false.", raw)
		}
		req.DecodeResponse = decode
	}
	return req, nil
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

func errorBody(err error) errorResponse {
	body := errorResponse{Error: err.Error(), Code: string(errs.CodeOf(err))}
	var e *errs.Error
	if errors.As(err, &e) {
		body.Field = e.Field
	}
	return body
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errs.Is(err, errs.CodeInvalidArgument) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorBody(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Start begins listening. It blocks until the server is shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.StartOnListener(ln)
}

// StartOnListener begins serving on the provided listener.
// Useful for tests that need to pick an ephemeral port.
func (s *Server) StartOnListener(ln net.Listener) error {
	s.logger.Info("tickreplay server listening", logger.NewField("addr", ln.Addr().String()))
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server. Open WebSocket sessions are
// cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	s.sessions.CancelAll()
	return s.httpServer.Shutdown(ctx)
}
