package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/SmitUplenchwar2687/tickreplay/internal/errs"
	"github.com/SmitUplenchwar2687/tickreplay/internal/feed"
	"github.com/SmitUplenchwar2687/tickreplay/internal/logger"
)

// maxCloseReason keeps close frame payloads under the 125 byte control
// frame limit.
const maxCloseReason = 120

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local dev tool.
	},
}

// SessionInfo describes one live WebSocket replay.
type SessionInfo struct {
	ID       string        `json:"id"`
	Exchange string        `json:"exchange"`
	From     string        `json:"from"`
	To       string        `json:"to"`
	Filters  []feed.Filter `json:"filters,omitempty"`
	Started  time.Time     `json:"started"`
	Sent     int64         `json:"sent"`
}

type session struct {
	mu     sync.Mutex
	info   SessionInfo
	cancel context.CancelFunc
}

// Sessions tracks WebSocket replays in flight.
type Sessions struct {
	mu     sync.RWMutex
	active map[string]*session
}

// NewSessions creates an empty session table.
func NewSessions() *Sessions {
	return &Sessions{active: make(map[string]*session)}
}

func (s *Sessions) add(sess *session) {
	s.mu.Lock()
	s.active[sess.info.ID] = sess
	s.mu.Unlock()
}

func (s *Sessions) remove(id string) {
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

// Count returns the number of live sessions.
func (s *Sessions) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active)
}

// List returns the live sessions ordered by start time.
func (s *Sessions) List() []SessionInfo {
	s.mu.RLock()
	out := make([]SessionInfo, 0, len(s.active))
	for _, sess := range s.active {
		sess.mu.Lock()
		out = append(out, sess.info)
		sess.mu.Unlock()
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Started.Equal(out[j].Started) {
			return out[i].ID < out[j].ID
		}
		return out[i].Started.Before(out[j].Started)
	})
	return out
}

// CancelAll stops every live session.
func (s *Sessions) CancelAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.active {
		sess.cancel()
	}
}

// handleReplayWS streams a replay over a WebSocket, one text message per
// record. A successful replay ends with a normal close frame. A failed one
// sends an error object and closes with an internal error status.
//
// Request errors are answered with plain HTTP before the upgrade.
func (s *Server) handleReplayWS(w http.ResponseWriter, r *http.Request) {
	req, err := parseReplayQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	// The hijacked connection outlives r.Context, so the session owns its
	// own cancellation.
	ctx, cancel := context.WithCancel(logger.WithReplayID(context.Background(), ""))
	defer cancel()

	seq, err := s.replayer.Replay(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade error", logger.NewField("error", err.Error()))
		return
	}
	defer conn.Close()

	sess := &session{
		info: SessionInfo{
			ID:       logger.ReplayID(ctx),
			Exchange: req.Exchange,
			From:     req.From,
			To:       req.To,
			Filters:  req.Filters,
			Started:  s.clock.Now(),
		},
		cancel: cancel,
	}
	s.sessions.add(sess)
	defer s.sessions.remove(sess.info.ID)
	s.logger.DebugContext(ctx, "websocket replay started", logger.NewField("exchange", req.Exchange))

	// Read loop: only control frames are expected; any read error means
	// the client is gone.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for resp, err := range seq {
		if err != nil {
			s.closeWithError(conn, err)
			return
		}
		data, err := json.Marshal(resp)
		if err != nil {
			s.closeWithError(conn, err)
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.logger.DebugContext(ctx, "websocket write failed", logger.NewField("error", err.Error()))
			return
		}
		sess.mu.Lock()
		sess.info.Sent++
		sess.mu.Unlock()
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replay finished"),
		time.Now().Add(time.Second))
}

func (s *Server) closeWithError(conn *websocket.Conn, err error) {
	if data, merr := json.Marshal(errorBody(err)); merr == nil {
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseInternalServerErr, closeReason(err)),
		time.Now().Add(time.Second))
}

// closeReason is the error code, or the message cut to fit a close frame
// on a rune boundary.
func closeReason(err error) string {
	reason := string(errs.CodeOf(err))
	if reason == "" {
		reason = err.Error()
	}
	if len(reason) <= maxCloseReason {
		return reason
	}
	cut := maxCloseReason
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}
