package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SmitUplenchwar2687/tickreplay/internal/cachepath"
	"github.com/SmitUplenchwar2687/tickreplay/internal/clock"
	"github.com/SmitUplenchwar2687/tickreplay/internal/errs"
	"github.com/SmitUplenchwar2687/tickreplay/internal/metrics"
	"github.com/SmitUplenchwar2687/tickreplay/internal/replay"
	"github.com/SmitUplenchwar2687/tickreplay/internal/slice"
)

var epoch = time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)

func writeSlice(t *testing.T, cacheDir string, ts time.Time, payloads ...string) string {
	t.Helper()
	lines := make([][]byte, len(payloads))
	for i, p := range payloads {
		lines[i] = slice.FormatLine(ts.Add(time.Duration(i)*time.Second), []byte(p))
	}
	path := cachepath.Resolve(cacheDir, "bitmex", ts, nil)
	require.NoError(t, slice.WriteFile(path, lines))
	return path
}

func startTestServer(t *testing.T, cacheDir string, opts ...Option) (*Server, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	opts = append([]Option{WithClock(clock.NewVirtualClock(epoch))}, opts...)
	srv := New(ln.Addr().String(), replay.New(cacheDir), opts...)
	go srv.StartOnListener(ln)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, ln.Addr().String()
}

func replayQuery(from, to time.Time, extra ...string) string {
	q := url.Values{}
	q.Set("exchange", "bitmex")
	q.Set("from", from.Format(time.RFC3339))
	q.Set("to", to.Format(time.RFC3339))
	for i := 0; i+1 < len(extra); i += 2 {
		q.Set(extra[i], extra[i+1])
	}
	return q.Encode()
}

func TestServer_Root(t *testing.T) {
	_, addr := startTestServer(t, t.TempDir())

	resp, err := http.Get("http://" + addr + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "tickreplay", body["service"])
	assert.Equal(t, epoch.Format(time.RFC3339), body["time"])
}

func TestServer_HealthAndNotFound(t *testing.T) {
	_, addr := startTestServer(t, t.TempDir())

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + addr + "/nonexistent")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Exchanges(t *testing.T) {
	_, addr := startTestServer(t, t.TempDir())

	resp, err := http.Get("http://" + addr + "/api/exchanges")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got []exchangeInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.NotEmpty(t, got)

	var bitmex *exchangeInfo
	for i := range got {
		if got[i].ID == "bitmex" {
			bitmex = &got[i]
		}
	}
	require.NotNil(t, bitmex)
	assert.Contains(t, bitmex.Channels, "trade")
}

func TestServer_Metrics(t *testing.T) {
	_, addr := startTestServer(t, t.TempDir(), WithMetrics(metrics.New()))

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "tickreplay_active_replays")
}

func TestServer_ReplayNDJSON(t *testing.T) {
	dir := t.TempDir()
	writeSlice(t, dir, epoch, `{"n":1}`, `{"n":2}`)
	_, addr := startTestServer(t, dir)

	resp, err := http.Get("http://" + addr + "/api/replay?" + replayQuery(epoch, epoch.Add(time.Minute)))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Replay-Id"))

	var lines []map[string]any
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, map[string]any{"n": float64(1)}, lines[0]["message"])
	assert.Equal(t, "2019-06-01T00:00:01Z", lines[1]["localTimestamp"])
}

func TestServer_ReplayRawMode(t *testing.T) {
	dir := t.TempDir()
	writeSlice(t, dir, epoch, `{"n":1}`)
	_, addr := startTestServer(t, dir)

	resp, err := http.Get("http://" + addr + "/api/replay?" + replayQuery(epoch, epoch.Add(time.Minute), "decode", "false"))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"localTimestamp":"2019-06-01T00:00:00.0000000Z","message":{"n":1}}`, strings.TrimSpace(string(body)))
}

func TestServer_ReplayBadRequest(t *testing.T) {
	_, addr := startTestServer(t, t.TempDir())

	cases := map[string]string{
		"exchange": "exchange=nasdaq&from=2019-06-01&to=2019-06-02",
		"decode":   replayQuery(epoch, epoch.Add(time.Minute), "decode", "maybe"),
		"filters":  replayQuery(epoch, epoch.Add(time.Minute), "filters", `[{"name":1}]`),
	}
	for field, query := range cases {
		resp, err := http.Get("http://" + addr + "/api/replay?" + query)
		require.NoError(t, err)

		var body errorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, field)
		assert.Equal(t, "invalid_argument", body.Code, field)
	}
}

func TestServer_ReplayWebSocket(t *testing.T) {
	dir := t.TempDir()
	writeSlice(t, dir, epoch, `{"n":1}`, `{"n":2}`)
	writeSlice(t, dir, epoch.Add(time.Minute), `{"n":3}`)
	_, addr := startTestServer(t, dir)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/replay?"+replayQuery(epoch, epoch.Add(2*time.Minute)), nil)
	require.NoError(t, err)
	defer conn.Close()

	var got []float64
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			require.True(t, errors.As(err, &ce), "unexpected error: %v", err)
			assert.Equal(t, websocket.CloseNormalClosure, ce.Code)
			break
		}
		var m struct {
			Message struct {
				N float64 `json:"n"`
			} `json:"message"`
		}
		require.NoError(t, json.Unmarshal(data, &m))
		got = append(got, m.Message.N)
	}
	assert.Equal(t, []float64{1, 2, 3}, got)
}

func TestServer_ReplayWebSocketRejectsBadRequest(t *testing.T) {
	_, addr := startTestServer(t, t.TempDir())

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/replay?exchange=nasdaq&from=2019-06-01&to=2019-06-02", nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_ReplayWebSocketCorruptSlice(t *testing.T) {
	dir := t.TempDir()
	path := cachepath.Resolve(dir, "bitmex", epoch, nil)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("not gzip"), 0o644))
	_, addr := startTestServer(t, dir)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/replay?"+replayQuery(epoch, epoch.Add(time.Minute)), nil)
	require.NoError(t, err)
	defer conn.Close()

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var body errorResponse
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "corrupt_slice", body.Code)

	_, _, err = conn.ReadMessage()
	var ce *websocket.CloseError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, websocket.CloseInternalServerErr, ce.Code)
	assert.Equal(t, "corrupt_slice", ce.Text)
}

func TestServer_WebSocketDisconnectEndsSession(t *testing.T) {
	srv, addr := startTestServer(t, t.TempDir())

	// No slice exists, so the replay waits until the client leaves.
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/replay?"+replayQuery(epoch, epoch.Add(time.Minute)), nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return srv.Sessions().Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	info := srv.Sessions().List()[0]
	assert.Equal(t, "bitmex", info.Exchange)
	assert.NotEmpty(t, info.ID)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return srv.Sessions().Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestCloseReason(t *testing.T) {
	assert.Equal(t, "corrupt_slice", closeReason(errs.CorruptSlice("/c/a.json.gz", errors.New("EOF"))))
	assert.Equal(t, "plain failure", closeReason(errors.New("plain failure")))

	// "é" is two bytes; 119 ASCII bytes put one straddling the limit.
	long := strings.Repeat("a", maxCloseReason-1) + strings.Repeat("é", 10)
	got := closeReason(errors.New(long))
	assert.True(t, utf8.ValidString(got), "reason %q is not valid UTF-8", got)
	assert.LessOrEqual(t, len(got), maxCloseReason)
	assert.Equal(t, strings.Repeat("a", maxCloseReason-1), got)
}
