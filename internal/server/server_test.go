package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/raphaelgruber/jarvis/internal/agent"
	"github.com/raphaelgruber/jarvis/internal/intent"
	"github.com/raphaelgruber/jarvis/internal/metrics"
	"github.com/raphaelgruber/jarvis/internal/rag"
	"github.com/raphaelgruber/jarvis/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAgent struct {
	mu       sync.Mutex
	err      error
	requests []agent.ProcessRequest
	sessions map[string]session.Context
}

func (f *fakeAgent) Process(_ context.Context, req agent.ProcessRequest) (*agent.ProcessResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	id := req.SessionID
	if id == "" {
		id = "generated"
	}
	return &agent.ProcessResponse{
		SessionID:  id,
		Intent:     intent.MemoryAdd,
		Confidence: 1,
		Answer:     "C'est noté.",
	}, nil
}

func (f *fakeAgent) Classify(_ context.Context, text string) intent.Result {
	return intent.Fallback(text)
}

func (f *fakeAgent) Session(id string) (session.Context, bool) {
	c, ok := f.sessions[id]
	return c, ok
}

type fakeIngester struct {
	err error
}

func (f *fakeIngester) Ingest(_ context.Context, source, text string) (rag.IngestResult, error) {
	if f.err != nil {
		return rag.IngestResult{}, f.err
	}
	return rag.IngestResult{Source: source, Chunks: len(strings.Fields(text))}, nil
}

func newTestServer(a Agent, opts Options) *Server {
	return New(a, opts, nil)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestProcess(t *testing.T) {
	tests := []struct {
		name       string
		agentErr   error
		body       string
		wantStatus int
		wantError  string
	}{
		{"ok", nil, `{"sessionId":"s1","text":"retiens que j'ai garé la voiture","source":"voice"}`, http.StatusOK, ""},
		{"empty text is allowed", nil, `{"text":""}`, http.StatusOK, ""},
		{"missing text", nil, `{"sessionId":"s1"}`, http.StatusBadRequest, "text is required"},
		{"invalid json", nil, `{"text":`, http.StatusBadRequest, "invalid JSON body"},
		{"invalid source", fmt.Errorf("%w: %q", agent.ErrInvalidSource, "fax"), `{"text":"x","source":"fax"}`, http.StatusBadRequest, `invalid source: "fax"`},
		{"capability failure", fmt.Errorf("%w: %w", agent.ErrCapability, errors.New("surreal: connection refused")), `{"text":"x"}`, http.StatusBadGateway, agent.ApologyMessage},
		{"unexpected failure", errors.New("boom"), `{"text":"x"}`, http.StatusInternalServerError, agent.ApologyMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &fakeAgent{err: tt.agentErr}
			rec := do(t, newTestServer(a, Options{}).Handler(), http.MethodPost, "/agent/process", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			if tt.wantError != "" {
				body := decodeBody[map[string]string](t, rec)
				assert.Equal(t, tt.wantError, body["error"])
				assert.NotContains(t, rec.Body.String(), "connection refused")
				return
			}
			resp := decodeBody[agent.ProcessResponse](t, rec)
			assert.NotEmpty(t, resp.SessionID)
			assert.Equal(t, "C'est noté.", resp.Answer)
		})
	}

	t.Run("request forwarded", func(t *testing.T) {
		a := &fakeAgent{}
		do(t, newTestServer(a, Options{}).Handler(), http.MethodPost, "/agent/process",
			`{"sessionId":"s1","text":"bonjour","source":"ui"}`)
		require.Len(t, a.requests, 1)
		assert.Equal(t, agent.ProcessRequest{SessionID: "s1", Text: "bonjour", Source: "ui"}, a.requests[0])
	})
}

func TestClassify(t *testing.T) {
	h := newTestServer(&fakeAgent{}, Options{}).Handler()

	rec := do(t, h, http.MethodPost, "/agent/classify", `{"text":"note que le plombier passe jeudi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeBody[intent.Result](t, rec)
	assert.Equal(t, intent.MemoryAdd, res.Primary)
	assert.Contains(t, rec.Body.String(), `"extractedContent"`)

	rec = do(t, h, http.MethodPost, "/agent/classify", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionEndpoint(t *testing.T) {
	a := &fakeAgent{sessions: map[string]session.Context{
		"s1": {SessionID: "s1", History: []session.Message{{Role: session.RoleUser, Content: "bonjour"}}},
	}}
	h := newTestServer(a, Options{}).Handler()

	rec := do(t, h, http.MethodGet, "/agent/sessions/s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	c := decodeBody[session.Context](t, rec)
	assert.Equal(t, "s1", c.SessionID)
	require.Len(t, c.History, 1)
	assert.Equal(t, "bonjour", c.History[0].Content)

	rec = do(t, h, http.MethodGet, "/agent/sessions/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIngest(t *testing.T) {
	t.Run("disabled without ingester", func(t *testing.T) {
		rec := do(t, newTestServer(&fakeAgent{}, Options{}).Handler(), http.MethodPost, "/rag/ingest", `{"source":"a","text":"b"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("indexes", func(t *testing.T) {
		h := newTestServer(&fakeAgent{}, Options{Ingester: &fakeIngester{}}).Handler()
		rec := do(t, h, http.MethodPost, "/rag/ingest", `{"source":"maison.md","text":"la chaudière est au sous-sol"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		res := decodeBody[rag.IngestResult](t, rec)
		assert.Equal(t, "maison.md", res.Source)
		assert.Equal(t, 5, res.Chunks)
	})

	t.Run("missing source", func(t *testing.T) {
		h := newTestServer(&fakeAgent{}, Options{Ingester: &fakeIngester{}}).Handler()
		rec := do(t, h, http.MethodPost, "/rag/ingest", `{"text":"x"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("failure hides cause", func(t *testing.T) {
		h := newTestServer(&fakeAgent{}, Options{Ingester: &fakeIngester{err: errors.New("embed: quota")}}).Handler()
		rec := do(t, h, http.MethodPost, "/rag/ingest", `{"source":"a","text":"x"}`)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.NotContains(t, rec.Body.String(), "quota")
	})
}

func TestHealthStatsMetrics(t *testing.T) {
	m := metrics.NewCollector()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.WithPrometheus(reg))
	m.RecordIntent(string(intent.MemoryAdd), metrics.PathFallback)

	h := newTestServer(&fakeAgent{}, Options{Version: "1.2.3", Metrics: m, Gatherer: reg}).Handler()

	rec := do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "ok", "version": "1.2.3"}, decodeBody[map[string]string](t, rec))

	rec = do(t, h, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeBody[metrics.Snapshot](t, rec)
	assert.Equal(t, int64(1), snap.Intents[string(intent.MemoryAdd)])
	assert.Equal(t, int64(1), snap.Fallbacks)

	rec = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "jarvis_intents_total")
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealthPinger(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		want   string
	}{
		{"store up", nil, http.StatusOK, "ok"},
		{"store down", errors.New("connection refused"), http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(&fakeAgent{}, Options{Version: "v", Pinger: fakePinger{err: tt.err}}).Handler()
			rec := do(t, h, http.MethodGet, "/health", "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.want, decodeBody[map[string]string](t, rec)["status"])
		})
	}
}

func TestCORS(t *testing.T) {
	h := newTestServer(&fakeAgent{}, Options{CORSOrigins: []string{"http://ui.local"}}).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/agent/process", nil)
	req.Header.Set("Origin", "http://ui.local")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://ui.local", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/agent/process", nil)
	req.Header.Set("Origin", "http://evil.local")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(&fakeAgent{}, Options{RateRPS: 0.001, RateBurst: 1}).Handler()

	rec := do(t, h, http.MethodPost, "/agent/classify", `{"text":"bonjour"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/agent/classify", `{"text":"bonjour"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// Health is not limited.
	rec = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))

	unlimited := NewRateLimiter(0, 0)
	for range 5 {
		assert.True(t, unlimited.Allow("x"))
	}
}

func TestWebsocket(t *testing.T) {
	a := &fakeAgent{}
	ts := httptest.NewServer(newTestServer(a, Options{}).Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/agent"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"sessionId": "ws1", "text": "note que le pain est fini"}))
	var resp agent.ProcessResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "ws1", resp.SessionID)
	assert.Equal(t, intent.MemoryAdd, resp.Intent)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"sessionId":"ws1"}`)))
	var wsErr map[string]string
	require.NoError(t, conn.ReadJSON(&wsErr))
	assert.Equal(t, "text is required", wsErr["error"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, conn.ReadJSON(&wsErr))
	assert.Equal(t, "invalid JSON message", wsErr["error"])
}

func TestWebsocketCapabilityFailure(t *testing.T) {
	a := &fakeAgent{err: fmt.Errorf("%w: %w", agent.ErrCapability, errors.New("db down"))}
	ts := httptest.NewServer(newTestServer(a, Options{}).Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/agent", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"text": "où sont mes clés"}))
	var wsErr map[string]string
	require.NoError(t, conn.ReadJSON(&wsErr))
	assert.Equal(t, agent.ApologyMessage, wsErr["error"])
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{"short string", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"truncated", "hello world", 8, "hello..."},
		{"tiny max", "hello", 2, "he"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncate(tt.in, tt.maxLen))
		})
	}
}
