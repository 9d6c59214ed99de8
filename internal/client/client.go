// Package client provides an HTTP and websocket client for the Jarvis server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/jarvis/internal/agent"
	"github.com/raphaelgruber/jarvis/internal/intent"
	"github.com/raphaelgruber/jarvis/internal/metrics"
	"github.com/raphaelgruber/jarvis/internal/rag"
	"github.com/raphaelgruber/jarvis/internal/session"
)

// DefaultServerURL is used when neither an explicit URL nor JARVIS_SERVER_URL is set.
const DefaultServerURL = "http://localhost:3000"

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error: %d %s", e.Status, e.Message)
}

// Client talks to the Jarvis HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new client.
// If baseURL is empty, uses JARVIS_SERVER_URL env var or defaults to localhost:3000.
// Timeout can be configured via JARVIS_CLIENT_TIMEOUT env var (default 2m, LLM calls are slow).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("JARVIS_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = DefaultServerURL
	}

	timeout := 2 * time.Minute
	if t := os.Getenv("JARVIS_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the server address this client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends a JSON request and decodes the JSON answer into result.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func decodeError(status int, data []byte) error {
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		msg = body.Error
	}
	apiErr := &APIError{Status: status, Message: msg}
	if status == http.StatusNotFound {
		return fmt.Errorf("%w: %w", ErrNotFound, apiErr)
	}
	return apiErr
}

// Process sends one utterance through the agent.
func (c *Client) Process(ctx context.Context, req agent.ProcessRequest) (*agent.ProcessResponse, error) {
	var resp agent.ProcessResponse
	if err := c.do(ctx, http.MethodPost, "/agent/process", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Classify returns the intent classification of text without routing it.
func (c *Client) Classify(ctx context.Context, text string) (intent.Result, error) {
	var res intent.Result
	err := c.do(ctx, http.MethodPost, "/agent/classify", map[string]string{"text": text}, &res)
	return res, err
}

// Session fetches the stored context of a session.
func (c *Client) Session(ctx context.Context, id string) (session.Context, error) {
	var sc session.Context
	err := c.do(ctx, http.MethodGet, "/agent/sessions/"+url.PathEscape(id), nil, &sc)
	return sc, err
}

// Ingest indexes a document for retrieval.
func (c *Client) Ingest(ctx context.Context, source, text string) (rag.IngestResult, error) {
	var res rag.IngestResult
	body := map[string]string{"source": source, "text": text}
	err := c.do(ctx, http.MethodPost, "/rag/ingest", body, &res)
	return res, err
}

// Stats fetches the server's operation statistics.
func (c *Client) Stats(ctx context.Context) (metrics.Snapshot, error) {
	var snap metrics.Snapshot
	err := c.do(ctx, http.MethodGet, "/stats", nil, &snap)
	return snap, err
}

// Health checks server liveness and returns its version.
func (c *Client) Health(ctx context.Context) (string, error) {
	var body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &body); err != nil {
		return "", err
	}
	if body.Status != "ok" {
		return "", fmt.Errorf("server unhealthy: %s", body.Status)
	}
	return body.Version, nil
}

// =============================================================================
// WEBSOCKET CONVERSATION
// =============================================================================

// Conversation is a websocket session with the agent. Send is not safe for
// concurrent use; answers arrive in the order utterances were sent.
type Conversation struct {
	conn      *websocket.Conn
	sessionID string
	source    string

	mu     sync.Mutex
	closed bool
}

// wsFrame is either a process response or an error.
type wsFrame struct {
	agent.ProcessResponse
	Error string `json:"error,omitempty"`
}

// Chat opens a websocket conversation. An empty sessionID gets a fresh one.
func (c *Client) Chat(ctx context.Context, sessionID, source string) (*Conversation, error) {
	wsEndpoint := c.baseURL
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint + "/ws/agent")
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket connect: %w", err)
	}

	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	return &Conversation{conn: conn, sessionID: sessionID, source: source}, nil
}

// SessionID returns the session every utterance of this conversation uses.
func (cv *Conversation) SessionID() string {
	return cv.sessionID
}

// Send processes one utterance and waits for its answer.
func (cv *Conversation) Send(ctx context.Context, text string) (*agent.ProcessResponse, error) {
	req := agent.ProcessRequest{SessionID: cv.sessionID, Text: text, Source: cv.source}
	if err := cv.conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			cv.Close()
		case <-done:
		}
	}()

	var frame wsFrame
	if err := cv.conn.ReadJSON(&frame); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read message: %w", err)
	}
	if frame.Error != "" {
		return nil, fmt.Errorf("agent error: %s", frame.Error)
	}
	resp := frame.ProcessResponse
	return &resp, nil
}

// Close ends the conversation. It is safe to call more than once.
func (cv *Conversation) Close() error {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	if cv.closed {
		return nil
	}
	cv.closed = true
	_ = cv.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return cv.conn.Close()
}
