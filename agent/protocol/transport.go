package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
)

const maxMessageBytes = 4 << 20

// Transport carries one encoded request to the server and returns the encoded
// response. A failure to reach the server wraps contractx.ErrUnavailable.
type Transport interface {
	RoundTrip(ctx context.Context, msg json.RawMessage) (json.RawMessage, error)
}

// Loopback serves requests in-process through the same encode/decode path as HTTP.
type Loopback struct {
	server *Server
}

func NewLoopback(server *Server) *Loopback {
	return &Loopback{server: server}
}

func (l *Loopback) RoundTrip(ctx context.Context, msg json.RawMessage) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", contractx.ErrUnavailable, err)
	}
	return l.server.HandleJSON(ctx, msg), nil
}

// HTTPTransport POSTs requests to a remote tool endpoint.
type HTTPTransport struct {
	url    string
	client *http.Client
}

func NewHTTPTransport(url string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPTransport{url: url, client: client}
}

func (t *HTTPTransport) RoundTrip(ctx context.Context, msg json.RawMessage) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(msg))
	if err != nil {
		return nil, fmt.Errorf("tool http: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: tool http: request: %w", contractx.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMessageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: tool http: read response: %w", contractx.ErrUnavailable, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: tool http: status %d", contractx.ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: tool http: status %d: %s", contractx.ErrToolInvocation, resp.StatusCode, string(body))
	}
	return json.RawMessage(body), nil
}

// NewHandler exposes server over HTTP at POST /rpc.
func NewHandler(server *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/rpc", func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(io.LimitReader(req.Body, maxMessageBytes))
		if err != nil {
			http.Error(w, "read request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(server.HandleJSON(req.Context(), body))
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}
