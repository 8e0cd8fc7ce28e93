// Package web bridges a browser editor to a workspace session over a
// JSON-RPC WebSocket.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/fwojciec/codeshell"
	"github.com/gorilla/websocket"
)

// Workspace is the editor state the bridge exposes. *workspace.Session
// implements it.
type Workspace interface {
	Open(ctx context.Context, path string) (*codeshell.DiagnosticSet, error)
	Change(path, text string) (*codeshell.DiagnosticSet, error)
	Close(path string) error
	Save(ctx context.Context, path string) error
	List(ctx context.Context, dir string) ([]string, error)
	Diagnostics(path string) (*codeshell.DiagnosticSet, bool)
	Check(ctx context.Context, path string) (*codeshell.DiagnosticSet, error)
	Plan(ctx context.Context, ops []codeshell.Operation) (*codeshell.Batch, error)
	Approve(ctx context.Context, id string) (*codeshell.Batch, codeshell.CommitResult, error)
	Reject(id string) (*codeshell.Batch, error)
	Undo(ctx context.Context) (*codeshell.Batch, error)
	Buffers() codeshell.BufferStore
}

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

// Server provides the HTTP + WebSocket endpoint of the browser shell.
type Server struct {
	ws       Workspace
	upgrader websocket.Upgrader
	logger   *log.Logger
	mu       sync.Mutex
	clients  []*wsClient
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

type rpcRequest struct {
	ID     any             `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     any       `json:"id"`
	Result any       `json:"result,omitempty"`
	Error  *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"` // codeshell error code
	Data    any    `json:"data,omitempty"` // partial result, e.g. a half-applied batch
}

type rpcNotification struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets where connection errors are logged. They are
// discarded by default.
func WithLogger(l *log.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// WithOriginCheck restricts which origins may open the socket. By default
// only same-origin pages and clients that send no Origin are accepted.
func WithOriginCheck(fn func(r *http.Request) bool) ServerOption {
	return func(s *Server) {
		s.upgrader.CheckOrigin = fn
	}
}

// WithAllowedOrigins additionally accepts browser pages served from the
// given origins, e.g. "http://localhost:5173". Matching ignores case and a
// trailing slash.
func WithAllowedOrigins(origins ...string) ServerOption {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[normalizeOrigin(o)] = true
	}
	return WithOriginCheck(func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return false
		}
		return strings.EqualFold(u.Host, r.Host) || allowed[normalizeOrigin(origin)]
	})
}

func normalizeOrigin(o string) string {
	return strings.ToLower(strings.TrimRight(o, "/"))
}

// NewServer creates a web server backed by ws.
func NewServer(ws Workspace, opts ...ServerOption) *Server {
	s := &Server{
		ws:     ws,
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ws":
		s.handleWebSocket(w, r)
	case "/healthz":
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok\n")
	default:
		http.NotFound(w, r)
	}
}

// Broadcast pushes a recomputed diagnostic set to every connected client.
// Pass it to workspace.WithListener.
func (s *Server) Broadcast(set *codeshell.DiagnosticSet) {
	s.mu.Lock()
	clients := append([]*wsClient(nil), s.clients...)
	s.mu.Unlock()

	msg := rpcNotification{Method: "diagnostics", Params: set}
	for _, c := range clients {
		if err := c.send(msg); err != nil {
			s.logger.Printf("broadcast: %v", err)
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("websocket upgrade: %v", err)
		return
	}
	client := &wsClient{conn: conn}
	s.mu.Lock()
	s.clients = append(s.clients, client)
	s.mu.Unlock()

	defer func() {
		conn.Close()
		s.mu.Lock()
		for i, c := range s.clients {
			if c == client {
				s.clients = append(s.clients[:i], s.clients[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
	}()

	ctx := r.Context()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req rpcRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			_ = client.send(rpcResponse{Error: &rpcError{Code: codeParseError, Message: err.Error()}})
			continue
		}
		if err := client.send(s.handleRPC(ctx, req)); err != nil {
			s.logger.Printf("websocket write: %v", err)
			return
		}
	}
}

type pathParams struct {
	Path string `json:"path"`
}

type changeParams struct {
	Path string `json:"path"`
	Text string `json:"text"`
}

type planParams struct {
	Operations []codeshell.Operation `json:"operations"`
}

type batchParams struct {
	ID string `json:"id"`
}

// batchResult is the wire form of a batch. Failures carry their error
// code and message, which the batch itself does not encode.
type batchResult struct {
	*codeshell.Batch
	Failures []failureResult `json:"failures,omitempty"`
}

type failureResult struct {
	Index   int                 `json:"index"`
	Op      codeshell.Operation `json:"op"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
}

func toBatchResult(b *codeshell.Batch) *batchResult {
	if b == nil {
		return nil
	}
	out := &batchResult{Batch: b}
	for _, f := range b.Failures {
		out.Failures = append(out.Failures, failureResult{
			Index:   f.Index,
			Op:      f.Op,
			Code:    string(f.Code()),
			Message: codeshell.ErrorMessage(f.Err),
		})
	}
	return out
}

func (s *Server) handleRPC(ctx context.Context, req rpcRequest) rpcResponse {
	switch req.Method {
	case "open":
		return call(req, func(p pathParams) (any, error) {
			set, err := s.ws.Open(ctx, p.Path)
			if err != nil {
				return nil, err
			}
			b, _ := s.ws.Buffers().Buffer(p.Path)
			return map[string]any{"text": b.Text, "dirty": b.Dirty, "diagnostics": set}, nil
		})
	case "change":
		return call(req, func(p changeParams) (any, error) {
			return s.ws.Change(p.Path, p.Text)
		})
	case "close":
		return call(req, func(p pathParams) (any, error) {
			return map[string]string{"status": "closed"}, s.ws.Close(p.Path)
		})
	case "save":
		return call(req, func(p pathParams) (any, error) {
			return map[string]string{"status": "saved"}, s.ws.Save(ctx, p.Path)
		})
	case "list":
		return call(req, func(p pathParams) (any, error) {
			return s.ws.List(ctx, p.Path)
		})
	case "diagnostics":
		return call(req, func(p pathParams) (any, error) {
			set, ok := s.ws.Diagnostics(p.Path)
			if !ok {
				return nil, codeshell.Errorf(codeshell.ErrNotFound, "%s is not open", p.Path)
			}
			return set, nil
		})
	case "check":
		return call(req, func(p pathParams) (any, error) {
			return s.ws.Check(ctx, p.Path)
		})
	case "plan":
		return call(req, func(p planParams) (any, error) {
			b, err := s.ws.Plan(ctx, p.Operations)
			return toBatchResult(b), err
		})
	case "approve":
		return call(req, func(p batchParams) (any, error) {
			b, res, err := s.ws.Approve(ctx, p.ID)
			if b == nil {
				return nil, err
			}
			return map[string]any{"batch": toBatchResult(b), "result": res}, err
		})
	case "reject":
		return call(req, func(p batchParams) (any, error) {
			b, err := s.ws.Reject(p.ID)
			return toBatchResult(b), err
		})
	case "undo":
		return call(req, func(struct{}) (any, error) {
			b, err := s.ws.Undo(ctx)
			return toBatchResult(b), err
		})
	default:
		return rpcResponse{
			ID:    req.ID,
			Error: &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("unknown method: %s", req.Method)},
		}
	}
}

// call decodes the params of req into P and runs fn. On error a partial
// result travels in the error data.
func call[P any](req rpcRequest, fn func(P) (any, error)) rpcResponse {
	var p P
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return rpcResponse{ID: req.ID, Error: &rpcError{Code: codeInvalidParams, Message: err.Error()}}
		}
	}
	result, err := fn(p)
	if err != nil {
		return rpcResponse{ID: req.ID, Error: &rpcError{
			Code:    codeServerError,
			Message: err.Error(),
			Kind:    string(codeshell.ErrorCode(err)),
			Data:    result,
		}}
	}
	return rpcResponse{ID: req.ID, Result: result}
}
