package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/arturoeanton/portfolio-assistant/internal/domain"
	"github.com/arturoeanton/portfolio-assistant/internal/service"
)

// Retriever finds passages relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) []domain.RetrievedContext
}

// DocumentLister lists the indexed documents.
type DocumentLister interface {
	List(ctx context.Context) ([]domain.DocumentSummary, error)
}

var (
	_ Retriever      = (*service.RetrievalService)(nil)
	_ DocumentLister = (*service.DocumentService)(nil)
)

// Server implements the Model Context Protocol (MCP) server.
// It lets external agents search the portfolio knowledge base.
type Server struct {
	retrieval Retriever
	docs      DocumentLister
	name      string
	version   string
	srv       *http.Server
}

// NewServer creates a new MCP server listening on port.
func NewServer(retrieval Retriever, docs DocumentLister, name, version, port string) *Server {
	s := &Server{retrieval: retrieval, docs: docs, name: name, version: version}
	s.srv = &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Tool represents an MCP tool definition.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternal       = -32603
)

type rpcErr struct {
	code int
	msg  string
}

func (e *rpcErr) Error() string { return e.msg }

// Handler returns the HTTP handler serving /mcp and /mcp/sse.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", s.handleRPC)
	mux.HandleFunc("/mcp/sse", s.handleSSE)
	return mux
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("MCP server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, codeParseError, "parse error")
		return
	}

	var result any
	var err error

	switch req.Method {
	case "initialize":
		result = map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]string{
				"name":    s.name,
				"version": s.version,
			},
			"capabilities": map[string]any{
				"tools": map[string]bool{"listChanged": false},
			},
		}
	case "tools/list":
		result = listTools()
	case "tools/call":
		result, err = s.callTool(r.Context(), req.Params)
	default:
		writeError(w, req.ID, codeMethodNotFound, "method not found")
		return
	}

	if err != nil {
		var re *rpcErr
		if errors.As(err, &re) {
			writeError(w, req.ID, re.code, re.msg)
			return
		}
		slog.Error("mcp tool failed", "method", req.Method, "error", err)
		writeError(w, req.ID, codeInternal, err.Error())
		return
	}

	writeResult(w, req.ID, result)
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: endpoint\ndata: /mcp\n\n")
	flusher.Flush()

	<-r.Context().Done()
}

func listTools() map[string]any {
	tools := []Tool{
		{
			Name:        "search_portfolio",
			Description: "Search the portfolio knowledge base and return the most relevant passages",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Question or keywords"},
					"top_k": {"type": "integer", "description": "Maximum passages to return"}
				},
				"required": ["query"]
			}`),
		},
		{
			Name:        "list_documents",
			Description: "List the documents indexed in the knowledge base",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {}
			}`),
		},
	}
	return map[string]any{"tools": tools}
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, &rpcErr{code: codeInvalidParams, msg: "invalid params"}
	}

	switch req.Name {
	case "search_portfolio":
		var args struct {
			Query string `json:"query"`
			TopK  int    `json:"top_k"`
		}
		if len(req.Arguments) > 0 {
			if err := json.Unmarshal(req.Arguments, &args); err != nil {
				return nil, &rpcErr{code: codeInvalidParams, msg: "invalid arguments"}
			}
		}
		if strings.TrimSpace(args.Query) == "" {
			return nil, &rpcErr{code: codeInvalidParams, msg: "query is required"}
		}

		contexts := s.retrieval.Retrieve(ctx, args.Query, args.TopK)
		return map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": formatContexts(contexts)},
			},
			"sources": contexts,
		}, nil

	case "list_documents":
		docs, err := s.docs.List(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": formatDocuments(docs)},
			},
			"documents": docs,
		}, nil

	default:
		return nil, &rpcErr{code: codeInvalidParams, msg: "unknown tool: " + req.Name}
	}
}

func formatContexts(contexts []domain.RetrievedContext) string {
	if len(contexts) == 0 {
		return "No relevant context found in knowledge base."
	}
	var b strings.Builder
	for i, c := range contexts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Source: %s\nContent: %s", c.Source, c.Content)
	}
	return b.String()
}

func formatDocuments(docs []domain.DocumentSummary) string {
	if len(docs) == 0 {
		return "No documents indexed."
	}
	var b strings.Builder
	for _, d := range docs {
		fmt.Fprintf(&b, "%s/%s (%d chunks, %d words)\n", d.Source, d.FileName, d.ChunkCount, d.WordCount)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func writeResult(w http.ResponseWriter, id any, result any) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, id any, code int, message string) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
