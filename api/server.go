// Package api exposes the chatbot over HTTP. It is a thin adapter: request
// messages are translated into engine turns and the answer is relayed back
// verbatim. Session continuity lives here, keyed by an explicit session id,
// never inside the engine.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/oilwell/docbot/chat"
	"github.com/oilwell/docbot/chunker"
	"github.com/oilwell/docbot/store"
)

type Engine interface {
	Answer(ctx context.Context, question string, history []chat.Turn, cfg chat.Config) (chat.Response, error)
}

type CorpusStore interface {
	Build(ctx context.Context, chunks []chunker.Chunk) error
	Clear(ctx context.Context) error
}

type Options struct {
	Engine        Engine
	Store         CorpusStore
	CorpusDir     string
	RetrieveLimit int
}

type Server struct {
	opts    Options
	logger  *log.Logger
	handler http.Handler

	mu       sync.Mutex
	sessions map[string][]chat.Turn
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type buildRequest struct {
	Dir string `json:"dir"`
}

type chatRequest struct {
	Message   string      `json:"message"`
	History   []chat.Turn `json:"history"`
	SessionID string      `json:"session_id"`
	Limit     int         `json:"limit"`
}

type chatResponse struct {
	Answer  string       `json:"answer"`
	Intent  string       `json:"intent"`
	Sources []chatSource `json:"sources"`
	History []chat.Turn  `json:"history"`
}

type chatSource struct {
	DocumentID string      `json:"documentId"`
	SourcePath string      `json:"sourcePath"`
	DocType    string      `json:"docType"`
	Snippet    string      `json:"snippet"`
	Score      float64     `json:"score"`
	Insight    chatInsight `json:"insight"`
}

type chatInsight struct {
	ChunkCount       int           `json:"chunkCount"`
	DocType          string        `json:"docType"`
	RelatedDocuments []chatRelated `json:"relatedDocuments"`
}

type chatRelated struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

func New(opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		opts:     opts,
		logger:   logger,
		sessions: make(map[string][]chat.Turn),
	}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/build", s.handleBuild)
	mux.HandleFunc("/v1/chat", s.handleChat)
	mux.HandleFunc("/v1/clear", s.handleClear)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	if s.opts.Store == nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("corpus store is not configured"))
		return
	}

	var req buildRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	dir := strings.TrimSpace(req.Dir)
	if dir == "" {
		dir = s.opts.CorpusDir
	}

	chunks, err := chunker.New(dir).Chunk()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chunker.ErrRootNotFound) {
			status = http.StatusNotFound
		}
		s.writeError(w, status, fmt.Errorf("chunk corpus: %w", err))
		return
	}

	if err := s.opts.Store.Build(r.Context(), chunks); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("build store: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: fmt.Sprintf("indexed %d chunks from %s", len(chunks), dir)})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	if s.opts.Engine == nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("engine is not configured"))
		return
	}

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("message is required"))
		return
	}

	history := s.resolveHistory(&req)

	limit := req.Limit
	if limit <= 0 {
		limit = s.opts.RetrieveLimit
	}

	resp, err := s.opts.Engine.Answer(r.Context(), req.Message, history, chat.Config{RetrieveLimit: limit})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("chat failed: %w", err))
		return
	}

	if req.SessionID != "" {
		s.mu.Lock()
		s.sessions[req.SessionID] = resp.History
		s.mu.Unlock()
	}

	s.writeJSON(w, http.StatusOK, transformChatResponse(&resp))
}

// resolveHistory picks the turn history for a request. A history supplied in
// the request is always authoritative; the stored session history is used
// only when the request carries a session id and no history of its own.
func (s *Server) resolveHistory(req *chatRequest) []chat.Turn {
	if len(req.History) > 0 || req.SessionID == "" {
		return req.History
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.Turn(nil), s.sessions[req.SessionID]...)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	if s.opts.Store == nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("corpus store is not configured"))
		return
	}

	if err := s.opts.Store.Clear(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("clear store: %w", err))
		return
	}

	s.mu.Lock()
	s.sessions = make(map[string][]chat.Turn)
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "corpus cleared"})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Printf("http %d: %v", status, err)
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func decodeJSON(r *http.Request, target any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func transformChatResponse(resp *chat.Response) chatResponse {
	sources := make([]chatSource, len(resp.Sources))
	for i, src := range resp.Sources {
		related := make([]chatRelated, len(src.Insight.RelatedDocuments))
		for j, doc := range src.Insight.RelatedDocuments {
			related[j] = chatRelated{ID: doc.ID, Path: doc.Path}
		}
		sources[i] = chatSource{
			DocumentID: src.DocumentID,
			SourcePath: src.SourcePath,
			DocType:    src.DocType,
			Snippet:    src.Snippet,
			Score:      src.Score,
			Insight: chatInsight{
				ChunkCount:       src.Insight.ChunkCount,
				DocType:          src.Insight.DocType,
				RelatedDocuments: related,
			},
		}
	}

	return chatResponse{
		Answer:  resp.Answer,
		Intent:  resp.Intent,
		Sources: sources,
		History: resp.History,
	}
}

var _ CorpusStore = (*store.Store)(nil)
