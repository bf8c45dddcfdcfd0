// Package api implements the HTTP + WebSocket surface (spec §6): config
// management, documentation-pipeline control, graph queries, and the chat
// websocket, all served from one mux following the teacher's single
// http.Server bootstrap.
package api

import (
	"net/http"
	"sync"

	"scrivener/pkg/config"
	"scrivener/pkg/docs"
	"scrivener/pkg/llm"
)

// Server holds every dependency the HTTP handlers need.
type Server struct {
	mu       sync.RWMutex
	cfg      *config.Config
	sys      *config.SystemConfig
	client   llm.Client
	pipeline *docs.Pipeline

	mux *http.ServeMux
}

// New builds a Server and registers every route.
func New(cfg *config.Config, sys *config.SystemConfig, client llm.Client, pipeline *docs.Pipeline) *Server {
	s := &Server{
		cfg:      cfg,
		sys:      sys,
		client:   client,
		pipeline: pipeline,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/config", s.handleGetConfig)
	s.mux.HandleFunc("PUT /api/config", s.handlePutConfig)
	s.mux.HandleFunc("POST /api/config/test", s.handleConfigTest)

	s.mux.HandleFunc("POST /api/chat/suggest", s.handleChatSuggest)
	s.mux.HandleFunc("GET /ws/chat", s.handleChatWS)

	s.mux.HandleFunc("POST /api/docs/generate", s.handleDocsGenerate)
	s.mux.HandleFunc("GET /api/docs/tasks", s.handleDocsTasksList)
	s.mux.HandleFunc("GET /api/docs/tasks/{id}", s.handleDocsTaskGet)
	s.mux.HandleFunc("POST /api/docs/tasks/{id}/cancel", s.handleDocsTaskCancel)
	s.mux.HandleFunc("GET /ws/docs/{task_id}", s.handleDocsWS)

	s.mux.HandleFunc("POST /api/docs/graph", s.handleDocsGraph)
	s.mux.HandleFunc("POST /api/docs/file-graph", s.handleDocsFileGraph)
	s.mux.HandleFunc("POST /api/docs/dir-graph", s.handleDocsDirGraph)
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// currentClient returns the live LLM client under the read lock, so a
// config reload swapping s.client mid-request never races a handler.
func (s *Server) currentClient() llm.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// SetClient swaps the LLM client, used when config.json is hot-reloaded
// with a different provider/model.
func (s *Server) SetClient(client llm.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = client
}

// SetConfig swaps the redacted-config snapshot, used on hot-reload.
func (s *Server) SetConfig(cfg *config.Config, sys *config.SystemConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.sys = sys
}
