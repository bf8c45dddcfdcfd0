package api

import (
	"net/http"
	"os"
	"path/filepath"

	"scrivener/pkg/docs/task"
)

type docsGenerateRequest struct {
	SourcePath string `json:"source_path"`
	DocsPath   string `json:"docs_path,omitempty"`
	Resume     *bool  `json:"resume,omitempty"`
}

type docsGenerateResponse struct {
	TaskID   string `json:"task_id"`
	DocsPath string `json:"docs_path"`
}

// handleDocsGenerate validates the request and starts a new run (spec §6,
// SPEC_FULL.md supplemented validation: source_path must be an existing
// absolute directory).
func (s *Server) handleDocsGenerate(w http.ResponseWriter, r *http.Request) {
	var req docsGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if !filepath.IsAbs(req.SourcePath) {
		writeError(w, http.StatusBadRequest, "source_path must be absolute")
		return
	}
	info, err := os.Stat(req.SourcePath)
	if err != nil || !info.IsDir() {
		writeError(w, http.StatusBadRequest, "source_path must be an existing directory")
		return
	}

	docsPath := req.DocsPath
	if docsPath == "" {
		docsPath = filepath.Join(req.SourcePath, ".docs")
	}

	// resume defaults to true (spec §6); the Checkpoint Store already
	// implements "honor what's on disk", so a resume=false request clears
	// any prior checkpoint before the run starts.
	resume := req.Resume == nil || *req.Resume
	if !resume {
		_ = os.Remove(filepath.Join(docsPath, ".checkpoint.json"))
	}

	id, err := s.pipeline.Start(r.Context(), req.SourcePath, docsPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, docsGenerateResponse{TaskID: id, DocsPath: docsPath})
}

type taskSnapshot struct {
	ID           string      `json:"id"`
	SourcePath   string      `json:"source_path"`
	DocsPath     string      `json:"docs_path"`
	Status       task.Status `json:"status"`
	Progress     int         `json:"progress"`
	Stats        task.Stats  `json:"stats"`
	CurrentFiles []string    `json:"current_files"`
	Error        string      `json:"error,omitempty"`
}

func snapshotOf(t *task.Task) taskSnapshot {
	pct, stats, current, status, errMsg := t.Snapshot()
	return taskSnapshot{
		ID: t.ID, SourcePath: t.SourcePath, DocsPath: t.DocsPath,
		Status: status, Progress: pct, Stats: stats,
		CurrentFiles: current, Error: errMsg,
	}
}

func (s *Server) handleDocsTaskGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, ok := s.pipeline.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown task")
		return
	}
	writeJSON(w, http.StatusOK, snapshotOf(run.Task))
}

// handleDocsTasksList is the SPEC_FULL.md supplemented discovery endpoint.
func (s *Server) handleDocsTasksList(w http.ResponseWriter, r *http.Request) {
	tasks := s.pipeline.List()
	out := make([]taskSnapshot, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, snapshotOf(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDocsTaskCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.pipeline.Cancel(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleDocsWS streams this task's progress events: cached terminal
// per-node history plus the latest snapshot, then live events until the
// task reaches a terminal state (spec §6).
func (s *Server) handleDocsWS(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("task_id")
	run, ok := s.pipeline.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown task")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	safe := newSafeConn(conn)
	defer safe.Close()

	events, cancel := run.Bus.Subscribe(64)
	defer cancel()

	go drainInbound(safe)

	for ev := range events {
		if err := safe.WriteJSON(ev); err != nil {
			return
		}
	}
}

// drainInbound reads (and discards) inbound frames so the connection's
// read deadline / control frames (ping/close) keep working; this socket
// is server-push only.
func drainInbound(safe *safeConn) {
	for {
		if _, _, err := safe.conn.ReadMessage(); err != nil {
			return
		}
	}
}

type graphRequest struct {
	DocsPath string `json:"docs_path"`
	FilePath string `json:"file_path,omitempty"`
	DirPath  string `json:"dir_path,omitempty"`
}

func (s *Server) handleDocsGraph(w http.ResponseWriter, r *http.Request) {
	var req graphRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	raw, err := os.ReadFile(filepath.Join(req.DocsPath, "_project_graph.json"))
	if err != nil {
		writeError(w, http.StatusNotFound, "project graph not found; has aggregation completed?")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func (s *Server) handleDocsFileGraph(w http.ResponseWriter, r *http.Request) {
	var req graphRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	path := filepath.Join(req.DocsPath, filepath.FromSlash(req.FilePath)) + ".graph.json"
	raw, err := os.ReadFile(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "graph fragment not found for file_path")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func (s *Server) handleDocsDirGraph(w http.ResponseWriter, r *http.Request) {
	var req graphRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	path := filepath.Join(req.DocsPath, filepath.FromSlash(req.DirPath), "_dir.graph.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "graph fragment not found for dir_path")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}
