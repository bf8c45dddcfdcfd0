// Package task defines Task, the process-local record of one
// documentation pipeline run (spec §3), kept in its own package so both
// the orchestrator and the leaf components (processor, scheduler) can
// depend on it without a cycle through the top-level docs package.
package task

import "sync"

// Status is a Task's lifecycle state (spec §3).
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Stats tracks plan-wide counters shown in progress snapshots.
type Stats struct {
	TotalFiles     int `json:"total_files"`
	ProcessedFiles int `json:"processed_files"`
	TotalDirs      int `json:"total_dirs"`
	ProcessedDirs  int `json:"processed_dirs"`
	Failed         int `json:"failed"`
	Skipped        int `json:"skipped"`
}

// Task is one documentation pipeline run. Tasks are process-local (spec
// §3): there is no cross-restart resumption of a Task itself, only
// artifact-level resumption via the Checkpoint Store.
type Task struct {
	mu sync.RWMutex

	ID         string `json:"id"`
	SourcePath string `json:"source_path"`
	DocsPath   string `json:"docs_path"`

	status       Status
	progress     int
	stats        Stats
	currentFiles map[string]struct{}
	errMsg       string
}

// NewTask creates a pending task for the given source/docs path pair.
func NewTask(id, sourcePath, docsPath string) *Task {
	return &Task{
		ID:           id,
		SourcePath:   sourcePath,
		DocsPath:     docsPath,
		status:       StatusPending,
		currentFiles: make(map[string]struct{}),
	}
}

// Status returns the task's current lifecycle state.
func (t *Task) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// SetStatus transitions the task to a new status. Terminal statuses
// (completed/failed/cancelled) are sticky: once set, further calls are
// no-ops, so a late in-flight goroutine cannot clobber the first terminal
// state recorded (fail-fast, spec §4.7).
func (t *Task) SetStatus(s Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if isTerminal(t.status) {
		return
	}
	t.status = s
}

// SetError records the failure message and marks the task failed, unless
// it has already reached a terminal state.
func (t *Task) SetError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if isTerminal(t.status) {
		return
	}
	t.status = StatusFailed
	t.errMsg = msg
}

func isTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// MarkStarted begins tracking relativePath as in-flight.
func (t *Task) MarkStarted(relativePath string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentFiles[relativePath] = struct{}{}
}

// MarkDone stops tracking relativePath as in-flight and applies a stats
// delta (e.g. {ProcessedFiles: 1} or {Skipped: 1, ProcessedFiles: 1}).
func (t *Task) MarkDone(relativePath string, delta Stats) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.currentFiles, relativePath)
	t.stats.ProcessedFiles += delta.ProcessedFiles
	t.stats.ProcessedDirs += delta.ProcessedDirs
	t.stats.Failed += delta.Failed
	t.stats.Skipped += delta.Skipped
}

// SetTotals records the plan-wide totals once the Tree Walker finishes.
// skippedUpFront accounts for files the walker already knows will never be
// scheduled (unrecognized extensions), so processed_files + skipped_files
// can still reach total_files on a tree that contains them.
func (t *Task) SetTotals(totalFiles, totalDirs, skippedUpFront int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.TotalFiles = totalFiles
	t.stats.TotalDirs = totalDirs
	t.stats.Skipped += skippedUpFront
}

// Snapshot returns a consistent, independent copy of the task's current
// progress state: percentage, stats, and in-flight relative paths.
func (t *Task) Snapshot() (progress int, stats Stats, currentFiles []string, status Status, errMsg string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	total := t.stats.TotalFiles + t.stats.TotalDirs
	done := t.stats.ProcessedFiles + t.stats.ProcessedDirs
	p := 0
	if total > 0 {
		p = (done * 100) / total
	}
	if t.status == StatusCompleted {
		p = 100
	}

	files := make([]string, 0, len(t.currentFiles))
	for f := range t.currentFiles {
		files = append(files, f)
	}
	return p, t.stats, files, t.status, t.errMsg
}
