// Package checkpoint implements the crash-safe, self-verifying record of
// completed documentation work (spec §4.4). All mutations go through a
// single in-process mutex-serialized owner and are persisted with an
// atomic write-temp-then-rename, the same discipline the teacher's config
// loader and debugger apply to their own on-disk state.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const fileName = ".checkpoint.json"

// record is the on-disk shape of a single completed node.
type record struct {
	ArtifactPath string `json:"artifact_path"`
}

// onDisk is the exact JSON shape persisted at <docs_root>/.checkpoint.json.
type onDisk struct {
	CompletedFiles        map[string]record `json:"completed_files"`
	CompletedDirs         map[string]record `json:"completed_dirs"`
	ProjectGraphCompleted bool              `json:"project_graph_completed"`
}

// Store is the checkpoint for one docs root. All exported methods are safe
// for concurrent use; mutations are serialized by mu (spec §5 "Checkpoint
// writes are serialized by owning the store behind a single writer").
type Store struct {
	mu       sync.Mutex
	docsRoot string
	data     onDisk
}

// LoadOrInit reads the checkpoint file if present, otherwise starts empty.
func LoadOrInit(docsRoot string) (*Store, error) {
	s := &Store{
		docsRoot: docsRoot,
		data: onDisk{
			CompletedFiles: make(map[string]record),
			CompletedDirs:  make(map[string]record),
		},
	}

	raw, err := os.ReadFile(filepath.Join(docsRoot, fileName))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	if err := json.Unmarshal(raw, &s.data); err != nil {
		// A corrupt checkpoint is treated as "start empty" rather than a
		// fatal error: every node will simply be reprocessed and re-verified.
		s.data = onDisk{CompletedFiles: make(map[string]record), CompletedDirs: make(map[string]record)}
		return s, nil
	}
	if s.data.CompletedFiles == nil {
		s.data.CompletedFiles = make(map[string]record)
	}
	if s.data.CompletedDirs == nil {
		s.data.CompletedDirs = make(map[string]record)
	}
	return s, nil
}

// VerifyFileCompleted reports whether relPath's file artifact is recorded
// and still present with non-zero length. A stale record (artifact missing
// or emptied) is evicted and persisted before returning false, so future
// resumes don't repeat the same stat.
func (s *Store) VerifyFileCompleted(relPath string) bool {
	return s.verify(s.data.CompletedFiles, relPath)
}

// VerifyDirCompleted is the directory-artifact counterpart.
func (s *Store) VerifyDirCompleted(relPath string) bool {
	return s.verify(s.data.CompletedDirs, relPath)
}

func (s *Store) verify(set map[string]record, relPath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := set[relPath]
	if !ok {
		return false
	}

	info, err := os.Stat(rec.ArtifactPath)
	if err != nil || info.Size() == 0 {
		delete(set, relPath)
		_ = s.persistLocked()
		return false
	}
	return true
}

// MarkFileCompleted records relPath as done with its artifact path and
// persists atomically. Callers must only call this after both the
// DocArtifact and GraphFragment (if any) were written and verified
// non-empty (spec §4.4 invariant 1).
func (s *Store) MarkFileCompleted(relPath, artifactPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.CompletedFiles[relPath] = record{ArtifactPath: artifactPath}
	return s.persistLocked()
}

// MarkDirCompleted is the directory counterpart.
func (s *Store) MarkDirCompleted(relPath, artifactPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.CompletedDirs[relPath] = record{ArtifactPath: artifactPath}
	return s.persistLocked()
}

// MarkProjectGraphCompleted sets the aggregation-done flag and persists.
func (s *Store) MarkProjectGraphCompleted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.ProjectGraphCompleted = true
	return s.persistLocked()
}

// IsProjectGraphCompleted reports the aggregation-done flag.
func (s *Store) IsProjectGraphCompleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.ProjectGraphCompleted
}

// persistLocked writes the checkpoint via write-temp-then-rename so a crash
// mid-write never corrupts the previous, still-valid file (spec §4.4
// invariant 3). Caller must hold s.mu.
func (s *Store) persistLocked() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	final := filepath.Join(s.docsRoot, fileName)
	tmp := final + ".tmp"

	if err := os.MkdirAll(s.docsRoot, 0o755); err != nil && !os.IsExist(err) {
		return fmt.Errorf("create docs root: %w", err)
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write temp checkpoint: %w", err)
	}
	// Rename is within the same filesystem as the docs root (spec §9).
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("rename checkpoint into place: %w", err)
	}
	return nil
}
