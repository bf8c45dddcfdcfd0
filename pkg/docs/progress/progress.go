// Package progress implements the per-task broadcast bus with
// replay-on-subscribe semantics (spec §4.5): any number of subscribers may
// join at any time and each receives cached terminal per-node history
// followed by live events, with no race against task creation.
package progress

import (
	"sync"
	"time"
)

// EventType tags a ProgressEvent's variant (spec §3).
type EventType string

const (
	FileStarted   EventType = "file_started"
	FileCompleted EventType = "file_completed"
	DirStarted    EventType = "dir_started"
	DirCompleted  EventType = "dir_completed"
	Progress      EventType = "progress"
	Completed     EventType = "completed"
	Error         EventType = "error"
	Cancelled     EventType = "cancelled"
)

// Stats mirrors task.Stats field for field; package progress does not
// import package task.
type Stats struct {
	TotalFiles     int `json:"total_files"`
	ProcessedFiles int `json:"processed_files"`
	TotalDirs      int `json:"total_dirs"`
	ProcessedDirs  int `json:"processed_dirs"`
	Failed         int `json:"failed"`
	Skipped        int `json:"skipped"`
}

// Event is the broadcast-bus message (spec §3). Paths are always relative,
// forward-slash.
type Event struct {
	Type         EventType `json:"type"`
	Time         time.Time `json:"time"`
	Path         string    `json:"path,omitempty"`
	ProgressPct  int       `json:"progress,omitempty"`
	CurrentFiles []string  `json:"current_files,omitempty"`
	Stats        Stats     `json:"stats,omitempty"`
	Message      string    `json:"message,omitempty"`
}

// isReplayable reports whether ev is a per-node "completed" event, a
// progress snapshot, or a task-terminal event, all eligible for replay. file_started/dir_started are live-only
// per spec §4.5 and never reach the replay buffer.
func (ev Event) isReplayable() bool {
	switch ev.Type {
	case FileCompleted, DirCompleted, Progress, Completed, Error, Cancelled:
		return true
	default:
		return false
	}
}

// isTaskTerminal reports whether ev ends the bus permanently.
func (ev Event) isTaskTerminal() bool {
	switch ev.Type {
	case Completed, Error, Cancelled:
		return true
	default:
		return false
	}
}

// Bus is a single task's broadcast channel plus its replay buffer.
//
// There is no internal subscriber: Publish records every replayable event
// in the history buffer, and Subscribe replays that history first, so the
// very first events are never lost to a race with external subscription
// (spec §4.5).
type Bus struct {
	mu sync.Mutex

	historyLimit int
	history      []Event   // replayable events only, in production order
	lastProgress *Event    // most recent "progress" snapshot, replayed alone
	terminal     *Event    // the task-terminal event, once emitted
	subscribers  map[int]chan Event
	nextSubID    int
	closed       bool
}

// New creates a Bus retaining up to historyLimit replayable events.
func New(historyLimit int) *Bus {
	if historyLimit <= 0 {
		historyLimit = 1000
	}
	return &Bus{
		historyLimit: historyLimit,
		subscribers:  make(map[int]chan Event),
	}
}

// Publish broadcasts ev to every live subscriber and records it for replay
// if applicable. Publish never blocks on a slow subscriber: each
// subscriber channel is buffered and a full channel simply drops the event,
// which spec §5 allows because the next progress snapshot carries the
// state forward.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	if ev.Type == Progress {
		snap := ev
		b.lastProgress = &snap
	} else if ev.isReplayable() && !ev.isTaskTerminal() {
		// Terminal events are replayed once via b.terminal below, not
		// through history, so a late subscriber never sees one twice.
		b.history = append(b.history, ev)
		if len(b.history) > b.historyLimit {
			b.history = b.history[len(b.history)-b.historyLimit:]
		}
	}

	if ev.isTaskTerminal() {
		term := ev
		b.terminal = &term
	}

	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}

	if ev.isTaskTerminal() {
		b.closed = true
		for _, ch := range b.subscribers {
			close(ch)
		}
		b.subscribers = map[int]chan Event{}
	}
}

// Subscribe registers a new subscriber and returns a channel that first
// replays the cached terminal per-node history (deduplicating completed
// events against the latest progress snapshot is not required — both are
// delivered, the snapshot as a single authoritative state refresh) and then
// streams live events. The channel is closed once the task reaches a
// terminal state, or via the returned cancel func.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, buffer+len(b.history)+1)

	for _, ev := range b.history {
		ch <- ev
	}
	if b.lastProgress != nil {
		ch <- *b.lastProgress
	}

	if b.closed {
		if b.terminal != nil {
			ch <- *b.terminal
		}
		close(ch)
		return ch, func() {}
	}

	id := b.nextSubID
	b.nextSubID++
	b.subscribers[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}
