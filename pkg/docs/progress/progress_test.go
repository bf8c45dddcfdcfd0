package progress

import (
	"testing"
	"time"
)

func drain(t *testing.T, ch <-chan Event, timeout time.Duration) []Event {
	t.Helper()
	var got []Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-deadline:
			return got
		}
	}
}

func TestSubscribeReceivesLiveEvents(t *testing.T) {
	b := New(10)
	ch, cancel := b.Subscribe(4)
	defer cancel()

	b.Publish(Event{Type: FileStarted, Path: "a.go"})
	b.Publish(Event{Type: FileCompleted, Path: "a.go"})

	got := drain(t, ch, 50*time.Millisecond)
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(got), got)
	}
	if got[0].Type != FileStarted || got[1].Type != FileCompleted {
		t.Errorf("events = %+v, want [FileStarted, FileCompleted]", got)
	}
}

func TestLateSubscriberReplaysHistoryNotLiveOnly(t *testing.T) {
	b := New(10)

	b.Publish(Event{Type: FileStarted, Path: "a.go"})
	b.Publish(Event{Type: FileCompleted, Path: "a.go"})
	b.Publish(Event{Type: DirStarted, Path: "."})

	ch, cancel := b.Subscribe(4)
	defer cancel()

	got := drain(t, ch, 50*time.Millisecond)
	if len(got) != 1 {
		t.Fatalf("got %d replayed events, want 1 (only FileCompleted survives replay): %+v", len(got), got)
	}
	if got[0].Type != FileCompleted {
		t.Errorf("replayed event type = %v, want FileCompleted", got[0].Type)
	}
}

func TestSubscribeReplaysLastProgressOnce(t *testing.T) {
	b := New(10)
	b.Publish(Event{Type: Progress, ProgressPct: 10})
	b.Publish(Event{Type: Progress, ProgressPct: 50})
	b.Publish(Event{Type: Progress, ProgressPct: 90})

	ch, cancel := b.Subscribe(4)
	defer cancel()

	got := drain(t, ch, 50*time.Millisecond)
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1 (only the latest progress snapshot)", len(got))
	}
	if got[0].ProgressPct != 90 {
		t.Errorf("ProgressPct = %d, want 90", got[0].ProgressPct)
	}
}

func TestTerminalEventClosesChannelAndIsNotDuplicated(t *testing.T) {
	b := New(10)
	ch, cancel := b.Subscribe(4)
	defer cancel()

	b.Publish(Event{Type: FileCompleted, Path: "a.go"})
	b.Publish(Event{Type: Completed})

	got := drain(t, ch, 50*time.Millisecond)
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(got), got)
	}
	if got[1].Type != Completed {
		t.Errorf("final event = %v, want Completed", got[1].Type)
	}

	// The channel must be closed, not just idle.
	if _, ok := <-ch; ok {
		t.Errorf("channel still open after terminal event")
	}
}

func TestSubscribeAfterTerminalReplaysTerminalExactlyOnce(t *testing.T) {
	b := New(10)
	b.Publish(Event{Type: FileCompleted, Path: "a.go"})
	b.Publish(Event{Type: Completed})

	ch, cancel := b.Subscribe(4)
	defer cancel()

	got := drain(t, ch, 50*time.Millisecond)

	count := 0
	for _, ev := range got {
		if ev.Type == Completed {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Completed event appeared %d times in late-subscribe replay, want exactly 1: %+v", count, got)
	}

	if _, ok := <-ch; ok {
		t.Errorf("channel should already be closed for a subscriber joining after task completion")
	}
}

func TestPublishAfterCloseIsANoOp(t *testing.T) {
	b := New(10)
	b.Publish(Event{Type: Completed})
	// Should not panic despite no subscribers and a closed bus.
	b.Publish(Event{Type: Error, Message: "late event"})
}

func TestCancelStopsFurtherDelivery(t *testing.T) {
	b := New(10)
	ch, cancel := b.Subscribe(4)
	cancel()

	b.Publish(Event{Type: FileStarted, Path: "a.go"})

	if _, ok := <-ch; ok {
		t.Errorf("cancelled subscriber channel should be closed")
	}
}
