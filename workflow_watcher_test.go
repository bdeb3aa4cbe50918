package main

import (
	"os"
	"testing"
	"time"
)

func TestWorkflowWatcherNotifiesOnSave(t *testing.T) {
	store, err := NewWorkflowStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	type change struct{ action, id string }
	changes := make(chan change, 4)

	watcher := NewWorkflowWatcher(store, func(action, workflowID string) {
		changes <- change{action, workflowID}
	})
	if err := watcher.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}
	defer watcher.Stop()

	r := NewWorkflowRecorder("watched", "", "", "")
	loc := Locator{Primary: Strategy{Kind: StrategyText, Value: "x"}, Bounds: Rect{0, 0, 10, 10}}
	r.AddStep(Gesture{Type: GestureTap, Start: Point{X: 5, Y: 5}}, nil, loc, "")
	w := r.Workflow()

	if err := store.Save(w); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	select {
	case c := <-changes:
		if c.action != "updated" {
			t.Errorf("Expected updated action, got %q", c.action)
		}
		if c.id != w.ID {
			t.Errorf("Expected workflow id %s, got %s", w.ID, c.id)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Timed out waiting for change notification")
	}
}

func TestWorkflowWatcherIgnoresNonJSON(t *testing.T) {
	store, err := NewWorkflowStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	changes := make(chan struct{}, 1)
	watcher := NewWorkflowWatcher(store, func(action, workflowID string) {
		changes <- struct{}{}
	})
	if err := watcher.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}
	defer watcher.Stop()

	if err := os.WriteFile(store.Dir()+"/note.txt", []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	select {
	case <-changes:
		t.Error("Expected non-JSON writes to be ignored")
	case <-time.After(700 * time.Millisecond):
	}
}

func TestWorkflowWatcherStopIsIdempotent(t *testing.T) {
	store, err := NewWorkflowStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	watcher := NewWorkflowWatcher(store, nil)
	if err := watcher.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}
	watcher.Stop()
	watcher.Stop()
}
