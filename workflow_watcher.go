package main

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ========================================
// Workflow Watcher
// ========================================

// WorkflowChangeFunc receives store change notifications. Action is one of
// "updated" or "deleted"; workflowID is derived from the file name.
type WorkflowChangeFunc func(action, workflowID string)

// WorkflowWatcher monitors the workflow store directory for changes made by
// external processes (another CLI instance, the MCP server, manual edits).
type WorkflowWatcher struct {
	store    *WorkflowStore
	onChange WorkflowChangeFunc
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	mu       sync.Mutex
}

// NewWorkflowWatcher creates a watcher over the given store.
func NewWorkflowWatcher(store *WorkflowStore, onChange WorkflowChangeFunc) *WorkflowWatcher {
	return &WorkflowWatcher{
		store:    store,
		onChange: onChange,
		stopCh:   make(chan struct{}),
	}
}

// Start begins watching the store directory.
func (w *WorkflowWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	if err := watcher.Add(w.store.Dir()); err != nil {
		watcher.Close()
		return err
	}

	LogInfo("workflow_watcher").Str("path", w.store.Dir()).Msg("Started watching workflow store")

	go w.watch()
	return nil
}

// Stop stops watching.
func (w *WorkflowWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher != nil {
		close(w.stopCh)
		w.watcher.Close()
		w.watcher = nil
		LogInfo("workflow_watcher").Msg("Stopped watching workflow store")
	}
}

// watch is the event loop. Events are debounced because editors and the
// store itself produce bursts of writes for a single logical change.
func (w *WorkflowWatcher) watch() {
	const debounceDelay = 300 * time.Millisecond
	var debounceTimer *time.Timer

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}

			workflowID := strings.TrimSuffix(filepath.Base(event.Name), ".json")

			action := "updated"
			if event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
				action = "deleted"
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, func() {
				LogDebug("workflow_watcher").
					Str("action", action).
					Str("workflow_id", workflowID).
					Msg("Workflow store changed")
				if w.onChange != nil {
					w.onChange(action, workflowID)
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			LogWarn("workflow_watcher").Err(err).Msg("Watcher error")
		}
	}
}
