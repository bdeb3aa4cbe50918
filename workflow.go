package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ========================================
// Workflow Recorder and Store
// ========================================

// WorkflowRecorder accumulates recorded steps into a workflow.
type WorkflowRecorder struct {
	workflow    Workflow
	snapshotDir string
}

// NewWorkflowRecorder starts a new workflow with a fresh id.
func NewWorkflowRecorder(name, deviceID, resolution, snapshotDir string) *WorkflowRecorder {
	return &WorkflowRecorder{
		workflow: Workflow{
			ID:         uuid.NewString(),
			Name:       name,
			DeviceID:   deviceID,
			Resolution: resolution,
			CreatedAt:  time.Now().UTC().Format(time.RFC3339),
			Steps:      []WorkflowStep{},
		},
		snapshotDir: snapshotDir,
	}
}

// Len returns the number of recorded steps.
func (r *WorkflowRecorder) Len() int {
	return len(r.workflow.Steps)
}

// SnapshotPath returns the snapshot file path for the next step.
func (r *WorkflowRecorder) SnapshotPath(stepID int) string {
	if r.snapshotDir == "" {
		return ""
	}
	return filepath.Join(r.snapshotDir, fmt.Sprintf("ui_step_%d.xml", stepID))
}

// AddStep appends a step. Step ids are assigned sequentially from 1.
func (r *WorkflowRecorder) AddStep(g Gesture, element *Element, loc Locator, snapshotRef string) WorkflowStep {
	step := WorkflowStep{
		StepID:   len(r.workflow.Steps) + 1,
		Action:   g.Type,
		Gesture:  g,
		Element:  element,
		Locator:  loc,
		Snapshot: snapshotRef,
	}
	r.workflow.Steps = append(r.workflow.Steps, step)
	return step
}

// Deduplicate removes consecutive duplicate steps: same action, same
// locator primary, start points within the tap radius. Touch drivers
// sometimes report a single physical tap twice. Returns the number of
// steps removed.
func (r *WorkflowRecorder) Deduplicate() int {
	steps := r.workflow.Steps
	if len(steps) < 2 {
		return 0
	}

	kept := steps[:1]
	removed := 0
	for _, step := range steps[1:] {
		prev := kept[len(kept)-1]
		if step.Action == prev.Action &&
			step.Locator.Primary == prev.Locator.Primary &&
			abs(step.Gesture.Start.X-prev.Gesture.Start.X) <= int(TapRadius) &&
			abs(step.Gesture.Start.Y-prev.Gesture.Start.Y) <= int(TapRadius) {
			removed++
			continue
		}
		kept = append(kept, step)
	}

	for i := range kept {
		kept[i].StepID = i + 1
	}
	r.workflow.Steps = kept
	return removed
}

// Workflow returns the recorded workflow.
func (r *WorkflowRecorder) Workflow() Workflow {
	return r.workflow
}

// Summary returns a human-readable recording summary.
func (r *WorkflowRecorder) Summary() string {
	counts := make(map[GestureType]int)
	for _, s := range r.workflow.Steps {
		counts[s.Action]++
	}

	lines := []string{fmt.Sprintf("Recorded %d step(s)", len(r.workflow.Steps))}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		lines = append(lines, fmt.Sprintf("  %s: %d", k, counts[GestureType(k)]))
	}
	return strings.Join(lines, "\n")
}

// Save writes the workflow to a file.
func (r *WorkflowRecorder) Save(path string) error {
	return WriteWorkflowFile(r.workflow, path)
}

// ========================================
// Workflow files
// ========================================

// WriteWorkflowFile serializes a workflow to a JSON file, creating parent
// directories as needed.
func WriteWorkflowFile(w Workflow, path string) error {
	data, err := SerializeWorkflow(w)
	if err != nil {
		return fmt.Errorf("failed to serialize workflow: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create workflow directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write workflow: %w", err)
	}
	LogInfo("workflow").Str("path", path).Int("steps", len(w.Steps)).Msg("Workflow saved")
	return nil
}

// LoadWorkflowFile reads and validates a workflow file.
func LoadWorkflowFile(path string) (Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Workflow{}, fmt.Errorf("failed to read workflow: %w", err)
	}
	w, err := ParseWorkflow(data)
	if err != nil {
		return Workflow{}, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

// ========================================
// Workflow store
// ========================================

// WorkflowStore manages the workflow library under a config directory.
type WorkflowStore struct {
	dir string
}

// NewWorkflowStore returns a store rooted at <configDir>/workflows.
func NewWorkflowStore(configDir string) (*WorkflowStore, error) {
	dir := filepath.Join(configDir, "workflows")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workflow store: %w", err)
	}
	return &WorkflowStore{dir: dir}, nil
}

// Dir returns the store directory.
func (s *WorkflowStore) Dir() string {
	return s.dir
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._\-]`)

// sanitizeFilename keeps workflow ids safe as file names.
func sanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

func (s *WorkflowStore) pathFor(id string) string {
	return filepath.Join(s.dir, sanitizeFilename(id)+".json")
}

// Save persists a workflow into the store, keyed by its id.
func (s *WorkflowStore) Save(w Workflow) error {
	if w.ID == "" {
		return fmt.Errorf("workflow has no id")
	}
	return WriteWorkflowFile(w, s.pathFor(w.ID))
}

// Get loads one workflow by id.
func (s *WorkflowStore) Get(id string) (Workflow, error) {
	return LoadWorkflowFile(s.pathFor(id))
}

// Delete removes one workflow by id.
func (s *WorkflowStore) Delete(id string) error {
	path := s.pathFor(id)
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}
	LogInfo("workflow").Str("id", id).Msg("Workflow deleted")
	return nil
}

// List loads every workflow in the store, newest first. Unreadable files
// are skipped with a warning.
func (s *WorkflowStore) List() ([]Workflow, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow store: %w", err)
	}

	type stamped struct {
		w       Workflow
		modTime time.Time
	}
	var loaded []stamped

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		w, err := LoadWorkflowFile(path)
		if err != nil {
			LogWarn("workflow").Str("path", path).Err(err).Msg("Skipping unreadable workflow")
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		loaded = append(loaded, stamped{w: w, modTime: info.ModTime()})
	}

	sort.Slice(loaded, func(i, j int) bool {
		return loaded[i].modTime.After(loaded[j].modTime)
	})

	workflows := make([]Workflow, len(loaded))
	for i, l := range loaded {
		workflows[i] = l.w
	}
	return workflows, nil
}
