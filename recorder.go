package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ========================================
// Recording Session
// ========================================
// Wires the event source, tracker, classifier, and matcher into a live
// recording: touch events in, workflow steps out.

// scrollableClasses are container classes treated as scrollable regions for
// swipe vs scroll classification.
var scrollableClasses = []string{
	"ScrollView",
	"HorizontalScrollView",
	"NestedScrollView",
	"RecyclerView",
	"ListView",
	"GridView",
	"ViewPager",
	"WebView",
}

// scrollableAt reports whether any element containing the point has a
// scrollable container class.
func scrollableAt(elements []Element, x, y int) bool {
	for _, e := range elements {
		if !e.Bounds.Contains(x, y) {
			continue
		}
		for _, cls := range scrollableClasses {
			if strings.Contains(e.Class, cls) {
				return true
			}
		}
	}
	return false
}

// RecorderConfig configures a recording session.
type RecorderConfig struct {
	// Name is the workflow name.
	Name string
	// OutputPath receives the workflow JSON on stop.
	OutputPath string
	// SnapshotDir receives per-step UI snapshots; empty disables them.
	SnapshotDir string
	// DeviceID is the recorded device.
	DeviceID string
	// Resolution is the "WxH" screen size string stored in the workflow.
	Resolution string
}

// RecordingSession consumes touch samples and turns them into workflow
// steps. The UI snapshot is captured at touch-down so element matching sees
// the screen as it was when the user aimed, not after the gesture changed
// it.
type RecordingSession struct {
	source     EventSource
	snapshots  *DeviceSnapshotProvider
	tracker    *TouchTracker
	classifier *GestureClassifier
	recorder   *WorkflowRecorder
	cfg        RecorderConfig

	mu              sync.Mutex
	pendingElements []Element
	pendingXML      string

	done chan struct{}
}

// NewRecordingSession assembles a session from its collaborators.
func NewRecordingSession(source EventSource, snapshots *DeviceSnapshotProvider, cfg RecorderConfig) *RecordingSession {
	s := &RecordingSession{
		source:    source,
		snapshots: snapshots,
		tracker:   NewTouchTracker(),
		recorder:  NewWorkflowRecorder(cfg.Name, cfg.DeviceID, cfg.Resolution, cfg.SnapshotDir),
		cfg:       cfg,
		done:      make(chan struct{}),
	}
	s.classifier = NewGestureClassifier(func(x, y int) bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return scrollableAt(s.pendingElements, x, y)
	})
	return s
}

// Start begins the event loop. It returns once the source is streaming.
func (s *RecordingSession) Start(ctx context.Context) error {
	if err := s.source.Start(ctx); err != nil {
		return fmt.Errorf("failed to start event source: %w", err)
	}

	LogInfo("recorder").Str("device", s.cfg.DeviceID).Msg("Recording started")

	go func() {
		defer close(s.done)
		for sample := range s.source.Samples() {
			s.handleSample(sample)
		}
	}()
	return nil
}

func (s *RecordingSession) handleSample(sample TouchSample) {
	// First finger down: snapshot the UI before the gesture changes it.
	if sample.Phase == PhaseDown && s.tracker.ActiveCount() == 0 {
		s.captureSnapshot()
	}

	for _, group := range s.tracker.Feed(sample) {
		s.handleGroup(group)
	}
}

func (s *RecordingSession) captureSnapshot() {
	xmlContent, err := s.snapshots.SnapshotXML()
	if err != nil {
		// Degraded capture: the gesture still records, bound to raw
		// coordinates only.
		LogWarn("recorder").Err(err).Msg("UI capture failed, step will be coordinate-only")
		s.mu.Lock()
		s.pendingElements = nil
		s.pendingXML = ""
		s.mu.Unlock()
		return
	}

	elements, err := ParseUIElements(xmlContent)
	if err != nil {
		LogWarn("recorder").Err(err).Msg("UI parse failed, step will be coordinate-only")
		elements = nil
		xmlContent = ""
	}

	s.mu.Lock()
	s.pendingElements = elements
	s.pendingXML = xmlContent
	s.mu.Unlock()

	LogDebug("recorder").Int("elements", len(elements)).Msg("UI captured")
}

func (s *RecordingSession) handleGroup(group []*TouchTrack) {
	for _, gesture := range s.classifier.Classify(group) {
		s.addStep(gesture)
	}
}

func (s *RecordingSession) addStep(g Gesture) {
	s.mu.Lock()
	elements := s.pendingElements
	xmlContent := s.pendingXML
	s.mu.Unlock()

	element, locator := MatchElementAtPoint(elements, g.Start.X, g.Start.Y)

	snapshotRef := ""
	if s.cfg.SnapshotDir != "" && xmlContent != "" {
		stepID := s.recorder.Len() + 1
		path := s.recorder.SnapshotPath(stepID)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err == nil {
			if err := os.WriteFile(path, []byte(xmlContent), 0644); err == nil {
				snapshotRef = filepath.Base(path)
			} else {
				LogWarn("recorder").Err(err).Msg("Failed to persist snapshot")
			}
		}
	}

	step := s.recorder.AddStep(g, element, locator, snapshotRef)

	LogInfo("recorder").
		Int("step", step.StepID).
		Str("gesture", string(g.Type)).
		Str("match", DescribeMatch(element, locator)).
		Msg("Step recorded")
}

// Stop ends the session: flushes incomplete tracks, deduplicates, and saves
// the workflow. Returns the recorded workflow.
func (s *RecordingSession) Stop() (Workflow, error) {
	s.source.Stop()
	<-s.done

	// Closed tracks still buffered for pairing are flushed; tracks with no
	// up event are discarded by the tracker.
	for _, group := range s.tracker.Close() {
		s.handleGroup(group)
	}

	if removed := s.recorder.Deduplicate(); removed > 0 {
		LogInfo("recorder").Int("removed", removed).Msg("Removed duplicate steps")
	}

	w := s.recorder.Workflow()
	if s.recorder.Len() == 0 {
		LogWarn("recorder").Msg("No steps recorded")
		return w, nil
	}

	if s.cfg.OutputPath != "" {
		if err := s.recorder.Save(s.cfg.OutputPath); err != nil {
			return w, err
		}
	}

	LogInfo("recorder").Msg("Recording stopped\n" + s.recorder.Summary())
	return w, nil
}
