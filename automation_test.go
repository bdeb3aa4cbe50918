package main

import (
	"fmt"
	"testing"
	"time"
)

// fakeController records every input call without touching a device.
type fakeController struct {
	gestures []Gesture
	coords   []Point
	typed    []string
	keys     []string
	opened   []string
	shots    []string

	failGestures bool
	failKeys     bool
}

func (c *fakeController) Perform(g Gesture, coords Point) bool {
	c.gestures = append(c.gestures, g)
	c.coords = append(c.coords, coords)
	return !c.failGestures
}

func (c *fakeController) TypeText(text string) bool {
	c.typed = append(c.typed, text)
	return true
}

func (c *fakeController) PressKey(key string) bool {
	c.keys = append(c.keys, key)
	return !c.failKeys
}

func (c *fakeController) OpenApp(pkg string) bool {
	c.opened = append(c.opened, pkg)
	return true
}

func (c *fakeController) Screenshot(path string) (string, error) {
	c.shots = append(c.shots, path)
	return path, nil
}

// fakeSnapshots serves canned element lists.
type fakeSnapshots struct {
	elements      []Element
	err           error
	calls         int
	invalidations int

	// after overrides elements once calls exceeds it, for wait_for tests.
	after         int
	afterElements []Element

	// clearOnInvalidate empties the element list when the cache is dropped,
	// modeling UI that changed under the previous step's snapshot.
	clearOnInvalidate bool
}

func (s *fakeSnapshots) Snapshot() ([]Element, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.after > 0 && s.calls > s.after {
		return s.afterElements, nil
	}
	return s.elements, nil
}

func (s *fakeSnapshots) Invalidate() {
	s.invalidations++
	if s.clearOnInvalidate {
		s.elements = nil
	}
}

func newTestRunner(c *fakeController, s *fakeSnapshots, cfg RunnerConfig) *Runner {
	r := NewRunner(c, s, cfg)
	r.sleep = func(time.Duration) {}
	return r
}

func TestRunnerExecutesSteps(t *testing.T) {
	controller := &fakeController{}
	snapshots := &fakeSnapshots{elements: []Element{
		{Class: "android.widget.Button", Text: "Log in", Bounds: Rect{100, 200, 500, 300}, Clickable: true},
	}}
	runner := newTestRunner(controller, snapshots, DefaultRunnerConfig())

	x, y := 50, 60
	steps := []Step{
		newStepWith(ActionTap, func(s *Step) { s.X = &x; s.Y = &y }),
		newStepWith(ActionTap, func(s *Step) { s.Text = "Log in" }),
		newStepWith(ActionTypeText, func(s *Step) { s.Value = "secret" }),
		newStepWith(ActionPress, func(s *Step) {}),
	}

	result := runner.Run(steps)
	if !result.Success {
		t.Fatalf("Expected success, got %+v", result)
	}
	if result.ExecutedSteps != 4 || result.FailedSteps != 0 {
		t.Errorf("Expected 4 executed, got %+v", result)
	}
	if len(result.StepResults) != 4 {
		t.Fatalf("Expected 4 step results, got %d", len(result.StepResults))
	}

	// Coordinate tap goes to the literal point.
	if controller.coords[0].X != 50 || controller.coords[0].Y != 60 {
		t.Errorf("Expected tap at (50, 60), got %v", controller.coords[0])
	}
	// Element tap goes to the matched element center.
	if controller.coords[1].X != 300 || controller.coords[1].Y != 250 {
		t.Errorf("Expected tap at element center (300, 250), got %v", controller.coords[1])
	}
	if len(controller.typed) != 1 || controller.typed[0] != "secret" {
		t.Errorf("Expected typed text, got %v", controller.typed)
	}
	// Press without a value defaults to back.
	if len(controller.keys) != 1 || controller.keys[0] != "back" {
		t.Errorf("Expected default back key, got %v", controller.keys)
	}

	// The element step carries its match confidence.
	if result.StepResults[1].Confidence == nil || *result.StepResults[1].Confidence != 1.0 {
		t.Errorf("Expected confidence 1.0 on element tap, got %v", result.StepResults[1].Confidence)
	}
}

func newStepWith(action ActionType, mutate func(*Step)) Step {
	s := NewStep(action)
	mutate(&s)
	return s
}

func TestRunnerRetriesThenFails(t *testing.T) {
	controller := &fakeController{failGestures: true}
	snapshots := &fakeSnapshots{}
	runner := newTestRunner(controller, snapshots, DefaultRunnerConfig())

	x, y := 10, 10
	step := newStepWith(ActionTap, func(s *Step) { s.X = &x; s.Y = &y; s.Retries = 2 })

	result := runner.Run([]Step{step})
	if result.Success {
		t.Fatal("Expected run to fail")
	}
	if result.StepResults[0].Attempts != 3 {
		t.Errorf("Expected 3 attempts (retries + 1), got %d", result.StepResults[0].Attempts)
	}
	if result.StepResults[0].Status != StepFailed {
		t.Errorf("Expected failed status, got %s", result.StepResults[0].Status)
	}
	if result.Error == "" {
		t.Error("Expected a top-level error with stop-on-failure")
	}
}

func TestRunnerStopOnFailureAborts(t *testing.T) {
	controller := &fakeController{failKeys: true}
	snapshots := &fakeSnapshots{}
	runner := newTestRunner(controller, snapshots, DefaultRunnerConfig())

	steps := []Step{
		newStepWith(ActionPress, func(s *Step) { s.Retries = 0 }),
		newStepWith(ActionWait, func(s *Step) { s.TimeoutMs = 10 }),
	}

	result := runner.Run(steps)
	if result.Success {
		t.Fatal("Expected run to fail")
	}
	if len(result.StepResults) != 1 {
		t.Errorf("Expected the run to abort after the first step, got %d results", len(result.StepResults))
	}
}

func TestRunnerContinueOnFailure(t *testing.T) {
	controller := &fakeController{failKeys: true}
	snapshots := &fakeSnapshots{}
	cfg := DefaultRunnerConfig()
	cfg.StopOnFailure = false
	runner := newTestRunner(controller, snapshots, cfg)

	steps := []Step{
		newStepWith(ActionPress, func(s *Step) { s.Retries = 0; s.OnFailure = FailContinue }),
		newStepWith(ActionWait, func(s *Step) { s.TimeoutMs = 10 }),
	}

	result := runner.Run(steps)
	if result.Success {
		t.Fatal("Expected failed result")
	}
	if len(result.StepResults) != 2 {
		t.Fatalf("Expected both steps to run, got %d results", len(result.StepResults))
	}
	if result.ExecutedSteps != 1 || result.FailedSteps != 1 {
		t.Errorf("Expected 1 executed and 1 failed, got %+v", result)
	}
}

func TestRunnerOptionalStepFailureIsSkipped(t *testing.T) {
	controller := &fakeController{failKeys: true}
	snapshots := &fakeSnapshots{}
	runner := newTestRunner(controller, snapshots, DefaultRunnerConfig())

	steps := []Step{
		newStepWith(ActionPress, func(s *Step) { s.Retries = 0; s.Optional = true }),
		newStepWith(ActionWait, func(s *Step) { s.TimeoutMs = 10 }),
	}

	result := runner.Run(steps)
	if !result.Success {
		t.Fatalf("Expected success with optional failure, got %+v", result)
	}
	if result.SkippedSteps != 1 || result.ExecutedSteps != 1 {
		t.Errorf("Expected 1 skipped and 1 executed, got %+v", result)
	}
	if result.StepResults[0].Status != StepSkipped {
		t.Errorf("Expected skipped status, got %s", result.StepResults[0].Status)
	}
	if result.StepResults[0].Error != "" {
		t.Errorf("Expected cleared error on optional failure, got %q", result.StepResults[0].Error)
	}
}

func TestRunnerConditionGating(t *testing.T) {
	controller := &fakeController{}
	snapshots := &fakeSnapshots{}
	runner := newTestRunner(controller, snapshots, DefaultRunnerConfig())

	steps := []Step{
		newStepWith(ActionPress, func(s *Step) {
			s.Condition = func() (bool, error) { return false, nil }
		}),
		newStepWith(ActionPress, func(s *Step) {
			s.Condition = func() (bool, error) { return true, nil }
		}),
		newStepWith(ActionPress, func(s *Step) {
			s.Condition = func() (bool, error) { return false, fmt.Errorf("probe failed") }
		}),
	}

	result := runner.Run(steps)
	if !result.Success {
		t.Fatalf("Expected success, got %+v", result)
	}
	if result.SkippedSteps != 1 {
		t.Errorf("Expected 1 skipped step, got %d", result.SkippedSteps)
	}
	// Condition errors do not block: the erroring step still ran.
	if len(controller.keys) != 2 {
		t.Errorf("Expected 2 key presses, got %d", len(controller.keys))
	}
	if result.StepResults[0].Message != "condition not met" {
		t.Errorf("Unexpected skip message: %q", result.StepResults[0].Message)
	}
}

func TestRunnerWaitFor(t *testing.T) {
	controller := &fakeController{}
	target := Element{Class: "android.widget.TextView", Text: "Done", Bounds: Rect{0, 0, 100, 50}}
	snapshots := &fakeSnapshots{after: 2, afterElements: []Element{target}}
	runner := newTestRunner(controller, snapshots, DefaultRunnerConfig())

	step := newStepWith(ActionWaitFor, func(s *Step) { s.Text = "Done"; s.TimeoutMs = 60000 })

	result := runner.Run([]Step{step})
	if !result.Success {
		t.Fatalf("Expected wait_for to succeed, got %+v", result)
	}
	if snapshots.calls < 3 {
		t.Errorf("Expected polling to snapshot repeatedly, got %d calls", snapshots.calls)
	}
}

func TestRunnerAssertions(t *testing.T) {
	controller := &fakeController{}
	snapshots := &fakeSnapshots{elements: []Element{
		{Class: "android.widget.TextView", Text: "Welcome", Bounds: Rect{0, 0, 100, 50}},
	}}
	runner := newTestRunner(controller, snapshots, DefaultRunnerConfig())

	pass := []Step{
		newStepWith(ActionAssertExists, func(s *Step) { s.Text = "Welcome" }),
		newStepWith(ActionAssertNotExists, func(s *Step) { s.Text = "Error dialog"; s.Retries = 0 }),
	}
	result := runner.Run(pass)
	if !result.Success {
		t.Fatalf("Expected assertions to pass, got %+v", result)
	}

	fail := []Step{
		newStepWith(ActionAssertExists, func(s *Step) { s.Text = "Missing"; s.Retries = 0 }),
	}
	result = runner.Run(fail)
	if result.Success {
		t.Fatal("Expected assert_exists on a missing element to fail")
	}
}

func TestRunnerSwipeDefaults(t *testing.T) {
	controller := &fakeController{}
	snapshots := &fakeSnapshots{}
	runner := newTestRunner(controller, snapshots, DefaultRunnerConfig())

	steps := []Step{
		newStepWith(ActionSwipe, func(s *Step) {}),
		newStepWith(ActionScroll, func(s *Step) { s.Direction = DirectionLeft }),
	}

	result := runner.Run(steps)
	if !result.Success {
		t.Fatalf("Expected success, got %+v", result)
	}
	if controller.gestures[0].Direction != DirectionUp {
		t.Errorf("Expected swipe to default up, got %s", controller.gestures[0].Direction)
	}
	if controller.gestures[1].Direction != DirectionLeft {
		t.Errorf("Expected explicit scroll direction, got %s", controller.gestures[1].Direction)
	}
}

func TestRunnerStop(t *testing.T) {
	controller := &fakeController{}
	snapshots := &fakeSnapshots{}
	runner := newTestRunner(controller, snapshots, DefaultRunnerConfig())
	runner.Stop()
	// Stop is reset at the start of a run, so a pre-stopped runner still runs.
	result := runner.Run([]Step{newStepWith(ActionWait, func(s *Step) { s.TimeoutMs = 1 })})
	if !result.Success {
		t.Fatalf("Expected run after reset to succeed, got %+v", result)
	}
}

func TestRunnerFreshSnapshotPerStep(t *testing.T) {
	controller := &fakeController{}
	// The dialog is on screen when the run starts; the tap dismisses it, so
	// the next step's snapshot must not see it.
	snapshots := &fakeSnapshots{
		elements: []Element{
			{Class: "android.widget.TextView", Text: "Update available", Bounds: Rect{100, 800, 900, 1000}},
		},
		clearOnInvalidate: true,
	}
	runner := newTestRunner(controller, snapshots, DefaultRunnerConfig())

	x, y := 500, 900
	steps := []Step{
		newStepWith(ActionTap, func(s *Step) { s.X = &x; s.Y = &y }),
		newStepWith(ActionAssertNotExists, func(s *Step) { s.Text = "Update available"; s.Retries = 0 }),
	}

	result := runner.Run(steps)
	if !result.Success {
		t.Fatalf("Expected dismissed dialog to be gone in the next step, got %+v", result)
	}
	// The cache is dropped at every step boundary.
	if snapshots.invalidations != 2 {
		t.Errorf("Expected 2 invalidations, got %d", snapshots.invalidations)
	}
}

func TestRunnerMissingSelector(t *testing.T) {
	controller := &fakeController{}
	snapshots := &fakeSnapshots{}
	runner := newTestRunner(controller, snapshots, DefaultRunnerConfig())

	step := newStepWith(ActionTap, func(s *Step) { s.Retries = 0 })
	result := runner.Run([]Step{step})
	if result.Success {
		t.Fatal("Expected tap without selector or coordinates to fail")
	}
}
