package main

import (
	"fmt"
	"sync/atomic"
	"time"
)

// ========================================
// Automation Runner
// ========================================
// Executes scripted steps against a device: waits, retries, confidence
// gating, and per-step result reporting.

// RunnerConfig controls global runner behavior. Per-step settings live on
// the steps themselves.
type RunnerConfig struct {
	// StopOnFailure aborts the run when a non-optional step fails.
	StopOnFailure bool
	// ScreenshotOnFailure captures a screenshot after each failed step.
	ScreenshotOnFailure bool
	// ScreenshotDir receives failure screenshots.
	ScreenshotDir string
	// PollInterval is the wait_for re-check interval.
	PollInterval time.Duration
}

// DefaultRunnerConfig returns the standard configuration.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		StopOnFailure: true,
		PollInterval:  200 * time.Millisecond,
	}
}

// Runner executes step sequences. Safe for one run at a time; Stop may be
// called from another goroutine.
type Runner struct {
	controller DeviceController
	snapshots  SnapshotProvider
	cfg        RunnerConfig
	stopped    atomic.Bool

	// sleep is replaceable for tests.
	sleep func(time.Duration)
}

// NewRunner returns a runner over the given device surfaces.
func NewRunner(controller DeviceController, snapshots SnapshotProvider, cfg RunnerConfig) *Runner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	return &Runner{
		controller: controller,
		snapshots:  snapshots,
		cfg:        cfg,
		sleep:      time.Sleep,
	}
}

// Stop requests the run to halt. The current step finishes; remaining steps
// are not started. The final summary still runs.
func (r *Runner) Stop() {
	r.stopped.Store(true)
}

// Run executes the steps in order and returns the aggregate result. Every
// started step contributes exactly one StepResult.
func (r *Runner) Run(steps []Step) AutomationResult {
	r.stopped.Store(false)
	start := time.Now()

	result := AutomationResult{
		TotalSteps:  len(steps),
		StepResults: []StepResult{},
	}

	LogInfo("automation").Int("steps", len(steps)).Msg("Run started")

	for i, step := range steps {
		if r.stopped.Load() {
			result.Error = "stopped by user"
			LogWarn("automation").Int("at_step", i).Msg("Run stopped by user")
			break
		}

		stepResult := r.executeStep(i, step)
		result.StepResults = append(result.StepResults, stepResult)

		switch stepResult.Status {
		case StepSuccess:
			result.ExecutedSteps++
		case StepSkipped:
			result.SkippedSteps++
		case StepFailed:
			result.FailedSteps++
			if step.OnFailure == FailStop || (r.cfg.StopOnFailure && !step.Optional) {
				result.Error = fmt.Sprintf("step %d failed: %s", i+1, stepResult.Error)
				LogError("automation").Int("step", i+1).Str("error", stepResult.Error).Msg("Aborting run")
			}
		}
		if result.Error != "" {
			break
		}
	}

	result.DurationMs = time.Since(start).Milliseconds()
	result.Success = result.FailedSteps == 0 && result.Error == ""

	LogInfo("automation").
		Bool("success", result.Success).
		Int("executed", result.ExecutedSteps).
		Int("failed", result.FailedSteps).
		Int("skipped", result.SkippedSteps).
		Int64("duration_ms", result.DurationMs).
		Msg("Run finished")
	return result
}

// executeStep runs one step through its wait/retry cycle.
func (r *Runner) executeStep(index int, step Step) StepResult {
	result := StepResult{
		StepIndex: index,
		Action:    string(step.Action),
		Status:    StepRunning,
	}
	start := time.Now()

	LogInfo("automation").
		Int("step", index+1).
		Str("action", string(step.Action)).
		Str("target", step.TargetDescription()).
		Msg("Step started")

	invalidateSnapshots(r.snapshots)

	// Conditions gate execution. A condition error is treated as not
	// blocking: the step runs and reports its own outcome.
	if step.Condition != nil {
		ok, err := step.Condition()
		if err != nil {
			LogWarn("automation").Int("step", index+1).Err(err).Msg("Condition check failed, running step anyway")
		} else if !ok {
			result.Status = StepSkipped
			result.Message = "condition not met"
			result.DurationMs = time.Since(start).Milliseconds()
			return result
		}
	}

	if step.WaitBeforeMs > 0 {
		r.sleep(time.Duration(step.WaitBeforeMs) * time.Millisecond)
	}

	maxAttempts := step.Retries + 1
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt
		if attempt > 1 {
			result.Status = StepRetrying
			LogInfo("automation").Int("step", index+1).Int("attempt", attempt).Msg("Retrying step")
		}

		confidence, err := r.doStep(step)
		if err == nil {
			result.Status = StepSuccess
			result.Confidence = confidence
			result.DurationMs = time.Since(start).Milliseconds()
			if step.WaitAfterMs > 0 {
				r.sleep(time.Duration(step.WaitAfterMs) * time.Millisecond)
			}
			return result
		}

		lastErr = err
		if attempt < maxAttempts {
			r.sleep(time.Duration(step.RetryDelayMs) * time.Millisecond)
		}
	}

	result.Status = StepFailed
	result.Error = lastErr.Error()
	result.DurationMs = time.Since(start).Milliseconds()

	if step.Optional {
		// Optional steps report failure but never sink the run; recount as
		// skipped.
		result.Status = StepSkipped
		result.Message = "optional step failed: " + lastErr.Error()
		result.Error = ""
	}

	if r.cfg.ScreenshotOnFailure && result.Status == StepFailed {
		name := fmt.Sprintf("%s/step_%d_failure.png", r.cfg.ScreenshotDir, index+1)
		if _, err := r.controller.Screenshot(name); err != nil {
			LogWarn("automation").Err(err).Msg("Failure screenshot failed")
		}
	}
	return result
}

// doStep performs the step action once. The returned confidence is set for
// element-targeted actions.
func (r *Runner) doStep(step Step) (*float64, error) {
	switch step.Action {
	case ActionTap, ActionLongPress:
		return r.doTouch(step)

	case ActionSwipe, ActionScroll:
		dir := step.Direction
		if dir == "" {
			if step.Action == ActionSwipe {
				dir = DirectionUp
			} else {
				dir = DirectionDown
			}
		}
		g := Gesture{Type: GestureType(step.Action), Direction: dir, DurationMs: 300}
		if !r.controller.Perform(g, Point{}) {
			return nil, fmt.Errorf("%s %s failed", step.Action, dir)
		}
		return nil, nil

	case ActionTypeText:
		if !r.controller.TypeText(step.Value) {
			return nil, fmt.Errorf("text input failed")
		}
		return nil, nil

	case ActionPress:
		key := step.Value
		if key == "" {
			key = "back"
		}
		if !r.controller.PressKey(key) {
			return nil, fmt.Errorf("key press %q failed", key)
		}
		return nil, nil

	case ActionOpen:
		if step.App == "" {
			return nil, fmt.Errorf("open requires an app")
		}
		if !r.controller.OpenApp(step.App) {
			return nil, fmt.Errorf("failed to open %q", step.App)
		}
		return nil, nil

	case ActionWait:
		r.sleep(time.Duration(step.TimeoutMs) * time.Millisecond)
		return nil, nil

	case ActionWaitFor:
		return r.doWaitFor(step)

	case ActionAssertExists:
		match, err := r.findTarget(step)
		if err != nil {
			return nil, err
		}
		if match == nil {
			return nil, fmt.Errorf("assertion failed: %s not found", step.TargetDescription())
		}
		return &match.Confidence, nil

	case ActionAssertNotExists:
		match, err := r.findTarget(step)
		if err != nil {
			return nil, err
		}
		if match != nil {
			return &match.Confidence, fmt.Errorf("assertion failed: %s is present", step.TargetDescription())
		}
		return nil, nil

	case ActionScreenshot:
		if _, err := r.controller.Screenshot(step.Value); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return nil, fmt.Errorf("unsupported action %q", step.Action)
}

// doTouch taps or long-presses at explicit coordinates or a resolved
// element center.
func (r *Runner) doTouch(step Step) (*float64, error) {
	gestureType := GestureTap
	var durationMs int64
	if step.Action == ActionLongPress {
		gestureType = GestureLongPress
		durationMs = 1000
	}
	g := Gesture{Type: gestureType, DurationMs: durationMs}

	if step.X != nil && step.Y != nil {
		if !r.controller.Perform(g, Point{X: *step.X, Y: *step.Y}) {
			return nil, fmt.Errorf("%s at (%d, %d) failed", step.Action, *step.X, *step.Y)
		}
		return nil, nil
	}

	match, err := r.findTarget(step)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, fmt.Errorf("no element matching %s (min confidence %.2f)",
			step.TargetDescription(), step.MinConfidence)
	}

	if !r.controller.Perform(g, match.Element.Bounds.Center()) {
		return &match.Confidence, fmt.Errorf("%s on %s failed", step.Action, step.TargetDescription())
	}
	return &match.Confidence, nil
}

// doWaitFor polls the snapshot until the target appears or the timeout
// elapses.
func (r *Runner) doWaitFor(step Step) (*float64, error) {
	deadline := time.Now().Add(time.Duration(step.TimeoutMs) * time.Millisecond)
	for {
		match, err := r.findTarget(step)
		if err == nil && match != nil {
			return &match.Confidence, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timeout waiting for %s", step.TargetDescription())
		}
		r.sleep(r.cfg.PollInterval)
	}
}

// findTarget snapshots the UI and scores it against the step's selectors.
func (r *Runner) findTarget(step Step) (*MatchResult, error) {
	criteria := CriteriaFromStep(step)
	if criteria.Empty() {
		return nil, fmt.Errorf("step %s has no target selector", step.Action)
	}

	elements, err := r.snapshots.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot failed: %w", err)
	}
	return BestMatch(criteria, elements, step.MinConfidence), nil
}
