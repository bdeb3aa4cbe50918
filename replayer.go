package main

import (
	"fmt"
	"sync/atomic"
	"time"
)

// ========================================
// Replay Session
// ========================================
// Replays a recorded workflow: per step, take a fresh snapshot, resolve the
// locator, and perform the gesture at the resolved coordinates.

// ReplayConfig controls workflow replay.
type ReplayConfig struct {
	// Delay between steps.
	Delay time.Duration
	// Retries is the number of re-attempts per failed step.
	Retries int
	// RetryDelay separates attempts.
	RetryDelay time.Duration
	// StopOnFailure aborts on the first failed step. Replay defaults to
	// pressing on, since later steps may not depend on the failed one.
	StopOnFailure bool
}

// DefaultReplayConfig returns the standard replay configuration.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		Delay:      500 * time.Millisecond,
		Retries:    1,
		RetryDelay: 1 * time.Second,
	}
}

// ReplaySession replays one workflow.
type ReplaySession struct {
	workflow  Workflow
	snapshots SnapshotProvider
	executor  *GestureExecutor
	resolver  *LocatorResolver
	cfg       ReplayConfig
	stopped   atomic.Bool

	// sleep is replaceable for tests.
	sleep func(time.Duration)
}

// NewReplaySession returns a session over the given device surfaces. The
// sink is wrapped in a GestureExecutor supplying the inter-gesture delay.
func NewReplaySession(w Workflow, snapshots SnapshotProvider, sink GestureSink, cfg ReplayConfig) *ReplaySession {
	return &ReplaySession{
		workflow:  w,
		snapshots: snapshots,
		executor:  NewGestureExecutor(sink, cfg.Delay),
		resolver:  NewLocatorResolver(),
		cfg:       cfg,
		sleep:     time.Sleep,
	}
}

// Stop requests the replay to halt after the current step.
func (s *ReplaySession) Stop() {
	s.stopped.Store(true)
}

// Run replays every step and returns the aggregate result.
func (s *ReplaySession) Run() AutomationResult {
	s.stopped.Store(false)
	start := time.Now()

	result := AutomationResult{
		TotalSteps:  len(s.workflow.Steps),
		StepResults: []StepResult{},
	}

	LogInfo("replayer").
		Str("workflow", s.workflow.ID).
		Int("steps", len(s.workflow.Steps)).
		Msg("Replay started")

	for i, step := range s.workflow.Steps {
		if s.stopped.Load() {
			result.Error = "stopped by user"
			LogWarn("replayer").Int("at_step", step.StepID).Msg("Replay stopped by user")
			break
		}

		stepResult := s.executeStep(i, step)
		result.StepResults = append(result.StepResults, stepResult)

		if stepResult.Status == StepSuccess {
			result.ExecutedSteps++
		} else {
			result.FailedSteps++
			if s.cfg.StopOnFailure {
				result.Error = fmt.Sprintf("step %d failed: %s", step.StepID, stepResult.Error)
				break
			}
		}
	}

	result.DurationMs = time.Since(start).Milliseconds()
	result.Success = result.FailedSteps == 0 && result.Error == ""

	gesturesOK, gesturesFailed := s.executor.Stats()
	LogInfo("replayer").
		Bool("success", result.Success).
		Int("executed", result.ExecutedSteps).
		Int("failed", result.FailedSteps).
		Int("gestures_ok", gesturesOK).
		Int("gestures_failed", gesturesFailed).
		Int64("duration_ms", result.DurationMs).
		Msg("Replay finished")
	return result
}

// executeStep resolves and performs one recorded step with retries. Each
// attempt re-resolves against a fresh snapshot, since the failed attempt
// may itself have changed the UI.
func (s *ReplaySession) executeStep(index int, step WorkflowStep) StepResult {
	result := StepResult{
		StepIndex: index,
		Action:    string(step.Action),
		Status:    StepRunning,
	}
	start := time.Now()

	maxAttempts := s.cfg.Retries + 1
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt
		if attempt > 1 {
			result.Status = StepRetrying
			s.sleep(s.cfg.RetryDelay)
		}

		res := s.resolveStep(step)
		result.StrategyUsed = res.StrategyUsed
		result.FallbackLevel = res.FallbackLevel

		if !res.Found {
			result.Message = "element not found, replaying at recorded coordinates"
		}

		if s.executor.Execute(step.Gesture, res.Coordinates) {
			result.Status = StepSuccess
			result.DurationMs = time.Since(start).Milliseconds()

			LogInfo("replayer").
				Int("step", step.StepID).
				Str("gesture", string(step.Gesture.Type)).
				Str("strategy", res.StrategyUsed).
				Int("fallback_level", res.FallbackLevel).
				Msg("Step replayed")
			return result
		}

		lastErr = fmt.Errorf("gesture %s failed at (%d, %d)",
			step.Gesture.Type, res.Coordinates.X, res.Coordinates.Y)
		LogWarn("replayer").Int("step", step.StepID).Int("attempt", attempt).Err(lastErr).Msg("Step attempt failed")
	}

	result.Status = StepFailed
	result.Error = lastErr.Error()
	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

// resolveStep resolves the step's locator against a fresh snapshot. A
// failed snapshot degrades to the recorded coordinates rather than failing
// the step.
func (s *ReplaySession) resolveStep(step WorkflowStep) LocatorResult {
	invalidateSnapshots(s.snapshots)
	elements, err := s.snapshots.Snapshot()
	if err != nil {
		LogWarn("replayer").Int("step", step.StepID).Err(err).Msg("Snapshot failed, using recorded coordinates")
		elements = nil
	}
	return s.resolver.Resolve(step.Locator, elements)
}
