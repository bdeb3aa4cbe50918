package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ActionType is the closed set of scripted automation actions.
type ActionType string

const (
	ActionTap             ActionType = "tap"
	ActionLongPress       ActionType = "long_press"
	ActionSwipe           ActionType = "swipe"
	ActionScroll          ActionType = "scroll"
	ActionTypeText        ActionType = "type"
	ActionPress           ActionType = "press"
	ActionOpen            ActionType = "open"
	ActionWait            ActionType = "wait"
	ActionWaitFor         ActionType = "wait_for"
	ActionAssertExists    ActionType = "assert_exists"
	ActionAssertNotExists ActionType = "assert_not_exists"
	ActionScreenshot      ActionType = "screenshot"
)

// Valid reports whether the action is one of the supported kinds.
func (a ActionType) Valid() bool {
	switch a {
	case ActionTap, ActionLongPress, ActionSwipe, ActionScroll, ActionTypeText,
		ActionPress, ActionOpen, ActionWait, ActionWaitFor,
		ActionAssertExists, ActionAssertNotExists, ActionScreenshot:
		return true
	}
	return false
}

// OnFailure is a step's failure policy.
type OnFailure string

const (
	FailStop     OnFailure = "stop"
	FailContinue OnFailure = "continue"
	FailRetry    OnFailure = "retry"
)

// Condition is a caller-supplied predicate gating step execution. Conditions
// are capability values, never serialized: persisted steps cannot carry them.
type Condition func() (bool, error)

// Step is a single scripted automation step. Zero-valued config fields take
// the documented defaults when parsed from JSON.
type Step struct {
	Action ActionType `json:"action"`

	// Target selectors
	Text string `json:"text,omitempty"`
	ID   string `json:"id,omitempty"`
	Desc string `json:"desc,omitempty"`
	X    *int   `json:"x,omitempty"`
	Y    *int   `json:"y,omitempty"`

	App       string    `json:"app,omitempty"`
	Value     string    `json:"value,omitempty"`
	Direction Direction `json:"direction,omitempty"`

	// Execution config
	TimeoutMs     int       `json:"timeout,omitempty"`
	MinConfidence float64   `json:"min_confidence,omitempty"`
	Retries       int       `json:"retries,omitempty"`
	RetryDelayMs  int       `json:"retry_delay,omitempty"`
	WaitBeforeMs  int       `json:"wait_before,omitempty"`
	WaitAfterMs   int       `json:"wait_after,omitempty"`
	Optional      bool      `json:"optional,omitempty"`
	OnFailure     OnFailure `json:"on_failure,omitempty"`
	Description   string    `json:"description,omitempty"`

	Condition Condition `json:"-"`
}

// Step config defaults, applied when a field is absent from JSON.
const (
	DefaultTimeoutMs     = 5000
	DefaultMinConfidence = 0.3
	DefaultRetries       = 2
	DefaultRetryDelayMs  = 1000
	DefaultWaitAfterMs   = 300
)

// NewStep returns a step with default config for the given action.
func NewStep(action ActionType) Step {
	return Step{
		Action:        action,
		TimeoutMs:     DefaultTimeoutMs,
		MinConfidence: DefaultMinConfidence,
		Retries:       DefaultRetries,
		RetryDelayMs:  DefaultRetryDelayMs,
		WaitAfterMs:   DefaultWaitAfterMs,
		OnFailure:     FailStop,
	}
}

// UnmarshalJSON decodes a step with defaults pre-applied and unknown fields
// rejected.
func (s *Step) UnmarshalJSON(data []byte) error {
	type alias Step
	a := alias(NewStep(""))

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&a); err != nil {
		return err
	}
	*s = Step(a)
	return s.Validate()
}

// Validate checks the step configuration.
func (s *Step) Validate() error {
	if !s.Action.Valid() {
		return fmt.Errorf("invalid action %q", s.Action)
	}
	switch s.OnFailure {
	case FailStop, FailContinue, FailRetry:
	default:
		return fmt.Errorf("invalid on_failure %q", s.OnFailure)
	}
	if s.MinConfidence < 0 || s.MinConfidence > 1 {
		return fmt.Errorf("min_confidence %v out of range [0, 1]", s.MinConfidence)
	}
	if s.Retries < 0 {
		return fmt.Errorf("retries must not be negative")
	}
	return nil
}

// TargetDescription returns a human-readable description of the step target.
func (s Step) TargetDescription() string {
	if s.Description != "" {
		return s.Description
	}

	parts := []string{strings.ToUpper(string(s.Action))}
	if s.Text != "" {
		parts = append(parts, fmt.Sprintf("text=%q", s.Text))
	}
	if s.ID != "" {
		parts = append(parts, fmt.Sprintf("id=%q", s.ID))
	}
	if s.Desc != "" {
		parts = append(parts, fmt.Sprintf("desc=%q", s.Desc))
	}
	if s.X != nil && s.Y != nil {
		parts = append(parts, fmt.Sprintf("@(%d, %d)", *s.X, *s.Y))
	}
	if s.App != "" {
		parts = append(parts, fmt.Sprintf("app=%q", s.App))
	}
	if s.Value != "" {
		v := s.Value
		if len(v) > 20 {
			v = v[:20] + "..."
		}
		parts = append(parts, fmt.Sprintf("value=%q", v))
	}
	if s.Direction != "" {
		parts = append(parts, "direction="+string(s.Direction))
	}
	return strings.Join(parts, " ")
}

// ParseSteps parses scripted automation input: either a bare JSON array of
// steps or an object with a "steps" array. Unknown fields are rejected at
// construction.
func ParseSteps(data []byte) ([]Step, error) {
	raw := data
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		steps := root.Get("steps")
		if !steps.Exists() || !steps.IsArray() {
			return nil, fmt.Errorf("automation input must be a JSON array or an object with a \"steps\" array")
		}
		raw = []byte(steps.Raw)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var steps []Step
	if err := dec.Decode(&steps); err != nil {
		return nil, fmt.Errorf("failed to parse steps: %w", err)
	}
	return steps, nil
}

// StepStatus is the execution state of a step.
type StepStatus string

const (
	StepPending  StepStatus = "pending"
	StepRunning  StepStatus = "running"
	StepSuccess  StepStatus = "success"
	StepFailed   StepStatus = "failed"
	StepSkipped  StepStatus = "skipped"
	StepRetrying StepStatus = "retrying"
)

// StepResult is the outcome of executing a single step. Every step produces
// exactly one StepResult, including skipped and failed steps.
type StepResult struct {
	StepIndex     int        `json:"step_index"`
	Action        string     `json:"action"`
	Status        StepStatus `json:"status"`
	Message       string     `json:"message,omitempty"`
	Attempts      int        `json:"attempts"`
	DurationMs    int64      `json:"duration_ms"`
	Confidence    *float64   `json:"confidence,omitempty"`
	StrategyUsed  string     `json:"strategy_used,omitempty"`
	FallbackLevel int        `json:"fallback_level,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// AutomationResult aggregates a full run. Success is true iff no step failed
// and no top-level error interrupted the loop.
type AutomationResult struct {
	Success       bool         `json:"success"`
	TotalSteps    int          `json:"total_steps"`
	ExecutedSteps int          `json:"executed_steps"`
	FailedSteps   int          `json:"failed_steps"`
	SkippedSteps  int          `json:"skipped_steps"`
	DurationMs    int64        `json:"duration_ms"`
	StepResults   []StepResult `json:"step_results"`
	Error         string       `json:"error,omitempty"`
}

// Summary returns a human-readable run summary.
func (r AutomationResult) Summary() string {
	status := "SUCCESS"
	if !r.Success {
		status = "FAILED"
	}
	lines := []string{
		fmt.Sprintf("Automation %s", status),
		fmt.Sprintf("  Steps: %d/%d executed", r.ExecutedSteps, r.TotalSteps),
		fmt.Sprintf("  Failed: %d, Skipped: %d", r.FailedSteps, r.SkippedSteps),
		fmt.Sprintf("  Duration: %dms", r.DurationMs),
	}
	if r.Error != "" {
		lines = append(lines, "  Error: "+r.Error)
	}
	return strings.Join(lines, "\n")
}
