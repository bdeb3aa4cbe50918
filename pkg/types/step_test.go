package types

import (
	"strings"
	"testing"
)

func TestParseStepsDefaults(t *testing.T) {
	steps, err := ParseSteps([]byte(`[{"action": "tap", "text": "OK"}]`))
	if err != nil {
		t.Fatalf("ParseSteps failed: %v", err)
	}
	if len(steps) != 1 {
		t.Fatalf("got %d steps, want 1", len(steps))
	}

	s := steps[0]
	if s.TimeoutMs != DefaultTimeoutMs {
		t.Errorf("timeout = %d, want %d", s.TimeoutMs, DefaultTimeoutMs)
	}
	if s.MinConfidence != DefaultMinConfidence {
		t.Errorf("min_confidence = %v, want %v", s.MinConfidence, DefaultMinConfidence)
	}
	if s.Retries != DefaultRetries {
		t.Errorf("retries = %d, want %d", s.Retries, DefaultRetries)
	}
	if s.RetryDelayMs != DefaultRetryDelayMs {
		t.Errorf("retry_delay = %d, want %d", s.RetryDelayMs, DefaultRetryDelayMs)
	}
	if s.WaitAfterMs != DefaultWaitAfterMs {
		t.Errorf("wait_after = %d, want %d", s.WaitAfterMs, DefaultWaitAfterMs)
	}
	if s.OnFailure != FailStop {
		t.Errorf("on_failure = %q, want %q", s.OnFailure, FailStop)
	}
}

func TestParseStepsExplicitOverridesDefaults(t *testing.T) {
	steps, err := ParseSteps([]byte(`[{"action": "tap", "text": "OK", "retries": 0, "wait_after": 0, "on_failure": "continue"}]`))
	if err != nil {
		t.Fatalf("ParseSteps failed: %v", err)
	}
	s := steps[0]
	if s.Retries != 0 {
		t.Errorf("explicit retries=0 was overridden to %d", s.Retries)
	}
	if s.WaitAfterMs != 0 {
		t.Errorf("explicit wait_after=0 was overridden to %d", s.WaitAfterMs)
	}
	if s.OnFailure != FailContinue {
		t.Errorf("on_failure = %q, want continue", s.OnFailure)
	}
}

func TestParseStepsObjectForm(t *testing.T) {
	steps, err := ParseSteps([]byte(`{"steps": [{"action": "wait", "timeout": 2000}, {"action": "press", "value": "back"}]}`))
	if err != nil {
		t.Fatalf("ParseSteps failed: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(steps))
	}
	if steps[0].Action != ActionWait || steps[0].TimeoutMs != 2000 {
		t.Errorf("unexpected first step: %+v", steps[0])
	}
}

func TestParseStepsRejectsUnknownFields(t *testing.T) {
	if _, err := ParseSteps([]byte(`[{"action": "tap", "txet": "typo"}]`)); err == nil {
		t.Error("expected unknown step field to be rejected")
	}
}

func TestParseStepsRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"bad action", `[{"action": "teleport"}]`},
		{"bad on_failure", `[{"action": "tap", "on_failure": "explode"}]`},
		{"confidence above 1", `[{"action": "tap", "min_confidence": 1.5}]`},
		{"negative retries", `[{"action": "tap", "retries": -1}]`},
		{"not an array or object", `"tap"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSteps([]byte(tt.input)); err == nil {
				t.Errorf("expected %s to be rejected", tt.name)
			}
		})
	}
}

func TestStepTargetDescription(t *testing.T) {
	x, y := 10, 20
	tests := []struct {
		name string
		step Step
		want string
	}{
		{"text target", Step{Action: ActionTap, Text: "Alarm"}, `TAP text="Alarm"`},
		{"coordinates", Step{Action: ActionLongPress, X: &x, Y: &y}, "LONG_PRESS @(10, 20)"},
		{"explicit description", Step{Action: ActionTap, Text: "x", Description: "open settings"}, "open settings"},
		{"direction", Step{Action: ActionSwipe, Direction: DirectionUp}, "SWIPE direction=up"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.step.TargetDescription(); got != tt.want {
				t.Errorf("TargetDescription() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAutomationResultSummary(t *testing.T) {
	r := AutomationResult{
		Success:       false,
		TotalSteps:    3,
		ExecutedSteps: 1,
		FailedSteps:   1,
		DurationMs:    1234,
		Error:         "step 2 failed",
	}
	summary := r.Summary()
	for _, want := range []string{"FAILED", "1/3 executed", "step 2 failed"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
}
