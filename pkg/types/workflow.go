package types

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// WorkflowStep is one recorded interaction: the classified gesture, the element
// it was bound to at record time (nil when capture was degraded), and the
// locator used to re-find that element at replay time. Steps are immutable
// after creation; StepID is a 1-based, gapless sequence within a workflow.
type WorkflowStep struct {
	StepID   int         `json:"step_id"`
	Action   GestureType `json:"action"`
	Gesture  Gesture     `json:"gesture"`
	Element  *Element    `json:"element,omitempty"`
	Locator  Locator     `json:"locator"`
	Snapshot string      `json:"snapshot,omitempty"`
}

// Workflow is an ordered sequence of recorded steps.
type Workflow struct {
	ID         string         `json:"id"`
	Name       string         `json:"name,omitempty"`
	DeviceID   string         `json:"device_id,omitempty"`
	Resolution string         `json:"resolution,omitempty"`
	CreatedAt  string         `json:"created_at,omitempty"`
	Steps      []WorkflowStep `json:"steps"`
}

// SerializeWorkflow serializes a workflow to indented JSON. The field layout
// round-trips exactly through ParseWorkflow.
func SerializeWorkflow(w Workflow) ([]byte, error) {
	if w.Steps == nil {
		w.Steps = []WorkflowStep{}
	}
	return json.MarshalIndent(w, "", "  ")
}

// ParseWorkflow parses workflow JSON. It accepts either a full workflow object
// (anything carrying a "steps" array) or a bare JSON array of steps. Unknown
// fields are rejected, not silently dropped.
func ParseWorkflow(data []byte) (Workflow, error) {
	var w Workflow

	root := gjson.ParseBytes(data)
	if root.IsArray() {
		steps, err := decodeSteps(data)
		if err != nil {
			return w, err
		}
		w.Steps = steps
		return w, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return w, fmt.Errorf("failed to parse workflow: %w", err)
	}
	if w.Steps == nil {
		w.Steps = []WorkflowStep{}
	}
	if err := validateStepSequence(w.Steps); err != nil {
		return w, err
	}
	return w, nil
}

func decodeSteps(data []byte) ([]WorkflowStep, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	steps := []WorkflowStep{}
	if err := dec.Decode(&steps); err != nil {
		return nil, fmt.Errorf("failed to parse workflow steps: %w", err)
	}
	if err := validateStepSequence(steps); err != nil {
		return nil, err
	}
	return steps, nil
}

// validateStepSequence enforces the 1-based gapless step_id invariant.
func validateStepSequence(steps []WorkflowStep) error {
	for i, s := range steps {
		if s.StepID != i+1 {
			return fmt.Errorf("step %d has step_id %d, want %d", i, s.StepID, i+1)
		}
	}
	return nil
}
