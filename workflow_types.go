package main

import (
	"Ditto/pkg/types"
)

// ========================================
// Type aliases for pkg/types
// ========================================
// The serialized data model lives in pkg/types so it can be shared with the
// mcp package. The root package works with these aliases.

type (
	Point        = types.Point
	Rect         = types.Rect
	Element      = types.Element
	GestureType  = types.GestureType
	Direction    = types.Direction
	Gesture      = types.Gesture
	StrategyKind = types.StrategyKind
	Strategy     = types.Strategy
	Locator      = types.Locator
	WorkflowStep = types.WorkflowStep
	Workflow     = types.Workflow

	ActionType       = types.ActionType
	OnFailure        = types.OnFailure
	Condition        = types.Condition
	Step             = types.Step
	StepStatus       = types.StepStatus
	StepResult       = types.StepResult
	AutomationResult = types.AutomationResult
)

// Function re-exports
var (
	PointRect         = types.PointRect
	SerializeWorkflow = types.SerializeWorkflow
	ParseWorkflow     = types.ParseWorkflow
	ParseSteps        = types.ParseSteps
	NewStep           = types.NewStep
)

// Gesture kinds
const (
	GestureTap       = types.GestureTap
	GestureLongPress = types.GestureLongPress
	GestureSwipe     = types.GestureSwipe
	GestureScroll    = types.GestureScroll
	GesturePinch     = types.GesturePinch
)

// Swipe directions
const (
	DirectionUp    = types.DirectionUp
	DirectionDown  = types.DirectionDown
	DirectionLeft  = types.DirectionLeft
	DirectionRight = types.DirectionRight
)

// Locator strategies
const (
	StrategyID          = types.StrategyID
	StrategyContentDesc = types.StrategyContentDesc
	StrategyText        = types.StrategyText
	StrategyXPath       = types.StrategyXPath
	StrategyBounds      = types.StrategyBounds
)

// Scripted actions
const (
	ActionTap             = types.ActionTap
	ActionLongPress       = types.ActionLongPress
	ActionSwipe           = types.ActionSwipe
	ActionScroll          = types.ActionScroll
	ActionTypeText        = types.ActionTypeText
	ActionPress           = types.ActionPress
	ActionOpen            = types.ActionOpen
	ActionWait            = types.ActionWait
	ActionWaitFor         = types.ActionWaitFor
	ActionAssertExists    = types.ActionAssertExists
	ActionAssertNotExists = types.ActionAssertNotExists
	ActionScreenshot      = types.ActionScreenshot
)

// Failure policies
const (
	FailStop     = types.FailStop
	FailContinue = types.FailContinue
	FailRetry    = types.FailRetry
)

// Step statuses
const (
	StepPending  = types.StepPending
	StepRunning  = types.StepRunning
	StepSuccess  = types.StepSuccess
	StepFailed   = types.StepFailed
	StepSkipped  = types.StepSkipped
	StepRetrying = types.StepRetrying
)
