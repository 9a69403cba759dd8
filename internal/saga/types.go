package saga

import (
	"context"
	"time"
)

// State represents the current state of a saga run
type State string

const (
	StateRunning     State = "running"
	StateCompleted   State = "completed"
	StateCompensated State = "compensated"
)

// StepState represents the state of an individual step
type StepState string

const (
	StepStatePending     StepState = "pending"
	StepStateRunning     StepState = "running"
	StepStateCompleted   StepState = "completed"
	StepStateFailed      StepState = "failed"
	StepStateCompensated StepState = "compensated"
)

// Step is a single unit of work with an undo action.
// Compensate is only called for steps whose Execute succeeded and may be nil.
type Step struct {
	ID         string
	Execute    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Instance records how a saga run went
type Instance struct {
	Name        string          `json:"name"`
	State       State           `json:"state"`
	Steps       []StepExecution `json:"steps"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
	Error       string          `json:"error,omitempty"`
}

// StepExecution represents the execution state of a step
type StepExecution struct {
	ID          string     `json:"id"`
	State       StepState  `json:"state"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Event is emitted to the observer at each transition
type Event struct {
	Saga      string    `json:"saga"`
	StepID    string    `json:"step_id,omitempty"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

// Event types
const (
	EventSagaStarted     = "saga_started"
	EventSagaCompleted   = "saga_completed"
	EventSagaCompensated = "saga_compensated"
	EventStepStarted     = "step_started"
	EventStepCompleted   = "step_completed"
	EventStepFailed      = "step_failed"
	EventStepCompensated = "step_compensated"
)
