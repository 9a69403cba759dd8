package saga

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Runner executes sagas synchronously on the caller's goroutine
type Runner struct {
	logger   *zap.Logger
	observer func(Event)
}

// NewRunner creates a new saga runner
func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{logger: logger}
}

// WithObserver sets a callback that receives every saga event
func (r *Runner) WithObserver(fn func(Event)) *Runner {
	r.observer = fn
	return r
}

// Run executes the steps in order. When a step fails, the completed steps
// are compensated in reverse order and the step error is returned.
func (r *Runner) Run(ctx context.Context, name string, steps ...Step) (*Instance, error) {
	instance := &Instance{
		Name:      name,
		State:     StateRunning,
		Steps:     make([]StepExecution, len(steps)),
		StartedAt: time.Now(),
	}
	for i, step := range steps {
		instance.Steps[i] = StepExecution{ID: step.ID, State: StepStatePending}
	}

	r.emit(Event{Saga: name, Type: EventSagaStarted, Timestamp: instance.StartedAt})

	lastCompleted := -1
	var failure error
	for i, step := range steps {
		if err := r.executeStep(ctx, instance, i, step); err != nil {
			r.logger.Error("Step failed",
				zap.String("saga", name),
				zap.String("stepID", step.ID),
				zap.Error(err))
			failure = fmt.Errorf("%s: %w", step.ID, err)
			break
		}
		lastCompleted = i
	}

	if failure != nil {
		r.logger.Info("Starting compensation", zap.String("saga", name))
		r.compensate(ctx, instance, steps, lastCompleted)
		instance.Error = failure.Error()
		return instance, failure
	}

	instance.State = StateCompleted
	instance.CompletedAt = time.Now()
	r.emit(Event{Saga: name, Type: EventSagaCompleted, Timestamp: instance.CompletedAt})
	r.logger.Debug("Saga completed", zap.String("saga", name))
	return instance, nil
}

// executeStep executes a single step
func (r *Runner) executeStep(ctx context.Context, instance *Instance, index int, step Step) error {
	exec := &instance.Steps[index]
	now := time.Now()
	exec.State = StepStateRunning
	exec.StartedAt = &now
	r.emit(Event{Saga: instance.Name, StepID: step.ID, Type: EventStepStarted, Timestamp: now})

	err := ctx.Err()
	if err == nil {
		err = step.Execute(ctx)
	}

	done := time.Now()
	exec.CompletedAt = &done
	if err != nil {
		exec.State = StepStateFailed
		exec.Error = err.Error()
		r.emit(Event{Saga: instance.Name, StepID: step.ID, Type: EventStepFailed, Timestamp: done, Error: err.Error()})
		return err
	}

	exec.State = StepStateCompleted
	r.emit(Event{Saga: instance.Name, StepID: step.ID, Type: EventStepCompleted, Timestamp: done})
	r.logger.Debug("Step completed",
		zap.String("saga", instance.Name),
		zap.String("stepID", step.ID),
		zap.Duration("took", done.Sub(now)))
	return nil
}

// compensate runs compensation for completed steps in reverse order.
// Compensation runs even when ctx is already cancelled.
func (r *Runner) compensate(ctx context.Context, instance *Instance, steps []Step, lastCompleted int) {
	ctx = context.WithoutCancel(ctx)
	for i := lastCompleted; i >= 0; i-- {
		step := steps[i]
		if step.Compensate == nil {
			instance.Steps[i].State = StepStateCompensated
			continue
		}

		r.logger.Info("Compensating step",
			zap.String("saga", instance.Name),
			zap.String("stepID", step.ID))

		if err := step.Compensate(ctx); err != nil {
			// Best effort, keep undoing the remaining steps
			r.logger.Warn("Compensation failed",
				zap.String("saga", instance.Name),
				zap.String("stepID", step.ID),
				zap.Error(err))
			continue
		}
		instance.Steps[i].State = StepStateCompensated
		r.emit(Event{Saga: instance.Name, StepID: step.ID, Type: EventStepCompensated, Timestamp: time.Now()})
	}

	instance.State = StateCompensated
	instance.CompletedAt = time.Now()
	r.emit(Event{Saga: instance.Name, Type: EventSagaCompensated, Timestamp: instance.CompletedAt})
}

func (r *Runner) emit(event Event) {
	if r.observer != nil {
		r.observer(event)
	}
}
