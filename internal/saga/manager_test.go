package saga

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap/zaptest"
)

func recordingStep(id string, log *[]string, fail error) Step {
	return Step{
		ID: id,
		Execute: func(ctx context.Context) error {
			*log = append(*log, "exec:"+id)
			return fail
		},
		Compensate: func(ctx context.Context) error {
			*log = append(*log, "undo:"+id)
			return nil
		},
	}
}

func TestRunCompletesAllSteps(t *testing.T) {
	var log []string
	var events []string
	runner := NewRunner(zaptest.NewLogger(t)).WithObserver(func(e Event) {
		events = append(events, e.Type)
	})

	instance, err := runner.Run(context.Background(), "setup",
		recordingStep("a", &log, nil),
		recordingStep("b", &log, nil),
	)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if instance.State != StateCompleted {
		t.Errorf("Expected state %s, got %s", StateCompleted, instance.State)
	}
	if want := []string{"exec:a", "exec:b"}; !reflect.DeepEqual(log, want) {
		t.Errorf("Expected %v, got %v", want, log)
	}
	if events[0] != EventSagaStarted || events[len(events)-1] != EventSagaCompleted {
		t.Errorf("Unexpected event sequence %v", events)
	}
}

func TestRunCompensatesInReverseOrder(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	runner := NewRunner(zaptest.NewLogger(t))

	instance, err := runner.Run(context.Background(), "setup",
		recordingStep("a", &log, nil),
		recordingStep("b", &log, nil),
		recordingStep("c", &log, boom),
		recordingStep("d", &log, nil),
	)
	if !errors.Is(err, boom) {
		t.Fatalf("Expected wrapped step error, got %v", err)
	}
	want := []string{"exec:a", "exec:b", "exec:c", "undo:b", "undo:a"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("Expected %v, got %v", want, log)
	}
	if instance.State != StateCompensated {
		t.Errorf("Expected state %s, got %s", StateCompensated, instance.State)
	}
	if instance.Steps[2].State != StepStateFailed {
		t.Errorf("Expected failed step state, got %s", instance.Steps[2].State)
	}
	if instance.Steps[3].State != StepStatePending {
		t.Errorf("Expected untouched step to stay pending, got %s", instance.Steps[3].State)
	}
}

func TestCompensationFailureDoesNotStopUndo(t *testing.T) {
	var log []string
	runner := NewRunner(zaptest.NewLogger(t))

	failingUndo := recordingStep("b", &log, nil)
	failingUndo.Compensate = func(ctx context.Context) error {
		log = append(log, "undo:b")
		return errors.New("already gone")
	}

	_, err := runner.Run(context.Background(), "setup",
		recordingStep("a", &log, nil),
		failingUndo,
		recordingStep("c", &log, errors.New("boom")),
	)
	if err == nil {
		t.Fatal("Expected error")
	}
	if log[len(log)-1] != "undo:a" {
		t.Errorf("Expected first step to be compensated after a failed compensation, got %v", log)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	var log []string
	ctx, cancel := context.WithCancel(context.Background())
	runner := NewRunner(zaptest.NewLogger(t))

	cancelling := Step{
		ID: "cancel",
		Execute: func(ctx context.Context) error {
			log = append(log, "exec:cancel")
			cancel()
			return nil
		},
		Compensate: func(ctx context.Context) error {
			if ctx.Err() != nil {
				t.Error("Expected compensation context to outlive cancellation")
			}
			log = append(log, "undo:cancel")
			return nil
		},
	}

	_, err := runner.Run(ctx, "setup", cancelling, recordingStep("next", &log, nil))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if want := []string{"exec:cancel", "undo:cancel"}; !reflect.DeepEqual(log, want) {
		t.Errorf("Expected %v, got %v", want, log)
	}
}
