package session

import (
	"context"

	"github.com/google/uuid"
)

// Kind tells which prediction exchange a submission uses.
type Kind string

const (
	KindSymptoms Kind = "symptoms"
	KindImage    Kind = "image"
)

// Task is one submission. It is created by the Controller and run by whoever
// owns the event loop; only the most recently started Task may update state.
type Task struct {
	ID    uuid.UUID
	Kind  Kind
	Input string

	// key identifies the submitted input for de-duplication
	key    any
	ctx    context.Context
	cancel context.CancelFunc
	call   func(ctx context.Context) (string, error)
}

// Outcome is the result of running a Task.
type Outcome struct {
	ID    uuid.UUID
	Kind  Kind
	Input string
	Label string
	Err   error
}

// Run performs the network call. Failures are carried in Outcome.Err.
func (t *Task) Run() Outcome {
	outcome := Outcome{ID: t.ID, Kind: t.Kind, Input: t.Input}

	if err := t.ctx.Err(); err != nil {
		outcome.Err = err
		return outcome
	}

	outcome.Label, outcome.Err = t.call(t.ctx)
	return outcome
}

// Cancel aborts the request if it is still running.
func (t *Task) Cancel() {
	t.cancel()
}
