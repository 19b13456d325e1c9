package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/robottwo/neurodx/internal/predict"
	"go.uber.org/zap"
)

var ErrUnknownTab = errors.New("unknown tab")

// Record describes a finished submission for the prediction log.
type Record struct {
	SubmissionID uuid.UUID
	Kind         Kind
	Input        string
	Disease      string
	Failed       bool
}

type Recorder interface {
	Record(ctx context.Context, record Record) error
}

type Option func(*Controller)

// WithRecorder logs every applied outcome to r.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// Controller owns the session view state. Views read it through State and
// change it only through the methods below.
type Controller struct {
	mu       sync.Mutex
	client   predict.Client
	recorder Recorder
	logger   *zap.Logger

	state   ViewState
	image   *predict.ImageFile
	current *Task
}

func NewController(client predict.Client, logger *zap.Logger, opts ...Option) *Controller {
	c := &Controller{
		client: client,
		logger: logger,
		state:  ViewState{Tab: TabSymptoms},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a copy of the current view state.
func (c *Controller) State() ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ImageFile returns the selected image, or nil.
func (c *Controller) ImageFile() *predict.ImageFile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.image
}

// SelectTab switches tabs and clears result and error. Any pending
// submission is abandoned.
func (c *Controller) SelectTab(tab Tab) error {
	if !tab.Valid() {
		return ErrUnknownTab
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelCurrentLocked()
	c.state.Tab = tab
	c.state.Label = ""
	c.state.Failure = ErrorNone
	c.state.Error = ErrorNone
	return nil
}

func (c *Controller) SetSymptoms(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Symptoms = text
}

func (c *Controller) SetImageFile(file *predict.ImageFile) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.image = file
	c.state.ImageName = ""
	if file != nil {
		c.state.ImageName = file.Name
	}
}

// StartSymptoms validates the symptom text and prepares a submission.
// ok is false when nothing new should run: either validation failed (task is
// nil) or an identical submission is already pending (task is that one).
func (c *Controller) StartSymptoms(ctx context.Context) (task *Task, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Symptoms == "" {
		c.rejectLocked(ErrorEmptySymptoms)
		return nil, false
	}

	symptoms := c.state.Symptoms
	if dup := c.duplicateLocked(KindSymptoms, symptoms); dup != nil {
		return dup, false
	}

	client := c.client
	return c.beginLocked(ctx, KindSymptoms, symptoms, symptoms, func(ctx context.Context) (string, error) {
		return client.PredictFromSymptoms(ctx, symptoms)
	}), true
}

// StartImage is StartSymptoms for the selected image.
func (c *Controller) StartImage(ctx context.Context) (task *Task, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.image == nil {
		c.rejectLocked(ErrorNoImageSelected)
		return nil, false
	}

	file := c.image
	if dup := c.duplicateLocked(KindImage, file); dup != nil {
		return dup, false
	}

	client := c.client
	return c.beginLocked(ctx, KindImage, file.Name, file, func(ctx context.Context) (string, error) {
		return client.PredictFromImage(ctx, file)
	}), true
}

// Finish applies an outcome. Outcomes of abandoned or superseded submissions
// are dropped and Finish returns false.
func (c *Controller) Finish(outcome Outcome) bool {
	c.mu.Lock()

	if c.current == nil || c.current.ID != outcome.ID {
		c.mu.Unlock()
		c.logger.Debug("dropping stale prediction", zap.Stringer("submission", outcome.ID))
		return false
	}

	c.current.cancel()
	c.current = nil
	c.state.Pending = false
	c.state.Error = ErrorNone

	if outcome.Err != nil {
		c.logger.Warn(
			"prediction request failed",
			zap.Stringer("submission", outcome.ID),
			zap.String("kind", string(outcome.Kind)),
			zap.Error(outcome.Err),
		)
		c.state.Label = ""
		c.state.Failure = ErrorPredictionFailed
	} else {
		c.logger.Info(
			"prediction received",
			zap.Stringer("submission", outcome.ID),
			zap.String("kind", string(outcome.Kind)),
			zap.String("disease", outcome.Label),
		)
		c.state.Label = outcome.Label
		c.state.Failure = ErrorNone
	}
	recorder := c.recorder
	c.mu.Unlock()

	if recorder != nil {
		record := Record{
			SubmissionID: outcome.ID,
			Kind:         outcome.Kind,
			Input:        outcome.Input,
			Disease:      outcome.Label,
			Failed:       outcome.Err != nil,
		}
		if err := recorder.Record(context.Background(), record); err != nil {
			c.logger.Warn("failed to record prediction", zap.Error(err))
		}
	}

	return true
}

// SubmitSymptoms runs a symptom submission to completion.
func (c *Controller) SubmitSymptoms(ctx context.Context) ViewState {
	if task, ok := c.StartSymptoms(ctx); ok {
		c.Finish(task.Run())
	}
	return c.State()
}

// SubmitImage runs an image submission to completion.
func (c *Controller) SubmitImage(ctx context.Context) ViewState {
	if task, ok := c.StartImage(ctx); ok {
		c.Finish(task.Run())
	}
	return c.State()
}

// CancelPending abandons the pending submission, if any.
func (c *Controller) CancelPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return false
	}
	c.cancelCurrentLocked()
	return true
}

// Discard abandons the pending submission and clears result and error, for
// input that failed before it reached the controller (an unreadable file).
func (c *Controller) Discard() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelCurrentLocked()
	c.state.Label = ""
	c.state.Failure = ErrorNone
	c.state.Error = ErrorNone
}

// Close releases the pending submission.
func (c *Controller) Close() {
	c.CancelPending()
}

func (c *Controller) rejectLocked(kind ErrorKind) {
	c.cancelCurrentLocked()
	c.state.Error = kind
	c.state.Label = ""
	c.state.Failure = ErrorNone
}

func (c *Controller) duplicateLocked(kind Kind, key any) *Task {
	if c.current != nil && c.current.Kind == kind && c.current.key == key {
		c.logger.Debug("ignoring duplicate submission", zap.Stringer("submission", c.current.ID))
		return c.current
	}
	return nil
}

func (c *Controller) beginLocked(
	parent context.Context,
	kind Kind,
	input string,
	key any,
	call func(ctx context.Context) (string, error),
) *Task {
	c.cancelCurrentLocked()

	ctx, cancel := context.WithCancel(parent)
	task := &Task{
		ID:     uuid.New(),
		Kind:   kind,
		Input:  input,
		key:    key,
		ctx:    ctx,
		cancel: cancel,
		call:   call,
	}

	c.current = task
	c.state.Error = ErrorNone
	c.state.Label = ""
	c.state.Failure = ErrorNone
	c.state.Pending = true

	c.logger.Debug("starting submission", zap.Stringer("submission", task.ID), zap.String("kind", string(kind)))
	return task
}

func (c *Controller) cancelCurrentLocked() {
	if c.current == nil {
		return
	}
	c.logger.Debug("cancelling submission", zap.Stringer("submission", c.current.ID))
	c.current.cancel()
	c.current = nil
	c.state.Pending = false
}
