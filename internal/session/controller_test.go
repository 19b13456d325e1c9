package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/robottwo/neurodx/internal/predict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeClient records calls and answers with fixed values.
type fakeClient struct {
	mu           sync.Mutex
	symptomCalls []string
	imageCalls   []*predict.ImageFile

	disease string
	err     error
}

func (f *fakeClient) PredictFromSymptoms(_ context.Context, symptoms string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.symptomCalls = append(f.symptomCalls, symptoms)
	return f.disease, f.err
}

func (f *fakeClient) PredictFromImage(_ context.Context, file *predict.ImageFile) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imageCalls = append(f.imageCalls, file)
	return f.disease, f.err
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.symptomCalls) + len(f.imageCalls)
}

type memoryRecorder struct {
	records []Record
	err     error
}

func (r *memoryRecorder) Record(_ context.Context, record Record) error {
	r.records = append(r.records, record)
	return r.err
}

func newTestController(client predict.Client, opts ...Option) *Controller {
	return NewController(client, zap.NewNop(), opts...)
}

func xray() *predict.ImageFile {
	return predict.NewImageFile("xray.png", []byte("\x89PNG\r\n\x1a\n"))
}

func TestNewController_StartsOnSymptomsTab(t *testing.T) {
	c := newTestController(&fakeClient{})
	state := c.State()

	assert.Equal(t, TabSymptoms, state.Tab)
	assert.Empty(t, state.Result())
	assert.Empty(t, state.ErrorMessage())
	assert.False(t, state.Pending)
}

func TestSelectTab_ClearsResultAndError(t *testing.T) {
	for _, tab := range AllTabs {
		t.Run(string(tab), func(t *testing.T) {
			client := &fakeClient{disease: "Flu"}
			c := newTestController(client)

			// leave a result behind
			c.SetSymptoms("fever")
			require.Equal(t, "Flu", c.SubmitSymptoms(context.Background()).Result())

			require.NoError(t, c.SelectTab(tab))
			state := c.State()
			assert.Equal(t, tab, state.Tab)
			assert.Empty(t, state.Result())
			assert.Empty(t, state.ErrorMessage())

			// and an error
			c.SetSymptoms("")
			c.SubmitSymptoms(context.Background())
			require.NotEmpty(t, c.State().ErrorMessage())

			require.NoError(t, c.SelectTab(tab))
			state = c.State()
			assert.Equal(t, tab, state.Tab)
			assert.Empty(t, state.Result())
			assert.Empty(t, state.ErrorMessage())
		})
	}
}

func TestSelectTab_RejectsUnknownTab(t *testing.T) {
	c := newTestController(&fakeClient{})

	err := c.SelectTab(Tab("settings"))

	assert.ErrorIs(t, err, ErrUnknownTab)
	assert.Equal(t, TabSymptoms, c.State().Tab)
}

func TestSubmitSymptoms_EmptyTextIsValidationError(t *testing.T) {
	client := &fakeClient{disease: "Flu"}
	c := newTestController(client)

	state := c.SubmitSymptoms(context.Background())

	assert.Equal(t, ErrorEmptySymptoms, state.Error)
	assert.Equal(t, "Enter symptoms to predict disease.", state.ErrorMessage())
	assert.Empty(t, state.Result())
	assert.Equal(t, 0, client.calls())
}

func TestSubmitImage_NoFileIsValidationError(t *testing.T) {
	client := &fakeClient{disease: "Pneumonia"}
	c := newTestController(client)
	require.NoError(t, c.SelectTab(TabImage))

	state := c.SubmitImage(context.Background())

	assert.Equal(t, ErrorNoImageSelected, state.Error)
	assert.Equal(t, "Select an image to analyze.", state.ErrorMessage())
	assert.Empty(t, state.Result())
	assert.Equal(t, 0, client.calls())
}

func TestSubmitSymptoms_Success(t *testing.T) {
	client := &fakeClient{disease: "Flu"}
	c := newTestController(client)
	c.SetSymptoms("fever, cough")

	state := c.SubmitSymptoms(context.Background())

	assert.Equal(t, "Flu", state.Result())
	assert.Empty(t, state.ErrorMessage())
	assert.False(t, state.Pending)
	assert.Equal(t, []string{"fever, cough"}, client.symptomCalls)
}

func TestSubmitSymptoms_FailureShowsFixedResult(t *testing.T) {
	errs := []error{
		fmt.Errorf("%w: POST /predict-symptoms/: connection refused", predict.ErrPrediction),
		fmt.Errorf("%w: returned status 500", predict.ErrPrediction),
		errors.New("anything else"),
	}

	for _, err := range errs {
		t.Run(err.Error(), func(t *testing.T) {
			c := newTestController(&fakeClient{err: err})
			c.SetSymptoms("fever")

			var state ViewState
			assert.NotPanics(t, func() {
				state = c.SubmitSymptoms(context.Background())
			})

			assert.Equal(t, "Error predicting disease.", state.Result())
			assert.Equal(t, ErrorPredictionFailed, state.Failure)
			assert.Equal(t, ErrorNone, state.Error)
			assert.Empty(t, state.ErrorMessage())
		})
	}
}

func TestSubmitImage_Success(t *testing.T) {
	client := &fakeClient{disease: "Pneumonia"}
	c := newTestController(client)
	require.NoError(t, c.SelectTab(TabImage))
	file := xray()
	c.SetImageFile(file)

	state := c.SubmitImage(context.Background())

	assert.Equal(t, "Pneumonia", state.Result())
	assert.Empty(t, state.ErrorMessage())
	assert.Equal(t, "xray.png", state.ImageName)
	require.Len(t, client.imageCalls, 1)
	assert.Same(t, file, client.imageCalls[0])
}

func TestSubmitImage_Failure(t *testing.T) {
	c := newTestController(&fakeClient{err: predict.ErrPrediction})
	c.SetImageFile(xray())

	state := c.SubmitImage(context.Background())

	assert.Equal(t, "Error predicting disease.", state.Result())
}

func TestSubmit_ValidationClearsPreviousResult(t *testing.T) {
	c := newTestController(&fakeClient{disease: "Flu"})
	c.SetSymptoms("fever")
	c.SubmitSymptoms(context.Background())

	c.SetSymptoms("")
	state := c.SubmitSymptoms(context.Background())

	assert.Empty(t, state.Result())
	assert.Equal(t, "Enter symptoms to predict disease.", state.ErrorMessage())
}

func TestSubmit_RecoveryAfterError(t *testing.T) {
	client := &fakeClient{err: predict.ErrPrediction}
	c := newTestController(client)
	c.SetSymptoms("fever")
	require.Equal(t, "Error predicting disease.", c.SubmitSymptoms(context.Background()).Result())

	client.err = nil
	client.disease = "Malaria"
	assert.Equal(t, "Malaria", c.SubmitSymptoms(context.Background()).Result())
}

func TestSetImageFile_Nil(t *testing.T) {
	c := newTestController(&fakeClient{})
	c.SetImageFile(xray())
	require.True(t, c.State().HasImage())

	c.SetImageFile(nil)

	assert.False(t, c.State().HasImage())
	assert.Nil(t, c.ImageFile())
}

func TestStart_MarksPendingUntilFinished(t *testing.T) {
	c := newTestController(&fakeClient{disease: "Flu"})
	c.SetSymptoms("fever")

	task, ok := c.StartSymptoms(context.Background())
	require.True(t, ok)
	require.NotNil(t, task)
	assert.True(t, c.State().Pending)
	assert.Equal(t, KindSymptoms, task.Kind)

	assert.True(t, c.Finish(task.Run()))
	assert.False(t, c.State().Pending)
	assert.Equal(t, "Flu", c.State().Result())
}

func TestFinish_DropsSupersededOutcome(t *testing.T) {
	client := &fakeClient{disease: "Flu"}
	c := newTestController(client)

	c.SetSymptoms("fever")
	first, ok := c.StartSymptoms(context.Background())
	require.True(t, ok)

	c.SetSymptoms("rash")
	second, ok := c.StartSymptoms(context.Background())
	require.True(t, ok)
	assert.NotEqual(t, first.ID, second.ID)

	// the superseded task is cancelled and can no longer touch state
	firstOutcome := first.Run()
	assert.ErrorIs(t, firstOutcome.Err, context.Canceled)
	assert.False(t, c.Finish(firstOutcome))
	assert.True(t, c.State().Pending)

	client.disease = "Measles"
	assert.True(t, c.Finish(second.Run()))
	assert.Equal(t, "Measles", c.State().Result())
}

func TestFinish_DropsOutcomeAfterTabSwitch(t *testing.T) {
	c := newTestController(&fakeClient{disease: "Flu"})
	c.SetSymptoms("fever")
	task, ok := c.StartSymptoms(context.Background())
	require.True(t, ok)

	require.NoError(t, c.SelectTab(TabImage))
	outcome := Outcome{ID: task.ID, Kind: task.Kind, Label: "Flu"}

	assert.False(t, c.Finish(outcome))
	state := c.State()
	assert.Empty(t, state.Result())
	assert.False(t, state.Pending)
}

func TestStart_DeduplicatesIdenticalPendingSubmission(t *testing.T) {
	client := &fakeClient{disease: "Flu"}
	c := newTestController(client)
	c.SetSymptoms("fever")

	first, ok := c.StartSymptoms(context.Background())
	require.True(t, ok)

	again, ok := c.StartSymptoms(context.Background())
	assert.False(t, ok)
	assert.Same(t, first, again)

	assert.True(t, c.Finish(first.Run()))
	assert.Equal(t, 1, client.calls())

	// once finished, the same input may be submitted again
	_, ok = c.StartSymptoms(context.Background())
	assert.True(t, ok)
}

func TestStartImage_DeduplicatesSameFile(t *testing.T) {
	c := newTestController(&fakeClient{disease: "Pneumonia"})
	file := xray()
	c.SetImageFile(file)

	first, ok := c.StartImage(context.Background())
	require.True(t, ok)
	again, ok := c.StartImage(context.Background())
	assert.False(t, ok)
	assert.Same(t, first, again)

	c.SetImageFile(xray())
	other, ok := c.StartImage(context.Background())
	assert.True(t, ok)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestValidationErrorAbandonsPendingSubmission(t *testing.T) {
	c := newTestController(&fakeClient{disease: "Flu"})
	c.SetSymptoms("fever")
	task, ok := c.StartSymptoms(context.Background())
	require.True(t, ok)

	c.SetSymptoms("")
	_, ok = c.StartSymptoms(context.Background())
	require.False(t, ok)

	assert.False(t, c.Finish(task.Run()))
	state := c.State()
	assert.Equal(t, "Enter symptoms to predict disease.", state.ErrorMessage())
	assert.Empty(t, state.Result())
	assert.False(t, state.Pending)
}

func TestCancelPending(t *testing.T) {
	c := newTestController(&fakeClient{disease: "Flu"})
	assert.False(t, c.CancelPending())

	c.SetSymptoms("fever")
	task, ok := c.StartSymptoms(context.Background())
	require.True(t, ok)

	assert.True(t, c.CancelPending())
	assert.False(t, c.State().Pending)
	assert.False(t, c.Finish(task.Run()))
}

func TestDiscard(t *testing.T) {
	c := newTestController(&fakeClient{disease: "pneumonia"})
	c.SetImageFile(xray())
	c.SubmitImage(context.Background())
	require.Equal(t, "pneumonia", c.State().Result())

	task, ok := c.StartImage(context.Background())
	require.True(t, ok)

	c.Discard()
	state := c.State()
	assert.False(t, state.Pending)
	assert.Empty(t, state.Result())
	assert.Empty(t, state.ErrorMessage())

	assert.False(t, c.Finish(task.Run()))
	assert.Empty(t, c.State().Result())
}

func TestTaskRun_ParentContextCanceled(t *testing.T) {
	client := &fakeClient{disease: "Flu"}
	c := newTestController(client)
	c.SetSymptoms("fever")

	ctx, cancel := context.WithCancel(context.Background())
	task, ok := c.StartSymptoms(ctx)
	require.True(t, ok)
	cancel()

	outcome := task.Run()
	assert.ErrorIs(t, outcome.Err, context.Canceled)
	assert.Equal(t, 0, client.calls())

	assert.True(t, c.Finish(outcome))
	assert.Equal(t, "Error predicting disease.", c.State().Result())
}

func TestFinish_RecordsOutcome(t *testing.T) {
	recorder := &memoryRecorder{}
	client := &fakeClient{disease: "Flu"}
	c := newTestController(client, WithRecorder(recorder))

	c.SetSymptoms("fever, cough")
	c.SubmitSymptoms(context.Background())

	client.err = predict.ErrPrediction
	c.SetImageFile(xray())
	c.SubmitImage(context.Background())

	require.Len(t, recorder.records, 2)
	assert.Equal(t, KindSymptoms, recorder.records[0].Kind)
	assert.Equal(t, "fever, cough", recorder.records[0].Input)
	assert.Equal(t, "Flu", recorder.records[0].Disease)
	assert.False(t, recorder.records[0].Failed)

	assert.Equal(t, KindImage, recorder.records[1].Kind)
	assert.Equal(t, "xray.png", recorder.records[1].Input)
	assert.True(t, recorder.records[1].Failed)
}

func TestFinish_RecorderErrorDoesNotAffectState(t *testing.T) {
	recorder := &memoryRecorder{err: errors.New("disk full")}
	c := newTestController(&fakeClient{disease: "Flu"}, WithRecorder(recorder))
	c.SetSymptoms("fever")

	assert.Equal(t, "Flu", c.SubmitSymptoms(context.Background()).Result())
}

func TestController_ConcurrentFinish(t *testing.T) {
	c := newTestController(&fakeClient{disease: "Flu"})
	c.SetSymptoms("fever")
	task, ok := c.StartSymptoms(context.Background())
	require.True(t, ok)
	outcome := task.Run()

	var wg sync.WaitGroup
	applied := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			applied <- c.Finish(outcome)
		}()
	}
	wg.Wait()
	close(applied)

	count := 0
	for ok := range applied {
		if ok {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
