package predict

import (
	"context"
	"errors"
)

// ErrPrediction is the root of every error returned by a Client. Callers are
// not expected to tell failure kinds apart.
var ErrPrediction = errors.New("prediction failed")

// Client talks to the remote prediction service.
type Client interface {
	PredictFromSymptoms(ctx context.Context, symptoms string) (string, error)
	PredictFromImage(ctx context.Context, file *ImageFile) (string, error)
}

type symptomRequest struct {
	Symptoms string `json:"symptoms"`
}
