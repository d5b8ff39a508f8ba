package ml

import "errors"

var (
	// ErrModelLoad reports a model artifact that is not a valid serialized pipeline.
	ErrModelLoad = errors.New("model load error")
	// ErrInference reports features that do not fit what the model expects.
	ErrInference = errors.New("inference error")
)

// Estimator maps one encoded feature vector to a prediction.
type Estimator interface {
	Predict(features []float64) (float64, error)
	NumFeatures() int
}
