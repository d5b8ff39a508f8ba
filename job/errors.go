package job

import (
	"fmt"

	"regeval/dataset"
	"regeval/ml"
	"regeval/tracking"
)

var (
	ErrArtifactNotFound = tracking.ErrArtifactNotFound
	ErrDatasetFormat    = dataset.ErrFormat
	ErrModelLoad        = ml.ErrModelLoad
	ErrInference        = ml.ErrInference
)

// StepError ties a failure to the job step that raised it. errors.Is matches
// both Kind and anything in the Err chain.
type StepError struct {
	Step string
	Kind error
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func stepError(step string, kind, err error) *StepError {
	return &StepError{Step: step, Kind: kind, Err: err}
}
