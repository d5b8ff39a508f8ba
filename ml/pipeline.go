package ml

import (
	"fmt"
	"math"

	"regeval/dataset"
)

// Pipeline is a fitted preprocessing step followed by an estimator.
type Pipeline struct {
	Preprocessor *ColumnTransformer
	Estimator    Estimator
}

// Predict returns one prediction per frame row, in row order.
func (p *Pipeline) Predict(frame *dataset.Frame) ([]float64, error) {
	if p.Estimator == nil {
		return nil, fmt.Errorf("%w: pipeline has no estimator", ErrInference)
	}
	features, err := p.encode(frame)
	if err != nil {
		return nil, err
	}

	predictions := make([]float64, len(features))
	for i, vector := range features {
		if len(vector) != p.Estimator.NumFeatures() {
			return nil, fmt.Errorf("%w: model expects %d features, dataset provides %d", ErrInference, p.Estimator.NumFeatures(), len(vector))
		}
		value, err := p.Estimator.Predict(vector)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		predictions[i] = value
	}
	return predictions, nil
}

func (p *Pipeline) encode(frame *dataset.Frame) ([][]float64, error) {
	if p.Preprocessor != nil {
		return p.Preprocessor.Transform(frame)
	}
	features := make([][]float64, frame.Len())
	columns := frame.Columns()
	for row := range features {
		vector := make([]float64, len(columns))
		for col := range columns {
			value, err := frame.Float(row, col)
			if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
				return nil, fmt.Errorf("%w: row %d: column %q is not a finite number", ErrInference, row+1, columns[col])
			}
			vector[col] = value
		}
		features[row] = vector
	}
	return features, nil
}
