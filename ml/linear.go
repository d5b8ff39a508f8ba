package ml

import (
	"errors"
	"fmt"
)

// LinearRegression predicts Intercept + sum(Coef[i] * x[i]).
type LinearRegression struct {
	Intercept float64
	Coef      []float64
}

func NewLinearRegression(intercept float64, coef []float64) (*LinearRegression, error) {
	if len(coef) == 0 {
		return nil, errors.New("linear model has no coefficients")
	}
	return &LinearRegression{Intercept: intercept, Coef: coef}, nil
}

func (m *LinearRegression) NumFeatures() int { return len(m.Coef) }

func (m *LinearRegression) Predict(features []float64) (float64, error) {
	if len(features) != len(m.Coef) {
		return 0, fmt.Errorf("%w: linear model expects %d features, got %d", ErrInference, len(m.Coef), len(features))
	}
	score := m.Intercept
	for i, w := range m.Coef {
		score += w * features[i]
	}
	return score, nil
}
