package ml

import (
	"errors"
	"math"
	"testing"
)

func TestMeanAbsoluteError(t *testing.T) {
	tests := []struct {
		name  string
		yTrue []float64
		yPred []float64
		want  float64
	}{
		{name: "mixed errors", yTrue: []float64{10, 20, 30}, yPred: []float64{12, 18, 33}, want: 7.0 / 3.0},
		{name: "exact", yTrue: []float64{10, 20, 30}, yPred: []float64{10, 20, 30}, want: 0},
		{name: "single", yTrue: []float64{-5}, yPred: []float64{5}, want: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MeanAbsoluteError(tt.yTrue, tt.yPred)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			if got < 0 {
				t.Fatalf("MAE must be non-negative, got %v", got)
			}
		})
	}
}

func TestMeanAbsoluteErrorRejectsBadInput(t *testing.T) {
	if _, err := MeanAbsoluteError(nil, nil); !errors.Is(err, ErrInference) {
		t.Fatalf("expected ErrInference for empty input, got %v", err)
	}
	if _, err := MeanAbsoluteError([]float64{1, 2}, []float64{1}); !errors.Is(err, ErrInference) {
		t.Fatalf("expected ErrInference for length mismatch, got %v", err)
	}
}

func TestEvaluate(t *testing.T) {
	eval, err := Evaluate([]float64{10, 20, 30}, []float64{12, 18, 33})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(eval.MAE-7.0/3.0) > 1e-12 {
		t.Fatalf("unexpected MAE %v", eval.MAE)
	}
	if math.Abs(eval.MSE-17.0/3.0) > 1e-12 {
		t.Fatalf("unexpected MSE %v", eval.MSE)
	}
	if math.Abs(eval.RMSE-math.Sqrt(17.0/3.0)) > 1e-12 {
		t.Fatalf("unexpected RMSE %v", eval.RMSE)
	}
	if math.Abs(eval.R2-(1-17.0/200.0)) > 1e-12 {
		t.Fatalf("unexpected R2 %v", eval.R2)
	}
	if err := eval.CheckEval(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	constant, err := Evaluate([]float64{5, 5}, []float64{5, 6})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !math.IsNaN(constant.R2) {
		t.Fatalf("expected NaN R2 for constant targets, got %v", constant.R2)
	}

	for _, bad := range []*Eval{
		{MAE: math.NaN()},
		{MAE: math.Inf(1), MSE: math.Inf(1), RMSE: math.Inf(1)},
		{MAE: 1, MSE: math.Inf(1), RMSE: 1},
	} {
		if err := bad.CheckEval(); !errors.Is(err, ErrInference) {
			t.Fatalf("expected ErrInference for %+v, got %v", bad, err)
		}
	}

	infinite, err := Evaluate([]float64{10, 20}, []float64{math.Inf(1), 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := infinite.CheckEval(); !errors.Is(err, ErrInference) {
		t.Fatalf("expected ErrInference for infinite prediction, got %v", err)
	}
}
