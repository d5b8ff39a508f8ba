package ml

import (
	"fmt"
	"math"
)

type Eval struct {
	// MAE mean absolute error.
	MAE float64
	// MSE mean square error.
	MSE float64
	// RMSE root mean square error.
	RMSE float64
	// R2 coefficient of determination. NaN when the targets are constant.
	R2 float64
}

// MeanAbsoluteError averages |yTrue[i] - yPred[i]|.
func MeanAbsoluteError(yTrue, yPred []float64) (float64, error) {
	if err := checkLengths(yTrue, yPred); err != nil {
		return 0, err
	}
	sum := 0.0
	for i := range yTrue {
		sum += math.Abs(yTrue[i] - yPred[i])
	}
	return sum / float64(len(yTrue)), nil
}

// Evaluate computes MAE, MSE, RMSE and R² of predictions against targets.
func Evaluate(yTrue, yPred []float64) (*Eval, error) {
	if err := checkLengths(yTrue, yPred); err != nil {
		return nil, err
	}
	n := float64(len(yTrue))
	maeSum, mseSum, mean := 0.0, 0.0, 0.0
	for i := range yTrue {
		diff := yTrue[i] - yPred[i]
		maeSum += math.Abs(diff)
		mseSum += diff * diff
		mean += yTrue[i]
	}
	mean /= n
	tssSum := 0.0
	for _, y := range yTrue {
		tssSum += (y - mean) * (y - mean)
	}

	r2 := math.NaN()
	if tssSum > 0 {
		r2 = 1 - mseSum/tssSum
	}
	return &Eval{
		MAE:  maeSum / n,
		MSE:  mseSum / n,
		RMSE: math.Sqrt(mseSum / n),
		R2:   r2,
	}, nil
}

// CheckEval rejects an evaluation whose error metrics are not finite. R2 is not checked.
func (e *Eval) CheckEval() error {
	for _, v := range []float64{e.MAE, e.MSE, e.RMSE} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: metric is %v", ErrInference, v)
		}
	}
	return nil
}

func checkLengths(yTrue, yPred []float64) error {
	if len(yTrue) == 0 {
		return fmt.Errorf("%w: no samples to evaluate", ErrInference)
	}
	if len(yTrue) != len(yPred) {
		return fmt.Errorf("%w: %d targets but %d predictions", ErrInference, len(yTrue), len(yPred))
	}
	return nil
}
