package job

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"regeval/dataset"
	"regeval/ml"
	"regeval/tracking"
)

const (
	JobType      = "test_regression_model"
	TargetColumn = "price"
	SummaryKey   = "test_mae"
)

// Tracker starts runs in a tracking store.
type Tracker interface {
	Init(ctx context.Context, jobType string) (*tracking.Run, error)
}

type Params struct {
	ModelRef   string
	DatasetRef string
	// Encoding is the dataset charset, UTF-8 when empty.
	Encoding string
}

type Result struct {
	RunID string
	Rows  int
	MAE   float64
	Eval  *ml.Eval
}

var loadModel = ml.LoadModel

type Evaluator struct {
	tracker Tracker
	logger  *zap.Logger
}

func NewEvaluator(tracker Tracker, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{tracker: tracker, logger: logger}
}

// Run evaluates the model against the test dataset and records test_mae on a new run.
// On failure the run is marked failed and nothing is written to its summary.
func (e *Evaluator) Run(ctx context.Context, params Params) (*Result, error) {
	run, err := e.tracker.Init(ctx, JobType)
	if err != nil {
		return nil, fmt.Errorf("init run: %w", err)
	}
	log := e.logger.With(zap.String("run_id", run.ID))

	result, err := e.evaluate(ctx, run, params, log)
	if err == nil {
		if err = run.Finish(ctx); err != nil {
			err = fmt.Errorf("finish run: %w", err)
		}
	}
	if err != nil {
		log.Error("evaluation failed", zap.Error(err))
		if failErr := run.Fail(context.WithoutCancel(ctx), err); failErr != nil {
			err = multierr.Append(err, fmt.Errorf("mark run failed: %w", failErr))
		}
		return nil, err
	}
	result.RunID = run.ID
	return result, nil
}

func (e *Evaluator) evaluate(ctx context.Context, run *tracking.Run, params Params, log *zap.Logger) (*Result, error) {
	log.Info("Downloading artifacts")
	modelArtifact, err := run.UseArtifact(ctx, params.ModelRef)
	if err != nil {
		return nil, stepError("use model artifact", ErrArtifactNotFound, err)
	}
	modelPath, err := modelArtifact.Download(ctx)
	if err != nil {
		return nil, stepError("download model artifact", ErrArtifactNotFound, err)
	}

	datasetArtifact, err := run.UseArtifact(ctx, params.DatasetRef)
	if err != nil {
		return nil, stepError("use test dataset artifact", ErrArtifactNotFound, err)
	}
	datasetPath, err := datasetArtifact.File(ctx)
	if err != nil {
		return nil, stepError("download test dataset artifact", ErrArtifactNotFound, err)
	}
	frame, err := dataset.LoadCSV(datasetPath, dataset.Options{Encoding: params.Encoding})
	if err != nil {
		return nil, stepError("read test dataset", ErrDatasetFormat, err)
	}
	yTest, xTest, err := frame.SplitTarget(TargetColumn)
	if err != nil {
		return nil, stepError("split target", ErrDatasetFormat, err)
	}
	log.Debug("test dataset loaded",
		zap.String("artifact", datasetArtifact.QualifiedName()),
		zap.Int("rows", frame.Len()),
		zap.Strings("features", xTest.Columns()))

	log.Info("Loading model and performing inference on test set")
	pipeline, err := loadModel(modelPath)
	if err != nil {
		return nil, stepError("load model", ErrModelLoad, err)
	}
	yPred, err := pipeline.Predict(xTest)
	if err != nil {
		return nil, stepError("predict", ErrInference, err)
	}
	if len(yPred) != len(yTest) {
		return nil, stepError("predict", ErrInference,
			fmt.Errorf("%d predictions for %d rows", len(yPred), len(yTest)))
	}

	mae, err := ml.MeanAbsoluteError(yTest, yPred)
	if err != nil {
		return nil, stepError("compute metric", ErrInference, err)
	}
	eval, err := ml.Evaluate(yTest, yPred)
	if err != nil {
		return nil, stepError("compute metric", ErrInference, err)
	}
	if err := eval.CheckEval(); err != nil {
		return nil, stepError("compute metric", ErrInference, err)
	}
	log.Info(fmt.Sprintf("Test MAE: %v", mae),
		zap.Float64("mse", eval.MSE),
		zap.Float64("rmse", eval.RMSE),
		zap.Float64("r2", eval.R2))

	run.SetSummary(SummaryKey, mae)
	return &Result{Rows: len(yTest), MAE: mae, Eval: eval}, nil
}
