package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"regeval/config"
	"regeval/job"
	"regeval/logger"
	"regeval/tracking"
)

func main() {
	modelRef := flag.String("mlflow_model", "", "model artifact reference, e.g. model_export:prod")
	datasetRef := flag.String("test_dataset", "", "test dataset artifact reference, e.g. test_data.csv:latest")
	configPath := flag.String("config", config.DefaultPath, "config file path")
	flag.Parse()

	if *modelRef == "" || *datasetRef == "" {
		fmt.Fprintln(flag.CommandLine.Output(), "both -mlflow_model and -test_dataset are required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	if err := run(zlog, cfg, job.Params{
		ModelRef:   *modelRef,
		DatasetRef: *datasetRef,
		Encoding:   cfg.Dataset.Encoding,
	}); err != nil {
		zlog.Error("test_regression_model failed", zap.Error(err))
		zlog.Sync()
		os.Exit(1)
	}
}

func run(zlog *zap.Logger, cfg *config.Config, params job.Params) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := tracking.Open(cfg.Tracking, zlog)
	if err != nil {
		return fmt.Errorf("open tracking store: %w", err)
	}
	defer store.Close()

	result, err := job.NewEvaluator(store, zlog).Run(ctx, params)
	if err != nil {
		return err
	}
	zlog.Info("run finished",
		zap.String("run_id", result.RunID),
		zap.Int("rows", result.Rows),
		zap.Float64(job.SummaryKey, result.MAE))
	return nil
}
