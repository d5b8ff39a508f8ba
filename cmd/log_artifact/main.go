package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"regeval/config"
	"regeval/logger"
	"regeval/tracking"
)

const jobType = "log_artifact"

func main() {
	name := flag.String("name", "", "artifact name")
	kind := flag.String("type", "", "artifact type, e.g. model_export or test_data")
	aliases := flag.String("alias", "", "comma separated aliases to apply besides latest")
	configPath := flag.String("config", config.DefaultPath, "config file path")
	flag.Parse()

	if *name == "" || *kind == "" || flag.NArg() == 0 {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: log_artifact -name <name> -type <type> [-alias a,b] file...")
		flag.PrintDefaults()
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

	spec := tracking.ArtifactSpec{
		Name:    *name,
		Type:    *kind,
		Files:   flag.Args(),
		Aliases: splitAliases(*aliases),
	}
	artifact, err := publish(context.Background(), cfg.Tracking, zlog, spec)
	if err != nil {
		zlog.Error("log_artifact failed", zap.Error(err))
		zlog.Sync()
		os.Exit(1)
	}
	fmt.Println(artifact.QualifiedName())
}

func publish(ctx context.Context, storeConfig tracking.StoreConfig, zlog *zap.Logger, spec tracking.ArtifactSpec) (*tracking.Artifact, error) {
	store, err := tracking.Open(storeConfig, zlog)
	if err != nil {
		return nil, fmt.Errorf("open tracking store: %w", err)
	}
	defer store.Close()

	run, err := store.Init(ctx, jobType)
	if err != nil {
		return nil, err
	}
	artifact, err := run.LogArtifact(ctx, spec)
	if err != nil {
		if failErr := run.Fail(ctx, err); failErr != nil {
			zlog.Warn("mark run failed", zap.Error(failErr))
		}
		return nil, err
	}
	if err := run.Finish(ctx); err != nil {
		return nil, err
	}
	zlog.Info("artifact logged",
		zap.String("run_id", run.ID),
		zap.String("artifact", artifact.QualifiedName()),
		zap.String("digest", artifact.Digest),
		zap.Int("files", len(artifact.Files)))
	return artifact, nil
}

func splitAliases(raw string) []string {
	var aliases []string
	for _, alias := range strings.Split(raw, ",") {
		if alias = strings.TrimSpace(alias); alias != "" {
			aliases = append(aliases, alias)
		}
	}
	return aliases
}
