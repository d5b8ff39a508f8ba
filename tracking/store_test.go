package tracking

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(StoreConfig{Root: t.TempDir(), Project: "nyc_airbnb", CacheSize: 8}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func logArtifact(t *testing.T, store *Store, spec ArtifactSpec) *Artifact {
	t.Helper()
	ctx := context.Background()
	run, err := store.Init(ctx, "upload")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	artifact, err := run.LogArtifact(ctx, spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := run.Finish(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return artifact
}

func TestRunFinishFlushesSummary(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	run, err := store.Init(ctx, "test_regression_model")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	run.SetSummary("test_mae", 2.5)

	before, err := store.Run(ctx, run.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if before.Status != StatusRunning || len(before.Summary) != 0 {
		t.Fatalf("expected running run with no flushed summary, got %+v", before)
	}

	if err := run.Finish(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after, err := store.Run(ctx, run.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after.Status != StatusFinished || after.FinishedAt == nil {
		t.Fatalf("expected finished run, got %+v", after)
	}
	if after.JobType != "test_regression_model" {
		t.Fatalf("unexpected job type %q", after.JobType)
	}
	if v, ok := after.Summary["test_mae"].(float64); !ok || v != 2.5 {
		t.Fatalf("expected test_mae 2.5, got %v", after.Summary["test_mae"])
	}

	if err := run.Finish(ctx); !errors.Is(err, ErrRunClosed) {
		t.Fatalf("expected ErrRunClosed, got %v", err)
	}
	if _, err := run.UseArtifact(ctx, "anything"); !errors.Is(err, ErrRunClosed) {
		t.Fatalf("expected ErrRunClosed, got %v", err)
	}
}

func TestRunFailDiscardsSummary(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	run, err := store.Init(ctx, "test_regression_model")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	run.SetSummary("test_mae", 1.0)
	if err := run.Fail(ctx, errors.New("boom")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, err := store.Run(ctx, run.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status != StatusFailed || rec.Error != "boom" {
		t.Fatalf("expected failed run with error, got %+v", rec)
	}
	if len(rec.Summary) != 0 {
		t.Fatalf("expected no summary, got %v", rec.Summary)
	}
	if err := run.Fail(ctx, nil); !errors.Is(err, ErrRunClosed) {
		t.Fatalf("expected ErrRunClosed, got %v", err)
	}
}

func TestStoreRunNotFound(t *testing.T) {
	if _, err := newTestStore(t).Run(context.Background(), "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestInitRequiresJobType(t *testing.T) {
	if _, err := newTestStore(t).Init(context.Background(), ""); err == nil {
		t.Fatal("expected error")
	}
}
