package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	usageInput  = "input"
	usageOutput = "output"
)

// Run is one execution recorded in the store. Its summary lives in memory until Finish.
type Run struct {
	ID        string
	Project   string
	JobType   string
	StartedAt time.Time

	store   *Store
	mu      sync.Mutex
	status  string
	summary map[string]interface{}
}

func (r *Run) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// SetSummary records value under key. Nothing is persisted until Finish.
func (r *Run) SetSummary(key string, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary[key] = value
}

func (r *Run) Summary() map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]interface{}, len(r.summary))
	for k, v := range r.summary {
		out[k] = v
	}
	return out
}

// UseArtifact resolves ref and records the artifact as an input of this run.
func (r *Run) UseArtifact(ctx context.Context, ref string) (*ArtifactHandle, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	parsed, err := ParseRef(ref, r.Project)
	if err != nil {
		return nil, err
	}
	artifact, err := r.store.resolve(ctx, parsed)
	if err != nil {
		return nil, err
	}
	if err := r.store.link(ctx, r.ID, artifact.ID, usageInput); err != nil {
		return nil, err
	}
	r.store.logger.Info("using artifact",
		zap.String("run_id", r.ID),
		zap.String("ref", ref),
		zap.String("artifact", artifact.QualifiedName()))
	return &ArtifactHandle{Artifact: artifact, store: r.store}, nil
}

// LogArtifact stores files as a new artifact version and records it as an output of this run.
func (r *Run) LogArtifact(ctx context.Context, spec ArtifactSpec) (*Artifact, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	artifact, err := r.store.logArtifact(ctx, r.Project, spec)
	if err != nil {
		return nil, err
	}
	if err := r.store.link(ctx, r.ID, artifact.ID, usageOutput); err != nil {
		return nil, err
	}
	return artifact, nil
}

// Finish flushes the summary and marks the run finished.
func (r *Run) Finish(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusRunning {
		return ErrRunClosed
	}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO run_summary (run_id, key, value) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for key, value := range r.summary {
		payload, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode summary %s: %w", key, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, key, string(payload)); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		StatusFinished, time.Now().UTC(), r.ID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	r.status = StatusFinished
	r.store.logger.Debug("run finished", zap.String("run_id", r.ID), zap.Int("summary_keys", len(r.summary)))
	return nil
}

// Fail marks the run failed with cause. The in-memory summary is discarded.
func (r *Run) Fail(ctx context.Context, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusRunning {
		return ErrRunClosed
	}
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	if _, err := r.store.db.ExecContext(ctx, `UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		StatusFailed, message, time.Now().UTC(), r.ID); err != nil {
		return err
	}
	r.status = StatusFailed
	return nil
}

func (r *Run) checkOpen() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusRunning {
		return ErrRunClosed
	}
	return nil
}
