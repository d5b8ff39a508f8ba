package tracking

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"

	defaultProject   = "default"
	defaultCacheSize = 128
)

// StoreConfig locates the tracking database, artifact storage and download cache.
type StoreConfig struct {
	Root      string `yaml:"root"`
	DBPath    string `yaml:"db_path"`
	Project   string `yaml:"project"`
	CacheDir  string `yaml:"cache_dir"`
	CacheSize int    `yaml:"cache_size"`
	EnableWAL bool   `yaml:"enable_wal"`
}

func (c StoreConfig) withDefaults() StoreConfig {
	if c.Root == "" {
		c.Root = ".tracking"
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.Root, "tracking.db")
	}
	if c.Project == "" {
		c.Project = defaultProject
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(c.Root, "cache")
	}
	if c.CacheSize <= 0 {
		c.CacheSize = defaultCacheSize
	}
	return c
}

// Store is a SQLite-backed tracking store holding runs, summaries and versioned artifacts.
type Store struct {
	config StoreConfig
	db     *sql.DB
	logger *zap.Logger

	// pinned (vN) lookups only; versions are immutable once logged
	resolved *lru.Cache[string, *Artifact]
}

// Open opens the tracking store, creating its directories and tables when missing.
func Open(config StoreConfig, logger *zap.Logger) (*Store, error) {
	config = config.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	if !namePattern.MatchString(config.Project) {
		return nil, fmt.Errorf("invalid project name %q", config.Project)
	}
	for _, dir := range []string{config.Root, filepath.Dir(config.DBPath), config.CacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	dsn := config.DBPath
	if config.EnableWAL {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	} else {
		dsn += "?_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(time.Hour)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables failed: %w", err)
	}

	cache, err := lru.New[string, *Artifact](config.CacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{config: config, db: db, logger: logger, resolved: cache}, nil
}

func createTables(db *sql.DB) error {
	query := `
    CREATE TABLE IF NOT EXISTS runs (
        id TEXT PRIMARY KEY,
        project TEXT NOT NULL,
        job_type TEXT NOT NULL,
        status TEXT NOT NULL,
        error TEXT NOT NULL DEFAULT '',
        started_at DATETIME NOT NULL,
        finished_at DATETIME
    );
    CREATE TABLE IF NOT EXISTS run_summary (
        run_id TEXT NOT NULL,
        key TEXT NOT NULL,
        value TEXT NOT NULL,
        PRIMARY KEY (run_id, key)
    );
    CREATE TABLE IF NOT EXISTS artifacts (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        project TEXT NOT NULL,
        name TEXT NOT NULL,
        version INTEGER NOT NULL,
        type TEXT NOT NULL,
        digest TEXT NOT NULL,
        created_at DATETIME NOT NULL,
        UNIQUE(project, name, version)
    );
    CREATE TABLE IF NOT EXISTS artifact_aliases (
        project TEXT NOT NULL,
        name TEXT NOT NULL,
        alias TEXT NOT NULL,
        artifact_id INTEGER NOT NULL,
        PRIMARY KEY (project, name, alias)
    );
    CREATE TABLE IF NOT EXISTS artifact_files (
        artifact_id INTEGER NOT NULL,
        path TEXT NOT NULL,
        size INTEGER NOT NULL,
        digest TEXT NOT NULL,
        PRIMARY KEY (artifact_id, path)
    );
    CREATE TABLE IF NOT EXISTS run_artifacts (
        run_id TEXT NOT NULL,
        artifact_id INTEGER NOT NULL,
        usage TEXT NOT NULL,
        PRIMARY KEY (run_id, artifact_id, usage)
    );
    CREATE INDEX IF NOT EXISTS idx_artifacts_name ON artifacts(project, name);
    `
	_, err := db.Exec(query)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Project is the project used for references that do not name one.
func (s *Store) Project() string {
	return s.config.Project
}

// Init starts a new run of the given job type.
func (s *Store) Init(ctx context.Context, jobType string) (*Run, error) {
	if jobType == "" {
		return nil, errors.New("job type is required")
	}
	run := &Run{
		ID:        uuid.NewString(),
		Project:   s.config.Project,
		JobType:   jobType,
		StartedAt: time.Now().UTC(),
		store:     s,
		status:    StatusRunning,
		summary:   make(map[string]interface{}),
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO runs (id, project, job_type, status, started_at)
        VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Project, run.JobType, StatusRunning, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	s.logger.Debug("run started", zap.String("run_id", run.ID), zap.String("job_type", jobType))
	return run, nil
}

// RunRecord is the persisted view of a run.
type RunRecord struct {
	ID         string
	Project    string
	JobType    string
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
	Summary    map[string]interface{}
	Inputs     []string
	Outputs    []string
}

// Run loads a run with its flushed summary and artifact lineage.
func (s *Store) Run(ctx context.Context, id string) (*RunRecord, error) {
	var (
		rec      RunRecord
		finished sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
        SELECT id, project, job_type, status, error, started_at, finished_at
        FROM runs
        WHERE id = ?`, id).Scan(&rec.ID, &rec.Project, &rec.JobType, &rec.Status, &rec.Error, &rec.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		rec.FinishedAt = &t
	}

	rec.Summary, err = s.loadSummary(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT a.name, a.version, ra.usage
        FROM run_artifacts ra
        JOIN artifacts a ON a.id = ra.artifact_id
        WHERE ra.run_id = ?
        ORDER BY a.name, a.version`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			name    string
			version int
			usage   string
		)
		if err := rows.Scan(&name, &version, &usage); err != nil {
			return nil, err
		}
		qualified := fmt.Sprintf("%s:v%d", name, version)
		if usage == usageOutput {
			rec.Outputs = append(rec.Outputs, qualified)
		} else {
			rec.Inputs = append(rec.Inputs, qualified)
		}
	}
	return &rec, rows.Err()
}

// LatestRun loads the most recently started run of a job type.
func (s *Store) LatestRun(ctx context.Context, jobType string) (*RunRecord, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
        SELECT id FROM runs
        WHERE job_type = ?
        ORDER BY started_at DESC, rowid DESC
        LIMIT 1`, jobType).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no %s runs", ErrRunNotFound, jobType)
	}
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, id)
}

func (s *Store) loadSummary(ctx context.Context, runID string) (map[string]interface{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM run_summary WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary := make(map[string]interface{})
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		var value interface{}
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("decode summary %s: %w", key, err)
		}
		summary[key] = value
	}
	return summary, rows.Err()
}
