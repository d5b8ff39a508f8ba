package tracking

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ArtifactSpec describes files to publish as one artifact version.
type ArtifactSpec struct {
	Name string
	Type string
	// Files are file or directory paths. A file is stored under its base name,
	// a directory's files under their path relative to that directory.
	Files   []string
	Aliases []string
}

type ArtifactFile struct {
	Path   string
	Size   int64
	Digest string
}

type Artifact struct {
	ID        int64
	Project   string
	Name      string
	Version   int
	Type      string
	Digest    string
	CreatedAt time.Time
	Files     []ArtifactFile
}

// QualifiedName returns name:vN.
func (a *Artifact) QualifiedName() string {
	return fmt.Sprintf("%s:v%d", a.Name, a.Version)
}

// Artifact resolves a reference against the store's default project.
func (s *Store) Artifact(ctx context.Context, ref string) (*Artifact, error) {
	parsed, err := ParseRef(ref, s.config.Project)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, parsed)
}

func (s *Store) resolve(ctx context.Context, ref Ref) (*Artifact, error) {
	version, pinned := ref.Pinned()
	if pinned {
		if cached, ok := s.resolved.Get(ref.String()); ok {
			return cached, nil
		}
	}

	var row *sql.Row
	if pinned {
		row = s.db.QueryRowContext(ctx, `
            SELECT id, project, name, version, type, digest, created_at
            FROM artifacts
            WHERE project = ? AND name = ? AND version = ?`, ref.Project, ref.Name, version)
	} else {
		row = s.db.QueryRowContext(ctx, `
            SELECT a.id, a.project, a.name, a.version, a.type, a.digest, a.created_at
            FROM artifact_aliases al
            JOIN artifacts a ON a.id = al.artifact_id
            WHERE al.project = ? AND al.name = ? AND al.alias = ?`, ref.Project, ref.Name, ref.Version)
	}

	var a Artifact
	err := row.Scan(&a.ID, &a.Project, &a.Name, &a.Version, &a.Type, &a.Digest, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, ref)
	}
	if err != nil {
		return nil, err
	}
	if a.Files, err = s.artifactFiles(ctx, a.ID); err != nil {
		return nil, err
	}

	s.resolved.Add(fmt.Sprintf("%s/%s:v%d", a.Project, a.Name, a.Version), &a)
	return &a, nil
}

func (s *Store) artifactFiles(ctx context.Context, artifactID int64) ([]ArtifactFile, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT path, size, digest FROM artifact_files
        WHERE artifact_id = ?
        ORDER BY path`, artifactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make([]ArtifactFile, 0)
	for rows.Next() {
		var f ArtifactFile
		if err := rows.Scan(&f.Path, &f.Size, &f.Digest); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *Store) link(ctx context.Context, runID string, artifactID int64, usage string) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT OR IGNORE INTO run_artifacts (run_id, artifact_id, usage)
        VALUES (?, ?, ?)`, runID, artifactID, usage)
	return err
}

type stagedFile struct {
	source string
	ArtifactFile
}

func (s *Store) logArtifact(ctx context.Context, project string, spec ArtifactSpec) (*Artifact, error) {
	if !namePattern.MatchString(spec.Name) {
		return nil, fmt.Errorf("invalid artifact name %q", spec.Name)
	}
	if spec.Type == "" {
		return nil, errors.New("artifact type is required")
	}
	for _, alias := range spec.Aliases {
		if !namePattern.MatchString(alias) || isVersionLike(alias) {
			return nil, fmt.Errorf("invalid alias %q", alias)
		}
	}

	staged, err := stageFiles(spec.Files)
	if err != nil {
		return nil, err
	}
	digest := manifestDigest(staged)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var (
		latestID      int64
		latestVersion int
		latestType    string
		latestDigest  string
	)
	err = tx.QueryRowContext(ctx, `
        SELECT id, version, type, digest FROM artifacts
        WHERE project = ? AND name = ?
        ORDER BY version DESC
        LIMIT 1`, project, spec.Name).Scan(&latestID, &latestVersion, &latestType, &latestDigest)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if exists && latestType != spec.Type {
		return nil, fmt.Errorf("artifact %s already has type %q, not %q", spec.Name, latestType, spec.Type)
	}

	artifactID := latestID
	version := latestVersion
	var storedDir string
	if !exists || latestDigest != digest {
		if exists {
			version = latestVersion + 1
		}
		res, err := tx.ExecContext(ctx, `
            INSERT INTO artifacts (project, name, version, type, digest, created_at)
            VALUES (?, ?, ?, ?, ?, ?)`,
			project, spec.Name, version, spec.Type, digest, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		if artifactID, err = res.LastInsertId(); err != nil {
			return nil, err
		}

		storedDir = s.storageDir(project, spec.Name, version)
		for _, f := range staged {
			if err := copyFile(f.source, filepath.Join(storedDir, filepath.FromSlash(f.Path))); err != nil {
				os.RemoveAll(storedDir)
				return nil, fmt.Errorf("store %s: %w", f.Path, err)
			}
			if _, err := tx.ExecContext(ctx, `
                INSERT INTO artifact_files (artifact_id, path, size, digest)
                VALUES (?, ?, ?, ?)`, artifactID, f.Path, f.Size, f.Digest); err != nil {
				os.RemoveAll(storedDir)
				return nil, err
			}
		}
	} else {
		s.logger.Info("artifact unchanged, reusing version",
			zap.String("artifact", spec.Name), zap.Int("version", version))
	}

	aliases := append([]string{aliasLatest}, spec.Aliases...)
	for _, alias := range aliases {
		if _, err := tx.ExecContext(ctx, `
            INSERT OR REPLACE INTO artifact_aliases (project, name, alias, artifact_id)
            VALUES (?, ?, ?, ?)`, project, spec.Name, alias, artifactID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		if storedDir != "" {
			os.RemoveAll(storedDir)
		}
		return nil, err
	}

	files := make([]ArtifactFile, len(staged))
	for i, f := range staged {
		files[i] = f.ArtifactFile
	}
	artifact := &Artifact{
		ID:        artifactID,
		Project:   project,
		Name:      spec.Name,
		Version:   version,
		Type:      spec.Type,
		Digest:    digest,
		CreatedAt: time.Now().UTC(),
		Files:     files,
	}
	s.logger.Info("artifact logged", zap.String("artifact", artifact.QualifiedName()), zap.Int("files", len(files)))
	return artifact, nil
}

func (s *Store) storageDir(project, name string, version int) string {
	return filepath.Join(s.config.Root, "artifacts", project, name, "v"+strconv.Itoa(version))
}

// stageFiles expands the given paths into a sorted file list with sizes and digests.
func stageFiles(paths []string) ([]stagedFile, error) {
	if len(paths) == 0 {
		return nil, errors.New("artifact has no files")
	}
	seen := make(map[string]struct{})
	staged := make([]stagedFile, 0, len(paths))
	add := func(source, rel string) error {
		if _, dup := seen[rel]; dup {
			return fmt.Errorf("duplicate artifact path %q", rel)
		}
		seen[rel] = struct{}{}
		size, digest, err := fileDigest(source)
		if err != nil {
			return err
		}
		staged = append(staged, stagedFile{source: source, ArtifactFile: ArtifactFile{Path: rel, Size: size, Digest: digest}})
		return nil
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if err := add(path, filepath.Base(path)); err != nil {
				return nil, err
			}
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			rel, err := filepath.Rel(path, p)
			if err != nil {
				return err
			}
			return add(p, filepath.ToSlash(rel))
		})
		if err != nil {
			return nil, err
		}
	}
	if len(staged) == 0 {
		return nil, errors.New("artifact has no files")
	}
	sort.Slice(staged, func(i, j int) bool { return staged[i].Path < staged[j].Path })
	return staged, nil
}

func manifestDigest(files []stagedFile) string {
	h := sha256.New()
	for _, f := range files {
		fmt.Fprintf(h, "%s\x00%s\n", f.Path, f.Digest)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func fileDigest(path string) (int64, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer file.Close()
	h := sha256.New()
	size, err := io.Copy(h, file)
	if err != nil {
		return 0, "", err
	}
	return size, hex.EncodeToString(h.Sum(nil)), nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// ArtifactHandle is an artifact resolved for a run, ready to be materialized locally.
type ArtifactHandle struct {
	*Artifact
	store *Store
}

// Download materializes every file of the artifact into the local cache and returns the directory.
func (h *ArtifactHandle) Download(ctx context.Context) (string, error) {
	dir := filepath.Join(h.store.config.CacheDir, h.Project, fmt.Sprintf("%s-v%d", h.Name, h.Version))
	source := h.store.storageDir(h.Project, h.Name, h.Version)
	for _, f := range h.Files {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		dst := filepath.Join(dir, filepath.FromSlash(f.Path))
		if cachedCopyValid(dst, f) {
			continue
		}
		src := filepath.Join(source, filepath.FromSlash(f.Path))
		if _, err := os.Stat(src); err != nil {
			return "", fmt.Errorf("%w: %s is missing %s: %v", ErrArtifactNotFound, h.QualifiedName(), f.Path, err)
		}
		if err := copyFile(src, dst); err != nil {
			return "", fmt.Errorf("download %s: %w", f.Path, err)
		}
		h.store.logger.Debug("artifact file downloaded", zap.String("artifact", h.QualifiedName()), zap.String("path", f.Path))
	}
	return dir, nil
}

// File downloads a single-file artifact and returns the file path.
func (h *ArtifactHandle) File(ctx context.Context) (string, error) {
	if len(h.Files) != 1 {
		return "", fmt.Errorf("%w: %s has %d files", ErrNotSingleFile, h.QualifiedName(), len(h.Files))
	}
	dir, err := h.Download(ctx)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.FromSlash(h.Files[0].Path)), nil
}

func cachedCopyValid(path string, f ArtifactFile) bool {
	info, err := os.Stat(path)
	if err != nil || info.Size() != f.Size {
		return false
	}
	_, digest, err := fileDigest(path)
	return err == nil && digest == f.Digest
}
