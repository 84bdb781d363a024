package repository

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yourorg/orderreports/internal/domain"
	"github.com/yourorg/orderreports/internal/observability/metrics"
)

const stagingSuffix = ".upload"

// StagingArea parks uploads under tmp_uploads/ while they are ingested.
// Every staged file is owned by exactly one request and removed when that
// request commits or discards it; the background sweeper only mops up after
// crashes.
type StagingArea struct {
	dir    string
	logger *slog.Logger
}

// NewStagingArea creates a staging area rooted at dir, which must already
// exist.
func NewStagingArea(dir string, logger *slog.Logger) *StagingArea {
	if logger == nil {
		logger = slog.Default()
	}
	return &StagingArea{dir: dir, logger: logger}
}

// Stage copies the stream into a uniquely named file. name is the original
// upload file name, carried along for archiving at commit time.
func (s *StagingArea) Stage(ctx context.Context, stream io.Reader, name string) (*domain.StagingFile, error) {
	id := uuid.NewString()
	path := filepath.Join(s.dir, id+stagingSuffix)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, &domain.StorageError{Op: "create staging file", Path: path, Err: err}
	}

	if _, err = io.Copy(f, stream); err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, &domain.StorageError{Op: "write staging file", Path: path, Err: err}
	}

	metrics.IncStagedFiles()
	return &domain.StagingFile{
		ID:        id,
		Path:      path,
		Name:      filepath.Base(name),
		CreatedAt: time.Now(),
	}, nil
}

// Discard removes a staged file. Removing one that is already gone (e.g.
// because commit moved it into an archive) is not an error.
func (s *StagingArea) Discard(sf *domain.StagingFile) error {
	err := os.Remove(sf.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &domain.StorageError{Op: "remove staging file", Path: sf.Path, Err: err}
	}
	metrics.DecStagedFiles()
	return nil
}

// PromoteTo moves a staged file to dest (same filesystem rename). The
// staged file stops existing either way, which is what keeps the cleanup
// guarantee simple.
func (s *StagingArea) PromoteTo(sf *domain.StagingFile, dest string) error {
	if err := os.Rename(sf.Path, dest); err != nil {
		return &domain.StorageError{Op: "archive staging file", Path: sf.Path, Err: err}
	}
	metrics.DecStagedFiles()
	return nil
}

// Stale lists staged files whose modification time is older than maxAge.
// Used by the sweeper as the crash safety net.
func (s *StagingArea) Stale(maxAge time.Duration) ([]*domain.StagingFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &domain.StorageError{Op: "list staging directory", Path: s.dir, Err: err}
	}

	cutoff := time.Now().Add(-maxAge)
	var stale []*domain.StagingFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), stagingSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		stale = append(stale, &domain.StagingFile{
			ID:        strings.TrimSuffix(entry.Name(), stagingSuffix),
			Path:      filepath.Join(s.dir, entry.Name()),
			CreatedAt: info.ModTime(),
		})
	}
	return stale, nil
}

// Count returns how many files are currently staged.
func (s *StagingArea) Count() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, &domain.StorageError{Op: "list staging directory", Path: s.dir, Err: err}
	}
	n := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), stagingSuffix) {
			n++
		}
	}
	return n, nil
}
