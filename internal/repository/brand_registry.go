package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/yourorg/orderreports/internal/domain"
)

const registryFilePermissions = 0o600

// FileBrandRegistry implements domain.BrandRegistry over a single
// brands.json file. The file is rewritten in full on every mutation: first
// to a temp file in the same directory, fsynced, then renamed over the
// target. A reader therefore always sees either the old or the new complete
// content, so reads take no lock; a single mutex serializes writers.
type FileBrandRegistry struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex // held across load-modify-save on mutations
}

// NewFileBrandRegistry creates a registry backed by the file at path. The
// file itself is created lazily by the first mutation.
func NewFileBrandRegistry(path string, logger *slog.Logger) *FileBrandRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileBrandRegistry{path: path, logger: logger}
}

// List returns a snapshot of all registered brands. A missing registry file
// means no brands yet; an unreadable one is logged and treated the same, so
// a corrupt file degrades the listing rather than taking the site down.
func (r *FileBrandRegistry) List(ctx context.Context) ([]*domain.Brand, error) {
	brands, err := r.load()
	if err != nil {
		r.logger.Warn("brand registry unreadable, listing no brands",
			slog.String("path", r.path),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
	return brands, nil
}

// Get returns the brand with the given id, or domain.ErrNoSuchBrand.
func (r *FileBrandRegistry) Get(ctx context.Context, brandID string) (*domain.Brand, error) {
	brands, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, b := range brands {
		if b.ID == brandID {
			return b, nil
		}
	}
	return nil, fmt.Errorf("brand %q: %w", brandID, domain.ErrNoSuchBrand)
}

// Exists reports whether a brand id is registered.
func (r *FileBrandRegistry) Exists(ctx context.Context, brandID string) (bool, error) {
	brands, err := r.load()
	if err != nil {
		return false, err
	}
	for _, b := range brands {
		if b.ID == brandID {
			return true, nil
		}
	}
	return false, nil
}

// Add publishes a new brand entry. The existence check runs under the
// writer lock, so two concurrent adds of the same id yield exactly one
// success and one domain.ErrDuplicateBrand.
func (r *FileBrandRegistry) Add(ctx context.Context, brand *domain.Brand) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	brands, err := r.load()
	if err != nil {
		return err
	}
	for _, b := range brands {
		if b.ID == brand.ID {
			return fmt.Errorf("brand %q: %w", brand.ID, domain.ErrDuplicateBrand)
		}
	}

	brands = append(brands, brand)
	return r.save(brands)
}

// Remove deletes a brand entry, failing with domain.ErrNoSuchBrand if absent.
func (r *FileBrandRegistry) Remove(ctx context.Context, brandID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	brands, err := r.load()
	if err != nil {
		return err
	}

	kept := brands[:0]
	found := false
	for _, b := range brands {
		if b.ID == brandID {
			found = true
			continue
		}
		kept = append(kept, b)
	}
	if !found {
		return fmt.Errorf("brand %q: %w", brandID, domain.ErrNoSuchBrand)
	}
	return r.save(kept)
}

// Rename updates a brand's display name in place.
func (r *FileBrandRegistry) Rename(ctx context.Context, brandID, displayName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	brands, err := r.load()
	if err != nil {
		return err
	}
	for _, b := range brands {
		if b.ID == brandID {
			b.DisplayName = displayName
			return r.save(brands)
		}
	}
	return fmt.Errorf("brand %q: %w", brandID, domain.ErrNoSuchBrand)
}

// load reads the current registry file. Missing file means an empty
// registry; any other failure is a StorageError, which mutation paths
// refuse to write over.
func (r *FileBrandRegistry) load() ([]*domain.Brand, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &domain.StorageError{Op: "read brand registry", Path: r.path, Err: err}
	}

	var brands []*domain.Brand
	if err := json.Unmarshal(data, &brands); err != nil {
		return nil, &domain.StorageError{Op: "parse brand registry", Path: r.path, Err: err}
	}
	return brands, nil
}

// save atomically replaces the registry file.
func (r *FileBrandRegistry) save(brands []*domain.Brand) error {
	if brands == nil {
		brands = []*domain.Brand{}
	}
	data, err := json.MarshalIndent(brands, "", "  ")
	if err != nil {
		return &domain.StorageError{Op: "encode brand registry", Path: r.path, Err: err}
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".brands-*.json")
	if err != nil {
		return &domain.StorageError{Op: "write brand registry", Path: r.path, Err: err}
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmpPath, registryFilePermissions)
	}
	if err == nil {
		err = os.Rename(tmpPath, r.path)
	}
	if err != nil {
		os.Remove(tmpPath)
		return &domain.StorageError{Op: "write brand registry", Path: r.path, Err: err}
	}
	return nil
}
