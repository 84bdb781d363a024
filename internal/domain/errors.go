package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the storage core. Callers branch with errors.Is; the
// excluded web layer maps the "no such" family to 404s and the duplicate /
// invalid family to 400s.
var (
	ErrDuplicateUser  = errors.New("user already exists")
	ErrNoSuchUser     = errors.New("user not found")
	ErrDuplicateBrand = errors.New("brand already exists")
	ErrInvalidBrandID = errors.New("invalid brand id")
	ErrNoSuchBrand    = errors.New("brand not found")
)

// ConfigurationError means the data directory could not be resolved. It is
// fatal to process startup and never retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// StorageError wraps filesystem or database failures (disk full, permission
// denied, corrupt file). It signals an environment problem rather than a
// logic error, so it is kept distinct from the not-found sentinels.
type StorageError struct {
	Op   string // operation being attempted, e.g. "write brand registry"
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("storage error: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
