// Package paths resolves the process-wide data directory and the layout of
// everything stored beneath it:
//
//	users.sqlite                  user store
//	brands.json                   brand registry
//	brands/<brand_id>/orders.sqlite   per-brand order database
//	brands/<brand_id>/archive/    ingested report archive
//	tmp_uploads/                  upload staging area
package paths

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/yourorg/orderreports/internal/domain"
)

// EnvDataDir overrides the platform default data directory when set.
const EnvDataDir = "ORDERREPORTS_DATA_DIR"

const appDirName = "orderreports"

// DataDir returns the root data directory for this process. The explicit
// environment override wins; otherwise the per-OS user data convention
// applies (LocalAppData/Application Support/XDG). The directory is not
// created here; callers run Ensure once at startup.
func DataDir() (string, error) {
	return dataDirFor(runtime.GOOS, os.Getenv)
}

// dataDirFor is DataDir with the OS and environment injected, so each
// platform branch stays testable from a single host.
func dataDirFor(goos string, getenv func(string) string) (string, error) {
	if dir := getenv(EnvDataDir); dir != "" {
		return filepath.Clean(dir), nil
	}

	switch goos {
	case "windows":
		base := getenv("LOCALAPPDATA")
		if base == "" {
			base = getenv("APPDATA")
		}
		if base == "" {
			home := getenv("USERPROFILE")
			if home == "" {
				return "", &domain.ConfigurationError{Reason: "no LOCALAPPDATA, APPDATA or USERPROFILE set"}
			}
			base = filepath.Join(home, "AppData", "Local")
		}
		return filepath.Join(base, appDirName), nil

	case "darwin":
		home := getenv("HOME")
		if home == "" {
			return "", &domain.ConfigurationError{Reason: "no HOME directory set"}
		}
		return filepath.Join(home, "Library", "Application Support", appDirName), nil

	default:
		if base := getenv("XDG_DATA_HOME"); base != "" {
			return filepath.Join(base, appDirName), nil
		}
		home := getenv("HOME")
		if home == "" {
			return "", &domain.ConfigurationError{Reason: "no XDG_DATA_HOME or HOME directory set"}
		}
		return filepath.Join(home, ".local", "share", appDirName), nil
	}
}

// UsersDBPath returns the user store database file under root.
func UsersDBPath(root string) string {
	return filepath.Join(root, "users.sqlite")
}

// BrandsFilePath returns the brand registry file under root.
func BrandsFilePath(root string) string {
	return filepath.Join(root, "brands.json")
}

// StagingDir returns the upload staging directory under root.
func StagingDir(root string) string {
	return filepath.Join(root, "tmp_uploads")
}

// BrandDir returns the directory holding one brand's database and archive.
func BrandDir(root, brandID string) string {
	return filepath.Join(root, "brands", brandID)
}

// BrandOrdersPath returns a brand's order database file.
func BrandOrdersPath(root, brandID string) string {
	return filepath.Join(BrandDir(root, brandID), "orders.sqlite")
}

// BrandArchiveDir returns the archive directory inside a brand's directory.
func BrandArchiveDir(root, brandID string) string {
	return filepath.Join(BrandDir(root, brandID), "archive")
}

// Ensure creates dir (and parents) owner-only if it does not exist.
func Ensure(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return &domain.StorageError{Op: "create directory", Path: dir, Err: err}
	}
	return nil
}
