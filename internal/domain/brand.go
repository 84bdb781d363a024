package domain

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Brand represents a tenant: one customer whose orders live in their own
// database file, isolated from every other brand.
type Brand struct {
	ID          string            `json:"brand_id"`
	DisplayName string            `json:"display_name"`
	CreatedAt   time.Time         `json:"created_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// MetadataKeyNotes is the only reserved metadata key so far. Everything else
// in Brand.Metadata is opaque to the storage core.
const MetadataKeyNotes = "notes"

// BrandRegistry is the authoritative index of known brands. An entry exists
// here iff the brand's database directory exists on disk; the brand service
// is the only caller allowed to change either side.
type BrandRegistry interface {
	List(ctx context.Context) ([]*Brand, error)
	Get(ctx context.Context, brandID string) (*Brand, error)
	Exists(ctx context.Context, brandID string) (bool, error)
	Add(ctx context.Context, brand *Brand) error
	Remove(ctx context.Context, brandID string) error
	Rename(ctx context.Context, brandID, displayName string) error
}

// Brand ids become directory names, so the character set is restricted to
// lowercase alphanumerics plus '-' and '_', starting with an alphanumeric.
var brandIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ValidateBrandID returns ErrInvalidBrandID unless id is safe to use as a
// path component.
func ValidateBrandID(id string) error {
	if !brandIDPattern.MatchString(id) {
		return fmt.Errorf("%q: %w", id, ErrInvalidBrandID)
	}
	return nil
}

// SlugifyBrandID derives a brand id from a display name: lowercased, runs of
// unsafe characters collapsed to single hyphens, truncated to 64 characters.
// The result may still fail validation (e.g. an all-symbol name).
func SlugifyBrandID(displayName string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphens
	for _, r := range strings.ToLower(strings.TrimSpace(displayName)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	s := strings.TrimRight(b.String(), "-")
	if len(s) > 64 {
		s = strings.TrimRight(s[:64], "-")
	}
	return s
}
