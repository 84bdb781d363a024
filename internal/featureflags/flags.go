package featureflags

import (
	"os"
	"strings"
)

// BrandHardDelete makes brand deletion unlink the tenant directory instead
// of archiving it. Off by default; archived data survives UI mistakes.
const BrandHardDelete = "BRAND_HARD_DELETE"

// Enabled returns true if a flag is enabled via environment variable.
// Flags are read from env as FLAG_<NAME>=true/1/yes (case-insensitive)
func Enabled(name string) bool {
	v := os.Getenv("FLAG_" + strings.ToUpper(name))
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
