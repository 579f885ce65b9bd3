package artifact

import (
	"strings"
	"time"
)

const (
	Prefix = "backup-"
	Suffix = ".tar.gz"

	// TimestampLayout has no colons so names stay portable across
	// filesystems.
	TimestampLayout = "2006-01-02T15-04-05"

	// Pattern is the shell glob matching artifact names.
	Pattern = Prefix + "*" + Suffix
)

// Name returns the artifact name for a cycle that began combining at t.
// Timestamps are always rendered in UTC.
func Name(t time.Time) string {
	return Prefix + t.UTC().Format(TimestampLayout) + Suffix
}

// Parse extracts the creation instant from an artifact name.
func Parse(name string) (time.Time, bool) {
	if !Matches(name) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, Prefix), Suffix)
	t, err := time.ParseInLocation(TimestampLayout, stamp, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Matches reports whether name follows the artifact naming convention. It
// does not check that the embedded timestamp parses.
func Matches(name string) bool {
	return strings.HasPrefix(name, Prefix) && strings.HasSuffix(name, Suffix) &&
		len(name) >= len(Prefix)+len(Suffix)
}

// Filter returns the names that follow the naming convention, in input order.
func Filter(names []string) []string {
	var out []string
	for _, n := range names {
		if Matches(n) {
			out = append(out, n)
		}
	}
	return out
}
