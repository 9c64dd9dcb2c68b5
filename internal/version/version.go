// Package version carries the firmware version of the running agent and
// compares it against what the firmware distribution server advertises.
package version

import "strconv"

var (
	// Version is the current firmware version (dotted numeric, e.g. "2.4.1").
	Version = "dev"
	// GitSHA is the git commit SHA baked in at build time.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// IsNewer reports whether candidate is a strictly newer dotted-numeric
// version than current. Non-numeric or malformed segments compare as zero,
// so "dev" never looks newer than a real release.
func IsNewer(current, candidate string) bool {
	c := splitVersion(current)
	n := splitVersion(candidate)
	for i := 0; i < len(c) || i < len(n); i++ {
		var a, b int
		if i < len(c) {
			a = c[i]
		}
		if i < len(n) {
			b = n[i]
		}
		if b > a {
			return true
		}
		if b < a {
			return false
		}
	}
	return false
}

func splitVersion(v string) []int {
	var out []int
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == '.' {
			n, _ := strconv.Atoi(v[start:i])
			out = append(out, n)
			start = i + 1
		}
	}
	return out
}
