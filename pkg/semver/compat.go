package semver

import (
	"fmt"
	"log/slog"
	"strings"

	masterminds "github.com/Masterminds/semver/v3"
)

const compatLogPrefix = "semver:compat"

// CompatPrefix derives the literal prefix a peer version must start with to
// be accepted, e.g. "v0.2" -> "v0.". Unparseable versions fall back to the
// text up to and including the first dot.
func CompatPrefix(self string) string {
	if v, err := ParseProtocolVersion(self); err == nil {
		return fmt.Sprintf("v%d.", v.Major)
	}
	slog.Debug(fmt.Sprintf("%s - cannot parse %q, using literal prefix", compatLogPrefix, self))
	if i := strings.Index(self, "."); i >= 0 {
		return self[:i+1]
	}
	return self
}

// IsCompatible reports whether peer is accepted by a hub running self.
// The rule is a literal match: identical strings, or peer starting with prefix.
// It is not a semantic range comparison.
func IsCompatible(self, peer, prefix string) bool {
	if peer == "" {
		return false
	}
	if peer == self {
		return true
	}
	return prefix != "" && strings.HasPrefix(peer, prefix)
}

// Newer reports whether a is a strictly higher version than b. Versions
// that cannot be parsed never compare as newer.
func Newer(a, b string) bool {
	va, err := masterminds.NewVersion(a)
	if err != nil {
		return false
	}
	vb, err := masterminds.NewVersion(b)
	if err != nil {
		return false
	}
	return va.GreaterThan(vb)
}
