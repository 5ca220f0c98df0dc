// Package semver provides protocol version parsing and the prefix rule used
// to decide whether two peers speak compatible protocol versions.
package semver

import (
	"fmt"
	"regexp"
	"strings"

	masterminds "github.com/Masterminds/semver/v3"
)

const logPrefix = "semver:parser"

// protocolVersionRegex accepts "v0", "v0.2", "v0.2.1" and an optional prerelease.
var protocolVersionRegex = regexp.MustCompile(`^v\d+(\.\d+){0,2}(-[\w.]+)?$`)

// ProtocolVersion holds the parsed components of an advertised protocol version.
type ProtocolVersion struct {
	// Raw input string (e.g., "v0.2")
	Raw        string
	Major      uint64
	Minor      uint64
	Patch      uint64
	Prerelease string
}

// ParseProtocolVersion parses a "v"-prefixed protocol version string.
func ParseProtocolVersion(input string) (*ProtocolVersion, error) {
	raw := strings.TrimSpace(input)
	if !protocolVersionRegex.MatchString(raw) {
		return nil, fmt.Errorf("%s - invalid protocol version: %q", logPrefix, input)
	}
	v, err := masterminds.NewVersion(raw)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid protocol version %q: %w", logPrefix, input, err)
	}
	return &ProtocolVersion{
		Raw:        raw,
		Major:      v.Major(),
		Minor:      v.Minor(),
		Patch:      v.Patch(),
		Prerelease: v.Prerelease(),
	}, nil
}

// IsValid reports whether s is a well-formed protocol version.
func IsValid(s string) bool {
	_, err := ParseProtocolVersion(s)
	return err == nil
}

// String returns the canonical "vMAJOR.MINOR.PATCH" form.
func (v *ProtocolVersion) String() string {
	base := fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Prerelease != "" {
		return base + "-" + v.Prerelease
	}
	return base
}
