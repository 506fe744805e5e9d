// Package executor implements the single entry point for tool effects
// (spec.md §4.7): Execute. Sandbox rules are enforced here, independent of
// individual tools, so no tool implementation can opt out of them.
package executor

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Sandbox enforces filesystem and application allow/deny rules shared by
// every tool execution, regardless of what an individual tool declares.
type Sandbox struct {
	AllowedAppNames   []string
	AllowedPathPrefix []string
	MaxReadBytes      int64
}

// defaultDenyPrefixes are always denied even if an allowed prefix would
// otherwise match (spec.md §4.7).
var defaultDenyPrefixes = []string{
	"/etc", "/var", "/usr", "/bin", "/sbin", "/System", "/Library", "/private",
}

// defaultDenySubstrings block credential directories anywhere in a path.
var defaultDenySubstrings = []string{".ssh", ".gnupg", ".aws", ".config"}

// NewSandbox builds a Sandbox from configured allowances.
func NewSandbox(allowedApps, allowedPathPrefixes []string, maxReadBytes int64) *Sandbox {
	return &Sandbox{
		AllowedAppNames:   allowedApps,
		AllowedPathPrefix: allowedPathPrefixes,
		MaxReadBytes:      maxReadBytes,
	}
}

// CheckApp reports whether name may be launched.
func (s *Sandbox) CheckApp(name string) error {
	for _, a := range s.AllowedAppNames {
		if a == name {
			return nil
		}
	}
	return fmt.Errorf("executor: application %q is not on the allowlist", name)
}

// CheckPath reports whether path may be read or written: it must match an
// allowed prefix and must not match any denylisted prefix or substring.
func (s *Sandbox) CheckPath(path string) error {
	clean := filepath.Clean(path)

	for _, deny := range defaultDenyPrefixes {
		if strings.HasPrefix(clean, deny) {
			return fmt.Errorf("executor: path %q is under a denied system directory %q", clean, deny)
		}
	}
	for _, substr := range defaultDenySubstrings {
		if strings.Contains(clean, substr) {
			return fmt.Errorf("executor: path %q touches a denied credential directory (%q)", clean, substr)
		}
	}

	for _, allow := range s.AllowedPathPrefix {
		if strings.HasPrefix(clean, allow) {
			return nil
		}
	}
	return fmt.Errorf("executor: path %q is not under any allowed directory", clean)
}

// CheckReadSize reports whether a read of size bytes is within bounds.
func (s *Sandbox) CheckReadSize(size int64) error {
	if s.MaxReadBytes > 0 && size > s.MaxReadBytes {
		return fmt.Errorf("executor: read of %d bytes exceeds the %d byte limit", size, s.MaxReadBytes)
	}
	return nil
}
