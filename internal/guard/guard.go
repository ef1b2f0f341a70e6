// Package guard enforces the import policy for uploaded files.
package guard

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Policy defines which files may be imported.
type Policy struct {
	AllowedFileGlobs []string `json:"allowed_file_globs" yaml:"allowed_file_globs"`
	MaxFileBytes     int64    `json:"max_file_bytes" yaml:"max_file_bytes"`
}

// DefaultPolicy accepts the supported document types up to 10 MB.
var DefaultPolicy = Policy{
	AllowedFileGlobs: []string{"*.txt", "*.pdf", "*.py", "*.java", "*.cpp", "*.js", "*.csv", "*.html", "*.htm"},
	MaxFileBytes:     10 * 1024 * 1024,
}

// Violation represents a specific breach of policy.
type Violation struct {
	Rule    string
	Message string
}

func (v *Violation) Error() string {
	return v.Rule + ": " + v.Message
}

// Guard enforces the policy.
type Guard struct {
	policy Policy
}

func New(p Policy) *Guard {
	return &Guard{policy: p}
}

// Policy returns the guard's current policy configuration.
func (g *Guard) Policy() Policy {
	return g.policy
}

// CheckFile verifies that a file name matches an allowed glob. Globs without
// a path separator match the base name, case-insensitively.
func (g *Guard) CheckFile(path string) *Violation {
	slashed := filepath.ToSlash(path)
	base := strings.ToLower(filepath.Base(path))

	for _, pattern := range g.policy.AllowedFileGlobs {
		target := slashed
		if !strings.Contains(pattern, "/") {
			target = base
			pattern = strings.ToLower(pattern)
		}
		match, err := doublestar.Match(pattern, target)
		if err == nil && match {
			return nil
		}
	}

	return &Violation{Rule: "allowed_file_globs", Message: "file type not allowed: " + filepath.Base(path)}
}

// CheckSize verifies a file is within the size budget. A non-positive limit
// disables the check.
func (g *Guard) CheckSize(size int64) *Violation {
	if g.policy.MaxFileBytes > 0 && size > g.policy.MaxFileBytes {
		return &Violation{
			Rule:    "max_file_bytes",
			Message: fmt.Sprintf("file is %d bytes, limit is %d", size, g.policy.MaxFileBytes),
		}
	}
	return nil
}

// Check applies every file rule.
func (g *Guard) Check(path string, size int64) *Violation {
	if v := g.CheckFile(path); v != nil {
		return v
	}
	return g.CheckSize(size)
}
