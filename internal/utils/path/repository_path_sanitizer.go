// Package pathutils canonicalizes repository path arguments.
package pathutils

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	homeDirectoryPrefixConstant = "~"
	gitDirectoryNameConstant    = ".git"
)

// HomeDirectoryResolver returns the user's home directory.
type HomeDirectoryResolver func() (string, error)

// RepositoryPathSanitizer converts user supplied paths into absolute, cleaned working copy paths.
type RepositoryPathSanitizer struct {
	resolveHomeDirectory HomeDirectoryResolver
}

// NewRepositoryPathSanitizer constructs a sanitizer that expands ~ using os.UserHomeDir.
func NewRepositoryPathSanitizer() *RepositoryPathSanitizer {
	return NewRepositoryPathSanitizerWithResolver(nil)
}

// NewRepositoryPathSanitizerWithResolver constructs a sanitizer with a custom home directory resolver.
func NewRepositoryPathSanitizerWithResolver(resolver HomeDirectoryResolver) *RepositoryPathSanitizer {
	if resolver == nil {
		resolver = os.UserHomeDir
	}
	return &RepositoryPathSanitizer{resolveHomeDirectory: resolver}
}

// Sanitize canonicalizes every non-blank input and removes duplicates, preserving first
// occurrence order. It returns nil when nothing remains.
func (sanitizer *RepositoryPathSanitizer) Sanitize(inputs []string) []string {
	var sanitized []string
	seen := make(map[string]struct{}, len(inputs))
	for _, input := range inputs {
		canonical, ok := sanitizer.Canonicalize(input)
		if !ok {
			continue
		}
		if _, duplicate := seen[canonical]; duplicate {
			continue
		}
		seen[canonical] = struct{}{}
		sanitized = append(sanitized, canonical)
	}
	return sanitized
}

// Canonicalize makes a single path absolute and clean, strips a trailing .git component and
// resolves symlinks when the path exists. Blank input yields false.
func (sanitizer *RepositoryPathSanitizer) Canonicalize(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if len(trimmed) == 0 {
		return "", false
	}

	expanded := sanitizer.expandHomeDirectory(trimmed)
	absolutePath, absoluteError := filepath.Abs(expanded)
	if absoluteError != nil {
		return "", false
	}
	cleaned := filepath.Clean(absolutePath)
	if filepath.Base(cleaned) == gitDirectoryNameConstant {
		cleaned = filepath.Dir(cleaned)
	}

	if resolved, resolveError := filepath.EvalSymlinks(cleaned); resolveError == nil {
		cleaned = resolved
	}
	return cleaned, true
}

func (sanitizer *RepositoryPathSanitizer) expandHomeDirectory(path string) string {
	if path != homeDirectoryPrefixConstant && !strings.HasPrefix(path, homeDirectoryPrefixConstant+string(filepath.Separator)) {
		return path
	}
	homeDirectory, homeError := sanitizer.resolveHomeDirectory()
	if homeError != nil || len(homeDirectory) == 0 {
		return path
	}
	return filepath.Join(homeDirectory, strings.TrimPrefix(path, homeDirectoryPrefixConstant))
}

// PathState describes what exists at a repository path.
type PathState int

const (
	// PathMissing means nothing exists at the path.
	PathMissing PathState = iota
	// PathNotWorkingCopy means the path exists but has no .git entry.
	PathNotWorkingCopy
	// PathWorkingCopy means the path holds a .git directory or file.
	PathWorkingCopy
)

// Inspect reports whether path exists and looks like a git working copy. A .git file
// (worktrees, submodules) counts as a working copy marker.
func Inspect(path string) PathState {
	if _, statError := os.Stat(path); statError != nil {
		return PathMissing
	}
	if _, markerError := os.Stat(filepath.Join(path, gitDirectoryNameConstant)); markerError != nil {
		return PathNotWorkingCopy
	}
	return PathWorkingCopy
}
