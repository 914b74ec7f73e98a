package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator confines tool-supplied paths to the configured forms directory
type PathValidator struct {
	configuredDirectory string
}

// NewPathValidator creates a new path validator for the given directory. The directory does not
// have to exist yet.
func NewPathValidator(configuredDirectory string) (*PathValidator, error) {
	if configuredDirectory == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}
	abs, err := filepath.Abs(configuredDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configured directory: %w", err)
	}
	return &PathValidator{configuredDirectory: filepath.Clean(abs)}, nil
}

// GetConfiguredDirectory returns the absolute configured directory
func (v *PathValidator) GetConfiguredDirectory() string {
	return v.configuredDirectory
}

// Resolve returns the absolute form of path. Relative paths are taken relative to the configured
// directory. The result, with symlinks followed, must stay inside the configured directory.
func (v *PathValidator) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(v.configuredDirectory, path)
	}
	absPath := filepath.Clean(path)

	within, err := v.IsPathWithinDirectory(absPath)
	if err != nil {
		return "", fmt.Errorf("path validation failed: %w", err)
	}
	if !within {
		return "", fmt.Errorf("path is outside configured directory: %s", path)
	}
	return absPath, nil
}

// ValidatePath checks that path resolves inside the configured directory
func (v *PathValidator) ValidatePath(path string) error {
	_, err := v.Resolve(path)
	return err
}

// IsPathWithinDirectory reports whether an absolute path lies inside the configured directory,
// both lexically and after resolving symlinks of existing components
func (v *PathValidator) IsPathWithinDirectory(absPath string) (bool, error) {
	if !filepath.IsAbs(absPath) {
		return false, fmt.Errorf("path is not absolute: %s", absPath)
	}
	cleanPath := filepath.Clean(absPath)

	if !within(cleanPath, v.configuredDirectory) {
		return false, nil
	}

	realDir := v.configuredDirectory
	if resolved, err := filepath.EvalSymlinks(realDir); err == nil {
		realDir = resolved
	} else if os.IsNotExist(err) {
		// nothing on disk can escape a directory that does not exist
		return true, nil
	}

	realPath, err := evalExisting(cleanPath)
	if err != nil {
		return false, err
	}
	return within(realPath, realDir), nil
}

// evalExisting resolves symlinks in the longest existing prefix of path and re-appends the rest
func evalExisting(path string) (string, error) {
	rest := ""
	for p := path; ; p = filepath.Dir(p) {
		resolved, err := filepath.EvalSymlinks(p)
		if err == nil {
			return filepath.Join(resolved, rest), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to evaluate symlinks: %w", err)
		}
		if parent := filepath.Dir(p); parent == p {
			return path, nil
		}
		rest = filepath.Join(filepath.Base(p), rest)
	}
}

func within(path, dir string) bool {
	if path == dir {
		return true
	}
	if !strings.HasSuffix(dir, string(filepath.Separator)) {
		dir += string(filepath.Separator)
	}
	return strings.HasPrefix(path, dir)
}
