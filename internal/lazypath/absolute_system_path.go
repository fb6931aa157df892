package lazypath

import (
	"os"
	"path/filepath"
)

// AbsoluteSystemPath is an absolute filesystem path using the host's
// native separators.
type AbsoluteSystemPath string

// ToString returns the string representation of this path, for interfacing
// with APIs that require a plain string.
func (p AbsoluteSystemPath) ToString() string {
	return string(p)
}

// Join appends path segments using the platform separator.
func (p AbsoluteSystemPath) Join(segments ...string) AbsoluteSystemPath {
	return AbsoluteSystemPath(filepath.Join(append([]string{p.ToString()}, segments...)...))
}

// UntypedJoin is an alias for Join kept for symmetry with call sites that
// are joining a string that hasn't been typed as a path segment yet.
func (p AbsoluteSystemPath) UntypedJoin(segments ...string) AbsoluteSystemPath {
	return p.Join(segments...)
}

// Dir returns the parent directory of this path.
func (p AbsoluteSystemPath) Dir() AbsoluteSystemPath {
	return AbsoluteSystemPath(filepath.Dir(p.ToString()))
}

// RelativeTo calculates the repo-relative, POSIX-style path between this
// path and a base (normally the workspace root).
func (p AbsoluteSystemPath) RelativeTo(base AbsoluteSystemPath) (AnchoredUnixPath, error) {
	rel, err := filepath.Rel(base.ToString(), p.ToString())
	if err != nil {
		return "", err
	}
	return AnchoredUnixPath(filepath.ToSlash(rel)), nil
}

// FileExists reports whether a regular file or directory exists at this path.
func (p AbsoluteSystemPath) FileExists() bool {
	_, err := os.Lstat(p.ToString())
	return err == nil
}

// MkdirAll creates this path and any missing parents.
func (p AbsoluteSystemPath) MkdirAll(perm os.FileMode) error {
	return os.MkdirAll(p.ToString(), perm)
}

// EnsureDir creates the parent directory of this path, if missing.
func (p AbsoluteSystemPath) EnsureDir() error {
	return os.MkdirAll(filepath.Dir(p.ToString()), 0o775)
}

// Open opens the file at this path for reading.
func (p AbsoluteSystemPath) Open() (*os.File, error) {
	return os.Open(p.ToString())
}

// Create creates (or truncates) the file at this path for writing.
func (p AbsoluteSystemPath) Create() (*os.File, error) {
	return os.Create(p.ToString())
}

// Remove removes the file or empty directory at this path. Missing paths
// are not an error.
func (p AbsoluteSystemPath) Remove() error {
	err := os.Remove(p.ToString())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Lstat returns file info for this path without following symlinks.
func (p AbsoluteSystemPath) Lstat() (os.FileInfo, error) {
	return os.Lstat(p.ToString())
}
