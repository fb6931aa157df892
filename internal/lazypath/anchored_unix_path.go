package lazypath

import (
	"path"
	"path/filepath"
)

// AnchoredUnixPath is a repo-relative path using POSIX `/` separators,
// regardless of host platform. This is the only path shape a manifest
// entry's id field is ever allowed to hold.
type AnchoredUnixPath string

// ToString returns the string representation of this path, for interfacing
// with APIs that require a plain string.
func (p AnchoredUnixPath) ToString() string {
	return string(p)
}

// RestoreAnchor anchors this repo-relative path onto an absolute root,
// converting `/` separators to the host's native ones along the way.
func (p AnchoredUnixPath) RestoreAnchor(root AbsoluteSystemPath) AbsoluteSystemPath {
	return root.Join(filepath.FromSlash(p.ToString()))
}

// Join appends POSIX-style relative path segments to this path.
func (p AnchoredUnixPath) Join(segments ...string) AnchoredUnixPath {
	return AnchoredUnixPath(path.Join(append([]string{p.ToString()}, segments...)...))
}

// Dir returns the parent of this path.
func (p AnchoredUnixPath) Dir() AnchoredUnixPath {
	return AnchoredUnixPath(path.Dir(p.ToString()))
}
