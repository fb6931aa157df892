// Package lazypath teaches the Go type system about two kinds of paths
// used throughout the runner: absolute, platform-native filesystem paths,
// and repo-relative POSIX-style paths (the only form a manifest entry's
// `id` field is ever allowed to hold, per the canonical manifest format).
//
// Keeping these as distinct string-backed types prevents a path that has
// not been made relative/POSIX from leaking into a manifest line, and
// prevents a manifest-relative path from being used directly as a
// filesystem path without first anchoring it to a root.
package lazypath

// AbsoluteSystemPathFromUpstream casts a string to an AbsoluteSystemPath
// without checking. Use only at the boundary where a path is known-absolute
// (e.g. os.Getwd, filepath.Abs).
func AbsoluteSystemPathFromUpstream(path string) AbsoluteSystemPath {
	return AbsoluteSystemPath(path)
}

// AnchoredUnixPathFromUpstream casts a string to an AnchoredUnixPath
// without checking. Use only at the boundary where a path is known to
// already be repo-relative and POSIX-separated.
func AnchoredUnixPathFromUpstream(path string) AnchoredUnixPath {
	return AnchoredUnixPath(path)
}
