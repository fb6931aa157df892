package util

import (
	"fmt"
	"strings"
)

const (
	// TaskKeyDelimiter separates a task name from its owning package
	// directory in a TaskKey.
	TaskKeyDelimiter = "::"
	// RootDirMarker is the literal package-dir component of a TaskKey for
	// tasks that belong to the workspace root rather than a workspace
	// package.
	RootDirMarker = "<rootDir>"
)

// TaskKey is the canonical string identifier for a scheduled task:
// "{taskName}::{packageDirRelativeToRoot or <rootDir>}". It is used as a
// map key and as the sort key for deterministic topological walks, so it
// must be derived purely from static inputs and remain stable across runs.
type TaskKey string

// NewTaskKey builds a TaskKey from a task name and a package directory
// relative to the workspace root. An empty relPackageDir denotes the
// workspace root task.
func NewTaskKey(taskName string, relPackageDir string) TaskKey {
	dir := relPackageDir
	if dir == "" {
		dir = RootDirMarker
	}
	return TaskKey(fmt.Sprintf("%s%s%s", taskName, TaskKeyDelimiter, dir))
}

// TaskName returns the task-name component of the key.
func (k TaskKey) TaskName() string {
	name, _ := k.split()
	return name
}

// PackageDir returns the package-dir component of the key, or "" for the
// workspace root.
func (k TaskKey) PackageDir() string {
	_, dir := k.split()
	if dir == RootDirMarker {
		return ""
	}
	return dir
}

// IsRootTask reports whether this key belongs to the workspace root.
func (k TaskKey) IsRootTask() bool {
	return k.PackageDir() == ""
}

func (k TaskKey) split() (taskName string, packageDir string) {
	s := string(k)
	idx := strings.Index(s, TaskKeyDelimiter)
	if idx < 0 {
		return s, RootDirMarker
	}
	return s[:idx], s[idx+len(TaskKeyDelimiter):]
}

func (k TaskKey) String() string {
	return string(k)
}
