// Package core implements the task graph and the scheduler that walks
// it, the correctness-critical middle of the runner.
package core

import (
	"fmt"
	"sort"

	"github.com/pyr-sh/dag"

	"github.com/lazy-build/lazy/internal/config"
	"github.com/lazy-build/lazy/internal/util"
	"github.com/lazy-build/lazy/internal/workspace"
)

// CycleError reports a dependency cycle found while sorting the task
// graph, naming the offending task keys.
type CycleError struct {
	Keys []util.TaskKey
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected among tasks: %v", e.Keys)
}

// MissingUpstreamKeyError is a fatal invariant violation: a task's
// manifest build referenced an upstream task that has no cache key yet,
// which can only happen if graph construction produced an edge that
// doesn't respect topological order.
type MissingUpstreamKeyError struct {
	Task     util.TaskKey
	Upstream util.TaskKey
}

func (e *MissingUpstreamKeyError) Error() string {
	return fmt.Sprintf("%s: upstream task %s has no input manifest cache key", e.Task, e.Upstream)
}

// RequestedTask is one task the user asked to run.
type RequestedTask struct {
	TaskName    string
	FilterPaths []string // repo-relative; empty means "every package"
	Force       bool
	ExtraArgs   []string
}

// ScheduledTask is one task-graph node: a (package, taskName) pair (or
// the workspace root, for a top-level task) with its resolved config and
// the ordered set of tasks it depends on.
type ScheduledTask struct {
	Key        util.TaskKey
	TaskName   string
	PackageDir string // relative to root; "" for the workspace root
	Config     config.TaskConfig
	IsRoot     bool

	// UpstreamKeys is the ordered list of TaskKeys this task depends on,
	// derived from runsAfter and (for runType=dependent) local package deps.
	UpstreamKeys []util.TaskKey

	// Force mirrors the --force flag of the request that produced this
	// node: when true, the cache decision always misses.
	Force bool

	// ExtraArgs are appended to the task's command line, from everything
	// after "--" on the invocation that requested this task.
	ExtraArgs []string

	// Status fields, mutated only by the scheduler while this node is
	// "running"; read-only otherwise.
	Status      TaskStatus
	ExitCode    int
	OutputFiles []string // repo-relative, sorted
}

// TaskStatus is a ScheduledTask's lifecycle state.
type TaskStatus string

const (
	StatusPending      TaskStatus = "pending"
	StatusRunning      TaskStatus = "running"
	StatusSuccessEager TaskStatus = "success:eager"
	StatusSuccessLazy  TaskStatus = "success:lazy"
	StatusFailure      TaskStatus = "failure"
	StatusSkipped      TaskStatus = "skipped"
)

// Graph is the resolved, sorted task graph.
type Graph struct {
	AllTasks       map[util.TaskKey]*ScheduledTask
	SortedTaskKeys []util.TaskKey
}

// configLookup resolves the effective TaskConfig for (taskName, pkgName),
// falling back to the default when neither the root nor package config
// defines the task.
type configLookup func(pkgName, taskName string) config.TaskConfig

// Build resolves a set of requested tasks against the workspace into a
// sorted task graph.
func Build(ws *workspace.Workspace, requested []RequestedTask, lookup configLookup) (*Graph, error) {
	all := map[util.TaskKey]*ScheduledTask{}

	for _, req := range requested {
		if err := addRequestedTask(ws, req, lookup, all); err != nil {
			return nil, err
		}
	}

	if err := addEdges(ws, all, lookup); err != nil {
		return nil, err
	}

	sorted, err := topoSort(all)
	if err != nil {
		return nil, err
	}

	return &Graph{AllTasks: all, SortedTaskKeys: sorted}, nil
}

func addRequestedTask(ws *workspace.Workspace, req RequestedTask, lookup configLookup, all map[util.TaskKey]*ScheduledTask) error {
	// Determine runType by checking the root-level config for this task name
	// first (a top-level task is declared once, at the root).
	rootCfg := lookup("", req.TaskName)
	if rootCfg.RunType == config.RunTypeTopLevel {
		key := util.NewTaskKey(req.TaskName, "")
		all[key] = &ScheduledTask{
			Key:       key,
			TaskName:  req.TaskName,
			IsRoot:    true,
			Config:    rootCfg,
			Force:     req.Force,
			ExtraArgs: req.ExtraArgs,
			Status:    StatusPending,
		}
		return nil
	}

	for _, name := range ws.SortedNames {
		pkg := ws.Packages[name]
		relDir, err := pkg.RelDir(ws.Root)
		if err != nil {
			return err
		}
		relDirStr := relDir.ToString()

		if !matchesFilter(relDirStr, req.FilterPaths) {
			continue
		}

		tc := lookup(name, req.TaskName)
		key := util.NewTaskKey(req.TaskName, relDirStr)
		all[key] = &ScheduledTask{
			Key:        key,
			TaskName:   req.TaskName,
			PackageDir: relDirStr,
			Config:     tc,
			Force:      req.Force,
			ExtraArgs:  req.ExtraArgs,
			Status:     StatusPending,
		}
	}
	return nil
}

// matchesFilter reports whether a package directory matches the
// requested --filter paths: a package matches if its directory is a
// prefix of, equal to, or equals one of the filter paths. An empty
// filter list matches every package.
func matchesFilter(relDir string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if relDir == f {
			return true
		}
		if len(relDir) > len(f) && relDir[:len(f)] == f && relDir[len(f)] == '/' {
			return true
		}
		if len(f) > len(relDir) && f[:len(relDir)] == relDir && f[len(relDir)] == '/' {
			return true
		}
	}
	return false
}

// addEdges resolves dependency edges for every node already in all: local
// package deps for runType=dependent tasks, plus runsAfter edges.
func addEdges(ws *workspace.Workspace, all map[util.TaskKey]*ScheduledTask, lookup configLookup) error {
	for _, task := range all {
		if task.Config.RunType == config.RunTypeDependent && !task.IsRoot {
			pkg := ws.Packages[packageNameForDir(ws, task.PackageDir)]
			if pkg != nil {
				for _, depName := range pkg.LocalDeps {
					depPkg := ws.Packages[depName]
					relDir, err := depPkg.RelDir(ws.Root)
					if err != nil {
						return err
					}
					upstreamKey := util.NewTaskKey(task.TaskName, relDir.ToString())
					if _, ok := all[upstreamKey]; ok {
						connect(task, upstreamKey)
					}
				}
			}
		}

		for otherTaskName := range task.Config.RunsAfter {
			otherRootCfg := lookup("", otherTaskName)
			if otherRootCfg.RunType == config.RunTypeTopLevel {
				rootKey := util.NewTaskKey(otherTaskName, "")
				if _, ok := all[rootKey]; ok {
					connect(task, rootKey)
				}
				continue
			}
			if !task.IsRoot {
				upstreamKey := util.NewTaskKey(otherTaskName, task.PackageDir)
				if _, ok := all[upstreamKey]; ok {
					connect(task, upstreamKey)
				}
			}
		}
	}

	return nil
}

func connect(task *ScheduledTask, upstreamKey util.TaskKey) {
	for _, existing := range task.UpstreamKeys {
		if existing == upstreamKey {
			return
		}
	}
	task.UpstreamKeys = append(task.UpstreamKeys, upstreamKey)
}

// ToDag rebuilds the dag.AcyclicGraph backing this graph's edges, for
// callers (graphviz) that want a renderable representation rather than
// the flat SortedTaskKeys order.
func (g *Graph) ToDag() *dag.AcyclicGraph {
	out := &dag.AcyclicGraph{}
	for k := range g.AllTasks {
		out.Add(k)
	}
	for key, task := range g.AllTasks {
		for _, up := range task.UpstreamKeys {
			out.Connect(dag.BasicEdge(key, up))
		}
	}
	return out
}

func packageNameForDir(ws *workspace.Workspace, relDir string) string {
	for name, pkg := range ws.Packages {
		rel, err := pkg.RelDir(ws.Root)
		if err == nil && rel.ToString() == relDir {
			return name
		}
	}
	return ""
}

// topoSort performs a deterministic Kahn's-algorithm topological sort:
// among nodes with no unsatisfied upstream, the node with the lexically
// smallest TaskKey is visited next. Two different schedules over the same
// graph always produce the same order.
func topoSort(all map[util.TaskKey]*ScheduledTask) ([]util.TaskKey, error) {
	remaining := map[util.TaskKey]int{}
	for k, t := range all {
		remaining[k] = len(t.UpstreamKeys)
	}

	// dependents[u] lists tasks that have u as an upstream.
	dependents := map[util.TaskKey][]util.TaskKey{}
	for k, t := range all {
		for _, u := range t.UpstreamKeys {
			dependents[u] = append(dependents[u], k)
		}
	}
	for _, deps := range dependents {
		sort.Slice(deps, func(i, j int) bool { return deps[i] < deps[j] })
	}

	var ready []util.TaskKey
	for k, n := range remaining {
		if n == 0 {
			ready = append(ready, k)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })

	var sorted []util.TaskKey
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
		next := ready[0]
		ready = ready[1:]
		sorted = append(sorted, next)

		for _, dep := range dependents[next] {
			remaining[dep]--
			if remaining[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(sorted) != len(all) {
		var stuck []util.TaskKey
		for k, n := range remaining {
			if n > 0 {
				stuck = append(stuck, k)
			}
		}
		sort.Slice(stuck, func(i, j int) bool { return stuck[i] < stuck[j] })
		return nil, &CycleError{Keys: stuck}
	}

	return sorted, nil
}
