package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	hclog "github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/lazy-build/lazy/internal/colorcache"
	"github.com/lazy-build/lazy/internal/config"
	"github.com/lazy-build/lazy/internal/env"
	"github.com/lazy-build/lazy/internal/hashutil"
	"github.com/lazy-build/lazy/internal/inputs"
	"github.com/lazy-build/lazy/internal/lazypath"
	"github.com/lazy-build/lazy/internal/manifest"
	"github.com/lazy-build/lazy/internal/process"
	"github.com/lazy-build/lazy/internal/ui"
	"github.com/lazy-build/lazy/internal/util"
	"github.com/lazy-build/lazy/internal/workspace"
)

// TaskError records one task command failure.
type TaskError struct {
	Key      util.TaskKey
	ExitCode int
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s: command exited with code %d", e.Key, e.ExitCode)
}

// lazyDirName is the on-disk state directory under each package.
const lazyDirName = ".lazy"

// Scheduler walks a Graph, building each task's input manifest and
// deciding cache hit vs. miss for each one.
type Scheduler struct {
	Graph       *Graph
	Workspace   *workspace.Workspace
	BaseCache   config.BaseCacheConfig
	Logger      hclog.Logger
	Concurrency int

	// DryRun, when true, still builds every task's manifest and makes the
	// cache decision, but never spawns a task's command on a miss.
	DryRun bool

	mu            sync.Mutex
	cacheKeys     map[util.TaskKey]string // per-run inputManifestCacheKey
	parallelLocks map[string]*sync.Mutex  // keyed by task name, for parallel:false
	colors        *colorcache.ColorCache
	environ       env.Map
}

// NewScheduler constructs a Scheduler for the given resolved graph.
func NewScheduler(g *Graph, ws *workspace.Workspace, base config.BaseCacheConfig, logger hclog.Logger, concurrency int) *Scheduler {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Scheduler{
		Graph:         g,
		Workspace:     ws,
		BaseCache:     base,
		Logger:        logger,
		Concurrency:   concurrency,
		cacheKeys:     map[util.TaskKey]string{},
		parallelLocks: map[string]*sync.Mutex{},
		colors:        colorcache.New(),
		environ:       env.FromOS(),
	}
}

// Run walks the graph to completion and returns the list of task keys
// whose command failed. A non-empty result means the overall run failed.
func (s *Scheduler) Run() ([]util.TaskKey, error) {
	done := make(map[util.TaskKey]chan struct{}, len(s.Graph.SortedTaskKeys))
	for _, k := range s.Graph.SortedTaskKeys {
		done[k] = make(chan struct{})
	}

	sem := make(chan struct{}, s.Concurrency)
	var eg errgroup.Group
	var failedMu sync.Mutex
	var failed []util.TaskKey

	for _, key := range s.Graph.SortedTaskKeys {
		key := key
		task := s.Graph.AllTasks[key]
		eg.Go(func() error {
			defer close(done[key])

			for _, up := range task.UpstreamKeys {
				<-done[up]
			}

			if s.anyUpstreamFailed(task) {
				s.setStatus(task, StatusSkipped)
				return nil
			}

			lock := s.parallelLock(task.TaskName, task.Config.Parallel)
			if lock != nil {
				lock.Lock()
				defer lock.Unlock()
			}

			sem <- struct{}{}
			defer func() { <-sem }()

			if err := s.runOne(task); err != nil {
				if taskErr, ok := err.(*TaskError); ok {
					failedMu.Lock()
					failed = append(failed, taskErr.Key)
					failedMu.Unlock()
					return nil
				}
				return err
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
	return failed, nil
}

func (s *Scheduler) anyUpstreamFailed(task *ScheduledTask) bool {
	for _, up := range task.UpstreamKeys {
		upTask := s.Graph.AllTasks[up]
		s.mu.Lock()
		status := upTask.Status
		s.mu.Unlock()
		if status == StatusFailure || status == StatusSkipped {
			return true
		}
	}
	return false
}

func (s *Scheduler) parallelLock(taskName string, parallel bool) *sync.Mutex {
	if parallel {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.parallelLocks[taskName]
	if !ok {
		lock = &sync.Mutex{}
		s.parallelLocks[taskName] = lock
	}
	return lock
}

func (s *Scheduler) setStatus(task *ScheduledTask, status TaskStatus) {
	s.mu.Lock()
	task.Status = status
	s.mu.Unlock()
}

func (s *Scheduler) setCacheKey(key util.TaskKey, hash string) {
	s.mu.Lock()
	s.cacheKeys[key] = hash
	s.mu.Unlock()
}

func (s *Scheduler) cacheKey(key util.TaskKey) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cacheKeys[key]
	return v, ok
}

// runOne builds task's manifest, makes the cache decision, and runs its
// command on miss. It returns a *TaskError (not a plain error) when the
// command itself failed, so the caller can record it without aborting
// the rest of the graph walk.
func (s *Scheduler) runOne(task *ScheduledTask) error {
	s.setStatus(task, StatusRunning)
	logger := s.Logger.Named(string(task.Key))

	root := s.Workspace.Root
	packageAbsDir := root
	if !task.IsRoot {
		packageAbsDir = root.Join(filepath.FromSlash(task.PackageDir))
	}

	if task.Config.CacheNone {
		if s.DryRun {
			logger.Info("cache disabled, would run")
			s.setStatus(task, StatusSuccessEager)
			return nil
		}
		return s.runCommand(task, packageAbsDir, logger, true)
	}

	manifestPath := filepath.Join(packageAbsDir.ToString(), lazyDirName, "manifests", slug(task.TaskName))
	diffPath := filepath.Join(packageAbsDir.ToString(), lazyDirName, "diffs", slug(task.TaskName))

	prevManifest, err := manifest.Read(manifestPath)
	if err != nil {
		return err
	}
	prevExisted := len(prevManifest.Entries) > 0

	builder := manifest.NewBuilder(prevManifest, manifestPath, diffPath, hashutil.CombineOrdered)

	extraFiles, err := s.buildExtraFiles(task)
	if err != nil {
		return err
	}

	if err := s.populateManifest(builder, task, extraFiles); err != nil {
		return err
	}

	var result manifest.Result
	if s.DryRun {
		result, err = builder.EndDry()
	} else {
		result, err = builder.End()
	}
	if err != nil {
		// A manifest or diff write failing is a failure of this task, not
		// of the whole walk; builder-internal ordering violations are
		// programming errors and stay fatal.
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			logger.Error("manifest write failed", "error", err)
			s.setStatus(task, StatusFailure)
			task.ExitCode = 1
			return &TaskError{Key: task.Key, ExitCode: 1}
		}
		return err
	}
	s.setCacheKey(task.Key, result.Hash)

	cacheMiss := task.Force || !prevExisted || result.DidChange

	if !cacheMiss {
		s.setStatus(task, StatusSuccessLazy)
		if s.DryRun {
			logger.Info("cache hit, would skip")
		}
		return s.captureOutputs(task, packageAbsDir)
	}

	logger.Debug("cache miss", "diff-lines", len(result.Diff))
	if s.DryRun {
		logger.Info("cache miss, would run", "diff-lines", len(result.Diff))
		s.setStatus(task, StatusSuccessEager)
		return nil
	}
	return s.runCommand(task, packageAbsDir, logger, false)
}

// populateManifest feeds the builder in the canonical entry order:
// upstream task inputs, upstream package inputs, env vars, then files.
func (s *Scheduler) populateManifest(b *manifest.Builder, task *ScheduledTask, extraFiles []lazypath.AnchoredUnixPath) error {
	// 2a: upstream task inputs, for runsAfter entries with inheritsInput.
	// The keys come from the graph's resolved edges rather than being
	// recomputed here, so a top-level upstream resolves to its real
	// <rootDir> key instead of a nonexistent per-package one.
	var taskUpstreamIDs []util.TaskKey
	for _, upKey := range task.UpstreamKeys {
		upTask := s.Graph.AllTasks[upKey]
		dep, ok := task.Config.RunsAfter[upTask.TaskName]
		if !ok || !dep.InheritsInput {
			continue
		}
		taskUpstreamIDs = append(taskUpstreamIDs, upKey)
	}
	sort.Slice(taskUpstreamIDs, func(i, j int) bool { return taskUpstreamIDs[i] < taskUpstreamIDs[j] })
	for _, upKey := range taskUpstreamIDs {
		hash, ok := s.cacheKey(upKey)
		if !ok {
			return &MissingUpstreamKeyError{Task: task.Key, Upstream: upKey}
		}
		b.Update(manifest.EntryUpstreamTaskInputs, string(upKey), hash, "")
	}

	// 2b: upstream package inputs, for runType != independent with
	// cache.inheritsInputFromDependencies.
	if task.Config.RunType != config.RunTypeIndependent && task.Config.Cache != nil &&
		task.Config.Cache.InheritsInputFromDependencies && !task.IsRoot {
		pkg := s.Workspace.Packages[packageNameForDir(s.Workspace, task.PackageDir)]
		if pkg != nil {
			var depKeys []util.TaskKey
			for _, depName := range pkg.LocalDeps {
				depPkg := s.Workspace.Packages[depName]
				relDir, err := depPkg.RelDir(s.Workspace.Root)
				if err != nil {
					return err
				}
				depKey := util.NewTaskKey(task.TaskName, relDir.ToString())
				if _, ok := s.Graph.AllTasks[depKey]; ok {
					depKeys = append(depKeys, depKey)
				}
			}
			sort.Slice(depKeys, func(i, j int) bool { return depKeys[i] < depKeys[j] })
			for _, depKey := range depKeys {
				hash, ok := s.cacheKey(depKey)
				if !ok {
					return &MissingUpstreamKeyError{Task: task.Key, Upstream: depKey}
				}
				b.Update(manifest.EntryUpstreamPackageInputs, string(depKey), hash, "")
			}
		}
	}

	// 2c: env vars.
	envPatterns := config.MergeEnvInputs(s.BaseCache, task.Config.Cache)
	selected, err := s.environ.Select(envPatterns)
	if err != nil {
		return err
	}
	for _, name := range selected.Names() {
		b.Update(manifest.EntryEnvVar, name, hashutil.HashString(selected[name]), "")
	}

	// 2d: files.
	root := s.Workspace.Root
	packageAbsDir := root
	if !task.IsRoot {
		packageAbsDir = root.Join(filepath.FromSlash(task.PackageDir))
	}

	var globSpec config.GlobSpec
	if task.Config.Cache != nil {
		globSpec = task.Config.Cache.Inputs
	} else {
		globSpec = config.DefaultGlobSpec()
	}

	files, err := inputs.Enumerate(root, packageAbsDir, s.BaseCache, globSpec, extraFiles)
	if err != nil {
		return err
	}
	for _, relPath := range files {
		abs := relPath.RestoreAnchor(root)
		info, err := abs.Lstat()
		if err != nil {
			continue // file vanished between enumeration and hashing; treat as absent
		}
		metaMs := strconv.FormatInt(info.ModTime().UnixMilli(), 10)
		idStr := relPath.ToString()
		if b.CopyLineOverIfMetaIsSame(manifest.EntryFile, idStr, metaMs) {
			continue
		}
		hash, err := hashutil.HashFile(abs.ToString())
		if err != nil {
			return err
		}
		b.Update(manifest.EntryFile, idStr, hash, metaMs)
	}

	return nil
}

// buildExtraFiles gathers the output files of upstream tasks: runsAfter
// upstreams whose entry has usesOutput (default true), and package-dep
// upstreams unless cache.usesOutputFromDependencies is false.
func (s *Scheduler) buildExtraFiles(task *ScheduledTask) ([]lazypath.AnchoredUnixPath, error) {
	var extra []lazypath.AnchoredUnixPath
	for _, upKey := range task.UpstreamKeys {
		upTask := s.Graph.AllTasks[upKey]
		usesOutput := true
		if dep, ok := task.Config.RunsAfter[upTask.TaskName]; ok {
			usesOutput = dep.UsesOutput
		} else if task.Config.Cache != nil {
			usesOutput = task.Config.Cache.UsesOutputFromDependencies
		}
		if !usesOutput {
			continue
		}
		s.mu.Lock()
		files := append([]string{}, upTask.OutputFiles...)
		s.mu.Unlock()
		for _, f := range files {
			extra = append(extra, lazypath.AnchoredUnixPath(f))
		}
	}
	return extra, nil
}

func (s *Scheduler) runCommand(task *ScheduledTask, packageAbsDir lazypath.AbsoluteSystemPath, logger hclog.Logger, cacheNone bool) error {
	// discardManifest removes the manifest End promoted for this run, so a
	// failed task is re-attempted on the next run.
	discardManifest := func() {
		if cacheNone {
			return
		}
		manifestPath := filepath.Join(packageAbsDir.ToString(), lazyDirName, "manifests", slug(task.TaskName))
		diffPath := filepath.Join(packageAbsDir.ToString(), lazyDirName, "diffs", slug(task.TaskName))
		discardBuilder := manifest.NewBuilder(nil, manifestPath, diffPath, hashutil.CombineOrdered)
		_ = discardBuilder.DiscardAfterFailure()
	}

	cmdline := task.Config.BaseCommand
	if cmdline == "" {
		pkg := s.Workspace.Packages[packageNameForDir(s.Workspace, task.PackageDir)]
		if pkg != nil {
			cmdline = pkg.JSON.Scripts[task.TaskName]
		}
	}
	if cmdline == "" {
		s.setStatus(task, StatusFailure)
		task.ExitCode = 1
		discardManifest()
		return &TaskError{Key: task.Key, ExitCode: 1}
	}
	if len(task.ExtraArgs) > 0 {
		cmdline = cmdline + " " + strings.Join(task.ExtraArgs, " ")
	}

	prefix := s.colors.PrefixWithColor(task.Key, string(task.Key))
	stdout := ui.NewPrefixedWriter(os.Stdout, prefix)
	stderr := ui.NewPrefixedWriter(os.Stderr, prefix)
	defer func() {
		_ = stdout.Flush()
		_ = stderr.Flush()
	}()

	code, err := process.Run(process.RunOptions{
		Command: "sh",
		Args:    []string{"-c", cmdline},
		Dir:     packageAbsDir.ToString(),
		Env:     os.Environ(),
		Stdout:  stdout,
		Stderr:  stderr,
		Logger:  logger,
	})
	if err != nil {
		s.setStatus(task, StatusFailure)
		task.ExitCode = 1
		discardManifest()
		return &TaskError{Key: task.Key, ExitCode: 1}
	}

	if code != 0 {
		s.setStatus(task, StatusFailure)
		task.ExitCode = code
		discardManifest()
		return &TaskError{Key: task.Key, ExitCode: code}
	}

	s.setStatus(task, StatusSuccessEager)
	return s.captureOutputs(task, packageAbsDir)
}

// captureOutputs sets task.OutputFiles to the sorted list of files
// matching cache.outputs under the package directory.
func (s *Scheduler) captureOutputs(task *ScheduledTask, packageAbsDir lazypath.AbsoluteSystemPath) error {
	if task.Config.CacheNone || task.Config.Cache == nil {
		return nil
	}
	spec := task.Config.Cache.Outputs
	if len(spec.Include) == 0 {
		return nil
	}

	root := s.Workspace.Root
	var matches []string
	fsys := os.DirFS(packageAbsDir.ToString())
	for _, pattern := range spec.Include {
		found, err := doublestar.Glob(fsys, filepath.ToSlash(pattern))
		if err != nil {
			return err
		}
		matches = append(matches, found...)
	}
	excluded := map[string]bool{}
	for _, pattern := range spec.Exclude {
		found, _ := doublestar.Glob(fsys, filepath.ToSlash(pattern))
		for _, f := range found {
			excluded[f] = true
		}
	}

	var out []string
	seen := map[string]bool{}
	for _, m := range matches {
		if excluded[m] || seen[m] {
			continue
		}
		seen[m] = true
		// The runner's own state directory is never a task output.
		if m == lazyDirName || strings.HasPrefix(m, lazyDirName+"/") {
			continue
		}
		abs := packageAbsDir.Join(filepath.FromSlash(m))
		info, err := abs.Lstat()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		rel, err := abs.RelativeTo(root)
		if err != nil {
			return err
		}
		out = append(out, rel.ToString())
	}
	sort.Strings(out)

	s.mu.Lock()
	task.OutputFiles = out
	s.mu.Unlock()
	return nil
}

// slug is a filename-safe, deterministic transformation of a task name
// for use as a manifest/diff file name: ASCII letters are lowercased,
// digits, '-' and '_' are kept, and every other character becomes '_'.
// Names that differ only in letter case or in replaced characters
// ("build:watch" and "build_watch") map to the same slug.
func slug(taskName string) string {
	out := make([]rune, 0, len(taskName))
	for _, r := range taskName {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r-'A'+'a')
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
