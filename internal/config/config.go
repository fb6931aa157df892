// Package config loads lazy.config.json files: the workspace-root base
// cache configuration and per-package task definitions described in
// workspace runs on.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// ConfigError wraps a fatal configuration problem: multiple config files
// in one directory, an unreadable/unparseable config file, or an unknown
// recognized-but-unsupported config variant.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return e.msg }

func newConfigError(format string, args ...interface{}) error {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// configFileNames are the recognized base names for a config file, in the
// order the "multiple config files" check reports them. Only ConfigFileName
// (the static JSON variant) is actually loaded; the others are recognized
// so that defining one of them alongside lazy.config.json is still a fatal
// "multiple config files" error rather than a silent double config.
var configFileNames = []string{
	"lazy.config.json",
	"lazy.config.js",
	"lazy.config.cjs",
	"lazy.config.mjs",
	"lazy.config.ts",
	"lazy.config.cts",
	"lazy.config.mts",
}

// ConfigFileName is the only config variant this build actually loads.
// Arbitrary-code configuration (the .js/.ts variants) is out of scope per
// the "Dynamic config loading" design note: this is a systems rewrite and
// does not embed a JS/TS runtime to execute them.
const ConfigFileName = "lazy.config.json"

// GlobSpec is an include/exclude glob pair rooted at some directory.
type GlobSpec struct {
	Include []string `mapstructure:"include" json:"include"`
	Exclude []string `mapstructure:"exclude" json:"exclude"`
}

// DefaultGlobSpec returns the default {include: ["**/*"], exclude: []}.
func DefaultGlobSpec() GlobSpec {
	return GlobSpec{Include: []string{"**/*"}, Exclude: nil}
}

// RunsAfterEntry configures one entry of a task's runsAfter mapping.
type RunsAfterEntry struct {
	InheritsInput bool `mapstructure:"inheritsInput" json:"inheritsInput"`
	UsesOutput    bool `mapstructure:"usesOutput" json:"usesOutput"`
}

// RunType classifies how a task's graph nodes and edges are generated.
type RunType string

const (
	// RunTypeDependent emits one node per package, with edges from the
	// same task in each local dependency package.
	RunTypeDependent RunType = "dependent"
	// RunTypeIndependent emits one node per package with no package-dependency edges.
	RunTypeIndependent RunType = "independent"
	// RunTypeTopLevel emits a single node rooted at the workspace root.
	RunTypeTopLevel RunType = "top-level"
)

// CacheConfig is a task's cache behavior, or nil if cache is "none".
type CacheConfig struct {
	EnvInputs                     []string `mapstructure:"envInputs" json:"envInputs"`
	InheritsInputFromDependencies bool     `mapstructure:"inheritsInputFromDependencies" json:"inheritsInputFromDependencies"`
	Inputs                        GlobSpec `mapstructure:"inputs" json:"inputs"`
	Outputs                       GlobSpec `mapstructure:"outputs" json:"outputs"`
	UsesOutputFromDependencies    bool     `mapstructure:"usesOutputFromDependencies" json:"usesOutputFromDependencies"`
}

// TaskConfig is the resolved configuration for one (packageDir, taskName) pair.
type TaskConfig struct {
	RunType     RunType                   `mapstructure:"runType" json:"runType"`
	BaseCommand string                    `mapstructure:"baseCommand" json:"baseCommand"`
	RunsAfter   map[string]RunsAfterEntry `mapstructure:"runsAfter" json:"runsAfter"`
	Parallel    bool                      `mapstructure:"parallel" json:"parallel"`
	// CacheNone is true when the raw config's "cache" field is the
	// literal string "none" rather than an object.
	CacheNone bool         `mapstructure:"-" json:"-"`
	Cache     *CacheConfig `mapstructure:"-" json:"-"`
}

// DefaultTaskConfig returns a TaskConfig with every default applied.
func DefaultTaskConfig() TaskConfig {
	return TaskConfig{
		RunType:   RunTypeDependent,
		RunsAfter: map[string]RunsAfterEntry{},
		Parallel:  true,
		Cache: &CacheConfig{
			InheritsInputFromDependencies: true,
			Inputs:                        DefaultGlobSpec(),
			Outputs:                       DefaultGlobSpec(),
			UsesOutputFromDependencies:    true,
		},
	}
}

// BaseCacheConfig is the workspace-wide cache configuration shared by
// every task: always-included base files and globally watched env vars.
type BaseCacheConfig struct {
	Includes  []string `mapstructure:"includes" json:"includes"`
	Excludes  []string `mapstructure:"excludes" json:"excludes"`
	EnvInputs []string `mapstructure:"envInputs" json:"envInputs"`
}

// DefaultBaseCacheConfig returns the built-in base includes.
func DefaultBaseCacheConfig() BaseCacheConfig {
	return BaseCacheConfig{
		Includes: []string{
			"<rootDir>/{yarn.lock,pnpm-lock.yaml,package-lock.json}",
			"<rootDir>/lazy.config.*",
		},
	}
}

// rawFile is the on-disk shape of a lazy.config.json file.
type rawFile struct {
	BaseCacheConfig *BaseCacheConfig                  `json:"baseCacheConfig"`
	Tasks           map[string]map[string]interface{} `json:"tasks"`
}

// File is one parsed lazy.config.json, before task configs have been
// merged with defaults.
type File struct {
	BaseCacheConfig *BaseCacheConfig
	Tasks           map[string]TaskConfig
}

// FindConfigFile looks for a recognized config file name in dir and
// returns its path, or "" if none is present. Returns a ConfigError if
// more than one recognized name is present.
func FindConfigFile(dir string) (string, error) {
	var found []string
	for _, name := range configFileNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			found = append(found, name)
		}
	}
	switch len(found) {
	case 0:
		return "", nil
	case 1:
		if found[0] != ConfigFileName {
			return "", newConfigError(
				"%s: %s is not supported by this build; only %s (static JSON) is loaded",
				dir, found[0], ConfigFileName)
		}
		return filepath.Join(dir, found[0]), nil
	default:
		return "", newConfigError("%s: multiple config files present (%v); exactly one is allowed per directory", dir, found)
	}
}

// Load reads and parses the config file in dir, if any. A missing file is
// not an error; it returns a zero-value *File with no tasks.
func Load(dir string) (*File, error) {
	path, err := FindConfigFile(dir)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return &File{Tasks: map[string]TaskConfig{}}, nil
	}

	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	var raw rawFile
	if err := json.Unmarshal(bytes, &raw); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}

	file := &File{
		BaseCacheConfig: raw.BaseCacheConfig,
		Tasks:           map[string]TaskConfig{},
	}
	for taskName, rawTask := range raw.Tasks {
		tc, err := decodeTaskConfig(rawTask)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: task %q", path, taskName)
		}
		file.Tasks[taskName] = tc
	}
	return file, nil
}

// decodeTaskConfig merges a raw JSON object for one task over the
// defaults, via mapstructure, and handles the cache: "none" | {...} union.
func decodeTaskConfig(raw map[string]interface{}) (TaskConfig, error) {
	tc := DefaultTaskConfig()

	cacheField, hasCacheField := raw["cache"]
	delete(raw, "cache")
	runsAfterField, hasRunsAfterField := raw["runsAfter"]
	delete(raw, "runsAfter")

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &tc,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return tc, err
	}
	if err := decoder.Decode(raw); err != nil {
		return tc, err
	}

	if hasRunsAfterField {
		rawEntries, ok := runsAfterField.(map[string]interface{})
		if !ok {
			return tc, newConfigError("runsAfter must be an object mapping task names to settings")
		}
		tc.RunsAfter = map[string]RunsAfterEntry{}
		for otherTaskName, rawEntry := range rawEntries {
			entry := RunsAfterEntry{UsesOutput: true}
			entryDecoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
				Result:           &entry,
				WeaklyTypedInput: true,
			})
			if err != nil {
				return tc, err
			}
			if err := entryDecoder.Decode(rawEntry); err != nil {
				return tc, errors.Wrapf(err, "runsAfter %q", otherTaskName)
			}
			tc.RunsAfter[otherTaskName] = entry
		}
	}

	if hasCacheField {
		switch v := cacheField.(type) {
		case string:
			if v != "none" {
				return tc, newConfigError(`cache must be "none" or an object, got string %q`, v)
			}
			tc.CacheNone = true
			tc.Cache = nil
		case map[string]interface{}:
			cc := CacheConfig{
				InheritsInputFromDependencies: true,
				Inputs:                        DefaultGlobSpec(),
				Outputs:                       DefaultGlobSpec(),
				UsesOutputFromDependencies:    true,
			}
			ccDecoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
				Result:           &cc,
				WeaklyTypedInput: true,
			})
			if err != nil {
				return tc, err
			}
			if err := ccDecoder.Decode(v); err != nil {
				return tc, err
			}
			tc.Cache = &cc
		default:
			return tc, newConfigError("cache must be \"none\" or an object")
		}
	}

	return tc, nil
}

// MergeEnvInputs returns the sorted, deduplicated union of base and
// task-level envInputs.
func MergeEnvInputs(base BaseCacheConfig, task *CacheConfig) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(name string) {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	for _, n := range base.EnvInputs {
		add(n)
	}
	if task != nil {
		for _, n := range task.EnvInputs {
			add(n)
		}
	}
	sort.Strings(out)
	return out
}
