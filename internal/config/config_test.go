package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}

func TestLoadMissingFile(t *testing.T) {
	f, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, f.BaseCacheConfig)
	assert.Empty(t, f.Tasks)
}

func TestLoadDefaultsApplied(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "lazy.config.json", `{"tasks": {"build": {}}}`)

	f, err := Load(dir)
	require.NoError(t, err)
	tc, ok := f.Tasks["build"]
	require.True(t, ok)
	assert.Equal(t, RunTypeDependent, tc.RunType)
	assert.True(t, tc.Parallel)
	require.NotNil(t, tc.Cache)
	assert.True(t, tc.Cache.InheritsInputFromDependencies)
	assert.True(t, tc.Cache.UsesOutputFromDependencies)
	assert.Equal(t, []string{"**/*"}, tc.Cache.Inputs.Include)
}

func TestLoadFullTaskShape(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "lazy.config.json", `{
		"baseCacheConfig": {"includes": ["<rootDir>/versions.json"], "envInputs": ["NODE_ENV"]},
		"tasks": {
			"build": {
				"runType": "independent",
				"baseCommand": "tsc -b",
				"parallel": false,
				"runsAfter": {"codegen": {"inheritsInput": true}},
				"cache": {
					"envInputs": ["CI"],
					"inputs": {"include": ["src/**"], "exclude": ["src/**/*.test.ts"]},
					"outputs": {"include": ["dist/**"]}
				}
			}
		}
	}`)

	f, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, f.BaseCacheConfig)
	assert.Equal(t, []string{"NODE_ENV"}, f.BaseCacheConfig.EnvInputs)

	tc := f.Tasks["build"]
	assert.Equal(t, RunTypeIndependent, tc.RunType)
	assert.Equal(t, "tsc -b", tc.BaseCommand)
	assert.False(t, tc.Parallel)
	require.NotNil(t, tc.Cache)
	assert.Equal(t, []string{"CI"}, tc.Cache.EnvInputs)
	assert.Equal(t, []string{"src/**"}, tc.Cache.Inputs.Include)
	assert.Equal(t, []string{"dist/**"}, tc.Cache.Outputs.Include)

	entry, ok := tc.RunsAfter["codegen"]
	require.True(t, ok)
	assert.True(t, entry.InheritsInput)
	assert.True(t, entry.UsesOutput, "usesOutput defaults to true when omitted")
}

func TestLoadRunsAfterUsesOutputFalse(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "lazy.config.json", `{"tasks": {"test": {"runsAfter": {"build": {"usesOutput": false}}}}}`)

	f, err := Load(dir)
	require.NoError(t, err)
	entry := f.Tasks["test"].RunsAfter["build"]
	assert.False(t, entry.UsesOutput)
	assert.False(t, entry.InheritsInput, "inheritsInput defaults to false")
}

func TestLoadCacheNone(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "lazy.config.json", `{"tasks": {"dev": {"cache": "none"}}}`)

	f, err := Load(dir)
	require.NoError(t, err)
	tc := f.Tasks["dev"]
	assert.True(t, tc.CacheNone)
	assert.Nil(t, tc.Cache)
}

func TestLoadCacheBadString(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "lazy.config.json", `{"tasks": {"dev": {"cache": "sometimes"}}}`)

	_, err := Load(dir)
	require.Error(t, err)
}

func TestMultipleConfigFilesFatal(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "lazy.config.json", `{}`)
	writeConfig(t, dir, "lazy.config.js", `module.exports = {}`)

	_, err := Load(dir)
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "multiple config files")
}

func TestNonJSONVariantRejected(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "lazy.config.ts", `export default {}`)

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestMergeEnvInputs(t *testing.T) {
	base := BaseCacheConfig{EnvInputs: []string{"NODE_ENV", "CI"}}
	task := &CacheConfig{EnvInputs: []string{"CI", "DEPLOY_TARGET"}}

	assert.Equal(t, []string{"CI", "DEPLOY_TARGET", "NODE_ENV"}, MergeEnvInputs(base, task))
	assert.Equal(t, []string{"CI", "NODE_ENV"}, MergeEnvInputs(base, nil))
}
