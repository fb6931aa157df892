package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazy-build/lazy/internal/config"
	"github.com/lazy-build/lazy/internal/lazypath"
	"github.com/lazy-build/lazy/internal/util"
	"github.com/lazy-build/lazy/internal/workspace"
)

// twoPackageWorkspace builds the graph fixture used throughout: core
// depends on utils. The directories don't need to exist for graph
// construction.
func twoPackageWorkspace(root string) *workspace.Workspace {
	rootPath := lazypath.AbsoluteSystemPathFromUpstream(root)
	return &workspace.Workspace{
		Root:    rootPath,
		Manager: workspace.ManagerNPM,
		Packages: map[string]*workspace.Package{
			"utils": {
				Name: "utils",
				Dir:  rootPath.Join("packages", "utils"),
				JSON: &workspace.PackageJSON{Name: "utils"},
			},
			"core": {
				Name:      "core",
				Dir:       rootPath.Join("packages", "core"),
				JSON:      &workspace.PackageJSON{Name: "core"},
				LocalDeps: []string{"utils"},
			},
		},
		SortedNames: []string{"core", "utils"},
	}
}

func lookupWith(taskConfigs map[string]config.TaskConfig) configLookup {
	return func(pkgName, taskName string) config.TaskConfig {
		if tc, ok := taskConfigs[taskName]; ok {
			return tc
		}
		return config.DefaultTaskConfig()
	}
}

func TestBuildDependentEdges(t *testing.T) {
	ws := twoPackageWorkspace("/repo")
	g, err := Build(ws, []RequestedTask{{TaskName: "build"}}, lookupWith(nil))
	require.NoError(t, err)

	require.Len(t, g.AllTasks, 2)
	utilsKey := util.NewTaskKey("build", "packages/utils")
	coreKey := util.NewTaskKey("build", "packages/core")

	assert.Equal(t, []util.TaskKey{utilsKey, coreKey}, g.SortedTaskKeys)
	assert.Equal(t, []util.TaskKey{utilsKey}, g.AllTasks[coreKey].UpstreamKeys)
	assert.Empty(t, g.AllTasks[utilsKey].UpstreamKeys)
}

func TestBuildIndependentHasNoPackageEdges(t *testing.T) {
	ws := twoPackageWorkspace("/repo")
	tc := config.DefaultTaskConfig()
	tc.RunType = config.RunTypeIndependent
	g, err := Build(ws, []RequestedTask{{TaskName: "lint"}}, lookupWith(map[string]config.TaskConfig{"lint": tc}))
	require.NoError(t, err)

	require.Len(t, g.AllTasks, 2)
	for _, task := range g.AllTasks {
		assert.Empty(t, task.UpstreamKeys)
	}
}

func TestBuildTopLevelEmitsSingleRootNode(t *testing.T) {
	ws := twoPackageWorkspace("/repo")
	tc := config.DefaultTaskConfig()
	tc.RunType = config.RunTypeTopLevel
	g, err := Build(ws, []RequestedTask{{TaskName: "deploy"}}, lookupWith(map[string]config.TaskConfig{"deploy": tc}))
	require.NoError(t, err)

	require.Len(t, g.AllTasks, 1)
	rootKey := util.NewTaskKey("deploy", "")
	task := g.AllTasks[rootKey]
	require.NotNil(t, task)
	assert.True(t, task.IsRoot)
}

func TestBuildFilterPaths(t *testing.T) {
	ws := twoPackageWorkspace("/repo")

	g, err := Build(ws, []RequestedTask{{TaskName: "build", FilterPaths: []string{"packages/utils"}}}, lookupWith(nil))
	require.NoError(t, err)
	require.Len(t, g.AllTasks, 1)
	assert.Contains(t, g.AllTasks, util.NewTaskKey("build", "packages/utils"))

	// A parent directory filter matches everything beneath it.
	g, err = Build(ws, []RequestedTask{{TaskName: "build", FilterPaths: []string{"packages"}}}, lookupWith(nil))
	require.NoError(t, err)
	assert.Len(t, g.AllTasks, 2)
}

func TestBuildRunsAfterEdges(t *testing.T) {
	ws := twoPackageWorkspace("/repo")
	testCfg := config.DefaultTaskConfig()
	testCfg.RunsAfter = map[string]config.RunsAfterEntry{"build": {UsesOutput: true}}

	g, err := Build(ws, []RequestedTask{
		{TaskName: "build"},
		{TaskName: "test"},
	}, lookupWith(map[string]config.TaskConfig{"test": testCfg}))
	require.NoError(t, err)

	require.Len(t, g.AllTasks, 4)
	utilsTest := g.AllTasks[util.NewTaskKey("test", "packages/utils")]
	require.NotNil(t, utilsTest)
	assert.Contains(t, utilsTest.UpstreamKeys, util.NewTaskKey("build", "packages/utils"))
}

func TestBuildRunsAfterTopLevelEdge(t *testing.T) {
	ws := twoPackageWorkspace("/repo")
	codegen := config.DefaultTaskConfig()
	codegen.RunType = config.RunTypeTopLevel
	buildCfg := config.DefaultTaskConfig()
	buildCfg.RunsAfter = map[string]config.RunsAfterEntry{"codegen": {UsesOutput: true}}

	g, err := Build(ws, []RequestedTask{
		{TaskName: "codegen"},
		{TaskName: "build"},
	}, lookupWith(map[string]config.TaskConfig{"codegen": codegen, "build": buildCfg}))
	require.NoError(t, err)

	rootKey := util.NewTaskKey("codegen", "")
	for _, pkgDir := range []string{"packages/utils", "packages/core"} {
		task := g.AllTasks[util.NewTaskKey("build", pkgDir)]
		require.NotNil(t, task)
		assert.Contains(t, task.UpstreamKeys, rootKey)
	}
	assert.Equal(t, rootKey, g.SortedTaskKeys[0], "the top-level task sorts before everything that waits on it")
}

func TestBuildCycleIsFatal(t *testing.T) {
	ws := twoPackageWorkspace("/repo")
	a := config.DefaultTaskConfig()
	a.RunsAfter = map[string]config.RunsAfterEntry{"b": {UsesOutput: true}}
	b := config.DefaultTaskConfig()
	b.RunsAfter = map[string]config.RunsAfterEntry{"a": {UsesOutput: true}}

	_, err := Build(ws, []RequestedTask{
		{TaskName: "a"},
		{TaskName: "b"},
	}, lookupWith(map[string]config.TaskConfig{"a": a, "b": b}))
	require.Error(t, err)

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.NotEmpty(t, cycleErr.Keys)
}

func TestTopoSortDeterministic(t *testing.T) {
	ws := twoPackageWorkspace("/repo")
	var first []util.TaskKey
	for i := 0; i < 10; i++ {
		g, err := Build(ws, []RequestedTask{{TaskName: "build"}}, lookupWith(nil))
		require.NoError(t, err)
		if first == nil {
			first = g.SortedTaskKeys
			continue
		}
		assert.Equal(t, first, g.SortedTaskKeys)
	}
}

func TestMatchesFilter(t *testing.T) {
	assert.True(t, matchesFilter("packages/utils", nil))
	assert.True(t, matchesFilter("packages/utils", []string{"packages/utils"}))
	assert.True(t, matchesFilter("packages/utils", []string{"packages"}))
	assert.True(t, matchesFilter("packages", []string{"packages/utils"}))
	assert.False(t, matchesFilter("packages/utils", []string{"apps"}))
	assert.False(t, matchesFilter("packages/utils-extra", []string{"packages/utils"}))
}
