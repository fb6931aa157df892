package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazy-build/lazy/internal/lazypath"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, contents := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o775))
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	}
}

func npmWorkspace(t *testing.T) string {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"package.json":               `{"name": "repo", "workspaces": ["packages/*"]}`,
		"package-lock.json":          `{}`,
		"packages/utils/package.json": `{"name": "utils", "scripts": {"build": "tsc"}}`,
		"packages/core/package.json":  `{"name": "core", "dependencies": {"utils": "*", "react": "^18.0.0"}}`,
	})
	return root
}

func TestFindRootWalksUpward(t *testing.T) {
	root := npmWorkspace(t)
	nested := filepath.Join(root, "packages", "core")

	found, mgr, err := FindRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, found.ToString())
	assert.Equal(t, ManagerNPM, mgr)
}

func TestFindRootFailsOutsideWorkspace(t *testing.T) {
	_, _, err := FindRoot(t.TempDir())
	require.Error(t, err)
}

func TestDiscoverNpmWorkspaces(t *testing.T) {
	root := npmWorkspace(t)

	ws, err := Discover(lazypath.AbsoluteSystemPathFromUpstream(root), ManagerNPM)
	require.NoError(t, err)

	assert.Equal(t, []string{"core", "utils"}, ws.SortedNames)
	core := ws.Packages["core"]
	require.NotNil(t, core)
	assert.Equal(t, []string{"utils"}, core.LocalDeps, "out-of-workspace deps are ignored")
	assert.Equal(t, "tsc", ws.Packages["utils"].JSON.Scripts["build"])

	rel, err := core.RelDir(ws.Root)
	require.NoError(t, err)
	assert.Equal(t, "packages/core", rel.ToString())
}

func TestDiscoverPnpmWorkspaceFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"package.json":              `{"name": "repo"}`,
		"pnpm-lock.yaml":            ``,
		"pnpm-workspace.yaml":       "packages:\n  - \"apps/*\"\n",
		"apps/web/package.json":     `{"name": "web"}`,
		"apps/not-a-pkg/readme.txt": `no manifest here`,
	})

	ws, err := Discover(lazypath.AbsoluteSystemPathFromUpstream(root), ManagerPnpm)
	require.NoError(t, err)
	assert.Equal(t, []string{"web"}, ws.SortedNames)
}

func TestDiscoverWorkspacesPackagesShape(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"package.json":            `{"name": "repo", "workspaces": {"packages": ["libs/*"]}}`,
		"yarn.lock":               ``,
		"libs/logging/package.json": `{"name": "logging"}`,
	})

	ws, err := Discover(lazypath.AbsoluteSystemPathFromUpstream(root), ManagerYarn)
	require.NoError(t, err)
	assert.Equal(t, []string{"logging"}, ws.SortedNames)
}

func TestDiscoverNoWorkspaceDeclaration(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"package.json":      `{"name": "repo"}`,
		"package-lock.json": `{}`,
	})

	_, err := Discover(lazypath.AbsoluteSystemPathFromUpstream(root), ManagerNPM)
	require.Error(t, err)
}

func TestDevAndPeerDepsCountAsLocalDeps(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"package.json":                `{"name": "repo", "workspaces": ["packages/*"]}`,
		"package-lock.json":           `{}`,
		"packages/a/package.json":     `{"name": "a"}`,
		"packages/b/package.json":     `{"name": "b", "devDependencies": {"a": "*"}}`,
		"packages/c/package.json":     `{"name": "c", "peerDependencies": {"a": "*"}, "dependencies": {"b": "*"}}`,
	})

	ws, err := Discover(lazypath.AbsoluteSystemPathFromUpstream(root), ManagerNPM)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ws.Packages["b"].LocalDeps)
	assert.Equal(t, []string{"a", "b"}, ws.Packages["c"].LocalDeps)
}
