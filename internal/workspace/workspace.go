// Package workspace discovers the repo root, reads the package manager's
// workspace manifest, and enumerates the member packages and their
// in-workspace dependency edges. This is collaborator plumbing around
// the cacheable core, not part of the fingerprint-correctness surface
// itself.
package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/lazy-build/lazy/internal/lazypath"
	"github.com/lazy-build/lazy/internal/util"
)

// Manager identifies which package manager's lockfile anchors the
// workspace root.
type Manager string

const (
	ManagerNPM  Manager = "npm"
	ManagerYarn Manager = "yarn"
	ManagerPnpm Manager = "pnpm"
)

var lockfileNames = map[string]Manager{
	"yarn.lock":         ManagerYarn,
	"pnpm-lock.yaml":    ManagerPnpm,
	"package-lock.json": ManagerNPM,
}

// PackageJSON is the subset of a package.json this runner cares about.
type PackageJSON struct {
	Name                 string            `json:"name"`
	Scripts              map[string]string `json:"scripts"`
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
	Workspaces           Workspaces        `json:"workspaces"`
}

// Workspaces accepts either the yarn/npm `["a", "b"]` shape or the
// `{ "packages": ["a", "b"] }` shape.
type Workspaces []string

func (w *Workspaces) UnmarshalJSON(data []byte) error {
	var alt struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(data, &alt); err == nil && alt.Packages != nil {
		*w = alt.Packages
		return nil
	}
	var plain []string
	if err := json.Unmarshal(data, &plain); err != nil {
		return err
	}
	*w = plain
	return nil
}

// pnpmWorkspaceFile is the shape of pnpm-workspace.yaml.
type pnpmWorkspaceFile struct {
	Packages []string `yaml:"packages"`
}

// Package is one workspace member: its name, absolute directory, parsed
// manifest, and the names of the other workspace packages it locally
// depends on.
type Package struct {
	Name      string
	Dir       lazypath.AbsoluteSystemPath
	JSON      *PackageJSON
	LocalDeps []string // ascending, in-workspace names only
}

// RelDir returns this package's directory relative to root, POSIX-style.
func (p *Package) RelDir(root lazypath.AbsoluteSystemPath) (lazypath.AnchoredUnixPath, error) {
	return p.Dir.RelativeTo(root)
}

// Workspace is the discovered repo: its root, package manager, and every
// member package keyed by name.
type Workspace struct {
	Root    lazypath.AbsoluteSystemPath
	Manager Manager
	// Packages is keyed by package name.
	Packages map[string]*Package
	// SortedNames is Packages' keys, ascending, for deterministic iteration.
	SortedNames []string
}

// FindRoot walks upward from startDir looking for a directory containing
// both a package.json and one of the recognized lockfiles.
func FindRoot(startDir string) (lazypath.AbsoluteSystemPath, Manager, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", "", err
	}
	for {
		for name, mgr := range lockfileNames {
			if fileExists(filepath.Join(dir, name)) {
				if fileExists(filepath.Join(dir, "package.json")) {
					return lazypath.AbsoluteSystemPathFromUpstream(dir), mgr, nil
				}
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", "", errors.New("could not find workspace root: no directory with a package.json and a recognized lockfile (yarn.lock, pnpm-lock.yaml, package-lock.json)")
		}
		dir = parent
	}
}

// Discover reads the workspace manifest at root and enumerates every
// member package, building in-workspace dependency edges.
func Discover(root lazypath.AbsoluteSystemPath, mgr Manager) (*Workspace, error) {
	globs, err := workspaceGlobs(root, mgr)
	if err != nil {
		return nil, err
	}

	dirs, err := expandGlobs(root, globs)
	if err != nil {
		return nil, err
	}

	ws := &Workspace{Root: root, Manager: mgr, Packages: map[string]*Package{}}
	for _, dir := range dirs {
		pkgJSONPath := dir.Join("package.json")
		if !pkgJSONPath.FileExists() {
			continue
		}
		bytes, err := os.ReadFile(pkgJSONPath.ToString())
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", pkgJSONPath)
		}
		var pj PackageJSON
		if err := json.Unmarshal(bytes, &pj); err != nil {
			return nil, errors.Wrapf(err, "parsing %s", pkgJSONPath)
		}
		if pj.Name == "" {
			continue
		}
		ws.Packages[pj.Name] = &Package{Name: pj.Name, Dir: dir, JSON: &pj}
	}

	for _, pkg := range ws.Packages {
		pkg.LocalDeps = resolveLocalDeps(pkg.JSON, ws.Packages)
	}

	ws.SortedNames = make([]string, 0, len(ws.Packages))
	for name := range ws.Packages {
		ws.SortedNames = append(ws.SortedNames, name)
	}
	sort.Strings(ws.SortedNames)

	return ws, nil
}

func resolveLocalDeps(pj *PackageJSON, all map[string]*Package) []string {
	seen := util.NewSet()
	var out []string
	consider := func(deps map[string]string) {
		for name := range deps {
			if _, ok := all[name]; ok && !seen.Includes(name) {
				seen.Add(name)
				out = append(out, name)
			}
		}
	}
	consider(pj.Dependencies)
	consider(pj.DevDependencies)
	consider(pj.OptionalDependencies)
	consider(pj.PeerDependencies)
	sort.Strings(out)
	return out
}

func workspaceGlobs(root lazypath.AbsoluteSystemPath, mgr Manager) ([]string, error) {
	if mgr == ManagerPnpm {
		path := root.Join("pnpm-workspace.yaml")
		if path.FileExists() {
			bytes, err := os.ReadFile(path.ToString())
			if err != nil {
				return nil, err
			}
			var f pnpmWorkspaceFile
			if err := yaml.Unmarshal(bytes, &f); err != nil {
				return nil, errors.Wrapf(err, "parsing %s", path)
			}
			return f.Packages, nil
		}
	}

	rootPkgPath := root.Join("package.json")
	bytes, err := os.ReadFile(rootPkgPath.ToString())
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", rootPkgPath)
	}
	var pj PackageJSON
	if err := json.Unmarshal(bytes, &pj); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", rootPkgPath)
	}
	if len(pj.Workspaces) == 0 {
		return nil, fmt.Errorf("%s: no \"workspaces\" field and no pnpm-workspace.yaml found", rootPkgPath)
	}
	return pj.Workspaces, nil
}

// expandGlobs resolves workspace glob patterns (e.g. "packages/*",
// "apps/**") against root into a sorted, deduplicated list of absolute
// directories.
func expandGlobs(root lazypath.AbsoluteSystemPath, globs []string) ([]lazypath.AbsoluteSystemPath, error) {
	seen := map[string]bool{}
	var out []lazypath.AbsoluteSystemPath

	fsys := os.DirFS(root.ToString())
	for _, g := range globs {
		pattern := filepath.ToSlash(g)
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid workspace glob %q", g)
		}
		for _, m := range matches {
			abs := root.Join(filepath.FromSlash(m))
			info, err := abs.Lstat()
			if err != nil || !info.IsDir() {
				continue
			}
			key := abs.ToString()
			if !seen[key] {
				seen[key] = true
				out = append(out, abs)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ToString() < out[j].ToString() })
	return out, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
