// Package inputs implements the input enumerator: given a
// task's configuration, it produces the deterministic, deduplicated,
// sorted list of repo-relative file paths that feed that task's
// manifest.
package inputs

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/karrick/godirwalk"
	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/lazy-build/lazy/internal/config"
	"github.com/lazy-build/lazy/internal/lazypath"
)

// LazyDirName is the on-disk state directory, always excluded from
// package-scoped enumeration.
const LazyDirName = ".lazy"

// Enumerate returns the sorted, deduplicated union of:
//  1. the workspace's base cache includes, minus excludes;
//  2. the package's cache.inputs include/exclude globs, rooted at
//     packageDir, with .lazy always excluded;
//  3. extraFiles supplied by the caller (upstream tasks' output files).
//
// A cache: "none" task has no input set at all, not an empty one; the
// scheduler never calls Enumerate for such a task.
func Enumerate(
	root lazypath.AbsoluteSystemPath,
	packageDir lazypath.AbsoluteSystemPath,
	base config.BaseCacheConfig,
	spec config.GlobSpec,
	extraFiles []lazypath.AnchoredUnixPath,
) ([]lazypath.AnchoredUnixPath, error) {
	seen := map[lazypath.AnchoredUnixPath]bool{}
	var out []lazypath.AnchoredUnixPath
	add := func(p lazypath.AnchoredUnixPath) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	baseFiles, err := baseCacheFiles(root, base)
	if err != nil {
		return nil, err
	}
	for _, f := range baseFiles {
		add(f)
	}

	pkgFiles, err := packageScopedFiles(root, packageDir, spec)
	if err != nil {
		return nil, err
	}
	for _, f := range pkgFiles {
		add(f)
	}

	for _, f := range extraFiles {
		add(f)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ToString() < out[j].ToString() })
	return out, nil
}

// baseCacheFiles expands baseCacheConfig.includes/excludes, with the
// "<rootDir>" literal expanding to the workspace root, against the real
// filesystem rooted at root.
func baseCacheFiles(root lazypath.AbsoluteSystemPath, base config.BaseCacheConfig) ([]lazypath.AnchoredUnixPath, error) {
	includes := base.Includes
	if includes == nil {
		includes = config.DefaultBaseCacheConfig().Includes
	}
	includes = expandRootDir(includes)
	excludes := expandRootDir(base.Excludes)

	return globUnderRoot(root, includes, excludes)
}

// packageScopedFiles expands the package-local include/exclude globs
// rooted at packageDir, always excluding the package's own .lazy tree.
func packageScopedFiles(root, packageDir lazypath.AbsoluteSystemPath, spec config.GlobSpec) ([]lazypath.AnchoredUnixPath, error) {
	include := spec.Include
	if include == nil {
		include = config.DefaultGlobSpec().Include
	}
	exclude := append([]string{}, spec.Exclude...)
	exclude = append(exclude, LazyDirName+"/**", LazyDirName)

	matched, err := matchGlobsUnderDir(packageDir, include, exclude)
	if err != nil {
		return nil, err
	}

	out := make([]lazypath.AnchoredUnixPath, 0, len(matched))
	for _, abs := range matched {
		rel, err := abs.RelativeTo(root)
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, nil
}

func expandRootDir(patterns []string) []string {
	out := make([]string, len(patterns))
	for i, p := range patterns {
		out[i] = strings.ReplaceAll(p, "<rootDir>", ".")
	}
	return out
}

// globUnderRoot matches base-cache patterns directly against root's
// top-level directory entries. Base cache patterns are always
// lockfile/config literals or brace sets at the workspace root, never
// recursive, so a full tree walk isn't needed here the way it is for
// package-scoped "**/*" includes.
func globUnderRoot(root lazypath.AbsoluteSystemPath, includes, excludes []string) ([]lazypath.AnchoredUnixPath, error) {
	entries, err := os.ReadDir(root.ToString())
	if err != nil {
		return nil, err
	}
	var out []lazypath.AnchoredUnixPath
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if matchesAny(e.Name(), excludes) {
			continue
		}
		if !matchesAny(e.Name(), includes) {
			continue
		}
		out = append(out, lazypath.AnchoredUnixPath(e.Name()))
	}
	return out, nil
}

// matchGlobsUnderDir walks dir (skipping it if absent) collecting every
// regular file whose path relative to dir matches any include pattern
// and no exclude pattern.
//
// Dot-prefixed path segments never match a wildcard, only a pattern that
// itself names a dot segment, so a task's own dotfile outputs (and state
// directories like .git) stay out of the default "**/*" input set. Files
// ignored by the directory's .gitignore, if one exists, are skipped too.
func matchGlobsUnderDir(dir lazypath.AbsoluteSystemPath, includes, excludes []string) ([]lazypath.AbsoluteSystemPath, error) {
	if !dir.FileExists() {
		return nil, nil
	}

	includeHidden := globsTargetHidden(includes)

	var ignored *gitignore.GitIgnore
	if ignorePath := dir.Join(".gitignore"); ignorePath.FileExists() {
		ignored, _ = gitignore.CompileIgnoreFile(ignorePath.ToString())
	}

	var out []lazypath.AbsoluteSystemPath
	err := godirwalk.Walk(dir.ToString(), &godirwalk.Options{
		Unsorted: true,
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			rel, err := filepath.Rel(dir.ToString(), osPathname)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if rel == "." {
				return nil
			}

			hidden := !includeHidden && strings.HasPrefix(filepath.Base(osPathname), ".")
			if de.IsDir() {
				if hidden || (ignored != nil && ignored.MatchesPath(rel+"/")) {
					return filepath.SkipDir
				}
				return nil
			}
			if hidden {
				return nil
			}
			if ignored != nil && ignored.MatchesPath(rel) {
				return nil
			}

			if matchesAny(rel, excludes) {
				return nil
			}
			if !matchesAny(rel, includes) {
				return nil
			}
			out = append(out, lazypath.AbsoluteSystemPathFromUpstream(osPathname))
			return nil
		},
		ErrorCallback: func(_ string, err error) godirwalk.ErrorAction {
			if os.IsNotExist(err) || os.IsPermission(err) {
				return godirwalk.SkipNode
			}
			return godirwalk.Halt
		},
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// globsTargetHidden reports whether any include pattern explicitly names
// a dot-prefixed segment (".env", "**/.cache/*"), which opts hidden
// files back into matching.
func globsTargetHidden(patterns []string) bool {
	for _, p := range patterns {
		for _, seg := range strings.Split(filepath.ToSlash(p), "/") {
			if strings.HasPrefix(seg, ".") && seg != "." && seg != ".." {
				return true
			}
		}
	}
	return false
}

func matchesAny(rel string, patterns []string) bool {
	for _, p := range patterns {
		p = strings.TrimPrefix(p, "./")
		ok, err := doublestar.Match(p, rel)
		if err == nil && ok {
			return true
		}
		// Patterns like "{a,b,c}" expand brace sets; doublestar.Match
		// already understands these natively, this branch exists only
		// so a malformed pattern doesn't abort the whole walk.
	}
	return false
}
