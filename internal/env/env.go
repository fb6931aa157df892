// Package env selects the environment variables a task declares as
// fingerprint inputs. An envInputs list mixes literal names with glob
// patterns ("CI", "DEPLOY_*", "!DEPLOY_SECRET"): literals are always
// selected, even when unset, so that setting a previously unset variable
// still changes the fingerprint; patterns select whichever variables are
// actually present; "!"-prefixed patterns exclude, and exclusions win
// over every inclusion.
package env

import (
	"os"
	"sort"
	"strings"

	"github.com/lazy-build/lazy/internal/util/filter"
)

// Map holds environment variable names and their values.
type Map map[string]string

// FromOS captures the current process environment as a Map.
func FromOS() Map {
	return fromPairs(os.Environ())
}

func fromPairs(pairs []string) Map {
	m := Map{}
	for _, pair := range pairs {
		if i := strings.Index(pair, "="); i >= 0 {
			m[pair[:i]] = pair[i+1:]
		}
	}
	return m
}

// Names returns the map's keys in ascending order.
func (m Map) Names() []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func hasMeta(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

// Select resolves an envInputs list against m. The result maps each
// selected name to its value; a literal name that is unset in m maps to
// "".
func (m Map) Select(patterns []string) (Map, error) {
	var includes, excludes, literals []string
	for _, p := range patterns {
		switch {
		case strings.HasPrefix(p, "!"):
			excludes = append(excludes, p[1:])
		case strings.HasPrefix(p, `\!`):
			literals = append(literals, p[1:])
		case hasMeta(p):
			includes = append(includes, p)
		default:
			literals = append(literals, p)
		}
	}

	out := Map{}
	for _, name := range literals {
		out[name] = m[name]
	}

	if len(includes) > 0 {
		f, err := filter.Compile(includes)
		if err != nil {
			return nil, err
		}
		for name, value := range m {
			if f.Match(name) {
				out[name] = value
			}
		}
	}

	if len(excludes) > 0 {
		f, err := filter.Compile(excludes)
		if err != nil {
			return nil, err
		}
		for name := range out {
			if f.Match(name) {
				delete(out, name)
			}
		}
	}

	return out, nil
}
