// Package graphviz renders a resolved task graph as Graphviz DOT, for the
// `lazy run --graph` flag — a read-only view of what would run, with no
// tasks actually spawned.
package graphviz

import (
	"os"

	"github.com/pyr-sh/dag"

	"github.com/lazy-build/lazy/internal/core"
)

// DotString returns the Graphviz DOT representation of g's resolved edges.
func DotString(g *core.Graph) string {
	return string(g.ToDag().Dot(&dag.DotOpts{
		Verbose:    true,
		DrawCycles: true,
	}))
}

// WriteDotFile writes g's DOT representation to path.
func WriteDotFile(g *core.Graph, path string) error {
	return os.WriteFile(path, []byte(DotString(g)), 0o644)
}
