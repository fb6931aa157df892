// Package colorcache assigns each task in a run a stable terminal color for
// its log prefix, so a task's output is visually distinguishable across an
// interleaved, concurrent run.
package colorcache

import (
	"sync"

	"github.com/fatih/color"

	"github.com/lazy-build/lazy/internal/util"
)

type colorFn = func(format string, a ...interface{}) string

func terminalColors() []colorFn {
	return []colorFn{color.CyanString, color.MagentaString, color.GreenString, color.YellowString, color.BlueString}
}

// ColorCache hands out a colorFn per util.TaskKey, assigning colors in
// round-robin order the first time each key is seen.
type ColorCache struct {
	mu         sync.Mutex
	index      int
	termColors []colorFn
	cache      map[util.TaskKey]colorFn
}

// New creates an instance of ColorCache with helpers for adding colors to task outputs.
func New() *ColorCache {
	return &ColorCache{
		termColors: terminalColors(),
		cache:      make(map[util.TaskKey]colorFn),
	}
}

func (c *ColorCache) colorForKey(key util.TaskKey) colorFn {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn, ok := c.cache[key]
	if ok {
		return fn
	}
	fn = c.termColors[c.index%len(c.termColors)]
	c.index++
	c.cache[key] = fn
	return fn
}

// PrefixWithColor returns prefix wrapped in the color consistently assigned to key.
func (c *ColorCache) PrefixWithColor(key util.TaskKey, prefix string) string {
	fn := c.colorForKey(key)
	return fn("%s: ", prefix)
}
