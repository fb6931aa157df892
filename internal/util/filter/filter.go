// Copyright (c) 2015-2020 InfluxData Inc. MIT License (MIT)
// https://github.com/influxdata/telegraf

// Package filter compiles a list of name patterns into a single matcher.
// Plain names compile to set lookups; anything containing glob
// metacharacters compiles to a gobwas/glob pattern.
package filter

import (
	"strings"

	"github.com/gobwas/glob"
)

// Filter matches a candidate string against a compiled pattern list.
type Filter interface {
	Match(string) bool
}

// Compile builds a Filter for the given patterns. An empty list compiles
// to nil: no filter at all, which callers must treat as match-nothing or
// match-everything as their context requires.
//
//	f, _ := Compile([]string{"cpu", "mem", "net*"})
//	f.Match("cpu")     // true
//	f.Match("network") // true
//	f.Match("memory")  // false
func Compile(patterns []string) (Filter, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	for _, p := range patterns {
		if hasMeta(p) {
			if len(patterns) == 1 {
				return glob.Compile(patterns[0])
			}
			return glob.Compile("{" + strings.Join(patterns, ",") + "}")
		}
	}
	return compileExact(patterns), nil
}

// hasMeta reports whether s contains any glob metacharacters.
func hasMeta(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

type exactOne struct {
	s string
}

func (f *exactOne) Match(s string) bool {
	return f.s == s
}

type exactSet struct {
	m map[string]struct{}
}

func (f *exactSet) Match(s string) bool {
	_, ok := f.m[s]
	return ok
}

func compileExact(patterns []string) Filter {
	if len(patterns) == 1 {
		return &exactOne{s: patterns[0]}
	}
	out := exactSet{m: make(map[string]struct{}, len(patterns))}
	for _, p := range patterns {
		out.m[p] = struct{}{}
	}
	return &out
}
