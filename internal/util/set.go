package util

import (
	mapset "github.com/deckarep/golang-set"
)

// Set is a generic string set backed by golang-set, used for small
// unordered collections (such as the already-seen names in workspace
// dependency resolution) where
// callers don't need deterministic iteration order.
type Set struct {
	inner mapset.Set
}

// NewSet returns an empty Set.
func NewSet() Set {
	return Set{inner: mapset.NewSet()}
}

// SetFromStrings builds a Set containing every string in sl.
func SetFromStrings(sl []string) Set {
	s := NewSet()
	for _, item := range sl {
		s.Add(item)
	}
	return s
}

// Add inserts v into the set.
func (s Set) Add(v string) {
	s.inner.Add(v)
}

// Delete removes v from the set.
func (s Set) Delete(v string) {
	s.inner.Remove(v)
}

// Includes reports whether v is a member of the set.
func (s Set) Includes(v string) bool {
	return s.inner.Contains(v)
}

// Len is the number of items in the set.
func (s Set) Len() int {
	return s.inner.Cardinality()
}

// List returns the set's elements in unspecified order.
func (s Set) List() []string {
	items := s.inner.ToSlice()
	out := make([]string, 0, len(items))
	for _, v := range items {
		out = append(out, v.(string))
	}
	return out
}

// Union returns the union of s and other.
func (s Set) Union(other Set) Set {
	return Set{inner: s.inner.Union(other.inner)}
}

// Intersection returns the set intersection with other.
func (s Set) Intersection(other Set) Set {
	return Set{inner: s.inner.Intersect(other.inner)}
}

// Difference returns the elements s has that other doesn't.
func (s Set) Difference(other Set) Set {
	return Set{inner: s.inner.Difference(other.inner)}
}

// Copy returns a shallow copy of the set.
func (s Set) Copy() Set {
	return Set{inner: s.inner.Clone()}
}
