// Package manifest implements the line-oriented, diffable fingerprint
// format every scheduled task's resolved inputs are recorded in: the
// codec that reads, writes and diffs a manifest, and the streaming
// builder that assembles a new one entry-by-entry.
package manifest

import (
	"fmt"
	"sort"
)

// EntryType is one of the four kinds of manifest line. Two distinct
// upstream types exist so a diff can tell "an upstream task's inputs
// changed" apart from "a local-dependency package's inputs changed",
// even though both rank at the same position relative to env vars and
// files.
type EntryType string

const (
	EntryUpstreamTaskInputs    EntryType = "upstream task inputs"
	EntryUpstreamPackageInputs EntryType = "upstream package inputs"
	EntryEnvVar                EntryType = "env var"
	EntryFile                  EntryType = "file"
)

// typeRank fixes the canonical primary sort order of entry types.
var typeRank = map[EntryType]int{
	EntryUpstreamTaskInputs:    0,
	EntryUpstreamPackageInputs: 1,
	EntryEnvVar:                2,
	EntryFile:                  3,
}

// Entry is one manifest line: a (type, id) pair fingerprinted to a hash,
// with optional opaque metadata (a file's mtime in milliseconds).
type Entry struct {
	Type     EntryType
	ID       string
	Hash     string
	Metadata string
}

// Less reports whether e sorts strictly before other under the
// canonical (typeRank, id) order.
func (e Entry) Less(other Entry) bool {
	ra, rb := typeRank[e.Type], typeRank[other.Type]
	if ra != rb {
		return ra < rb
	}
	return e.ID < other.ID
}

// Manifest is an ordered, canonical sequence of entries, as read from or
// about to be written to disk.
type Manifest struct {
	Entries []Entry
}

// Get looks up the entry for (typ, id), if present.
func (m *Manifest) Get(typ EntryType, id string) (Entry, bool) {
	for _, e := range m.Entries {
		if e.Type == typ && e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// IsSorted reports whether the manifest's entries are in canonical order,
// used by tests and by the builder's internal ordering assertion.
func (m *Manifest) IsSorted() bool {
	return sort.SliceIsSorted(m.Entries, func(i, j int) bool {
		return m.Entries[i].Less(m.Entries[j])
	})
}

// DiffLine is one line of a human-readable manifest diff.
type DiffLine struct {
	Marker string // "+", "-", or "±"
	Type   EntryType
	ID     string
}

func (d DiffLine) String() string {
	var verb string
	switch d.Marker {
	case "+":
		verb = "added"
	case "-":
		verb = "removed"
	default:
		verb = "changed"
	}
	return fmt.Sprintf("%s %s %s %s", d.Marker, verb, d.Type, d.ID)
}

// Diff compares two canonically ordered manifests and returns the list of
// added, removed and changed entries, in canonical (typeRank, id) order.
// The result is empty iff prev and next have identical (type, id, hash)
// entry sets.
func Diff(prev, next *Manifest) []DiffLine {
	var diffs []DiffLine

	prevByKey := map[[2]string]Entry{}
	for _, e := range prev.Entries {
		prevByKey[[2]string{string(e.Type), e.ID}] = e
	}
	nextByKey := map[[2]string]Entry{}
	for _, e := range next.Entries {
		nextByKey[[2]string{string(e.Type), e.ID}] = e
	}

	merged := append(append([]Entry{}, prev.Entries...), next.Entries...)
	sort.Slice(merged, func(i, j int) bool { return merged[i].Less(merged[j]) })

	seen := map[[2]string]bool{}
	for _, e := range merged {
		key := [2]string{string(e.Type), e.ID}
		if seen[key] {
			continue
		}
		seen[key] = true

		pe, inPrev := prevByKey[key]
		ne, inNext := nextByKey[key]
		switch {
		case !inPrev && inNext:
			diffs = append(diffs, DiffLine{Marker: "+", Type: ne.Type, ID: ne.ID})
		case inPrev && !inNext:
			diffs = append(diffs, DiffLine{Marker: "-", Type: pe.Type, ID: pe.ID})
		case inPrev && inNext && pe.Hash != ne.Hash:
			diffs = append(diffs, DiffLine{Marker: "±", Type: ne.Type, ID: ne.ID})
		}
	}
	return diffs
}

// identityLine is the serialized form of an entry that participates in
// the aggregate hash: type, id and content hash. The metadata field is
// deliberately left out — an mtime is a rehash-avoidance hint, not
// fingerprint material, and folding it in would flip the aggregate for
// a touched-but-unchanged file while the diff (which compares content
// hashes) stays empty.
func identityLine(e Entry) string {
	return fmt.Sprintf("%s\t%s\t%s\n", e.Type, e.ID, e.Hash)
}

// AggregateHash computes the manifest-wide aggregate hash: the hash of
// the concatenation of its entries' serialized identity lines in
// canonical order. Two manifests agree here iff they hold the same
// (type, id, hash) sets — a renamed file with unchanged content still
// changes the aggregate, because the id is part of every line.
func AggregateHash(m *Manifest, combine func(lines ...string) string) string {
	lines := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		lines = append(lines, identityLine(e))
	}
	return combine(lines...)
}
