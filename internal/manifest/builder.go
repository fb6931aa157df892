package manifest

import (
	"fmt"
	"os"
	"path/filepath"
)

// HashCombiner hashes the ordered concatenation of a manifest's
// serialized entry lines into one digest. Satisfied by
// hashutil.CombineOrdered; taken as a function value here so this
// package doesn't import hashutil and create a cycle with any future
// hashutil consumer of manifest types.
type HashCombiner func(lines ...string) string

// Builder assembles a new manifest entry-by-entry in canonical order,
// reusing lines from the previous on-disk manifest when a file's
// metadata proves its content is unchanged. One Builder is used by a
// single logical caller per task; it is not safe for concurrent use.
type Builder struct {
	prev    *Manifest
	next    Manifest
	combine HashCombiner

	manifestPath string // final path, e.g. .lazy/manifests/<slug>
	diffPath     string // e.g. .lazy/diffs/<slug>

	lastErr error
}

// NewBuilder starts a build for one task. prev is the previously written
// manifest (possibly empty, if this is the task's first run).
func NewBuilder(prev *Manifest, manifestPath, diffPath string, combine HashCombiner) *Builder {
	return &Builder{prev: prev, manifestPath: manifestPath, diffPath: diffPath, combine: combine}
}

// Update appends one entry. Entries must be supplied in canonical order;
// violating that is a programming error in the caller (the scheduler),
// recorded and surfaced from End.
func (b *Builder) Update(typ EntryType, id, hash, metadata string) {
	if b.lastErr != nil {
		return
	}
	e := Entry{Type: typ, ID: id, Hash: hash, Metadata: metadata}
	if n := len(b.next.Entries); n > 0 && !b.next.Entries[n-1].Less(e) {
		b.lastErr = fmt.Errorf("manifest builder: entry %s %s supplied out of canonical order after %s %s",
			typ, id, b.next.Entries[n-1].Type, b.next.Entries[n-1].ID)
		return
	}
	b.next.Entries = append(b.next.Entries, e)
}

// CopyLineOverIfMetaIsSame looks up (typ, id) in the previous manifest;
// if present and its metadata equals the supplied metadata, it copies the
// previous entry's hash forward via Update and returns true. Otherwise it
// returns false, leaving the caller to compute the real hash and call
// Update itself. This is the fast path that skips re-hashing a file whose
// mtime hasn't moved.
func (b *Builder) CopyLineOverIfMetaIsSame(typ EntryType, id, metadata string) bool {
	if b.prev == nil {
		return false
	}
	prevEntry, ok := b.prev.Get(typ, id)
	if !ok || prevEntry.Metadata != metadata || metadata == "" {
		return false
	}
	b.Update(typ, id, prevEntry.Hash, metadata)
	return true
}

// Result is the outcome of a finished build.
type Result struct {
	DidChange bool
	Hash      string
	Diff      []DiffLine
}

// End finalizes the build: writes the `.next` manifest, computes and
// writes the diff against the previous manifest, and atomically renames
// `.next` to the final manifest path. DidChange is false iff the
// aggregate hash equals the previous manifest's aggregate hash.
func (b *Builder) End() (Result, error) {
	result, err := b.EndDry()
	if err != nil {
		return Result{}, err
	}

	nextPath := b.manifestPath + ".next"
	if err := os.MkdirAll(filepath.Dir(b.manifestPath), 0o775); err != nil {
		return Result{}, err
	}
	if err := writeManifestFile(nextPath, &b.next); err != nil {
		return Result{}, err
	}
	if err := writeDiffFile(b.diffPath, result.Diff); err != nil {
		return Result{}, err
	}
	if err := os.Rename(nextPath, b.manifestPath); err != nil {
		return Result{}, err
	}

	return result, nil
}

// EndDry computes the build's outcome without writing the manifest or
// diff, leaving the previous on-disk state untouched. Used by dry runs,
// which must not make a future real run look already-seen.
func (b *Builder) EndDry() (Result, error) {
	if b.lastErr != nil {
		return Result{}, b.lastErr
	}

	newHash := AggregateHash(&b.next, b.combine)
	prevHash := ""
	if b.prev != nil && len(b.prev.Entries) > 0 {
		prevHash = AggregateHash(b.prev, b.combine)
	}
	didChange := newHash != prevHash || (b.prev == nil)

	return Result{DidChange: didChange, Hash: newHash, Diff: Diff(orEmpty(b.prev), &b.next)}, nil
}

// DiscardAfterFailure removes the manifest End already wrote and
// promoted. A failed task's inputs are not remembered: the next run
// finds no manifest and re-attempts the task unconditionally,
// regardless of whether inputs changed further.
func (b *Builder) DiscardAfterFailure() error {
	err := os.Remove(b.manifestPath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func orEmpty(m *Manifest) *Manifest {
	if m == nil {
		return &Manifest{}
	}
	return m
}

func writeManifestFile(path string, m *Manifest) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteTo(f, m)
}

func writeDiffFile(path string, lines []DiffLine) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o775); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, l := range lines {
		if _, err := f.WriteString(l.String() + "\n"); err != nil {
			return err
		}
	}
	return nil
}
