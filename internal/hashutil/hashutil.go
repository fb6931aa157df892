// Package hashutil provides the single hashing primitive every manifest
// entry, env var value, and file's content is reduced through. Content
// identity only needs to survive accidental collisions across a
// monorepo's working set, not a cryptographic adversary, so a fast
// non-cryptographic hash is enough as long as it's wide enough that
// collisions are a non-concern in practice.
//
// cespare/xxhash/v2 only exposes a 64-bit digest, so a 128-bit digest is
// built by running two independently-seeded passes over the same bytes
// and concatenating the results. That keeps everything on the one hash
// implementation used elsewhere in this stack instead of pulling in a
// second hash library just for its width.
package hashutil

import (
	"encoding/hex"
	"hash"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// loSeed and hiSeed salt the two xxhash passes that make up a digest.
// loSeed is xxhash's default seed of 0, which the lo pass gets from
// xxhash.Sum64 and xxhash.New; hiSeed is a nonzero constant with no
// significance beyond differing from it.
const (
	loSeed uint64 = 0
	hiSeed uint64 = 0x9e3779b97f4a7c15
)

// digest128 computes a 128-bit hash of b by running xxhash twice with
// different seeds and concatenating the two 64-bit outputs.
func digest128(b []byte) [16]byte {
	lo := xxhash.Sum64(b)
	hiHasher := xxhash.NewWithSeed(hiSeed)
	_, _ = hiHasher.Write(b)
	hi := hiHasher.Sum64()

	var out [16]byte
	putUint64(out[0:8], lo)
	putUint64(out[8:16], hi)
	return out
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
}

// HashString returns the hex-encoded 128-bit digest of s.
func HashString(s string) string {
	d := digest128([]byte(s))
	return hex.EncodeToString(d[:])
}

// HashBytes returns the hex-encoded 128-bit digest of b.
func HashBytes(b []byte) string {
	d := digest128(b)
	return hex.EncodeToString(d[:])
}

// streamHasher accumulates a 128-bit digest across Write calls without
// buffering the full input in memory, for HashFile on large files.
type streamHasher struct {
	lo hash.Hash64
	hi hash.Hash64
}

func newStreamHasher() *streamHasher {
	return &streamHasher{
		lo: xxhash.New(),
		hi: xxhash.NewWithSeed(hiSeed),
	}
}

func (s *streamHasher) Write(p []byte) (int, error) {
	n, err := s.lo.Write(p)
	if err != nil {
		return n, err
	}
	return s.hi.Write(p)
}

func (s *streamHasher) sum() [16]byte {
	var out [16]byte
	putUint64(out[0:8], s.lo.Sum64())
	putUint64(out[8:16], s.hi.Sum64())
	return out
}

// HashFile streams the file at path through the digest without loading
// it fully into memory, returning its hex-encoded 128-bit hash.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := newStreamHasher()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	d := h.sum()
	return hex.EncodeToString(d[:]), nil
}

// HashReader streams r through the digest, for callers that already have
// an open handle.
func HashReader(r io.Reader) (string, error) {
	h := newStreamHasher()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	d := h.sum()
	return hex.EncodeToString(d[:]), nil
}

// CombineOrdered hashes the concatenation of the given parts, in order.
// Used to build the rolling manifest-wide hash from each entry's
// serialized line without re-reading file contents.
func CombineOrdered(parts ...string) string {
	h := newStreamHasher()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
	}
	out := h.sum()
	return hex.EncodeToString(out[:])
}
