package hashutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashStringDeterministic(t *testing.T) {
	a := HashString("hello world")
	b := HashString("hello world")
	assert.Equal(t, a, b)
	assert.Len(t, a, 32, "128-bit digest hex-encodes to 32 characters")
}

func TestHashStringDiffers(t *testing.T) {
	a := HashString("hello")
	b := HashString("hellp")
	assert.NotEqual(t, a, b)
}

func TestHashFileMatchesHashBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contents.txt")
	contents := []byte("the quick brown fox jumps over the lazy dog")
	require.NoError(t, os.WriteFile(path, contents, 0o644))

	fromFile, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, HashBytes(contents), fromFile)
}

func TestCombineOrderedIsOrderSensitive(t *testing.T) {
	a := CombineOrdered("aaa", "bbb")
	b := CombineOrdered("bbb", "aaa")
	assert.NotEqual(t, a, b)
}
