package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripAnsi(t *testing.T) {
	assert.Equal(t, "bold red", StripAnsi("\x1b[1m\x1b[31mbold red\x1b[0m"))
	assert.Equal(t, "plain", StripAnsi("plain"))
}

func TestAnsiScrubberReportsFullLength(t *testing.T) {
	var buf bytes.Buffer
	w := &ansiScrubber{out: &buf}

	input := []byte("\x1b[32mgreen\x1b[0m\n")
	n, err := w.Write(input)
	require.NoError(t, err)
	assert.Equal(t, len(input), n)
	assert.Equal(t, "green\n", buf.String())
}

func TestPrefixedWriterPrefixesEveryLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewPrefixedWriter(&buf, "build::pkg: ")

	_, err := w.Write([]byte("first\nsec"))
	require.NoError(t, err)
	_, err = w.Write([]byte("ond\n"))
	require.NoError(t, err)

	assert.Equal(t, "build::pkg: first\nbuild::pkg: second\n", buf.String())
}

func TestPrefixedWriterFlushTerminatesPartialLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewPrefixedWriter(&buf, "> ")

	_, err := w.Write([]byte("no newline"))
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	assert.Equal(t, "> no newline\n", buf.String())

	// Nothing buffered, nothing written.
	require.NoError(t, w.Flush())
	assert.Equal(t, "> no newline\n", buf.String())
}
