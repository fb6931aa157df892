package manifest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Read parses a manifest file at path. A missing file is not an error; it
// returns an empty manifest, so a task's first run starts from an empty
// previous state.
func Read(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{}, nil
		}
		return nil, err
	}
	defer f.Close()
	return ReadFrom(f)
}

// ReadFrom parses a manifest from an already-open reader.
func ReadFrom(r io.Reader) (*Manifest, error) {
	m := &Manifest{}
	scanner := bufio.NewScanner(r)
	// Manifest lines can be long for file paths with many segments; grow
	// the buffer well past bufio's 64KiB default just in case.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		entry, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("manifest line %d: %w", lineNo, err)
		}
		m.Entries = append(m.Entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

func parseLine(line string) (Entry, error) {
	parts := strings.Split(line, "\t")
	if len(parts) < 3 || len(parts) > 4 {
		return Entry{}, fmt.Errorf("expected 3 or 4 tab-separated fields, got %d", len(parts))
	}
	e := Entry{
		Type: EntryType(parts[0]),
		ID:   parts[1],
		Hash: parts[2],
	}
	if len(parts) == 4 {
		e.Metadata = parts[3]
	}
	return e, nil
}

// serializeLine renders one entry in the canonical line format:
// "{type}\t{id}\t{hash}[\t{metadata}]\n".
func serializeLine(e Entry) string {
	if e.Metadata == "" {
		return fmt.Sprintf("%s\t%s\t%s\n", e.Type, e.ID, e.Hash)
	}
	return fmt.Sprintf("%s\t%s\t%s\t%s\n", e.Type, e.ID, e.Hash, e.Metadata)
}

// WriteTo streams a manifest's entries, which must already be in
// canonical order, to w.
func WriteTo(w io.Writer, m *Manifest) error {
	for _, e := range m.Entries {
		if _, err := io.WriteString(w, serializeLine(e)); err != nil {
			return err
		}
	}
	return nil
}
