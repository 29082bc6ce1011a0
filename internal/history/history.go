// Package history persists the shell's line history to $HOME/.history
// (mode 0600, one entry per line), per spec.md §6. Grounded on the
// teacher's internal/system/history Load/Save shape: a callback over
// an already-opened file, rather than this package owning the
// in-memory history list itself (that belongs to internal/ui's liner
// instance).
package history

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
)

// Path returns the history file's path under home.
func Path(home string) string {
	return filepath.Join(home, ".history")
}

// Load opens the history file (creating it if absent) and hands it to
// read, which is expected to consume it line by line.
func Load(home string, read func(io.Reader) (int, error)) error {
	f, err := os.OpenFile(Path(home), os.O_RDONLY|os.O_CREATE, 0o600)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	_, err = read(f)

	return err
}

// Save truncates the history file and hands it to write.
func Save(home string, write func(io.Writer) (int, error)) error {
	f, err := os.OpenFile(Path(home), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	_, err = write(f)

	return err
}

// ReadLines returns every line in r. Its signature differs from Load's
// read callback, so a caller passes it to Load inside a wrapper.
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	return lines, scanner.Err()
}

// WriteLines writes each of lines to w, one per line. Its signature
// differs from Save's write callback, so a caller passes it to Save
// inside a wrapper.
func WriteLines(w io.Writer, lines []string) (int, error) {
	written := 0

	for _, line := range lines {
		n, err := io.WriteString(w, line+"\n")
		written += n

		if err != nil {
			return written, err
		}
	}

	return written, nil
}
