// Package expand implements filesystem glob expansion and `~user`
// tilde resolution. Segment matching is delegated to
// github.com/michaelmacinnis/adapted.Match, the same `*`/`?`/`[...]`
// matcher the teacher's own internal/engine/commands/core.go uses for
// its `match` builtin; this package only adds the §4.3 segment-by-
// segment directory walk, dotfile-hiding rule, and result
// deduplication around it.
package expand

import (
	"os"
	"sort"
	"strings"

	"github.com/michaelmacinnis/adapted"
)

// Glob resolves pattern against the filesystem starting at the
// current working directory (or the filesystem root, if pattern is
// absolute). A pattern with no metacharacters is returned as a
// single-element list regardless of whether it exists. A pattern with
// metacharacters but no matches yields an empty list.
func Glob(pattern string) ([]string, error) {
	if pattern == "" {
		return []string{""}, nil
	}

	if !hasMeta(pattern) {
		return []string{pattern}, nil
	}

	absolute := strings.HasPrefix(pattern, "/")

	segments := strings.Split(pattern, "/")

	base := "."
	if absolute {
		base = "/"
		segments = segments[1:]
	}

	results, err := walk([]string{base}, segments)
	if err != nil {
		return nil, err
	}

	return dedupeSorted(results), nil
}

func walk(bases []string, segments []string) ([]string, error) {
	if len(segments) == 0 {
		return bases, nil
	}

	segment := segments[0]
	rest := segments[1:]

	if !hasMeta(segment) {
		next := make([]string, 0, len(bases))
		for _, b := range bases {
			next = append(next, joinSegment(b, segment))
		}

		return walk(next, rest)
	}

	var matches []string

	for _, b := range bases {
		entries, err := listDir(b)
		if err != nil {
			continue
		}

		for _, name := range entries {
			if strings.HasPrefix(name, ".") && !strings.HasPrefix(segment, ".") {
				continue
			}

			ok, err := match(segment, name)
			if err != nil {
				return nil, err
			}

			if ok {
				matches = append(matches, joinSegment(b, name))
			}
		}
	}

	if len(rest) == 0 {
		return matches, nil
	}

	return walk(matches, rest)
}

func joinSegment(base, segment string) string {
	if base == "/" {
		return "/" + segment
	}

	if base == "." {
		return segment
	}

	return base + "/" + segment
}

func listDir(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, err
	}

	sort.Strings(names)

	return names, nil
}

func dedupeSorted(in []string) []string {
	sort.Strings(in)

	out := make([]string, 0, len(in))

	for i, s := range in {
		if i == 0 || s != in[i-1] {
			out = append(out, s)
		}
	}

	return out
}

func hasMeta(path string) bool {
	return strings.ContainsAny(path, `*?[`)
}

// match reports whether name matches a single non-separator path
// segment pattern, per the `*`, `?`, `[...]` grammar spec.md §4.3
// names. No path separators appear within a segment, so adapted's
// whole-path matcher collapses to a plain two-argument call here.
func match(pattern, name string) (bool, error) {
	return adapted.Match(pattern, name)
}
