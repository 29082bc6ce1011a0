package expand_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/mltnhm/serenity/internal/expand"
)

func chdirTemp(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		_ = os.Chdir(cwd)
	})

	return dir
}

func touch(t *testing.T, paths ...string) {
	t.Helper()

	for _, p := range paths {
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				t.Fatal(err)
			}
		}

		if err := os.WriteFile(p, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestGlobLiteralPatternReturnedAsIs(t *testing.T) {
	chdirTemp(t)

	got, err := expand.Glob("no/meta/here")
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"no/meta/here"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestGlobExpandsStarAndSortsDedupes(t *testing.T) {
	chdirTemp(t)
	touch(t, "b.go", "a.go", "c.txt")

	got, err := expand.Glob("*.go")
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"a.go", "b.go"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestGlobExcludesDotfilesByDefault(t *testing.T) {
	chdirTemp(t)
	touch(t, "a.go", ".hidden.go")

	got, err := expand.Glob("*.go")
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"a.go"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v (dotfiles must be excluded)", got, want)
	}
}

func TestGlobDotPrefixedSegmentMatchesDotfiles(t *testing.T) {
	chdirTemp(t)
	touch(t, ".hidden.go", "a.go")

	got, err := expand.Glob(".*")
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range got {
		if name == "a.go" {
			t.Errorf("'.*' should not match non-dotfile a.go, got %v", got)
		}
	}

	found := false

	for _, name := range got {
		if name == ".hidden.go" {
			found = true
		}
	}

	if !found {
		t.Errorf("'.*' should match .hidden.go, got %v", got)
	}
}

func TestGlobNoMatchesYieldsEmptyList(t *testing.T) {
	chdirTemp(t)

	got, err := expand.Glob("*.nonexistent")
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != 0 {
		t.Errorf("expected empty list for no matches, got %v", got)
	}
}

func TestGlobMultiSegmentWalk(t *testing.T) {
	chdirTemp(t)
	touch(t, "sub/d.go", "sub/e.go", "other/f.go")

	got, err := expand.Glob("sub/*.go")
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"sub/d.go", "sub/e.go"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestGlobAbsolutePattern(t *testing.T) {
	dir := chdirTemp(t)
	touch(t, "x.go")

	got, err := expand.Glob(filepath.Join(dir, "*.go"))
	if err != nil {
		t.Fatal(err)
	}

	want := []string{filepath.Join(dir, "x.go")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestGlobEmptyPattern(t *testing.T) {
	got, err := expand.Glob("")
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(got, []string{""}) {
		t.Errorf("got %v, want ['']", got)
	}
}
