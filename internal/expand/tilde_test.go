package expand_test

import (
	"os"
	"testing"

	"github.com/mltnhm/serenity/internal/expand"
)

func TestTildeEmptyUsesHomeEnv(t *testing.T) {
	old, had := os.LookupEnv("HOME")

	defer func() {
		if had {
			os.Setenv("HOME", old)
		} else {
			os.Unsetenv("HOME")
		}
	}()

	os.Setenv("HOME", "/home/fixture")

	got, err := expand.Tilde("")
	if err != nil {
		t.Fatal(err)
	}

	if got != "/home/fixture" {
		t.Errorf("Tilde(\"\") = %q, want /home/fixture", got)
	}
}

func TestTildeUnknownUserReturnsLiteralText(t *testing.T) {
	got, err := expand.Tilde("no-such-user-xyz123")
	if err != nil {
		t.Fatal(err)
	}

	if got != "~no-such-user-xyz123" {
		t.Errorf("Tilde(unknown) = %q, want literal ~name text", got)
	}
}

func TestTildeAndRestSplitsUserFromPath(t *testing.T) {
	tests := []struct {
		in       string
		wantUser string
		wantRest string
	}{
		{"~", "", ""},
		{"~alice", "alice", ""},
		{"~alice/docs", "alice", "/docs"},
		{"~/docs", "", "/docs"},
	}

	for _, tc := range tests {
		user, rest := expand.TildeAndRest(tc.in)
		if user != tc.wantUser || rest != tc.wantRest {
			t.Errorf("TildeAndRest(%q) = (%q, %q), want (%q, %q)",
				tc.in, user, rest, tc.wantUser, tc.wantRest)
		}
	}
}
