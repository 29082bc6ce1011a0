package prompt_test

import (
	"strings"
	"testing"

	"github.com/mltnhm/serenity/internal/prompt"
)

func TestRenderDefaultFormat(t *testing.T) {
	info := prompt.Info{
		Username: "alice",
		Hostname: "box",
		Home:     "/home/alice",
		Cwd:      "/home/alice",
		IsRoot:   false,
	}

	got := prompt.Render(prompt.Default, info)
	want := "alice@box ~ $ "

	if got != want {
		t.Errorf("Render(Default) = %q, want %q", got, want)
	}
}

func TestRenderRootUsesHashPrompt(t *testing.T) {
	info := prompt.Info{Username: "root", Hostname: "box", Home: "/root", Cwd: "/root", IsRoot: true}

	got := prompt.Render(`\p`, info)
	if got != "#" {
		t.Errorf("Render(\\p) for root = %q, want %q", got, "#")
	}
}

func TestRenderWorkingDirectoryTildeSubstitution(t *testing.T) {
	info := prompt.Info{Home: "/home/alice", Cwd: "/home/alice/projects/foo"}

	got := prompt.Render(`\w`, info)
	if got != "~/projects/foo" {
		t.Errorf("Render(\\w) = %q, want %q", got, "~/projects/foo")
	}
}

func TestRenderWorkingDirectoryOutsideHomeIsUnchanged(t *testing.T) {
	info := prompt.Info{Home: "/home/alice", Cwd: "/var/log"}

	got := prompt.Render(`\w`, info)
	if got != "/var/log" {
		t.Errorf("Render(\\w) = %q, want %q", got, "/var/log")
	}
}

func TestRenderWorkingDirectoryNoHomeConfigured(t *testing.T) {
	info := prompt.Info{Cwd: "/var/log"}

	got := prompt.Render(`\w`, info)
	if got != "/var/log" {
		t.Errorf("Render(\\w) = %q, want %q", got, "/var/log")
	}
}

func TestRenderEscapeSequences(t *testing.T) {
	info := prompt.Info{}

	if got := prompt.Render(`\a`, info); got != "\a" {
		t.Errorf("Render(\\a) = %q, want bell byte", got)
	}

	if got := prompt.Render(`\e`, info); got != "\x1b" {
		t.Errorf("Render(\\e) = %q, want escape byte", got)
	}

	if got := prompt.Render(`\X`, info); !strings.HasPrefix(got, "\x1b]0;") {
		t.Errorf("Render(\\X) = %q, want terminal-title prefix", got)
	}
}

func TestRenderUnknownEscapeIsLiteral(t *testing.T) {
	got := prompt.Render(`\z`, prompt.Info{})
	if got != `\z` {
		t.Errorf("Render(\\z) = %q, want literal %q", got, `\z`)
	}
}

func TestRenderTrailingBackslashIsLiteral(t *testing.T) {
	got := prompt.Render(`abc\`, prompt.Info{})
	if got != `abc\` {
		t.Errorf("Render with trailing backslash = %q, want %q", got, `abc\`)
	}
}
