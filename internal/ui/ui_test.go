package ui_test

import (
	"testing"

	"github.com/mltnhm/serenity/internal/ui"
)

func TestStylizeAccumulatesAndStylizedDrains(t *testing.T) {
	l := ui.New()
	defer l.Close() //nolint:errcheck

	if got := l.Stylized(); len(got) != 0 {
		t.Fatalf("expected no recorded styles yet, got %v", got)
	}

	l.Stylize(ui.Range{Start: 0, End: 3}, ui.Style{Foreground: "red"})
	l.Stylize(ui.Range{Start: 3, End: 6}, ui.Style{Bold: true})

	got := l.Stylized()
	if len(got) != 2 {
		t.Fatalf("expected 2 recorded styles, got %d", len(got))
	}

	if got[0].Range != (ui.Range{Start: 0, End: 3}) || got[0].Style.Foreground != "red" {
		t.Errorf("unexpected first style: %+v", got[0])
	}

	if got[1].Range != (ui.Range{Start: 3, End: 6}) || !got[1].Style.Bold {
		t.Errorf("unexpected second style: %+v", got[1])
	}

	// Stylized drains the buffer.
	if again := l.Stylized(); len(again) != 0 {
		t.Errorf("expected Stylized to drain, got %v", again)
	}
}
