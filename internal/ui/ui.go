// Package ui adapts github.com/peterh/liner to the line-editor
// contract spec.md §6 pins down for the core's external collaborator:
// a `get_line(prompt) → Result`, a `suggest(offset, count)`
// completion affordance, and a `stylize(range, style)` callback.
// Grounded on the teacher's common.go Liner wrapper and the
// cli.Prompt/cli.SetWordCompleter calls in internal/ui/ui.go.
package ui

import (
	"errors"
	"io"

	"github.com/peterh/liner"
)

// ErrAborted is returned by GetLine when the user cancels the current
// line (Ctrl-C), matching liner.ErrPromptAborted.
var ErrAborted = errors.New("ui: prompt aborted")

// Style is the subset of styling spec.md §6 names a line editor may
// apply to a stretch of already-read input: foreground color, bold,
// a hyperlink target, or underline.
type Style struct {
	Foreground      string
	Bold            bool
	Underline       bool
	HyperlinkTarget string
}

// Range is a half-open span of byte offsets within the current line.
type Range struct {
	Start, End int
}

// Completer answers a completion request for the text preceding and
// following the cursor, returning the unchanged head, the candidate
// completions, and the unchanged tail — liner's WordCompleter shape.
type Completer func(line string, pos int) (head string, completions []string, tail string)

// Line adapts a liner.State to spec.md §6's line-editor contract.
type Line struct {
	state   *liner.State
	stylize []styled
}

type styled struct {
	Range
	Style
}

// New constructs a Line, enabling Ctrl-C to abort the current prompt
// rather than killing the process, matching the teacher's
// `cli.SetCtrlCAborts(true)`.
func New() *Line {
	l := &Line{state: liner.NewLiner()}
	l.state.SetCtrlCAborts(true)

	return l
}

// Close releases the underlying terminal mode.
func (l *Line) Close() error {
	return l.state.Close()
}

// GetLine reads one line, appending it to in-memory history on
// success. It returns ErrAborted when the user cancels the prompt
// (Ctrl-C) rather than propagating liner's own sentinel, so callers
// don't need to import liner themselves.
func (l *Line) GetLine(prompt string) (string, error) {
	line, err := l.state.Prompt(prompt)

	switch {
	case err == nil:
		l.state.AppendHistory(line)
		return line, nil
	case errors.Is(err, liner.ErrPromptAborted):
		return "", ErrAborted
	default:
		return "", err
	}
}

// Suggest registers fn as the completion callback for Tab/word
// completion, satisfying §6's `suggest(offset, count)` affordance
// (offset/count here are expressed as the line text and cursor
// position liner already tracks, rather than a separate index pair).
func (l *Line) Suggest(fn Completer) {
	l.state.SetWordCompleter(func(line string, pos int) (string, []string, string) {
		return fn(line, pos)
	})
}

// Stylize records a style request for the given byte range of the
// current line. liner has no hook for re-coloring already-submitted
// text, so this simply accumulates requests for a caller (or test)
// that wants to inspect what the evaluator asked to highlight; it is
// the minimal implementation of §6's stylize callback this core
// actually needs to drive.
func (l *Line) Stylize(r Range, s Style) {
	l.stylize = append(l.stylize, styled{r, s})
}

// Stylized returns every Stylize call recorded since the last call to
// Stylized, for tests.
func (l *Line) Stylized() []styled {
	out := l.stylize
	l.stylize = nil

	return out
}

// LoadHistory populates in-memory history from r.
func (l *Line) LoadHistory(r io.Reader) (int, error) {
	return l.state.ReadHistory(r)
}

// SaveHistory writes in-memory history to w.
func (l *Line) SaveHistory(w io.Writer) (int, error) {
	return l.state.WriteHistory(w)
}
