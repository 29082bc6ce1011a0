// Package command defines the Command record: a fully-resolved unit
// of work ready to be handed to the pipeline launcher, plus the
// join_commands composition rule the evaluator uses to fuse pipeline
// stages and sequences together.
package command

import "github.com/mltnhm/serenity/internal/redirect"

// T is a single resolved unit of work.
type T struct {
	// Argv is the ordered argument list; it may be empty, in which
	// case the unit carries only redirections (applied in-process).
	Argv []string

	// Redirections are applied, in order, before Argv is exec'd.
	Redirections []redirect.T

	// ShouldWait is true unless this unit is a non-terminal pipeline
	// stage or has been explicitly backgrounded.
	ShouldWait bool

	// IsPipeSource is true when this unit writes into a pipe whose
	// reader is a later unit of the same pipeline.
	IsPipeSource bool

	// ShouldNotifyIfInBackground is true when a backgrounded job
	// built from this unit should print a completion notice.
	ShouldNotifyIfInBackground bool
}

// New returns a Command record with the default scheduling flags: it
// waits, is not a pipe source, and does not notify in the background.
func New(argv []string) *T {
	return &T{Argv: argv, ShouldWait: true}
}

// Sequence is an ordered pipeline or list of Command records.
type Sequence []*T

// JoinCommands fuses the last record of a with the first record of b:
// argv and redirections are concatenated, and the scheduling flags
// combine per spec.md's join_commands contract. The records before a's
// last and after b's first are left untouched; the returned
// sequence is a.len-1 (a's prefix) + 1 (the fused record) + b.len-1
// (b's suffix).
func JoinCommands(a, b Sequence) Sequence {
	if len(a) == 0 {
		return append(Sequence{}, b...)
	}

	if len(b) == 0 {
		return append(Sequence{}, a...)
	}

	left := a[len(a)-1]
	right := b[0]

	fused := &T{
		Argv:         append(append([]string{}, left.Argv...), right.Argv...),
		Redirections: append(append([]redirect.T{}, left.Redirections...), right.Redirections...),
		ShouldWait:   left.ShouldWait && right.ShouldWait,
		IsPipeSource: right.IsPipeSource,
		ShouldNotifyIfInBackground: right.ShouldWait &&
			left.ShouldNotifyIfInBackground,
	}

	out := make(Sequence, 0, len(a)+len(b)-1)
	out = append(out, a[:len(a)-1]...)
	out = append(out, fused)
	out = append(out, b[1:]...)

	return out
}

// Last returns the final record of the sequence, or nil if empty.
func (s Sequence) Last() *T {
	if len(s) == 0 {
		return nil
	}

	return s[len(s)-1]
}

// First returns the first record of the sequence, or nil if empty.
func (s Sequence) First() *T {
	if len(s) == 0 {
		return nil
	}

	return s[0]
}

// Empty reports whether the sequence has no records, or consists of a
// single record with empty argv and no redirections (the "fully empty
// command" spec.md's Sequence evaluation rule skips).
func (s Sequence) Empty() bool {
	if len(s) == 0 {
		return true
	}

	if len(s) != 1 {
		return false
	}

	r := s[0]

	return len(r.Argv) == 0 && len(r.Redirections) == 0
}
