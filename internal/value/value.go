// Package value defines the tagged-variant Value type that flows
// through the evaluator: scalars, lists, globs, tildes, variable
// references, and the opaque Command/CommandSequence/Job variants
// that the launcher and job controller consume.
package value

import (
	"os"
	"os/user"
	"strconv"
	"strings"

	"github.com/mltnhm/serenity/internal/command"
)

// T is the interface every Value variant satisfies. ListProjection is
// the canonical conversion to an ordered sequence of strings; env and
// locals supply the lookup context SimpleVariable and SpecialVariable
// need without importing the shell-state package (which would create
// an import cycle).
type T interface {
	// ListProjection resolves the value to its list of strings given
	// the current local-variable table, the exit code of the last
	// evaluated job, and the current process id.
	ListProjection(lookup Lookup) ([]string, error)
}

// Lookup resolves the dynamic context a Value may need to project
// itself to a list: local variables (shadowing the environment), the
// last exit code (for $?), and the process id (for $$).
type Lookup interface {
	Local(name string) (T, bool)
	Environ(name string) (string, bool)
	LastStatus() int
	Pid() int
}

// String is a scalar. When SplitOn is non-nil, ListProjection splits
// Text on the recorded separator according to KeepEmpty; otherwise it
// resolves to a single-element list.
type String struct {
	Text      string
	SplitOn   *string
	KeepEmpty bool
}

// NewString returns a scalar String value that never splits.
func NewString(text string) *String {
	return &String{Text: text}
}

// ListProjection implements T.
func (s *String) ListProjection(Lookup) ([]string, error) {
	if s.SplitOn == nil {
		return []string{s.Text}, nil
	}

	return splitKeeping(s.Text, *s.SplitOn, s.KeepEmpty), nil
}

func splitKeeping(text, sep string, keepEmpty bool) []string {
	if sep == "" {
		return []string{text}
	}

	parts := strings.Split(text, sep)
	if keepEmpty {
		return parts
	}

	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}

// List resolves to a flattened, one-level list of its elements'
// projections.
type List struct {
	Elements []T
}

// NewList returns a List value wrapping the given elements.
func NewList(elements ...T) *List {
	return &List{Elements: elements}
}

// ListProjection implements T.
func (l *List) ListProjection(lookup Lookup) ([]string, error) {
	out := []string{}

	for _, e := range l.Elements {
		part, err := e.ListProjection(lookup)
		if err != nil {
			return nil, err
		}

		out = append(out, part...)
	}

	return out, nil
}

// Glob resolves against the filesystem via the supplied Expander.
type Glob struct {
	Pattern string

	// Expand performs the filesystem walk; it is supplied by
	// internal/expand at construction time so this package does not
	// need to depend on it directly.
	Expand func(pattern string) ([]string, error)
}

// ListProjection implements T.
func (g *Glob) ListProjection(Lookup) ([]string, error) {
	if g.Expand == nil {
		return []string{g.Pattern}, nil
	}

	return g.Expand(g.Pattern)
}

// Tilde resolves to a single path: the named user's home directory,
// or the current user's when User is empty.
type Tilde struct {
	User string

	// Resolve performs the passwd lookup; supplied by internal/expand.
	Resolve func(user string) (string, error)
}

// ListProjection implements T.
func (t *Tilde) ListProjection(Lookup) ([]string, error) {
	if t.Resolve == nil {
		home, err := defaultHome(t.User)
		if err != nil {
			return nil, err
		}

		return []string{home}, nil
	}

	home, err := t.Resolve(t.User)
	if err != nil {
		return nil, err
	}

	return []string{home}, nil
}

func defaultHome(name string) (string, error) {
	if name == "" {
		if home := os.Getenv("HOME"); home != "" {
			return home, nil
		}

		u, err := user.Current()
		if err != nil {
			return "", err
		}

		return u.HomeDir, nil
	}

	u, err := user.Lookup(name)
	if err != nil {
		return "~" + name, nil //nolint:nilerr // unknown user: return the literal text
	}

	return u.HomeDir, nil
}

// SimpleVariable resolves Name: local variables shadow the
// environment; environment values are split on spaces; a miss
// resolves to the empty string.
type SimpleVariable struct {
	Name string
}

// ListProjection implements T.
func (v *SimpleVariable) ListProjection(lookup Lookup) ([]string, error) {
	if val, ok := lookup.Local(v.Name); ok {
		return val.ListProjection(lookup)
	}

	if env, ok := lookup.Environ(v.Name); ok {
		return strings.Fields(env), nil
	}

	return []string{""}, nil
}

// SpecialVariable resolves a single-character special: '?' is the
// last exit code, '$' is the process id, anything else is empty.
type SpecialVariable struct {
	Char byte
}

// ListProjection implements T.
func (v *SpecialVariable) ListProjection(lookup Lookup) ([]string, error) {
	switch v.Char {
	case '?':
		return []string{strconv.Itoa(lookup.LastStatus())}, nil
	case '$':
		return []string{strconv.Itoa(lookup.Pid())}, nil
	default:
		return []string{""}, nil
	}
}

// Command wraps a single resolved unit of work. It is opaque to list
// projection.
type Command struct {
	Record *command.T
}

// ListProjection implements T. Commands and CommandSequences do not
// participate in list expansion.
func (*Command) ListProjection(Lookup) ([]string, error) {
	return nil, nil
}

// CommandSequence wraps an ordered pipeline or list of units. It is
// opaque to list projection.
type CommandSequence struct {
	Records []*command.T
}

// ListProjection implements T.
func (*CommandSequence) ListProjection(Lookup) ([]string, error) {
	return nil, nil
}

// Job references a launched child process. Handle is nil when launch
// failed.
type Job struct {
	Handle JobHandle
}

// JobHandle is the minimal job-controller surface the Value model
// needs; *internal/jobctl.T satisfies it.
type JobHandle interface {
	Wait() int
	Pid() int
}

// ListProjection implements T. A Job is opaque to list projection.
func (*Job) ListProjection(Lookup) ([]string, error) {
	return nil, nil
}
