// Package shellstate owns the process-wide shell state spec.md §3
// names (local variables, aliases, the job table, working directory,
// options) and wires it, together with the alias/expand/launcher/
// jobctl collaborators, into an internal/eval.Context.
package shellstate

import (
	"bytes"
	"os"
	"os/user"

	"github.com/michaelmacinnis/adapted"

	"github.com/mltnhm/serenity/internal/alias"
	"github.com/mltnhm/serenity/internal/ast"
	"github.com/mltnhm/serenity/internal/command"
	"github.com/mltnhm/serenity/internal/eval"
	"github.com/mltnhm/serenity/internal/expand"
	"github.com/mltnhm/serenity/internal/jobctl"
	"github.com/mltnhm/serenity/internal/launcher"
	"github.com/mltnhm/serenity/internal/value"
)

// T is the shell's global, single-threaded (main-goroutine-only)
// state: the local variable table, aliases, the job controller, and
// the options that tune evaluator behavior.
type T struct {
	Locals  map[string]value.T
	Aliases map[string]string
	Options map[string]bool

	Cwd      string
	Hostname string
	Username string
	Home     string
	Uid      int

	LastCode int

	Jobs     *jobctl.Controller
	Launcher *launcher.Launcher

	// Reparse turns alias-substitution text back into an AST node;
	// supplied by the caller (cmd/serenity) since it is the parser's
	// entry point and internal/shellstate must not depend on
	// internal/parse to avoid a needless coupling between process
	// state and the concrete grammar.
	Reparse func(text string) (ast.Node, error)
}

// New builds shell state seeded from the real process environment.
func New() *T {
	cwd, _ := os.Getwd()
	host, _ := os.Hostname()

	username := os.Getenv("USER")
	home := os.Getenv("HOME")
	uid := os.Getuid()

	if u, err := user.Current(); err == nil {
		if username == "" {
			username = u.Username
		}

		if home == "" {
			home = u.HomeDir
		}
	}

	return &T{
		Locals:   map[string]value.T{},
		Aliases:  map[string]string{},
		Options:  map[string]bool{},
		Cwd:      cwd,
		Hostname: host,
		Username: username,
		Home:     home,
		Uid:      uid,
	}
}

// Local implements value.Lookup.
func (s *T) Local(name string) (value.T, bool) {
	v, ok := s.Locals[name]
	return v, ok
}

// Environ implements value.Lookup.
func (s *T) Environ(name string) (string, bool) {
	if name == "PWD" {
		return s.Cwd, true
	}

	return os.LookupEnv(name)
}

// LastStatus implements value.Lookup.
func (s *T) LastStatus() int { return s.LastCode }

// Pid implements value.Lookup.
func (s *T) Pid() int { return os.Getpid() }

// IFS returns the current IFS local variable's text, falling back to
// a single newline (spec.md §9, open question (c)'s default).
func (s *T) IFS() string {
	v, ok := s.Locals["IFS"]
	if !ok {
		return "\n"
	}

	parts, err := v.ListProjection(s)
	if err != nil || len(parts) == 0 {
		return "\n"
	}

	return parts[0]
}

// Context builds an eval.Context wired to this state and its
// collaborators: alias expansion re-parses through Reparse and
// re-evaluates through the returned Context itself (a closure over
// evalCtx, set after construction so the two can refer to each
// other).
func (s *T) Context() *eval.Context {
	evalCtx := &eval.Context{
		Locals:       s.Locals,
		Getenv:       s.Environ,
		LastExitCode: func() int { return s.LastCode },
		ProcessID:    os.Getpid,
		ExpandGlob:   expand.Glob,
		ExpandTilde:  expand.Tilde,
		IFS:          s.IFS,
		KeepEmptySegments: func() bool {
			return s.Options["inline_exec_keep_empty_segments"]
		},
	}

	evalCtx.ExpandAliases = func(seq command.Sequence) (command.Sequence, error) {
		return alias.Expand(seq, s.Aliases, s.Reparse, func(n ast.Node) (value.T, error) {
			return eval.Evaluate(n, evalCtx)
		})
	}

	evalCtx.Launch = func(seq command.Sequence) (value.JobHandle, error) {
		return s.launch(seq, false)
	}

	evalCtx.Capture = func(seq command.Sequence) (string, error) {
		return s.capture(seq)
	}

	evalCtx.BlockOnJob = func(job value.JobHandle) int {
		if job == nil {
			s.LastCode = 1

			return 1
		}

		code := job.Wait()
		s.LastCode = code

		return code
	}

	return evalCtx
}

func (s *T) launch(seq command.Sequence, background bool) (value.JobHandle, error) {
	if background || (seq.Last() != nil && !seq.Last().ShouldWait) {
		background = true
	}

	res, err := s.Launcher.Launch(seq, background, cmdText(seq))
	if err != nil {
		return nil, err
	}

	if res.HasCode {
		s.LastCode = res.Code

		return doneHandle{res.Code}, nil
	}

	return res.Job, nil
}

func (s *T) capture(seq command.Sequence) (string, error) {
	res, read, err := s.Launcher.Capture(seq, cmdText(seq))
	if err != nil {
		if read != nil {
			read.Close() //nolint:errcheck
		}

		return "", err
	}

	var out string
	if read != nil {
		out = drain(read)
		read.Close() //nolint:errcheck
	}

	switch {
	case res.HasJob:
		s.LastCode = res.Job.Wait()
	case res.HasCode:
		s.LastCode = res.Code
	}

	return out, nil
}

// drain reads r to EOF, looping rather than stopping after the first
// buffer-full (spec.md §9 open question (a)), and returns everything
// read. IFS splitting happens once, afterward, on the whole result
// (open question (c)).
func drain(r *os.File) string {
	var buf bytes.Buffer

	chunk := make([]byte, 4096)

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}

		if err != nil {
			break
		}
	}

	return buf.String()
}

// cmdText reconstructs a displayable command line for the `jobs`
// builtin and background-completion notices. Each argument is passed
// through adapted.Quote, the same quoting the teacher applies when
// rendering a cell back to text (pkg/task/types.go's String method),
// so an argument containing spaces or shell metacharacters still
// round-trips as one word in the display.
func cmdText(seq command.Sequence) string {
	if len(seq) == 0 {
		return ""
	}

	text := ""

	for i, rec := range seq {
		if i > 0 {
			text += " | "
		}

		for j, a := range rec.Argv {
			if j > 0 {
				text += " "
			}

			text += adapted.CanonicalString(a)
		}
	}

	return text
}

type doneHandle struct{ code int }

func (d doneHandle) Wait() int { return d.code }
func (d doneHandle) Pid() int  { return -1 }
