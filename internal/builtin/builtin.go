// Package builtin implements the minimal registry of shell builtins
// spec.md §6 treats as an external collaborator (`name → func(argc,
// argv) → exit code`), just enough of a set to exercise the core end
// to end: `cd` (mutates shell state directly, the one operation the
// launcher must run in-process per spec.md §4.4 step 4), `exit`,
// `setopt`, and the job-control surface (`jobs`/`fg`/`wait`) spec.md
// §D supplements from the teacher's `scope0.DefineBuiltin`/
// `DefineMethod` registrations in task.go.
package builtin

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mltnhm/serenity/internal/shellstate"
)

// Func is a builtin: it runs in-process against the given streams and
// reports an exit code. Its shape matches internal/launcher.Builtin
// exactly, so a value of this type converts to launcher.Builtin with a
// plain type conversion (cmd/serenity's convertBuiltins does this);
// this package does not import the launcher.
type Func func(argv []string, stdin, stdout, stderr *os.File) int

// Registry returns every builtin this package provides, bound to the
// given shell state.
func Registry(state *shellstate.T) map[string]Func {
	return map[string]Func{
		"cd":     cd(state),
		"exit":   exit(state),
		"setopt": setopt(state),
		"jobs":   jobs(state),
		"fg":     fg(state),
		"wait":   wait(state),
	}
}

// cd changes the shell's working directory and refreshes the cached
// Cwd used for $PWD and prompt rendering, grounded on task.go's
// `scope0.DefineBuiltin("cd", ...)`.
func cd(s *shellstate.T) Func {
	return func(argv []string, _, _, stderr *os.File) int {
		dir := s.Home

		if len(argv) > 1 {
			dir = argv[1]
		}

		if err := os.Chdir(dir); err != nil {
			fmt.Fprintf(stderr, "cd: %v\n", err)
			return 1
		}

		if wd, err := os.Getwd(); err == nil {
			s.Cwd = wd
		}

		return 0
	}
}

// exit terminates the shell process with the given status (or the
// last evaluated job's status when none is given), grounded on
// task.go's `scope0.DefineMethod("exit", ...)`.
func exit(s *shellstate.T) Func {
	return func(argv []string, _, _, _ *os.File) int {
		code := s.LastCode

		if len(argv) > 1 {
			if n, err := strconv.Atoi(argv[1]); err == nil {
				code = n
			}
		}

		os.Exit(code)

		return code
	}
}

// setopt toggles named shell options (a leading "no" clears it),
// listing the current set when called with no arguments.
func setopt(s *shellstate.T) Func {
	return func(argv []string, _, stdout, _ *os.File) int {
		if len(argv) < 2 {
			for name, on := range s.Options {
				fmt.Fprintf(stdout, "%s %v\n", name, on)
			}

			return 0
		}

		for _, name := range argv[1:] {
			on := true
			if strings.HasPrefix(name, "no") {
				on = false
				name = strings.TrimPrefix(name, "no")
			}

			s.Options[name] = on
		}

		return 0
	}
}

// jobs prints the job table, grounded on internal/system/job's
// Jobs function in the teacher.
func jobs(s *shellstate.T) Func {
	return func(_ []string, _, stdout, _ *os.File) int {
		for _, j := range s.Jobs.List() {
			state := "Running"
			if j.Stopped {
				state = "Stopped"
			}

			fmt.Fprintf(stdout, "[%d]  %-8s %s\n", j.Number, state, j.CmdText)
		}

		return 0
	}
}

// fg resumes job n (or the most recently stopped/backgrounded job
// when n is omitted) in the foreground and blocks on it, grounded on
// internal/system/job's Fg function in the teacher.
func fg(s *shellstate.T) Func {
	return func(argv []string, _, _, stderr *os.File) int {
		n := jobNumber(argv)

		job, ok := s.Jobs.Fg(n)
		if !ok {
			fmt.Fprintln(stderr, "fg: no such job")
			return 1
		}

		code := job.Wait()
		s.LastCode = code

		return code
	}
}

// wait blocks on one or more background jobs (or every currently
// tracked one when none are named), grounded on task.go's
// `scope0.DefineMethod("wait", ...)`. Unlike fg, it never takes the
// terminal or resumes a stopped job.
func wait(s *shellstate.T) Func {
	return func(argv []string, _, _, stderr *os.File) int {
		jobsToWait := s.Jobs.All()

		if len(argv) > 1 {
			jobsToWait = jobsToWait[:0]

			for _, arg := range argv[1:] {
				n := jobNumber([]string{"", arg})

				j, ok := s.Jobs.Lookup(n)
				if !ok {
					fmt.Fprintf(stderr, "wait: no such job: %s\n", arg)
					continue
				}

				jobsToWait = append(jobsToWait, j)
			}
		}

		code := 0
		for _, j := range jobsToWait {
			code = j.Wait()
		}

		s.LastCode = code

		return code
	}
}

func jobNumber(argv []string) int {
	if len(argv) < 2 {
		return 0
	}

	text := strings.TrimPrefix(argv[1], "%")

	n, err := strconv.Atoi(text)
	if err != nil {
		return 0
	}

	return n
}
