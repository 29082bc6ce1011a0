// Command serenity is a POSIX-style interactive shell: a thin REPL
// driving the expression evaluator and pipeline launcher defined in
// internal/eval, internal/launcher, and internal/jobctl. The
// following commands behave as expected:
//
//	date
//	echo a b | wc -l
//	who >user.names
//	cc *.c &
//	mkdir junk && cd junk
//	rm -r junk || echo 'rm failed!'
//
// Grounded on the teacher's main.go doc comment and
// internal/system/options.Parse's docopt usage string.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/docopt/docopt-go"
	"github.com/mattn/go-isatty"

	"github.com/mltnhm/serenity/internal/ast"
	"github.com/mltnhm/serenity/internal/builtin"
	"github.com/mltnhm/serenity/internal/eval"
	"github.com/mltnhm/serenity/internal/history"
	"github.com/mltnhm/serenity/internal/jobctl"
	"github.com/mltnhm/serenity/internal/launcher"
	"github.com/mltnhm/serenity/internal/parse"
	"github.com/mltnhm/serenity/internal/prompt"
	"github.com/mltnhm/serenity/internal/shellstate"
	"github.com/mltnhm/serenity/internal/ui"
	"github.com/mltnhm/serenity/internal/value"
)

const usage = `serenity

Usage:
  serenity [-m] SCRIPT [ARGUMENTS...]
  serenity [-m] -c COMMAND [NAME [ARGUMENTS...]]
  serenity [-im]
  serenity -h

Arguments:
  ARGUMENTS  Accepted; not exposed as positional parameters.
  SCRIPT     Path to a serenity script.
  NAME       Accepted; $0 is not set.

Options:
  -c, --command=COMMAND  Run the specified command.
  -m, --monitor          Invert job control mode.
  -i, --interactive      Invert interactive mode.
  -h, --help             Display this help.

If serenity's stdin is a TTY, and serenity was invoked with neither SCRIPT
nor -c, interactive and job control features are enabled. Otherwise,
these features are disabled.
`

func main() {
	opts, err := docopt.ParseDoc(usage)
	if err != nil {
		panic(err.Error())
	}

	command, _ := opts.String("--command")
	script, _ := opts.String("SCRIPT")

	interactive := command == "" && script == "" && isatty.IsTerminal(os.Stdin.Fd())

	invertInteractive, _ := opts.Bool("--interactive")
	interactive = interactive != invertInteractive

	invertMonitor, _ := opts.Bool("--monitor")
	monitoring := interactive != invertMonitor

	state := shellstate.New()
	state.Reparse = parse.Parse
	state.Jobs = jobctl.NewController(monitoring, os.Stderr)
	state.Launcher = &launcher.Launcher{
		Jobs:       state.Jobs,
		Monitoring: monitoring,
		Builtins:   convertBuiltins(builtin.Registry(state)),
	}

	if monitoring {
		if err := jobctl.BecomeForegroundGroup(); err != nil {
			fmt.Fprintf(os.Stderr, "serenity: %v\n", err)
		}
	}

	switch {
	case script != "":
		runScript(state, script)
	case command != "":
		runLine(state, command)
	default:
		runREPL(state, interactive)
	}

	state.Jobs.Teardown()

	os.Exit(state.LastCode)
}

func convertBuiltins(reg map[string]builtin.Func) map[string]launcher.Builtin {
	out := make(map[string]launcher.Builtin, len(reg))
	for name, fn := range reg {
		out[name] = launcher.Builtin(fn)
	}

	return out
}

func runScript(state *shellstate.T, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "serenity: %v\n", err)
		os.Exit(1)
	}

	runLine(state, string(data))
}

func runREPL(state *shellstate.T, interactive bool) {
	if !interactive {
		data, _ := io.ReadAll(os.Stdin)
		runLine(state, string(data))

		return
	}

	line := ui.New()
	defer line.Close() //nolint:errcheck

	_ = history.Load(state.Home, line.LoadHistory)

	for {
		state.Jobs.FlushNotifications()

		text, err := line.GetLine(renderedPrompt(state))

		if errors.Is(err, ui.ErrAborted) {
			fmt.Println()
			continue
		}

		if err != nil {
			break
		}

		runLine(state, text)
	}

	_ = history.Save(state.Home, line.SaveHistory)

	fmt.Println()
}

func renderedPrompt(state *shellstate.T) string {
	format := prompt.Default
	if p, ok := state.Environ("PROMPT"); ok && p != "" {
		format = p
	}

	return prompt.Render(format, prompt.Info{
		Username: state.Username,
		Hostname: state.Hostname,
		Home:     state.Home,
		Cwd:      state.Cwd,
		IsRoot:   state.Uid == 0,
	})
}

// runLine parses and evaluates one chunk of shell source, updating
// state.LastCode. A parse error or a panic during evaluation is
// reported on stderr and treated as exit code 1, matching spec.md
// §7's best-effort-forward-progress policy: the shell itself keeps
// running.
func runLine(state *shellstate.T, text string) {
	node, err := parse.Parse(text)
	if err != nil {
		fmt.Fprintf(os.Stderr, "serenity: %v\n", err)
		state.LastCode = 1

		return
	}

	if node == nil {
		return
	}

	v, err := evaluate(&ast.Execute{Inner: node}, state)
	if err != nil {
		fmt.Fprintf(os.Stderr, "serenity: %v\n", err)

		if code, ok := launcher.Code(err); ok {
			state.LastCode = code
		} else {
			state.LastCode = 1
		}

		return
	}

	if job, ok := v.(*value.Job); ok {
		state.LastCode = job.Handle.Wait()
	}
}

// evaluate wraps eval.Evaluate with one recover boundary per
// top-level unit, mirroring the teacher's Task.Run deferred recover
// (SPEC_FULL.md §A): a bug surfaced while evaluating one line must
// not bring down the whole shell.
func evaluate(node ast.Node, state *shellstate.T) (v value.T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	return eval.Evaluate(node, state.Context())
}
