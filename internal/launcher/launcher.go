// Package launcher implements the Pipeline Launcher (spec.md §4.4): it
// walks a resolved command.Sequence, turns each record's abstract
// redirect.T requests into concrete open files, forks/execs external
// commands (falling back to an in-process call for builtins and for
// argv-empty redirection-only records), and registers the resulting
// pids with the job controller. Descriptor lifetime follows oh's
// external()/engine.go pattern: every file opened while resolving
// redirections is tracked by a scoped collector and closed on every
// exit path once the fork (or in-process application) has happened.
package launcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/michaelmacinnis/adapted"

	"github.com/mltnhm/serenity/internal/command"
	"github.com/mltnhm/serenity/internal/jobctl"
	"github.com/mltnhm/serenity/internal/redirect"
)

// Builtin is a shell builtin: it runs in-process, inheriting (and may
// mutate) shell state, and reports an exit code directly rather than
// going through the job controller.
type Builtin func(argv []string, stdin, stdout, stderr *os.File) int

// Launcher resolves and launches command sequences.
type Launcher struct {
	Builtins   map[string]Builtin
	Jobs       *jobctl.Controller
	Monitoring bool
}

// Result is what Launch produces: either a Job to block on (the
// general fork/exec path) or an immediate exit code (a lone builtin,
// or a sequence consisting entirely of argv-empty redirection
// records).
type Result struct {
	Job     *jobctl.T
	Code    int
	HasJob  bool
	HasCode bool
}

// Launch resolves seq's redirections, launches its external stages,
// and runs any lone builtin or in-process redirection in place.
func (l *Launcher) Launch(seq command.Sequence, background bool, cmdText string) (Result, error) {
	pipes := map[int][2]*os.File{}
	collector := &collector{}

	defer collector.closeAll()

	var forkable []*command.T

	for _, rec := range seq {
		if len(rec.Argv) == 0 {
			code, err := l.applyInProcess(rec, pipes, collector)
			if err != nil {
				return Result{}, err
			}

			if code != 0 {
				return Result{Code: code, HasCode: true}, nil
			}

			continue
		}

		forkable = append(forkable, rec)
	}

	if len(forkable) == 0 {
		return Result{Code: 0, HasCode: true}, nil
	}

	if len(forkable) == 1 {
		if fn, ok := l.Builtins[forkable[0].Argv[0]]; ok {
			code, err := l.runBuiltin(fn, forkable[0], pipes, collector)
			if err != nil {
				return Result{}, err
			}

			return Result{Code: code, HasCode: true}, nil
		}
	}

	job, err := l.fork(forkable, pipes, background, cmdText, true)
	if err != nil {
		return Result{}, err
	}

	return Result{Job: job, HasJob: true}, nil
}

type openFile struct {
	f     *os.File
	owned bool // true if this launcher opened it and must close its own copy after fork
}

func (l *Launcher) resolveFiles(rec *command.T, pipes map[int][2]*os.File, c *collector) (map[int]openFile, error) {
	files := map[int]openFile{
		0: {os.Stdin, false},
		1: {os.Stdout, false},
		2: {os.Stderr, false},
	}

	for _, r := range rec.Redirections {
		switch r.Kind {
		case redirect.KindPath:
			f, err := openPath(r)
			if err != nil {
				// spec.md §7: a redirection open failure is reported
				// and that redirection is skipped; the fd keeps
				// whatever it already resolved to (inherited stdio or
				// an earlier redirection in this same record) and the
				// rest of the command still runs.
				fmt.Fprintf(os.Stderr, "serenity: %s: %v\n", r.Path, err)

				continue
			}

			c.track(f)
			files[r.Fd] = openFile{f, true}

		case redirect.KindFd2Fd:
			src, ok := files[r.SourceFd]
			if !ok {
				return nil, fmt.Errorf("launcher: fd %d not open for dup", r.SourceFd)
			}

			files[r.DestFd] = src

		case redirect.KindClose:
			delete(files, r.Fd)

		case redirect.KindPipe:
			pair, ok := pipes[r.PipeID]
			if !ok {
				read, write, err := os.Pipe()
				if err != nil {
					return nil, err
				}

				c.track(read)
				c.track(write)
				pair = [2]*os.File{read, write}
				pipes[r.PipeID] = pair
			}

			if r.End == redirect.ReadEnd {
				files[r.Fd] = openFile{pair[0], true}
			} else {
				files[r.Fd] = openFile{pair[1], true}
			}
		}
	}

	return files, nil
}

func openPath(r redirect.T) (*os.File, error) {
	switch r.Mode {
	case redirect.Read:
		return os.Open(r.Path)
	case redirect.Write:
		return os.OpenFile(r.Path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	case redirect.WriteAppend:
		return os.OpenFile(r.Path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	case redirect.ReadWrite:
		return os.OpenFile(r.Path, os.O_RDWR|os.O_CREATE, 0o644)
	default:
		return nil, fmt.Errorf("launcher: unknown redirection mode %v", r.Mode)
	}
}

func maxFd(files map[int]openFile) int {
	max := 2
	for fd := range files {
		if fd > max {
			max = fd
		}
	}

	return max
}

func toProcFiles(files map[int]openFile) []*os.File {
	out := make([]*os.File, maxFd(files)+1)
	for fd, of := range files {
		out[fd] = of.f
	}

	return out
}

// fork walks forkable in pipeline-connected runs: a run is a maximal
// span of records chained by IsPipeSource, which must be started
// together (a pipe's reader has to exist before its writer can fill
// the pipe buffer). Runs themselves are strictly sequential: per
// spec.md §5, `;`/`&&`/`||`-joined commands don't overlap, so when
// blockBetweenRuns is set, once a run's last record has ShouldWait
// set, fork blocks on that run's job before starting the next one,
// mirroring original_source/Shell/Shell.cpp's run_commands
// (block_on_job per should_wait command, continuing immediately only
// for pipe sources and backgrounded jobs).
//
// Capture passes blockBetweenRuns=false: its caller doesn't start
// draining the capture pipe's read end until Capture itself returns,
// so blocking here on a run that writes into that same pipe before
// the caller ever reads from it would deadlock as soon as the run's
// output filled the pipe buffer. Launch has no such reader to wait
// for, so it always blocks between runs to keep `;` strictly ordered.
func (l *Launcher) fork(
	forkable []*command.T,
	pipes map[int][2]*os.File,
	background bool,
	cmdText string,
	blockBetweenRuns bool,
) (*jobctl.T, error) {
	var job *jobctl.T

	for start := 0; start < len(forkable); {
		end := start
		for forkable[end].IsPipeSource {
			end++
		}

		run := forkable[start : end+1]
		start = end + 1

		j, err := l.forkRun(run, pipes, background, cmdText)
		if err != nil {
			return nil, err
		}

		if blockBetweenRuns && run[len(run)-1].ShouldWait {
			j.Wait()
		}

		job = j
	}

	return job, nil
}

// forkRun forks every record of a single pipeline run into one shared
// process group and registers it as one job. It uses its own
// collector, closed as soon as every stage has been started, rather
// than the outer Launch/Capture collector: fork may block on this
// run's job (should_wait) before the caller ever gets to run its own
// deferred cleanup, and a pipe's reader can't see EOF while the
// parent's copy of the write end is still open, so inter-stage pipe
// fds must be closed here rather than deferred to Launch's return.
func (l *Launcher) forkRun(
	run []*command.T,
	pipes map[int][2]*os.File,
	background bool,
	cmdText string,
) (*jobctl.T, error) {
	rc := &collector{}
	defer rc.closeAll()

	pids := make([]int, 0, len(run))

	var pgid, lastPid int

	for i, rec := range run {
		files, err := l.resolveFiles(rec, pipes, rc)
		if err != nil {
			return nil, err
		}

		path, _, err := adapted.LookPath(rec.Argv[0], os.Getenv("PATH"))
		if err != nil {
			return nil, diagnoseLookupError(rec.Argv[0], err)
		}

		foreground := l.Monitoring && !background

		attr := &os.ProcAttr{
			Files: toProcFiles(files),
			Sys:   jobctl.SysProcAttr(foreground && i == 0, pgid),
		}

		p, err := os.StartProcess(path, rec.Argv, attr)
		if err != nil {
			return nil, diagnoseExecError(rec.Argv[0], path, err)
		}

		if i == 0 {
			pgid = p.Pid
		}

		lastPid = p.Pid

		pids = append(pids, p.Pid)
	}

	return l.Jobs.Register(pids, pgid, lastPid, cmdText, background), nil
}

// Capture runs seq exactly as Launch does, except the final stage's
// stdout is connected to a fresh pipe instead of the shell's own:
// the read end is returned to the caller (internal/shellstate) to
// drain to EOF, and the parent's copy of the write end is closed once
// every stage has been forked, the same collector discipline Launch
// applies to ordinary inter-stage pipes.
func (l *Launcher) Capture(seq command.Sequence, cmdText string) (Result, *os.File, error) {
	if len(seq) == 0 {
		return Result{Code: 0, HasCode: true}, nil, nil
	}

	read, write, err := os.Pipe()
	if err != nil {
		return Result{}, nil, err
	}

	const capturePipeID = -1

	pipes := map[int][2]*os.File{capturePipeID: {read, write}}
	collector := &collector{}
	collector.track(write)

	defer collector.closeAll()

	seq = append(command.Sequence{}, seq...)
	last := *seq[len(seq)-1]
	last.Redirections = append(append([]redirect.T{}, last.Redirections...),
		redirect.NewPipeEnd(capturePipeID, 1, redirect.WriteEnd))
	seq[len(seq)-1] = &last

	var forkable []*command.T

	for _, rec := range seq {
		if len(rec.Argv) == 0 {
			code, err := l.applyInProcess(rec, pipes, collector)
			if err != nil {
				return Result{}, read, err
			}

			if code != 0 {
				return Result{Code: code, HasCode: true}, read, nil
			}

			continue
		}

		forkable = append(forkable, rec)
	}

	if len(forkable) == 0 {
		return Result{Code: 0, HasCode: true}, read, nil
	}

	if len(forkable) == 1 {
		if fn, ok := l.Builtins[forkable[0].Argv[0]]; ok {
			code, err := l.runBuiltin(fn, forkable[0], pipes, collector)
			if err != nil {
				return Result{}, read, err
			}

			return Result{Code: code, HasCode: true}, read, nil
		}
	}

	// blockBetweenRuns=false: the caller (internal/shellstate.capture)
	// doesn't drain read until Capture returns, so fork must not block
	// on a run's job here — that run may be the very one writing into
	// the pipe this call's read end came from.
	job, err := l.fork(forkable, pipes, false, cmdText, false)
	if err != nil {
		return Result{}, read, err
	}

	return Result{Job: job, HasJob: true}, read, nil
}

// execError carries the exit code spec.md §4.4 step 5 assigns to a
// failed launch attempt. original_source/Shell/Shell.cpp's run()
// reports a diagnostic on stderr and then always calls _exit(126),
// whether the cause was a missing command, a missing interpreter, or
// a target that turned out to be a directory; cmd/serenity reads Code
// back out via errors.As instead of defaulting every launch failure
// to exit code 1.
type execError struct {
	code int
	msg  string
}

func (e *execError) Error() string { return e.msg }

// Code returns the exit code a failed launch should report, or
// (0, false) for an error that didn't originate here.
func Code(err error) (int, bool) {
	var e *execError
	if errors.As(err, &e) {
		return e.code, true
	}

	return 0, false
}

func diagnoseLookupError(name string, cause error) error {
	info, statErr := os.Stat(name)
	if statErr != nil {
		return &execError{126, fmt.Sprintf("%s: command not found", name)}
	}

	if info.IsDir() {
		return &execError{126, fmt.Sprintf("%s: is a directory", name)}
	}

	return &execError{126, fmt.Sprintf("%s: permission denied", name)}
}

// diagnoseExecError reports why os.StartProcess failed after path had
// already passed adapted.LookPath (it exists and carries an execute
// bit). An ENOENT here, unlike the same errno from LookPath, means
// the kernel itself couldn't resolve path's own execution — almost
// always because it's a `#!`-script naming an interpreter that isn't
// installed. Shell.cpp's run() diagnoses exactly this case by opening
// the file and checking its first two bytes for "#!" before falling
// back to a generic "command not found".
func diagnoseExecError(name, path string, cause error) error {
	if errors.Is(cause, fs.ErrNotExist) {
		if interp, ok := readShebangInterpreter(path); ok {
			return &execError{126, fmt.Sprintf("%s: Invalid interpreter %q: %v", name, interp, fs.ErrNotExist)}
		}

		return &execError{126, fmt.Sprintf("%s: command not found", name)}
	}

	return &execError{126, fmt.Sprintf("%s: %v", name, cause)}
}

// readShebangInterpreter reads path's first line and, if it starts
// with "#!", returns the interpreter path named after it.
func readShebangInterpreter(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close() //nolint:errcheck

	buf := make([]byte, 256)

	n, _ := f.Read(buf)
	line := string(buf[:n])

	if !strings.HasPrefix(line, "#!") {
		return "", false
	}

	line = strings.TrimPrefix(line, "#!")
	if i := strings.IndexAny(line, "\n\r"); i >= 0 {
		line = line[:i]
	}

	return strings.TrimSpace(line), true
}

func (l *Launcher) runBuiltin(
	fn Builtin,
	rec *command.T,
	pipes map[int][2]*os.File,
	c *collector,
) (int, error) {
	files, err := l.resolveFiles(rec, pipes, c)
	if err != nil {
		return 0, err
	}

	return fn(rec.Argv, files[0].f, files[1].f, files[2].f), nil
}

// applyInProcess handles a redirection-only record (empty argv): its
// rewirings take effect directly on the shell's own descriptors via
// dup2, as `exec 3>file` does in a real shell.
func (l *Launcher) applyInProcess(rec *command.T, pipes map[int][2]*os.File, c *collector) (int, error) {
	files, err := l.resolveFiles(rec, pipes, c)
	if err != nil {
		return 1, err
	}

	for fd, of := range files {
		if fd > 2 || !of.owned {
			continue
		}

		if err := dup2(int(of.f.Fd()), fd); err != nil {
			return 1, err
		}
	}

	return 0, nil
}

type collector struct {
	files []*os.File
}

func (c *collector) track(f *os.File) {
	c.files = append(c.files, f)
}

func (c *collector) closeAll() {
	for _, f := range c.files {
		_ = f.Close()
	}
}
