package jobctl

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"time"

	"golang.org/x/sys/unix"
)

// teardownGrace is the delay between Teardown's SIGHUP pass and its
// final SIGKILL sweep of anything still alive.
const teardownGrace = 200 * time.Millisecond

// T is a single launched pipeline: the set of pids sharing Pgid, plus
// enough bookkeeping to report its completion or suspension to the
// job that is waiting on it. It satisfies value.JobHandle.
type T struct {
	Pgid       int
	CmdText    string
	Background bool

	// Number is this job's `[n]` slot once it has been suspended or
	// backgrounded and reported via Jobs/Fg; zero until then.
	Number int

	running map[int]bool
	stopped map[int]bool
	lastPid int

	done      chan struct{}
	closeOnce bool
	finalCode int
}

// Pid implements value.JobHandle, returning the pipeline's process
// group id.
func (j *T) Pid() int { return j.Pgid }

// Wait implements value.JobHandle: it blocks until the job exits or
// is suspended (Ctrl-Z), returning the exit code in the first case and
// 128+SIGTSTP in the second. A suspended job remains registered so a
// later `fg` can resume it.
func (j *T) Wait() int {
	<-j.done
	return j.finalCode
}

// Controller is the actor-model job controller: all mutable job state
// is owned by a single goroutine reached only through requestq,
// mirroring oh's internal/system/job controller so that signal
// delivery (SIGCHLD/SIGINT/SIGTSTP) and command-initiated requests
// (Register/Fg/List) never race each other.
type Controller struct {
	requestq chan func()
	signalq  chan os.Signal

	active map[int]*T // pid -> owning job
	jobs   map[int]*T // job number -> suspended/background job

	foreground *T
	monitoring bool

	// termios is the shell's own terminal-attribute snapshot (spec.md
	// §3's "original/current termios snapshots"), taken once at
	// startup and reinstated whenever block_on_job regains the
	// foreground from a job that may have left the terminal in a
	// different mode (spec.md §4.5).
	termios    Termios
	hasTermios bool

	// pending holds background-completion/suspension notices not yet
	// written out; FlushNotifications writes and clears them right
	// before the next prompt is drawn, rather than asynchronously from
	// the reaper goroutine the moment SIGCHLD is reaped.
	pending []string

	out io.Writer
}

// NewController starts the controller's goroutine and, when
// monitoring is true (interactive mode, spec.md §6), arranges for
// SIGINT/SIGTSTP to be forwarded to the foreground job instead of the
// shell itself, and ignores SIGQUIT/SIGTTIN/SIGTTOU the way a job-
// control shell must.
func NewController(monitoring bool, out io.Writer) *Controller {
	c := &Controller{
		requestq:   make(chan func(), 1),
		active:     map[int]*T{},
		jobs:       map[int]*T{},
		monitoring: monitoring,
		out:        out,
	}

	signals := []os.Signal{unix.SIGCHLD}

	if monitoring {
		signal.Ignore(unix.SIGQUIT, unix.SIGTTIN, unix.SIGTTOU)

		signals = append(signals, unix.SIGINT, unix.SIGTSTP)
	}

	c.signalq = make(chan os.Signal, len(signals)+1)
	signal.Notify(c.signalq, signals...)

	if monitoring {
		c.termios, c.hasTermios = SnapshotTermios()
	}

	go c.run()

	return c
}

func (c *Controller) run() {
	for {
		select {
		case f := <-c.requestq:
			f()

		case s := <-c.signalq:
			switch s {
			case unix.SIGCHLD:
				c.reap()
			case unix.SIGINT:
				c.signalForeground(Interrupt)
			case unix.SIGTSTP:
				c.signalForeground(Stop)
			}
		}
	}
}

func (c *Controller) signalForeground(send func(pid int)) {
	if c.foreground == nil {
		return
	}

	for pid := range c.foreground.running {
		send(pid)
	}
}

// Register records a freshly launched pipeline: pids is the ordered
// list of process ids the launcher forked, pgid is their shared
// process group (pids[0] when the launcher started a new group), and
// lastPid names the pid whose exit status becomes the
// job's own (the pipeline's last stage, per POSIX's "status of a
// pipeline is the status of its last command").
func (c *Controller) Register(pids []int, pgid, lastPid int, cmdText string, background bool) *T {
	result := make(chan *T, 1)

	c.requestq <- func() {
		j := &T{
			Pgid:       pgid,
			CmdText:    cmdText,
			Background: background,
			running:    make(map[int]bool, len(pids)),
			stopped:    map[int]bool{},
			lastPid:    lastPid,
			done:       make(chan struct{}),
		}

		for _, p := range pids {
			j.running[p] = true
			c.active[p] = j
		}

		if background {
			c.addNumbered(j)
		} else {
			c.foreground = j
		}

		result <- j
	}

	return <-result
}

func (c *Controller) addNumbered(j *T) {
	number := 1
	for n := range c.jobs {
		if n >= number {
			number = n + 1
		}
	}

	j.Number = number
	c.jobs[number] = j
}

func (c *Controller) finish(j *T, code int) {
	if j.closeOnce {
		return
	}

	j.closeOnce = true
	j.finalCode = code

	if c.foreground == j {
		c.foreground = nil

		RestoreForegroundGroup()
		c.restoreTermios()
	}

	if j.Background && j.Number != 0 {
		c.pending = append(c.pending, fmt.Sprintf("[%d]+  Done                    %s\n", j.Number, j.CmdText))
		delete(c.jobs, j.Number)
	}

	close(j.done)
}

func (c *Controller) suspend(j *T) {
	if j.Number == 0 {
		c.addNumbered(j)
	}

	j.finalCode = 128 + int(unix.SIGTSTP)

	if c.foreground == j {
		c.foreground = nil

		RestoreForegroundGroup()
		c.restoreTermios()
	}

	c.pending = append(c.pending, fmt.Sprintf("\n[%d]+  Stopped                 %s\n", j.Number, j.CmdText))

	close(j.done)
}

// restoreTermios reinstates the shell's own saved terminal attributes,
// called whenever the shell regains the foreground from a job that
// may have left the terminal in a different mode.
func (c *Controller) restoreTermios() {
	if c.hasTermios {
		RestoreTermios(c.termios)
	}
}

func (c *Controller) notify(pid int, status unix.WaitStatus) {
	j, ok := c.active[pid]
	if !ok {
		return
	}

	switch {
	case status.Continued():
		delete(j.stopped, pid)

		j.running[pid] = true

	case status.Stopped():
		delete(j.running, pid)

		j.stopped[pid] = true

		if len(j.running) == 0 {
			c.suspend(j)
		}

	case status.Exited(), status.Signaled():
		code := status.ExitStatus()
		if status.Signaled() {
			code = 128 + int(status.Signal())
		}

		delete(j.running, pid)
		delete(j.stopped, pid)
		delete(c.active, pid)

		if pid == j.lastPid {
			j.finalCode = code
		}

		if len(j.running) == 0 && len(j.stopped) == 0 {
			c.finish(j, j.finalCode)
		}
	}
}

func (c *Controller) reap() {
	var (
		rusage unix.Rusage
		status unix.WaitStatus
	)

	flags := unix.WNOHANG | unix.WUNTRACED | unix.WCONTINUED

	for {
		pid, err := unix.Wait4(-1, &status, flags, &rusage)
		if err != nil || pid <= 0 {
			return
		}

		c.notify(pid, status)
	}
}

// Fg resumes job number n (or the most recently stopped/backgrounded
// job when n is zero), returning it so the caller can Wait on it
// again. It reports false if there is no such job.
func (c *Controller) Fg(n int) (*T, bool) {
	type result struct {
		j  *T
		ok bool
	}

	r := make(chan result, 1)

	c.requestq <- func() {
		if len(c.jobs) == 0 {
			r <- result{nil, false}
			return
		}

		if n == 0 {
			n = c.mostRecentNumber()
		}

		j, found := c.jobs[n]
		if !found {
			r <- result{nil, false}
			return
		}

		delete(c.jobs, n)

		j.done = make(chan struct{})
		j.closeOnce = false
		c.foreground = j

		SetForegroundGroup(j.Pgid)

		for pid := range j.stopped {
			Continue(pid)

			j.running[pid] = true
			delete(j.stopped, pid)
		}

		r <- result{j, true}
	}

	res := <-r

	return res.j, res.ok
}

func (c *Controller) mostRecentNumber() int {
	max := 0
	for n := range c.jobs {
		if n > max {
			max = n
		}
	}

	return max
}

// FlushNotifications writes out any background-completion or
// suspension notices queued since the last flush. Callers should
// invoke this right before drawing the next prompt, matching the
// timing a background job's should_notify_if_in_background flag
// describes (spec.md §3) rather than writing asynchronously the
// instant the reaper goroutine observes SIGCHLD.
func (c *Controller) FlushNotifications() {
	done := make(chan struct{})

	c.requestq <- func() {
		for _, msg := range c.pending {
			fmt.Fprint(c.out, msg)
		}

		c.pending = nil

		close(done)
	}

	<-done
}

// Teardown implements spec.md §4.5's shell-exit behavior: every job
// still tracked (suspended, backgrounded, or otherwise still running)
// is sent SIGCONT then SIGHUP — SIGCONT so a stopped job wakes up long
// enough to see the hangup — and, after a brief grace period, any
// process group that is still alive is sent SIGKILL outright.
func (c *Controller) Teardown() {
	groups := c.liveGroups()
	if len(groups) == 0 {
		return
	}

	for _, g := range groups {
		ContinueGroup(g)
		Hangup(g)
	}

	time.Sleep(teardownGrace)

	for _, g := range c.liveGroups() {
		KillGroup(g)
	}
}

// liveGroups returns the distinct process group ids of every job this
// controller still knows about, whether suspended/backgrounded (in
// c.jobs) or simply still running (in c.active).
func (c *Controller) liveGroups() []int {
	r := make(chan []int, 1)

	c.requestq <- func() {
		seen := map[int]bool{}

		var groups []int

		for _, j := range c.jobs {
			if !seen[j.Pgid] {
				seen[j.Pgid] = true

				groups = append(groups, j.Pgid)
			}
		}

		for _, j := range c.active {
			if !seen[j.Pgid] {
				seen[j.Pgid] = true

				groups = append(groups, j.Pgid)
			}
		}

		r <- groups
	}

	return <-r
}

// JobInfo is a read-only snapshot of a registered job, for the jobs
// builtin to print.
type JobInfo struct {
	Number  int
	CmdText string
	Stopped bool
}

// List returns a snapshot of all currently suspended or backgrounded
// jobs, ordered by job number.
func (c *Controller) List() []JobInfo {
	r := make(chan []JobInfo, 1)

	c.requestq <- func() {
		numbers := make([]int, 0, len(c.jobs))
		for n := range c.jobs {
			numbers = append(numbers, n)
		}

		sort.Ints(numbers)

		out := make([]JobInfo, 0, len(numbers))

		for _, n := range numbers {
			j := c.jobs[n]
			out = append(out, JobInfo{
				Number:  n,
				CmdText: j.CmdText,
				Stopped: len(j.stopped) > 0,
			})
		}

		r <- out
	}

	return <-r
}

// Lookup returns the currently tracked background/suspended job
// numbered n without disturbing it (unlike Fg, it does not resume a
// stopped job or take the terminal), for the `wait` builtin to block
// on via the returned handle's Wait method.
func (c *Controller) Lookup(n int) (*T, bool) {
	r := make(chan *T, 1)

	c.requestq <- func() {
		r <- c.jobs[n]
	}

	j := <-r

	return j, j != nil
}

// All returns every currently tracked background/suspended job,
// ordered by job number, for `wait` with no arguments.
func (c *Controller) All() []*T {
	r := make(chan []*T, 1)

	c.requestq <- func() {
		numbers := make([]int, 0, len(c.jobs))
		for n := range c.jobs {
			numbers = append(numbers, n)
		}

		sort.Ints(numbers)

		out := make([]*T, 0, len(numbers))
		for _, n := range numbers {
			out = append(out, c.jobs[n])
		}

		r <- out
	}

	return <-r
}
