//go:build aix || darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris

// Package jobctl implements the Job Controller (spec.md §4.7 in the
// launcher/job-control split of §2): terminal hand-off, SIGCHLD
// reaping, and the foreground/background/stopped bookkeeping that
// turns raw pids into Job values the evaluator can block on. The
// low-level process-group primitives below are adapted from oh's
// internal/system/process package.
package jobctl

import (
	"os"

	"golang.org/x/sys/unix"
)

//nolint:gochecknoglobals
var (
	shellPid     = unix.Getpid()
	shellPgid, _ = unix.Getpgid(shellPid)
	terminalFd   = int(os.Stdin.Fd())
)

// BecomeForegroundGroup puts the shell's own process group in the
// foreground, looping through the SIGTTIN handshake the kernel
// requires when the shell itself was started in the background.
func BecomeForegroundGroup() error {
	for shellPgid != ForegroundGroup() {
		if err := unix.Kill(-shellPgid, unix.SIGTTIN); err != nil {
			return err
		}

		g, err := unix.Getpgid(shellPid)
		if err != nil {
			return err
		}

		shellPgid = g
	}

	if shellPid != shellPgid {
		if err := unix.Setpgid(shellPid, shellPid); err != nil {
			return err
		}

		shellPgid = shellPid
	}

	SetForegroundGroup(shellPgid)

	return nil
}

// ForegroundGroup returns the terminal's current foreground process
// group.
func ForegroundGroup() int {
	g, err := unix.IoctlGetInt(terminalFd, unix.TIOCGPGRP)
	if err != nil {
		return 0
	}

	return g
}

// SetForegroundGroup makes g the terminal's foreground process group.
func SetForegroundGroup(g int) {
	_ = unix.IoctlSetPointerInt(terminalFd, unix.TIOCSPGRP, g)
}

// RestoreForegroundGroup puts the shell's own group back in control of
// the terminal, used after a foreground job exits or stops.
func RestoreForegroundGroup() {
	if shellPgid != ForegroundGroup() {
		SetForegroundGroup(shellPgid)
	}
}

// ShellGroup returns the shell's own process group id.
func ShellGroup() int { return shellPgid }

// Continue sends SIGCONT to pid.
func Continue(pid int) { _ = unix.Kill(pid, unix.SIGCONT) }

// Interrupt sends SIGINT to pid.
func Interrupt(pid int) { _ = unix.Kill(pid, unix.SIGINT) }

// Stop sends SIGSTOP to pid.
func Stop(pid int) { _ = unix.Kill(pid, unix.SIGSTOP) }

// Terminate sends SIGTERM to pid.
func Terminate(pid int) { _ = unix.Kill(pid, unix.SIGTERM) }

// ContinueGroup sends SIGCONT to every process in group g, waking a
// stopped job up long enough to see a following Hangup.
func ContinueGroup(g int) { _ = unix.Kill(-g, unix.SIGCONT) }

// Hangup sends SIGHUP to every process in group g, the signal a
// controlling terminal's session leader sends its job groups when it
// exits.
func Hangup(g int) { _ = unix.Kill(-g, unix.SIGHUP) }

// KillGroup sends SIGKILL to every process in group g.
func KillGroup(g int) { _ = unix.Kill(-g, unix.SIGKILL) }

// SysProcAttr builds the process attributes needed to place a newly
// forked process into group (0 meaning "start a new group named after
// this process's own pid") and, when foreground is true, hands it the
// controlling terminal atomically with the fork.
func SysProcAttr(foreground bool, group int) *unix.SysProcAttr {
	sys := &unix.SysProcAttr{Setpgid: true, Foreground: foreground}

	if group == 0 {
		sys.Ctty = terminalFd
	} else {
		sys.Pgid = group
	}

	return sys
}
