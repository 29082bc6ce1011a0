//go:build linux

package jobctl

import "golang.org/x/sys/unix"

// Termios is an opaque snapshot of the terminal attributes in effect
// when it was captured.
type Termios struct {
	attr *unix.Termios
}

// SnapshotTermios captures the terminal's current attributes so they
// can be restored later, even after a foreground job has changed
// them. It reports false when stdin is not a terminal.
func SnapshotTermios() (Termios, bool) {
	attr, err := unix.IoctlGetTermios(terminalFd, unix.TCGETS)
	if err != nil {
		return Termios{}, false
	}

	return Termios{attr: attr}, true
}

// RestoreTermios reinstates a previously captured snapshot. A zero
// Termios (no prior successful Snapshot) is a no-op.
func RestoreTermios(t Termios) {
	if t.attr == nil {
		return
	}

	_ = unix.IoctlSetTermios(terminalFd, unix.TCSETS, t.attr)
}
