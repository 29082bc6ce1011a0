//go:build aix || solaris

package jobctl

// Termios is a no-op placeholder on platforms without a terminal
// attribute ioctl wired up here, mirroring the teacher's own
// windows.go/other.go fallback pattern for the platforms its job
// control package doesn't reach.
type Termios struct{}

// SnapshotTermios always reports false on these platforms.
func SnapshotTermios() (Termios, bool) { return Termios{}, false }

// RestoreTermios is a no-op on these platforms.
func RestoreTermios(Termios) {}
