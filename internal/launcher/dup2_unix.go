//go:build aix || darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris

package launcher

import "golang.org/x/sys/unix"

func dup2(oldfd, newfd int) error {
	return unix.Dup2(oldfd, newfd)
}
