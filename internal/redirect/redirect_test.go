package redirect_test

import (
	"testing"

	"github.com/mltnhm/serenity/internal/redirect"
)

func TestNewPath(t *testing.T) {
	r := redirect.NewPath("/tmp/out", 1, redirect.WriteAppend)

	if r.Kind != redirect.KindPath || r.Path != "/tmp/out" || r.Fd != 1 || r.Mode != redirect.WriteAppend {
		t.Errorf("NewPath produced unexpected redirection: %+v", r)
	}
}

func TestNewFd2Fd(t *testing.T) {
	r := redirect.NewFd2Fd(1, 2)

	if r.Kind != redirect.KindFd2Fd || r.SourceFd != 1 || r.DestFd != 2 {
		t.Errorf("NewFd2Fd produced unexpected redirection: %+v", r)
	}
}

func TestNewClose(t *testing.T) {
	r := redirect.NewClose(3)

	if r.Kind != redirect.KindClose || r.Fd != 3 {
		t.Errorf("NewClose produced unexpected redirection: %+v", r)
	}
}

func TestNewPipeEnd(t *testing.T) {
	read := redirect.NewPipeEnd(5, 0, redirect.ReadEnd)
	write := redirect.NewPipeEnd(5, 1, redirect.WriteEnd)

	if read.Kind != redirect.KindPipe || read.PipeID != 5 || read.End != redirect.ReadEnd || read.Fd != 0 {
		t.Errorf("read end malformed: %+v", read)
	}

	if write.Kind != redirect.KindPipe || write.PipeID != 5 || write.End != redirect.WriteEnd || write.Fd != 1 {
		t.Errorf("write end malformed: %+v", write)
	}

	if read.PipeID != write.PipeID {
		t.Error("both ends of a pipe pair must share the same PipeID")
	}
}
