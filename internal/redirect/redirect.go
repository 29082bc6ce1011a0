// Package redirect defines the abstract Redirection requests the
// evaluator attaches to Command records, and a concrete Rewiring
// instruction type. The pipeline launcher resolves requests directly
// to the open file installed at each child descriptor; it does not
// build Rewiring values.
package redirect

// Mode names the open mode for a Path redirection.
type Mode int

// The four modes a Path redirection may request.
const (
	Read Mode = iota
	Write
	ReadWrite
	WriteAppend
)

// Kind discriminates the Redirection variants.
type Kind int

// The Redirection variants.
const (
	// KindPath opens Path with Mode and installs it at Fd.
	KindPath Kind = iota

	// KindFd2Fd makes DestFd in the child refer to what SourceFd
	// refers to (`2>&1` is SourceFd 1, DestFd 2).
	KindFd2Fd

	// KindClose closes Fd in the child immediately upon applying
	// rewirings.
	KindClose

	// KindPipe is one of a cooperating pair of pipe endpoints sharing
	// a freshly allocated pipe; the launcher discovers the pairing
	// at rewiring time via PipeID and allocates the pipe once.
	KindPipe
)

// PipeEnd distinguishes the two ends of a KindPipe redirection.
type PipeEnd int

// The two ends of a pipe-pair redirection.
const (
	ReadEnd PipeEnd = iota
	WriteEnd
)

// T is a single redirection request attached to a Command record.
type T struct {
	Kind Kind

	// KindPath fields.
	Path string
	Mode Mode

	// Fd is the destination descriptor in the child for KindPath,
	// KindClose, and the local end of KindPipe.
	Fd int

	// KindFd2Fd fields: DestFd becomes a copy of SourceFd.
	SourceFd int
	DestFd   int

	// KindPipe fields: PipeID pairs up the two cooperating endpoints
	// of a single freshly allocated pipe (set by the node that
	// created the pair, e.g. Pipe(L, R) in the evaluator); End says
	// which side of that pipe this redirection installs at Fd.
	PipeID int
	End    PipeEnd
}

// NewPath returns a KindPath redirection.
func NewPath(path string, fd int, mode Mode) T {
	return T{Kind: KindPath, Path: path, Fd: fd, Mode: mode}
}

// NewFd2Fd returns a KindFd2Fd redirection.
func NewFd2Fd(sourceFd, destFd int) T {
	return T{Kind: KindFd2Fd, SourceFd: sourceFd, DestFd: destFd}
}

// NewClose returns a KindClose redirection.
func NewClose(fd int) T {
	return T{Kind: KindClose, Fd: fd}
}

// NewPipeEnd returns one endpoint of a KindPipe pair. Call it twice
// with the same pipeID and opposite ends, once per side of the pipe.
func NewPipeEnd(pipeID, fd int, end PipeEnd) T {
	return T{Kind: KindPipe, Fd: fd, PipeID: pipeID, End: end}
}

// CloseAction names what is done to the source/dest descriptors after
// a Rewiring has been applied.
type CloseAction int

// The five close policies a Rewiring may carry.
const (
	CloseNone CloseAction = iota
	CloseSource
	CloseDestination
	RefreshDestination
	ImmediatelyCloseDestination
)

// Rewiring is a concrete descriptor-manipulation instruction: "make
// SourceFd visible as DestFd in the child", then apply CloseAction.
// internal/launcher does not produce or consume Rewiring values.
type Rewiring struct {
	SourceFd    int
	DestFd      int
	CloseAction CloseAction
}
