//go:build !windows

package tracer

import (
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// pipePathFor returns the FIFO's path in the system temp directory.
func pipePathFor(name string) string {
	return filepath.Join(os.TempDir(), name)
}

// unixFifoListener implements pipeListener over a real Unix FIFO, created
// with mode 0o777. The tracer is the FIFO's writer; Accept performs the
// (blocking) open that completes once the tracer's own open call happens,
// the standard FIFO rendezvous.
type unixFifoListener struct {
	path string
}

func createPipe(path string) (pipeListener, error) {
	if err := unix.Mkfifo(path, 0o777); err != nil {
		return nil, err
	}
	return &unixFifoListener{path: path}, nil
}

func (l *unixFifoListener) Accept() (io.ReadCloser, error) {
	return os.OpenFile(l.path, os.O_RDONLY, os.ModeNamedPipe)
}

func (l *unixFifoListener) Close() error {
	return nil
}
