//go:build windows

package tracer

import (
	"io"
	"net"

	"github.com/Microsoft/go-winio"
)

// pipePathFor returns the canonical Windows named-pipe path for name, in the
// `\\.\pipe\<name>` form.
func pipePathFor(name string) string {
	return `\\.\pipe\` + name
}

// winNamedPipeListener implements pipeListener over a Windows named pipe,
// with a single Accept for one record session.
type winNamedPipeListener struct {
	listener net.Listener
}

func createPipe(path string) (pipeListener, error) {
	cfg := winio.PipeConfig{
		SecurityDescriptor: "",
		MessageMode:        false,
		InputBufferSize:    65536,
		OutputBufferSize:   65536,
	}
	listener, err := winio.ListenPipe(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &winNamedPipeListener{listener: listener}, nil
}

func (l *winNamedPipeListener) Accept() (io.ReadCloser, error) {
	conn, err := l.listener.Accept()
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (l *winNamedPipeListener) Close() error {
	return l.listener.Close()
}
