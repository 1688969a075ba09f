//go:build windows

package ipc

import (
	"context"
	"io"
	"net"

	"github.com/Microsoft/go-winio"
)

// EndpointAddress returns the named pipe path for name
func EndpointAddress(name string) string {
	return `\\.\pipe\` + name
}

func dialEndpoint(ctx context.Context, address string) (io.ReadCloser, error) {
	return winio.DialPipeContext(ctx, address)
}

// Listen creates the endpoint on the serving side
func Listen(name string) (net.Listener, error) {
	return winio.ListenPipe(EndpointAddress(name), &winio.PipeConfig{
		InputBufferSize:  64 * 1024,
		OutputBufferSize: 64 * 1024,
	})
}
