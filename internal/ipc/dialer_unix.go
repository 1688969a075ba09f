//go:build !windows

package ipc

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
)

// EndpointAddress returns the unix socket path for name.
// Absolute paths are used as given.
func EndpointAddress(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(os.TempDir(), name+".sock")
}

func dialEndpoint(ctx context.Context, address string) (io.ReadCloser, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", address)
}

// Listen creates the endpoint on the serving side, replacing a stale socket
func Listen(name string) (net.Listener, error) {
	address := EndpointAddress(name)
	if _, err := os.Stat(address); err == nil {
		_ = os.Remove(address)
	}
	return net.Listen("unix", address)
}
