package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"
)

// DefaultPipeName is the endpoint the game plugin creates
const DefaultPipeName = "mbb_dalamud_bridge"

// endpointPollInterval is how often an absent endpoint is re-checked while
// waiting for it to appear.
const endpointPollInterval = 100 * time.Millisecond

// Dialer opens the plugin endpoint for reading
type Dialer interface {
	Dial(ctx context.Context) (io.ReadCloser, error)
}

// DialerFunc adapts a function to the Dialer interface
type DialerFunc func(ctx context.Context) (io.ReadCloser, error)

// Dial implements Dialer
func (f DialerFunc) Dial(ctx context.Context) (io.ReadCloser, error) {
	return f(ctx)
}

// NewPipeDialer returns the platform dialer for the named endpoint
func NewPipeDialer(name string) Dialer {
	if name == "" {
		name = DefaultPipeName
	}
	return &pipeDialer{address: EndpointAddress(name)}
}

type pipeDialer struct {
	address string
}

// Dial waits for the endpoint to exist until ctx expires, then opens it
func (d *pipeDialer) Dial(ctx context.Context) (io.ReadCloser, error) {
	var lastErr error
	for {
		conn, err := dialEndpoint(ctx, d.address)
		if err == nil {
			return conn, nil
		}
		if !endpointAbsent(err) {
			return nil, fmt.Errorf("failed to open endpoint %s: %w", d.address, err)
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("endpoint %s not available: %w", d.address, lastErr)
		case <-time.After(endpointPollInterval):
		}
	}
}

// endpointAbsent reports errors meaning "nobody is serving yet"
func endpointAbsent(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED)
}
