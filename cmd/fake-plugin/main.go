package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iarcanar99/MBB-Dalamud-sub001/internal/ipc"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd creates the fake-plugin command. It serves the plugin endpoint
// and replays JSON lines to every client that connects.
func newRootCmd() *cobra.Command {
	var opts replayOptions
	var pipeName, file string

	cmd := &cobra.Command{
		Use:           "fake-plugin",
		Short:         "Emulate the game plugin endpoint",
		Long:          "fake-plugin listens on the plugin endpoint and writes newline-delimited\nJSON messages, either from a file or from a built-in sample set.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, _ := zap.NewDevelopment()
			defer logger.Sync()

			lines := sampleLines()
			if file != "" {
				loaded, err := loadLines(file)
				if err != nil {
					return err
				}
				lines = loaded
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			listener, err := ipc.Listen(pipeName)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", ipc.EndpointAddress(pipeName), err)
			}
			return serve(ctx, listener, lines, opts, logger)
		},
	}

	cmd.Flags().StringVar(&pipeName, "pipe", ipc.DefaultPipeName, "endpoint name")
	cmd.Flags().StringVar(&file, "file", "", "file with one JSON message per line (default: built-in samples)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 2*time.Second, "delay between messages")
	cmd.Flags().BoolVar(&opts.Loop, "loop", false, "replay forever")
	cmd.Flags().IntVar(&opts.ChunkSize, "chunk", 0, "split writes into chunks of this many bytes (0 writes whole lines)")

	return cmd
}

// serve accepts one client at a time, like the plugin's single-instance pipe
func serve(ctx context.Context, listener net.Listener, lines [][]byte, opts replayOptions, logger *zap.Logger) error {
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	logger.Info("Fake plugin listening", zap.String("address", listener.Addr().String()), zap.Int("messages", len(lines)))

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		logger.Info("Bridge connected")
		sent, err := replay(ctx, conn, lines, opts)
		conn.Close()
		if err != nil {
			logger.Warn("Bridge disconnected", zap.Int("sent", sent), zap.Error(err))
			continue
		}
		logger.Info("Replay finished", zap.Int("sent", sent))
	}
}
