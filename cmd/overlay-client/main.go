package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd creates the overlay console. It prints every translation the
// bridge pushes and turns typed commands into control messages.
func newRootCmd() *cobra.Command {
	var server, token string

	cmd := &cobra.Command{
		Use:           "overlay-client",
		Short:         "Console overlay for the translation bridge",
		Long:          "overlay-client connects to the bridge websocket and prints translations.\nType on, off or retry to control the bridge, quit to exit.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, server, token, os.Stdin, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&server, "server", "ws://localhost:8080/ws", "bridge websocket URL")
	cmd.Flags().StringVar(&token, "token", os.Getenv("BRIDGE_TOKEN"), "overlay or control token")

	return cmd
}

func dial(ctx context.Context, server, token string) (*websocket.Conn, error) {
	u, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket connection failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket connection failed: %w", err)
	}
	return conn, nil
}

func run(ctx context.Context, server, token string, in io.Reader, out io.Writer) error {
	conn, err := dial(ctx, server, token)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Fprintf(out, "✓ Connected to %s\n", server)

	done := make(chan error, 1)
	go func() {
		done <- readLoop(conn, out)
	}()

	commands := make(chan string)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			commands <- strings.TrimSpace(scanner.Text())
		}
		close(commands)
	}()

	for {
		select {
		case <-ctx.Done():
			return closeConn(conn)

		case err := <-done:
			return err

		case line, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			if line == "quit" {
				return closeConn(conn)
			}
			msg, err := commandMessage(line)
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			if msg == nil {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				return fmt.Errorf("failed to send command: %w", err)
			}
		}
	}
}

func closeConn(conn *websocket.Conn) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return nil
}

func readLoop(conn *websocket.Conn, out io.Writer) error {
	for {
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		}
		fmt.Fprintln(out, formatMessage(msg))
	}
}

// commandMessage maps a typed command to a control message. Blank input
// yields nil.
func commandMessage(line string) (map[string]interface{}, error) {
	switch strings.ToLower(line) {
	case "":
		return nil, nil
	case "on":
		return map[string]interface{}{"type": "set_translation", "enabled": true}, nil
	case "off":
		return map[string]interface{}{"type": "set_translation", "enabled": false}, nil
	case "retry":
		return map[string]interface{}{"type": "retrigger"}, nil
	case "ping":
		return map[string]interface{}{"type": "ping", "data": "overlay-client"}, nil
	default:
		return nil, fmt.Errorf("unknown command %q (on, off, retry, ping, quit)", line)
	}
}

func formatMessage(msg map[string]interface{}) string {
	switch msg["type"] {
	case "translation":
		return fmt.Sprintf("💬 %v", msg["text"])
	case "status":
		return fmt.Sprintf("ℹ connected=%v health=%v translation=%v", msg["connected"], msg["health"], msg["translation_enabled"])
	case "ack":
		return fmt.Sprintf("✓ %v ok=%v %v", msg["action"], msg["ok"], valueOrEmpty(msg["detail"]))
	case "error":
		return fmt.Sprintf("✗ %v: %v", msg["error_code"], msg["message"])
	case "pong":
		return "✓ pong"
	default:
		return fmt.Sprintf("? %v", msg)
	}
}

func valueOrEmpty(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
