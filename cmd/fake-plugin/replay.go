package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

type replayOptions struct {
	Interval  time.Duration
	Loop      bool
	ChunkSize int
}

type pluginMessage struct {
	Type      string `json:"Type"`
	Speaker   string `json:"Speaker"`
	Message   string `json:"Message"`
	Timestamp int64  `json:"Timestamp"`
	ChatType  int    `json:"ChatType"`
}

// sampleLines covers allowed and blocked chat codes, a cutscene line and a
// malformed line the bridge has to skip
func sampleLines() [][]byte {
	messages := []pluginMessage{
		{Type: "dialogue", Speaker: "Alphinaud", Message: "We must make haste to Limsa Lominsa.", ChatType: 61},
		{Type: "chat", Message: "You obtain a potion.", ChatType: 2857},
		{Type: "battle", Speaker: "Titan", Message: "Crushed beneath the earth!", ChatType: 68},
		{Type: "cutscene", Speaker: "Y'shtola", Message: "The aether here feels... wrong.", ChatType: 0},
		{Type: "system", Message: "You have entered a sanctuary.", ChatType: 57},
		{Type: "choice", Message: "I will help you.", ChatType: 71},
		{Type: "dialogue", Speaker: "Alphinaud", Message: "We must make haste to Limsa Lominsa.", ChatType: 61},
	}

	lines := make([][]byte, 0, len(messages)+1)
	for i, msg := range messages {
		msg.Timestamp = time.Now().Add(time.Duration(i) * time.Second).UnixMilli()
		line, _ := json.Marshal(msg)
		lines = append(lines, line)
		if i == 2 {
			lines = append(lines, []byte(`{"Type":"dialogue","Message":`))
		}
	}
	return lines
}

// loadLines reads non-empty lines from path
func loadLines(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		lines = append(lines, append([]byte(nil), line...))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}

// replay writes each line followed by a newline and returns how many lines
// were written
func replay(ctx context.Context, w io.Writer, lines [][]byte, opts replayOptions) (int, error) {
	sent := 0
	for {
		for _, line := range lines {
			frame := append(append([]byte(nil), line...), '\n')
			if err := writeChunked(w, frame, opts.ChunkSize); err != nil {
				return sent, err
			}
			sent++

			if opts.Interval > 0 {
				select {
				case <-ctx.Done():
					return sent, nil
				case <-time.After(opts.Interval):
				}
			} else if ctx.Err() != nil {
				return sent, nil
			}
		}
		if !opts.Loop || len(lines) == 0 {
			return sent, nil
		}
	}
}

func writeChunked(w io.Writer, frame []byte, size int) error {
	if size <= 0 {
		size = len(frame)
	}
	for len(frame) > 0 {
		n := size
		if n > len(frame) {
			n = len(frame)
		}
		if _, err := w.Write(frame[:n]); err != nil {
			return err
		}
		frame = frame[n:]
	}
	return nil
}
