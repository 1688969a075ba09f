package framing

import (
	"bytes"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"

	"github.com/iarcanar99/MBB-Dalamud-sub001/domain"
)

// Decoder turns a raw byte stream into newline-delimited plugin events.
// It is not safe for concurrent use; the read loop owns it.
type Decoder struct {
	buf    []byte
	logger *zap.Logger
}

// NewDecoder creates a new frame decoder
func NewDecoder(logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{logger: logger}
}

// Feed appends chunk to the internal buffer and returns every event whose
// terminating newline has now been seen, in stream order.
func (d *Decoder) Feed(chunk []byte) []domain.IngestEvent {
	d.buf = append(d.buf, chunk...)

	var events []domain.IngestEvent
	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			break
		}
		line := d.buf[:idx]
		if event, ok := d.decodeLine(line); ok {
			events = append(events, event)
		}
		d.buf = d.buf[idx+1:]
	}

	// Release the backing array once everything has been consumed
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return events
}

// Pending returns the number of buffered bytes waiting for a newline
func (d *Decoder) Pending() int {
	return len(d.buf)
}

// Reset drops any half-received frame
func (d *Decoder) Reset() {
	d.buf = nil
}

func (d *Decoder) decodeLine(raw []byte) (domain.IngestEvent, bool) {
	// UTF8BOM strips a leading BOM and replaces invalid sequences with U+FFFD
	line, err := unicode.UTF8BOM.NewDecoder().Bytes(raw)
	if err != nil {
		line = bytes.ToValidUTF8(raw, []byte("�"))
	}
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return domain.IngestEvent{}, false
	}

	event, err := domain.ParsePluginMessage(line)
	if err != nil {
		d.logger.Warn("Discarding malformed plugin line",
			zap.Int("length", len(line)),
			zap.Error(err))
		return domain.IngestEvent{}, false
	}

	if !event.Valid() {
		d.logger.Debug("Discarding event with empty text",
			zap.String("category", event.Category),
			zap.Int("chatCode", event.ChatCode))
		return domain.IngestEvent{}, false
	}

	return event, true
}
