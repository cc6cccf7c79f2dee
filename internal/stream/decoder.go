// Package stream decodes server-sent event bodies into discrete frames.
//
// The framing is the one the analysis backend emits: `\n`-separated lines,
// payload lines prefixed with `data: ` carrying one JSON object. The decoder
// is a pure framing layer; the only schema knowledge it has is the payload's
// own `type` field.
package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/astrashare/astra/internal/log"
)

// dataPrefix marks a payload-carrying line.
const dataPrefix = "data: "

// Frame is one decoded (type, payload) unit extracted from a stream body.
type Frame struct {
	// Type is the value of the payload's own `type` field ("" if absent).
	Type string
	// Payload is the raw JSON of the full frame payload.
	Payload json.RawMessage
}

// DecoderConfig is the configuration for a Decoder.
type DecoderConfig struct {
	// Reader is the raw stream body.
	Reader io.Reader
	// Logger for logging.
	Logger log.Logger
}

func (c *DecoderConfig) defaults() error {
	if c.Reader == nil {
		return fmt.Errorf("reader is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "stream.Decoder"})
	return nil
}

// Decoder turns a raw byte stream into an ordered sequence of frames,
// tolerating arbitrary chunk boundaries. A line that is malformed JSON is
// logged and skipped; it never aborts the stream.
type Decoder struct {
	reader *bufio.Reader
	logger log.Logger
}

// NewDecoder creates a new frame decoder over a stream body.
func NewDecoder(cfg DecoderConfig) (*Decoder, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Decoder{
		reader: bufio.NewReader(cfg.Reader),
		logger: cfg.Logger,
	}, nil
}

// typeProbe extracts the payload's self-declared type.
type typeProbe struct {
	Type string `json:"type"`
}

// Next returns the next decoded frame. It returns io.EOF when the underlying
// source is exhausted. A trailing line with no terminating newline is assumed
// abandoned and is discarded, never parsed.
func (d *Decoder) Next() (*Frame, error) {
	for {
		line, err := d.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				// Unterminated tail, if any, is dropped.
				return nil, io.EOF
			}
			return nil, fmt.Errorf("could not read stream: %w", err)
		}

		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}

		payload := []byte(strings.TrimPrefix(line, dataPrefix))

		var probe typeProbe
		if err := json.Unmarshal(payload, &probe); err != nil {
			// One corrupt frame must not abort the stream.
			d.logger.Debugf("Dropping malformed frame: %s", err)
			continue
		}

		return &Frame{Type: probe.Type, Payload: json.RawMessage(payload)}, nil
	}
}
