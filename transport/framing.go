package transport

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sync"
)

// Framing decides how a streaming body is cut into chunks.
type Framing uint8

const (
	// FramingChunk yields whatever each read of the body returns, at most
	// MaxChunkSize bytes per read. A message split across two reads, or larger
	// than MaxChunkSize even when sent in one write, arrives as several chunks
	// that each fail to decode. Use FramingLine for messages of any size.
	FramingChunk Framing = iota
	// FramingLine reassembles newline-delimited messages across reads and
	// skips blank lines.
	FramingLine
)

func (f Framing) String() string {
	switch f {
	case FramingChunk:
		return "chunk"
	case FramingLine:
		return "line"
	default:
		return fmt.Sprintf("framing(%d)", uint8(f))
	}
}

// ParseFraming maps "chunk" or "line" to a Framing.
func ParseFraming(s string) (Framing, error) {
	switch s {
	case "chunk", "":
		return FramingChunk, nil
	case "line":
		return FramingLine, nil
	default:
		return 0, fmt.Errorf("transport: unknown framing %q", s)
	}
}

// MaxChunkSize is the largest chunk FramingChunk yields.
const MaxChunkSize = 64 << 10

// NewChunks wraps body according to framing.
func NewChunks(body io.ReadCloser, framing Framing) Chunks {
	if framing == FramingLine {
		return &lineChunks{closer: closer{body: body}, r: bufio.NewReader(body)}
	}
	return &readChunks{closer: closer{body: body}, buf: make([]byte, MaxChunkSize)}
}

// closer makes Close idempotent.
type closer struct {
	body     io.ReadCloser
	once     sync.Once
	closeErr error
}

func (c *closer) Close() error {
	c.once.Do(func() { c.closeErr = c.body.Close() })
	return c.closeErr
}

// readChunks yields one chunk per Read call.
type readChunks struct {
	closer
	buf []byte
	err error // sticky
}

func (r *readChunks) Next() ([]byte, error) {
	for r.err == nil {
		n, err := r.body.Read(r.buf)
		if err != nil {
			r.err = err
		}
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, r.buf[:n])
			return chunk, nil
		}
	}
	return nil, r.err
}

// lineChunks yields one chunk per non-blank line.
type lineChunks struct {
	closer
	r   *bufio.Reader
	err error
}

func (l *lineChunks) Next() ([]byte, error) {
	for l.err == nil {
		line, err := l.r.ReadBytes('\n')
		if err != nil {
			l.err = err
		}
		line = bytes.TrimRight(line, "\r\n")
		if len(bytes.TrimSpace(line)) > 0 {
			return line, nil
		}
	}
	return nil, l.err
}
