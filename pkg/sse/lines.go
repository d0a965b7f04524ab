package sse

import (
	"bytes"
	"context"
	"errors"
	"io"
)

// ChunkSource produces byte chunks; body.ChunkReader is the usual one.
// Next returns io.EOF at a clean end.
type ChunkSource interface {
	Next(ctx context.Context) ([]byte, error)
}

// LineReader reassembles lines from chunks whose boundaries have nothing to do
// with line boundaries. A line ends at "\n"; the "\n" and one "\r" right
// before it are stripped.
//
// Bytes left over without a terminator when the source ends are dropped, not
// returned as a final line: a stream that stops mid-line is treated as
// truncated. The dropped bytes are available from Discarded.
type LineReader struct {
	src       ChunkSource
	buf       []byte
	discarded []byte
	done      bool
}

// NewLineReader returns a LineReader pulling chunks from src.
func NewLineReader(src ChunkSource) *LineReader {
	return &LineReader{src: src}
}

// Next returns the next complete line. Every line already buffered is
// returned before another chunk is pulled. Next returns io.EOF once the
// source ends; a source failure is returned once, dropping any partial line,
// and io.EOF follows.
func (r *LineReader) Next(ctx context.Context) (string, error) {
	for {
		if r.done {
			return "", io.EOF
		}

		if i := bytes.IndexByte(r.buf, '\n'); i >= 0 {
			line := bytes.TrimSuffix(r.buf[:i], []byte{'\r'})
			r.buf = r.buf[i+1:]
			return string(line), nil
		}

		chunk, err := r.src.Next(ctx)
		if err != nil {
			r.done = true
			r.discarded = r.buf
			r.buf = nil
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", err
		}

		r.buf = append(r.buf, chunk...)
	}
}

// Discarded returns the unterminated bytes dropped when the source ended or
// failed. It is nil before then.
func (r *LineReader) Discarded() []byte {
	return r.discarded
}
