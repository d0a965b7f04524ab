package body

import (
	"context"
	"errors"
	"io"
	"iter"
)

// ChunkSize is the size of the scratch buffer a ChunkReader reads into.
// Chunks are at most this long and usually shorter.
const ChunkSize = 1024

// ChunkReader pulls a Body apart into byte chunks, one read per chunk.
// The sequence it produces is finite and cannot be restarted: after a clean
// end or after the first read failure every call returns io.EOF.
type ChunkReader struct {
	body    *Body
	scratch []byte
	done    bool
}

// NewChunkReader returns a ChunkReader that consumes b.
func NewChunkReader(b *Body) *ChunkReader {
	return &ChunkReader{
		body:    b,
		scratch: make([]byte, ChunkSize),
	}
}

// Next returns the next non-empty chunk. The returned slice is owned by the
// caller. Next returns io.EOF at the end of the body; any other error is
// returned exactly once and ends the sequence.
func (r *ChunkReader) Next(ctx context.Context) ([]byte, error) {
	if r.done {
		return nil, io.EOF
	}

	n, err := r.body.ReadContext(ctx, r.scratch)
	if err != nil {
		r.done = true
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	if n == 0 {
		// A zero-length read is the end of the body.
		r.done = true
		return nil, io.EOF
	}

	chunk := make([]byte, n)
	copy(chunk, r.scratch[:n])
	return chunk, nil
}

// Chunks returns the body as a sequence of chunks. A failed read is yielded
// once as the final item. Ranging over the sequence consumes the body.
//
//	for chunk, err := range b.Chunks(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    process(chunk)
//	}
func (b *Body) Chunks(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		r := NewChunkReader(b)
		for {
			chunk, err := r.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(chunk, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}
