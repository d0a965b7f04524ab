package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"unicode/utf8"
)

// ErrInvalidUTF8 is returned by Text when the body is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("httpclient: response body is not valid utf-8")

// Bytes reads the whole response body into memory and closes it.
func Bytes(ctx context.Context, resp *Response) ([]byte, error) {
	defer resp.Close()

	var buf bytes.Buffer
	for chunk, err := range resp.Body.Chunks(ctx) {
		if err != nil {
			return nil, fmt.Errorf("reading response body: %w", err)
		}
		buf.Write(chunk)
	}
	return buf.Bytes(), nil
}

// Text reads the whole response body as a UTF-8 string.
func Text(ctx context.Context, resp *Response) (string, error) {
	data, err := Bytes(ctx, resp)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", ErrInvalidUTF8
	}
	return string(data), nil
}

// DecodeJSON reads the whole response body and decodes it as one JSON value.
func DecodeJSON[T any](ctx context.Context, resp *Response) (T, error) {
	var out T

	data, err := Bytes(ctx, resp)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decoding response body: %w", err)
	}
	return out, nil
}

// Chunks exposes the response body as raw chunks. The body is closed when
// the sequence ends or the consumer stops ranging.
func Chunks(ctx context.Context, resp *Response) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		defer resp.Close()
		for chunk, err := range resp.Body.Chunks(ctx) {
			if !yield(chunk, err) {
				return
			}
		}
	}
}

// JSONChunks decodes every chunk of the response body as its own JSON value.
// This only suits servers that flush one complete value per write and keep
// each value under body.ChunkSize; a decode failure ends the sequence.
func JSONChunks[T any](ctx context.Context, resp *Response) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for chunk, err := range Chunks(ctx, resp) {
			var item T
			if err == nil {
				if jerr := json.Unmarshal(chunk, &item); jerr != nil {
					err = fmt.Errorf("decoding response chunk: %w", jerr)
				}
			}
			if !yield(item, err) || err != nil {
				return
			}
		}
	}
}
