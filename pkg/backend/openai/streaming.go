package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"mercator-hq/ganymede/pkg/backend"
)

// errStreamDone signals normal end of stream to the adapter's read loop.
var errStreamDone = errors.New("stream done")

// streamReader reads Server-Sent Events from an OpenAI-compatible streaming
// endpoint.
type streamReader struct {
	base    *backend.HTTPBackend
	body    io.ReadCloser
	scanner *bufio.Scanner
	closed  bool
}

// newStreamReader opens the streaming request and wraps its body in an SSE
// line scanner.
func newStreamReader(ctx context.Context, base *backend.HTTPBackend, url string, req *chatRequest, headers map[string]string) (*streamReader, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := base.DoRequest(ctx, http.MethodPost, url, bodyBytes, headers)
	if err != nil {
		return nil, err
	}

	return &streamReader{
		base:    base,
		body:    resp.Body,
		scanner: bufio.NewScanner(resp.Body),
	}, nil
}

// Read returns the next chunk from the stream. It returns errStreamDone when
// the stream ends normally.
func (s *streamReader) Read(ctx context.Context) (*backend.Chunk, error) {
	if s.closed {
		return nil, errStreamDone
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, &backend.StreamError{
					Backend: s.base.Name(),
					Message: "failed to read stream",
					Cause:   err,
				}
			}
			return nil, errStreamDone
		}

		line := s.scanner.Text()
		if line == "" {
			continue
		}

		// Only data lines carry chunks; comments and event lines are skipped.
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		if data == "[DONE]" {
			return nil, errStreamDone
		}

		var resp streamResponse
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			return nil, &backend.ParseError{
				Backend:     s.base.Name(),
				RawResponse: data,
				Cause:       fmt.Errorf("failed to parse stream chunk: %w", err),
			}
		}

		chunk, err := transformStreamChunk(&resp)
		if err != nil {
			return nil, &backend.ParseError{
				Backend: s.base.Name(),
				Cause:   err,
			}
		}

		// Empty keepalive chunks carry nothing; usage-only trailers are
		// surfaced so token accounting reaches the caller.
		if chunk.Delta == "" && chunk.FinishReason == "" && chunk.Usage == nil {
			continue
		}

		return chunk, nil
	}
}

// Close closes the underlying response body.
func (s *streamReader) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
