// Package stream decodes streamed JSON bodies: a JSON array, newline-delimited JSON, or
// server-sent events whose data lines carry one JSON value each.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/crm-gateway/internal/pkg/httpx"
)

// Accept is sent by clients that can decode every supported body format.
const Accept = "application/x-ndjson, application/json;q=0.9, text/event-stream;q=0.8"

// maxEventSize bounds a single SSE line.
const maxEventSize = 1 << 20

// Decode calls fn for every value in r. contentType selects SSE parsing; anything else is JSON.
// An error returned by fn stops decoding and is returned unchanged.
func Decode[T any](r io.Reader, contentType string, fn func(T) error) error {
	if isEventStream(contentType) {
		return decodeSSE(r, fn)
	}
	return decodeJSON(r, fn)
}

func isEventStream(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.EqualFold(mt, "text/event-stream")
}

func decodeJSON[T any](r io.Reader, fn func(T) error) error {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}

	dec := json.NewDecoder(br)
	if first == '[' {
		if _, err := dec.Token(); err != nil {
			return err
		}
		for dec.More() {
			var v T
			if err := dec.Decode(&v); err != nil {
				return fmt.Errorf("decode element: %w", err)
			}
			if err := fn(v); err != nil {
				return err
			}
		}
		if _, err := dec.Token(); err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("unterminated JSON array: %w", io.ErrUnexpectedEOF)
			}
			return err
		}
		return nil
	}

	for {
		var v T
		if err := dec.Decode(&v); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode value: %w", err)
		}
		if err := fn(v); err != nil {
			return err
		}
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			_, _ = br.ReadByte()
		default:
			return b[0], nil
		}
	}
}

// sseEvent accumulates the fields of one server-sent event until its terminating blank line.
type sseEvent struct {
	name string
	data []string
}

func decodeSSE[T any](r io.Reader, fn func(T) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var ev sseEvent
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if line == "" {
			if err := dispatchSSE(ev, fn); err != nil {
				return err
			}
			ev = sseEvent{}
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimSpace(value)
		switch field {
		case "event":
			ev.name = value
		case "data":
			ev.data = append(ev.data, value)
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return dispatchSSE(ev, fn)
}

func dispatchSSE[T any](ev sseEvent, fn func(T) error) error {
	data := strings.TrimSpace(strings.Join(ev.data, "\n"))
	if data == "" || data == "[DONE]" {
		return nil
	}
	if strings.EqualFold(ev.name, "error") {
		var env struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(data), &env); err == nil && strings.TrimSpace(env.Message) != "" {
			data = strings.TrimSpace(env.Message)
		}
		return fmt.Errorf("upstream stream error: %s", data)
	}
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	return fn(v)
}

// Get issues a GET to url and decodes the streamed body into fn.
// A positive timeout bounds the whole exchange, body included.
func Get[T any](ctx context.Context, client *http.Client, url string, apiKey string, timeout time.Duration, fn func(T) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	httpx.SetHeaders(req, Accept, apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := httpx.CheckResponse(resp); err != nil {
		return err
	}
	return Decode(resp.Body, resp.Header.Get("Content-Type"), fn)
}
