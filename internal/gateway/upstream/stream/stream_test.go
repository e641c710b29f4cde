package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/crm-gateway/internal/pkg/httpx"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

type item struct {
	ID int `json:"id"`
}

func collect(t *testing.T, body string, contentType string) ([]int, error) {
	t.Helper()
	var ids []int
	err := Decode(strings.NewReader(body), contentType, func(v item) error {
		ids = append(ids, v.ID)
		return nil
	})
	return ids, err
}

func TestDecodeFormats(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
		body        string
		want        []int
	}{
		{"array", "application/json", `[{"id":1},{"id":2},{"id":3}]`, []int{1, 2, 3}},
		{"array with whitespace", "application/json; charset=utf-8", "\n  [ {\"id\":1} ,\n {\"id\":2} ]\n", []int{1, 2}},
		{"empty array", "application/json", `[]`, nil},
		{"empty body", "application/json", "", nil},
		{"ndjson", "application/x-ndjson", "{\"id\":4}\n{\"id\":5}\n", []int{4, 5}},
		{"ndjson without type", "", "{\"id\":6}\n\n{\"id\":7}", []int{6, 7}},
		{"sse", "text/event-stream", "data: {\"id\":8}\n\n: keepalive\n\ndata: {\"id\":9}\n\ndata: [DONE]\n\n", []int{8, 9}},
		{"sse named events", "text/event-stream; charset=utf-8", "event: customer\ndata: {\"id\":10}\n\n", []int{10}},
		{"sse without trailing blank line", "text/event-stream", "data: {\"id\":11}\n", []int{11}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := collect(t, tc.body, tc.contentType)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got=%v want=%v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got=%v want=%v", got, tc.want)
				}
			}
		})
	}
}

func TestDecodeSSEFraming(t *testing.T) {
	body := "event: customer\r\ndata: {\"id\":\r\ndata: 12}\r\n\r\nretry: 1000\r\ndata:{\"id\":13}\r\n\r\n"
	got, err := collect(t, body, "text/event-stream")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 2 || got[0] != 12 || got[1] != 13 {
		t.Fatalf("got=%v", got)
	}
}

func TestDecodeSSEOversizedLine(t *testing.T) {
	body := "data: " + strings.Repeat("x", maxEventSize+1) + "\n\n"
	if _, err := collect(t, body, "text/event-stream"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDecodeTruncatedArray(t *testing.T) {
	got, err := collect(t, `[{"id":1},{"id":2}`, "application/json")
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("err=%v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got=%v", got)
	}
}

func TestDecodeMalformedValue(t *testing.T) {
	if _, err := collect(t, "{\"id\":1}\n{\"id\":", "application/x-ndjson"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := collect(t, "data: {nope}\n\n", "text/event-stream"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDecodeSSEErrorEvent(t *testing.T) {
	body := "data: {\"id\":1}\n\nevent: error\ndata: {\"message\":\"orders backend down\"}\n\n"
	got, err := collect(t, body, "text/event-stream")
	if err == nil || !strings.Contains(err.Error(), "orders backend down") {
		t.Fatalf("err=%v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got=%v", got)
	}
}

func TestDecodeStopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := Decode(strings.NewReader(`[{"id":1},{"id":2}]`), "application/json", func(item) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("err=%v", err)
	}
	if calls != 1 {
		t.Fatalf("calls=%d", calls)
	}
}

func TestGet(t *testing.T) {
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if got := req.Header.Get("Authorization"); got != "Bearer k" {
				t.Fatalf("authorization=%q", got)
			}
			if got := req.Header.Get("Accept"); got != Accept {
				t.Fatalf("accept=%q", got)
			}
			if _, ok := req.Context().Deadline(); !ok {
				t.Fatalf("expected deadline")
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": []string{"application/x-ndjson"}},
				Body:       io.NopCloser(bytes.NewReader([]byte("{\"id\":1}\n{\"id\":2}\n"))),
			}, nil
		}),
	}

	var ids []int
	err := Get(context.Background(), client, "http://upstream/items", "k", time.Second, func(v item) error {
		ids = append(ids, v.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("ids=%v", ids)
	}
}

func TestGetNonSuccess(t *testing.T) {
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusServiceUnavailable,
				Header:     http.Header{"Content-Type": []string{"text/plain"}},
				Body:       io.NopCloser(strings.NewReader("try later\n")),
			}, nil
		}),
	}

	err := Get(context.Background(), client, "http://upstream/items", "", 0, func(item) error {
		t.Fatalf("unexpected value")
		return nil
	})
	var he *httpx.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("err=%v", err)
	}
	if he.StatusCode != http.StatusServiceUnavailable || he.Body != "try later" {
		t.Fatalf("he=%+v", he)
	}
	var coder httpx.HTTPStatusCoder = he
	if coder.HTTPStatusCode() != http.StatusServiceUnavailable {
		t.Fatalf("code=%d", coder.HTTPStatusCode())
	}
}
