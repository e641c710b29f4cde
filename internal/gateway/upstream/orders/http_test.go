package orders

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yungbote/crm-gateway/internal/gateway/config"
	"github.com/yungbote/crm-gateway/internal/pkg/httpx"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func TestHTTPStreamOrders(t *testing.T) {
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.URL.Path != "/customers/5/orders" {
				t.Fatalf("path=%s", req.URL.Path)
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
				Body:       io.NopCloser(strings.NewReader("data: {\"id\":50,\"customerId\":5}\n\ndata: [DONE]\n\n")),
			}, nil
		}),
	}
	c, err := NewHTTPWithClient(config.OrdersConfig{BaseURL: "http://orders"}, client)
	if err != nil {
		t.Fatalf("NewHTTPWithClient: %v", err)
	}

	got, err := drain(context.Background(), c, 5)
	if err != nil {
		t.Fatalf("StreamOrders: %v", err)
	}
	if len(got) != 1 || got[0].ID != 50 || got[0].CustomerID != 5 {
		t.Fatalf("got=%+v", got)
	}
}

func TestHTTPStreamOrdersFromServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/orders/1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `[{"id":10,"customerId":1}]`)
		default:
			http.Error(w, "no such customer", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c, err := NewHTTP(config.OrdersConfig{BaseURL: srv.URL, PathTemplate: "v2/orders/{customerId}"})
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	defer c.Close()

	got, err := drain(context.Background(), c, 1)
	if err != nil {
		t.Fatalf("StreamOrders: %v", err)
	}
	if len(got) != 1 || got[0].ID != 10 {
		t.Fatalf("got=%+v", got)
	}

	_, err = drain(context.Background(), c, 2)
	var he *httpx.HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusNotFound {
		t.Fatalf("err=%v", err)
	}
}

func TestNewHTTPValidates(t *testing.T) {
	if _, err := NewHTTP(config.OrdersConfig{}); err == nil {
		t.Fatalf("expected base_url error")
	}
	if _, err := NewHTTP(config.OrdersConfig{BaseURL: "http://x", PathTemplate: "/orders"}); err == nil {
		t.Fatalf("expected template error")
	}
}
