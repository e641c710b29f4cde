package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yungbote/crm-gateway/internal/crm"
	"github.com/yungbote/crm-gateway/internal/gateway/config"
)

func mockConfig() *config.Config {
	jitter := 0.0
	return &config.Config{
		Env:  "test",
		HTTP: config.HTTPConfig{Addr: "127.0.0.1:0", ShutdownTimeout: config.Duration{Duration: time.Second}},
		Customers: config.CustomersConfig{
			Type: "mock",
			Mock: []config.MockCustomer{{ID: 1, Name: "Alice"}, {ID: 2, Name: "Bob"}},
			Retry: config.RetryConfig{
				MaxAttempts:    3,
				InitialBackoff: config.Duration{Duration: time.Millisecond},
				MaxBackoff:     config.Duration{Duration: 2 * time.Millisecond},
				Multiplier:     2,
				Jitter:         &jitter,
			},
		},
		Orders: config.OrdersConfig{
			Type: "mock",
			Mock: []config.MockOrder{{ID: 10, CustomerID: 1}},
		},
		Telemetry: config.TelemetryConfig{ServiceName: "crm-gateway-test"},
	}
}

func TestAppServesCustomerOrders(t *testing.T) {
	a, err := NewWithConfig(mockConfig(), nil, nil)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	defer a.Close()

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cos", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var recs []crm.CustomerOrders
	if err := json.Unmarshal(rec.Body.Bytes(), &recs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("recs=%+v", recs)
	}
}

func TestRetryPolicyFromConfig(t *testing.T) {
	p := retryPolicy(mockConfig().Customers.Retry)
	if p.MaxAttempts != 3 || p.InitialInterval != time.Millisecond || p.MaxInterval != 2*time.Millisecond || p.Jitter != 0 {
		t.Fatalf("policy=%+v", p)
	}
	if d := retryPolicy(config.RetryConfig{}); d.Jitter != crm.DefaultRetryPolicy().Jitter {
		t.Fatalf("default jitter=%v", d.Jitter)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	a, err := NewWithConfig(mockConfig(), nil, nil)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return")
	}
}

func TestRunReportsListenError(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	cfg := mockConfig()
	cfg.HTTP.Addr = lis.Addr().String()
	a, err := NewWithConfig(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	defer a.Close()

	if err := a.Run(context.Background()); err == nil {
		t.Fatalf("expected address in use error")
	}
}

func TestNewWithConfigRejectsUnknownUpstream(t *testing.T) {
	cfg := mockConfig()
	cfg.Orders.Type = "carrier-pigeon"
	if _, err := NewWithConfig(cfg, nil, nil); err == nil {
		t.Fatalf("expected error")
	}
}
