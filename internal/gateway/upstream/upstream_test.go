package upstream

import (
	"testing"

	"github.com/yungbote/crm-gateway/internal/gateway/config"
	"github.com/yungbote/crm-gateway/internal/gateway/upstream/customers"
	"github.com/yungbote/crm-gateway/internal/gateway/upstream/mock"
	"github.com/yungbote/crm-gateway/internal/gateway/upstream/orders"
)

func TestNewSelectsTransports(t *testing.T) {
	cfg := &config.Config{
		Customers: config.CustomersConfig{Type: "HTTP", BaseURL: "http://customers"},
		Orders:    config.OrdersConfig{Type: "grpc", Target: "localhost:8181", Route: "orders.{customerId}"},
	}
	u, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer u.Close()

	if _, ok := u.Customers.(*customers.Client); !ok {
		t.Fatalf("customers=%T", u.Customers)
	}
	if _, ok := u.Orders.(*orders.GRPCClient); !ok {
		t.Fatalf("orders=%T", u.Orders)
	}
}

func TestNewMockAndHTTPOrders(t *testing.T) {
	cfg := &config.Config{
		Customers: config.CustomersConfig{Type: "mock"},
		Orders:    config.OrdersConfig{Type: "http", BaseURL: "http://orders"},
	}
	u, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := u.Customers.(*mock.Customers); !ok {
		t.Fatalf("customers=%T", u.Customers)
	}
	if _, ok := u.Orders.(*orders.HTTPClient); !ok {
		t.Fatalf("orders=%T", u.Orders)
	}
	if err := u.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewRejectsUnknownType(t *testing.T) {
	if _, err := New(&config.Config{Customers: config.CustomersConfig{Type: "ftp"}}); err == nil {
		t.Fatalf("expected customers error")
	}
	cfg := &config.Config{
		Customers: config.CustomersConfig{Type: "mock"},
		Orders:    config.OrdersConfig{Type: "kafka"},
	}
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected orders error")
	}
}
