// Package upstream builds the customer and order sources named by config.
package upstream

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/yungbote/crm-gateway/internal/crm"
	"github.com/yungbote/crm-gateway/internal/gateway/config"
	"github.com/yungbote/crm-gateway/internal/gateway/upstream/customers"
	"github.com/yungbote/crm-gateway/internal/gateway/upstream/mock"
	"github.com/yungbote/crm-gateway/internal/gateway/upstream/orders"
	"github.com/yungbote/crm-gateway/internal/gateway/upstream/sqlsource"
)

type CustomerSource interface {
	crm.CustomerSource
	io.Closer
}

type OrderSource interface {
	crm.OrderSource
	io.Closer
}

// Upstreams owns both sources; Close releases their connections.
type Upstreams struct {
	Customers CustomerSource
	Orders    OrderSource
}

func New(cfg *config.Config) (*Upstreams, error) {
	cs, err := newCustomers(cfg.Customers)
	if err != nil {
		return nil, err
	}
	ords, err := newOrders(cfg.Orders)
	if err != nil {
		_ = cs.Close()
		return nil, err
	}
	return &Upstreams{Customers: cs, Orders: ords}, nil
}

func newCustomers(cfg config.CustomersConfig) (CustomerSource, error) {
	switch kind(cfg.Type) {
	case "mock":
		return mock.NewCustomers(cfg.Mock), nil
	case "http":
		return customers.New(cfg)
	case "sql":
		return sqlsource.OpenCustomers(cfg.SQL)
	default:
		return nil, fmt.Errorf("unsupported customers type %q", cfg.Type)
	}
}

func newOrders(cfg config.OrdersConfig) (OrderSource, error) {
	switch kind(cfg.Type) {
	case "mock":
		return mock.NewOrders(cfg.Mock), nil
	case "grpc":
		return orders.NewGRPC(cfg)
	case "http":
		return orders.NewHTTP(cfg)
	case "sql":
		return sqlsource.OpenOrders(cfg.SQL)
	default:
		return nil, fmt.Errorf("unsupported orders type %q", cfg.Type)
	}
}

func kind(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

func (u *Upstreams) Close() error {
	var errs []error
	if u.Customers != nil {
		if err := u.Customers.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close customers: %w", err))
		}
	}
	if u.Orders != nil {
		if err := u.Orders.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close orders: %w", err))
		}
	}
	return errors.Join(errs...)
}
