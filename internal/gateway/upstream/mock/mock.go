// Package mock serves fixed customers and orders from config, for local runs and tests.
package mock

import (
	"context"

	"github.com/yungbote/crm-gateway/internal/crm"
	"github.com/yungbote/crm-gateway/internal/gateway/config"
)

type Customers struct {
	customers []crm.Customer
}

func NewCustomers(fixtures []config.MockCustomer) *Customers {
	out := make([]crm.Customer, 0, len(fixtures))
	for _, f := range fixtures {
		out = append(out, crm.Customer{ID: f.ID, Name: f.Name})
	}
	return &Customers{customers: out}
}

var _ crm.CustomerSource = (*Customers)(nil)

func (c *Customers) StreamCustomers(ctx context.Context, onCustomer func(crm.Customer) error) error {
	for _, cu := range c.customers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onCustomer(cu); err != nil {
			return err
		}
	}
	return nil
}

func (c *Customers) Close() error { return nil }

// Orders answers with the fixtures whose customerId matches the request.
type Orders struct {
	byCustomer map[int][]crm.Order
}

func NewOrders(fixtures []config.MockOrder) *Orders {
	by := make(map[int][]crm.Order)
	for _, f := range fixtures {
		by[f.CustomerID] = append(by[f.CustomerID], crm.Order{ID: f.ID, CustomerID: f.CustomerID})
	}
	return &Orders{byCustomer: by}
}

var _ crm.OrderSource = (*Orders)(nil)

func (o *Orders) StreamOrders(ctx context.Context, customerID int, onOrder func(crm.Order) error) error {
	for _, ord := range o.byCustomer[customerID] {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onOrder(ord); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orders) Close() error { return nil }
