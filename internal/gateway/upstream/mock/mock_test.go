package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/crm-gateway/internal/crm"
	"github.com/yungbote/crm-gateway/internal/gateway/config"
)

func TestMockJoin(t *testing.T) {
	customers := NewCustomers([]config.MockCustomer{{ID: 1, Name: "Alice"}, {ID: 2, Name: "Bob"}})
	orders := NewOrders([]config.MockOrder{{ID: 10, CustomerID: 1}})

	c, err := crm.New(crm.Deps{Customers: customers, Orders: orders}, crm.Options{})
	if err != nil {
		t.Fatalf("crm.New: %v", err)
	}
	recs, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("recs=%+v", recs)
	}
	for _, r := range recs {
		switch r.Customer.ID {
		case 1:
			if len(r.Orders) != 1 || r.Orders[0].ID != 10 {
				t.Fatalf("alice=%+v", r)
			}
		case 2:
			if r.Orders == nil || len(r.Orders) != 0 {
				t.Fatalf("bob=%+v", r)
			}
		default:
			t.Fatalf("unexpected record %+v", r)
		}
	}
}

func TestMockHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewCustomers([]config.MockCustomer{{ID: 1}}).StreamCustomers(ctx, func(crm.Customer) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
}
