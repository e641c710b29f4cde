package crm

import (
	"context"
	"encoding/json"
	"fmt"
)

type Customer struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Order struct {
	ID         int `json:"id"`
	CustomerID int `json:"customerId"`
}

// CustomerOrders pairs a customer with every order the orders service holds for it.
type CustomerOrders struct {
	Customer Customer `json:"customer"`
	Orders   []Order  `json:"orders"`
}

// MarshalJSON keeps "orders" an array even when the record was built by hand with a nil slice.
func (co CustomerOrders) MarshalJSON() ([]byte, error) {
	type wire CustomerOrders
	w := wire(co)
	if w.Orders == nil {
		w.Orders = []Order{}
	}
	return json.Marshal(w)
}

// CustomerSource streams every customer known to the primary upstream.
// Returning a non-nil error from onCustomer aborts the stream with that error.
type CustomerSource interface {
	StreamCustomers(ctx context.Context, onCustomer func(Customer) error) error
}

// OrderSource streams the orders of a single customer.
type OrderSource interface {
	StreamOrders(ctx context.Context, customerID int, onOrder func(Order) error) error
}

// OrdersError reports a failed order fetch for one customer.
type OrdersError struct {
	CustomerID int
	Err        error
}

func (e *OrdersError) Error() string {
	if e == nil {
		return "orders fetch failed"
	}
	return fmt.Sprintf("orders fetch failed: customer_id=%d: %v", e.CustomerID, e.Err)
}

func (e *OrdersError) Unwrap() error { return e.Err }
