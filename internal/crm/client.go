package crm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/crm-gateway/internal/observability"
	"github.com/yungbote/crm-gateway/internal/platform/logger"
)

const tracerName = "github.com/yungbote/crm-gateway/internal/crm"

type Deps struct {
	Log       *logger.Logger
	Metrics   *observability.Metrics
	Customers CustomerSource
	Orders    OrderSource
}

type Options struct {
	Retry RetryPolicy

	// MaxConcurrency bounds in-flight order fetches. Zero means one goroutine per customer.
	MaxConcurrency int

	// DegradeOrders turns a failed order fetch into an empty order list instead of failing the run.
	DegradeOrders bool
}

// Client joins the customers upstream with the per-customer orders upstream.
type Client struct {
	log       *logger.Logger
	metrics   *observability.Metrics
	customers CustomerSource
	orders    OrderSource
	tracer    trace.Tracer

	retry          RetryPolicy
	maxConcurrency int
	degradeOrders  bool

	onRetry func(attempt int, err error, next time.Duration)
}

func New(deps Deps, opts Options) (*Client, error) {
	if deps.Customers == nil {
		return nil, errors.New("crm: customer source required")
	}
	if deps.Orders == nil {
		return nil, errors.New("crm: order source required")
	}
	if opts.MaxConcurrency < 0 {
		return nil, errors.New("crm: max concurrency must be >= 0")
	}
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		log:            log.With("component", "crm"),
		metrics:        deps.Metrics,
		customers:      deps.Customers,
		orders:         deps.Orders,
		tracer:         otel.Tracer(tracerName),
		retry:          opts.Retry.normalized(),
		maxConcurrency: opts.MaxConcurrency,
		degradeOrders:  opts.DegradeOrders,
	}, nil
}

// Customers fetches every customer, retrying failed attempts with capped exponential backoff.
// It never fails: once retries are exhausted, or ctx is done, it returns an empty slice.
// Only a fully successful attempt contributes customers, so a customer stream that never ends
// yields nothing until ctx is done.
func (c *Client) Customers(ctx context.Context) []Customer {
	attempt := 0
	customers, err := backoff.Retry(ctx, func() ([]Customer, error) {
		attempt++
		return c.fetchCustomers(ctx, attempt)
	},
		backoff.WithBackOff(c.retry.backOff()),
		backoff.WithMaxTries(uint(c.retry.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.Warn("customer fetch failed; retrying",
				"attempt", attempt,
				"max_attempts", c.retry.MaxAttempts,
				"backoff", next.String(),
				"error", err,
			)
			if c.onRetry != nil {
				c.onRetry(attempt, err, next)
			}
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			c.log.Debug("customer fetch cancelled", "attempt", attempt, "error", err)
		} else {
			c.metrics.IncCustomerExhausted()
			c.log.Warn("customer fetch exhausted retries; continuing without customers", "attempts", attempt, "error", err)
		}
		return []Customer{}
	}
	return customers
}

func (c *Client) fetchCustomers(ctx context.Context, attempt int) ([]Customer, error) {
	ctx, span := c.tracer.Start(ctx, "crm.customers", trace.WithAttributes(attribute.Int("crm.attempt", attempt)))
	defer span.End()

	batch := make([]Customer, 0)
	err := c.customers.StreamCustomers(ctx, func(cu Customer) error {
		batch = append(batch, cu)
		return nil
	})
	if err != nil {
		c.metrics.IncCustomerAttempt("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	c.metrics.IncCustomerAttempt("ok")
	span.SetAttributes(attribute.Int("crm.customers", len(batch)))
	return batch, nil
}

// OrdersFor drains the orders of one customer. Failures are returned as *OrdersError and never retried.
func (c *Client) OrdersFor(ctx context.Context, customerID int) ([]Order, error) {
	ctx, span := c.tracer.Start(ctx, "crm.orders", trace.WithAttributes(attribute.Int("crm.customer_id", customerID)))
	defer span.End()
	start := time.Now()

	orders := make([]Order, 0)
	err := c.orders.StreamOrders(ctx, customerID, func(o Order) error {
		if o.CustomerID != customerID {
			c.log.Warn("dropping order owned by another customer",
				"customer_id", customerID,
				"order_id", o.ID,
				"order_customer_id", o.CustomerID,
			)
			c.metrics.IncOrderDropped()
			return nil
		}
		orders = append(orders, o)
		return nil
	})
	if err != nil {
		c.metrics.ObserveOrderFetch("error", time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &OrdersError{CustomerID: customerID, Err: err}
	}
	c.metrics.ObserveOrderFetch("ok", time.Since(start))
	span.SetAttributes(attribute.Int("crm.orders", len(orders)))
	return orders, nil
}

// CustomerOrders fetches the customers, then the orders of every customer concurrently, and calls emit
// once per customer after its orders are fully drained. Records arrive in no particular order; emit is
// always called from the caller's goroutine.
//
// It returns after every order fetch it started has finished. The first order fetch error fails the run
// and cancels the remaining fetches, unless DegradeOrders is set. An emit error does the same.
func (c *Client) CustomerOrders(ctx context.Context, emit func(CustomerOrders) error) error {
	if emit == nil {
		return errors.New("crm: emit callback required")
	}

	ctx, span := c.tracer.Start(ctx, "crm.customer_orders")
	defer span.End()

	customers := c.Customers(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("crm.customers", len(customers)))
	if len(customers) == 0 {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	if c.maxConcurrency > 0 {
		g.SetLimit(c.maxConcurrency)
	}

	records := make(chan CustomerOrders)
	done := make(chan error, 1)
	go func() {
		for _, cu := range customers {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error { return c.join(gctx, cu, records) })
		}
		done <- g.Wait()
		close(records)
	}()

	var emitErr error
	emitted := 0
	for rec := range records {
		if emitErr != nil {
			continue
		}
		if err := emit(rec); err != nil {
			emitErr = err
			cancel()
			continue
		}
		emitted++
		c.metrics.IncRecordEmitted()
	}
	waitErr := <-done
	span.SetAttributes(attribute.Int("crm.records", emitted))

	var err error
	switch {
	case emitErr != nil:
		err = emitErr
	case ctx.Err() != nil:
		err = ctx.Err()
	default:
		err = waitErr
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) join(ctx context.Context, cu Customer, out chan<- CustomerOrders) error {
	orders, err := c.OrdersFor(ctx, cu.ID)
	if err != nil {
		if !c.degradeOrders || ctx.Err() != nil {
			return err
		}
		c.log.Warn("order fetch failed; emitting customer without orders", "customer_id", cu.ID, "error", err)
		orders = []Order{}
	}

	select {
	case out <- CustomerOrders{Customer: cu, Orders: orders}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Collect gathers every record of one CustomerOrders run.
func (c *Client) Collect(ctx context.Context) ([]CustomerOrders, error) {
	out := make([]CustomerOrders, 0)
	err := c.CustomerOrders(ctx, func(co CustomerOrders) error {
		out = append(out, co)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
