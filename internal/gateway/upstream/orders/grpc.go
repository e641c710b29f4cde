package orders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/yungbote/crm-gateway/internal/crm"
	"github.com/yungbote/crm-gateway/internal/gateway/config"
)

// GRPCClient streams one customer's orders per OrdersFor call over a shared connection.
type GRPCClient struct {
	conn    *grpc.ClientConn
	route   string
	timeout time.Duration
}

// NewGRPC creates the client connection lazily; no dial happens until the first stream.
// Extra options are appended after the defaults.
func NewGRPC(cfg config.OrdersConfig, opts ...grpc.DialOption) (*GRPCClient, error) {
	target := strings.TrimSpace(cfg.Target)
	if target == "" {
		return nil, errors.New("orders: grpc target required")
	}
	route := strings.TrimSpace(cfg.Route)
	if route == "" {
		route = "orders." + config.CustomerIDPlaceholder
	}
	if !strings.Contains(route, config.CustomerIDPlaceholder) {
		return nil, fmt.Errorf("orders: route must contain %s", config.CustomerIDPlaceholder)
	}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("orders: grpc client: %w", err)
	}
	return &GRPCClient{conn: conn, route: route, timeout: cfg.Timeout.Duration}, nil
}

var _ crm.OrderSource = (*GRPCClient)(nil)

func (c *GRPCClient) StreamOrders(ctx context.Context, customerID int, onOrder func(crm.Order) error) error {
	if onOrder == nil {
		return errors.New("orders: callback required")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	// Abandoning the stream early must release it.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	route := Route(c.route, customerID)
	ctx = metadata.AppendToOutgoingContext(ctx, RouteMetadataKey, route)

	cs, err := c.conn.NewStream(ctx, &ordersForStream, ordersForMethod)
	if err != nil {
		return err
	}
	if err := cs.SendMsg(&Request{Route: route, CustomerID: customerID}); err != nil {
		return err
	}
	if err := cs.CloseSend(); err != nil {
		return err
	}
	for {
		var o crm.Order
		if err := cs.RecvMsg(&o); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := onOrder(o); err != nil {
			return err
		}
	}
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}
