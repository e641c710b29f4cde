package orders

import (
	"context"
	"strconv"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/yungbote/crm-gateway/internal/crm"
	"github.com/yungbote/crm-gateway/internal/gateway/config"
)

const (
	serviceName     = "crm.v1.Orders"
	ordersForMethod = "/" + serviceName + "/OrdersFor"

	// RouteMetadataKey carries the request route alongside the message.
	RouteMetadataKey = "route"
)

// Request is the single message a client sends on an OrdersFor stream.
type Request struct {
	Route      string `json:"route"`
	CustomerID int    `json:"customerId"`
}

// Route expands a route template for one customer.
func Route(template string, customerID int) string {
	return strings.ReplaceAll(template, config.CustomerIDPlaceholder, strconv.Itoa(customerID))
}

// OrdersServer answers OrdersFor by calling send once per order.
type OrdersServer interface {
	OrdersFor(ctx context.Context, req *Request, send func(crm.Order) error) error
}

var ordersForStream = grpc.StreamDesc{
	StreamName:    "OrdersFor",
	ServerStreams: true,
}

// ServiceDesc is the server side of the crm.v1.Orders contract that GRPCClient dials.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*OrdersServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    ordersForStream.StreamName,
			Handler:       ordersForHandler,
			ServerStreams: true,
		},
	},
	Metadata: "crm/v1/orders",
}

func RegisterOrdersServer(s grpc.ServiceRegistrar, srv OrdersServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func ordersForHandler(srv any, stream grpc.ServerStream) error {
	var req Request
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}
	return srv.(OrdersServer).OrdersFor(stream.Context(), &req, func(o crm.Order) error {
		return stream.SendMsg(&o)
	})
}

// SourceServer serves an OrderSource over gRPC; cmd/orders-stub runs it over mock orders.
// Requests whose route does not match the configured template for their customer are rejected.
type SourceServer struct {
	source crm.OrderSource
	route  string
}

func NewSourceServer(source crm.OrderSource, routeTemplate string) *SourceServer {
	if strings.TrimSpace(routeTemplate) == "" {
		routeTemplate = "orders." + config.CustomerIDPlaceholder
	}
	return &SourceServer{source: source, route: routeTemplate}
}

var _ OrdersServer = (*SourceServer)(nil)

func (s *SourceServer) OrdersFor(ctx context.Context, req *Request, send func(crm.Order) error) error {
	if req == nil {
		return status.Error(codes.InvalidArgument, "request required")
	}
	want := Route(s.route, req.CustomerID)
	if req.Route != want {
		return status.Errorf(codes.InvalidArgument, "route %q does not match customer %d", req.Route, req.CustomerID)
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(RouteMetadataKey); len(vals) > 0 && vals[0] != want {
			return status.Errorf(codes.InvalidArgument, "route metadata %q does not match %q", vals[0], want)
		}
	}
	if err := s.source.StreamOrders(ctx, req.CustomerID, send); err != nil {
		if _, ok := status.FromError(err); ok {
			return err
		}
		return status.Error(codes.Unavailable, err.Error())
	}
	return nil
}
