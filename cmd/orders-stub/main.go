// Command orders-stub serves the configured mock orders over the crm.v1.Orders gRPC contract
// on orders.target, so the gateway can run against a local gRPC orders upstream.
package main

import (
	"context"
	"fmt"
	"net"
	"os"

	"google.golang.org/grpc"

	"github.com/yungbote/crm-gateway/internal/gateway/config"
	"github.com/yungbote/crm-gateway/internal/gateway/platform/shutdown"
	"github.com/yungbote/crm-gateway/internal/gateway/upstream/mock"
	"github.com/yungbote/crm-gateway/internal/gateway/upstream/orders"
	"github.com/yungbote/crm-gateway/internal/platform/logger"
)

func main() {
	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	lis, err := net.Listen("tcp", cfg.Orders.Target)
	if err != nil {
		log.Error("listen failed", "addr", cfg.Orders.Target, "error", err)
		os.Exit(1)
	}

	s := grpc.NewServer()
	orders.RegisterOrdersServer(s, orders.NewSourceServer(mock.NewOrders(cfg.Orders.Mock), cfg.Orders.Route))

	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	log.Info("orders stub listening", "addr", lis.Addr().String(), "route", cfg.Orders.Route, "orders", len(cfg.Orders.Mock))
	if err := s.Serve(lis); err != nil {
		log.Error("grpc serve failed", "error", err)
		os.Exit(1)
	}
}
