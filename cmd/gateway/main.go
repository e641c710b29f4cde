package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/crm-gateway/internal/gateway/app"
	"github.com/yungbote/crm-gateway/internal/gateway/platform/shutdown"
)

func main() {
	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Printf("failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	runErr := a.Run(ctx)
	if err := a.Close(); err != nil {
		a.Log.Warn("shutdown incomplete", "error", err)
	}
	if runErr != nil {
		fmt.Printf("server exited: %v\n", runErr)
		os.Exit(1)
	}
}
