package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tphakala/screamguard/cmd"
	"github.com/tphakala/screamguard/internal/runtime"
)

func main() {
	os.Exit(run())
}

func run() int {
	// SIGINT and SIGTERM cancel the command context; serve uses it for
	// graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt := runtime.New()
	defer func() {
		if err := rt.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "error closing logs: %v\n", err)
		}
	}()

	rootCmd := cmd.RootCommand(rt)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}
