// Command gotoken-migrate applies the embedded Postgres schema.
//
//	gotoken-migrate [-dsn URL] up|down|status
//
// The DSN defaults to GOTOKEN_POSTGRES_DSN.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/goToken/internal/obs"
	"github.com/MrEthical07/goToken/postgres"
	"go.uber.org/zap"
)

func main() {
	dsn := flag.String("dsn", os.Getenv("GOTOKEN_POSTGRES_DSN"), "Postgres connection URL")
	flag.Parse()

	if *dsn == "" {
		fmt.Fprintln(os.Stderr, "dsn is empty (set -dsn or GOTOKEN_POSTGRES_DSN)")
		os.Exit(2)
	}
	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	logger, err := obs.NewLogger(obs.LogConfig{Level: "info", App: "gotoken-migrate"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "up":
		err = postgres.Migrate(ctx, *dsn, logger)
	case "down":
		err = postgres.Rollback(ctx, *dsn, logger)
	case "status":
		err = postgres.Status(ctx, *dsn, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want up, down or status)\n", cmd)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("migration failed", zap.String("command", cmd), zap.Error(err))
		os.Exit(1)
	}
	logger.Info("migrations done", zap.String("command", cmd))
}
