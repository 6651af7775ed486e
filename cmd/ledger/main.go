package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mekod/ledger/internal/cli"
	"github.com/mekod/ledger/internal/config"
	"github.com/mekod/ledger/internal/logging"
)

func main() {
	cfg := config.LoadConfig()
	logger := logging.NewDefault(parseLevel(cfg.LogLevel))

	app, err := cli.NewApp(cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.Run(ctx)
}

func parseLevel(name string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return l
}
