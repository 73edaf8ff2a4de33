package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/castlemind/chess-mcp-server/internal/infrastructure/config"
	"github.com/castlemind/chess-mcp-server/internal/infrastructure/logging"
	"github.com/castlemind/chess-mcp-server/internal/infrastructure/server"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		listenAddr = flag.String("listen", "", "TCP listen address, overrides config")
		stdio      = flag.Bool("stdio", false, "serve on stdin/stdout, overrides config")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	if *stdio {
		cfg.Server.Stdio = true
	}

	logger, err := logging.New(logging.Config{
		Level:       logging.LogLevel(cfg.Logging.Level),
		Development: cfg.Logging.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to build server", logging.Fields{"error": err.Error()})
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting chess server", logging.Fields{
		"name":    cfg.Server.Name,
		"version": cfg.Server.Version,
	})

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("server exited with error", logging.Fields{"error": err.Error()})
		os.Exit(1)
	}
	logger.Info("server stopped")
}
