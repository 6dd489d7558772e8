package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/lnaie/sfAuction/internal/app"
	"github.com/lnaie/sfAuction/pkg/config"
	"github.com/lnaie/sfAuction/pkg/logger"
)

// build metadata, set via ldflags during release
var version = "dev"

func main() {
	_ = godotenv.Load(".env")

	cfgPath := flag.String("config", "", "path to yaml config file")
	addrFlag := flag.String("addr", "", "listen address (host:port), overrides config")
	dbFlag := flag.String("db", "", "keyspace path, overrides config")
	flag.Parse()

	if *cfgPath == "" {
		if p := os.Getenv("SFAUCTION_CONFIG"); p != "" {
			*cfgPath = p
		}
	}

	cfg, source, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	addr := cfg.Addr()
	if *addrFlag != "" {
		addr = *addrFlag
		source = "flags"
	}
	dbPath := cfg.Storage.DBPath
	if *dbFlag != "" {
		dbPath = *dbFlag
		source = "flags"
	}

	logger.Init(cfg.Logging.Level)

	eff := config.Effective{Config: cfg, Addr: addr, DBPath: dbPath, Source: source}
	a, err := app.New(eff, version)
	if err != nil {
		logger.Error("startup_failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		logger.Error("node_failed", "error", err)
		os.Exit(1)
	}
}
