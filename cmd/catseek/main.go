package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/catseek/catseek/internal/config"
	"github.com/catseek/catseek/internal/service"
	"github.com/catseek/catseek/internal/source"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to TOML config file")
		catalogPath = flag.String("catalog", "", "catalog database path (overrides config)")
		query       = flag.String("query", "", "run one search and exit")
		limit       = flag.Int("limit", 0, "page size for -query")
		offset      = flag.Int("offset", 0, "page offset for -query")
		random      = flag.Bool("random", false, "print one random entry and exit")
		status      = flag.Bool("status", false, "print catalog status and exit")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("catseek\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", source.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", source.DriverName)
		os.Exit(0)
	}

	log.SetOutput(os.Stderr)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *catalogPath != "" {
		cfg.CatalogPath = *catalogPath
	}
	if env := os.Getenv("CATSEEK_CATALOG"); env != "" && cfg.CatalogPath == "" {
		cfg.CatalogPath = env
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	svc, err := service.New(cfg)
	if err != nil {
		log.Fatalf("Failed to open catalog: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Printf("catseek v%s starting (driver: %s, catalog: %s)", version, source.DriverName, cfg.CatalogPath)
	if err := svc.Start(ctx); err != nil {
		log.Fatalf("Failed to build index: %v", err)
	}
	defer svc.Stop()

	// One-shot modes for scripting and smoke tests.
	switch {
	case *query != "":
		resp, err := svc.Search(ctx, *query, *limit, *offset)
		if err != nil {
			log.Fatalf("Search failed: %v", err)
		}
		printJSON(resp)
		return
	case *random:
		res, err := svc.Random(ctx)
		if err != nil {
			log.Fatalf("Random failed: %v", err)
		}
		printJSON(res)
		return
	case *status:
		st, err := svc.DBStatus(ctx)
		if err != nil {
			log.Fatalf("Status failed: %v", err)
		}
		printJSON(st)
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Println("catseek ready, watching catalog for changes...")
	sig := <-sigChan
	log.Printf("Received signal %v, shutting down gracefully...", sig)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
}
