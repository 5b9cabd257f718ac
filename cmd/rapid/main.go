// Package main implements the rapid binary: the managed data catalogue API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/rapid-data/rapid/internal/app"
	"github.com/rapid-data/rapid/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		addr        string
		showVersion bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&addr, "addr", "", "HTTP listen address")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "rapid - managed data catalogue API\n\n")
		fmt.Fprintf(os.Stderr, "Usage: rapid [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  RAPID_SERVICE_ADDR     HTTP listen address\n")
		fmt.Fprintf(os.Stderr, "  RAPID_STORAGE_TYPE     Storage type (local, s3)\n")
		fmt.Fprintf(os.Stderr, "  RAPID_STORAGE_BUCKET   S3 bucket for dataset files\n")
		fmt.Fprintf(os.Stderr, "  RAPID_AWS_REGION       AWS region\n")
		fmt.Fprintf(os.Stderr, "  RAPID_DYNAMODB_*       DynamoDB table names\n")
		fmt.Fprintf(os.Stderr, "  RAPID_GLUE_DATABASE    Glue database for dataset tables\n")
		fmt.Fprintf(os.Stderr, "\nA .env file in the working directory is loaded if present.\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("rapid version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	// Optional; local development keeps its settings in .env.
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}
	if addr != "" {
		cfg.Service.Addr = addr
	}

	ctx := context.Background()
	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to assemble service", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("server failed", zap.Error(err))
		}
	}

	if err := application.Stop(ctx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
		os.Exit(1)
	}
}
