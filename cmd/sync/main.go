package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/isseis/go-file-sync-queue/logger"
)

const Version = "0.1.0"

func init() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, relying on environment variables")
	}
}

// printUsage prints the complete usage information including flags and environment variables
func printUsage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
	flag.PrintDefaults()

	fmt.Fprintln(flag.CommandLine.Output(), "\nLogger environment variables:")
	for _, v := range logger.GetEnvVarsHelp() {
		fmt.Fprintf(flag.CommandLine.Output(), "  %-22s %s\n", v.Name, v.Description)
	}

	fmt.Fprintln(flag.CommandLine.Output(), "\nSync environment variables:")
	for _, v := range envVars {
		fmt.Fprintf(flag.CommandLine.Output(), "  %-22s %s\n", v.Name, v.Description)
	}
}

func main() {
	flag.Usage = printUsage
	values := registerFlags(flag.CommandLine)
	flag.Parse()

	logCfg, err := logger.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading logger config: %v\n\n", err)
		flag.Usage()
		os.Exit(1)
	}
	log := logger.NewHybridLogger(*logCfg)

	cfg, err := resolveConfig(values, os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		flag.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	log.Info("File sync started", "version", Version, "destination", cfg.destination, "store", cfg.store, "dry_run", cfg.dryRun)
	exitCode := run(ctx, cfg, log, os.Stdout)
	stop()

	if err := log.FlushWebhook(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to flush webhook logs: %v\n", err)
	}
	os.Exit(exitCode)
}
