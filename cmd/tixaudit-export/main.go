// Package main implements tixaudit-export, which merges the three ticketing
// extracts into a denormalized BI table and writes it as CSV and optionally
// as a SQLite artifact.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tixaudit/tixaudit/internal/app"
	"github.com/tixaudit/tixaudit/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		rawDir      string
		outDir      string
		sqlite      bool
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&rawDir, "raw-dir", "", "Directory holding the three CSV extracts")
	flag.StringVar(&outDir, "out", "", "Directory for the export artifacts (default <data-dir>/processed)")
	flag.BoolVar(&sqlite, "sqlite", false, "Also build the SQLite artifact")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "tixaudit-export - Denormalized BI export for ticketing extracts\n\n")
		fmt.Fprintf(os.Stderr, "Usage: tixaudit-export [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  tixaudit-export --data-dir ./data/tixaudit\n")
		fmt.Fprintf(os.Stderr, "  tixaudit-export --raw-dir ./data/raw --out ./processed --sqlite\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  TIXAUDIT_DATA_DIR       Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  TIXAUDIT_RAW_DIR        Directory holding the CSV extracts\n")
		fmt.Fprintf(os.Stderr, "  TIXAUDIT_EXPORT_DIR     Directory for the export artifacts\n")
		fmt.Fprintf(os.Stderr, "  TIXAUDIT_EXPORT_SQLITE  Also build the SQLite artifact (true/false)\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if showVersion {
		fmt.Printf("tixaudit-export version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if rawDir != "" {
		cfg.RawDir = rawDir
	}
	if outDir != "" {
		cfg.Export.OutDir = outDir
	}
	if sqlite {
		cfg.Export.SQLite = true
	}

	application, err := app.New(cfg, version)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := application.RunExport(ctx); err != nil {
		log.Fatalf("Export failed: %v", err)
	}
}

// loadConfig applies the precedence chain: defaults, then file, then
// environment. Flags are applied by the caller.
func loadConfig(configFile string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)
	return cfg, nil
}
