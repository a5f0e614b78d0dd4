// Package main implements tixaudit-gen, the synthetic dataset generator.
// It writes the three ticketing CSV extracts that the audit consumes.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

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
		outDir      string
		seed        int64
		txCount     int
		year        int
		anomalyRate float64
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&outDir, "out", "", "Directory for the generated CSV files (default <data-dir>/raw)")
	flag.Int64Var(&seed, "seed", 42, "Random seed; identical seeds produce identical files")
	flag.IntVar(&txCount, "transactions", 25000, "Number of transactions to generate")
	flag.IntVar(&year, "year", 2026, "Season year anchoring the event calendar")
	flag.Float64Var(&anomalyRate, "anomaly-rate", 0, "Fraction of rows seeded with quality defects (0..1)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "tixaudit-gen - Synthetic ticketing dataset generator\n\n")
		fmt.Fprintf(os.Stderr, "Usage: tixaudit-gen [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  tixaudit-gen --data-dir ./data/tixaudit\n")
		fmt.Fprintf(os.Stderr, "  tixaudit-gen --transactions 25000 --anomaly-rate 0.02\n")
		fmt.Fprintf(os.Stderr, "  tixaudit-gen --seed 7 --year 2027 --out ./fixtures\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  TIXAUDIT_DATA_DIR      Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  TIXAUDIT_RAW_DIR       Directory for the generated CSV files\n")
		fmt.Fprintf(os.Stderr, "  TIXAUDIT_SEED          Random seed\n")
		fmt.Fprintf(os.Stderr, "  TIXAUDIT_TRANSACTIONS  Number of transactions\n")
		fmt.Fprintf(os.Stderr, "  TIXAUDIT_ANOMALY_RATE  Fraction of rows seeded with defects\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if showVersion {
		fmt.Printf("tixaudit-gen version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Numeric flags keep their defaults unless set, so only explicitly
	// passed flags may override the file and environment values.
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if outDir != "" {
		cfg.RawDir = outDir
	}
	if set["seed"] {
		cfg.Generator.Seed = seed
	}
	if set["transactions"] {
		cfg.Generator.Transactions = txCount
	}
	if set["year"] {
		cfg.Generator.Year = year
	}
	if set["anomaly-rate"] {
		cfg.Generator.AnomalyRate = anomalyRate
	}

	application, err := app.New(cfg, version)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	if err := application.RunGenerate(); err != nil {
		log.Fatalf("Generation failed: %v", err)
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
