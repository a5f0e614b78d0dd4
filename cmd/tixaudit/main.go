// Package main implements the tixaudit binary: run the data-quality audit
// over the ticketing CSV extracts and write the markdown report.
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
	"github.com/tixaudit/tixaudit/internal/report"
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
		reportDir   string
		title       string
		publish     bool
		verbose     bool
		noColor     bool
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&rawDir, "raw-dir", "", "Directory holding the three CSV extracts")
	flag.StringVar(&reportDir, "report-dir", "", "Directory for the markdown report and metadata sidecar")
	flag.StringVar(&title, "title", "", "Report document title")
	flag.BoolVar(&publish, "publish", false, "Publish report artifacts to object storage")
	flag.BoolVar(&verbose, "verbose", false, "Print dataset load and per-check timings")
	flag.BoolVar(&noColor, "no-color", false, "Disable colored console output")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "tixaudit - Data quality audit for ticketing extracts\n\n")
		fmt.Fprintf(os.Stderr, "Usage: tixaudit [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  tixaudit --data-dir ./data/tixaudit\n")
		fmt.Fprintf(os.Stderr, "  tixaudit --raw-dir ./data/raw --report-dir ./reports\n")
		fmt.Fprintf(os.Stderr, "  tixaudit --config /etc/tixaudit/config.yaml --publish\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  TIXAUDIT_DATA_DIR      Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  TIXAUDIT_RAW_DIR       Directory holding the CSV extracts\n")
		fmt.Fprintf(os.Stderr, "  TIXAUDIT_REPORT_DIR    Directory for the markdown report\n")
		fmt.Fprintf(os.Stderr, "  TIXAUDIT_PUBLISH       Publish artifacts (true/false)\n")
		fmt.Fprintf(os.Stderr, "  TIXAUDIT_STORAGE_TYPE  Storage type (local, s3)\n")
		fmt.Fprintf(os.Stderr, "\nExit codes:\n")
		fmt.Fprintf(os.Stderr, "  0  audit completed; data issues are findings, not failures\n")
		fmt.Fprintf(os.Stderr, "  1  tool failure (bad configuration, unwritable report)\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if showVersion {
		fmt.Printf("tixaudit version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags win over file and environment.
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if rawDir != "" {
		cfg.RawDir = rawDir
	}
	if reportDir != "" {
		cfg.Report.Dir = reportDir
	}
	if title != "" {
		cfg.Report.Title = title
	}
	if publish {
		cfg.Publish.Enabled = true
	}
	if verbose {
		cfg.Verbose = true
	}
	if noColor {
		cfg.NoColor = true
	}

	cfg.Resolve()
	printBanner(cfg)

	application, err := app.New(cfg, version)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	summary, err := application.Run(ctx)
	if err != nil {
		log.Fatalf("Audit failed: %v", err)
	}

	fmt.Println()
	report.NewConsoleWriter(os.Stdout, cfg.NoColor).WriteSummary(summary)

	if cfg.Verbose {
		application.LogTimings()
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

// printBanner prints the startup banner with the configuration summary.
func printBanner(cfg *config.Config) {
	log.Printf("tixaudit %s", version)
	log.Printf("  Raw dir:    %s", cfg.RawDir)
	log.Printf("  Report dir: %s", cfg.Report.Dir)
	log.Printf("  Catalog:    %s", cfg.CatalogPath())
	log.Printf("  Publish:    %v (storage: %s)", cfg.Publish.Enabled, cfg.Storage.Type)
}
