// Package main implements tixaudit-history, the run catalog inspector.
// It lists recorded audit runs, shows their per-check results, prints
// stored reports, compares two runs, prunes old runs, and fetches
// published artifacts back from object storage.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/tixaudit/tixaudit/internal/app"
	"github.com/tixaudit/tixaudit/internal/catalog"
	"github.com/tixaudit/tixaudit/internal/config"
	"github.com/tixaudit/tixaudit/internal/dataset"
	"github.com/tixaudit/tixaudit/internal/storage"
	"github.com/tixaudit/tixaudit/pkg/types"
)

var (
	version = "dev"
	commit  = "unknown"
)

const fetchConcurrency = 4

func main() {
	var (
		configFile  string
		dataDir     string
		catalogFile string
		limit       int
		keep        int
		outDir      string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&catalogFile, "catalog", "", "Path to the run catalog database (default <data-dir>/catalog.db)")
	flag.IntVar(&limit, "limit", 20, "Maximum runs to list (0 lists all)")
	flag.IntVar(&keep, "keep", 0, "Runs to retain when pruning (overrides configuration)")
	flag.StringVar(&outDir, "out", "", "Destination directory for fetched artifacts")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "tixaudit-history - Inspect the audit run catalog\n\n")
		fmt.Fprintf(os.Stderr, "Usage: tixaudit-history [options] <command> [args]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  list                      List recorded runs, newest first\n")
		fmt.Fprintf(os.Stderr, "  show <run-id|latest>      Show one run with its per-check results\n")
		fmt.Fprintf(os.Stderr, "  report <run-id|latest>    Print the stored markdown report\n")
		fmt.Fprintf(os.Stderr, "  compare <older> <newer>   Show per-check issue deltas between two runs\n")
		fmt.Fprintf(os.Stderr, "  prune                     Delete all but the newest --keep runs\n")
		fmt.Fprintf(os.Stderr, "  fetch <run-id|latest>     Download published artifacts from storage\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  tixaudit-history --data-dir ./data/tixaudit list\n")
		fmt.Fprintf(os.Stderr, "  tixaudit-history show latest\n")
		fmt.Fprintf(os.Stderr, "  tixaudit-history report 01JF3Z7V9PXK4QW2M8T6E5RCAB > report.md\n")
		fmt.Fprintf(os.Stderr, "  tixaudit-history compare 01JF3Z7V9P... 01JF40A2QH...\n")
		fmt.Fprintf(os.Stderr, "  tixaudit-history --keep 30 prune\n")
		fmt.Fprintf(os.Stderr, "  tixaudit-history --out ./artifacts fetch latest\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  TIXAUDIT_DATA_DIR      Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  TIXAUDIT_CATALOG_FILE  Path to the run catalog database\n")
		fmt.Fprintf(os.Stderr, "  TIXAUDIT_STORAGE_TYPE  Storage type (local, s3)\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if showVersion {
		fmt.Printf("tixaudit-history version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if catalogFile != "" {
		cfg.CatalogFile = catalogFile
	}
	if keep > 0 {
		cfg.History.Keep = keep
	}

	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	cat, err := catalog.NewCatalog(cfg.CatalogPath())
	if err != nil {
		log.Fatalf("Failed to open catalog %s: %v", cfg.CatalogPath(), err)
	}
	defer cat.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch args[0] {
	case "list":
		err = runList(ctx, cat, limit)
	case "show":
		err = runShow(ctx, cat, argAt(args, 1))
	case "report":
		err = runReport(ctx, cat, argAt(args, 1))
	case "compare":
		err = runCompare(ctx, cat, argAt(args, 1), argAt(args, 2))
	case "prune":
		err = runPrune(ctx, cat, cfg.History.Keep)
	case "fetch":
		err = runFetch(ctx, cat, cfg, argAt(args, 1), outDir)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", args[0], err)
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

// argAt returns the positional argument at i, or "" when absent.
func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// resolveRunID parses a run ID argument, resolving the literal "latest"
// through the catalog.
func resolveRunID(ctx context.Context, cat catalog.RunCatalog, arg string) (types.RunID, error) {
	if arg == "" {
		return types.RunID{}, fmt.Errorf("missing run ID argument")
	}
	if arg == "latest" {
		rec, err := cat.LatestRun(ctx)
		if err != nil {
			return types.RunID{}, err
		}
		return rec.RunID, nil
	}
	return types.ParseRunID(arg)
}

func runList(ctx context.Context, cat catalog.RunCatalog, limit int) error {
	runs, err := cat.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Printf("%-26s  %-19s  %12s  %10s  %7s\n", "RUN ID", "CREATED (UTC)", "TOTAL ROWS", "ISSUES", "FAILED")
	for _, r := range runs {
		var rows int64
		for _, n := range r.DatasetRows {
			rows += n
		}
		fmt.Printf("%-26s  %-19s  %12d  %10d  %7d\n",
			r.RunID, r.CreatedAt.UTC().Format("2006-01-02 15:04:05"), rows, r.TotalIssues, r.FailedChecks)
	}
	return nil
}

func runShow(ctx context.Context, cat catalog.RunCatalog, arg string) error {
	id, err := resolveRunID(ctx, cat, arg)
	if err != nil {
		return err
	}
	rec, err := cat.GetRun(ctx, id)
	if err != nil {
		return err
	}
	results, err := cat.GetChecks(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("Run:       %s\n", rec.RunID)
	fmt.Printf("Created:   %s UTC\n", rec.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	fmt.Printf("Issues:    %d across %d failed checks\n", rec.TotalIssues, rec.FailedChecks)
	fmt.Printf("Checksum:  %s\n", rec.ReportChecksum)

	fmt.Println("Datasets:")
	for _, spec := range dataset.AllSpecs() {
		rows, ok := rec.DatasetRows[spec.Name]
		if !ok {
			continue
		}
		fp := rec.Fingerprints[spec.Name]
		if fp == "" {
			fp = "(missing file)"
		}
		fmt.Printf("  %-13s %8d rows  %s\n", spec.Name, rows, fp)
	}

	fmt.Println("\nChecks:")
	fmt.Printf("%-12s  %-44s  %10s  %10s  %7s\n", "CATEGORY", "CHECK", "ISSUES", "ROWS", "RATE%")
	for _, r := range results {
		fmt.Printf("%-12s  %-44s  %10d  %10d  %7.1f\n", r.Category, r.Check, r.Issues, r.Rows, r.Rate)
	}
	return nil
}

func runReport(ctx context.Context, cat catalog.RunCatalog, arg string) error {
	id, err := resolveRunID(ctx, cat, arg)
	if err != nil {
		return err
	}
	body, err := cat.GetReport(ctx, id)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(body)
	return err
}

func runCompare(ctx context.Context, cat catalog.RunCatalog, olderArg, newerArg string) error {
	if olderArg == "" || newerArg == "" {
		return fmt.Errorf("compare requires two run IDs")
	}
	older, err := resolveRunID(ctx, cat, olderArg)
	if err != nil {
		return err
	}
	newer, err := resolveRunID(ctx, cat, newerArg)
	if err != nil {
		return err
	}
	deltas, err := cat.CompareRuns(ctx, older, newer)
	if err != nil {
		return err
	}

	fmt.Printf("Comparing %s -> %s\n\n", older, newer)
	fmt.Printf("%-12s  %-44s  %10s  %10s  %7s\n", "CATEGORY", "CHECK", "OLDER", "NEWER", "DELTA")
	for _, d := range deltas {
		fmt.Printf("%-12s  %-44s  %10d  %10d  %+7d\n",
			d.Category, d.Check, d.OlderIssues, d.NewerIssues, d.Delta)
	}
	return nil
}

func runPrune(ctx context.Context, cat catalog.RunCatalog, keep int) error {
	if keep <= 0 {
		return fmt.Errorf("prune requires --keep greater than zero")
	}
	deleted, err := cat.PruneRuns(ctx, keep)
	if err != nil {
		return err
	}
	if len(deleted) == 0 {
		fmt.Println("Nothing to prune.")
		return nil
	}
	for _, id := range deleted {
		fmt.Println(id)
	}
	fmt.Printf("Pruned %d runs, keeping newest %d.\n", len(deleted), keep)
	return nil
}

func runFetch(ctx context.Context, cat catalog.RunCatalog, cfg *config.Config, arg, destDir string) error {
	id, err := resolveRunID(ctx, cat, arg)
	if err != nil {
		return err
	}
	store, err := app.OpenStorage(ctx, cfg)
	if err != nil {
		return err
	}

	pub := storage.NewPublisher(store, cfg.Publish.Prefix)
	fetcher := storage.NewFetcher(store, fetchConcurrency)
	if destDir == "" {
		destDir = filepath.Join(cfg.DataDir, "fetched", id.String())
	}

	res, err := fetcher.FetchRun(ctx, pub, id, destDir)
	if err != nil {
		return err
	}

	paths := make([]string, 0, len(res.LocalPaths))
	for p := range res.LocalPaths {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		fmt.Printf("  %s -> %s\n", p, res.LocalPaths[p])
	}

	if len(res.Errors) > 0 {
		for p, e := range res.Errors {
			log.Printf("[WARN] fetch: %s: %v", p, e)
		}
		return fmt.Errorf("%d artifacts failed to download", len(res.Errors))
	}
	fmt.Printf("Fetched %d artifacts (%d already cached) into %s\n", res.Downloads, res.Skipped, destDir)
	return nil
}
