// Package app wires the audit pipeline: load, check, report, record,
// publish. The tixaudit binaries are thin shells over this package.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/tixaudit/tixaudit/internal/catalog"
	"github.com/tixaudit/tixaudit/internal/checks"
	"github.com/tixaudit/tixaudit/internal/config"
	"github.com/tixaudit/tixaudit/internal/dataset"
	"github.com/tixaudit/tixaudit/internal/export"
	"github.com/tixaudit/tixaudit/internal/fingerprint"
	"github.com/tixaudit/tixaudit/internal/generator"
	"github.com/tixaudit/tixaudit/internal/observability"
	"github.com/tixaudit/tixaudit/internal/report"
	"github.com/tixaudit/tixaudit/internal/storage"
	"github.com/tixaudit/tixaudit/pkg/types"
)

// App runs the tixaudit pipelines over one resolved configuration.
type App struct {
	cfg     *config.Config
	version string
	stats   *observability.RunStats
}

// New creates an App. The configuration is resolved, validated, and its
// directories created.
func New(cfg *config.Config, version string) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return &App{
		cfg:     cfg,
		version: version,
		stats:   observability.NewRunStats(),
	}, nil
}

// Stats exposes the run's timing statistics.
func (a *App) Stats() *observability.RunStats {
	return a.stats
}

// Run executes one audit: load the extracts, run the checks, write the
// report and its metadata sidecar, record the run, and optionally publish.
// A run that finds issues is still a successful run; only tool failures
// return an error.
func (a *App) Run(ctx context.Context) (*types.RunSummary, error) {
	runID, err := types.NewRunID()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate run ID: %w", err)
	}

	summary := &types.RunSummary{
		RunID:         runID,
		CreatedAt:     time.Now().UTC(),
		Fingerprints:  make(map[string]string, 3),
		MissingValues: make(map[string][]types.ColumnBlanks, 3),
	}

	// Load. Missing files degrade into schema findings, never errors.
	loader := dataset.NewLoader(a.cfg.RawDir)
	tables := make(map[string]*dataset.Table, 3)
	for _, spec := range dataset.AllSpecs() {
		start := time.Now()
		t := loader.Load(spec)
		a.stats.RecordLoad(spec.Name, t.RowCount(), time.Since(start))

		tables[spec.Name] = t
		summary.Datasets = append(summary.Datasets, types.DatasetStat{
			Name:    spec.Name,
			Rows:    t.RowCount(),
			Missing: t.Missing,
		})
		summary.MissingValues[spec.Name] = t.Blanks

		if t.Missing {
			summary.Fingerprints[spec.Name] = ""
			log.Printf("[WARN] app: %s is missing, auditing without it", spec.Filename)
			continue
		}

		fp, err := fingerprint.HashFile(loader.Path(spec))
		if err != nil {
			log.Printf("[WARN] app: fingerprinting %s: %v", spec.Filename, err)
		}
		summary.Fingerprints[spec.Name] = fp
		log.Printf("app: loaded %s (%d rows)", spec.Filename, t.RowCount())
	}

	// Check.
	summary.Results = checks.RunWithStats(checks.Datasets{
		Events:       tables["events"],
		Transactions: tables["transactions"],
		Attendance:   tables["attendance"],
	}, a.stats)
	log.Printf("app: %d checks found %d issues", len(summary.Results), summary.TotalIssues())

	// Report and sidecar.
	reportBytes := report.RenderMarkdown(a.cfg.Report.Title, summary)
	checksum := fingerprint.HashBytes(reportBytes)

	if err := os.WriteFile(a.cfg.ReportPath(), reportBytes, 0644); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}
	meta := report.NewMetadata(summary, a.version, checksum)
	if err := meta.WriteToFile(a.cfg.MetadataPath()); err != nil {
		return nil, fmt.Errorf("failed to write report metadata: %w", err)
	}
	log.Printf("app: report written to %s", a.cfg.ReportPath())

	// The report is on disk at this point. Catalog and storage trouble
	// must not fail the audit, so the remaining steps warn instead.
	a.recordRun(ctx, summary, reportBytes, checksum)

	if a.cfg.Publish.Enabled {
		a.publishRun(ctx, runID)
	}

	return summary, nil
}

// RunGenerate writes synthetic extracts into the raw directory.
func (a *App) RunGenerate() error {
	params := generator.Params{
		Seed:         a.cfg.Generator.Seed,
		Transactions: a.cfg.Generator.Transactions,
		Year:         a.cfg.Generator.Year,
		AnomalyRate:  a.cfg.Generator.AnomalyRate,
	}
	log.Printf("app: generating %d transactions (seed %d, year %d, anomaly rate %g)",
		params.Transactions, params.Seed, params.Year, params.AnomalyRate)

	return generator.WriteFiles(a.cfg.RawDir, generator.New(params).Generate())
}

// RunExport builds the BI artifacts from the raw extracts.
func (a *App) RunExport(ctx context.Context) error {
	builder, err := export.NewBuilder(dataset.NewLoader(a.cfg.RawDir).LoadAll())
	if err != nil {
		return err
	}
	bi := builder.Build()

	if _, err := export.WriteCSV(a.cfg.Export.OutDir, bi); err != nil {
		return err
	}
	if a.cfg.Export.SQLite {
		if _, err := export.WriteSQLite(ctx, a.cfg.Export.OutDir, bi); err != nil {
			return err
		}
	}
	return nil
}

// LogTimings prints dataset load and check timings. Wired to the verbose
// flag.
func (a *App) LogTimings() {
	for _, d := range a.stats.Datasets() {
		log.Printf("app: loaded %s (%d rows) in %v", d.Dataset, d.Rows, d.Duration)
	}
	for _, c := range a.stats.TopSlowChecks(5) {
		log.Printf("app: check %q took %v", c.Check, c.Duration)
	}
	log.Printf("app: total check time %v", a.stats.TotalCheckTime())
}

// recordRun appends the run to the catalog and applies retention.
func (a *App) recordRun(ctx context.Context, summary *types.RunSummary, reportBytes []byte, checksum string) {
	cat, err := catalog.NewCatalog(a.cfg.CatalogPath())
	if err != nil {
		log.Printf("[WARN] app: opening run catalog: %v", err)
		return
	}
	defer cat.Close()

	if err := cat.RecordRun(ctx, summary, reportBytes, checksum); err != nil {
		log.Printf("[WARN] app: recording run: %v", err)
		return
	}
	log.Printf("app: run %s recorded in %s", summary.RunID, a.cfg.CatalogPath())

	if a.cfg.History.Keep > 0 {
		expired, err := cat.PruneRuns(ctx, a.cfg.History.Keep)
		if err != nil {
			log.Printf("[WARN] app: pruning catalog: %v", err)
			return
		}
		if len(expired) > 0 {
			log.Printf("app: pruned %d runs, keeping newest %d", len(expired), a.cfg.History.Keep)
		}
	}
}

// publishRun copies the report artifacts to object storage.
func (a *App) publishRun(ctx context.Context, runID types.RunID) {
	store, err := OpenStorage(ctx, a.cfg)
	if err != nil {
		log.Printf("[WARN] app: initializing storage: %v", err)
		return
	}

	pub := storage.NewPublisher(store, a.cfg.Publish.Prefix)
	if err := pub.PublishRun(ctx, runID, a.cfg.ReportPath(), a.cfg.MetadataPath()); err != nil {
		log.Printf("[WARN] app: publishing run %s: %v", runID, err)
	}
}

// OpenStorage builds the object store named by the configuration. It is
// shared by the audit pipeline and the history CLI.
func OpenStorage(ctx context.Context, cfg *config.Config) (storage.ObjectStorage, error) {
	switch cfg.Storage.Type {
	case "local":
		return storage.NewLocalStorage(cfg.Storage.Path)
	case "s3":
		s3Cfg := storage.DefaultS3Config()
		if cfg.Storage.S3.Region != "" {
			s3Cfg.Region = cfg.Storage.S3.Region
		}
		if cfg.Storage.S3.Endpoint != "" {
			s3Cfg.Endpoint = cfg.Storage.S3.Endpoint
		}
		return storage.NewS3Storage(ctx, cfg.Storage.S3.Bucket, s3Cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}
