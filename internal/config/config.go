// Package config provides unified configuration for the tixaudit tools.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the unified configuration for all tixaudit binaries.
type Config struct {
	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// RawDir is the directory holding the three CSV extracts
	RawDir string `json:"raw_dir" yaml:"raw_dir"`

	// CatalogFile optionally overrides the run catalog database location
	CatalogFile string `json:"catalog_file" yaml:"catalog_file"`

	// Report configuration
	Report ReportConfig `json:"report" yaml:"report"`

	// Generator configuration
	Generator GeneratorConfig `json:"generator" yaml:"generator"`

	// Export configuration
	Export ExportConfig `json:"export" yaml:"export"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Publish configuration
	Publish PublishConfig `json:"publish" yaml:"publish"`

	// History configuration
	History HistoryConfig `json:"history" yaml:"history"`

	// NoColor disables colored console output
	NoColor bool `json:"no_color" yaml:"no_color"`

	// Verbose enables per-check timing output
	Verbose bool `json:"verbose" yaml:"verbose"`
}

// ReportConfig holds report output configuration.
type ReportConfig struct {
	// Dir is the directory for the markdown report and its metadata sidecar
	Dir string `json:"dir" yaml:"dir"`

	// Title is the report document title
	Title string `json:"title" yaml:"title"`
}

// GeneratorConfig holds synthetic dataset generator configuration.
type GeneratorConfig struct {
	// Seed drives all sampling; identical seeds produce identical files
	Seed int64 `json:"seed" yaml:"seed"`

	// Transactions is the number of transactions to generate
	Transactions int `json:"transactions" yaml:"transactions"`

	// Year anchors event dates (staggered from March 15 of this year)
	Year int `json:"year" yaml:"year"`

	// AnomalyRate is the fraction of rows seeded with quality defects (0..1)
	AnomalyRate float64 `json:"anomaly_rate" yaml:"anomaly_rate"`
}

// ExportConfig holds BI export configuration.
type ExportConfig struct {
	// OutDir is the directory for merged export artifacts
	OutDir string `json:"out_dir" yaml:"out_dir"`

	// SQLite controls whether the SQLite artifact is built alongside the CSV
	SQLite bool `json:"sqlite" yaml:"sqlite"`
}

// StorageConfig holds artifact storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// PublishConfig holds report publishing configuration.
type PublishConfig struct {
	// Enabled controls whether reports are published to object storage
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Prefix is the key prefix for published run artifacts
	Prefix string `json:"prefix" yaml:"prefix"`
}

// HistoryConfig holds run history retention configuration.
type HistoryConfig struct {
	// Keep is the number of catalog runs to retain; 0 keeps everything
	Keep int `json:"keep" yaml:"keep"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/tixaudit",
		Report: ReportConfig{
			Title: "Data Quality Report",
		},
		Generator: GeneratorConfig{
			Seed:         42,
			Transactions: 25000,
			Year:         2026,
			AnomalyRate:  0,
		},
		Export: ExportConfig{
			SQLite: false,
		},
		Storage: StorageConfig{
			Type: "local",
			Path: "",
		},
		Publish: PublishConfig{
			Enabled: false,
			Prefix:  "tixaudit",
		},
		History: HistoryConfig{
			Keep: 0,
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/tixaudit"
	}

	if c.RawDir == "" {
		c.RawDir = filepath.Join(c.DataDir, "raw")
	}

	if c.Report.Dir == "" {
		c.Report.Dir = filepath.Join(c.DataDir, "reports")
	}

	if c.Export.OutDir == "" {
		c.Export.OutDir = filepath.Join(c.DataDir, "processed")
	}

	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}
}

// CatalogPath returns the path to the run catalog database.
func (c *Config) CatalogPath() string {
	if c.CatalogFile != "" {
		return c.CatalogFile
	}
	return filepath.Join(c.DataDir, "catalog.db")
}

// ReportPath returns the path to the markdown report.
func (c *Config) ReportPath() string {
	return filepath.Join(c.Report.Dir, "data_quality_report.md")
}

// MetadataPath returns the path to the report metadata sidecar.
func (c *Config) MetadataPath() string {
	return filepath.Join(c.Report.Dir, "run_metadata.json")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	if c.Generator.Transactions < 1 {
		return fmt.Errorf("generator.transactions must be at least 1, got %d", c.Generator.Transactions)
	}

	if c.Generator.Year < 2000 || c.Generator.Year > 2100 {
		return fmt.Errorf("generator.year must be between 2000 and 2100, got %d", c.Generator.Year)
	}

	if c.Generator.AnomalyRate < 0 || c.Generator.AnomalyRate > 1 {
		return fmt.Errorf("generator.anomaly_rate must be between 0 and 1, got %g", c.Generator.AnomalyRate)
	}

	if c.History.Keep < 0 {
		return fmt.Errorf("history.keep must not be negative, got %d", c.History.Keep)
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the TIXAUDIT_ prefix. A .env file in the
// working directory is loaded first when present.
func LoadFromEnv(cfg *Config) {
	// .env is optional; real environment variables win over its contents.
	_ = godotenv.Load()

	if v := os.Getenv("TIXAUDIT_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("TIXAUDIT_RAW_DIR"); v != "" {
		cfg.RawDir = v
	}
	if v := os.Getenv("TIXAUDIT_CATALOG_FILE"); v != "" {
		cfg.CatalogFile = v
	}

	// Report configuration
	if v := os.Getenv("TIXAUDIT_REPORT_DIR"); v != "" {
		cfg.Report.Dir = v
	}
	if v := os.Getenv("TIXAUDIT_REPORT_TITLE"); v != "" {
		cfg.Report.Title = v
	}

	// Generator configuration
	if v := os.Getenv("TIXAUDIT_SEED"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Generator.Seed)
	}
	if v := os.Getenv("TIXAUDIT_TRANSACTIONS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Generator.Transactions)
	}
	if v := os.Getenv("TIXAUDIT_YEAR"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Generator.Year)
	}
	if v := os.Getenv("TIXAUDIT_ANOMALY_RATE"); v != "" {
		fmt.Sscanf(v, "%g", &cfg.Generator.AnomalyRate)
	}

	// Export configuration
	if v := os.Getenv("TIXAUDIT_EXPORT_DIR"); v != "" {
		cfg.Export.OutDir = v
	}
	if v := os.Getenv("TIXAUDIT_EXPORT_SQLITE"); v != "" {
		cfg.Export.SQLite = v == "true" || v == "1"
	}

	// Storage configuration
	if v := os.Getenv("TIXAUDIT_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("TIXAUDIT_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("TIXAUDIT_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("TIXAUDIT_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("TIXAUDIT_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}

	// Publish configuration
	if v := os.Getenv("TIXAUDIT_PUBLISH"); v != "" {
		cfg.Publish.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("TIXAUDIT_PUBLISH_PREFIX"); v != "" {
		cfg.Publish.Prefix = v
	}

	// History configuration
	if v := os.Getenv("TIXAUDIT_HISTORY_KEEP"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.History.Keep)
	}

	if v := os.Getenv("TIXAUDIT_NO_COLOR"); v != "" {
		cfg.NoColor = v == "true" || v == "1"
	}
	if v := os.Getenv("TIXAUDIT_VERBOSE"); v != "" {
		cfg.Verbose = v == "true" || v == "1"
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.RawDir,
		c.Report.Dir,
		c.Export.OutDir,
		c.Storage.Path,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
