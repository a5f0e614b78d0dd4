package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tixaudit/tixaudit/pkg/types"
)

// Metadata is the JSON sidecar written next to the markdown report. The
// report body stays byte-identical for identical inputs, so run identity,
// timing, and checksums live here.
type Metadata struct {
	RunID          string            `json:"run_id"`
	ToolVersion    string            `json:"tool_version"`
	CreatedAt      int64             `json:"created_at"`
	DatasetRows    map[string]int64  `json:"dataset_rows"`
	Fingerprints   map[string]string `json:"fingerprints"`
	TotalIssues    int64             `json:"total_issues"`
	FailedChecks   int               `json:"failed_checks"`
	ReportChecksum string            `json:"report_checksum"`
}

// NewMetadata builds the sidecar for a summary. reportChecksum is the
// fingerprint of the rendered markdown bytes.
func NewMetadata(summary *types.RunSummary, toolVersion, reportChecksum string) *Metadata {
	rows := make(map[string]int64, len(summary.Datasets))
	for _, d := range summary.Datasets {
		if d.Missing {
			continue
		}
		rows[d.Name] = d.Rows
	}
	return &Metadata{
		RunID:          summary.RunID.String(),
		ToolVersion:    toolVersion,
		CreatedAt:      summary.CreatedAt.Unix(),
		DatasetRows:    rows,
		Fingerprints:   summary.Fingerprints,
		TotalIssues:    summary.TotalIssues(),
		FailedChecks:   summary.FailedChecks(),
		ReportChecksum: reportChecksum,
	}
}

// ToJSON serializes the sidecar with indentation for readability.
func (m *Metadata) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("report: failed to marshal metadata: %w", err)
	}
	return data, nil
}

// FromJSON deserializes a sidecar from JSON bytes.
func FromJSON(data []byte) (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("report: failed to unmarshal metadata: %w", err)
	}
	return &m, nil
}

// WriteToFile writes the sidecar to the given path.
func (m *Metadata) WriteToFile(path string) error {
	data, err := m.ToJSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("report: failed to write metadata file: %w", err)
	}
	return nil
}

// ReadMetadataFromFile reads a sidecar from the given path.
func ReadMetadataFromFile(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("report: failed to read metadata file: %w", err)
	}
	return FromJSON(data)
}

// CreatedAtTime converts the stored unix timestamp back to time.Time.
func (m *Metadata) CreatedAtTime() time.Time {
	return time.Unix(m.CreatedAt, 0)
}
