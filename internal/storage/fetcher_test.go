package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aerrors "github.com/tixaudit/tixaudit/internal/errors"
	"github.com/tixaudit/tixaudit/pkg/types"
)

const (
	fetchTestReport   = "# Data Quality Report\n\nall clear\n"
	fetchTestMetadata = `{"run_id":"test"}`
)

// publishTestRun publishes a report and its sidecar and returns the pieces
// a fetch needs.
func publishTestRun(t *testing.T) (*LocalStorage, *Publisher, types.RunID) {
	t.Helper()

	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	srcDir := t.TempDir()
	reportPath := filepath.Join(srcDir, "data_quality_report.md")
	metadataPath := filepath.Join(srcDir, "run_metadata.json")
	require.NoError(t, os.WriteFile(reportPath, []byte(fetchTestReport), 0644))
	require.NoError(t, os.WriteFile(metadataPath, []byte(fetchTestMetadata), 0644))

	runID, err := types.NewRunID()
	require.NoError(t, err)

	pub := NewPublisher(store, "tixaudit")
	require.NoError(t, pub.PublishRun(context.Background(), runID, reportPath, metadataPath))

	return store, pub, runID
}

func TestFetchRun_DownloadsAllArtifacts(t *testing.T) {
	store, pub, runID := publishTestRun(t)
	fetcher := NewFetcher(store, 2)
	destDir := t.TempDir()

	res, err := fetcher.FetchRun(context.Background(), pub, runID, destDir)
	require.NoError(t, err)

	assert.Empty(t, res.Errors)
	assert.Equal(t, 2, res.Downloads)
	assert.Zero(t, res.Skipped)
	assert.Len(t, res.LocalPaths, 2)

	body, err := os.ReadFile(filepath.Join(destDir, "report.md"))
	require.NoError(t, err)
	assert.Equal(t, fetchTestReport, string(body))
}

func TestFetchRun_SecondFetchIsCached(t *testing.T) {
	store, pub, runID := publishTestRun(t)
	fetcher := NewFetcher(store, 2)
	destDir := t.TempDir()

	_, err := fetcher.FetchRun(context.Background(), pub, runID, destDir)
	require.NoError(t, err)

	res, err := fetcher.FetchRun(context.Background(), pub, runID, destDir)
	require.NoError(t, err)

	assert.Zero(t, res.Downloads)
	assert.Equal(t, 2, res.Skipped)
	assert.Len(t, res.LocalPaths, 2)
}

func TestFetchRun_UnpublishedRun(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	pub := NewPublisher(store, "tixaudit")
	fetcher := NewFetcher(store, 2)

	runID, err := types.NewRunID()
	require.NoError(t, err)

	_, err = fetcher.FetchRun(context.Background(), pub, runID, t.TempDir())
	require.Error(t, err)
	assert.Equal(t, aerrors.CodeObjectNotFound, aerrors.GetCode(err))
}

func TestNewFetcher_ConcurrencyFloor(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	fetcher := NewFetcher(store, 0)
	assert.Equal(t, 1, fetcher.concurrency)
}
