package storage

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sync"

	"golang.org/x/sync/semaphore"

	aerrors "github.com/tixaudit/tixaudit/internal/errors"
	"github.com/tixaudit/tixaudit/pkg/types"
)

// Fetcher downloads published run artifacts in parallel with bounded
// concurrency. Files already present in the destination are kept, so
// re-fetching a run is cheap.
type Fetcher struct {
	store       ObjectStorage
	concurrency int
}

// FetchResult contains the outcome of a fetch operation.
type FetchResult struct {
	LocalPaths map[string]string // object path -> local path
	Errors     map[string]error  // object path -> download error
	Skipped    int               // already present locally
	Downloads  int
}

// NewFetcher creates a fetcher. concurrency caps parallel downloads and
// must be at least 1.
func NewFetcher(store ObjectStorage, concurrency int) *Fetcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Fetcher{store: store, concurrency: concurrency}
}

// FetchRun downloads every artifact published for a run into destDir,
// keeping the artifact file names. Individual download failures land in
// FetchResult.Errors; only listing failures and an unpublished run fail
// the call.
func (f *Fetcher) FetchRun(ctx context.Context, pub *Publisher, runID types.RunID, destDir string) (*FetchResult, error) {
	objects, err := pub.ListRunArtifacts(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, aerrors.NewStorageError(aerrors.CodeObjectNotFound,
			"run "+runID.String()+" has no published artifacts", nil)
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, aerrors.NewStorageError(aerrors.CodeDownloadFailed, "failed to create destination directory", err)
	}

	result := &FetchResult{
		LocalPaths: make(map[string]string),
		Errors:     make(map[string]error),
	}

	var queue []string
	for _, obj := range objects {
		local := filepath.Join(destDir, path.Base(obj))
		if _, err := os.Stat(local); err == nil {
			result.LocalPaths[obj] = local
			result.Skipped++
			continue
		}
		queue = append(queue, obj)
	}

	sem := semaphore.NewWeighted(int64(f.concurrency))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, obj := range queue {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			result.Errors[obj] = err
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(objectPath, localPath string) {
			defer sem.Release(1)
			defer wg.Done()

			if err := f.store.Download(ctx, objectPath, localPath); err != nil {
				mu.Lock()
				result.Errors[objectPath] = err
				mu.Unlock()
				return
			}

			mu.Lock()
			result.LocalPaths[objectPath] = localPath
			result.Downloads++
			mu.Unlock()
		}(obj, filepath.Join(destDir, path.Base(obj)))
	}

	wg.Wait()

	return result, nil
}
