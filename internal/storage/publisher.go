package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"

	"github.com/google/uuid"

	aerrors "github.com/tixaudit/tixaudit/internal/errors"
	"github.com/tixaudit/tixaudit/pkg/types"
)

// Publisher uploads run artifacts under a fixed object layout:
//
//	<prefix>/runs/<run_id>/report.md
//	<prefix>/runs/<run_id>/metadata.json
//
// Runs are immutable, so every upload is create-only and re-publishing an
// already published run skips the existing objects.
type Publisher struct {
	store   ObjectStorage
	prefix  string
	session string // tags log lines from one publisher instance
}

// NewPublisher creates a publisher on top of store. prefix namespaces all
// published objects and may be empty.
func NewPublisher(store ObjectStorage, prefix string) *Publisher {
	return &Publisher{
		store:   store,
		prefix:  strings.Trim(prefix, "/"),
		session: uuid.New().String()[:8],
	}
}

// RunPrefix returns the object prefix holding a run's artifacts.
func (p *Publisher) RunPrefix(runID types.RunID) string {
	if p.prefix == "" {
		return path.Join("runs", runID.String())
	}
	return path.Join(p.prefix, "runs", runID.String())
}

// PublishRun uploads the markdown report and metadata sidecar of a run.
func (p *Publisher) PublishRun(ctx context.Context, runID types.RunID, reportPath, metadataPath string) error {
	artifacts := []struct {
		local  string
		object string
	}{
		{reportPath, path.Join(p.RunPrefix(runID), "report.md")},
		{metadataPath, path.Join(p.RunPrefix(runID), "metadata.json")},
	}

	for _, a := range artifacts {
		err := p.store.ConditionalPut(ctx, a.local, a.object, "")
		if errors.Is(err, ErrObjectAlreadyExists) {
			log.Printf("[WARN] storage: %s already published, skipping (session %s)", a.object, p.session)
			continue
		}
		if err != nil {
			return aerrors.NewStorageError(aerrors.CodePublishFailed,
				fmt.Sprintf("failed to publish %s", a.object), err)
		}
		log.Printf("storage: published %s (session %s)", a.object, p.session)
	}
	return nil
}

// ListRunArtifacts returns the object paths published for a run.
func (p *Publisher) ListRunArtifacts(ctx context.Context, runID types.RunID) ([]string, error) {
	objects, err := p.store.ListObjects(ctx, p.RunPrefix(runID))
	if err != nil {
		return nil, aerrors.NewStorageError(aerrors.CodeDownloadFailed, "failed to list run artifacts", err)
	}
	return objects, nil
}
