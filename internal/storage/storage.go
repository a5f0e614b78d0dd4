// Package storage provides object storage for published audit artifacts.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound      = errors.New("object not found")
	ErrObjectAlreadyExists = errors.New("object already exists")
	ErrPreconditionFailed  = errors.New("precondition failed")
	ErrUploadFailed        = errors.New("upload failed")
	ErrDownloadFailed      = errors.New("download failed")
	ErrDeleteFailed        = errors.New("delete failed")
)

// ObjectStorage abstracts object storage operations.
// Implementations cover S3-compatible services and the local filesystem.
type ObjectStorage interface {
	// Upload uploads a file to object storage.
	// localPath is the path to the local file to upload.
	// objectPath is the destination path in object storage.
	Upload(ctx context.Context, localPath, objectPath string) error

	// Download downloads a file from object storage.
	// objectPath is the source path in object storage.
	// localPath is the destination path on the local filesystem.
	Download(ctx context.Context, objectPath, localPath string) error

	// Delete removes an object from storage.
	// objectPath is the path of the object to delete.
	Delete(ctx context.Context, objectPath string) error

	// Exists checks if an object exists in storage.
	// Returns true if the object exists, false otherwise.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ConditionalPut uploads with a precondition. An empty etag requires
	// that the object does not exist yet and fails with
	// ErrObjectAlreadyExists otherwise; a non-empty etag requires the
	// current object to match it and fails with ErrPreconditionFailed
	// otherwise. Run artifacts are immutable, so publishes use the empty
	// form.
	ConditionalPut(ctx context.Context, localPath, objectPath, etag string) error

	// ListObjects returns all object paths under the given prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}
