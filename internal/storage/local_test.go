package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

func TestLocalStorage_UploadDownload(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	content := "hello world"
	srcPath := writeTestFile(t, "test.txt", content)

	ctx := context.Background()

	// Test Upload
	objectPath := "test/object.txt"
	if err := store.Upload(ctx, srcPath, objectPath); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	// Test Exists
	exists, err := store.Exists(ctx, objectPath)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected object to exist")
	}

	// Upload tracks an ETag for later conditional writes
	if etag, ok := store.GetETag(objectPath); !ok || etag == "" {
		t.Errorf("expected stored ETag, got %q (ok=%v)", etag, ok)
	}

	// Test Download
	dstPath := filepath.Join(t.TempDir(), "downloaded.txt")
	if err := store.Download(ctx, objectPath, dstPath); err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	downloaded, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatalf("failed to read downloaded file: %v", err)
	}
	if string(downloaded) != content {
		t.Errorf("content mismatch: got %q, want %q", downloaded, content)
	}

	// Test Delete
	if err := store.Delete(ctx, objectPath); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	exists, err = store.Exists(ctx, objectPath)
	if err != nil {
		t.Fatalf("Exists after delete failed: %v", err)
	}
	if exists {
		t.Error("expected object to not exist after delete")
	}
}

func TestLocalStorage_ConditionalPut_CreateOnly(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	srcPath := writeTestFile(t, "test.txt", "create-only test")
	ctx := context.Background()
	objectPath := "conditional/object.txt"

	// Fresh key succeeds
	if err := store.ConditionalPut(ctx, srcPath, objectPath, ""); err != nil {
		t.Fatalf("ConditionalPut on fresh key failed: %v", err)
	}

	// Second create-only put must not clobber
	err = store.ConditionalPut(ctx, srcPath, objectPath, "")
	if !errors.Is(err, ErrObjectAlreadyExists) {
		t.Errorf("expected ErrObjectAlreadyExists, got %v", err)
	}
}

func TestLocalStorage_ConditionalPut_IfMatch(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	srcPath := writeTestFile(t, "test.txt", "if-match test")
	ctx := context.Background()
	objectPath := "conditional/object.txt"

	if err := store.Upload(ctx, srcPath, objectPath); err != nil {
		t.Fatalf("initial upload failed: %v", err)
	}
	etag, ok := store.GetETag(objectPath)
	if !ok {
		t.Fatal("expected ETag after upload")
	}

	// Conditional put with correct ETag should succeed
	if err := store.ConditionalPut(ctx, srcPath, objectPath, etag); err != nil {
		t.Fatalf("ConditionalPut with correct ETag failed: %v", err)
	}

	// Conditional put with wrong ETag should fail
	err = store.ConditionalPut(ctx, srcPath, objectPath, "wrong-etag")
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("expected ErrPreconditionFailed, got %v", err)
	}

	// If-match against a missing object should fail
	err = store.ConditionalPut(ctx, srcPath, "conditional/missing.txt", etag)
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("expected ErrPreconditionFailed for missing object, got %v", err)
	}
}

func TestLocalStorage_DownloadNotFound(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	ctx := context.Background()
	dstPath := filepath.Join(t.TempDir(), "downloaded.txt")

	err = store.Download(ctx, "nonexistent/object.txt", dstPath)
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestLocalStorage_ListObjects(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	srcPath := writeTestFile(t, "test.txt", "list test")
	ctx := context.Background()

	for _, obj := range []string{"runs/a/report.md", "runs/a/metadata.json", "runs/b/report.md"} {
		if err := store.Upload(ctx, srcPath, obj); err != nil {
			t.Fatalf("Upload(%s) failed: %v", obj, err)
		}
	}

	objects, err := store.ListObjects(ctx, "runs/a")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	sort.Strings(objects)
	want := []string{"runs/a/metadata.json", "runs/a/report.md"}
	if len(objects) != len(want) || objects[0] != want[0] || objects[1] != want[1] {
		t.Errorf("ListObjects = %v, want %v", objects, want)
	}

	// Missing prefix lists nothing
	empty, err := store.ListObjects(ctx, "runs/nope")
	if err != nil {
		t.Fatalf("ListObjects on missing prefix failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("ListObjects on missing prefix = %v, want empty", empty)
	}
}

func TestLocalStorage_Clear(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	srcPath := writeTestFile(t, "test.txt", "test")
	ctx := context.Background()

	// Upload some objects
	if err := store.Upload(ctx, srcPath, "obj1.txt"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if err := store.Upload(ctx, srcPath, "obj2.txt"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	// Clear storage
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	// Verify objects are gone
	exists, _ := store.Exists(ctx, "obj1.txt")
	if exists {
		t.Error("expected obj1.txt to not exist after clear")
	}
	exists, _ = store.Exists(ctx, "obj2.txt")
	if exists {
		t.Error("expected obj2.txt to not exist after clear")
	}
}
