package blob

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStoreCopyDelete(t *testing.T) {
	if err := Init(t.TempDir()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	ref, err := Store([]byte("hello"), "png")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if ref.Size != 5 || ref.Ext != "png" {
		t.Fatalf("unexpected ref: %+v", ref)
	}
	if !Exists(ref.Path) {
		t.Fatalf("stored blob missing")
	}

	dup, err := Copy(ref.Path)
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if dup == ref.Path {
		t.Fatalf("copy must get its own path")
	}
	if err := Delete(ref.Path); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if Exists(ref.Path) {
		t.Fatalf("original should be gone")
	}
	if !Exists(dup) {
		t.Fatalf("copy must survive the original's deletion")
	}
	// deleting a missing blob is not an error
	if err := Delete(ref.Path); err != nil {
		t.Fatalf("double Delete: %v", err)
	}

	paths, err := ListPaths()
	if err != nil {
		t.Fatalf("ListPaths: %v", err)
	}
	if len(paths) != 1 || paths[0] != dup {
		t.Fatalf("expected [%s], got %v", dup, paths)
	}
}

func TestCopyCreatesDestinationDir(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir); err != nil {
		t.Fatalf("Init: %v", err)
	}
	// a source outside the messages tree, so the destination
	// directory does not exist yet
	if err := os.MkdirAll(filepath.Join(dir, "imported"), 0o750); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "imported", "a.png"), []byte("x"), 0o640); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	dst, err := Copy("imported/a.png")
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if !Exists(dst) {
		t.Fatalf("copied blob missing at %s", dst)
	}
}
