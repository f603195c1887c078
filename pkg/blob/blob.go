// Package blob stores message attachments on the local filesystem under
// a configured root. Paths handed back to callers are relative to that
// root so records stay portable across deployments.
package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"causerie/pkg/logger"
	"causerie/pkg/models"
)

var root string

// Init sets the attachment root directory, creating it if needed.
func Init(dir string) error {
	if dir == "" {
		return fmt.Errorf("empty blob root")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create blob root: %w", err)
	}
	root = dir
	logger.Info("blob_root_ready", "path", dir)
	return nil
}

// Ready reports whether the blob root is configured.
func Ready() bool { return root != "" }

func notConfigured() error {
	return fmt.Errorf("blob root not configured; call blob.Init first")
}

func abs(rel string) string { return filepath.Join(root, filepath.Clean("/"+rel)) }

// Store writes data under a fresh name and returns its FileRef.
func Store(data []byte, ext string) (models.FileRef, error) {
	if root == "" {
		return models.FileRef{}, notConfigured()
	}
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	name := uuid.NewString()
	if ext != "" {
		name += "." + ext
	}
	rel := filepath.Join("messages", name)
	p := abs(rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return models.FileRef{}, err
	}
	if err := os.WriteFile(p, data, 0o640); err != nil {
		logger.Error("blob_store_failed", "path", rel, "error", err)
		return models.FileRef{}, err
	}
	logger.Info("blob_stored", "path", rel, "size", len(data))
	return models.FileRef{Path: rel, Size: int64(len(data)), Ext: ext}, nil
}

// Copy duplicates the blob at path and returns the new path. The copy
// is fully independent of the original.
func Copy(path string) (string, error) {
	if root == "" {
		return "", notConfigured()
	}
	data, err := os.ReadFile(abs(path))
	if err != nil {
		return "", fmt.Errorf("read source blob: %w", err)
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	name := uuid.NewString()
	if ext != "" {
		name += "." + ext
	}
	rel := filepath.Join("messages", name)
	p := abs(rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return "", err
	}
	if err := os.WriteFile(p, data, 0o640); err != nil {
		logger.Error("blob_copy_failed", "src", path, "dst", rel, "error", err)
		return "", err
	}
	logger.Info("blob_copied", "src", path, "dst", rel)
	return rel, nil
}

// Delete removes the blob at path. Missing blobs are not an error.
func Delete(path string) error {
	if root == "" {
		return notConfigured()
	}
	err := os.Remove(abs(path))
	if err != nil && !os.IsNotExist(err) {
		logger.Error("blob_delete_failed", "path", path, "error", err)
		return err
	}
	return nil
}

// ModTime returns the modification time of the blob at path.
func ModTime(path string) (time.Time, error) {
	if root == "" {
		return time.Time{}, notConfigured()
	}
	fi, err := os.Stat(abs(path))
	if err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

// Exists reports whether a blob is present at path.
func Exists(path string) bool {
	if root == "" {
		return false
	}
	_, err := os.Stat(abs(path))
	return err == nil
}

// ListPaths returns the relative paths of all stored blobs.
func ListPaths() ([]string, error) {
	if root == "" {
		return nil, notConfigured()
	}
	var out []string
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, rerr := filepath.Rel(root, p)
		if rerr != nil {
			return rerr
		}
		out = append(out, rel)
		return nil
	})
	return out, err
}
