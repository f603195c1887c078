package retention

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"causerie/pkg/blob"
	"causerie/pkg/config"
	"causerie/pkg/models"
	"causerie/pkg/store"
)

// ageBlob backdates a blob's mtime past the orphan grace window.
func ageBlob(t *testing.T, blobDir, path string) {
	t.Helper()
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(blobDir, path), old, old); err != nil {
		t.Fatalf("os.Chtimes: %v", err)
	}
}

func TestRunImmediate(t *testing.T) {
	if err := store.Open(t.TempDir() + "/db"); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	blobDir := t.TempDir()
	if err := blob.Init(blobDir); err != nil {
		t.Fatalf("blob.Init: %v", err)
	}

	// abandoned: everyone left long ago
	dead := models.Discussion{
		ID:   "dead",
		Kind: models.KindGroup,
		Participants: []models.Participant{
			{ID: "u1", Removed: true},
			{ID: "u2", Removed: true},
		},
		UpdatedTS: 1,
	}
	if err := store.InsertDiscussion(dead); err != nil {
		t.Fatalf("InsertDiscussion: %v", err)
	}
	deadRef, err := blob.Store([]byte("old"), "png")
	if err != nil {
		t.Fatalf("blob.Store: %v", err)
	}
	if err := store.InsertMessage(models.Message{ID: "m1", Discussion: "dead", Sender: "u1", File: &deadRef}); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}

	// live discussion with a referenced attachment
	live := models.Discussion{
		ID:           "live",
		Kind:         models.KindGroup,
		Participants: []models.Participant{{ID: "u1"}, {ID: "u2"}},
		UpdatedTS:    1,
	}
	if err := store.InsertDiscussion(live); err != nil {
		t.Fatalf("InsertDiscussion live: %v", err)
	}
	liveRef, err := blob.Store([]byte("new"), "png")
	if err != nil {
		t.Fatalf("blob.Store: %v", err)
	}
	if err := store.InsertMessage(models.Message{ID: "m2", Discussion: "live", Sender: "u1", File: &liveRef}); err != nil {
		t.Fatalf("InsertMessage live: %v", err)
	}

	// an orphan on disk with no message pointing at it
	orphanRef, err := blob.Store([]byte("orphan"), "png")
	if err != nil {
		t.Fatalf("blob.Store orphan: %v", err)
	}
	ageBlob(t, blobDir, orphanRef.Path)

	cfg := &config.Config{}
	cfg.Retention.Enabled = true
	cfg.Retention.Period = "1ms"
	SetConfig(cfg)
	if err := RunImmediate(); err != nil {
		t.Fatalf("RunImmediate: %v", err)
	}

	if _, err := store.GetDiscussion("dead"); err == nil {
		t.Fatalf("abandoned discussion should be purged")
	}
	if _, err := store.GetDiscussion("live"); err != nil {
		t.Fatalf("live discussion must survive: %v", err)
	}
	if blob.Exists(deadRef.Path) {
		t.Fatalf("purged discussion attachment should be removed")
	}
	if blob.Exists(orphanRef.Path) {
		t.Fatalf("orphan blob should be removed")
	}
	if !blob.Exists(liveRef.Path) {
		t.Fatalf("referenced blob must survive")
	}
}

func TestSweepSparesFreshUnreferencedBlob(t *testing.T) {
	if err := store.Open(t.TempDir() + "/db"); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	blobDir := t.TempDir()
	if err := blob.Init(blobDir); err != nil {
		t.Fatalf("blob.Init: %v", err)
	}

	// the blob half of a file upload whose message insert has not
	// committed yet
	ref, err := blob.Store([]byte("inflight"), "png")
	if err != nil {
		t.Fatalf("blob.Store: %v", err)
	}

	cfg := &config.Config{}
	cfg.Retention.Enabled = true
	cfg.Retention.Period = "1ms"
	SetConfig(cfg)
	if err := RunImmediate(); err != nil {
		t.Fatalf("RunImmediate: %v", err)
	}
	if !blob.Exists(ref.Path) {
		t.Fatalf("fresh unreferenced blob must survive the sweep")
	}

	// the insert commits; the blob is referenced on the next run
	if err := store.InsertMessage(models.Message{ID: "m1", Discussion: "d1", Sender: "u1", File: &ref}); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}
	if err := store.InsertDiscussion(models.Discussion{
		ID:           "d1",
		Kind:         models.KindGroup,
		Participants: []models.Participant{{ID: "u1"}, {ID: "u2"}},
	}); err != nil {
		t.Fatalf("InsertDiscussion: %v", err)
	}
	ageBlob(t, blobDir, ref.Path)
	if err := RunImmediate(); err != nil {
		t.Fatalf("RunImmediate: %v", err)
	}
	if !blob.Exists(ref.Path) {
		t.Fatalf("referenced blob must survive even past the grace window")
	}
}
