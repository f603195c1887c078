package store

import (
	"errors"
	"sync"
	"testing"

	"causerie/pkg/models"
)

func openStore(t *testing.T) {
	t.Helper()
	if err := Open(t.TempDir() + "/db"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = Close() })
}

func TestContactPairUniqueness_BothDirections(t *testing.T) {
	openStore(t)
	c := models.Contact{ID: "c1", UserA: "u1", UserB: "u2"}
	if err := InsertContact(c); err != nil {
		t.Fatalf("InsertContact: %v", err)
	}
	if err := InsertContact(models.Contact{ID: "c2", UserA: "u1", UserB: "u2"}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists for same direction, got %v", err)
	}
	if err := InsertContact(models.Contact{ID: "c3", UserA: "u2", UserB: "u1"}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists for reversed direction, got %v", err)
	}
}

func TestContactPairLookupAndDelete(t *testing.T) {
	openStore(t)
	if err := InsertContact(models.Contact{ID: "c1", UserA: "u1", UserB: "u2"}); err != nil {
		t.Fatalf("InsertContact: %v", err)
	}
	got, err := GetContactByPair("u2", "u1")
	if err != nil {
		t.Fatalf("GetContactByPair: %v", err)
	}
	if got.ID != "c1" {
		t.Fatalf("expected c1, got %s", got.ID)
	}
	if err := DeleteContact("c1"); err != nil {
		t.Fatalf("DeleteContact: %v", err)
	}
	if _, err := GetContactByPair("u1", "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	// pair index released: re-insert succeeds
	if err := InsertContact(models.Contact{ID: "c2", UserA: "u1", UserB: "u2"}); err != nil {
		t.Fatalf("re-InsertContact: %v", err)
	}
}

func TestPrivateDiscussionUniqueness(t *testing.T) {
	openStore(t)
	d := models.Discussion{ID: "d1", Kind: models.KindPrivate}
	if _, err := InsertPrivateDiscussion(d, "u1", "u2"); err != nil {
		t.Fatalf("InsertPrivateDiscussion: %v", err)
	}
	existing, err := InsertPrivateDiscussion(models.Discussion{ID: "d2", Kind: models.KindPrivate}, "u2", "u1")
	if !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if existing != "d1" {
		t.Fatalf("expected existing id d1, got %s", existing)
	}
	id, err := GetPrivatePair("u1", "u2")
	if err != nil || id != "d1" {
		t.Fatalf("GetPrivatePair = %q, %v; want d1", id, err)
	}
}

func TestMessageOrdering(t *testing.T) {
	openStore(t)
	if err := InsertDiscussion(models.Discussion{ID: "d1", Kind: models.KindGroup}); err != nil {
		t.Fatalf("InsertDiscussion: %v", err)
	}
	for i, id := range []string{"m1", "m2", "m3"} {
		m := models.Message{ID: id, Discussion: "d1", Sender: "u1", Text: "hello", CreatedTS: int64(i)}
		if err := InsertMessage(m); err != nil {
			t.Fatalf("InsertMessage %s: %v", id, err)
		}
	}
	msgs, err := ListMessages("d1")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, want := range []string{"m1", "m2", "m3"} {
		if msgs[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, msgs[i].ID)
		}
	}
}

func TestUpdateMessageKeepsPosition(t *testing.T) {
	openStore(t)
	for _, id := range []string{"m1", "m2"} {
		if err := InsertMessage(models.Message{ID: id, Discussion: "d1", Sender: "u1", Text: "v1"}); err != nil {
			t.Fatalf("InsertMessage: %v", err)
		}
	}
	if _, err := UpdateMessage("m1", func(m *models.Message) error {
		m.Text = "v2"
		return nil
	}); err != nil {
		t.Fatalf("UpdateMessage: %v", err)
	}
	msgs, err := ListMessages("d1")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if msgs[0].ID != "m1" || msgs[0].Text != "v2" {
		t.Fatalf("expected m1 updated in place, got %+v", msgs[0])
	}
}

func TestDeleteDiscussionCascades(t *testing.T) {
	openStore(t)
	if _, err := InsertPrivateDiscussion(models.Discussion{ID: "d1", Kind: models.KindPrivate}, "u1", "u2"); err != nil {
		t.Fatalf("InsertPrivateDiscussion: %v", err)
	}
	if err := InsertMessage(models.Message{ID: "m1", Discussion: "d1", Sender: "u1", Text: "x"}); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}
	removed, err := DeleteDiscussion("d1")
	if err != nil {
		t.Fatalf("DeleteDiscussion: %v", err)
	}
	if len(removed) != 1 || removed[0].ID != "m1" {
		t.Fatalf("expected removed messages [m1], got %+v", removed)
	}
	if _, err := GetMessage("m1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected message gone, got %v", err)
	}
	if _, err := GetPrivatePair("u1", "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected pair index gone, got %v", err)
	}
}

func TestConcurrentGuardedUpdates(t *testing.T) {
	openStore(t)
	if err := InsertMessage(models.Message{ID: "m1", Discussion: "d1", Sender: "u1", Text: "x", Signalers: []string{}}); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _ = UpdateMessage("m1", func(m *models.Message) error {
				m.Signalers = append(m.Signalers, string(rune('a'+n)))
				return nil
			})
		}(i)
	}
	wg.Wait()
	m, err := GetMessage("m1")
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if len(m.Signalers) != 20 {
		t.Fatalf("expected 20 signalers, got %d (lost updates)", len(m.Signalers))
	}
}
