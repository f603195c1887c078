package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"causerie/pkg/logger"
	"causerie/pkg/models"
)

const (
	discussionNS = "discussion:"
	privPairNS   = "privpair"
)

func discussionMetaKey(id string) string { return discussionNS + id + ":meta" }

// InsertDiscussion writes a new discussion document.
func InsertDiscussion(d models.Discussion) error {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal discussion: %w", err)
	}
	if err := set(discussionMetaKey(d.ID), b); err != nil {
		logger.Error("save_discussion_failed", "discussion", d.ID, "error", err)
		return err
	}
	logger.Info("discussion_saved", "discussion", d.ID, "kind", string(d.Kind))
	return nil
}

// InsertPrivateDiscussion writes a PRIVATE discussion and its pair
// index atomically with respect to other EnsurePrivate callers. Returns
// the existing discussion id via ErrExists semantics: when the pair is
// already indexed the stored id is returned and nothing is written.
func InsertPrivateDiscussion(d models.Discussion, userA, userB string) (string, error) {
	if db == nil {
		return "", notOpened()
	}
	pk := pairKey(privPairNS, userA, userB)
	existing := ""
	err := withKeyLock(pk, func() error {
		if v, err := get(pk); err == nil {
			existing = string(v)
			return ErrExists
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		b, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("marshal discussion: %w", err)
		}
		if err := set(discussionMetaKey(d.ID), b); err != nil {
			return err
		}
		if err := set(pk, []byte(d.ID)); err != nil {
			_ = del(discussionMetaKey(d.ID))
			return err
		}
		logger.Info("private_discussion_saved", "discussion", d.ID, "userA", userA, "userB", userB)
		return nil
	})
	if errors.Is(err, ErrExists) {
		return existing, ErrExists
	}
	return d.ID, err
}

// GetPrivatePair returns the id of the PRIVATE discussion between a and
// b, if one exists.
func GetPrivatePair(a, b string) (string, error) {
	v, err := get(pairKey(privPairNS, a, b))
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// GetDiscussion returns the discussion with the given id.
func GetDiscussion(id string) (models.Discussion, error) {
	var d models.Discussion
	v, err := get(discussionMetaKey(id))
	if err != nil {
		return d, err
	}
	if err := json.Unmarshal(v, &d); err != nil {
		return d, fmt.Errorf("invalid discussion record: %w", err)
	}
	return d, nil
}

// UpdateDiscussion applies fn to the stored discussion under its key
// lock and persists the result. All roster mutations run through here so
// concurrent membership changes cannot lose updates. fn returning an
// error aborts without writing.
func UpdateDiscussion(id string, fn func(*models.Discussion) error) (models.Discussion, error) {
	var out models.Discussion
	key := discussionMetaKey(id)
	err := withKeyLock(key, func() error {
		d, err := GetDiscussion(id)
		if err != nil {
			return err
		}
		if err := fn(&d); err != nil {
			return err
		}
		b, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("marshal discussion: %w", err)
		}
		if err := set(key, b); err != nil {
			logger.Error("update_discussion_failed", "discussion", id, "error", err)
			return err
		}
		out = d
		return nil
	})
	return out, err
}

// DeleteDiscussion removes the discussion document, its message keys,
// their id pointers and, for PRIVATE discussions, the pair index.
// Returns the removed messages so the caller can release attachments.
func DeleteDiscussion(id string) ([]models.Message, error) {
	d, err := GetDiscussion(id)
	if err != nil {
		return nil, err
	}

	msgs, err := ListMessages(id)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		if err := DeleteMessage(m.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	if err := del(discussionMetaKey(id)); err != nil {
		return nil, err
	}
	if d.Kind == models.KindPrivate && len(d.Participants) == 2 {
		_ = del(pairKey(privPairNS, d.Participants[0].ID, d.Participants[1].ID))
	}
	logger.Info("discussion_deleted", "discussion", id, "messages", len(msgs))
	return msgs, nil
}

// ScanDiscussions returns all discussions matching the filter, or all
// when the filter is nil.
func ScanDiscussions(filter func(models.Discussion) bool) ([]models.Discussion, error) {
	var out []models.Discussion
	err := scan(discussionNS, func(k string, v []byte) bool {
		if !strings.HasSuffix(k, ":meta") {
			return true
		}
		var d models.Discussion
		if json.Unmarshal(v, &d) == nil {
			if filter == nil || filter(d) {
				out = append(out, d)
			}
		}
		return true
	})
	return out, err
}
