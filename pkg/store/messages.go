package store

import (
	"encoding/json"
	"fmt"

	"causerie/pkg/logger"
	"causerie/pkg/models"
)

const msgIDNS = "msgid:"

// InsertMessage appends a message to its discussion under a sortable
// timestamp key and indexes it by id for point lookup.
func InsertMessage(m models.Message) error {
	if db == nil {
		return notOpened()
	}
	key := nextMessageKey(m.Discussion)
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := set(key, b); err != nil {
		logger.Error("save_message_failed", "discussion", m.Discussion, "key", key, "error", err)
		return err
	}
	if err := set(msgIDNS+m.ID, []byte(key)); err != nil {
		_ = del(key)
		return err
	}
	logger.Info("message_saved", "discussion", m.Discussion, "msg_id", m.ID)
	return nil
}

// messageKey resolves the storage key for a message id.
func messageKey(id string) (string, error) {
	v, err := get(msgIDNS + id)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// GetMessage returns the message with the given id.
func GetMessage(id string) (models.Message, error) {
	var m models.Message
	key, err := messageKey(id)
	if err != nil {
		return m, err
	}
	v, err := get(key)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(v, &m); err != nil {
		return m, fmt.Errorf("invalid message record: %w", err)
	}
	return m, nil
}

// UpdateMessage applies fn to the stored message under its key lock and
// rewrites it in place, preserving its position in the discussion
// ordering. fn returning an error aborts without writing.
func UpdateMessage(id string, fn func(*models.Message) error) (models.Message, error) {
	var out models.Message
	err := withKeyLock(msgIDNS+id, func() error {
		key, err := messageKey(id)
		if err != nil {
			return err
		}
		v, err := get(key)
		if err != nil {
			return err
		}
		var m models.Message
		if err := json.Unmarshal(v, &m); err != nil {
			return fmt.Errorf("invalid message record: %w", err)
		}
		if err := fn(&m); err != nil {
			return err
		}
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		if err := set(key, b); err != nil {
			logger.Error("update_message_failed", "msg_id", id, "error", err)
			return err
		}
		out = m
		return nil
	})
	return out, err
}

// DeleteMessage removes the message and its id pointer.
func DeleteMessage(id string) error {
	return withKeyLock(msgIDNS+id, func() error {
		key, err := messageKey(id)
		if err != nil {
			return err
		}
		if err := del(key); err != nil {
			return err
		}
		if err := del(msgIDNS + id); err != nil {
			return err
		}
		logger.Info("message_deleted", "msg_id", id)
		return nil
	})
}

// ListMessages returns all messages for a discussion in insertion order.
func ListMessages(discussionID string) ([]models.Message, error) {
	var out []models.Message
	prefix := discussionNS + discussionID + ":msg:"
	err := scan(prefix, func(_ string, v []byte) bool {
		var m models.Message
		if json.Unmarshal(v, &m) == nil {
			out = append(out, m)
		}
		return true
	})
	return out, err
}
