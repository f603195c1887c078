package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"causerie/pkg/logger"
	"causerie/pkg/models"
)

const (
	contactNS     = "contact:"
	contactPairNS = "contactpair"
)

// InsertContact writes a new contact record. The unordered-pair index is
// checked and written under the pair lock, so a concurrent request for
// the same pair in either direction gets ErrExists instead of creating
// a duplicate.
func InsertContact(c models.Contact) error {
	if db == nil {
		return notOpened()
	}
	pk := pairKey(contactPairNS, c.UserA, c.UserB)
	return withKeyLock(pk, func() error {
		if _, err := get(pk); err == nil {
			return ErrExists
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		b, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal contact: %w", err)
		}
		if err := set(contactNS+c.ID, b); err != nil {
			logger.Error("save_contact_failed", "contact", c.ID, "error", err)
			return err
		}
		if err := set(pk, []byte(c.ID)); err != nil {
			// roll the record back so the pair index stays authoritative
			_ = del(contactNS + c.ID)
			return err
		}
		logger.Info("contact_saved", "contact", c.ID, "userA", c.UserA, "userB", c.UserB)
		return nil
	})
}

// GetContact returns the contact with the given id.
func GetContact(id string) (models.Contact, error) {
	var c models.Contact
	v, err := get(contactNS + id)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(v, &c); err != nil {
		return c, fmt.Errorf("invalid contact record: %w", err)
	}
	return c, nil
}

// GetContactByPair returns the contact record between a and b in either
// direction.
func GetContactByPair(a, b string) (models.Contact, error) {
	v, err := get(pairKey(contactPairNS, a, b))
	if err != nil {
		return models.Contact{}, err
	}
	return GetContact(string(v))
}

// UpdateContact applies fn to the stored contact under its key lock and
// persists the result. fn returning an error aborts without writing.
func UpdateContact(id string, fn func(*models.Contact) error) (models.Contact, error) {
	var out models.Contact
	err := withKeyLock(contactNS+id, func() error {
		c, err := GetContact(id)
		if err != nil {
			return err
		}
		if err := fn(&c); err != nil {
			return err
		}
		b, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal contact: %w", err)
		}
		if err := set(contactNS+id, b); err != nil {
			logger.Error("update_contact_failed", "contact", id, "error", err)
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// DeleteContact removes the record and its pair index.
func DeleteContact(id string) error {
	c, err := GetContact(id)
	if err != nil {
		return err
	}
	pk := pairKey(contactPairNS, c.UserA, c.UserB)
	return withKeyLock(pk, func() error {
		if err := del(contactNS + id); err != nil {
			return err
		}
		if err := del(pk); err != nil {
			return err
		}
		logger.Info("contact_deleted", "contact", id)
		return nil
	})
}

// ScanContacts returns all contacts matching the filter, or all when the
// filter is nil.
func ScanContacts(filter func(models.Contact) bool) ([]models.Contact, error) {
	var out []models.Contact
	err := scan(contactNS, func(_ string, v []byte) bool {
		var c models.Contact
		if json.Unmarshal(v, &c) == nil {
			if filter == nil || filter(c) {
				out = append(out, c)
			}
		}
		return true
	})
	return out, err
}
