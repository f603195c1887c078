package store

import (
	"encoding/json"
	"fmt"

	"causerie/pkg/models"
)

const userNS = "user:"

// SaveUser writes (or replaces) a user profile record.
func SaveUser(u models.User) error {
	b, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	return set(userNS+u.ID, b)
}

// GetUser returns the user with the given id.
func GetUser(id string) (models.User, error) {
	var u models.User
	v, err := get(userNS + id)
	if err != nil {
		return u, err
	}
	if err := json.Unmarshal(v, &u); err != nil {
		return u, fmt.Errorf("invalid user record: %w", err)
	}
	return u, nil
}

// ScanUsers returns all users matching the filter, or all when the
// filter is nil.
func ScanUsers(filter func(models.User) bool) ([]models.User, error) {
	var out []models.User
	err := scan(userNS, func(_ string, v []byte) bool {
		var u models.User
		if json.Unmarshal(v, &u) == nil {
			if filter == nil || filter(u) {
				out = append(out, u)
			}
		}
		return true
	})
	return out, err
}
