// Package contacts implements the contact graph: pairwise request /
// accept / block relationships between user identities, and the
// authorization question the message ledger asks before letting two
// users talk in a private discussion.
package contacts

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"causerie/pkg/apperr"
	"causerie/pkg/events"
	"causerie/pkg/logger"
	"causerie/pkg/models"
	"causerie/pkg/roster"
	"causerie/pkg/store"
	"causerie/pkg/utils"
)

const minSearchLen = 3

// Search returns users whose username contains the query. The match is
// case-sensitive; an empty result is not an error.
func Search(query string) ([]models.User, error) {
	if utf8.RuneCountInString(query) < minSearchLen {
		return nil, apperr.Validation("search query must be at least %d characters", minSearchLen)
	}
	users, err := store.ScanUsers(func(u models.User) bool {
		return strings.Contains(u.Username, query)
	})
	if err != nil {
		return nil, apperr.External("user search failed", err)
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// SendRequest creates a pending contact from requester to recipient.
// Any existing record between the pair, in either direction and in any
// state, blocks a new request.
func SendRequest(requesterID, recipientID string) (models.Contact, error) {
	if recipientID == "" {
		return models.Contact{}, apperr.Validation("recipient id is required")
	}
	if requesterID == recipientID {
		return models.Contact{}, apperr.Validation("cannot send a contact request to yourself")
	}
	if _, err := store.GetUser(recipientID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Contact{}, apperr.Validation("the specified user does not exist")
		}
		return models.Contact{}, apperr.External("user lookup failed", err)
	}

	now := time.Now().UTC().UnixNano()
	c := models.Contact{
		ID:        utils.GenID(),
		UserA:     requesterID,
		UserB:     recipientID,
		Accepted:  false,
		CreatedTS: now,
		UpdatedTS: now,
	}
	if err := store.InsertContact(c); err != nil {
		if errors.Is(err, store.ErrExists) {
			return models.Contact{}, apperr.Conflict("a contact or pending request already exists with this user")
		}
		return models.Contact{}, apperr.External("contact insert failed", err)
	}
	events.Publish(events.Event{Type: events.ContactRequested, Actor: requesterID, Subject: c.ID})
	return c, nil
}

// Accept marks the request accepted. Only the recipient may accept;
// re-accepting an accepted contact is an idempotent success. Accepting
// also ensures the PRIVATE discussion between the two users exists.
func Accept(contactID, actorID string) (models.Contact, error) {
	c, err := store.UpdateContact(contactID, func(c *models.Contact) error {
		if c.UserB != actorID {
			return apperr.Forbidden("you do not have permission to accept this request")
		}
		c.Accepted = true
		c.UpdatedTS = time.Now().UTC().UnixNano()
		return nil
	})
	if err != nil {
		return models.Contact{}, mapStoreErr(err, "contact")
	}

	if _, err := roster.EnsurePrivate(c.UserA, c.UserB); err != nil {
		// the contact stays accepted; a retry of accept recreates the
		// pair discussion
		logger.Warn("ensure_private_failed", "contact", contactID, "error", err)
	}
	events.Publish(events.Event{Type: events.ContactAccepted, Actor: actorID, Subject: contactID})
	return c, nil
}

// Reject deletes a pending request. Only the recipient may reject, and
// only while the request is still pending.
func Reject(contactID, actorID string) error {
	c, err := store.GetContact(contactID)
	if err != nil {
		return mapStoreErr(err, "contact")
	}
	if c.UserB != actorID {
		return apperr.Forbidden("you do not have permission to reject this request")
	}
	if c.Accepted {
		return apperr.Conflict("this request was already accepted; delete the contact instead")
	}
	if err := store.DeleteContact(contactID); err != nil {
		return mapStoreErr(err, "contact")
	}
	return nil
}

// Block sets the caller's own block flag. The accepted state is never
// touched.
func Block(contactID, actorID string) (models.Contact, error) {
	c, err := store.UpdateContact(contactID, func(c *models.Contact) error {
		switch actorID {
		case c.UserA:
			c.BlockedByA = true
		case c.UserB:
			c.BlockedByB = true
		default:
			return apperr.Forbidden("you do not have permission to block this contact")
		}
		c.UpdatedTS = time.Now().UTC().UnixNano()
		return nil
	})
	if err != nil {
		return models.Contact{}, mapStoreErr(err, "contact")
	}
	return c, nil
}

// ListReceived returns the pending requests addressed to the actor.
func ListReceived(actorID string) ([]models.Contact, error) {
	out, err := store.ScanContacts(func(c models.Contact) bool {
		return c.UserB == actorID && !c.Accepted
	})
	if err != nil {
		return nil, apperr.External("contact scan failed", err)
	}
	if out == nil {
		out = []models.Contact{}
	}
	return out, nil
}

// ListEstablished returns the accepted contacts the actor is a party to.
func ListEstablished(actorID string) ([]models.Contact, error) {
	out, err := store.ScanContacts(func(c models.Contact) bool {
		return c.Involves(actorID) && c.Accepted
	})
	if err != nil {
		return nil, apperr.External("contact scan failed", err)
	}
	if out == nil {
		out = []models.Contact{}
	}
	return out, nil
}

// Delete severs the relationship. Either party may delete; block flags
// do not outlive the record.
func Delete(contactID, actorID string) error {
	c, err := store.GetContact(contactID)
	if err != nil {
		return mapStoreErr(err, "contact")
	}
	if !c.Involves(actorID) {
		return apperr.Forbidden("you do not have permission to delete this contact")
	}
	if err := store.DeleteContact(contactID); err != nil {
		return mapStoreErr(err, "contact")
	}
	return nil
}

// AuthorizePrivateMessage reports whether a and b may exchange private
// messages: an accepted contact exists and neither side blocks.
func AuthorizePrivateMessage(a, b string) (bool, error) {
	c, err := store.GetContactByPair(a, b)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, apperr.External("contact lookup failed", err)
	}
	return c.Accepted && !c.Blocked(), nil
}

func mapStoreErr(err error, entity string) error {
	var ae *apperr.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ae):
		return err
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("%s not found", entity)
	default:
		return apperr.External(entity+" operation failed", err)
	}
}
