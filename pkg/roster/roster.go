// Package roster manages discussion membership and the per-participant
// flags (admin, silent, archived, removed-for-user). All roster
// mutations run inside guarded store updates so concurrent membership
// changes cannot lose writes, and every rule is checked before any
// field is touched.
package roster

import (
	"errors"
	"time"

	"causerie/pkg/apperr"
	"causerie/pkg/blob"
	"causerie/pkg/events"
	"causerie/pkg/models"
	"causerie/pkg/store"
	"causerie/pkg/utils"
)

const minParticipants = 2

func newParticipant(id string, admin bool) models.Participant {
	return models.Participant{ID: id, Admin: admin, Notify: true}
}

// CreateGroup creates a GROUPE or DIFFUSION discussion. The
// authenticated actor is always the creator and sole initial admin;
// supplied participant ids join as plain members.
func CreateGroup(actorID, name, description, picture string, participantIDs []string, kind models.DiscussionKind) (models.Discussion, error) {
	if name == "" {
		return models.Discussion{}, apperr.Validation("discussion name is required")
	}
	if kind == "" {
		kind = models.KindGroup
	}
	if kind != models.KindGroup && kind != models.KindBroadcast {
		return models.Discussion{}, apperr.Validation("discussion kind must be GROUPE or DIFFUSION")
	}

	seen := map[string]bool{actorID: true}
	participants := []models.Participant{}
	for _, id := range participantIDs {
		if id == "" || seen[id] {
			continue
		}
		if _, err := store.GetUser(id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return models.Discussion{}, apperr.Validation("participant %s does not exist", id)
			}
			return models.Discussion{}, apperr.External("user lookup failed", err)
		}
		seen[id] = true
		participants = append(participants, newParticipant(id, false))
	}
	if len(participants) == 0 {
		return models.Discussion{}, apperr.Validation("a group discussion requires at least one participant besides the creator")
	}
	participants = append(participants, newParticipant(actorID, true))

	now := time.Now().UTC().UnixNano()
	d := models.Discussion{
		ID:           utils.GenID(),
		Name:         name,
		Description:  description,
		Picture:      picture,
		Kind:         kind,
		CreatedBy:    actorID,
		Participants: participants,
		CreatedTS:    now,
		UpdatedTS:    now,
	}
	if err := store.InsertDiscussion(d); err != nil {
		return models.Discussion{}, apperr.External("discussion insert failed", err)
	}
	return d, nil
}

// EnsurePrivate returns the PRIVATE discussion between a and b,
// creating it if none exists. Private discussions have exactly two
// participants, no admins, and immutable membership.
func EnsurePrivate(a, b string) (models.Discussion, error) {
	if id, err := store.GetPrivatePair(a, b); err == nil {
		return Get(id)
	} else if !errors.Is(err, store.ErrNotFound) {
		return models.Discussion{}, apperr.External("private pair lookup failed", err)
	}

	now := time.Now().UTC().UnixNano()
	d := models.Discussion{
		ID:           utils.GenID(),
		Kind:         models.KindPrivate,
		CreatedBy:    a,
		Participants: []models.Participant{newParticipant(a, false), newParticipant(b, false)},
		CreatedTS:    now,
		UpdatedTS:    now,
	}
	id, err := store.InsertPrivateDiscussion(d, a, b)
	if err != nil && !errors.Is(err, store.ErrExists) {
		return models.Discussion{}, apperr.External("private discussion insert failed", err)
	}
	return Get(id)
}

// Get returns the discussion with the given id.
func Get(id string) (models.Discussion, error) {
	d, err := store.GetDiscussion(id)
	if err != nil {
		return models.Discussion{}, mapStoreErr(err)
	}
	return d, nil
}

// GetParticipant returns the actor's membership record, or a NotFound
// error when the user is not part of the discussion.
func GetParticipant(discussionID, userID string) (models.Participant, error) {
	d, err := Get(discussionID)
	if err != nil {
		return models.Participant{}, err
	}
	if p := d.Participant(userID); p != nil {
		return *p, nil
	}
	return models.Participant{}, apperr.NotFound("user is not a participant of this discussion")
}

// AddMember appends a default participant record. Only admins of a
// GROUPE/DIFFUSION discussion may add; PRIVATE membership is immutable.
func AddMember(discussionID, actorID, newUserID string) (models.Discussion, error) {
	if newUserID == "" {
		return models.Discussion{}, apperr.Validation("user id is required")
	}
	if _, err := store.GetUser(newUserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Discussion{}, apperr.Validation("the specified user does not exist")
		}
		return models.Discussion{}, apperr.External("user lookup failed", err)
	}
	d, err := store.UpdateDiscussion(discussionID, func(d *models.Discussion) error {
		if d.Kind == models.KindPrivate {
			return apperr.Forbidden("cannot add members to a private discussion")
		}
		actor := d.Participant(actorID)
		if actor == nil || !actor.Admin {
			return apperr.Forbidden("only admins can add members to this discussion")
		}
		if d.Participant(newUserID) != nil {
			return apperr.Conflict("user is already a participant")
		}
		d.Participants = append(d.Participants, newParticipant(newUserID, false))
		d.UpdatedTS = time.Now().UTC().UnixNano()
		return nil
	})
	if err != nil {
		return models.Discussion{}, mapStoreErr(err)
	}
	events.Publish(events.Event{Type: events.MemberAdded, Actor: actorID, Subject: newUserID, Discussion: discussionID})
	return d, nil
}

// RemoveMember removes a participant, preserving the order of the rest.
// Removal is refused when it would leave fewer than two participants or
// take away the last admin.
func RemoveMember(discussionID, actorID, targetUserID string) (models.Discussion, error) {
	d, err := store.UpdateDiscussion(discussionID, func(d *models.Discussion) error {
		if d.Kind == models.KindPrivate {
			return apperr.Forbidden("cannot remove members from a private discussion")
		}
		actor := d.Participant(actorID)
		if actor == nil || !actor.Admin {
			return apperr.Forbidden("only admins can remove members from this discussion")
		}
		target := d.Participant(targetUserID)
		if target == nil {
			return apperr.NotFound("the specified member is not a participant of this discussion")
		}
		if len(d.Participants) <= minParticipants {
			return apperr.Forbidden("a discussion must keep at least two participants")
		}
		if target.Admin && d.AdminCount() == 1 {
			return apperr.Forbidden("cannot remove the last admin of this discussion")
		}
		kept := d.Participants[:0]
		for _, p := range d.Participants {
			if p.ID != targetUserID {
				kept = append(kept, p)
			}
		}
		d.Participants = kept
		d.UpdatedTS = time.Now().UTC().UnixNano()
		return nil
	})
	if err != nil {
		return models.Discussion{}, mapStoreErr(err)
	}
	events.Publish(events.Event{Type: events.MemberRemoved, Actor: actorID, Subject: targetUserID, Discussion: discussionID})
	return d, nil
}

// UpdateMetadata partially updates name/description/picture; empty
// fields keep their previous value. Admin only.
func UpdateMetadata(discussionID, actorID, name, description, picture string) (models.Discussion, error) {
	d, err := store.UpdateDiscussion(discussionID, func(d *models.Discussion) error {
		actor := d.Participant(actorID)
		if actor == nil || !actor.Admin {
			return apperr.Forbidden("only admins can update this discussion")
		}
		if name != "" {
			d.Name = name
		}
		if description != "" {
			d.Description = description
		}
		if picture != "" {
			d.Picture = picture
		}
		d.UpdatedTS = time.Now().UTC().UnixNano()
		return nil
	})
	if err != nil {
		return models.Discussion{}, mapStoreErr(err)
	}
	return d, nil
}

// AssignAdmin grants the admin flag to a participant. Existing admins
// keep theirs; the operation applies to GROUPE/DIFFUSION only.
func AssignAdmin(discussionID, actorID, targetUserID string) (models.Discussion, error) {
	d, err := store.UpdateDiscussion(discussionID, func(d *models.Discussion) error {
		if d.Kind != models.KindGroup && d.Kind != models.KindBroadcast {
			return apperr.Forbidden("this action is only allowed for GROUPE or DIFFUSION discussions")
		}
		actor := d.Participant(actorID)
		if actor == nil || !actor.Admin {
			return apperr.Forbidden("only admins can assign another admin")
		}
		target := d.Participant(targetUserID)
		if target == nil {
			return apperr.Forbidden("the user must belong to the discussion")
		}
		target.Admin = true
		d.UpdatedTS = time.Now().UTC().UnixNano()
		return nil
	})
	if err != nil {
		return models.Discussion{}, mapStoreErr(err)
	}
	return d, nil
}

// SetArchived sets or clears the actor's own archived flag.
func SetArchived(discussionID, actorID string, archived bool) (models.Discussion, error) {
	return setOwnFlag(discussionID, actorID, func(p *models.Participant) { p.Archived = archived })
}

// SetSilent sets or clears the actor's own silent flag.
func SetSilent(discussionID, actorID string, silent bool) (models.Discussion, error) {
	return setOwnFlag(discussionID, actorID, func(p *models.Participant) { p.Silent = silent })
}

func setOwnFlag(discussionID, actorID string, apply func(*models.Participant)) (models.Discussion, error) {
	d, err := store.UpdateDiscussion(discussionID, func(d *models.Discussion) error {
		p := d.Participant(actorID)
		if p == nil {
			return apperr.Forbidden("you are not part of this discussion")
		}
		apply(p)
		return nil
	})
	if err != nil {
		return models.Discussion{}, mapStoreErr(err)
	}
	return d, nil
}

// ListForActor returns the discussions the actor participates in,
// filtered by the actor's own archived flag and excluding the ones the
// actor removed for themselves.
func ListForActor(actorID string, archived bool) ([]models.Discussion, error) {
	out, err := store.ScanDiscussions(func(d models.Discussion) bool {
		p := d.Participant(actorID)
		return p != nil && !p.Removed && p.Archived == archived
	})
	if err != nil {
		return nil, apperr.External("discussion scan failed", err)
	}
	if out == nil {
		out = []models.Discussion{}
	}
	return out, nil
}

// DeleteForActor deletes the discussion for everyone when the actor is
// its creator (cascading messages and attachments), otherwise marks it
// removed for the actor only.
func DeleteForActor(discussionID, actorID string) (removedForAll bool, err error) {
	d, err := Get(discussionID)
	if err != nil {
		return false, err
	}
	if d.Participant(actorID) == nil {
		return false, apperr.Forbidden("you are not part of this discussion")
	}

	if d.CreatedBy == actorID {
		msgs, err := store.DeleteDiscussion(discussionID)
		if err != nil {
			return false, mapStoreErr(err)
		}
		for _, m := range msgs {
			if m.File != nil {
				_ = blob.Delete(m.File.Path)
			}
		}
		events.Publish(events.Event{Type: events.DiscussionDeleted, Actor: actorID, Discussion: discussionID})
		return true, nil
	}

	if _, err := setOwnFlag(discussionID, actorID, func(p *models.Participant) { p.Removed = true }); err != nil {
		return false, err
	}
	return false, nil
}

func mapStoreErr(err error) error {
	var ae *apperr.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ae):
		return err
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("discussion not found")
	default:
		return apperr.External("discussion operation failed", err)
	}
}
