// Package ledger is the message store front: sending, editing,
// reporting, transferring and searching messages inside a discussion,
// with every operation gated by the roster and, for private
// discussions, the contact graph.
package ledger

import (
	"errors"
	"strings"
	"time"

	"causerie/pkg/apperr"
	"causerie/pkg/blob"
	"causerie/pkg/contacts"
	"causerie/pkg/events"
	"causerie/pkg/models"
	"causerie/pkg/roster"
	"causerie/pkg/store"
	"causerie/pkg/telemetry"
	"causerie/pkg/utils"
)

var (
	reportThreshold = 5
	maxFileSize     = int64(2 << 20)
	allowedExts     = []string{"jpeg", "jpg", "png", "pdf", "docx"}
)

// Configure sets the report threshold and attachment limits. Zero or
// nil arguments keep the current values.
func Configure(threshold int, maxSize int64, exts []string) {
	if threshold > 0 {
		reportThreshold = threshold
	}
	if maxSize > 0 {
		maxFileSize = maxSize
	}
	if len(exts) > 0 {
		allowedExts = exts
	}
}

// canAct resolves the discussion and the actor's membership record;
// non-participants are refused.
func canAct(discussionID, userID string) (models.Discussion, models.Participant, error) {
	d, err := roster.Get(discussionID)
	if err != nil {
		return models.Discussion{}, models.Participant{}, err
	}
	p := d.Participant(userID)
	if p == nil {
		return models.Discussion{}, models.Participant{}, apperr.Forbidden("you are not a participant of this discussion")
	}
	return d, *p, nil
}

// sendGuard enforces the per-kind posting rules: DIFFUSION is
// admin-only, PRIVATE requires an accepted, unblocked contact with the
// other party.
func sendGuard(d models.Discussion, p models.Participant) error {
	if d.Kind == models.KindBroadcast && !p.Admin {
		return apperr.Forbidden("only admins can send messages in a DIFFUSION discussion")
	}
	if d.Kind == models.KindPrivate {
		other := d.OtherParticipant(p.ID)
		if other == "" {
			return apperr.Validation("cannot determine the recipient of this private discussion")
		}
		ok, err := contacts.AuthorizePrivateMessage(p.ID, other)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Forbidden("you cannot message this user: the contact is missing, unaccepted or blocked")
		}
	}
	return nil
}

// SendText persists a text message in the discussion.
func SendText(discussionID, senderID, text, replyTo string) (models.Message, error) {
	if text == "" {
		return models.Message{}, apperr.Validation("text is required")
	}
	d, p, err := canAct(discussionID, senderID)
	if err != nil {
		return models.Message{}, err
	}
	if err := sendGuard(d, p); err != nil {
		return models.Message{}, err
	}
	if replyTo != "" {
		if _, err := store.GetMessage(replyTo); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return models.Message{}, apperr.Validation("the referenced message does not exist")
			}
			return models.Message{}, apperr.External("message lookup failed", err)
		}
	}

	now := time.Now().UTC().UnixNano()
	m := models.Message{
		ID:         utils.GenID(),
		Discussion: discussionID,
		Sender:     senderID,
		Text:       text,
		ReplyTo:    replyTo,
		Signalers:  []string{},
		CreatedTS:  now,
		UpdatedTS:  now,
	}
	if err := store.InsertMessage(m); err != nil {
		return models.Message{}, apperr.External("message insert failed", err)
	}
	telemetry.MessagesSent.WithLabelValues(string(d.Kind)).Inc()
	return m, nil
}

// SendFile stores the attachment through the blob store, then persists
// the message. If the insert fails the stored blob is removed so no
// orphan is left behind.
func SendFile(discussionID, senderID string, data []byte, ext, replyTo string) (models.Message, error) {
	if len(data) == 0 {
		return models.Message{}, apperr.Validation("file is required")
	}
	if int64(len(data)) > maxFileSize {
		return models.Message{}, apperr.Validation("file exceeds the maximum allowed size")
	}
	if !extAllowed(ext) {
		return models.Message{}, apperr.Validation("file type %q is not allowed", ext)
	}
	d, p, err := canAct(discussionID, senderID)
	if err != nil {
		return models.Message{}, err
	}
	if err := sendGuard(d, p); err != nil {
		return models.Message{}, err
	}

	ref, err := blob.Store(data, ext)
	if err != nil {
		return models.Message{}, apperr.External("file store failed", err)
	}
	now := time.Now().UTC().UnixNano()
	m := models.Message{
		ID:         utils.GenID(),
		Discussion: discussionID,
		Sender:     senderID,
		File:       &ref,
		ReplyTo:    replyTo,
		Signalers:  []string{},
		CreatedTS:  now,
		UpdatedTS:  now,
	}
	if err := store.InsertMessage(m); err != nil {
		_ = blob.Delete(ref.Path)
		return models.Message{}, apperr.External("message insert failed", err)
	}
	telemetry.MessagesSent.WithLabelValues(string(d.Kind)).Inc()
	return m, nil
}

// Edit replaces the text of the sender's own message. The supplied
// discussion must be the one holding the message; membership and the
// per-kind send rules are re-validated against it, not just ownership.
func Edit(messageID, actorID, discussionID, newText string) (models.Message, error) {
	if newText == "" {
		return models.Message{}, apperr.Validation("text is required")
	}
	d, p, err := canAct(discussionID, actorID)
	if err != nil {
		return models.Message{}, err
	}
	if err := sendGuard(d, p); err != nil {
		return models.Message{}, err
	}
	m, err := store.UpdateMessage(messageID, func(m *models.Message) error {
		if m.Discussion != discussionID {
			return apperr.Validation("message does not belong to this discussion")
		}
		if m.Sender != actorID {
			return apperr.Forbidden("you are not allowed to edit this message")
		}
		m.Text = newText
		m.UpdatedTS = time.Now().UTC().UnixNano()
		return nil
	})
	if err != nil {
		return models.Message{}, mapStoreErr(err)
	}
	return m, nil
}

// Delete removes the sender's own message. The record goes first; the
// attachment is released afterwards so a blob failure can never leave a
// message pointing at missing data.
func Delete(messageID, actorID string) error {
	m, err := store.GetMessage(messageID)
	if err != nil {
		return mapStoreErr(err)
	}
	if m.Sender != actorID {
		return apperr.Forbidden("you are not allowed to delete this message")
	}
	if err := store.DeleteMessage(messageID); err != nil {
		return mapStoreErr(err)
	}
	if m.File != nil {
		_ = blob.Delete(m.File.Path)
	}
	return nil
}

// ReportResult tells the caller whether the report crossed the
// threshold and removed the message.
type ReportResult struct {
	Message models.Message
	Deleted bool
}

// Report records the reporter in the message's signaler set. Reporting
// twice is a conflict; reaching the threshold deletes the message and
// its attachment.
func Report(messageID, reporterID string) (ReportResult, error) {
	m, err := store.UpdateMessage(messageID, func(m *models.Message) error {
		if m.ReportedBy(reporterID) {
			return apperr.Conflict("you have already reported this message")
		}
		m.Signalers = append(m.Signalers, reporterID)
		m.UpdatedTS = time.Now().UTC().UnixNano()
		return nil
	})
	if err != nil {
		return ReportResult{}, mapStoreErr(err)
	}
	events.Publish(events.Event{Type: events.MessageReported, Actor: reporterID, Subject: messageID, Discussion: m.Discussion})

	if len(m.Signalers) >= reportThreshold {
		if err := store.DeleteMessage(messageID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return ReportResult{}, apperr.External("threshold delete failed", err)
		}
		if m.File != nil {
			_ = blob.Delete(m.File.Path)
		}
		events.Publish(events.Event{Type: events.MessageAutoDeleted, Actor: reporterID, Subject: messageID, Discussion: m.Discussion})
		return ReportResult{Message: m, Deleted: true}, nil
	}
	return ReportResult{Message: m, Deleted: false}, nil
}

// Search returns the discussion's messages whose text contains the
// keyword. An empty result is a normal empty list, distinct from an
// unknown discussion.
func Search(discussionID, actorID, keyword string) ([]models.Message, error) {
	if keyword == "" {
		return nil, apperr.Validation("keyword is required")
	}
	if _, _, err := canAct(discussionID, actorID); err != nil {
		return nil, err
	}
	msgs, err := store.ListMessages(discussionID)
	if err != nil {
		return nil, apperr.External("message scan failed", err)
	}
	out := []models.Message{}
	for _, m := range msgs {
		if strings.Contains(m.Text, keyword) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Transfer copies a message into the target discussion attributed to
// the actor. Only membership in the target is required. Attachments are
// physically duplicated; a failed insert removes the fresh copy. The
// copy keeps the original's reply pointer and starts with no signalers.
func Transfer(messageID, actorID, targetDiscussionID string) (models.Message, error) {
	src, err := store.GetMessage(messageID)
	if err != nil {
		return models.Message{}, mapStoreErr(err)
	}
	d, _, err := canAct(targetDiscussionID, actorID)
	if err != nil {
		return models.Message{}, err
	}

	var ref *models.FileRef
	if src.File != nil {
		if !blob.Exists(src.File.Path) {
			return models.Message{}, apperr.NotFound("the associated file could not be found")
		}
		newPath, err := blob.Copy(src.File.Path)
		if err != nil {
			return models.Message{}, apperr.External("file copy failed", err)
		}
		ref = &models.FileRef{Path: newPath, Size: src.File.Size, Ext: src.File.Ext}
	}

	now := time.Now().UTC().UnixNano()
	m := models.Message{
		ID:         utils.GenID(),
		Discussion: targetDiscussionID,
		Sender:     actorID,
		Text:       src.Text,
		File:       ref,
		ReplyTo:    src.ReplyTo,
		Signalers:  []string{},
		CreatedTS:  now,
		UpdatedTS:  now,
	}
	if err := store.InsertMessage(m); err != nil {
		if ref != nil {
			_ = blob.Delete(ref.Path)
		}
		return models.Message{}, apperr.External("message insert failed", err)
	}
	telemetry.MessagesSent.WithLabelValues(string(d.Kind)).Inc()
	return m, nil
}

// Transcript returns all messages of a discussion in creation order.
// Participants only.
func Transcript(discussionID, actorID string) ([]models.Message, error) {
	if _, _, err := canAct(discussionID, actorID); err != nil {
		return nil, err
	}
	msgs, err := store.ListMessages(discussionID)
	if err != nil {
		return nil, apperr.External("message scan failed", err)
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

func extAllowed(ext string) bool {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	for _, a := range allowedExts {
		if ext == a {
			return true
		}
	}
	return false
}

func mapStoreErr(err error) error {
	var ae *apperr.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ae):
		return err
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("message not found")
	default:
		return apperr.External("message operation failed", err)
	}
}
