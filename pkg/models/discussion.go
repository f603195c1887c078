package models

// DiscussionKind selects the conversation behavior: PRIVATE pairs are
// fixed two-party and gated by the contact graph, GROUPE has mutable
// membership, DIFFUSION restricts posting to admins.
type DiscussionKind string

const (
	KindPrivate   DiscussionKind = "PRIVATE"
	KindGroup     DiscussionKind = "GROUPE"
	KindBroadcast DiscussionKind = "DIFFUSION"
)

// Valid reports whether k is one of the three known kinds.
func (k DiscussionKind) Valid() bool {
	switch k {
	case KindPrivate, KindGroup, KindBroadcast:
		return true
	}
	return false
}

// Participant is a per-user membership record inside a Discussion. All
// flags are scoped to that user in that discussion only.
type Participant struct {
	ID    string `json:"id"`
	Admin bool   `json:"isAdmin"`
	// Silent mutes notifications for this user.
	Silent   bool `json:"isSilent"`
	Archived bool `json:"isArchived"`
	// Removed marks the discussion as deleted for this user only.
	Removed bool `json:"isDeleted"`
	Notify  bool `json:"hasNotification"`
}

type Discussion struct {
	ID          string         `json:"id"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Picture     string         `json:"picture,omitempty"`
	Kind        DiscussionKind `json:"tags"`
	CreatedBy   string         `json:"createdBy"`
	// Participants keeps insertion order; roster mutations preserve the
	// relative order of remaining entries.
	Participants []Participant `json:"participants"`
	CreatedTS    int64         `json:"created_ts,omitempty"`
	UpdatedTS    int64         `json:"updated_ts,omitempty"`
}

// Participant returns a pointer into the roster for userID, or nil.
func (d *Discussion) Participant(userID string) *Participant {
	for i := range d.Participants {
		if d.Participants[i].ID == userID {
			return &d.Participants[i]
		}
	}
	return nil
}

// AdminCount returns the number of participants with the admin flag.
func (d *Discussion) AdminCount() int {
	n := 0
	for i := range d.Participants {
		if d.Participants[i].Admin {
			n++
		}
	}
	return n
}

// OtherParticipant returns the id of the counterpart in a two-party
// discussion, or empty string when none can be determined.
func (d *Discussion) OtherParticipant(userID string) string {
	for i := range d.Participants {
		if d.Participants[i].ID != userID {
			return d.Participants[i].ID
		}
	}
	return ""
}
