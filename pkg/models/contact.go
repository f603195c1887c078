package models

// Contact is a pairwise relationship record. UserA is the requester,
// UserB the recipient; the pair is unique regardless of direction.
type Contact struct {
	ID    string `json:"id"`
	UserA string `json:"idUser1"`
	UserB string `json:"idUser2"`
	// Per-side block flags; each party may only set its own.
	BlockedByA bool `json:"isBlockedUser1"`
	BlockedByB bool `json:"isBlockedUser2"`
	// Accepted=false denotes a pending request.
	Accepted  bool  `json:"isAccepted"`
	CreatedTS int64 `json:"created_ts,omitempty"`
	UpdatedTS int64 `json:"updated_ts,omitempty"`
}

// Involves reports whether userID is one of the two parties.
func (c *Contact) Involves(userID string) bool {
	return c.UserA == userID || c.UserB == userID
}

// Blocked reports whether either side has set its block flag.
func (c *Contact) Blocked() bool {
	return c.BlockedByA || c.BlockedByB
}

// Other returns the opposite party of userID, or empty string when
// userID is not a party.
func (c *Contact) Other(userID string) string {
	switch userID {
	case c.UserA:
		return c.UserB
	case c.UserB:
		return c.UserA
	}
	return ""
}
