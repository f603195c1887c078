package models

// User is a referenced identity. Credentials and sessions live outside
// this service; only the profile fields needed for contact search and
// display are stored here.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"fullName,omitempty"`
	Bio       string `json:"bio,omitempty"`
	Picture   string `json:"picture,omitempty"`
	Online    bool   `json:"isOnLine,omitempty"`
	CreatedTS int64  `json:"created_ts,omitempty"`
}
