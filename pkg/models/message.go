package models

// FileRef records an attachment stored in the blob store.
type FileRef struct {
	Path string `json:"path"`
	Size int64  `json:"size,omitempty"`
	Ext  string `json:"ext,omitempty"`
}

type Message struct {
	ID         string `json:"id"`
	Discussion string `json:"discussionId"`
	Sender     string `json:"senderId"`
	Text       string `json:"text,omitempty"`
	File       *FileRef `json:"file,omitempty"`
	// ReplyTo is a weak back-reference to another message id.
	ReplyTo string `json:"messageId,omitempty"`
	// Signalers is the set of user ids that reported this message;
	// no duplicates, auto-delete at the report threshold.
	Signalers []string `json:"signalers"`
	CreatedTS int64    `json:"createdAt"`
	UpdatedTS int64    `json:"updatedAt"`
}

// ReportedBy reports whether userID already signaled this message.
func (m *Message) ReportedBy(userID string) bool {
	for _, s := range m.Signalers {
		if s == userID {
			return true
		}
	}
	return false
}
