// Package events is a small in-process dispatcher for domain events.
// External consumers (mail, push) subscribe a handler; the core only
// publishes.
package events

import (
	"sync"

	"causerie/pkg/logger"
)

type Type string

const (
	ContactRequested   Type = "contact_requested"
	ContactAccepted    Type = "contact_accepted"
	MemberAdded        Type = "member_added"
	MemberRemoved      Type = "member_removed"
	MessageReported    Type = "message_reported"
	MessageAutoDeleted Type = "message_auto_deleted"
	DiscussionDeleted  Type = "discussion_deleted"
)

// Event carries the type plus the ids a dispatcher needs to act.
type Event struct {
	Type       Type
	Actor      string
	Subject    string
	Discussion string
}

type Handler func(Event)

var (
	mu       sync.RWMutex
	handlers []Handler
)

// Subscribe registers a handler invoked synchronously on every publish.
func Subscribe(h Handler) {
	mu.Lock()
	defer mu.Unlock()
	handlers = append(handlers, h)
}

// Reset drops all handlers. Intended for tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	handlers = nil
}

// Publish fans the event out to all subscribers and logs it.
func Publish(e Event) {
	logger.Debug("event_published", "type", string(e.Type), "actor", e.Actor, "subject", e.Subject)
	mu.RLock()
	hs := handlers
	mu.RUnlock()
	for _, h := range hs {
		h(e)
	}
}
