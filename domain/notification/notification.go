package notification

import (
	"classroom-live/projection"
	"fmt"
	"time"
)

// Notification is one entry of a user's notification feed.
// Read is the only field that may change after receipt.
type Notification struct {
	ID             string
	Username       string
	SenderUsername string
	Content        string
	Avatar         string
	At             time.Time
	Read           bool
}

func (n Notification) ItemID() string        { return n.ID }
func (n Notification) OccurredAt() time.Time { return n.At }
func (n Notification) FallbackKey() string {
	return projection.FallbackKey(n.SenderUsername, n.At, n.Content)
}

func Topic(username string) string {
	return fmt.Sprintf("/topic/notifications/%s", username)
}

// Unread counts the notifications not yet read.
func Unread(items []Notification) int {
	count := 0
	for _, n := range items {
		if !n.Read {
			count++
		}
	}
	return count
}

func MarkRead(items []Notification) {
	for i := range items {
		items[i].Read = true
	}
}

// Identities returns the id of each notification, or its fallback key when
// it was delivered live without one.
func Identities(items []Notification) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, n := range items {
		out[n.identity()] = struct{}{}
	}
	return out
}

// MarkReadAmong flags as read only the notifications listed in known.
func MarkReadAmong(known map[string]struct{}) func(items []Notification) {
	return func(items []Notification) {
		for i := range items {
			if _, ok := known[items[i].identity()]; ok {
				items[i].Read = true
			}
		}
	}
}

func (n Notification) identity() string {
	if n.ID != "" {
		return n.ID
	}
	return "key:" + n.FallbackKey()
}
