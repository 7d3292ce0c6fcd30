// Package realtime pushes per-user events to connected clients.
package realtime

import "context"

// Event names emitted to clients
const (
	EventCoinsUpdated  = "calmCoinsUpdated"
	EventNotification  = "notification"
	EventBadgeEligible = "badgeEligible"
)

// Event is a message for every connection of one user
type Event struct {
	UserID string                 `json:"userId"`
	Name   string                 `json:"name"`
	Data   map[string]interface{} `json:"data"`
}

// Publisher delivers events. Delivery is best-effort.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop drops every event
type Nop struct{}

// Publish implements Publisher
func (Nop) Publish(context.Context, Event) error { return nil }

// UserRoom is the socket room joined by every connection of a user
func UserRoom(userID string) string {
	return "user:" + userID
}
