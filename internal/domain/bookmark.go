package domain

import "time"

// User is an attendee resolved from a ticket order code.
type User struct {
	ID           string
	ConferenceID string

	// OrderCode is the ticket-provider reference the user registered with.
	OrderCode string
	Email     string

	// DeliveryToken addresses the user's device on the push channel.
	// Empty when the user never enabled notifications.
	DeliveryToken string

	CreatedAt time.Time
}

// CanBeNotified reports whether a payload can be addressed to the user.
func (u User) CanBeNotified() bool { return u.DeliveryToken != "" }

// Bookmark links a user to a session they follow.
// There is at most one bookmark per (user, session) pair.
type Bookmark struct {
	UserID    string
	SessionID string
	CreatedAt time.Time
}
