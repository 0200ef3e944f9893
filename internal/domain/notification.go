package domain

// Command tells the mobile client what to open when a notification is tapped.
type Command string

const (
	CommandSessionStartChanged Command = "SESSION_START_CHANGED"
	CommandOpenBookmarks       Command = "OPEN_BOOKMARKS"
)

// NotificationData is the optional structured part of a payload.
type NotificationData struct {
	Command   Command `json:"command"`
	SessionID string  `json:"session_id,omitempty"`
}

// NotificationPayload is the message handed to the delivery queue.
//
// UserID is kept for auditing and never serialized to the queue.
type NotificationPayload struct {
	ID            string            `json:"id"`
	UserID        string            `json:"-"`
	DeliveryToken string            `json:"delivery_token"`
	Subject       string            `json:"subject"`
	Message       string            `json:"message"`
	Data          *NotificationData `json:"data,omitempty"`
}
