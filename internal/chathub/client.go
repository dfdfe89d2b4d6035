package chathub

import "whisperchat/backend/internal/models"

// Client is the interface for any type of connection (e.g., WebSocket, Telegram).
// It abstracts the underlying transport so the hub, the router and the
// sweeper can reach users uniformly.
type Client interface {
	// GetUserID returns the unique handle of the connected user.
	GetUserID() models.UserID
	// GetName returns the display name other users see.
	GetName() string

	// GetSendChannel returns the channel outbound frames are queued on.
	// It is never closed; use Done to detect a closed client.
	GetSendChannel() chan<- models.ChatMessage
	// Done is closed once the client has been closed.
	Done() <-chan struct{}

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts the connection down. It is safe to call more than once.
	Close()
}

// Presence resolves user handles to connected clients.
type Presence interface {
	Resolve(id models.UserID) (Client, bool)
	IsReachable(c Client) bool
}

// Deliver queues msg on c without blocking. It reports false when the client
// is closed or its queue is full; the frame is dropped in that case.
func Deliver(c Client, msg models.ChatMessage) bool {
	select {
	case <-c.Done():
		return false
	default:
	}

	select {
	case c.GetSendChannel() <- msg:
		return true
	default:
		return false
	}
}
