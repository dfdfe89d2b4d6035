package models

import "time"

// Group is a read-only snapshot of a chat group. The registry hands out
// copies, so mutating a snapshot never affects the live group.
type Group struct {
	Name      string    `json:"name"`
	Owner     UserID    `json:"owner"`
	Members   []UserID  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HasMember reports whether id belongs to the group.
func (g Group) HasMember(id UserID) bool {
	for _, m := range g.Members {
		if m == id {
			return true
		}
	}
	return false
}

// DisbandReason explains why a group stopped existing.
type DisbandReason string

const (
	DisbandExpired DisbandReason = "expired"
	DisbandDeleted DisbandReason = "deleted"
)
