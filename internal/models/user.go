package models

// UserID is an opaque, globally unique user handle. IDs are compared
// byte-lexicographically wherever a total order is needed.
type UserID string

// Identity pairs a user handle with the display name shown to other users.
type Identity struct {
	ID   UserID `json:"id"`
	Name string `json:"name"`
}
