package chathub

import "whisperchat/backend/internal/models"

// Pair is an unordered pair of users stored in canonical order: A is never
// greater than B, so NewPair(a, b) == NewPair(b, a).
type Pair struct {
	A models.UserID
	B models.UserID
}

// NewPair returns the canonical pair for a and b.
func NewPair(a, b models.UserID) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// Contains reports whether id is one side of the pair.
func (p Pair) Contains(id models.UserID) bool {
	return p.A == id || p.B == id
}

// Other returns the side of the pair that is not id.
func (p Pair) Other(id models.UserID) models.UserID {
	if p.A == id {
		return p.B
	}
	return p.A
}
