package chathub

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"whisperchat/backend/internal/models"

	"github.com/samber/lo"
)

// ConversationStore owns the direct conversation indexes:
//
//   - active: the conversation each user's plain chat lines go to
//   - sessions: users each user has started a DM with
//   - lastSenders: who last sent a direct message to each user
//   - lastInteraction: when two users last exchanged a direct message
//
// A single lock guards all four so cross-index operations (RemoveUser,
// ExpireSessions) never observe or leave a torn state.
type ConversationStore struct {
	mu              sync.RWMutex
	active          map[models.UserID]models.Conversation
	sessions        map[models.UserID]map[models.UserID]struct{}
	lastSenders     map[models.UserID]models.UserID
	lastInteraction map[Pair]time.Time
	clock           Clock
}

// NewConversationStore creates an empty store. A nil clock uses SystemClock.
func NewConversationStore(clock Clock) *ConversationStore {
	if clock == nil {
		clock = SystemClock
	}
	return &ConversationStore{
		active:          make(map[models.UserID]models.Conversation),
		sessions:        make(map[models.UserID]map[models.UserID]struct{}),
		lastSenders:     make(map[models.UserID]models.UserID),
		lastInteraction: make(map[Pair]time.Time),
		clock:           clock,
	}
}

// StartDirect opens (or re-opens) a direct conversation from a to b and
// focuses it. b's reply target becomes a.
func (s *ConversationStore) StartDirect(a, b models.UserID) error {
	if a == b {
		return ErrSelfTarget
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.addSessionLocked(a, b)
	s.active[a] = models.Direct(b)
	s.lastSenders[b] = a
	s.lastInteraction[NewPair(a, b)] = s.clock.Now()
	return nil
}

// SwitchDirect focuses an existing session. It never creates one.
func (s *ConversationStore) SwitchDirect(a, b models.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[a][b]; !ok {
		return ErrNoSession
	}
	s.active[a] = models.Direct(b)
	return nil
}

// ListDirect returns a's session partners in ID order. Reachability is
// decided by the caller.
func (s *ConversationStore) ListDirect(a models.UserID) []models.UserID {
	s.mu.RLock()
	partners := lo.Keys(s.sessions[a])
	s.mu.RUnlock()

	slices.Sort(partners)
	return partners
}

// HasSession reports whether b is in a's session history.
func (s *ConversationStore) HasSession(a, b models.UserID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.sessions[a][b]
	return ok
}

// LeaveDirect closes a's focused direct conversation and returns its target.
func (s *ConversationStore) LeaveDirect(a models.UserID) (models.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.active[a].Target()
	if !ok {
		return "", ErrNotInDirect
	}
	delete(s.active, a)
	s.removeSessionLocked(a, target)
	return target, nil
}

// DropDirect forgets a's session with an unreachable target and clears a's
// focus if it pointed there.
func (s *ConversationStore) DropDirect(a, target models.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active[a].IsDirectWith(target) {
		delete(s.active, a)
	}
	s.removeSessionLocked(a, target)
}

// RecordDelivery is called after a message from a reached b.
func (s *ConversationStore) RecordDelivery(a, b models.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSenders[b] = a
	s.lastInteraction[NewPair(a, b)] = s.clock.Now()
}

// ResolveReply returns who last sent a direct message to a.
func (s *ConversationStore) ResolveReply(a models.UserID) (models.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	target, ok := s.lastSenders[a]
	if !ok {
		return "", ErrNoReplyTarget
	}
	return target, nil
}

// ForgetReplyTarget removes a's reply target if it is still target. A newer
// sender recorded in the meantime is kept.
func (s *ConversationStore) ForgetReplyTarget(a, target models.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastSenders[a] == target {
		delete(s.lastSenders, a)
	}
}

// Active returns a's focused conversation; the zero value means none.
func (s *ConversationStore) Active(a models.UserID) models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active[a]
}

// FocusGroup routes a's plain chat lines to the named group.
func (s *ConversationStore) FocusGroup(a models.UserID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[a] = models.InGroup(name)
}

// ClearGroupFocus clears a's focus only if it still points at the named
// group, and reports whether it did.
func (s *ConversationStore) ClearGroupFocus(a models.UserID, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.active[a].Group(); ok && g == name {
		delete(s.active, a)
		return true
	}
	return false
}

// LastInteraction returns when a and b last exchanged a direct message.
func (s *ConversationStore) LastInteraction(a, b models.UserID) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ts, ok := s.lastInteraction[NewPair(a, b)]
	return ts, ok
}

// InteractionCount returns the number of tracked pairs.
func (s *ConversationStore) InteractionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lastInteraction)
}

// RemoveUser purges u from every index: its own entries, its appearances as
// a direct target, session member or reply target, and every pair with u.
func (s *ConversationStore) RemoveUser(u models.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.active, u)
	delete(s.sessions, u)
	delete(s.lastSenders, u)

	for id, conv := range s.active {
		if conv.IsDirectWith(u) {
			delete(s.active, id)
		}
	}
	for id := range s.sessions {
		s.removeSessionLocked(id, u)
	}
	for id, sender := range s.lastSenders {
		if sender == u {
			delete(s.lastSenders, id)
		}
	}
	for pair := range s.lastInteraction {
		if pair.Contains(u) {
			delete(s.lastInteraction, pair)
		}
	}
}

// ExpireSessions removes every pair idle for at least ttl at now, together
// with both session back-references and any focus pointing across the pair.
// The check and the removal happen under one lock, so a pair refreshed by a
// concurrent delivery is never half-cleared.
func (s *ConversationStore) ExpireSessions(now time.Time, ttl time.Duration) []Pair {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []Pair
	for pair, ts := range s.lastInteraction {
		if now.Sub(ts) < ttl {
			continue
		}
		delete(s.lastInteraction, pair)
		s.removeSessionLocked(pair.A, pair.B)
		s.removeSessionLocked(pair.B, pair.A)
		if s.active[pair.A].IsDirectWith(pair.B) {
			delete(s.active, pair.A)
		}
		if s.active[pair.B].IsDirectWith(pair.A) {
			delete(s.active, pair.B)
		}
		expired = append(expired, pair)
	}

	slices.SortFunc(expired, func(x, y Pair) int {
		if x.A != y.A {
			return cmp.Compare(x.A, y.A)
		}
		return cmp.Compare(x.B, y.B)
	})
	return expired
}

func (s *ConversationStore) addSessionLocked(a, b models.UserID) {
	set, ok := s.sessions[a]
	if !ok {
		set = make(map[models.UserID]struct{})
		s.sessions[a] = set
	}
	set[b] = struct{}{}
}

func (s *ConversationStore) removeSessionLocked(a, b models.UserID) {
	set, ok := s.sessions[a]
	if !ok {
		return
	}
	delete(set, b)
	if len(set) == 0 {
		delete(s.sessions, a)
	}
}
