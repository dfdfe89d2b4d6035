package chathub

import (
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"whisperchat/backend/internal/models"

	"github.com/samber/lo"
)

// maxNameAttempts bounds how often CreateGroup regenerates a colliding name.
const maxNameAttempts = 32

// DisbandHandler is told about every group removed by DeleteGroup or
// ExpireGroups. It runs after the registry lock is released and receives the
// members the group had at removal time.
type DisbandHandler func(group models.Group, reason models.DisbandReason)

type group struct {
	name      string
	owner     models.UserID
	members   map[models.UserID]struct{}
	createdAt time.Time
}

// GroupRegistry owns all groups and the user -> group index. A user is a
// member of g exactly when playerGroups maps it to g, whenever the lock is
// released.
type GroupRegistry struct {
	mu           sync.RWMutex
	groups       map[string]*group
	playerGroups map[models.UserID]string

	lifetime  time.Duration
	words     *WordList
	clock     Clock
	intn      func(int) int
	onDisband DisbandHandler
	logger    *slog.Logger
}

// NewGroupRegistry creates an empty registry. words may be nil to use
// FallbackWords, clock nil to use SystemClock.
func NewGroupRegistry(lifetime time.Duration, words *WordList, clock Clock, logger *slog.Logger) *GroupRegistry {
	if words == nil {
		words = NewWordList(nil)
	}
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GroupRegistry{
		groups:       make(map[string]*group),
		playerGroups: make(map[models.UserID]string),
		lifetime:     lifetime,
		words:        words,
		clock:        clock,
		intn:         rand.IntN,
		logger:       logger.With("component", "groups"),
	}
}

// OnDisband installs the handler that notifies members of a disbanded group.
func (r *GroupRegistry) OnDisband(h DisbandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDisband = h
}

// Lifetime returns how long a group lives after creation.
func (r *GroupRegistry) Lifetime() time.Duration {
	return r.lifetime
}

// CreateGroup creates a group owned by owner with a generated two-word name.
func (r *GroupRegistry) CreateGroup(owner models.UserID) (models.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.playerGroups[owner]; ok {
		return models.Group{}, ErrAlreadyInGroup
	}

	name, ok := r.generateNameLocked()
	if !ok {
		r.logger.Warn("group name space exhausted", "owner", owner, "groups", len(r.groups))
		return models.Group{}, ErrGroupNameExhausted
	}

	g := &group{
		name:      name,
		owner:     owner,
		members:   map[models.UserID]struct{}{owner: {}},
		createdAt: r.clock.Now(),
	}
	r.groups[name] = g
	r.playerGroups[owner] = name

	r.logger.Debug("group created", "group", name, "owner", owner)
	return r.snapshot(g), nil
}

// DeleteGroup disbands the named group. Only the owner may delete it.
func (r *GroupRegistry) DeleteGroup(name string, requester models.UserID) error {
	r.mu.Lock()
	g, ok := r.groups[name]
	if !ok {
		r.mu.Unlock()
		return ErrGroupNotFound
	}
	if g.owner != requester {
		r.mu.Unlock()
		return ErrPermission
	}
	snap := r.disbandLocked(g)
	handler := r.onDisband
	r.mu.Unlock()

	r.logger.Debug("group deleted", "group", name, "owner", requester)
	if handler != nil {
		handler(snap, models.DisbandDeleted)
	}
	return nil
}

// LeaveGroup removes u from its group and returns the group as it was left.
// The group is removed silently when u was the last member.
func (r *GroupRegistry) LeaveGroup(u models.UserID) (models.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name, ok := r.playerGroups[u]
	if !ok {
		return models.Group{}, ErrNotInGroup
	}
	g, ok := r.groups[name]
	if !ok {
		r.logger.Warn("dropping dangling group index", "user", u, "group", name)
		delete(r.playerGroups, u)
		return models.Group{}, ErrNotInGroup
	}

	delete(g.members, u)
	delete(r.playerGroups, u)
	if len(g.members) == 0 {
		delete(r.groups, name)
		r.logger.Debug("group emptied", "group", name)
	}
	return r.snapshot(g), nil
}

// JoinGroup adds u to the named group. It does not change u's focus.
func (r *GroupRegistry) JoinGroup(u models.UserID, name string) (models.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[name]
	if !ok {
		return models.Group{}, ErrGroupNotFound
	}
	if _, ok := r.playerGroups[u]; ok {
		return models.Group{}, ErrAlreadyInGroup
	}

	g.members[u] = struct{}{}
	r.playerGroups[u] = name
	return r.snapshot(g), nil
}

// ExpireGroups disbands every group whose lifetime has elapsed at now and
// returns them.
func (r *GroupRegistry) ExpireGroups(now time.Time) []models.Group {
	r.mu.Lock()
	var expired []models.Group
	for _, g := range r.groups {
		if now.Sub(g.createdAt) >= r.lifetime {
			expired = append(expired, r.disbandLocked(g))
		}
	}
	handler := r.onDisband
	r.mu.Unlock()

	for _, g := range expired {
		r.logger.Debug("group expired", "group", g.Name)
		if handler != nil {
			handler(g, models.DisbandExpired)
		}
	}
	return expired
}

// Group returns a snapshot of the named group.
func (r *GroupRegistry) Group(name string) (models.Group, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.groups[name]
	if !ok {
		return models.Group{}, false
	}
	return r.snapshot(g), true
}

// GroupOf returns the name of u's group. A dangling index entry is removed.
func (r *GroupRegistry) GroupOf(u models.UserID) (string, bool) {
	r.mu.RLock()
	name, ok := r.playerGroups[u]
	_, exists := r.groups[name]
	r.mu.RUnlock()

	if !ok {
		return "", false
	}
	if !exists {
		r.mu.Lock()
		if r.playerGroups[u] == name {
			if _, back := r.groups[name]; !back {
				r.logger.Warn("dropping dangling group index", "user", u, "group", name)
				delete(r.playerGroups, u)
			}
		}
		r.mu.Unlock()
		return "", false
	}
	return name, true
}

// IsMember reports whether u belongs to the named group.
func (r *GroupRegistry) IsMember(name string, u models.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.groups[name]
	if !ok {
		return false
	}
	_, member := g.members[u]
	return member
}

// GroupNames lists every group name, sorted.
func (r *GroupRegistry) GroupNames() []string {
	r.mu.RLock()
	names := lo.Keys(r.groups)
	r.mu.RUnlock()

	slices.Sort(names)
	return names
}

// GroupNamesOwnedBy lists the groups u may delete, sorted.
func (r *GroupRegistry) GroupNamesOwnedBy(u models.UserID) []string {
	r.mu.RLock()
	owned := lo.FilterMap(lo.Values(r.groups), func(g *group, _ int) (string, bool) {
		return g.name, g.owner == u
	})
	r.mu.RUnlock()

	slices.Sort(owned)
	return owned
}

func (r *GroupRegistry) disbandLocked(g *group) models.Group {
	snap := r.snapshot(g)
	for member := range g.members {
		if r.playerGroups[member] == g.name {
			delete(r.playerGroups, member)
		}
	}
	delete(r.groups, g.name)
	return snap
}

func (r *GroupRegistry) generateNameLocked() (string, bool) {
	for i := 0; i < maxNameAttempts; i++ {
		name := r.words.Pick(r.intn) + "-" + r.words.Pick(r.intn)
		if _, taken := r.groups[name]; !taken {
			return name, true
		}
	}
	return "", false
}

func (r *GroupRegistry) snapshot(g *group) models.Group {
	members := lo.Keys(g.members)
	slices.Sort(members)
	return models.Group{
		Name:      g.name,
		Owner:     g.owner,
		Members:   members,
		CreatedAt: g.createdAt,
		ExpiresAt: g.createdAt.Add(r.lifetime),
	}
}
