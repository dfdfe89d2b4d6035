package chathub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"whisperchat/backend/internal/localization"
	"whisperchat/backend/internal/models"
)

// unknownName stands in for a user that is no longer connected.
const unknownName = "Unknown"

// SweepResult lists what a single sweep removed.
type SweepResult struct {
	Sessions []Pair
	Groups   []models.Group
}

// ExpirationSweeper periodically evicts idle direct sessions and expired
// groups.
type ExpirationSweeper struct {
	store    *ConversationStore
	groups   *GroupRegistry
	presence Presence
	texts    *localization.Localizer
	ttl      time.Duration
	interval time.Duration
	clock    Clock
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewExpirationSweeper creates a stopped sweeper.
func NewExpirationSweeper(store *ConversationStore, groups *GroupRegistry, presence Presence, texts *localization.Localizer, ttl, interval time.Duration, logger *slog.Logger) *ExpirationSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpirationSweeper{
		store:    store,
		groups:   groups,
		presence: presence,
		texts:    texts,
		ttl:      ttl,
		interval: interval,
		clock:    store.clock,
		logger:   logger.With("component", "sweeper"),
	}
}

// Start launches the sweep loop. Calling Start on a running sweeper is a no-op.
func (s *ExpirationSweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.run(sweepCtx, s.done)
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (s *ExpirationSweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}

// IsRunning reports whether the sweep loop is active.
func (s *ExpirationSweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *ExpirationSweeper) run(ctx context.Context, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.running = false
		close(done)
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started", "interval", s.interval, "session_ttl", s.ttl)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopping")
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep runs one pass at the current clock time.
func (s *ExpirationSweeper) Sweep() SweepResult {
	return s.SweepAt(s.clock.Now())
}

// SweepAt runs one pass as of now: idle sessions first, then groups. Both
// sides of an expired session are told, if they are still connected.
func (s *ExpirationSweeper) SweepAt(now time.Time) SweepResult {
	start := time.Now()

	pairs := s.store.ExpireSessions(now, s.ttl)
	for _, p := range pairs {
		a, aOK := s.presence.Resolve(p.A)
		b, bOK := s.presence.Resolve(p.B)
		aName, bName := unknownName, unknownName
		if aOK {
			aName = a.GetName()
		}
		if bOK {
			bName = b.GetName()
		}
		if aOK && s.presence.IsReachable(a) {
			sendNotice(a, s.texts.Message("session-expired", "player", bName))
		}
		if bOK && s.presence.IsReachable(b) {
			sendNotice(b, s.texts.Message("session-expired", "player", aName))
		}
	}

	groups := s.groups.ExpireGroups(now)

	if len(pairs) > 0 || len(groups) > 0 {
		s.logger.Info("expired idle conversations",
			"sessions", len(pairs),
			"groups", len(groups),
			"duration", time.Since(start),
		)
	}
	s.logger.Debug("sweep complete", "tracked_pairs", s.store.InteractionCount())

	return SweepResult{Sessions: pairs, Groups: groups}
}
