package chathub_test

import (
	"testing"
	"time"

	"whisperchat/backend/internal/chathub"
	"whisperchat/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartDirect_IndexesEverything(t *testing.T) {
	clock := newManualClock()
	s := chathub.NewConversationStore(clock)

	require.NoError(t, s.StartDirect("a", "b"))

	assert.Equal(t, []models.UserID{"b"}, s.ListDirect("a"))
	assert.True(t, s.Active("a").IsDirectWith("b"))

	reply, err := s.ResolveReply("b")
	require.NoError(t, err)
	assert.Equal(t, models.UserID("a"), reply)

	ts, ok := s.LastInteraction("b", "a")
	assert.True(t, ok)
	assert.Equal(t, clock.Now(), ts)
}

func TestStartDirect_SelfTarget(t *testing.T) {
	s := chathub.NewConversationStore(newManualClock())

	err := s.StartDirect("a", "a")

	assert.ErrorIs(t, err, chathub.ErrSelfTarget)
	assert.Empty(t, s.ListDirect("a"))
	assert.Equal(t, models.NoConversation, s.Active("a").Kind())
}

func TestSwitchDirect(t *testing.T) {
	clock := newManualClock()
	s := chathub.NewConversationStore(clock)
	require.NoError(t, s.StartDirect("a", "b"))
	require.NoError(t, s.StartDirect("a", "c"))
	before, _ := s.LastInteraction("a", "b")

	clock.Advance(time.Minute)
	require.NoError(t, s.SwitchDirect("a", "b"))

	assert.True(t, s.Active("a").IsDirectWith("b"))
	after, _ := s.LastInteraction("a", "b")
	assert.Equal(t, before, after, "switching must not refresh the interaction time")

	assert.ErrorIs(t, s.SwitchDirect("a", "d"), chathub.ErrNoSession)
	assert.True(t, s.Active("a").IsDirectWith("b"))
}

func TestLeaveDirect(t *testing.T) {
	s := chathub.NewConversationStore(newManualClock())
	require.NoError(t, s.StartDirect("a", "b"))

	target, err := s.LeaveDirect("a")
	require.NoError(t, err)
	assert.Equal(t, models.UserID("b"), target)
	assert.Empty(t, s.ListDirect("a"))

	_, err = s.LeaveDirect("a")
	assert.ErrorIs(t, err, chathub.ErrNotInDirect, "second leave is a no-op that reports not-in-direct")
}

func TestLeaveDirect_GroupFocusIsNotDirect(t *testing.T) {
	s := chathub.NewConversationStore(newManualClock())
	s.FocusGroup("a", "cat-falcon")

	_, err := s.LeaveDirect("a")

	assert.ErrorIs(t, err, chathub.ErrNotInDirect)
	name, ok := s.Active("a").Group()
	assert.True(t, ok)
	assert.Equal(t, "cat-falcon", name)
}

func TestRecordDelivery_SingleEntryPerPair(t *testing.T) {
	clock := newManualClock()
	s := chathub.NewConversationStore(clock)

	s.RecordDelivery("a", "b")
	clock.Advance(time.Second)
	s.RecordDelivery("b", "a")

	assert.Equal(t, 1, s.InteractionCount())
	ts, ok := s.LastInteraction("a", "b")
	assert.True(t, ok)
	assert.Equal(t, clock.Now(), ts)

	reply, err := s.ResolveReply("a")
	require.NoError(t, err)
	assert.Equal(t, models.UserID("b"), reply)
}

func TestResolveReply_NoTarget(t *testing.T) {
	s := chathub.NewConversationStore(newManualClock())

	_, err := s.ResolveReply("a")

	assert.ErrorIs(t, err, chathub.ErrNoReplyTarget)
}

func TestForgetReplyTarget_KeepsNewerSender(t *testing.T) {
	s := chathub.NewConversationStore(newManualClock())
	s.RecordDelivery("b", "a")
	s.RecordDelivery("c", "a")

	s.ForgetReplyTarget("a", "b")
	reply, err := s.ResolveReply("a")
	require.NoError(t, err)
	assert.Equal(t, models.UserID("c"), reply)

	s.ForgetReplyTarget("a", "c")
	_, err = s.ResolveReply("a")
	assert.ErrorIs(t, err, chathub.ErrNoReplyTarget)
}

func TestDropDirect(t *testing.T) {
	s := chathub.NewConversationStore(newManualClock())
	require.NoError(t, s.StartDirect("a", "b"))
	require.NoError(t, s.StartDirect("a", "c"))

	s.DropDirect("a", "b")

	assert.Equal(t, []models.UserID{"c"}, s.ListDirect("a"))
	assert.True(t, s.Active("a").IsDirectWith("c"), "focus on another target is kept")

	s.DropDirect("a", "c")
	assert.Equal(t, models.NoConversation, s.Active("a").Kind())
}

func TestClearGroupFocus_OnlyMatchingGroup(t *testing.T) {
	s := chathub.NewConversationStore(newManualClock())
	s.FocusGroup("a", "cat-falcon")

	assert.False(t, s.ClearGroupFocus("a", "apple-grape"))
	assert.True(t, s.ClearGroupFocus("a", "cat-falcon"))
	assert.Equal(t, models.NoConversation, s.Active("a").Kind())
}

func TestRemoveUser_PurgesEveryIndex(t *testing.T) {
	s := chathub.NewConversationStore(newManualClock())
	require.NoError(t, s.StartDirect("a", "u"))
	require.NoError(t, s.StartDirect("u", "b"))
	require.NoError(t, s.StartDirect("c", "d"))
	s.RecordDelivery("u", "c")

	s.RemoveUser("u")

	assert.Empty(t, s.ListDirect("u"))
	assert.Empty(t, s.ListDirect("a"))
	assert.Equal(t, models.NoConversation, s.Active("a").Kind())
	assert.Equal(t, models.NoConversation, s.Active("u").Kind())

	_, err := s.ResolveReply("b")
	assert.ErrorIs(t, err, chathub.ErrNoReplyTarget)
	_, err = s.ResolveReply("c")
	assert.ErrorIs(t, err, chathub.ErrNoReplyTarget)
	_, err = s.ResolveReply("u")
	assert.ErrorIs(t, err, chathub.ErrNoReplyTarget)

	_, ok := s.LastInteraction("a", "u")
	assert.False(t, ok)
	_, ok = s.LastInteraction("u", "b")
	assert.False(t, ok)
	_, ok = s.LastInteraction("c", "d")
	assert.True(t, ok, "unrelated pairs survive")
	assert.Equal(t, 1, s.InteractionCount())
}

func TestExpireSessions_TTLBoundary(t *testing.T) {
	clock := newManualClock()
	s := chathub.NewConversationStore(clock)
	require.NoError(t, s.StartDirect("a", "b"))
	start := clock.Now()
	ttl := 30 * time.Minute

	assert.Empty(t, s.ExpireSessions(start.Add(ttl-time.Millisecond), ttl))
	assert.True(t, s.HasSession("a", "b"))

	expired := s.ExpireSessions(start.Add(ttl), ttl)

	assert.Equal(t, []chathub.Pair{chathub.NewPair("a", "b")}, expired)
	assert.False(t, s.HasSession("a", "b"))
	assert.Equal(t, models.NoConversation, s.Active("a").Kind())
	assert.Zero(t, s.InteractionCount())
}

func TestExpireSessions_ClearsFocusBothWays(t *testing.T) {
	clock := newManualClock()
	s := chathub.NewConversationStore(clock)
	require.NoError(t, s.StartDirect("a", "b"))
	require.NoError(t, s.StartDirect("b", "a"))
	require.NoError(t, s.StartDirect("c", "a"))
	clock.Advance(10 * time.Minute)
	s.RecordDelivery("c", "a")

	expired := s.ExpireSessions(clock.Now().Add(25*time.Minute), 30*time.Minute)

	assert.Equal(t, []chathub.Pair{chathub.NewPair("a", "b")}, expired)
	assert.Equal(t, models.NoConversation, s.Active("a").Kind())
	assert.Equal(t, models.NoConversation, s.Active("b").Kind())
	assert.True(t, s.Active("c").IsDirectWith("a"))
	assert.True(t, s.HasSession("c", "a"))
}

func TestConversationStore_ConcurrentAccess(t *testing.T) {
	clock := newManualClock()
	s := chathub.NewConversationStore(clock)
	users := []models.UserID{"a", "b", "c", "d"}

	done := make(chan struct{})
	for i := range users {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			me := users[i]
			other := users[(i+1)%len(users)]
			for n := 0; n < 200; n++ {
				_ = s.StartDirect(me, other)
				s.RecordDelivery(other, me)
				s.ListDirect(me)
				s.ExpireSessions(clock.Now(), time.Hour)
				if n%50 == 0 {
					s.RemoveUser(other)
				}
			}
		}(i)
	}
	for range users {
		<-done
	}

	assert.LessOrEqual(t, s.InteractionCount(), len(users))
}
