package chathub_test

import (
	"testing"

	"whisperchat/backend/internal/chathub"
	"whisperchat/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRoute_NoConversationIsPublic(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.connect("a", "Alice")

	out := env.hub.Router().Route(alice, "hello world")

	assert.Equal(t, chathub.Outcome{Public: true, Text: "hello world"}, out)
	assert.Empty(t, alice.drain())
}

func TestRoute_DirectDelivers(t *testing.T) {
	auditor := new(MockAuditor)
	auditor.On("Record", mock.MatchedBy(func(rec models.AuditRecord) bool {
		return rec.Kind == models.TypeDM && rec.SenderName == "Alice" && rec.Content == "hi bob"
	})).Once()
	env := newTestEnv(t, auditor)
	alice := env.connect("a", "Alice")
	bob := env.connect("b", "Bob")
	require.NoError(t, env.store.StartDirect("a", "b"))

	out := env.hub.Router().Route(alice, "hi bob")

	assert.False(t, out.Public)
	assert.Equal(t, []string{"[DM] Alice -> Bob: hi bob"}, bob.drain())
	assert.Equal(t, []string{"[DM] Alice -> Bob: hi bob"}, alice.drain())
	reply, err := env.store.ResolveReply("b")
	require.NoError(t, err)
	assert.Equal(t, models.UserID("a"), reply)
	auditor.AssertExpectations(t)
}

func TestRoute_EscapePrefix(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		public bool
		out    string
	}{
		{name: "escaped", text: "!hello all", public: true, out: "hello all"},
		{name: "escaped trailing space", text: "!hi  ", public: true, out: "hi"},
		{name: "prefix only", text: "!", public: false},
		{name: "prefix then space", text: "! secret", public: false},
		{name: "plain", text: "secret", public: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			alice := env.connect("a", "Alice")
			bob := env.connect("b", "Bob")
			require.NoError(t, env.store.StartDirect("a", "b"))

			out := env.hub.Router().Route(alice, tt.text)

			assert.Equal(t, tt.public, out.Public)
			if tt.public {
				assert.Equal(t, tt.out, out.Text)
				assert.Empty(t, bob.drain())
			} else {
				assert.Equal(t, []string{"[DM] Alice -> Bob: " + tt.text}, bob.drain())
			}
		})
	}
}

func TestRoute_DirectTargetOffline(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.connect("a", "Alice")
	require.NoError(t, env.store.StartDirect("a", "ghost"))

	out := env.hub.Router().Route(alice, "anyone there?")

	assert.False(t, out.Public)
	assert.Equal(t, []string{"Target is offline."}, alice.drain())
	assert.Equal(t, models.NoConversation, env.store.Active("a").Kind())
	assert.False(t, env.store.HasSession("a", "ghost"))
}

func TestRoute_DirectClosedClientIsUnreachable(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.connect("a", "Alice")
	bob := env.connect("b", "Bob")
	require.NoError(t, env.store.StartDirect("a", "b"))
	bob.Close()

	env.hub.Router().Route(alice, "hello")

	assert.Equal(t, []string{"Target is offline."}, alice.drain())
	assert.False(t, env.store.HasSession("a", "b"))
}

func TestRoute_GroupBroadcast(t *testing.T) {
	auditor := new(MockAuditor)
	auditor.On("Record", mock.MatchedBy(func(rec models.AuditRecord) bool {
		return rec.Kind == models.TypeGroup && len(rec.Recipients) == 2
	})).Once()
	env := newTestEnv(t, auditor)
	alice := env.connect("a", "Alice")
	bob := env.connect("b", "Bob")
	carol := env.connect("c", "Carol")
	dave := env.connect("d", "Dave")

	g, err := env.groups.CreateGroup("a")
	require.NoError(t, err)
	_, err = env.groups.JoinGroup("b", g.Name)
	require.NoError(t, err)
	_, err = env.groups.JoinGroup("c", g.Name)
	require.NoError(t, err)
	env.store.FocusGroup("a", g.Name)

	out := env.hub.Router().Route(alice, "hi group")

	assert.False(t, out.Public)
	line := "[" + g.Name + "] Alice: hi group"
	assert.Equal(t, []string{line}, bob.drain())
	assert.Equal(t, []string{line}, carol.drain())
	assert.Equal(t, []string{line}, alice.drain())
	assert.Empty(t, dave.drain())
	auditor.AssertExpectations(t)
}

func TestRoute_GroupGoneFallsBackToPublic(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.connect("a", "Alice")
	env.store.FocusGroup("a", "cat-falcon")

	out := env.hub.Router().Route(alice, "!still here")

	assert.Equal(t, chathub.Outcome{Public: true, Text: "!still here"}, out)
	assert.Equal(t, []string{"Your group conversation cat-falcon is no longer available."}, alice.drain())
	assert.Equal(t, models.NoConversation, env.store.Active("a").Kind())
}

func TestRoute_GroupEscape(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.connect("a", "Alice")
	bob := env.connect("b", "Bob")
	g, err := env.groups.CreateGroup("a")
	require.NoError(t, err)
	_, err = env.groups.JoinGroup("b", g.Name)
	require.NoError(t, err)
	env.store.FocusGroup("a", g.Name)

	out := env.hub.Router().Route(alice, "!public line")

	assert.Equal(t, chathub.Outcome{Public: true, Text: "public line"}, out)
	assert.Empty(t, bob.drain())
}

func TestWhisper(t *testing.T) {
	auditor := new(MockAuditor)
	auditor.On("Record", mock.AnythingOfType("models.AuditRecord")).Once()
	env := newTestEnv(t, auditor)
	alice := env.connect("a", "Alice")
	bob := env.connect("b", "Bob")
	require.NoError(t, env.store.StartDirect("a", "c"))

	assert.ErrorIs(t, env.hub.Router().Whisper(alice, "a", "me"), chathub.ErrSelfTarget)
	assert.ErrorIs(t, env.hub.Router().Whisper(alice, "ghost", "hi"), chathub.ErrTargetUnreachable)

	require.NoError(t, env.hub.Router().Whisper(alice, "b", "psst"))

	assert.Equal(t, []string{"[WHISPER] Alice -> Bob: psst"}, bob.drain())
	assert.True(t, env.store.Active("a").IsDirectWith("c"), "whisper leaves focus alone")
	_, ok := env.store.LastInteraction("a", "b")
	assert.True(t, ok)
	auditor.AssertExpectations(t)
}

func TestReply(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.connect("a", "Alice")
	bob := env.connect("b", "Bob")

	assert.ErrorIs(t, env.hub.Router().Reply(bob, "hi"), chathub.ErrNoReplyTarget)

	require.NoError(t, env.hub.Router().Whisper(alice, "b", "ping"))
	require.NoError(t, env.hub.Router().Reply(bob, "pong"))

	assert.Equal(t, []string{"[WHISPER] Alice -> Bob: ping", "[REPLY] Bob -> Alice: pong"}, alice.drain())
	reply, err := env.store.ResolveReply("a")
	require.NoError(t, err)
	assert.Equal(t, models.UserID("b"), reply)
}

func TestReply_UnreachableTargetIsForgotten(t *testing.T) {
	env := newTestEnv(t, nil)
	bob := env.connect("b", "Bob")
	env.store.RecordDelivery("ghost", "b")

	err := env.hub.Router().Reply(bob, "hello?")

	assert.ErrorIs(t, err, chathub.ErrTargetUnreachable)
	_, err = env.store.ResolveReply("b")
	assert.ErrorIs(t, err, chathub.ErrNoReplyTarget)
}
