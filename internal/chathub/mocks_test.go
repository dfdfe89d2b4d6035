package chathub_test

import (
	"sync"
	"testing"
	"time"

	"whisperchat/backend/internal/chathub"
	"whisperchat/backend/internal/localization"
	"whisperchat/backend/internal/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClient is an in-memory Client. Frames the hub sends end up in RecvChannel.
type MockClient struct {
	userID      models.UserID
	name        string
	RecvChannel chan models.ChatMessage
	done        chan struct{}
	once        sync.Once
}

func newMockClient(userID, name string) *MockClient {
	return &MockClient{
		userID:      models.UserID(userID),
		name:        name,
		RecvChannel: make(chan models.ChatMessage, 32),
		done:        make(chan struct{}),
	}
}

func (c *MockClient) GetUserID() models.UserID                  { return c.userID }
func (c *MockClient) GetName() string                           { return c.name }
func (c *MockClient) GetSendChannel() chan<- models.ChatMessage { return c.RecvChannel }
func (c *MockClient) Done() <-chan struct{}                     { return c.done }
func (c *MockClient) Run()                                      {}
func (c *MockClient) Close()                                    { c.once.Do(func() { close(c.done) }) }

// drain returns every queued frame's content.
func (c *MockClient) drain() []string {
	var out []string
	for {
		select {
		case msg := <-c.RecvChannel:
			out = append(out, msg.Content)
		default:
			return out
		}
	}
}

// MockAuditor records audit calls through testify.
type MockAuditor struct {
	mock.Mock
}

func (m *MockAuditor) Record(rec models.AuditRecord) {
	m.Called(rec)
}

// manualClock is a Clock tests move by hand.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	t      *testing.T
	clock  *manualClock
	store  *chathub.ConversationStore
	groups *chathub.GroupRegistry
	hub    *chathub.ManagerService
	texts  *localization.Localizer
}

func newTestEnv(t *testing.T, audit chathub.Auditor) *testEnv {
	t.Helper()
	clock := newManualClock()
	store := chathub.NewConversationStore(clock)
	groups := chathub.NewGroupRegistry(24*time.Hour, chathub.NewWordList(nil), clock, nil)
	texts := localization.NewLocalizer(nil, map[string]string{
		"dm":      "[{type}] {sender} -> {receiver}: {message}",
		"whisper": "[{type}] {sender} -> {receiver}: {message}",
		"reply":   "[{type}] {sender} -> {receiver}: {message}",
		"group":   "[{group}] {sender}: {message}",
		"public":  "{sender}: {message}",
	}, nil)
	hub := chathub.NewManagerService(chathub.HubOptions{
		Store:        store,
		Groups:       groups,
		Texts:        texts,
		PublicPrefix: "!",
		Audit:        audit,
	})
	return &testEnv{t: t, clock: clock, store: store, groups: groups, hub: hub, texts: texts}
}

func (e *testEnv) connect(userID, name string) *MockClient {
	c := newMockClient(userID, name)
	require.NoError(e.t, e.hub.Register(c))
	return c
}
