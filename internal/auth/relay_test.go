package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"casebook/internal/backend/backendtest"
	"casebook/internal/pkg/logger"
	"casebook/internal/repository/contract"
	"casebook/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryRelay delivers every payload to every subscriber, like a Redis channel.
type memoryRelay struct {
	mu   sync.Mutex
	subs []chan []byte
}

func (r *memoryRelay) Publish(ctx context.Context, payload []byte) error {
	r.mu.Lock()
	subs := append([]chan []byte(nil), r.subs...)
	r.mu.Unlock()
	for _, sub := range subs {
		sub <- payload
	}
	return nil
}

func (r *memoryRelay) Subscribe(ctx context.Context) (<-chan []byte, error) {
	ch := make(chan []byte, 16)
	r.mu.Lock()
	r.subs = append(r.subs, ch)
	r.mu.Unlock()
	return ch, nil
}

func newInstance(t *testing.T, fake *backendtest.Fake, tokens contract.TokenRepository, relay Relay) *Client {
	t.Helper()
	pubSub := NewPubSub()
	c := NewClient(fake, tokens, pubSub, nil, logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.StartRelay(ctx, relay))
	t.Cleanup(func() {
		cancel()
		c.Close()
		pubSub.Close()
	})
	return c
}

func TestRelayedEventsReachOtherInstances(t *testing.T) {
	fake := backendtest.NewFake()
	fake.AddUser("ana@example.com", "correct-horse")
	tokens := memory.NewTokenRepository()
	relay := &memoryRelay{}

	a := newInstance(t, fake, tokens, relay)
	b := newInstance(t, fake, tokens, relay)

	onA, onB := &recorder{}, &recorder{}
	unsubscribeA, err := a.OnAuthStateChange(context.Background(), "browser-1", onA.handle)
	require.NoError(t, err)
	defer unsubscribeA()
	unsubscribeB, err := b.OnAuthStateChange(context.Background(), "browser-1", onB.handle)
	require.NoError(t, err)
	defer unsubscribeB()

	session, err := a.SignIn(context.Background(), "browser-1", anaCreds)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(onB.types()) == 1 }, time.Second, 5*time.Millisecond)
	onB.mu.Lock()
	assert.Equal(t, session.AccessToken, onB.events[0].Session.AccessToken)
	onB.mu.Unlock()

	require.NoError(t, a.SignOut(context.Background(), "browser-1"))
	require.Eventually(t, func() bool { return len(onB.types()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []EventType{EventSignedIn, EventSignedOut}, onB.types())

	// An instance never replays its own events.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []EventType{EventSignedIn, EventSignedOut}, onA.types())

	current, err := b.GetUser(context.Background(), "browser-1")
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestRelayedSignOutDisarmsRemoteExpiry(t *testing.T) {
	fake := backendtest.NewFake()
	fake.AddUser("ana@example.com", "correct-horse")
	tokens := memory.NewTokenRepository()
	relay := &memoryRelay{}

	a := newInstance(t, fake, tokens, relay)
	b := newInstance(t, fake, tokens, relay)

	_, err := a.SignIn(context.Background(), "browser-1", anaCreds)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		_, armed := b.timers["browser-1"]
		return armed
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, a.SignOut(context.Background(), "browser-1"))
	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		_, armed := b.timers["browser-1"]
		return !armed
	}, time.Second, 5*time.Millisecond)
}
