package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"casebook/internal/auth"
	"casebook/internal/backend"
	"casebook/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSource lets tests decide when the startup query returns.
type stubSource struct {
	mu           sync.Mutex
	release      chan struct{}
	result       *backend.AuthSession
	err          error
	handler      auth.Handler
	unsubscribed bool
	getUserCalls int
}

func newStubSource() *stubSource {
	return &stubSource{release: make(chan struct{})}
}

func (s *stubSource) GetUser(ctx context.Context, clientID string) (*backend.AuthSession, error) {
	s.mu.Lock()
	s.getUserCalls++
	s.mu.Unlock()

	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}

func (s *stubSource) OnAuthStateChange(ctx context.Context, clientID string, handler auth.Handler) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
	return func() {
		s.mu.Lock()
		s.unsubscribed = true
		s.mu.Unlock()
	}, nil
}

func (s *stubSource) emit(e auth.Event) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	h(e)
}

func anaAuth() *backend.AuthSession {
	return &backend.AuthSession{AccessToken: "t-1", User: backend.User{Id: "u-1", Email: "ana@example.com"}}
}

func startStore(t *testing.T, src *stubSource) *Store {
	t.Helper()
	store := NewStore("browser-1", src, logger.NewNopLogger())
	store.Start(context.Background())
	t.Cleanup(store.Stop)
	return store
}

func waitReady(t *testing.T, store *Store) {
	t.Helper()
	select {
	case <-store.Ready():
	case <-time.After(time.Second):
		t.Fatal("store never became ready")
	}
}

func TestStoreResolvesFromStartupQuery(t *testing.T) {
	src := newStubSource()
	src.result = anaAuth()
	store := startStore(t, src)

	assert.False(t, store.Current().Resolved)
	close(src.release)
	waitReady(t, store)

	assert.Equal(t, "ana@example.com", store.Current().Session.User.Email)
}

func TestStoreTreatsStartupFailureAsSignedOut(t *testing.T) {
	src := newStubSource()
	src.err = backend.FetchError("get user", errors.New("unreachable"))
	store := startStore(t, src)

	close(src.release)
	waitReady(t, store)
	assert.False(t, store.Current().Authenticated())
}

func TestAuthEventBeatsLateStartupResult(t *testing.T) {
	src := newStubSource()
	store := startStore(t, src)

	src.emit(auth.Event{Type: auth.EventSignedIn, Session: anaAuth()})
	waitReady(t, store)

	// Startup finishes afterwards with the pre-login answer.
	close(src.release)
	time.Sleep(20 * time.Millisecond)

	assert.True(t, store.Current().Authenticated())
	assert.Equal(t, uint64(1), store.Current().Version)
}

func TestListenersSeeEveryChange(t *testing.T) {
	src := newStubSource()
	store := startStore(t, src)

	var mu sync.Mutex
	var seen []bool
	unsubscribe := store.Subscribe(func(s State) {
		mu.Lock()
		seen = append(seen, s.Authenticated())
		mu.Unlock()
	})

	src.emit(auth.Event{Type: auth.EventSignedIn, Session: anaAuth()})
	src.emit(auth.Event{Type: auth.EventSignedIn, Session: anaAuth()})
	src.emit(auth.Event{Type: auth.EventSignedOut})
	unsubscribe()
	src.emit(auth.Event{Type: auth.EventSignedIn, Session: anaAuth()})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, true, false}, seen)
	assert.True(t, store.Current().Authenticated())
}

func TestStopDropsLateResults(t *testing.T) {
	src := newStubSource()
	src.result = anaAuth()
	store := NewStore("browser-1", src, logger.NewNopLogger())
	store.Start(context.Background())

	calls := 0
	store.Subscribe(func(State) { calls++ })
	store.Stop()

	close(src.release)
	src.emit(auth.Event{Type: auth.EventSignedIn, Session: anaAuth()})
	time.Sleep(20 * time.Millisecond)

	assert.False(t, store.Current().Resolved)
	assert.Zero(t, calls)

	src.mu.Lock()
	assert.True(t, src.unsubscribed)
	src.mu.Unlock()
}

func TestAwaitTimesOutAsSignedOut(t *testing.T) {
	src := newStubSource()
	store := startStore(t, src)

	start := time.Now()
	state := store.Await(context.Background(), 30*time.Millisecond)
	assert.False(t, state.Authenticated())
	assert.False(t, state.Resolved)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestStartIsIdempotent(t *testing.T) {
	src := newStubSource()
	store := startStore(t, src)
	store.Start(context.Background())

	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.getUserCalls == 1
	}, time.Second, 5*time.Millisecond)
}
