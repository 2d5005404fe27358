package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"casebook/internal/backend"
	"casebook/internal/backend/backendtest"
	"casebook/internal/pkg/logger"
	"casebook/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestClient(t *testing.T) (*Client, *backendtest.Fake) {
	t.Helper()
	fake := backendtest.NewFake()
	fake.AddUser("ana@example.com", "correct-horse")

	pubSub := NewPubSub()
	c := NewClient(fake, memory.NewTokenRepository(), pubSub, nil, logger.NewNopLogger())
	t.Cleanup(func() {
		c.Close()
		pubSub.Close()
	})
	return c, fake
}

var anaCreds = backend.Credentials{Email: "ana@example.com", Password: "correct-horse"}

func TestSignInNotifiesBeforeReturning(t *testing.T) {
	c, _ := newTestClient(t)
	rec := &recorder{}
	unsubscribe, err := c.OnAuthStateChange(context.Background(), "browser-1", rec.handle)
	require.NoError(t, err)
	defer unsubscribe()

	session, err := c.SignIn(context.Background(), "browser-1", anaCreds)
	require.NoError(t, err)

	require.Equal(t, []EventType{EventSignedIn}, rec.types())
	assert.Equal(t, session.AccessToken, rec.events[0].Session.AccessToken)
	assert.Equal(t, "browser-1", rec.events[0].ClientID)
}

func TestSignInWithBadPasswordPublishesNothing(t *testing.T) {
	c, _ := newTestClient(t)
	rec := &recorder{}
	unsubscribe, err := c.OnAuthStateChange(context.Background(), "browser-1", rec.handle)
	require.NoError(t, err)
	defer unsubscribe()

	_, err = c.SignIn(context.Background(), "browser-1", backend.Credentials{Email: "ana@example.com", Password: "nope"})
	assert.ErrorIs(t, err, backend.ErrInvalidCredentials)
	assert.Empty(t, rec.types())

	s, err := c.GetUser(context.Background(), "browser-1")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestEventsAreScopedToClient(t *testing.T) {
	c, _ := newTestClient(t)
	other := &recorder{}
	unsubscribe, err := c.OnAuthStateChange(context.Background(), "browser-2", other.handle)
	require.NoError(t, err)
	defer unsubscribe()

	_, err = c.SignIn(context.Background(), "browser-1", anaCreds)
	require.NoError(t, err)
	assert.Empty(t, other.types())

	s, err := c.GetUser(context.Background(), "browser-2")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestGetUserResolvesStoredToken(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	s, err := c.GetUser(ctx, "browser-1")
	require.NoError(t, err)
	assert.Nil(t, s)

	signedIn, err := c.SignIn(ctx, "browser-1", anaCreds)
	require.NoError(t, err)

	s, err = c.GetUser(ctx, "browser-1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "ana@example.com", s.User.Email)

	// Revoked server-side: the stored token is dropped.
	require.NoError(t, fake.SignOut(ctx, signedIn.AccessToken))
	s, err = c.GetUser(ctx, "browser-1")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestGetUserSurfacesBackendOutage(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()
	_, err := c.SignIn(ctx, "browser-1", anaCreds)
	require.NoError(t, err)

	fake.GetUserErr = backend.FetchError("get user", errors.New("connection refused"))
	_, err = c.GetUser(ctx, "browser-1")
	assert.Equal(t, backend.KindFetch, backend.KindOf(err))

	// The token survives an outage.
	fake.GetUserErr = nil
	s, err := c.GetUser(ctx, "browser-1")
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestSignOutClearsAndNotifies(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()
	rec := &recorder{}
	unsubscribe, err := c.OnAuthStateChange(ctx, "browser-1", rec.handle)
	require.NoError(t, err)
	defer unsubscribe()

	_, err = c.SignIn(ctx, "browser-1", anaCreds)
	require.NoError(t, err)
	require.NoError(t, c.SignOut(ctx, "browser-1"))

	assert.Equal(t, []EventType{EventSignedIn, EventSignedOut}, rec.types())
	assert.Nil(t, rec.events[1].Session)
	assert.Equal(t, 1, fake.CallCount("SignOut"))

	s, err := c.GetUser(ctx, "browser-1")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestExpiredTokenEmitsEvent(t *testing.T) {
	c, fake := newTestClient(t)
	fake.TokenTTL = 50 * time.Millisecond
	rec := &recorder{}
	unsubscribe, err := c.OnAuthStateChange(context.Background(), "browser-1", rec.handle)
	require.NoError(t, err)
	defer unsubscribe()

	_, err = c.SignIn(context.Background(), "browser-1", anaCreds)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		types := rec.types()
		return len(types) == 2 && types[1] == EventTokenExpired
	}, time.Second, 10*time.Millisecond)

	s, err := c.GetUser(context.Background(), "browser-1")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSignInAgainDisarmsPreviousExpiry(t *testing.T) {
	c, fake := newTestClient(t)
	fake.TokenTTL = 50 * time.Millisecond
	rec := &recorder{}
	unsubscribe, err := c.OnAuthStateChange(context.Background(), "browser-1", rec.handle)
	require.NoError(t, err)
	defer unsubscribe()

	_, err = c.SignIn(context.Background(), "browser-1", anaCreds)
	require.NoError(t, err)
	fake.TokenTTL = time.Hour
	_, err = c.SignIn(context.Background(), "browser-1", anaCreds)
	require.NoError(t, err)

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, []EventType{EventSignedIn, EventSignedIn}, rec.types())
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	c, _ := newTestClient(t)
	rec := &recorder{}
	unsubscribe, err := c.OnAuthStateChange(context.Background(), "browser-1", rec.handle)
	require.NoError(t, err)

	unsubscribe()
	time.Sleep(50 * time.Millisecond)

	_, err = c.SignIn(context.Background(), "browser-1", anaCreds)
	require.NoError(t, err)
	assert.Empty(t, rec.types())
}
