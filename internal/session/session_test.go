package session

import (
	"testing"

	"casebook/internal/auth"
	"casebook/internal/backend"

	"github.com/stretchr/testify/assert"
)

var ana = &Session{User: backend.User{Id: "u-1", Email: "ana@example.com"}, AccessToken: "t-1"}

func TestReduceStartupResolves(t *testing.T) {
	s := Reduce(State{}, Event{Kind: StartupResolved, Session: ana})
	assert.True(t, s.Resolved)
	assert.True(t, s.Authenticated())
	assert.Equal(t, uint64(1), s.Version)

	s = Reduce(State{}, Event{Kind: StartupResolved})
	assert.True(t, s.Resolved)
	assert.False(t, s.Authenticated())
}

func TestReduceIgnoresStartupAfterAuthChange(t *testing.T) {
	s := Reduce(State{}, Event{Kind: AuthChanged, Cause: auth.EventSignedIn, Session: ana})
	stale := Reduce(s, Event{Kind: StartupResolved})

	assert.Equal(t, s, stale)
	assert.True(t, stale.Authenticated())
}

func TestReduceRepeatedSignInIsIdempotent(t *testing.T) {
	ev := Event{Kind: AuthChanged, Cause: auth.EventSignedIn, Session: ana}
	once := Reduce(State{}, ev)
	twice := Reduce(once, ev)

	assert.Equal(t, once.Session, twice.Session)
	assert.Equal(t, once.Version+1, twice.Version)
}

func TestReduceSignOutAndExpiryClearSession(t *testing.T) {
	signedIn := Reduce(State{}, Event{Kind: AuthChanged, Cause: auth.EventSignedIn, Session: ana})

	for _, cause := range []auth.EventType{auth.EventSignedOut, auth.EventTokenExpired} {
		s := Reduce(signedIn, EventFromAuth(auth.Event{Type: cause}))
		assert.False(t, s.Authenticated(), cause)
		assert.True(t, s.Resolved, cause)
	}
}

func TestEventFromAuthCopiesSession(t *testing.T) {
	ev := EventFromAuth(auth.Event{
		Type:    auth.EventSignedIn,
		Session: &backend.AuthSession{AccessToken: "t-1", User: backend.User{Id: "u-1"}},
	})
	assert.Equal(t, AuthChanged, ev.Kind)
	assert.Equal(t, "t-1", ev.Session.AccessToken)

	// A stray session on a sign-out event is ignored.
	ev = EventFromAuth(auth.Event{Type: auth.EventSignedOut, Session: &backend.AuthSession{}})
	assert.Nil(t, ev.Session)
}
