// Package session holds the per-browser view of who is signed in. State only changes
// through Reduce, so every handler sees one consistent answer for a request.
package session

import (
	"time"

	"casebook/internal/auth"
	"casebook/internal/backend"
)

// Session is an authenticated identity. Values are never mutated after creation.
type Session struct {
	User        backend.User
	AccessToken string
	ExpiresAt   time.Time
}

// FromAuth returns nil for a nil session.
func FromAuth(s *backend.AuthSession) *Session {
	if s == nil {
		return nil
	}
	return &Session{User: s.User, AccessToken: s.AccessToken, ExpiresAt: s.ExpiresAt}
}

type State struct {
	// Session is nil when nobody is signed in.
	Session *Session
	// Resolved turns true once the startup query finished or an auth event arrived.
	Resolved bool
	// Version counts applied events.
	Version uint64
}

func (s State) Authenticated() bool {
	return s.Session != nil
}

type EventKind int

const (
	// StartupResolved carries the result of the initial "who is signed in" query.
	StartupResolved EventKind = iota
	// AuthChanged carries an auth-state notification.
	AuthChanged
)

type Event struct {
	Kind    EventKind
	Cause   auth.EventType
	Session *Session
}

// Reduce applies ev to state. A startup result that arrives after an auth change is
// stale and leaves state untouched.
func Reduce(state State, ev Event) State {
	switch ev.Kind {
	case StartupResolved:
		if state.Resolved {
			return state
		}
	case AuthChanged:
	default:
		return state
	}

	return State{
		Session:  ev.Session,
		Resolved: true,
		Version:  state.Version + 1,
	}
}

// EventFromAuth maps an auth notification onto a reducer event.
func EventFromAuth(e auth.Event) Event {
	ev := Event{Kind: AuthChanged, Cause: e.Type}
	if e.Type == auth.EventSignedIn {
		ev.Session = FromAuth(e.Session)
	}
	return ev
}
