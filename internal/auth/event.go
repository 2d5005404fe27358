package auth

import (
	"time"

	"casebook/internal/backend"
)

type EventType string

const (
	EventSignedIn     EventType = "SIGNED_IN"
	EventSignedOut    EventType = "SIGNED_OUT"
	EventTokenExpired EventType = "TOKEN_EXPIRED"
)

// Event is one auth-state change for a single browser client. Session is nil for
// every type except EventSignedIn.
type Event struct {
	Type       EventType            `json:"type"`
	ClientID   string               `json:"client_id"`
	Session    *backend.AuthSession `json:"session,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// Handler receives events in publish order. The publisher waits for the handler to
// return before SignIn/SignOut return.
type Handler func(Event)

func topic(clientID string) string {
	return "auth.state." + clientID
}
