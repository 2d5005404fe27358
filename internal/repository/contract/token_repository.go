package contract

import (
	"context"

	"casebook/internal/backend"
)

// TokenRepository persists the auth session of each browser client between requests
// and, for shared stores, across process restarts.
type TokenRepository interface {
	// Load returns nil, nil when the client has no stored session.
	Load(ctx context.Context, clientID string) (*backend.AuthSession, error)
	Save(ctx context.Context, clientID string, session *backend.AuthSession) error
	Delete(ctx context.Context, clientID string) error
}
