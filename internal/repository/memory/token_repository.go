package memory

import (
	"context"
	"time"

	"casebook/internal/backend"
	"casebook/internal/repository/contract"

	"github.com/patrickmn/go-cache"
)

type TokenRepository struct {
	cache *cache.Cache
}

func NewTokenRepository() *TokenRepository {
	// Entries carry their own expiry; purge expired ones every 10 minutes.
	return &TokenRepository{
		cache: cache.New(cache.NoExpiration, 10*time.Minute),
	}
}

var _ contract.TokenRepository = (*TokenRepository)(nil)

func (r *TokenRepository) Save(ctx context.Context, clientID string, session *backend.AuthSession) error {
	ttl := cache.NoExpiration
	if !session.ExpiresAt.IsZero() {
		ttl = time.Until(session.ExpiresAt)
		if ttl <= 0 {
			// go-cache treats a non-positive duration as "never expires"
			r.cache.Delete(clientID)
			return nil
		}
	}
	copied := *session
	r.cache.Set(clientID, &copied, ttl)
	return nil
}

func (r *TokenRepository) Load(ctx context.Context, clientID string) (*backend.AuthSession, error) {
	if x, found := r.cache.Get(clientID); found {
		copied := *x.(*backend.AuthSession)
		return &copied, nil
	}
	return nil, nil
}

func (r *TokenRepository) Delete(ctx context.Context, clientID string) error {
	r.cache.Delete(clientID)
	return nil
}
