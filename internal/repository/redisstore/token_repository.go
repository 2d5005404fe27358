package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"casebook/internal/backend"
	"casebook/internal/repository/contract"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "casebook:session:"

// TokenRepository keeps client sessions in Redis so they survive restarts and are
// shared between instances.
type TokenRepository struct {
	rdb *redis.Client
}

func NewTokenRepository(rdb *redis.Client) *TokenRepository {
	return &TokenRepository{rdb: rdb}
}

var _ contract.TokenRepository = (*TokenRepository)(nil)

func (r *TokenRepository) Save(ctx context.Context, clientID string, session *backend.AuthSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	var ttl time.Duration // 0 keeps the key forever
	if !session.ExpiresAt.IsZero() {
		ttl = time.Until(session.ExpiresAt)
		if ttl <= 0 {
			return r.Delete(ctx, clientID)
		}
	}

	if err := r.rdb.Set(ctx, keyPrefix+clientID, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (r *TokenRepository) Load(ctx context.Context, clientID string) (*backend.AuthSession, error) {
	data, err := r.rdb.Get(ctx, keyPrefix+clientID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session backend.AuthSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

func (r *TokenRepository) Delete(ctx context.Context, clientID string) error {
	return r.rdb.Del(ctx, keyPrefix+clientID).Err()
}
