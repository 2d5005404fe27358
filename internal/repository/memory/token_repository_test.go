package memory

import (
	"context"
	"testing"
	"time"

	"casebook/internal/backend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewTokenRepository()

	missing, err := repo.Load(ctx, "client-a")
	require.NoError(t, err)
	assert.Nil(t, missing)

	s := &backend.AuthSession{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour), User: backend.User{Id: "u1"}}
	require.NoError(t, repo.Save(ctx, "client-a", s))

	loaded, err := repo.Load(ctx, "client-a")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "tok", loaded.AccessToken)

	// Stored copies are isolated from the caller's value.
	loaded.AccessToken = "mutated"
	again, _ := repo.Load(ctx, "client-a")
	assert.Equal(t, "tok", again.AccessToken)

	require.NoError(t, repo.Delete(ctx, "client-a"))
	gone, _ := repo.Load(ctx, "client-a")
	assert.Nil(t, gone)
}

func TestTokenRepositoryExpiresWithSession(t *testing.T) {
	ctx := context.Background()
	repo := NewTokenRepository()

	s := &backend.AuthSession{AccessToken: "short", ExpiresAt: time.Now().Add(20 * time.Millisecond)}
	require.NoError(t, repo.Save(ctx, "client-b", s))

	assert.Eventually(t, func() bool {
		got, _ := repo.Load(ctx, "client-b")
		return got == nil
	}, time.Second, 10*time.Millisecond)
}
