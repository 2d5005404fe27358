package backend_test

import (
	"context"
	"testing"
	"time"

	"casebook/internal/backend"
	"casebook/internal/backend/backendtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedServesRepeatReadsFromCache(t *testing.T) {
	ctx := context.Background()
	fake := backendtest.NewFake()
	fake.SeedCase(backend.Case{Id: 42, Title: "Leaking roof"})
	cached := backend.NewCached(fake, time.Minute)

	for i := 0; i < 3; i++ {
		cases, err := cached.SelectCases(ctx, "")
		require.NoError(t, err)
		assert.Len(t, cases, 1)

		c, err := cached.SelectCase(ctx, "", 42)
		require.NoError(t, err)
		assert.Equal(t, "Leaking roof", c.Title)
	}

	assert.Equal(t, 1, fake.CallCount("SelectCases"))
	assert.Equal(t, 1, fake.CallCount("SelectCase"))
}

func TestCachedInsertInvalidatesList(t *testing.T) {
	ctx := context.Background()
	fake := backendtest.NewFake()
	fake.AddUser("ana@example.com", "secret123")
	token := fake.IssueToken("ana@example.com")
	cached := backend.NewCached(fake, time.Minute)

	before, err := cached.SelectCases(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, before)

	created, err := cached.InsertCase(ctx, token, backend.NewCase{Title: "Noise complaint"})
	require.NoError(t, err)

	after, err := cached.SelectCases(ctx, "")
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, created.Id, after[0].Id)
}

func TestCachedDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	fake := backendtest.NewFake()
	cached := backend.NewCached(fake, time.Minute)

	_, err := cached.SelectCase(ctx, "", 999)
	assert.True(t, backend.IsNotFound(err))

	fake.SeedCase(backend.Case{Id: 999, Title: "Late arrival"})
	c, err := cached.SelectCase(ctx, "", 999)
	require.NoError(t, err)
	assert.Equal(t, int64(999), c.Id)
}

// perCallerProvider only shows alice's row to alice.
type perCallerProvider struct {
	*backendtest.Fake
}

func (p *perCallerProvider) SelectCases(ctx context.Context, accessToken string) ([]backend.Case, error) {
	if accessToken != "alice" {
		return []backend.Case{}, nil
	}
	return []backend.Case{{Id: 1, Title: "alice private"}}, nil
}

func (p *perCallerProvider) SelectCase(ctx context.Context, accessToken string, id int64) (*backend.Case, error) {
	if accessToken != "alice" || id != 1 {
		return nil, backend.ErrNotFound
	}
	return &backend.Case{Id: 1, Title: "alice private"}, nil
}

func TestCachedKeepsCallersApart(t *testing.T) {
	ctx := context.Background()
	cached := backend.NewCached(&perCallerProvider{Fake: backendtest.NewFake()}, time.Minute)

	mine, err := cached.SelectCases(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	for _, token := range []string{"", "bob"} {
		theirs, err := cached.SelectCases(ctx, token)
		require.NoError(t, err)
		assert.Empty(t, theirs, "token %q", token)
	}

	c, err := cached.SelectCase(ctx, "alice", 1)
	require.NoError(t, err)
	assert.Equal(t, "alice private", c.Title)

	_, err = cached.SelectCase(ctx, "", 1)
	assert.True(t, backend.IsNotFound(err))
}

// gatedProvider answers SelectCases with a snapshot taken before it blocks.
type gatedProvider struct {
	*backendtest.Fake
	entered chan struct{}
	release chan struct{}
}

func (p *gatedProvider) SelectCases(ctx context.Context, accessToken string) ([]backend.Case, error) {
	cases, err := p.Fake.SelectCases(ctx, accessToken)
	p.entered <- struct{}{}
	<-p.release
	return cases, err
}

func TestCachedDropsReadsThatRaceAnInsert(t *testing.T) {
	ctx := context.Background()
	fake := backendtest.NewFake()
	fake.AddUser("ana@example.com", "secret123")
	token := fake.IssueToken("ana@example.com")
	gated := &gatedProvider{Fake: fake, entered: make(chan struct{}, 4), release: make(chan struct{})}
	cached := backend.NewCached(gated, time.Minute)

	done := make(chan struct{})
	go func() {
		defer close(done)
		stale, err := cached.SelectCases(ctx, "")
		assert.NoError(t, err)
		assert.Empty(t, stale)
	}()
	<-gated.entered

	_, err := cached.InsertCase(ctx, token, backend.NewCase{Title: "Noise complaint"})
	require.NoError(t, err)
	close(gated.release)
	<-done

	after, err := cached.SelectCases(ctx, "")
	require.NoError(t, err)
	assert.Len(t, after, 1)
}

func TestErrorClassification(t *testing.T) {
	err := backend.FetchError("select cases", context.DeadlineExceeded)
	assert.Equal(t, backend.KindFetch, backend.KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, backend.IsAuth(err))

	assert.True(t, backend.IsAuth(backend.AuthError("sign in", backend.ErrInvalidCredentials)))
	assert.True(t, backend.IsAuth(backend.ErrUnauthorized))
	assert.Equal(t, backend.ErrorKind(""), backend.KindOf(backend.ErrNotFound))
}
