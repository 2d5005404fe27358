package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"casebook/internal/backend"
	"casebook/internal/backend/backendtest"
	"casebook/internal/dto"
	"casebook/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCaseService(t *testing.T) (ICaseService, *backendtest.Fake, string) {
	t.Helper()
	fake := backendtest.NewFake()
	fake.AddUser("ana@example.com", "correct-horse")
	token := fake.IssueToken("ana@example.com")
	return NewCaseService(fake, nil, logger.NewNopLogger()), fake, token
}

func TestCreateThenListIncludesCase(t *testing.T) {
	ctx := context.Background()
	svc, _, token := newCaseService(t)

	created, err := svc.Create(ctx, token, &dto.CreateCaseRequest{
		Title:      "  Broken boiler ",
		ClientName: "Flat 4B",
		Attributes: map[string]interface{}{"floor": "2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Broken boiler", created.Title)
	assert.Equal(t, "open", created.Status)

	list, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.Id, list[0].Id)
}

func TestCreateWithoutTokenIsAuthError(t *testing.T) {
	svc, _, _ := newCaseService(t)
	_, err := svc.Create(context.Background(), "", &dto.CreateCaseRequest{Title: "x"})
	assert.True(t, backend.IsAuth(err))
}

func TestShowListedCases(t *testing.T) {
	ctx := context.Background()
	svc, fake, _ := newCaseService(t)
	fake.SeedCase(backend.Case{Id: 42, Title: "Broken boiler", Status: backend.CaseStatusOpen})
	fake.SeedCase(backend.Case{Id: 7, Title: "Fence", Status: backend.CaseStatusClosed})

	list, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(42), list[0].Id)

	for _, listed := range list {
		shown, err := svc.Show(ctx, "", listed.Id)
		require.NoError(t, err)
		assert.Equal(t, listed.Id, shown.Id)
		assert.NotNil(t, shown.Attributes)
	}

	_, err = svc.Show(ctx, "", 999)
	assert.True(t, backend.IsNotFound(err))
}

func TestListPropagatesFetchError(t *testing.T) {
	svc, fake, _ := newCaseService(t)
	fake.SelectErr = backend.FetchError("select cases", errors.New("down"))

	list, err := svc.List(context.Background(), "")
	assert.Nil(t, list)
	assert.Equal(t, backend.KindFetch, backend.KindOf(err))
}

func TestExportRendersPDF(t *testing.T) {
	svc, fake, _ := newCaseService(t)
	fake.SeedCase(backend.Case{Id: 42, Title: "Broken boiler"})

	name, content, err := svc.Export(context.Background(), "", 42)
	require.NoError(t, err)
	assert.Equal(t, "case-42.pdf", name)
	assert.True(t, bytes.HasPrefix(content, []byte("%PDF-")))

	_, _, err = svc.Export(context.Background(), "", 999)
	assert.True(t, backend.IsNotFound(err))
}
