package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"casebook/internal/backend"
	"casebook/internal/backend/backendtest"
	"casebook/internal/pkg/logger"
	"casebook/internal/pkg/mailer"
	"casebook/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapDirectory map[string]string

func (d mapDirectory) EmailOf(ctx context.Context, userId string) (string, error) {
	return d[userId], nil
}

type outbox struct {
	to       []string
	receipts []mailer.CaseReceipt
	err      error
}

func (o *outbox) SendCaseReceipt(toEmail string, receipt mailer.CaseReceipt) error {
	if o.err != nil {
		return o.err
	}
	o.to = append(o.to, toEmail)
	o.receipts = append(o.receipts, receipt)
	return nil
}

func caseCreated(id interface{}) events.Event {
	return events.BaseEvent{
		Type:       events.CaseCreated,
		Data:       map[string]interface{}{"case_id": id},
		OccurredAt: time.Now(),
	}
}

func TestReceiptIsMailedToCreator(t *testing.T) {
	fake := backendtest.NewFake()
	fake.SeedCase(backend.Case{Id: 42, Title: "Broken boiler", CreatedBy: "u-1"})
	box := &outbox{}
	svc := NewReceiptService(fake, mapDirectory{"u-1": "ana@example.com"}, box, "http://localhost:3000/", logger.NewNopLogger())

	// JSON numbers arrive as float64.
	require.NoError(t, svc.HandleCaseCreated(context.Background(), caseCreated(float64(42))))

	require.Equal(t, []string{"ana@example.com"}, box.to)
	r := box.receipts[0]
	assert.Equal(t, "http://localhost:3000/case/42", r.CaseURL)
	assert.Equal(t, "case-42.pdf", r.FileName)
	assert.True(t, bytes.HasPrefix(r.PDF, []byte("%PDF-")))
}

func TestReceiptSkipsWhatCannotSucceed(t *testing.T) {
	fake := backendtest.NewFake()
	fake.SeedCase(backend.Case{Id: 7, Title: "Fence", CreatedBy: "ghost"})
	box := &outbox{}
	svc := NewReceiptService(fake, mapDirectory{}, box, "", logger.NewNopLogger())

	assert.NoError(t, svc.HandleCaseCreated(context.Background(), caseCreated(nil)))
	assert.NoError(t, svc.HandleCaseCreated(context.Background(), caseCreated("999")))
	assert.NoError(t, svc.HandleCaseCreated(context.Background(), caseCreated(int64(7))))
	assert.Empty(t, box.to)
}

func TestReceiptFailuresAreRetried(t *testing.T) {
	fake := backendtest.NewFake()
	fake.SeedCase(backend.Case{Id: 42, Title: "Broken boiler", CreatedBy: "u-1"})
	box := &outbox{err: errors.New("smtp down")}
	svc := NewReceiptService(fake, mapDirectory{"u-1": "ana@example.com"}, box, "", logger.NewNopLogger())

	assert.EqualError(t, svc.HandleCaseCreated(context.Background(), caseCreated(42)), "smtp down")

	fake.SelectErr = backend.FetchError("select case", errors.New("down"))
	assert.Error(t, svc.HandleCaseCreated(context.Background(), caseCreated(42)))
}
