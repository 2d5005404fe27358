package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"casebook/internal/backend"
	"casebook/internal/pkg/logger"
	"casebook/internal/pkg/mailer"
	"casebook/pkg/events"
	pktNats "casebook/pkg/nats"
	"casebook/pkg/pdf"
)

// UserDirectory finds the mail address of a case creator.
type UserDirectory interface {
	EmailOf(ctx context.Context, userId string) (string, error)
}

// IReceiptService mails the case document to its creator after CASE_CREATED.
type IReceiptService interface {
	Start(ctx context.Context, subscriber *pktNats.Subscriber) error
	HandleCaseCreated(ctx context.Context, event events.Event) error
}

type receiptService struct {
	provider  backend.Provider
	directory UserDirectory
	mailer    mailer.IEmailService
	baseURL   string
	logger    logger.ILogger
}

func NewReceiptService(
	provider backend.Provider,
	directory UserDirectory,
	emailService mailer.IEmailService,
	baseURL string,
	log logger.ILogger,
) IReceiptService {
	return &receiptService{
		provider:  provider,
		directory: directory,
		mailer:    emailService,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    log,
	}
}

func (s *receiptService) Start(ctx context.Context, subscriber *pktNats.Subscriber) error {
	return subscriber.Subscribe(ctx, events.CaseCreated, "case-receipts", s.HandleCaseCreated)
}

func (s *receiptService) HandleCaseCreated(ctx context.Context, event events.Event) error {
	payload := event.Payload()
	id, err := caseIdOf(payload["case_id"])
	if err != nil {
		// Redelivery cannot fix a bad payload.
		s.logger.Error("RECEIPT", "Malformed CASE_CREATED payload", map[string]interface{}{"error": err})
		return nil
	}

	c, err := s.provider.SelectCase(ctx, "", id)
	if err != nil {
		if backend.IsNotFound(err) {
			s.logger.Warn("RECEIPT", "Case vanished before receipt", map[string]interface{}{"case_id": id})
			return nil
		}
		return err
	}

	email, err := s.directory.EmailOf(ctx, c.CreatedBy)
	if err != nil {
		return fmt.Errorf("look up creator of case %d: %w", id, err)
	}
	if email == "" {
		return nil
	}

	content, err := pdf.RenderCase(caseDocument(c))
	if err != nil {
		return err
	}

	receipt := mailer.CaseReceipt{
		CaseId:     c.Id,
		Title:      c.Title,
		ClientName: c.ClientName,
		CaseURL:    fmt.Sprintf("%s/case/%d", s.baseURL, c.Id),
		FileName:   pdf.FileName(c.Id),
		PDF:        content,
	}
	if err := s.mailer.SendCaseReceipt(email, receipt); err != nil {
		return err
	}

	s.logger.Info("RECEIPT", "Case receipt sent", map[string]interface{}{"case_id": id})
	return nil
}

// caseIdOf accepts the JSON number a NATS payload decodes into, or a string.
func caseIdOf(v interface{}) (int64, error) {
	switch id := v.(type) {
	case float64:
		return int64(id), nil
	case int64:
		return id, nil
	case int:
		return int64(id), nil
	case string:
		return strconv.ParseInt(id, 10, 64)
	}
	return 0, errors.New("case_id missing")
}
