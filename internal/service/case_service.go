package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"casebook/internal/backend"
	"casebook/internal/dto"
	"casebook/internal/pkg/logger"
	"casebook/pkg/events"
	pktNats "casebook/pkg/nats"
	"casebook/pkg/pdf"
)

type ICaseService interface {
	List(ctx context.Context, accessToken string) ([]*dto.CaseResponse, error)
	Show(ctx context.Context, accessToken string, id int64) (*dto.CaseResponse, error)
	Create(ctx context.Context, accessToken string, req *dto.CreateCaseRequest) (*dto.CaseResponse, error)
	Export(ctx context.Context, accessToken string, id int64) (fileName string, content []byte, err error)
}

type caseService struct {
	provider       backend.Provider
	eventPublisher *pktNats.Publisher
	logger         logger.ILogger
}

func NewCaseService(provider backend.Provider, eventPublisher *pktNats.Publisher, log logger.ILogger) ICaseService {
	return &caseService{
		provider:       provider,
		eventPublisher: eventPublisher,
		logger:         log,
	}
}

func (s *caseService) List(ctx context.Context, accessToken string) ([]*dto.CaseResponse, error) {
	cases, err := s.provider.SelectCases(ctx, accessToken)
	if err != nil {
		s.logger.Error("CASE", "Failed to list cases", map[string]interface{}{"error": err})
		return nil, err
	}

	res := make([]*dto.CaseResponse, 0, len(cases))
	for i := range cases {
		res = append(res, toCaseResponse(&cases[i]))
	}
	return res, nil
}

func (s *caseService) Show(ctx context.Context, accessToken string, id int64) (*dto.CaseResponse, error) {
	c, err := s.provider.SelectCase(ctx, accessToken, id)
	if err != nil {
		if !backend.IsNotFound(err) {
			s.logger.Error("CASE", "Failed to load case", map[string]interface{}{"case_id": id, "error": err})
		}
		return nil, err
	}
	return toCaseResponse(c), nil
}

func (s *caseService) Create(ctx context.Context, accessToken string, req *dto.CreateCaseRequest) (*dto.CaseResponse, error) {
	created, err := s.provider.InsertCase(ctx, accessToken, backend.NewCase{
		Title:       strings.TrimSpace(req.Title),
		ClientName:  strings.TrimSpace(req.ClientName),
		Description: req.Description,
		Status:      backend.CaseStatus(req.Status),
		Attributes:  req.Attributes,
	})
	if err != nil {
		s.logger.Error("CASE", "Failed to create case", map[string]interface{}{"error": err})
		return nil, err
	}

	s.logger.Info("CASE", "Case created", map[string]interface{}{
		"case_id":    created.Id,
		"created_by": created.CreatedBy,
	})

	if s.eventPublisher != nil {
		evt := events.BaseEvent{
			Type: events.CaseCreated,
			Data: map[string]interface{}{
				"case_id":    created.Id,
				"created_by": created.CreatedBy,
			},
			OccurredAt: time.Now(),
		}
		if err := s.eventPublisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("CASE", "Failed to publish CASE_CREATED event", map[string]interface{}{"error": err.Error()})
		}
	}

	return toCaseResponse(created), nil
}

func (s *caseService) Export(ctx context.Context, accessToken string, id int64) (string, []byte, error) {
	c, err := s.provider.SelectCase(ctx, accessToken, id)
	if err != nil {
		return "", nil, err
	}

	content, err := pdf.RenderCase(caseDocument(c))
	if err != nil {
		return "", nil, fmt.Errorf("export case %d: %w", id, err)
	}
	return pdf.FileName(id), content, nil
}

func caseDocument(c *backend.Case) pdf.CaseDocument {
	return pdf.CaseDocument{
		Id:          c.Id,
		Title:       c.Title,
		ClientName:  c.ClientName,
		Description: c.Description,
		Status:      string(c.Status),
		Attributes:  c.Attributes,
		CreatedBy:   c.CreatedBy,
		CreatedAt:   c.CreatedAt,
		GeneratedAt: time.Now(),
	}
}

func toCaseResponse(c *backend.Case) *dto.CaseResponse {
	attributes := c.Attributes
	if attributes == nil {
		attributes = map[string]interface{}{}
	}
	return &dto.CaseResponse{
		Id:          c.Id,
		Title:       c.Title,
		ClientName:  c.ClientName,
		Description: c.Description,
		Status:      string(c.Status),
		Attributes:  attributes,
		CreatedBy:   c.CreatedBy,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}
