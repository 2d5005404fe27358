package contract

import (
	"context"

	"casebook/internal/entity"
	"casebook/internal/repository/specification"
)

type CaseRepository interface {
	Create(ctx context.Context, c *entity.Case) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Case, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Case, error)
}
