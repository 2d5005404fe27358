package unitofwork

import (
	"context"

	"casebook/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() contract.UserRepository
	CaseRepository() contract.CaseRepository
}
