// Package database implements backend.Provider on top of the service's own
// Postgres/sqlite store.
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"casebook/internal/backend"
	"casebook/internal/entity"
	"casebook/internal/repository/specification"
	"casebook/internal/repository/unitofwork"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Provider struct {
	uowFactory unitofwork.RepositoryFactory
	jwtSecret  []byte
	tokenTTL   time.Duration
	now        func() time.Time
}

func NewProvider(uowFactory unitofwork.RepositoryFactory, jwtSecret string, tokenTTL time.Duration) *Provider {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &Provider{
		uowFactory: uowFactory,
		jwtSecret:  []byte(jwtSecret),
		tokenTTL:   tokenTTL,
		now:        time.Now,
	}
}

var _ backend.Provider = (*Provider)(nil)

// CreateUser registers an account. Used by the seed command and tests; the web
// surface has no sign-up flow.
func (p *Provider) CreateUser(ctx context.Context, email, password, fullName string) (*backend.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(password) < 8 {
		return nil, errors.New("email is required and password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	// The lookup and the insert share a transaction so two registrations of
	// the same address cannot both pass the check.
	uow := p.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	existing, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: email})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.New("email already registered")
	}

	user := &entity.User{
		Id:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     fullName,
	}
	if err := uow.UserRepository().Create(ctx, user); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return toBackendUser(user), nil
}

func (p *Provider) SignInWithPassword(ctx context.Context, creds backend.Credentials) (*backend.AuthSession, error) {
	uow := p.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: creds.Email})
	if err != nil {
		return nil, backend.AuthError("sign in", err)
	}
	if user == nil {
		return nil, backend.AuthError("sign in", backend.ErrInvalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, backend.AuthError("sign in", backend.ErrInvalidCredentials)
	}

	expiresAt := p.now().Add(p.tokenTTL)
	claims := jwt.MapClaims{
		"user_id": user.Id.String(),
		"email":   user.Email,
		"iat":     p.now().Unix(),
		"exp":     expiresAt.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.jwtSecret)
	if err != nil {
		return nil, backend.AuthError("sign in", err)
	}

	return &backend.AuthSession{
		AccessToken: signed,
		ExpiresAt:   time.Unix(expiresAt.Unix(), 0),
		User:        *toBackendUser(user),
	}, nil
}

func (p *Provider) parseToken(accessToken string) (uuid.UUID, error) {
	if accessToken == "" {
		return uuid.Nil, backend.ErrUnauthorized
	}

	token, err := jwt.Parse(accessToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.jwtSecret, nil
	}, jwt.WithTimeFunc(p.now))
	if err != nil || !token.Valid {
		return uuid.Nil, fmt.Errorf("%w: %v", backend.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, backend.ErrUnauthorized
	}
	userIdStr, ok := claims["user_id"].(string)
	if !ok {
		return uuid.Nil, backend.ErrUnauthorized
	}
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		return uuid.Nil, backend.ErrUnauthorized
	}
	return userId, nil
}

func (p *Provider) GetUser(ctx context.Context, accessToken string) (*backend.User, error) {
	userId, err := p.parseToken(accessToken)
	if err != nil {
		return nil, backend.AuthError("get user", err)
	}

	uow := p.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, backend.FetchError("get user", err)
	}
	if user == nil {
		return nil, backend.AuthError("get user", backend.ErrUnauthorized)
	}
	return toBackendUser(user), nil
}

// EmailOf returns "" for unknown users.
func (p *Provider) EmailOf(ctx context.Context, userId string) (string, error) {
	id, err := uuid.Parse(userId)
	if err != nil {
		return "", nil
	}

	uow := p.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", nil
	}
	return user.Email, nil
}

// SignOut is stateless: access tokens stay valid until they expire, as with any
// bearer JWT. Callers drop the token from their own storage.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	return nil
}

func (p *Provider) InsertCase(ctx context.Context, accessToken string, nc backend.NewCase) (*backend.Case, error) {
	// Authorization lives here, not in the UI gate.
	user, err := p.GetUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	status := nc.Status
	if status == "" {
		status = backend.CaseStatusOpen
	}
	if strings.TrimSpace(nc.Title) == "" {
		return nil, backend.WriteError("insert case", errors.New("title is required"))
	}
	if !status.Valid() {
		return nil, backend.WriteError("insert case", fmt.Errorf("unknown status %q", status))
	}

	c := &entity.Case{
		Title:       strings.TrimSpace(nc.Title),
		ClientName:  nc.ClientName,
		Description: nc.Description,
		Status:      entity.CaseStatus(status),
		Attributes:  nc.Attributes,
		CreatedBy:   uuid.MustParse(user.Id),
	}

	uow := p.uowFactory.NewUnitOfWork(ctx)
	if err := uow.CaseRepository().Create(ctx, c); err != nil {
		return nil, backend.WriteError("insert case", err)
	}
	return toBackendCase(c), nil
}

func (p *Provider) SelectCases(ctx context.Context, accessToken string) ([]backend.Case, error) {
	uow := p.uowFactory.NewUnitOfWork(ctx)
	cases, err := uow.CaseRepository().FindAll(ctx, specification.NewestFirst())
	if err != nil {
		return nil, backend.FetchError("select cases", err)
	}

	out := make([]backend.Case, 0, len(cases))
	for _, c := range cases {
		out = append(out, *toBackendCase(c))
	}
	return out, nil
}

func (p *Provider) SelectCase(ctx context.Context, accessToken string, id int64) (*backend.Case, error) {
	uow := p.uowFactory.NewUnitOfWork(ctx)
	c, err := uow.CaseRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, backend.FetchError("select case", err)
	}
	if c == nil {
		return nil, backend.ErrNotFound
	}
	return toBackendCase(c), nil
}

func toBackendUser(u *entity.User) *backend.User {
	return &backend.User{
		Id:       u.Id.String(),
		Email:    u.Email,
		FullName: u.FullName,
	}
}

func toBackendCase(c *entity.Case) *backend.Case {
	return &backend.Case{
		Id:          c.Id,
		Title:       c.Title,
		ClientName:  c.ClientName,
		Description: c.Description,
		Status:      backend.CaseStatus(c.Status),
		Attributes:  c.Attributes,
		CreatedBy:   c.CreatedBy.String(),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}
