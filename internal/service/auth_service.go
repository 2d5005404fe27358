package service

import (
	"context"

	"casebook/internal/auth"
	"casebook/internal/backend"
	"casebook/internal/dto"
	"casebook/internal/pkg/logger"
)

// IAuthService serves two audiences: browser clients, whose session lives in the
// auth client, and API callers, who hold their own bearer token.
type IAuthService interface {
	// Browser sessions
	SignIn(ctx context.Context, clientID string, req *dto.LoginRequest) (*dto.UserResponse, error)
	SignOut(ctx context.Context, clientID string) error

	// Bearer tokens
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error)
	Logout(ctx context.Context, accessToken string) error
	Me(ctx context.Context, accessToken string) (*dto.UserResponse, error)
}

type authService struct {
	client   *auth.Client
	provider backend.Provider
	logger   logger.ILogger
}

func NewAuthService(client *auth.Client, provider backend.Provider, log logger.ILogger) IAuthService {
	return &authService{
		client:   client,
		provider: provider,
		logger:   log,
	}
}

func (s *authService) SignIn(ctx context.Context, clientID string, req *dto.LoginRequest) (*dto.UserResponse, error) {
	session, err := s.client.SignIn(ctx, clientID, backend.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		s.logger.Warn("AUTH", "Sign in failed", map[string]interface{}{
			"email": req.Email,
			"error": err.Error(),
		})
		return nil, err
	}
	return toUserResponse(&session.User), nil
}

func (s *authService) SignOut(ctx context.Context, clientID string) error {
	return s.client.SignOut(ctx, clientID)
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	session, err := s.provider.SignInWithPassword(ctx, backend.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		s.logger.Warn("AUTH", "API login failed", map[string]interface{}{
			"email": req.Email,
			"error": err.Error(),
		})
		return nil, err
	}
	return &dto.LoginResponse{
		AccessToken: session.AccessToken,
		ExpiresAt:   session.ExpiresAt,
		User:        *toUserResponse(&session.User),
	}, nil
}

func (s *authService) Logout(ctx context.Context, accessToken string) error {
	return s.provider.SignOut(ctx, accessToken)
}

func (s *authService) Me(ctx context.Context, accessToken string) (*dto.UserResponse, error) {
	user, err := s.provider.GetUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return toUserResponse(user), nil
}

func toUserResponse(u *backend.User) *dto.UserResponse {
	return &dto.UserResponse{
		Id:       u.Id,
		Email:    u.Email,
		FullName: u.FullName,
	}
}
