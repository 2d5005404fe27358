// Package backend is the boundary to the hosted data/auth service. Everything the
// web layer knows about users and cases arrives through a Provider.
package backend

import (
	"context"
	"time"
)

type CaseStatus string

const (
	CaseStatusOpen       CaseStatus = "open"
	CaseStatusInProgress CaseStatus = "in_progress"
	CaseStatusClosed     CaseStatus = "closed"
)

func (s CaseStatus) Valid() bool {
	switch s {
	case CaseStatusOpen, CaseStatusInProgress, CaseStatusClosed:
		return true
	}
	return false
}

type User struct {
	Id       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

// AuthSession is what a successful sign-in returns.
type AuthSession struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

func (s *AuthSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type Case struct {
	Id          int64                  `json:"id"`
	Title       string                 `json:"title"`
	ClientName  string                 `json:"client_name"`
	Description string                 `json:"description"`
	Status      CaseStatus             `json:"status"`
	Attributes  map[string]interface{} `json:"attributes"`
	CreatedBy   string                 `json:"created_by"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   *time.Time             `json:"updated_at,omitempty"`
}

type NewCase struct {
	Title       string
	ClientName  string
	Description string
	Status      CaseStatus
	Attributes  map[string]interface{}
}

type Credentials struct {
	Email    string
	Password string
}

// Provider is the wire-level contract of the hosted backend. Operations taking an
// accessToken accept "" for anonymous access; the provider decides what that allows.
type Provider interface {
	SignInWithPassword(ctx context.Context, creds Credentials) (*AuthSession, error)
	GetUser(ctx context.Context, accessToken string) (*User, error)
	SignOut(ctx context.Context, accessToken string) error

	InsertCase(ctx context.Context, accessToken string, c NewCase) (*Case, error)
	SelectCases(ctx context.Context, accessToken string) ([]Case, error)
	SelectCase(ctx context.Context, accessToken string, id int64) (*Case, error)
}
