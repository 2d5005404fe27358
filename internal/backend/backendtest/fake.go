// Package backendtest provides an in-memory backend.Provider for tests.
package backendtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"casebook/internal/backend"

	"github.com/google/uuid"
)

type account struct {
	user     backend.User
	password string
}

// Fake keeps users, tokens and cases in maps. Errors can be injected per operation.
type Fake struct {
	mu       sync.Mutex
	accounts map[string]account      // email -> account
	tokens   map[string]backend.User // access token -> user
	cases    map[int64]backend.Case
	nextId   int64

	TokenTTL time.Duration

	SignInErr  error
	GetUserErr error
	InsertErr  error
	SelectErr  error

	// GetUserHook runs before GetUser returns; tests use it to stall the startup query.
	GetUserHook func(ctx context.Context)

	Calls map[string]int
}

func NewFake() *Fake {
	return &Fake{
		accounts: make(map[string]account),
		tokens:   make(map[string]backend.User),
		cases:    make(map[int64]backend.Case),
		nextId:   1,
		TokenTTL: time.Hour,
		Calls:    make(map[string]int),
	}
}

func (f *Fake) AddUser(email, password string) backend.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := backend.User{Id: uuid.NewString(), Email: email}
	f.accounts[email] = account{user: u, password: password}
	return u
}

// IssueToken mints a valid token for an existing account without a sign-in call.
func (f *Fake) IssueToken(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := uuid.NewString()
	f.tokens[token] = f.accounts[email].user
	return token
}

// SeedCase stores a case with a fixed id.
func (f *Fake) SeedCase(c backend.Case) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	f.cases[c.Id] = c
	if c.Id >= f.nextId {
		f.nextId = c.Id + 1
	}
}

func (f *Fake) count(op string) {
	f.Calls[op]++
}

func (f *Fake) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[op]
}

func (f *Fake) SignInWithPassword(ctx context.Context, creds backend.Credentials) (*backend.AuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("SignInWithPassword")

	if f.SignInErr != nil {
		return nil, f.SignInErr
	}
	acc, ok := f.accounts[creds.Email]
	if !ok || acc.password != creds.Password {
		return nil, backend.AuthError("sign in", backend.ErrInvalidCredentials)
	}

	token := uuid.NewString()
	f.tokens[token] = acc.user
	return &backend.AuthSession{
		AccessToken: token,
		ExpiresAt:   time.Now().Add(f.TokenTTL),
		User:        acc.user,
	}, nil
}

func (f *Fake) GetUser(ctx context.Context, accessToken string) (*backend.User, error) {
	if f.GetUserHook != nil {
		f.GetUserHook(ctx)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("GetUser")

	if f.GetUserErr != nil {
		return nil, f.GetUserErr
	}
	u, ok := f.tokens[accessToken]
	if !ok {
		return nil, backend.AuthError("get user", backend.ErrUnauthorized)
	}
	return &u, nil
}

func (f *Fake) SignOut(ctx context.Context, accessToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("SignOut")
	delete(f.tokens, accessToken)
	return nil
}

func (f *Fake) InsertCase(ctx context.Context, accessToken string, nc backend.NewCase) (*backend.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("InsertCase")

	if f.InsertErr != nil {
		return nil, f.InsertErr
	}
	u, ok := f.tokens[accessToken]
	if !ok {
		return nil, backend.AuthError("insert case", backend.ErrUnauthorized)
	}

	status := nc.Status
	if status == "" {
		status = backend.CaseStatusOpen
	}
	c := backend.Case{
		Id:          f.nextId,
		Title:       nc.Title,
		ClientName:  nc.ClientName,
		Description: nc.Description,
		Status:      status,
		Attributes:  nc.Attributes,
		CreatedBy:   u.Id,
		CreatedAt:   time.Now(),
	}
	f.cases[c.Id] = c
	f.nextId++
	return &c, nil
}

func (f *Fake) SelectCases(ctx context.Context, accessToken string) ([]backend.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("SelectCases")

	if f.SelectErr != nil {
		return nil, f.SelectErr
	}
	out := make([]backend.Case, 0, len(f.cases))
	for _, c := range f.cases {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id > out[j].Id })
	return out, nil
}

func (f *Fake) SelectCase(ctx context.Context, accessToken string, id int64) (*backend.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("SelectCase")

	if f.SelectErr != nil {
		return nil, f.SelectErr
	}
	c, ok := f.cases[id]
	if !ok {
		return nil, backend.ErrNotFound
	}
	return &c, nil
}
