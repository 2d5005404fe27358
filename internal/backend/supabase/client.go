// Package supabase implements backend.Provider against a hosted Supabase project:
// GoTrue for auth (/auth/v1) and PostgREST for the cases table (/rest/v1).
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"casebook/internal/backend"
)

const casesTable = "cases"

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

var _ backend.Provider = (*Client)(nil)

type gotrueUser struct {
	Id           string                 `json:"id"`
	Email        string                 `json:"email"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
}

func (u gotrueUser) toUser() *backend.User {
	name, _ := u.UserMetadata["full_name"].(string)
	return &backend.User{Id: u.Id, Email: u.Email, FullName: name}
}

type tokenResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresIn   int64      `json:"expires_in"`
	ExpiresAt   int64      `json:"expires_at"`
	User        gotrueUser `json:"user"`
}

type caseRow struct {
	Id          int64                  `json:"id,omitempty"`
	Title       string                 `json:"title"`
	ClientName  string                 `json:"client_name"`
	Description string                 `json:"description"`
	Status      string                 `json:"status,omitempty"`
	Attributes  map[string]interface{} `json:"attributes"`
	CreatedBy   string                 `json:"created_by,omitempty"`
	CreatedAt   *time.Time             `json:"created_at,omitempty"`
	UpdatedAt   *time.Time             `json:"updated_at,omitempty"`
}

func (r caseRow) toCase() backend.Case {
	c := backend.Case{
		Id:          r.Id,
		Title:       r.Title,
		ClientName:  r.ClientName,
		Description: r.Description,
		Status:      backend.CaseStatus(r.Status),
		Attributes:  r.Attributes,
		CreatedBy:   r.CreatedBy,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.CreatedAt != nil {
		c.CreatedAt = *r.CreatedAt
	}
	if c.Attributes == nil {
		c.Attributes = map[string]interface{}{}
	}
	return c
}

// apiError is the union of GoTrue and PostgREST error bodies.
type apiError struct {
	Status           int    `json:"-"`
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Code             string `json:"code"`
}

func (e *apiError) text() string {
	for _, s := range []string{e.Message, e.Msg, e.ErrorDescription, e.Error} {
		if s != "" {
			return s
		}
	}
	return http.StatusText(e.Status)
}

type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("supabase api error (status %d): %s", e.status, e.msg)
}

func (c *Client) do(ctx context.Context, method, path, accessToken string, body interface{}, headers map[string]string, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	bearer := accessToken
	if bearer == "" {
		bearer = c.apiKey
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 300 {
		apiErr := apiError{Status: resp.StatusCode}
		_ = json.Unmarshal(bodyBytes, &apiErr)
		return &statusError{status: resp.StatusCode, msg: apiErr.text()}
	}

	if out == nil || len(bodyBytes) == 0 {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func statusOf(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.status
	}
	return 0
}

func isAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

func (c *Client) SignInWithPassword(ctx context.Context, creds backend.Credentials) (*backend.AuthSession, error) {
	var res tokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "",
		map[string]string{"email": creds.Email, "password": creds.Password}, nil, &res)
	if err != nil {
		// GoTrue answers 400 invalid_grant for bad credentials.
		if status := statusOf(err); status == http.StatusBadRequest || isAuthStatus(status) {
			return nil, backend.AuthError("sign in", fmt.Errorf("%w: %v", backend.ErrInvalidCredentials, err))
		}
		return nil, backend.AuthError("sign in", err)
	}

	expiresAt := time.Unix(res.ExpiresAt, 0)
	if res.ExpiresAt == 0 && res.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(res.ExpiresIn) * time.Second)
	}

	return &backend.AuthSession{
		AccessToken: res.AccessToken,
		ExpiresAt:   expiresAt,
		User:        *res.User.toUser(),
	}, nil
}

func (c *Client) GetUser(ctx context.Context, accessToken string) (*backend.User, error) {
	if accessToken == "" {
		return nil, backend.AuthError("get user", backend.ErrUnauthorized)
	}

	var u gotrueUser
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, nil, &u); err != nil {
		if isAuthStatus(statusOf(err)) {
			return nil, backend.AuthError("get user", fmt.Errorf("%w: %v", backend.ErrUnauthorized, err))
		}
		// An outage says nothing about the token.
		return nil, backend.FetchError("get user", err)
	}
	return u.toUser(), nil
}

func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	err := c.do(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil, nil)
	// An already-invalid token means the session is gone, which is what we wanted.
	if err != nil && !isAuthStatus(statusOf(err)) {
		return backend.AuthError("sign out", err)
	}
	return nil
}

func (c *Client) InsertCase(ctx context.Context, accessToken string, nc backend.NewCase) (*backend.Case, error) {
	if accessToken == "" {
		return nil, backend.AuthError("insert case", backend.ErrUnauthorized)
	}

	row := caseRow{
		Title:       nc.Title,
		ClientName:  nc.ClientName,
		Description: nc.Description,
		Status:      string(nc.Status),
		Attributes:  nc.Attributes,
	}
	if row.Attributes == nil {
		row.Attributes = map[string]interface{}{}
	}

	var rows []caseRow
	err := c.do(ctx, http.MethodPost, "/rest/v1/"+casesTable, accessToken, row,
		map[string]string{"Prefer": "return=representation"}, &rows)
	if err != nil {
		if isAuthStatus(statusOf(err)) {
			return nil, backend.AuthError("insert case", fmt.Errorf("%w: %v", backend.ErrUnauthorized, err))
		}
		return nil, backend.WriteError("insert case", err)
	}
	if len(rows) == 0 {
		return nil, backend.WriteError("insert case", errors.New("insert returned no representation"))
	}

	created := rows[0].toCase()
	return &created, nil
}

func (c *Client) SelectCases(ctx context.Context, accessToken string) ([]backend.Case, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "id.desc")

	var rows []caseRow
	if err := c.do(ctx, http.MethodGet, "/rest/v1/"+casesTable+"?"+q.Encode(), accessToken, nil, nil, &rows); err != nil {
		return nil, backend.FetchError("select cases", err)
	}

	out := make([]backend.Case, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCase())
	}
	return out, nil
}

func (c *Client) SelectCase(ctx context.Context, accessToken string, id int64) (*backend.Case, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("id", "eq."+strconv.FormatInt(id, 10))
	q.Set("limit", "1")

	var rows []caseRow
	if err := c.do(ctx, http.MethodGet, "/rest/v1/"+casesTable+"?"+q.Encode(), accessToken, nil, nil, &rows); err != nil {
		return nil, backend.FetchError("select case", err)
	}
	if len(rows) == 0 {
		return nil, backend.ErrNotFound
	}

	found := rows[0].toCase()
	return &found, nil
}
