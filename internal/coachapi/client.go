// Package coachapi talks to the coach backend: authentication, the aggregated user state and profile submission.
package coachapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/myrjola/runcoach/internal/coach"
	"github.com/myrjola/runcoach/internal/errors"
)

var (
	// ErrUnauthorized means the bearer token is missing, expired or rejected, or the credentials were wrong.
	ErrUnauthorized = errors.NewSentinel("unauthorized")
	ErrNotFound     = errors.NewSentinel("not found")
	ErrBackend      = errors.NewSentinel("backend error")
)

// Error is a non-2xx response. It matches [ErrUnauthorized] for 401, [ErrNotFound] for 404 and [ErrBackend]
// otherwise.
type Error struct {
	StatusCode int
	// Detail is the backend's explanation, suitable for showing to the user.
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend responded %d: %s", e.StatusCode, e.Detail)
}

func (e *Error) Is(target error) bool {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return target == ErrUnauthorized
	case http.StatusNotFound:
		return target == ErrNotFound
	default:
		return target == ErrBackend
	}
}

// Detail returns the user facing message of err when it came from the backend.
func Detail(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}

// Token is the bearer token issued on login.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// User is the authenticated account.
type User struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
}

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

const requestTimeout = 30 * time.Second

// New returns a client for the backend at baseURL.
func New(baseURL string, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q must be http or https", baseURL)
	}
	return &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Login exchanges credentials for a bearer token. The backend expects an OAuth2 password form.
func (c *Client) Login(ctx context.Context, email, password string) (Token, error) {
	form := url.Values{"username": {email}, "password": {password}}
	req, err := c.newRequest(ctx, http.MethodPost, "/login", strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var token Token
	if err = c.do(req, &token); err != nil {
		return Token{}, fmt.Errorf("login: %w", err)
	}
	return token, nil
}

// Register creates an account and logs it in.
func (c *Client) Register(ctx context.Context, email, password string) (Token, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return Token{}, fmt.Errorf("marshal registration: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/register", bytes.NewReader(body))
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var user User
	if err = c.do(req, &user); err != nil {
		return Token{}, fmt.Errorf("register: %w", err)
	}
	c.logger.LogAttrs(ctx, slog.LevelInfo, "registered user", slog.Int("user_id", user.ID))
	return c.Login(ctx, email, password)
}

func (c *Client) Me(ctx context.Context, token string) (User, error) {
	var user User
	if err := c.authed(ctx, token, http.MethodGet, "/me", nil, &user); err != nil {
		return User{}, fmt.Errorf("get me: %w", err)
	}
	return user, nil
}

// UserState fetches the aggregated onboarding and plan state.
func (c *Client) UserState(ctx context.Context, token string) (coach.UserState, error) {
	var state coach.UserState
	if err := c.authed(ctx, token, http.MethodGet, "/user/state", nil, &state); err != nil {
		return coach.UserState{}, fmt.Errorf("get user state: %w", err)
	}
	return state, nil
}

// CreateProfile submits the profile, which starts its verification.
func (c *Client) CreateProfile(ctx context.Context, token string, in coach.UserProfileInput) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	if err = c.authed(ctx, token, http.MethodPost, "/profiles", body, nil); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// Proceed starts plan generation even though the verification raised concerns.
func (c *Client) Proceed(ctx context.Context, token string) error {
	if err := c.authed(ctx, token, http.MethodPost, "/profiles/proceed", nil, nil); err != nil {
		return fmt.Errorf("proceed: %w", err)
	}
	return nil
}

// Verification polls the verification job of the latest profile.
func (c *Client) Verification(ctx context.Context, token string) (coach.VerificationStatus, error) {
	var status coach.VerificationStatus
	if err := c.authed(ctx, token, http.MethodGet, "/profiles/verification", nil, &status); err != nil {
		return coach.VerificationStatus{}, fmt.Errorf("get verification: %w", err)
	}
	return status, nil
}

// TokenExpired reports whether the exp claim of the JWT token lies at or before now. The signature is not verified;
// the backend does that. Tokens that cannot be parsed or lack exp are left for the backend to judge.
func TokenExpired(token string, now time.Time) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}

func (c *Client) authed(ctx context.Context, token, method, path string, body []byte, dst any) error {
	if token == "" || TokenExpired(token, c.now()) {
		return &Error{StatusCode: http.StatusUnauthorized, Detail: "Session expired, please log in again"}
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, dst)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), body)
	if err != nil {
		return nil, fmt.Errorf("new request %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and decodes a 2xx body into dst when dst is not nil.
func (c *Client) do(req *http.Request, dst any) (err error) {
	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close body: %w", closeErr))
		}
	}()
	c.logger.LogAttrs(req.Context(), slog.LevelDebug, "backend request",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", c.now().Sub(start)))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{StatusCode: resp.StatusCode, Detail: detail(resp.StatusCode, body)}
	}
	if dst == nil {
		return nil
	}
	if err = json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

// detail extracts the message of an error body. The backend sends {"detail": "..."} or, for request validation
// failures, {"detail": [{"msg": "..."}]}.
func detail(status int, body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Detail) > 0 {
		var msg string
		if err = json.Unmarshal(envelope.Detail, &msg); err == nil && msg != "" {
			return msg
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err = json.Unmarshal(envelope.Detail, &items); err == nil && len(items) > 0 {
			msgs := make([]string, 0, len(items))
			for _, item := range items {
				msgs = append(msgs, item.Msg)
			}
			return strings.Join(msgs, "; ")
		}
	}
	return http.StatusText(status)
}
