// Package api is the HTTP client for the portal's authentication endpoints.
package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/skillboard/portal/internal/client/cache"
	"github.com/skillboard/portal/internal/core/access"
	"github.com/skillboard/portal/internal/core/domain"
	"github.com/skillboard/portal/internal/core/ports"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
	mePath         = "/v1/me"
)

// Client talks to the portal server. Login and Refresh are sent once;
// idempotent calls are retried on transport failures.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *cache.Cache
	log        zerolog.Logger
	retries    uint64
	backoff    time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCache caches GET /v1/me responses.
func WithCache(rc *cache.Cache) Option {
	return func(c *Client) { c.cache = rc }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log.With().Str("component", "api_client").Logger() }
}

// WithRetries sets how many times an idempotent call is retried and the
// constant pause between attempts.
func WithRetries(n uint64, backoff time.Duration) Option {
	return func(c *Client) {
		c.retries = n
		c.backoff = backoff
	}
}

// New builds a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        zerolog.Nop(),
		retries:    2,
		backoff:    200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresAt    time.Time       `json:"expires_at"`
	Profile      *domain.Profile `json:"profile"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (r *tokenResponse) result() *ports.LoginResult {
	return &ports.LoginResult{
		Tokens: domain.TokenPair{
			AccessToken:     r.AccessToken,
			RefreshToken:    r.RefreshToken,
			AccessExpiresAt: r.ExpiresAt,
		},
		Profile: r.Profile,
	}
}

// Login exchanges credentials for a token pair and the user's profile.
func (c *Client) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	var out tokenResponse
	err := c.do(ctx, "login", http.MethodPost, "/auth/login", "", credentials{Email: email, Password: password}, &out)
	switch {
	case isStatus(err, http.StatusUnauthorized):
		return nil, domain.ErrInvalidCredentials
	case err != nil:
		return nil, err
	}
	if out.AccessToken == "" || out.Profile == nil {
		return nil, &domain.TransportError{Op: "login", StatusCode: http.StatusOK, Err: errors.New("incomplete token response")}
	}
	return out.result(), nil
}

// Refresh redeems refreshToken for a new pair. A rejected token yields
// domain.ErrTokenInvalid.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*ports.LoginResult, error) {
	var out tokenResponse
	err := c.do(ctx, "refresh", http.MethodPost, "/auth/refresh", "", refreshRequest{RefreshToken: refreshToken}, &out)
	switch {
	case isStatus(err, http.StatusUnauthorized):
		return nil, domain.ErrTokenInvalid
	case err != nil:
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, &domain.TransportError{Op: "refresh", StatusCode: http.StatusOK, Err: errors.New("incomplete token response")}
	}
	return out.result(), nil
}

// Logout revokes refreshToken server side.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	return c.withRetry(ctx, func(ctx context.Context) error {
		return c.do(ctx, "logout", http.MethodPost, "/auth/logout", "", refreshRequest{RefreshToken: refreshToken}, nil)
	})
}

// Me returns the profile behind accessToken, from the cache when fresh.
// Entries are keyed by token so one user's answer is never served to
// another.
func (c *Client) Me(ctx context.Context, accessToken string) (*domain.Profile, error) {
	key := cacheKey(mePath, accessToken)
	if c.cache != nil {
		if raw, ok := c.cache.Get(key); ok {
			var p domain.Profile
			if err := json.Unmarshal(raw, &p); err == nil {
				return &p, nil
			}
		}
	}

	var raw json.RawMessage
	err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.do(ctx, "me", http.MethodGet, mePath, accessToken, nil, &raw)
	})
	switch {
	case isStatus(err, http.StatusUnauthorized):
		return nil, domain.ErrTokenInvalid
	case err != nil:
		return nil, err
	}

	var p domain.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &domain.TransportError{Op: "me", StatusCode: http.StatusOK, Err: err}
	}
	if c.cache != nil {
		c.cache.Set(key, raw)
	}
	return &p, nil
}

// cacheKey scopes path to the credential that authorised it.
func cacheKey(path, accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return path + "|" + hex.EncodeToString(sum[:])
}

// Navigate asks the server's route policy about path. accessToken may be
// empty for an anonymous viewer.
func (c *Client) Navigate(ctx context.Context, accessToken, path string) (access.Decision, error) {
	var d access.Decision
	endpoint := "/v1/navigation?" + url.Values{"path": {path}}.Encode()
	err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.do(ctx, "navigate", http.MethodGet, endpoint, accessToken, nil, &d)
	})
	switch {
	case isStatus(err, http.StatusNotFound):
		return access.Decision{}, fmt.Errorf("%w: %s", domain.ErrUnknownRoute, path)
	case isStatus(err, http.StatusUnauthorized):
		return access.Decision{}, domain.ErrTokenInvalid
	case err != nil:
		return access.Decision{}, err
	}
	return d, nil
}

func (c *Client) withRetry(ctx context.Context, fn func(context.Context) error) error {
	b := retry.WithMaxRetries(c.retries, retry.NewConstant(c.backoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, domain.ErrTransport) {
			c.log.Debug().Err(err).Msg("retrying request")
			return retry.RetryableError(err)
		}
		return err
	})
}

// statusError is an unexpected 4xx answer; callers map the statuses they
// understand to domain errors.
type statusError struct {
	op      string
	status  int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.op, e.status, e.message)
}

func isStatus(err error, status int) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == status
}

func (c *Client) do(ctx context.Context, op, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &domain.RateLimitError{RetryAfter: retryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= 500:
		return &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(errorMessage(raw))}
	case resp.StatusCode >= 400:
		return &statusError{op: op, status: resp.StatusCode, message: errorMessage(raw)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func errorMessage(raw []byte) string {
	var e errorResponse
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(raw))
}

func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
