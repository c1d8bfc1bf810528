// Package client talks to the campusgate HTTP API and owns the local SQLite
// database where the CLI keeps its session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/campusgate/internal/common"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// Client is the API surface used by the CLI services.
type Client interface {
	Login(ctx context.Context, username string, password []byte) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Revoke(ctx context.Context, accessToken string) error
	Logout(ctx context.Context, accessToken string) error
	Info(ctx context.Context, accessToken string) (*TokenInfo, error)
	Validate(ctx context.Context, accessToken string) (*Validation, error)
	Ping(ctx context.Context) error
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Message      string `json:"message"`
}

type TokenInfo struct {
	ExpiryDate       time.Time `json:"expiryDate"`
	SecondsRemaining int64     `json:"secondsRemaining"`
	IssuedAt         time.Time `json:"issuedAt"`
	TokenID          string    `json:"tokenId"`
}

type Validation struct {
	Valid            bool       `json:"valid"`
	ExpiryDate       *time.Time `json:"expiryDate,omitempty"`
	SecondsRemaining *int64     `json:"secondsRemaining,omitempty"`
	Message          string     `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type noRetryKey struct{}

// withoutRetry marks a request as unsafe to repeat. A refresh token is
// single-use, so resending one after a lost response would look like replay.
func withoutRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRetryKey{}, true)
}

// RetryPolicy retries transport failures and gateway errors. Rate limiting
// and auth failures are final, and requests marked withoutRetry never repeat.
func RetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if v, _ := ctx.Value(noRetryKey{}).(bool); v {
		return false, nil
	}
	if err != nil {
		return true, nil
	}
	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}

// HTTPClient implements Client over the JSON HTTP API.
type HTTPClient struct {
	baseURL string
	http    *retryablehttp.Client
}

// Option customizes an HTTPClient.
type Option func(*HTTPClient)

// WithRetry sets the retry budget and the wait bounds between attempts.
func WithRetry(max int, waitMin, waitMax time.Duration) Option {
	return func(c *HTTPClient) {
		c.http.RetryMax = max
		c.http.RetryWaitMin = waitMin
		c.http.RetryWaitMax = waitMax
	}
}

// WithTimeout bounds every single attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		c.http.HTTPClient.Timeout = d
	}
}

func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	rc := &retryablehttp.Client{
		HTTPClient:   cleanhttp.DefaultPooledClient(),
		RetryWaitMin: 200 * time.Millisecond,
		RetryWaitMax: 2 * time.Second,
		RetryMax:     2,
		Backoff:      retryablehttp.LinearJitterBackoff,
		CheckRetry:   RetryPolicy,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}
	c := &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), http: rc}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *HTTPClient) Login(ctx context.Context, username string, password []byte) (*TokenPair, error) {
	body := map[string]string{"username": username, "password": string(password)}
	var pair TokenPair
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, body, &pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

// Refresh rotates the pair. It is sent exactly once.
func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	h := http.Header{}
	h.Set(common.RefreshTokenHeaderName, common.BearerPrefix+refreshToken)
	var pair TokenPair
	if err := c.do(withoutRetry(ctx), http.MethodPost, "/token/refresh", h, nil, &pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

func (c *HTTPClient) Revoke(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/token/revoke", bearer(accessToken), nil, nil)
}

func (c *HTTPClient) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", bearer(accessToken), nil, nil)
}

func (c *HTTPClient) Info(ctx context.Context, accessToken string) (*TokenInfo, error) {
	var info TokenInfo
	if err := c.do(ctx, http.MethodGet, "/token/info", bearer(accessToken), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *HTTPClient) Validate(ctx context.Context, accessToken string) (*Validation, error) {
	var v Validation
	if err := c.do(ctx, http.MethodPost, "/token/validate", bearer(accessToken), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func bearer(token string) http.Header {
	h := http.Header{}
	h.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	return h
}

func (c *HTTPClient) do(ctx context.Context, method, path string, header http.Header, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	var rawBody any
	if body != nil {
		rawBody = bytes.NewReader(body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, rawBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	var msg messageResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&msg)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		if strings.HasPrefix(msg.Message, "Security risk") {
			return ErrSecurityRisk
		}
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg.Message)
	case http.StatusTooManyRequests:
		return ErrTooManyRequests
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrBadRequest, msg.Message)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrUnavailable
	}
	return errors.New(strings.TrimSpace(fmt.Sprintf("unexpected status %d %s", resp.StatusCode, msg.Message)))
}
