package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*HTTPClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/", WithRetry(2, time.Millisecond, 2*time.Millisecond), WithTimeout(time.Second)), srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLogin_SendsCredentials(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice", body["username"])
		assert.Equal(t, "pw", body["password"])
		writeJSON(w, http.StatusOK, TokenPair{AccessToken: "a1", RefreshToken: "r1", Message: "Login successful"})
	})

	pair, err := c.Login(context.Background(), "alice", []byte("pw"))
	require.NoError(t, err)
	assert.Equal(t, "a1", pair.AccessToken)
	assert.Equal(t, "r1", pair.RefreshToken)
}

func TestLogin_Unauthorized(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "Invalid credentials"})
	})

	_, err := c.Login(context.Background(), "alice", []byte("bad"))
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "Invalid credentials")
}

func TestRefresh_HeaderAndNoRetry(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/token/refresh", r.URL.Path)
		assert.Equal(t, "Bearer r1", r.Header.Get("Refresh-Token"))
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Refresh(context.Background(), "r1")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(1), calls.Load(), "refresh must never be resent")
}

func TestRefresh_SecurityRisk(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "Security risk detected. Please log in again."})
	})

	_, err := c.Refresh(context.Background(), "r1")
	require.ErrorIs(t, err, ErrSecurityRisk)
}

func TestRefresh_RateLimited(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, messageResponse{Message: "Too many refresh attempts, slow down"})
	})

	_, err := c.Refresh(context.Background(), "r1")
	require.ErrorIs(t, err, ErrTooManyRequests)
}

func TestInfo_RetriesGatewayErrors(t *testing.T) {
	var calls atomic.Int32
	exp := time.Date(2026, 1, 1, 12, 10, 0, 0, time.UTC)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "Bearer a1", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, TokenInfo{ExpiryDate: exp, SecondsRemaining: 600, TokenID: "jti"})
	})

	info, err := c.Info(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int64(600), info.SecondsRemaining)
	assert.True(t, exp.Equal(info.ExpiryDate))
	assert.Equal(t, "jti", info.TokenID)
}

func TestValidate_Invalid(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Validation{Valid: false, Message: "Token has been revoked"})
	})

	v, err := c.Validate(context.Background(), "a1")
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Nil(t, v.SecondsRemaining)
	assert.Equal(t, "Token has been revoked", v.Message)
}

func TestRevokeAndLogout_Paths(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
	})

	require.NoError(t, c.Revoke(context.Background(), "a1"))
	require.NoError(t, c.Logout(context.Background(), "a1"))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/token/revoke", "/auth/logout"}, paths)
}

func TestPing_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewHTTPClient(url, WithRetry(1, time.Millisecond, time.Millisecond), WithTimeout(100*time.Millisecond))
	err := c.Ping(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestUnexpectedStatus(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Internal error"})
	})

	err := c.Ping(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnavailable))
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestRetryPolicy(t *testing.T) {
	ctx := context.Background()

	retry, err := RetryPolicy(ctx, nil, errors.New("dial"))
	require.NoError(t, err)
	assert.True(t, retry)

	retry, _ = RetryPolicy(ctx, &http.Response{StatusCode: http.StatusTooManyRequests}, nil)
	assert.False(t, retry)

	retry, _ = RetryPolicy(withoutRetry(ctx), nil, errors.New("dial"))
	assert.False(t, retry)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	retry, err = RetryPolicy(cancelled, nil, errors.New("dial"))
	assert.False(t, retry)
	assert.ErrorIs(t, err, context.Canceled)
}
