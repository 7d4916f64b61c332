package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/mcdev12/bosswatch/go/internal/session"
	"github.com/rs/zerolog/log"
)

var (
	// ErrSessionExpired means the refresh token was rejected. Stored
	// credentials have been cleared and the user has to log in again.
	ErrSessionExpired = errors.New("session expired")

	// ErrUnauthorized is returned when a request is still rejected after a
	// successful token refresh.
	ErrUnauthorized = errors.New("request unauthorized")
)

const DefaultRefreshEndpoint = "/token/refresh/"

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type BaseClient struct {
	baseURL string
	client  *http.Client
	headers map[string]string

	// bearer auth, optional
	creds            session.Store
	refreshEndpoint  string
	onSessionExpired func()
	refreshMu        sync.Mutex
}

func NewBaseClient(baseURL string) *BaseClient {
	return &BaseClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		headers:         make(map[string]string),
		refreshEndpoint: DefaultRefreshEndpoint,
	}
}

func (c *BaseClient) SetHeader(key, value string) {
	c.headers[key] = value
}

func (c *BaseClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// SetCredentials enables bearer authentication backed by store. A 401 triggers
// one refresh against refreshEndpoint followed by one retry.
func (c *BaseClient) SetCredentials(store session.Store, refreshEndpoint string) {
	c.creds = store
	if refreshEndpoint != "" {
		c.refreshEndpoint = refreshEndpoint
	}
}

// OnSessionExpired registers fn to run after a failed refresh has cleared the
// stored credentials.
func (c *BaseClient) OnSessionExpired(fn func()) {
	c.onSessionExpired = fn
}

// Do sends the request and returns the response whatever its status code.
// Only transport failures and auth failures are errors.
func (c *BaseClient) Do(ctx context.Context, method, endpoint string, body []byte) (*Response, error) {
	if c.creds == nil {
		return c.send(ctx, method, endpoint, body, "")
	}

	creds, err := c.creds.Load()
	if err != nil && !errors.Is(err, session.ErrNoCredentials) {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	resp, err := c.send(ctx, method, endpoint, body, creds.Access)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	access, err := c.refreshAccess(ctx, creds.Access)
	if err != nil {
		return nil, err
	}

	resp, err = c.send(ctx, method, endpoint, body, access)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	return resp, nil
}

func (c *BaseClient) send(ctx context.Context, method, endpoint string, body []byte, access string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: responseBody}, nil
}

// refreshRejectedError means the auth server answered and refused the refresh
// token, as opposed to the request never completing.
type refreshRejectedError struct {
	reason string
}

func (e *refreshRejectedError) Error() string {
	return "refresh rejected: " + e.reason
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// refreshAccess swaps the refresh token for a new access token. stale is the
// access token that was rejected; if another request already replaced it the
// stored token is reused without a second refresh.
func (c *BaseClient) refreshAccess(ctx context.Context, stale string) (string, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	creds, err := c.creds.Load()
	if err != nil && !errors.Is(err, session.ErrNoCredentials) {
		return "", fmt.Errorf("failed to load credentials: %w", err)
	}
	if creds.Access != "" && creds.Access != stale {
		return creds.Access, nil
	}

	access, refresh, err := c.requestRefresh(ctx, creds.Refresh)
	if err != nil {
		var rejected *refreshRejectedError
		if !errors.As(err, &rejected) {
			return "", fmt.Errorf("failed to refresh access token: %w", err)
		}
		log.Warn().Err(err).Msg("token refresh failed, clearing credentials")
		if clearErr := c.creds.Clear(); clearErr != nil {
			log.Error().Err(clearErr).Msg("failed to clear credentials")
		}
		if c.onSessionExpired != nil {
			c.onSessionExpired()
		}
		return "", ErrSessionExpired
	}

	creds.Access = access
	if refresh != "" {
		creds.Refresh = refresh
	}
	if err := c.creds.Save(creds); err != nil {
		log.Error().Err(err).Msg("failed to save refreshed credentials")
	}

	log.Debug().Msg("access token refreshed")
	return access, nil
}

func (c *BaseClient) requestRefresh(ctx context.Context, refresh string) (string, string, error) {
	if refresh == "" {
		return "", "", &refreshRejectedError{reason: "no refresh token"}
	}

	body, err := json.Marshal(refreshRequest{Refresh: refresh})
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal refresh request: %w", err)
	}

	resp, err := c.send(ctx, http.MethodPost, c.refreshEndpoint, body, "")
	if err != nil {
		return "", "", err
	}
	if !resp.OK() {
		return "", "", &refreshRejectedError{reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	var out refreshResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil || out.Access == "" {
		return "", "", &refreshRejectedError{reason: "no access token in response"}
	}
	return out.Access, out.Refresh, nil
}
