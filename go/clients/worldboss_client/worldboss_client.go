package worldboss_client

import (
	"context"
	"net/http"

	"github.com/mcdev12/bosswatch/go/clients"
	"github.com/mcdev12/bosswatch/go/internal/session"
)

type WorldBossClient struct {
	*clients.BaseClient
	statusEndpoint string
}

// NewWorldBossClient creates a client for the world boss API. statusEndpoint
// may be empty to use StatusEndpoint.
func NewWorldBossClient(baseURL, statusEndpoint string, store session.Store) *WorldBossClient {
	if statusEndpoint == "" {
		statusEndpoint = StatusEndpoint
	}

	client := &WorldBossClient{
		BaseClient:     clients.NewBaseClient(baseURL),
		statusEndpoint: statusEndpoint,
	}

	client.SetHeader(AcceptHeader, JsonContentType)
	client.SetCredentials(store, RefreshEndpoint)

	return client
}

// FetchStatus GETs the event status. Non-2xx responses are returned as-is.
func (c *WorldBossClient) FetchStatus(ctx context.Context) (*clients.Response, error) {
	return c.Do(ctx, http.MethodGet, c.statusEndpoint, nil)
}
