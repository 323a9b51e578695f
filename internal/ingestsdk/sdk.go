// Package ingestsdk is the client for the remote ingestion endpoint. It
// carries file bytes plus normalized metadata; retry policy is owned by the
// caller, not this client.
package ingestsdk

import (
	"time"

	"github.com/imroc/req/v3"
	"github.com/ingestd/ingestd/internal/version"
)

const defaultTimeout = 120 * time.Second

// Client talks to the ingestion API.
type Client struct {
	http        *req.Client
	baseURL     string
	connectorID string
}

// New creates an ingestion client. The per-request retry count is zero on
// purpose: the delivery pipeline implements its own backoff state machine.
func New(baseURL, apiKey, connectorID string) (*Client, error) {
	if baseURL == "" {
		return nil, ErrNoServerURL
	}
	if connectorID == "" {
		return nil, ErrNoConnectorID
	}

	client := req.C().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout).
		SetUserAgent(version.UserAgent()).
		SetCommonRetryCount(0).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	if apiKey != "" {
		client.SetCommonBearerAuthToken(apiKey)
	}

	return &Client{
		http:        client,
		baseURL:     baseURL,
		connectorID: connectorID,
	}, nil
}

// ConnectorID returns the connector this client uploads into.
func (c *Client) ConnectorID() string {
	return c.connectorID
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.GetClient().CloseIdleConnections()
}
