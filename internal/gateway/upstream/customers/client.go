package customers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/crm-gateway/internal/crm"
	"github.com/yungbote/crm-gateway/internal/gateway/config"
	"github.com/yungbote/crm-gateway/internal/gateway/upstream/stream"
	"github.com/yungbote/crm-gateway/internal/pkg/httpx"
)

// Client streams the customer list from an HTTP upstream. One StreamCustomers call is one attempt;
// retries belong to the caller.
type Client struct {
	url     string
	apiKey  string
	timeout time.Duration

	httpClient *http.Client
}

func New(cfg config.CustomersConfig) (*Client, error) {
	return NewWithHTTPClient(cfg, &http.Client{Transport: httpx.NewTransport()})
}

func NewWithHTTPClient(cfg config.CustomersConfig, httpClient *http.Client) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("customers: base_url required")
	}
	if httpClient == nil {
		return nil, errors.New("customers: http client required")
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = "/customers"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &Client{
		url:        baseURL + path,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		timeout:    cfg.Timeout.Duration,
		httpClient: httpClient,
	}, nil
}

var _ crm.CustomerSource = (*Client)(nil)

func (c *Client) StreamCustomers(ctx context.Context, onCustomer func(crm.Customer) error) error {
	if onCustomer == nil {
		return errors.New("customers: callback required")
	}
	return stream.Get(ctx, c.httpClient, c.url, c.apiKey, c.timeout, onCustomer)
}

func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
