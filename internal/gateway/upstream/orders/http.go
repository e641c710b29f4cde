package orders

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/crm-gateway/internal/crm"
	"github.com/yungbote/crm-gateway/internal/gateway/config"
	"github.com/yungbote/crm-gateway/internal/gateway/upstream/stream"
	"github.com/yungbote/crm-gateway/internal/pkg/httpx"
)

// HTTPClient fetches one customer's orders per call from `{base_url}{path_template}`.
type HTTPClient struct {
	baseURL      string
	pathTemplate string
	apiKey       string
	timeout      time.Duration

	httpClient *http.Client
}

func NewHTTP(cfg config.OrdersConfig) (*HTTPClient, error) {
	return NewHTTPWithClient(cfg, &http.Client{Transport: httpx.NewTransport()})
}

func NewHTTPWithClient(cfg config.OrdersConfig, httpClient *http.Client) (*HTTPClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("orders: base_url required")
	}
	if httpClient == nil {
		return nil, errors.New("orders: http client required")
	}
	tmpl := strings.TrimSpace(cfg.PathTemplate)
	if tmpl == "" {
		tmpl = "/customers/" + config.CustomerIDPlaceholder + "/orders"
	}
	if !strings.Contains(tmpl, config.CustomerIDPlaceholder) {
		return nil, fmt.Errorf("orders: path_template must contain %s", config.CustomerIDPlaceholder)
	}
	if !strings.HasPrefix(tmpl, "/") {
		tmpl = "/" + tmpl
	}
	return &HTTPClient{
		baseURL:      baseURL,
		pathTemplate: tmpl,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		timeout:      cfg.Timeout.Duration,
		httpClient:   httpClient,
	}, nil
}

var _ crm.OrderSource = (*HTTPClient)(nil)

func (c *HTTPClient) StreamOrders(ctx context.Context, customerID int, onOrder func(crm.Order) error) error {
	if onOrder == nil {
		return errors.New("orders: callback required")
	}
	url := c.baseURL + Route(c.pathTemplate, customerID)
	return stream.Get(ctx, c.httpClient, url, c.apiKey, c.timeout, onOrder)
}

func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
