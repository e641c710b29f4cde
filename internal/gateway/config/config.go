package config

import "time"

type Duration struct {
	Duration time.Duration
}

type HTTPConfig struct {
	Addr              string   `json:"addr" yaml:"addr"`
	ReadHeaderTimeout Duration `json:"read_header_timeout" yaml:"read_header_timeout"`
	IdleTimeout       Duration `json:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout   Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`

	// AllowedOrigins feeds the CORS middleware. Empty disables CORS headers.
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
}

type RetryConfig struct {
	// MaxAttempts counts every attempt, the first one included.
	MaxAttempts    int      `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
	InitialBackoff Duration `json:"initial_backoff,omitempty" yaml:"initial_backoff,omitempty"`
	MaxBackoff     Duration `json:"max_backoff,omitempty" yaml:"max_backoff,omitempty"`
	Multiplier     float64  `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
	Jitter         *float64 `json:"jitter,omitempty" yaml:"jitter,omitempty"`
}

// SQLConfig points a source at a table in Postgres.
type SQLConfig struct {
	DSN   string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Table string `json:"table,omitempty" yaml:"table,omitempty"`
}

type MockCustomer struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

type MockOrder struct {
	ID         int `json:"id" yaml:"id"`
	CustomerID int `json:"customerId" yaml:"customerId"`
}

type CustomersConfig struct {
	// Type selects the transport: "http", "sql" or "mock".
	Type string `json:"type" yaml:"type"`

	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`

	// APIKey is optional; when set the gateway sends `Authorization: Bearer <api_key>`.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Timeout bounds one attempt. Zero leaves long-lived streams to caller cancellation.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	Retry RetryConfig `json:"retry,omitempty" yaml:"retry,omitempty"`

	SQL SQLConfig `json:"sql,omitempty" yaml:"sql,omitempty"`

	Mock []MockCustomer `json:"mock,omitempty" yaml:"mock,omitempty"`
}

type OrdersConfig struct {
	// Type selects the transport: "grpc", "http", "sql" or "mock".
	Type string `json:"type" yaml:"type"`

	// Target is the gRPC dial target (for "grpc").
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
	// Route is the per-customer route template; `{customerId}` is substituted.
	Route string `json:"route,omitempty" yaml:"route,omitempty"`

	BaseURL      string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	PathTemplate string `json:"path_template,omitempty" yaml:"path_template,omitempty"`
	APIKey       string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	SQL SQLConfig `json:"sql,omitempty" yaml:"sql,omitempty"`

	Mock []MockOrder `json:"mock,omitempty" yaml:"mock,omitempty"`
}

type AggregatorConfig struct {
	// MaxConcurrency bounds in-flight order fetches. Zero means unbounded.
	MaxConcurrency int `json:"max_concurrency,omitempty" yaml:"max_concurrency,omitempty"`

	// DegradeOrders replaces a failed order fetch with an empty order list instead of failing the run.
	DegradeOrders bool `json:"degrade_orders,omitempty" yaml:"degrade_orders,omitempty"`
}

type TelemetryConfig struct {
	ServiceName string `json:"service_name,omitempty" yaml:"service_name,omitempty"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
}

type Config struct {
	Env        string           `json:"env" yaml:"env"`
	HTTP       HTTPConfig       `json:"http" yaml:"http"`
	Customers  CustomersConfig  `json:"customers" yaml:"customers"`
	Orders     OrdersConfig     `json:"orders" yaml:"orders"`
	Aggregator AggregatorConfig `json:"aggregator" yaml:"aggregator"`
	Telemetry  TelemetryConfig  `json:"telemetry" yaml:"telemetry"`
}
