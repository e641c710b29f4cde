package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		d.Duration = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		u, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		return d.parse(u)
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("duration must be a JSON string like \"5s\" or an int nanoseconds: %w", err)
	}
	d.Duration = time.Duration(n)
	return nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar, line %d", value.Line)
	}
	if value.ShortTag() == "!!int" {
		n, err := strconv.ParseInt(value.Value, 10, 64)
		if err != nil {
			return err
		}
		d.Duration = time.Duration(n)
		return nil
	}
	return d.parse(value.Value)
}

func (d *Duration) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		d.Duration = 0
		return nil
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dd
	return nil
}

const (
	DefaultMaxAttempts    = 10
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = time.Minute
	DefaultMultiplier     = 2.0
	DefaultJitter         = 0.5

	CustomerIDPlaceholder = "{customerId}"
)

func defaultConfig() *Config {
	return &Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:              ":9090",
			ReadHeaderTimeout: Duration{Duration: 5 * time.Second},
			IdleTimeout:       Duration{Duration: 2 * time.Minute},
			ShutdownTimeout:   Duration{Duration: 15 * time.Second},
		},
		Customers: CustomersConfig{
			Type:    "http",
			BaseURL: "http://localhost:8080",
			Path:    "/customers",
		},
		Orders: OrdersConfig{
			Type:   "grpc",
			Target: "localhost:8181",
			Route:  "orders." + CustomerIDPlaceholder,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "crm-gateway",
		},
	}
}

func Load() (*Config, error) {
	cfg := defaultConfig()

	cfgPath := strings.TrimSpace(os.Getenv("GW_CONFIG_PATH"))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
				p := filepath.Join(wd, "config", name)
				if _, err := os.Stat(p); err == nil {
					cfgPath = p
					break
				}
			}
		}
	}

	if cfgPath != "" {
		if err := readFile(cfgPath, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
	}

	applyEnv(cfg)

	if err := normalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	default:
		return json.Unmarshal(b, cfg)
	}
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("LOG_MODE")); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(os.Getenv("GW_HTTP_ADDR")); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("GW_CUSTOMERS_BASE_URL")); v != "" {
		cfg.Customers.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("GW_CUSTOMERS_API_KEY")); v != "" {
		cfg.Customers.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("GW_ORDERS_TARGET")); v != "" {
		cfg.Orders.Target = v
	}
	if v := strings.TrimSpace(os.Getenv("GW_ORDERS_BASE_URL")); v != "" {
		cfg.Orders.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("GW_CUSTOMERS_SQL_DSN")); v != "" {
		cfg.Customers.SQL.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("GW_ORDERS_SQL_DSN")); v != "" {
		cfg.Orders.SQL.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("GW_MAX_CONCURRENCY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Aggregator.MaxConcurrency = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("GW_DEGRADE_ORDERS")); v != "" {
		cfg.Aggregator.DegradeOrders = parseBool(v)
	}
}

func normalize(cfg *Config) error {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "development"
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = ":9090"
	}
	if cfg.HTTP.ShutdownTimeout.Duration <= 0 {
		cfg.HTTP.ShutdownTimeout = Duration{Duration: 15 * time.Second}
	}
	if strings.TrimSpace(cfg.Telemetry.ServiceName) == "" {
		cfg.Telemetry.ServiceName = "crm-gateway"
	}
	for _, o := range cfg.HTTP.AllowedOrigins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("http.allowed_origins: %q must be * or an http(s) origin", o)
		}
	}

	if err := normalizeCustomers(&cfg.Customers); err != nil {
		return err
	}
	if err := normalizeOrders(&cfg.Orders); err != nil {
		return err
	}

	if cfg.Aggregator.MaxConcurrency < 0 {
		return errors.New("aggregator.max_concurrency must be >= 0")
	}
	return nil
}

func normalizeCustomers(c *CustomersConfig) error {
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.Path = strings.TrimSpace(c.Path)
	c.APIKey = strings.TrimSpace(c.APIKey)

	switch c.Type {
	case "http":
		if c.BaseURL == "" {
			return errors.New("customers (http) missing base_url")
		}
		if c.Path == "" {
			c.Path = "/customers"
		}
	case "sql":
		if err := normalizeSQL("customers", &c.SQL, "customers"); err != nil {
			return err
		}
	case "mock":
	case "":
		return errors.New("customers.type is required")
	default:
		return fmt.Errorf("unsupported customers.type %q", c.Type)
	}
	if c.Timeout.Duration < 0 {
		return errors.New("customers.timeout must be >= 0")
	}

	return normalizeRetry(&c.Retry)
}

func normalizeRetry(r *RetryConfig) error {
	if r.MaxAttempts < 0 {
		return errors.New("customers.retry.max_attempts must be >= 0")
	}
	if r.MaxAttempts == 0 {
		r.MaxAttempts = DefaultMaxAttempts
	}
	if r.InitialBackoff.Duration < 0 || r.MaxBackoff.Duration < 0 {
		return errors.New("customers.retry backoff durations must be >= 0")
	}
	if r.InitialBackoff.Duration == 0 {
		r.InitialBackoff = Duration{Duration: DefaultInitialBackoff}
	}
	if r.MaxBackoff.Duration == 0 {
		r.MaxBackoff = Duration{Duration: DefaultMaxBackoff}
	}
	if r.MaxBackoff.Duration > DefaultMaxBackoff {
		return fmt.Errorf("customers.retry.max_backoff must not exceed %s", DefaultMaxBackoff)
	}
	if r.InitialBackoff.Duration > r.MaxBackoff.Duration {
		r.InitialBackoff = r.MaxBackoff
	}
	if r.Multiplier == 0 {
		r.Multiplier = DefaultMultiplier
	}
	if r.Multiplier < 1 {
		return errors.New("customers.retry.multiplier must be >= 1")
	}
	if r.Jitter == nil {
		j := DefaultJitter
		r.Jitter = &j
	}
	if *r.Jitter < 0 || *r.Jitter > 1 {
		return errors.New("customers.retry.jitter must be within [0,1]")
	}
	return nil
}

func normalizeOrders(o *OrdersConfig) error {
	o.Type = strings.ToLower(strings.TrimSpace(o.Type))
	o.Target = strings.TrimSpace(o.Target)
	o.Route = strings.TrimSpace(o.Route)
	o.BaseURL = strings.TrimRight(strings.TrimSpace(o.BaseURL), "/")
	o.PathTemplate = strings.TrimSpace(o.PathTemplate)
	o.APIKey = strings.TrimSpace(o.APIKey)

	switch o.Type {
	case "grpc":
		if o.Target == "" {
			return errors.New("orders (grpc) missing target")
		}
		if o.Route == "" {
			o.Route = "orders." + CustomerIDPlaceholder
		}
		if !strings.Contains(o.Route, CustomerIDPlaceholder) {
			return fmt.Errorf("orders.route must contain %s", CustomerIDPlaceholder)
		}
	case "http":
		if o.BaseURL == "" {
			return errors.New("orders (http) missing base_url")
		}
		if o.PathTemplate == "" {
			o.PathTemplate = "/customers/" + CustomerIDPlaceholder + "/orders"
		}
		if !strings.Contains(o.PathTemplate, CustomerIDPlaceholder) {
			return fmt.Errorf("orders.path_template must contain %s", CustomerIDPlaceholder)
		}
	case "sql":
		if err := normalizeSQL("orders", &o.SQL, "orders"); err != nil {
			return err
		}
	case "mock":
	case "":
		return errors.New("orders.type is required")
	default:
		return fmt.Errorf("unsupported orders.type %q", o.Type)
	}
	if o.Timeout.Duration < 0 {
		return errors.New("orders.timeout must be >= 0")
	}
	return nil
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

func normalizeSQL(section string, c *SQLConfig, defaultTable string) error {
	c.DSN = strings.TrimSpace(c.DSN)
	c.Table = strings.TrimSpace(c.Table)
	if c.DSN == "" {
		return fmt.Errorf("%s (sql) missing sql.dsn", section)
	}
	if c.Table == "" {
		c.Table = defaultTable
	}
	if !tableName.MatchString(c.Table) {
		return fmt.Errorf("%s.sql.table %q is not a plain table name", section, c.Table)
	}
	return nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	default:
		return false
	}
}
