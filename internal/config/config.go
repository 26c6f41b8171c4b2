package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // timezone lookups in minimal containers
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/vizor/vizor-etl/internal/compute"
	"github.com/vizor/vizor-etl/internal/pipeline"
	"github.com/vizor/vizor-etl/internal/report"
	"github.com/vizor/vizor-etl/internal/storage"
	"github.com/vizor/vizor-etl/internal/telemetry"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultLogLevel      = "info"
	DefaultHTTPPort      = 8080
	DefaultGRPCPort      = 50051
	DefaultInboxDir      = "data/inbox"
	DefaultOutboxDir     = "data/reports"
	DefaultExportSubject = "telemetry.exports"
	DefaultReadySubject  = "reports.ready"
	DefaultQueueGroup    = "vizor-etl"
)

// Config is the top-level configuration.
type Config struct {
	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	ETL         ETLConfig         `yaml:"etl"`
	Source      StoreConfig       `yaml:"source"`
	Destination DestinationConfig `yaml:"destination"`
	Trigger     TriggerConfig     `yaml:"trigger"`
	Notify      NotifyConfig      `yaml:"notify"`
	Alerts      AlertsConfig      `yaml:"alerts"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Server      ServerConfig      `yaml:"server"`
}

// ETLConfig tunes parsing and trend classification.
type ETLConfig struct {
	// Delimiter is the single column separator character.
	Delimiter string `yaml:"delimiter"`

	// MinColumns is the minimum column count of a usable row.
	MinColumns int `yaml:"min_columns"`

	// TimestampLayouts are Go time layouts tried in order.
	TimestampLayouts []string `yaml:"timestamp_layouts"`

	// Timezone is the IANA zone timestamps are read in. Default UTC.
	Timezone string `yaml:"timezone"`

	// TrendThreshold is the slope magnitude for rising/falling.
	TrendThreshold float64 `yaml:"trend_threshold"`

	// TrustedPrefix is the folder exports are promoted into. A fetch that
	// misses is retried once with this prefix toggled.
	TrustedPrefix string `yaml:"trusted_prefix"`
}

// StoreConfig selects a storage backend.
type StoreConfig struct {
	// Kind is one of: fs | memory | s3 | sql.
	Kind string `yaml:"kind"`

	// Dir is the root directory for kind fs.
	Dir string `yaml:"dir"`

	// TTL evicts objects of kind memory this long after their last write.
	TTL time.Duration `yaml:"ttl"`

	// Bucket, Region and Endpoint configure kind s3. A non-empty Endpoint
	// selects path-style addressing (MinIO, LocalStack).
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`

	// Driver is one of: pgx | postgres | mysql | sqlite3.
	Driver string `yaml:"driver"`

	// DSNEnv names the environment variable holding the connection string.
	DSNEnv string `yaml:"dsn_env"`

	// Table is the report table. Default dashboard_reports.
	Table string `yaml:"table"`
}

// DSN returns the connection string resolved from the environment.
func (s StoreConfig) DSN() string {
	if s.DSNEnv == "" {
		return ""
	}
	return os.Getenv(s.DSNEnv)
}

// DestinationConfig is where reports are written.
type DestinationConfig struct {
	StoreConfig `yaml:",inline"`

	// Prefix is prepended to every report key.
	Prefix string `yaml:"prefix"`

	// DateLayout formats the date segment of report keys.
	DateLayout string `yaml:"date_layout"`
}

// TriggerConfig enables the long-running invocation sources.
type TriggerConfig struct {
	Inbox InboxConfig `yaml:"inbox"`
	NATS  NATSConfig  `yaml:"nats"`
}

// InboxConfig watches the fs source root for new exports.
type InboxConfig struct {
	Enabled bool          `yaml:"enabled"`
	Settle  time.Duration `yaml:"settle"`
}

// NATSConfig subscribes to export notifications.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	Queue   string `yaml:"queue"`
}

// NotifyConfig publishes a message for every stored report.
type NotifyConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URL        string `yaml:"url"`
	Subject    string `yaml:"subject"`
	BufferSize int    `yaml:"buffer_size"`
}

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one condition evaluated against every produced report.
type AlertRule struct {
	// Name is the alert identifier, used with the machine as the
	// deduplication key.
	Name string `yaml:"name"`

	// Condition is "field op value": "risk_prob > 80", "status == critico",
	// "trend == subindo", "day_temp >= 75".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// MetricsConfig controls the Prometheus outputs.
type MetricsConfig struct {
	// TextfileDir, when set, receives <company>_<machine>.prom with the gauges
	// of every stored report, for node_exporter's textfile collector.
	TextfileDir string `yaml:"textfile_dir"`
}

// ServerConfig holds the listeners of the serve command.
type ServerConfig struct {
	HTTPPort int        `yaml:"http_port"`
	GRPCPort int        `yaml:"grpc_port"`
	Auth     AuthConfig `yaml:"auth"`
}

// AuthConfig controls client authentication on the HTTP and gRPC listeners.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header and gRPC metadata key. Defaults to "x-api-key".
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// Load reads and parses the config file at path.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Defaults returns a Config pre-populated with default values. It is also
// the configuration used when no file is given.
func Defaults() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		ETL: ETLConfig{
			Delimiter:        ",",
			MinColumns:       telemetry.DefaultMinColumns,
			TimestampLayouts: append([]string(nil), telemetry.DefaultLayouts...),
			Timezone:         "UTC",
			TrendThreshold:   compute.DefaultTrendThreshold,
			TrustedPrefix:    report.DefaultTrustedPrefix,
		},
		Source: StoreConfig{Kind: storage.KindFS, Dir: DefaultInboxDir},
		Destination: DestinationConfig{
			StoreConfig: StoreConfig{Kind: storage.KindFS, Dir: DefaultOutboxDir},
			DateLayout:  report.DefaultDateLayout,
		},
		Trigger: TriggerConfig{
			Inbox: InboxConfig{Settle: 500 * time.Millisecond},
			NATS:  NATSConfig{Subject: DefaultExportSubject, Queue: DefaultQueueGroup},
		},
		Notify: NotifyConfig{Subject: DefaultReadySubject, BufferSize: 256},
		Server: ServerConfig{HTTPPort: DefaultHTTPPort, GRPCPort: DefaultGRPCPort},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	if utf8.RuneCountInString(cfg.ETL.Delimiter) != 1 {
		return fmt.Errorf("etl.delimiter %q must be a single character", cfg.ETL.Delimiter)
	}
	switch r, _ := utf8.DecodeRuneInString(cfg.ETL.Delimiter); r {
	case '"', '\r', '\n', utf8.RuneError:
		return fmt.Errorf("etl.delimiter %q cannot separate csv fields", cfg.ETL.Delimiter)
	}
	if cfg.ETL.MinColumns < telemetry.DefaultMinColumns {
		return fmt.Errorf("etl.min_columns %d must be at least %d", cfg.ETL.MinColumns, telemetry.DefaultMinColumns)
	}
	if len(cfg.ETL.TimestampLayouts) == 0 {
		return fmt.Errorf("etl.timestamp_layouts must not be empty")
	}
	if _, err := time.LoadLocation(cfg.ETL.Timezone); err != nil {
		return fmt.Errorf("etl.timezone %q: %w", cfg.ETL.Timezone, err)
	}
	if cfg.ETL.TrendThreshold <= 0 {
		return fmt.Errorf("etl.trend_threshold %v must be positive", cfg.ETL.TrendThreshold)
	}
	if err := validateStore("source", cfg.Source); err != nil {
		return err
	}
	if err := validateStore("destination", cfg.Destination.StoreConfig); err != nil {
		return err
	}
	if cfg.Destination.DateLayout == "" {
		return fmt.Errorf("destination.date_layout must not be empty")
	}
	if cfg.Trigger.Inbox.Enabled && cfg.Source.Kind != storage.KindFS {
		return fmt.Errorf("trigger.inbox requires source.kind fs, got %q", cfg.Source.Kind)
	}
	if cfg.Trigger.NATS.Enabled && cfg.Trigger.NATS.URL == "" {
		return fmt.Errorf("trigger.nats.url is required when enabled")
	}
	if cfg.Notify.Enabled && cfg.Notify.URL == "" {
		return fmt.Errorf("notify.url is required when enabled")
	}
	for i, r := range cfg.Alerts.Rules {
		if r.Name == "" || len(strings.Fields(r.Condition)) != 3 {
			return fmt.Errorf("alerts.rules[%d]: name and a \"field op value\" condition are required", i)
		}
		switch r.Severity {
		case "critical", "warning", "info", "":
		default:
			return fmt.Errorf("alerts.rules[%d].severity %q unknown: want critical|warning|info", i, r.Severity)
		}
	}
	for i, w := range cfg.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d].type %q unknown: want slack|teams|http", i, w.Type)
		}
	}
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	if cfg.Server.GRPCPort <= 0 || cfg.Server.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [1, 65535]", cfg.Server.GRPCPort)
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}
	return nil
}

func validateStore(section string, s StoreConfig) error {
	switch s.Kind {
	case storage.KindFS:
		if s.Dir == "" {
			return fmt.Errorf("%s.dir is required for kind fs", section)
		}
	case storage.KindMemory:
	case storage.KindS3:
		if s.Bucket == "" {
			return fmt.Errorf("%s.bucket is required for kind s3", section)
		}
	case storage.KindSQL:
		switch s.Driver {
		case "pgx", "postgres", "mysql", "sqlite3":
		default:
			return fmt.Errorf("%s.driver %q unknown: want pgx|postgres|mysql|sqlite3", section, s.Driver)
		}
		if s.DSNEnv == "" {
			return fmt.Errorf("%s.dsn_env is required for kind sql", section)
		}
	default:
		return fmt.Errorf("%s.kind %q unknown: want fs|memory|s3|sql", section, s.Kind)
	}
	return nil
}

// ParseLevel maps a log_level value to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log_level %q unknown: want debug|info|warn|error", s)
	}
}

// Tuning returns the pipeline settings described by the etl and destination
// sections. Load has already validated them.
func (c *Config) Tuning() pipeline.Tuning {
	loc, err := time.LoadLocation(c.ETL.Timezone)
	if err != nil {
		loc = time.UTC
	}
	delim, _ := utf8.DecodeRuneInString(c.ETL.Delimiter)
	return pipeline.Tuning{
		Parse: telemetry.Options{
			Delimiter:  delim,
			MinColumns: c.ETL.MinColumns,
			Layouts:    c.ETL.TimestampLayouts,
			Location:   loc,
		},
		TrendThreshold: c.ETL.TrendThreshold,
		TrustedPrefix:  c.ETL.TrustedPrefix,
		DestPrefix:     c.Destination.Prefix,
		DateLayout:     c.Destination.DateLayout,
	}
}

// StoreOptions translates a StoreConfig for storage.Open.
func (s StoreConfig) StoreOptions() storage.Options {
	return storage.Options{
		Kind:     s.Kind,
		Dir:      s.Dir,
		TTL:      s.TTL,
		Bucket:   s.Bucket,
		Region:   s.Region,
		Endpoint: s.Endpoint,
		Driver:   s.Driver,
		DSN:      s.DSN(),
		Table:    s.Table,
	}
}
