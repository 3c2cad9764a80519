// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	DB        DBConfig        `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Quota     QuotaConfig     `mapstructure:"quota"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Report    ReportConfig    `mapstructure:"report"`
	Snapshots SnapshotConfig  `mapstructure:"snapshots"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// DBConfig controls access to Postgres. An empty DSN selects the in-memory store.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	MaxConnLifetime int    `mapstructure:"max_conn_lifetime_seconds"`
	Migrate         bool   `mapstructure:"migrate"`
}

// RedisConfig locates the scheduler lease store. An empty Addr disables the lease.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// BrowserConfig configures headless Chrome.
type BrowserConfig struct {
	Headless             bool    `mapstructure:"headless"`
	ExecPath             string  `mapstructure:"exec_path"`
	UserAgent            string  `mapstructure:"user_agent"`
	AcceptLanguage       string  `mapstructure:"accept_language"`
	NavTimeoutSeconds    int     `mapstructure:"nav_timeout_seconds"`
	ActionTimeoutSeconds int     `mapstructure:"action_timeout_seconds"`
	NavigationsPerSecond float64 `mapstructure:"navigations_per_second"`
}

// CrawlerConfig governs a single crawl run.
type CrawlerConfig struct {
	RunTimeoutSeconds   int `mapstructure:"run_timeout_seconds"`
	MaxIterations       int `mapstructure:"max_iterations"`
	HardCap             int `mapstructure:"hard_cap"`
	MinConfidence       int `mapstructure:"min_confidence"`
	FrameTimeoutSeconds int `mapstructure:"frame_timeout_seconds"`
	BackoffMillis       int `mapstructure:"backoff_ms"`
	ClickRetries        int `mapstructure:"click_retries"`
	// Timezone resolves review date labels.
	Timezone string `mapstructure:"timezone"`
}

// QuotaConfig holds the per-tier limits.
type QuotaConfig struct {
	FreeBaseline      int   `mapstructure:"free_baseline"`
	FreeWindows       []int `mapstructure:"free_windows"`
	SubscriberCap     int   `mapstructure:"subscriber_cap"`
	SubscriberWindows []int `mapstructure:"subscriber_windows"`
}

// SchedulerConfig controls the periodic crawl.
type SchedulerConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Spec            string `mapstructure:"spec"`
	Workers         int    `mapstructure:"workers"`
	LeaseKey        string `mapstructure:"lease_key"`
	LeaseTTLSeconds int    `mapstructure:"lease_ttl_seconds"`
}

// ReportConfig names the report request topic. Empty disables reports.
type ReportConfig struct {
	Topic string `mapstructure:"topic"`
}

// SnapshotConfig chooses where documents that produced no reviews are kept.
type SnapshotConfig struct {
	// Backend is one of "none", "local" or "gcs".
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds the Pub/Sub project. An empty project keeps messages in memory.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
}

// TracingConfig controls span sampling.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("REVIEWS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 360)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.migrate", true)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.accept_language", "ko-KR,ko;q=0.9,en-US;q=0.8")
	v.SetDefault("browser.nav_timeout_seconds", 60)
	v.SetDefault("browser.action_timeout_seconds", 15)
	v.SetDefault("browser.navigations_per_second", 0.5)
	v.SetDefault("crawler.run_timeout_seconds", 300)
	v.SetDefault("crawler.max_iterations", 30)
	v.SetDefault("crawler.hard_cap", 300)
	v.SetDefault("crawler.min_confidence", 10)
	v.SetDefault("crawler.frame_timeout_seconds", 30)
	v.SetDefault("crawler.backoff_ms", 1300)
	v.SetDefault("crawler.click_retries", 3)
	v.SetDefault("crawler.timezone", "Asia/Seoul")
	v.SetDefault("quota.free_baseline", 300)
	v.SetDefault("quota.free_windows", []int{30, 90, 180, 365, 0})
	v.SetDefault("quota.subscriber_cap", 1000)
	v.SetDefault("quota.subscriber_windows", []int{30, 0})
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.spec", "0 0 3 * * *")
	v.SetDefault("scheduler.workers", 1)
	v.SetDefault("scheduler.lease_key", "reviews:scheduler:tick")
	v.SetDefault("scheduler.lease_ttl_seconds", 3600)
	v.SetDefault("report.topic", "")
	v.SetDefault("snapshots.backend", "none")
	v.SetDefault("snapshots.local_dir", "snapshots")
	v.SetDefault("snapshots.prefix", "snapshots")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("tracing.enabled", true)
	v.SetDefault("tracing.sample_ratio", 0.1)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return errors.New("auth.api_key must be set when auth is enabled")
	}
	if c.Crawler.RunTimeoutSeconds <= 0 {
		return errors.New("crawler.run_timeout_seconds must be > 0")
	}
	if c.Crawler.MaxIterations <= 0 {
		return errors.New("crawler.max_iterations must be > 0")
	}
	if c.Crawler.MinConfidence <= 0 {
		return errors.New("crawler.min_confidence must be > 0")
	}
	if c.Browser.NavigationsPerSecond < 0 {
		return errors.New("browser.navigations_per_second must be >= 0")
	}
	if _, err := time.LoadLocation(c.Crawler.Timezone); err != nil {
		return fmt.Errorf("crawler.timezone: %w", err)
	}
	if c.Quota.FreeBaseline < 0 || c.Quota.SubscriberCap <= 0 {
		return errors.New("quota limits must be non-negative and subscriber_cap > 0")
	}
	if err := validateWindows("quota.free_windows", c.Quota.FreeWindows); err != nil {
		return err
	}
	if err := validateWindows("quota.subscriber_windows", c.Quota.SubscriberWindows); err != nil {
		return err
	}
	if c.Scheduler.Enabled && c.Scheduler.Workers <= 0 {
		return errors.New("scheduler.workers must be > 0 when the scheduler is enabled")
	}
	switch c.Snapshots.Backend {
	case "", "none":
	case "local":
		if c.Snapshots.LocalDir == "" {
			return errors.New("snapshots.local_dir is required for the local backend")
		}
	case "gcs":
		if c.Snapshots.GCSBucket == "" {
			return errors.New("snapshots.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("snapshots.backend %q is not one of none, local, gcs", c.Snapshots.Backend)
	}
	if c.Report.Topic != "" && c.PubSub.ProjectID == "" {
		return errors.New("pubsub.project_id must be set when report.topic is configured")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return errors.New("tracing.sample_ratio must be within [0, 1]")
	}
	return nil
}

// validateWindows checks that day windows are non-negative, widen strictly
// and end with the unbounded window.
func validateWindows(key string, windows []int) error {
	if len(windows) == 0 {
		return fmt.Errorf("%s must not be empty", key)
	}
	for i, w := range windows {
		switch {
		case w < 0:
			return fmt.Errorf("%s[%d] must be >= 0", key, i)
		case w == 0 && i != len(windows)-1:
			return fmt.Errorf("%s: unbounded window must come last", key)
		case i > 0 && w != 0 && w <= windows[i-1]:
			return fmt.Errorf("%s must widen monotonically", key)
		}
	}
	if windows[len(windows)-1] != 0 {
		return fmt.Errorf("%s must end with 0 (unbounded)", key)
	}
	return nil
}

// RunTimeout is the per-run budget.
func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.Crawler.RunTimeoutSeconds) * time.Second
}

// Location returns the timezone review dates are resolved in.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Crawler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
