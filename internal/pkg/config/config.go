package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Map       MapConfig       `mapstructure:"map"`
	Comments  CommentsConfig  `mapstructure:"comments"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

// TemporalConfig selects the comment submitter. When disabled, comments are
// confirmed directly against Postgres.
type TemporalConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// MapConfig tunes clustering and nearby lookups.
type MapConfig struct {
	ClusterThresholdPx float64 `mapstructure:"cluster_threshold_px"`
	MaxRadiusM         float64 `mapstructure:"max_radius_m"`
	MaxMarkers         int     `mapstructure:"max_markers"`
	CacheTTLSeconds    int     `mapstructure:"cache_ttl_seconds"`
}

// CommentsConfig bounds the in-process comment page cache.
type CommentsConfig struct {
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`
	CacheMaxEntries int `mapstructure:"cache_max_entries"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "neargrid")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "neargrid")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("temporal.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "neargrid-comments")
	v.SetDefault("map.cluster_threshold_px", 35)
	v.SetDefault("map.max_radius_m", 50000)
	v.SetDefault("map.max_markers", 300)
	v.SetDefault("map.cache_ttl_seconds", 30)
	v.SetDefault("comments.cache_ttl_seconds", 60)
	v.SetDefault("comments.cache_max_entries", 10000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: NEARGRID_DATABASE_HOST → database.host
	v.SetEnvPrefix("NEARGRID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	if c.Temporal.Enabled && (c.Temporal.HostPort == "" || c.Temporal.TaskQueue == "") {
		errs = append(errs, "temporal.host_port and temporal.task_queue are required when temporal is enabled")
	}
	if c.Map.ClusterThresholdPx <= 0 {
		errs = append(errs, "map.cluster_threshold_px must be positive")
	}
	if c.Map.MaxRadiusM <= 0 {
		errs = append(errs, "map.max_radius_m must be positive")
	}
	if c.Map.MaxMarkers <= 0 {
		errs = append(errs, "map.max_markers must be positive")
	}
	if c.Comments.CacheTTLSeconds <= 0 {
		errs = append(errs, "comments.cache_ttl_seconds must be positive")
	}
	if c.Comments.CacheMaxEntries <= 0 {
		errs = append(errs, "comments.cache_max_entries must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
