package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName        string `mapstructure:"app_name"`
	Env            string `mapstructure:"app_env"`
	LogLevel       string `mapstructure:"log_level"`
	JobsFile       string `mapstructure:"jobs_file"`
	PublishersFile string `mapstructure:"publishers_file"`

	UserAgent      string            `mapstructure:"user_agent"`
	CertPath       string            `mapstructure:"cert_path"`
	VerifyPeer     bool              `mapstructure:"verify_peer"`
	DefaultHeaders map[string]string `mapstructure:"-"`

	ConnectTimeoutSeconds int64         `mapstructure:"connect_timeout_seconds"`
	ExecuteTimeoutSeconds int64         `mapstructure:"execute_timeout_seconds"`
	ConnectTimeout        time.Duration `mapstructure:"-"`
	ExecuteTimeout        time.Duration `mapstructure:"-"`

	RunIntervalSeconds int64         `mapstructure:"run_interval_seconds"`
	RunInterval        time.Duration `mapstructure:"-"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

// Load reads configuration from configs/.env, an optional configs/fetcher.{yaml,json}
// and environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("fetcher")
	v.AddConfigPath("./configs")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.AutomaticEnv()
	return decode(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "samvad-fetch")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("jobs_file", "./configs/jobs.yaml")
	v.SetDefault("publishers_file", "./configs/publishers.yaml")
	v.SetDefault("user_agent", "samvad-fetch/1.0")
	v.SetDefault("cert_path", "")
	v.SetDefault("verify_peer", false)
	v.SetDefault("default_headers", map[string]string{})
	v.SetDefault("connect_timeout_seconds", 120)
	v.SetDefault("execute_timeout_seconds", 250)
	v.SetDefault("run_interval_seconds", 0) // 0 runs the jobs once
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/journal.db")
	v.SetDefault("storage_ttl_seconds", int64((7*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// DEFAULT_HEADERS may arrive from the environment as a JSON object string.
	headers, err := cast.ToStringMapStringE(v.Get("default_headers"))
	if err != nil {
		return nil, fmt.Errorf("invalid default_headers: %w", err)
	}
	cfg.DefaultHeaders = headers

	if cfg.ConnectTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid connect_timeout_seconds (must be positive seconds)")
	}
	if cfg.ExecuteTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid execute_timeout_seconds (must be positive seconds)")
	}
	cfg.ConnectTimeout = time.Duration(cfg.ConnectTimeoutSeconds) * time.Second
	cfg.ExecuteTimeout = time.Duration(cfg.ExecuteTimeoutSeconds) * time.Second

	if cfg.RunIntervalSeconds < 0 {
		return nil, fmt.Errorf("invalid run_interval_seconds (must not be negative)")
	}
	cfg.RunInterval = time.Duration(cfg.RunIntervalSeconds) * time.Second

	if cfg.StorageTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second

	return &cfg, nil
}
