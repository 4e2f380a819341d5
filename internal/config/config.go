package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all service configuration.
type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	GRPC          GRPCConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	OpenAI        OpenAIConfig
	Transcription TranscriptionConfig
	Extraction    ExtractionConfig
	Reconcile     ReconcileConfig
	Upload        UploadConfig
	Log           LogConfig
	Metrics       MetricsConfig
}

type AppConfig struct {
	Name    string
	Env     string
	Version string
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodySize     int64
}

type GRPCConfig struct {
	Enabled bool
	Addr    string
}

// DatabaseConfig selects and configures the parts store.
type DatabaseConfig struct {
	Driver string // mysql, sqlite

	Host     string
	Port     int
	User     string
	Password string
	DBName   string

	SQLitePath string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

type RedisConfig struct {
	Enabled        bool
	Addr           string
	Password       string
	DB             int
	PoolSize       int
	IdempotencyTTL time.Duration
}

type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

type TranscriptionConfig struct {
	Provider       string // openai, whisper
	Model          string
	Language       string
	WhisperBaseURL string
	WhisperPath    string
	Timeout        time.Duration
}

type ExtractionConfig struct {
	Timeout  time.Duration
	CacheTTL time.Duration
}

type ReconcileConfig struct {
	// Atomic applies a change set in a single transaction and rolls it back
	// when any change is rejected.
	Atomic bool
}

type UploadConfig struct {
	Dir       string
	MaxSizeMB int64
}

type LogConfig struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	Output     string // stdout, stderr, or file path
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration with this precedence (highest first):
//  1. Environment variables with the PARTS_ prefix (PARTS_OPENAI_API_KEY)
//  2. config.yaml in the working directory or /etc/autoparts
//  3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/autoparts")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return fromViper(v)
}

// LoadFile reads configuration from an explicit file path, still honouring
// environment overrides.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("PARTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setBoolDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name:    v.GetString("app.name"),
			Env:     v.GetString("app.env"),
			Version: v.GetString("app.version"),
		},
		HTTP: HTTPConfig{
			Addr:            v.GetString("http.addr"),
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			MaxBodySize:     v.GetInt64("http.max_body_size"),
		},
		GRPC: GRPCConfig{
			Enabled: v.GetBool("grpc.enabled"),
			Addr:    v.GetString("grpc.addr"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SQLitePath:      v.GetString("database.sqlite_path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Enabled:        v.GetBool("redis.enabled"),
			Addr:           v.GetString("redis.addr"),
			Password:       v.GetString("redis.password"),
			DB:             v.GetInt("redis.db"),
			PoolSize:       v.GetInt("redis.pool_size"),
			IdempotencyTTL: v.GetDuration("redis.idempotency_ttl"),
		},
		OpenAI: OpenAIConfig{
			APIKey:    v.GetString("openai.api_key"),
			BaseURL:   v.GetString("openai.base_url"),
			Model:     v.GetString("openai.model"),
			MaxTokens: v.GetInt("openai.max_tokens"),
		},
		Transcription: TranscriptionConfig{
			Provider:       v.GetString("transcription.provider"),
			Model:          v.GetString("transcription.model"),
			Language:       v.GetString("transcription.language"),
			WhisperBaseURL: v.GetString("transcription.whisper_base_url"),
			WhisperPath:    v.GetString("transcription.whisper_path"),
			Timeout:        v.GetDuration("transcription.timeout"),
		},
		Extraction: ExtractionConfig{
			Timeout:  v.GetDuration("extraction.timeout"),
			CacheTTL: v.GetDuration("extraction.cache_ttl"),
		},
		Reconcile: ReconcileConfig{
			Atomic: v.GetBool("reconcile.atomic"),
		},
		Upload: UploadConfig{
			Dir:       v.GetString("upload.dir"),
			MaxSizeMB: v.GetInt64("upload.max_size_mb"),
		},
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Output:     v.GetString("log.output"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("metrics.enabled"),
			Path:    v.GetString("metrics.path"),
		},
	}

	// A zero extraction cache TTL disables the cache, so only fill it in when
	// the key was never set.
	if !v.IsSet("extraction.cache_ttl") {
		cfg.Extraction.CacheTTL = 10 * time.Minute
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setBoolDefaults registers defaults for switches that are on unless turned off.
func setBoolDefaults(v *viper.Viper) {
	v.SetDefault("grpc.enabled", true)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("metrics.enabled", true)
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "autoparts-inventory"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Version == "" {
		cfg.App.Version = "dev"
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":3000"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 30 * time.Second
	}
	// Voice commands wait on transcription and extraction in sequence.
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 120 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 5 * time.Second
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.GRPC.Addr == "" {
		cfg.GRPC.Addr = ":50051"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "mysql"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 3306
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "root"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "autoparts"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "autoparts.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 10
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5 * time.Minute
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 20
	}
	if cfg.Redis.IdempotencyTTL == 0 {
		cfg.Redis.IdempotencyTTL = 24 * time.Hour
	}

	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-3.5-turbo"
	}
	if cfg.OpenAI.MaxTokens == 0 {
		cfg.OpenAI.MaxTokens = 500
	}

	if cfg.Transcription.Provider == "" {
		cfg.Transcription.Provider = "openai"
	}
	if cfg.Transcription.Model == "" {
		cfg.Transcription.Model = "whisper-1"
	}
	if cfg.Transcription.Language == "" {
		cfg.Transcription.Language = "ru"
	}
	if cfg.Transcription.WhisperBaseURL == "" {
		cfg.Transcription.WhisperBaseURL = "http://localhost:8000"
	}
	if cfg.Transcription.WhisperPath == "" {
		cfg.Transcription.WhisperPath = "/transcribe/"
	}
	if cfg.Transcription.Timeout == 0 {
		cfg.Transcription.Timeout = 60 * time.Second
	}
	if cfg.Extraction.Timeout == 0 {
		cfg.Extraction.Timeout = 30 * time.Second
	}

	if cfg.Upload.Dir == "" {
		cfg.Upload.Dir = "uploads"
	}
	if cfg.Upload.MaxSizeMB == 0 {
		cfg.Upload.MaxSizeMB = 25
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 5
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 30
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("config: database.driver must be mysql or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("config: database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("config: database.max_idle_conns (%d) cannot exceed max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Transcription.Provider {
	case "openai", "whisper":
	default:
		return fmt.Errorf("config: transcription.provider must be openai or whisper, got %q", c.Transcription.Provider)
	}
	if c.OpenAI.MaxTokens < 0 {
		return fmt.Errorf("config: openai.max_tokens cannot be negative")
	}
	if c.Extraction.CacheTTL < 0 {
		return fmt.Errorf("config: extraction.cache_ttl cannot be negative")
	}
	if c.Upload.MaxSizeMB < 0 {
		return fmt.Errorf("config: upload.max_size_mb cannot be negative")
	}
	return nil
}
