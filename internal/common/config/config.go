// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Model     ModelConfig     `mapstructure:"model"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

func (h HTTPConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(h.ReadTimeout) * time.Millisecond
}

func (h HTTPConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(h.WriteTimeout) * time.Millisecond
}

func (h HTTPConfig) ShutdownTimeoutDuration() time.Duration {
	return time.Duration(h.ShutdownTimeout) * time.Millisecond
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig selects the domain store backing entity resolution and the
// mutation boundary.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // "postgres" or "memory"
}

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// ModelConfig holds settings for the structured completion service.
type ModelConfig struct {
	BaseURL            string `mapstructure:"base_url"`
	APIKey             string `mapstructure:"api_key"`
	Timeout            int    `mapstructure:"timeout"` // milliseconds
	MaxRetries         int    `mapstructure:"max_retries"`
	ClassifierCacheTTL int    `mapstructure:"classifier_cache_ttl"` // milliseconds, 0 disables
}

func (m ModelConfig) TimeoutDuration() time.Duration {
	return time.Duration(m.Timeout) * time.Millisecond
}

func (m ModelConfig) ClassifierCacheTTLDuration() time.Duration {
	return time.Duration(m.ClassifierCacheTTL) * time.Millisecond
}

// AssistantConfig tunes the conversational pipeline.
type AssistantConfig struct {
	DefaultLocale       string `mapstructure:"default_locale"`
	Debug               bool   `mapstructure:"debug"`
	MaxClarifyRounds    int    `mapstructure:"max_clarify_rounds"`
	MaxQuestions        int    `mapstructure:"max_questions"`
	ConfirmPreviewItems int    `mapstructure:"confirm_preview_items"`
	ResolverSearchLimit int    `mapstructure:"resolver_search_limit"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
