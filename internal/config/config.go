package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/armourmail/")
	v.AddConfigPath("$HOME/.armourmail")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("ARMOURMAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Scanner defaults
	v.SetDefault("scanner.classifier_threshold", 0.3)
	v.SetDefault("scanner.max_body_size", 65536)
	v.SetDefault("scanner.weights.info", 0.05)
	v.SetDefault("scanner.weights.low", 0.15)
	v.SetDefault("scanner.weights.medium", 0.35)
	v.SetDefault("scanner.weights.high", 0.6)
	v.SetDefault("scanner.weights.critical", 1.0)

	// Classifier defaults
	v.SetDefault("classifier.provider", "noop")
	v.SetDefault("classifier.timeout", "5s")
	v.SetDefault("classifier.max_text_size", 8192)

	v.SetDefault("classifier.openai.api_key", "")
	v.SetDefault("classifier.openai.model_name", "gpt-4o-mini")
	v.SetDefault("classifier.openai.max_tokens", 512)
	v.SetDefault("classifier.openai.temperature", 0.0)
	v.SetDefault("classifier.openai.top_p", 0.9)

	v.SetDefault("classifier.bedrock.region", "us-east-1")
	v.SetDefault("classifier.bedrock.model_id", "anthropic.claude-v2")
	v.SetDefault("classifier.bedrock.max_tokens", 512)
	v.SetDefault("classifier.bedrock.temperature", 0.0)
	v.SetDefault("classifier.bedrock.top_p", 0.9)

	v.SetDefault("classifier.gemini.api_key", "")
	v.SetDefault("classifier.gemini.model_name", "gemini-pro")
	v.SetDefault("classifier.gemini.max_tokens", 512)
	v.SetDefault("classifier.gemini.temperature", 0.0)
	v.SetDefault("classifier.gemini.top_p", 0.9)

	// Quarantine defaults
	v.SetDefault("quarantine.expiry", "168h")
	v.SetDefault("quarantine.sweep_frequency", "1h")

	// Storage defaults
	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.sqlite_path", "/data/armourmail.db")
	v.SetDefault("storage.mysql_dsn", "user:password@tcp(localhost:3306)/armourmail")

	// Allowlist defaults
	v.SetDefault("allowlist.domains", []string{})
	v.SetDefault("allowlist.brands", map[string][]string{})

	// Router defaults
	v.SetDefault("router.clean_buffer", 128)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
