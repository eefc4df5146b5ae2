package config

import "time"

// ScannerConfig holds deterministic scan settings
type ScannerConfig struct {
	ClassifierThreshold float64
	MaxBodySize         int
	Weights             WeightsConfig
}

// WeightsConfig holds per-severity score contributions
type WeightsConfig struct {
	Info     float64
	Low      float64
	Medium   float64
	High     float64
	Critical float64
}

// ClassifierConfig holds semantic classifier settings
type ClassifierConfig struct {
	Provider    string
	Timeout     time.Duration
	MaxTextSize int
	OpenAI      OpenAIConfig
	Bedrock     BedrockConfig
	Gemini      GeminiConfig
}

// OpenAIConfig holds OpenAI-specific configuration
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// BedrockConfig holds AWS Bedrock-specific configuration
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// GeminiConfig holds Google Gemini-specific configuration
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// QuarantineConfig holds quarantine lifecycle settings
type QuarantineConfig struct {
	Expiry         time.Duration
	SweepFrequency time.Duration
}

// StorageConfig holds storage backend settings
type StorageConfig struct {
	Type       string
	SQLitePath string
	MySQLDSN   string
}

// AllowlistConfig holds trusted sender settings
type AllowlistConfig struct {
	Domains []string
	Brands  map[string][]string
}

// RouterConfig holds delivery routing settings
type RouterConfig struct {
	CleanBuffer int
}

// GetScanner returns the scanner configuration
func (c *Config) GetScanner() ScannerConfig {
	return ScannerConfig{
		ClassifierThreshold: c.GetFloat64("scanner.classifier_threshold"),
		MaxBodySize:         c.GetInt("scanner.max_body_size"),
		Weights: WeightsConfig{
			Info:     c.GetFloat64("scanner.weights.info"),
			Low:      c.GetFloat64("scanner.weights.low"),
			Medium:   c.GetFloat64("scanner.weights.medium"),
			High:     c.GetFloat64("scanner.weights.high"),
			Critical: c.GetFloat64("scanner.weights.critical"),
		},
	}
}

// GetClassifier returns the classifier configuration
func (c *Config) GetClassifier() (ClassifierConfig, error) {
	timeout, err := c.GetDuration("classifier.timeout")
	if err != nil {
		return ClassifierConfig{}, err
	}
	return ClassifierConfig{
		Provider:    c.GetString("classifier.provider"),
		Timeout:     timeout,
		MaxTextSize: c.GetInt("classifier.max_text_size"),
		OpenAI: OpenAIConfig{
			APIKey:      c.GetString("classifier.openai.api_key"),
			ModelName:   c.GetString("classifier.openai.model_name"),
			MaxTokens:   c.GetInt("classifier.openai.max_tokens"),
			Temperature: c.GetFloat64("classifier.openai.temperature"),
			TopP:        c.GetFloat64("classifier.openai.top_p"),
		},
		Bedrock: BedrockConfig{
			Region:      c.GetString("classifier.bedrock.region"),
			ModelID:     c.GetString("classifier.bedrock.model_id"),
			MaxTokens:   c.GetInt("classifier.bedrock.max_tokens"),
			Temperature: c.GetFloat64("classifier.bedrock.temperature"),
			TopP:        c.GetFloat64("classifier.bedrock.top_p"),
		},
		Gemini: GeminiConfig{
			APIKey:      c.GetString("classifier.gemini.api_key"),
			ModelName:   c.GetString("classifier.gemini.model_name"),
			MaxTokens:   c.GetInt("classifier.gemini.max_tokens"),
			Temperature: c.GetFloat64("classifier.gemini.temperature"),
			TopP:        c.GetFloat64("classifier.gemini.top_p"),
		},
	}, nil
}

// GetQuarantine returns the quarantine configuration
func (c *Config) GetQuarantine() (QuarantineConfig, error) {
	expiry, err := c.GetDuration("quarantine.expiry")
	if err != nil {
		return QuarantineConfig{}, err
	}
	freq, err := c.GetDuration("quarantine.sweep_frequency")
	if err != nil {
		return QuarantineConfig{}, err
	}
	return QuarantineConfig{Expiry: expiry, SweepFrequency: freq}, nil
}

// GetStorage returns the storage configuration
func (c *Config) GetStorage() StorageConfig {
	return StorageConfig{
		Type:       c.GetString("storage.type"),
		SQLitePath: c.GetString("storage.sqlite_path"),
		MySQLDSN:   c.GetString("storage.mysql_dsn"),
	}
}

// GetAllowlist returns the allowlist configuration
func (c *Config) GetAllowlist() AllowlistConfig {
	return AllowlistConfig{
		Domains: c.GetStringSlice("allowlist.domains"),
		Brands:  c.v.GetStringMapStringSlice("allowlist.brands"),
	}
}

// GetRouter returns the router configuration
func (c *Config) GetRouter() RouterConfig {
	return RouterConfig{CleanBuffer: c.GetInt("router.clean_buffer")}
}
