package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig() *Config {
	return NewFromViper(NewEmptyViper())
}

func TestDefaults(t *testing.T) {
	cfg := defaultConfig()

	scanner := cfg.GetScanner()
	assert.Equal(t, 0.3, scanner.ClassifierThreshold)
	assert.Equal(t, 65536, scanner.MaxBodySize)
	assert.Equal(t, 0.05, scanner.Weights.Info)
	assert.Equal(t, 0.15, scanner.Weights.Low)
	assert.Equal(t, 0.35, scanner.Weights.Medium)
	assert.Equal(t, 0.6, scanner.Weights.High)
	assert.Equal(t, 1.0, scanner.Weights.Critical)

	classifier, err := cfg.GetClassifier()
	require.NoError(t, err)
	assert.Equal(t, "noop", classifier.Provider)
	assert.Equal(t, 5*time.Second, classifier.Timeout)

	quarantine, err := cfg.GetQuarantine()
	require.NoError(t, err)
	assert.Equal(t, 168*time.Hour, quarantine.Expiry)
	assert.Equal(t, time.Hour, quarantine.SweepFrequency)

	assert.Equal(t, "memory", cfg.GetStorage().Type)
	assert.Empty(t, cfg.GetAllowlist().Domains)
}

func TestOverrides(t *testing.T) {
	v := NewEmptyViper()
	v.Set("classifier.provider", "openai")
	v.Set("classifier.timeout", "2s")
	v.Set("quarantine.expiry", "24h")
	v.Set("allowlist.domains", []string{"example.com"})
	cfg := NewFromViper(v)

	classifier, err := cfg.GetClassifier()
	require.NoError(t, err)
	assert.Equal(t, "openai", classifier.Provider)
	assert.Equal(t, 2*time.Second, classifier.Timeout)

	quarantine, err := cfg.GetQuarantine()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, quarantine.Expiry)

	assert.Equal(t, []string{"example.com"}, cfg.GetAllowlist().Domains)
}

func TestBadDuration(t *testing.T) {
	v := NewEmptyViper()
	v.Set("classifier.timeout", "not-a-duration")
	cfg := NewFromViper(v)

	_, err := cfg.GetClassifier()
	assert.Error(t, err)
}
