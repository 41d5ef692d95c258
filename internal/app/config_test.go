package app

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/freename/internal/webclient"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "words.txt", cfg.WordlistPath)
	assert.Equal(t, "https://steamcommunity.com/id/{}", cfg.URLTemplate)
	assert.Equal(t, "The specified profile could not be found.", cfg.Marker)
	assert.Equal(t, 10*time.Second, cfg.RateLimitSleep)
	assert.Equal(t, 0, cfg.MaxAttempts)
	assert.Equal(t, "nethttp", cfg.Backend)
	assert.False(t, cfg.Breaker.Enabled)
}

func TestConfig_ValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing wordlist", func(c *Config) { c.WordlistPath = "" }, "WordlistPath is required"},
		{"missing marker", func(c *Config) { c.Marker = "" }, "Marker is required"},
		{"zero sleep", func(c *Config) { c.RateLimitSleep = 0 }, "RateLimitSleep must be greater than"},
		{"negative attempts", func(c *Config) { c.MaxAttempts = -1 }, "MaxAttempts must be at least"},
		{"unknown backend", func(c *Config) { c.Backend = "curl" }, "Backend must be one of"},
		{"unknown log level", func(c *Config) { c.Log.Level = "verbose" }, "Log.Level must be one of"},
		{"negative idle wait", func(c *Config) { c.Chromedp.IdleAfter = -time.Second }, "Chromedp.IdleAfter must be at least"},
		{"breaker threshold", func(c *Config) { c.Breaker.ConsecutiveFailures = 0 }, "Breaker.ConsecutiveFailures must be at least"},
		{"template without placeholder", func(c *Config) { c.URLTemplate = "https://example.com/id/" }, "url_template"},
		{"template placeholder in host", func(c *Config) { c.URLTemplate = "https://{}.example.com/" }, "url_template"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_ValidateCaseInsensitive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "NetHTTP"
	cfg.Log.Level = "DEBUG"
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "nethttp", string(cfg.webClientConfig().Client))
}

func TestConfig_HeaderOverrides(t *testing.T) {
	cfg := DefaultConfig()
	assert.Nil(t, cfg.HeaderOverrides())

	cfg.Headers = map[string]string{"user-agent": "freename-test", "x-extra": "1"}
	h := cfg.HeaderOverrides()
	assert.Equal(t, http.Header{
		"User-Agent": {"freename-test"},
		"X-Extra":    {"1"},
	}, h)
}

func TestConfig_EngineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 3
	cfg.Breaker.Enabled = true

	ec := cfg.engineConfig()
	assert.Equal(t, 3, ec.MaxAttempts)
	assert.Equal(t, 10*time.Second, ec.RateLimitSleep)
	assert.Equal(t, 30*time.Second, ec.RequestTimeout)
	assert.True(t, ec.Breaker.Enabled)
	assert.Equal(t, uint32(5), ec.Breaker.ConsecutiveFailures)
}

func TestConfig_WebClientConfig(t *testing.T) {
	cfg := DefaultConfig()
	wc := cfg.webClientConfig()
	assert.True(t, wc.Headless)
	assert.Zero(t, wc.IdleAfter)

	cfg.Backend = "chromedp"
	cfg.Chromedp = ChromedpConfig{Headless: false, IdleAfter: 500 * time.Millisecond}
	wc = cfg.webClientConfig()
	assert.Equal(t, webclient.ClientChromedp, wc.Client)
	assert.False(t, wc.Headless)
	assert.Equal(t, 500*time.Millisecond, wc.IdleAfter)
	assert.Equal(t, 30*time.Second, wc.Timeout)
}
