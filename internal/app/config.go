package app

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/raysh454/freename/internal/checker"
	"github.com/raysh454/freename/internal/webclient"
)

// Config is everything a run needs. Keys match the config file, FREENAME_* env
// vars and the CLI flags.
type Config struct {
	WordlistPath   string            `mapstructure:"wordlist_path" validate:"required"`
	URLTemplate    string            `mapstructure:"url_template" validate:"required"`
	Marker         string            `mapstructure:"marker" validate:"required"`
	MarkerSelector string            `mapstructure:"marker_selector"`
	RateLimitSleep time.Duration     `mapstructure:"rate_limit_sleep" validate:"gt=0s"`
	MaxAttempts    int               `mapstructure:"max_attempts" validate:"gte=0"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout" validate:"gte=0s"`
	Backend        string            `mapstructure:"backend" validate:"oneofci=nethttp chromedp"`
	Breaker        BreakerConfig     `mapstructure:"breaker"`
	Chromedp       ChromedpConfig    `mapstructure:"chromedp"`
	Log            LogConfig         `mapstructure:"log"`
	Metrics        MetricsConfig     `mapstructure:"metrics"`
	Output         string            `mapstructure:"output"`
	Headers        map[string]string `mapstructure:"headers"`
}

type BreakerConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures" validate:"gte=1"`
	OpenTimeout         time.Duration `mapstructure:"open_timeout" validate:"gt=0s"`
}

// ChromedpConfig only applies to the chromedp backend.
type ChromedpConfig struct {
	Headless bool `mapstructure:"headless"`
	// IdleAfter waits for the tab to have no request in flight for this long
	// before reading the DOM. Zero reads right after navigation.
	IdleAfter time.Duration `mapstructure:"idle_after" validate:"gte=0s"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneofci=debug info warn warning error"`
}

type MetricsConfig struct {
	// Addr enables the /metrics endpoint when set, e.g. ":9090".
	Addr string `mapstructure:"addr"`
}

// DefaultConfig returns the defaults for a run against steamcommunity.com.
func DefaultConfig() *Config {
	return &Config{
		WordlistPath:   "words.txt",
		URLTemplate:    "https://steamcommunity.com/id/{}",
		Marker:         checker.DefaultMarker,
		MarkerSelector: "body",
		RateLimitSleep: webclient.DefaultRateLimitSleep,
		MaxAttempts:    0,
		RequestTimeout: 30 * time.Second,
		Backend:        string(webclient.ClientNetHTTP),
		Breaker: BreakerConfig{
			Enabled:             false,
			ConsecutiveFailures: 5,
			OpenTimeout:         60 * time.Second,
		},
		Chromedp: ChromedpConfig{
			Headless: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

var oneOfCaseInsensitive validator.Func = func(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	for _, allowed := range strings.Fields(fl.Param()) {
		if strings.EqualFold(value, allowed) {
			return true
		}
	}
	return false
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("oneofci", oneOfCaseInsensitive)
	return v
}

// Validate checks field constraints and that the URL template parses.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldError(fe))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := checker.ParseTemplate(c.URLTemplate); err != nil {
		return fmt.Errorf("invalid config: url_template: %w", err)
	}
	return nil
}

func fieldError(e validator.FieldError) string {
	field := e.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneofci":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, e.Param(), e.Value())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s, got %v", field, e.Param(), e.Value())
	case "gte":
		return fmt.Sprintf("%s must be at least %s, got %v", field, e.Param(), e.Value())
	default:
		return fmt.Sprintf("%s failed %s", field, e.Tag())
	}
}

// HeaderOverrides converts Headers into an http.Header with canonical keys.
func (c *Config) HeaderOverrides() http.Header {
	if len(c.Headers) == 0 {
		return nil
	}
	h := make(http.Header, len(c.Headers))
	for k, v := range c.Headers {
		h.Set(k, v)
	}
	return h
}

func (c *Config) webClientConfig() webclient.Config {
	return webclient.Config{
		Client:    webclient.Client(strings.ToLower(c.Backend)),
		Timeout:   c.RequestTimeout,
		Headless:  c.Chromedp.Headless,
		IdleAfter: c.Chromedp.IdleAfter,
	}
}

func (c *Config) engineConfig() webclient.EngineConfig {
	return webclient.EngineConfig{
		RateLimitSleep: c.RateLimitSleep,
		MaxAttempts:    c.MaxAttempts,
		RequestTimeout: c.RequestTimeout,
		Breaker: webclient.BreakerConfig{
			Enabled:             c.Breaker.Enabled,
			ConsecutiveFailures: c.Breaker.ConsecutiveFailures,
			OpenTimeout:         c.Breaker.OpenTimeout,
		},
	}
}
