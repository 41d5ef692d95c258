package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"github.com/raysh454/freename/internal/checker"
	"github.com/raysh454/freename/internal/logging"
	"github.com/raysh454/freename/internal/metrics"
	"github.com/raysh454/freename/internal/webclient"
	"github.com/raysh454/freename/internal/wordlist"
)

// Application holds the components of one run. Build it with New, call Run once,
// then Close.
type Application struct {
	Config *Config
	Logger logging.Logger
	RunID  string

	fs       afero.Fs
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	wc       webclient.WebClient
	sleeper  webclient.Sleeper
	engine   *webclient.Engine
	checker  *checker.Checker
}

type Option func(*Application)

// WithFs replaces the OS filesystem used for the wordlist and the output file.
func WithFs(fs afero.Fs) Option {
	return func(a *Application) { a.fs = fs }
}

// WithLogger replaces the stdout JSON logger.
func WithLogger(l logging.Logger) Option {
	return func(a *Application) { a.Logger = l }
}

// WithWebClient skips the backend registry and sends through wc.
func WithWebClient(wc webclient.WebClient) Option {
	return func(a *Application) { a.wc = wc }
}

// WithSleeper replaces the backoff sleep, for tests.
func WithSleeper(s webclient.Sleeper) Option {
	return func(a *Application) { a.sleeper = s }
}

// New validates cfg and wires logger, webclient, engine and checker.
func New(cfg *Config, opts ...Option) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Application{
		Config:   cfg,
		RunID:    uuid.NewString(),
		fs:       afero.NewOsFs(),
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.Logger == nil {
		level, _ := logging.ParseLevel(cfg.Log.Level)
		a.Logger = logging.NewLogger(os.Stdout, "freename", level)
	}
	a.Logger = a.Logger.With(logging.Field{Key: "run_id", Value: a.RunID})
	a.metrics = metrics.New(a.registry)

	tmpl, err := checker.ParseTemplate(cfg.URLTemplate)
	if err != nil {
		return nil, fmt.Errorf("url template: %w", err)
	}
	classifier, err := checker.NewClassifier(cfg.Marker, cfg.MarkerSelector)
	if err != nil {
		return nil, fmt.Errorf("marker: %w", err)
	}

	if a.wc == nil {
		webclient.RegisterDefaultBackends()
		a.wc, err = webclient.NewWebClient(cfg.webClientConfig(), a.Logger)
		if err != nil {
			return nil, err
		}
	}

	engineOpts := []webclient.EngineOption{webclient.WithMetrics(a.metrics)}
	if a.sleeper != nil {
		engineOpts = append(engineOpts, webclient.WithSleeper(a.sleeper))
	}
	identity := webclient.DefaultIdentity().WithOverrides(cfg.HeaderOverrides())
	a.engine, err = webclient.NewEngine(a.wc, identity, cfg.engineConfig(), a.Logger, engineOpts...)
	if err != nil {
		_ = a.wc.Close()
		return nil, err
	}

	a.checker = checker.New(a.engine, tmpl, classifier, a.Logger, a.metrics)
	return a, nil
}

// Gatherer exposes the run's metrics registry.
func (a *Application) Gatherer() prometheus.Gatherer {
	return a.registry
}

// Run loads the wordlist, checks every candidate and returns the free ones in
// wordlist order. When Output is set the free list is written there too. A
// canceled ctx stops the run; the candidates found so far are still returned.
func (a *Application) Run(ctx context.Context) ([]string, error) {
	words, err := wordlist.Load(a.fs, a.Config.WordlistPath)
	if err != nil {
		return nil, fmt.Errorf("load wordlist: %w", err)
	}
	a.Logger.Info("wordlist loaded",
		logging.Field{Key: "path", Value: a.Config.WordlistPath},
		logging.Field{Key: "count", Value: len(words)})

	if a.Config.Metrics.Addr != "" {
		srv, err := metrics.Listen(a.Config.Metrics.Addr, a.registry, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("start metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	free, _ := a.checker.Available(ctx, words)

	if a.Config.Output != "" {
		if err := wordlist.Write(a.fs, a.Config.Output, free); err != nil {
			return free, fmt.Errorf("write output: %w", err)
		}
		a.Logger.Info("free usernames written",
			logging.Field{Key: "path", Value: a.Config.Output},
			logging.Field{Key: "count", Value: len(free)})
	}

	if err := ctx.Err(); err != nil {
		return free, fmt.Errorf("run interrupted: %w", err)
	}
	return free, nil
}

// Close releases the webclient backend.
func (a *Application) Close() error {
	if a == nil {
		return errors.New("application is nil")
	}
	if a.wc == nil {
		return nil
	}
	return a.wc.Close()
}
