package webclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/raysh454/freename/internal/logging"
	"github.com/raysh454/freename/internal/metrics"
)

// EngineConfig tunes the retry loop.
type EngineConfig struct {
	// RateLimitSleep is the fixed wait after every 429. Zero means 10s.
	RateLimitSleep time.Duration

	// MaxAttempts caps the total sends per call. Zero retries a 429 forever.
	MaxAttempts int

	// RequestTimeout bounds each send. Zero leaves it to the backend.
	RequestTimeout time.Duration

	Breaker BreakerConfig
}

const DefaultRateLimitSleep = 10 * time.Second

// Request outcomes as recorded in metrics.
const (
	OutcomeSuccess     = "success"
	OutcomeRateLimited = "rate_limited"
	OutcomeHTTPError   = "http_error"
	OutcomeTransport   = "transport_error"
	OutcomeCircuitOpen = "circuit_open"
	OutcomeCanceled    = "canceled"
)

// Engine sends requests with a fixed identity and retries rate-limited ones.
// Calls are synchronous; the only wait is the backoff sleep after a 429.
type Engine struct {
	wc       WebClient
	identity *Identity
	cfg      EngineConfig
	sleeper  Sleeper
	breaker  *gobreaker.CircuitBreaker
	metrics  *metrics.Metrics
	logger   logging.Logger
}

type EngineOption func(*Engine)

// WithSleeper replaces the timer-based sleep, mostly for tests.
func WithSleeper(s Sleeper) EngineOption {
	return func(e *Engine) { e.sleeper = s }
}

func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine wires an Engine over wc. A nil identity means DefaultIdentity().
func NewEngine(wc WebClient, identity *Identity, cfg EngineConfig, logger logging.Logger, opts ...EngineOption) (*Engine, error) {
	if wc == nil {
		return nil, fmt.Errorf("engine: webclient is nil")
	}
	if cfg.MaxAttempts < 0 {
		return nil, fmt.Errorf("engine: max attempts must be >= 0, got %d", cfg.MaxAttempts)
	}
	if cfg.RateLimitSleep <= 0 {
		cfg.RateLimitSleep = DefaultRateLimitSleep
	}
	if identity == nil {
		identity = DefaultIdentity()
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	logger = logger.With(logging.Field{Key: "component", Value: "webclient"})

	e := &Engine{
		wc:       wc,
		identity: identity,
		cfg:      cfg,
		sleeper:  TimerSleeper{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.breaker = newBreaker(cfg.Breaker, logger)
	return e, nil
}

// Get is Request with GET and no options.
func (e *Engine) Get(ctx context.Context, rawURL string) (*Response, error) {
	return e.Request(ctx, http.MethodGet, rawURL, nil)
}

// Request sends method rawURL and returns the response for any status below 400.
// A 429 sleeps RateLimitSleep and re-sends the identical request, without limit
// unless MaxAttempts is set. Anything else is returned as a *Failure.
func (e *Engine) Request(ctx context.Context, method, rawURL string, opts *RequestOptions) (*Response, error) {
	req, err := e.build(method, rawURL, opts)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		resp, err := e.send(ctx, req)
		if err != nil {
			return nil, e.transportFailure(ctx, req, attempt, err)
		}

		switch {
		case resp.StatusCode < http.StatusBadRequest:
			resp.Attempts = attempt
			e.metrics.ObserveRequest(OutcomeSuccess)
			return resp, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			if e.cfg.MaxAttempts > 0 && attempt >= e.cfg.MaxAttempts {
				e.logger.Error("rate limited, giving up",
					logging.Field{Key: "url", Value: req.URL},
					logging.Field{Key: "attempts", Value: attempt})
				e.metrics.ObserveRequest(OutcomeRateLimited)
				return nil, &Failure{
					Kind:       KindAttemptsExhausted,
					Method:     req.Method,
					URL:        req.URL,
					StatusCode: resp.StatusCode,
					Reason:     http.StatusText(resp.StatusCode),
					Attempts:   attempt,
				}
			}

			e.logger.Info("rate limited, sleeping",
				logging.Field{Key: "url", Value: req.URL},
				logging.Field{Key: "attempt", Value: attempt},
				logging.Field{Key: "sleep", Value: e.cfg.RateLimitSleep.String()})
			e.metrics.ObserveSleep()
			if err := e.sleeper.Sleep(ctx, e.cfg.RateLimitSleep); err != nil {
				e.metrics.ObserveRequest(OutcomeCanceled)
				return nil, &Failure{Kind: KindCanceled, Method: req.Method, URL: req.URL, Attempts: attempt, Err: err}
			}

		default:
			reason := http.StatusText(resp.StatusCode)
			e.logger.Error("bad request",
				logging.Field{Key: "url", Value: req.URL},
				logging.Field{Key: "status", Value: resp.StatusCode},
				logging.Field{Key: "reason", Value: reason})
			e.metrics.ObserveRequest(OutcomeHTTPError)
			return nil, &Failure{
				Kind:       KindHTTPStatus,
				Method:     req.Method,
				URL:        req.URL,
				StatusCode: resp.StatusCode,
				Reason:     reason,
				Attempts:   attempt,
			}
		}
	}
}

func (e *Engine) build(method, rawURL string, opts *RequestOptions) (*Request, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	invalid := func(err error) error {
		return &Failure{Kind: KindInvalidRequest, Method: method, URL: rawURL, Err: err}
	}
	if method == "" {
		return nil, invalid(fmt.Errorf("empty method"))
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, invalid(err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, invalid(fmt.Errorf("url must be absolute"))
	}

	body, isForm, err := opts.body()
	if err != nil {
		return nil, invalid(err)
	}

	var overrides http.Header
	if opts != nil {
		overrides = opts.Headers
	}
	headers := e.identity.Merge(overrides)
	if isForm && headers.Get("Content-Type") == "" {
		headers.Set("Content-Type", contentTypeForm)
	}

	return &Request{
		Method:  method,
		URL:     rawURL,
		Headers: headers,
		Body:    body,
	}, nil
}

func (e *Engine) send(ctx context.Context, req *Request) (*Response, error) {
	return doWithBreaker(e.breaker, func() (*Response, error) {
		attemptCtx := ctx
		if e.cfg.RequestTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, e.cfg.RequestTimeout)
			defer cancel()
		}
		return e.wc.Do(attemptCtx, req)
	})
}

func (e *Engine) transportFailure(ctx context.Context, req *Request, attempt int, err error) *Failure {
	f := &Failure{Method: req.Method, URL: req.URL, Attempts: attempt, Err: err}
	switch {
	case ctx.Err() != nil:
		f.Kind = KindCanceled
		f.Err = ctx.Err()
		e.metrics.ObserveRequest(OutcomeCanceled)
	case isBreakerRejection(err):
		f.Kind = KindCircuitOpen
		e.logger.Warn("circuit open, request not sent",
			logging.Field{Key: "url", Value: req.URL})
		e.metrics.ObserveRequest(OutcomeCircuitOpen)
	default:
		f.Kind = KindTransport
		e.logger.Warn("transport failure",
			logging.Field{Key: "url", Value: req.URL},
			logging.Field{Key: "attempt", Value: attempt},
			logging.Field{Key: "error", Value: err.Error()})
		e.metrics.ObserveRequest(OutcomeTransport)
	}
	return f
}
