package webclient

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/raysh454/freename/internal/logging"
)

// BreakerConfig configures the optional circuit breaker around each send.
// Transport failures and 5xx responses count against it; 429 and other 4xx do not.
type BreakerConfig struct {
	Enabled bool
	// ConsecutiveFailures trips the breaker. Zero means 5.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before a trial request.
	// Zero means 60s.
	OpenTimeout time.Duration
}

var errServerStatus = errors.New("server error status")

func newBreaker(cfg BreakerConfig, logger logging.Logger) *gobreaker.CircuitBreaker {
	if !cfg.Enabled {
		return nil
	}
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "webclient",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// the caller going away says nothing about the target
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				logging.Field{Key: "from", Value: from.String()},
				logging.Field{Key: "to", Value: to.String()})
		},
	})
}

// doWithBreaker runs one send through cb. A 5xx response is returned as a
// response, not an error, after being counted as a breaker failure.
func doWithBreaker(cb *gobreaker.CircuitBreaker, send func() (*Response, error)) (*Response, error) {
	if cb == nil {
		return send()
	}

	var resp *Response
	_, err := cb.Execute(func() (interface{}, error) {
		r, err := send()
		if err != nil {
			return nil, err
		}
		resp = r
		if r.StatusCode >= 500 {
			return nil, errServerStatus
		}
		return r, nil
	})
	if errors.Is(err, errServerStatus) {
		return resp, nil
	}
	return resp, err
}

func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
