// Package checker walks a candidate list against a profile lookup URL and
// reports which candidates are unregistered.
package checker

import (
	"context"
	"iter"
	"net/http"
	"time"

	"github.com/raysh454/freename/internal/logging"
	"github.com/raysh454/freename/internal/metrics"
	"github.com/raysh454/freename/internal/webclient"
)

// Requester is the part of webclient.Engine the checker needs.
type Requester interface {
	Request(ctx context.Context, method, url string, opts *webclient.RequestOptions) (*webclient.Response, error)
}

type Status int

const (
	// StatusFree means the lookup page carried the marker.
	StatusFree Status = iota + 1
	StatusTaken
	// StatusSkipped means no verdict: the request failed or the body was unreadable.
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusFree:
		return "free"
	case StatusTaken:
		return "taken"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

type Result struct {
	Candidate string
	URL       string
	Status    Status
	// Err is set for StatusSkipped.
	Err error
}

type Summary struct {
	Total   int
	Free    int
	Taken   int
	Skipped int
	Elapsed time.Duration
}

// Checker issues one lookup per candidate, strictly one at a time.
type Checker struct {
	req        Requester
	tmpl       *Template
	classifier *Classifier
	logger     logging.Logger
	metrics    *metrics.Metrics
}

func New(req Requester, tmpl *Template, classifier *Classifier, logger logging.Logger, m *metrics.Metrics) *Checker {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Checker{
		req:        req,
		tmpl:       tmpl,
		classifier: classifier,
		logger:     logger.With(logging.Field{Key: "component", Value: "checker"}),
		metrics:    m,
	}
}

// Check lazily yields one Result per candidate in list order. Nothing is sent
// until the sequence is ranged over; breaking out stops further requests, and
// ranging again starts over from the first candidate. A canceled ctx ends the
// sequence; the candidate in flight when it is canceled is dropped, not yielded.
func (c *Checker) Check(ctx context.Context, candidates []string) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		c.logger.Info("checking usernames", logging.Field{Key: "count", Value: len(candidates)})
		c.metrics.SetRemaining(len(candidates))

		canceled := func() bool {
			if ctx.Err() == nil {
				return false
			}
			c.logger.Warn("run canceled", logging.Field{Key: "error", Value: ctx.Err().Error()})
			return true
		}
		for _, candidate := range candidates {
			if canceled() {
				return
			}
			res := c.CheckOne(ctx, candidate)
			if canceled() {
				return
			}
			c.metrics.ObserveCandidate(res.Status.String())
			if !yield(res) {
				return
			}
		}
	}
}

// CheckOne looks up a single candidate.
func (c *Checker) CheckOne(ctx context.Context, candidate string) Result {
	url := c.tmpl.Format(candidate)
	res := Result{Candidate: candidate, URL: url}

	resp, err := c.req.Request(ctx, http.MethodGet, url, nil)
	if err != nil {
		res.Status = StatusSkipped
		res.Err = err
		if ctx.Err() != nil {
			return res
		}
		c.logger.Warn("skipped username",
			logging.Field{Key: "username", Value: candidate},
			logging.Field{Key: "error", Value: err.Error()})
		return res
	}

	free, err := c.classifier.IsAvailable(resp.Body)
	switch {
	case err != nil:
		res.Status = StatusSkipped
		res.Err = err
		c.logger.Warn("skipped username",
			logging.Field{Key: "username", Value: candidate},
			logging.Field{Key: "error", Value: err.Error()})
	case free:
		res.Status = StatusFree
		c.logger.Info("username is free", logging.Field{Key: "username", Value: candidate})
	default:
		res.Status = StatusTaken
		c.logger.Debug("username is taken", logging.Field{Key: "username", Value: candidate})
	}
	return res
}

// Available drains Check and returns the free candidates in list order.
func (c *Checker) Available(ctx context.Context, candidates []string) ([]string, Summary) {
	start := time.Now()
	var free []string
	var sum Summary
	for res := range c.Check(ctx, candidates) {
		sum.Total++
		switch res.Status {
		case StatusFree:
			sum.Free++
			free = append(free, res.Candidate)
		case StatusTaken:
			sum.Taken++
		case StatusSkipped:
			sum.Skipped++
		}
	}
	sum.Elapsed = time.Since(start)

	c.logger.Info("check finished",
		logging.Field{Key: "checked", Value: sum.Total},
		logging.Field{Key: "free", Value: sum.Free},
		logging.Field{Key: "taken", Value: sum.Taken},
		logging.Field{Key: "skipped", Value: sum.Skipped},
		logging.Field{Key: "elapsed", Value: sum.Elapsed.String()})
	return free, sum
}
