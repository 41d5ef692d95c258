// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/raysh454/freename/internal/logging"
	"github.com/raysh454/freename/internal/webclient"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
	Fields []map[string]any
}

func (l *DummyLogger) record(dst *[]string, msg string, fields []logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*dst = append(*dst, msg)
	m := make(map[string]any, len(fields)+1)
	m["msg"] = msg
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	l.Fields = append(l.Fields, m)
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) { l.record(&l.Debugs, msg, fields) }
func (l *DummyLogger) Info(msg string, fields ...logging.Field)  { l.record(&l.Infos, msg, fields) }
func (l *DummyLogger) Warn(msg string, fields ...logging.Field)  { l.record(&l.Warns, msg, fields) }
func (l *DummyLogger) Error(msg string, fields ...logging.Field) { l.record(&l.Errors, msg, fields) }

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// Count returns how many entries at any level had message msg.
func (l *DummyLogger) Count(msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, m := range l.Fields {
		if m["msg"] == msg {
			n++
		}
	}
	return n
}

// ─── Sleeper ───────────────────────────────────────────────────────────

// CountingSleeper implements webclient.Sleeper without waiting.
// Set Err to make every Sleep fail.
type CountingSleeper struct {
	mu        sync.Mutex
	Durations []time.Duration
	Err       error
}

func (s *CountingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.Durations = append(s.Durations, d)
	s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	return ctx.Err()
}

func (s *CountingSleeper) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Durations)
}

// ─── WebClient ─────────────────────────────────────────────────────────

// Step is one scripted answer from ScriptedWebClient.
type Step struct {
	Status int
	Body   string
	Err    error
}

// ScriptedWebClient implements webclient.WebClient by replaying Steps in order.
// Once the script runs out it answers 200 with an empty body.
type ScriptedWebClient struct {
	mu       sync.Mutex
	Steps    []Step
	Requests []*webclient.Request
}

func (d *ScriptedWebClient) Do(ctx context.Context, req *webclient.Request) (*webclient.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	n := len(d.Requests)
	d.Requests = append(d.Requests, req)
	step := Step{Status: http.StatusOK}
	if n < len(d.Steps) {
		step = d.Steps[n]
	}
	d.mu.Unlock()

	if step.Err != nil {
		return nil, step.Err
	}
	return &webclient.Response{
		Request:    req,
		Headers:    http.Header{},
		Body:       []byte(step.Body),
		StatusCode: step.Status,
		FetchedAt:  time.Now(),
	}, nil
}

func (d *ScriptedWebClient) Get(ctx context.Context, url string) (*webclient.Response, error) {
	return d.Do(ctx, &webclient.Request{Method: http.MethodGet, URL: url})
}

func (d *ScriptedWebClient) Close() error { return nil }

// Calls returns how many requests were received.
func (d *ScriptedWebClient) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Requests)
}

// RateLimitedThen scripts n 429 answers followed by one 200 with body.
func RateLimitedThen(n int, body string) []Step {
	steps := make([]Step, 0, n+1)
	for i := 0; i < n; i++ {
		steps = append(steps, Step{Status: http.StatusTooManyRequests})
	}
	return append(steps, Step{Status: http.StatusOK, Body: body})
}

// ─── Errors ────────────────────────────────────────────────────────────

// ErrDial mimics a connection failure below HTTP.
var ErrDial = errors.New("dial tcp 127.0.0.1:1: connect: connection refused")
