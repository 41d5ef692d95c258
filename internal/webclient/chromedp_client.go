package webclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/raysh454/freename/internal/logging"
)

// ChromedpClient renders pages in a headless browser. It only supports GET.
// The status code comes from the main document's network response so the engine
// can still see a 429.
type ChromedpClient struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	idleAfter   time.Duration
	logger      logging.Logger
}

// Headers the browser manages itself; setting them as extra headers breaks
// decoding or is rejected.
var chromedpSkipHeaders = map[string]bool{
	"Accept-Encoding": true,
	"Connection":      true,
	"Content-Length":  true,
}

func NewChromedpClient(cfg Config, logger logging.Logger) (*ChromedpClient, error) {
	if logger == nil {
		logger = logging.Nop{}
	}
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	componentLogger := logger.With(logging.Field{Key: "backend", Value: "chromedp"})
	componentLogger.Debug("created chromedp webclient",
		logging.Field{Key: "idle_after", Value: cfg.IdleAfter.String()})

	return &ChromedpClient{
		allocCtx:    allocCtx,
		cancelAlloc: cancel,
		idleAfter:   cfg.IdleAfter,
		logger:      componentLogger,
	}, nil
}

// idleTracker closes Done once no request has been in flight for idleAfter.
// Requests are keyed by id: a redirect announces the same id again for every hop
// but finishes it only once.
type idleTracker struct {
	idleAfter time.Duration

	mu     sync.Mutex
	active map[network.RequestID]struct{}
	timer  *time.Timer
	once   sync.Once
	done   chan struct{}
}

func newIdleTracker(idleAfter time.Duration) *idleTracker {
	t := &idleTracker{
		idleAfter: idleAfter,
		active:    map[network.RequestID]struct{}{},
		done:      make(chan struct{}),
	}
	t.mu.Lock()
	t.arm()
	t.mu.Unlock()
	return t
}

// arm restarts the quiet-period timer. Callers hold mu.
func (t *idleTracker) arm() {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.idleAfter, t.fire)
}

func (t *idleTracker) fire() {
	t.mu.Lock()
	n := len(t.active)
	t.mu.Unlock()
	if n == 0 {
		t.once.Do(func() { close(t.done) })
	}
}

func (t *idleTracker) started(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active[id] = struct{}{}
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *idleTracker) finished(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, id)
	if len(t.active) == 0 {
		t.arm()
	}
}

func (t *idleTracker) handle(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.started(e.RequestID)
	case *network.EventLoadingFinished:
		t.finished(e.RequestID)
	case *network.EventLoadingFailed:
		t.finished(e.RequestID)
	}
}

func (t *idleTracker) Done() <-chan struct{} {
	return t.done
}

// waitNetworkIdle returns a channel that is closed once the tab has had no
// request in flight for idleAfter.
func waitNetworkIdle(ctx context.Context, idleAfter time.Duration) <-chan struct{} {
	t := newIdleTracker(idleAfter)
	chromedp.ListenTarget(ctx, t.handle)
	return t.Done()
}

func (cdc *ChromedpClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}
	if m := strings.ToUpper(req.Method); m != "" && m != http.MethodGet {
		return nil, fmt.Errorf("chromedp backend only supports GET, got %s", m)
	}

	tabCtx, cancel := chromedp.NewContext(cdc.allocCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var (
		mu         sync.Mutex
		status     int
		respHeader = http.Header{}
	)
	chromedp.ListenTarget(tabCtx, func(ev any) {
		e, ok := ev.(*network.EventResponseReceived)
		if !ok || e.Type != network.ResourceTypeDocument {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		// first document response is the navigation target
		if status != 0 {
			return
		}
		status = int(e.Response.Status)
		for k, v := range e.Response.Headers {
			respHeader.Set(k, fmt.Sprint(v))
		}
	})

	var idle <-chan struct{}
	if cdc.idleAfter > 0 {
		idle = waitNetworkIdle(tabCtx, cdc.idleAfter)
	}

	extra := network.Headers{}
	for k, vs := range req.Headers {
		if chromedpSkipHeaders[http.CanonicalHeaderKey(k)] || len(vs) == 0 {
			continue
		}
		extra[k] = strings.Join(vs, ", ")
	}

	cdc.logger.Debug("navigating", logging.Field{Key: "url", Value: req.URL})
	if err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(extra),
		chromedp.Navigate(req.URL),
	); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("chromedp navigate: %w", err)
	}

	if idle != nil {
		select {
		case <-idle:
		case <-tabCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, tabCtx.Err()
		}
	}

	var html string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("chromedp read dom: %w", err)
	}

	mu.Lock()
	code := status
	headers := respHeader.Clone()
	mu.Unlock()
	if code == 0 {
		code = http.StatusOK
	}

	return &Response{
		Request:    req,
		Headers:    headers,
		Body:       []byte(html),
		StatusCode: code,
		FetchedAt:  time.Now(),
	}, nil
}

// Get is a convenience method for simple GET requests
func (cdc *ChromedpClient) Get(ctx context.Context, url string) (*Response, error) {
	return cdc.Do(ctx, &Request{Method: http.MethodGet, URL: url})
}

func (cdc *ChromedpClient) Close() error {
	cdc.cancelAlloc()
	return nil
}
