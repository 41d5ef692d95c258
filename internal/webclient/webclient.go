package webclient

import "context"

// WebClient is a single-shot transport backend. It sends exactly one request and
// reports whatever status the server answered with; retry policy lives in Engine.
type WebClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)

	// Get is a convenience method for simple GET requests
	Get(ctx context.Context, url string) (*Response, error)

	Close() error
}
