package webclient

import (
	"net/http"
	"time"
)

// Request is a fully built outgoing request: method normalized, identity headers
// merged, body serialized. Engine reuses the same Request for every retry.
type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

type Response struct {
	Request    *Request
	Headers    http.Header
	Body       []byte
	StatusCode int
	FetchedAt  time.Time
	// Attempts is how many sends it took, 429 retries included. Set by Engine.
	Attempts int
}
