package webclient

import "net/http"

// Identity is the fixed header set presented on every request an Engine sends.
// It is copied on construction and never mutated afterwards, so one Identity can
// be shared freely.
type Identity struct {
	h http.Header
}

// Browser-like defaults. Accept-Encoding only lists codings the nethttp backend
// can decode.
var defaultIdentityHeaders = [][2]string{
	{"User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/93.0.4577.82 Safari/537.36"},
	{"Referer", "https://store.steampowered.com/"},
	{"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"},
	{"Accept-Encoding", "gzip, deflate, br"},
	{"Accept-Language", "en-US,en;q=0.5"},
	{"Connection", "keep-alive"},
	{"DNT", "1"},
	{"Upgrade-Insecure-Requests", "1"},
}

// NewIdentity builds an Identity from h. Keys are canonicalized.
func NewIdentity(h http.Header) *Identity {
	out := make(http.Header, len(h))
	for k, vs := range h {
		out[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}
	return &Identity{h: out}
}

// DefaultIdentity returns the browser-like identity used when none is configured.
func DefaultIdentity() *Identity {
	h := make(http.Header, len(defaultIdentityHeaders))
	for _, kv := range defaultIdentityHeaders {
		h.Set(kv[0], kv[1])
	}
	return &Identity{h: h}
}

// Header returns a copy of the identity headers.
func (i *Identity) Header() http.Header {
	if i == nil {
		return http.Header{}
	}
	return i.h.Clone()
}

// Merge returns the identity headers with overrides applied on top. A key present
// in overrides replaces every identity value for that key; all other identity
// headers are kept. The Identity itself is left untouched.
func (i *Identity) Merge(overrides http.Header) http.Header {
	out := i.Header()
	if out == nil {
		out = http.Header{}
	}
	for k, vs := range overrides {
		out[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}
	return out
}

// WithOverrides derives a new Identity with overrides merged in.
func (i *Identity) WithOverrides(overrides http.Header) *Identity {
	return &Identity{h: i.Merge(overrides)}
}
