package webclient

import (
	"errors"
	"net/http"
	"net/url"
)

const contentTypeForm = "application/x-www-form-urlencoded"

// RequestOptions are the per-call extras for Engine.Request.
type RequestOptions struct {
	// Headers are merged over the engine identity; these values win.
	Headers http.Header

	// Body is sent as-is. Mutually exclusive with Form.
	Body []byte

	// Form is encoded as application/x-www-form-urlencoded and sent as the body.
	Form map[string]string
}

var errBodyAndForm = errors.New("body and form are mutually exclusive")

// encodeForm renders m with url.Values semantics: keys sorted, spaces as '+'.
func encodeForm(m map[string]string) []byte {
	v := make(url.Values, len(m))
	for k, val := range m {
		v.Set(k, val)
	}
	return []byte(v.Encode())
}

// body returns the serialized body and whether it was form-encoded.
func (o *RequestOptions) body() ([]byte, bool, error) {
	if o == nil {
		return nil, false, nil
	}
	if o.Form != nil {
		if o.Body != nil {
			return nil, false, errBodyAndForm
		}
		return encodeForm(o.Form), true, nil
	}
	return o.Body, false, nil
}
