package internal

import "net/http"

// HeaderTransport is a custom RoundTripper that adds default headers to
// requests. Headers already set on a request are left alone.
type HeaderTransport struct {
	Base    http.RoundTripper
	Headers http.Header
}

// NewHeaderTransport returns a HeaderTransport that sends JSON with the given
// user agent.
func NewHeaderTransport(base http.RoundTripper, userAgent string) *HeaderTransport {
	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")
	headers.Set("User-Agent", userAgent)
	return &HeaderTransport{Base: base, Headers: headers}
}

func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for key, values := range t.Headers {
		if req.Header.Get(key) != "" {
			continue
		}
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
