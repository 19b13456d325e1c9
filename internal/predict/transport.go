package predict

import (
	"net/http"
)

// serviceTransport adds the headers every prediction request carries
type serviceTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *serviceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrip must not modify the caller's request
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	return t.base.RoundTrip(req)
}

// newServiceHTTPClient creates an HTTP client with the NeuroDx headers
func newServiceHTTPClient(version string) *http.Client {
	return &http.Client{
		Transport: &serviceTransport{
			base:      http.DefaultTransport,
			userAgent: "neurodx/" + version,
		},
	}
}
