package repo

import (
	"bytes"
	"io"
	"net/http"
)

// upstreamFunc fakes an open-data endpoint at the transport layer.
type upstreamFunc func(*http.Request) (*http.Response, error)

func (f upstreamFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// stubUpstream swaps the fetcher's transport and keeps its timeout.
func stubUpstream(f *Fetcher, fn upstreamFunc) {
	f.httpClient = &http.Client{Timeout: f.httpClient.Timeout, Transport: fn}
}

func jsonResponse(code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Status:     http.StatusText(code),
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}
