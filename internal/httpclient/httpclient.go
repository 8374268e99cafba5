// Package httpclient provides shared *http.Client construction and a
// retrying, per-host concurrency-limited Do for calls to the external media server.
package httpclient

import (
	"net/http"
	"time"
)

// Default returns an HTTP client with timeouts so a stalled media-server
// response never hangs a pool build or schedule generation forever.
func Default() *http.Client {
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			ResponseHeaderTimeout: 15 * time.Second,
			ExpectContinueTimeout: 5 * time.Second,
			IdleConnTimeout:       30 * time.Second,
		},
	}
}

// ForStreaming returns a client with no overall timeout (a direct-stream
// fetch may be long-lived) but a ResponseHeaderTimeout so a dead upstream is
// still detected quickly.
func ForStreaming() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			ResponseHeaderTimeout: 15 * time.Second,
			ExpectContinueTimeout: 5 * time.Second,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}
