// Package httputil provides the shared HTTP plumbing for calls that leave
// the gateway, chiefly the upstream model endpoint. All outbound clients
// share one pooled transport and read response bodies under a size cap.
package httputil

import (
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// MaxResponseSize caps how much of an HTTP response body is ever read.
// Upstream model responses beyond this are truncated rather than buffered.
const MaxResponseSize = 10 * 1024 * 1024 // 10MB

// Shared transport with connection pooling. Safe for concurrent use;
// reusing TCP connections matters when every chat turn round-trips to the
// upstream model.
var sharedTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ForceAttemptHTTP2:     true,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

var (
	clientsMu sync.Mutex
	clients   = map[time.Duration]*http.Client{}
)

// Client returns a pooled HTTP client with the given total timeout.
// Clients are cached per timeout and share one transport; callers must not
// mutate the returned client.
func Client(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	clientsMu.Lock()
	defer clientsMu.Unlock()

	if c, ok := clients[timeout]; ok {
		return c
	}
	c := &http.Client{
		Timeout:   timeout,
		Transport: sharedTransport,
	}
	clients[timeout] = c
	return c
}

// ReadBody reads an HTTP response body up to maxSize bytes. A non-positive
// maxSize falls back to MaxResponseSize.
func ReadBody(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = MaxResponseSize
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// ReadErrorBody reads a response body for error reporting. Error payloads
// are small; anything past 1MB is noise.
func ReadErrorBody(r io.Reader) ([]byte, error) {
	const maxErrorSize = 1 * 1024 * 1024
	return io.ReadAll(io.LimitReader(r, maxErrorSize))
}

// DrainAndClose drains and closes a response body so the underlying
// connection returns to the pool.
func DrainAndClose(body io.ReadCloser) {
	if body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(body, MaxResponseSize))
		_ = body.Close()
	}
}
