// Package httpclient configures the HTTP client used to call upstream services.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// Doer is the subset of *http.Client the upstream clients need.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewOutbound creates a new outbound http client
func NewOutbound(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          128,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
