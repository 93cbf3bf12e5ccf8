// Package httpx builds the tuned HTTP client shared by outbound API calls.
package httpx

import (
    "net"
    "net/http"
    "time"
)

const DefaultUserAgent = "stockdownloader/1.0"

// Client is a small wrapper around http.Client with sane defaults.
// It satisfies the Do(*http.Request) seam the API clients depend on.
type Client struct {
    HTTP      *http.Client
    UserAgent string
    Headers   map[string]string
}

// New returns a client whose requests time out after timeout.
// The connection pool is sized for a few dozen concurrent workers against one host.
func New(timeout time.Duration) *Client {
    transport := &http.Transport{
        Proxy: http.ProxyFromEnvironment,
        DialContext: (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
        MaxIdleConns:          100,
        MaxIdleConnsPerHost:   64,
        MaxConnsPerHost:       64,
        ForceAttemptHTTP2:     true,
        IdleConnTimeout:       90 * time.Second,
        TLSHandshakeTimeout:   5 * time.Second,
        ExpectContinueTimeout: 1 * time.Second,
        ResponseHeaderTimeout: timeout,
    }
    return &Client{
        HTTP:      &http.Client{Timeout: timeout, Transport: transport},
        UserAgent: DefaultUserAgent,
        Headers:   map[string]string{"Accept": "application/json"},
    }
}

// Do sets the default User-Agent and headers when the request has none, then sends it.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
    if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
        req.Header.Set("User-Agent", c.UserAgent)
    }
    for k, v := range c.Headers {
        if req.Header.Get(k) == "" {
            req.Header.Set(k, v)
        }
    }
    return c.HTTP.Do(req)
}
