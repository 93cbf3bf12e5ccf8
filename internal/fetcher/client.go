// Package fetcher retrieves daily price history from the Financial Modeling Prep API.
package fetcher

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the historical price endpoint; the ticker is appended as a path segment.
	DefaultBaseURL = "https://financialmodelingprep.com/api/v3/historical-price-full"
	// DefaultStartDate is the earliest date requested.
	DefaultStartDate = "2000-01-01"
)

// ErrMissingAPIKey is returned by NewClient when no key is given.
var ErrMissingAPIKey = errors.New("api key is required")

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=fetcher_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the historical price endpoint.
type Client struct {
	// baseURL is the endpoint the ticker is appended to.
	baseURL string
	// startDate is sent as the from parameter.
	startDate string
	// timeout bounds a single request; zero leaves it to the HTTP client.
	timeout time.Duration
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// query contains additional query parameters to be sent with each request.
	query url.Values
}

// Option is a configuration option for the client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithStartDate sets the first date requested, formatted as YYYY-MM-DD.
func WithStartDate(date string) Option {
	return func(c *Client) {
		if date != "" {
			c.startDate = date
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient creates a new client authenticating with key.
func NewClient(key string, options ...Option) (*Client, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrMissingAPIKey
	}
	var client = &Client{
		baseURL:    DefaultBaseURL,
		startDate:  DefaultStartDate,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		query:      url.Values{},
	}
	// The API authenticates with a query parameter, not a header.
	client.query.Add("apikey", key)
	for _, option := range options {
		option(client)
	}
	return client, nil
}

// StartDate returns the from date sent with every request.
func (c *Client) StartDate() string { return c.startDate }

// BaseURL returns the endpoint tickers are appended to.
func (c *Client) BaseURL() string { return c.baseURL }
