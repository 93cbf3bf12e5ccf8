package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"

	"stockdownloader/internal/series"
)

// historicalResponse is the body of the historical price endpoint.
//
//	{
//	  "symbol": "AAPL",
//	  "historical": [
//	    {"date": "2024-01-05", "open": 181.99, "high": 182.76, ...},
//	    ...
//	  ]
//	}
//
// Unknown tickers come back as {} and bad keys as {"Error Message": "..."}.
type historicalResponse struct {
	Symbol       string          `json:"symbol"`
	Historical   []series.Record `json:"historical"`
	ErrorMessage string          `json:"Error Message"`
}

// Fetch retrieves the daily history of ticker from the start date on.
// It issues exactly one request and never retries; every failure is a *FetchError.
func (c *Client) Fetch(ctx context.Context, ticker string) (series.Series, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	query := maps.Clone(c.query)
	query.Set("from", c.startDate)

	endpoint := fmt.Sprintf("%s/%s?%s", strings.TrimRight(c.baseURL, "/"), url.PathEscape(ticker), query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return series.Series{}, &FetchError{Ticker: ticker, Err: fmt.Errorf("%w: creating request: %w", ErrInvalidRequest, err)}
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return series.Series{}, &FetchError{Ticker: ticker, Err: fmt.Errorf("performing request: %w", err)}
	}
	defer res.Body.Close()

	fail := func(err error) (series.Series, error) {
		return series.Series{}, &FetchError{Ticker: ticker, StatusCode: res.StatusCode, Err: err}
	}

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		break

	case res.StatusCode == http.StatusUnauthorized, res.StatusCode == http.StatusForbidden:
		return fail(fmt.Errorf("%w: %s", ErrUnauthorized, snippet(res.Body)))

	case res.StatusCode == http.StatusNotFound:
		return fail(ErrNotFound)

	case res.StatusCode == http.StatusTooManyRequests:
		return fail(ErrRateLimited)

	default:
		return fail(fmt.Errorf("%w: %s", ErrUnexpectedStatus, snippet(res.Body)))
	}

	var body historicalResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return fail(ErrEmptyHistorical)
		}
		return fail(fmt.Errorf("%w: decoding historical response: %w", ErrMalformedResponse, err))
	}
	if len(body.Historical) == 0 {
		if body.ErrorMessage != "" {
			return fail(fmt.Errorf("%w: %s", ErrAPI, body.ErrorMessage))
		}
		return fail(ErrEmptyHistorical)
	}

	s, err := series.New(ticker, body.Historical)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrMalformedResponse, err))
	}
	return s, nil
}

// snippet reads the start of an error body for diagnostics.
func snippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}
