// Package series holds the in-memory shape of one ticker's daily price history.
package series

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DateLayout is the layout of Record.Date as served by the historical price endpoint.
const DateLayout = "2006-01-02"

var (
	// ErrEmpty is returned when a series would carry no records.
	ErrEmpty = errors.New("series has no records")
	// ErrMissingDate is returned when a boundary record has no date.
	ErrMissingDate = errors.New("record has no date")
)

// Record is one daily observation.
// Prices are decimals so that values round-trip exactly into text formats.
type Record struct {
	Date             string          `json:"date"`
	Open             decimal.Decimal `json:"open"`
	High             decimal.Decimal `json:"high"`
	Low              decimal.Decimal `json:"low"`
	Close            decimal.Decimal `json:"close"`
	AdjClose         decimal.Decimal `json:"adjClose"`
	Volume           decimal.Decimal `json:"volume"`
	UnadjustedVolume decimal.Decimal `json:"unadjustedVolume"`
	Change           decimal.Decimal `json:"change"`
	ChangePercent    decimal.Decimal `json:"changePercent"`
	VWAP             decimal.Decimal `json:"vwap"`
	Label            string          `json:"label"`
	ChangeOverTime   decimal.Decimal `json:"changeOverTime"`
}

// Series is a ticker's history in source order (newest first).
// FirstDate is the earliest date, LastDate the most recent one.
type Series struct {
	Ticker    string
	Records   []Record
	FirstDate string
	LastDate  string
}

// New builds a Series from records in source order. The bounds are taken from
// the ends of the slice: the last record is the oldest.
func New(ticker string, records []Record) (Series, error) {
	if len(records) == 0 {
		return Series{}, ErrEmpty
	}
	first := records[len(records)-1].Date
	last := records[0].Date
	if first == "" || last == "" {
		return Series{}, fmt.Errorf("%s: %w", ticker, ErrMissingDate)
	}
	return Series{
		Ticker:    ticker,
		Records:   records,
		FirstDate: first,
		LastDate:  last,
	}, nil
}

// Len returns the number of records.
func (s Series) Len() int { return len(s.Records) }
