// Package codec serializes a series into one of the supported output formats.
package codec

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"stockdownloader/internal/series"
)

// Format names an output encoding. Its string value is also the file extension.
type Format string

const (
	CSV     Format = "csv"
	JSON    Format = "json"
	Parquet Format = "parquet"
	Feather Format = "feather"
	// Pickle is Go's native binary serialization (encoding/gob), kept under
	// the name callers already use for "native binary dump".
	Pickle Format = "pickle"
)

// Formats lists every supported format.
var Formats = []Format{CSV, JSON, Parquet, Feather, Pickle}

var ErrUnknownFormat = errors.New("unknown format")

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w %q, must be one of %v", ErrUnknownFormat, s, Formats)
}

// Ext returns the file extension without the dot.
func (f Format) Ext() string { return string(f) }

// ContentType is stored with the object where the storage backend supports it.
func (f Format) ContentType() string {
	switch f {
	case CSV:
		return "text/csv"
	case JSON:
		return "application/json"
	case Feather:
		return "application/vnd.apache.arrow.file"
	default:
		return "application/octet-stream"
	}
}

// Encoder writes a whole series to w.
type Encoder interface {
	Encode(w io.Writer, s series.Series) error
}

// EncoderFunc adapts a function to Encoder.
type EncoderFunc func(w io.Writer, s series.Series) error

func (fn EncoderFunc) Encode(w io.Writer, s series.Series) error { return fn(w, s) }

// For returns the encoder of f.
func For(f Format) (Encoder, error) {
	switch f {
	case CSV:
		return EncoderFunc(encodeCSV), nil
	case JSON:
		return EncoderFunc(encodeJSON), nil
	case Parquet:
		return EncoderFunc(encodeParquet), nil
	case Feather:
		return EncoderFunc(encodeFeather), nil
	case Pickle:
		return EncoderFunc(encodeGob), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, f)
	}
}

// column describes one output column. Exactly one of text and num is set.
type column struct {
	name string
	text func(series.Record) string
	num  func(series.Record) decimal.Decimal
}

// columns is the record layout shared by the tabular formats, in the order the API serves fields.
var columns = []column{
	{name: "date", text: func(r series.Record) string { return r.Date }},
	{name: "open", num: func(r series.Record) decimal.Decimal { return r.Open }},
	{name: "high", num: func(r series.Record) decimal.Decimal { return r.High }},
	{name: "low", num: func(r series.Record) decimal.Decimal { return r.Low }},
	{name: "close", num: func(r series.Record) decimal.Decimal { return r.Close }},
	{name: "adjClose", num: func(r series.Record) decimal.Decimal { return r.AdjClose }},
	{name: "volume", num: func(r series.Record) decimal.Decimal { return r.Volume }},
	{name: "unadjustedVolume", num: func(r series.Record) decimal.Decimal { return r.UnadjustedVolume }},
	{name: "change", num: func(r series.Record) decimal.Decimal { return r.Change }},
	{name: "changePercent", num: func(r series.Record) decimal.Decimal { return r.ChangePercent }},
	{name: "vwap", num: func(r series.Record) decimal.Decimal { return r.VWAP }},
	{name: "label", text: func(r series.Record) string { return r.Label }},
	{name: "changeOverTime", num: func(r series.Record) decimal.Decimal { return r.ChangeOverTime }},
}

// Header returns the column names of the tabular formats.
func Header() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.name
	}
	return out
}
