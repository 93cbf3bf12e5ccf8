// Package writer persists series into a blob bucket, one object per ticker and date range.
package writer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"stockdownloader/internal/codec"
	"stockdownloader/internal/series"
)

// Outcome tells what a successful Write did.
type Outcome int

const (
	Written Outcome = iota
	// Skipped means the object already existed and override is off.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Written:
		return "written"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result describes a successful write.
type Result struct {
	Key     string
	Outcome Outcome
}

var ErrInvalidTicker = errors.New("invalid ticker")

// WriteError is returned when storing a series fails.
type WriteError struct {
	Ticker string
	Key    string
	// Code classifies the storage failure (gcerrors.Unknown when not a storage error).
	Code gcerrors.ErrorCode
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s to %s: %v", e.Ticker, e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Writer stores series in a bucket.
type Writer struct {
	bucket   *blob.Bucket
	override bool
	log      *zap.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithOverride replaces existing objects instead of skipping them.
func WithOverride(override bool) Option {
	return func(w *Writer) { w.override = override }
}

// WithLogger sets the logger used for skip notices.
func WithLogger(log *zap.Logger) Option {
	return func(w *Writer) {
		if log != nil {
			w.log = log
		}
	}
}

// New returns a Writer storing into bucket. The caller keeps ownership of bucket.
func New(bucket *blob.Bucket, opts ...Option) *Writer {
	w := &Writer{bucket: bucket, log: zap.NewNop()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Override reports whether existing objects are replaced.
func (w *Writer) Override() bool { return w.override }

// Key returns the object key of a series:
// {ticker}/{ticker}_price_{firstDate}_TO_{lastDate}.{ext}
func Key(ticker string, s series.Series, f codec.Format) (string, error) {
	if ticker == "" || ticker == "." || ticker == ".." || strings.ContainsAny(ticker, `/\`) {
		return "", fmt.Errorf("%w %q", ErrInvalidTicker, ticker)
	}
	name := fmt.Sprintf("%s_price_%s_TO_%s.%s", ticker, s.FirstDate, s.LastDate, f.Ext())
	return path.Join(ticker, name), nil
}

// Write stores s under the key derived from ticker and format.
// An unknown format fails before touching the bucket. When the object exists
// and override is off, nothing is written and the result is Skipped.
func (w *Writer) Write(ctx context.Context, s series.Series, ticker string, format codec.Format) (Result, error) {
	enc, err := codec.For(format)
	if err != nil {
		return Result{}, err
	}
	key, err := Key(ticker, s, format)
	if err != nil {
		return Result{}, &WriteError{Ticker: ticker, Err: err}
	}

	if !w.override {
		exists, err := w.bucket.Exists(ctx, key)
		if err != nil {
			return Result{Key: key}, w.fail(ticker, key, fmt.Errorf("checking existing object: %w", err))
		}
		if exists {
			w.log.Info("file already exists, skipping", zap.String("ticker", ticker), zap.String("key", key))
			return Result{Key: key, Outcome: Skipped}, nil
		}
	}

	// Cancelling wctx before Close discards a partially written object.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bw, err := w.bucket.NewWriter(wctx, key, &blob.WriterOptions{ContentType: format.ContentType()})
	if err != nil {
		return Result{Key: key}, w.fail(ticker, key, fmt.Errorf("opening writer: %w", err))
	}
	if err := enc.Encode(bw, s); err != nil {
		cancel()
		_ = bw.Close()
		return Result{Key: key}, w.fail(ticker, key, fmt.Errorf("encoding %s: %w", format, err))
	}
	if err := bw.Close(); err != nil {
		return Result{Key: key}, w.fail(ticker, key, fmt.Errorf("committing object: %w", err))
	}
	return Result{Key: key, Outcome: Written}, nil
}

func (w *Writer) fail(ticker, key string, err error) error {
	return &WriteError{Ticker: ticker, Key: key, Code: gcerrors.Code(err), Err: err}
}
