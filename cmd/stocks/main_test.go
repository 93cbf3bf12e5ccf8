package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// isolateEnv removes API keys and STOCKS_* overrides for the duration of the test.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		k, _, _ := strings.Cut(kv, "=")
		if k == "API_KEY" || k == "FMP_API_KEY" || strings.HasPrefix(k, "STOCKS_") {
			t.Setenv(k, "")
			require.NoError(t, os.Unsetenv(k))
		}
	}
	t.Setenv("FMP_API_KEY", "")
	require.NoError(t, os.Unsetenv("FMP_API_KEY"))
}

// priceServer answers like the historical endpoint; tickers in failing get a 500.
func priceServer(t *testing.T, failing *atomic.Bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ticker := strings.TrimPrefix(r.URL.Path, "/")
		if r.URL.Query().Get("apikey") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if ticker == "BAD" && failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"symbol":%q,"historical":[{"date":"2024-03-01","close":1.5},{"date":"2024-02-29","close":1.4}]}`, ticker)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func baseArgs(t *testing.T, srv *httptest.Server, out string) []string {
	t.Helper()
	return []string{
		"-config", filepath.Join(t.TempDir(), "none.yaml"),
		"-env", filepath.Join(t.TempDir(), "none.env"),
		"-base-url", srv.URL,
		"-out", out,
		"-rate-limit", "1000",
		"-log-level", "error",
	}
}

func TestRun_NoTickers(t *testing.T) {
	isolateEnv(t)
	t.Setenv("FMP_API_KEY", "secret")
	var stdout, stderr bytes.Buffer

	code := run(t.Context(), []string{"-env", filepath.Join(t.TempDir(), "none.env")}, &stdout, &stderr)

	require.Equal(t, ExitInvalidArgs, code)
	require.Contains(t, stderr.String(), "no tickers given")
}

func TestRun_MissingAPIKey(t *testing.T) {
	isolateEnv(t)
	var stdout, stderr bytes.Buffer

	code := run(t.Context(), []string{"-env", filepath.Join(t.TempDir(), "none.env"), "AAPL"}, &stdout, &stderr)

	require.Equal(t, ExitInvalidArgs, code)
	require.Contains(t, stderr.String(), "api_key is required")
}

func TestRun_UnknownFormat(t *testing.T) {
	isolateEnv(t)
	t.Setenv("FMP_API_KEY", "secret")
	var stdout, stderr bytes.Buffer

	code := run(t.Context(), []string{"-env", filepath.Join(t.TempDir(), "none.env"), "-format", "xlsx", "AAPL"}, &stdout, &stderr)

	require.Equal(t, ExitInvalidArgs, code)
	require.Contains(t, stderr.String(), "unknown format")
}

func TestRun_DownloadsAndReportsFailures(t *testing.T) {
	isolateEnv(t)
	t.Setenv("FMP_API_KEY", "secret")

	// Arrange
	var failing atomic.Bool
	failing.Store(true)
	srv := priceServer(t, &failing)
	out := t.TempDir()
	var stdout, stderr bytes.Buffer

	// Act
	code := run(t.Context(), append(baseArgs(t, srv, out), "-threads", "2", "-format", "json", "AAPL,BAD", "MSFT"), &stdout, &stderr)

	// Assert
	require.Equal(t, ExitTickersFailed, code)
	require.Contains(t, stdout.String(), "Downloaded 2 out of 3 tickers.")
	require.Contains(t, stdout.String(), "BAD (fetch)")
	require.FileExists(t, filepath.Join(out, "AAPL", "AAPL_price_2024-02-29_TO_2024-03-01.json"))
	require.FileExists(t, filepath.Join(out, "MSFT", "MSFT_price_2024-02-29_TO_2024-03-01.json"))
	require.NoDirExists(t, filepath.Join(out, "BAD"))
}

func TestRun_RetryFailedFromLedger(t *testing.T) {
	isolateEnv(t)
	t.Setenv("FMP_API_KEY", "secret")

	// Arrange: first run fails BAD and records it
	var failing atomic.Bool
	failing.Store(true)
	srv := priceServer(t, &failing)
	out := t.TempDir()
	ledgerPath := filepath.Join(t.TempDir(), "runs.db")
	args := append(baseArgs(t, srv, out), "-ledger", ledgerPath)

	var stdout, stderr bytes.Buffer
	require.Equal(t, ExitTickersFailed, run(t.Context(), append(args, "AAPL", "BAD"), &stdout, &stderr))

	// Act: the API recovers, retry only what failed
	failing.Store(false)
	stdout.Reset()
	code := run(t.Context(), append(args, "-retry-failed"), &stdout, &stderr)

	// Assert
	require.Equal(t, ExitSuccess, code, stderr.String())
	require.Contains(t, stdout.String(), "Downloaded 1 out of 1 tickers.")
	require.FileExists(t, filepath.Join(out, "BAD", "BAD_price_2024-02-29_TO_2024-03-01.csv"))

	// Nothing left to retry
	stdout.Reset()
	require.Equal(t, ExitSuccess, run(t.Context(), append(args, "-retry-failed"), &stdout, &stderr))
	require.Contains(t, stdout.String(), "Nothing to retry")
}

func TestRun_RetryFailedNeedsLedger(t *testing.T) {
	isolateEnv(t)
	t.Setenv("FMP_API_KEY", "secret")
	var stdout, stderr bytes.Buffer

	code := run(t.Context(), []string{"-env", filepath.Join(t.TempDir(), "none.env"), "-retry-failed"}, &stdout, &stderr)

	require.Equal(t, ExitInvalidArgs, code)
	require.Contains(t, stderr.String(), "needs -ledger")
}

func TestRun_DotEnvProvidesKey(t *testing.T) {
	isolateEnv(t)
	t.Cleanup(func() { _ = os.Unsetenv("FMP_API_KEY") })

	var failing atomic.Bool
	srv := priceServer(t, &failing)
	out := t.TempDir()
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("FMP_API_KEY=secret\n"), 0o600))
	args := append(baseArgs(t, srv, out), "-env", envFile, "TSLA")
	var stdout, stderr bytes.Buffer

	code := run(t.Context(), args, &stdout, &stderr)

	require.Equal(t, ExitSuccess, code, stderr.String())
	require.FileExists(t, filepath.Join(out, "TSLA", "TSLA_price_2024-02-29_TO_2024-03-01.csv"))
}

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run(t.Context(), []string{"-h"}, &stdout, &stderr)

	require.Equal(t, ExitSuccess, code)
	require.Contains(t, stderr.String(), "Usage: stocks")
}
