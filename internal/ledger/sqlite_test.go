package ledger_test

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockdownloader/internal/ledger"
)

func openLedger(t *testing.T) *ledger.SQLite {
	t.Helper()
	l, err := ledger.OpenSQLite(t.Context(), filepath.Join(t.TempDir(), "ledger.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLastFailures_NoRuns(t *testing.T) {
	t.Parallel()

	l := openLedger(t)

	failed, err := l.LastFailures(t.Context())
	require.NoError(t, err)
	require.Empty(t, failed)
}

func TestLastFailures_OnlyMostRecentRun(t *testing.T) {
	t.Parallel()

	// Arrange: two runs with different failures
	ctx := t.Context()
	l := openLedger(t)

	first, err := l.BeginRun(ctx, "csv", 3)
	require.NoError(t, err)
	require.NoError(t, l.RecordOutcome(ctx, first, ledger.Outcome{Ticker: "AAPL", Status: ledger.StatusWritten, Key: "AAPL/a.csv"}))
	require.NoError(t, l.RecordOutcome(ctx, first, ledger.Outcome{Ticker: "BAD1", Status: ledger.StatusFailed, Err: "boom"}))
	require.NoError(t, l.RecordOutcome(ctx, first, ledger.Outcome{Ticker: "BAD2", Status: ledger.StatusFailed, Err: "boom"}))
	require.NoError(t, l.FinishRun(ctx, first, ledger.Stats{Total: 3, Succeeded: 1, Failed: 2}))

	second, err := l.BeginRun(ctx, "csv", 2)
	require.NoError(t, err)
	require.NoError(t, l.RecordOutcome(ctx, second, ledger.Outcome{Ticker: "BAD1", Status: ledger.StatusSkipped}))
	require.NoError(t, l.RecordOutcome(ctx, second, ledger.Outcome{Ticker: "BAD2", Status: ledger.StatusFailed, Err: "still"}))
	require.NoError(t, l.FinishRun(ctx, second, ledger.Stats{Total: 2, Succeeded: 1, Skipped: 1, Failed: 1}))

	// Act
	failed, err := l.LastFailures(ctx)

	// Assert
	require.NoError(t, err)
	require.Equal(t, []string{"BAD2"}, failed)
}

func TestRuns(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	l := openLedger(t)

	id, err := l.BeginRun(ctx, "parquet", 5)
	require.NoError(t, err)
	require.NoError(t, l.FinishRun(ctx, id, ledger.Stats{Total: 5, Succeeded: 3, Failed: 2}))
	open, err := l.BeginRun(ctx, "json", 1)
	require.NoError(t, err)

	runs, err := l.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	require.Equal(t, open, runs[0].ID)
	require.True(t, runs[0].FinishedAt.IsZero())
	require.Equal(t, "json", runs[0].Format)

	require.Equal(t, id, runs[1].ID)
	require.Equal(t, ledger.Stats{Total: 5, Succeeded: 3, Failed: 2}, runs[1].Stats)
	require.False(t, runs[1].FinishedAt.IsZero())
}

func TestRecordOutcome_Concurrent(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	l := openLedger(t)
	id, err := l.BeginRun(ctx, "csv", 16)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.RecordOutcome(ctx, id, ledger.Outcome{
				Ticker: string(rune('A' + i)),
				Status: ledger.StatusFailed,
			}))
		}()
	}
	wg.Wait()

	failed, err := l.LastFailures(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 16)
}

func TestReopenKeepsHistory(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	path := filepath.Join(t.TempDir(), "ledger.db")

	l, err := ledger.OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	id, err := l.BeginRun(ctx, "csv", 1)
	require.NoError(t, err)
	require.NoError(t, l.RecordOutcome(ctx, id, ledger.Outcome{Ticker: "TSLA", Status: ledger.StatusFailed}))
	require.NoError(t, l.Close())

	l, err = ledger.OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	defer l.Close()

	failed, err := l.LastFailures(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"TSLA"}, failed)
}

func TestNoop(t *testing.T) {
	t.Parallel()

	var r ledger.Recorder = ledger.NewNoop()
	id, err := r.BeginRun(t.Context(), "csv", 1)
	require.NoError(t, err)
	require.NoError(t, r.RecordOutcome(t.Context(), id, ledger.Outcome{}))
	require.NoError(t, r.FinishRun(t.Context(), id, ledger.Stats{}))
	failed, err := r.LastFailures(t.Context())
	require.NoError(t, err)
	require.Nil(t, failed)
	require.NoError(t, r.Close())
}
