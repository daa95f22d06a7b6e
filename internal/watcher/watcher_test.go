package watcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-burn-hook/internal/domain"
	"solana-burn-hook/internal/hook"
	"solana-burn-hook/internal/idhash"
	"solana-burn-hook/internal/observability"
	"solana-burn-hook/internal/solana"
	"solana-burn-hook/internal/storage"
	"solana-burn-hook/internal/storage/memory"
)

var (
	testProgram = solana.MustPublicKey("A5KCz6aVgoynxv2BK6pDXq8swv8iyJTRdgdr371hQpwp")
	testMint    = solana.MustPublicKey("AFdCxpRdJjwrUpUBGC9qSHU7yf9qCkdmh6xdELq7XXVK")
	source      = solana.PublicKey(sha256.Sum256([]byte("source")))
	destination = solana.PublicKey(sha256.Sum256([]byte("destination")))
)

func executionLine(amount, burn uint64) string {
	return "Program log: " + hook.ExecutionLog{
		Mint:        testMint,
		Source:      source,
		Destination: destination,
		Amount:      amount,
		Burn:        burn,
	}.String()
}

func transferLogs(lines ...string) []string {
	logs := []string{
		"Program TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb invoke [1]",
		"Program " + testProgram.String() + " invoke [2]",
	}
	logs = append(logs, lines...)
	return append(logs,
		"Program "+testProgram.String()+" success",
		"Program TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb success",
	)
}

type harness struct {
	watcher    *Watcher
	executions *memory.ExecutionStore
	progress   *memory.ProgressStore
	metrics    *observability.Metrics
}

func newHarness(t *testing.T, ws solana.WSClient) *harness {
	t.Helper()
	h := &harness{
		executions: memory.NewExecutionStore(),
		progress:   memory.NewProgressStore(),
		metrics:    observability.NewMetricsWith(prometheus.NewRegistry(), "test"),
	}
	w, err := New(Options{
		ProgramID:  testProgram,
		WS:         ws,
		Executions: h.executions,
		Progress:   h.progress,
		Metrics:    h.metrics,
	})
	require.NoError(t, err)
	w.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	h.watcher = w
	return h
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{Executions: memory.NewExecutionStore(), Progress: memory.NewProgressStore()})
	assert.Error(t, err, "missing program id")

	_, err = New(Options{ProgramID: testProgram, Progress: memory.NewProgressStore()})
	assert.Error(t, err, "missing execution store")
}

func TestProcess_StoresExecutions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	n := solana.LogNotification{
		Signature: "sig-1",
		Slot:      100,
		Logs:      transferLogs(executionLine(10_000_000, 1_000)),
	}
	stored, err := h.watcher.Process(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, 1, stored)

	execs, err := h.executions.GetByMint(ctx, testMint.String())
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, &domain.HookExecution{
		ExecutionID: idhash.ComputeExecutionID("sig-1", 2),
		Signature:   "sig-1",
		LogIndex:    2,
		Slot:        100,
		Mint:        testMint.String(),
		Source:      source.String(),
		Destination: destination.String(),
		Amount:      10_000_000,
		Burned:      1_000,
		ObservedAt:  1_700_000_000_000,
	}, execs[0])

	p, err := h.progress.GetLastProcessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, &storage.Progress{Slot: 100, Signature: "sig-1"}, p)

	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.ExecutionsStored))
	assert.Equal(t, float64(1_000), testutil.ToFloat64(h.metrics.TokensBurned.WithLabelValues(testMint.String())))
	assert.Equal(t, float64(100), testutil.ToFloat64(h.metrics.HighestSlotSeen))
}

func TestProcess_DuplicateNotificationIgnored(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	n := solana.LogNotification{
		Signature: "sig-1",
		Slot:      100,
		Logs:      transferLogs(executionLine(10_000, 1), executionLine(20_000, 2)),
	}
	_, err := h.watcher.Process(ctx, n)
	require.NoError(t, err)

	stored, err := h.watcher.Process(ctx, n)
	require.NoError(t, err)
	assert.Zero(t, stored)

	total, err := h.executions.TotalBurned(ctx, testMint.String())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), total)
	assert.Equal(t, float64(2), testutil.ToFloat64(h.metrics.DuplicateExecutions))
}

func TestProcess_FailedTransaction(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	stored, err := h.watcher.Process(ctx, solana.LogNotification{
		Signature: "sig-failed",
		Slot:      7,
		Failed:    true,
		Logs: []string{
			"Program " + testProgram.String() + " invoke [2]",
			"Program " + testProgram.String() + " failed: custom program error: 0x1776",
		},
	})
	require.NoError(t, err)
	assert.Zero(t, stored)

	_, err = h.progress.GetLastProcessed(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound, "failed transactions do not advance progress")
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.HookExecutions.WithLabelValues("BurnFailed")))
}

func TestProcess_MalformedExecutionLine(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.watcher.Process(context.Background(), solana.LogNotification{
		Signature: "sig-bad",
		Slot:      1,
		Logs:      transferLogs("Program log: burn-hook: execute mint=xyz"),
	})
	assert.Error(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.WatcherErrors.WithLabelValues("parse")))
}

func TestProcess_IgnoresLinesFromOtherPrograms(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	other := solana.PublicKey(sha256.Sum256([]byte("other-program"))).String()

	stored, err := h.watcher.Process(ctx, solana.LogNotification{
		Signature: "sig-forged",
		Slot:      9,
		Logs: []string{
			"Program " + other + " invoke [1]",
			executionLine(1_000_000_000, 999_999_999),
			"Program " + other + " success",
		},
	})
	require.NoError(t, err)
	assert.Zero(t, stored)

	// A malformed lookalike from another frame must not block the real execution.
	logs := []string{
		"Program " + other + " invoke [1]",
		"Program log: burn-hook: execute garbage",
		"Program " + other + " success",
	}
	logs = append(logs, transferLogs(executionLine(10_000_000, 1_000))...)
	stored, err = h.watcher.Process(ctx, solana.LogNotification{Signature: "sig-mixed", Slot: 10, Logs: logs})
	require.NoError(t, err)
	assert.Equal(t, 1, stored)

	burned, err := h.executions.TotalBurned(ctx, testMint.String())
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), burned)

	execs, err := h.executions.GetByMint(ctx, testMint.String())
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, 5, execs[0].LogIndex)

	progress, err := h.progress.GetLastProcessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), progress.Slot)
	assert.Equal(t, "sig-mixed", progress.Signature)
}

func TestProcess_ResumeSkipsProcessed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	require.NoError(t, h.progress.SetLastProcessed(ctx, &storage.Progress{Slot: 50, Signature: "sig-50"}))
	require.NoError(t, h.watcher.LoadProgress(ctx))

	cases := []struct {
		sig  string
		slot int64
		want int
	}{
		{"sig-40", 40, 0},
		{"sig-50", 50, 0},
		{"sig-50b", 50, 1},
		{"sig-51", 51, 1},
	}
	for i, c := range cases {
		stored, err := h.watcher.Process(ctx, solana.LogNotification{
			Signature: c.sig,
			Slot:      c.slot,
			Logs:      transferLogs(executionLine(uint64(10_000*(i+1)), 1)),
		})
		require.NoError(t, err)
		assert.Equal(t, c.want, stored, c.sig)
	}

	p, err := h.progress.GetLastProcessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(51), p.Slot)
}

func TestFailureKind(t *testing.T) {
	other := solana.PublicKey(sha256.Sum256([]byte("other")))

	kind, ok := FailureKind([]string{
		"Program " + testProgram.String() + " failed: custom program error: 0x1774",
	}, testProgram)
	assert.True(t, ok)
	assert.Equal(t, "Unauthorized", kind)

	_, ok = FailureKind([]string{
		"Program " + other.String() + " failed: custom program error: 0x1774",
	}, testProgram)
	assert.False(t, ok, "another program's failure")

	_, ok = FailureKind([]string{
		"Program " + testProgram.String() + " failed: custom program error: 0x1",
	}, testProgram)
	assert.False(t, ok, "unknown code")
}

type fakeWS struct {
	mu      sync.Mutex
	filters []solana.LogsFilter
	ch      chan solana.LogNotification
	err     error
}

func (f *fakeWS) SubscribeLogs(_ context.Context, filter solana.LogsFilter) (<-chan solana.LogNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.filters = append(f.filters, filter)
	return f.ch, nil
}

func (f *fakeWS) Close() error { return nil }

func TestRun_ProcessesUntilChannelCloses(t *testing.T) {
	ws := &fakeWS{ch: make(chan solana.LogNotification, 4)}
	h := newHarness(t, ws)

	ws.ch <- solana.LogNotification{Signature: "a", Slot: 1, Logs: transferLogs(executionLine(10_000, 1))}
	ws.ch <- solana.LogNotification{Signature: "b", Slot: 2, Failed: true}
	ws.ch <- solana.LogNotification{Signature: "c", Slot: 3, Logs: transferLogs(executionLine(20_000, 2))}
	close(ws.ch)

	require.NoError(t, h.watcher.Run(context.Background()))

	require.Len(t, ws.filters, 1)
	assert.Equal(t, []solana.PublicKey{testProgram}, ws.filters[0].Mentions)
	assert.Equal(t, "confirmed", ws.filters[0].Commitment)

	execs, err := h.executions.GetByMint(context.Background(), testMint.String())
	require.NoError(t, err)
	assert.Len(t, execs, 2)
	assert.Equal(t, float64(3), testutil.ToFloat64(h.metrics.NotificationsReceived))
}

func TestRun_StopsOnCancel(t *testing.T) {
	ws := &fakeWS{ch: make(chan solana.LogNotification)}
	h := newHarness(t, ws)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.watcher.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestRun_SubscribeError(t *testing.T) {
	h := newHarness(t, &fakeWS{err: errors.New("dial failed")})
	assert.Error(t, h.watcher.Run(context.Background()))

	noWS := newHarness(t, nil)
	assert.Error(t, noWS.watcher.Run(context.Background()))
}
