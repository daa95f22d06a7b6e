// Package watcher follows hook program logs and records every burn.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"solana-burn-hook/internal/domain"
	"solana-burn-hook/internal/hook"
	"solana-burn-hook/internal/idhash"
	"solana-burn-hook/internal/observability"
	"solana-burn-hook/internal/solana"
	"solana-burn-hook/internal/storage"
)

// Options contains configuration for creating a Watcher.
type Options struct {
	ProgramID  solana.PublicKey
	WS         solana.WSClient
	Executions storage.ExecutionStore
	Progress   storage.ProgressStore
	Metrics    *observability.Metrics // optional
	Commitment string                 // default: confirmed
	Logger     *log.Entry
}

// Watcher subscribes to logs mentioning the hook program and persists the
// executions they carry.
type Watcher struct {
	programID  solana.PublicKey
	ws         solana.WSClient
	executions storage.ExecutionStore
	progress   storage.ProgressStore
	metrics    *observability.Metrics
	commitment string
	logger     *log.Entry
	now        func() time.Time

	resume *storage.Progress
}

// New creates a watcher. WS is only required by Run.
func New(opts Options) (*Watcher, error) {
	if opts.ProgramID.IsZero() {
		return nil, errors.New("watcher: program id is required")
	}
	if opts.Executions == nil || opts.Progress == nil {
		return nil, errors.New("watcher: execution and progress stores are required")
	}

	commitment := opts.Commitment
	if commitment == "" {
		commitment = "confirmed"
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "watcher")
	}

	return &Watcher{
		programID:  opts.ProgramID,
		ws:         opts.WS,
		executions: opts.Executions,
		progress:   opts.Progress,
		metrics:    opts.Metrics,
		commitment: commitment,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Run loads the resume point, subscribes and processes notifications until
// ctx is cancelled or the subscription channel closes.
func (w *Watcher) Run(ctx context.Context) error {
	if w.ws == nil {
		return errors.New("watcher: websocket client is required")
	}
	if err := w.LoadProgress(ctx); err != nil {
		return err
	}

	notifications, err := w.ws.SubscribeLogs(ctx, solana.LogsFilter{
		Mentions:   []solana.PublicKey{w.programID},
		Commitment: w.commitment,
	})
	if err != nil {
		return fmt.Errorf("subscribe logs: %w", err)
	}
	w.logger.WithField("program", w.programID.String()).Info("subscribed to hook logs")

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-notifications:
			if !ok {
				w.logger.Warn("subscription channel closed")
				return nil
			}
			if _, err := w.Process(ctx, n); err != nil {
				w.logger.WithError(err).WithField("signature", n.Signature).Error("process notification")
			}
		}
	}
}

// LoadProgress reads the saved resume point. No saved progress is not an error.
func (w *Watcher) LoadProgress(ctx context.Context) error {
	p, err := w.progress.GetLastProcessed(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		w.resume = nil
		return nil
	case err != nil:
		return fmt.Errorf("load progress: %w", err)
	}
	w.resume = p
	w.logger.WithFields(log.Fields{"slot": p.Slot, "signature": p.Signature}).Info("resuming")
	return nil
}

// Process handles one notification and returns the number of executions
// newly stored.
func (w *Watcher) Process(ctx context.Context, n solana.LogNotification) (int, error) {
	if w.metrics != nil {
		w.metrics.NotificationsReceived.Inc()
		defer func(start time.Time) {
			w.metrics.WSMessageLatency.Observe(time.Since(start).Seconds())
		}(time.Now())
	}
	w.updateSlot(n.Slot)

	if w.skip(n) {
		return 0, nil
	}
	if n.Failed {
		if kind, ok := FailureKind(n.Logs, w.programID); ok {
			w.recordExecution(kind, "", 0)
		}
		return 0, nil
	}

	execs, err := w.parse(n)
	if err != nil {
		w.recordError("parse")
		return 0, err
	}

	stored := 0
	if len(execs) > 0 {
		stored, err = w.store(ctx, execs)
		if err != nil {
			w.recordError("store")
			return 0, err
		}
	}

	if err := w.progress.SetLastProcessed(ctx, &storage.Progress{Slot: n.Slot, Signature: n.Signature}); err != nil {
		w.recordError("progress")
		return stored, fmt.Errorf("save progress: %w", err)
	}
	return stored, nil
}

// skip drops notifications older than the resume point, and the resume
// transaction itself. Other transactions in the resume slot are processed;
// the execution store ignores duplicates.
func (w *Watcher) skip(n solana.LogNotification) bool {
	if w.resume == nil {
		return false
	}
	if n.Slot < w.resume.Slot {
		return true
	}
	return n.Slot == w.resume.Slot && n.Signature == w.resume.Signature
}

// parse extracts the executions the hook program itself logged. Lookalike
// lines from other programs in the same transaction are ignored.
func (w *Watcher) parse(n solana.LogNotification) ([]*domain.HookExecution, error) {
	found, err := hook.ParseExecutionLogs(n.Logs, w.programID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", n.Signature, err)
	}

	observed := w.now().UnixMilli()
	out := make([]*domain.HookExecution, 0, len(found))
	for _, e := range found {
		out = append(out, &domain.HookExecution{
			ExecutionID: idhash.ComputeExecutionID(n.Signature, e.Index),
			Signature:   n.Signature,
			LogIndex:    e.Index,
			Slot:        n.Slot,
			Mint:        e.Mint.String(),
			Source:      e.Source.String(),
			Destination: e.Destination.String(),
			Amount:      e.Amount,
			Burned:      e.Burn,
			ObservedAt:  observed,
		})
	}
	return out, nil
}

// store inserts execs as one batch, falling back to row inserts when the
// batch contains already-recorded executions.
func (w *Watcher) store(ctx context.Context, execs []*domain.HookExecution) (int, error) {
	err := w.executions.InsertBulk(ctx, execs)
	if err == nil {
		for _, e := range execs {
			w.recordStored(e)
		}
		return len(execs), nil
	}
	if !errors.Is(err, storage.ErrDuplicateKey) {
		return 0, err
	}

	stored := 0
	for _, e := range execs {
		err := w.executions.Insert(ctx, e)
		switch {
		case err == nil:
			stored++
			w.recordStored(e)
		case errors.Is(err, storage.ErrDuplicateKey):
			w.incDuplicates()
			w.logger.WithField("execution_id", e.ExecutionID).Debug("duplicate execution")
		default:
			return stored, err
		}
	}
	return stored, nil
}

var programFailure = regexp.MustCompile(`^Program (\S+) failed: custom program error: 0x([0-9a-fA-F]+)$`)

// FailureKind returns the hook error kind reported in the logs of a failed
// transaction, if the hook program is the one that failed.
func FailureKind(logs []string, programID solana.PublicKey) (string, bool) {
	for _, line := range logs {
		m := programFailure.FindStringSubmatch(line)
		if m == nil || m[1] != programID.String() {
			continue
		}
		code, err := strconv.ParseUint(m[2], 16, 32)
		if err != nil {
			continue
		}
		if hookErr := hook.ErrorFromCode(uint32(code)); hookErr != nil {
			return hook.Kind(hookErr), true
		}
	}
	return "", false
}

func (w *Watcher) recordStored(e *domain.HookExecution) {
	if w.metrics == nil {
		return
	}
	w.metrics.ExecutionsStored.Inc()
	w.metrics.RecordExecution("ok", e.Mint, e.Burned)
}

func (w *Watcher) recordExecution(result, mint string, burned uint64) {
	if w.metrics != nil {
		w.metrics.RecordExecution(result, mint, burned)
	}
}

func (w *Watcher) recordError(stage string) {
	if w.metrics != nil {
		w.metrics.RecordWatcherError(stage)
	}
}

func (w *Watcher) incDuplicates() {
	if w.metrics != nil {
		w.metrics.DuplicateExecutions.Inc()
	}
}

func (w *Watcher) updateSlot(slot int64) {
	if w.metrics != nil {
		w.metrics.UpdateHighestSlot(slot)
	}
}
