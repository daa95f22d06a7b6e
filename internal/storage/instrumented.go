package storage

import (
	"context"
	"errors"
	"time"

	"solana-burn-hook/internal/domain"
)

// QueryRecorder receives the duration and outcome of every store call.
type QueryRecorder interface {
	RecordDBQuery(database, operation string, seconds float64, err error)
}

// observe records a call. A miss (ErrNotFound) is not a query error.
func observe(rec QueryRecorder, database, operation string, start time.Time, err error) {
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	rec.RecordDBQuery(database, operation, time.Since(start).Seconds(), err)
}

// InstrumentedExecutionStore times every call of an ExecutionStore.
type InstrumentedExecutionStore struct {
	next     ExecutionStore
	rec      QueryRecorder
	database string
}

// InstrumentExecutions wraps next; database labels the recorded queries.
func InstrumentExecutions(next ExecutionStore, rec QueryRecorder, database string) *InstrumentedExecutionStore {
	return &InstrumentedExecutionStore{next: next, rec: rec, database: database}
}

var _ ExecutionStore = (*InstrumentedExecutionStore)(nil)

func (s *InstrumentedExecutionStore) Insert(ctx context.Context, e *domain.HookExecution) (err error) {
	defer func(start time.Time) { observe(s.rec, s.database, "insert_execution", start, err) }(time.Now())
	return s.next.Insert(ctx, e)
}

func (s *InstrumentedExecutionStore) InsertBulk(ctx context.Context, execs []*domain.HookExecution) (err error) {
	defer func(start time.Time) { observe(s.rec, s.database, "insert_executions", start, err) }(time.Now())
	return s.next.InsertBulk(ctx, execs)
}

func (s *InstrumentedExecutionStore) GetByMint(ctx context.Context, mint string) (out []*domain.HookExecution, err error) {
	defer func(start time.Time) { observe(s.rec, s.database, "get_executions", start, err) }(time.Now())
	return s.next.GetByMint(ctx, mint)
}

func (s *InstrumentedExecutionStore) GetBySlotRange(ctx context.Context, mint string, start, end int64) (out []*domain.HookExecution, err error) {
	defer func(t time.Time) { observe(s.rec, s.database, "get_executions_range", t, err) }(time.Now())
	return s.next.GetBySlotRange(ctx, mint, start, end)
}

func (s *InstrumentedExecutionStore) TotalBurned(ctx context.Context, mint string) (total uint64, err error) {
	defer func(start time.Time) { observe(s.rec, s.database, "total_burned", start, err) }(time.Now())
	return s.next.TotalBurned(ctx, mint)
}

// InstrumentedRegistryStore times every call of a RegistryStore.
type InstrumentedRegistryStore struct {
	next     RegistryStore
	rec      QueryRecorder
	database string
}

// InstrumentRegistries wraps next; database labels the recorded queries.
func InstrumentRegistries(next RegistryStore, rec QueryRecorder, database string) *InstrumentedRegistryStore {
	return &InstrumentedRegistryStore{next: next, rec: rec, database: database}
}

var _ RegistryStore = (*InstrumentedRegistryStore)(nil)

func (s *InstrumentedRegistryStore) Insert(ctx context.Context, r *domain.RegistryRecord) (err error) {
	defer func(start time.Time) { observe(s.rec, s.database, "insert_registry", start, err) }(time.Now())
	return s.next.Insert(ctx, r)
}

func (s *InstrumentedRegistryStore) GetByMint(ctx context.Context, mint string) (out *domain.RegistryRecord, err error) {
	defer func(start time.Time) { observe(s.rec, s.database, "get_registry", start, err) }(time.Now())
	return s.next.GetByMint(ctx, mint)
}

func (s *InstrumentedRegistryStore) List(ctx context.Context) (out []*domain.RegistryRecord, err error) {
	defer func(start time.Time) { observe(s.rec, s.database, "list_registries", start, err) }(time.Now())
	return s.next.List(ctx)
}
