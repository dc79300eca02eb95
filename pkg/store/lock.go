package store

import (
	"context"

	"github.com/OFFIS-RIT/relgraph/pkg/common"

	"golang.org/x/sync/semaphore"
)

// Locker serializes graph writes.
type Locker interface {
	WithLock(ctx context.Context, fn func(ctx context.Context) error) error
}

// LocalLocker serializes writes within one process.
type LocalLocker struct {
	sem *semaphore.Weighted
}

// NewLocalLocker returns a ready to use LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{sem: semaphore.NewWeighted(1)}
}

// WithLock runs fn while holding the lock. It gives up when ctx is done
// before the lock is acquired.
func (l *LocalLocker) WithLock(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.sem.Release(1)
	return fn(ctx)
}

// LockedWriter is a GraphWriter whose SaveGraph calls never overlap.
type LockedWriter struct {
	GraphWriter
	locker Locker
}

// NewLockedWriter wraps w so that every SaveGraph runs under locker.
func NewLockedWriter(w GraphWriter, locker Locker) *LockedWriter {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &LockedWriter{GraphWriter: w, locker: locker}
}

// SaveGraph acquires the lock and delegates to the wrapped writer.
func (w *LockedWriter) SaveGraph(
	ctx context.Context,
	entities []common.MergedEntity,
	relations []common.Relationship,
) error {
	return w.locker.WithLock(ctx, func(ctx context.Context) error {
		return w.GraphWriter.SaveGraph(ctx, entities, relations)
	})
}
