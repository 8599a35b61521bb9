package chunkcanvas

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus;
// internal/observability ships such an implementation.
type MetricsCollector interface {
	// RecordCreate is called after each create operation.
	RecordCreate(duration time.Duration, err error)

	// RecordUpsert is called after each upsert batch.
	// count is the number of items in the batch.
	RecordUpsert(count int, duration time.Duration, err error)

	// RecordDelete is called after each delete batch.
	RecordDelete(count int, duration time.Duration, err error)

	// RecordRead is called after info, content and list operations.
	// op names the operation.
	RecordRead(op string, duration time.Duration, err error)

	// RecordSearch is called after each search operation.
	RecordSearch(k int, duration time.Duration, err error)

	// RecordMirror is called after each mirror upload.
	RecordMirror(duration time.Duration, err error)

	// RecordRecovery is called whenever a pending sidecar was found.
	// rolledForward is false when the pending file was discarded.
	RecordRecovery(rolledForward bool)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCreate(time.Duration, error)       {}
func (NoopMetricsCollector) RecordUpsert(int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordDelete(int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordRead(string, time.Duration, error) {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordMirror(time.Duration, error)       {}
func (NoopMetricsCollector) RecordRecovery(bool)                     {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	CreateCount      atomic.Int64
	CreateErrors     atomic.Int64
	UpsertCount      atomic.Int64
	UpsertItems      atomic.Int64
	UpsertErrors     atomic.Int64
	UpsertTotalNanos atomic.Int64
	DeleteCount      atomic.Int64
	DeleteItems      atomic.Int64
	DeleteErrors     atomic.Int64
	ReadCount        atomic.Int64
	ReadErrors       atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64
	MirrorCount      atomic.Int64
	MirrorErrors     atomic.Int64
	RolledForward    atomic.Int64
	Discarded        atomic.Int64
}

// RecordCreate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCreate(_ time.Duration, err error) {
	b.CreateCount.Add(1)
	if err != nil {
		b.CreateErrors.Add(1)
	}
}

// RecordUpsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUpsert(count int, duration time.Duration, err error) {
	b.UpsertCount.Add(1)
	b.UpsertTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.UpsertErrors.Add(1)
		return
	}
	b.UpsertItems.Add(int64(count))
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(count int, _ time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
		return
	}
	b.DeleteItems.Add(int64(count))
}

// RecordRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRead(_ string, _ time.Duration, err error) {
	b.ReadCount.Add(1)
	if err != nil {
		b.ReadErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordMirror implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMirror(_ time.Duration, err error) {
	b.MirrorCount.Add(1)
	if err != nil {
		b.MirrorErrors.Add(1)
	}
}

// RecordRecovery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRecovery(rolledForward bool) {
	if rolledForward {
		b.RolledForward.Add(1)
	} else {
		b.Discarded.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		CreateCount:    b.CreateCount.Load(),
		CreateErrors:   b.CreateErrors.Load(),
		UpsertCount:    b.UpsertCount.Load(),
		UpsertItems:    b.UpsertItems.Load(),
		UpsertErrors:   b.UpsertErrors.Load(),
		UpsertAvgNanos: avg(b.UpsertTotalNanos.Load(), b.UpsertCount.Load()),
		DeleteCount:    b.DeleteCount.Load(),
		DeleteItems:    b.DeleteItems.Load(),
		DeleteErrors:   b.DeleteErrors.Load(),
		ReadCount:      b.ReadCount.Load(),
		ReadErrors:     b.ReadErrors.Load(),
		SearchCount:    b.SearchCount.Load(),
		SearchErrors:   b.SearchErrors.Load(),
		SearchAvgNanos: avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		MirrorCount:    b.MirrorCount.Load(),
		MirrorErrors:   b.MirrorErrors.Load(),
		RolledForward:  b.RolledForward.Load(),
		Discarded:      b.Discarded.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	CreateCount    int64
	CreateErrors   int64
	UpsertCount    int64
	UpsertItems    int64
	UpsertErrors   int64
	UpsertAvgNanos int64
	DeleteCount    int64
	DeleteItems    int64
	DeleteErrors   int64
	ReadCount      int64
	ReadErrors     int64
	SearchCount    int64
	SearchErrors   int64
	SearchAvgNanos int64
	MirrorCount    int64
	MirrorErrors   int64
	RolledForward  int64
	Discarded      int64
}
