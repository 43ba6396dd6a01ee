package statesync

import (
	"sync/atomic"
	"time"
)

// Fetch kinds reported to Metrics.
const (
	KindPrivate = "private_view"
	KindPublic  = "public_state"
	KindVersion = "state_version"
)

// Metrics observes the sync loop.
type Metrics interface {
	RecordFetch(kind string, success bool, duration time.Duration)
	RecordDiscard(kind string)
	RecordResume(refetched bool)
	RecordSubscribe(success bool)
}

// NoOpMetrics is a no-op implementation for when metrics aren't needed
type NoOpMetrics struct{}

func (NoOpMetrics) RecordFetch(kind string, success bool, duration time.Duration) {}
func (NoOpMetrics) RecordDiscard(kind string)                                     {}
func (NoOpMetrics) RecordResume(refetched bool)                                   {}
func (NoOpMetrics) RecordSubscribe(success bool)                                  {}

// CountingMetrics keeps in-process counters, enough for periodic log lines
// and tests.
type CountingMetrics struct {
	Fetches          atomic.Int64
	FetchFailures    atomic.Int64
	Discards         atomic.Int64
	Resumes          atomic.Int64
	ResumeRefetches  atomic.Int64
	SubscribeFailure atomic.Int64
}

func (m *CountingMetrics) RecordFetch(kind string, success bool, duration time.Duration) {
	m.Fetches.Add(1)
	if !success {
		m.FetchFailures.Add(1)
	}
}

func (m *CountingMetrics) RecordDiscard(kind string) {
	m.Discards.Add(1)
}

func (m *CountingMetrics) RecordResume(refetched bool) {
	m.Resumes.Add(1)
	if refetched {
		m.ResumeRefetches.Add(1)
	}
}

func (m *CountingMetrics) RecordSubscribe(success bool) {
	if !success {
		m.SubscribeFailure.Add(1)
	}
}
