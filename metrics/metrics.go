// Package metrics collects counters for the query lifecycle and the ingest
// pipeline and renders a final JSON report. All counter methods are nil-safe
// so handlers can run without a collector attached.
package metrics

import (
	"fmt"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

// Metrics collects counters across query runs and log ingests. It uses
// atomic operations for thread-safe counter updates.
type Metrics struct {
	// Query lifecycle counters
	queriesSubmitted int64 // Queries accepted by the engine
	queriesSucceeded int64 // Queries reaching SUCCEEDED
	queriesFailed    int64 // Queries reaching FAILED or CANCELLED
	queriesTimedOut  int64 // Waits abandoned at the deadline
	pollCycles       int64 // Status checks issued while waiting

	// Ingest counters
	logsIngested    int64 // Logs fully registered in the pool
	logsQuarantined int64 // Logs moved to the unprocessed bucket

	startTime time.Time // When this collector was created
}

// NewMetrics creates a new Metrics instance with initialized counters
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// QuerySubmitted increments the submitted queries counter
func (m *Metrics) QuerySubmitted() {
	if m == nil {
		return
	}
	atomic.AddInt64(&m.queriesSubmitted, 1)
}

// QuerySucceeded increments the succeeded queries counter
func (m *Metrics) QuerySucceeded() {
	if m == nil {
		return
	}
	atomic.AddInt64(&m.queriesSucceeded, 1)
}

// QueryFailed increments the failed queries counter
func (m *Metrics) QueryFailed() {
	if m == nil {
		return
	}
	atomic.AddInt64(&m.queriesFailed, 1)
}

// QueryTimedOut increments the timed-out waits counter
func (m *Metrics) QueryTimedOut() {
	if m == nil {
		return
	}
	atomic.AddInt64(&m.queriesTimedOut, 1)
}

// PollCycle increments the status-check counter
func (m *Metrics) PollCycle() {
	if m == nil {
		return
	}
	atomic.AddInt64(&m.pollCycles, 1)
}

// LogIngested increments the ingested logs counter
func (m *Metrics) LogIngested() {
	if m == nil {
		return
	}
	atomic.AddInt64(&m.logsIngested, 1)
}

// LogQuarantined increments the quarantined logs counter
func (m *Metrics) LogQuarantined() {
	if m == nil {
		return
	}
	atomic.AddInt64(&m.logsQuarantined, 1)
}

// Report contains the final metrics snapshot ready for JSON output.
type Report struct {
	StartTime        time.Time     `json:"startTime"`
	EndTime          time.Time     `json:"endTime"`
	QueriesSubmitted int64         `json:"queriesSubmitted"`
	QueriesSucceeded int64         `json:"queriesSucceeded"`
	QueriesFailed    int64         `json:"queriesFailed"`
	QueriesTimedOut  int64         `json:"queriesTimedOut"`
	PollCycles       int64         `json:"pollCycles"`
	LogsIngested     int64         `json:"logsIngested"`
	LogsQuarantined  int64         `json:"logsQuarantined"`
	Duration         time.Duration `json:"duration"`
}

// GenerateReport snapshots all counters into a Report.
func (m *Metrics) GenerateReport() Report {
	endTime := time.Now()
	return Report{
		StartTime:        m.startTime,
		EndTime:          endTime,
		QueriesSubmitted: atomic.LoadInt64(&m.queriesSubmitted),
		QueriesSucceeded: atomic.LoadInt64(&m.queriesSucceeded),
		QueriesFailed:    atomic.LoadInt64(&m.queriesFailed),
		QueriesTimedOut:  atomic.LoadInt64(&m.queriesTimedOut),
		PollCycles:       atomic.LoadInt64(&m.pollCycles),
		LogsIngested:     atomic.LoadInt64(&m.logsIngested),
		LogsQuarantined:  atomic.LoadInt64(&m.logsQuarantined),
		Duration:         endTime.Sub(m.startTime),
	}
}

// MarshalJSON implements json.Marshaler to render the duration as a
// human-readable string in the JSON report.
func (r Report) MarshalJSON() ([]byte, error) {
	type Alias Report
	return json.Marshal(&struct {
		Alias
		Duration string `json:"duration"`
	}{
		Alias:    Alias(r),
		Duration: r.Duration.String(),
	})
}

// String returns a human-readable representation for console output.
func (r Report) String() string {
	return fmt.Sprintf(
		"Completed in %s\n"+
			"Queries: %d submitted, %d succeeded, %d failed, %d timed out (%d polls)\n"+
			"Logs: %d ingested, %d quarantined",
		r.Duration,
		r.QueriesSubmitted,
		r.QueriesSucceeded,
		r.QueriesFailed,
		r.QueriesTimedOut,
		r.PollCycles,
		r.LogsIngested,
		r.LogsQuarantined,
	)
}
