package metrics

import (
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

func TestMetricsHappyPath(t *testing.T) {
	m := NewMetrics()

	m.QuerySubmitted()
	m.QuerySubmitted()
	m.QuerySucceeded()
	m.QueryFailed()
	m.PollCycle()
	m.PollCycle()
	m.PollCycle()
	m.LogIngested()
	m.LogQuarantined()

	time.Sleep(10 * time.Millisecond)

	report := m.GenerateReport()

	if report.QueriesSubmitted != 2 {
		t.Errorf("expected 2 queries submitted, got %d", report.QueriesSubmitted)
	}
	if report.QueriesSucceeded != 1 {
		t.Errorf("expected 1 query succeeded, got %d", report.QueriesSucceeded)
	}
	if report.QueriesFailed != 1 {
		t.Errorf("expected 1 query failed, got %d", report.QueriesFailed)
	}
	if report.PollCycles != 3 {
		t.Errorf("expected 3 poll cycles, got %d", report.PollCycles)
	}
	if report.LogsIngested != 1 || report.LogsQuarantined != 1 {
		t.Errorf("expected one ingested and one quarantined log, got %d/%d",
			report.LogsIngested, report.LogsQuarantined)
	}
	if report.Duration < 10*time.Millisecond {
		t.Errorf("expected duration >= 10ms, got %v", report.Duration)
	}

	str := report.String()
	if str == "" {
		t.Error("expected non-empty string representation")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.QuerySubmitted()
	m.QuerySucceeded()
	m.QueryFailed()
	m.QueryTimedOut()
	m.PollCycle()
	m.LogIngested()
	m.LogQuarantined()
}

func TestReportJSONDuration(t *testing.T) {
	m := NewMetrics()
	m.QueryTimedOut()
	data, err := json.Marshal(m.GenerateReport())
	if err != nil {
		t.Fatalf("marshal report: %v", err)
	}
	if !strings.Contains(string(data), `"queriesTimedOut":1`) {
		t.Errorf("report missing timed-out counter: %s", data)
	}
	if !strings.Contains(string(data), `"duration":"`) {
		t.Errorf("expected duration as string: %s", data)
	}
}
