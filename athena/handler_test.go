package athena

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdkathena "github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"

	"github.com/CarbonixUAV/carbonix-aws-libs/config"
)

// statusStep scripts one GetQueryExecution response.
type statusStep struct {
	state types.QueryExecutionState
	err   error
}

// mockAthenaAPI implements the awsapi.AthenaAPI interface for testing.
type mockAthenaAPI struct {
	startErr   error
	submitted  []string
	steps      []statusStep
	reason     string
	results    *types.ResultSet
	resultsErr error

	startCalls  int
	statusCalls int
	resultCalls int
	stopCalls   int
}

func (m *mockAthenaAPI) StartQueryExecution(ctx context.Context, params *sdkathena.StartQueryExecutionInput, optFns ...func(*sdkathena.Options)) (*sdkathena.StartQueryExecutionOutput, error) {
	m.startCalls++
	if m.startErr != nil {
		return nil, m.startErr
	}
	m.submitted = append(m.submitted, aws.ToString(params.QueryString))
	return &sdkathena.StartQueryExecutionOutput{
		QueryExecutionId: aws.String("exec-1"),
	}, nil
}

func (m *mockAthenaAPI) GetQueryExecution(ctx context.Context, params *sdkathena.GetQueryExecutionInput, optFns ...func(*sdkathena.Options)) (*sdkathena.GetQueryExecutionOutput, error) {
	i := m.statusCalls
	m.statusCalls++
	if i >= len(m.steps) {
		i = len(m.steps) - 1
	}
	step := m.steps[i]
	if step.err != nil {
		return nil, step.err
	}
	return &sdkathena.GetQueryExecutionOutput{
		QueryExecution: &types.QueryExecution{
			QueryExecutionId: params.QueryExecutionId,
			Status: &types.QueryExecutionStatus{
				State:             step.state,
				StateChangeReason: aws.String(m.reason),
			},
		},
	}, nil
}

func (m *mockAthenaAPI) GetQueryResults(ctx context.Context, params *sdkathena.GetQueryResultsInput, optFns ...func(*sdkathena.Options)) (*sdkathena.GetQueryResultsOutput, error) {
	m.resultCalls++
	if m.resultsErr != nil {
		return nil, m.resultsErr
	}
	return &sdkathena.GetQueryResultsOutput{ResultSet: m.results}, nil
}

func (m *mockAthenaAPI) StopQueryExecution(ctx context.Context, params *sdkathena.StopQueryExecutionInput, optFns ...func(*sdkathena.Options)) (*sdkathena.StopQueryExecutionOutput, error) {
	m.stopCalls++
	return &sdkathena.StopQueryExecutionOutput{}, nil
}

// sdkResultSet builds an engine result with the header row the engine emits
// as row 0 for SELECT queries.
func sdkResultSet(columns []string, dataRows ...[]string) *types.ResultSet {
	meta := &types.ResultSetMetadata{}
	header := types.Row{}
	for _, c := range columns {
		meta.ColumnInfo = append(meta.ColumnInfo, types.ColumnInfo{Name: aws.String(c)})
		header.Data = append(header.Data, types.Datum{VarCharValue: aws.String(c)})
	}
	rows := []types.Row{header}
	for _, dr := range dataRows {
		row := types.Row{}
		for _, cell := range dr {
			row.Data = append(row.Data, types.Datum{VarCharValue: aws.String(cell)})
		}
		rows = append(rows, row)
	}
	return &types.ResultSet{ResultSetMetadata: meta, Rows: rows}
}

func testConfig() config.AthenaConfig {
	return config.AthenaConfig{
		Database:     "telemetry_pool_v5",
		Table:        "telemetry_data_pool",
		PollInterval: config.Duration(time.Millisecond),
		MaxWait:      config.Duration(time.Second),
	}
}

func TestSubmitReturnsExecutionID(t *testing.T) {
	mock := &mockAthenaAPI{}
	h := NewHandler(mock, testConfig(), nil, nil)

	id, err := h.Submit(context.Background(), "SELECT 1")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if id != "exec-1" {
		t.Errorf("expected execution id exec-1, got %s", id)
	}
}

func TestFailedSubmitIsNeverPolled(t *testing.T) {
	mock := &mockAthenaAPI{startErr: errors.New("access denied")}
	h := NewHandler(mock, testConfig(), nil, nil)

	_, err := h.run(context.Background(), "SELECT 1")
	if err == nil {
		t.Fatal("expected error from rejected submit")
	}
	if mock.statusCalls != 0 {
		t.Errorf("expected no status polls after failed submit, got %d", mock.statusCalls)
	}
	if mock.resultCalls != 0 {
		t.Errorf("expected no result fetch after failed submit, got %d", mock.resultCalls)
	}
}

func TestWaitTerminalStates(t *testing.T) {
	testCases := []struct {
		name    string
		state   types.QueryExecutionState
		outcome Outcome
		wantErr error
	}{
		{"succeeded", types.QueryExecutionStateSucceeded, OutcomeSucceeded, nil},
		{"failed", types.QueryExecutionStateFailed, OutcomeFailed, ErrQueryFailed},
		{"cancelled", types.QueryExecutionStateCancelled, OutcomeCancelled, ErrQueryCancelled},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mock := &mockAthenaAPI{
				steps: []statusStep{
					{state: types.QueryExecutionStateQueued},
					{state: types.QueryExecutionStateRunning},
					{state: tc.state},
				},
				reason: "terminal",
			}
			h := NewHandler(mock, testConfig(), nil, nil)

			outcome, err := h.Wait(context.Background(), "exec-1")
			if outcome != tc.outcome {
				t.Errorf("expected outcome %s, got %s", tc.outcome, outcome)
			}
			if outcome.Succeeded() != (tc.state == types.QueryExecutionStateSucceeded) {
				t.Error("Succeeded must be true iff the terminal state is SUCCEEDED")
			}
			if tc.wantErr == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
			if mock.statusCalls != 3 {
				t.Errorf("expected polling to stop at the terminal state, got %d polls", mock.statusCalls)
			}
		})
	}
}

func TestWaitSurvivesTransientPollErrors(t *testing.T) {
	mock := &mockAthenaAPI{
		steps: []statusStep{
			{err: errors.New("throttled")},
			{err: errors.New("throttled")},
			{state: types.QueryExecutionStateSucceeded},
		},
	}
	h := NewHandler(mock, testConfig(), nil, nil)

	outcome, err := h.Wait(context.Background(), "exec-1")
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if !outcome.Succeeded() {
		t.Errorf("expected success after transient errors, got %s", outcome)
	}
	if mock.statusCalls != 3 {
		t.Errorf("expected 3 polls, got %d", mock.statusCalls)
	}
}

func TestWaitTimesOutOnStalledQuery(t *testing.T) {
	mock := &mockAthenaAPI{
		steps: []statusStep{{state: types.QueryExecutionStateRunning}},
	}
	cfg := testConfig()
	cfg.MaxWait = config.Duration(20 * time.Millisecond)
	h := NewHandler(mock, cfg, nil, nil)

	outcome, err := h.Wait(context.Background(), "exec-1")
	if outcome != OutcomeTimedOut {
		t.Errorf("expected TIMED_OUT, got %s", outcome)
	}
	if !errors.Is(err, ErrWaitTimeout) {
		t.Errorf("expected ErrWaitTimeout, got %v", err)
	}
	if mock.stopCalls != 1 {
		t.Errorf("expected one best-effort stop, got %d", mock.stopCalls)
	}
}

func TestWaitTimesOutWhenPollsKeepFailing(t *testing.T) {
	mock := &mockAthenaAPI{
		steps: []statusStep{{err: errors.New("credentials revoked")}},
	}
	cfg := testConfig()
	cfg.MaxWait = config.Duration(20 * time.Millisecond)
	h := NewHandler(mock, cfg, nil, nil)

	outcome, err := h.Wait(context.Background(), "exec-1")
	if outcome != OutcomeTimedOut {
		t.Errorf("expected TIMED_OUT, got %s", outcome)
	}
	if !errors.Is(err, ErrWaitTimeout) {
		t.Errorf("expected ErrWaitTimeout, got %v", err)
	}
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	mock := &mockAthenaAPI{
		steps: []statusStep{{state: types.QueryExecutionStateRunning}},
	}
	cfg := testConfig()
	cfg.MaxWait = 0 // context-only
	h := NewHandler(mock, cfg, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	outcome, err := h.Wait(ctx, "exec-1")
	if outcome != OutcomeTimedOut {
		t.Errorf("expected TIMED_OUT on cancellation, got %s", outcome)
	}
	if !errors.Is(err, ErrWaitTimeout) {
		t.Errorf("expected ErrWaitTimeout, got %v", err)
	}
}

func TestResultsHeaderHandling(t *testing.T) {
	mock := &mockAthenaAPI{
		results: sdkResultSet([]string{"loguid", "timestamp"}, []string{"abc", "123"}),
	}
	h := NewHandler(mock, testConfig(), nil, nil)

	rs, err := h.Results(context.Background(), "exec-1")
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	if len(rs.Rows) != 2 {
		t.Fatalf("expected header plus one data row, got %d rows", len(rs.Rows))
	}
	if len(rs.DataRows()) != 1 {
		t.Errorf("expected 1 data row, got %d", len(rs.DataRows()))
	}
	if ts, ok := rs.FirstField("timestamp"); !ok || ts != "123" {
		t.Errorf("expected timestamp 123, got %q (ok=%v)", ts, ok)
	}
}

func TestHeaderOnlyResultHasNoData(t *testing.T) {
	rs := newResultSet(sdkResultSet([]string{"loguid"}))
	if rs.HasData() {
		t.Error("header-only result must report no data")
	}
	if rows := rs.DataRows(); len(rows) != 0 {
		t.Errorf("expected no data rows, got %d", len(rows))
	}
	if _, ok := rs.FirstField("loguid"); ok {
		t.Error("FirstField must miss on a header-only result")
	}
}

func TestFieldIsNameKeyed(t *testing.T) {
	rs := newResultSet(sdkResultSet(
		[]string{"loguid", "timestamp", "messagetype", "keyname", "value"},
		[]string{"abc", "1", "MSG", "Message", "ArduPilot V4.3"},
	))
	row := rs.DataRows()[0]

	if v, ok := rs.Field(row, "VALUE"); !ok || v != "ArduPilot V4.3" {
		t.Errorf("case-insensitive lookup failed: %q (ok=%v)", v, ok)
	}
	if _, ok := rs.Field(row, "missing"); ok {
		t.Error("unknown column must not resolve")
	}
}
