package athena

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CarbonixUAV/carbonix-aws-libs/awsapi"
	"github.com/CarbonixUAV/carbonix-aws-libs/config"
	"github.com/CarbonixUAV/carbonix-aws-libs/metrics"
)

// Handler drives the asynchronous query lifecycle for one telemetry table.
// A Handler is safe for use from a single goroutine; each accessor call
// issues exactly one fresh query request and never re-submits a known
// execution id.
//
// Example:
//
//	h := athena.NewHandler(awsapi.NewAthenaClient(client), cfg.Athena, logger, nil)
//	exists, err := h.LogExists(ctx, loguid)
type Handler struct {
	api            awsapi.AthenaAPI
	database       string
	table          string
	outputLocation string
	pollInterval   time.Duration
	maxWait        time.Duration
	logger         *zap.Logger
	metrics        *metrics.Metrics
}

// NewHandler creates a Handler for the table described by cfg. logger may be
// nil; collector may be nil when no counters are wanted.
func NewHandler(api awsapi.AthenaAPI, cfg config.AthenaConfig, logger *zap.Logger, collector *metrics.Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	pollInterval := time.Duration(cfg.PollInterval)
	if pollInterval <= 0 {
		pollInterval = config.DefaultPollInterval
	}
	return &Handler{
		api:            api,
		database:       cfg.Database,
		table:          cfg.QualifiedTable(),
		outputLocation: cfg.OutputLocation,
		pollInterval:   pollInterval,
		maxWait:        time.Duration(cfg.MaxWait),
		logger:         logger,
		metrics:        collector,
	}
}

// Submit sends one query to the engine and returns its execution id. The
// request carries a fresh client request token so a network-level retry by
// the SDK cannot start a second execution.
func (h *Handler) Submit(ctx context.Context, query string) (string, error) {
	in := &athena.StartQueryExecutionInput{
		QueryString:        aws.String(query),
		ClientRequestToken: aws.String(uuid.NewString()),
		QueryExecutionContext: &types.QueryExecutionContext{
			Database: aws.String(h.database),
		},
	}
	if h.outputLocation != "" {
		in.ResultConfiguration = &types.ResultConfiguration{
			OutputLocation: aws.String(h.outputLocation),
		}
	}

	out, err := h.api.StartQueryExecution(ctx, in)
	if err != nil {
		h.logger.Error("start query execution", zap.Error(err))
		return "", fmt.Errorf("starting query execution: %w", err)
	}

	id := aws.ToString(out.QueryExecutionId)
	h.metrics.QuerySubmitted()
	h.logger.Debug("query submitted", zap.String("execution_id", id))
	return id, nil
}

// Status fetches the current lifecycle state of an execution. The reason
// string is non-empty only for FAILED and CANCELLED executions.
func (h *Handler) Status(ctx context.Context, executionID string) (State, string, error) {
	out, err := h.api.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
		QueryExecutionId: aws.String(executionID),
	})
	if err != nil {
		return "", "", fmt.Errorf("getting query execution %s: %w", executionID, err)
	}
	if out.QueryExecution == nil || out.QueryExecution.Status == nil {
		return "", "", fmt.Errorf("query execution %s: empty status in response", executionID)
	}

	status := out.QueryExecution.Status
	state := stateFromSDK(status.State)
	h.logger.Debug("query status",
		zap.String("execution_id", executionID),
		zap.String("state", string(state)))
	return state, aws.ToString(status.StateChangeReason), nil
}

// Wait polls the execution state at the configured interval until a terminal
// state is observed or the wait expires. A transient status-poll error keeps
// the loop alive; the deadline bounds how long such errors can mask a
// permanent failure. On expiry Wait returns OutcomeTimedOut with
// ErrWaitTimeout and issues a best-effort stop so the execution is not left
// running server-side.
func (h *Handler) Wait(ctx context.Context, executionID string) (Outcome, error) {
	if h.maxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.maxWait)
		defer cancel()
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		h.metrics.PollCycle()
		state, reason, err := h.Status(ctx, executionID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return h.timedOut(executionID, err)
			}
			lastErr = err
			h.logger.Warn("status poll failed, continuing to wait",
				zap.String("execution_id", executionID),
				zap.Error(err))
		case state == StateSucceeded:
			h.metrics.QuerySucceeded()
			return OutcomeSucceeded, nil
		case state == StateFailed:
			h.metrics.QueryFailed()
			h.logger.Error("query failed",
				zap.String("execution_id", executionID),
				zap.String("reason", reason))
			return OutcomeFailed, fmt.Errorf("execution %s: %s: %w", executionID, reason, ErrQueryFailed)
		case state == StateCancelled:
			h.metrics.QueryFailed()
			return OutcomeCancelled, fmt.Errorf("execution %s: %w", executionID, ErrQueryCancelled)
		}

		select {
		case <-ctx.Done():
			return h.timedOut(executionID, lastErr)
		case <-ticker.C:
		}
	}
}

// timedOut records the abandoned wait, stops the remote execution on a
// detached context, and wraps the last poll error if one was seen.
func (h *Handler) timedOut(executionID string, lastErr error) (Outcome, error) {
	h.metrics.QueryTimedOut()
	h.logger.Warn("wait abandoned", zap.String("execution_id", executionID))

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := h.api.StopQueryExecution(stopCtx, &athena.StopQueryExecutionInput{
		QueryExecutionId: aws.String(executionID),
	}); err != nil {
		h.logger.Warn("stop query execution", zap.String("execution_id", executionID), zap.Error(err))
	}

	if lastErr != nil {
		return OutcomeTimedOut, fmt.Errorf("execution %s (last poll error: %v): %w", executionID, lastErr, ErrWaitTimeout)
	}
	return OutcomeTimedOut, fmt.Errorf("execution %s: %w", executionID, ErrWaitTimeout)
}

// Results fetches the full result set of a SUCCEEDED execution in one call.
// Row 0 is the engine's header row; use ResultSet.DataRows for extraction.
func (h *Handler) Results(ctx context.Context, executionID string) (*ResultSet, error) {
	out, err := h.api.GetQueryResults(ctx, &athena.GetQueryResultsInput{
		QueryExecutionId: aws.String(executionID),
	})
	if err != nil {
		h.logger.Error("get query results",
			zap.String("execution_id", executionID),
			zap.Error(err))
		return nil, fmt.Errorf("getting results for %s: %w", executionID, err)
	}
	return newResultSet(out.ResultSet), nil
}

// run executes the full lifecycle for one query: submit, wait, fetch. All
// accessor methods funnel through here.
func (h *Handler) run(ctx context.Context, query string) (*ResultSet, error) {
	id, err := h.Submit(ctx, query)
	if err != nil {
		return nil, err
	}
	outcome, err := h.Wait(ctx, id)
	if !outcome.Succeeded() {
		return nil, fmt.Errorf("query did not succeed (%s): %w", outcome, err)
	}
	return h.Results(ctx, id)
}
