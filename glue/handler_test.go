package glue

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdkglue "github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/glue/types"
)

// mockGlueAPI implements the awsapi.GlueAPI interface for testing.
type mockGlueAPI struct {
	state      types.CrawlerState
	startErr   error
	getErr     error
	startCalls int
	started    []string
}

func (m *mockGlueAPI) StartCrawler(ctx context.Context, params *sdkglue.StartCrawlerInput, optFns ...func(*sdkglue.Options)) (*sdkglue.StartCrawlerOutput, error) {
	m.startCalls++
	if m.startErr != nil {
		return nil, m.startErr
	}
	m.started = append(m.started, aws.ToString(params.Name))
	return &sdkglue.StartCrawlerOutput{}, nil
}

func (m *mockGlueAPI) GetCrawler(ctx context.Context, params *sdkglue.GetCrawlerInput, optFns ...func(*sdkglue.Options)) (*sdkglue.GetCrawlerOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &sdkglue.GetCrawlerOutput{
		Crawler: &types.Crawler{
			Name:  params.Name,
			State: m.state,
		},
	}, nil
}

func TestStart(t *testing.T) {
	mock := &mockGlueAPI{}
	h := NewHandler(mock, "telemetry-crawler", nil)

	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if len(mock.started) != 1 || mock.started[0] != "telemetry-crawler" {
		t.Errorf("expected telemetry-crawler to be started, got %v", mock.started)
	}
}

func TestStartError(t *testing.T) {
	mock := &mockGlueAPI{startErr: errors.New("crawler already running")}
	h := NewHandler(mock, "telemetry-crawler", nil)

	if err := h.Start(context.Background()); err == nil {
		t.Error("expected error to surface")
	}
}

func TestStatePredicates(t *testing.T) {
	testCases := []struct {
		state     types.CrawlerState
		running   bool
		completed bool
	}{
		{types.CrawlerStateRunning, true, false},
		{types.CrawlerStateReady, false, true},
		{types.CrawlerStateStopping, false, false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.state), func(t *testing.T) {
			mock := &mockGlueAPI{state: tc.state}
			h := NewHandler(mock, "telemetry-crawler", nil)

			running, err := h.IsRunning(context.Background())
			if err != nil {
				t.Fatalf("IsRunning failed: %v", err)
			}
			if running != tc.running {
				t.Errorf("IsRunning = %v, want %v", running, tc.running)
			}

			completed, err := h.IsCompleted(context.Background())
			if err != nil {
				t.Fatalf("IsCompleted failed: %v", err)
			}
			if completed != tc.completed {
				t.Errorf("IsCompleted = %v, want %v", completed, tc.completed)
			}
		})
	}
}

func TestStateError(t *testing.T) {
	mock := &mockGlueAPI{getErr: errors.New("no such crawler")}
	h := NewHandler(mock, "telemetry-crawler", nil)

	if _, err := h.State(context.Background()); err == nil {
		t.Error("expected error to surface")
	}
	if _, err := h.IsRunning(context.Background()); err == nil {
		t.Error("expected error to surface through IsRunning")
	}
}
