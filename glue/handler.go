// Package glue implements the crawler accessor. It starts a named crawler
// and exposes its state; it deliberately has no wait loop, callers poll.
package glue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/glue/types"
	"go.uber.org/zap"

	"github.com/CarbonixUAV/carbonix-aws-libs/awsapi"
)

// Handler controls one named crawler.
type Handler struct {
	api         awsapi.GlueAPI
	crawlerName string
	logger      *zap.Logger
}

// NewHandler creates a Handler for the named crawler. logger may be nil.
func NewHandler(api awsapi.GlueAPI, crawlerName string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{api: api, crawlerName: crawlerName, logger: logger}
}

// Start triggers a crawler run.
func (h *Handler) Start(ctx context.Context) error {
	_, err := h.api.StartCrawler(ctx, &glue.StartCrawlerInput{
		Name: aws.String(h.crawlerName),
	})
	if err != nil {
		h.logger.Error("start crawler", zap.String("crawler", h.crawlerName), zap.Error(err))
		return fmt.Errorf("starting crawler %s: %w", h.crawlerName, err)
	}
	h.logger.Debug("crawler started", zap.String("crawler", h.crawlerName))
	return nil
}

// State returns the crawler's current state (READY, RUNNING or STOPPING).
func (h *Handler) State(ctx context.Context) (types.CrawlerState, error) {
	out, err := h.api.GetCrawler(ctx, &glue.GetCrawlerInput{
		Name: aws.String(h.crawlerName),
	})
	if err != nil {
		h.logger.Error("get crawler", zap.String("crawler", h.crawlerName), zap.Error(err))
		return "", fmt.Errorf("getting crawler %s: %w", h.crawlerName, err)
	}
	if out.Crawler == nil {
		return "", fmt.Errorf("crawler %s: empty response", h.crawlerName)
	}
	state := out.Crawler.State
	h.logger.Debug("crawler state", zap.String("crawler", h.crawlerName), zap.String("state", string(state)))
	return state, nil
}

// IsRunning reports whether the crawler is currently running.
func (h *Handler) IsRunning(ctx context.Context) (bool, error) {
	state, err := h.State(ctx)
	if err != nil {
		return false, err
	}
	return state == types.CrawlerStateRunning, nil
}

// IsCompleted reports whether the crawler has finished and is ready for the
// next run.
func (h *Handler) IsCompleted(ctx context.Context) (bool, error) {
	state, err := h.State(ctx)
	if err != nil {
		return false, err
	}
	return state == types.CrawlerStateReady, nil
}
