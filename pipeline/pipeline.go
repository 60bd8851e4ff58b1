// Package pipeline orchestrates the ingest of one flight log: verify the
// object landed, record it in the metadata database, register its telemetry
// partitions with the query engine, and kick the catalog crawler. A log that
// fails partway is moved to the unprocessed bucket and marked failed so the
// rest of a batch keeps flowing.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/CarbonixUAV/carbonix-aws-libs/athena"
	"github.com/CarbonixUAV/carbonix-aws-libs/aurora"
	"github.com/CarbonixUAV/carbonix-aws-libs/config"
	"github.com/CarbonixUAV/carbonix-aws-libs/glue"
	"github.com/CarbonixUAV/carbonix-aws-libs/metrics"
	"github.com/CarbonixUAV/carbonix-aws-libs/s3store"
)

// Log processing statuses recorded in the metadata database.
const (
	StatusIngested = "INGESTED"
	StatusFailed   = "FAILED"
)

// QueryEngine is the slice of the query lifecycle manager the pipeline uses.
type QueryEngine interface {
	AddPartitions(ctx context.Context, paths []string, bucket string) (bool, error)
}

// MetadataStore is the slice of the relational accessor the pipeline uses.
type MetadataStore interface {
	LogExists(ctx context.Context, sha256hash string) (bool, error)
	InsertLog(ctx context.Context, rec aurora.LogRecord) error
	UpdateLogStatus(ctx context.Context, sha256hash, status string) error
}

// ObjectStore is the slice of the object accessor the pipeline uses.
type ObjectStore interface {
	Exists(ctx context.Context, bucket, item string) (bool, error)
	ListFolders(ctx context.Context, bucket, prefix string) ([]string, error)
	Quarantine(ctx context.Context, sourceBucket, sourceKey, destBucket, prefix string) error
}

// CrawlerControl is the slice of the crawler accessor the pipeline uses.
type CrawlerControl interface {
	Start(ctx context.Context) error
	IsRunning(ctx context.Context) (bool, error)
}

// Compile-time checks that the concrete handlers satisfy the pipeline's views
var (
	_ QueryEngine    = (*athena.Handler)(nil)
	_ MetadataStore  = (*aurora.Handler)(nil)
	_ ObjectStore    = (*s3store.Handler)(nil)
	_ CrawlerControl = (*glue.Handler)(nil)
)

// Ingestor runs the ingest sequence for one log at a time.
type Ingestor struct {
	cfg     config.IngestConfig
	queries QueryEngine
	store   MetadataStore
	objects ObjectStore
	crawler CrawlerControl
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewIngestor creates an Ingestor with all dependencies. logger and
// collector may be nil.
func NewIngestor(
	cfg config.IngestConfig,
	queries QueryEngine,
	store MetadataStore,
	objects ObjectStore,
	crawler CrawlerControl,
	collector *metrics.Metrics,
	logger *zap.Logger,
) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		cfg:     cfg,
		queries: queries,
		store:   store,
		objects: objects,
		crawler: crawler,
		metrics: collector,
		logger:  logger,
		now:     time.Now,
	}
}

// Run ingests one landed log object identified by its loguid content hash
// and object key. Re-running for an already recorded loguid is a no-op.
func (i *Ingestor) Run(ctx context.Context, loguid, key string) error {
	log := i.logger.With(zap.String("loguid", loguid), zap.String("key", key))

	ok, err := i.objects.Exists(ctx, i.cfg.LandingBucket, key)
	if err != nil {
		return fmt.Errorf("checking landing object: %w", err)
	}
	if !ok {
		return fmt.Errorf("object %s/%s not found", i.cfg.LandingBucket, key)
	}

	recorded, err := i.store.LogExists(ctx, loguid)
	if err != nil {
		return fmt.Errorf("checking for duplicate log: %w", err)
	}
	if recorded {
		log.Info("log already recorded, skipping")
		return nil
	}

	rec := aurora.LogRecord{
		SHA256Hash: loguid,
		FileName:   key,
		Status:     StatusIngested,
		UploadTime: i.now(),
	}
	if err := i.store.InsertLog(ctx, rec); err != nil {
		return fmt.Errorf("recording log: %w", err)
	}
	log.Info("log recorded")

	if err := i.registerPartitions(ctx, loguid); err != nil {
		return i.quarantine(ctx, log, loguid, key, err)
	}

	if err := i.kickCrawler(ctx, log); err != nil {
		return i.quarantine(ctx, log, loguid, key, err)
	}

	i.metrics.LogIngested()
	log.Info("log ingested")
	return nil
}

// registerPartitions registers the log's telemetry folders as table
// partitions. A log whose parser output has not landed yet simply has no
// folders; the crawler covers it on its next run.
func (i *Ingestor) registerPartitions(ctx context.Context, loguid string) error {
	prefix := "LogUID=" + loguid + "/"
	folders, err := i.objects.ListFolders(ctx, i.cfg.DataPoolBucket, prefix)
	if err != nil {
		return fmt.Errorf("listing telemetry folders: %w", err)
	}
	if len(folders) == 0 {
		i.logger.Info("no telemetry folders yet", zap.String("loguid", loguid))
		return nil
	}

	added, err := i.queries.AddPartitions(ctx, folders, i.cfg.DataPoolBucket)
	if err != nil {
		return fmt.Errorf("registering partitions: %w", err)
	}
	if added {
		i.logger.Info("partitions registered",
			zap.String("loguid", loguid),
			zap.Int("folders", len(folders)))
	}
	return nil
}

// kickCrawler starts the catalog crawler unless a run is already in flight.
func (i *Ingestor) kickCrawler(ctx context.Context, log *zap.Logger) error {
	running, err := i.crawler.IsRunning(ctx)
	if err != nil {
		return fmt.Errorf("checking crawler state: %w", err)
	}
	if running {
		log.Debug("crawler already running")
		return nil
	}
	if err := i.crawler.Start(ctx); err != nil {
		return fmt.Errorf("starting crawler: %w", err)
	}
	return nil
}

// quarantine moves a failed log out of the landing bucket and marks its
// record failed. Both moves are best-effort; the original error is what the
// caller sees.
func (i *Ingestor) quarantine(ctx context.Context, log *zap.Logger, loguid, key string, cause error) error {
	log.Error("ingest failed, quarantining", zap.Error(cause))

	if err := i.objects.Quarantine(ctx, i.cfg.LandingBucket, key, i.cfg.UnprocessedBucket, "IngestFailure"); err != nil {
		log.Error("quarantine move failed", zap.Error(err))
	}
	if err := i.store.UpdateLogStatus(ctx, loguid, StatusFailed); err != nil {
		log.Error("marking log failed", zap.Error(err))
	}
	i.metrics.LogQuarantined()
	return fmt.Errorf("ingesting %s: %w", loguid, cause)
}
