// Command flightlog is the operator entry point for the flight-log access
// layer. It exposes three verbs: check (is a log known to the query engine
// and the metadata database), ingest (run the ingest pipeline for one landed
// log), and query (run one of the flight-log accessors).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	sdkathena "github.com/aws/aws-sdk-go-v2/service/athena"
	sdkglue "github.com/aws/aws-sdk-go-v2/service/glue"
	sdks3 "github.com/aws/aws-sdk-go-v2/service/s3"
	sdksecrets "github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.uber.org/zap"

	"github.com/CarbonixUAV/carbonix-aws-libs/athena"
	"github.com/CarbonixUAV/carbonix-aws-libs/aurora"
	"github.com/CarbonixUAV/carbonix-aws-libs/awsapi"
	"github.com/CarbonixUAV/carbonix-aws-libs/config"
	"github.com/CarbonixUAV/carbonix-aws-libs/glue"
	"github.com/CarbonixUAV/carbonix-aws-libs/metrics"
	"github.com/CarbonixUAV/carbonix-aws-libs/pipeline"
	"github.com/CarbonixUAV/carbonix-aws-libs/s3store"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: flightlog <check|ingest|query> [flags]")
	}

	switch args[0] {
	case "check":
		return runCheck(args[1:])
	case "ingest":
		return runIngest(args[1:])
	case "query":
		return runQuery(args[1:])
	default:
		return fmt.Errorf("unknown command %q (want check, ingest or query)", args[0])
	}
}

// clients bundles everything a verb needs after setup.
type clients struct {
	cfg     *config.Config
	logger  *zap.Logger
	athena  awsapi.AthenaAPI
	glue    awsapi.GlueAPI
	s3      awsapi.S3API
	secrets awsapi.SecretsManagerAPI
}

// setup loads and validates configuration, builds the logger and the AWS
// service clients.
func setup(ctx context.Context, configPath string) (*clients, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &clients{
		cfg:     cfg,
		logger:  logger,
		athena:  awsapi.NewAthenaClient(sdkathena.NewFromConfig(awsCfg)),
		glue:    awsapi.NewGlueClient(sdkglue.NewFromConfig(awsCfg)),
		s3:      awsapi.NewS3Client(sdks3.NewFromConfig(awsCfg)),
		secrets: awsapi.NewSecretsManagerClient(sdksecrets.NewFromConfig(awsCfg)),
	}, nil
}

func runCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "flightlog.yaml", "Path to the YAML config file")
	loguid := fs.String("loguid", "", "SHA-256 content hash of the log")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	if *loguid == "" {
		return fmt.Errorf("loguid is required")
	}

	ctx := context.Background()
	c, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer c.logger.Sync()

	queries := athena.NewHandler(c.athena, c.cfg.Athena, c.logger, nil)
	inPool, err := queries.LogExists(ctx, *loguid)
	if err != nil {
		return fmt.Errorf("checking telemetry pool: %w", err)
	}

	db, err := aurora.NewHandler(ctx, c.secrets, c.cfg.Database, c.logger)
	if err != nil {
		return err
	}
	defer db.Close()

	recorded, err := db.LogExists(ctx, *loguid)
	if err != nil {
		return fmt.Errorf("checking metadata database: %w", err)
	}

	fmt.Printf("loguid %s\n  telemetry pool: %v\n  metadata database: %v\n", *loguid, inPool, recorded)
	return nil
}

func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", "flightlog.yaml", "Path to the YAML config file")
	loguid := fs.String("loguid", "", "SHA-256 content hash of the log")
	key := fs.String("key", "", "Object key of the landed log file")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	if *loguid == "" || *key == "" {
		return fmt.Errorf("loguid and key are required")
	}

	ctx := context.Background()
	c, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer c.logger.Sync()

	if err := c.cfg.ValidateIngest(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	collector := metrics.NewMetrics()
	queries := athena.NewHandler(c.athena, c.cfg.Athena, c.logger, collector)
	objects := s3store.NewHandler(c.s3, c.logger)
	crawler := glue.NewHandler(c.glue, c.cfg.Ingest.CrawlerName, c.logger)

	db, err := aurora.NewHandler(ctx, c.secrets, c.cfg.Database, c.logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ing := pipeline.NewIngestor(c.cfg.Ingest, queries, db, objects, crawler, collector, c.logger)
	runErr := ing.Run(ctx, *loguid, *key)

	fmt.Println(collector.GenerateReport())
	return runErr
}

func runQuery(args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", "flightlog.yaml", "Path to the YAML config file")
	loguid := fs.String("loguid", "", "SHA-256 content hash of the log")
	op := fs.String("op", "firmware", "Accessor to run (firmware|boottime|events|stats)")
	fileType := fs.String("file-type", ".BIN", "Log file type for boottime (.BIN|.TLOG)")
	messageType := fs.String("message-type", "ARSP", "Message type for stats")
	keyName := fs.String("key-name", "Airspeed", "Key name for stats")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	if *loguid == "" {
		return fmt.Errorf("loguid is required")
	}

	ctx := context.Background()
	c, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer c.logger.Sync()

	queries := athena.NewHandler(c.athena, c.cfg.Athena, c.logger, nil)

	switch *op {
	case "firmware":
		fw, err := queries.FirmwareVersion(ctx, *loguid)
		if err != nil {
			return err
		}
		fmt.Println(fw)
	case "boottime":
		ts, err := queries.BootTime(ctx, *loguid, *fileType)
		if err != nil {
			return err
		}
		fmt.Println(ts)
	case "events":
		events, err := queries.FlightEvents(ctx, *loguid)
		if err != nil {
			return err
		}
		for _, ev := range events {
			fmt.Printf("%s\t%s\n", ev.Timestamp, ev.Event)
		}
	case "stats":
		stats, err := queries.InstanceStats(ctx, *loguid, *messageType, *keyName)
		if err != nil {
			return err
		}
		for _, st := range stats {
			fmt.Printf("instance=%s samples=%d min=%.3f max=%.3f avg=%.3f\n",
				st.Instance, st.Samples, st.Min, st.Max, st.Avg)
		}
	default:
		return fmt.Errorf("unknown op %q", *op)
	}
	return nil
}
