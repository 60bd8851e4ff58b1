// Package awsapi defines the narrow AWS service surfaces the handlers depend
// on. Each interface covers exactly the SDK calls a handler issues, so tests
// can substitute hand-written mocks without touching the network.
package awsapi

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// AthenaAPI defines the Athena operations used by the query lifecycle manager:
// submitting a query, observing its execution state, fetching results, and a
// best-effort stop when a wait is abandoned.
type AthenaAPI interface {
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
	GetQueryResults(ctx context.Context, params *athena.GetQueryResultsInput, optFns ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error)
	StopQueryExecution(ctx context.Context, params *athena.StopQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StopQueryExecutionOutput, error)
}

// GlueAPI defines the crawler operations used by the crawler accessor.
type GlueAPI interface {
	StartCrawler(ctx context.Context, params *glue.StartCrawlerInput, optFns ...func(*glue.Options)) (*glue.StartCrawlerOutput, error)
	GetCrawler(ctx context.Context, params *glue.GetCrawlerInput, optFns ...func(*glue.Options)) (*glue.GetCrawlerOutput, error)
}

// S3API defines the object store operations used by the S3 accessor.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// SecretsManagerAPI defines the single secret fetch the relational accessor
// performs at startup.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Compile-time interface checks to ensure implementations satisfy interfaces
var (
	_ AthenaAPI         = (*AthenaClientImpl)(nil)
	_ GlueAPI           = (*GlueClientImpl)(nil)
	_ S3API             = (*S3ClientImpl)(nil)
	_ SecretsManagerAPI = (*SecretsManagerClientImpl)(nil)

	// AWS SDK interface checks to ensure SDK clients satisfy interfaces
	_ AthenaAPI         = (*athena.Client)(nil)
	_ GlueAPI           = (*glue.Client)(nil)
	_ S3API             = (*s3.Client)(nil)
	_ SecretsManagerAPI = (*secretsmanager.Client)(nil)
)
