// Package awsapi defines the narrow AWS service surfaces the handlers depend
// on. This file contains the concrete implementations wrapping the SDK
// clients.
package awsapi

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// AthenaClientImpl implements AthenaAPI using the AWS SDK Athena client.
type AthenaClientImpl struct {
	client *athena.Client
}

// NewAthenaClient creates a new AthenaClientImpl instance
func NewAthenaClient(client *athena.Client) *AthenaClientImpl {
	return &AthenaClientImpl{client: client}
}

// StartQueryExecution implements the AthenaAPI interface for submitting queries
func (c *AthenaClientImpl) StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error) {
	return c.client.StartQueryExecution(ctx, params, optFns...)
}

// GetQueryExecution implements the AthenaAPI interface for observing query state
func (c *AthenaClientImpl) GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error) {
	return c.client.GetQueryExecution(ctx, params, optFns...)
}

// GetQueryResults implements the AthenaAPI interface for fetching result rows
func (c *AthenaClientImpl) GetQueryResults(ctx context.Context, params *athena.GetQueryResultsInput, optFns ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error) {
	return c.client.GetQueryResults(ctx, params, optFns...)
}

// StopQueryExecution implements the AthenaAPI interface for cancelling a run
func (c *AthenaClientImpl) StopQueryExecution(ctx context.Context, params *athena.StopQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StopQueryExecutionOutput, error) {
	return c.client.StopQueryExecution(ctx, params, optFns...)
}

// GlueClientImpl implements GlueAPI using the AWS SDK Glue client.
type GlueClientImpl struct {
	client *glue.Client
}

// NewGlueClient creates a new GlueClientImpl instance
func NewGlueClient(client *glue.Client) *GlueClientImpl {
	return &GlueClientImpl{client: client}
}

// StartCrawler implements the GlueAPI interface for starting a named crawler
func (c *GlueClientImpl) StartCrawler(ctx context.Context, params *glue.StartCrawlerInput, optFns ...func(*glue.Options)) (*glue.StartCrawlerOutput, error) {
	return c.client.StartCrawler(ctx, params, optFns...)
}

// GetCrawler implements the GlueAPI interface for reading crawler state
func (c *GlueClientImpl) GetCrawler(ctx context.Context, params *glue.GetCrawlerInput, optFns ...func(*glue.Options)) (*glue.GetCrawlerOutput, error) {
	return c.client.GetCrawler(ctx, params, optFns...)
}

// S3ClientImpl implements S3API using the AWS SDK S3 client.
type S3ClientImpl struct {
	client *s3.Client
}

// NewS3Client creates a new S3ClientImpl instance
func NewS3Client(client *s3.Client) *S3ClientImpl {
	return &S3ClientImpl{client: client}
}

// HeadObject implements the S3API interface for retrieving object metadata
func (c *S3ClientImpl) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	return c.client.HeadObject(ctx, params, optFns...)
}

// GetObject implements the S3API interface for reading objects
func (c *S3ClientImpl) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return c.client.GetObject(ctx, params, optFns...)
}

// PutObject implements the S3API interface for writing objects
func (c *S3ClientImpl) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return c.client.PutObject(ctx, params, optFns...)
}

// CopyObject implements the S3API interface for server-side copies
func (c *S3ClientImpl) CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	return c.client.CopyObject(ctx, params, optFns...)
}

// DeleteObject implements the S3API interface for deleting objects
func (c *S3ClientImpl) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	return c.client.DeleteObject(ctx, params, optFns...)
}

// ListObjectsV2 implements the S3API interface for listing bucket contents
func (c *S3ClientImpl) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	return c.client.ListObjectsV2(ctx, params, optFns...)
}

// SecretsManagerClientImpl implements SecretsManagerAPI using the AWS SDK
// Secrets Manager client.
type SecretsManagerClientImpl struct {
	client *secretsmanager.Client
}

// NewSecretsManagerClient creates a new SecretsManagerClientImpl instance
func NewSecretsManagerClient(client *secretsmanager.Client) *SecretsManagerClientImpl {
	return &SecretsManagerClientImpl{client: client}
}

// GetSecretValue implements the SecretsManagerAPI interface for fetching secrets
func (c *SecretsManagerClientImpl) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return c.client.GetSecretValue(ctx, params, optFns...)
}
