// Package s3store implements the object store accessor for flight-log
// buckets: existence and metadata checks, copies between buckets, uploads,
// downloads, deletion, listing, and the quarantine move for logs the
// pipeline could not process.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/CarbonixUAV/carbonix-aws-libs/awsapi"
)

// Handler wraps the object store API. Every method is a thin translation of
// one SDK call, with errors logged and returned.
//
// Example:
//
//	h := s3store.NewHandler(awsapi.NewS3Client(client), logger)
//	ok, err := h.Exists(ctx, "all-logs", "D9_143_20221102-223449.bin")
type Handler struct {
	api    awsapi.S3API
	logger *zap.Logger
}

// NewHandler creates a Handler. logger may be nil.
func NewHandler(api awsapi.S3API, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{api: api, logger: logger}
}

// ObjectInfo is one listed object with its size.
type ObjectInfo struct {
	Key  string
	Size int64
}

// notFound reports whether err is the object-missing condition of HeadObject.
func notFound(err error) bool {
	var nf *types.NotFound
	var nk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nk)
}

// Metadata returns the user metadata of an object.
func (h *Handler) Metadata(ctx context.Context, bucket, key string) (map[string]string, error) {
	out, err := h.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if notFound(err) {
		return nil, fmt.Errorf("object %s/%s does not exist", bucket, key)
	}
	if err != nil {
		h.logger.Error("head object", zap.String("bucket", bucket), zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("retrieving metadata for %s/%s: %w", bucket, key, err)
	}
	return out.Metadata, nil
}

// Exists reports whether an object or, for a '/'-suffixed name, any object
// under that prefix exists. Objects use HeadObject; prefixes use a listing
// capped at one key.
func (h *Handler) Exists(ctx context.Context, bucket, item string) (bool, error) {
	if strings.HasSuffix(item, "/") {
		out, err := h.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:  aws.String(bucket),
			Prefix:  aws.String(item),
			MaxKeys: aws.Int32(1),
		})
		if err != nil {
			h.logger.Error("list prefix", zap.String("bucket", bucket), zap.String("prefix", item), zap.Error(err))
			return false, fmt.Errorf("checking prefix %s/%s: %w", bucket, item, err)
		}
		return len(out.Contents) > 0, nil
	}

	_, err := h.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(item),
	})
	if notFound(err) {
		h.logger.Debug("object does not exist", zap.String("bucket", bucket), zap.String("key", item))
		return false, nil
	}
	if err != nil {
		h.logger.Error("head object", zap.String("bucket", bucket), zap.String("key", item), zap.Error(err))
		return false, fmt.Errorf("checking object %s/%s: %w", bucket, item, err)
	}
	return true, nil
}

// Copy performs a server-side copy between buckets.
func (h *Handler) Copy(ctx context.Context, sourceBucket, sourceKey, destBucket, destKey string) error {
	h.logger.Debug("copying object",
		zap.String("from", sourceBucket+"/"+sourceKey),
		zap.String("to", destBucket+"/"+destKey))

	_, err := h.api.CopyObject(ctx, &s3.CopyObjectInput{
		CopySource: aws.String(url.PathEscape(sourceBucket + "/" + sourceKey)),
		Bucket:     aws.String(destBucket),
		Key:        aws.String(destKey),
	})
	if err != nil {
		h.logger.Error("copy object", zap.Error(err))
		return fmt.Errorf("copying %s/%s to %s/%s: %w", sourceBucket, sourceKey, destBucket, destKey, err)
	}
	h.logger.Info("copied object",
		zap.String("from", sourceBucket+"/"+sourceKey),
		zap.String("to", destBucket+"/"+destKey))
	return nil
}

// Upload stores a local file under the given key.
func (h *Handler) Upload(ctx context.Context, filePath, bucket, key string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", filePath, err)
	}
	defer f.Close()

	_, err = h.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		h.logger.Error("put object", zap.String("bucket", bucket), zap.String("key", key), zap.Error(err))
		return fmt.Errorf("uploading %s to %s/%s: %w", filePath, bucket, key, err)
	}
	h.logger.Info("uploaded object", zap.String("bucket", bucket), zap.String("key", key))
	return nil
}

// UploadDir walks a local directory tree and uploads every file under the
// given prefix, preserving relative paths with forward slashes.
func (h *Handler) UploadDir(ctx context.Context, dir, bucket, prefix string) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(filepath.Join(prefix, rel))
		return h.Upload(ctx, path, bucket, key)
	})
	if err != nil {
		return fmt.Errorf("uploading directory %s: %w", dir, err)
	}
	h.logger.Info("uploaded directory", zap.String("dir", dir), zap.String("bucket", bucket), zap.String("prefix", prefix))
	return nil
}

// Download fetches an object into a local file.
func (h *Handler) Download(ctx context.Context, bucket, key, downloadPath string) error {
	out, err := h.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		h.logger.Error("get object", zap.String("bucket", bucket), zap.String("key", key), zap.Error(err))
		return fmt.Errorf("downloading %s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	f, err := os.Create(downloadPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", downloadPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, out.Body); err != nil {
		return fmt.Errorf("writing %s: %w", downloadPath, err)
	}
	h.logger.Info("downloaded object", zap.String("key", key), zap.String("path", downloadPath))
	return nil
}

// Delete removes an object.
func (h *Handler) Delete(ctx context.Context, bucket, key string) error {
	_, err := h.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		h.logger.Error("delete object", zap.String("bucket", bucket), zap.String("key", key), zap.Error(err))
		return fmt.Errorf("deleting %s/%s: %w", bucket, key, err)
	}
	h.logger.Info("deleted object", zap.String("bucket", bucket), zap.String("key", key))
	return nil
}

// list pages through every object under the prefix. Pass "" to cover the
// whole bucket.
func (h *Handler) list(ctx context.Context, bucket, prefix string) ([]types.Object, error) {
	var objects []types.Object
	var token *string
	for {
		in := &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			ContinuationToken: token,
		}
		if prefix != "" {
			in.Prefix = aws.String(prefix)
		}
		out, err := h.api.ListObjectsV2(ctx, in)
		if err != nil {
			h.logger.Error("list objects", zap.String("bucket", bucket), zap.Error(err))
			return nil, fmt.Errorf("listing %s: %w", bucket, err)
		}
		objects = append(objects, out.Contents...)
		if !aws.ToBool(out.IsTruncated) {
			return objects, nil
		}
		token = out.NextContinuationToken
	}
}

// ListFiles returns the keys of every object under the prefix.
func (h *Handler) ListFiles(ctx context.Context, bucket, prefix string) ([]string, error) {
	objects, err := h.list(ctx, bucket, prefix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		keys = append(keys, aws.ToString(obj.Key))
	}
	return keys, nil
}

// ListFilesWithSize returns every object under the prefix with its size.
func (h *Handler) ListFilesWithSize(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	objects, err := h.list(ctx, bucket, prefix)
	if err != nil {
		return nil, err
	}
	infos := make([]ObjectInfo, 0, len(objects))
	for _, obj := range objects {
		infos = append(infos, ObjectInfo{
			Key:  aws.ToString(obj.Key),
			Size: aws.ToInt64(obj.Size),
		})
	}
	return infos, nil
}

// ListFolders returns the sorted set of folder paths implied by the object
// keys under the prefix.
func (h *Handler) ListFolders(ctx context.Context, bucket, prefix string) ([]string, error) {
	objects, err := h.list(ctx, bucket, prefix)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, obj := range objects {
		key := aws.ToString(obj.Key)
		folder := key
		if !strings.HasSuffix(key, "/") {
			idx := strings.LastIndex(key, "/")
			if idx < 0 {
				continue
			}
			folder = key[:idx+1]
		}
		if folder != "/" {
			seen[folder] = struct{}{}
		}
	}

	folders := make([]string, 0, len(seen))
	for folder := range seen {
		folders = append(folders, folder)
	}
	sort.Strings(folders)
	return folders, nil
}

// Quarantine moves an object into the unprocessed bucket under a
// timestamped prefix, deleting the source only after the copy succeeds.
func (h *Handler) Quarantine(ctx context.Context, sourceBucket, sourceKey, destBucket, prefix string) error {
	if prefix == "" {
		prefix = "NoCategory"
	}
	destKey := fmt.Sprintf("%s/%s/%s", prefix, time.Now().Format("20060102-150405"), sourceKey)

	if err := h.Copy(ctx, sourceBucket, sourceKey, destBucket, destKey); err != nil {
		return err
	}
	return h.Delete(ctx, sourceBucket, sourceKey)
}
