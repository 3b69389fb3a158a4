package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/ghga-de/datahub-file-service/internal/config"
)

// storage binds one configured alias to its bucket and API clients.
type storage struct {
	bucket  string
	api     *awss3.Client
	presign *awss3.PresignClient
}

// Client performs the object-store operations of the interrogation pipeline
// against the inbox and interrogation buckets.
type Client struct {
	inbox         storage
	interrogation storage
	httpClient    *http.Client
	logger        zerolog.Logger
}

// NewClient resolves the inbox and interrogation aliases from the
// configuration and builds one S3 API client per storage. The given HTTP
// client is shared by the AWS clients and the presigned part uploads.
func NewClient(ctx context.Context, cfg *config.Config, httpClient *http.Client, logger zerolog.Logger) (*Client, error) {
	inbox, err := newStorage(ctx, cfg, cfg.InboxStorageAlias, httpClient)
	if err != nil {
		return nil, err
	}
	interrogation, err := newStorage(ctx, cfg, cfg.InterrogationStorageAlias, httpClient)
	if err != nil {
		return nil, err
	}
	return &Client{
		inbox:         inbox,
		interrogation: interrogation,
		httpClient:    httpClient,
		logger:        logger,
	}, nil
}

func newStorage(ctx context.Context, cfg *config.Config, alias string, httpClient *http.Client) (storage, error) {
	storageCfg, ok := cfg.ObjectStorages[alias]
	if !ok {
		return storage{}, &StorageAliasNotConfiguredError{Alias: alias}
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(storageCfg.Region),
		awsconfig.WithHTTPClient(httpClient),
		awsconfig.WithCredentialsProvider(awscreds.NewStaticCredentialsProvider(
			storageCfg.AccessKeyID,
			storageCfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return storage{}, fmt.Errorf("failed to load AWS config for alias %s: %w", alias, err)
	}

	api := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if storageCfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(storageCfg.EndpointURL)
			// S3-compatible stores generally do not support virtual-hosted
			// addressing.
			o.UsePathStyle = true
		}
	})

	return storage{
		bucket:  storageCfg.Bucket,
		api:     api,
		presign: awss3.NewPresignClient(api),
	}, nil
}

// FileExistsInInbox reports whether the object exists in the inbox bucket.
func (c *Client) FileExistsInInbox(ctx context.Context, objectID string) (bool, error) {
	_, err := c.inbox.api.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(c.inbox.bucket),
		Key:    aws.String(objectID),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		if isNoSuchBucket(err) {
			c.logger.Error().Str("bucket_id", c.inbox.bucket).Msg("inbox bucket does not exist")
			return false, &BucketNotFoundError{Bucket: c.inbox.bucket, Err: err}
		}
		return false, fmt.Errorf("failed to check object %s in the inbox: %w", objectID, err)
	}
	return true, nil
}

// FetchContentRange downloads the half-open byte range [start, stop) of an
// inbox object. The range is translated to the inclusive form the HTTP wire
// requires.
func (c *Client) FetchContentRange(ctx context.Context, objectID string, start, stop int64) ([]byte, error) {
	rangeHeader := fmt.Sprintf("bytes=%d-%d", start, stop-1)
	resp, err := c.inbox.api.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(c.inbox.bucket),
		Key:    aws.String(objectID),
		Range:  aws.String(rangeHeader),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, &ObjectNotFoundError{Bucket: c.inbox.bucket, Object: objectID}
		}
		return nil, &DownloadError{Object: objectID, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DownloadError{Object: objectID, Err: err}
	}
	if int64(len(data)) != stop-start {
		return nil, &DownloadError{
			Object: objectID,
			Err:    fmt.Errorf("expected %d bytes for range %d-%d, got %d", stop-start, start, stop, len(data)),
		}
	}
	return data, nil
}

// ListInterrogationObjects returns the keys of all objects currently in the
// interrogation bucket.
func (c *Client) ListInterrogationObjects(ctx context.Context) ([]string, error) {
	var keys []string
	paginator := awss3.NewListObjectsV2Paginator(c.interrogation.api, &awss3.ListObjectsV2Input{
		Bucket: aws.String(c.interrogation.bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if isNoSuchBucket(err) {
				c.logger.Error().Str("bucket_id", c.interrogation.bucket).Msg("interrogation bucket does not exist")
				return nil, &BucketNotFoundError{Bucket: c.interrogation.bucket, Err: err}
			}
			return nil, fmt.Errorf("failed to list the interrogation bucket: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// RemoveObject deletes an object from the interrogation bucket. A missing
// object is a warning, not an error; deletion is idempotent.
func (c *Client) RemoveObject(ctx context.Context, objectID string) error {
	exists, err := c.objectExistsInInterrogation(ctx, objectID)
	if err != nil {
		return err
	}
	if !exists {
		c.logger.Warn().
			Str("bucket_id", c.interrogation.bucket).
			Str("object_id", objectID).
			Msg("object to delete was not found")
		return nil
	}
	if _, err := c.interrogation.api.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(c.interrogation.bucket),
		Key:    aws.String(objectID),
	}); err != nil {
		return &CleanupError{Bucket: c.interrogation.bucket, Object: objectID, Err: err}
	}
	return nil
}

func (c *Client) objectExistsInInterrogation(ctx context.Context, objectID string) (bool, error) {
	_, err := c.interrogation.api.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(c.interrogation.bucket),
		Key:    aws.String(objectID),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		if isNoSuchBucket(err) {
			c.logger.Error().Str("bucket_id", c.interrogation.bucket).Msg("interrogation bucket does not exist")
			return false, &BucketNotFoundError{Bucket: c.interrogation.bucket, Err: err}
		}
		return false, fmt.Errorf("failed to check object %s in the interrogation bucket: %w", objectID, err)
	}
	return true, nil
}

// ObjectETag reads the ETag of an object in the interrogation bucket,
// without the surrounding quotes.
func (c *Client) ObjectETag(ctx context.Context, objectID string) (string, error) {
	resp, err := c.interrogation.api.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(c.interrogation.bucket),
		Key:    aws.String(objectID),
	})
	if err != nil {
		if isNotFound(err) {
			return "", &ObjectNotFoundError{Bucket: c.interrogation.bucket, Object: objectID}
		}
		return "", fmt.Errorf("failed to read the ETag of object %s: %w", objectID, err)
	}
	return trimETag(aws.ToString(resp.ETag)), nil
}

func trimETag(etag string) string {
	if len(etag) >= 2 && etag[0] == '"' && etag[len(etag)-1] == '"' {
		return etag[1 : len(etag)-1]
	}
	return etag
}

// isNotFound reports whether an S3 error means the object does not exist.
func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound"
}

// isNoSuchBucket reports whether an S3 error means the bucket does not
// exist.
func isNoSuchBucket(err error) bool {
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchBucket"
}
