package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// MultipartUpload is the handle for one in-progress upload to the
// interrogation bucket. Parts must be uploaded sequentially starting at part
// number 0; the handle tracks completion so that AbortIfOpen only aborts
// uploads that were neither completed nor already aborted.
type MultipartUpload struct {
	client   *Client
	objectID string
	uploadID string
	parts    []types.CompletedPart
	closed   bool
}

// UploadID returns the store-assigned upload identifier.
func (u *MultipartUpload) UploadID() string {
	return u.uploadID
}

// InitUpload starts a multipart upload for the object in the interrogation
// bucket.
func (c *Client) InitUpload(ctx context.Context, objectID string) (*MultipartUpload, error) {
	resp, err := c.interrogation.api.CreateMultipartUpload(ctx, &awss3.CreateMultipartUploadInput{
		Bucket: aws.String(c.interrogation.bucket),
		Key:    aws.String(objectID),
	})
	if err != nil {
		if isNoSuchBucket(err) {
			c.logger.Error().Str("bucket_id", c.interrogation.bucket).Msg("interrogation bucket does not exist")
			return nil, &BucketNotFoundError{Bucket: c.interrogation.bucket, Err: err}
		}
		return nil, &UploadInitError{Object: objectID, Err: err}
	}
	uploadID := aws.ToString(resp.UploadId)
	c.logger.Info().
		Str("upload_id", uploadID).
		Str("object_id", objectID).
		Msg("created multipart upload")
	return &MultipartUpload{client: c, objectID: objectID, uploadID: uploadID}, nil
}

// UploadPart uploads one re-encrypted part. partNo is zero-based; the
// store's one-based part numbering is an adapter concern. The part bytes are
// PUT against a presigned URL with the Content-MD5 the caller computed; a
// 400 response means the store rejected the digest.
func (u *MultipartUpload) UploadPart(ctx context.Context, partNo int, partMD5 string, part []byte) error {
	partNumber := int32(partNo) + 1

	presigned, err := u.client.interrogation.presign.PresignUploadPart(ctx, &awss3.UploadPartInput{
		Bucket:        aws.String(u.client.interrogation.bucket),
		Key:           aws.String(u.objectID),
		UploadId:      aws.String(u.uploadID),
		PartNumber:    aws.Int32(partNumber),
		ContentMD5:    aws.String(partMD5),
		ContentLength: aws.Int64(int64(len(part))),
	})
	if err != nil {
		return &UploadError{Object: u.objectID, PartNo: partNo, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, presigned.Method, presigned.URL, bytes.NewReader(part))
	if err != nil {
		return &UploadError{Object: u.objectID, PartNo: partNo, Err: err}
	}
	for key, values := range presigned.SignedHeader {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Content-MD5", partMD5)
	req.ContentLength = int64(len(part))

	resp, err := u.client.httpClient.Do(req)
	if err != nil {
		return &UploadError{Object: u.objectID, PartNo: partNo, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		return &BadPartMD5Error{Object: u.objectID, PartNo: partNo}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &UploadError{
			Object: u.objectID,
			PartNo: partNo,
			Err:    fmt.Errorf("part PUT returned status %d: %s", resp.StatusCode, body),
		}
	}

	u.parts = append(u.parts, types.CompletedPart{
		ETag:       aws.String(trimETag(resp.Header.Get("ETag"))),
		PartNumber: aws.Int32(partNumber),
	})
	return nil
}

// Complete finishes the multipart upload and returns the whole-object ETag
// reported by the store, without quotes.
func (u *MultipartUpload) Complete(ctx context.Context) (string, error) {
	_, err := u.client.interrogation.api.CompleteMultipartUpload(ctx, &awss3.CompleteMultipartUploadInput{
		Bucket:   aws.String(u.client.interrogation.bucket),
		Key:      aws.String(u.objectID),
		UploadId: aws.String(u.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: u.parts,
		},
	})
	if err != nil {
		u.client.logger.Error().
			Err(err).
			Str("upload_id", u.uploadID).
			Str("bucket_id", u.client.interrogation.bucket).
			Str("object_id", u.objectID).
			Msg("completing the multipart upload failed")
		return "", &UploadCompletionError{Object: u.objectID, UploadID: u.uploadID, Err: err}
	}
	u.closed = true

	etag, err := u.client.ObjectETag(ctx, u.objectID)
	if err != nil {
		return "", &UploadCompletionError{Object: u.objectID, UploadID: u.uploadID, Err: err}
	}
	return etag, nil
}

// Abort aborts the multipart upload. A missing upload is a warning, not an
// error.
func (u *MultipartUpload) Abort(ctx context.Context) error {
	_, err := u.client.interrogation.api.AbortMultipartUpload(ctx, &awss3.AbortMultipartUploadInput{
		Bucket:   aws.String(u.client.interrogation.bucket),
		Key:      aws.String(u.objectID),
		UploadId: aws.String(u.uploadID),
	})
	if err != nil {
		var noSuchUpload *types.NoSuchUpload
		if errors.As(err, &noSuchUpload) {
			u.client.logger.Warn().
				Str("upload_id", u.uploadID).
				Str("object_id", u.objectID).
				Msg("multipart upload to abort was not found")
			u.closed = true
			return nil
		}
		u.client.logger.Error().
			Err(err).
			Str("upload_id", u.uploadID).
			Str("bucket_id", u.client.interrogation.bucket).
			Str("object_id", u.objectID).
			Msg("aborting the multipart upload failed")
		return fmt.Errorf("failed to abort multipart upload %s for object %s: %w", u.uploadID, u.objectID, err)
	}
	u.closed = true
	return nil
}

// AbortIfOpen aborts the upload unless it was completed or already aborted.
// Intended for deferred cleanup; failures are logged, not returned.
func (u *MultipartUpload) AbortIfOpen(ctx context.Context) {
	if u.closed {
		return
	}
	if err := u.Abort(ctx); err != nil {
		u.client.logger.Error().
			Err(err).
			Str("upload_id", u.uploadID).
			Str("object_id", u.objectID).
			Msg("best-effort abort of the multipart upload failed")
	}
}
