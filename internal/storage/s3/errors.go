// Package s3 provides the typed object-store client used by the
// interrogation pipeline: existence checks, byte-range reads, the multipart
// upload lifecycle, and object deletion.
package s3

import "fmt"

// StorageAliasNotConfiguredError is returned when no object storage
// configuration exists for an alias.
type StorageAliasNotConfiguredError struct {
	Alias string
}

func (e *StorageAliasNotConfiguredError) Error() string {
	return fmt.Sprintf("could not find a storage configuration for alias %s", e.Alias)
}

// BucketNotFoundError is returned when a configured bucket does not exist.
// The buckets are expected to exist; this is an infrastructure fault.
type BucketNotFoundError struct {
	Bucket string
	Err    error
}

func (e *BucketNotFoundError) Error() string {
	return fmt.Sprintf("bucket %s does not exist", e.Bucket)
}

func (e *BucketNotFoundError) Unwrap() error { return e.Err }

// ObjectNotFoundError is returned when an object that must exist is missing.
type ObjectNotFoundError struct {
	Bucket string
	Object string
}

func (e *ObjectNotFoundError) Error() string {
	return fmt.Sprintf("object %s does not exist in bucket %s", e.Object, e.Bucket)
}

// DownloadError is returned when a byte range cannot be fetched from the
// inbox.
type DownloadError struct {
	Object string
	Err    error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("failed to download a part of object %s: %v", e.Object, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// UploadInitError is returned when a multipart upload cannot be started.
type UploadInitError struct {
	Object string
	Err    error
}

func (e *UploadInitError) Error() string {
	return fmt.Sprintf("failed to initiate a multipart upload for object %s: %v", e.Object, e.Err)
}

func (e *UploadInitError) Unwrap() error { return e.Err }

// UploadError is returned when a part cannot be uploaded.
type UploadError struct {
	Object string
	PartNo int
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("failed to upload part %d of object %s: %v", e.PartNo, e.Object, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// BadPartMD5Error is returned when the store rejects a part because its
// Content-MD5 did not match the bytes received.
type BadPartMD5Error struct {
	Object string
	PartNo int
}

func (e *BadPartMD5Error) Error() string {
	return fmt.Sprintf(
		"failed to upload part %d for file %s because the MD5 hash didn't match the expected value",
		e.PartNo, e.Object,
	)
}

// UploadCompletionError is returned when a multipart upload cannot be
// completed.
type UploadCompletionError struct {
	Object   string
	UploadID string
	Err      error
}

func (e *UploadCompletionError) Error() string {
	return fmt.Sprintf("failed to complete multipart upload %s for object %s: %v", e.UploadID, e.Object, e.Err)
}

func (e *UploadCompletionError) Unwrap() error { return e.Err }

// CleanupError is returned when an object cannot be deleted during cleanup.
type CleanupError struct {
	Bucket string
	Object string
	Err    error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("failed to delete object %s from the %s bucket", e.Object, e.Bucket)
}

func (e *CleanupError) Unwrap() error { return e.Err }
