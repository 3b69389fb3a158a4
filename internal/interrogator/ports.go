// Package interrogator implements the per-file inspect-and-re-encrypt state
// machine, the batch driver around it, and the interrogation bucket cleaner.
package interrogator

import (
	"context"

	"github.com/ghga-de/datahub-file-service/internal/models"
)

// CentralClient is the contract the interrogator needs from the GHGA
// Central API.
type CentralClient interface {
	FetchNewUploads(ctx context.Context) ([]models.FileUpload, error)
	GetRemovableFiles(ctx context.Context, fileIDs []string) ([]string, error)
	SubmitInterrogationReport(ctx context.Context, report *models.InterrogationReport) error
}

// MultipartUpload is the handle for one in-progress upload to the
// interrogation bucket.
type MultipartUpload interface {
	UploadID() string
	UploadPart(ctx context.Context, partNo int, partMD5 string, part []byte) error
	Complete(ctx context.Context) (etag string, err error)
	Abort(ctx context.Context) error
	AbortIfOpen(ctx context.Context)
}

// ObjectStore is the contract the interrogator needs from the object store.
type ObjectStore interface {
	FileExistsInInbox(ctx context.Context, objectID string) (bool, error)
	FetchContentRange(ctx context.Context, objectID string, start, stop int64) ([]byte, error)
	ListInterrogationObjects(ctx context.Context) ([]string, error)
	InitUpload(ctx context.Context, objectID string) (MultipartUpload, error)
	RemoveObject(ctx context.Context, objectID string) error
}
