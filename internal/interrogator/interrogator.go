package interrogator

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ghga-de/datahub-file-service/internal/checksums"
	"github.com/ghga-de/datahub-file-service/internal/crypt4gh"
	"github.com/ghga-de/datahub-file-service/internal/models"
)

// Interrogator inspects and re-encrypts newly uploaded files. It processes
// one file at a time; within a file, parts are handled strictly in order so
// that part numbering, the checksum lists, and the rolling plaintext digest
// stay deterministic.
type Interrogator struct {
	central           CentralClient
	store             ObjectStore
	logger            zerolog.Logger
	inboxStorageAlias string
	dataHubSecretKey  []byte
}

// New builds an Interrogator. dataHubSecretKey is the Crypt4GH private key
// that decrypts inbound file envelopes.
func New(
	central CentralClient,
	store ObjectStore,
	logger zerolog.Logger,
	inboxStorageAlias string,
	dataHubSecretKey []byte,
) *Interrogator {
	return &Interrogator{
		central:           central,
		store:             store,
		logger:            logger,
		inboxStorageAlias: inboxStorageAlias,
		dataHubSecretKey:  dataHubSecretKey,
	}
}

// InterrogateNewFiles fetches the list of pending uploads from the Central
// API and processes them sequentially. A failure caused by a submitted file
// produces exactly one failure report and does not stop the batch;
// infrastructure and code faults abort the batch and leave the current file
// pending.
func (i *Interrogator) InterrogateNewFiles(ctx context.Context) error {
	uploads, err := i.central.FetchNewUploads(ctx)
	if err != nil {
		return err
	}
	i.logger.Info().Int("count", len(uploads)).Msg("fetched new uploads")

	for _, upload := range uploads {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := i.InterrogateFile(ctx, &upload); err != nil {
			reason, catchable := asInterrogationFailure(err)
			if !catchable {
				return err
			}
			i.logger.Warn().
				Str("upload_id", upload.ID.String()).
				Str("reason", reason).
				Msg("file failed interrogation")
			if reportErr := i.reportFailure(ctx, upload.ID, reason); reportErr != nil {
				return reportErr
			}
		}
	}
	return nil
}

// InterrogateFile runs the full state machine for one file: verify the
// declared plaintext checksum, replace the file secret, stage the
// re-encrypted object as a segment-aligned multipart upload, and submit the
// success report. Failures caused by the submitted file are returned, not
// reported; InterrogateNewFiles turns them into failure reports.
func (i *Interrogator) InterrogateFile(ctx context.Context, upload *models.FileUpload) (err error) {
	objectID := upload.ID.String()
	logger := i.logger.With().Str("upload_id", objectID).Logger()

	if err := upload.Validate(); err != nil {
		return &interrogationFailedError{reason: "the declared file sizes are inconsistent", err: err}
	}

	exists, err := i.store.FileExistsInInbox(ctx, objectID)
	if err != nil {
		return err
	}
	if !exists {
		return &FileNotFoundError{FileID: upload.ID}
	}

	// The envelope length follows from the declared sizes alone; fetch
	// exactly that prefix and unwrap the file secret from it.
	offset := upload.Offset()
	if offset <= 0 {
		return &interrogationFailedError{reason: "the declared sizes leave no room for a file envelope"}
	}
	envelope, err := i.store.FetchContentRange(ctx, objectID, 0, offset)
	if err != nil {
		return err
	}
	originalSecret, consumed, err := crypt4gh.DecodeEnvelope(envelope, i.dataHubSecretKey)
	if err != nil {
		return &interrogationFailedError{reason: "the file envelope could not be decrypted", err: err}
	}
	if int64(consumed) != offset {
		return &interrogationFailedError{
			reason: "the file envelope length does not match the declared sizes",
			err:    fmt.Errorf("envelope spans %d bytes but the declared sizes imply %d", consumed, offset),
		}
	}

	mpu, err := i.store.InitUpload(ctx, objectID)
	if err != nil {
		return err
	}
	// Best-effort abort must still reach the store when the context was
	// cancelled mid-file.
	defer mpu.AbortIfOpen(context.WithoutCancel(ctx))
	logger = logger.With().Str("s3_upload_id", mpu.UploadID()).Logger()

	newSecret, err := models.NewSecret()
	if err != nil {
		return err
	}
	defer newSecret.Wipe()

	tracker := checksums.NewTracker()

	for partNo, partRange := range upload.EncryptedPartRanges() {
		if err := ctx.Err(); err != nil {
			return err
		}

		part, err := i.store.FetchContentRange(ctx, objectID, offset+partRange.Start, offset+partRange.Stop)
		if err != nil {
			return err
		}

		decrypted, err := crypt4gh.DecryptSegment(part, originalSecret)
		if err != nil {
			if abortErr := mpu.Abort(ctx); abortErr != nil {
				return abortErr
			}
			return &interrogationFailedError{
				reason: fmt.Sprintf("part %d could not be decrypted with the file's secret", partNo),
				err:    err,
			}
		}
		logger.Debug().Int("part_no", partNo).Msg("decrypted part")

		reencrypted, err := crypt4gh.EncryptSegment(decrypted, newSecret.Bytes())
		if err != nil {
			return err
		}
		logger.Debug().Int("part_no", partNo).Msg("re-encrypted part")

		// Confirm the round trip before anything is uploaded or reported:
		// the rolling plaintext digest is fed from what the new ciphertext
		// actually decrypts to.
		roundTrip, err := crypt4gh.DecryptSegment(reencrypted, newSecret.Bytes())
		if err != nil || !bytes.Equal(roundTrip, decrypted) {
			confirmErr := &ConfirmationError{PartNo: partNo}
			logger.Error().Err(err).Int("part_no", partNo).Msg(confirmErr.Error())
			return confirmErr
		}

		tracker.UpdateEncrypted(reencrypted)
		tracker.UpdateUnencrypted(roundTrip)

		if err := mpu.UploadPart(ctx, partNo, tracker.LastPartMD5(), reencrypted); err != nil {
			return err
		}
	}

	if computed := tracker.UnencryptedHex(); computed != upload.DecryptedSHA256 {
		logger.Warn().Msg("SHA-256 checksum over unencrypted content does not match the value submitted with the file")
		if abortErr := mpu.Abort(ctx); abortErr != nil {
			return abortErr
		}
		if removeErr := i.store.RemoveObject(ctx, objectID); removeErr != nil {
			return removeErr
		}
		return &interrogationFailedError{
			reason: "SHA-256 checksum over unencrypted content does not match the value submitted with the file",
		}
	}

	expectedETag := tracker.ETagForStore()
	actualETag, err := mpu.Complete(ctx)
	if err != nil {
		return err
	}
	if expectedETag != actualETag {
		mismatch := &ChecksumMismatchError{ObjectID: objectID, Expected: expectedETag, Actual: actualETag}
		logger.Error().Str("object_id", objectID).Msg(mismatch.Error())
		return mismatch
	}

	return i.reportSuccess(ctx, upload.ID, newSecret, tracker)
}

// reportSuccess submits an InterrogationReport for a passed interrogation.
func (i *Interrogator) reportSuccess(
	ctx context.Context,
	fileID uuid.UUID,
	secret *models.Secret,
	tracker *checksums.Tracker,
) error {
	report := &models.InterrogationReport{
		FileID:               fileID,
		StorageAlias:         i.inboxStorageAlias,
		InterrogatedAt:       time.Now().UTC(),
		Passed:               true,
		Secret:               secret,
		EncryptedPartsMD5:    tracker.EncryptedPartsMD5(),
		EncryptedPartsSHA256: tracker.EncryptedPartsSHA256(),
	}
	return i.central.SubmitInterrogationReport(ctx, report)
}

// reportFailure submits an InterrogationReport for a failed interrogation.
func (i *Interrogator) reportFailure(ctx context.Context, fileID uuid.UUID, reason string) error {
	report := &models.InterrogationReport{
		FileID:         fileID,
		StorageAlias:   i.inboxStorageAlias,
		InterrogatedAt: time.Now().UTC(),
		Passed:         false,
		Reason:         reason,
	}
	return i.central.SubmitInterrogationReport(ctx, report)
}
