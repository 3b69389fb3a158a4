package interrogator

import (
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ghga-de/datahub-file-service/internal/central"
	"github.com/ghga-de/datahub-file-service/internal/constants"
	"github.com/ghga-de/datahub-file-service/internal/storage/s3"
)

func newInterrogator(centralClient *fakeCentral, store *fakeStore, readerKey []byte) *Interrogator {
	return New(centralClient, store, zerolog.Nop(), "inbox", readerKey)
}

func TestInterrogateFileSingleSegment(t *testing.T) {
	store := newFakeStore()
	centralClient := &fakeCentral{}
	file := makeTestFile(t, store, randomContent(t, constants.SegmentSize))

	worker := newInterrogator(centralClient, store, file.readerKey)
	if err := worker.InterrogateFile(t.Context(), &file.upload); err != nil {
		t.Fatalf("InterrogateFile() failed: %v", err)
	}

	if len(centralClient.reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(centralClient.reports))
	}
	report := centralClient.reports[0]
	if !report.Passed {
		t.Fatalf("report not passed, reason: %s", report.Reason)
	}
	if len(report.EncryptedPartsMD5) != 1 || len(report.EncryptedPartsSHA256) != 1 {
		t.Errorf("got %d/%d part digests, want 1/1", len(report.EncryptedPartsMD5), len(report.EncryptedPartsSHA256))
	}

	// The staged object must decrypt to the original content under the new
	// secret reported to central.
	staged, ok := store.interrogation[file.upload.ID.String()]
	if !ok {
		t.Fatal("no object was staged in the interrogation bucket")
	}
	assertEqualBytes(t, decryptObject(t, staged, centralClient.secrets[0]), file.plaintext, "re-encrypted content")
}

func TestInterrogateFileMultiplePartsWithRemainder(t *testing.T) {
	store := newFakeStore()
	centralClient := &fakeCentral{}
	file := makeTestFile(t, store, randomContent(t, 3*constants.SegmentSize+10))

	worker := newInterrogator(centralClient, store, file.readerKey)
	if err := worker.InterrogateFile(t.Context(), &file.upload); err != nil {
		t.Fatalf("InterrogateFile() failed: %v", err)
	}

	report := centralClient.reports[0]
	if len(report.EncryptedPartsMD5) != 4 {
		t.Fatalf("got %d parts, want 4", len(report.EncryptedPartsMD5))
	}

	mpu := store.mpus[0]
	wantLast := 10 + constants.NonceLength + constants.AuthTagLength
	if got := len(mpu.parts[3]); got != wantLast {
		t.Errorf("last part is %d bytes, want %d", got, wantLast)
	}
	for i := 0; i < 3; i++ {
		if got := len(mpu.parts[i]); got != constants.CipherSegmentSize {
			t.Errorf("part %d is %d bytes, want %d", i, got, constants.CipherSegmentSize)
		}
	}
	if !mpu.completed {
		t.Error("multipart upload was not completed")
	}

	staged := store.interrogation[file.upload.ID.String()]
	assertEqualBytes(t, decryptObject(t, staged, centralClient.secrets[0]), file.plaintext, "re-encrypted content")
}

func TestInterrogateNewFilesChecksumMismatch(t *testing.T) {
	store := newFakeStore()
	centralClient := &fakeCentral{}
	file := makeTestFile(t, store, randomContent(t, constants.SegmentSize))

	// Flip the submitted plaintext digest so verification must fail.
	digest := []byte(file.upload.DecryptedSHA256)
	if digest[0] == 'f' {
		digest[0] = '0'
	} else {
		digest[0] = 'f'
	}
	file.upload.DecryptedSHA256 = string(digest)
	centralClient.uploads = fakeUpload(file)

	worker := newInterrogator(centralClient, store, file.readerKey)
	if err := worker.InterrogateNewFiles(t.Context()); err != nil {
		t.Fatalf("InterrogateNewFiles() failed: %v", err)
	}

	if len(centralClient.reports) != 1 {
		t.Fatalf("got %d reports, want exactly 1 failure report", len(centralClient.reports))
	}
	report := centralClient.reports[0]
	if report.Passed {
		t.Error("report must not pass on a checksum mismatch")
	}
	if !strings.Contains(report.Reason, "SHA-256") {
		t.Errorf("reason %q does not mention SHA-256", report.Reason)
	}
	if report.Secret != nil || report.EncryptedPartsMD5 != nil || report.EncryptedPartsSHA256 != nil {
		t.Error("failure report must not carry cryptographic fields")
	}
	if !store.mpus[0].aborted {
		t.Error("multipart upload was not aborted")
	}
	if len(store.interrogation) != 0 {
		t.Error("interrogation bucket should hold no object after the failure")
	}
}

func TestInterrogateFileBadPartMD5(t *testing.T) {
	store := newFakeStore()
	centralClient := &fakeCentral{}
	file := makeTestFile(t, store, randomContent(t, constants.SegmentSize))
	store.partPutErr = &s3.BadPartMD5Error{Object: file.upload.ID.String(), PartNo: 0}

	worker := newInterrogator(centralClient, store, file.readerKey)
	err := worker.InterrogateFile(t.Context(), &file.upload)

	var badMD5 *s3.BadPartMD5Error
	if !errors.As(err, &badMD5) {
		t.Fatalf("expected BadPartMD5Error, got %v", err)
	}
	if store.mpus[0].completed {
		t.Error("completion must not be attempted after a failed part PUT")
	}
	if !store.mpus[0].aborted {
		t.Error("multipart upload was not aborted on exit")
	}
	if len(centralClient.reports) != 0 {
		t.Error("no report must be submitted for an infrastructure fault")
	}
}

func TestInterrogateNewFilesCentralFetchError(t *testing.T) {
	store := newFakeStore()
	centralClient := &fakeCentral{
		fetchErr: &central.APIError{URL: "https://central/storages/inbox/uploads", StatusCode: 500},
	}

	worker := newInterrogator(centralClient, store, randomKey(t))
	err := worker.InterrogateNewFiles(t.Context())

	var apiErr *central.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected the APIError to propagate, got %v", err)
	}
	if len(centralClient.reports) != 0 {
		t.Error("no reports must be submitted when the batch cannot start")
	}
}

func TestInterrogateFileETagMismatch(t *testing.T) {
	store := newFakeStore()
	centralClient := &fakeCentral{}
	file := makeTestFile(t, store, randomContent(t, constants.SegmentSize))
	store.etagOverride = "deadbeefdeadbeefdeadbeefdeadbeef-1"

	worker := newInterrogator(centralClient, store, file.readerKey)
	err := worker.InterrogateFile(t.Context(), &file.upload)

	var mismatch *ChecksumMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected ChecksumMismatchError, got %v", err)
	}
	if len(centralClient.reports) != 0 {
		t.Error("no success report must be submitted on an ETag mismatch")
	}
}

func TestInterrogateFileMissingFromInbox(t *testing.T) {
	store := newFakeStore()
	centralClient := &fakeCentral{}
	file := makeTestFile(t, store, randomContent(t, constants.SegmentSize))
	delete(store.inbox, file.upload.ID.String())

	worker := newInterrogator(centralClient, store, file.readerKey)
	err := worker.InterrogateFile(t.Context(), &file.upload)

	var notFound *FileNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected FileNotFoundError, got %v", err)
	}
}

func TestInterrogateNewFilesEnvelopeFailureContinuesBatch(t *testing.T) {
	store := newFakeStore()
	centralClient := &fakeCentral{}

	// First file is addressed to a different recipient, second is fine.
	badFile := makeTestFile(t, store, randomContent(t, constants.SegmentSize))
	goodFile := makeTestFile(t, store, randomContent(t, constants.SegmentSize))
	centralClient.uploads = append(fakeUpload(badFile), goodFile.upload)

	worker := newInterrogator(centralClient, store, goodFile.readerKey)
	if err := worker.InterrogateNewFiles(t.Context()); err != nil {
		t.Fatalf("InterrogateNewFiles() failed: %v", err)
	}

	if len(centralClient.reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(centralClient.reports))
	}
	if centralClient.reports[0].Passed {
		t.Error("first report should be a failure (foreign envelope)")
	}
	if !strings.Contains(centralClient.reports[0].Reason, "envelope") {
		t.Errorf("first failure reason %q does not mention the envelope", centralClient.reports[0].Reason)
	}
	if !centralClient.reports[1].Passed {
		t.Errorf("second report should pass, reason: %s", centralClient.reports[1].Reason)
	}
}

func TestInterrogateFilePerPartDecryptFailure(t *testing.T) {
	store := newFakeStore()
	centralClient := &fakeCentral{}
	file := makeTestFile(t, store, randomContent(t, 2*constants.SegmentSize))

	// Corrupt the second ciphertext segment in place.
	object := store.inbox[file.upload.ID.String()]
	object[len(object)-1] ^= 0x01

	centralClient.uploads = fakeUpload(file)
	worker := newInterrogator(centralClient, store, file.readerKey)
	if err := worker.InterrogateNewFiles(t.Context()); err != nil {
		t.Fatalf("InterrogateNewFiles() failed: %v", err)
	}

	if len(centralClient.reports) != 1 || centralClient.reports[0].Passed {
		t.Fatal("expected exactly one failure report")
	}
	if !strings.Contains(centralClient.reports[0].Reason, "part 1") {
		t.Errorf("reason %q does not name the failing part", centralClient.reports[0].Reason)
	}
	if !store.mpus[0].aborted {
		t.Error("multipart upload was not aborted")
	}
}
