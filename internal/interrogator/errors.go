package interrogator

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// FileNotFoundError is returned when a file announced by the Central API is
// not present in the inbox. The file stays pending and is retried on the
// next run.
type FileNotFoundError struct {
	FileID uuid.UUID
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("the file %s was not found in the inbox", e.FileID)
}

// ChecksumMismatchError is returned when the locally derived multipart ETag
// does not match the value reported by the store after completion. This
// points at an implementation or infrastructure fault, never at the
// submitted file.
type ChecksumMismatchError struct {
	ObjectID string
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf(
		"the ETag of the uploaded object %s (%s) does not match the locally computed value (%s)",
		e.ObjectID, e.Actual, e.Expected,
	)
}

// ConfirmationError is returned when a freshly re-encrypted segment does not
// decrypt back to the original plaintext. This is a code or environment bug;
// the file must not be labeled as failed.
type ConfirmationError struct {
	PartNo int
}

func (e *ConfirmationError) Error() string {
	return fmt.Sprintf("re-encrypted part %d did not decrypt back to the original plaintext", e.PartNo)
}

// interrogationFailedError marks outcomes caused by the submitted file
// itself. The batch driver converts it into a failure report and moves on to
// the next file.
type interrogationFailedError struct {
	reason string
	err    error
}

func (e *interrogationFailedError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("interrogation failed: %s: %v", e.reason, e.err)
	}
	return "interrogation failed: " + e.reason
}

func (e *interrogationFailedError) Unwrap() error { return e.err }

// asInterrogationFailure extracts the failure reason if the error marks a
// bad submitted file rather than an infrastructure or code fault.
func asInterrogationFailure(err error) (reason string, ok bool) {
	var failure *interrogationFailedError
	if errors.As(err, &failure) {
		return failure.reason, true
	}
	return "", false
}
