// Package models defines the data types exchanged between the Data Hub File
// Service, GHGA Central, and the object store.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ghga-de/datahub-file-service/internal/constants"
)

// FileUpload represents a file that needs to be interrogated and re-encrypted.
// The ID doubles as the object key in both the inbox and the interrogation
// bucket.
type FileUpload struct {
	ID              uuid.UUID `json:"id"`
	StorageAlias    string    `json:"storage_alias"`
	DecryptedSHA256 string    `json:"decrypted_sha256"`
	DecryptedSize   int64     `json:"decrypted_size"`
	EncryptedSize   int64     `json:"encrypted_size"`
	PartSize        int64     `json:"part_size"`
}

// Validate checks the size invariants of a FileUpload.
func (f *FileUpload) Validate() error {
	if f.DecryptedSize <= 0 {
		return fmt.Errorf("file %s: decrypted_size must be positive, got %d", f.ID, f.DecryptedSize)
	}
	if f.PartSize <= 0 || f.PartSize%constants.SegmentSize != 0 {
		return fmt.Errorf(
			"file %s: part_size must be a positive multiple of %d, got %d",
			f.ID, constants.SegmentSize, f.PartSize,
		)
	}
	if offset := f.Offset(); offset < 0 || f.EncryptedSize <= offset {
		return fmt.Errorf(
			"file %s: encrypted_size %d inconsistent with decrypted_size %d (envelope would be %d bytes)",
			f.ID, f.EncryptedSize, f.DecryptedSize, offset,
		)
	}
	return nil
}

// CiphertextSize returns the total size of the Crypt4GH ciphertext segments,
// excluding the envelope, implied by the declared decrypted size.
func (f *FileUpload) CiphertextSize() int64 {
	fullSegments := f.DecryptedSize / constants.SegmentSize
	remainder := f.DecryptedSize % constants.SegmentSize
	size := fullSegments * constants.CipherSegmentSize
	if remainder > 0 {
		size += remainder + constants.NonceLength + constants.AuthTagLength
	}
	return size
}

// Offset returns the byte length of the Crypt4GH envelope preceding the
// ciphertext, derived from the declared sizes alone.
func (f *FileUpload) Offset() int64 {
	return f.EncryptedSize - f.CiphertextSize()
}

// EncryptedPartCount returns the number of nominal parts implied by the
// declared part size. The actual upload layout is segment-aligned and does
// not consult this value.
func (f *FileUpload) EncryptedPartCount() int64 {
	return (f.DecryptedSize - f.Offset() + f.PartSize - 1) / f.PartSize
}

// PartRange is a half-open byte range [Start, Stop) within the post-envelope
// region of the inbox object.
type PartRange struct {
	Start int64
	Stop  int64
}

// Len returns the number of bytes covered by the range.
func (r PartRange) Len() int64 {
	return r.Stop - r.Start
}

// EncryptedPartRanges returns the byte ranges of the individual Crypt4GH
// ciphertext segments, relative to the end of the envelope. Each range is
// exactly one segment long so that every part can be decrypted independently
// and the multipart ETag can be derived without reading the object back.
func (f *FileUpload) EncryptedPartRanges() []PartRange {
	ciphertextSize := f.CiphertextSize()
	ranges := make([]PartRange, 0, (ciphertextSize+constants.CipherSegmentSize-1)/constants.CipherSegmentSize)
	for start := int64(0); start < ciphertextSize; start += constants.CipherSegmentSize {
		stop := start + constants.CipherSegmentSize
		if stop > ciphertextSize {
			stop = ciphertextSize
		}
		ranges = append(ranges, PartRange{Start: start, Stop: stop})
	}
	return ranges
}

// InterrogationReport is the terminal output for one interrogated file:
// either a success carrying the new wrapped key and per-part checksums, or a
// failure with a reason.
type InterrogationReport struct {
	FileID         uuid.UUID `json:"file_id"`
	StorageAlias   string    `json:"storage_alias"`
	InterrogatedAt time.Time `json:"interrogated_at"`
	Passed         bool      `json:"passed"`

	// Secret is only set on success. It is serialized by the central client,
	// which encrypts it to the Central API public key; the raw bytes never
	// leave the process.
	Secret *Secret `json:"-"`

	EncryptedPartsMD5    []string `json:"encrypted_parts_md5,omitempty"`
	EncryptedPartsSHA256 []string `json:"encrypted_parts_sha256,omitempty"`
	Reason               string   `json:"reason,omitempty"`
}
