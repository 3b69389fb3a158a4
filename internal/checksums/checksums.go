// Package checksums tracks the digests accumulated while a file is
// re-encrypted part by part: per-part MD5 and SHA-256 over the encrypted
// bytes, and a single rolling SHA-256 over the decrypted content.
package checksums

import (
	// MD5 is used only to satisfy the S3 multipart ETag wire format, not as
	// a security primitive.
	"crypto/md5" //nolint:gosec
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
)

// Tracker accumulates checksums for a single file interrogation.
type Tracker struct {
	encryptedMD5    [][]byte
	encryptedSHA256 []string
	unencrypted     hash.Hash
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{unencrypted: sha256.New()}
}

// UpdateEncrypted records the MD5 and SHA-256 digests of one encrypted part.
// Parts must be fed in upload order.
func (t *Tracker) UpdateEncrypted(part []byte) {
	md5Sum := md5.Sum(part) //nolint:gosec
	sha256Sum := sha256.Sum256(part)
	t.encryptedMD5 = append(t.encryptedMD5, md5Sum[:])
	t.encryptedSHA256 = append(t.encryptedSHA256, hex.EncodeToString(sha256Sum[:]))
}

// UpdateUnencrypted feeds decrypted content into the rolling SHA-256.
func (t *Tracker) UpdateUnencrypted(plaintext []byte) {
	t.unencrypted.Write(plaintext)
}

// UnencryptedHex finalizes and returns the rolling SHA-256 over the decrypted
// content as a hex string.
func (t *Tracker) UnencryptedHex() string {
	return hex.EncodeToString(t.unencrypted.Sum(nil))
}

// PartCount returns the number of encrypted parts recorded so far.
func (t *Tracker) PartCount() int {
	return len(t.encryptedMD5)
}

// EncryptedPartsMD5 returns the per-part MD5 digests, base64-encoded, in
// upload order.
func (t *Tracker) EncryptedPartsMD5() []string {
	out := make([]string, len(t.encryptedMD5))
	for i, sum := range t.encryptedMD5 {
		out[i] = base64.StdEncoding.EncodeToString(sum)
	}
	return out
}

// LastPartMD5 returns the base64-encoded MD5 of the most recently recorded
// part, as required for the part's Content-MD5 upload header.
func (t *Tracker) LastPartMD5() string {
	if len(t.encryptedMD5) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(t.encryptedMD5[len(t.encryptedMD5)-1])
}

// EncryptedPartsSHA256 returns the per-part SHA-256 digests, hex-encoded, in
// upload order.
func (t *Tracker) EncryptedPartsSHA256() []string {
	out := make([]string, len(t.encryptedSHA256))
	copy(out, t.encryptedSHA256)
	return out
}

// ETagForStore derives the S3 multipart ETag for the uploaded parts:
// the MD5 of the concatenated raw part MD5s, hex-encoded, suffixed with the
// part count. The interrogator compares this against the ETag returned by
// the store after completing the upload.
func (t *Tracker) ETagForStore() string {
	concat := md5.New() //nolint:gosec
	for _, sum := range t.encryptedMD5 {
		concat.Write(sum)
	}
	return fmt.Sprintf("%s-%d", hex.EncodeToString(concat.Sum(nil)), len(t.encryptedMD5))
}
