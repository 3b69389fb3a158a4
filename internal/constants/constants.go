// Package constants defines shared constants for the Data Hub File Service.
package constants

import "time"

// Crypt4GH segment layout. A ciphertext segment is
// nonce + up-to-64KiB ciphertext + auth tag.
const (
	// SegmentSize is the plaintext size of a full Crypt4GH segment.
	SegmentSize = 65536

	// NonceLength is the ChaCha20-Poly1305 IETF nonce length.
	NonceLength = 12

	// AuthTagLength is the Poly1305 authentication tag length.
	AuthTagLength = 16

	// CipherSegmentSize is the on-the-wire size of a full ciphertext segment.
	CipherSegmentSize = NonceLength + SegmentSize + AuthTagLength

	// EncryptionSecretLength is the length of a Crypt4GH session key.
	EncryptionSecretLength = 32
)

// Auth token parameters for calls to the GHGA Central API.
const (
	AuthTokenValidity = 60 * time.Second
	JWTIssuer         = "GHGA"
	JWTAudience       = "GHGA"
)
