// Package crypt4gh implements the pieces of the Crypt4GH file format the
// worker needs: decoding the envelope that wraps a file's session key, and
// authenticated encryption of individual content segments.
package crypt4gh

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/ghga-de/datahub-file-service/internal/constants"
)

// ErrDecryption is returned when a ciphertext segment fails authentication
// or is malformed. This indicates a problem with the submitted file.
var ErrDecryption = errors.New("failed to decrypt segment")

// ErrReencryption is returned when encrypting a segment fails. This
// indicates a code or environment fault, not a problem with the file.
var ErrReencryption = errors.New("failed to re-encrypt segment")

// DecryptSegment decrypts a single Crypt4GH ciphertext segment laid out as
// nonce + ciphertext + tag, using ChaCha20-Poly1305 IETF with no associated
// data.
func DecryptSegment(segment, key []byte) ([]byte, error) {
	if len(segment) < constants.NonceLength+constants.AuthTagLength {
		return nil, fmt.Errorf("%w: segment of %d bytes is too short", ErrDecryption, len(segment))
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecryption, err)
	}
	nonce := segment[:constants.NonceLength]
	plaintext, err := aead.Open(nil, nonce, segment[constants.NonceLength:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecryption, err)
	}
	return plaintext, nil
}

// EncryptSegment encrypts a plaintext segment under the given key with a
// fresh random nonce and returns nonce + ciphertext + tag.
func EncryptSegment(plaintext, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrReencryption, err)
	}
	nonce := make([]byte, constants.NonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrReencryption, err)
	}
	segment := make([]byte, 0, constants.NonceLength+len(plaintext)+constants.AuthTagLength)
	segment = append(segment, nonce...)
	return aead.Seal(segment, nonce, plaintext, nil), nil
}
