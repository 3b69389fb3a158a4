package crypt4gh

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/curve25519"
)

// ErrMalformedKey is returned when a Crypt4GH key cannot be parsed.
var ErrMalformedKey = errors.New("malformed Crypt4GH key")

const (
	publicKeyHeader  = "-----BEGIN CRYPT4GH PUBLIC KEY-----"
	publicKeyFooter  = "-----END CRYPT4GH PUBLIC KEY-----"
	privateKeyHeader = "-----BEGIN CRYPT4GH PRIVATE KEY-----"
	privateKeyFooter = "-----END CRYPT4GH PRIVATE KEY-----"

	privateKeyMagic = "c4gh-v1"
)

// ParsePublicKey reads a Crypt4GH public key, given either as an armored
// block or as the bare base64 of the 32 key bytes.
func ParsePublicKey(text string) ([]byte, error) {
	raw, err := decodeArmored(text, publicKeyHeader, publicKeyFooter)
	if err != nil {
		return nil, err
	}
	if len(raw) != curve25519.PointSize {
		return nil, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrMalformedKey, curve25519.PointSize, len(raw))
	}
	return raw, nil
}

// ParsePrivateKey reads a Crypt4GH private key, given either as an armored
// c4gh-v1 block or as the bare base64 of the 32 key bytes. Passphrase
// protected keys are not supported; the worker's key is expected to come
// from a secret store already.
func ParsePrivateKey(text string) ([]byte, error) {
	raw, err := decodeArmored(text, privateKeyHeader, privateKeyFooter)
	if err != nil {
		return nil, err
	}
	if len(raw) == curve25519.ScalarSize {
		return raw, nil
	}
	return parseC4GHPrivateBlob(raw)
}

// parseC4GHPrivateBlob decodes the c4gh-v1 container: magic, then
// length-prefixed (big-endian uint16) kdf name, cipher name, and key blob.
func parseC4GHPrivateBlob(raw []byte) ([]byte, error) {
	if !bytes.HasPrefix(raw, []byte(privateKeyMagic)) {
		return nil, fmt.Errorf("%w: missing %s magic", ErrMalformedKey, privateKeyMagic)
	}
	rest := raw[len(privateKeyMagic):]

	kdfName, rest, err := readLengthPrefixed(rest)
	if err != nil {
		return nil, err
	}
	if string(kdfName) != "none" {
		return nil, fmt.Errorf("%w: passphrase-protected keys (kdf %q) are not supported", ErrMalformedKey, kdfName)
	}
	cipherName, rest, err := readLengthPrefixed(rest)
	if err != nil {
		return nil, err
	}
	if string(cipherName) != "none" {
		return nil, fmt.Errorf("%w: encrypted key payloads (cipher %q) are not supported", ErrMalformedKey, cipherName)
	}
	keyBytes, _, err := readLengthPrefixed(rest)
	if err != nil {
		return nil, err
	}
	if len(keyBytes) != curve25519.ScalarSize {
		return nil, fmt.Errorf("%w: private key must be %d bytes, got %d", ErrMalformedKey, curve25519.ScalarSize, len(keyBytes))
	}
	return keyBytes, nil
}

func readLengthPrefixed(data []byte) (value, rest []byte, err error) {
	if len(data) < 2 {
		return nil, nil, fmt.Errorf("%w: truncated length prefix", ErrMalformedKey)
	}
	length := int(binary.BigEndian.Uint16(data[:2]))
	if len(data) < 2+length {
		return nil, nil, fmt.Errorf("%w: truncated field of %d bytes", ErrMalformedKey, length)
	}
	return data[2 : 2+length], data[2+length:], nil
}

// decodeArmored strips the given header/footer lines if present and decodes
// the remaining base64 payload.
func decodeArmored(text, header, footer string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, header) {
		text = strings.TrimPrefix(text, header)
		end := strings.Index(text, footer)
		if end < 0 {
			return nil, fmt.Errorf("%w: missing armor footer", ErrMalformedKey)
		}
		text = text[:end]
	}
	payload := strings.Join(strings.Fields(text), "")
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedKey, err)
	}
	return raw, nil
}

// PublicKeyFromPrivate derives the X25519 public key for a private key.
func PublicKeyFromPrivate(privateKey []byte) ([]byte, error) {
	public, err := curve25519.X25519(privateKey, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedKey, err)
	}
	return public, nil
}
