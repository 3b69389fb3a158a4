package crypt4gh

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"

	"github.com/ghga-de/datahub-file-service/internal/constants"
)

// EncodeEnvelope builds a Crypt4GH envelope wrapping the given session key
// for a single reader. It is the counterpart of DecodeEnvelope and is mainly
// exercised by tests and tooling that produce inbox objects.
func EncodeEnvelope(sessionKey, writerSecret, readerPublic []byte) ([]byte, error) {
	if len(sessionKey) != constants.EncryptionSecretLength {
		return nil, fmt.Errorf("session key must be %d bytes, got %d", constants.EncryptionSecretLength, len(sessionKey))
	}

	content := make([]byte, 8, 8+len(sessionKey))
	binary.LittleEndian.PutUint32(content[:4], packetTypeDataEncryptionParameters)
	binary.LittleEndian.PutUint32(content[4:8], dataEncryptionChaCha20IETF)
	content = append(content, sessionKey...)

	sharedKey, writerPublic, err := writerSharedKey(writerSecret, readerPublic)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(sharedKey)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, constants.NonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ciphertext := aead.Seal(nil, nonce, content, nil)

	packetLength := 4 + 4 + curve25519.PointSize + constants.NonceLength + len(ciphertext)
	envelope := make([]byte, 0, 16+packetLength)
	envelope = append(envelope, envelopeMagic...)
	envelope = binary.LittleEndian.AppendUint32(envelope, envelopeVersion)
	envelope = binary.LittleEndian.AppendUint32(envelope, 1) // packet count
	envelope = binary.LittleEndian.AppendUint32(envelope, uint32(packetLength))
	envelope = binary.LittleEndian.AppendUint32(envelope, packetEncryptionX25519ChaCha20)
	envelope = append(envelope, writerPublic...)
	envelope = append(envelope, nonce...)
	envelope = append(envelope, ciphertext...)
	return envelope, nil
}

// writerSharedKey derives the writer-side packet key, matching
// readerSharedKey: the second half of
// BLAKE2b-512(X25519(sk, readerPk) || writerPk || readerPk).
func writerSharedKey(writerSecret, readerPublic []byte) (sharedKey, writerPublic []byte, err error) {
	sharedPoint, err := curve25519.X25519(writerSecret, readerPublic)
	if err != nil {
		return nil, nil, err
	}
	writerPublic, err = curve25519.X25519(writerSecret, curve25519.Basepoint)
	if err != nil {
		return nil, nil, err
	}
	hasher, err := blake2b.New512(nil)
	if err != nil {
		return nil, nil, err
	}
	hasher.Write(sharedPoint)
	hasher.Write(writerPublic)
	hasher.Write(readerPublic)
	digest := hasher.Sum(nil)
	return digest[32:64], writerPublic, nil
}
