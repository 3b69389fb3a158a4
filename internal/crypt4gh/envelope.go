package crypt4gh

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"

	"github.com/ghga-de/datahub-file-service/internal/constants"
)

// ErrEnvelopeDecryption is returned when the envelope cannot be parsed or no
// header packet is addressed to the worker's key.
var ErrEnvelopeDecryption = errors.New("failed to decrypt file envelope")

var envelopeMagic = []byte("crypt4gh")

const (
	envelopeVersion = 1

	// Header packet encryption methods.
	packetEncryptionX25519ChaCha20 = 0

	// Header packet types.
	packetTypeDataEncryptionParameters = 0

	// Data encryption methods.
	dataEncryptionChaCha20IETF = 0
)

// DecodeEnvelope parses the Crypt4GH envelope at the start of a file and
// decrypts its header packets with the given reader private key. It returns
// the file's session key and the number of envelope bytes consumed, which is
// the offset at which the ciphertext segments begin.
func DecodeEnvelope(head []byte, readerSecret []byte) (sessionKey []byte, offset int, err error) {
	if len(readerSecret) != curve25519.ScalarSize {
		return nil, 0, fmt.Errorf("%w: reader key must be %d bytes", ErrEnvelopeDecryption, curve25519.ScalarSize)
	}
	if len(head) < 16 || !bytes.Equal(head[:8], envelopeMagic) {
		return nil, 0, fmt.Errorf("%w: bad magic number", ErrEnvelopeDecryption)
	}
	if version := binary.LittleEndian.Uint32(head[8:12]); version != envelopeVersion {
		return nil, 0, fmt.Errorf("%w: unsupported version %d", ErrEnvelopeDecryption, version)
	}
	packetCount := binary.LittleEndian.Uint32(head[12:16])

	offset = 16
	for i := uint32(0); i < packetCount; i++ {
		if len(head) < offset+4 {
			return nil, 0, fmt.Errorf("%w: truncated header packet %d", ErrEnvelopeDecryption, i)
		}
		packetLength := int(binary.LittleEndian.Uint32(head[offset : offset+4]))
		if packetLength < 4 || len(head) < offset+packetLength {
			return nil, 0, fmt.Errorf("%w: truncated header packet %d", ErrEnvelopeDecryption, i)
		}
		packet := head[offset+4 : offset+packetLength]
		offset += packetLength

		key, decErr := decryptHeaderPacket(packet, readerSecret)
		if decErr != nil {
			// The packet may be addressed to another recipient; keep going.
			continue
		}
		if key != nil && sessionKey == nil {
			sessionKey = key
		}
	}

	if sessionKey == nil {
		return nil, 0, fmt.Errorf("%w: no header packet could be decrypted with the provided key", ErrEnvelopeDecryption)
	}
	return sessionKey, offset, nil
}

// decryptHeaderPacket decrypts one header packet body (without its length
// prefix) and returns the session key if the packet carries data encryption
// parameters, or nil for other packet types.
func decryptHeaderPacket(packet, readerSecret []byte) ([]byte, error) {
	const headerLen = 4 + curve25519.PointSize + constants.NonceLength
	if len(packet) < headerLen+constants.AuthTagLength {
		return nil, fmt.Errorf("header packet of %d bytes is too short", len(packet))
	}
	if method := binary.LittleEndian.Uint32(packet[:4]); method != packetEncryptionX25519ChaCha20 {
		return nil, fmt.Errorf("unsupported packet encryption method %d", method)
	}
	writerPublic := packet[4 : 4+curve25519.PointSize]
	nonce := packet[4+curve25519.PointSize : headerLen]
	ciphertext := packet[headerLen:]

	sharedKey, err := readerSharedKey(readerSecret, writerPublic)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(sharedKey)
	if err != nil {
		return nil, err
	}
	content, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, err
	}

	if len(content) < 4 {
		return nil, errors.New("decrypted header packet is too short")
	}
	if packetType := binary.LittleEndian.Uint32(content[:4]); packetType != packetTypeDataEncryptionParameters {
		// Edit lists and future packet types are not produced by the upload
		// path; skip them.
		return nil, nil
	}
	if len(content) < 8+constants.EncryptionSecretLength {
		return nil, errors.New("data encryption parameters packet is too short")
	}
	if method := binary.LittleEndian.Uint32(content[4:8]); method != dataEncryptionChaCha20IETF {
		return nil, fmt.Errorf("unsupported data encryption method %d", method)
	}
	return content[8 : 8+constants.EncryptionSecretLength], nil
}

// readerSharedKey derives the reader-side packet key following the libsodium
// crypto_kx construction used by Crypt4GH: the second half of
// BLAKE2b-512(X25519(sk, writerPk) || writerPk || readerPk).
func readerSharedKey(readerSecret, writerPublic []byte) ([]byte, error) {
	sharedPoint, err := curve25519.X25519(readerSecret, writerPublic)
	if err != nil {
		return nil, err
	}
	readerPublic, err := curve25519.X25519(readerSecret, curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	hasher, err := blake2b.New512(nil)
	if err != nil {
		return nil, err
	}
	hasher.Write(sharedPoint)
	hasher.Write(writerPublic)
	hasher.Write(readerPublic)
	digest := hasher.Sum(nil)
	return digest[32:64], nil
}
