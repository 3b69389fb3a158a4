package models

import (
	"crypto/rand"
	"fmt"

	"github.com/ghga-de/datahub-file-service/internal/constants"
)

// Secret holds key material that must not be logged or serialized. Callers
// wipe it once the encrypted-to-central form has been produced.
type Secret struct {
	data []byte
}

// NewSecret generates a fresh random file encryption secret.
func NewSecret() (*Secret, error) {
	data := make([]byte, constants.EncryptionSecretLength)
	if _, err := rand.Read(data); err != nil {
		return nil, fmt.Errorf("failed to generate file secret: %w", err)
	}
	return &Secret{data: data}, nil
}

// SecretFromBytes wraps existing key material. The Secret takes ownership of
// the slice.
func SecretFromBytes(data []byte) *Secret {
	return &Secret{data: data}
}

// Bytes exposes the raw key material.
func (s *Secret) Bytes() []byte {
	return s.data
}

// Wipe overwrites the key material in place.
func (s *Secret) Wipe() {
	for i := range s.data {
		s.data[i] = 0
	}
	s.data = nil
}

// String redacts the key material.
func (s *Secret) String() string {
	return "[REDACTED]"
}

// MarshalJSON redacts the key material. The central client replaces this
// field with the sealed-box ciphertext before submission.
func (s *Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}
