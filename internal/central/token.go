package central

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ghga-de/datahub-file-service/internal/constants"
)

// ParseSigningKey decodes a base64-encoded Ed25519 seed into a signing key.
func ParseSigningKey(encoded string) (ed25519.PrivateKey, error) {
	seed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("token signing key is not valid base64: %w", err)
	}
	switch len(seed) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(seed), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(seed), nil
	default:
		return nil, fmt.Errorf("token signing key must be a %d-byte seed or %d-byte private key, got %d bytes",
			ed25519.SeedSize, ed25519.PrivateKeySize, len(seed))
	}
}

// mintToken creates a fresh bearer token for one Central API request.
// Tokens are never cached; each request carries its own.
func mintToken(signingKey ed25519.PrivateKey, storageAlias string, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iss": constants.JWTIssuer,
		"aud": constants.JWTAudience,
		"sub": storageAlias,
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(now.Add(constants.AuthTokenValidity)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign auth token: %w", err)
	}
	return signed, nil
}
