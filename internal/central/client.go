package central

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/nacl/box"

	"github.com/ghga-de/datahub-file-service/internal/crypt4gh"
	"github.com/ghga-de/datahub-file-service/internal/models"
	"github.com/ghga-de/datahub-file-service/internal/ratelimit"
	"github.com/ghga-de/datahub-file-service/internal/transport"
)

// Client talks to the GHGA Central API. Every outbound request carries a
// freshly minted bearer token signed with the worker's key.
type Client struct {
	httpClient   *http.Client
	limiter      *ratelimit.RateLimiter
	logger       zerolog.Logger
	baseURL      string
	storageAlias string
	signingKey   ed25519.PrivateKey
	centralKey   *[32]byte
}

// NewClient builds a Central API client.
//
// centralPublicKey is the Crypt4GH public key of the Central API, used to
// encrypt new file secrets in transit. storageAlias names the inbox this
// worker serves and becomes the token subject.
func NewClient(
	httpClient *http.Client,
	limiter *ratelimit.RateLimiter,
	logger zerolog.Logger,
	baseURL string,
	storageAlias string,
	signingKey ed25519.PrivateKey,
	centralPublicKey string,
) (*Client, error) {
	keyBytes, err := crypt4gh.ParsePublicKey(centralPublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid central API public key: %w", err)
	}
	var centralKey [32]byte
	copy(centralKey[:], keyBytes)

	return &Client{
		httpClient:   httpClient,
		limiter:      limiter,
		logger:       logger,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		storageAlias: storageAlias,
		signingKey:   signingKey,
		centralKey:   &centralKey,
	}, nil
}

// doRequest performs one authenticated request against the Central API,
// honoring the shared rate limiter.
func (c *Client) doRequest(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	token, err := mintToken(c.signingKey, c.storageAlias, time.Now())
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transport.ClassifyError(err)
	}
	return resp, nil
}

// FetchNewUploads fetches the list of files that need to be interrogated and
// re-encrypted.
func (c *Client) FetchNewUploads(ctx context.Context) ([]models.FileUpload, error) {
	url := fmt.Sprintf("%s/storages/%s/uploads", c.baseURL, c.storageAlias)

	resp, err := c.doRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{URL: url, StatusCode: resp.StatusCode}
		c.logger.Error().Str("url", url).Int("status_code", resp.StatusCode).Msg("fetching new uploads failed")
		return nil, apiErr
	}

	var uploads []models.FileUpload
	if err := json.NewDecoder(resp.Body).Decode(&uploads); err != nil {
		formatErr := &ResponseFormatError{URL: url}
		c.logger.Error().Err(err).Str("url", url).Msg("could not parse upload list")
		return nil, formatErr
	}
	return uploads, nil
}

// GetRemovableFiles asks the Central API which of the given file IDs may be
// removed from the interrogation bucket.
func (c *Client) GetRemovableFiles(ctx context.Context, fileIDs []string) ([]string, error) {
	params := make([]string, len(fileIDs))
	for i, id := range fileIDs {
		params[i] = "file_id=" + id
	}
	url := fmt.Sprintf("%s/uploads/can_remove?%s", c.baseURL, strings.Join(params, "&"))

	resp, err := c.doRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{URL: url, StatusCode: resp.StatusCode}
		c.logger.Error().Str("url", url).Int("status_code", resp.StatusCode).Msg("removability check failed")
		return nil, apiErr
	}

	var removable []string
	if err := json.NewDecoder(resp.Body).Decode(&removable); err != nil {
		formatErr := &ResponseFormatError{URL: url}
		c.logger.Error().Err(err).Str("url", url).Msg("could not parse removable file list")
		return nil, formatErr
	}
	return removable, nil
}

// reportBody is the wire form of an InterrogationReport. The secret travels
// only in its encrypted-to-central form.
type reportBody struct {
	FileID               string   `json:"file_id"`
	StorageAlias         string   `json:"storage_alias"`
	InterrogatedAt       string   `json:"interrogated_at"`
	Passed               bool     `json:"passed"`
	Secret               string   `json:"secret,omitempty"`
	EncryptedPartsMD5    []string `json:"encrypted_parts_md5,omitempty"`
	EncryptedPartsSHA256 []string `json:"encrypted_parts_sha256,omitempty"`
	Reason               string   `json:"reason,omitempty"`
}

// SubmitInterrogationReport submits a file interrogation report. For passing
// reports, the new file secret is sealed to the Central API public key
// before it goes on the wire.
func (c *Client) SubmitInterrogationReport(ctx context.Context, report *models.InterrogationReport) error {
	url := c.baseURL + "/interrogation_reports"

	body := reportBody{
		FileID:               report.FileID.String(),
		StorageAlias:         report.StorageAlias,
		InterrogatedAt:       report.InterrogatedAt.UTC().Truncate(time.Millisecond).Format("2006-01-02T15:04:05.000Z07:00"),
		Passed:               report.Passed,
		EncryptedPartsMD5:    report.EncryptedPartsMD5,
		EncryptedPartsSHA256: report.EncryptedPartsSHA256,
		Reason:               report.Reason,
	}
	if report.Secret != nil {
		sealed, err := c.encryptSecret(report.Secret.Bytes())
		if err != nil {
			return err
		}
		body.Secret = sealed
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal interrogation report: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, url, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		apiErr := &APIError{URL: url, StatusCode: resp.StatusCode}
		c.logger.Error().
			Str("url", url).
			Int("status_code", resp.StatusCode).
			Str("file_id", body.FileID).
			Msg("report submission failed")
		return apiErr
	}
	return nil
}

// encryptSecret seals the base64url form of the secret to the Central API
// public key with an anonymous NaCl box and returns the base64 text of the
// resulting ciphertext.
func (c *Client) encryptSecret(secret []byte) (string, error) {
	encoded := base64.URLEncoding.EncodeToString(secret)
	sealed, err := box.SealAnonymous(nil, []byte(encoded), c.centralKey, rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt file secret for central: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}
