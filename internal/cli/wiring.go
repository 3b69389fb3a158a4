package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ghga-de/datahub-file-service/internal/central"
	"github.com/ghga-de/datahub-file-service/internal/config"
	"github.com/ghga-de/datahub-file-service/internal/crypt4gh"
	"github.com/ghga-de/datahub-file-service/internal/interrogator"
	"github.com/ghga-de/datahub-file-service/internal/logging"
	"github.com/ghga-de/datahub-file-service/internal/ratelimit"
	"github.com/ghga-de/datahub-file-service/internal/storage/s3"
	"github.com/ghga-de/datahub-file-service/internal/transport"
)

// components bundles everything a subcommand needs. Close releases the
// shared HTTP connection pool.
type components struct {
	logger  zerolog.Logger
	central *central.Client
	store   objectStore

	dataHubSecretKey []byte
	httpClient       *http.Client
}

// buildComponents wires the configured clients together: one pooled retrying
// HTTP client shared by the Central API and the object store, a rate
// limiter in front of Central API calls (object-store calls are not
// rate-limited), and the typed S3 client.
func buildComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	logger := logging.NewLogger(cfg.ServiceName, cfg.LogLevel)

	transportCfg, err := cfg.TransportConfig()
	if err != nil {
		return nil, err
	}
	httpClient := transport.NewPooledClient(transportCfg, logger)
	limiter := ratelimit.NewRateLimiter(cfg.HTTP.RequestsPerSecond, cfg.HTTP.Burst)

	signingKey, err := central.ParseSigningKey(cfg.TokenSigningKey)
	if err != nil {
		return nil, err
	}
	centralClient, err := central.NewClient(
		httpClient,
		limiter,
		logger,
		cfg.CentralAPIURL,
		cfg.InboxStorageAlias,
		signingKey,
		cfg.CentralAPIPublicKey,
	)
	if err != nil {
		return nil, err
	}

	dataHubSecretKey, err := crypt4gh.ParsePrivateKey(cfg.DataHubPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid data hub private key: %w", err)
	}

	storeClient, err := s3.NewClient(ctx, cfg, httpClient, logger)
	if err != nil {
		return nil, err
	}

	return &components{
		logger:           logger,
		central:          centralClient,
		store:            objectStore{storeClient},
		dataHubSecretKey: dataHubSecretKey,
		httpClient:       httpClient,
	}, nil
}

// Close releases the shared connection pool.
func (c *components) Close() {
	c.httpClient.CloseIdleConnections()
}

// objectStore adapts the concrete S3 client to the interrogator's
// ObjectStore contract (the InitUpload return type differs).
type objectStore struct {
	*s3.Client
}

func (s objectStore) InitUpload(ctx context.Context, objectID string) (interrogator.MultipartUpload, error) {
	return s.Client.InitUpload(ctx, objectID)
}
