// Package config loads and validates the worker configuration from a YAML
// file with environment variable overrides. The loaded Config is passed
// explicitly through constructors; there is no process-wide config state.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ghga-de/datahub-file-service/internal/transport"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// DHFS_CENTRAL_API_URL.
const EnvPrefix = "DHFS_"

// ServiceName is the short name of this service.
const ServiceName = "dhfs"

// ObjectStorageConfig holds the connection settings and bucket for one
// storage alias.
type ObjectStorageConfig struct {
	EndpointURL     string `yaml:"endpoint_url"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
}

// HTTPConfig holds the retry and rate limit settings for outbound HTTP.
// Durations are given in Go duration syntax ("30s", "5m").
type HTTPConfig struct {
	RetryMax          int     `yaml:"retry_max"`
	RetryWaitMin      string  `yaml:"retry_wait_min"`
	RetryWaitMax      string  `yaml:"retry_wait_max"`
	Timeout           string  `yaml:"timeout"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             float64 `yaml:"burst"`
}

// Config holds all worker configuration.
type Config struct {
	ServiceName string `yaml:"service_name"`
	LogLevel    string `yaml:"log_level"`

	InboxStorageAlias         string                         `yaml:"inbox_storage_alias"`
	InterrogationStorageAlias string                         `yaml:"interrogation_storage_alias"`
	ObjectStorages            map[string]ObjectStorageConfig `yaml:"object_storages"`

	CentralAPIURL       string `yaml:"central_api_url"`
	CentralAPIPublicKey string `yaml:"central_api_public_key"`

	// DataHubPrivateKey is the Crypt4GH private key used to decrypt file
	// envelopes. Secret material: never logged.
	DataHubPrivateKey string `yaml:"data_hub_private_key"`

	// TokenSigningKey is the base64-encoded Ed25519 seed used to sign
	// bearer tokens for the Central API. Secret material: never logged.
	TokenSigningKey string `yaml:"token_signing_key"`

	HTTP HTTPConfig `yaml:"http"`
}

// Load reads the configuration file at the given path, applies environment
// overrides, and validates the result. An empty path loads from environment
// and defaults only.
func Load(path string) (*Config, error) {
	cfg := &Config{
		ServiceName:               ServiceName,
		LogLevel:                  "info",
		InboxStorageAlias:         "inbox",
		InterrogationStorageAlias: "interrogation",
		HTTP: HTTPConfig{
			RetryMax:          5,
			RetryWaitMin:      "1s",
			RetryWaitMax:      "30s",
			Timeout:           "5m",
			RequestsPerSecond: 2,
			Burst:             5,
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides overrides scalar settings from DHFS_* environment
// variables.
func (c *Config) applyEnvOverrides() {
	overrides := map[string]*string{
		"LOG_LEVEL":                   &c.LogLevel,
		"INBOX_STORAGE_ALIAS":         &c.InboxStorageAlias,
		"INTERROGATION_STORAGE_ALIAS": &c.InterrogationStorageAlias,
		"CENTRAL_API_URL":             &c.CentralAPIURL,
		"CENTRAL_API_PUBLIC_KEY":      &c.CentralAPIPublicKey,
		"DATA_HUB_PRIVATE_KEY":        &c.DataHubPrivateKey,
		"TOKEN_SIGNING_KEY":           &c.TokenSigningKey,
	}
	for suffix, target := range overrides {
		if value, ok := os.LookupEnv(EnvPrefix + suffix); ok {
			*target = value
		}
	}
}

// Validate checks that all required settings are present and consistent.
func (c *Config) Validate() error {
	var errs []error
	if c.CentralAPIURL == "" {
		errs = append(errs, errors.New("central_api_url is required"))
	}
	if c.CentralAPIPublicKey == "" {
		errs = append(errs, errors.New("central_api_public_key is required"))
	}
	if c.DataHubPrivateKey == "" {
		errs = append(errs, errors.New("data_hub_private_key is required"))
	}
	if c.TokenSigningKey == "" {
		errs = append(errs, errors.New("token_signing_key is required"))
	}
	for _, alias := range []string{c.InboxStorageAlias, c.InterrogationStorageAlias} {
		if _, ok := c.ObjectStorages[alias]; !ok {
			errs = append(errs, fmt.Errorf("object_storages is missing an entry for alias %q", alias))
		}
	}
	if _, err := c.TransportConfig(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// TransportConfig converts the HTTP settings into a transport.Config.
func (c *Config) TransportConfig() (transport.Config, error) {
	out := transport.DefaultConfig()
	out.RetryMax = c.HTTP.RetryMax
	for _, field := range []struct {
		name  string
		value string
		dest  *time.Duration
	}{
		{"retry_wait_min", c.HTTP.RetryWaitMin, &out.RetryWaitMin},
		{"retry_wait_max", c.HTTP.RetryWaitMax, &out.RetryWaitMax},
		{"timeout", c.HTTP.Timeout, &out.Timeout},
	} {
		if field.value == "" {
			continue
		}
		d, err := time.ParseDuration(field.value)
		if err != nil {
			return out, fmt.Errorf("invalid http.%s %q: %w", field.name, field.value, err)
		}
		*field.dest = d
	}
	return out, nil
}
