// Package transport constructs the pooled, retrying HTTP client shared by
// the Central API client and presigned object-store transfers.
package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// ErrConnectionFailed classifies errors where no usable connection could be
// established after the retry budget was exhausted.
var ErrConnectionFailed = errors.New("connection failed")

// ErrRequestFailed classifies errors where a connection existed but the
// request could not be completed after the retry budget was exhausted.
var ErrRequestFailed = errors.New("request failed")

// Config holds the retry and connection-pool settings for outbound HTTP.
type Config struct {
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration
}

// DefaultConfig returns the transport defaults used when the configuration
// does not override them.
func DefaultConfig() Config {
	return Config{
		RetryMax:     5,
		RetryWaitMin: 1 * time.Second,
		RetryWaitMax: 30 * time.Second,
		Timeout:      5 * time.Minute,
	}
}

// NewPooledClient builds a standard *http.Client backed by retryablehttp
// with the given settings. The returned client shares one connection pool;
// callers close idle connections via CloseIdleConnections when the worker
// exits.
func NewPooledClient(cfg Config, logger zerolog.Logger) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.Logger = &retryLogger{logger: logger}

	client := retryClient.StandardClient()
	return client
}

// ClassifyError maps a transport-level error onto ErrConnectionFailed or
// ErrRequestFailed so callers can report the distinction without inspecting
// net internals themselves.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return errors.Join(ErrConnectionFailed, err)
	}
	return errors.Join(ErrRequestFailed, err)
}

// retryLogger adapts zerolog to the retryablehttp.LeveledLogger interface.
// Context-cancellation noise during shutdown is dropped.
type retryLogger struct {
	logger zerolog.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...any) {
	if containsContextCanceled(keysAndValues) {
		return
	}
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func containsContextCanceled(keysAndValues []any) bool {
	for _, v := range keysAndValues {
		if err, ok := v.(error); ok && errors.Is(err, context.Canceled) {
			return true
		}
	}
	return false
}
