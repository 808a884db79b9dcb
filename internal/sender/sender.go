// Package sender uploads session records to an HTTP endpoint with retry logic.
// Records are marshaled to JSON, compressed with gzip, and PUT to the target
// URL, so repeated uploads to the same URL replace the previous record.
package sender

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Guliveer/rocemon/internal/models"
	"github.com/Guliveer/rocemon/internal/store"
)

const (
	// DefaultRetries is the number of retry attempts after the first failure.
	DefaultRetries = 3

	// DefaultTimeout is the HTTP request timeout for each attempt.
	DefaultTimeout = 10 * time.Second

	// baseRetryDelay is the base delay for exponential backoff between retries.
	baseRetryDelay = 2 * time.Second
)

// HTTPSink uploads records to HTTP(S) targets.
type HTTPSink struct {
	client     *http.Client
	logger     *zap.Logger
	retries    int
	retryDelay time.Duration
}

// New creates an HTTPSink. Negative retries or a non-positive timeout select the defaults.
func New(retries int, timeout time.Duration, logger *zap.Logger) *HTTPSink {
	if retries < 0 {
		retries = DefaultRetries
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPSink{
		client:     &http.Client{Timeout: timeout},
		logger:     logger.Named("sender"),
		retries:    retries,
		retryDelay: baseRetryDelay,
	}
}

// Save uploads record to url. It retries with exponential backoff and gives up
// early when the server rate-limits or rejects the request.
func (s *HTTPSink) Save(ctx context.Context, record *models.Record, url string) error {
	compressed, err := store.Encode(record, true)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * s.retryDelay
			s.logger.Warn("Retrying upload",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return fmt.Errorf("upload cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		lastErr = s.doSend(ctx, url, compressed)
		if lastErr == nil {
			s.logger.Info("Session record uploaded",
				zap.String("url", url),
				zap.Int("samples", len(record.DataPoints)))
			return nil
		}

		var se *statusError
		if errors.As(lastErr, &se) && !se.retryable() {
			return lastErr
		}

		s.logger.Warn("Upload failed",
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
	}

	return fmt.Errorf("all retries exhausted: %w", lastErr)
}

// doSend performs a single HTTP PUT.
func (s *HTTPSink) doSend(ctx context.Context, url string, compressed []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &statusError{statusCode: resp.StatusCode}
}

// statusError is a non-2xx response.
type statusError struct {
	statusCode int
}

func (e *statusError) Error() string {
	if e.statusCode == http.StatusTooManyRequests {
		return fmt.Sprintf("rate limited (%d)", e.statusCode)
	}
	return fmt.Sprintf("server returned %d", e.statusCode)
}

// retryable reports whether another attempt could succeed. Client errors,
// including 429, are final.
func (e *statusError) retryable() bool {
	return e.statusCode >= 500
}
