// Package xis transmits finished target records to the downstream index
// service.
package xis

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/adlnet/edlm-portal-xia-jobs/internal/ledger"
	"github.com/adlnet/edlm-portal-xia-jobs/internal/resilience"
)

// Client posts one record payload to the index service and returns the HTTP
// status code. Application-level rejections come back as a status code with a
// nil error; connection-level failures come back as transient errors.
type Client interface {
	Post(ctx context.Context, payload []byte) (int, error)
}

// HTTPClient implements Client over net/http with request pacing.
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates an HTTPClient for the index endpoint. requestsPerSec
// bounds the POST rate so a large backlog cannot overwhelm the service.
func NewClient(endpoint string, timeout time.Duration, requestsPerSec float64) *HTTPClient {
	if requestsPerSec <= 0 {
		requestsPerSec = 10
	}
	return &HTTPClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSec), 1),
	}
}

func (c *HTTPClient) Post(ctx context.Context, payload []byte) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, eris.Wrap(err, "xis: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, eris.Wrap(err, "xis: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Connection-level failure: the index service is unreachable.
		return 0, resilience.NewTransientError(eris.Wrap(err, "xis: post"), 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		zap.L().Warn("xis: index service rejected record",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
	}
	return resp.StatusCode, nil
}

// BuildPayload renames ledger fields into the shape the index service
// consumes: identity fields first, then the target document, then the
// publisher.
func BuildPayload(rec *ledger.Record, publisher string) ([]byte, error) {
	payload := map[string]any{
		"unique_record_identifier": rec.UUID,
		"metadata_key":             rec.TargetKey,
		"metadata_key_hash":        rec.TargetKeyHash,
		"metadata_hash":            rec.TargetContentHash,
		"metadata":                 rec.TargetDocument,
		"provider_name":            publisher,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrapf(err, "xis: marshal payload for %s", rec.UUID)
	}
	return data, nil
}
