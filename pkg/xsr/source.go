// Package xsr reads raw metadata documents from the experience source
// repository. A Source yields one finite batch of documents per pipeline run.
package xsr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Source supplies a sequence of raw documents, one pass per run.
type Source interface {
	Fetch(ctx context.Context) ([]map[string]any, error)
}

// RESTSource reads a JSON array of documents from an HTTP endpoint.
type RESTSource struct {
	Endpoint string
	Token    string

	httpClient *http.Client
}

// NewRESTSource creates a RESTSource for the given endpoint. token may be
// empty.
func NewRESTSource(endpoint, token string) *RESTSource {
	return &RESTSource{
		Endpoint:   endpoint,
		Token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch retrieves the full document set. A connection failure here is fatal
// for the run: without the source there is nothing to extract.
func (s *RESTSource) Fetch(ctx context.Context) ([]map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "xsr: build request")
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "xsr: cannot make connection with source repository")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, eris.New(fmt.Sprintf("xsr: source returned %d: %s", resp.StatusCode, body))
	}

	var docs []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		return nil, eris.Wrap(err, "xsr: decode source response")
	}

	zap.L().Info("xsr: retrieved documents from source", zap.Int("count", len(docs)))
	return docs, nil
}
