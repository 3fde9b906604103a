package xis

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adlnet/edlm-portal-xia-jobs/internal/ledger"
	"github.com/adlnet/edlm-portal-xia-jobs/internal/resilience"
)

func TestHTTPClient_Post_Success(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, 100)

	code, err := client.Post(context.Background(), []byte(`{"metadata_key":"k"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, code)
	assert.JSONEq(t, `{"metadata_key":"k"}`, string(gotBody))
}

func TestHTTPClient_Post_RejectionReturnsCodeWithoutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, 100)

	code, err := client.Post(context.Background(), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHTTPClient_Post_ConnectionFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	client := NewClient(srv.URL, 1*time.Second, 100)

	_, err := client.Post(context.Background(), []byte(`{}`))
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestBuildPayload(t *testing.T) {
	rec := &ledger.Record{
		UUID:              "uuid-1",
		TargetKey:         "IFS0067_DAU",
		TargetKeyHash:     "key-hash",
		TargetContentHash: "content-hash",
		TargetDocument: map[string]any{
			"Course": map[string]any{"CourseCode": "IFS0067"},
		},
	}

	data, err := BuildPayload(rec, "DAU")
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "uuid-1", payload["unique_record_identifier"])
	assert.Equal(t, "IFS0067_DAU", payload["metadata_key"])
	assert.Equal(t, "key-hash", payload["metadata_key_hash"])
	assert.Equal(t, "content-hash", payload["metadata_hash"])
	assert.Equal(t, "DAU", payload["provider_name"])
	metadata, ok := payload["metadata"].(map[string]any)
	require.True(t, ok)
	course := metadata["Course"].(map[string]any)
	assert.Equal(t, "IFS0067", course["CourseCode"])
}
