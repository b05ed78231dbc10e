package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": body["ping"]})
	}))
	defer srv.Close()

	client := NewClient(time.Second).WithBearerToken("secret")

	var out map[string]string
	err := client.PostJSON(context.Background(), srv.URL, map[string]string{"ping": "pong"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "pong", out["echo"])
}

func TestPostJSON_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"SES throttled"}`))
	}))
	defer srv.Close()

	err := NewClient(time.Second).PostJSON(context.Background(), srv.URL, struct{}{}, nil)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, "SES throttled", statusErr.Message)
	assert.Equal(t, "http 502: SES throttled", err.Error())
}

func TestPostJSON_PlainErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewClient(time.Second).PostJSON(context.Background(), srv.URL, struct{}{}, nil)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Empty(t, statusErr.Message)
	assert.Equal(t, "http 500", err.Error())
}

func TestWithHeader_DoesNotMutateParent(t *testing.T) {
	base := NewClient(time.Second)
	child := base.WithHeader("X-Trace", "1")

	assert.Empty(t, base.headers)
	assert.Equal(t, "1", child.headers["X-Trace"])
	assert.Same(t, base, base.WithBearerToken(""))
}
