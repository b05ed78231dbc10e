package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crisis-alerts/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatchServer(t *testing.T, respond func(req models.DispatchRequest) (int, string)) (*httptest.Server, *[]models.DispatchRequest) {
	t.Helper()
	var seen []models.DispatchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.DispatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		seen = append(seen, req)
		status, body := respond(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func testSettings(url string) settings {
	return settings{url: url, timeout: 5 * time.Second}
}

func TestRun_Send(t *testing.T) {
	srv, seen := newDispatchServer(t, func(req models.DispatchRequest) (int, string) {
		return http.StatusOK, `{"email":{"provider":"ses"},"sms":{"sent":true,"configured":true,"responses":[],"twilioPhone":"+15550000000"}}`
	})

	var out bytes.Buffer
	code := run([]string{"send",
		"--region", "Sahel", "--crisis-type", "drought", "--severity", "high",
		"--to", "ops@crisisscope.org", "--authorities",
		"--sms", "--phone", "+15551234567", "--phone", " ", "--phone", "+15557654321",
	}, &out, testSettings(srv.URL))

	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "SMS provider: configured (+15550000000)")
	assert.Contains(t, out.String(), "[success] Alert sent: Email and SMS alerts dispatched successfully.")

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, "URGENT: HIGH drought crisis alert for Sahel", req.Subject)
	assert.True(t, req.Recipients.Authorities)
	assert.Equal(t, []string{"+15551234567", "+15557654321"}, req.PhoneNumbers)
}

func TestRun_SendPartial(t *testing.T) {
	srv, _ := newDispatchServer(t, func(req models.DispatchRequest) (int, string) {
		return http.StatusOK, `{"email":{},"sms":{"sent":false,"configured":false,"errorMessage":"missing credentials","responses":[]}}`
	})

	var out bytes.Buffer
	code := run([]string{"send", "--region", "Sahel", "--to", "ops@crisisscope.org", "--sms", "--phone", "+15551234567"},
		&out, testSettings(srv.URL))

	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "SMS provider: NOT configured (missing credentials)")
	assert.Contains(t, out.String(), "[partial]")
}

func TestRun_SendOffline(t *testing.T) {
	srv, seen := newDispatchServer(t, func(req models.DispatchRequest) (int, string) {
		return http.StatusOK, `{"email":{}}`
	})

	var out bytes.Buffer
	code := run([]string{"send", "--region", "Sahel", "--to", "ops@crisisscope.org", "--offline"}, &out, testSettings(srv.URL))

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "[error] Offline")
	assert.Empty(t, *seen)
}

func TestRun_SendServerError(t *testing.T) {
	srv, _ := newDispatchServer(t, func(req models.DispatchRequest) (int, string) {
		return http.StatusBadGateway, `{"error":"Failed to send alert email: MessageRejected","code":"EMAIL_SEND_FAILED"}`
	})

	var out bytes.Buffer
	code := run([]string{"send", "--region", "Sahel", "--to", "ops@crisisscope.org"}, &out, testSettings(srv.URL))

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "MessageRejected")
}

func TestRun_SendRequiresRegion(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, 1, run([]string{"send", "--to", "ops@crisisscope.org"}, &out, testSettings(defaultDispatchURL)))
	assert.Contains(t, out.String(), "--region is required")
}

func TestRun_Probe(t *testing.T) {
	srv, seen := newDispatchServer(t, func(req models.DispatchRequest) (int, string) {
		return http.StatusOK, `{"email":{"probe":true},"sms":{"sent":false,"configured":true,"responses":[],"twilioPhone":"+15550000000"}}`
	})

	var out bytes.Buffer
	code := run([]string{"probe"}, &out, testSettings(srv.URL))

	assert.Equal(t, 0, code)
	assert.Equal(t, "SMS provider: configured (+15550000000)\n", out.String())
	require.Len(t, *seen, 1)
	assert.Equal(t, models.CrisisProbe, (*seen)[0].CrisisType)
}

func TestRun_UnknownCommand(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, 1, run([]string{"shout"}, &out, testSettings(defaultDispatchURL)))
	assert.Contains(t, out.String(), "Unknown command: shout")
	assert.Equal(t, 1, run(nil, &out, testSettings(defaultDispatchURL)))
}

func TestReachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	assert.True(t, reachable(srv.URL+"/api/alerts/dispatch", time.Second))
	assert.False(t, reachable("http://127.0.0.1:1/api", 200*time.Millisecond))
	assert.False(t, reachable("not a url", time.Second))
}
