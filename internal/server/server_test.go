package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crisis-alerts/internal/alert/history"
	"crisis-alerts/internal/common/auth"
	"crisis-alerts/internal/common/aws"
	"crisis-alerts/internal/common/errors"
	"crisis-alerts/internal/common/logger"
	"crisis-alerts/internal/models"
	crisisalertdispatch "crisis-alerts/internal/workers/alerts/crisis-alert-dispatch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mocks
// ==========================

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Execute(ctx context.Context, input *crisisalertdispatch.Input) (*models.DispatchResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DispatchResult), args.Error(1)
}

type stubProviders struct {
	status aws.ProviderStatus
	ready  bool
}

func (p *stubProviders) Await(ctx context.Context) (aws.ProviderStatus, error) {
	if !p.ready {
		<-ctx.Done()
		return aws.ProviderStatus{}, ctx.Err()
	}
	return p.status, nil
}

func (p *stubProviders) Reverify(ctx context.Context) aws.ProviderStatus {
	p.status.VerifiedAt = p.status.VerifiedAt.Add(time.Minute)
	return p.status
}

func (p *stubProviders) Ready() bool { return p.ready }

type stubHistory struct {
	records []history.Record
	limit   int
	err     error
}

func (h *stubHistory) Recent(ctx context.Context, limit int) ([]history.Record, error) {
	h.limit = limit
	return h.records, h.err
}

type stubValidator struct{}

func (stubValidator) ValidateToken(ctx context.Context, token string) (*auth.TokenInfo, error) {
	switch token {
	case "good":
		return &auth.TokenInfo{Active: true, ClientID: "alert-console"}, nil
	case "keycloak-down":
		err := errors.NewAuthenticationError("keycloak unreachable")
		err.Retryable = true
		return nil, err
	default:
		return nil, errors.NewAuthenticationError("token is not active")
	}
}

// ==========================
// Test Helpers
// ==========================

func readyProviders() *stubProviders {
	return &stubProviders{
		ready: true,
		status: aws.ProviderStatus{
			EmailProvider: "ses", EmailConfigured: true,
			SMSConfigured: true, SenderPhone: "+15550000000",
		},
	}
}

func createServer(t *testing.T, mutate func(*Options)) (*Server, *MockDispatcher) {
	t.Helper()
	dispatcher := &MockDispatcher{}
	opts := Options{
		Dispatcher: dispatcher,
		Providers:  readyProviders(),
		Logger:     logger.NewTestLogger(t),
		RateLimit:  "100-M",
	}
	if mutate != nil {
		mutate(&opts)
	}
	srv, err := New(opts)
	require.NoError(t, err)
	return srv, dispatcher
}

func do(srv *Server, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

const dispatchBody = `{"email":"ops@crisisscope.org","subject":"s","message":"m","crisisType":"drought","severity":"high","sendSms":false,"phoneNumbers":[]}`

// ==========================
// Construction
// ==========================

func TestNew_Errors(t *testing.T) {
	_, err := New(Options{Providers: readyProviders()})
	assert.Error(t, err)

	_, err = New(Options{Dispatcher: &MockDispatcher{}, Providers: readyProviders(), RateLimit: "lots"})
	assert.ErrorContains(t, err, "invalid rate limit")
}

// ==========================
// Dispatch
// ==========================

func TestDispatch_Success(t *testing.T) {
	srv, dispatcher := createServer(t, nil)
	dispatcher.On("Execute", mock.Anything, mock.MatchedBy(func(in *crisisalertdispatch.Input) bool {
		return in.Email == "ops@crisisscope.org" && in.IdempotencyKey == "req-1"
	})).Return(&models.DispatchResult{Email: json.RawMessage(`{"provider":"ses"}`)}, nil)

	rec := do(srv, http.MethodPost, "/api/alerts/dispatch", dispatchBody, map[string]string{"Idempotency-Key": "req-1"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"email":{"provider":"ses"}}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	dispatcher.AssertExpectations(t)
}

func TestDispatch_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantError  string
	}{
		{
			name:       "validation",
			err:        errors.NewRequestValidationError("email: invalid address"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "REQUEST_VALIDATION_FAILED",
			wantError:  "Dispatch request validation failed: email: invalid address",
		},
		{
			name:       "email provider",
			err:        errors.NewEmailSendFailedError(stderrors.New("MessageRejected")),
			wantStatus: http.StatusBadGateway,
			wantCode:   "EMAIL_SEND_FAILED",
			wantError:  "Failed to send alert email: MessageRejected",
		},
		{
			name:       "providers unverified",
			err:        errors.NewProviderVerificationError("providers", context.DeadlineExceeded),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "PROVIDER_VERIFICATION_FAILED",
		},
		{
			name:       "unexpected",
			err:        stderrors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
			wantError:  "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, dispatcher := createServer(t, nil)
			dispatcher.On("Execute", mock.Anything, mock.Anything).Return(nil, tt.err)

			rec := do(srv, http.MethodPost, "/api/alerts/dispatch", dispatchBody, nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, body.Code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body.Error)
			}
		})
	}
}

func TestDispatch_MalformedBody(t *testing.T) {
	srv, dispatcher := createServer(t, nil)

	rec := do(srv, http.MethodPost, "/api/alerts/dispatch", `{"email":`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INPUT_PARSING_FAILED", decodeError(t, rec).Code)
	dispatcher.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestDispatch_WrongMethod(t *testing.T) {
	srv, _ := createServer(t, nil)
	rec := do(srv, http.MethodGet, "/api/alerts/dispatch", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// ==========================
// Providers, history, probes
// ==========================

func TestProviders(t *testing.T) {
	srv, _ := createServer(t, nil)

	rec := do(srv, http.MethodGet, "/api/alerts/providers", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var status aws.ProviderStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.SMSConfigured)
	assert.Equal(t, "+15550000000", status.SenderPhone)

	rec = do(srv, http.MethodPost, "/api/alerts/providers/verify", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReady(t *testing.T) {
	providers := &stubProviders{}
	srv, _ := createServer(t, func(o *Options) { o.Providers = providers })

	assert.Equal(t, http.StatusServiceUnavailable, do(srv, http.MethodGet, "/ready", "", nil).Code)
	providers.ready = true
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/ready", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/health", "", nil).Code)
}

func TestMetrics(t *testing.T) {
	srv, _ := createServer(t, nil)
	rec := do(srv, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestHistory(t *testing.T) {
	store := &stubHistory{records: []history.Record{{ID: "d-1", CrisisType: models.CrisisDrought, FailedPhones: []string{}}}}
	srv, _ := createServer(t, func(o *Options) { o.History = store })

	rec := do(srv, http.MethodGet, "/api/alerts/history?limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, store.limit)
	assert.Contains(t, rec.Body.String(), `"id":"d-1"`)

	do(srv, http.MethodGet, "/api/alerts/history", "", nil)
	assert.Equal(t, defaultHistoryLimit, store.limit)

	for _, bad := range []string{"0", "-1", "abc", "201"} {
		rec := do(srv, http.MethodGet, "/api/alerts/history?limit="+bad, "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestHistory_Disabled(t *testing.T) {
	srv, _ := createServer(t, nil)
	rec := do(srv, http.MethodGet, "/api/alerts/history", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ==========================
// Middleware
// ==========================

func TestAuth(t *testing.T) {
	srv, _ := createServer(t, func(o *Options) { o.Auth = stubValidator{} })

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"inactive", "Bearer expired", http.StatusUnauthorized},
		{"keycloak down", "Bearer keycloak-down", http.StatusServiceUnavailable},
		{"valid", "Bearer good", http.StatusOK},
		{"lowercase scheme", "bearer good", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			rec := do(srv, http.MethodGet, "/api/alerts/providers", "", headers)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}

	// probes stay open
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/health", "", nil).Code)
}

func TestRateLimit(t *testing.T) {
	srv, _ := createServer(t, func(o *Options) { o.RateLimit = "2-M" })

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/api/alerts/providers", "", nil).Code)
	}
	rec := do(srv, http.MethodGet, "/api/alerts/providers", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", decodeError(t, rec).Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	// probes are not limited
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/health", "", nil).Code)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := bearerToken(req)
	assert.False(t, ok)

	req.Header.Set("Authorization", "Bearer  abc ")
	token, ok := bearerToken(req)
	assert.True(t, ok)
	assert.Equal(t, "abc", token)
}
