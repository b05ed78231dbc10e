package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"crisis-alerts/internal/common/errors"
	"crisis-alerts/internal/models"
	crisisalertdispatch "crisis-alerts/internal/workers/alerts/crisis-alert-dispatch"
)

const (
	maxBodyBytes        = 1 << 20
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
	providerWait        = 5 * time.Second
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req models.DispatchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, errors.NewInputParsingError(err))
		return
	}

	input := &crisisalertdispatch.Input{
		DispatchRequest: req,
		IdempotencyKey:  r.Header.Get("Idempotency-Key"),
	}
	result, err := s.dispatcher.Execute(r.Context(), input)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), providerWait)
	defer cancel()

	status, err := s.providers.Await(ctx)
	if err != nil {
		s.writeError(w, errors.NewProviderVerificationError("providers", err))
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleReverify(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.providers.Reverify(r.Context()))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "dispatch history is not enabled", Code: "HISTORY_DISABLED"})
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			s.writeError(w, errors.NewRequestValidationError("limit must be between 1 and "+strconv.Itoa(maxHistoryLimit)))
			return
		}
		limit = n
	}

	records, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleReady fails until the first provider verification has finished.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status, code := "ready", http.StatusOK
	if !s.providers.Ready() {
		status, code = "verifying providers", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	stdErr, ok := errors.AsStandard(err)
	if !ok {
		s.logger.Error("unhandled request error", map[string]interface{}{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Code: string(errors.ErrCodeInternal)})
		return
	}

	msg := stdErr.Message
	if stdErr.Details != "" {
		msg += ": " + stdErr.Details
	}
	writeJSON(w, statusFor(stdErr.Code), errorResponse{Error: msg, Code: string(stdErr.Code)})
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeRequestValidationFailed, errors.ErrCodeInputParsingFailed:
		return http.StatusBadRequest
	case errors.ErrCodeAuthenticationFailed:
		return http.StatusUnauthorized
	case errors.ErrCodeEmailSendFailed, errors.ErrCodeDispatchTransport:
		return http.StatusBadGateway
	case errors.ErrCodeProviderVerificationFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
