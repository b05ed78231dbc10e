// Package history records every dispatch outcome to the configured sinks.
package history

import (
	"context"
	"time"

	"crisis-alerts/internal/models"
)

// Record is one dispatch outcome.
type Record struct {
	ID             string            `json:"id"`
	DispatchedAt   time.Time         `json:"dispatched_at"`
	CrisisType     models.CrisisType `json:"crisis_type"`
	RegionName     string            `json:"region_name"`
	Severity       models.Severity   `json:"severity"`
	RecipientEmail string            `json:"recipient_email"`
	EmailSent      bool              `json:"email_sent"`
	SMSRequested   bool              `json:"sms_requested"`
	SMSSent        bool              `json:"sms_sent"`
	SMSConfigured  bool              `json:"sms_configured"`
	SMSError       string            `json:"sms_error,omitempty"`
	PhoneCount     int               `json:"phone_count"`
	FailedPhones   []string          `json:"failed_phones"`
}

// Sink stores records. Implementations must be safe for concurrent use.
type Sink interface {
	Save(ctx context.Context, rec Record) error
	Name() string
}

// NewRecord summarises a completed dispatch. A nil result means email failed.
func NewRecord(id string, at time.Time, req *models.DispatchRequest, result *models.DispatchResult) Record {
	rec := Record{
		ID:             id,
		DispatchedAt:   at.UTC(),
		CrisisType:     req.CrisisType,
		RegionName:     req.RegionName,
		Severity:       req.Severity,
		RecipientEmail: req.Email,
		SMSRequested:   req.SendSMS,
		FailedPhones:   []string{},
	}
	if result == nil {
		return rec
	}

	rec.EmailSent = len(result.Email) > 0
	if sms := result.SMS; sms != nil {
		rec.SMSSent = sms.Sent
		rec.SMSConfigured = sms.Configured
		rec.SMSError = sms.ErrorMessage
		rec.PhoneCount = len(sms.Responses)
		for _, r := range sms.Responses {
			if r.Status == models.SMSStatusFailed {
				rec.FailedPhones = append(rec.FailedPhones, r.To)
			}
		}
	}
	return rec
}
