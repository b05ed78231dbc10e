package dispatch

import (
	"fmt"

	apperrors "crisis-alerts/internal/common/errors"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindPartial Kind = "partial"
	KindError   Kind = "error"
)

// Notification is the single user-facing outcome of a submit attempt.
// Field names the form field an error belongs to, if any.
type Notification struct {
	Kind    Kind   `json:"kind"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Notifier displays notifications, typically as a toast.
type Notifier interface {
	Notify(Notification)
}

type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

const (
	msgEmailSent        = "Email alert sent successfully."
	msgEmailAndSMSSent  = "Email and SMS alerts dispatched successfully."
	msgSMSNotConfigured = "Email sent, but SMS failed: SMS provider is not configured."
	msgSMSFailedPrefix  = "Email sent, but SMS failed: "
	msgSMSFailedGeneric = "Email sent, but SMS delivery failed. Check the server logs for details."
)

func success(message string) Notification {
	return Notification{Kind: KindSuccess, Title: "Alert sent", Message: message}
}

func partial(message string) Notification {
	return Notification{Kind: KindPartial, Title: "Partial success", Message: message}
}

// notificationFor maps a submit error to its notification.
func notificationFor(err error) Notification {
	stdErr, ok := apperrors.AsStandard(err)
	if !ok {
		return Notification{Kind: KindError, Title: "Alert failed", Message: "Failed to send alert. Please try again."}
	}

	switch stdErr.Code {
	case apperrors.ErrCodeOffline:
		return Notification{Kind: KindError, Title: "Offline",
			Message: "Cannot send alerts while offline. Please check your connection."}
	case apperrors.ErrCodeInvalidEmail:
		return Notification{Kind: KindError, Title: "Invalid email",
			Message: "Please enter a valid email address.", Field: "recipientEmail"}
	case apperrors.ErrCodeMissingContent:
		return Notification{Kind: KindError, Title: "Missing content",
			Message: "Subject and message are required."}
	case apperrors.ErrCodeNoPhoneNumbers:
		return Notification{Kind: KindError, Title: "No phone numbers",
			Message: "Please add at least one phone number for SMS alerts.", Field: "phoneNumbers"}
	case apperrors.ErrCodeInvalidPhone:
		return Notification{Kind: KindError, Title: "Invalid phone numbers",
			Message: fmt.Sprintf("%d invalid phone number(s). Use international format, e.g. +15551234567.",
				stdErr.Metadata["invalidCount"]),
			Field: "phoneNumbers"}
	case apperrors.ErrCodeDispatchInFlight:
		return Notification{Kind: KindError, Title: "Alert in progress",
			Message: "An alert is already being sent. Please wait."}
	case apperrors.ErrCodeDispatchTransport:
		if stdErr.Details != "" {
			return Notification{Kind: KindError, Title: "Alert failed",
				Message: "Failed to send alert: " + stdErr.Details}
		}
		return Notification{Kind: KindError, Title: "Alert failed", Message: "Failed to send alert. Please try again."}
	default:
		return Notification{Kind: KindError, Title: "Alert failed", Message: stdErr.Message}
	}
}
