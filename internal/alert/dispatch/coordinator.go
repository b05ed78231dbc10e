// Package dispatch validates a filled-in alert form, sends it to the dispatch
// endpoint and turns the multi-channel response into one notification.
package dispatch

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"

	"crisis-alerts/internal/alert/form"
	apperrors "crisis-alerts/internal/common/errors"
	httpclient "crisis-alerts/internal/common/http"
	"crisis-alerts/internal/common/logger"
	"crisis-alerts/internal/common/validation"
	"crisis-alerts/internal/models"
)

// Boundary is the remote dispatch endpoint.
type Boundary interface {
	Dispatch(ctx context.Context, req *models.DispatchRequest) (*models.DispatchResult, error)
}

// Observer receives the full result of every successful dispatch,
// including partial successes.
type Observer func(result *models.DispatchResult)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseValidating
	PhaseDispatching
)

func (p Phase) String() string {
	switch p {
	case PhaseValidating:
		return "validating"
	case PhaseDispatching:
		return "dispatching"
	default:
		return "idle"
	}
}

type Options struct {
	Form     *form.State
	Crisis   models.CrisisContext
	Boundary Boundary
	Observer Observer
	Notifier Notifier
	Logger   logger.Logger
}

type Coordinator struct {
	form     *form.State
	crisis   models.CrisisContext
	boundary Boundary
	observer Observer
	notifier Notifier
	logger   logger.Logger

	mu    sync.Mutex
	phase Phase
}

func NewCoordinator(opts Options) (*Coordinator, error) {
	if opts.Form == nil {
		return nil, fmt.Errorf("dispatch: form state is required")
	}
	if opts.Boundary == nil {
		return nil, fmt.Errorf("dispatch: boundary is required")
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Coordinator{
		form:     opts.Form,
		crisis:   opts.Crisis,
		boundary: opts.Boundary,
		observer: opts.Observer,
		notifier: opts.Notifier,
		logger: log.WithFields(map[string]interface{}{
			"crisisType": string(opts.Crisis.CrisisType),
			"region":     opts.Crisis.RegionName,
		}),
	}, nil
}

// Phase reports where the current submit attempt is.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Loading is true only while the dispatch call is in flight.
func (c *Coordinator) Loading() bool {
	return c.Phase() == PhaseDispatching
}

// Submit validates the form, performs one dispatch call and reports the
// outcome. A call made while another submit is running is rejected.
// Partial successes return a nil error.
func (c *Coordinator) Submit(ctx context.Context, online bool) (Notification, error) {
	if !c.begin() {
		return c.reject(apperrors.NewDispatchInFlightError())
	}
	defer c.setPhase(PhaseIdle)

	req, err := c.prepare(online)
	if err != nil {
		return c.reject(err)
	}

	c.setPhase(PhaseDispatching)
	c.logger.Info("dispatching alert", map[string]interface{}{
		"sendSms":     req.SendSMS,
		"phoneCount":  len(req.PhoneNumbers),
		"authorities": req.Recipients.Authorities,
		"ngos":        req.Recipients.NGOs,
		"media":       req.Recipients.Media,
	})

	result, err := c.boundary.Dispatch(ctx, req)
	if err = transportError(result, err); err != nil {
		c.logger.Error("alert dispatch failed", map[string]interface{}{"error": err.Error()})
		return c.reject(err)
	}

	n := interpret(req, result)
	c.logger.Info("alert dispatched", map[string]interface{}{
		"outcome": string(n.Kind),
		"message": n.Message,
	})

	if c.observer != nil {
		c.observer(result)
	}
	c.notify(n)
	return n, nil
}

// CheckProvider sends a configuration probe and returns the SMS block of the
// answer. It does not take part in the single-flight guard.
func (c *Coordinator) CheckProvider(ctx context.Context) (*models.SMSResult, error) {
	result, err := c.boundary.Dispatch(ctx, ProbeRequest())
	if err = transportError(result, err); err != nil {
		return nil, err
	}
	if result.SMS == nil {
		return nil, apperrors.NewDispatchTransportError(stderrors.New("probe response has no sms status"))
	}
	return result.SMS, nil
}

// ProbeRequest is the request used to ask the endpoint for provider status.
func ProbeRequest() *models.DispatchRequest {
	return &models.DispatchRequest{
		Email:        "probe@crisisscope.local",
		Subject:      "check",
		Message:      "check",
		CrisisType:   models.CrisisProbe,
		SendSMS:      true,
		PhoneNumbers: []string{},
	}
}

func (c *Coordinator) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseIdle {
		return false
	}
	c.phase = PhaseValidating
	return true
}

func (c *Coordinator) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

// prepare runs the preconditions in order and builds the request. A valid
// SMS list replaces the stored one before any network call.
func (c *Coordinator) prepare(online bool) (*models.DispatchRequest, error) {
	if !online {
		return nil, apperrors.NewOfflineError()
	}

	email := c.form.Email()
	if email.RecipientEmail == "" || !validation.IsValidEmail(email.RecipientEmail) {
		c.form.SetEmailValid(false)
		return nil, apperrors.NewInvalidEmailError(email.RecipientEmail)
	}

	var missing []string
	if strings.TrimSpace(email.Subject) == "" {
		missing = append(missing, "subject")
	}
	if strings.TrimSpace(email.Body) == "" {
		missing = append(missing, "body")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewMissingContentError(missing...)
	}

	req := &models.DispatchRequest{
		Email:        email.RecipientEmail,
		Subject:      email.Subject,
		Message:      email.Body,
		Recipients:   email.Recipients(),
		CrisisType:   c.crisis.CrisisType,
		RegionName:   c.crisis.RegionName,
		Severity:     c.crisis.Severity,
		PhoneNumbers: []string{},
	}

	sms := c.form.Sms()
	if !sms.SmsEnabled {
		return req, nil
	}

	numbers := validation.FilterBlankPhones(sms.PhoneNumbers)
	if len(numbers) == 0 {
		return nil, apperrors.NewNoPhoneNumbersError()
	}
	if invalid := validation.InvalidPhones(numbers); len(invalid) > 0 {
		return nil, apperrors.NewInvalidPhoneError(invalid)
	}
	c.form.ReplacePhoneNumbers(numbers)

	req.SendSMS = true
	req.PhoneNumbers = numbers
	req.SMSRecipients = sms.Recipients()
	return req, nil
}

func (c *Coordinator) reject(err error) (Notification, error) {
	n := notificationFor(err)
	c.logger.Warn("alert not sent", map[string]interface{}{
		"errorCode": string(apperrors.CodeOf(err)),
		"message":   n.Message,
	})
	c.notify(n)
	return n, err
}

func (c *Coordinator) notify(n Notification) {
	if c.notifier != nil {
		c.notifier.Notify(n)
	}
}

// transportError folds a failed call, an empty answer and an error object in
// the body into one DISPATCH_TRANSPORT_FAILED error.
func transportError(result *models.DispatchResult, err error) error {
	switch {
	case err != nil:
		stdErr := apperrors.NewDispatchTransportError(err)
		var statusErr *httpclient.StatusError
		if stderrors.As(err, &statusErr) && statusErr.Message != "" {
			stdErr.Details = statusErr.Message
		}
		return stdErr
	case result == nil:
		return apperrors.NewDispatchTransportError(stderrors.New("empty response from dispatch endpoint"))
	case result.Error != "":
		return apperrors.NewDispatchTransportError(stderrors.New(result.Error))
	}
	return nil
}

// interpret maps a successful call to its notification, most specific first.
func interpret(req *models.DispatchRequest, result *models.DispatchResult) Notification {
	if !req.SendSMS {
		return success(msgEmailSent)
	}

	sms := result.SMS
	if sms == nil {
		return partial(msgSMSFailedGeneric)
	}

	switch {
	case sms.Sent:
		return success(msgEmailAndSMSSent)
	case !sms.Configured:
		if sms.ErrorMessage != "" {
			return partial(msgSMSNotConfigured + " " + sms.ErrorMessage)
		}
		return partial(msgSMSNotConfigured)
	case sms.ErrorMessage != "":
		return partial(msgSMSFailedPrefix + sms.ErrorMessage)
	default:
		return partial(msgSMSFailedGeneric)
	}
}
