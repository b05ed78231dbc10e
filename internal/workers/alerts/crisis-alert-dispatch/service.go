package crisisalertdispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"crisis-alerts/internal/alert/history"
	"crisis-alerts/internal/common/aws"
	"crisis-alerts/internal/common/config"
	"crisis-alerts/internal/common/errors"
	"crisis-alerts/internal/common/logger"
	"crisis-alerts/internal/common/metrics"
	"crisis-alerts/internal/common/observability"
	"crisis-alerts/internal/common/validation"
	"crisis-alerts/internal/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
)

const (
	msgSMSNotConfigured = "SMS provider is not configured"
	maxSMSLength        = 1600
)

type Service struct {
	config    *Config
	providers Providers
	cache     *ResultCache
	history   history.Sink
	clock     clockwork.Clock
	logger    logger.Logger
	obs       *observability.Observability
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{
		config:    config,
		providers: deps.Providers,
		cache:     deps.Cache,
		history:   deps.History,
		clock:     clock,
		logger:    log,
		obs:       deps.Observability,
	}
}

// Execute dispatches one alert: email first, then SMS when requested. An
// email failure is an error; SMS problems are reported in the result.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	ctx, span := observability.StartSpan(ctx, "alert.dispatch",
		attribute.String("crisis_type", string(input.CrisisType)),
		attribute.Bool("send_sms", input.SendSMS),
	)
	defer span.End()

	start := s.clock.Now()

	if input.IdempotencyKey != "" && s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, input.IdempotencyKey)
		if err != nil {
			s.logger.Warn("idempotency lookup failed", map[string]interface{}{
				"idempotencyKey": input.IdempotencyKey,
				"error":          err.Error(),
			})
		} else if ok {
			s.logger.Info("returning cached dispatch result", map[string]interface{}{
				"idempotencyKey": input.IdempotencyKey,
			})
			s.record(ctx, "cached", start)
			return cached, nil
		}
	}

	if input.IsProbe() {
		status, err := s.providers.Await(ctx)
		if err != nil {
			return nil, errors.NewProviderVerificationError("providers", err)
		}
		s.record(ctx, "probe", start)
		return probeResult(status), nil
	}

	if err := s.validate(input); err != nil {
		s.record(ctx, "rejected", start)
		return nil, err
	}

	status, err := s.providers.Await(ctx)
	if err != nil {
		return nil, errors.NewProviderVerificationError("providers", err)
	}

	dispatchID := input.IdempotencyKey
	if dispatchID == "" {
		dispatchID = uuid.NewString()
	}
	log := s.logger.WithFields(map[string]interface{}{
		"dispatchId": dispatchID,
		"crisisType": string(input.CrisisType),
		"region":     input.RegionName,
	})

	receipt, err := s.sendEmail(ctx, input)
	if err != nil {
		log.Error("alert email failed", map[string]interface{}{"error": err.Error()})
		span.RecordError(err)
		s.saveHistory(ctx, history.NewRecord(dispatchID, s.clock.Now(), &input.DispatchRequest, nil))
		s.record(ctx, "failed", start)
		return nil, errors.NewEmailSendFailedError(err)
	}

	emailJSON, err := json.Marshal(receipt)
	if err != nil {
		return nil, fmt.Errorf("marshal email receipt: %w", err)
	}
	result := &Output{Email: emailJSON}

	outcome := "success"
	if input.SendSMS {
		result.SMS = s.sendSMS(ctx, input, status)
		if !result.SMS.Sent {
			outcome = "partial"
		}
	}

	log.Info("alert dispatched", map[string]interface{}{
		"outcome":        outcome,
		"emailProvider":  receipt.Provider,
		"ccCount":        len(receipt.Recipients) - 1,
		"smsRequested":   input.SendSMS,
		"smsSent":        result.SMS != nil && result.SMS.Sent,
		"smsRecipients":  smsCount(result.SMS),
		"idempotencyKey": input.IdempotencyKey,
	})

	if input.IdempotencyKey != "" && s.cache != nil {
		if err := s.cache.Set(ctx, input.IdempotencyKey, result, s.config.IdempotencyTTL); err != nil {
			log.Warn("failed to cache dispatch result", map[string]interface{}{"error": err.Error()})
		}
	}
	s.saveHistory(ctx, history.NewRecord(dispatchID, s.clock.Now(), &input.DispatchRequest, result))
	s.record(ctx, outcome, start)

	return result, nil
}

func (s *Service) validate(input *Input) error {
	var problems []string

	if !validation.IsValidEmail(input.Email) {
		problems = append(problems, "email: invalid address")
	}
	if strings.TrimSpace(input.Subject) == "" {
		problems = append(problems, "subject: required")
	}
	if strings.TrimSpace(input.Message) == "" {
		problems = append(problems, "message: required")
	}
	if input.CrisisType != "" && !input.CrisisType.Valid() {
		problems = append(problems, fmt.Sprintf("crisisType: unknown value %q", input.CrisisType))
	}
	if input.Severity != "" && !input.Severity.Valid() {
		problems = append(problems, fmt.Sprintf("severity: unknown value %q", input.Severity))
	}
	if input.SendSMS {
		if len(input.PhoneNumbers) == 0 && !input.SMSRecipients.Any() {
			problems = append(problems, "phoneNumbers: at least one recipient is required")
		}
		if invalid := validation.InvalidPhones(input.PhoneNumbers); len(invalid) > 0 {
			problems = append(problems, fmt.Sprintf("phoneNumbers: %d invalid number(s)", len(invalid)))
		}
	}

	if len(problems) > 0 {
		return errors.NewRequestValidationError(strings.Join(problems, "; "))
	}
	return nil
}

func (s *Service) sendEmail(ctx context.Context, input *Input) (*models.EmailReceipt, error) {
	msg := models.EmailMessage{
		To:      input.Email,
		CC:      selectRecipients(s.config.EmailRecipients, input.Recipients, input.Email),
		Subject: input.Subject,
		Body:    input.Message,
	}

	sender := s.providers.Email()
	id, err := sender.Send(ctx, msg)
	if err != nil {
		return nil, err
	}
	return &models.EmailReceipt{
		MessageID:  id,
		Provider:   sender.Provider(),
		Recipients: msg.Recipients(),
	}, nil
}

// sendSMS sends to every number once. A provider that is disabled or failed
// verification is reported without contacting it.
func (s *Service) sendSMS(ctx context.Context, input *Input, status aws.ProviderStatus) *models.SMSResult {
	result := &models.SMSResult{
		Configured:  status.SMSConfigured,
		Responses:   []models.SMSResponse{},
		SenderPhone: optional(status.SenderPhone),
	}

	sender := s.providers.SMS()
	if sender == nil || !status.SMSConfigured {
		result.Configured = false
		result.ErrorMessage = msgSMSNotConfigured
		if status.SMSError != "" {
			result.ErrorMessage += ": " + status.SMSError
		}
		metrics.AlertSMSMessages.WithLabelValues("not_configured").Inc()
		return result
	}

	numbers := mergeNumbers(input.PhoneNumbers, selectRecipients(s.config.SMSRecipients, input.SMSRecipients, ""))
	if len(numbers) == 0 {
		result.ErrorMessage = "no SMS recipients for the selected categories"
		return result
	}
	body := smsBody(input)

	var firstErr string
	failed := 0
	for _, to := range numbers {
		sid, err := sender.SendSMS(ctx, to, body)
		if err != nil {
			failed++
			if firstErr == "" {
				firstErr = err.Error()
			}
			s.logger.Warn("sms delivery failed", map[string]interface{}{"to": to, "error": err.Error()})
			result.Responses = append(result.Responses, models.SMSResponse{To: to, Status: models.SMSStatusFailed, Error: err.Error()})
			metrics.AlertSMSMessages.WithLabelValues(models.SMSStatusFailed).Inc()
			continue
		}
		result.Responses = append(result.Responses, models.SMSResponse{To: to, Status: models.SMSStatusSent, SID: sid})
		metrics.AlertSMSMessages.WithLabelValues(models.SMSStatusSent).Inc()
	}

	result.Sent = failed == 0
	if failed > 0 {
		result.ErrorMessage = fmt.Sprintf("SMS failed for %d of %d recipients: %s", failed, len(numbers), firstErr)
	}
	return result
}

func (s *Service) saveHistory(ctx context.Context, rec history.Record) {
	if s.history == nil {
		return
	}
	if err := s.history.Save(ctx, rec); err != nil {
		s.logger.Warn("failed to record dispatch history", map[string]interface{}{
			"dispatchId": rec.ID,
			"error":      err.Error(),
		})
	}
}

func (s *Service) record(ctx context.Context, outcome string, start time.Time) {
	elapsed := s.clock.Since(start)
	metrics.AlertDispatches.WithLabelValues(outcome).Inc()
	metrics.AlertDispatchDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	if s.obs != nil {
		s.obs.RecordDispatch(ctx, outcome)
		s.obs.RecordDispatchDuration(ctx, elapsed, outcome)
	}
}

func probeResult(status aws.ProviderStatus) *Output {
	sms := &models.SMSResult{
		Sent:        false,
		Configured:  status.SMSConfigured,
		Responses:   []models.SMSResponse{},
		SenderPhone: optional(status.SenderPhone),
	}
	if !status.SMSConfigured {
		sms.ErrorMessage = status.SMSError
	}
	return &Output{Email: json.RawMessage(`{"probe":true}`), SMS: sms}
}

// selectRecipients returns the addresses of every selected category in
// category order, without duplicates and without exclude.
func selectRecipients(groups config.RecipientGroups, selected models.Recipients, exclude string) []string {
	var candidates []string
	if selected.Authorities {
		candidates = append(candidates, groups.Authorities...)
	}
	if selected.NGOs {
		candidates = append(candidates, groups.NGOs...)
	}
	if selected.Media {
		candidates = append(candidates, groups.Media...)
	}

	seen := map[string]bool{strings.ToLower(exclude): exclude != ""}
	out := []string{}
	for _, c := range candidates {
		key := strings.ToLower(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

func mergeNumbers(lists ...[]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, list := range lists {
		for _, n := range list {
			if seen[n] {
				continue
			}
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

func smsBody(input *Input) string {
	body := input.Subject + "\n\n" + input.Message
	if r := []rune(body); len(r) > maxSMSLength {
		body = string(r[:maxSMSLength])
	}
	return body
}

func smsCount(sms *models.SMSResult) int {
	if sms == nil {
		return 0
	}
	return len(sms.Responses)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
