package aws

import (
	"context"
	"errors"
	"sync"
	"time"

	"crisis-alerts/internal/common/config"
	"crisis-alerts/internal/common/logger"
	"crisis-alerts/internal/common/metrics"
	"crisis-alerts/internal/models"

	"github.com/jonboulle/clockwork"
)

// ProviderConfig is the provider configuration resolved once at start-up.
type ProviderConfig struct {
	Region            string
	EmailEnabled      bool
	FromEmail         string
	SMSEnabled        bool
	SMSSenderID       string
	OriginationNumber string
	SMSType           string
}

func ProviderConfigFrom(cfg *config.Config) *ProviderConfig {
	p := cfg.Providers.AWS
	return &ProviderConfig{
		Region:            p.Region,
		EmailEnabled:      p.SES.Enabled,
		FromEmail:         p.SES.FromEmail,
		SMSEnabled:        p.SNS.Enabled,
		SMSSenderID:       p.SNS.DefaultSMSSenderID,
		OriginationNumber: p.SNS.OriginationNumber,
		SMSType:           p.SNS.SMSType,
	}
}

type EmailSender interface {
	Send(ctx context.Context, msg models.EmailMessage) (string, error)
	Verify(ctx context.Context) error
	Provider() string
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
	Verify(ctx context.Context) error
	SenderPhone() string
}

// ProviderStatus is the outcome of the latest provider verification.
type ProviderStatus struct {
	EmailProvider   string    `json:"emailProvider"`
	EmailConfigured bool      `json:"emailConfigured"`
	EmailError      string    `json:"emailError,omitempty"`
	SMSConfigured   bool      `json:"smsConfigured"`
	SMSError        string    `json:"smsError,omitempty"`
	SenderPhone     string    `json:"senderPhone,omitempty"`
	VerifiedAt      time.Time `json:"verifiedAt"`
}

var ErrSMSDisabled = errors.New("SMS provider is disabled")

type RegistryOptions struct {
	Email         EmailSender
	SMS           SMSSender // nil when SMS is disabled
	Clock         clockwork.Clock
	Logger        logger.Logger
	VerifyTimeout time.Duration
}

// ProviderRegistry owns the configured senders and their verification state.
// Nothing reads a definitive status before the first verification finished.
type ProviderRegistry struct {
	email   EmailSender
	sms     SMSSender
	clock   clockwork.Clock
	logger  logger.Logger
	timeout time.Duration

	startOnce sync.Once
	ready     chan struct{}

	mu     sync.RWMutex
	status ProviderStatus
}

func NewProviderRegistry(opts RegistryOptions) (*ProviderRegistry, error) {
	if opts.Email == nil {
		return nil, errors.New("providers: email sender is required")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	if opts.VerifyTimeout <= 0 {
		opts.VerifyTimeout = 10 * time.Second
	}

	return &ProviderRegistry{
		email:   opts.Email,
		sms:     opts.SMS,
		clock:   opts.Clock,
		logger:  opts.Logger.WithFields(map[string]interface{}{"component": "providers"}),
		timeout: opts.VerifyTimeout,
		ready:   make(chan struct{}),
	}, nil
}

func (r *ProviderRegistry) Email() EmailSender { return r.email }

// SMS returns the SMS sender, or nil when SMS is disabled.
func (r *ProviderRegistry) SMS() SMSSender { return r.sms }

// Start launches the first verification in the background. Later calls are no-ops.
func (r *ProviderRegistry) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		go func() {
			r.Reverify(ctx)
			close(r.ready)
		}()
	})
}

// Await blocks until the first verification has finished.
func (r *ProviderRegistry) Await(ctx context.Context) (ProviderStatus, error) {
	select {
	case <-r.ready:
		return r.current(), nil
	case <-ctx.Done():
		return ProviderStatus{}, ctx.Err()
	}
}

// Ready reports whether the first verification has finished.
func (r *ProviderRegistry) Ready() bool {
	select {
	case <-r.ready:
		return true
	default:
		return false
	}
}

// Reverify checks both channels and replaces the stored status.
func (r *ProviderRegistry) Reverify(ctx context.Context) ProviderStatus {
	status := ProviderStatus{EmailProvider: r.email.Provider()}

	if err := r.verify(ctx, r.email.Verify); err != nil {
		status.EmailError = err.Error()
	} else {
		status.EmailConfigured = true
	}

	if r.sms == nil {
		status.SMSError = ErrSMSDisabled.Error()
	} else {
		status.SenderPhone = r.sms.SenderPhone()
		if err := r.verify(ctx, r.sms.Verify); err != nil {
			status.SMSError = err.Error()
		} else {
			status.SMSConfigured = true
		}
	}
	status.VerifiedAt = r.clock.Now().UTC()

	r.mu.Lock()
	r.status = status
	r.mu.Unlock()

	metrics.AlertProviderConfigured.WithLabelValues("email").Set(metrics.BoolGauge(status.EmailConfigured))
	metrics.AlertProviderConfigured.WithLabelValues("sms").Set(metrics.BoolGauge(status.SMSConfigured))

	fields := map[string]interface{}{
		"emailProvider":   status.EmailProvider,
		"emailConfigured": status.EmailConfigured,
		"smsConfigured":   status.SMSConfigured,
	}
	if status.EmailError != "" || (r.sms != nil && status.SMSError != "") {
		fields["emailError"] = status.EmailError
		fields["smsError"] = status.SMSError
		r.logger.Warn("provider verification incomplete", fields)
	} else {
		r.logger.Info("providers verified", fields)
	}
	return status
}

func (r *ProviderRegistry) verify(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return fn(ctx)
}

func (r *ProviderRegistry) current() ProviderStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}
