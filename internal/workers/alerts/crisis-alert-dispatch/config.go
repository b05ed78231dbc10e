package crisisalertdispatch

import (
	"fmt"
	"time"

	"crisis-alerts/internal/common/config"
	"crisis-alerts/internal/common/validation"
)

type Config struct {
	Enabled         bool                   `mapstructure:"enabled"`
	MaxJobsActive   int                    `mapstructure:"max_jobs_active"`
	Timeout         time.Duration          `mapstructure:"timeout"`
	EmailRecipients config.RecipientGroups `mapstructure:"email_recipients"`
	SMSRecipients   config.RecipientGroups `mapstructure:"sms_recipients"`
	IdempotencyTTL  time.Duration          `mapstructure:"idempotency_ttl"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		MaxJobsActive:  5,
		Timeout:        60 * time.Second,
		IdempotencyTTL: 10 * time.Minute,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.IdempotencyTTL < 0 {
		return fmt.Errorf("idempotency_ttl must not be negative")
	}
	for _, addr := range allOf(c.EmailRecipients) {
		if !validation.IsValidEmail(addr) {
			return fmt.Errorf("invalid category email recipient %q", addr)
		}
	}
	for _, phone := range allOf(c.SMSRecipients) {
		if !validation.IsValidPhone(phone) {
			return fmt.Errorf("invalid category sms recipient %q", phone)
		}
	}
	return nil
}

func allOf(g config.RecipientGroups) []string {
	out := make([]string, 0, len(g.Authorities)+len(g.NGOs)+len(g.Media))
	out = append(out, g.Authorities...)
	out = append(out, g.NGOs...)
	return append(out, g.Media...)
}
