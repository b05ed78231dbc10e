// Package form holds the operator's in-progress email and SMS alert input.
package form

import (
	"sync"

	"crisis-alerts/internal/common/validation"
	"crisis-alerts/internal/models"
)

type EmailAlertForm struct {
	RecipientEmail    string
	Subject           string
	Body              string
	NotifyAuthorities bool
	NotifyNGOs        bool
	NotifyMedia       bool
}

// Recipients returns the category toggles in wire form.
func (f EmailAlertForm) Recipients() models.Recipients {
	return models.Recipients{Authorities: f.NotifyAuthorities, NGOs: f.NotifyNGOs, Media: f.NotifyMedia}
}

type SmsAlertForm struct {
	SmsEnabled        bool
	PhoneNumbers      []string
	NotifyAuthorities bool
	NotifyNGOs        bool
	NotifyMedia       bool
}

func (f SmsAlertForm) Recipients() models.Recipients {
	return models.Recipients{Authorities: f.NotifyAuthorities, NGOs: f.NotifyNGOs, Media: f.NotifyMedia}
}

// EmailPatch is a partial update; nil fields are left untouched.
type EmailPatch struct {
	RecipientEmail    *string
	Subject           *string
	Body              *string
	NotifyAuthorities *bool
	NotifyNGOs        *bool
	NotifyMedia       *bool
}

// SmsPatch is a partial update; nil fields are left untouched.
// PhoneNumbers is managed through the slot operations.
type SmsPatch struct {
	SmsEnabled        *bool
	NotifyAuthorities *bool
	NotifyNGOs        *bool
	NotifyMedia       *bool
}

// State owns both form slices. PhoneNumbers always holds at least one slot.
type State struct {
	mu         sync.RWMutex
	email      EmailAlertForm
	sms        SmsAlertForm
	emailValid bool
}

// New returns a form pre-filled from the crisis being alerted on.
func New(crisis models.CrisisContext) *State {
	return &State{
		email: EmailAlertForm{
			Subject: crisis.DefaultSubject(),
			Body:    crisis.DefaultBody(),
		},
		sms: SmsAlertForm{
			PhoneNumbers: []string{""},
		},
		emailValid: true,
	}
}

func (s *State) SetEmailField(p EmailPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	setString(&s.email.RecipientEmail, p.RecipientEmail)
	setString(&s.email.Subject, p.Subject)
	setString(&s.email.Body, p.Body)
	setBool(&s.email.NotifyAuthorities, p.NotifyAuthorities)
	setBool(&s.email.NotifyNGOs, p.NotifyNGOs)
	setBool(&s.email.NotifyMedia, p.NotifyMedia)
}

func (s *State) SetSmsField(p SmsPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	setBool(&s.sms.SmsEnabled, p.SmsEnabled)
	setBool(&s.sms.NotifyAuthorities, p.NotifyAuthorities)
	setBool(&s.sms.NotifyNGOs, p.NotifyNGOs)
	setBool(&s.sms.NotifyMedia, p.NotifyMedia)
}

// SetEmailValue updates the recipient and revalidates it. An empty value
// counts as valid so the field is not flagged while blank.
func (s *State) SetEmailValue(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.email.RecipientEmail = v
	s.emailValid = v == "" || validation.IsValidEmail(v)
}

func (s *State) AddPhoneSlot() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sms.PhoneNumbers = append(s.sms.PhoneNumbers, "")
}

// RemovePhoneSlot is a no-op on the last remaining slot or an unknown index.
func (s *State) RemovePhoneSlot(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.sms.PhoneNumbers)
	if n <= 1 || index < 0 || index >= n {
		return
	}
	numbers := make([]string, 0, n-1)
	numbers = append(numbers, s.sms.PhoneNumbers[:index]...)
	numbers = append(numbers, s.sms.PhoneNumbers[index+1:]...)
	s.sms.PhoneNumbers = numbers
}

func (s *State) SetPhoneValue(index int, v string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.sms.PhoneNumbers) {
		return
	}
	s.sms.PhoneNumbers[index] = v
}

// Email returns a copy of the email slice.
func (s *State) Email() EmailAlertForm {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.email
}

// Sms returns a copy of the SMS slice.
func (s *State) Sms() SmsAlertForm {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.sms
	out.PhoneNumbers = append([]string(nil), s.sms.PhoneNumbers...)
	return out
}

func (s *State) EmailValid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emailValid
}

// SetEmailValid lets a submit attempt flag the recipient field.
func (s *State) SetEmailValid(valid bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emailValid = valid
}

// ReplacePhoneNumbers stores a cleaned list. An empty list leaves a single
// blank slot.
func (s *State) ReplacePhoneNumbers(numbers []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(numbers) == 0 {
		s.sms.PhoneNumbers = []string{""}
		return
	}
	s.sms.PhoneNumbers = append([]string(nil), numbers...)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// String and Bool build patch fields from literals.
func String(v string) *string { return &v }

func Bool(v bool) *bool { return &v }
