package form

import (
	"sync"
	"testing"

	"crisis-alerts/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCrisis() models.CrisisContext {
	return models.CrisisContext{
		CrisisType: models.CrisisDrought,
		RegionName: "Sahel",
		Severity:   models.SeverityExtreme,
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New(testCrisis())

	email := s.Email()
	assert.Empty(t, email.RecipientEmail)
	assert.Equal(t, "URGENT: EXTREME drought crisis alert for Sahel", email.Subject)
	assert.Contains(t, email.Body, "Sahel")
	assert.False(t, email.NotifyAuthorities || email.NotifyNGOs || email.NotifyMedia)

	sms := s.Sms()
	assert.False(t, sms.SmsEnabled)
	assert.Equal(t, []string{""}, sms.PhoneNumbers)
	assert.True(t, s.EmailValid())
}

// ==========================
// Field patches
// ==========================

func TestSetEmailField_ShallowMerge(t *testing.T) {
	s := New(testCrisis())
	original := s.Email()

	s.SetEmailField(EmailPatch{NotifyNGOs: Bool(true), Subject: String("Evacuation order")})

	email := s.Email()
	assert.True(t, email.NotifyNGOs)
	assert.Equal(t, "Evacuation order", email.Subject)
	assert.Equal(t, original.Body, email.Body)
	assert.False(t, email.NotifyMedia)
	assert.True(t, s.EmailValid(), "plain patches never validate")
}

func TestSetEmailField_DoesNotValidate(t *testing.T) {
	s := New(testCrisis())
	s.SetEmailField(EmailPatch{RecipientEmail: String("not-an-email")})

	assert.Equal(t, "not-an-email", s.Email().RecipientEmail)
	assert.True(t, s.EmailValid())
}

func TestSetSmsField_LeavesPhonesAlone(t *testing.T) {
	s := New(testCrisis())
	s.SetPhoneValue(0, "+15551234567")

	s.SetSmsField(SmsPatch{SmsEnabled: Bool(true), NotifyAuthorities: Bool(true)})

	sms := s.Sms()
	assert.True(t, sms.SmsEnabled)
	assert.True(t, sms.NotifyAuthorities)
	assert.Equal(t, []string{"+15551234567"}, sms.PhoneNumbers)
}

func TestSetEmailValue(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantValid bool
	}{
		{"valid address", "a@b.co", true},
		{"missing tld", "a@b", false},
		{"contains space", "a b@c.d", false},
		{"empty is valid", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(testCrisis())
			s.SetEmailValue(tt.value)
			assert.Equal(t, tt.value, s.Email().RecipientEmail)
			assert.Equal(t, tt.wantValid, s.EmailValid())
		})
	}
}

func TestSetEmailValue_ClearingResetsFlag(t *testing.T) {
	s := New(testCrisis())
	s.SetEmailValue("bad")
	require.False(t, s.EmailValid())

	s.SetEmailValue("")
	assert.True(t, s.EmailValid())
}

// ==========================
// Phone slots
// ==========================

func TestPhoneSlots(t *testing.T) {
	s := New(testCrisis())

	s.AddPhoneSlot()
	s.AddPhoneSlot()
	s.SetPhoneValue(0, "+1555")
	s.SetPhoneValue(1, "+1666")
	s.SetPhoneValue(2, "+1777")
	assert.Equal(t, []string{"+1555", "+1666", "+1777"}, s.Sms().PhoneNumbers)

	s.RemovePhoneSlot(1)
	assert.Equal(t, []string{"+1555", "+1777"}, s.Sms().PhoneNumbers)

	s.RemovePhoneSlot(0)
	assert.Equal(t, []string{"+1777"}, s.Sms().PhoneNumbers)
}

func TestRemovePhoneSlot_KeepsLastSlot(t *testing.T) {
	s := New(testCrisis())
	s.SetPhoneValue(0, "+15551234567")

	s.RemovePhoneSlot(0)

	assert.Equal(t, []string{"+15551234567"}, s.Sms().PhoneNumbers)
}

func TestPhoneSlots_OutOfRangeIsNoOp(t *testing.T) {
	s := New(testCrisis())
	s.AddPhoneSlot()

	s.SetPhoneValue(5, "+1555")
	s.SetPhoneValue(-1, "+1555")
	s.RemovePhoneSlot(7)
	s.RemovePhoneSlot(-1)

	assert.Equal(t, []string{"", ""}, s.Sms().PhoneNumbers)
}

func TestSms_ReturnsCopy(t *testing.T) {
	s := New(testCrisis())
	snapshot := s.Sms()
	snapshot.PhoneNumbers[0] = "+19999999999"

	assert.Equal(t, []string{""}, s.Sms().PhoneNumbers)
}

func TestReplacePhoneNumbers(t *testing.T) {
	s := New(testCrisis())
	s.ReplacePhoneNumbers([]string{"+1555", "+1666"})
	assert.Equal(t, []string{"+1555", "+1666"}, s.Sms().PhoneNumbers)

	s.ReplacePhoneNumbers(nil)
	assert.Equal(t, []string{""}, s.Sms().PhoneNumbers)
}

func TestState_ConcurrentAccess(t *testing.T) {
	s := New(testCrisis())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.AddPhoneSlot()
			s.SetEmailValue("ops@crisisscope.org")
		}()
		go func() {
			defer wg.Done()
			_ = s.Sms()
			_ = s.Email()
		}()
	}
	wg.Wait()

	assert.Len(t, s.Sms().PhoneNumbers, 21)
	assert.True(t, s.EmailValid())
}
