package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	"crisis-alerts/internal/common/logger"
	"crisis-alerts/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock AWS APIs
// ==========================

type MockSESAPI struct {
	mock.Mock
}

func (m *MockSESAPI) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ses.SendEmailOutput), args.Error(1)
}

func (m *MockSESAPI) GetSendQuota(ctx context.Context, params *ses.GetSendQuotaInput, optFns ...func(*ses.Options)) (*ses.GetSendQuotaOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ses.GetSendQuotaOutput), args.Error(1)
}

type MockSNSAPI struct {
	mock.Mock
}

func (m *MockSNSAPI) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sns.PublishOutput), args.Error(1)
}

func (m *MockSNSAPI) GetSMSAttributes(ctx context.Context, params *sns.GetSMSAttributesInput, optFns ...func(*sns.Options)) (*sns.GetSMSAttributesOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sns.GetSMSAttributesOutput), args.Error(1)
}

func createProviderConfig() *ProviderConfig {
	return &ProviderConfig{
		Region:            "eu-west-1",
		EmailEnabled:      true,
		FromEmail:         "alerts@crisisscope.org",
		SMSEnabled:        true,
		SMSSenderID:       "CRISIS",
		OriginationNumber: "+15550000000",
	}
}

// ==========================
// SES
// ==========================

func TestSESClient_Send(t *testing.T) {
	api := &MockSESAPI{}
	client := NewSESClientWithAPI(api, "alerts@crisisscope.org")

	api.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *ses.SendEmailInput) bool {
		return aws.ToString(in.Source) == "alerts@crisisscope.org" &&
			assert.ObjectsAreEqual([]string{"ops@crisisscope.org"}, in.Destination.ToAddresses) &&
			assert.ObjectsAreEqual([]string{"gov@region.example"}, in.Destination.CcAddresses) &&
			aws.ToString(in.Message.Subject.Data) == "URGENT" &&
			aws.ToString(in.Message.Body.Text.Data) == "Evacuate"
	})).Return(&ses.SendEmailOutput{MessageId: aws.String("ses-123")}, nil)

	id, err := client.Send(context.Background(), models.EmailMessage{
		To: "ops@crisisscope.org", CC: []string{"gov@region.example"}, Subject: "URGENT", Body: "Evacuate",
	})

	require.NoError(t, err)
	assert.Equal(t, "ses-123", id)
	assert.Equal(t, "ses", client.Provider())
	api.AssertExpectations(t)
}

func TestSESClient_Verify(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		quota   *ses.GetSendQuotaOutput
		err     error
		wantErr string
	}{
		{name: "ok", from: "a@b.org", quota: &ses.GetSendQuotaOutput{Max24HourSend: 200, SentLast24Hours: 3}},
		{name: "no from", from: "", wantErr: "from address"},
		{name: "api error", from: "a@b.org", err: errors.New("InvalidClientTokenId"), wantErr: "InvalidClientTokenId"},
		{name: "sending disabled", from: "a@b.org", quota: &ses.GetSendQuotaOutput{}, wantErr: "disabled"},
		{name: "quota exhausted", from: "a@b.org", quota: &ses.GetSendQuotaOutput{Max24HourSend: 200, SentLast24Hours: 200}, wantErr: "quota exhausted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &MockSESAPI{}
			if tt.quota != nil || tt.err != nil {
				api.On("GetSendQuota", mock.Anything, mock.Anything).Return(tt.quota, tt.err)
			}

			err := NewSESClientWithAPI(api, tt.from).Verify(context.Background())
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// ==========================
// SNS
// ==========================

func TestSNSClient_SendSMS(t *testing.T) {
	api := &MockSNSAPI{}
	client := NewSNSClientWithAPI(api, createProviderConfig())

	api.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		return aws.ToString(in.PhoneNumber) == "+15551234567" &&
			aws.ToString(in.Message) == "Evacuate" &&
			aws.ToString(in.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue) == "Transactional" &&
			aws.ToString(in.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue) == "CRISIS" &&
			aws.ToString(in.MessageAttributes["AWS.MM.SMS.OriginationNumber"].StringValue) == "+15550000000"
	})).Return(&sns.PublishOutput{MessageId: aws.String("sns-1")}, nil)

	id, err := client.SendSMS(context.Background(), "+15551234567", "Evacuate")

	require.NoError(t, err)
	assert.Equal(t, "sns-1", id)
	assert.Equal(t, "+15550000000", client.SenderPhone())
}

func TestSNSClient_OmitsEmptyAttributes(t *testing.T) {
	api := &MockSNSAPI{}
	client := NewSNSClientWithAPI(api, &ProviderConfig{SMSType: "Promotional"})

	api.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		_, hasSender := in.MessageAttributes["AWS.SNS.SMS.SenderID"]
		_, hasOrigin := in.MessageAttributes["AWS.MM.SMS.OriginationNumber"]
		return !hasSender && !hasOrigin &&
			aws.ToString(in.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue) == "Promotional"
	})).Return(nil, errors.New("opted out"))

	_, err := client.SendSMS(context.Background(), "+15551234567", "hi")
	assert.EqualError(t, err, "opted out")
}

func TestSNSClient_Verify(t *testing.T) {
	api := &MockSNSAPI{}
	api.On("GetSMSAttributes", mock.Anything, mock.Anything).Return(nil, errors.New("AccessDenied")).Once()
	api.On("GetSMSAttributes", mock.Anything, mock.Anything).Return(&sns.GetSMSAttributesOutput{}, nil).Once()

	client := NewSNSClientWithAPI(api, createProviderConfig())
	assert.ErrorContains(t, client.Verify(context.Background()), "AccessDenied")
	assert.NoError(t, client.Verify(context.Background()))
}

// ==========================
// Provider registry
// ==========================

type stubSender struct {
	provider string
	phone    string
	err      error
	gate     chan struct{}
}

func (s *stubSender) Send(ctx context.Context, msg models.EmailMessage) (string, error) {
	return "id", nil
}

func (s *stubSender) SendSMS(ctx context.Context, to, body string) (string, error) {
	return "sid", nil
}

func (s *stubSender) Verify(ctx context.Context) error {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.err
}

func (s *stubSender) Provider() string    { return s.provider }
func (s *stubSender) SenderPhone() string { return s.phone }

func TestProviderRegistry_AwaitBlocksUntilVerified(t *testing.T) {
	gate := make(chan struct{})
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	reg, err := NewProviderRegistry(RegistryOptions{
		Email:  &stubSender{provider: "ses"},
		SMS:    &stubSender{phone: "+15550000000", gate: gate},
		Clock:  clock,
		Logger: logger.NewTestLogger(t),
	})
	require.NoError(t, err)

	reg.Start(context.Background())
	reg.Start(context.Background())
	assert.False(t, reg.Ready())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = reg.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(gate)
	status, err := reg.Await(context.Background())
	require.NoError(t, err)
	assert.True(t, reg.Ready())
	assert.True(t, status.EmailConfigured)
	assert.True(t, status.SMSConfigured)
	assert.Equal(t, "+15550000000", status.SenderPhone)
	assert.Equal(t, clock.Now().UTC(), status.VerifiedAt)
}

func TestProviderRegistry_Reverify(t *testing.T) {
	sms := &stubSender{err: errors.New("sns: get sms attributes: AccessDenied")}
	reg, err := NewProviderRegistry(RegistryOptions{
		Email: &stubSender{provider: "smtp", err: errors.New("dial tcp: refused")},
		SMS:   sms,
	})
	require.NoError(t, err)

	status := reg.Reverify(context.Background())
	assert.False(t, status.EmailConfigured)
	assert.Equal(t, "smtp", status.EmailProvider)
	assert.Equal(t, "dial tcp: refused", status.EmailError)
	assert.False(t, status.SMSConfigured)
	assert.Contains(t, status.SMSError, "AccessDenied")

	sms.err = nil
	status = reg.Reverify(context.Background())
	assert.True(t, status.SMSConfigured)
	assert.Empty(t, status.SMSError)
}

func TestProviderRegistry_SMSDisabled(t *testing.T) {
	reg, err := NewProviderRegistry(RegistryOptions{Email: &stubSender{provider: "ses"}})
	require.NoError(t, err)

	status := reg.Reverify(context.Background())
	assert.Nil(t, reg.SMS())
	assert.False(t, status.SMSConfigured)
	assert.Equal(t, ErrSMSDisabled.Error(), status.SMSError)
}

func TestProviderRegistry_VerifyTimeout(t *testing.T) {
	reg, err := NewProviderRegistry(RegistryOptions{
		Email:         &stubSender{provider: "ses", gate: make(chan struct{})},
		VerifyTimeout: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	status := reg.Reverify(context.Background())
	assert.False(t, status.EmailConfigured)
	assert.Contains(t, status.EmailError, "deadline exceeded")
}

func TestNewProviderRegistry_RequiresEmail(t *testing.T) {
	_, err := NewProviderRegistry(RegistryOptions{})
	assert.Error(t, err)
}
