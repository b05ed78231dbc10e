package aws

import (
	"context"
	"fmt"

	"crisis-alerts/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESAPI is the subset of the SES client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
	GetSendQuota(ctx context.Context, params *ses.GetSendQuotaInput, optFns ...func(*ses.Options)) (*ses.GetSendQuotaOutput, error)
}

type SESClient struct {
	client SESAPI
	from   string
}

func NewSESClient(ctx context.Context, region, from string) (*SESClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return NewSESClientWithAPI(ses.NewFromConfig(cfg), from), nil
}

func NewSESClientWithAPI(api SESAPI, from string) *SESClient {
	return &SESClient{client: api, from: from}
}

func (s *SESClient) Provider() string { return "ses" }

// Send delivers one message and returns the SES message id.
func (s *SESClient) Send(ctx context.Context, msg models.EmailMessage) (string, error) {
	from := msg.From
	if from == "" {
		from = s.from
	}

	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
			CcAddresses: msg.CC,
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
			},
		},
		Source: aws.String(from),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.MessageId), nil
}

// Verify checks that the account can send. A zero 24h quota means sending
// is disabled for the account.
func (s *SESClient) Verify(ctx context.Context) error {
	if s.from == "" {
		return fmt.Errorf("ses: from address is not configured")
	}
	out, err := s.client.GetSendQuota(ctx, &ses.GetSendQuotaInput{})
	if err != nil {
		return fmt.Errorf("ses: get send quota: %w", err)
	}
	if out.Max24HourSend <= 0 {
		return fmt.Errorf("ses: sending is disabled for this account")
	}
	if out.SentLast24Hours >= out.Max24HourSend {
		return fmt.Errorf("ses: daily sending quota exhausted (%.0f/%.0f)", out.SentLast24Hours, out.Max24HourSend)
	}
	return nil
}
