package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSAPI is the subset of the SNS client used here.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	GetSMSAttributes(ctx context.Context, params *sns.GetSMSAttributesInput, optFns ...func(*sns.Options)) (*sns.GetSMSAttributesOutput, error)
}

type SNSClient struct {
	client            SNSAPI
	senderID          string
	originationNumber string
	smsType           string
}

func NewSNSClient(ctx context.Context, cfg *ProviderConfig) (*SNSClient, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, err
	}
	return NewSNSClientWithAPI(sns.NewFromConfig(awsCfg), cfg), nil
}

func NewSNSClientWithAPI(api SNSAPI, cfg *ProviderConfig) *SNSClient {
	smsType := cfg.SMSType
	if smsType == "" {
		smsType = "Transactional"
	}
	return &SNSClient{
		client:            api,
		senderID:          cfg.SMSSenderID,
		originationNumber: cfg.OriginationNumber,
		smsType:           smsType,
	}
}

// SenderPhone is the origination number messages are sent from, if any.
func (s *SNSClient) SenderPhone() string { return s.originationNumber }

// SendSMS publishes a message directly to a phone number and returns the
// SNS message id.
func (s *SNSClient) SendSMS(ctx context.Context, to, body string) (string, error) {
	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": stringAttr(s.smsType),
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = stringAttr(s.senderID)
	}
	if s.originationNumber != "" {
		attrs["AWS.MM.SMS.OriginationNumber"] = stringAttr(s.originationNumber)
	}

	out, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(to),
		Message:           aws.String(body),
		MessageAttributes: attrs,
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.MessageId), nil
}

// Verify reads the account SMS attributes, which fails without valid
// credentials or SMS permissions.
func (s *SNSClient) Verify(ctx context.Context) error {
	if _, err := s.client.GetSMSAttributes(ctx, &sns.GetSMSAttributesInput{
		Attributes: []string{"DefaultSMSType", "MonthlySpendLimit"},
	}); err != nil {
		return fmt.Errorf("sns: get sms attributes: %w", err)
	}
	return nil
}

func stringAttr(v string) types.MessageAttributeValue {
	return types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
}
