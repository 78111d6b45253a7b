package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

const defaultSESRegion = "us-east-1"

// SESTransport delivers messages through AWS SES using the SDK v2.
type SESTransport struct {
	client *sesv2.Client
}

func NewSESTransport(ctx context.Context, accessKey, secretKey, region string) (*SESTransport, error) {
	if strings.TrimSpace(accessKey) == "" || strings.TrimSpace(secretKey) == "" {
		return nil, fmt.Errorf("ses credentials are required")
	}
	if strings.TrimSpace(region) == "" {
		region = defaultSESRegion
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize aws config: %w", err)
	}

	return &SESTransport{client: sesv2.NewFromConfig(cfg)}, nil
}

func (t *SESTransport) Name() string { return "ses" }

func (t *SESTransport) Send(ctx context.Context, msg Message) (*Receipt, error) {
	if t == nil || t.client == nil {
		return nil, fmt.Errorf("transport is not initialized")
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From()),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
					Text: &types.Content{Data: aws.String(msg.Text()), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	result, err := t.client.SendEmail(ctx, input)
	if err != nil {
		return nil, &TransportError{
			Transport: t.Name(),
			Message:   "send failed",
			Transient: true,
			Cause:     err,
		}
	}

	messageID := ""
	if result.MessageId != nil {
		messageID = *result.MessageId
	}

	return &Receipt{MessageID: messageID}, nil
}

// Verify checks that the configured credentials can reach the SES account.
func (t *SESTransport) Verify(ctx context.Context) error {
	if t == nil || t.client == nil {
		return fmt.Errorf("transport is not initialized")
	}
	if _, err := t.client.GetAccount(ctx, &sesv2.GetAccountInput{}); err != nil {
		return &TransportError{Transport: t.Name(), Message: "account check failed", Transient: true, Cause: err}
	}
	return nil
}
