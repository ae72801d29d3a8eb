package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rs/zerolog/log"
)

type SESClient struct {
	client *sesv2.Client
	sender string
}

// NewSESClient builds an SESv2 client from static credentials.
func NewSESClient(ctx context.Context, accessKeyID, secretAccessKey, region, sender string) (*SESClient, error) {
	if accessKeyID == "" || secretAccessKey == "" || region == "" {
		return nil, fmt.Errorf("ses credentials and region are required")
	}
	if sender == "" {
		return nil, fmt.Errorf("ses sender is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &SESClient{
		client: sesv2.NewFromConfig(awsCfg),
		sender: sender,
	}, nil
}

func (c *SESClient) Send(ctx context.Context, recipient, subject, body string) error {
	return c.SendFrom(ctx, recipient, subject, body, "")
}

// SendFrom sends from sender, or from the configured address when sender is blank.
func (c *SESClient) SendFrom(ctx context.Context, recipient, subject, body, sender string) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("ses client is not initialized")
	}
	if recipient == "" {
		return fmt.Errorf("recipient is required")
	}
	from := strings.TrimSpace(sender)
	if from == "" {
		from = c.sender
	}

	_, err := c.client.SendEmail(ctx, &sesv2.SendEmailInput{
		Destination: &types.Destination{ToAddresses: []string{recipient}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body:    &types.Body{Text: &types.Content{Data: aws.String(body)}},
			},
		},
		FromEmailAddress: aws.String(from),
	})
	if err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("Failed to send SES email")
		return fmt.Errorf("send ses email: %w", err)
	}
	return nil
}
