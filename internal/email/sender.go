// Package email sends plain-text league mail through Amazon SES.
package email

import "context"

// EmailSender is satisfied by SESClient and by test fakes.
type EmailSender interface {
	Send(ctx context.Context, recipient, subject, body string) error
	SendFrom(ctx context.Context, recipient, subject, body, sender string) error
}
