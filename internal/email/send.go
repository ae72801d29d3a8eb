package email

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/codr1/oche/internal/store"
)

const sendTimeout = 5 * time.Second

// SendToUser looks up the user's address and sends msg in the background.
// Failures are logged and never reported to the caller.
func SendToUser(ctx context.Context, q *store.Queries, client EmailSender, userID int64, msg Message, logger *zerolog.Logger) {
	if client == nil || q == nil {
		return
	}
	if logger == nil {
		logger = zerolog.Ctx(ctx)
	}
	if userID <= 0 {
		logger.Warn().Int64("user_id", userID).Msg("Skipping email with invalid user ID")
		return
	}
	if msg.Subject == "" || msg.Body == "" {
		return
	}

	user, err := q.GetUserByID(ctx, userID)
	if err != nil {
		logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to load user for email")
		return
	}
	recipient := strings.TrimSpace(user.Email)
	if recipient == "" {
		return
	}

	go func() {
		sendCtx, cancel := newEmailContext(ctx, sendTimeout)
		defer cancel()
		if err := client.Send(sendCtx, recipient, msg.Subject, msg.Body); err != nil {
			logger.Error().Err(err).Int64("user_id", userID).Str("subject", msg.Subject).Msg("Failed to send email")
			return
		}
		logger.Debug().Int64("user_id", userID).Str("subject", msg.Subject).Msg("Email sent")
	}()
}
