package email

import (
	"context"
	"time"
)

func newEmailContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	// Request contexts end before the send does.
	parent = context.WithoutCancel(parent)
	return context.WithTimeout(parent, timeout)
}
