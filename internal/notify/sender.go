package notify

import (
	"context"

	"github.com/google/uuid"

	"calibration-backend/internal/shared/telemetry"
)

// Sender delivers a formatted message to its recipient and returns a
// provider message ID on success.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// LogSender is the dev-mode sender: it logs the message instead of delivering
// it. Useful when no Gmail credentials are configured.
type LogSender struct{}

// Send logs the message and reports success.
func (LogSender) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	telemetry.Info("notify.send", map[string]any{
		"provider":    "log",
		"message_id":  id,
		"to":          msg.To,
		"subject":     msg.Subject,
		"attachments": len(msg.Attachments),
	})
	return id, nil
}

var _ Sender = LogSender{}
