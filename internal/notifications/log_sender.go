package notifications

import (
	"context"
	"log/slog"
)

// LogSender writes messages to the log instead of delivering them. It is used when no
// mail host is configured.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	if log == nil {
		log = slog.Default()
	}
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "mail.send",
		"to", msg.To,
		"from", msg.From,
		"subject", msg.Subject,
	)
	s.log.DebugContext(ctx, "mail.body", "to", msg.To, "text", msg.Text)
	return nil
}
