package mail

import (
	"context"
	"log/slog"
)

// LogSender writes messages to the log instead of sending them. It is used
// when no SMTP relay is configured, so the verification link can still be
// copied out of the server log during development.
type LogSender struct {
	logger *slog.Logger
}

var _ Sender = (*LogSender)(nil)

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("mail not sent, smtp is not configured",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Text),
	)
	return nil
}
