package email

import (
	"context"
	"log/slog"
	"strings"
)

// LogSender writes messages to the log instead of sending them.
type LogSender struct {
	logger *slog.Logger
}

var _ Sender = (*LogSender)(nil)

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger.With(slog.String("component", "log_email_sender"))}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	to := make([]string, 0, len(msg.To))
	for _, a := range msg.To {
		to = append(to, a.Address)
	}
	s.logger.Info("email",
		slog.String("to", strings.Join(to, ", ")),
		slog.String("subject", msg.Subject),
		slog.Int("text_bytes", len(msg.Text)))
	return nil
}
