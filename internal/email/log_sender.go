package email

import (
	"context"
	"log/slog"
)

// LogSender logs messages instead of delivering them. It writes recipients
// and bodies (including codes) to the log, so it is only meant for
// development.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, to, subject, htmlBody string) error {
	s.logger.Info("send email",
		"recipient", to,
		"subject", subject,
		"body", htmlBody,
	)
	return nil
}
