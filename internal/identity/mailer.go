package identity

import (
	"alcyxob/wellness-portal/internal/logger"
	"context"
)

// Mailer delivers the confirmation token issued at registration.
type Mailer interface {
	SendConfirmation(ctx context.Context, email, token string) error
}

type logMailer struct {
	log *logger.Logger
}

// NewLogMailer writes confirmation tokens to the debug log. Development only.
func NewLogMailer(log *logger.Logger) Mailer {
	return &logMailer{log: log.With("component", "LogMailer")}
}

func (m *logMailer) SendConfirmation(_ context.Context, email, token string) error {
	m.log.Debug("confirmation token", "email", email, "token", token)
	return nil
}
