package auth

import (
	"context"

	"pocketplan/internal/log"
)

// Message is an outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers account emails.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger *log.Logger
}

func NewLogMailer(logger *log.Logger) *LogMailer {
	if logger == nil {
		logger = log.Discard()
	}
	return &LogMailer{logger: logger.WithComponent(log.ComponentMailer)}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.InfoContext(ctx, "Mail queued", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}
