package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"budgetapi/internal/config"
	"budgetapi/internal/logger"
)

// SMTPMailer delivers mail through an SMTP relay.
type SMTPMailer struct {
	cfg config.MailConfig
}

// NewSMTPMailer creates an SMTPMailer for the given settings.
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send implements Mailer.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.FromFormat(m.cfg.FromName, m.cfg.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{mail.WithPort(m.cfg.Port)}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	if m.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// LogMailer only logs outgoing mail. It is used when SMTP is not configured.
type LogMailer struct {
	log *zap.SugaredLogger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer() *LogMailer {
	return &LogMailer{log: logger.Named("mail")}
}

// Send implements Mailer.
func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	m.log.Infow("mail not configured, dropping message",
		"to", to,
		"subject", subject,
		"length", len(body),
	)
	return nil
}

// OutboundMailer picks the mailer for the API and scheduler processes: the
// queue when AMQP is configured and reachable, SMTP when mail is configured,
// otherwise LogMailer. A queue mailer falls back to SMTP, when configured, for
// messages it cannot publish. The returned close function is never nil.
func OutboundMailer(cfg *config.Config) (Mailer, func() error) {
	log := logger.Named("notify")
	noop := func() error { return nil }

	if cfg.AMQP.URL != "" {
		queue, err := NewQueue(cfg.AMQP)
		if err == nil {
			log.Infow("mail is queued for the notifier", "queue", cfg.AMQP.Queue)
			mailer := NewQueueMailer(queue)
			if cfg.Mail.Enabled() {
				mailer.WithFallback(NewSMTPMailer(cfg.Mail))
			}
			return mailer, queue.Close
		}
		log.Warnw("failed to connect to AMQP, sending mail inline", "error", err)
	}
	if cfg.Mail.Enabled() {
		log.Infow("mail is sent over SMTP", "host", cfg.Mail.Host)
		return NewSMTPMailer(cfg.Mail), noop
	}
	log.Info("mail is not configured, messages are only logged")
	return NewLogMailer(), noop
}
