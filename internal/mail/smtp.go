package mail

import (
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"

	"privacy-consent/internal/common/config"
)

// SMTPMailer delivers through an authenticated SMTP submission server,
// Gmail with an app password by default.
type SMTPMailer struct {
	client *gomail.Client
	send   func(ctx context.Context, m *gomail.Msg) error
}

func NewSMTPMailer(cfg config.SMTPConfig, timeout time.Duration) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}

	policy := gomail.TLSOpportunistic
	if cfg.UseTLS {
		policy = gomail.TLSMandatory
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(policy),
	}
	if timeout > 0 {
		opts = append(opts, gomail.WithTimeout(timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}

	s := &SMTPMailer{client: client}
	s.send = func(ctx context.Context, m *gomail.Msg) error {
		return s.client.DialAndSendWithContext(ctx, m)
	}
	return s, nil
}

func (s *SMTPMailer) Provider() string { return "smtp" }

func (s *SMTPMailer) Send(ctx context.Context, msg *Message) (string, error) {
	ensureID(msg)
	m, err := Build(msg)
	if err != nil {
		return "", err
	}
	if err := s.send(ctx, m); err != nil {
		return "", err
	}
	return msg.MessageID, nil
}
