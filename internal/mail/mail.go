// Package mail composes MIME messages with go-mail and hands them to SMTP or SES.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"

	"privacy-consent/internal/common/config"
)

type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

type Message struct {
	FromName    string
	From        string
	To          []string
	Subject     string
	HTML        string
	Headers     map[string]string
	Attachments []Attachment
	MessageID   string // generated by Build when empty
	Date        time.Time
}

// Mailer sends one message. Implementations make exactly one delivery
// attempt per call.
type Mailer interface {
	Send(ctx context.Context, msg *Message) (messageID string, err error)
	Provider() string
}

// Build renders msg into a go-mail message.
func Build(msg *Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()

	if msg.FromName != "" {
		if err := m.FromFormat(msg.FromName, msg.From); err != nil {
			return nil, fmt.Errorf("from: %w", err)
		}
	} else if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}

	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextHTML, msg.HTML)

	if msg.MessageID != "" {
		m.SetMessageIDWithValue(msg.MessageID)
	} else {
		m.SetMessageID()
	}
	if msg.Date.IsZero() {
		m.SetDate()
	} else {
		m.SetDateWithValue(msg.Date)
	}

	for k, v := range msg.Headers {
		m.SetGenHeader(gomail.Header(k), v)
	}

	for _, a := range msg.Attachments {
		ct := a.ContentType
		if ct == "" {
			ct = string(gomail.TypeAppOctetStream)
		}
		if err := m.AttachReader(a.Name, bytes.NewReader(a.Data), gomail.WithFileContentType(gomail.ContentType(ct))); err != nil {
			return nil, fmt.Errorf("attach %s: %w", a.Name, err)
		}
	}

	return m, nil
}

// Render returns the raw RFC 5322 bytes of msg.
func Render(msg *Message) ([]byte, error) {
	m, err := Build(msg)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write message: %w", err)
	}
	return buf.Bytes(), nil
}

// ensureID assigns a Message-ID so both transports can report it.
func ensureID(msg *Message) {
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString() + "@privacy-consent"
	}
}

// New selects the mailer named by cfg.Provider. ses may be nil unless the
// provider is "ses".
func New(cfg config.MailConfig, timeout time.Duration, ses RawSender) (Mailer, error) {
	switch cfg.Provider {
	case "", "smtp":
		return NewSMTPMailer(cfg.SMTP, timeout)
	case "ses":
		if ses == nil {
			return nil, fmt.Errorf("ses provider selected without an SES client")
		}
		return NewSESMailer(ses), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}
