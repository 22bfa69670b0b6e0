package mail

import (
	"context"
	"fmt"
)

// RawSender is satisfied by the SES wrapper in internal/common/aws.
type RawSender interface {
	SendRaw(ctx context.Context, from string, to []string, raw []byte) (string, error)
}

// SESMailer composes the MIME message locally and submits it as raw email.
type SESMailer struct {
	ses RawSender
}

func NewSESMailer(ses RawSender) *SESMailer {
	return &SESMailer{ses: ses}
}

func (s *SESMailer) Provider() string { return "ses" }

func (s *SESMailer) Send(ctx context.Context, msg *Message) (string, error) {
	ensureID(msg)
	raw, err := Render(msg)
	if err != nil {
		return "", err
	}
	id, err := s.ses.SendRaw(ctx, msg.From, msg.To, raw)
	if err != nil {
		return "", fmt.Errorf("ses send: %w", err)
	}
	return id, nil
}
