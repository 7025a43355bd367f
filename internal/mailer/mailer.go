// Package mailer delivers email through the configured provider. The
// orchestrator only depends on the Sender interface; concrete senders
// cover the Gmail API and a plain SMTP fallback.
package mailer

import (
	"context"
	"errors"
)

// ErrNoCredentials reports that a sender has no usable configuration.
// Callers use it to distinguish "not set up" from a transient delivery
// failure.
var ErrNoCredentials = errors.New("mailer: credentials not configured")

// Sender delivers a single email.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Chain tries each sender in order. A sender returning ErrNoCredentials
// or a delivery error passes control to the next one; the last error
// wins when every sender fails.
type Chain []Sender

// Send attempts delivery through each sender in order.
func (c Chain) Send(ctx context.Context, to, subject, body string) error {
	if len(c) == 0 {
		return ErrNoCredentials
	}
	var last error
	for _, s := range c {
		err := s.Send(ctx, to, subject, body)
		if err == nil {
			return nil
		}
		// Keep the most specific error: a real failure beats a
		// missing-credentials result from a later sender.
		if last == nil || errors.Is(last, ErrNoCredentials) {
			last = err
		}
	}
	return last
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, to, subject, body string) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, to, subject, body string) error {
	return f(ctx, to, subject, body)
}
