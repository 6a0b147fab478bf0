package notifications

import (
	"context"
	"errors"
)

// Message is a rendered email ready for delivery.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ObservedSender reports the outcome of every send as ok, circuit_open or error.
type ObservedSender struct {
	inner   Sender
	observe func(result string)
}

func NewObservedSender(inner Sender, observe func(result string)) *ObservedSender {
	return &ObservedSender{inner: inner, observe: observe}
}

func (s *ObservedSender) Send(ctx context.Context, msg Message) error {
	err := s.inner.Send(ctx, msg)
	switch {
	case err == nil:
		s.observe("ok")
	case errors.Is(err, ErrCircuitOpen):
		s.observe("circuit_open")
	default:
		s.observe("error")
	}
	return err
}
