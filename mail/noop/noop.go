package noop

import (
	"context"

	"github.com/Sininliny/Your-Program-is-Terminated/mail"
)

var _ mail.Sender = (*Sender)(nil)

// Sender is a no-op mail sender for testing.
type Sender struct {
	closed bool
}

// NewSender creates a new no-op Sender.
func NewSender() *Sender {
	return &Sender{
		closed: false,
	}
}

// Send silently discards the email.
func (n *Sender) Send(ctx context.Context, email mail.Email) error {
	_ = email // Discard
	return nil
}

// Close is a no-op.
func (n *Sender) Close() error {
	n.closed = true
	return nil
}
