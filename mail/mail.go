// Package mail defines the delivery abstraction for termination
// reports.
package mail

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Sender delivers one notification email per call.
type Sender interface {
	Send(ctx context.Context, email Email) error
	io.Closer
}

// Email represents a single plain-text notification message.
type Email struct {
	// Envelope
	From    Address
	To      Address
	Subject string

	// Headers
	Headers map[string]string

	// Body
	Body string
}

// Address represents an email address.
type Address struct {
	Name    string // "Termination Monitor"
	Address string // "monitor@example.com"
}

// String formats the address for a message header.
func (a Address) String() string {
	if a.Name != "" {
		// Escape quotes in name
		escapedName := strings.ReplaceAll(a.Name, "\"", "\\\"")
		return fmt.Sprintf("%s <%s>", escapedName, a.Address)
	}
	return a.Address
}
