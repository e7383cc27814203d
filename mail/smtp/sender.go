package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-sasl"
	smtpproto "github.com/emersion/go-smtp"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sininliny/Your-Program-is-Terminated/mail"
)

var _ mail.Sender = (*Sender)(nil)

// Sender implements mail.Sender over a single-attempt SMTP submission,
// direct or through the configured tunnel.
type Sender struct {
	mx     sync.Mutex
	cfg    Config
	closed bool
}

// NewSender creates a new SMTP Sender.
func NewSender(cfg Config) *Sender {
	return &Sender{
		cfg:    cfg,
		closed: false,
	}
}

// Send transmits one email. Connection, tunnel, TLS, authentication and
// transmission failures are each reported as a *DeliveryError; nothing
// is retried.
func (s *Sender) Send(ctx context.Context, email mail.Email) error {
	ctx, span := tracer.Start(ctx, "SMTP.Send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("smtp.host", s.cfg.Host),
		attribute.Int("smtp.port", s.cfg.Port),
		attribute.String("smtp.proxy", string(s.cfg.Proxy.Kind)),
		attribute.String("smtp.subject", email.Subject),
	)

	s.mx.Lock()
	defer s.mx.Unlock()

	if s.closed {
		err := errors.New("sender is closed")
		recordError(span, err)
		return err
	}

	from := email.From.Address
	if from == "" {
		from = s.cfg.Username
	}
	if from == "" {
		err := errors.New("no from address specified")
		recordError(span, err)
		return err
	}
	if email.To.Address == "" {
		err := errors.New("no recipient specified")
		recordError(span, err)
		return err
	}

	start := time.Now()
	if err := s.submit(ctx, from, email); err != nil {
		recordSend("failure", time.Since(start).Seconds())
		recordError(span, err)
		return err
	}

	recordSend("success", time.Since(start).Seconds())
	span.SetStatus(codes.Ok, "")
	return nil
}

// submit runs one full SMTP session. The connection is owned by the
// client and closed on every path.
func (s *Sender) submit(ctx context.Context, from string, email mail.Email) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}

	if s.cfg.Port == smtpsPort {
		conn = tls.Client(conn, s.tlsConfig())
	}

	client := smtpproto.NewClient(conn)
	defer client.Close()

	if err := client.Hello("localhost"); err != nil {
		return &DeliveryError{
			Stage: StageConnect,
			cause: errors.Wrap(err, "SMTP greeting failed"),
		}
	}

	if s.cfg.Port != smtpsPort {
		// Opportunistic upgrade before credentials go on the wire.
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(s.tlsConfig()); err != nil {
				return &DeliveryError{
					Stage: StageTLS,
					cause: errors.Wrap(err, "failed to start TLS"),
				}
			}
		}
	}

	if s.cfg.Username != "" {
		auth := sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
		if err := client.Auth(auth); err != nil {
			return &DeliveryError{
				Stage: StageAuth,
				cause: errors.Wrap(err, "failed to authenticate"),
			}
		}
	}

	if err := client.Mail(from, nil); err != nil {
		return &DeliveryError{
			Stage: StageSend,
			cause: errors.Wrap(err, "failed to set sender"),
		}
	}
	if err := client.Rcpt(email.To.Address, nil); err != nil {
		return &DeliveryError{
			Stage: StageSend,
			cause: errors.Wrapf(err, "failed to set recipient %s", email.To.Address),
		}
	}

	w, err := client.Data()
	if err != nil {
		return &DeliveryError{
			Stage: StageSend,
			cause: errors.Wrap(err, "failed to open data stream"),
		}
	}
	if _, err := w.Write(s.buildMessage(from, email)); err != nil {
		w.Close()
		return &DeliveryError{
			Stage: StageSend,
			cause: errors.Wrap(err, "failed to write message"),
		}
	}
	if err := w.Close(); err != nil {
		return &DeliveryError{
			Stage: StageSend,
			cause: errors.Wrap(err, "failed to finish message"),
		}
	}

	// The message is accepted at this point; a failed QUIT changes
	// nothing for the caller.
	_ = client.Quit()
	return nil
}

func (s *Sender) tlsConfig() *tls.Config {
	return &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: s.cfg.Insecure, // #nosec G402 -- controlled by config, user's responsibility
	}
}

// buildMessage builds the raw email message.
func (s *Sender) buildMessage(from string, email mail.Email) []byte {
	fromAddr := email.From
	if fromAddr.Address == "" {
		fromAddr = mail.Address{Address: from}
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", fromAddr))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", email.To))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", email.Subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))

	for k, v := range email.Headers {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}

	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(email.Body)
	msg.WriteString("\r\n")

	return []byte(msg.String())
}

// Close closes the sender. Further Send calls fail.
func (s *Sender) Close() error {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return nil
}
