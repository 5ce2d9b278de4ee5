package external

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"ridecast/internal/types"
)

// SMTPClientConfig holds the configuration for creating an SMTPClient.
type SMTPClientConfig struct {
	Host        string
	Port        int
	Username    string
	Password    types.SecretString
	FromAddress string
	FromName    string
	UseStartTLS bool
	DialTimeout time.Duration
	Logger      *slog.Logger
}

// SMTPClient implements EmailProvider over plain SMTP with STARTTLS upgrade.
// Each Send opens a fresh connection; recommendation volume is one message
// per rider per day, so connection reuse buys nothing.
type SMTPClient struct {
	cfg    SMTPClientConfig
	logger *slog.Logger
}

// NewSMTPClient creates a new SMTPClient.
func NewSMTPClient(cfg SMTPClientConfig) *SMTPClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &SMTPClient{cfg: cfg, logger: logger}
}

// Send transmits a multipart/alternative message (plaintext plus HTML) to the
// recipient. The context deadline, when present, bounds the entire SMTP
// conversation via the connection deadline.
func (s *SMTPClient) Send(ctx context.Context, input types.SendInput) error {
	msg, err := s.buildMessage(input)
	if err != nil {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to build email message",
			err,
		)
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	dialer := &net.Dialer{Timeout: s.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return s.deliveryError("failed to connect to SMTP server", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return s.deliveryError("SMTP handshake failed", err)
	}
	defer client.Close()

	if s.cfg.UseStartTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return s.deliveryError("SMTP server does not support STARTTLS", nil)
		}
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return s.deliveryError("STARTTLS negotiation failed", err)
		}
	}

	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password.Unmask(), s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return s.deliveryError("SMTP authentication failed", err)
		}
	}

	if err := client.Mail(s.cfg.FromAddress); err != nil {
		return s.deliveryError("SMTP MAIL FROM rejected", err)
	}
	if err := client.Rcpt(input.To); err != nil {
		return s.deliveryError("SMTP RCPT TO rejected", err)
	}

	w, err := client.Data()
	if err != nil {
		return s.deliveryError("SMTP DATA rejected", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return s.deliveryError("failed to transmit message body", err)
	}
	if err := w.Close(); err != nil {
		return s.deliveryError("SMTP server rejected message", err)
	}

	if err := client.Quit(); err != nil {
		// Message already accepted; a failed QUIT is not a delivery failure.
		s.logger.Debug("SMTP QUIT failed after accepted delivery", "error", err)
	}

	s.logger.Debug("email delivered", "host", s.cfg.Host)
	return nil
}

// buildMessage assembles an RFC 5322 message with a multipart/alternative
// body: plaintext first, HTML last (clients prefer the final part).
func (s *SMTPClient) buildMessage(input types.SendInput) ([]byte, error) {
	var buf bytes.Buffer

	from := mail.Address{Name: s.cfg.FromName, Address: s.cfg.FromAddress}
	to := mail.Address{Name: input.ToName, Address: input.To}

	alt := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", to.String())
	// Q-encoding keeps non-ASCII subjects (the bike emoji) intact.
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", input.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n", alt.Boundary())
	fmt.Fprintf(&buf, "\r\n")

	textPart, err := alt.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := textPart.Write([]byte(input.BodyText)); err != nil {
		return nil, err
	}

	htmlPart, err := alt.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/html; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := htmlPart.Write([]byte(input.BodyHTML)); err != nil {
		return nil, err
	}

	if err := alt.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (s *SMTPClient) deliveryError(message string, err error) error {
	return types.NewAppError(types.ErrCodeUpstreamEmail, message, err)
}

// Compile-time assertion that SMTPClient satisfies EmailProvider.
var _ EmailProvider = (*SMTPClient)(nil)
