package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/buzzflixai/buzzflix-droplet/internal/types"
)

// Sender delivers rendered emails over SMTP with implicit TLS (port 465).
type Sender struct {
	host        string
	port        int
	username    string
	password    types.SecretString
	fromAddress string
	fromName    string
}

// SenderConfig holds the configuration for creating a Sender.
type SenderConfig struct {
	Host        string
	Port        int
	Username    string
	Password    types.SecretString
	FromAddress string
	FromName    string
}

// NewSender creates a new SMTP sender.
func NewSender(cfg SenderConfig) *Sender {
	return &Sender{
		host:        cfg.Host,
		port:        cfg.Port,
		username:    cfg.Username,
		password:    cfg.Password,
		fromAddress: cfg.FromAddress,
		fromName:    cfg.FromName,
	}
}

// Send delivers one rendered email to a single recipient. The connection is
// opened, used, and closed per send; notification volume does not justify
// connection pooling.
func (s *Sender) Send(ctx context.Context, to string, rendered *RenderedEmail) error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamEmail, fmt.Sprintf("connecting to smtp host %s", s.host), err)
	}

	conn := tls.Client(rawConn, &tls.Config{ServerName: s.host})
	if err := conn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return types.NewAppError(types.ErrCodeUpstreamEmail, "tls handshake failed", err)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return types.NewAppError(types.ErrCodeUpstreamEmail, "starting smtp session", err)
	}
	defer client.Close()

	if s.username != "" {
		auth := smtp.PlainAuth("", s.username, s.password.Unmask(), s.host)
		if err := client.Auth(auth); err != nil {
			return types.NewAppError(types.ErrCodeUpstreamEmail, "smtp authentication failed", err)
		}
	}

	if err := client.Mail(s.fromAddress); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamEmail, "smtp MAIL FROM rejected", err)
	}
	if err := client.Rcpt(to); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamEmail, fmt.Sprintf("smtp RCPT TO rejected for %s", to), err)
	}

	w, err := client.Data()
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamEmail, "smtp DATA rejected", err)
	}
	if _, err := w.Write(s.buildMessage(to, rendered)); err != nil {
		w.Close()
		return types.NewAppError(types.ErrCodeUpstreamEmail, "writing message body", err)
	}
	if err := w.Close(); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamEmail, "finalizing message", err)
	}

	return client.Quit()
}

// buildMessage assembles the RFC 5322 message with an HTML body.
func (s *Sender) buildMessage(to string, rendered *RenderedEmail) []byte {
	from := s.fromAddress
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.fromName), s.fromAddress)
	}

	headers := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"utf-8\"\r\n\r\n",
		from,
		to,
		mime.QEncoding.Encode("utf-8", rendered.Subject),
	)
	return append([]byte(headers), []byte(rendered.BodyHTML)...)
}
