package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

// SMTPTransport relays messages through a configured SMTP server.
type SMTPTransport struct {
	host     string
	port     int
	username string
	password string
}

func NewSMTPTransport(host string, port int, username, password string) (*SMTPTransport, error) {
	trimmedHost := strings.TrimSpace(host)
	if trimmedHost == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid smtp port %d", port)
	}

	return &SMTPTransport{
		host:     trimmedHost,
		port:     port,
		username: strings.TrimSpace(username),
		password: password,
	}, nil
}

func (t *SMTPTransport) Name() string { return "smtp" }

func (t *SMTPTransport) Send(ctx context.Context, msg Message) (*Receipt, error) {
	if t == nil {
		return nil, fmt.Errorf("transport is not initialized")
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	client, err := t.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close() //nolint:errcheck // best-effort close after Quit

	if t.username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", t.username, t.password, t.host)
			if err := client.Auth(auth); err != nil {
				return nil, &TransportError{Transport: t.Name(), Message: "auth failed", Cause: err}
			}
		}
	}

	messageID := newMessageID()
	if err := t.transmit(client, msg, messageID); err != nil {
		return nil, err
	}

	if err := client.Quit(); err != nil {
		return nil, &TransportError{Transport: t.Name(), Message: "quit failed", Transient: true, Cause: err}
	}

	return &Receipt{MessageID: messageID}, nil
}

func (t *SMTPTransport) transmit(client *smtp.Client, msg Message, messageID string) error {
	if err := client.Mail(msg.FromEmail); err != nil {
		return &TransportError{Transport: t.Name(), Message: "MAIL FROM rejected", Cause: err}
	}
	if err := client.Rcpt(msg.To); err != nil {
		return &TransportError{Transport: t.Name(), Message: "RCPT TO rejected", Cause: err}
	}

	writer, err := client.Data()
	if err != nil {
		return &TransportError{Transport: t.Name(), Message: "DATA rejected", Transient: true, Cause: err}
	}
	if _, err := writer.Write(composeMIME(msg, messageID)); err != nil {
		_ = writer.Close()
		return &TransportError{Transport: t.Name(), Message: "payload write failed", Transient: true, Cause: err}
	}
	if err := writer.Close(); err != nil {
		return &TransportError{Transport: t.Name(), Message: "message not accepted", Cause: err}
	}

	return nil
}

func (t *SMTPTransport) connect(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(t.host, strconv.Itoa(t.port))

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &TransportError{Transport: t.Name(), Message: "connection failed", Transient: true, Cause: err}
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, t.host)
	if err != nil {
		_ = conn.Close()
		return nil, &TransportError{Transport: t.Name(), Message: "handshake failed", Transient: true, Cause: err}
	}

	// Local relays commonly present self-signed certificates; delivery
	// must not fail on certificate verification.
	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsCfg := &tls.Config{ServerName: t.host, InsecureSkipVerify: true} //nolint:gosec
		if err := client.StartTLS(tlsCfg); err != nil {
			_ = client.Close()
			return nil, &TransportError{Transport: t.Name(), Message: "starttls failed", Transient: true, Cause: err}
		}
	}

	return client, nil
}

// Verify opens and closes a connection to the relay.
func (t *SMTPTransport) Verify(ctx context.Context) error {
	client, err := t.connect(ctx)
	if err != nil {
		return err
	}
	return client.Quit()
}
