package mailer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const DefaultSendmailPath = "/usr/sbin/sendmail"

// SendmailTransport pipes the composed message to a local MTA binary.
type SendmailTransport struct {
	path string
}

func NewSendmailTransport(path string) (*SendmailTransport, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		trimmed = DefaultSendmailPath
	}
	return &SendmailTransport{path: trimmed}, nil
}

func (t *SendmailTransport) Name() string { return "sendmail" }

func (t *SendmailTransport) Send(ctx context.Context, msg Message) (*Receipt, error) {
	if t == nil {
		return nil, fmt.Errorf("transport is not initialized")
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	messageID := newMessageID()

	// -t reads recipients from the message headers, -i keeps a lone dot
	// from terminating input early.
	cmd := exec.CommandContext(ctx, t.path, "-t", "-i")
	cmd.Stdin = bytes.NewReader(composeMIME(msg, messageID))

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, &TransportError{
			Transport: t.Name(),
			Message:   strings.TrimSpace(string(output)),
			Transient: ctx.Err() != nil,
			Cause:     err,
		}
	}

	return &Receipt{
		MessageID: messageID,
		Detail:    strings.TrimSpace(string(output)),
	}, nil
}

// Verify checks that the MTA binary exists on this host.
func (t *SendmailTransport) Verify(ctx context.Context) error {
	if _, err := exec.LookPath(t.path); err != nil {
		return &TransportError{Transport: t.Name(), Message: "sendmail binary not found", Cause: err}
	}
	return nil
}
