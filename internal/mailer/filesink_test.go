package mailer

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestFileSinkTransportSendAndList(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	transport, err := NewFileSinkTransport(dir)
	if err != nil {
		t.Fatalf("NewFileSinkTransport() error = %v", err)
	}

	base := time.Unix(1_700_000_000, 0)
	transport.now = func() time.Time { return base }

	receipt, err := transport.Send(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Send() unexpected error = %v", err)
	}
	if receipt.MessageID == "" {
		t.Fatal("receipt should carry a message id")
	}

	transport.now = func() time.Time { return base.Add(time.Second) }
	second := testMessage()
	second.To = "b@x.com"
	if _, err := transport.Send(context.Background(), second); err != nil {
		t.Fatalf("Send() unexpected error = %v", err)
	}

	entries, err := ListSink(dir)
	if err != nil {
		t.Fatalf("ListSink() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	for _, entry := range entries {
		if entry.Subject != "Hi" {
			t.Fatalf("Subject = %q, want %q", entry.Subject, "Hi")
		}
	}

	if err := transport.Verify(context.Background()); err != nil {
		t.Fatalf("Verify() unexpected error = %v", err)
	}
}

func TestListSinkMissingDirectory(t *testing.T) {
	t.Parallel()

	entries, err := ListSink(t.TempDir() + "/does-not-exist")
	if err != nil {
		t.Fatalf("ListSink() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %d, want 0", len(entries))
	}
}

func TestComposeMIMEContainsBothParts(t *testing.T) {
	t.Parallel()

	payload := string(composeMIME(testMessage(), "id-1@mailburst"))

	for _, want := range []string{
		"From: No Reply <noreply@localhost>",
		"To: a@x.com",
		"Subject: Hi",
		"Message-ID: <id-1@mailburst>",
		"Content-Type: text/plain; charset=UTF-8",
		"Content-Type: text/html; charset=UTF-8",
		"<p>hi</p>",
	} {
		if !strings.Contains(payload, want) {
			t.Fatalf("payload missing %q:\n%s", want, payload)
		}
	}
}
