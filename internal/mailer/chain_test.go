package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeTransport struct {
	name     string
	sendFn   func(ctx context.Context, msg Message) (*Receipt, error)
	verifyFn func(ctx context.Context) error
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Send(ctx context.Context, msg Message) (*Receipt, error) {
	if f.sendFn != nil {
		return f.sendFn(ctx, msg)
	}
	return &Receipt{MessageID: "fake-id"}, nil
}

func (f *fakeTransport) Verify(ctx context.Context) error {
	if f.verifyFn != nil {
		return f.verifyFn(ctx)
	}
	return nil
}

func testMessage() Message {
	return Message{
		To:        "a@x.com",
		Subject:   "Hi",
		HTML:      "<p>hi</p>",
		FromName:  "No Reply",
		FromEmail: "noreply@localhost",
	}
}

func TestChainFirstTransportSucceeds(t *testing.T) {
	t.Parallel()

	second := &fakeTransport{
		name: "b",
		sendFn: func(ctx context.Context, msg Message) (*Receipt, error) {
			t.Fatal("second transport should not be attempted")
			return nil, nil
		},
	}

	chain, err := NewChain([]Transport{
		&fakeTransport{name: "a"},
		second,
	}, time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewChain() error = %v", err)
	}

	outcome, err := chain.Send(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Send() unexpected error = %v", err)
	}
	if outcome.Method != "a" {
		t.Fatalf("Method = %q, want %q", outcome.Method, "a")
	}
	if outcome.MessageID != "fake-id" {
		t.Fatalf("MessageID = %q, want %q", outcome.MessageID, "fake-id")
	}
}

func TestChainFallsBackToNextTransport(t *testing.T) {
	t.Parallel()

	chain, err := NewChain([]Transport{
		&fakeTransport{
			name: "a",
			sendFn: func(ctx context.Context, msg Message) (*Receipt, error) {
				return nil, &TransportError{Transport: "a", Message: "connection refused", Transient: true}
			},
		},
		&fakeTransport{name: "b"},
	}, time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewChain() error = %v", err)
	}

	outcome, err := chain.Send(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Send() unexpected error = %v", err)
	}
	if outcome.Method != "b" {
		t.Fatalf("Method = %q, want %q", outcome.Method, "b")
	}
}

func TestChainExhaustionAggregatesErrors(t *testing.T) {
	t.Parallel()

	chain, err := NewChain([]Transport{
		&fakeTransport{
			name: "a",
			sendFn: func(ctx context.Context, msg Message) (*Receipt, error) {
				return nil, &TransportError{Transport: "a", Message: "dial failed"}
			},
		},
		&fakeTransport{
			name: "b",
			sendFn: func(ctx context.Context, msg Message) (*Receipt, error) {
				return nil, &TransportError{Transport: "b", Message: "rejected"}
			},
		},
	}, time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewChain() error = %v", err)
	}

	_, err = chain.Send(context.Background(), testMessage())
	if err == nil {
		t.Fatal("expected error after exhaustion")
	}

	var chainErr *ChainError
	if !errors.As(err, &chainErr) {
		t.Fatalf("expected ChainError, got %T", err)
	}
	if len(chainErr.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(chainErr.Attempts))
	}
	if chainErr.LastTransport() != "b" {
		t.Fatalf("LastTransport() = %q, want %q", chainErr.LastTransport(), "b")
	}
	if !strings.Contains(err.Error(), "dial failed") || !strings.Contains(err.Error(), "rejected") {
		t.Fatalf("error %q should carry every attempt's error", err.Error())
	}
}

func TestChainAttemptTimeoutMovesOn(t *testing.T) {
	t.Parallel()

	chain, err := NewChain([]Transport{
		&fakeTransport{
			name: "slow",
			sendFn: func(ctx context.Context, msg Message) (*Receipt, error) {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(5 * time.Second):
					return &Receipt{}, nil
				}
			},
		},
		&fakeTransport{name: "fast"},
	}, 20*time.Millisecond, zap.NewNop())
	if err != nil {
		t.Fatalf("NewChain() error = %v", err)
	}

	outcome, err := chain.Send(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Send() unexpected error = %v", err)
	}
	if outcome.Method != "fast" {
		t.Fatalf("Method = %q, want %q", outcome.Method, "fast")
	}
}

func TestChainRejectsInvalidMessage(t *testing.T) {
	t.Parallel()

	attempted := false
	chain, err := NewChain([]Transport{
		&fakeTransport{
			name: "a",
			sendFn: func(ctx context.Context, msg Message) (*Receipt, error) {
				attempted = true
				return &Receipt{}, nil
			},
		},
	}, time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewChain() error = %v", err)
	}

	_, err = chain.Send(context.Background(), Message{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if attempted {
		t.Fatal("no transport should be attempted for an invalid message")
	}
}

func TestNewChainRequiresTransports(t *testing.T) {
	t.Parallel()

	if _, err := NewChain(nil, time.Second, zap.NewNop()); err == nil {
		t.Fatal("expected error for empty transport list")
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: true},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "transient transport error", err: &TransportError{Transient: true}, want: true},
		{name: "permanent transport error", err: &TransportError{Transient: false}, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := IsTransient(tt.err); got != tt.want {
				t.Fatalf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}
