package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
)

func TestAPITransportSendSuccess(t *testing.T) {
	t.Parallel()

	var gotBody apiRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}

		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}

		w.Header().Set("X-Message-ID", "api-msg-1")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	transport, err := NewAPITransport(server.URL)
	if err != nil {
		t.Fatalf("NewAPITransport() error = %v", err)
	}

	msg := testMessage()
	receipt, err := transport.Send(context.Background(), msg)
	if err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}

	if receipt.MessageID != "api-msg-1" {
		t.Fatalf("MessageID = %q, want %q", receipt.MessageID, "api-msg-1")
	}

	if gotBody.To != msg.To {
		t.Fatalf("request.to = %q, want %q", gotBody.To, msg.To)
	}
	if gotBody.Subject != msg.Subject {
		t.Fatalf("request.subject = %q, want %q", gotBody.Subject, msg.Subject)
	}
	if gotBody.HTML != msg.HTML {
		t.Fatalf("request.html = %q, want %q", gotBody.HTML, msg.HTML)
	}
	if gotBody.Text != "hi" {
		t.Fatalf("request.text = %q, want %q", gotBody.Text, "hi")
	}
}

func TestAPITransportStatusClassification(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		statusCode    int
		wantTransient bool
	}{
		{name: "too many requests is transient", statusCode: http.StatusTooManyRequests, wantTransient: true},
		{name: "bad request is permanent", statusCode: http.StatusBadRequest, wantTransient: false},
		{name: "internal server error is transient", statusCode: http.StatusInternalServerError, wantTransient: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
				_, _ = w.Write([]byte("mailer failed"))
			}))
			defer server.Close()

			transport, err := NewAPITransport(server.URL)
			if err != nil {
				t.Fatalf("NewAPITransport() error = %v", err)
			}

			_, err = transport.Send(context.Background(), testMessage())
			if err == nil {
				t.Fatal("expected error")
			}

			if got := IsTransient(err); got != tc.wantTransient {
				t.Fatalf("IsTransient() = %v, want %v", got, tc.wantTransient)
			}

			var transportErr *TransportError
			if !errors.As(err, &transportErr) {
				t.Fatalf("expected TransportError, got %T", err)
			}
			if transportErr.Transport != "api" {
				t.Fatalf("Transport = %q, want %q", transportErr.Transport, "api")
			}
		})
	}
}

func TestAPITransportTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := resty.New()
	client.SetTimeout(30 * time.Millisecond)

	transport, err := NewAPITransportWithClient(server.URL, client)
	if err != nil {
		t.Fatalf("NewAPITransportWithClient() error = %v", err)
	}

	_, err = transport.Send(context.Background(), testMessage())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsTransient(err) {
		t.Fatalf("timeout should be transient, got %v", err)
	}
}

func TestNewAPITransportValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewAPITransport(""); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
	if _, err := NewAPITransport("::not-a-url"); err == nil {
		t.Fatal("expected error for invalid endpoint")
	}
}
