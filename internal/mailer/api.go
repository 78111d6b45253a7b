package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultAPITimeout = 10 * time.Second

type apiRequest struct {
	To        string `json:"to"`
	Subject   string `json:"subject"`
	HTML      string `json:"html"`
	Text      string `json:"text"`
	FromName  string `json:"fromName"`
	FromEmail string `json:"fromEmail"`
}

// APITransport delivers messages through an external HTTP mailer endpoint.
type APITransport struct {
	client   *resty.Client
	endpoint string
}

func NewAPITransport(endpoint string) (*APITransport, error) {
	client := resty.New()
	client.SetTimeout(defaultAPITimeout)
	client.SetRetryCount(0)

	return NewAPITransportWithClient(endpoint, client)
}

func NewAPITransportWithClient(endpoint string, client *resty.Client) (*APITransport, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("mailer api endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid mailer api endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultAPITimeout)
	}
	client.SetRetryCount(0)

	return &APITransport{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (t *APITransport) Name() string { return "api" }

func (t *APITransport) Send(ctx context.Context, msg Message) (*Receipt, error) {
	if t == nil || t.client == nil {
		return nil, fmt.Errorf("transport is not initialized")
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	reqBody := apiRequest{
		To:        msg.To,
		Subject:   msg.Subject,
		HTML:      msg.HTML,
		Text:      msg.Text(),
		FromName:  msg.FromName,
		FromEmail: msg.FromEmail,
	}

	response, err := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		Post(t.endpoint)
	if err != nil {
		return nil, &TransportError{
			Transport: t.Name(),
			Message:   "request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &TransportError{
			Transport: t.Name(),
			Message:   "empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &Receipt{
			MessageID: apiMessageID(response),
			Detail:    responseBody,
		}, nil
	}

	return nil, &TransportError{
		Transport: t.Name(),
		Message:   apiErrorMessage(statusCode, responseBody),
		Transient: isTransientHTTPStatus(statusCode),
	}
}

// Verify probes the endpoint without sending a message.
func (t *APITransport) Verify(ctx context.Context) error {
	if t == nil || t.client == nil {
		return fmt.Errorf("transport is not initialized")
	}

	response, err := t.client.R().SetContext(ctx).Options(t.endpoint)
	if err != nil {
		return &TransportError{Transport: t.Name(), Message: "endpoint unreachable", Transient: true, Cause: err}
	}
	if response.StatusCode() >= http.StatusInternalServerError {
		return &TransportError{
			Transport: t.Name(),
			Message:   fmt.Sprintf("endpoint returned status %d", response.StatusCode()),
			Transient: true,
		}
	}
	return nil
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func apiErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("endpoint returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func apiMessageID(response *resty.Response) string {
	if response == nil {
		return ""
	}

	for _, key := range []string{"X-Message-ID", "X-Message-Id", "X-Request-ID", "X-Request-Id"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
