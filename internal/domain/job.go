package domain

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
)

// Status represents the lifecycle state of a bulk send job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusCompleted:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition can occur.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// Request limits.
const (
	MaxRecipients    = 1000
	MaxSubjectLength = 500
	MaxMessageLength = 100000
)

// Defaults applied when the caller omits sender identity.
const (
	DefaultFromName  = "No Reply"
	DefaultFromEmail = "noreply@localhost"
)

var (
	addressPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	eventHandler   = regexp.MustCompile(`(?i)\bon\w+\s*=`)
)

// ValidEmailAddress reports whether s is a syntactically usable address.
func ValidEmailAddress(s string) bool {
	trimmed := strings.TrimSpace(s)
	if !addressPattern.MatchString(trimmed) {
		return false
	}
	_, err := mail.ParseAddress(trimmed)
	return err == nil
}

// ValidSenderAddress reports whether s is usable as an originator address.
// Unlike recipients, sender domains without a dot are accepted so the
// default noreply@localhost identity works out of the box.
func ValidSenderAddress(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || strings.ContainsAny(trimmed, " \t") {
		return false
	}
	_, err := mail.ParseAddress(trimmed)
	return err == nil
}

// ContainsUnsafeHTML reports whether content carries known XSS-bearing
// patterns (script tags, javascript: URIs, inline event handlers).
func ContainsUnsafeHTML(content string) bool {
	lowered := strings.ToLower(content)
	if strings.Contains(lowered, "<script") {
		return true
	}
	if strings.Contains(lowered, "javascript:") {
		return true
	}
	return eventHandler.MatchString(content)
}

// EmailContent is the immutable message snapshot taken at job creation.
type EmailContent struct {
	Subject   string `gorm:"type:varchar(500);not null"`
	Message   string `gorm:"type:text;not null"`
	FromName  string `gorm:"type:varchar(255);not null"`
	FromEmail string `gorm:"type:varchar(255);not null"`
}

// Normalize trims fields and fills sender defaults.
func (c *EmailContent) Normalize() {
	c.Subject = strings.TrimSpace(c.Subject)
	c.Message = strings.TrimSpace(c.Message)
	c.FromName = strings.TrimSpace(c.FromName)
	c.FromEmail = strings.TrimSpace(c.FromEmail)

	if c.FromName == "" {
		c.FromName = DefaultFromName
	}
	if c.FromEmail == "" {
		c.FromEmail = DefaultFromEmail
	}
}

func (c EmailContent) Validate() error {
	if c.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrValidation)
	}
	if subjectLen := len([]rune(c.Subject)); subjectLen > MaxSubjectLength {
		return fmt.Errorf("%w: subject exceeds %d characters (got %d)", ErrValidation, MaxSubjectLength, subjectLen)
	}
	if c.Message == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	if messageLen := len([]rune(c.Message)); messageLen > MaxMessageLength {
		return fmt.Errorf("%w: message exceeds %d characters (got %d)", ErrValidation, MaxMessageLength, messageLen)
	}
	if ContainsUnsafeHTML(c.Message) {
		return fmt.Errorf("%w: message contains unsafe HTML content", ErrValidation)
	}
	if !ValidSenderAddress(c.FromEmail) {
		return fmt.Errorf("%w: invalid from email %q", ErrValidation, c.FromEmail)
	}
	return nil
}

// ValidateRecipients trims every address and rejects the request when any
// address is malformed or the batch exceeds the size bound.
func ValidateRecipients(recipients []string) ([]string, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: recipients is required", ErrValidation)
	}
	if len(recipients) > MaxRecipients {
		return nil, fmt.Errorf("%w: recipient count exceeds %d (got %d)", ErrValidation, MaxRecipients, len(recipients))
	}

	trimmed := make([]string, 0, len(recipients))
	invalid := make([]string, 0)
	for _, recipient := range recipients {
		address := strings.TrimSpace(recipient)
		if !ValidEmailAddress(address) {
			invalid = append(invalid, address)
			continue
		}
		trimmed = append(trimmed, address)
	}

	if len(invalid) > 0 {
		return nil, fmt.Errorf("%w: invalid email addresses: %s", ErrValidation, strings.Join(invalid, ", "))
	}

	return trimmed, nil
}

// Summary is computed once when a job completes.
type Summary struct {
	Total       int
	Successful  int
	Failed      int
	SuccessRate string
}

// NewSummary derives the completion summary. SuccessRate is a percentage
// with two decimal places, e.g. "50.00%".
func NewSummary(total, successful, failed int) Summary {
	rate := 0.0
	if total > 0 {
		rate = float64(successful) / float64(total) * 100
	}
	return Summary{
		Total:       total,
		Successful:  successful,
		Failed:      failed,
		SuccessRate: fmt.Sprintf("%.2f%%", rate),
	}
}

// Job is one accepted bulk send request and its tracked progress.
type Job struct {
	ID          string
	Status      Status
	Total       int
	Processed   int
	Successful  int
	Failed      int
	Content     EmailContent
	Summary     *Summary
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// ProgressPercentage derives completion percent from the stored counters.
func (j *Job) ProgressPercentage() int {
	if j == nil || j.Total <= 0 {
		return 0
	}
	return int(float64(j.Processed)/float64(j.Total)*100 + 0.5)
}

// CheckCounters verifies the progress invariants that must hold at every
// observation point.
func (j *Job) CheckCounters() error {
	if j.Processed != j.Successful+j.Failed {
		return fmt.Errorf("processed=%d does not equal successful=%d + failed=%d", j.Processed, j.Successful, j.Failed)
	}
	if j.Processed > j.Total {
		return fmt.Errorf("processed=%d exceeds total=%d", j.Processed, j.Total)
	}
	if j.Processed < 0 || j.Successful < 0 || j.Failed < 0 {
		return fmt.Errorf("negative counter: processed=%d successful=%d failed=%d", j.Processed, j.Successful, j.Failed)
	}
	return nil
}

// RecipientResult is the outcome record for one address within a job.
type RecipientResult struct {
	ID        string
	JobID     string
	Recipient string
	Success   bool
	Method    string
	MessageID string
	Error     *string
	Timestamp time.Time
}
