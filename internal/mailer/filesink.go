package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// FileSinkTransport writes every message as a JSON file instead of
// delivering it. Always available; used as the last fallback and in tests.
type FileSinkTransport struct {
	dir string
	now func() time.Time
}

// SinkMessage is the persisted shape of one sunk message.
type SinkMessage struct {
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	From      string    `json:"from"`
	HTML      string    `json:"html"`
	Text      string    `json:"text"`
	MessageID string    `json:"messageId"`
	Timestamp time.Time `json:"timestamp"`
}

// SinkEntry describes one sunk message file for listings.
type SinkEntry struct {
	Filename string    `json:"filename"`
	Created  time.Time `json:"created"`
	Size     int64     `json:"size"`
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
}

func NewFileSinkTransport(dir string) (*FileSinkTransport, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, fmt.Errorf("sink directory is required")
	}
	if err := os.MkdirAll(trimmed, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sink directory: %w", err)
	}

	return &FileSinkTransport{dir: trimmed, now: time.Now}, nil
}

func (t *FileSinkTransport) Name() string { return "file" }

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

func (t *FileSinkTransport) Send(ctx context.Context, msg Message) (*Receipt, error) {
	if t == nil {
		return nil, fmt.Errorf("transport is not initialized")
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	messageID := newMessageID()
	entry := SinkMessage{
		To:        msg.To,
		Subject:   msg.Subject,
		From:      msg.From(),
		HTML:      msg.HTML,
		Text:      msg.Text(),
		MessageID: messageID,
		Timestamp: t.now().UTC(),
	}

	payload, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return nil, &TransportError{Transport: t.Name(), Message: "marshal failed", Cause: err}
	}

	filename := fmt.Sprintf("email_%d_%s.json",
		t.now().UnixNano(),
		unsafeFilenameChars.ReplaceAllString(msg.To, "_"),
	)
	if err := os.WriteFile(filepath.Join(t.dir, filename), payload, 0o644); err != nil {
		return nil, &TransportError{Transport: t.Name(), Message: "write failed", Cause: err}
	}

	return &Receipt{MessageID: messageID, Detail: filename}, nil
}

// Verify checks that the sink directory is usable.
func (t *FileSinkTransport) Verify(ctx context.Context) error {
	if t == nil {
		return fmt.Errorf("transport is not initialized")
	}
	info, err := os.Stat(t.dir)
	if err != nil {
		return &TransportError{Transport: t.Name(), Message: "sink directory missing", Cause: err}
	}
	if !info.IsDir() {
		return &TransportError{Transport: t.Name(), Message: "sink path is not a directory"}
	}
	return nil
}

// ListSink returns sunk messages in dir, newest first.
func ListSink(dir string) ([]SinkEntry, error) {
	files, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []SinkEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sink directory: %w", err)
	}

	entries := make([]SinkEntry, 0, len(files))
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		info, err := file.Info()
		if err != nil {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			continue
		}
		var msg SinkMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}

		entries = append(entries, SinkEntry{
			Filename: file.Name(),
			Created:  info.ModTime(),
			Size:     info.Size(),
			To:       msg.To,
			Subject:  msg.Subject,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Created.After(entries[j].Created)
	})

	return entries, nil
}
