// Package notify delivers suite reports to people.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/kuitang/clinicprobe/internal/obs"
	"github.com/kuitang/clinicprobe/internal/report"
)

// Notifier sends a suite report.
type Notifier interface {
	Notify(ctx context.Context, r *report.Report) error
}

// Notification is a captured report delivery.
type Notification struct {
	To      []string
	Subject string
	SuiteID string
	Failed  int
	HTML    []byte
}

// MockNotifier captures notifications instead of sending them and logs each
// one. When an outbox directory is set, every notification is also written
// there as a JSON file.
type MockNotifier struct {
	To []string

	mu            sync.Mutex
	Notifications []Notification
	outboxDir     string
	seq           uint64
}

// NewMockNotifier creates a mock notifier. An empty outboxDir disables the
// outbox.
func NewMockNotifier(outboxDir string, to ...string) *MockNotifier {
	m := &MockNotifier{To: to}
	if outboxDir != "" {
		if err := os.MkdirAll(outboxDir, 0o755); err != nil {
			obs.Pkg("notify").Warn("outbox_unavailable", "dir", outboxDir, "error", err)
		} else {
			m.outboxDir = outboxDir
		}
	}
	return m
}

func (m *MockNotifier) Notify(ctx context.Context, r *report.Report) error {
	n := Notification{
		To:      append([]string(nil), m.To...),
		Subject: r.Subject(),
		SuiteID: r.SuiteID,
		Failed:  r.Failed,
		HTML:    r.HTML(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notifications = append(m.Notifications, n)

	obs.From(ctx).With("pkg", "notify").Info("report_notification",
		"to", strings.Join(n.To, ","),
		"subject", n.Subject,
		"failed", n.Failed,
	)
	return m.writeOutbox(n)
}

// Last returns the most recent notification, or the zero value.
func (m *MockNotifier) Last() Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Notifications) == 0 {
		return Notification{}
	}
	return m.Notifications[len(m.Notifications)-1]
}

// Count returns the number of captured notifications.
func (m *MockNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Notifications)
}

type outboxEvent struct {
	Sequence       uint64   `json:"sequence"`
	To             []string `json:"to"`
	Subject        string   `json:"subject"`
	SuiteID        string   `json:"suite_id"`
	Failed         int      `json:"failed"`
	SentAtUnixNano int64    `json:"sent_at_unix_nano"`
}

func (m *MockNotifier) writeOutbox(n Notification) error {
	if m.outboxDir == "" {
		return nil
	}

	m.seq++
	event := outboxEvent{
		Sequence:       m.seq,
		To:             n.To,
		Subject:        n.Subject,
		SuiteID:        n.SuiteID,
		Failed:         n.Failed,
		SentAtUnixNano: time.Now().UnixNano(),
	}
	name := fmt.Sprintf("%020d-%s.json", event.Sequence, sanitizeOutboxComponent(n.SuiteID))
	finalPath := filepath.Join(m.outboxDir, name)
	tempPath := finalPath + ".tmp"

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal outbox event: %w", err)
	}
	if err := os.WriteFile(tempPath, payload, 0o644); err != nil {
		return fmt.Errorf("write outbox temp file: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("rename outbox file: %w", err)
	}
	return nil
}

var outboxSanitizePattern = regexp.MustCompile(`[^a-zA-Z0-9._@-]+`)

func sanitizeOutboxComponent(input string) string {
	safe := strings.TrimSpace(input)
	if safe == "" {
		return "unknown"
	}
	return outboxSanitizePattern.ReplaceAllString(safe, "_")
}
