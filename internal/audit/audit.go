package audit

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"sync"
	"time"

	"github.com/MrEthical07/tenantguard/internal/model"
)

// Event types emitted by the engine.
const (
	EventUserRegistered  = "user_registered"
	EventUserLogin       = "user_login"
	EventLoginFailed     = "login_failed"
	EventTokenRefreshed  = "token_refreshed"
	EventRefreshFailed   = "refresh_failed"
	EventUserLogout      = "user_logout"
	EventMFASetupStarted = "mfa_setup_started"
	EventMFAEnabled      = "mfa_enabled"
	EventMFAVerifyFailed = "mfa_verify_failed"
	EventAccessDenied    = "access_denied"
)

// Event is the canonical audit event model used by internal dispatching and root APIs.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	TenantID  string            `json:"tenant_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(data)
}

// StoreSink persists events as audit log rows. Write failures are logged and
// never reach the operation that produced the event.
type StoreSink struct {
	store   model.AuditStore
	timeout time.Duration
}

func NewStoreSink(store model.AuditStore, timeout time.Duration) *StoreSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &StoreSink{store: store, timeout: timeout}
}

func (s *StoreSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	entry := &model.AuditLog{
		TenantID:   event.TenantID,
		UserID:     event.UserID,
		Action:     event.EventType,
		Resource:   "auth",
		ResourceID: event.SessionID,
		Success:    event.Success,
		IPAddress:  event.IP,
		UserAgent:  event.UserAgent,
		Details:    detailsOf(event),
		CreatedAt:  event.Timestamp,
	}
	if err := s.store.CreateAuditLog(ctx, entry); err != nil {
		log.Printf("tenantguard: audit log write failed for %s: %v", event.EventType, err)
	}
}

func detailsOf(event Event) map[string]string {
	if len(event.Metadata) == 0 && event.Error == "" {
		return nil
	}
	out := make(map[string]string, len(event.Metadata)+1)
	for k, v := range event.Metadata {
		out[k] = v
	}
	if event.Error != "" {
		out["error"] = event.Error
	}
	return out
}

// MultiSink fans an event out to every sink in order.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, event Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, event)
		}
	}
}
