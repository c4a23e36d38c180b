package tenantguard

import (
	"io"
	"time"

	internalaudit "github.com/MrEthical07/tenantguard/internal/audit"
)

// AuditEvent is a structured audit record emitted by the engine.
//
//	Docs: internal/audit
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// StoreSink persists events through [CredentialStore.CreateAuditLog].
type StoreSink = internalaudit.StoreSink

// MultiSink fans events out to every member.
type MultiSink = internalaudit.MultiSink

const (
	AuditUserRegistered  = internalaudit.EventUserRegistered
	AuditUserLogin       = internalaudit.EventUserLogin
	AuditLoginFailed     = internalaudit.EventLoginFailed
	AuditTokenRefreshed  = internalaudit.EventTokenRefreshed
	AuditRefreshFailed   = internalaudit.EventRefreshFailed
	AuditUserLogout      = internalaudit.EventUserLogout
	AuditMFASetupStarted = internalaudit.EventMFASetupStarted
	AuditMFAEnabled      = internalaudit.EventMFAEnabled
	AuditMFAVerifyFailed = internalaudit.EventMFAVerifyFailed
	AuditAccessDenied    = internalaudit.EventAccessDenied
)

// NewChannelSink describes the newchannelsink operation and its observable behavior.
//
// NewChannelSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink describes the newjsonwritersink operation and its observable behavior.
//
// NewJSONWriterSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewStoreSink returns a sink writing to store with a per-write timeout.
func NewStoreSink(store CredentialStore, timeout time.Duration) *StoreSink {
	return internalaudit.NewStoreSink(store, timeout)
}
