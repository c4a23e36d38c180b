// Package audit implements async event dispatching for security-relevant operations.
//
// # Components
//
//   - [Sink] — interface for event consumers (channel, JSON writer, credential store, fan-out, no-op).
//   - [Dispatcher] — buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event] — structured audit record with timestamp, type, user, tenant, IP, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit — that responsibility belongs to the flow functions.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Let a sink failure propagate to the operation being audited.
//   - Import tenantguard or internal/flows.
package audit
