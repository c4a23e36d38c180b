package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/MrEthical07/tenantguard"
	"github.com/MrEthical07/tenantguard/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrNilMeter is returned when no meter is supplied.
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Instrument names. Per-operation counters are folded into a single
// instrument keyed by the operation and outcome attributes.
const (
	AuthOperationsName   = "tenantguard.auth.operations"
	SessionsCreatedName  = "tenantguard.sessions.created"
	EnrollmentFallbacks  = "tenantguard.mfa.enrollment.fallbacks"
	CacheFailuresName    = "tenantguard.cache.failures"
	AuditLostName        = "tenantguard.audit.lost"
	LoginDurationBuckets = "tenantguard.auth.login.duration.buckets"
	LoginDurationCount   = "tenantguard.auth.login.duration.count"
)

// Attribute keys.
const (
	OperationKey = attribute.Key("operation")
	OutcomeKey   = attribute.Key("outcome")
	ReasonKey    = attribute.Key("reason")
	BoundKey     = attribute.Key("le")
)

type metricsSource interface {
	MetricsSnapshot() tenantguard.MetricsSnapshot
	AuditDropped() uint64
	AuditFailed() uint64
}

type authOutcome struct {
	id    tenantguard.MetricID
	attrs metric.ObserveOption
}

func outcome(id tenantguard.MetricID, operation, result string) authOutcome {
	return authOutcome{
		id:    id,
		attrs: metric.WithAttributes(OperationKey.String(operation), OutcomeKey.String(result)),
	}
}

var authOutcomes = []authOutcome{
	outcome(tenantguard.MetricRegisterSuccess, "register", "success"),
	outcome(tenantguard.MetricRegisterFailure, "register", "rejected"),
	outcome(tenantguard.MetricLoginSuccess, "login", "success"),
	outcome(tenantguard.MetricLoginFailure, "login", "invalid_credentials"),
	outcome(tenantguard.MetricLoginRateLimited, "login", "rate_limited"),
	outcome(tenantguard.MetricMFARequired, "login", "mfa_required"),
	outcome(tenantguard.MetricRefreshSuccess, "refresh", "success"),
	outcome(tenantguard.MetricRefreshFailure, "refresh", "rejected"),
	outcome(tenantguard.MetricLogout, "logout", "success"),
	outcome(tenantguard.MetricMFASetup, "mfa_setup", "started"),
	outcome(tenantguard.MetricMFAEnabled, "mfa_verify", "enabled"),
	outcome(tenantguard.MetricMFAVerifyFailure, "mfa_verify", "invalid_code"),
	outcome(tenantguard.MetricAuthorizeAllowed, "authorize", "allowed"),
	outcome(tenantguard.MetricAuthorizeDenied, "authorize", "denied"),
}

var (
	auditDroppedAttrs = metric.WithAttributes(ReasonKey.String("buffer_full"))
	auditFailedAttrs  = metric.WithAttributes(ReasonKey.String("sink_failed"))
)

// bucketBounds labels each cumulative login-duration bucket with its upper
// bound in seconds.
var bucketBounds = func() []metric.ObserveOption {
	out := make([]metric.ObserveOption, 0, len(internaldefs.HistogramUpperBounds)+1)
	for _, b := range internaldefs.HistogramUpperBounds {
		out = append(out, metric.WithAttributes(BoundKey.String(strconv.FormatFloat(b, 'f', -1, 64))))
	}
	return append(out, metric.WithAttributes(BoundKey.String("+Inf")))
}()

// OTelExporter publishes engine metrics through observable instruments read
// on every collection cycle.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	operations metric.Int64ObservableCounter
	sessions   metric.Int64ObservableCounter
	fallbacks  metric.Int64ObservableCounter
	cache      metric.Int64ObservableCounter
	auditLost  metric.Int64ObservableCounter
	buckets    metric.Int64ObservableGauge
	count      metric.Int64ObservableGauge
}

// NewOTelExporter registers instruments on meter for the engine's metrics.
func NewOTelExporter(meter metric.Meter, engine *tenantguard.Engine) (*OTelExporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, engine)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	var err error

	counter := func(name, desc string) metric.Int64ObservableCounter {
		if err != nil {
			return nil
		}
		var ins metric.Int64ObservableCounter
		ins, err = meter.Int64ObservableCounter(name, metric.WithDescription(desc), metric.WithUnit("{call}"))
		if err != nil {
			err = fmt.Errorf("create observable counter %s: %w", name, err)
		}
		return ins
	}
	e.operations = counter(AuthOperationsName, "Engine operations by operation and outcome.")
	e.sessions = counter(SessionsCreatedName, "Sessions issued by login and refresh.")
	e.fallbacks = counter(EnrollmentFallbacks, "MFA enrollment reads and writes served by the credential store.")
	e.cache = counter(CacheFailuresName, "Fast cache calls that failed or timed out.")
	e.auditLost = counter(AuditLostName, "Audit events that never reached the sink.")
	if err != nil {
		return nil, err
	}

	e.buckets, err = meter.Int64ObservableGauge(LoginDurationBuckets,
		metric.WithDescription("Cumulative login count at or below the le bound, in seconds."))
	if err != nil {
		return nil, fmt.Errorf("create gauge %s: %w", LoginDurationBuckets, err)
	}
	e.count, err = meter.Int64ObservableGauge(LoginDurationCount,
		metric.WithDescription("Logins timed by the duration buckets."))
	if err != nil {
		return nil, fmt.Errorf("create gauge %s: %w", LoginDurationCount, err)
	}

	e.registration, err = meter.RegisterCallback(e.observe,
		e.operations, e.sessions, e.fallbacks, e.cache, e.auditLost, e.buckets, e.count)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()

	for _, oc := range authOutcomes {
		o.ObserveInt64(e.operations, int64(snap.Counters[oc.id]), oc.attrs)
	}
	o.ObserveInt64(e.sessions, int64(snap.Counters[tenantguard.MetricSessionCreated]))
	o.ObserveInt64(e.fallbacks, int64(snap.Counters[tenantguard.MetricMFAFallbackUsed]))
	o.ObserveInt64(e.cache, int64(snap.Counters[tenantguard.MetricCacheFailure]))
	o.ObserveInt64(e.auditLost, int64(e.source.AuditDropped()), auditDroppedAttrs)
	o.ObserveInt64(e.auditLost, int64(e.source.AuditFailed()), auditFailedAttrs)

	raw, ok := snap.Histograms[tenantguard.MetricLoginLatency]
	if !ok {
		return nil
	}
	cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
	for i, attrs := range bucketBounds {
		o.ObserveInt64(e.buckets, int64(cumulative[i]), attrs)
	}
	o.ObserveInt64(e.count, int64(cumulative[len(cumulative)-1]))
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
