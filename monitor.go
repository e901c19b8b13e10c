package goRefMon

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goRefMon/audit"
	"github.com/MrEthical07/goRefMon/auditpol"
	"github.com/MrEthical07/goRefMon/ident"
	"github.com/MrEthical07/goRefMon/privilege"
	"github.com/MrEthical07/goRefMon/session"
	"github.com/MrEthical07/goRefMon/token"
	"golang.org/x/sync/errgroup"
)

// Monitor is the composed reference monitor. Build one with New().Build.
type Monitor struct {
	config Config
	logger *slog.Logger

	settings *audit.Settings
	filter   *privilege.Filter
	state    *auditpol.State
	metrics  *Metrics

	sessions  session.Table
	tokens    *token.Manager
	queue     *audit.Queue
	escalator *audit.Escalator
	pipeline  *audit.Pipeline
	authority audit.Authority
	consumer  *audit.Consumer

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func (m *Monitor) Tokens() *token.Manager { return m.tokens }
func (m *Monitor) Sessions() session.Table { return m.sessions }
func (m *Monitor) Settings() *audit.Settings { return m.settings }
func (m *Monitor) PrivilegeFilter() *privilege.Filter { return m.filter }
func (m *Monitor) AuditState() *auditpol.State { return m.state }
func (m *Monitor) Queue() *audit.Queue { return m.queue }
func (m *Monitor) Escalator() *audit.Escalator { return m.escalator }
func (m *Monitor) Metrics() *Metrics { return m.metrics }

// MetricsSnapshot satisfies the exporter sources.
func (m *Monitor) MetricsSnapshot() MetricsSnapshot { return m.metrics.Snapshot() }

// AuditStats returns the current queue state.
func (m *Monitor) AuditStats() audit.QueueStats { return m.queue.Stats() }

// CreateLogonSession adds s to the session table with no references. The
// first token created for it takes the first reference.
func (m *Monitor) CreateLogonSession(ctx context.Context, s *session.LogonSession) error {
	if m.closed.Load() {
		return ErrMonitorClosed
	}
	if s.CreatedAt == 0 {
		s.CreatedAt = time.Now().UnixNano()
	}
	if err := m.sessions.Create(ctx, s); err != nil {
		return err
	}
	m.metrics.Inc(MetricLogonSessionCreated)
	return nil
}

// Log offers a record to the audit pipeline.
func (m *Monitor) Log(ctx context.Context, params *audit.Params) (audit.Admission, error) {
	if m.closed.Load() {
		return audit.RejectedDead, ErrMonitorClosed
	}

	start := time.Now()
	adm, err := m.pipeline.Log(ctx, params)
	if m.metrics.LatencyEnabled() {
		m.metrics.Observe(MetricAuditLogLatency, time.Since(start))
	}

	switch {
	case err != nil:
		m.metrics.Inc(MetricAuditMarshalFailed)
	case adm == audit.Admitted:
		m.metrics.Inc(MetricAuditAdmitted)
	case adm == audit.Discarded:
		m.metrics.Inc(MetricAuditDiscarded)
	default:
		m.metrics.Inc(MetricAuditRejected)
	}
	return adm, err
}

// logonTerminated runs when a session's last reference is dropped.
func (m *Monitor) logonTerminated(ctx context.Context, authID ident.LUID) {
	m.metrics.Inc(MetricLogonSessionTerminated)
	if adm := m.pipeline.LogDeletedLogon(ctx, authID); adm != audit.Admitted {
		m.logger.Warn("deleted logon notification not queued", "logon_id", authID.String(), "admission", adm.String())
	}
}

func (m *Monitor) observeDelivery(_ audit.WorkTag, err error) {
	if err != nil {
		m.metrics.Inc(MetricAuditDeliveryFailed)
		return
	}
	m.metrics.Inc(MetricAuditDelivered)
}

// PrimaryTokenAssigned implements token.AssignObserver.
func (m *Monitor) PrimaryTokenAssigned(_ *token.Process, _, _ *token.Token) {
	m.metrics.Inc(MetricTokenAssigned)
}

// Close delivers what is queued, stops the consumer, rejects further
// records and closes the authority when it is an io.Closer. Later calls
// return the first result.
func (m *Monitor) Close(ctx context.Context) error {
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		m.closeErr = m.shutdown(ctx)
	})
	return m.closeErr
}

func (m *Monitor) shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok && m.config.Audit.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.Audit.ShutdownTimeout)
		defer cancel()
	}

	if err := m.consumer.Close(ctx); err != nil {
		return err
	}

	m.queue.MarkDead()
	for item := m.queue.Head(); item != nil; item = m.queue.Dequeue() {
		// Nothing delivers any more; Dequeue releases each item.
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.queue.WaitDrained(gctx) })
	if c, ok := m.authority.(io.Closer); ok {
		g.Go(c.Close)
	}
	return g.Wait()
}
