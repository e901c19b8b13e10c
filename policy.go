package goRefMon

import (
	"context"

	"github.com/MrEthical07/goRefMon/auditpol"
	"github.com/MrEthical07/goRefMon/token"
)

// SetAuditingState sets the system-wide switches for cat.
func (m *Monitor) SetAuditingState(cat auditpol.Category, onSuccess, onFailure bool) error {
	return m.state.Set(cat, onSuccess, onFailure)
}

// AuditThisEvent decides whether an event in cat is recorded. The global
// state answers alone unless some live token overrides cat; then the
// subject's effective token is consulted. A missing token is escalated and
// the global answer is used.
func (m *Monitor) AuditThisEvent(ctx context.Context, cat auditpol.Category, granted, denied bool, sc token.SubjectContext) bool {
	audited, err := auditpol.Evaluate(m.state, m.tokens.Counters(), cat, granted, denied, func() (auditpol.Mask, error) {
		tok := sc.Effective()
		if tok == nil {
			return 0, token.ErrNoToken
		}
		var mask auditpol.Mask
		tok.Read(func(r token.Reader) { mask = r.AuditMask(cat) })
		return mask, nil
	})
	if err != nil {
		m.metrics.Inc(MetricAuditNoToken)
		m.escalator.Fail(ctx, err)
	}
	return audited
}

// DetailedAuditing reports whether detailed-tracking successes are audited
// for the subject.
func (m *Monitor) DetailedAuditing(ctx context.Context, sc token.SubjectContext) bool {
	return m.AuditThisEvent(ctx, auditpol.CategoryDetailedTracking, true, false, sc)
}
