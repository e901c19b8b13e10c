package goRefMon

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goRefMon/audit"
	"github.com/MrEthical07/goRefMon/auditpol"
	"github.com/MrEthical07/goRefMon/ident"
	"github.com/MrEthical07/goRefMon/privilege"
	"github.com/MrEthical07/goRefMon/token"
)

// SubsystemName is the subsystem every record generated here names.
const SubsystemName = "Security"

// Subject is the caller an event is attributed to.
type Subject struct {
	Context   token.SubjectContext
	ProcessID uint32
	ImageName string
}

func (s Subject) image() audit.Param {
	if s.ImageName == "" {
		return audit.None{}
	}
	return audit.FileSpec(s.ImageName)
}

// identity returns the effective user, the primary logon ID and the client
// logon ID of the subject.
func (s Subject) identity() (user ident.SID, primary audit.Param, client audit.Param, ok bool) {
	eff := s.Context.Effective()
	if eff == nil {
		return ident.SID{}, nil, nil, false
	}
	user = eff.User().SID
	primary = audit.LogonID(eff.AuthID())
	if s.Context.Primary != nil {
		primary = audit.LogonID(s.Context.Primary.AuthID())
	}
	client = audit.NoLogonID{}
	if s.Context.Client != nil {
		client = audit.LogonID(s.Context.Client.AuthID())
	}
	return user, primary, client, true
}

func eventType(granted bool) audit.EventType {
	if granted {
		return audit.EventSuccess
	}
	return audit.EventFailure
}

func filterFlags(user ident.SID) privilege.FilterFlags {
	if user.Equal(ident.LocalSystemSID) || user.Equal(ident.LocalServiceSID) || user.Equal(ident.NetworkServiceSID) {
		return privilege.ServicesFilter
	}
	return 0
}

func (m *Monitor) emit(ctx context.Context, p *audit.Params) {
	if _, err := m.Log(ctx, p); err != nil && !errors.Is(err, ErrMonitorClosed) {
		m.logger.Warn("audit record not built", "audit_id", p.AuditID, "error", err)
	}
}

func (m *Monitor) noToken(ctx context.Context) {
	m.metrics.Inc(MetricAuditNoToken)
	m.escalator.Fail(ctx, token.ErrNoToken)
}

// AssignPrimaryToken installs tok as target's primary token and records
// the assignment when detailed tracking is audited for the subject.
func (m *Monitor) AssignPrimaryToken(ctx context.Context, subject Subject, target *token.Process, tok *token.Token) error {
	if err := target.Assign(tok); err != nil {
		return err
	}
	if m.DetailedAuditing(ctx, subject.Context) {
		m.auditAssignPrimaryToken(ctx, subject, target, tok)
	}
	return nil
}

// ExchangePrimaryToken swaps tok into target and returns the previous token,
// which the caller must release.
func (m *Monitor) ExchangePrimaryToken(ctx context.Context, subject Subject, target *token.Process, tok *token.Token, sessionID uint32) (*token.Token, error) {
	previous, err := target.Exchange(tok, sessionID)
	if err != nil {
		return nil, err
	}
	if m.DetailedAuditing(ctx, subject.Context) {
		m.auditAssignPrimaryToken(ctx, subject, target, tok)
	}
	return previous, nil
}

func (m *Monitor) auditAssignPrimaryToken(ctx context.Context, subject Subject, target *token.Process, tok *token.Token) {
	user, primary, _, ok := subject.identity()
	if !ok {
		m.noToken(ctx)
		return
	}
	m.emit(ctx, &audit.Params{
		Category: auditpol.CategoryDetailedTracking,
		AuditID:  audit.AuditIDAssignPrimaryToken,
		Type:     audit.EventSuccess,
		Params: []audit.Param{
			audit.SIDParam{SID: user},
			audit.String(SubsystemName),
			audit.Ptr(subject.ProcessID),
			subject.image(),
			primary,
			audit.Ptr(target.ID),
			audit.None{},
			audit.LogonID(tok.AuthID()),
		},
	})
}

// PrivilegedServiceAudit records the use of privs to call a privileged
// service. Uses the privilege filter hides are not recorded.
func (m *Monitor) PrivilegedServiceAudit(ctx context.Context, subject Subject, server, service string, privs privilege.Set, granted bool) {
	if !m.AuditThisEvent(ctx, auditpol.CategoryPrivilegeUse, granted, !granted, subject.Context) {
		m.metrics.Inc(MetricAuditSuppressed)
		return
	}
	user, primary, client, ok := subject.identity()
	if !ok {
		m.noToken(ctx)
		return
	}
	if !m.filter.ShouldAudit(filterFlags(user), privs) {
		m.metrics.Inc(MetricAuditSuppressed)
		return
	}

	var svc audit.Param = audit.None{}
	if service != "" {
		svc = audit.String(service)
	}
	m.emit(ctx, &audit.Params{
		Category: auditpol.CategoryPrivilegeUse,
		AuditID:  audit.AuditIDPrivilegedService,
		Type:     eventType(granted),
		Params: []audit.Param{
			audit.SIDParam{SID: user},
			audit.String(SubsystemName),
			audit.String(server),
			svc,
			primary,
			client,
			audit.Privileges{Set: privs},
		},
	})
}

// PrivilegedObjectAudit records privileges used to open handleID.
func (m *Monitor) PrivilegedObjectAudit(ctx context.Context, subject Subject, objectServer string, handleID uint64, desired uint32, privs privilege.Set, granted bool) {
	if !m.AuditThisEvent(ctx, auditpol.CategoryPrivilegeUse, granted, !granted, subject.Context) {
		m.metrics.Inc(MetricAuditSuppressed)
		return
	}
	user, primary, client, ok := subject.identity()
	if !ok {
		m.noToken(ctx)
		return
	}
	if !m.filter.ShouldAudit(filterFlags(user), privs) {
		m.metrics.Inc(MetricAuditSuppressed)
		return
	}

	m.emit(ctx, &audit.Params{
		Category: auditpol.CategoryPrivilegeUse,
		AuditID:  audit.AuditIDPrivilegedObject,
		Type:     eventType(granted),
		Params: []audit.Param{
			audit.SIDParam{SID: user},
			audit.String(SubsystemName),
			audit.String(objectServer),
			audit.Ptr(handleID),
			audit.Ptr(subject.ProcessID),
			primary,
			client,
			audit.AccessMask(desired),
			audit.Privileges{Set: privs},
		},
	})
}

// CloseHandleAudit records the close of an audited handle. Nothing is
// recorded when close events are suppressed by configuration or the handle
// was not opened with generate-on-close.
func (m *Monitor) CloseHandleAudit(ctx context.Context, subject Subject, handleID uint64, generateOnClose bool) {
	if !generateOnClose || m.settings.SuppressCloseEvents() {
		m.metrics.Inc(MetricAuditSuppressed)
		return
	}
	if !m.AuditThisEvent(ctx, auditpol.CategoryObjectAccess, true, false, subject.Context) {
		m.metrics.Inc(MetricAuditSuppressed)
		return
	}
	user, _, _, ok := subject.identity()
	if !ok {
		m.noToken(ctx)
		return
	}

	m.emit(ctx, &audit.Params{
		Category: auditpol.CategoryObjectAccess,
		AuditID:  audit.AuditIDCloseHandle,
		Type:     audit.EventSuccess,
		Params: []audit.Param{
			audit.SIDParam{SID: user},
			audit.String(SubsystemName),
			audit.Ptr(handleID),
			audit.Ptr(subject.ProcessID),
		},
	})
}

// SystemTimeChangeAudit records a change of the system clock, preceded by
// the use of the system-time privilege. Service accounts do not produce the
// privilege record.
func (m *Monitor) SystemTimeChangeAudit(ctx context.Context, subject Subject, oldTime, newTime time.Time) {
	used := privilege.Set{
		Control:    privilege.SetAllNecessary,
		Privileges: []privilege.LUIDAndAttributes{{LUID: privilege.Systemtime, Attributes: privilege.UsedForAccess}},
	}
	m.PrivilegedServiceAudit(ctx, subject, SubsystemName, "SetSystemTime", used, true)

	if !m.AuditThisEvent(ctx, auditpol.CategorySystem, true, false, subject.Context) {
		m.metrics.Inc(MetricAuditSuppressed)
		return
	}
	user, primary, client, ok := subject.identity()
	if !ok {
		m.noToken(ctx)
		return
	}

	m.emit(ctx, &audit.Params{
		Category: auditpol.CategorySystem,
		AuditID:  audit.AuditIDSystemTimeChange,
		Type:     audit.EventSuccess,
		Params: []audit.Param{
			audit.SIDParam{SID: user},
			audit.String(SubsystemName),
			audit.Ptr(subject.ProcessID),
			subject.image(),
			primary,
			client,
			audit.Time{At: oldTime},
			audit.Time{At: newTime},
		},
	})
}
