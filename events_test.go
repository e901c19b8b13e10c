package goRefMon

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/goRefMon/audit"
	"github.com/MrEthical07/goRefMon/auditpol"
	"github.com/MrEthical07/goRefMon/ident"
	"github.com/MrEthical07/goRefMon/privilege"
	"github.com/MrEthical07/goRefMon/registry"
	"github.com/MrEthical07/goRefMon/token"
)

func (tm *testMonitor) subject(tok *token.Token) Subject {
	return Subject{
		Context:   token.SubjectContext{Primary: tok},
		ProcessID: 42,
		ImageName: `C:\bin\svc.exe`,
	}
}

func TestAssignPrimaryTokenAuditedWithOverlay(t *testing.T) {
	tm := newTestMonitor(t, nil)
	ctx := context.Background()

	var pol auditpol.TokenPolicy
	pol[auditpol.CategoryDetailedTracking] = auditpol.SuccessInclude
	caller := tm.createToken(t, userParams(testAuthID, &pol))
	defer caller.Release()
	target := tm.createToken(t, userParams(testAuthID, nil))
	defer target.Release()

	p := tm.Tokens().NewProcess(77)
	if err := tm.AssignPrimaryToken(ctx, tm.subject(caller), p, target); err != nil {
		t.Fatalf("assign: %v", err)
	}
	defer p.Deassign()

	rec := tm.nextRecord(t)
	if rec.AuditID != audit.AuditIDAssignPrimaryToken || rec.Category != auditpol.CategoryDetailedTracking {
		t.Fatalf("record = %d/%v", rec.AuditID, rec.Category)
	}
	if len(rec.Params) != 8 {
		t.Fatalf("params = %d", len(rec.Params))
	}
	if sid, ok := rec.Params[0].(audit.SIDParam); !ok || !sid.SID.Equal(testUser) {
		t.Fatalf("subject sid = %#v", rec.Params[0])
	}
	if rec.Params[2] != audit.Ptr(42) || rec.Params[5] != audit.Ptr(77) {
		t.Fatalf("process ids = %v, %v", rec.Params[2], rec.Params[5])
	}
	if rec.Params[3] != audit.FileSpec(`C:\bin\svc.exe`) {
		t.Fatalf("image = %v", rec.Params[3])
	}
	if rec.Params[7] != audit.LogonID(testAuthID) {
		t.Fatalf("target logon = %v", rec.Params[7])
	}
	if tm.Metrics().Value(MetricTokenAssigned) != 1 {
		t.Fatal("assignment not counted")
	}
}

func TestAssignPrimaryTokenNotAuditedByDefault(t *testing.T) {
	tm := newTestMonitor(t, nil)
	ctx := context.Background()

	caller := tm.createToken(t, userParams(testAuthID, nil))
	defer caller.Release()
	target := tm.createToken(t, userParams(testAuthID, nil))
	defer target.Release()

	p := tm.Tokens().NewProcess(5)
	if err := tm.AssignPrimaryToken(ctx, tm.subject(caller), p, target); err != nil {
		t.Fatalf("assign: %v", err)
	}
	other := tm.createToken(t, userParams(testAuthID, nil))
	defer other.Release()
	prev, err := tm.ExchangePrimaryToken(ctx, tm.subject(caller), p, other, 1)
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if prev != target {
		t.Fatal("exchange returned the wrong token")
	}
	prev.Release()
	p.Deassign()

	tm.expectNone(t)
}

func TestCloseHandleAudit(t *testing.T) {
	tm := newTestMonitor(t, nil)
	ctx := context.Background()
	if err := tm.SetAuditingState(auditpol.CategoryObjectAccess, true, false); err != nil {
		t.Fatalf("set state: %v", err)
	}
	caller := tm.createToken(t, userParams(testAuthID, nil))
	defer caller.Release()

	tm.CloseHandleAudit(ctx, tm.subject(caller), 0x44, false)
	tm.expectNone(t)

	tm.CloseHandleAudit(ctx, tm.subject(caller), 0x44, true)
	rec := tm.nextRecord(t)
	if rec.AuditID != audit.AuditIDCloseHandle || len(rec.Params) != 4 || rec.Params[2] != audit.Ptr(0x44) {
		t.Fatalf("record = %d %v", rec.AuditID, rec.Params)
	}

	tm.Settings().SetSuppressCloseEvents(true)
	tm.CloseHandleAudit(ctx, tm.subject(caller), 0x45, true)
	tm.expectNone(t)
}

func TestCloseHandleSuppressedFromRegistry(t *testing.T) {
	store := newStore()
	if err := store.Set(context.Background(), audit.AuditOptionsKey, audit.DoNotAuditCloseObjectEventsValue, registry.Uint32(1)); err != nil {
		t.Fatalf("set: %v", err)
	}
	tm := newTestMonitor(t, store)
	if err := tm.SetAuditingState(auditpol.CategoryObjectAccess, true, false); err != nil {
		t.Fatalf("set state: %v", err)
	}
	caller := tm.createToken(t, userParams(testAuthID, nil))
	defer caller.Release()

	tm.CloseHandleAudit(context.Background(), tm.subject(caller), 1, true)
	tm.expectNone(t)
	if tm.Metrics().Value(MetricAuditSuppressed) == 0 {
		t.Fatal("suppression not counted")
	}
}

func enableTimeAuditing(t *testing.T, tm *testMonitor) {
	t.Helper()
	if err := tm.SetAuditingState(auditpol.CategorySystem, true, false); err != nil {
		t.Fatalf("set system state: %v", err)
	}
	if err := tm.SetAuditingState(auditpol.CategoryPrivilegeUse, true, true); err != nil {
		t.Fatalf("set privilege state: %v", err)
	}
}

func TestSystemTimeChangeForUser(t *testing.T) {
	tm := newTestMonitor(t, nil)
	enableTimeAuditing(t, tm)
	caller := tm.createToken(t, userParams(testAuthID, nil))
	defer caller.Release()

	before := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	after := before.Add(time.Hour)
	tm.SystemTimeChangeAudit(context.Background(), tm.subject(caller), before, after)

	priv := tm.nextRecord(t)
	if priv.AuditID != audit.AuditIDPrivilegedService {
		t.Fatalf("first record = %d", priv.AuditID)
	}
	set, ok := priv.Params[6].(audit.Privileges)
	if !ok || len(set.Set.Privileges) != 1 || set.Set.Privileges[0].LUID != privilege.Systemtime {
		t.Fatalf("privileges = %#v", priv.Params[6])
	}

	change := tm.nextRecord(t)
	if change.AuditID != audit.AuditIDSystemTimeChange || len(change.Params) != 8 {
		t.Fatalf("second record = %d with %d params", change.AuditID, len(change.Params))
	}
	old, ok := change.Params[6].(audit.Time)
	if !ok || !old.At.Equal(before) {
		t.Fatalf("old time = %#v", change.Params[6])
	}
	if _, ok := change.Params[5].(audit.NoLogonID); !ok {
		t.Fatalf("client = %#v", change.Params[5])
	}
}

func TestSystemTimeChangeForLocalSystem(t *testing.T) {
	tm := newTestMonitor(t, nil)
	enableTimeAuditing(t, tm)
	sys, err := tm.Tokens().MakeSystemToken(context.Background())
	if err != nil {
		t.Fatalf("system token: %v", err)
	}
	defer sys.Release()

	tm.SystemTimeChangeAudit(context.Background(), tm.subject(sys), time.Now(), time.Now())

	rec := tm.nextRecord(t)
	if rec.AuditID != audit.AuditIDSystemTimeChange {
		t.Fatalf("record = %d, privilege use by the system account must be filtered", rec.AuditID)
	}
	if sid := rec.Params[0].(audit.SIDParam); !sid.SID.Equal(ident.LocalSystemSID) {
		t.Fatalf("sid = %s", sid.SID)
	}
	tm.expectNone(t)
}

func TestPrivilegedObjectAuditFiltered(t *testing.T) {
	tm := newTestMonitor(t, nil)
	enableTimeAuditing(t, tm)
	caller := tm.createToken(t, userParams(testAuthID, nil))
	defer caller.Release()
	ctx := context.Background()

	notify := privilege.Set{Privileges: []privilege.LUIDAndAttributes{{LUID: privilege.ChangeNotify, Attributes: privilege.UsedForAccess}}}
	tm.PrivilegedObjectAudit(ctx, tm.subject(caller), "Security", 9, 0x1, notify, true)
	tm.expectNone(t)

	shutdown := privilege.Set{Privileges: []privilege.LUIDAndAttributes{{LUID: privilege.Shutdown, Attributes: privilege.UsedForAccess}}}
	tm.PrivilegedObjectAudit(ctx, tm.subject(caller), "Security", 9, 0x120089, shutdown, false)
	rec := tm.nextRecord(t)
	if rec.AuditID != audit.AuditIDPrivilegedObject || rec.Type != audit.EventFailure {
		t.Fatalf("record = %d type %v", rec.AuditID, rec.Type)
	}
	if rec.Params[7] != audit.AccessMask(0x120089) {
		t.Fatalf("access mask = %v", rec.Params[7])
	}
}
