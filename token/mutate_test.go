package token

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/MrEthical07/goRefMon/auditpol"
	"github.com/MrEthical07/goRefMon/ident"
	"github.com/MrEthical07/goRefMon/privilege"
)

func testACL(t *testing.T, n int) ident.ACL {
	t.Helper()
	aces := make([]ident.ACE, n)
	for i := range aces {
		aces[i] = ident.ACE{Type: ident.AccessAllowedACEType, Mask: uint32(i + 1), SID: testUser}
	}
	acl, err := ident.BuildACL(aces...)
	if err != nil {
		t.Fatalf("build acl: %v", err)
	}
	return acl
}

func TestSetOwnerEligibility(t *testing.T) {
	m, _ := newTestManager(t)
	tok := mustCreate(t, m, baseParams())
	defer tok.Release()

	cases := []struct {
		sid  ident.SID
		want error
	}{
		{testGroup, nil},
		{testUser, nil},
		{ident.EveryoneSID, ErrInvalidOwner},
		{ident.AdministratorsSID, ErrInvalidOwner},
		{otherUser, ErrInvalidOwner},
		{ident.SID{}, ErrInvalidOwner},
	}
	for _, tc := range cases {
		before := tok.Owner()
		err := tok.SetOwner(tc.sid)
		if !errors.Is(err, tc.want) {
			t.Fatalf("SetOwner(%s) = %v, want %v", tc.sid, err, tc.want)
		}
		if err != nil && !tok.Owner().Equal(before) {
			t.Fatalf("owner changed on failure: %s -> %s", before, tok.Owner())
		}
		if err == nil && !tok.Owner().Equal(tc.sid) {
			t.Fatalf("owner = %s, want %s", tok.Owner(), tc.sid)
		}
	}
}

func TestSetPrimaryGroupRejectsForeignSID(t *testing.T) {
	m, _ := newTestManager(t)
	tok := mustCreate(t, m, baseParams())
	defer tok.Release()

	if err := tok.SetPrimaryGroup(otherUser); !errors.Is(err, ErrInvalidPrimaryGroup) {
		t.Fatalf("expected ErrInvalidPrimaryGroup, got %v", err)
	}
	if err := tok.SetPrimaryGroup(testUser); err != nil {
		t.Fatalf("user as primary group: %v", err)
	}
	if !tok.PrimaryGroup().Equal(testUser) {
		t.Fatalf("primary group = %s", tok.PrimaryGroup())
	}
}

func TestDynamicFieldsIndependent(t *testing.T) {
	m, _ := newTestManager(t)
	tok := mustCreate(t, m, baseParams())
	defer tok.Release()

	groups := []ident.SID{testUser, testGroup, ident.EveryoneSID, ident.AdministratorsSID}
	rng := rand.New(rand.NewSource(7))

	wantGroup := tok.PrimaryGroup()
	var wantACL *ident.ACL
	charged := tok.Statistics().DynamicCharged

	for i := 0; i < 200; i++ {
		if rng.Intn(2) == 0 {
			g := groups[rng.Intn(len(groups))]
			if err := tok.SetPrimaryGroup(g); err != nil {
				t.Fatalf("step %d: set primary group: %v", i, err)
			}
			wantGroup = g
		} else {
			switch n := rng.Intn(8); n {
			case 0:
				if err := tok.SetDefaultDACL(nil); err != nil {
					t.Fatalf("step %d: clear dacl: %v", i, err)
				}
				wantACL = nil
			default:
				acl := testACL(t, n)
				if requiredSize(wantGroup.Len(), acl.Size()) > charged {
					continue
				}
				if err := tok.SetDefaultDACL(&acl); err != nil {
					t.Fatalf("step %d: set dacl: %v", i, err)
				}
				wantACL = &acl
			}
		}

		if got := tok.PrimaryGroup(); !got.Equal(wantGroup) {
			t.Fatalf("step %d: primary group = %s, want %s", i, got, wantGroup)
		}
		got, ok := tok.DefaultDACL()
		if (wantACL != nil) != ok {
			t.Fatalf("step %d: dacl presence = %v", i, ok)
		}
		if ok && !got.Equal(*wantACL) {
			t.Fatalf("step %d: dacl corrupted", i)
		}
	}
	if tok.Statistics().DynamicCharged != charged {
		t.Fatal("dynamic region grew within its charge")
	}
}

func TestDynamicGrowthKeepsPrimaryGroup(t *testing.T) {
	m, _ := newTestManager(t)
	tok := mustCreate(t, m, baseParams())
	defer tok.Release()

	before := m.PoolUsage()
	big := testACL(t, 40)
	if err := tok.SetDefaultDACL(&big); err != nil {
		t.Fatalf("set large dacl: %v", err)
	}
	stats := tok.Statistics()
	if stats.DynamicCharged <= DefaultDynamicCharge {
		t.Fatalf("expected growth, charged = %d", stats.DynamicCharged)
	}
	if m.PoolUsage() <= before {
		t.Fatal("growth not charged to pool")
	}
	if !tok.PrimaryGroup().Equal(testGroup) {
		t.Fatalf("primary group after growth = %s", tok.PrimaryGroup())
	}
	got, _ := tok.DefaultDACL()
	if !got.Equal(big) {
		t.Fatal("dacl after growth differs")
	}
}

func TestDynamicGrowthLimit(t *testing.T) {
	sessions := newFakeSessions(testAuthID, ident.SystemLUID)
	m := NewManager(Config{Sessions: sessions, MaxDynamicCharge: 600})
	tok := mustCreate(t, m, baseParams())
	defer tok.Release()

	big := testACL(t, 40)
	if err := tok.SetDefaultDACL(&big); !errors.Is(err, ErrAllottedSpaceExceeded) {
		t.Fatalf("expected ErrAllottedSpaceExceeded, got %v", err)
	}
	if _, ok := tok.DefaultDACL(); ok {
		t.Fatal("dacl set despite failure")
	}
}

func TestAdjustPrivileges(t *testing.T) {
	m, _ := newTestManager(t)
	tok := mustCreate(t, m, baseParams())
	defer tok.Release()

	prev, err := tok.AdjustPrivileges(false, []privilege.LUIDAndAttributes{
		{LUID: privilege.Shutdown, Attributes: privilege.Enabled},
		{LUID: privilege.Debug, Attributes: privilege.Enabled},
	})
	if !errors.Is(err, ErrNotAllAssigned) {
		t.Fatalf("expected ErrNotAllAssigned, got %v", err)
	}
	if len(prev) != 1 || prev[0].LUID != privilege.Shutdown || prev[0].Enabled() {
		t.Fatalf("previous = %+v", prev)
	}
	if !tok.HasPrivilege(privilege.Shutdown) {
		t.Fatal("held privilege not enabled")
	}

	if _, err := tok.AdjustPrivileges(true, nil); err != nil {
		t.Fatalf("disable all: %v", err)
	}
	if tok.HasPrivilege(privilege.Shutdown) || tok.HasPrivilege(privilege.ChangeNotify) {
		t.Fatal("privileges still enabled")
	}
	if !tok.HasTraversePrivilege() {
		t.Fatal("cached traverse bit must not change")
	}
}

func TestSetAuditPolicyCounters(t *testing.T) {
	m, _ := newTestManager(t)
	tok := mustCreate(t, m, baseParams())

	var pol auditpol.TokenPolicy
	pol[auditpol.CategoryLogon] = auditpol.FailureInclude
	if err := tok.SetAuditPolicy(&pol); err != nil {
		t.Fatalf("set policy: %v", err)
	}
	if m.Counters().Count(auditpol.CategoryLogon) != 1 {
		t.Fatal("counter not incremented")
	}

	var next auditpol.TokenPolicy
	next[auditpol.CategorySystem] = auditpol.SuccessExclude
	if err := tok.SetAuditPolicy(&next); err != nil {
		t.Fatalf("replace policy: %v", err)
	}
	if m.Counters().Count(auditpol.CategoryLogon) != 0 || m.Counters().Count(auditpol.CategorySystem) != 1 {
		t.Fatal(fmt.Sprint("counters after replace: ", m.Counters().Snapshot()))
	}

	tok.Release()
	if m.Counters().Count(auditpol.CategorySystem) != 0 {
		t.Fatal("counter not reversed on destroy")
	}
}
