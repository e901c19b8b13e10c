package token

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/goRefMon/auditpol"
	"github.com/MrEthical07/goRefMon/ident"
	"github.com/MrEthical07/goRefMon/privilege"
)

func TestDuplicateIsSibling(t *testing.T) {
	m, sessions := newTestManager(t)
	p := baseParams()
	var pol auditpol.TokenPolicy
	pol[auditpol.CategoryPrivilegeUse] = auditpol.SuccessInclude
	p.AuditPolicy = &pol
	src := mustCreate(t, m, p)
	defer src.Release()

	dup, err := m.Duplicate(context.Background(), src, DuplicateParams{Type: TypeImpersonation, ImpersonationLevel: LevelDelegation})
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if dup.ID() == src.ID() || !IsSibling(src, dup) || IsChild(src, dup) {
		t.Fatal("duplicate must be a sibling with its own id")
	}
	if sessions.count(testAuthID) != 2 {
		t.Fatalf("session refs = %d", sessions.count(testAuthID))
	}
	if m.Counters().Count(auditpol.CategoryPrivilegeUse) != 2 {
		t.Fatal("duplicate did not add policy counters")
	}
	if eq, err := Compare(src, dup); err != nil || !eq {
		t.Fatalf("compare = %v, %v", eq, err)
	}

	if _, err := m.Duplicate(context.Background(), dup, DuplicateParams{Type: TypeImpersonation, ImpersonationLevel: 9}); !errors.Is(err, ErrBadImpersonationLevel) {
		t.Fatalf("expected ErrBadImpersonationLevel, got %v", err)
	}

	dup.Release()
	if sessions.count(testAuthID) != 1 || m.Counters().Count(auditpol.CategoryPrivilegeUse) != 1 {
		t.Fatal("duplicate destroy did not release its share")
	}
}

func TestDuplicateCannotRaiseLevel(t *testing.T) {
	m, _ := newTestManager(t)
	p := baseParams()
	p.Type = TypeImpersonation
	p.ImpersonationLevel = LevelIdentification
	src := mustCreate(t, m, p)
	defer src.Release()

	if _, err := m.Duplicate(context.Background(), src, DuplicateParams{Type: TypeImpersonation, ImpersonationLevel: LevelImpersonation}); !errors.Is(err, ErrBadImpersonationLevel) {
		t.Fatalf("expected ErrBadImpersonationLevel, got %v", err)
	}
	if _, err := m.Duplicate(context.Background(), src, DuplicateParams{Type: TypePrimary}); !errors.Is(err, ErrBadImpersonationLevel) {
		t.Fatalf("expected ErrBadImpersonationLevel for primary, got %v", err)
	}
	low, err := m.Duplicate(context.Background(), src, DuplicateParams{Type: TypeImpersonation, ImpersonationLevel: LevelAnonymous})
	if err != nil {
		t.Fatalf("lowering level: %v", err)
	}
	low.Release()
}

func TestDuplicateEffectiveOnly(t *testing.T) {
	m, _ := newTestManager(t)
	p := baseParams()
	p.Groups = append(p.Groups, ident.SIDAndAttributes{SID: ident.UsersSID})
	p.Groups[2].Attributes = 0
	src := mustCreate(t, m, p)
	defer src.Release()

	dup, err := m.Duplicate(context.Background(), src, DuplicateParams{Type: TypePrimary, EffectiveOnly: true})
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	defer dup.Release()

	for _, g := range dup.Groups() {
		if g.SID.Equal(ident.UsersSID) || g.SID.Equal(ident.AdministratorsSID) {
			t.Fatalf("disabled group %s kept", g.SID)
		}
	}
	if dup.IsAdmin() {
		t.Fatal("admin flag kept after administrators group dropped")
	}
	for _, priv := range dup.Privileges() {
		if !priv.Enabled() {
			t.Fatalf("disabled privilege %d kept", priv.LUID)
		}
	}
	if eq, _ := Compare(src, dup); eq {
		t.Fatal("effective-only duplicate should differ")
	}
}

func TestFilterMakesRestrictedChild(t *testing.T) {
	m, _ := newTestManager(t)
	p := baseParams()
	p.Owner = testGroup
	p.Privileges = append(p.Privileges, privilege.LUIDAndAttributes{LUID: privilege.Impersonate, Attributes: privilege.Enabled})
	src := mustCreate(t, m, p)
	defer src.Release()

	child, err := m.Filter(context.Background(), src, FilterParams{
		DisableMaxPrivilege: true,
		SIDsToDisable:       []ident.SID{testGroup, ident.AdministratorsSID},
		RestrictedSIDs:      []ident.SIDAndAttributes{{SID: ident.RestrictedCodeSID}},
	})
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	defer child.Release()

	if !IsChild(src, child) || IsSibling(src, child) {
		t.Fatal("filtered token must be a child")
	}
	if !child.IsRestricted() || !child.IsFiltered() || child.IsAdmin() {
		t.Fatal("filtered flags")
	}
	privs := child.Privileges()
	if len(privs) != 1 || privs[0].LUID != privilege.ChangeNotify {
		t.Fatalf("privileges = %+v", privs)
	}
	if !child.Owner().Equal(testUser) {
		t.Fatalf("owner = %s, want user after owner group disabled", child.Owner())
	}
	for _, g := range child.Groups() {
		if g.SID.Equal(testGroup) && (!g.Attributes.Has(ident.GroupUseForDenyOnly) || g.Attributes.Has(ident.GroupEnabled)) {
			t.Fatalf("group not deny-only: %#x", g.Attributes)
		}
	}
	restricted := child.RestrictedSIDs()
	if len(restricted) != 1 || !restricted[0].Attributes.Has(ident.GroupMandatory|ident.GroupEnabled) {
		t.Fatalf("restricted = %+v", restricted)
	}

	if eq, _ := Compare(src, child); eq {
		t.Fatal("restricted and unrestricted tokens compare equal")
	}

	// Restricting further must intersect with the existing set.
	if _, err := m.Filter(context.Background(), child, FilterParams{
		RestrictedSIDs: []ident.SIDAndAttributes{{SID: ident.EveryoneSID}},
	}); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestCompareIgnoresOrder(t *testing.T) {
	m, _ := newTestManager(t)
	a := mustCreate(t, m, baseParams())
	defer a.Release()

	p := baseParams()
	p.Groups[0], p.Groups[2] = p.Groups[2], p.Groups[0]
	p.Privileges[0], p.Privileges[1] = p.Privileges[1], p.Privileges[0]
	b := mustCreate(t, m, p)
	defer b.Release()

	if eq, err := Compare(a, b); err != nil || !eq {
		t.Fatalf("compare = %v, %v", eq, err)
	}
	if _, err := b.AdjustPrivileges(false, []privilege.LUIDAndAttributes{{LUID: privilege.Shutdown, Attributes: privilege.Enabled}}); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if eq, _ := Compare(a, b); eq {
		t.Fatal("privilege enabled state ignored")
	}
	if _, err := Compare(a, nil); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}

func TestDuplicateAndFilterTrackedInLiveTable(t *testing.T) {
	m, _ := newTestManager(t)
	src := mustCreate(t, m, baseParams())
	defer src.Release()

	dup, err := m.Duplicate(context.Background(), src, DuplicateParams{Type: TypePrimary})
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	child, err := m.Filter(context.Background(), src, FilterParams{DisableMaxPrivilege: true})
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if m.Live() != 3 {
		t.Fatalf("live = %d, want 3", m.Live())
	}
	for _, tok := range []*Token{dup, child} {
		got, ok := m.Lookup(tok.ID())
		if !ok || got != tok {
			t.Fatalf("token %d not found in live table", tok.ID())
		}
		got.Release()
	}

	dup.Release()
	child.Release()
	if m.Live() != 1 {
		t.Fatalf("live = %d after release, want 1", m.Live())
	}
	if _, ok := m.Lookup(dup.ID()); ok {
		t.Fatal("released duplicate still in live table")
	}
}
