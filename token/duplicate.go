package token

import (
	"context"

	"github.com/MrEthical07/goRefMon/auditpol"
	"github.com/MrEthical07/goRefMon/ident"
	"github.com/MrEthical07/goRefMon/privilege"
)

// DuplicateParams selects the shape of a duplicated token.
type DuplicateParams struct {
	Type               Type
	ImpersonationLevel ImpersonationLevel
	// EffectiveOnly drops disabled privileges and disabled groups.
	EffectiveOnly bool
}

// FilterParams describes the restrictions applied by Filter.
type FilterParams struct {
	// DisableMaxPrivilege deletes every privilege except change-notify.
	DisableMaxPrivilege bool
	PrivilegesToDelete  []ident.LUID
	// SIDsToDisable become deny-only in the new token.
	SIDsToDisable  []ident.SID
	RestrictedSIDs []ident.SIDAndAttributes
}

// snapshot is a private copy of a token's mutable state taken under its read
// lock.
type snapshot struct {
	modifiedID    ident.LUID
	sessionID     uint32
	userAndGroups []ident.SIDAndAttributes
	restricted    []ident.SIDAndAttributes
	privileges    []privilege.LUIDAndAttributes
	ownerIndex    int
	dyn           dynamicPart
	auditPolicy   *auditpol.TokenPolicy
	proxyData     []byte
	auditData     []byte
}

func (t *Token) snapshot() snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := snapshot{
		modifiedID:    t.modifiedID,
		sessionID:     t.sessionID,
		userAndGroups: append([]ident.SIDAndAttributes(nil), t.userAndGroups...),
		restricted:    append([]ident.SIDAndAttributes(nil), t.restricted...),
		privileges:    append([]privilege.LUIDAndAttributes(nil), t.privileges...),
		ownerIndex:    t.ownerIndex,
		dyn:           t.dyn.clone(),
		proxyData:     append([]byte(nil), t.proxyData...),
		auditData:     append([]byte(nil), t.auditData...),
	}
	if t.auditPolicy != nil {
		p := *t.auditPolicy
		s.auditPolicy = &p
	}
	return s
}

// Duplicate makes a sibling of src: same parent, new token ID, its own logon
// session reference and audit-policy counter contribution. The duplicate is
// inserted into the live table.
func (m *Manager) Duplicate(ctx context.Context, src *Token, p DuplicateParams) (*Token, error) {
	if src == nil {
		return nil, ErrNoToken
	}
	if !p.Type.Valid() {
		return nil, ErrBadTokenType
	}
	level := p.ImpersonationLevel
	if p.Type == TypeImpersonation {
		if !level.Valid() {
			return nil, ErrBadImpersonationLevel
		}
		if src.typ == TypeImpersonation && level > src.level {
			return nil, ErrBadImpersonationLevel
		}
	} else {
		level = LevelAnonymous
		if src.typ == TypeImpersonation && src.level < LevelImpersonation {
			return nil, ErrBadImpersonationLevel
		}
	}

	s := src.snapshot()
	f := src.flags &^ flagSessionNotReferenced
	if p.EffectiveOnly {
		f = s.effectiveOnly(f)
	}

	t := &Token{
		mgr:              m,
		id:               m.ids.Allocate(),
		authID:           src.authID,
		parentID:         src.parentID,
		originatingLogon: src.originatingLogon,
		source:           src.source,
		typ:              p.Type,
		level:            level,
		expiration:       src.expiration,
		flags:            f,
		dynLimit:         m.maxCharge,
	}
	if err := m.build(ctx, t, s, s.modifiedID); err != nil {
		return nil, err
	}
	m.insert(t)
	return t, nil
}

// Filter makes a restricted child of src: privileges may be deleted, groups
// turned deny-only and restricted SIDs added. The child is inserted into the
// live table.
func (m *Manager) Filter(ctx context.Context, src *Token, p FilterParams) (*Token, error) {
	if src == nil {
		return nil, ErrNoToken
	}
	for _, sid := range p.SIDsToDisable {
		if !sid.IsValid() {
			return nil, ErrInvalidParameter
		}
	}
	for _, r := range p.RestrictedSIDs {
		if !r.SID.IsValid() {
			return nil, ErrInvalidParameter
		}
	}

	s := src.snapshot()
	f := (src.flags &^ flagSessionNotReferenced) | flagIsFiltered

	kept := s.privileges[:0]
	for _, priv := range s.privileges {
		drop := false
		if p.DisableMaxPrivilege {
			drop = priv.LUID != privilege.ChangeNotify
		}
		for _, del := range p.PrivilegesToDelete {
			if priv.LUID == del {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, priv)
			continue
		}
		switch priv.LUID {
		case privilege.ChangeNotify:
			f &^= flagHasTraversePrivilege
		case privilege.Impersonate:
			f &^= flagHasImpersonatePrivilege
		}
	}
	s.privileges = kept
	if p.DisableMaxPrivilege {
		f &^= flagHasImpersonatePrivilege
	}

	for i := range s.userAndGroups {
		e := &s.userAndGroups[i]
		if !sidIn(p.SIDsToDisable, e.SID) {
			continue
		}
		e.Attributes = e.Attributes.Clear(ident.GroupEnabled|ident.GroupEnabledByDefault) | ident.GroupUseForDenyOnly
		if i == s.ownerIndex {
			s.ownerIndex = 0
		}
		if e.SID.Equal(ident.AdministratorsSID) {
			f &^= flagHasAdminGroup
		}
	}

	if len(p.RestrictedSIDs) > 0 {
		var restricted []ident.SIDAndAttributes
		for _, r := range p.RestrictedSIDs {
			if len(s.restricted) == 0 || containsSID(s.restricted, r.SID) {
				restricted = append(restricted, ident.SIDAndAttributes{
					SID:        r.SID,
					Attributes: ident.GroupMandatory | ident.GroupEnabled | ident.GroupEnabledByDefault,
				})
			}
		}
		if len(s.restricted) > 0 && len(restricted) == 0 {
			return nil, ErrInvalidParameter
		}
		s.restricted = restricted
	}
	if len(s.restricted) > 0 {
		f |= flagIsRestricted
	}

	t := &Token{
		mgr:              m,
		id:               m.ids.Allocate(),
		authID:           src.authID,
		parentID:         src.id,
		originatingLogon: src.originatingLogon,
		source:           src.source,
		typ:              src.typ,
		level:            src.level,
		expiration:       src.expiration,
		flags:            f,
		dynLimit:         m.maxCharge,
	}
	if err := m.build(ctx, t, s, m.ids.Allocate()); err != nil {
		return nil, err
	}
	m.insert(t)
	return t, nil
}

// build charges, references and populates t from s. On failure t has already
// been released.
func (m *Manager) build(ctx context.Context, t *Token, s snapshot, modified ident.LUID) error {
	t.refs.Store(1)
	t.modifiedID = modified
	t.charge = tokenHeaderSize + variableSize(s.privileges, s.userAndGroups, s.restricted) + s.dyn.charged()
	if err := m.charge(t.charge); err != nil {
		return err
	}
	if err := m.referenceSession(ctx, t); err != nil {
		return err
	}

	t.sessionID = s.sessionID
	t.userAndGroups = s.userAndGroups
	t.restricted = s.restricted
	t.privileges = s.privileges
	t.ownerIndex = s.ownerIndex
	t.dyn = s.dyn
	if len(s.proxyData) > 0 {
		t.proxyData = s.proxyData
	}
	if len(s.auditData) > 0 {
		t.auditData = s.auditData
	}
	if s.auditPolicy != nil {
		t.auditPolicy = s.auditPolicy
		m.counters.Add(t.auditPolicy)
	}
	return nil
}

// effectiveOnly drops disabled privileges and disabled, non-deny-only groups.
// The user entry is never dropped.
func (s *snapshot) effectiveOnly(f flags) flags {
	privs := s.privileges[:0]
	for _, p := range s.privileges {
		if p.Enabled() {
			privs = append(privs, p)
		}
	}
	s.privileges = privs

	owner := s.userAndGroups[s.ownerIndex].SID
	set := s.userAndGroups[:1]
	for _, g := range s.userAndGroups[1:] {
		if !g.Attributes.Has(ident.GroupEnabled) && !g.Attributes.Has(ident.GroupUseForDenyOnly) {
			if g.SID.Equal(ident.AdministratorsSID) {
				f &^= flagHasAdminGroup
			}
			continue
		}
		set = append(set, g)
	}
	s.userAndGroups = set

	s.ownerIndex = 0
	for i, e := range set {
		if e.SID.Equal(owner) {
			s.ownerIndex = i
			break
		}
	}
	return f
}

func sidIn(list []ident.SID, sid ident.SID) bool {
	for _, s := range list {
		if s.Equal(sid) {
			return true
		}
	}
	return false
}
