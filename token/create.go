package token

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goRefMon/auditpol"
	"github.com/MrEthical07/goRefMon/ident"
	"github.com/MrEthical07/goRefMon/privilege"
)

// CreateParams describes a token to construct.
type CreateParams struct {
	Type               Type
	ImpersonationLevel ImpersonationLevel
	AuthID             ident.LUID
	Expiration         time.Time
	User               ident.SIDAndAttributes
	Groups             []ident.SIDAndAttributes
	Privileges         []privilege.LUIDAndAttributes
	// Owner defaults to the user when zero.
	Owner        ident.SID
	PrimaryGroup ident.SID
	DefaultDACL  *ident.ACL
	Source       Source
	AuditPolicy  *auditpol.TokenPolicy
	ProxyData    []byte
	AuditData    []byte
}

func (p *CreateParams) validate() error {
	if !p.Type.Valid() {
		return ErrBadTokenType
	}
	if p.Type == TypeImpersonation && !p.ImpersonationLevel.Valid() {
		return ErrBadImpersonationLevel
	}
	if !p.User.SID.IsValid() || !p.PrimaryGroup.IsValid() {
		return ErrInvalidParameter
	}
	for _, g := range p.Groups {
		if !g.SID.IsValid() {
			return ErrInvalidParameter
		}
	}
	if p.DefaultDACL != nil && !p.DefaultDACL.IsValid() {
		return ErrInvalidParameter
	}
	if p.AuditPolicy != nil {
		if err := p.AuditPolicy.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidParameter, err)
		}
	}
	return nil
}

// ownerIndex resolves the default owner against the principal set, where
// index 0 is the user.
func ownerIndex(owner ident.SID, set []ident.SIDAndAttributes) (int, error) {
	if !owner.IsValid() || owner.Equal(set[0].SID) {
		return 0, nil
	}
	for i := 1; i < len(set); i++ {
		if set[i].SID.Equal(owner) {
			if !set[i].Attributes.Has(ident.GroupOwner) {
				return 0, ErrInvalidOwner
			}
			return i, nil
		}
	}
	return 0, ErrInvalidOwner
}

func containsSID(set []ident.SIDAndAttributes, sid ident.SID) bool {
	for _, e := range set {
		if e.SID.Equal(sid) {
			return true
		}
	}
	return false
}

// variableSize is the charge for the privileges array, the principal-set
// array and the SID bodies, each pointer aligned.
func variableSize(privs []privilege.LUIDAndAttributes, sets ...[]ident.SIDAndAttributes) int {
	n := alignUp(len(privs) * privilege.EntrySize)
	for _, set := range sets {
		n += alignUp(len(set) * ident.SIDAndAttributesSize)
		for _, e := range set {
			n += alignUp(e.SID.Len())
		}
	}
	return n
}

// tokenHeaderSize is the fixed per-token charge.
const tokenHeaderSize = 256

func computeFlags(set []ident.SIDAndAttributes, privs []privilege.LUIDAndAttributes) flags {
	var f flags
	for _, g := range set[1:] {
		if g.SID.Equal(ident.AdministratorsSID) {
			f |= flagHasAdminGroup
			break
		}
	}
	for _, p := range privs {
		if !p.Enabled() {
			continue
		}
		switch p.LUID {
		case privilege.ChangeNotify:
			f |= flagHasTraversePrivilege
		case privilege.Impersonate:
			f |= flagHasImpersonatePrivilege
		}
	}
	return f
}

// Create builds a token on behalf of requestor, which must hold the
// create-token privilege enabled, and inserts it into the live table.
func (m *Manager) Create(ctx context.Context, requestor *Token, p CreateParams) (*Token, error) {
	t, err := m.create(ctx, p)
	if err != nil {
		return nil, err
	}
	if requestor == nil {
		t.Release()
		return nil, ErrNoToken
	}
	if !requestor.HasPrivilege(privilege.CreateToken) {
		t.Release()
		return nil, ErrPrivilegeNotHeld
	}
	m.insert(t)
	return t, nil
}

// CreateSystemToken is the bootstrap construction path: no privilege check
// and no live-table insertion.
func (m *Manager) CreateSystemToken(ctx context.Context, p CreateParams) (*Token, error) {
	return m.create(ctx, p)
}

func (m *Manager) create(ctx context.Context, p CreateParams) (*Token, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	set := make([]ident.SIDAndAttributes, 0, len(p.Groups)+1)
	set = append(set, p.User)
	for _, g := range p.Groups {
		if g.Attributes.Has(ident.GroupMandatory) {
			g.Attributes |= ident.GroupEnabled | ident.GroupEnabledByDefault
		}
		set = append(set, g)
	}
	privs := append([]privilege.LUIDAndAttributes(nil), p.Privileges...)

	if !containsSID(set, p.PrimaryGroup) {
		return nil, ErrInvalidPrimaryGroup
	}
	owner, err := ownerIndex(p.Owner, set)
	if err != nil {
		return nil, err
	}

	var (
		dacl    ident.ACL
		hasDACL bool
		daclLen int
	)
	if p.DefaultDACL != nil {
		dacl, hasDACL, daclLen = *p.DefaultDACL, true, p.DefaultDACL.Size()
	}
	dynCharge := requiredSize(p.PrimaryGroup.Len(), daclLen)
	if dynCharge < m.defaultCharge {
		dynCharge = m.defaultCharge
	}
	if dynCharge > m.maxCharge {
		return nil, ErrAllottedSpaceExceeded
	}

	level := p.ImpersonationLevel
	if p.Type == TypePrimary {
		level = LevelAnonymous
	}

	t := &Token{
		mgr:        m,
		id:         m.ids.Allocate(),
		authID:     p.AuthID,
		source:     p.Source,
		typ:        p.Type,
		level:      level,
		expiration: p.Expiration,
		flags:      computeFlags(set, privs),
		modifiedID: m.ids.Allocate(),
		ownerIndex: owner,
		dynLimit:   m.maxCharge,
	}
	t.refs.Store(1)

	t.charge = tokenHeaderSize + variableSize(privs, set) + dynCharge
	if err := m.charge(t.charge); err != nil {
		return nil, err
	}

	if err := m.referenceSession(ctx, t); err != nil {
		return nil, err
	}

	if len(p.ProxyData) > 0 {
		t.proxyData = append([]byte(nil), p.ProxyData...)
	}
	if len(p.AuditData) > 0 {
		t.auditData = append([]byte(nil), p.AuditData...)
	}
	t.privileges = privs
	t.userAndGroups = set
	t.dyn = newDynamicPart(p.PrimaryGroup, dacl, hasDACL, dynCharge)

	if p.AuditPolicy != nil && !p.AuditPolicy.IsEmpty() {
		pol := *p.AuditPolicy
		t.auditPolicy = &pol
		m.counters.Add(t.auditPolicy)
	}
	return t, nil
}

// referenceSession takes the token's logon session reference. On failure the
// token is released through the normal destruction path with the
// not-referenced flag set.
func (m *Manager) referenceSession(ctx context.Context, t *Token) error {
	if m.sessions == nil {
		t.flags |= flagSessionNotReferenced
		return nil
	}
	if err := m.sessions.Reference(ctx, t.authID); err != nil {
		t.flags |= flagSessionNotReferenced
		t.Release()
		return fmt.Errorf("%w: %w", ErrNoSuchLogonSession, err)
	}
	return nil
}

// MakeSystemToken builds the LocalSystem primary token used to bootstrap the
// first process. The SYSTEM logon session must already exist.
func (m *Manager) MakeSystemToken(ctx context.Context) (*Token, error) {
	const enabled = privilege.EnabledByDefault | privilege.Enabled
	privs := []privilege.LUIDAndAttributes{
		{LUID: privilege.TCB, Attributes: enabled},
		{LUID: privilege.CreateToken},
		{LUID: privilege.TakeOwnership},
		{LUID: privilege.CreatePagefile, Attributes: enabled},
		{LUID: privilege.LockMemory, Attributes: enabled},
		{LUID: privilege.AssignPrimaryToken},
		{LUID: privilege.IncreaseQuota},
		{LUID: privilege.IncreaseBasePriority, Attributes: enabled},
		{LUID: privilege.CreatePermanent, Attributes: enabled},
		{LUID: privilege.Debug, Attributes: enabled},
		{LUID: privilege.Audit, Attributes: enabled},
		{LUID: privilege.Security},
		{LUID: privilege.SystemEnvironment},
		{LUID: privilege.ChangeNotify, Attributes: enabled},
		{LUID: privilege.Backup},
		{LUID: privilege.Restore},
		{LUID: privilege.Shutdown},
		{LUID: privilege.LoadDriver},
		{LUID: privilege.SystemProfile, Attributes: enabled},
		{LUID: privilege.Systemtime},
		{LUID: privilege.Impersonate, Attributes: enabled},
		{LUID: privilege.CreateGlobal, Attributes: enabled},
	}
	const mandatory = ident.GroupMandatory | ident.GroupEnabled | ident.GroupEnabledByDefault
	groups := []ident.SIDAndAttributes{
		{SID: ident.AdministratorsSID, Attributes: mandatory | ident.GroupOwner},
		{SID: ident.EveryoneSID, Attributes: mandatory},
		{SID: ident.AuthenticatedUsersSID, Attributes: mandatory},
	}
	dacl, err := ident.BuildACL(
		ident.ACE{Type: ident.AccessAllowedACEType, Mask: ident.GenericAll, SID: ident.LocalSystemSID},
		ident.ACE{Type: ident.AccessAllowedACEType, Mask: ident.GenericRead | ident.GenericExecute | ident.ReadControl, SID: ident.AdministratorsSID},
	)
	if err != nil {
		return nil, err
	}
	return m.CreateSystemToken(ctx, CreateParams{
		Type:         TypePrimary,
		AuthID:       ident.SystemLUID,
		User:         ident.SIDAndAttributes{SID: ident.LocalSystemSID},
		Groups:       groups,
		Privileges:   privs,
		Owner:        ident.AdministratorsSID,
		PrimaryGroup: ident.LocalSystemSID,
		DefaultDACL:  &dacl,
		Source:       NewSource("*SYSTEM*", 0),
	})
}

// MakeAnonymousToken builds the anonymous impersonation token. The anonymous
// logon session must already exist.
func (m *Manager) MakeAnonymousToken(ctx context.Context) (*Token, error) {
	const mandatory = ident.GroupMandatory | ident.GroupEnabled | ident.GroupEnabledByDefault
	return m.CreateSystemToken(ctx, CreateParams{
		Type:               TypeImpersonation,
		ImpersonationLevel: LevelImpersonation,
		AuthID:             ident.AnonymousLogonLUID,
		User:               ident.SIDAndAttributes{SID: ident.AnonymousSID},
		Groups: []ident.SIDAndAttributes{
			{SID: ident.EveryoneSID, Attributes: mandatory},
			{SID: ident.NetworkSID, Attributes: mandatory},
		},
		PrimaryGroup: ident.AnonymousSID,
		Source:       NewSource("*SYSTEM*", 0),
	})
}
