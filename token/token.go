package token

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goRefMon/auditpol"
	"github.com/MrEthical07/goRefMon/ident"
	"github.com/MrEthical07/goRefMon/privilege"
)

// Token is an access token. Tokens are created by a [Manager] and shared by
// reference; see [Token.Reference] and [Token.Release].
type Token struct {
	mgr       *Manager
	refs      atomic.Int32
	destroyed atomic.Bool
	inserted  bool

	// Set before the token is visible; read without locking.
	id               ident.LUID
	authID           ident.LUID
	parentID         ident.LUID
	originatingLogon ident.LUID
	source           Source
	typ              Type
	level            ImpersonationLevel
	expiration       time.Time
	flags            flags

	mu            sync.RWMutex
	modifiedID    ident.LUID
	inUse         bool
	sessionID     uint32
	userAndGroups []ident.SIDAndAttributes
	restricted    []ident.SIDAndAttributes
	privileges    []privilege.LUIDAndAttributes
	ownerIndex    int
	dyn           dynamicPart
	dynLimit      int
	auditPolicy   *auditpol.TokenPolicy
	proxyData     []byte
	auditData     []byte
	charge        int
}

// Reference takes an additional reference. It panics if the token has
// already been destroyed.
func (t *Token) Reference() {
	if t.refs.Add(1) <= 1 {
		panic("token: reference taken on destroyed token")
	}
}

// tryReference takes a reference only while the token is still live.
func (t *Token) tryReference() bool {
	for {
		n := t.refs.Load()
		if n <= 0 {
			return false
		}
		if t.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops a reference and destroys the token when it was the last.
func (t *Token) Release() {
	n := t.refs.Add(-1)
	if n < 0 {
		panic("token: release without reference")
	}
	if n == 0 {
		t.destroy()
	}
}

// References reports the current reference count. Intended for tests and
// diagnostics only.
func (t *Token) References() int32 { return t.refs.Load() }

// destroy runs once, in order: logon session release, audit-policy counter
// reversal, then release of owned regions and the pool charge.
func (t *Token) destroy() {
	if !t.destroyed.CompareAndSwap(false, true) {
		return
	}
	m := t.mgr

	if t.flags&flagSessionNotReferenced == 0 && m.sessions != nil {
		if err := m.sessions.Dereference(context.Background(), t.authID); err != nil {
			m.logger.Warn("token: logon session dereference failed",
				"token_id", t.id.String(), "auth_id", t.authID.String(), "error", err)
		}
	}

	t.mu.Lock()
	if t.auditPolicy != nil {
		m.counters.Remove(t.auditPolicy)
		t.auditPolicy = nil
	}
	t.privileges = nil
	t.userAndGroups = nil
	t.restricted = nil
	t.dyn.free()
	t.proxyData = nil
	t.auditData = nil
	t.mu.Unlock()

	m.forget(t)
	m.uncharge(t.charge)
}

// Destroyed reports whether the last reference has been released.
func (t *Token) Destroyed() bool { return t.destroyed.Load() }

func (t *Token) ID() ident.LUID { return t.id }

func (t *Token) AuthID() ident.LUID { return t.authID }

func (t *Token) ParentID() ident.LUID { return t.parentID }

func (t *Token) OriginatingLogon() ident.LUID { return t.originatingLogon }

func (t *Token) Source() Source { return t.source }

func (t *Token) Type() Type { return t.typ }

func (t *Token) Expiration() time.Time { return t.expiration }

// ImpersonationLevel is meaningful for impersonation tokens only.
func (t *Token) ImpersonationLevel() ImpersonationLevel { return t.level }

// IsAdmin reports whether the token carries the Administrators group.
func (t *Token) IsAdmin() bool { return t.flags&flagHasAdminGroup != 0 }

// IsRestricted reports whether the token carries restricted SIDs.
func (t *Token) IsRestricted() bool { return t.flags&flagIsRestricted != 0 }

// IsFiltered reports whether the token was produced by Filter.
func (t *Token) IsFiltered() bool { return t.flags&flagIsFiltered != 0 }

// HasTraversePrivilege reports the cached change-notify bit.
func (t *Token) HasTraversePrivilege() bool { return t.flags&flagHasTraversePrivilege != 0 }

// SessionReferenced reports whether the token holds a logon session reference.
func (t *Token) SessionReferenced() bool { return t.flags&flagSessionNotReferenced == 0 }

// Read runs fn with the read lock held. Accessors on the [Reader] do not
// lock, so fn may call them any number of times, including from code that
// builds audit parameters.
func (t *Token) Read(fn func(r Reader)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn(Reader{t: t})
}

// ControlInfo returns identifiers and the current modified ID.
func (t *Token) ControlInfo() ControlInfo {
	info := ControlInfo{AuthID: t.authID, TokenID: t.id, Source: t.source}
	t.mu.RLock()
	info.ModifiedID = t.modifiedID
	t.mu.RUnlock()
	return info
}

func (t *Token) User() (out ident.SIDAndAttributes) {
	t.Read(func(r Reader) { out = r.User() })
	return out
}

func (t *Token) Groups() (out []ident.SIDAndAttributes) {
	t.Read(func(r Reader) { out = r.Groups() })
	return out
}

func (t *Token) RestrictedSIDs() (out []ident.SIDAndAttributes) {
	t.Read(func(r Reader) { out = r.RestrictedSIDs() })
	return out
}

func (t *Token) Privileges() (out []privilege.LUIDAndAttributes) {
	t.Read(func(r Reader) { out = r.Privileges() })
	return out
}

func (t *Token) Owner() (out ident.SID) {
	t.Read(func(r Reader) { out = r.Owner() })
	return out
}

func (t *Token) PrimaryGroup() (out ident.SID) {
	t.Read(func(r Reader) { out = r.PrimaryGroup() })
	return out
}

func (t *Token) DefaultDACL() (acl ident.ACL, ok bool) {
	t.Read(func(r Reader) { acl, ok = r.DefaultDACL() })
	return acl, ok
}

func (t *Token) SessionID() (out uint32) {
	t.Read(func(r Reader) { out = r.SessionID() })
	return out
}

func (t *Token) InUse() (out bool) {
	t.Read(func(r Reader) { out = r.InUse() })
	return out
}

func (t *Token) ModifiedID() (out ident.LUID) {
	t.Read(func(r Reader) { out = r.ModifiedID() })
	return out
}

// HasPrivilege reports whether luid is held and enabled.
func (t *Token) HasPrivilege(luid ident.LUID) (out bool) {
	t.Read(func(r Reader) { out = r.HasPrivilege(luid) })
	return out
}

// AuditPolicy returns a copy of the overlay, or nil when none is set.
func (t *Token) AuditPolicy() (out *auditpol.TokenPolicy) {
	t.Read(func(r Reader) { out = r.AuditPolicy() })
	return out
}

func (t *Token) Statistics() (out Statistics) {
	t.Read(func(r Reader) { out = r.Statistics() })
	return out
}

// Reader is a lock-free view of a token handed out by [Token.Read]. It must
// not escape the callback.
type Reader struct {
	t *Token
}

// Token returns the token being read.
func (r Reader) Token() *Token { return r.t }

func (r Reader) User() ident.SIDAndAttributes { return r.t.userAndGroups[0] }

func (r Reader) Groups() []ident.SIDAndAttributes {
	return append([]ident.SIDAndAttributes(nil), r.t.userAndGroups[1:]...)
}

func (r Reader) RestrictedSIDs() []ident.SIDAndAttributes {
	return append([]ident.SIDAndAttributes(nil), r.t.restricted...)
}

func (r Reader) Privileges() []privilege.LUIDAndAttributes {
	return append([]privilege.LUIDAndAttributes(nil), r.t.privileges...)
}

// PrivilegeSet returns the held privileges as a set.
func (r Reader) PrivilegeSet() privilege.Set {
	return privilege.Set{Privileges: r.Privileges()}
}

func (r Reader) OwnerIndex() int { return r.t.ownerIndex }

func (r Reader) Owner() ident.SID { return r.t.userAndGroups[r.t.ownerIndex].SID }

func (r Reader) PrimaryGroup() ident.SID { return r.t.dyn.primaryGroup() }

func (r Reader) DefaultDACL() (ident.ACL, bool) { return r.t.dyn.defaultDACL() }

func (r Reader) SessionID() uint32 { return r.t.sessionID }

func (r Reader) InUse() bool { return r.t.inUse }

func (r Reader) ModifiedID() ident.LUID { return r.t.modifiedID }

func (r Reader) HasPrivilege(luid ident.LUID) bool {
	for _, p := range r.t.privileges {
		if p.LUID == luid {
			return p.Enabled()
		}
	}
	return false
}

// AuditMask returns the overlay mask for cat, zero when no overlay is set.
func (r Reader) AuditMask(cat auditpol.Category) auditpol.Mask {
	if r.t.auditPolicy == nil || !cat.Valid() {
		return 0
	}
	return r.t.auditPolicy[cat]
}

func (r Reader) AuditPolicy() *auditpol.TokenPolicy {
	if r.t.auditPolicy == nil {
		return nil
	}
	p := *r.t.auditPolicy
	return &p
}

func (r Reader) Statistics() Statistics {
	t := r.t
	return Statistics{
		TokenID:            t.id,
		AuthID:             t.authID,
		ModifiedID:         t.modifiedID,
		Expiration:         t.expiration,
		Type:               t.typ,
		ImpersonationLevel: t.level,
		DynamicCharged:     t.dyn.charged(),
		DynamicAvailable:   t.dyn.available(),
		GroupCount:         len(t.userAndGroups) - 1,
		PrivilegeCount:     len(t.privileges),
	}
}
