package token

import (
	"github.com/MrEthical07/goRefMon/auditpol"
	"github.com/MrEthical07/goRefMon/ident"
	"github.com/MrEthical07/goRefMon/privilege"
)

// SetOwner makes sid the default owner. sid must be the user or a group
// carrying the owner attribute.
func (t *Token) SetOwner(sid ident.SID) error {
	if !sid.IsValid() {
		return ErrInvalidOwner
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	idx, err := ownerIndex(sid, t.userAndGroups)
	if err != nil {
		return err
	}
	t.ownerIndex = idx
	t.modifiedID = t.mgr.ids.Allocate()
	return nil
}

// SetPrimaryGroup replaces the primary group. sid must be the user or one of
// the token's groups.
func (t *Token) SetPrimaryGroup(sid ident.SID) error {
	if !sid.IsValid() {
		return ErrInvalidPrimaryGroup
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !containsSID(t.userAndGroups, sid) {
		return ErrInvalidPrimaryGroup
	}
	if err := t.ensureDynamic(requiredSize(sid.Len(), t.dyn.daclLen)); err != nil {
		return err
	}
	t.dyn.replace(fieldPrimaryGroup, sid.Bytes())
	t.modifiedID = t.mgr.ids.Allocate()
	return nil
}

// SetDefaultDACL replaces the default DACL. A nil acl removes it.
func (t *Token) SetDefaultDACL(acl *ident.ACL) error {
	var data []byte
	if acl != nil {
		if !acl.IsValid() {
			return ErrInvalidParameter
		}
		data = acl.Bytes()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ensureDynamic(requiredSize(t.dyn.groupLen, len(data))); err != nil {
		return err
	}
	t.dyn.replace(fieldDefaultDACL, data)
	t.modifiedID = t.mgr.ids.Allocate()
	return nil
}

// ensureDynamic grows the dynamic region to hold size bytes, charging the
// difference to the pool. Caller holds the write lock.
func (t *Token) ensureDynamic(size int) error {
	old := t.dyn.charged()
	if size <= old {
		return nil
	}
	if size > t.dynLimit {
		return ErrAllottedSpaceExceeded
	}
	delta := size - old
	if err := t.mgr.charge(delta); err != nil {
		return err
	}
	if err := t.dyn.grow(size, t.dynLimit); err != nil {
		t.mgr.uncharge(delta)
		return err
	}
	t.charge += delta
	return nil
}

// SetSessionID stamps the terminal session the token belongs to.
func (t *Token) SetSessionID(id uint32) {
	t.mu.Lock()
	t.sessionID = id
	t.modifiedID = t.mgr.ids.Allocate()
	t.mu.Unlock()
}

// AdjustPrivileges enables or disables held privileges. Only the Enabled bit
// of each change is honored. When disableAll is set changes is ignored and
// every privilege is disabled. The previous state of every adjusted privilege
// is returned. ErrNotAllAssigned reports that some changes named privileges
// the token does not hold; the others are still applied.
//
// The cached traverse and impersonate bits are fixed at construction and are
// not refreshed here.
func (t *Token) AdjustPrivileges(disableAll bool, changes []privilege.LUIDAndAttributes) ([]privilege.LUIDAndAttributes, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var (
		previous []privilege.LUIDAndAttributes
		missing  bool
	)
	if disableAll {
		for i := range t.privileges {
			p := &t.privileges[i]
			if p.Enabled() {
				previous = append(previous, *p)
				p.Attributes &^= privilege.Enabled
			}
		}
	} else {
		for _, c := range changes {
			i := t.privilegeIndex(c.LUID)
			if i < 0 {
				missing = true
				continue
			}
			p := &t.privileges[i]
			want := c.Attributes.Has(privilege.Enabled)
			if p.Enabled() == want {
				continue
			}
			previous = append(previous, *p)
			if want {
				p.Attributes |= privilege.Enabled
			} else {
				p.Attributes &^= privilege.Enabled
			}
		}
	}
	if len(previous) > 0 {
		t.modifiedID = t.mgr.ids.Allocate()
	}
	if missing {
		return previous, ErrNotAllAssigned
	}
	return previous, nil
}

func (t *Token) privilegeIndex(luid ident.LUID) int {
	for i, p := range t.privileges {
		if p.LUID == luid {
			return i
		}
	}
	return -1
}

// SetAuditPolicy replaces the per-token audit overlay and keeps the
// process-wide counters in step. A nil or empty policy removes the overlay.
func (t *Token) SetAuditPolicy(p *auditpol.TokenPolicy) error {
	var next *auditpol.TokenPolicy
	if p != nil {
		if err := p.Validate(); err != nil {
			return err
		}
		if !p.IsEmpty() {
			cp := *p
			next = &cp
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if next != nil {
		t.mgr.counters.Add(next)
	}
	if t.auditPolicy != nil {
		t.mgr.counters.Remove(t.auditPolicy)
	}
	t.auditPolicy = next
	t.modifiedID = t.mgr.ids.Allocate()
	return nil
}
