package token

import "sync/atomic"

// Process holds a primary token slot. The zero value has no token.
type Process struct {
	ID  uint32
	mgr *Manager
	tok atomic.Pointer[Token]
}

// NewProcess returns a process with an empty slot.
func (m *Manager) NewProcess(id uint32) *Process {
	return &Process{ID: id, mgr: m}
}

// PrimaryToken returns a referenced primary token or nil. The caller must
// Release it.
func (p *Process) PrimaryToken() *Token {
	for {
		t := p.tok.Load()
		if t == nil {
			return nil
		}
		if !t.tryReference() {
			continue
		}
		if p.tok.Load() == t {
			return t
		}
		t.Release()
	}
}

// Assign installs t in an empty slot. The slot takes its own reference.
func (p *Process) Assign(t *Token) error {
	if t == nil {
		return ErrNoToken
	}
	if t.typ != TypePrimary {
		return ErrBadTokenType
	}

	t.mu.Lock()
	if t.inUse {
		t.mu.Unlock()
		return ErrTokenAlreadyInUse
	}
	t.inUse = true
	t.mu.Unlock()

	t.Reference()
	if !p.tok.CompareAndSwap(nil, t) {
		t.mu.Lock()
		t.inUse = false
		t.mu.Unlock()
		t.Release()
		return ErrProcessHasToken
	}
	p.notify(nil, t)
	return nil
}

// Deassign empties the slot, clears the in-use mark and drops the slot's
// reference. It is a no-op on an empty slot.
func (p *Process) Deassign() {
	t := p.tok.Swap(nil)
	if t == nil {
		return
	}
	t.mu.Lock()
	t.inUse = false
	t.mu.Unlock()
	t.Release()
}

// Exchange replaces the primary token with t and returns the previous token,
// still referenced, for the caller to release. The slot is never observed
// empty during the exchange. ErrNoToken is returned if the slot was emptied
// concurrently; t is then left as it was.
func (p *Process) Exchange(t *Token, sessionID uint32) (*Token, error) {
	if t == nil {
		return nil, ErrNoToken
	}
	if t.typ != TypePrimary {
		return nil, ErrBadTokenType
	}

	t.mu.Lock()
	if t.inUse {
		t.mu.Unlock()
		return nil, ErrTokenAlreadyInUse
	}
	t.inUse = true
	t.mu.Unlock()

	t.Reference()

	var old *Token
	for {
		old = p.tok.Load()
		if old == nil {
			t.mu.Lock()
			t.inUse = false
			t.mu.Unlock()
			t.Release()
			return nil, ErrNoToken
		}
		if p.tok.CompareAndSwap(old, t) {
			break
		}
	}
	t.SetSessionID(sessionID)

	old.mu.Lock()
	old.inUse = false
	old.mu.Unlock()

	p.notify(old, t)
	return old, nil
}

func (p *Process) notify(previous, assigned *Token) {
	if p.mgr == nil || p.mgr.observer == nil {
		return
	}
	p.mgr.observer.PrimaryTokenAssigned(p, previous, assigned)
}
