package token

import (
	"sync"

	"github.com/MrEthical07/goRefMon/ident"
)

// CanImpersonate decides whether a process running with primary may
// impersonate target at level.
func CanImpersonate(primary, target *Token, level ImpersonationLevel) error {
	if primary == nil || target == nil {
		return ErrNoToken
	}
	if level < LevelImpersonation || target.authID == ident.AnonymousLogonLUID {
		return nil
	}
	// A token may always impersonate itself.
	if primary == target {
		return nil
	}

	primary.mu.RLock()
	defer primary.mu.RUnlock()

	if primary.flags&flagHasImpersonatePrivilege != 0 {
		return nil
	}

	target.mu.RLock()
	defer target.mu.RUnlock()

	if primary.authID == target.originatingLogon {
		return nil
	}
	sameUser := primary.userAndGroups[0].SID.Equal(target.userAndGroups[0].SID)
	if sameUser && !(primary.IsRestricted() && !target.IsRestricted()) {
		return nil
	}
	return ErrPrivilegeNotHeld
}

// Thread carries an optional impersonation token on top of its process's
// primary token.
type Thread struct {
	ID      uint32
	Process *Process

	mu     sync.Mutex
	client *Token
	level  ImpersonationLevel
}

// NewThread returns a thread of p that is not impersonating.
func NewThread(id uint32, p *Process) *Thread {
	return &Thread{ID: id, Process: p}
}

// Impersonate makes client the thread's impersonation token at level. The
// thread takes its own reference; any previous client token is released.
func (th *Thread) Impersonate(client *Token, level ImpersonationLevel) error {
	if client == nil {
		return ErrNoToken
	}
	if client.typ != TypeImpersonation {
		return ErrBadTokenType
	}
	if !level.Valid() || level > client.level {
		return ErrBadImpersonationLevel
	}

	primary := th.Process.PrimaryToken()
	if primary == nil {
		return ErrNoToken
	}
	err := CanImpersonate(primary, client, level)
	primary.Release()
	if err != nil {
		return err
	}

	client.Reference()
	th.mu.Lock()
	prev := th.client
	th.client, th.level = client, level
	th.mu.Unlock()
	if prev != nil {
		prev.Release()
	}
	return nil
}

// RevertToSelf drops the impersonation token.
func (th *Thread) RevertToSelf() {
	th.mu.Lock()
	prev := th.client
	th.client, th.level = nil, LevelAnonymous
	th.mu.Unlock()
	if prev != nil {
		prev.Release()
	}
}

// Impersonating reports whether the thread holds a client token.
func (th *Thread) Impersonating() bool {
	th.mu.Lock()
	defer th.mu.Unlock()
	return th.client != nil
}

// SubjectContext is a referenced capture of the tokens a thread runs with.
type SubjectContext struct {
	Primary *Token
	Client  *Token
	Level   ImpersonationLevel
}

// CaptureSubject references the thread's current tokens. Release the result
// when done.
func (th *Thread) CaptureSubject() SubjectContext {
	var sc SubjectContext
	th.mu.Lock()
	if th.client != nil {
		th.client.Reference()
		sc.Client, sc.Level = th.client, th.level
	}
	th.mu.Unlock()
	if th.Process != nil {
		sc.Primary = th.Process.PrimaryToken()
	}
	return sc
}

// Effective is the client token when impersonating, otherwise the primary.
func (sc SubjectContext) Effective() *Token {
	if sc.Client != nil {
		return sc.Client
	}
	return sc.Primary
}

// Release drops the captured references.
func (sc SubjectContext) Release() {
	if sc.Client != nil {
		sc.Client.Release()
	}
	if sc.Primary != nil {
		sc.Primary.Release()
	}
}
