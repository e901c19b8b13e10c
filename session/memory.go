package session

import (
	"context"
	"sync"

	"github.com/MrEthical07/goRefMon/ident"
)

type memoryEntry struct {
	session LogonSession
	refs    int64
}

// MemoryTable is an in-process Table.
type MemoryTable struct {
	mu         sync.Mutex
	sessions   map[ident.LUID]*memoryEntry
	terminated TerminatedFunc
}

// NewMemoryTable returns an empty table. terminated may be nil.
func NewMemoryTable(terminated TerminatedFunc) *MemoryTable {
	return &MemoryTable{
		sessions:   make(map[ident.LUID]*memoryEntry),
		terminated: terminated,
	}
}

// Create adds s with zero references.
func (m *MemoryTable) Create(_ context.Context, s *LogonSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.AuthID]; ok {
		return ErrLogonSessionExists
	}
	entry := &memoryEntry{session: *s}
	entry.session.References = 0
	m.sessions[s.AuthID] = entry
	return nil
}

// Reference increments the session's reference count.
func (m *MemoryTable) Reference(_ context.Context, authID ident.LUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[authID]
	if !ok {
		return ErrNoSuchLogonSession
	}
	entry.refs++
	return nil
}

// Dereference decrements the reference count, removing the session and
// running the termination callback once it reaches zero.
func (m *MemoryTable) Dereference(ctx context.Context, authID ident.LUID) error {
	m.mu.Lock()
	entry, ok := m.sessions[authID]
	if !ok {
		m.mu.Unlock()
		return ErrNoSuchLogonSession
	}
	if entry.refs == 0 {
		m.mu.Unlock()
		return ErrBadLogonSessionState
	}
	entry.refs--
	removed := entry.refs == 0
	if removed {
		delete(m.sessions, authID)
	}
	m.mu.Unlock()

	if removed && m.terminated != nil {
		m.terminated(ctx, authID)
	}
	return nil
}

// Delete removes a session that has no references.
func (m *MemoryTable) Delete(_ context.Context, authID ident.LUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[authID]
	if !ok {
		return ErrNoSuchLogonSession
	}
	if entry.refs > 0 {
		return ErrBadLogonSessionState
	}
	delete(m.sessions, authID)
	return nil
}

// Get returns a copy of the session with its current reference count.
func (m *MemoryTable) Get(_ context.Context, authID ident.LUID) (*LogonSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[authID]
	if !ok {
		return nil, ErrNoSuchLogonSession
	}
	s := entry.session
	s.References = entry.refs
	return &s, nil
}
