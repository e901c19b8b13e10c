package token

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/MrEthical07/goRefMon/auditpol"
	"github.com/MrEthical07/goRefMon/ident"
)

// LogonSessions is the subset of the logon-session table tokens depend on.
// Every live token that was created with a session reference holds exactly one.
type LogonSessions interface {
	Reference(ctx context.Context, authID ident.LUID) error
	Dereference(ctx context.Context, authID ident.LUID) error
}

// AssignObserver is notified after a primary token has been assigned to or
// exchanged into a process. Implementations must not block.
type AssignObserver interface {
	PrimaryTokenAssigned(p *Process, previous, assigned *Token)
}

// Config configures a [Manager].
type Config struct {
	Sessions LogonSessions
	IDs      ident.Allocator
	Counters *auditpol.Counters
	Logger   *slog.Logger
	Observer AssignObserver

	// DefaultDynamicCharge is the minimum dynamic region size.
	DefaultDynamicCharge int
	// MaxDynamicCharge caps growth of a single token's dynamic region.
	MaxDynamicCharge int
	// PoolLimit caps the total bytes charged by all live tokens. Zero means
	// unlimited.
	PoolLimit int64
}

// DefaultMaxDynamicCharge is used when Config.MaxDynamicCharge is zero.
const DefaultMaxDynamicCharge = 64 << 10

// Manager creates tokens and owns the state they share.
type Manager struct {
	sessions LogonSessions
	ids      ident.Allocator
	counters *auditpol.Counters
	logger   *slog.Logger
	observer AssignObserver

	defaultCharge int
	maxCharge     int
	poolLimit     int64
	pool          atomic.Int64

	liveMu sync.Mutex
	live   map[ident.LUID]*Token
}

// NewManager applies defaults for zero fields.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		sessions:      cfg.Sessions,
		ids:           cfg.IDs,
		counters:      cfg.Counters,
		logger:        cfg.Logger,
		observer:      cfg.Observer,
		defaultCharge: cfg.DefaultDynamicCharge,
		maxCharge:     cfg.MaxDynamicCharge,
		poolLimit:     cfg.PoolLimit,
		live:          make(map[ident.LUID]*Token),
	}
	if m.ids == nil {
		m.ids = ident.NewSequence(0)
	}
	if m.counters == nil {
		m.counters = &auditpol.Counters{}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.defaultCharge <= 0 {
		m.defaultCharge = DefaultDynamicCharge
	}
	if m.maxCharge <= 0 {
		m.maxCharge = DefaultMaxDynamicCharge
	}
	if m.maxCharge < m.defaultCharge {
		m.maxCharge = m.defaultCharge
	}
	return m
}

// Counters returns the process-wide audit-policy counters.
func (m *Manager) Counters() *auditpol.Counters { return m.counters }

// SetObserver replaces the assign observer. It must be called before any
// process is assigned a token.
func (m *Manager) SetObserver(o AssignObserver) { m.observer = o }

// AllocateLUID hands out a fresh identifier from the manager's allocator.
func (m *Manager) AllocateLUID() ident.LUID { return m.ids.Allocate() }

// PoolUsage reports the bytes currently charged to live tokens.
func (m *Manager) PoolUsage() int64 { return m.pool.Load() }

// Lookup returns a referenced live token by ID. The caller must Release it.
func (m *Manager) Lookup(id ident.LUID) (*Token, bool) {
	m.liveMu.Lock()
	t, ok := m.live[id]
	m.liveMu.Unlock()
	if !ok || !t.tryReference() {
		return nil, false
	}
	return t, true
}

// Live reports the number of tokens in the live table.
func (m *Manager) Live() int {
	m.liveMu.Lock()
	defer m.liveMu.Unlock()
	return len(m.live)
}

func (m *Manager) insert(t *Token) {
	m.liveMu.Lock()
	m.live[t.id] = t
	t.inserted = true
	m.liveMu.Unlock()
}

func (m *Manager) forget(t *Token) {
	m.liveMu.Lock()
	if t.inserted && m.live[t.id] == t {
		delete(m.live, t.id)
	}
	m.liveMu.Unlock()
}

func (m *Manager) charge(n int) error {
	if n <= 0 {
		return nil
	}
	for {
		cur := m.pool.Load()
		next := cur + int64(n)
		if m.poolLimit > 0 && next > m.poolLimit {
			return ErrInsufficientResources
		}
		if m.pool.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

func (m *Manager) uncharge(n int) {
	if n <= 0 {
		return
	}
	if m.pool.Add(-int64(n)) < 0 {
		panic("token: pool charge underflow")
	}
}
