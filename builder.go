package goRefMon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goRefMon/audit"
	"github.com/MrEthical07/goRefMon/auditpol"
	"github.com/MrEthical07/goRefMon/ident"
	"github.com/MrEthical07/goRefMon/privilege"
	"github.com/MrEthical07/goRefMon/registry"
	"github.com/MrEthical07/goRefMon/session"
	"github.com/MrEthical07/goRefMon/token"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a Monitor. A Builder is single use.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	store     registry.Store
	authority audit.Authority
	halter    audit.Halter

	built bool
}

// New returns a builder with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis backs the logon-session table with Redis. Without it the table
// lives in memory.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRegistry sets the configuration store audit settings are loaded from.
// If store also implements registry.Writer the escalator persists the
// crash state through it.
func (b *Builder) WithRegistry(store registry.Store) *Builder {
	b.store = store
	return b
}

// WithAuthority sets the logging authority records are delivered to.
func (b *Builder) WithAuthority(a audit.Authority) *Builder {
	b.authority = a
	return b
}

// WithHalter replaces the process-exit halter, mainly for tests.
func (b *Builder) WithHalter(h audit.Halter) *Builder {
	b.halter = h
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.config.Logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, loads the audit settings once and
// starts the audit consumer.
func (b *Builder) Build(ctx context.Context) (*Monitor, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// -------- AUDIT SETTINGS --------
	settings := audit.NewSettings()
	filter := privilege.NewFilter()
	if err := audit.NewLoader(b.store, logger).Load(ctx, settings, filter); err != nil {
		return nil, fmt.Errorf("load audit settings: %w", err)
	}

	m := &Monitor{
		config:   cfg,
		logger:   logger,
		settings: settings,
		filter:   filter,
		state:    &auditpol.State{},
		metrics:  NewMetrics(cfg.Metrics),
	}

	// -------- LOGON SESSIONS --------
	if b.redis != nil {
		m.sessions = session.NewRedisTable(b.redis, cfg.Session.RedisPrefix, m.logonTerminated)
	} else {
		m.sessions = session.NewMemoryTable(m.logonTerminated)
	}

	// -------- AUDIT PIPELINE --------
	var writer registry.Writer
	if w, ok := b.store.(registry.Writer); ok {
		writer = w
	}
	halter := b.halter
	if halter == nil {
		halter = audit.ExitHalter{Logger: logger, Code: cfg.Audit.HaltExitCode}
	}
	upper, lower := settings.Bounds()
	m.queue = audit.NewQueue(audit.QueueConfig{Upper: int(upper), Lower: int(lower)})
	m.escalator = audit.NewEscalator(settings, writer, halter, logger)
	m.pipeline = audit.NewPipeline(audit.NewMarshaller(cfg.Audit.MaxRecordSize, nil), m.queue, settings, m.escalator)

	// -------- TOKENS --------
	m.tokens = token.NewManager(token.Config{
		Sessions:             m.sessions,
		Logger:               logger,
		Observer:             m,
		PoolLimit:            cfg.Token.PoolLimit,
		DefaultDynamicCharge: cfg.Token.DefaultDynamicCharge,
		MaxDynamicCharge:     cfg.Token.MaxDynamicCharge,
	})

	if err := m.bootstrapSessions(ctx); err != nil {
		return nil, err
	}

	m.authority = b.authority
	if m.authority == nil {
		m.authority = audit.NoOpAuthority{}
	}
	m.consumer = audit.NewConsumer(m.queue, m.authority, audit.ConsumerConfig{
		Logger:     logger,
		OnDelivery: m.observeDelivery,
	})

	b.built = true
	return m, nil
}

// bootstrapSessions creates the system and anonymous logon sessions and
// anchors them with a reference the monitor never drops.
func (m *Monitor) bootstrapSessions(ctx context.Context) error {
	boot := []session.LogonSession{
		{AuthID: ident.SystemLUID, User: ident.LocalSystemSID, Type: session.LogonSystem, CreatedAt: time.Now().UnixNano()},
		{AuthID: ident.AnonymousLogonLUID, User: ident.AnonymousSID, Type: session.LogonNetwork, CreatedAt: time.Now().UnixNano()},
	}
	for i := range boot {
		s := boot[i]
		err := m.sessions.Create(ctx, &s)
		switch {
		case err == nil:
			if err := m.sessions.Reference(ctx, s.AuthID); err != nil {
				return fmt.Errorf("anchor logon session %s: %w", s.AuthID, err)
			}
		case errors.Is(err, session.ErrLogonSessionExists):
			// Shared table already bootstrapped by another monitor.
		default:
			return fmt.Errorf("create logon session %s: %w", s.AuthID, err)
		}
	}
	return nil
}
