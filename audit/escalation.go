package audit

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/MrEthical07/goRefMon/registry"
)

// Halter stops the system. Production implementations do not return.
type Halter interface {
	Halt(status error)
}

// HalterFunc adapts a function to Halter.
type HalterFunc func(status error)

func (f HalterFunc) Halt(status error) { f(status) }

// ExitHalter logs the status and exits the process.
type ExitHalter struct {
	Logger *slog.Logger
	// Code is the exit code; zero means 1.
	Code int
}

func (h ExitHalter) Halt(status error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	code := h.Code
	if code == 0 {
		code = 1
	}
	logger.Error("audit failure under crash-on-audit-fail, halting", "status", status)
	os.Exit(code)
}

// Escalator is the last resort when a record cannot be guaranteed under the
// crash-on-audit-fail policy.
type Escalator struct {
	settings *Settings
	store    registry.Writer
	halter   Halter
	logger   *slog.Logger

	mu     sync.Mutex
	halts  atomic.Uint64
	aborts atomic.Uint64
}

// NewEscalator returns an escalator. store may be nil, which is treated as
// an absent configuration store.
func NewEscalator(settings *Settings, store registry.Writer, halter Halter, logger *slog.Logger) *Escalator {
	if logger == nil {
		logger = slog.Default()
	}
	if halter == nil {
		halter = ExitHalter{Logger: logger}
	}
	return &Escalator{
		settings: settings,
		store:    store,
		halter:   halter,
		logger:   logger,
	}
}

// Fail escalates status. Without crash-on-audit-fail it does nothing.
// Otherwise it records CrashTriggered in the store so a restart does not
// halt again for the same reason, then halts. When the store is absent the
// policy is dropped in memory and Fail returns.
func (e *Escalator) Fail(ctx context.Context, status error) {
	if !e.settings.CrashOnAuditFail() {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.settings.CrashOnAuditFail() {
		return
	}

	if err := e.persist(ctx); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			e.logger.Warn("crash-on-audit-fail store absent, not halting", "status", status)
			e.settings.SetCrashOnAuditFail(false)
			e.aborts.Add(1)
			return
		}
		e.logger.Error("could not clear crash-on-audit-fail before halting", "error", err)
	}

	e.halts.Add(1)
	e.halter.Halt(status)
}

func (e *Escalator) persist(ctx context.Context) error {
	if e.store == nil {
		return registry.ErrNotFound
	}
	return e.store.Set(ctx, LsaKey, CrashOnAuditFailValue, registry.Uint32(CrashTriggered))
}

// Halts counts calls that reached the halter.
func (e *Escalator) Halts() uint64 { return e.halts.Load() }

// Aborts counts escalations abandoned because the store was absent.
func (e *Escalator) Aborts() uint64 { return e.aborts.Load() }
