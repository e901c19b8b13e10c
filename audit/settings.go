package audit

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/MrEthical07/goRefMon/registry"
)

// Configuration store locations read at startup.
const (
	LsaKey          = `System\CurrentControlSet\Control\Lsa`
	AuditOptionsKey = LsaKey + `\AuditOptions`

	BoundsValue                      = "Bounds"
	CrashOnAuditFailValue            = "CrashOnAuditFail"
	FullPrivilegeAuditingValue       = "FullPrivilegeAuditing"
	DoNotAuditCloseObjectEventsValue = "DoNotAuditCloseObjectEvents"
)

// CrashOnAuditFail values. Only CrashEnabled turns the policy on; the
// escalation path writes CrashTriggered before halting.
const (
	CrashDisabled  uint32 = 0
	CrashEnabled   uint32 = 1
	CrashTriggered uint32 = 2
)

// Queue bound defaults and limits.
const (
	DefaultUpperBound = 0x3000
	DefaultLowerBound = 0x2000
	MinBound          = 16
)

// ValidateBounds reports whether (upper, lower) is an acceptable watermark
// pair: lower at least MinBound, upper above lower by at least MinBound.
func ValidateBounds(upper, lower uint32) error {
	if lower < MinBound || upper <= lower || upper-lower < MinBound {
		return fmt.Errorf("%w: upper=%d lower=%d", ErrInvalidBounds, upper, lower)
	}
	return nil
}

// Settings is the audit configuration read once during initialization.
// Values are atomics so the escalation path can clear the crash flag while
// other goroutines read it.
type Settings struct {
	upper            atomic.Uint32
	lower            atomic.Uint32
	crashOnAuditFail atomic.Bool
	fullPrivilege    atomic.Bool
	suppressClose    atomic.Bool
}

// NewSettings returns settings holding the static defaults.
func NewSettings() *Settings {
	s := &Settings{}
	s.upper.Store(DefaultUpperBound)
	s.lower.Store(DefaultLowerBound)
	return s
}

// Bounds returns the queue high and low watermarks.
func (s *Settings) Bounds() (upper, lower uint32) {
	return s.upper.Load(), s.lower.Load()
}

// SetBounds validates and stores a watermark pair. Invalid pairs leave the
// current values untouched.
func (s *Settings) SetBounds(upper, lower uint32) error {
	if err := ValidateBounds(upper, lower); err != nil {
		return err
	}
	s.upper.Store(upper)
	s.lower.Store(lower)
	return nil
}

func (s *Settings) CrashOnAuditFail() bool { return s.crashOnAuditFail.Load() }

// SetCrashOnAuditFail is for initialization and the escalation path.
func (s *Settings) SetCrashOnAuditFail(v bool) { s.crashOnAuditFail.Store(v) }

// FullPrivilegeAuditing reports whether every privilege use is audited.
func (s *Settings) FullPrivilegeAuditing() bool { return s.fullPrivilege.Load() }

func (s *Settings) SetFullPrivilegeAuditing(v bool) { s.fullPrivilege.Store(v) }

// SuppressCloseEvents reports whether close-handle audits are skipped.
func (s *Settings) SuppressCloseEvents() bool { return s.suppressClose.Load() }

func (s *Settings) SetSuppressCloseEvents(v bool) { s.suppressClose.Store(v) }

// PrivilegeFilterInit initializes the privilege audit filter.
// *privilege.Filter satisfies it.
type PrivilegeFilterInit interface {
	Init(verbose bool) error
}

// Loader reads audit settings from the configuration store. Each loader is
// fail-open: read and validation failures keep the current value and are
// only logged.
type Loader struct {
	store  registry.Store
	logger *slog.Logger
}

// NewLoader returns a loader over store. logger may be nil.
func NewLoader(store registry.Store, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: store, logger: logger}
}

// Load runs every loader. Only a privilege filter initialization failure is
// returned.
func (l *Loader) Load(ctx context.Context, s *Settings, filter PrivilegeFilterInit) error {
	l.LoadQueueBounds(ctx, s)
	l.LoadCrashOnAuditFail(ctx, s)
	l.LoadAuditOptions(ctx, s)
	return l.LoadPrivilegeAuditVerbosity(ctx, s, filter)
}

// LoadQueueBounds reads the binary Bounds value: upper then lower, each a
// little-endian uint32.
func (l *Loader) LoadQueueBounds(ctx context.Context, s *Settings) {
	if l.store == nil {
		return
	}
	raw, err := registry.QueryBinary(ctx, l.store, LsaKey, BoundsValue, 8)
	if err != nil {
		if !errors.Is(err, registry.ErrNotFound) {
			l.logger.Warn("audit bounds unreadable, keeping defaults", "error", err)
		}
		return
	}
	upper := binary.LittleEndian.Uint32(raw[0:4])
	lower := binary.LittleEndian.Uint32(raw[4:8])
	if err := s.SetBounds(upper, lower); err != nil {
		l.logger.Warn("audit bounds rejected, keeping defaults", "error", err)
	}
}

// LoadCrashOnAuditFail enables the crash policy when the value is present
// and equal to CrashEnabled.
func (l *Loader) LoadCrashOnAuditFail(ctx context.Context, s *Settings) {
	if l.store == nil {
		return
	}
	v, err := registry.QueryUint32(ctx, l.store, LsaKey, CrashOnAuditFailValue)
	if err != nil {
		if !errors.Is(err, registry.ErrNotFound) {
			l.logger.Warn("crash-on-audit-fail unreadable", "error", err)
		}
		return
	}
	if v == CrashEnabled {
		s.SetCrashOnAuditFail(true)
	}
}

// LoadPrivilegeAuditVerbosity reads FullPrivilegeAuditing (a dword, or
// binary whose first byte is the flag) and always initializes filter. The
// filter's error is returned because it decides which privilege uses are
// audited.
func (l *Loader) LoadPrivilegeAuditVerbosity(ctx context.Context, s *Settings, filter PrivilegeFilterInit) error {
	verbose := false
	if l.store != nil {
		v, err := l.store.Query(ctx, LsaKey, FullPrivilegeAuditingValue)
		switch {
		case err == nil:
			switch v.Kind {
			case registry.KindUint32:
				verbose = v.Uint32 != 0
			case registry.KindBinary:
				verbose = len(v.Binary) > 0 && v.Binary[0] != 0
			default:
				l.logger.Warn("full privilege auditing has unexpected type", "kind", v.Kind.String())
			}
		case errors.Is(err, registry.ErrNotFound):
		default:
			l.logger.Warn("full privilege auditing unreadable", "error", err)
		}
	}
	s.SetFullPrivilegeAuditing(verbose)

	if filter == nil {
		return nil
	}
	if err := filter.Init(verbose); err != nil {
		return fmt.Errorf("privilege audit filter: %w", err)
	}
	return nil
}

// LoadAuditOptions reads the close-handle suppression option.
func (l *Loader) LoadAuditOptions(ctx context.Context, s *Settings) {
	if l.store == nil {
		return
	}
	v, err := registry.QueryUint32(ctx, l.store, AuditOptionsKey, DoNotAuditCloseObjectEventsValue)
	if err != nil {
		if !errors.Is(err, registry.ErrNotFound) {
			l.logger.Warn("audit options unreadable", "error", err)
		}
		return
	}
	s.SetSuppressCloseEvents(v != 0)
}
