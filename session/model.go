package session

import (
	"context"
	"errors"

	"github.com/MrEthical07/goRefMon/ident"
)

var (
	// ErrNoSuchLogonSession is returned when the logon ID is not in the table.
	ErrNoSuchLogonSession = errors.New("no such logon session")
	// ErrLogonSessionExists is returned by Create for a duplicate logon ID.
	ErrLogonSessionExists = errors.New("logon session already exists")
	// ErrBadLogonSessionState is returned by Delete while references remain.
	ErrBadLogonSessionState = errors.New("logon session still referenced")
	// ErrRedisUnavailable is returned when the Redis table cannot be reached.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrInvalidRecord is returned when a stored session cannot be decoded.
	ErrInvalidRecord = errors.New("invalid logon session record")
)

// LogonType records how the session was established.
type LogonType uint8

const (
	LogonSystem LogonType = iota
	LogonInteractive
	LogonNetwork
	LogonBatch
	LogonService
)

// LogonSession is one entry of the table.
type LogonSession struct {
	AuthID    ident.LUID
	User      ident.SID
	Type      LogonType
	CreatedAt int64
	// References is filled in by Get.
	References int64
}

// TerminatedFunc is called once a session's last reference is dropped and
// the session has been removed.
type TerminatedFunc func(ctx context.Context, authID ident.LUID)

// Table is the logon session registry.
type Table interface {
	// Create adds a session with zero references.
	Create(ctx context.Context, s *LogonSession) error
	// Reference takes a reference, failing with ErrNoSuchLogonSession.
	Reference(ctx context.Context, authID ident.LUID) error
	// Dereference drops a reference. Dropping the last one removes the
	// session and runs the termination callback.
	Dereference(ctx context.Context, authID ident.LUID) error
	// Delete removes an unreferenced session without notification.
	Delete(ctx context.Context, authID ident.LUID) error
	Get(ctx context.Context, authID ident.LUID) (*LogonSession, error)
}
