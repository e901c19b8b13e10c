package goRefMon

import (
	"errors"

	"github.com/MrEthical07/goRefMon/audit"
	"github.com/MrEthical07/goRefMon/session"
	"github.com/MrEthical07/goRefMon/token"
)

var (
	// ErrConfigInvalid wraps every Config validation failure.
	ErrConfigInvalid = errors.New("invalid monitor configuration")
	// ErrBuilderUsed is returned by a second Build call.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrMonitorClosed is returned by operations after Close.
	ErrMonitorClosed = errors.New("monitor closed")
)

// Re-exported collaborator errors most callers test for.
var (
	ErrNoToken               = token.ErrNoToken
	ErrPrivilegeNotHeld      = token.ErrPrivilegeNotHeld
	ErrTokenAlreadyInUse     = token.ErrTokenAlreadyInUse
	ErrNoSuchLogonSession    = session.ErrNoSuchLogonSession
	ErrInsufficientResources = audit.ErrInsufficientResources
)
