package audit

import "errors"

var (
	// ErrInsufficientResources is returned when a record buffer cannot be allocated.
	ErrInsufficientResources = errors.New("insufficient resources for audit record")
	// ErrInvalidRecord is returned when a buffer does not decode as a record.
	ErrInvalidRecord = errors.New("invalid audit record")
	// ErrAuthorityGone is returned by an Authority that will never accept
	// another record. The consumer marks the queue dead when it sees it.
	ErrAuthorityGone = errors.New("audit authority gone")
	// ErrNotQueued is the escalation status for a record the queue refused.
	ErrNotQueued = errors.New("audit record not queued")
	// ErrInvalidBounds is returned by ValidateBounds.
	ErrInvalidBounds = errors.New("invalid audit queue bounds")
	// ErrCopyFailed is returned when a record cannot be copied into a target
	// address space.
	ErrCopyFailed = errors.New("audit record copy failed")
)
