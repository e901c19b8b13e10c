package token

import "errors"

var (
	// ErrBadTokenType is returned when a token of the wrong type is supplied.
	ErrBadTokenType = errors.New("bad token type")
	// ErrBadImpersonationLevel is returned for an invalid or disallowed impersonation level.
	ErrBadImpersonationLevel = errors.New("bad impersonation level")
	// ErrInvalidOwner is returned when the owner is neither the user nor an owner-eligible group.
	ErrInvalidOwner = errors.New("invalid owner")
	// ErrInvalidPrimaryGroup is returned when the primary group is not one of the token's groups.
	ErrInvalidPrimaryGroup = errors.New("invalid primary group")
	// ErrInvalidParameter is returned for malformed construction input.
	ErrInvalidParameter = errors.New("invalid token parameter")
	// ErrTokenAlreadyInUse is returned when a primary token is already held by a process.
	ErrTokenAlreadyInUse = errors.New("token already in use")
	// ErrAllottedSpaceExceeded is returned when the dynamic region cannot grow any further.
	ErrAllottedSpaceExceeded = errors.New("allotted space exceeded")
	// ErrInsufficientResources is returned when the storage pool cannot cover a charge.
	ErrInsufficientResources = errors.New("insufficient resources")
	// ErrPrivilegeNotHeld is returned when the requestor lacks a required privilege.
	ErrPrivilegeNotHeld = errors.New("privilege not held")
	// ErrNoToken is returned when an operation needs a token that is not present.
	ErrNoToken = errors.New("no token")
	// ErrNoSuchLogonSession is returned when the backing logon session cannot be referenced.
	ErrNoSuchLogonSession = errors.New("no such logon session")
	// ErrProcessHasToken is returned by Assign when the process already holds a primary token.
	ErrProcessHasToken = errors.New("process already has a primary token")
	// ErrNotAllAssigned is returned by AdjustPrivileges when some privileges are not held.
	// The changes for held privileges are still applied.
	ErrNotAllAssigned = errors.New("not all privileges referenced are assigned")
)
