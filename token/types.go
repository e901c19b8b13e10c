package token

import (
	"time"

	"github.com/MrEthical07/goRefMon/ident"
)

// Type distinguishes primary from impersonation tokens.
type Type uint8

const (
	TypePrimary       Type = 1
	TypeImpersonation Type = 2
)

func (t Type) Valid() bool { return t == TypePrimary || t == TypeImpersonation }

func (t Type) String() string {
	switch t {
	case TypePrimary:
		return "primary"
	case TypeImpersonation:
		return "impersonation"
	default:
		return "invalid"
	}
}

// ImpersonationLevel is the degree to which a server may act as a client.
type ImpersonationLevel uint8

const (
	LevelAnonymous ImpersonationLevel = iota
	LevelIdentification
	LevelImpersonation
	LevelDelegation
)

func (l ImpersonationLevel) Valid() bool { return l <= LevelDelegation }

func (l ImpersonationLevel) String() string {
	switch l {
	case LevelAnonymous:
		return "anonymous"
	case LevelIdentification:
		return "identification"
	case LevelImpersonation:
		return "impersonation"
	case LevelDelegation:
		return "delegation"
	default:
		return "invalid"
	}
}

// Source names the component that created a token.
type Source struct {
	Name [8]byte
	ID   ident.LUID
}

// NewSource truncates name to eight bytes.
func NewSource(name string, id ident.LUID) Source {
	var s Source
	copy(s.Name[:], name)
	s.ID = id
	return s
}

func (s Source) String() string {
	n := 0
	for n < len(s.Name) && s.Name[n] != 0 {
		n++
	}
	return string(s.Name[:n])
}

// flags are computed before a token becomes visible and never change after.
type flags uint32

const (
	flagHasTraversePrivilege flags = 1 << iota
	flagHasImpersonatePrivilege
	flagHasAdminGroup
	flagIsRestricted
	flagSessionNotReferenced
	flagIsFiltered
)

// ControlInfo identifies a token and its modification state.
type ControlInfo struct {
	AuthID     ident.LUID
	TokenID    ident.LUID
	Source     Source
	ModifiedID ident.LUID
}

// Statistics summarizes a token for diagnostics.
type Statistics struct {
	TokenID            ident.LUID
	AuthID             ident.LUID
	ModifiedID         ident.LUID
	Expiration         time.Time
	Type               Type
	ImpersonationLevel ImpersonationLevel
	DynamicCharged     int
	DynamicAvailable   int
	GroupCount         int
	PrivilegeCount     int
}
