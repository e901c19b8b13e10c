package privilege

import "github.com/MrEthical07/goRefMon/ident"

// Attributes is the attribute bitmask of a held privilege.
type Attributes uint32

const (
	EnabledByDefault Attributes = 0x00000001
	Enabled          Attributes = 0x00000002
	Removed          Attributes = 0x00000004
	UsedForAccess    Attributes = 0x80000000
)

// Has reports whether every bit of flag is set.
func (a Attributes) Has(flag Attributes) bool { return a&flag == flag }

// LUIDAndAttributes is one privilege held by a token.
type LUIDAndAttributes struct {
	LUID       ident.LUID
	Attributes Attributes
}

// Enabled reports whether the privilege is currently enabled.
func (p LUIDAndAttributes) Enabled() bool { return p.Attributes.Has(Enabled) }

// EntrySize is the packed size of one LUIDAndAttributes in a privilege set.
const EntrySize = 12

// Well-known privilege values.
const (
	CreateToken          ident.LUID = 2
	AssignPrimaryToken   ident.LUID = 3
	LockMemory           ident.LUID = 4
	IncreaseQuota        ident.LUID = 5
	MachineAccount       ident.LUID = 6
	TCB                  ident.LUID = 7
	Security             ident.LUID = 8
	TakeOwnership        ident.LUID = 9
	LoadDriver           ident.LUID = 10
	SystemProfile        ident.LUID = 11
	Systemtime           ident.LUID = 12
	ProfileSingleProcess ident.LUID = 13
	IncreaseBasePriority ident.LUID = 14
	CreatePagefile       ident.LUID = 15
	CreatePermanent      ident.LUID = 16
	Backup               ident.LUID = 17
	Restore              ident.LUID = 18
	Shutdown             ident.LUID = 19
	Debug                ident.LUID = 20
	Audit                ident.LUID = 21
	SystemEnvironment    ident.LUID = 22
	ChangeNotify         ident.LUID = 23
	RemoteShutdown       ident.LUID = 24
	Undock               ident.LUID = 25
	SyncAgent            ident.LUID = 26
	EnableDelegation     ident.LUID = 27
	ManageVolume         ident.LUID = 28
	Impersonate          ident.LUID = 29
	CreateGlobal         ident.LUID = 30

	MinWellKnown = CreateToken
	MaxWellKnown = CreateGlobal
)

var wellKnownNames = map[ident.LUID]string{
	CreateToken:          "SeCreateTokenPrivilege",
	AssignPrimaryToken:   "SeAssignPrimaryTokenPrivilege",
	LockMemory:           "SeLockMemoryPrivilege",
	IncreaseQuota:        "SeIncreaseQuotaPrivilege",
	MachineAccount:       "SeMachineAccountPrivilege",
	TCB:                  "SeTcbPrivilege",
	Security:             "SeSecurityPrivilege",
	TakeOwnership:        "SeTakeOwnershipPrivilege",
	LoadDriver:           "SeLoadDriverPrivilege",
	SystemProfile:        "SeSystemProfilePrivilege",
	Systemtime:           "SeSystemtimePrivilege",
	ProfileSingleProcess: "SeProfileSingleProcessPrivilege",
	IncreaseBasePriority: "SeIncreaseBasePriorityPrivilege",
	CreatePagefile:       "SeCreatePagefilePrivilege",
	CreatePermanent:      "SeCreatePermanentPrivilege",
	Backup:               "SeBackupPrivilege",
	Restore:              "SeRestorePrivilege",
	Shutdown:             "SeShutdownPrivilege",
	Debug:                "SeDebugPrivilege",
	Audit:                "SeAuditPrivilege",
	SystemEnvironment:    "SeSystemEnvironmentPrivilege",
	ChangeNotify:         "SeChangeNotifyPrivilege",
	RemoteShutdown:       "SeRemoteShutdownPrivilege",
	Undock:               "SeUndockPrivilege",
	SyncAgent:            "SeSyncAgentPrivilege",
	EnableDelegation:     "SeEnableDelegationPrivilege",
	ManageVolume:         "SeManageVolumePrivilege",
	Impersonate:          "SeImpersonatePrivilege",
	CreateGlobal:         "SeCreateGlobalPrivilege",
}
