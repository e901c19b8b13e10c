package audit

import (
	"net/netip"
	"time"

	"github.com/MrEthical07/goRefMon/auditpol"
	"github.com/MrEthical07/goRefMon/ident"
	"github.com/MrEthical07/goRefMon/privilege"
	"github.com/google/uuid"
)

// MaxParams bounds the parameter array of one record.
const MaxParams = 32

// ParamType is the wire tag of a parameter slot.
type ParamType uint32

const (
	ParamNone ParamType = iota
	ParamString
	ParamFileSpec
	ParamUlong
	ParamHexUlong
	ParamAccessMask
	ParamSID
	ParamLogonID
	ParamNoLogonID
	ParamPrivileges
	ParamPtr
	ParamTime
	ParamDuration
	ParamGUID
	ParamLUID
	ParamHexInt64
	ParamSockAddr
)

var paramTypeNames = [...]string{
	ParamNone:       "none",
	ParamString:     "string",
	ParamFileSpec:   "file_spec",
	ParamUlong:      "ulong",
	ParamHexUlong:   "hex_ulong",
	ParamAccessMask: "access_mask",
	ParamSID:        "sid",
	ParamLogonID:    "logon_id",
	ParamNoLogonID:  "no_logon_id",
	ParamPrivileges: "privileges",
	ParamPtr:        "ptr",
	ParamTime:       "time",
	ParamDuration:   "duration",
	ParamGUID:       "guid",
	ParamLUID:       "luid",
	ParamHexInt64:   "hex_int64",
	ParamSockAddr:   "sock_addr",
}

func (t ParamType) String() string {
	if int(t) < len(paramTypeNames) {
		return paramTypeNames[t]
	}
	return "unknown"
}

// Param is one typed audit parameter. The set of implementations is closed.
type Param interface {
	ParamType() ParamType
	// declaredLength is the size used for the record size estimate.
	declaredLength() int
}

// Parameter variants.
type (
	None       struct{}
	String     string
	FileSpec   string
	Ulong      uint32
	HexUlong   uint32
	AccessMask uint32
	SIDParam   struct{ SID ident.SID }
	LogonID    ident.LUID
	NoLogonID  struct{}
	Privileges struct{ Set privilege.Set }
	Ptr        uint64
	Time       struct{ At time.Time }
	Duration   time.Duration
	GUID       uuid.UUID
	LUIDParam  ident.LUID
	HexInt64   uint64
	SockAddr   netip.AddrPort
)

const stringDescriptorSize = 8

func (None) ParamType() ParamType       { return ParamNone }
func (String) ParamType() ParamType     { return ParamString }
func (FileSpec) ParamType() ParamType   { return ParamFileSpec }
func (Ulong) ParamType() ParamType      { return ParamUlong }
func (HexUlong) ParamType() ParamType   { return ParamHexUlong }
func (AccessMask) ParamType() ParamType { return ParamAccessMask }
func (SIDParam) ParamType() ParamType   { return ParamSID }
func (LogonID) ParamType() ParamType    { return ParamLogonID }
func (NoLogonID) ParamType() ParamType  { return ParamNoLogonID }
func (Privileges) ParamType() ParamType { return ParamPrivileges }
func (Ptr) ParamType() ParamType        { return ParamPtr }
func (Time) ParamType() ParamType       { return ParamTime }
func (Duration) ParamType() ParamType   { return ParamDuration }
func (GUID) ParamType() ParamType       { return ParamGUID }
func (LUIDParam) ParamType() ParamType  { return ParamLUID }
func (HexInt64) ParamType() ParamType   { return ParamHexInt64 }
func (SockAddr) ParamType() ParamType   { return ParamSockAddr }

func (None) declaredLength() int         { return 0 }
func (p String) declaredLength() int     { return stringDescriptorSize + len(p) }
func (p FileSpec) declaredLength() int   { return stringDescriptorSize + len(p) }
func (Ulong) declaredLength() int        { return 4 }
func (HexUlong) declaredLength() int     { return 4 }
func (AccessMask) declaredLength() int   { return 4 }
func (p SIDParam) declaredLength() int   { return p.SID.Len() }
func (LogonID) declaredLength() int      { return 8 }
func (NoLogonID) declaredLength() int    { return 0 }
func (p Privileges) declaredLength() int { return p.Set.Size() }
func (Ptr) declaredLength() int          { return 8 }
func (Time) declaredLength() int         { return 8 }
func (Duration) declaredLength() int     { return 8 }
func (GUID) declaredLength() int         { return 16 }
func (LUIDParam) declaredLength() int    { return 8 }
func (HexInt64) declaredLength() int     { return 8 }
func (p SockAddr) declaredLength() int   { return sockAddrLen(netip.AddrPort(p)) }

// EventType distinguishes success and failure audits.
type EventType uint16

const (
	EventSuccess EventType = 1
	EventFailure EventType = 2
)

func (t EventType) String() string {
	switch t {
	case EventSuccess:
		return "success"
	case EventFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Params describes one audit event before marshalling.
type Params struct {
	Category auditpol.Category
	AuditID  uint16
	Type     EventType
	Params   []Param
}

// Audit IDs of the records this module generates.
const (
	AuditIDAuditsDiscarded    uint16 = 516
	AuditIDSystemTimeChange   uint16 = 520
	AuditIDCloseHandle        uint16 = 562
	AuditIDPrivilegedService  uint16 = 577
	AuditIDPrivilegedObject   uint16 = 578
	AuditIDAssignPrimaryToken uint16 = 600
)
