package audit

import (
	"fmt"
	"time"

	"github.com/MrEthical07/goRefMon/auditpol"
	"github.com/MrEthical07/goRefMon/ident"
	"github.com/MrEthical07/goRefMon/internal/selfrel"
	"github.com/MrEthical07/goRefMon/privilege"
	"github.com/google/uuid"
)

// Record is a decoded audit record.
type Record struct {
	Category  auditpol.Category
	AuditID   uint16
	Type      EventType
	Timestamp time.Time
	Params    []Param
}

// Decode interprets a self-relative record, resolving every address against
// the start of buf. Unlike Marshal it treats its input as untrusted.
func Decode(buf []byte) (*Record, error) {
	if len(buf) < headerSize {
		return nil, fmt.Errorf("%w: short header", ErrInvalidRecord)
	}
	if int(selfrel.Uint32(buf, 8)) != len(buf) {
		return nil, fmt.Errorf("%w: length field %d, buffer %d", ErrInvalidRecord, selfrel.Uint32(buf, 8), len(buf))
	}
	if selfrel.Uint32(buf, 12)&FlagSelfRelative == 0 {
		return nil, fmt.Errorf("%w: not self-relative", ErrInvalidRecord)
	}
	count := int(selfrel.Uint16(buf, 4))
	if count > MaxParams || headerSize+count*slotSize > len(buf) {
		return nil, fmt.Errorf("%w: %d parameters", ErrInvalidRecord, count)
	}

	rec := &Record{
		Category:  auditpol.Category(selfrel.Uint16(buf, 0)),
		AuditID:   selfrel.Uint16(buf, 2),
		Type:      EventType(selfrel.Uint16(buf, 6)),
		Timestamp: time.Unix(0, int64(selfrel.Uint64(buf, 16))).UTC(),
		Params:    make([]Param, count),
	}
	for i := range rec.Params {
		p, err := decodeSlot(buf, headerSize+i*slotSize)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		rec.Params[i] = p
	}
	return rec, nil
}

func decodeSlot(buf []byte, slot int) (Param, error) {
	typ := ParamType(selfrel.Uint32(buf, slot))
	length := uint64(selfrel.Uint32(buf, slot+4))
	data := selfrel.Uint64(buf, slot+8)
	addr := selfrel.Uint64(buf, slot+16)

	outOfLine := func() ([]byte, error) {
		raw, err := selfrel.Slice(buf, addr, length)
		if err != nil {
			return nil, fmt.Errorf("%w: %s data out of range", ErrInvalidRecord, typ)
		}
		return raw, nil
	}

	switch typ {
	case ParamNone:
		return None{}, nil
	case ParamNoLogonID:
		return NoLogonID{}, nil
	case ParamString, ParamFileSpec:
		s, err := decodeString(buf, addr, length)
		if err != nil {
			return nil, err
		}
		if typ == ParamFileSpec {
			return FileSpec(s), nil
		}
		return String(s), nil
	case ParamSID:
		raw, err := outOfLine()
		if err != nil {
			return nil, err
		}
		sid, err := ident.SIDFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		return SIDParam{SID: sid}, nil
	case ParamPrivileges:
		raw, err := outOfLine()
		if err != nil {
			return nil, err
		}
		set, err := privilege.DecodeSet(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		return Privileges{Set: set}, nil
	case ParamGUID:
		raw, err := outOfLine()
		if err != nil {
			return nil, err
		}
		g, err := uuid.FromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		return GUID(g), nil
	case ParamSockAddr:
		raw, err := outOfLine()
		if err != nil {
			return nil, err
		}
		ap, err := decodeSockAddr(raw)
		if err != nil {
			return nil, err
		}
		return SockAddr(ap), nil
	case ParamUlong:
		return Ulong(data), nil
	case ParamHexUlong:
		return HexUlong(data), nil
	case ParamAccessMask:
		return AccessMask(data), nil
	case ParamLogonID:
		return LogonID(data), nil
	case ParamLUID:
		return LUIDParam(data), nil
	case ParamPtr:
		return Ptr(data), nil
	case ParamHexInt64:
		return HexInt64(data), nil
	case ParamDuration:
		return Duration(data), nil
	case ParamTime:
		return Time{At: time.Unix(0, int64(data)).UTC()}, nil
	}
	return nil, fmt.Errorf("%w: parameter type %d", ErrInvalidRecord, uint32(typ))
}

func decodeString(buf []byte, addr, length uint64) (string, error) {
	desc, err := selfrel.Slice(buf, addr, stringDescriptorSize)
	if err != nil {
		return "", fmt.Errorf("%w: string descriptor out of range", ErrInvalidRecord)
	}
	n := uint64(selfrel.Uint16(desc, 0))
	if n != length || selfrel.Uint16(desc, 2) < selfrel.Uint16(desc, 0) {
		return "", fmt.Errorf("%w: string length mismatch", ErrInvalidRecord)
	}
	raw, err := selfrel.Slice(buf, uint64(selfrel.Uint32(desc, 4)), n)
	if err != nil {
		return "", fmt.Errorf("%w: string data out of range", ErrInvalidRecord)
	}
	return string(raw), nil
}
