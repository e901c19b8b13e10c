package privilege

import (
	"encoding/binary"
	"errors"

	"github.com/MrEthical07/goRefMon/ident"
)

// SetAllNecessary marks a set whose privileges were all required.
const SetAllNecessary uint32 = 1

const (
	setHeaderSize = 8
	// MaxSetCount bounds DecodeSet against hostile counts.
	MaxSetCount = 1024
)

var (
	// ErrInvalidSet is returned when a binary privilege set is malformed.
	ErrInvalidSet = errors.New("invalid privilege set")
)

// Set is a privilege set as carried in audit records and privilege checks.
type Set struct {
	Control    uint32
	Privileges []LUIDAndAttributes
}

// NewSet builds a set from bare privilege values with zero attributes.
func NewSet(control uint32, luids ...ident.LUID) Set {
	s := Set{Control: control, Privileges: make([]LUIDAndAttributes, len(luids))}
	for i, l := range luids {
		s.Privileges[i].LUID = l
	}
	return s
}

// Size is the encoded size in bytes.
func (s Set) Size() int {
	return setHeaderSize + EntrySize*len(s.Privileges)
}

// Contains reports whether luid is a member of the set.
func (s Set) Contains(luid ident.LUID) bool {
	for _, p := range s.Privileges {
		if p.LUID == luid {
			return true
		}
	}
	return false
}

// EncodeSet renders s as count, control, then packed entries (little endian).
func EncodeSet(s Set) []byte {
	buf := make([]byte, s.Size())
	binary.LittleEndian.PutUint32(buf[0:], uint32(len(s.Privileges)))
	binary.LittleEndian.PutUint32(buf[4:], s.Control)
	off := setHeaderSize
	for _, p := range s.Privileges {
		binary.LittleEndian.PutUint64(buf[off:], uint64(p.LUID))
		binary.LittleEndian.PutUint32(buf[off+8:], uint32(p.Attributes))
		off += EntrySize
	}
	return buf
}

// DecodeSet parses the EncodeSet form. The input length must match exactly.
func DecodeSet(data []byte) (Set, error) {
	if len(data) < setHeaderSize {
		return Set{}, ErrInvalidSet
	}
	count := binary.LittleEndian.Uint32(data[0:])
	if count > MaxSetCount || len(data) != setHeaderSize+int(count)*EntrySize {
		return Set{}, ErrInvalidSet
	}

	s := Set{
		Control:    binary.LittleEndian.Uint32(data[4:]),
		Privileges: make([]LUIDAndAttributes, count),
	}
	off := setHeaderSize
	for i := range s.Privileges {
		s.Privileges[i] = LUIDAndAttributes{
			LUID:       ident.LUID(binary.LittleEndian.Uint64(data[off:])),
			Attributes: Attributes(binary.LittleEndian.Uint32(data[off+8:])),
		}
		off += EntrySize
	}
	return s, nil
}
