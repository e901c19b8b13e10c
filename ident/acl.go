package ident

import (
	"encoding/binary"
	"errors"
)

const (
	ACLRevision   = 2
	ACLRevisionDS = 4

	aclHeaderSize = 8
	aceHeaderSize = 8
	maxACLSize    = 0xFFFF
)

// ACE types understood by BuildACL.
const (
	AccessAllowedACEType byte = 0
	AccessDeniedACEType  byte = 1
)

// Generic and standard access rights used in default DACLs.
const (
	ReadControl    uint32 = 0x00020000
	GenericAll     uint32 = 0x10000000
	GenericExecute uint32 = 0x20000000
	GenericWrite   uint32 = 0x40000000
	GenericRead    uint32 = 0x80000000
)

var (
	// ErrInvalidACL is returned when an ACL header is inconsistent with its bytes.
	ErrInvalidACL = errors.New("invalid acl")
)

// ACL is an immutable discretionary access control list in binary form.
// Only the header is interpreted; entries are carried opaquely.
type ACL struct {
	b string
}

// ACE describes one entry for BuildACL.
type ACE struct {
	Type  byte
	Flags byte
	Mask  uint32
	SID   SID
}

// BuildACL assembles a revision-2 ACL from entries.
func BuildACL(aces ...ACE) (ACL, error) {
	size := aclHeaderSize
	for _, ace := range aces {
		if !ace.SID.IsValid() {
			return ACL{}, ErrInvalidSID
		}
		size += align4(aceHeaderSize + ace.SID.Len())
	}
	if size > maxACLSize {
		return ACL{}, ErrInvalidACL
	}

	buf := make([]byte, size)
	buf[0] = ACLRevision
	binary.LittleEndian.PutUint16(buf[2:], uint16(size))
	binary.LittleEndian.PutUint16(buf[4:], uint16(len(aces)))

	off := aclHeaderSize
	for _, ace := range aces {
		aceSize := align4(aceHeaderSize + ace.SID.Len())
		buf[off] = ace.Type
		buf[off+1] = ace.Flags
		binary.LittleEndian.PutUint16(buf[off+2:], uint16(aceSize))
		binary.LittleEndian.PutUint32(buf[off+4:], ace.Mask)
		copy(buf[off+aceHeaderSize:], ace.SID.b)
		off += aceSize
	}
	return ACL{b: string(buf)}, nil
}

// ACLFromBytes validates the header of b and copies it.
func ACLFromBytes(b []byte) (ACL, error) {
	if len(b) < aclHeaderSize {
		return ACL{}, ErrInvalidACL
	}
	if b[0] != ACLRevision && b[0] != ACLRevisionDS {
		return ACL{}, ErrInvalidACL
	}
	if int(binary.LittleEndian.Uint16(b[2:])) != len(b) || len(b)%4 != 0 {
		return ACL{}, ErrInvalidACL
	}
	return ACL{b: string(b)}, nil
}

// IsValid reports whether a holds an ACL.
func (a ACL) IsValid() bool { return len(a.b) >= aclHeaderSize }

// Size is the binary size in bytes.
func (a ACL) Size() int { return len(a.b) }

// Bytes returns a copy of the binary form.
func (a ACL) Bytes() []byte { return []byte(a.b) }

// AceCount returns the entry count recorded in the header.
func (a ACL) AceCount() int {
	if !a.IsValid() {
		return 0
	}
	return int(binary.LittleEndian.Uint16([]byte(a.b[4:6])))
}

// Equal reports binary equality.
func (a ACL) Equal(o ACL) bool { return a.b == o.b }

func align4(n int) int {
	return (n + 3) &^ 3
}
