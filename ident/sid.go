package ident

import (
	"encoding/binary"
	"errors"
	"strconv"
	"strings"
)

const (
	// SIDRevision is the only SID revision accepted by Parse and FromBytes.
	SIDRevision = 1
	// MaxSubAuthorities bounds the number of sub-authorities in a SID.
	MaxSubAuthorities = 15

	sidHeaderSize = 8
)

var (
	// ErrInvalidSID is returned when a SID string or binary form is malformed.
	ErrInvalidSID = errors.New("invalid sid")
)

// SID is an immutable security identifier in canonical binary form.
//
// The zero value is not a valid SID. SID values are comparable and can be used
// as map keys.
type SID struct {
	b string
}

// NewSID builds a SID from a 48-bit identifier authority and sub-authorities.
func NewSID(authority uint64, subAuthorities ...uint32) (SID, error) {
	if len(subAuthorities) > MaxSubAuthorities {
		return SID{}, ErrInvalidSID
	}
	if authority>>48 != 0 {
		return SID{}, ErrInvalidSID
	}

	buf := make([]byte, sidHeaderSize+4*len(subAuthorities))
	buf[0] = SIDRevision
	buf[1] = byte(len(subAuthorities))
	for i := 0; i < 6; i++ {
		buf[2+i] = byte(authority >> (8 * (5 - i)))
	}
	for i, sub := range subAuthorities {
		binary.LittleEndian.PutUint32(buf[sidHeaderSize+4*i:], sub)
	}
	return SID{b: string(buf)}, nil
}

// MustSID is NewSID for package-level well-known values. It panics on error.
func MustSID(authority uint64, subAuthorities ...uint32) SID {
	s, err := NewSID(authority, subAuthorities...)
	if err != nil {
		panic(err)
	}
	return s
}

// ParseSID parses the "S-R-I-S-S..." string form.
func ParseSID(s string) (SID, error) {
	parts := strings.Split(s, "-")
	if len(parts) < 3 || !strings.EqualFold(parts[0], "S") {
		return SID{}, ErrInvalidSID
	}
	rev, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil || rev != SIDRevision {
		return SID{}, ErrInvalidSID
	}

	var authority uint64
	if strings.HasPrefix(parts[2], "0x") || strings.HasPrefix(parts[2], "0X") {
		authority, err = strconv.ParseUint(parts[2][2:], 16, 48)
	} else {
		authority, err = strconv.ParseUint(parts[2], 10, 48)
	}
	if err != nil {
		return SID{}, ErrInvalidSID
	}

	subs := make([]uint32, 0, len(parts)-3)
	for _, p := range parts[3:] {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return SID{}, ErrInvalidSID
		}
		subs = append(subs, uint32(v))
	}
	return NewSID(authority, subs...)
}

// MustParseSID is ParseSID for tests and well-known tables.
func MustParseSID(s string) SID {
	sid, err := ParseSID(s)
	if err != nil {
		panic(err)
	}
	return sid
}

// SIDFromBytes validates and copies a binary SID. Trailing bytes beyond the
// length implied by the sub-authority count are rejected.
func SIDFromBytes(b []byte) (SID, error) {
	n, err := SIDLength(b)
	if err != nil {
		return SID{}, err
	}
	if n != len(b) {
		return SID{}, ErrInvalidSID
	}
	return SID{b: string(b)}, nil
}

// SIDLength returns the length of the binary SID at the start of b.
func SIDLength(b []byte) (int, error) {
	if len(b) < sidHeaderSize || b[0] != SIDRevision || int(b[1]) > MaxSubAuthorities {
		return 0, ErrInvalidSID
	}
	n := sidHeaderSize + 4*int(b[1])
	if len(b) < n {
		return 0, ErrInvalidSID
	}
	return n, nil
}

// IsValid reports whether s holds a well-formed SID.
func (s SID) IsValid() bool {
	return len(s.b) >= sidHeaderSize
}

// Len is the binary length of the SID in bytes.
func (s SID) Len() int {
	return len(s.b)
}

// Bytes returns a copy of the binary form.
func (s SID) Bytes() []byte {
	return []byte(s.b)
}

// AppendTo appends the binary form to dst.
func (s SID) AppendTo(dst []byte) []byte {
	return append(dst, s.b...)
}

// Equal reports binary equality.
func (s SID) Equal(o SID) bool {
	return s.b == o.b
}

// Authority returns the 48-bit identifier authority.
func (s SID) Authority() uint64 {
	if !s.IsValid() {
		return 0
	}
	var a uint64
	for i := 0; i < 6; i++ {
		a = a<<8 | uint64(s.b[2+i])
	}
	return a
}

// SubAuthorities returns a copy of the sub-authority list.
func (s SID) SubAuthorities() []uint32 {
	if !s.IsValid() {
		return nil
	}
	count := int(s.b[1])
	out := make([]uint32, count)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32([]byte(s.b[sidHeaderSize+4*i : sidHeaderSize+4*i+4]))
	}
	return out
}

// RID returns the last sub-authority, or 0 when there is none.
func (s SID) RID() uint32 {
	subs := s.SubAuthorities()
	if len(subs) == 0 {
		return 0
	}
	return subs[len(subs)-1]
}

func (s SID) String() string {
	if !s.IsValid() {
		return "S-invalid"
	}
	var sb strings.Builder
	sb.WriteString("S-1-")
	a := s.Authority()
	if a >= 1<<32 {
		sb.WriteString("0x")
		sb.WriteString(strconv.FormatUint(a, 16))
	} else {
		sb.WriteString(strconv.FormatUint(a, 10))
	}
	for _, sub := range s.SubAuthorities() {
		sb.WriteByte('-')
		sb.WriteString(strconv.FormatUint(uint64(sub), 10))
	}
	return sb.String()
}

// MarshalText implements encoding.TextMarshaler.
func (s SID) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, ErrInvalidSID
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SID) UnmarshalText(text []byte) error {
	parsed, err := ParseSID(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
