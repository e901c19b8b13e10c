package session

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/MrEthical07/goRefMon/ident"
)

const recordFormatVersion = 1

// Encode serializes s without its reference count.
func Encode(s *LogonSession) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordFormatVersion)

	if err := binary.Write(&buf, binary.BigEndian, uint64(s.AuthID)); err != nil {
		return nil, err
	}
	buf.WriteByte(byte(s.Type))

	sid := s.User.Bytes()
	if len(sid) > 255 {
		return nil, fmt.Errorf("%w: user sid too long", ErrInvalidRecord)
	}
	buf.WriteByte(byte(len(sid)))
	buf.Write(sid)

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode is the inverse of Encode.
func Decode(data []byte) (*LogonSession, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if version != recordFormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidRecord, version)
	}

	s := &LogonSession{}

	var authID uint64
	if err := binary.Read(reader, binary.BigEndian, &authID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	s.AuthID = ident.LUID(authID)

	typ, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	s.Type = LogonType(typ)

	sidLen, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if sidLen > 0 {
		raw := make([]byte, sidLen)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		sid, err := ident.SIDFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		s.User = sid
	}

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if reader.Len() != 0 {
		return nil, fmt.Errorf("%w: trailing bytes", ErrInvalidRecord)
	}

	return s, nil
}
