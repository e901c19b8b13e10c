package registry

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNotFound is returned when the key or the value does not exist.
	ErrNotFound = errors.New("registry: not found")
	// ErrTypeMismatch is returned when a value exists with a different kind or size.
	ErrTypeMismatch = errors.New("registry: type mismatch")
	// ErrInvalidValue is returned when a stored value cannot be decoded.
	ErrInvalidValue = errors.New("registry: invalid value")
)

// Kind is the type of a stored value.
type Kind uint8

const (
	KindUint32 Kind = iota + 1
	KindBinary
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindUint32:
		return "dword"
	case KindBinary:
		return "hex"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is a typed registry value.
type Value struct {
	Kind   Kind
	Uint32 uint32
	Binary []byte
	String string
}

func Uint32(v uint32) Value { return Value{Kind: KindUint32, Uint32: v} }

func Binary(b []byte) Value { return Value{Kind: KindBinary, Binary: append([]byte(nil), b...)} }

func String(s string) Value { return Value{Kind: KindString, String: s} }

// Store reads values.
type Store interface {
	Query(ctx context.Context, key, name string) (Value, error)
}

// Writer updates values under existing keys.
type Writer interface {
	Set(ctx context.Context, key, name string, v Value) error
}

// ReadWriter is a Store that can also be written.
type ReadWriter interface {
	Store
	Writer
}

// QueryUint32 reads a 32-bit integer value.
func QueryUint32(ctx context.Context, s Store, key, name string) (uint32, error) {
	v, err := s.Query(ctx, key, name)
	if err != nil {
		return 0, err
	}
	if v.Kind != KindUint32 {
		return 0, fmt.Errorf("%w: %s\\%s is %s", ErrTypeMismatch, key, name, v.Kind)
	}
	return v.Uint32, nil
}

// QueryBinary reads a binary value of exactly size bytes.
func QueryBinary(ctx context.Context, s Store, key, name string, size int) ([]byte, error) {
	v, err := s.Query(ctx, key, name)
	if err != nil {
		return nil, err
	}
	if v.Kind != KindBinary || len(v.Binary) != size {
		return nil, fmt.Errorf("%w: %s\\%s", ErrTypeMismatch, key, name)
	}
	return v.Binary, nil
}

// FormatValue renders v in the text form used by the file and Redis backends:
// dword:0000000a, hex:01,02 or a double-quoted string.
func FormatValue(v Value) (string, error) {
	switch v.Kind {
	case KindUint32:
		return fmt.Sprintf("dword:%08x", v.Uint32), nil
	case KindBinary:
		parts := make([]string, len(v.Binary))
		for i, b := range v.Binary {
			parts[i] = hex.EncodeToString([]byte{b})
		}
		return "hex:" + strings.Join(parts, ","), nil
	case KindString:
		return strconv.Quote(v.String), nil
	default:
		return "", fmt.Errorf("%w: kind %d", ErrInvalidValue, v.Kind)
	}
}

// ParseValue is the inverse of FormatValue.
func ParseValue(s string) (Value, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "dword:"):
		n, err := strconv.ParseUint(strings.TrimPrefix(s, "dword:"), 16, 32)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return Uint32(uint32(n)), nil
	case strings.HasPrefix(s, "hex:"):
		body := strings.TrimPrefix(s, "hex:")
		if body == "" {
			return Value{Kind: KindBinary, Binary: []byte{}}, nil
		}
		parts := strings.Split(body, ",")
		out := make([]byte, len(parts))
		for i, p := range parts {
			b, err := hex.DecodeString(strings.TrimSpace(p))
			if err != nil || len(b) != 1 {
				return Value{}, fmt.Errorf("%w: bad byte %q", ErrInvalidValue, p)
			}
			out[i] = b[0]
		}
		return Value{Kind: KindBinary, Binary: out}, nil
	case strings.HasPrefix(s, `"`):
		str, err := strconv.Unquote(s)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return String(str), nil
	default:
		return Value{}, fmt.Errorf("%w: %q", ErrInvalidValue, s)
	}
}

// normalizeKey trims separators so `\A\B\` and `A\B` address the same key.
// Key paths compare case-insensitively.
func normalizeKey(key string) string {
	return strings.ToLower(strings.Trim(key, `\`))
}
