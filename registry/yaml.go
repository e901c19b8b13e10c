package registry

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

// YAMLStore serves values from a YAML document mapping key paths to value
// names. Integers are dwords, sequences of integers are binary values and
// strings are strings:
//
//	System\CurrentControlSet\Control\Lsa:
//	  CrashOnAuditFail: 1
//	  Bounds: [0, 48, 0, 0, 0, 32, 0, 0]
type YAMLStore struct {
	mu   sync.RWMutex
	keys map[string]map[string]Value
	path string
}

// OpenYAML loads path. Set persists back to the same file.
func OpenYAML(path string) (*YAMLStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}
	s, err := LoadYAML(data)
	if err != nil {
		return nil, err
	}
	s.path = path
	return s, nil
}

// LoadYAML parses data. The store is not persisted.
func LoadYAML(data []byte) (*YAMLStore, error) {
	var doc map[string]map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("registry: parse yaml: %w", err)
	}
	s := &YAMLStore{keys: make(map[string]map[string]Value, len(doc))}
	for key, vals := range doc {
		out := make(map[string]Value, len(vals))
		for name, node := range vals {
			v, err := decodeYAMLValue(&node)
			if err != nil {
				return nil, fmt.Errorf("%s\\%s: %w", key, name, err)
			}
			out[strings.ToLower(name)] = v
		}
		s.keys[normalizeKey(key)] = out
	}
	return s, nil
}

func decodeYAMLValue(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!int" {
			var u uint32
			if err := n.Decode(&u); err != nil {
				return Value{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
			}
			return Uint32(u), nil
		}
		var str string
		if err := n.Decode(&str); err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return String(str), nil
	case yaml.SequenceNode:
		var seq []uint32
		if err := n.Decode(&seq); err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		raw := make([]byte, len(seq))
		for i, b := range seq {
			if b > 0xff {
				return Value{}, fmt.Errorf("%w: byte %d out of range", ErrInvalidValue, b)
			}
			raw[i] = byte(b)
		}
		return Value{Kind: KindBinary, Binary: raw}, nil
	default:
		return Value{}, ErrInvalidValue
	}
}

func (s *YAMLStore) Query(_ context.Context, key, name string) (Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vals, ok := s.keys[normalizeKey(key)]
	if !ok {
		return Value{}, ErrNotFound
	}
	v, ok := vals[strings.ToLower(name)]
	if !ok {
		return Value{}, ErrNotFound
	}
	return v, nil
}

func (s *YAMLStore) Set(_ context.Context, key, name string, v Value) error {
	if _, err := FormatValue(v); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	vals, ok := s.keys[normalizeKey(key)]
	if !ok {
		return ErrNotFound
	}
	vals[strings.ToLower(name)] = v
	if s.path == "" {
		return nil
	}
	return s.save()
}

// save writes the whole document. Caller holds the write lock.
func (s *YAMLStore) save() error {
	doc := make(map[string]map[string]any, len(s.keys))
	for key, vals := range s.keys {
		out := make(map[string]any, len(vals))
		for name, v := range vals {
			switch v.Kind {
			case KindUint32:
				out[name] = v.Uint32
			case KindBinary:
				seq := make([]int, len(v.Binary))
				for i, b := range v.Binary {
					seq[i] = int(b)
				}
				out[name] = seq
			case KindString:
				out[name] = v.String
			}
		}
		doc[key] = out
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("registry: encode yaml: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("registry: save %s: %w", s.path, err)
	}
	return nil
}
