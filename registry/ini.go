package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/ini.v1"
)

// INIStore serves values from an INI file. Each section is a key path:
//
//	[System\CurrentControlSet\Control\Lsa]
//	CrashOnAuditFail = dword:00000001
//	Bounds           = hex:00,30,00,00,00,20,00,00
//
// Values without a dword: or hex: prefix are strings.
type INIStore struct {
	mu   sync.RWMutex
	file *ini.File
	path string
}

var iniOptions = ini.LoadOptions{Insensitive: true, IgnoreInlineComment: true}

// OpenINI loads path. Set persists back to the same file.
func OpenINI(path string) (*INIStore, error) {
	f, err := ini.LoadSources(iniOptions, path)
	if err != nil {
		return nil, fmt.Errorf("registry: load %s: %w", path, err)
	}
	return &INIStore{file: f, path: path}, nil
}

// LoadINI parses data. The store is not persisted.
func LoadINI(data []byte) (*INIStore, error) {
	f, err := ini.LoadSources(iniOptions, data)
	if err != nil {
		return nil, fmt.Errorf("registry: parse ini: %w", err)
	}
	return &INIStore{file: f}, nil
}

func (s *INIStore) Query(_ context.Context, key, name string) (Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sec, err := s.file.GetSection(normalizeKey(key))
	if err != nil {
		return Value{}, ErrNotFound
	}
	k, err := sec.GetKey(strings.ToLower(name))
	if err != nil {
		return Value{}, ErrNotFound
	}
	return parseINIValue(k.String())
}

func parseINIValue(raw string) (Value, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "dword:") || strings.HasPrefix(raw, "hex:") || strings.HasPrefix(raw, `"`) {
		return ParseValue(raw)
	}
	return String(raw), nil
}

func (s *INIStore) Set(_ context.Context, key, name string, v Value) error {
	text, err := FormatValue(v)
	if err != nil {
		return err
	}
	if v.Kind == KindString {
		text = v.String
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sec, err := s.file.GetSection(normalizeKey(key))
	if err != nil {
		return ErrNotFound
	}
	sec.Key(strings.ToLower(name)).SetValue(text)
	if s.path == "" {
		return nil
	}
	if err := s.file.SaveTo(s.path); err != nil {
		return fmt.Errorf("registry: save %s: %w", s.path, err)
	}
	return nil
}
