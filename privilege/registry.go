package privilege

import (
	"errors"
	"sync"

	"github.com/MrEthical07/goRefMon/ident"
)

var (
	// ErrRegistryFrozen is returned by Register after Freeze.
	ErrRegistryFrozen = errors.New("privilege registry frozen")
	// ErrDuplicatePrivilege is returned when a name or value is registered twice.
	ErrDuplicatePrivilege = errors.New("privilege already registered")
	// ErrUnknownPrivilege is returned when a name or value has no registration.
	ErrUnknownPrivilege = errors.New("unknown privilege")
)

// Registry maps privilege names to their LUID values.
//
// A registry is populated during initialization and frozen before it is shared
// with the token manager.
type Registry struct {
	mu         sync.RWMutex
	nameToLUID map[string]ident.LUID
	luidToName map[ident.LUID]string
	frozen     bool
}

// NewRegistry creates an empty, unfrozen [Registry].
func NewRegistry() *Registry {
	return &Registry{
		nameToLUID: make(map[string]ident.LUID),
		luidToName: make(map[ident.LUID]string),
	}
}

// DefaultRegistry returns a frozen registry holding every well-known privilege.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for luid, name := range wellKnownNames {
		r.nameToLUID[name] = luid
		r.luidToName[luid] = name
	}
	r.Freeze()
	return r
}

// Register binds name to luid. Must be called before [Registry.Freeze].
func (r *Registry) Register(name string, luid ident.LUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrRegistryFrozen
	}
	if name == "" || luid.IsZero() {
		return errors.New("privilege name and value must be set")
	}
	if _, exists := r.nameToLUID[name]; exists {
		return ErrDuplicatePrivilege
	}
	if _, exists := r.luidToName[luid]; exists {
		return ErrDuplicatePrivilege
	}

	r.nameToLUID[name] = luid
	r.luidToName[luid] = name
	return nil
}

// Lookup returns the value registered for name.
func (r *Registry) Lookup(name string) (ident.LUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	luid, ok := r.nameToLUID[name]
	if !ok {
		return 0, ErrUnknownPrivilege
	}
	return luid, nil
}

// Name returns the name registered for luid.
func (r *Registry) Name(luid ident.LUID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.luidToName[luid]
	return name, ok
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered privileges.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToLUID)
}
