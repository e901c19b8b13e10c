package privilege

import (
	"errors"
	"sync"
)

var (
	// ErrFilterInitialized is returned when Init is called a second time.
	ErrFilterInitialized = errors.New("privilege audit filter already initialized")
)

// FilterFlags modify a single ShouldAudit evaluation.
type FilterFlags uint32

const (
	// ServicesFilter additionally suppresses privileges that are never audited
	// for service accounts.
	ServicesFilter FilterFlags = 0x1
)

var (
	// Backup and restore are audited at the point of use in verbose mode.
	shortFilter = MaskOf(ChangeNotify, Audit, CreateToken, AssignPrimaryToken, Debug)
	longFilter  = MaskOf(ChangeNotify, Audit, CreateToken, AssignPrimaryToken, Backup, Restore, Debug)

	servicesFilter = MaskOf(Systemtime)
)

// Filter decides whether a privilege use is worth an audit record.
//
// The filter is initialized exactly once from configuration. Before
// initialization it behaves as the verbose (short list) filter.
type Filter struct {
	mu          sync.RWMutex
	list        Mask64
	verbose     bool
	initialized bool
}

// NewFilter returns an uninitialized filter.
func NewFilter() *Filter {
	return &Filter{list: shortFilter, verbose: true}
}

// Init selects the short list when verbose is true and the long list
// otherwise. Only the first call succeeds.
func (f *Filter) Init(verbose bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.initialized {
		return ErrFilterInitialized
	}
	if verbose {
		f.list = shortFilter
	} else {
		f.list = longFilter
	}
	f.verbose = verbose
	f.initialized = true
	return nil
}

// Initialized reports whether Init has succeeded.
func (f *Filter) Initialized() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.initialized
}

// Verbose reports the selected mode.
func (f *Filter) Verbose() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.verbose
}

// ShouldAudit returns false when the set is empty or when every privilege in
// it is on the active filter list.
func (f *Filter) ShouldAudit(flags FilterFlags, set Set) bool {
	if len(set.Privileges) == 0 {
		return false
	}

	f.mu.RLock()
	list := f.list
	f.mu.RUnlock()

	matched := 0
	for _, p := range set.Privileges {
		if list.Has(p.LUID) {
			matched++
			continue
		}
		if flags&ServicesFilter != 0 && servicesFilter.Has(p.LUID) {
			matched++
		}
	}
	return matched != len(set.Privileges)
}
