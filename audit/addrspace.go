package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNoSuchRegion is returned for an address that was never allocated
	// or was already freed.
	ErrNoSuchRegion = errors.New("no such region")
	// ErrRegionBounds is returned for a write past the end of a region.
	ErrRegionBounds = errors.New("write outside region")
)

// AddressSpace is the target memory of the logging authority.
type AddressSpace interface {
	Allocate(size int) (uint64, error)
	Write(addr uint64, p []byte) error
	Free(addr uint64) error
}

// CopyToAddressSpace allocates len(buf) bytes in space and copies buf into
// them. When the copy fails the allocation is released, so no partial
// region is left behind.
func CopyToAddressSpace(space AddressSpace, buf []byte) (uint64, error) {
	addr, err := space.Allocate(len(buf))
	if err != nil {
		return 0, fmt.Errorf("%w: allocate %d bytes: %v", ErrCopyFailed, len(buf), err)
	}
	if err := space.Write(addr, buf); err != nil {
		if freeErr := space.Free(addr); freeErr != nil {
			return 0, fmt.Errorf("%w: write: %v (free: %v)", ErrCopyFailed, err, freeErr)
		}
		return 0, fmt.Errorf("%w: write: %v", ErrCopyFailed, err)
	}
	return addr, nil
}

// MemoryAddressSpace is an in-process AddressSpace with a byte limit.
type MemoryAddressSpace struct {
	mu      sync.Mutex
	regions map[uint64][]byte
	next    uint64
	used    int
	limit   int
}

// NewMemoryAddressSpace returns an empty space; limit <= 0 means unlimited.
func NewMemoryAddressSpace(limit int) *MemoryAddressSpace {
	return &MemoryAddressSpace{
		regions: make(map[uint64][]byte),
		next:    0x10000,
		limit:   limit,
	}
}

func (s *MemoryAddressSpace) Allocate(size int) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limit > 0 && s.used+size > s.limit {
		return 0, ErrInsufficientResources
	}
	addr := s.next
	s.next += uint64(alignUp(size)) + dataAlign
	s.regions[addr] = make([]byte, size)
	s.used += size
	return addr, nil
}

func (s *MemoryAddressSpace) Write(addr uint64, p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	region, ok := s.regions[addr]
	if !ok {
		return ErrNoSuchRegion
	}
	if len(p) > len(region) {
		return ErrRegionBounds
	}
	copy(region, p)
	return nil
}

func (s *MemoryAddressSpace) Free(addr uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	region, ok := s.regions[addr]
	if !ok {
		return ErrNoSuchRegion
	}
	s.used -= len(region)
	delete(s.regions, addr)
	return nil
}

// Read returns a copy of the region at addr.
func (s *MemoryAddressSpace) Read(addr uint64) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	region, ok := s.regions[addr]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), region...), true
}

// Regions reports the number of live allocations.
func (s *MemoryAddressSpace) Regions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.regions)
}

// Receiver takes ownership of a record copied into its address space.
type Receiver interface {
	Receive(ctx context.Context, addr uint64, size int) error
}

// SharedMemoryAuthority copies each record into the authority's address
// space and hands the region to a Receiver. A region the receiver refuses
// is freed.
type SharedMemoryAuthority struct {
	space    AddressSpace
	receiver Receiver
}

func NewSharedMemoryAuthority(space AddressSpace, receiver Receiver) *SharedMemoryAuthority {
	return &SharedMemoryAuthority{space: space, receiver: receiver}
}

func (a *SharedMemoryAuthority) Deliver(ctx context.Context, item *WorkItem) error {
	addr, err := CopyToAddressSpace(a.space, item.Buffer)
	if err != nil {
		return err
	}
	if err := a.receiver.Receive(ctx, addr, len(item.Buffer)); err != nil {
		if freeErr := a.space.Free(addr); freeErr != nil {
			return fmt.Errorf("receive: %w (free: %v)", err, freeErr)
		}
		return err
	}
	return nil
}
