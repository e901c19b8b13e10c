package ident

import (
	"fmt"
	"sync/atomic"
)

// LUID is a locally unique 64-bit identifier. Authentication IDs, token IDs
// and privilege values are all LUIDs.
type LUID uint64

// Well-known authentication IDs for the built-in logon sessions.
const (
	SystemLUID         LUID = 0x3e7
	AnonymousLogonLUID LUID = 0x3e6
	LocalServiceLUID   LUID = 0x3e5
	NetworkServiceLUID LUID = 0x3e4
)

const firstAllocatableLUID LUID = 0x1000

// IsZero reports whether l is the zero LUID.
func (l LUID) IsZero() bool { return l == 0 }

// High and Low expose the two 32-bit halves.
func (l LUID) High() uint32 { return uint32(l >> 32) }

func (l LUID) Low() uint32 { return uint32(l) }

func (l LUID) String() string {
	return fmt.Sprintf("0x%x", uint64(l))
}

// Allocator hands out system-wide unique LUIDs.
type Allocator interface {
	Allocate() LUID
}

// Sequence is a lock-free Allocator producing increasing LUIDs.
type Sequence struct {
	next atomic.Uint64
}

// NewSequence returns an allocator whose first LUID is start. A zero start
// selects a value above the well-known range.
func NewSequence(start LUID) *Sequence {
	if start == 0 {
		start = firstAllocatableLUID
	}
	s := &Sequence{}
	s.next.Store(uint64(start))
	return s
}

// Allocate returns the next LUID.
func (s *Sequence) Allocate() LUID {
	return LUID(s.next.Add(1) - 1)
}
