// Package auditpol models audit policy: the audit categories, the system-wide
// per-category success/failure state, per-token policy overlays and the
// process-wide counters that record how many live tokens carry an overlay for
// each category.
//
// Evaluate combines the three. When no live token overrides a category the
// global state answers alone and no token is consulted.
package auditpol

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// Category is a coarse audit classification.
type Category uint16

const (
	CategorySystem Category = iota
	CategoryLogon
	CategoryObjectAccess
	CategoryPrivilegeUse
	CategoryDetailedTracking
	CategoryPolicyChange
	CategoryAccountManagement
	CategoryDirectoryServiceAccess
	CategoryAccountLogon
	CategoryCount
)

var categoryNames = [CategoryCount]string{
	"system",
	"logon",
	"object_access",
	"privilege_use",
	"detailed_tracking",
	"policy_change",
	"account_management",
	"directory_service_access",
	"account_logon",
}

// Valid reports whether c names a known category.
func (c Category) Valid() bool { return c < CategoryCount }

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", uint16(c))
	}
	return categoryNames[c]
}

// ParseCategory is the inverse of Category.String.
func ParseCategory(s string) (Category, error) {
	for i, name := range categoryNames {
		if name == s {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

var (
	// ErrUnknownCategory is returned for category values outside the known set.
	ErrUnknownCategory = errors.New("unknown audit category")
)

// Mask is the per-category override carried by a token.
type Mask uint8

const (
	SuccessInclude Mask = 0x1
	SuccessExclude Mask = 0x2
	FailureInclude Mask = 0x4
	FailureExclude Mask = 0x8

	validMask = SuccessInclude | SuccessExclude | FailureInclude | FailureExclude
)

// TokenPolicy is a per-token overlay, one mask per category.
type TokenPolicy [CategoryCount]Mask

// IsEmpty reports whether no category carries an override.
func (p *TokenPolicy) IsEmpty() bool {
	if p == nil {
		return true
	}
	for _, m := range p {
		if m != 0 {
			return false
		}
	}
	return true
}

// Validate rejects masks with unknown bits.
func (p *TokenPolicy) Validate() error {
	if p == nil {
		return nil
	}
	for i, m := range p {
		if m&^validMask != 0 {
			return fmt.Errorf("invalid audit mask 0x%x for %s", uint8(m), Category(i))
		}
	}
	return nil
}

// Counters tracks, per category, how many live tokens carry a non-zero mask.
// Updates are plain atomic adds; readers treat the values as a hint.
type Counters struct {
	c [CategoryCount]atomic.Int64
}

// Add records p's contribution.
func (c *Counters) Add(p *TokenPolicy) {
	c.apply(p, 1)
}

// Remove reverses a contribution previously recorded with Add.
func (c *Counters) Remove(p *TokenPolicy) {
	c.apply(p, -1)
}

func (c *Counters) apply(p *TokenPolicy, delta int64) {
	if c == nil || p == nil {
		return
	}
	for i, m := range p {
		if m != 0 {
			c.c[i].Add(delta)
		}
	}
}

// Count returns the counter for cat.
func (c *Counters) Count(cat Category) int64 {
	if c == nil || !cat.Valid() {
		return 0
	}
	return c.c[cat].Load()
}

// Snapshot returns all counters keyed by category name.
func (c *Counters) Snapshot() map[string]int64 {
	out := make(map[string]int64, CategoryCount)
	for i := Category(0); i < CategoryCount; i++ {
		out[i.String()] = c.Count(i)
	}
	return out
}

// State is the system-wide per-category auditing switch.
type State struct {
	success [CategoryCount]atomic.Bool
	failure [CategoryCount]atomic.Bool
}

// Set updates the switches for cat.
func (s *State) Set(cat Category, onSuccess, onFailure bool) error {
	if !cat.Valid() {
		return ErrUnknownCategory
	}
	s.success[cat].Store(onSuccess)
	s.failure[cat].Store(onFailure)
	return nil
}

// OnSuccess reports whether successes in cat are audited system-wide.
func (s *State) OnSuccess(cat Category) bool {
	return cat.Valid() && s.success[cat].Load()
}

// OnFailure reports whether failures in cat are audited system-wide.
func (s *State) OnFailure(cat Category) bool {
	return cat.Valid() && s.failure[cat].Load()
}

// Global returns the system-wide answer for an event.
func (s *State) Global(cat Category, granted, denied bool) bool {
	return (granted && s.OnSuccess(cat)) || (denied && s.OnFailure(cat))
}

// Overlay applies a token mask on top of the global answer. Include bits
// force auditing, exclude bits suppress it, include wins over exclude.
func Overlay(global bool, m Mask, granted, denied bool) bool {
	if m == 0 {
		return global
	}
	if (granted && m&SuccessInclude != 0) || (denied && m&FailureInclude != 0) {
		return true
	}
	if (granted && m&SuccessExclude != 0) || (denied && m&FailureExclude != 0) {
		return false
	}
	return global
}

// Evaluate answers whether an event in cat is audited. The global state
// decides alone while no live token overrides cat. Otherwise mask is asked
// for the effective token's override; if it fails the global answer is
// returned together with the error.
func Evaluate(s *State, c *Counters, cat Category, granted, denied bool, mask func() (Mask, error)) (bool, error) {
	global := s.Global(cat, granted, denied)
	if c.Count(cat) == 0 {
		return global, nil
	}
	m, err := mask()
	if err != nil {
		return global, err
	}
	return Overlay(global, m, granted, denied), nil
}
