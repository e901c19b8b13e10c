package ident

// GroupAttributes is the attribute bitmask carried by every entry of a token's
// principal set.
type GroupAttributes uint32

const (
	GroupMandatory        GroupAttributes = 0x00000001
	GroupEnabledByDefault GroupAttributes = 0x00000002
	GroupEnabled          GroupAttributes = 0x00000004
	GroupOwner            GroupAttributes = 0x00000008
	GroupUseForDenyOnly   GroupAttributes = 0x00000010
	GroupResource         GroupAttributes = 0x20000000
	GroupLogonID          GroupAttributes = 0xC0000000
)

// Has reports whether every bit of flag is set.
func (a GroupAttributes) Has(flag GroupAttributes) bool {
	return a&flag == flag
}

// Set returns a with flag added.
func (a GroupAttributes) Set(flag GroupAttributes) GroupAttributes {
	return a | flag
}

// Clear returns a with flag removed.
func (a GroupAttributes) Clear(flag GroupAttributes) GroupAttributes {
	return a &^ flag
}

// SIDAndAttributes pairs an identity with its group attributes.
type SIDAndAttributes struct {
	SID        SID
	Attributes GroupAttributes
}

// SIDAndAttributesSize is the fixed per-entry size charged for the array part
// of a principal set (pointer + attributes, pointer aligned).
const SIDAndAttributesSize = 16
