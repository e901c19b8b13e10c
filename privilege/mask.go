package privilege

import "github.com/MrEthical07/goRefMon/ident"

// Mask64 is a bitset over privilege values 0..63. It backs the fixed
// privilege lists used by the audit filter.
type Mask64 uint64

// MaskOf builds a mask with the given privileges set.
func MaskOf(luids ...ident.LUID) Mask64 {
	var m Mask64
	for _, l := range luids {
		m.Set(l)
	}
	return m
}

func (m *Mask64) Has(luid ident.LUID) bool {
	if luid >= 64 {
		return false
	}
	return (*m & (1 << luid)) != 0
}

func (m *Mask64) Set(luid ident.LUID) {
	if luid >= 64 {
		return
	}
	*m |= (1 << luid)
}

func (m *Mask64) Clear(luid ident.LUID) {
	if luid >= 64 {
		return
	}
	*m &^= (1 << luid)
}

func (m *Mask64) Raw() uint64 {
	return uint64(*m)
}
