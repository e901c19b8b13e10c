package token

import "github.com/MrEthical07/goRefMon/ident"

// DefaultDynamicCharge is the minimum size of a token's dynamic region.
const DefaultDynamicCharge = 500

const pointerAlign = 8

func alignUp(n int) int {
	return (n + pointerAlign - 1) &^ (pointerAlign - 1)
}

type dynamicField uint8

const (
	fieldPrimaryGroup dynamicField = iota
	fieldDefaultDACL
)

// dynamicPart is the arena holding the primary group and the optional default
// DACL. Fields are addressed by offset, so reallocating buf keeps them valid.
// len(buf) is the charged capacity.
type dynamicPart struct {
	buf      []byte
	groupOff int
	groupLen int
	daclOff  int
	daclLen  int
}

func newDynamicPart(group ident.SID, dacl ident.ACL, hasDACL bool, charge int) dynamicPart {
	d := dynamicPart{buf: make([]byte, charge)}
	d.groupLen = copy(d.buf, group.Bytes())
	if hasDACL {
		d.daclOff = alignUp(d.groupLen)
		d.daclLen = copy(d.buf[d.daclOff:], dacl.Bytes())
	}
	return d
}

// requiredSize is the aligned size of the group and DACL bodies.
func requiredSize(groupLen, daclLen int) int {
	return alignUp(groupLen) + alignUp(daclLen)
}

func (d *dynamicPart) charged() int { return len(d.buf) }

func (d *dynamicPart) used() int { return requiredSize(d.groupLen, d.daclLen) }

func (d *dynamicPart) available() int { return d.charged() - d.used() }

func (d *dynamicPart) primaryGroup() ident.SID {
	sid, err := ident.SIDFromBytes(d.buf[d.groupOff : d.groupOff+d.groupLen])
	if err != nil {
		panic("token: primary group region corrupt")
	}
	return sid
}

func (d *dynamicPart) defaultDACL() (ident.ACL, bool) {
	if d.daclLen == 0 {
		return ident.ACL{}, false
	}
	acl, err := ident.ACLFromBytes(d.buf[d.daclOff : d.daclOff+d.daclLen])
	if err != nil {
		panic("token: default dacl region corrupt")
	}
	return acl, true
}

// grow reallocates the arena to at least size bytes. The new capacity never
// exceeds limit. Offsets are untouched since the bytes keep their positions.
func (d *dynamicPart) grow(size, limit int) error {
	if size <= len(d.buf) {
		return nil
	}
	if size > limit {
		return ErrAllottedSpaceExceeded
	}
	next := make([]byte, size)
	copy(next, d.buf)
	d.buf = next
	return nil
}

// replace swaps the bytes of field f for data. The caller has already ensured
// capacity with grow. The surviving field is compacted to offset zero and the
// new field is written at the next aligned offset.
func (d *dynamicPart) replace(f dynamicField, data []byte) {
	keepOff, keepLen := d.daclOff, d.daclLen
	if f == fieldDefaultDACL {
		keepOff, keepLen = d.groupOff, d.groupLen
	}

	if keepLen > 0 && keepOff != 0 {
		copy(d.buf[:keepLen], d.buf[keepOff:keepOff+keepLen])
	}
	newOff := alignUp(keepLen)
	n := copy(d.buf[newOff:], data)
	clear(d.buf[newOff+n:])

	switch f {
	case fieldPrimaryGroup:
		d.daclOff = 0
		d.groupOff, d.groupLen = newOff, n
	case fieldDefaultDACL:
		d.groupOff = 0
		d.daclOff, d.daclLen = newOff, n
		if n == 0 {
			d.daclOff = 0
		}
	}
}

func (d *dynamicPart) clone() dynamicPart {
	c := *d
	c.buf = append([]byte(nil), d.buf...)
	return c
}

func (d *dynamicPart) free() {
	d.buf = nil
	d.groupOff, d.groupLen, d.daclOff, d.daclLen = 0, 0, 0, 0
}
