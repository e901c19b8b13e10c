// Package selfrel builds self-relative byte buffers: every internal reference
// is stored as an offset from the start of the buffer, so the bytes can be
// copied anywhere and interpreted without fix-ups.
package selfrel

import (
	"encoding/binary"
	"errors"
)

var (
	// ErrOverflow is returned when a write would exceed the buffer limit.
	ErrOverflow = errors.New("selfrel: buffer limit exceeded")
	// ErrOutOfRange is returned when an offset does not fall inside the buffer.
	ErrOutOfRange = errors.New("selfrel: offset out of range")
)

var order = binary.LittleEndian

// Width is the size of a stored offset.
type Width uint8

const (
	Width32 Width = 4
	Width64 Width = 8
)

type reloc struct {
	at     int
	target int
	width  Width
}

// Buffer accumulates bytes and the offsets that point into them. References
// are kept in a relocation table and written out by Finalize, so callers never
// handle addresses.
type Buffer struct {
	b      []byte
	limit  int
	relocs []reloc
	done   bool
}

// New returns a buffer that reuses dst's storage. limit caps the final size;
// zero means cap(dst), or unlimited when dst is nil.
func New(dst []byte, limit int) *Buffer {
	if limit == 0 && dst != nil {
		limit = cap(dst)
	}
	return &Buffer{b: dst[:0], limit: limit}
}

// Len reports the bytes written so far.
func (b *Buffer) Len() int { return len(b.b) }

func (b *Buffer) ensure(n int) error {
	if b.done {
		panic("selfrel: write after Finalize")
	}
	if b.limit > 0 && len(b.b)+n > b.limit {
		return ErrOverflow
	}
	return nil
}

// Reserve appends n zero bytes and returns their offset.
func (b *Buffer) Reserve(n int) (int, error) {
	if err := b.ensure(n); err != nil {
		return 0, err
	}
	off := len(b.b)
	b.b = append(b.b, make([]byte, n)...)
	return off, nil
}

// Align pads with zeros to a multiple of align.
func (b *Buffer) Align(align int) error {
	if align <= 1 {
		return nil
	}
	pad := (align - len(b.b)%align) % align
	_, err := b.Reserve(pad)
	return err
}

// Write aligns, appends p and returns the offset of its first byte.
func (b *Buffer) Write(p []byte, align int) (int, error) {
	if err := b.Align(align); err != nil {
		return 0, err
	}
	if err := b.ensure(len(p)); err != nil {
		return 0, err
	}
	off := len(b.b)
	b.b = append(b.b, p...)
	return off, nil
}

func (b *Buffer) PutUint16At(off int, v uint16) { order.PutUint16(b.b[off:off+2], v) }

func (b *Buffer) PutUint32At(off int, v uint32) { order.PutUint32(b.b[off:off+4], v) }

func (b *Buffer) PutUint64At(off int, v uint64) { order.PutUint64(b.b[off:off+8], v) }

// Reference records that the field at offset at refers to target. The field
// is written when the buffer is finalized.
func (b *Buffer) Reference(at, target int, w Width) {
	if at < 0 || at+int(w) > len(b.b) {
		panic("selfrel: reference field outside buffer")
	}
	b.relocs = append(b.relocs, reloc{at: at, target: target, width: w})
}

// Finalize resolves every reference and returns the buffer. Targets must lie
// inside the written bytes.
func (b *Buffer) Finalize() ([]byte, error) {
	if b.done {
		return b.b, nil
	}
	for _, r := range b.relocs {
		if r.target < 0 || r.target > len(b.b) {
			return nil, ErrOutOfRange
		}
		switch r.width {
		case Width32:
			b.PutUint32At(r.at, uint32(r.target))
		case Width64:
			b.PutUint64At(r.at, uint64(r.target))
		}
	}
	b.done = true
	b.relocs = nil
	return b.b, nil
}

// Slice returns buf[off:off+n] after bounds checking.
func Slice(buf []byte, off, n uint64) ([]byte, error) {
	if n > uint64(len(buf)) || off > uint64(len(buf))-n {
		return nil, ErrOutOfRange
	}
	return buf[off : off+n], nil
}

func Uint16(buf []byte, off int) uint16 { return order.Uint16(buf[off:]) }

func Uint32(buf []byte, off int) uint32 { return order.Uint32(buf[off:]) }

func Uint64(buf []byte, off int) uint64 { return order.Uint64(buf[off:]) }
