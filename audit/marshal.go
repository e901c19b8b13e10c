package audit

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/MrEthical07/goRefMon/internal/selfrel"
	"github.com/MrEthical07/goRefMon/privilege"
	"github.com/agilira/go-timecache"
)

// Record layout. All integers are little endian.
//
//	header (24 bytes)
//	  0  category    u16
//	  2  audit id    u16
//	  4  param count u16
//	  6  event type  u16
//	  8  length      u32  total buffer size
//	 12  flags       u32  FlagSelfRelative
//	 16  timestamp   i64  unix nanoseconds
//	slots (24 bytes each)
//	  0  type        u32
//	  4  length      u32  out-of-line byte count
//	  8  data        u64  scalar value
//	 16  address     u64  offset of out-of-line data
//	data area
//	  string descriptor: length u16, maximum length u16, buffer offset u32
const (
	headerSize = 24
	slotSize   = 24
	dataAlign  = 8

	// FlagSelfRelative marks a buffer whose addresses are offsets.
	FlagSelfRelative uint32 = 0x1

	// DefaultMaxRecordSize caps a single record allocation.
	DefaultMaxRecordSize = 1 << 20

	maxStringBytes = 0xFFFF
)

// MemoryKind tags where a record buffer was allocated.
type MemoryKind uint8

const (
	MemoryPaged MemoryKind = iota + 1
	MemoryNonPaged
)

// Allocator returns a zeroed buffer of exactly size bytes, or nil when the
// allocation cannot be satisfied.
type Allocator func(size int) []byte

// HeapAllocator allocates from the Go heap.
func HeapAllocator(size int) []byte { return make([]byte, size) }

// Marshaller builds self-relative records.
type Marshaller struct {
	alloc   Allocator
	maxSize int
	now     func() int64
}

// NewMarshaller returns a marshaller. A nil alloc uses HeapAllocator and a
// non-positive maxRecordSize uses DefaultMaxRecordSize.
func NewMarshaller(maxRecordSize int, alloc Allocator) *Marshaller {
	if alloc == nil {
		alloc = HeapAllocator
	}
	if maxRecordSize <= 0 {
		maxRecordSize = DefaultMaxRecordSize
	}
	return &Marshaller{
		alloc:   alloc,
		maxSize: maxRecordSize,
		now:     timecache.CachedTimeNano,
	}
}

func alignUp(n int) int {
	return (n + dataAlign - 1) &^ (dataAlign - 1)
}

// RecordSize is the allocation size for p: the header, one slot per
// parameter and every parameter's declared length rounded up to the data
// alignment. Scalars are counted although they are stored inline.
func RecordSize(p *Params) int {
	size := headerSize + slotSize*len(p.Params)
	for _, prm := range p.Params {
		size += alignUp(prm.declaredLength())
	}
	return size
}

// Marshal builds the record for p and wraps it in an audit work item.
//
// Callers are trusted: more than MaxParams parameters, an unknown parameter
// variant or a string longer than 65535 bytes panics. Only allocation
// failure is reported, as ErrInsufficientResources.
func (m *Marshaller) Marshal(p *Params) (*WorkItem, error) {
	buf, err := m.marshal(p)
	if err != nil {
		return nil, err
	}
	return &WorkItem{
		Tag:     TagAuditRecord,
		Command: CommandLogAudit,
		Buffer:  buf,
		Memory:  MemoryPaged,
	}, nil
}

func must(off int, err error) int {
	if err != nil {
		panic(fmt.Sprintf("audit: record size estimate violated: %v", err))
	}
	return off
}

func (m *Marshaller) marshal(p *Params) ([]byte, error) {
	if len(p.Params) > MaxParams {
		panic(fmt.Sprintf("audit: %d parameters exceed the maximum of %d", len(p.Params), MaxParams))
	}

	size := RecordSize(p)
	if size > m.maxSize {
		return nil, fmt.Errorf("%w: record of %d bytes", ErrInsufficientResources, size)
	}
	raw := m.alloc(size)
	if raw == nil {
		return nil, ErrInsufficientResources
	}

	b := selfrel.New(raw[:0], size)
	must(b.Reserve(headerSize + slotSize*len(p.Params)))

	b.PutUint16At(0, uint16(p.Category))
	b.PutUint16At(2, p.AuditID)
	b.PutUint16At(4, uint16(len(p.Params)))
	b.PutUint16At(6, uint16(p.Type))
	b.PutUint32At(8, uint32(size))
	b.PutUint32At(12, FlagSelfRelative)
	b.PutUint64At(16, uint64(m.now()))

	for i, prm := range p.Params {
		slot := headerSize + i*slotSize
		b.PutUint32At(slot, uint32(prm.ParamType()))

		switch v := prm.(type) {
		case String:
			putString(b, slot, string(v))
		case FileSpec:
			putString(b, slot, string(v))
		case SIDParam:
			putBytes(b, slot, v.SID.Bytes())
		case Privileges:
			putBytes(b, slot, privilege.EncodeSet(v.Set))
		case GUID:
			putBytes(b, slot, v[:])
		case SockAddr:
			putBytes(b, slot, encodeSockAddr(netip.AddrPort(v)))
		case None, NoLogonID:
		case Ulong:
			b.PutUint64At(slot+8, uint64(v))
		case HexUlong:
			b.PutUint64At(slot+8, uint64(v))
		case AccessMask:
			b.PutUint64At(slot+8, uint64(v))
		case LogonID:
			b.PutUint64At(slot+8, uint64(v))
		case LUIDParam:
			b.PutUint64At(slot+8, uint64(v))
		case Ptr:
			b.PutUint64At(slot+8, uint64(v))
		case HexInt64:
			b.PutUint64At(slot+8, uint64(v))
		case Duration:
			b.PutUint64At(slot+8, uint64(v))
		case Time:
			b.PutUint64At(slot+8, uint64(v.At.UnixNano()))
		default:
			panic(fmt.Sprintf("audit: unsupported parameter %T", prm))
		}
	}

	must(b.Reserve(size - b.Len()))
	out, err := b.Finalize()
	if err != nil {
		panic(fmt.Sprintf("audit: finalize record: %v", err))
	}
	return out, nil
}

func putString(b *selfrel.Buffer, slot int, s string) {
	if len(s) > maxStringBytes {
		panic(fmt.Sprintf("audit: string parameter of %d bytes", len(s)))
	}
	desc := must(b.Write(make([]byte, stringDescriptorSize), dataAlign))
	b.PutUint16At(desc, uint16(len(s)))
	b.PutUint16At(desc+2, uint16(len(s)))
	data := must(b.Write([]byte(s), 1))
	b.Reference(desc+4, data, selfrel.Width32)

	b.PutUint32At(slot+4, uint32(len(s)))
	b.Reference(slot+16, desc, selfrel.Width64)
}

func putBytes(b *selfrel.Buffer, slot int, p []byte) {
	off := must(b.Write(p, dataAlign))
	b.PutUint32At(slot+4, uint32(len(p)))
	b.Reference(slot+16, off, selfrel.Width64)
}

// Socket address families as carried in records.
const (
	familyUnspec uint16 = 0
	familyINET   uint16 = 2
	familyINET6  uint16 = 23
)

func sockAddrLen(ap netip.AddrPort) int {
	switch {
	case !ap.Addr().IsValid():
		return 4
	case ap.Addr().Is4():
		return 8
	default:
		return 20
	}
}

// encodeSockAddr writes family (little endian), port (network order) and
// the address bytes. Zones are not carried.
func encodeSockAddr(ap netip.AddrPort) []byte {
	out := make([]byte, sockAddrLen(ap))
	addr := ap.Addr()
	switch {
	case !addr.IsValid():
		binary.LittleEndian.PutUint16(out, familyUnspec)
	case addr.Is4():
		binary.LittleEndian.PutUint16(out, familyINET)
		a := addr.As4()
		copy(out[4:], a[:])
	default:
		binary.LittleEndian.PutUint16(out, familyINET6)
		a := addr.As16()
		copy(out[4:], a[:])
	}
	binary.BigEndian.PutUint16(out[2:], ap.Port())
	return out
}

func decodeSockAddr(raw []byte) (netip.AddrPort, error) {
	if len(raw) < 4 {
		return netip.AddrPort{}, fmt.Errorf("%w: short socket address", ErrInvalidRecord)
	}
	family := binary.LittleEndian.Uint16(raw)
	port := binary.BigEndian.Uint16(raw[2:])
	switch {
	case family == familyUnspec && len(raw) == 4 && port == 0:
		return netip.AddrPort{}, nil
	case family == familyINET && len(raw) == 8:
		return netip.AddrPortFrom(netip.AddrFrom4([4]byte(raw[4:8])), port), nil
	case family == familyINET6 && len(raw) == 20:
		return netip.AddrPortFrom(netip.AddrFrom16([16]byte(raw[4:20])), port), nil
	}
	return netip.AddrPort{}, fmt.Errorf("%w: socket address family %d", ErrInvalidRecord, family)
}
