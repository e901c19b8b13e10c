package audit

import (
	"net/netip"
	"testing"
	"time"

	"github.com/MrEthical07/goRefMon/auditpol"
	"github.com/MrEthical07/goRefMon/ident"
	"github.com/MrEthical07/goRefMon/privilege"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleParams() *Params {
	return &Params{
		Category: auditpol.CategoryObjectAccess,
		AuditID:  AuditIDCloseHandle,
		Type:     EventFailure,
		Params: []Param{
			Ulong(42),
			String("Security"),
			SIDParam{SID: ident.MustParseSID("S-1-5-21-1-2-3-1001")},
			FileSpec(`\Device\HarddiskVolume1\secret.txt`),
			None{},
			NoLogonID{},
			HexUlong(0xdead),
			AccessMask(ident.GenericRead | ident.ReadControl),
			LogonID(0x3e7),
			Privileges{Set: privilege.NewSet(privilege.SetAllNecessary, privilege.Backup, privilege.Restore)},
			Ptr(0xffff8000_00001000),
			Time{At: time.Unix(1700000000, 123456789).UTC()},
			Duration(1500 * time.Millisecond),
			GUID(uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")),
			LUIDParam(0x1_0000_0002),
			HexInt64(0x1122334455667788),
			SockAddr(netip.MustParseAddrPort("10.0.0.7:445")),
			SockAddr(netip.MustParseAddrPort("[2001:db8::1]:8443")),
			String(""),
		},
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	m := NewMarshaller(0, nil)
	m.now = func() int64 { return 1700000000_000000001 }
	p := sampleParams()

	item, err := m.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, TagAuditRecord, item.Tag)
	assert.Equal(t, MemoryPaged, item.Memory)
	assert.Len(t, item.Buffer, RecordSize(p))

	rec, err := Decode(item.Buffer)
	require.NoError(t, err)
	assert.Equal(t, p.Category, rec.Category)
	assert.Equal(t, p.AuditID, rec.AuditID)
	assert.Equal(t, p.Type, rec.Type)
	assert.Equal(t, int64(1700000000_000000001), rec.Timestamp.UnixNano())
	require.Equal(t, p.Params, rec.Params)
}

func TestMarshalledRecordIsRelocatable(t *testing.T) {
	item, err := NewMarshaller(0, nil).Marshal(sampleParams())
	require.NoError(t, err)

	moved := make([]byte, len(item.Buffer)+13)
	copy(moved[13:], item.Buffer)
	rec, err := Decode(moved[13:])
	require.NoError(t, err)
	require.Equal(t, sampleParams().Params, rec.Params)
}

func TestMarshalAllocationFailure(t *testing.T) {
	m := NewMarshaller(0, func(int) []byte { return nil })
	_, err := m.Marshal(sampleParams())
	require.ErrorIs(t, err, ErrInsufficientResources)

	m = NewMarshaller(64, nil)
	_, err = m.Marshal(sampleParams())
	require.ErrorIs(t, err, ErrInsufficientResources)
}

func TestMarshalContractViolationsPanic(t *testing.T) {
	m := NewMarshaller(0, nil)

	tooMany := &Params{Params: make([]Param, MaxParams+1)}
	for i := range tooMany.Params {
		tooMany.Params[i] = Ulong(i)
	}
	assert.Panics(t, func() { _, _ = m.Marshal(tooMany) })

	long := make([]byte, maxStringBytes+1)
	assert.Panics(t, func() { _, _ = m.Marshal(&Params{Params: []Param{String(long)}}) })
}

func TestDecodeRejectsDamagedRecords(t *testing.T) {
	item, err := NewMarshaller(0, nil).Marshal(sampleParams())
	require.NoError(t, err)
	good := item.Buffer

	cases := map[string]func([]byte) []byte{
		"short":      func(b []byte) []byte { return b[:headerSize-1] },
		"truncated":  func(b []byte) []byte { return b[:len(b)-8] },
		"not relative": func(b []byte) []byte {
			b[12] = 0
			return b
		},
		"address out of range": func(b []byte) []byte {
			slot := headerSize + slotSize
			for i := 0; i < 8; i++ {
				b[slot+16+i] = 0xff
			}
			return b
		},
		"unknown type": func(b []byte) []byte {
			b[headerSize] = 0xee
			return b
		},
	}
	for name, damage := range cases {
		t.Run(name, func(t *testing.T) {
			buf := damage(append([]byte(nil), good...))
			_, err := Decode(buf)
			require.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}

func FuzzDecode(f *testing.F) {
	item, err := NewMarshaller(0, nil).Marshal(sampleParams())
	if err != nil {
		f.Fatalf("seed: %v", err)
	}
	f.Add(item.Buffer)
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		_, _ = Decode(data)
	})
}
