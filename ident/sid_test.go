package ident

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseSIDRoundTrip(t *testing.T) {
	cases := []string{
		"S-1-5-18",
		"S-1-5-32-544",
		"S-1-1-0",
		"S-1-5-21-3623811015-3361044348-30300820-1013",
		"S-1-0x100000000-1",
	}
	for _, in := range cases {
		sid, err := ParseSID(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got := sid.String(); got != in {
			t.Fatalf("round trip %q: got %q", in, got)
		}
	}
}

func TestParseSIDRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "S-1", "X-1-5", "S-2-5-18", "S-1-5-abc", "S-1-5-1-2-3-4-5-6-7-8-9-10-11-12-13-14-15-16"} {
		if _, err := ParseSID(in); !errors.Is(err, ErrInvalidSID) {
			t.Fatalf("expected ErrInvalidSID for %q, got %v", in, err)
		}
	}
}

func TestSIDBinaryLayout(t *testing.T) {
	sid := AdministratorsSID
	want := []byte{1, 2, 0, 0, 0, 0, 0, 5, 32, 0, 0, 0, 0x20, 0x02, 0, 0}
	if !bytes.Equal(sid.Bytes(), want) {
		t.Fatalf("unexpected binary form: %x", sid.Bytes())
	}
	if sid.Len() != 16 {
		t.Fatalf("expected length 16, got %d", sid.Len())
	}
	if sid.RID() != 544 {
		t.Fatalf("expected rid 544, got %d", sid.RID())
	}

	back, err := SIDFromBytes(want)
	if err != nil {
		t.Fatalf("from bytes: %v", err)
	}
	if !back.Equal(sid) {
		t.Fatalf("binary round trip mismatch")
	}
}

func TestSIDFromBytesRejectsTrailingData(t *testing.T) {
	b := append(LocalSystemSID.Bytes(), 0)
	if _, err := SIDFromBytes(b); !errors.Is(err, ErrInvalidSID) {
		t.Fatalf("expected ErrInvalidSID, got %v", err)
	}
	if _, err := SIDFromBytes(b[:5]); !errors.Is(err, ErrInvalidSID) {
		t.Fatalf("expected ErrInvalidSID for short input, got %v", err)
	}
}

func TestSIDTextMarshaling(t *testing.T) {
	var sid SID
	if err := sid.UnmarshalText([]byte("S-1-5-7")); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !sid.Equal(AnonymousSID) {
		t.Fatalf("expected anonymous sid, got %s", sid)
	}
	if _, err := (SID{}).MarshalText(); !errors.Is(err, ErrInvalidSID) {
		t.Fatalf("zero sid must not marshal, got %v", err)
	}
}

func TestSequenceAllocatesUniqueIncreasing(t *testing.T) {
	seq := NewSequence(0)
	prev := seq.Allocate()
	if prev <= NetworkServiceLUID || prev <= SystemLUID {
		t.Fatalf("first allocation %s overlaps well-known range", prev)
	}
	for i := 0; i < 100; i++ {
		next := seq.Allocate()
		if next <= prev {
			t.Fatalf("allocation not increasing: %s after %s", next, prev)
		}
		prev = next
	}
}
