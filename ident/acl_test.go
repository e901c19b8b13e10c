package ident

import (
	"errors"
	"testing"
)

func TestBuildACLHeader(t *testing.T) {
	acl, err := BuildACL(
		ACE{Type: AccessAllowedACEType, Mask: 0x10000000, SID: LocalSystemSID},
		ACE{Type: AccessAllowedACEType, Mask: 0x10000000, SID: AdministratorsSID},
	)
	if err != nil {
		t.Fatalf("build acl: %v", err)
	}
	// header 8 + (8+12) + (8+16)
	if acl.Size() != 52 {
		t.Fatalf("expected size 52, got %d", acl.Size())
	}
	if acl.AceCount() != 2 {
		t.Fatalf("expected 2 aces, got %d", acl.AceCount())
	}

	back, err := ACLFromBytes(acl.Bytes())
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if !back.Equal(acl) {
		t.Fatalf("reparse mismatch")
	}
}

func TestACLFromBytesRejectsBadHeader(t *testing.T) {
	acl, err := BuildACL()
	if err != nil {
		t.Fatalf("build empty acl: %v", err)
	}
	b := acl.Bytes()

	bad := append([]byte(nil), b...)
	bad[0] = 9
	if _, err := ACLFromBytes(bad); !errors.Is(err, ErrInvalidACL) {
		t.Fatalf("expected ErrInvalidACL for revision, got %v", err)
	}

	long := append(append([]byte(nil), b...), 0, 0, 0, 0)
	if _, err := ACLFromBytes(long); !errors.Is(err, ErrInvalidACL) {
		t.Fatalf("expected ErrInvalidACL for size mismatch, got %v", err)
	}
}
