package privilege

import (
	"errors"
	"testing"
)

func TestFilterInitOnlyOnce(t *testing.T) {
	f := NewFilter()
	if f.Initialized() {
		t.Fatalf("new filter must not be initialized")
	}
	if err := f.Init(false); err != nil {
		t.Fatalf("first init: %v", err)
	}
	if err := f.Init(true); !errors.Is(err, ErrFilterInitialized) {
		t.Fatalf("expected ErrFilterInitialized, got %v", err)
	}
	if f.Verbose() {
		t.Fatalf("second init must not change mode")
	}
}

func TestFilterShouldAudit(t *testing.T) {
	quiet := NewFilter()
	if err := quiet.Init(false); err != nil {
		t.Fatalf("init: %v", err)
	}
	verbose := NewFilter()
	if err := verbose.Init(true); err != nil {
		t.Fatalf("init: %v", err)
	}

	cases := []struct {
		name        string
		set         Set
		flags       FilterFlags
		wantQuiet   bool
		wantVerbose bool
	}{
		{name: "empty", set: Set{}, wantQuiet: false, wantVerbose: false},
		{name: "all filtered", set: NewSet(0, ChangeNotify, Debug), wantQuiet: false, wantVerbose: false},
		{name: "backup", set: NewSet(0, Backup), wantQuiet: false, wantVerbose: true},
		{name: "mixed", set: NewSet(0, ChangeNotify, TakeOwnership), wantQuiet: true, wantVerbose: true},
		{name: "systemtime", set: NewSet(0, Systemtime), wantQuiet: true, wantVerbose: true},
		{name: "systemtime services", set: NewSet(0, Systemtime), flags: ServicesFilter, wantQuiet: false, wantVerbose: false},
	}

	for _, tc := range cases {
		if got := quiet.ShouldAudit(tc.flags, tc.set); got != tc.wantQuiet {
			t.Fatalf("%s: quiet filter got %v want %v", tc.name, got, tc.wantQuiet)
		}
		if got := verbose.ShouldAudit(tc.flags, tc.set); got != tc.wantVerbose {
			t.Fatalf("%s: verbose filter got %v want %v", tc.name, got, tc.wantVerbose)
		}
	}
}

func TestRegistryDefaultsAndFreeze(t *testing.T) {
	r := DefaultRegistry()
	luid, err := r.Lookup("SeImpersonatePrivilege")
	if err != nil || luid != Impersonate {
		t.Fatalf("lookup impersonate: %v %v", luid, err)
	}
	if name, ok := r.Name(CreateToken); !ok || name != "SeCreateTokenPrivilege" {
		t.Fatalf("unexpected name %q", name)
	}
	if err := r.Register("SeCustomPrivilege", 99); !errors.Is(err, ErrRegistryFrozen) {
		t.Fatalf("expected frozen registry, got %v", err)
	}

	custom := NewRegistry()
	if err := custom.Register("SeCustomPrivilege", 99); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := custom.Register("SeOtherPrivilege", 99); !errors.Is(err, ErrDuplicatePrivilege) {
		t.Fatalf("expected duplicate value rejection, got %v", err)
	}
	if _, err := custom.Lookup("missing"); !errors.Is(err, ErrUnknownPrivilege) {
		t.Fatalf("expected ErrUnknownPrivilege, got %v", err)
	}
}
