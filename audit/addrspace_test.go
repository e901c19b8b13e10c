package audit

import (
	"context"
	"errors"
	"testing"
)

type faultySpace struct {
	*MemoryAddressSpace
	writeErr error
}

func (f *faultySpace) Write(addr uint64, p []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	return f.MemoryAddressSpace.Write(addr, p)
}

func TestCopyToAddressSpace(t *testing.T) {
	space := NewMemoryAddressSpace(0)
	buf := []byte("self-relative")
	addr, err := CopyToAddressSpace(space, buf)
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	got, ok := space.Read(addr)
	if !ok || string(got) != string(buf) {
		t.Fatalf("region = %q", got)
	}
}

func TestCopyToAddressSpaceRollsBack(t *testing.T) {
	space := &faultySpace{MemoryAddressSpace: NewMemoryAddressSpace(0), writeErr: errors.New("fault")}
	if _, err := CopyToAddressSpace(space, []byte("abc")); !errors.Is(err, ErrCopyFailed) {
		t.Fatalf("expected ErrCopyFailed, got %v", err)
	}
	if space.Regions() != 0 {
		t.Fatal("partial allocation left behind")
	}

	limited := NewMemoryAddressSpace(2)
	if _, err := CopyToAddressSpace(limited, []byte("abc")); !errors.Is(err, ErrCopyFailed) {
		t.Fatalf("expected ErrCopyFailed, got %v", err)
	}
}

type refusingReceiver struct{ err error }

func (r refusingReceiver) Receive(context.Context, uint64, int) error { return r.err }

func TestSharedMemoryAuthority(t *testing.T) {
	item, err := NewMarshaller(0, nil).Marshal(sampleParams())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	space := NewMemoryAddressSpace(0)
	if err := NewSharedMemoryAuthority(space, refusingReceiver{}).Deliver(context.Background(), item); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if space.Regions() != 1 {
		t.Fatalf("regions = %d", space.Regions())
	}

	refused := errors.New("authority busy")
	space = NewMemoryAddressSpace(0)
	err = NewSharedMemoryAuthority(space, refusingReceiver{err: refused}).Deliver(context.Background(), item)
	if !errors.Is(err, refused) {
		t.Fatalf("expected refusal, got %v", err)
	}
	if space.Regions() != 0 {
		t.Fatal("refused region not freed")
	}
}
