package audit

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/MrEthical07/goRefMon/ident"
)

// WorkTag identifies the kind of queued item.
type WorkTag uint8

const (
	TagAuditRecord WorkTag = iota + 1
	TagDeleteLogon
)

func (t WorkTag) String() string {
	switch t {
	case TagAuditRecord:
		return "audit_record"
	case TagDeleteLogon:
		return "delete_logon"
	default:
		return "unknown"
	}
}

// Command is the request the logging authority is asked to perform.
type Command uint8

const (
	CommandLogAudit Command = iota + 1
	CommandDeletedLogon
)

// WorkItem is one queued request for the logging authority.
type WorkItem struct {
	Tag     WorkTag
	Command Command
	Buffer  []byte
	Memory  MemoryKind
	// LogonID is set for TagDeleteLogon items.
	LogonID ident.LUID

	next  *WorkItem
	freed atomic.Bool
}

// NewDeletedLogonItem returns the notification queued when a logon session
// is removed. The buffer carries the logon ID.
func NewDeletedLogonItem(authID ident.LUID) *WorkItem {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(authID))
	return &WorkItem{
		Tag:     TagDeleteLogon,
		Command: CommandDeletedLogon,
		Buffer:  buf,
		Memory:  MemoryPaged,
		LogonID: authID,
	}
}

// Freed reports whether the item has been released.
func (w *WorkItem) Freed() bool { return w.freed.Load() }

// free releases the buffer. A second call is a lifetime bug and panics.
func (w *WorkItem) free() {
	if !w.freed.CompareAndSwap(false, true) {
		panic("audit: work item freed twice")
	}
	w.Buffer = nil
	w.next = nil
}

// Discard releases an item that was never admitted to a queue.
func (w *WorkItem) Discard() { w.free() }
