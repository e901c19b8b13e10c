package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// Authority is the trusted logging authority that work items are delivered
// to. Deliver must not retain item.Buffer after it returns; the queue frees
// it. Returning ErrAuthorityGone marks the queue dead.
type Authority interface {
	Deliver(ctx context.Context, item *WorkItem) error
}

// NoOpAuthority accepts and drops every item.
type NoOpAuthority struct{}

func (NoOpAuthority) Deliver(context.Context, *WorkItem) error { return nil }

// Delivered is a copy of a delivered work item.
type Delivered struct {
	Tag     WorkTag
	Command Command
	Buffer  []byte
}

// ChannelAuthority copies every item into a buffered channel.
type ChannelAuthority struct {
	items chan Delivered
}

func NewChannelAuthority(buffer int) *ChannelAuthority {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelAuthority{
		items: make(chan Delivered, buffer),
	}
}

func (a *ChannelAuthority) Deliver(ctx context.Context, item *WorkItem) error {
	d := Delivered{
		Tag:     item.Tag,
		Command: item.Command,
		Buffer:  append([]byte(nil), item.Buffer...),
	}
	select {
	case a.items <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *ChannelAuthority) Items() <-chan Delivered {
	return a.items
}

// Encoding selects the WriterAuthority output format.
type Encoding uint8

const (
	EncodingJSON Encoding = iota
	EncodingCBOR
)

// WriterAuthority writes one Document per item, as JSON lines or as a CBOR
// sequence.
type WriterAuthority struct {
	writer   io.Writer
	encoding Encoding
	mu       sync.Mutex
}

func NewWriterAuthority(w io.Writer, enc Encoding) *WriterAuthority {
	return &WriterAuthority{
		writer:   w,
		encoding: enc,
	}
}

func (a *WriterAuthority) Deliver(_ context.Context, item *WorkItem) error {
	if a == nil || a.writer == nil {
		return nil
	}
	doc, err := NewDocument(item)
	if err != nil {
		return err
	}

	var data []byte
	switch a.encoding {
	case EncodingCBOR:
		data, err = cbor.Marshal(doc)
	default:
		data, err = json.Marshal(doc)
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("encode audit document: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.writer.Write(data); err != nil {
		return fmt.Errorf("write audit document: %w", err)
	}
	return nil
}
