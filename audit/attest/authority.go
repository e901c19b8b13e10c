package attest

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrEthical07/goRefMon/audit"
)

// Ledger stores attestation tokens for delivered items.
type Ledger interface {
	Append(ctx context.Context, token string) error
}

// MemoryLedger keeps tokens in memory.
type MemoryLedger struct {
	mu     sync.Mutex
	tokens []string
}

func (l *MemoryLedger) Append(_ context.Context, token string) error {
	l.mu.Lock()
	l.tokens = append(l.tokens, token)
	l.mu.Unlock()
	return nil
}

// Tokens returns a copy of the stored tokens.
func (l *MemoryLedger) Tokens() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.tokens...)
}

// Authority signs each item, delivers it to the wrapped authority and
// records the token once delivery succeeded.
type Authority struct {
	next   audit.Authority
	signer *Signer
	ledger Ledger
}

func NewAuthority(next audit.Authority, signer *Signer, ledger Ledger) *Authority {
	if next == nil {
		next = audit.NoOpAuthority{}
	}
	return &Authority{next: next, signer: signer, ledger: ledger}
}

func (a *Authority) Deliver(ctx context.Context, item *audit.WorkItem) error {
	token, err := a.signer.Sign(item)
	if err != nil {
		return fmt.Errorf("attest: %w", err)
	}
	if err := a.next.Deliver(ctx, item); err != nil {
		return err
	}
	if a.ledger == nil {
		return nil
	}
	if err := a.ledger.Append(ctx, token); err != nil {
		return fmt.Errorf("attest ledger: %w", err)
	}
	return nil
}
