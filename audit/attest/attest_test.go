package attest

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goRefMon/audit"
	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func discardedItem(t *testing.T, n uint64) *audit.WorkItem {
	t.Helper()
	item, err := audit.NewMarshaller(0, nil).Marshal(audit.AuditsDiscardedParams(n))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return item
}

func TestSignAndVerify(t *testing.T) {
	_, priv := newEdKeys(t)
	s, err := NewSigner(Config{PrivateKey: priv, Issuer: "refmon", KeyID: "k1"})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	item := discardedItem(t, 3)
	token, err := s.Sign(item)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := s.Verify(token, item.Buffer)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.AuditID != audit.AuditIDAuditsDiscarded || claims.Category != "system" || claims.Tag != "audit_record" {
		t.Fatalf("claims = %+v", claims)
	}

	other := discardedItem(t, 4)
	if _, err := s.Verify(token, other.Buffer); !errors.Is(err, ErrDigestMismatch) {
		t.Fatalf("expected ErrDigestMismatch, got %v", err)
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	s, err := NewSigner(Config{PublicKey: pub})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	claims := Claims{Digest: "x", RegisteredClaims: gjwt.RegisteredClaims{IssuedAt: gjwt.NewNumericDate(time.Now())}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := s.Verify(token, nil); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
	if _, err := s.Sign(discardedItem(t, 1)); !errors.Is(err, ErrNoSigningKey) {
		t.Fatalf("expected ErrNoSigningKey, got %v", err)
	}
}

func TestVerifyKeysByKid(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, _ := newEdKeys(t)

	signer, err := NewSigner(Config{PrivateKey: priv1, KeyID: "old"})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	token, err := signer.Sign(audit.NewDeletedLogonItem(0x3e7))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	verifier, err := NewSigner(Config{VerifyKeys: map[string][]byte{"old": pub1, "new": pub2}})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := verifier.Verify(token, audit.NewDeletedLogonItem(0x3e7).Buffer); err != nil {
		t.Fatalf("verify by kid: %v", err)
	}

	if _, err := NewSigner(Config{VerifyKeys: map[string][]byte{"": pub1}}); err == nil {
		t.Fatal("empty kid accepted")
	}
	if _, err := NewSigner(Config{KeyID: "missing", VerifyKeys: map[string][]byte{"old": pub1}}); err == nil {
		t.Fatal("unknown KeyID accepted")
	}
}

type failingAuthority struct{ err error }

func (f failingAuthority) Deliver(context.Context, *audit.WorkItem) error { return f.err }

func TestAuthorityRecordsOnlyDelivered(t *testing.T) {
	_, priv := newEdKeys(t)
	signer, err := NewSigner(Config{PrivateKey: priv})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	ledger := &MemoryLedger{}
	ch := audit.NewChannelAuthority(4)
	a := NewAuthority(ch, signer, ledger)
	item := discardedItem(t, 9)
	if err := a.Deliver(context.Background(), item); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	delivered := <-ch.Items()
	tokens := ledger.Tokens()
	if len(tokens) != 1 {
		t.Fatalf("tokens = %d", len(tokens))
	}
	if _, err := signer.Verify(tokens[0], delivered.Buffer); err != nil {
		t.Fatalf("ledger token does not attest the delivered bytes: %v", err)
	}

	gone := NewAuthority(failingAuthority{err: audit.ErrAuthorityGone}, signer, ledger)
	if err := gone.Deliver(context.Background(), item); !errors.Is(err, audit.ErrAuthorityGone) {
		t.Fatalf("expected ErrAuthorityGone, got %v", err)
	}
	if len(ledger.Tokens()) != 1 {
		t.Fatal("undelivered item recorded")
	}
}
