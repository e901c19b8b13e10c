//go:build integration
// +build integration

package test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	goRefMon "github.com/MrEthical07/goRefMon"
	"github.com/MrEthical07/goRefMon/audit"
	"github.com/MrEthical07/goRefMon/audit/sqlauthority"
	"github.com/MrEthical07/goRefMon/ident"
	"github.com/MrEthical07/goRefMon/privilege"
	"github.com/MrEthical07/goRefMon/registry"
	"github.com/MrEthical07/goRefMon/session"
	"github.com/MrEthical07/goRefMon/token"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var integrationUser = ident.MustParseSID("S-1-5-21-11-22-33-1001")

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return rdb
}

func writeYAMLConfig(t *testing.T, body string) *registry.YAMLStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lsa.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	store, err := registry.OpenYAML(path)
	if err != nil {
		t.Fatalf("open config: %v", err)
	}
	return store
}

func openSQLite(t *testing.T) *sqlauthority.Authority {
	t.Helper()
	a, err := sqlauthority.Open(context.Background(), filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// gatedAuthority holds every delivery until open is closed.
type gatedAuthority struct {
	next audit.Authority
	open chan struct{}
	once sync.Once
}

func newGatedAuthority(next audit.Authority) *gatedAuthority {
	return &gatedAuthority{next: next, open: make(chan struct{})}
}

func (g *gatedAuthority) Deliver(ctx context.Context, item *audit.WorkItem) error {
	select {
	case <-g.open:
	case <-ctx.Done():
		return ctx.Err()
	}
	return g.next.Deliver(ctx, item)
}

func (g *gatedAuthority) release() { g.once.Do(func() { close(g.open) }) }

func createUserToken(t *testing.T, m *goRefMon.Monitor, authID ident.LUID) *token.Token {
	t.Helper()
	ctx := context.Background()
	if _, err := m.Sessions().Get(ctx, authID); err != nil {
		if err := m.CreateLogonSession(ctx, &session.LogonSession{AuthID: authID, User: integrationUser, Type: session.LogonNetwork}); err != nil {
			t.Fatalf("create session: %v", err)
		}
	}
	sys, err := m.Tokens().MakeSystemToken(ctx)
	if err != nil {
		t.Fatalf("system token: %v", err)
	}
	defer sys.Release()
	if _, err := sys.AdjustPrivileges(false, []privilege.LUIDAndAttributes{{LUID: privilege.CreateToken, Attributes: privilege.Enabled}}); err != nil {
		t.Fatalf("enable create-token: %v", err)
	}
	tok, err := m.Tokens().Create(ctx, sys, token.CreateParams{
		Type:         token.TypePrimary,
		AuthID:       authID,
		User:         ident.SIDAndAttributes{SID: integrationUser},
		Groups:       []ident.SIDAndAttributes{{SID: ident.EveryoneSID, Attributes: ident.GroupMandatory}},
		PrimaryGroup: integrationUser,
		Source:       token.NewSource("itest", 1),
	})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	return tok
}
