package sqlauthority

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/MrEthical07/goRefMon/audit"
	"github.com/MrEthical07/goRefMon/ident"
)

func openTest(t *testing.T) (*Authority, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	a, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return a, path
}

func TestDeliverStoresDocuments(t *testing.T) {
	a, _ := openTest(t)
	defer a.Close()
	ctx := context.Background()

	item, err := audit.NewMarshaller(0, nil).Marshal(audit.AuditsDiscardedParams(12))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := a.Deliver(ctx, item); err != nil {
		t.Fatalf("deliver record: %v", err)
	}
	if err := a.Deliver(ctx, audit.NewDeletedLogonItem(ident.LUID(0x3e7f1))); err != nil {
		t.Fatalf("deliver deleted logon: %v", err)
	}

	n, err := a.Count(ctx)
	if err != nil || n != 2 {
		t.Fatalf("count = %d, %v", n, err)
	}
	rows, err := a.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(rows) != 2 || rows[0].AuditID != int(audit.AuditIDAuditsDiscarded) || rows[1].Tag != "delete_logon" {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[1].LogonID != "0x3e7f1" {
		t.Fatalf("logon id = %q", rows[1].LogonID)
	}

	rec, err := audit.Decode(rows[0].Record)
	if err != nil {
		t.Fatalf("stored record does not decode: %v", err)
	}
	if rec.AuditID != audit.AuditIDAuditsDiscarded {
		t.Fatalf("audit id = %d", rec.AuditID)
	}
	doc, err := rows[0].Document()
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	if len(doc.Params) != 3 || doc.Params[2].Value != "12" {
		t.Fatalf("params = %+v", doc.Params)
	}
}

func TestReopenKeepsRows(t *testing.T) {
	a, path := openTest(t)
	ctx := context.Background()
	if err := a.Deliver(ctx, audit.NewDeletedLogonItem(1)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	b, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()
	if n, err := b.Count(ctx); err != nil || n != 1 {
		t.Fatalf("count after reopen = %d, %v", n, err)
	}
}

func TestClosedAuthorityIsGone(t *testing.T) {
	a, _ := openTest(t)
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := a.Deliver(context.Background(), audit.NewDeletedLogonItem(1)); !errors.Is(err, audit.ErrAuthorityGone) {
		t.Fatalf("expected ErrAuthorityGone, got %v", err)
	}
}
