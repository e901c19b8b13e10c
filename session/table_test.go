package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goRefMon/ident"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type terminations struct {
	mu  sync.Mutex
	ids []ident.LUID
}

func (r *terminations) record(_ context.Context, id ident.LUID) {
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.mu.Unlock()
}

func (r *terminations) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func newRedisTableTest(t *testing.T, terminated TerminatedFunc) (*RedisTable, *miniredis.Miniredis, *redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	table := NewRedisTable(rdb, "rm", terminated)
	return table, mr, rdb, func() {
		rdb.Close()
		mr.Close()
	}
}

func testLogonSession() *LogonSession {
	return &LogonSession{
		AuthID:    0x3e7f1,
		User:      ident.MustParseSID("S-1-5-21-7-8-9-1001"),
		Type:      LogonInteractive,
		CreatedAt: time.Unix(1700000000, 0).Unix(),
	}
}

type tableCase struct {
	name  string
	table Table
	rec   *terminations
}

func tableCases(t *testing.T) ([]tableCase, func()) {
	t.Helper()
	memRec := &terminations{}
	redisRec := &terminations{}
	rt, _, _, done := newRedisTableTest(t, redisRec.record)
	return []tableCase{
		{"memory", NewMemoryTable(memRec.record), memRec},
		{"redis", rt, redisRec},
	}, done
}

func TestTableLifecycle(t *testing.T) {
	cases, done := tableCases(t)
	defer done()

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			s := testLogonSession()

			if err := tc.table.Reference(ctx, s.AuthID); !errors.Is(err, ErrNoSuchLogonSession) {
				t.Fatalf("reference before create: %v", err)
			}
			if err := tc.table.Create(ctx, s); err != nil {
				t.Fatalf("create: %v", err)
			}
			if err := tc.table.Create(ctx, s); !errors.Is(err, ErrLogonSessionExists) {
				t.Fatalf("expected ErrLogonSessionExists, got %v", err)
			}

			got, err := tc.table.Get(ctx, s.AuthID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.References != 0 || !got.User.Equal(s.User) || got.Type != s.Type || got.CreatedAt != s.CreatedAt {
				t.Fatalf("get = %+v", got)
			}

			for i := 0; i < 2; i++ {
				if err := tc.table.Reference(ctx, s.AuthID); err != nil {
					t.Fatalf("reference %d: %v", i, err)
				}
			}
			if err := tc.table.Delete(ctx, s.AuthID); !errors.Is(err, ErrBadLogonSessionState) {
				t.Fatalf("expected ErrBadLogonSessionState, got %v", err)
			}

			if err := tc.table.Dereference(ctx, s.AuthID); err != nil {
				t.Fatalf("dereference: %v", err)
			}
			if tc.rec.count() != 0 {
				t.Fatal("terminated with a reference outstanding")
			}
			if err := tc.table.Dereference(ctx, s.AuthID); err != nil {
				t.Fatalf("last dereference: %v", err)
			}
			if tc.rec.count() != 1 {
				t.Fatalf("terminations = %d", tc.rec.count())
			}
			if _, err := tc.table.Get(ctx, s.AuthID); !errors.Is(err, ErrNoSuchLogonSession) {
				t.Fatalf("session not removed: %v", err)
			}
			if err := tc.table.Dereference(ctx, s.AuthID); !errors.Is(err, ErrNoSuchLogonSession) {
				t.Fatalf("dereference after removal: %v", err)
			}
		})
	}
}

func TestTableDeleteUnreferenced(t *testing.T) {
	cases, done := tableCases(t)
	defer done()

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			s := testLogonSession()
			if err := tc.table.Create(ctx, s); err != nil {
				t.Fatalf("create: %v", err)
			}
			if err := tc.table.Dereference(ctx, s.AuthID); !errors.Is(err, ErrBadLogonSessionState) {
				t.Fatalf("expected ErrBadLogonSessionState, got %v", err)
			}
			if err := tc.table.Delete(ctx, s.AuthID); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if err := tc.table.Delete(ctx, s.AuthID); !errors.Is(err, ErrNoSuchLogonSession) {
				t.Fatalf("expected ErrNoSuchLogonSession, got %v", err)
			}
			if tc.rec.count() != 0 {
				t.Fatal("delete must not notify")
			}
		})
	}
}

func TestRedisReferenceCountNeverNegativeUnderConcurrentOps(t *testing.T) {
	rec := &terminations{}
	table, _, rdb, done := newRedisTableTest(t, rec.record)
	defer done()
	ctx := context.Background()

	const (
		workers = 16
		rounds  = 100
	)
	s := testLogonSession()
	if err := table.Create(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := table.Reference(ctx, s.AuthID); err != nil {
		t.Fatalf("anchor reference: %v", err)
	}

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			<-start
			for r := 0; r < rounds; r++ {
				if err := table.Reference(ctx, s.AuthID); err != nil {
					t.Errorf("reference: %v", err)
					return
				}
				if err := table.Dereference(ctx, s.AuthID); err != nil {
					t.Errorf("dereference: %v", err)
					return
				}
			}
		}()
	}
	close(start)
	wg.Wait()

	refs, err := rdb.HGet(ctx, table.key(s.AuthID), "refs").Int64()
	if err != nil {
		t.Fatalf("read refs: %v", err)
	}
	if refs != 1 {
		t.Fatalf("refs = %d, want 1", refs)
	}
	if rec.count() != 0 {
		t.Fatal("session terminated while anchored")
	}

	if err := table.Dereference(ctx, s.AuthID); err != nil {
		t.Fatalf("final dereference: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := table.Dereference(ctx, s.AuthID); !errors.Is(err, ErrNoSuchLogonSession) {
			t.Fatalf("repeat dereference %d: %v", i, err)
		}
	}
	if rec.count() != 1 {
		t.Fatalf("terminations = %d", rec.count())
	}
}

func TestRedisUnavailable(t *testing.T) {
	table, mr, _, done := newRedisTableTest(t, nil)
	defer done()
	mr.Close()

	if err := table.Create(context.Background(), testLogonSession()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if err := table.Reference(context.Background(), 1); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
