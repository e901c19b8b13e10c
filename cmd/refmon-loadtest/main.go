package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	mrand "math/rand"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	goRefMon "github.com/MrEthical07/goRefMon"
	"github.com/MrEthical07/goRefMon/audit"
	"github.com/MrEthical07/goRefMon/audit/attest"
	"github.com/MrEthical07/goRefMon/audit/kafkaauthority"
	"github.com/MrEthical07/goRefMon/audit/sqlauthority"
	"github.com/MrEthical07/goRefMon/auditpol"
	"github.com/MrEthical07/goRefMon/ident"
	"github.com/MrEthical07/goRefMon/metrics/export/prometheus"
	"github.com/MrEthical07/goRefMon/privilege"
	"github.com/MrEthical07/goRefMon/registry"
	"github.com/MrEthical07/goRefMon/session"
	"github.com/MrEthical07/goRefMon/token"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase")
		tokens      = flag.Int("tokens", 256, "tokens in the exchange pool")
		processes   = flag.Int("processes", 16, "processes sharing the exchange pool")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		configPath  = flag.String("config", "", "audit configuration file (.ini or .yaml); empty uses defaults")
		sqlitePath  = flag.String("sqlite", "", "deliver audit records to this sqlite database")
		kafkaSeeds  = flag.String("kafka-seeds", "", "comma separated kafka seed brokers; delivers to kafka when set")
		topic       = flag.String("kafka-topic", kafkaauthority.DefaultTopic, "kafka topic for audit records")
		sign        = flag.Bool("sign", false, "attest every delivered record with a fresh ed25519 key")
		metricsAddr = flag.String("metrics-addr", "", "serve prometheus metrics on this address while running")
	)
	flag.Parse()

	if *concurrency <= 0 || *ops <= 0 || *tokens <= 0 || *processes <= 0 {
		fmt.Fprintln(os.Stderr, "concurrency, ops, tokens, and processes must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	client, cleanup, err := redisClient(*redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	store, err := openConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	var (
		authority audit.Authority = audit.NoOpAuthority{}
		sqlite    *sqlauthority.Authority
	)
	switch {
	case *sqlitePath != "":
		sqlite, err = sqlauthority.Open(ctx, *sqlitePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sqlite: %v\n", err)
			os.Exit(1)
		}
		defer sqlite.Close()
		authority = sqlite
	case *kafkaSeeds != "":
		kc, err := kafkaauthority.NewClient(strings.Split(*kafkaSeeds, ","), *topic)
		if err != nil {
			fmt.Fprintf(os.Stderr, "kafka: %v\n", err)
			os.Exit(1)
		}
		defer kc.Close()
		authority = kafkaauthority.New(kc, kafkaauthority.Config{Topic: *topic})
	}

	var ledger *attest.MemoryLedger
	if *sign {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate key: %v\n", err)
			os.Exit(1)
		}
		signer, err := attest.NewSigner(attest.Config{PrivateKey: priv, Issuer: "refmon-loadtest", KeyID: "loadtest"})
		if err != nil {
			fmt.Fprintf(os.Stderr, "signer: %v\n", err)
			os.Exit(1)
		}
		ledger = &attest.MemoryLedger{}
		authority = attest.NewAuthority(authority, signer, ledger)
	}

	builder := goRefMon.New().
		WithRedis(client).
		WithAuthority(authority).
		WithLogger(logger).
		WithLatencyHistograms(true).
		WithHalter(audit.HalterFunc(func(status error) {
			logger.Error("halt requested", "status", status)
		}))
	if store != nil {
		builder = builder.WithRegistry(store)
	}
	m, err := builder.Build(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build monitor: %v\n", err)
		os.Exit(1)
	}

	if *metricsAddr != "" {
		srv := &http.Server{Addr: *metricsAddr, Handler: prometheus.NewPrometheusExporter(m).Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
		defer srv.Close()
		fmt.Printf("serving metrics on %s\n", *metricsAddr)
	}

	for _, cat := range []auditpol.Category{auditpol.CategorySystem, auditpol.CategoryPrivilegeUse, auditpol.CategoryDetailedTracking} {
		if err := m.SetAuditingState(cat, true, true); err != nil {
			fmt.Fprintf(os.Stderr, "enable %s: %v\n", cat, err)
			os.Exit(1)
		}
	}

	h, err := newHarness(ctx, m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "harness: %v\n", err)
		os.Exit(1)
	}

	auditStats := runPhase(ctx, *ops, *concurrency, h.auditOp)
	exchangeStats, err := h.runExchange(ctx, *tokens, *processes, *ops, *concurrency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "exchange phase: %v\n", err)
		os.Exit(1)
	}
	logonStats := runPhase(ctx, *ops/10+1, *concurrency, h.logonOp)
	h.system.Release()

	if err := m.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "close monitor: %v\n", err)
	}

	fmt.Println("---- results ----")
	printStats("audit", auditStats)
	printStats("exchange", exchangeStats)
	printStats("logon", logonStats)

	q := m.AuditStats()
	snap := m.MetricsSnapshot()
	fmt.Printf("queue: admitted=%d discarded=%d reports=%d dead=%v\n", q.Admitted, q.TotalDiscarded, q.Reports, q.Dead)
	fmt.Printf("delivered=%d delivery_failed=%d sessions_terminated=%d\n",
		snap.Counters[goRefMon.MetricAuditDelivered],
		snap.Counters[goRefMon.MetricAuditDeliveryFailed],
		snap.Counters[goRefMon.MetricLogonSessionTerminated],
	)
	if sqlite != nil {
		if n, err := sqlite.Count(ctx); err == nil {
			fmt.Printf("sqlite rows=%d\n", n)
		}
	}
	if ledger != nil {
		fmt.Printf("attestations=%d\n", len(ledger.Tokens()))
	}
}

func redisClient(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}
	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func openConfig(path string) (registry.Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case "":
		return nil, nil
	case ".ini":
		return registry.OpenINI(path)
	case ".yaml", ".yml":
		return registry.OpenYAML(path)
	default:
		return nil, fmt.Errorf("unsupported config format %q", path)
	}
}

type harness struct {
	m       *goRefMon.Monitor
	system  *token.Token
	nextID  atomic.Uint64
	subject goRefMon.Subject
}

func newHarness(ctx context.Context, m *goRefMon.Monitor) (*harness, error) {
	sys, err := m.Tokens().MakeSystemToken(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := sys.AdjustPrivileges(false, []privilege.LUIDAndAttributes{{LUID: privilege.CreateToken, Attributes: privilege.Enabled}}); err != nil {
		sys.Release()
		return nil, err
	}
	h := &harness{
		m:      m,
		system: sys,
		subject: goRefMon.Subject{
			Context:   token.SubjectContext{Primary: sys},
			ProcessID: 4,
			ImageName: "refmon-loadtest",
		},
	}
	h.nextID.Store(0x100000)
	return h, nil
}

var loadUser = ident.MustParseSID("S-1-5-21-1000-2000-3000-1001")

func (h *harness) createToken(ctx context.Context, authID ident.LUID) (*token.Token, error) {
	return h.m.Tokens().Create(ctx, h.system, token.CreateParams{
		Type:   token.TypePrimary,
		AuthID: authID,
		User:   ident.SIDAndAttributes{SID: loadUser},
		Groups: []ident.SIDAndAttributes{
			{SID: ident.EveryoneSID, Attributes: ident.GroupMandatory},
		},
		Privileges: []privilege.LUIDAndAttributes{
			{LUID: privilege.ChangeNotify, Attributes: privilege.Enabled | privilege.EnabledByDefault},
		},
		PrimaryGroup: loadUser,
		Source:       token.NewSource("loadtst", 1),
	})
}

func (h *harness) newLogon(ctx context.Context) (ident.LUID, error) {
	authID := ident.LUID(h.nextID.Add(1))
	err := h.m.CreateLogonSession(ctx, &session.LogonSession{
		AuthID:    authID,
		User:      loadUser,
		Type:      session.LogonNetwork,
		CreatedAt: time.Now().UnixNano(),
	})
	return authID, err
}

func (h *harness) auditOp(ctx context.Context, _ int, _ *mrand.Rand) error {
	now := time.Now()
	h.m.SystemTimeChangeAudit(ctx, h.subject, now, now.Add(time.Second))
	return nil
}

// logonOp creates a session, one token for it and releases the token,
// which removes the session and queues a deleted-logon notification.
func (h *harness) logonOp(ctx context.Context, _ int, _ *mrand.Rand) error {
	authID, err := h.newLogon(ctx)
	if err != nil {
		return err
	}
	tok, err := h.createToken(ctx, authID)
	if err != nil {
		return err
	}
	tok.Release()
	return nil
}

func (h *harness) runExchange(ctx context.Context, tokens, processes, ops, concurrency int) (phaseStats, error) {
	authID, err := h.newLogon(ctx)
	if err != nil {
		return phaseStats{}, err
	}
	pool := make([]*token.Token, tokens)
	for i := range pool {
		if pool[i], err = h.createToken(ctx, authID); err != nil {
			return phaseStats{}, err
		}
	}
	procs := make([]*token.Process, processes)
	for i := range procs {
		procs[i] = h.m.Tokens().NewProcess(uint32(1000 + i))
		if err := h.m.AssignPrimaryToken(ctx, h.subject, procs[i], pool[i%tokens]); err != nil && !errors.Is(err, token.ErrTokenAlreadyInUse) {
			return phaseStats{}, err
		}
	}

	stats := runPhase(ctx, ops, concurrency, func(ctx context.Context, i int, r *mrand.Rand) error {
		p := procs[r.Intn(len(procs))]
		old, err := h.m.ExchangePrimaryToken(ctx, h.subject, p, pool[r.Intn(len(pool))], uint32(i))
		switch {
		case err == nil:
			old.Release()
			return nil
		case errors.Is(err, token.ErrTokenAlreadyInUse), errors.Is(err, token.ErrNoToken):
			return nil
		default:
			return err
		}
	})

	for _, p := range procs {
		p.Deassign()
	}
	for _, tok := range pool {
		tok.Release()
	}
	return stats, nil
}

type opFunc func(ctx context.Context, i int, r *mrand.Rand) error

func runPhase(ctx context.Context, ops, concurrency int, op opFunc) phaseStats {
	var (
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
		g         errgroup.Group
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		worker := w
		g.Go(func() error {
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return nil
				}
				t0 := time.Now()
				err := op(ctx, i, r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		})
	}
	_ = g.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
