// Command eduauth-loadtest measures login, authenticate and refresh latency
// against an in-process engine backed by Redis (or miniredis) and the memory
// user store.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	eduAuth "github.com/MrEthical07/eduAuth"
	"github.com/MrEthical07/eduAuth/notify/logmail"
	"github.com/MrEthical07/eduAuth/password"
	"github.com/MrEthical07/eduAuth/store/memstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const userPassword = "Loadtest-pass1"

type userState struct {
	email   string
	access  string
	refresh string
	mu      sync.Mutex
}

func main() {
	var (
		users       = flag.Int("users", 1000, "number of users to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase (login + authenticate + refresh)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := eduAuth.DefaultConfig()
	cfg.JWT.Secret = []byte(strings.Repeat("l", 32))
	cfg.Password.Memory = 8192
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.RateLimit.MaxLoginAttempts = 0
	cfg.RateLimit.MaxRefreshCalls = 0

	store := memstore.New()
	engine, err := eduAuth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserStore(store).
		WithMailer(logmail.New(zap.NewNop())).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "hasher init failed: %v\n", err)
		os.Exit(1)
	}
	hash, err := hasher.Hash(userPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash failed: %v\n", err)
		os.Exit(1)
	}

	states := make([]userState, *users)
	fmt.Printf("seeding %d users...\n", *users)
	startSeed := time.Now()
	for i := range states {
		email := fmt.Sprintf("load-%d@example.com", i)
		states[i].email = email
		if _, err := store.Create(ctx, eduAuth.NewUser{
			Name:         fmt.Sprintf("Load %d", i),
			Email:        email,
			PasswordHash: hash,
			Role:         eduAuth.RoleUser,
			IsVerified:   true,
			IsActive:     true,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "create failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	loginStats := runPhase(states, *ops, *concurrency, 7919, func(s *userState) error {
		res, err := engine.Login(ctx, eduAuth.LoginRequest{Email: s.email, Password: userPassword})
		if err != nil {
			return err
		}
		s.access, s.refresh = res.AccessToken, res.RefreshToken
		return nil
	})
	authStats := runPhase(states, *ops, *concurrency, 104729, func(s *userState) error {
		if s.access == "" {
			return eduAuth.ErrAuthRequired
		}
		_, err := engine.Authenticate(ctx, s.access)
		return err
	})
	refreshStats := runPhase(states, *ops, *concurrency, 6151, func(s *userState) error {
		res, err := engine.Refresh(ctx, s.refresh)
		if err != nil {
			return err
		}
		s.access, s.refresh = res.AccessToken, res.RefreshToken
		return nil
	})

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("authenticate", authStats)
	printStats("refresh", refreshStats)
	snap := engine.MetricsSnapshot()
	fmt.Printf("refresh rotations lost: %d\n", snap.Counters[eduAuth.MetricRefreshRotationLost])
}

// runPhase runs ops calls of fn across concurrency workers. Each call holds
// the chosen user's lock so refresh tokens rotate in order.
func runPhase(states []userState, ops, concurrency int, seed int64, fn func(*userState) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := &states[r.Intn(len(states))]

				state.mu.Lock()
				t0 := time.Now()
				err := fn(state)
				d := time.Since(t0)
				state.mu.Unlock()
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
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
