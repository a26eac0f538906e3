// Command gotoken-loadtest drives concurrent authenticated requests through
// client sessions and reports latency and how many refreshes each session
// needed.
//
// Without -base-url it starts an in-process server backed by miniredis with
// a short access token lifetime, so refreshes happen during the run.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/client"
	"github.com/MrEthical07/goToken/httpapi"
	"github.com/MrEthical07/goToken/internal/userstore"
	"github.com/MrEthical07/goToken/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		baseURL     = flag.String("base-url", "", "auth server URL; empty starts one in-process")
		email       = flag.String("email", "load-%d@example.com", "login identifier; %d is replaced by the session index")
		pass        = flag.String("password", "load-test-password", "login password")
		sessions    = flag.Int("sessions", 8, "number of client sessions")
		concurrency = flag.Int("concurrency", 32, "workers per session")
		ops         = flag.Int("ops", 2000, "requests per session")
		accessTTL   = flag.Duration("access-ttl", 2*time.Second, "access token lifetime for the in-process server")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	var serverRefreshes atomic.Int64
	if *baseURL == "" {
		url, cleanup, err := startServer(*email, *pass, *sessions, *accessTTL, &serverRefreshes)
		if err != nil {
			fmt.Fprintf(os.Stderr, "start server: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		*baseURL = url
		fmt.Printf("using in-process server at %s (access ttl %s)\n", url, *accessTTL)
	}

	ctx := context.Background()
	results := make([]sessionResult, *sessions)
	var wg sync.WaitGroup
	start := time.Now()
	for s := 0; s < *sessions; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			results[s] = runSession(ctx, *baseURL, identifier(*email, s), *pass, *ops, *concurrency)
		}(s)
	}
	wg.Wait()
	total := time.Since(start)

	var (
		all       []time.Duration
		failures  int64
		refreshes uint64
	)
	fmt.Println("---- sessions ----")
	for i, r := range results {
		if r.err != nil {
			fmt.Printf("session %d: login failed: %v\n", i, r.err)
			continue
		}
		fmt.Printf("session %d: ops=%d failures=%d refreshes=%d\n", i, len(r.latencies), r.failures, r.refreshes)
		all = append(all, r.latencies...)
		failures += r.failures
		refreshes += r.refreshes
	}

	fmt.Println("---- results ----")
	printStats("requests", computeStats(total, all, failures))
	fmt.Printf("client refreshes=%d", refreshes)
	if serverRefreshes.Load() > 0 {
		fmt.Printf(" server refreshes=%d", serverRefreshes.Load())
	}
	fmt.Println()
}

// identifier expands the email template for session i. Each session needs
// its own user since a user holds one refresh token at a time.
func identifier(template string, i int) string {
	if strings.Contains(template, "%d") {
		return fmt.Sprintf(template, i)
	}
	return template
}

type sessionResult struct {
	latencies []time.Duration
	failures  int64
	refreshes uint64
	err       error
}

func runSession(ctx context.Context, baseURL, email, pass string, ops, concurrency int) sessionResult {
	c := client.New(baseURL, client.Options{})
	if _, err := c.Login(ctx, email, pass); err != nil {
		return sessionResult{err: err}
	}
	defer func() { _ = c.Logout(ctx) }()

	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
					return
				}
				t0 := time.Now()
				ok := call(ctx, c, baseURL)
				d := time.Since(t0)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return sessionResult{latencies: latencies, failures: failures, refreshes: c.Pipeline().Refreshes()}
}

func call(ctx context.Context, c *client.Client, baseURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/auth/me", nil)
	if err != nil {
		return false
	}
	resp, err := c.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func startServer(email, pass string, sessions int, accessTTL time.Duration, refreshes *atomic.Int64) (string, func(), error) {
	mr, err := miniredis.Run()
	if err != nil {
		return "", nil, err
	}
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})

	cfg := goToken.DefaultConfig()
	cfg.JWT.SigningKey = []byte("gotoken-loadtest-signing-key-0123456789")
	cfg.JWT.AccessTTL = accessTTL
	cfg.Security.EnableLoginThrottle = false
	cfg.Security.EnableRefreshThrottle = false
	cfg.Password.Memory = 16 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Enabled = false

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return "", nil, err
	}
	hash, err := hasher.Hash(pass)
	if err != nil {
		return "", nil, err
	}
	users := userstore.NewMemory()
	for i := 0; i < sessions; i++ {
		users.Put(goToken.UserRecord{
			Username:     fmt.Sprintf("load-%d", i),
			Email:        identifier(email, i),
			FullName:     "Load Test",
			Role:         "Employee",
			PasswordHash: hash,
			Active:       true,
		})
	}

	engine, err := goToken.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(users).
		WithPasswordHasher(hasher).
		Build()
	if err != nil {
		return "", nil, err
	}

	router := httpapi.NewRouter(engine, httpapi.Options{Timeout: 10 * time.Second})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			refreshes.Add(1)
		}
		router.ServeHTTP(w, r)
	}))
	return srv.URL, func() {
		srv.Close()
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}, nil
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
