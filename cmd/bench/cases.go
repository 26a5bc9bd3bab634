// README: Benchmark cases; environment checks, the direct and broadcast booking flows, a selection race, and throughput.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"homefix/internal/infra"
	"homefix/internal/types"
)

type Runner struct {
	cfg    Config
	httpc  *http.Client
	db     *pgxpool.Pool
	redis  *redis.Client
	tokens *infra.JWTVerifier

	customer    types.Actor
	admin       types.Actor
	serviceID   string
	technicians []string
	direct      string
	directTech  string
	broadcast   string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name  string
	Focus string
	Run   func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) (*Runner, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("HOMEFIX_JWT_SECRET is required to mint tokens")
	}
	tokens, err := infra.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg:      cfg,
		httpc:    &http.Client{Timeout: 10 * time.Second},
		tokens:   tokens,
		customer: types.Actor{ID: types.NewID(), Role: types.RoleCustomer},
		admin:    types.Actor{ID: types.NewID(), Role: types.RoleAdmin},
	}, nil
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

func technician(id string) types.Actor {
	return types.Actor{ID: types.ID(id), Role: types.RoleTechnician}
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{
			Name:  "Env: Postgres connect",
			Focus: "DB reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Env: Redis connect",
			Focus: "Redis reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: apply (optional)",
			Focus: "Apply migration SQL",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: "SKIP", Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				sql, err := os.ReadFile(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, s := range splitSQL(string(sql)) {
					if _, err := r.db.Exec(ctx, s); err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: tables exist",
			Focus: "Tables from migrations/0001_init.sql exist",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				tables, err := extractTables(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "API: health",
			Focus: "API responds",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.expect(ctx, http.MethodGet, "/health", types.Actor{}, nil, nil, http.StatusOK)
			},
		},
		{
			Name:  "Auth: missing token -> 401",
			Focus: "Bearer token required",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.expect(ctx, http.MethodGet, "/api/services", types.Actor{}, nil, nil, http.StatusUnauthorized)
			},
		},
		{
			Name:  "Catalog: list services",
			Focus: "Seeded services visible",
			Run: func(ctx context.Context, r *Runner) Result {
				var out struct {
					Services []struct {
						ID string `json:"id"`
					} `json:"services"`
				}
				res := r.expect(ctx, http.MethodGet, "/api/services", r.customer, nil, &out, http.StatusOK)
				if res.Status == "PASS" {
					if len(out.Services) == 0 {
						return Result{Status: "FAIL", Note: "no services; seed the catalog"}
					}
					r.serviceID = out.Services[0].ID
				}
				return res
			},
		},
		{
			Name:  "Catalog: list technicians",
			Focus: "Seeded technicians visible",
			Run: func(ctx context.Context, r *Runner) Result {
				var out struct {
					Technicians []struct {
						ID string `json:"id"`
					} `json:"technicians"`
				}
				res := r.expect(ctx, http.MethodGet, "/api/technicians", r.customer, nil, &out, http.StatusOK)
				for _, t := range out.Technicians {
					r.technicians = append(r.technicians, t.ID)
				}
				return res
			},
		},

		// Direct flow
		{
			Name:  "Direct: customer books a service",
			Focus: "pending booking at base price",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.serviceID == "" {
					return Result{Status: "SKIP", Note: "no service"}
				}
				var out struct {
					ID string `json:"id"`
				}
				res := r.expect(ctx, http.MethodPost, "/api/bookings", r.customer, map[string]any{
					"service_id": r.serviceID,
					"date":       time.Now().AddDate(0, 0, 7).Format("2006-01-02"),
					"time":       "10:00",
					"address":    "Kathmandu",
					"note":       "bench",
				}, &out, http.StatusCreated)
				r.direct = out.ID
				return res
			},
		},
		{
			Name:  "Direct: admin grants",
			Focus: "approved, technician auto-assigned",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.direct == "" {
					return Result{Status: "SKIP", Note: "no booking"}
				}
				var out struct {
					TechnicianID *string `json:"technician_id"`
				}
				res := r.expect(ctx, http.MethodPost, "/api/bookings/"+r.direct+"/decision", r.admin,
					map[string]any{"decision": "grant"}, &out, http.StatusOK)
				if out.TechnicianID != nil {
					r.directTech = *out.TechnicianID
				}
				return res
			},
		},
		{
			Name:  "Rating: before completion -> 409",
			Focus: "only completed bookings can be rated",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.directTech == "" {
					return Result{Status: "SKIP", Note: "no assigned technician"}
				}
				return r.expect(ctx, http.MethodPost, "/api/ratings", r.customer, r.ratingBody(5), nil, http.StatusConflict)
			},
		},
		{
			Name:  "Direct: technician completes",
			Focus: "approved -> completed",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.directTech == "" {
					return Result{Status: "SKIP", Note: "no assigned technician"}
				}
				return r.expect(ctx, http.MethodPost, "/api/bookings/"+r.direct+"/complete", technician(r.directTech), nil, nil, http.StatusOK)
			},
		},
		{
			Name:  "Rating: out of range -> 400",
			Focus: "score within 1..5",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.directTech == "" {
					return Result{Status: "SKIP", Note: "no assigned technician"}
				}
				return r.expect(ctx, http.MethodPost, "/api/ratings", r.customer, r.ratingBody(6), nil, http.StatusBadRequest)
			},
		},
		{
			Name:  "Rating: submit",
			Focus: "completed booking rated once",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.directTech == "" {
					return Result{Status: "SKIP", Note: "no assigned technician"}
				}
				return r.expect(ctx, http.MethodPost, "/api/ratings", r.customer, r.ratingBody(5), nil, http.StatusCreated)
			},
		},
		{
			Name:  "Rating: duplicate -> 409",
			Focus: "one rating per booking and customer",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.directTech == "" {
					return Result{Status: "SKIP", Note: "no assigned technician"}
				}
				return r.expect(ctx, http.MethodPost, "/api/ratings", r.customer, r.ratingBody(4), nil, http.StatusConflict)
			},
		},

		// Broadcast flow
		{
			Name:  "Broadcast: customer requests offers",
			Focus: "requested booking, no technician",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.serviceID == "" {
					return Result{Status: "SKIP", Note: "no service"}
				}
				var out struct {
					ID string `json:"id"`
				}
				res := r.expect(ctx, http.MethodPost, "/api/bookings/broadcast", r.customer, map[string]any{
					"service_id": r.serviceID,
					"date":       time.Now().AddDate(0, 0, 3).Format("2006-01-02"),
					"time":       "14:30",
					"location":   "Lalitpur",
				}, &out, http.StatusCreated)
				r.broadcast = out.ID
				return res
			},
		},
		{
			Name:  "Broadcast: two technicians offer",
			Focus: "requested -> offers_sent",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.broadcast == "" || len(r.technicians) < 2 {
					return Result{Status: "SKIP", Note: "need a broadcast booking and two technicians"}
				}
				for i, tech := range r.technicians[:2] {
					res := r.expect(ctx, http.MethodPost, "/api/bookings/"+r.broadcast+"/offers", technician(tech),
						map[string]any{"proposed_fare": 1000 + i*200, "eta": "30m"}, nil, http.StatusOK)
					if res.Status != "PASS" {
						return res
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Broadcast: customer lists offers",
			Focus: "offers with technician and rating",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.broadcast == "" {
					return Result{Status: "SKIP", Note: "no broadcast booking"}
				}
				var out struct {
					Offers []json.RawMessage `json:"offers"`
				}
				res := r.expect(ctx, http.MethodGet, "/api/bookings/"+r.broadcast+"/offers", r.customer, nil, &out, http.StatusOK)
				if res.Status == "PASS" && len(out.Offers) < 2 {
					return Result{Status: "FAIL", Note: fmt.Sprintf("offers=%d", len(out.Offers))}
				}
				return res
			},
		},
		{
			Name:  "Concurrency: multi select same booking",
			Focus: "exactly one selection wins",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.broadcast == "" || len(r.technicians) < 2 {
					return Result{Status: "SKIP", Note: "need a broadcast booking and two technicians"}
				}
				return r.concurrentSelect(ctx)
			},
		},
		{
			Name:  "Broadcast: late offer -> 409",
			Focus: "offers closed after selection",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.broadcast == "" || len(r.technicians) < 1 {
					return Result{Status: "SKIP", Note: "no broadcast booking"}
				}
				return r.expect(ctx, http.MethodPost, "/api/bookings/"+r.broadcast+"/offers", technician(r.technicians[0]),
					map[string]any{"proposed_fare": 900}, nil, http.StatusConflict)
			},
		},

		// Performance
		{
			Name:  "Perf: list services throughput",
			Focus: "read path under load",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.perfLoad(ctx, http.MethodGet, "/api/services", r.customer)
			},
		},
	}
}

func (r *Runner) ratingBody(score int) map[string]any {
	return map[string]any{
		"booking_id":    r.direct,
		"technician_id": r.directTech,
		"rating":        score,
		"review":        "bench",
	}
}

func (r *Runner) newRequest(ctx context.Context, method, path string, as types.Actor, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if as.ID != "" {
		tok, err := r.tokens.Issue(as, time.Hour)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

// expect sends one request and passes when the status matches want; out receives the body.
func (r *Runner) expect(ctx context.Context, method, path string, as types.Actor, body, out any, want int) Result {
	req, err := r.newRequest(ctx, method, path, as, body)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	defer resp.Body.Close()
	latency := time.Since(start)

	payload, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNotImplemented {
		if want != resp.StatusCode {
			return Result{Status: "PENDING", Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
		}
	}
	if resp.StatusCode != want {
		return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(payload)))}
	}
	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return Result{Status: "FAIL", Latency: latency, Note: "decode: " + err.Error()}
		}
	}
	return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
}

func (r *Runner) concurrentSelect(ctx context.Context) Result {
	wg := sync.WaitGroup{}
	succ := 0
	conflicts := 0
	mu := sync.Mutex{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tech := r.technicians[i%2]
			req, err := r.newRequest(ctx, http.MethodPost, "/api/bookings/"+r.broadcast+"/select", r.customer,
				map[string]any{"technician_id": tech})
			if err != nil {
				return
			}
			resp, err := r.httpc.Do(req)
			if err != nil {
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			mu.Lock()
			switch {
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				succ++
			case resp.StatusCode == http.StatusConflict:
				conflicts++
			}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	note := fmt.Sprintf("success=%d conflict=%d", succ, conflicts)
	if succ == 1 {
		return Result{Status: "PASS", Note: note}
	}
	return Result{Status: "FAIL", Note: note}
}

func (r *Runner) perfLoad(ctx context.Context, method, path string, as types.Actor) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count int64
	var errCount int64
	var mu sync.Mutex
	wg := sync.WaitGroup{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				req, err := r.newRequest(ctx, method, path, as, nil)
				if err != nil {
					return
				}
				resp, err := r.httpc.Do(req)
				if err != nil {
					mu.Lock()
					errCount++
					mu.Unlock()
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				mu.Lock()
				count++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: "FAIL", Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	cleaned := strings.Join(filtered, "\n")
	parts := strings.Split(cleaned, ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
