// README: Bench cases: environment, schema, HTTP flow, concurrent dispatch, consistency and throughput checks.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"ridehail/migrations"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
	run   string
	seq   atomic.Int64
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

type rideView struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	DriverID *string `json:"driverId"`
	Error    string  `json:"error"`
	Ride     *struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"ride"`
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
		run:   uuid.NewString()[:8],
	}
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
		fmt.Printf("%-5s %s", res.Status, tc.Name)
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

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{
			Name:  "Env: Postgres connect",
			Focus: "DB reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: statusSkip, Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				return Result{Status: statusPass}
			},
		},
		{
			Name:  "Env: Redis connect",
			Focus: "Redis reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: statusSkip, Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				return Result{Status: statusPass}
			},
		},
		{
			Name:  "Migration: tables exist",
			Focus: "every table of the embedded schema is present",
			Run:   checkTables,
		},
		{
			Name:  "HTTP: health",
			Focus: "server up",
			Run: func(ctx context.Context, r *Runner) Result {
				start := time.Now()
				code, err := r.call(ctx, http.MethodGet, "/health", nil, nil)
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				if code != http.StatusOK {
					return Result{Status: statusFail, Note: fmt.Sprintf("status=%d", code)}
				}
				return Result{Status: statusPass, Latency: time.Since(start)}
			},
		},
		{
			Name:  "HTTP: drivers online",
			Focus: "register vehicles and join the pool",
			Run:   bringDriversOnline,
		},
		{
			Name:  "Flow: request, assign, finish",
			Focus: "one ride through its whole life",
			Run:   rideFlow,
		},
		{
			Name:  "Concurrency: one ride per driver",
			Focus: "no driver is assigned twice under concurrent requests",
			Run:   concurrentDispatch,
		},
		{
			Name:  "Consistency: status matches last event",
			Focus: "ride status and its event log agree",
			Run:   checkEventLog,
		},
		{
			Name:  "Consistency: idle and engaged disjoint",
			Focus: "no driver is both idle and on a ride",
			Run:   checkPoolSets,
		},
		{
			Name:  "Perf: request/finish throughput",
			Focus: "sustained dispatch rate",
			Run:   throughput,
		},
	}
}

func (r *Runner) driverID(i int) string {
	return fmt.Sprintf("bench-%s-d%d", r.run, i)
}

func (r *Runner) nextPassenger() string {
	return fmt.Sprintf("bench-%s-p%d", r.run, r.seq.Add(1))
}

func rideBody(passenger string) map[string]any {
	return map[string]any{
		"passengerId": passenger,
		"stops": []map[string]any{
			{"address": "Taipei 101", "point": map[string]float64{"lat": 25.033, "lng": 121.565}},
			{"address": "Main Station", "point": map[string]float64{"lat": 25.0478, "lng": 121.5318}},
		},
		"vehicle": map[string]any{"type": "STANDARD", "seats": 1},
	}
}

func (r *Runner) call(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
}

func (r *Runner) finish(ctx context.Context, rideID, driverID string) error {
	code, err := r.call(ctx, http.MethodPost, "/api/rides/"+rideID+"/finish", map[string]any{"actorId": driverID}, nil)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return fmt.Errorf("finish %s: status=%d", rideID, code)
	}
	return nil
}

func checkTables(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "db not configured"}
	}
	schema, err := migrations.FS.ReadFile("0001_init.up.sql")
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	var missing []string
	for _, m := range re.FindAllStringSubmatch(string(schema), -1) {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, m[1]).Scan(&exists); err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if !exists {
			missing = append(missing, m[1])
		}
	}
	if len(missing) > 0 {
		return Result{Status: statusFail, Note: "missing " + strings.Join(missing, ", ")}
	}
	return Result{Status: statusPass}
}

func bringDriversOnline(ctx context.Context, r *Runner) Result {
	start := time.Now()
	for i := 0; i < r.cfg.Drivers; i++ {
		id := r.driverID(i)
		code, err := r.call(ctx, http.MethodPut, "/api/drivers/"+id+"/vehicle", map[string]any{
			"name":    id,
			"vehicle": map[string]any{"model": "bench", "type": "STANDARD", "seats": 4},
		}, nil)
		if err != nil || code != http.StatusOK {
			return Result{Status: statusFail, Note: fmt.Sprintf("register %s: status=%d err=%v", id, code, err)}
		}
		code, err = r.call(ctx, http.MethodPost, "/api/drivers/"+id+"/online", nil, nil)
		if err != nil || code != http.StatusOK {
			return Result{Status: statusFail, Note: fmt.Sprintf("online %s: status=%d err=%v", id, code, err)}
		}
	}
	return Result{Status: statusPass, Latency: time.Since(start), Note: fmt.Sprintf("drivers=%d", r.cfg.Drivers)}
}

func rideFlow(ctx context.Context, r *Runner) Result {
	start := time.Now()
	var v rideView
	code, err := r.call(ctx, http.MethodPost, "/api/rides", rideBody(r.nextPassenger()), &v)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if code != http.StatusCreated || v.Status != "ONGOING" || v.DriverID == nil {
		return Result{Status: statusFail, Note: fmt.Sprintf("status=%d ride=%s %s", code, v.Status, v.Error)}
	}
	if err := r.finish(ctx, v.ID, *v.DriverID); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass, Latency: time.Since(start)}
}

// concurrentDispatch fires more requests than there are drivers at once and
// tallies the outcomes by kind.
func concurrentDispatch(ctx context.Context, r *Runner) Result {
	var (
		mu       sync.Mutex
		outcomes = map[string]int{}
		assigned = map[string]string{}
		dupes    int
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < r.cfg.Concurrency; i++ {
		g.Go(func() error {
			var v rideView
			code, err := r.call(gctx, http.MethodPost, "/api/rides", rideBody(r.nextPassenger()), &v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			switch {
			case code == http.StatusCreated && v.DriverID != nil:
				outcomes["assigned"]++
				if _, taken := assigned[*v.DriverID]; taken {
					dupes++
				}
				assigned[*v.DriverID] = v.ID
			case code == http.StatusConflict && v.Error != "":
				outcomes[v.Error]++
			default:
				outcomes[fmt.Sprintf("status=%d", code)]++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}

	for driverID, rideID := range assigned {
		if err := r.finish(ctx, rideID, driverID); err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
	}

	note := formatOutcomes(outcomes)
	if dupes > 0 || outcomes["assigned"] > r.cfg.Drivers {
		return Result{Status: statusFail, Note: fmt.Sprintf("duplicate assignments=%d %s", dupes, note)}
	}
	return Result{Status: statusPass, Note: note}
}

func formatOutcomes(outcomes map[string]int) string {
	keys := make([]string, 0, len(outcomes))
	for k := range outcomes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%q=%d", k, outcomes[k]))
	}
	return strings.Join(parts, " ")
}

func checkEventLog(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "db not configured"}
	}
	var mismatched int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM rides r
		JOIN LATERAL (
			SELECT to_status FROM ride_state_events e
			WHERE e.ride_id = r.id
			ORDER BY e.id DESC
			LIMIT 1
		) last ON TRUE
		WHERE last.to_status <> r.status`).Scan(&mismatched)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if mismatched > 0 {
		return Result{Status: statusFail, Note: fmt.Sprintf("rides out of sync=%d", mismatched)}
	}
	return Result{Status: statusPass}
}

func checkPoolSets(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: statusSkip, Note: "redis not configured"}
	}
	both, err := r.redis.SInter(ctx, "availability:idle", "availability:engaged").Result()
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if len(both) > 0 {
		return Result{Status: statusFail, Note: "idle and engaged: " + strings.Join(both, ", ")}
	}
	return Result{Status: statusPass}
}

func throughput(ctx context.Context, r *Runner) Result {
	end := time.Now().Add(r.cfg.Duration)
	var completed, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < r.cfg.Concurrency; i++ {
		g.Go(func() error {
			for time.Now().Before(end) && gctx.Err() == nil {
				var v rideView
				code, err := r.call(gctx, http.MethodPost, "/api/rides", rideBody(r.nextPassenger()), &v)
				if err != nil || code != http.StatusCreated || v.DriverID == nil {
					failed.Add(1)
					continue
				}
				if err := r.finish(gctx, v.ID, *v.DriverID); err != nil {
					failed.Add(1)
					continue
				}
				completed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	if completed.Load() == 0 {
		return Result{Status: statusFail, Note: fmt.Sprintf("no rides completed, failed=%d", failed.Load())}
	}
	rps := float64(completed.Load()) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rides/s=%.1f not-dispatched=%d", rps, failed.Load())}
}
