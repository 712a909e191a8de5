package rediscache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"exchangeflow/config"
	"exchangeflow/internal/flow"
	"exchangeflow/internal/report"
	"exchangeflow/pkg/storage/rediscache"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// go test -v --run TestKeys
func TestKeys(t *testing.T) {
	if got := rediscache.SummaryKey("latest"); got != "exchangeflow:summary:latest" {
		t.Errorf("unexpected summary key %q", got)
	}
	if got := rediscache.DailyKey("abc"); got != "exchangeflow:daily:abc" {
		t.Errorf("unexpected daily key %q", got)
	}
}

// go test -v --run TestCacheRoundTrip
func TestCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("FLOWSTAT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("FLOWSTAT_TEST_REDIS_ADDR not set")
	}

	cache := rediscache.New(config.RedisConfig{Addr: addr, TTL: time.Minute})
	defer cache.Close()
	ctx := context.Background()

	if err := cache.Ping(ctx); err != nil {
		t.Fatalf("ping failed: %v", err)
	}

	in := decimal.RequireFromString("0.12345678")
	r := report.Reports{
		Run: report.RunInfo{ID: uuid.NewString(), Transactions: 4},
		Summary: []flow.SummaryRow{
			{Exchange: "ExchA", Inflow: in, Outflow: decimal.Zero, NetFlow: in, TotalVolume: in, InCount: 1, TotalCount: 1},
		},
		Daily: []flow.DailyRow{{Date: "2024-01-01", Exchange: "ExchA", Inflow: in, Outflow: decimal.Zero, NetFlow: in}},
	}
	if err := cache.WriteReports(ctx, r); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	for _, id := range []string{r.Run.ID, "latest"} {
		rows, err := cache.GetSummary(ctx, id)
		if err != nil {
			t.Fatalf("get summary %s: %v", id, err)
		}
		if len(rows) != 1 || !rows[0].Inflow.Equal(in) {
			t.Errorf("unexpected summary for %s: %+v", id, rows)
		}
	}

	daily, err := cache.GetDaily(ctx, "latest")
	if err != nil {
		t.Fatalf("get daily: %v", err)
	}
	if len(daily) != 1 || daily[0].Date != "2024-01-01" || !daily[0].NetFlow.Equal(in) {
		t.Errorf("unexpected daily: %+v", daily)
	}

	run, err := cache.GetRun(ctx, r.Run.ID)
	if err != nil || run == nil || run.Transactions != 4 {
		t.Errorf("unexpected run: %+v, %v", run, err)
	}

	missing, err := cache.GetSummary(ctx, uuid.NewString())
	if err != nil || missing != nil {
		t.Errorf("expected nil for missing run, got %+v, %v", missing, err)
	}
}
