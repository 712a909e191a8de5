package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"exchangeflow/config"
	"exchangeflow/internal/flow"
	"exchangeflow/internal/report"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "exchangeflow"
	latest    = "latest"
)

// Cache keeps the most recent reports, and each run's reports, as JSON
// documents in Redis.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(cfg config.RedisConfig) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Cache{client: client, ttl: cfg.TTL}
}

var _ report.Sink = (*Cache)(nil)

func SummaryKey(runID string) string { return fmt.Sprintf("%s:summary:%s", keyPrefix, runID) }
func DailyKey(runID string) string   { return fmt.Sprintf("%s:daily:%s", keyPrefix, runID) }
func RunKey(runID string) string     { return fmt.Sprintf("%s:run:%s", keyPrefix, runID) }

func (c *Cache) Name() string { return "redis" }

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// WriteReports stores the run under its id and as latest in one pipeline.
func (c *Cache) WriteReports(ctx context.Context, r report.Reports) error {
	run, err := json.Marshal(r.Run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	summary, err := json.Marshal(r.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	daily, err := json.Marshal(r.Daily)
	if err != nil {
		return fmt.Errorf("failed to marshal daily: %w", err)
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range []string{r.Run.ID, latest} {
			pipe.Set(ctx, RunKey(id), run, c.ttl)
			pipe.Set(ctx, SummaryKey(id), summary, c.ttl)
			pipe.Set(ctx, DailyKey(id), daily, c.ttl)
		}
		return nil
	})
	return err
}

// GetSummary returns the summary of runID ("latest" for the most recent run).
// A missing run yields nil, nil.
func (c *Cache) GetSummary(ctx context.Context, runID string) ([]flow.SummaryRow, error) {
	var rows []flow.SummaryRow
	found, err := c.get(ctx, SummaryKey(runID), &rows)
	if err != nil || !found {
		return nil, err
	}
	return rows, nil
}

func (c *Cache) GetDaily(ctx context.Context, runID string) ([]flow.DailyRow, error) {
	var rows []flow.DailyRow
	found, err := c.get(ctx, DailyKey(runID), &rows)
	if err != nil || !found {
		return nil, err
	}
	return rows, nil
}

func (c *Cache) GetRun(ctx context.Context, runID string) (*report.RunInfo, error) {
	var info report.RunInfo
	found, err := c.get(ctx, RunKey(runID), &info)
	if err != nil || !found {
		return nil, err
	}
	return &info, nil
}

func (c *Cache) get(ctx context.Context, key string, v any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}
