package clickhouse

import (
	"context"
	"fmt"
	"time"

	"exchangeflow/config"
	"exchangeflow/internal/flow"
	"exchangeflow/internal/report"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Repository appends run reports to ClickHouse tables for ad-hoc analytics
// across runs.
type Repository struct {
	conn driver.Conn
}

func NewRepository(ctx context.Context, cfg config.ClickHouseConfig) (*Repository, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: cfg.Timeout,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	// Check the connection
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	// Ensure tables exist
	if err := createTablesIfNotExist(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &Repository{conn: conn}, nil
}

var _ report.Sink = (*Repository)(nil)

func createTablesIfNotExist(ctx context.Context, conn driver.Conn) error {
	err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS exchange_summary (
			run_id String,
			started_at DateTime,
			rank UInt32,
			exchange String,
			inflow Decimal(38, 8),
			outflow Decimal(38, 8),
			net_flow Decimal(38, 8),
			total_volume Decimal(38, 8),
			tx_count_in Int64,
			tx_count_out Int64,
			tx_count_total Int64,
			unique_addresses UInt64,
			recorded_at DateTime DEFAULT now()
		) ENGINE = ReplacingMergeTree()
		ORDER BY (run_id, exchange)
	`)
	if err != nil {
		return err
	}

	return conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS exchange_daily_flow (
			run_id String,
			date Date,
			exchange String,
			inflow Decimal(38, 8),
			outflow Decimal(38, 8),
			net_flow Decimal(38, 8),
			recorded_at DateTime DEFAULT now()
		) ENGINE = ReplacingMergeTree()
		PARTITION BY toYYYYMM(date)
		ORDER BY (run_id, date, exchange)
	`)
}

func (r *Repository) Name() string { return "clickhouse" }

func (r *Repository) WriteReports(ctx context.Context, rep report.Reports) error {
	if err := r.SaveSummary(ctx, rep.Run, rep.Summary); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	if err := r.SaveDaily(ctx, rep.Run.ID, rep.Daily); err != nil {
		return fmt.Errorf("save daily: %w", err)
	}
	return nil
}

// SaveSummary inserts the summary rows of a run in one batch.
func (r *Repository) SaveSummary(ctx context.Context, run report.RunInfo, rows []flow.SummaryRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, `
		INSERT INTO exchange_summary (
			run_id, started_at, rank, exchange, inflow, outflow, net_flow, total_volume,
			tx_count_in, tx_count_out, tx_count_total, unique_addresses
		)
	`)
	if err != nil {
		return err
	}

	for i, row := range rows {
		if err := batch.Append(
			run.ID,
			run.StartedAt,
			uint32(i+1),
			row.Exchange,
			row.Inflow,
			row.Outflow,
			row.NetFlow,
			row.TotalVolume,
			row.InCount,
			row.OutCount,
			row.TotalCount,
			row.UniqueAddresses,
		); err != nil {
			batch.Abort()
			return err
		}
	}
	return batch.Send()
}

// SaveDaily inserts the daily rows of a run in one batch.
func (r *Repository) SaveDaily(ctx context.Context, runID string, rows []flow.DailyRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, `
		INSERT INTO exchange_daily_flow (run_id, date, exchange, inflow, outflow, net_flow)
	`)
	if err != nil {
		return err
	}

	for _, row := range rows {
		date, err := time.Parse(flow.DayLayout, row.Date)
		if err != nil {
			batch.Abort()
			return fmt.Errorf("daily row %s/%s: %w", row.Date, row.Exchange, err)
		}
		if err := batch.Append(runID, date, row.Exchange, row.Inflow, row.Outflow, row.NetFlow); err != nil {
			batch.Abort()
			return err
		}
	}
	return batch.Send()
}

// ExchangeTotal is the volume of one exchange summed over every stored run.
type ExchangeTotal struct {
	Exchange string
	Runs     uint64
	Volume   float64
}

// TotalsByExchange sums total volume per exchange across runs, largest first.
func (r *Repository) TotalsByExchange(ctx context.Context, limit int) ([]ExchangeTotal, error) {
	query := `
		SELECT exchange, uniqExact(run_id) AS runs, toFloat64(sum(total_volume)) AS volume
		FROM exchange_summary FINAL
		GROUP BY exchange
		ORDER BY volume DESC
		LIMIT ?
	`

	rows, err := r.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ExchangeTotal
	for rows.Next() {
		var t ExchangeTotal
		if err := rows.Scan(&t.Exchange, &t.Runs, &t.Volume); err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Repository) Close() error {
	return r.conn.Close()
}
