package postgres

import (
	"context"
	"fmt"
	"time"

	"exchangeflow/internal/flow"
	"exchangeflow/internal/report"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// insertBatchSize bounds the rows per INSERT for large daily tables.
const insertBatchSize = 500

func (p *PostgresClient) SaveRun(ctx context.Context, info report.RunInfo) error {
	record := ToRunRecord(info)
	return p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "run_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"finished_at", "batches_processed", "batches_skipped", "transactions", "matched",
		}),
	}).Create(record).Error
}

func (p *PostgresClient) SaveSummary(ctx context.Context, runID string, rows []flow.SummaryRow) error {
	if len(rows) == 0 {
		return nil
	}
	records := ToSummaryRecords(runID, rows)
	return p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "run_id"}, {Name: "exchange"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"rank", "inflow", "outflow", "net_flow", "total_volume",
			"in_count", "out_count", "total_count", "unique_addresses",
		}),
	}).CreateInBatches(records, insertBatchSize).Error
}

func (p *PostgresClient) SaveDaily(ctx context.Context, runID string, rows []flow.DailyRow) error {
	if len(rows) == 0 {
		return nil
	}
	records, err := ToDailyRecords(runID, rows)
	if err != nil {
		return err
	}
	return p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_id"}, {Name: "date"}, {Name: "exchange"}},
		DoUpdates: clause.AssignmentColumns([]string{"inflow", "outflow", "net_flow"}),
	}).CreateInBatches(records, insertBatchSize).Error
}

// SaveReports stores a run and its rows in one transaction.
func (p *PostgresClient) SaveReports(ctx context.Context, r report.Reports) error {
	return p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scoped := &PostgresClient{DB: tx}
		if err := scoped.SaveRun(ctx, r.Run); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		if err := scoped.SaveSummary(ctx, r.Run.ID, r.Summary); err != nil {
			return fmt.Errorf("save summary: %w", err)
		}
		if err := scoped.SaveDaily(ctx, r.Run.ID, r.Daily); err != nil {
			return fmt.Errorf("save daily: %w", err)
		}
		return nil
	})
}

// GetSummary returns the summary rows of a run in report order.
func (p *PostgresClient) GetSummary(ctx context.Context, runID string) ([]ExchangeSummaryRecord, error) {
	var records []ExchangeSummaryRecord
	err := p.DB.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("rank ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (p *PostgresClient) GetRun(ctx context.Context, runID string) (*AnalysisRunRecord, error) {
	var run AnalysisRunRecord
	err := p.DB.WithContext(ctx).
		Where("run_id = ?", runID).
		First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// DeleteRunsBefore removes runs started before the cutoff together with their rows.
func (p *PostgresClient) DeleteRunsBefore(ctx context.Context, before time.Time) (int, error) {
	var ids []string
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&AnalysisRunRecord{}).
			Where("started_at < ?", before).
			Pluck("run_id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if err := tx.Where("run_id IN ?", ids).Delete(&ExchangeDailyFlowRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("run_id IN ?", ids).Delete(&ExchangeSummaryRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("run_id IN ?", ids).Delete(&AnalysisRunRecord{}).Error
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// ToRunRecord converts run statistics into a record for DB insertion.
func ToRunRecord(info report.RunInfo) *AnalysisRunRecord {
	return &AnalysisRunRecord{
		RunID:            info.ID,
		StartedAt:        info.StartedAt,
		FinishedAt:       info.FinishedAt,
		StartDate:        info.StartDate,
		EndDate:          info.EndDate,
		BatchesFound:     info.BatchesFound,
		BatchesFiltered:  info.BatchesFiltered,
		BatchesProcessed: info.BatchesProcessed,
		BatchesSkipped:   info.BatchesSkipped,
		Transactions:     info.Transactions,
		Matched:          info.Matched,
	}
}

// ToSummaryRecords converts summary rows, keeping their order in Rank (1-based).
func ToSummaryRecords(runID string, rows []flow.SummaryRow) []ExchangeSummaryRecord {
	records := make([]ExchangeSummaryRecord, 0, len(rows))
	for i, r := range rows {
		records = append(records, ExchangeSummaryRecord{
			RunID:           runID,
			Exchange:        r.Exchange,
			Rank:            i + 1,
			Inflow:          r.Inflow,
			Outflow:         r.Outflow,
			NetFlow:         r.NetFlow,
			TotalVolume:     r.TotalVolume,
			InCount:         r.InCount,
			OutCount:        r.OutCount,
			TotalCount:      r.TotalCount,
			UniqueAddresses: int64(r.UniqueAddresses),
		})
	}
	return records
}

func ToDailyRecords(runID string, rows []flow.DailyRow) ([]ExchangeDailyFlowRecord, error) {
	records := make([]ExchangeDailyFlowRecord, 0, len(rows))
	for _, r := range rows {
		date, err := time.Parse(flow.DayLayout, r.Date)
		if err != nil {
			return nil, fmt.Errorf("daily row %s/%s: %w", r.Date, r.Exchange, err)
		}
		records = append(records, ExchangeDailyFlowRecord{
			RunID:    runID,
			Date:     date,
			Exchange: r.Exchange,
			Inflow:   r.Inflow,
			Outflow:  r.Outflow,
			NetFlow:  r.NetFlow,
		})
	}
	return records, nil
}

// Sink writes reports to Postgres.
type Sink struct {
	Client *PostgresClient
}

func (s *Sink) Name() string { return "postgres" }

func (s *Sink) WriteReports(ctx context.Context, r report.Reports) error {
	return s.Client.SaveReports(ctx, r)
}
