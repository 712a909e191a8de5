package postgres

import (
	"time"

	"github.com/shopspring/decimal"
)

// AnalysisRunRecord is one finished analysis run.
type AnalysisRunRecord struct {
	ID    uint   `gorm:"primaryKey"`
	RunID string `gorm:"type:uuid;not null;uniqueIndex:idx_analysis_run_run_id"`

	StartedAt  time.Time `gorm:"not null;index:idx_analysis_run_started_at"`
	FinishedAt time.Time `gorm:"not null"`
	StartDate  string    `gorm:"type:varchar(10)"`
	EndDate    string    `gorm:"type:varchar(10)"`

	BatchesFound     int `gorm:"not null"`
	BatchesFiltered  int `gorm:"not null"`
	BatchesProcessed int `gorm:"not null"`
	BatchesSkipped   int `gorm:"not null"`

	Transactions int64 `gorm:"not null"`
	Matched      int64 `gorm:"not null"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

func (AnalysisRunRecord) TableName() string {
	return "analysis_run"
}

// ExchangeSummaryRecord is one summary row of a run. Rank keeps the report order.
type ExchangeSummaryRecord struct {
	ID uint `gorm:"primaryKey"`

	// unique index
	RunID    string `gorm:"type:uuid;not null;index:idx_summary_run_exchange,unique"`
	Exchange string `gorm:"type:text;not null;index:idx_summary_run_exchange,unique"`

	Rank int `gorm:"not null"`

	Inflow      decimal.Decimal `gorm:"type:numeric(30,8);not null"`
	Outflow     decimal.Decimal `gorm:"type:numeric(30,8);not null"`
	NetFlow     decimal.Decimal `gorm:"type:numeric(30,8);not null"`
	TotalVolume decimal.Decimal `gorm:"type:numeric(30,8);not null"`

	InCount         int64 `gorm:"not null"`
	OutCount        int64 `gorm:"not null"`
	TotalCount      int64 `gorm:"not null"`
	UniqueAddresses int64 `gorm:"not null"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

func (ExchangeSummaryRecord) TableName() string {
	return "exchange_summary"
}

// ExchangeDailyFlowRecord is one (date, exchange) row of a run.
type ExchangeDailyFlowRecord struct {
	ID uint `gorm:"primaryKey"`

	// unique index
	RunID    string    `gorm:"type:uuid;not null;index:idx_daily_run_date_exchange,unique"`
	Date     time.Time `gorm:"type:date;not null;index:idx_daily_run_date_exchange,unique;index:idx_daily_date"`
	Exchange string    `gorm:"type:text;not null;index:idx_daily_run_date_exchange,unique"`

	Inflow  decimal.Decimal `gorm:"type:numeric(30,8);not null"`
	Outflow decimal.Decimal `gorm:"type:numeric(30,8);not null"`
	NetFlow decimal.Decimal `gorm:"type:numeric(30,8);not null"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

func (ExchangeDailyFlowRecord) TableName() string {
	return "exchange_daily_flow"
}
