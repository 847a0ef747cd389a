package database

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nipdog001/memebot3-sub002/internal/paper"
)

type Database struct {
	db *gorm.DB
}

// Models

// PaperTrade is the persisted form of a simulated trade
type PaperTrade struct {
	ID             string          `gorm:"primaryKey"`
	Symbol         string          `gorm:"index"`
	BuyExchange    string
	SellExchange   string
	BuyPrice       decimal.Decimal `gorm:"type:decimal(20,8)"`
	SellPrice      decimal.Decimal `gorm:"type:decimal(20,8)"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,6)"`
	ExpectedProfit decimal.Decimal `gorm:"type:decimal(20,6)"`
	ActualProfit   decimal.Decimal `gorm:"type:decimal(20,6)"`
	Fees           decimal.Decimal `gorm:"type:decimal(20,6)"`
	SlippagePct    decimal.Decimal `gorm:"type:decimal(10,6)"`
	Success        bool            `gorm:"index"`
	FailureReason  string
	IsRealData     bool
	DataSource     string
	ExecutionMs    int64
	Confidence     float64
	RiskLevel      string
	DecidingModels string // comma separated
	ExecutedAt     time.Time `gorm:"index"`
	CreatedAt      time.Time
}

// StatsSnapshot is a periodic dump of the paper account
type StatsSnapshot struct {
	ID             uint            `gorm:"primaryKey;autoIncrement"`
	TotalTrades    int
	Wins           int
	Losses         int
	WinRate        float64
	TotalProfit    decimal.Decimal `gorm:"type:decimal(20,6)"`
	TotalFees      decimal.Decimal `gorm:"type:decimal(20,6)"`
	CurrentBalance decimal.Decimal `gorm:"type:decimal(20,6)"`
	Threshold      float64
	CreatedAt      time.Time `gorm:"index"`
}

func New(dbPath string) (*Database, error) {
	var db *gorm.DB
	var err error

	// Check if this is a PostgreSQL connection string
	if strings.HasPrefix(dbPath, "postgres://") || strings.HasPrefix(dbPath, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("Database connected (PostgreSQL)")
	} else {
		// SQLite fallback
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dbPath).Msg("Database initialized (SQLite)")
	}

	if err := db.AutoMigrate(&PaperTrade{}, &StatsSnapshot{}); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// Trade operations

// SaveTrade persists a simulated trade
func (d *Database) SaveTrade(t *paper.Trade) error {
	row := &PaperTrade{
		ID:             t.ID,
		Symbol:         t.Symbol,
		BuyExchange:    t.BuyExchange,
		SellExchange:   t.SellExchange,
		BuyPrice:       t.BuyPrice,
		SellPrice:      t.SellPrice,
		Amount:         t.Amount,
		ExpectedProfit: t.ExpectedProfit,
		ActualProfit:   t.ActualProfit,
		Fees:           t.Fees,
		SlippagePct:    t.SlippagePct,
		Success:        t.Success,
		FailureReason:  t.FailureReason,
		IsRealData:     t.IsRealData,
		DataSource:     t.DataSource,
		ExecutionMs:    t.ExecutionTime.Milliseconds(),
		Confidence:     t.Confidence,
		RiskLevel:      t.RiskLevel,
		DecidingModels: strings.Join(t.DecidingModels, ","),
		ExecutedAt:     t.ExecutedAt,
	}
	return d.db.Create(row).Error
}

// GetRecentTrades returns the latest persisted trades
func (d *Database) GetRecentTrades(limit int) ([]PaperTrade, error) {
	var trades []PaperTrade
	err := d.db.Order("executed_at DESC").Limit(limit).Find(&trades).Error
	return trades, err
}

// GetTotalProfit sums realized profit across all persisted trades
func (d *Database) GetTotalProfit() (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := d.db.Model(&PaperTrade{}).Select("COALESCE(SUM(actual_profit), 0) as total").Scan(&result).Error
	return result.Total, err
}

// Stats operations

// SaveStatsSnapshot persists a periodic account snapshot
func (d *Database) SaveStatsSnapshot(stats paper.Statistics, threshold float64) error {
	row := &StatsSnapshot{
		TotalTrades:    stats.TotalTrades,
		Wins:           stats.Wins,
		Losses:         stats.Losses,
		WinRate:        stats.WinRate,
		TotalProfit:    stats.TotalProfit,
		TotalFees:      stats.TotalFees,
		CurrentBalance: stats.CurrentBalance,
		Threshold:      threshold,
	}
	return d.db.Create(row).Error
}

// GetStats returns aggregate counters for display
func (d *Database) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var tradeCount int64
	d.db.Model(&PaperTrade{}).Count(&tradeCount)
	stats["total_trades"] = tradeCount

	var winCount int64
	d.db.Model(&PaperTrade{}).Where("success = ?", true).Count(&winCount)
	stats["won_trades"] = winCount

	pnl, _ := d.GetTotalProfit()
	stats["total_pnl"] = pnl

	return stats, nil
}
