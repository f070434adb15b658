// Package store persists settled wishes. The ledger is append-only: one
// row per successful settlement, written after funds have moved and never
// updated afterwards.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dongruixiao/cyberbuddha/types"
)

// DefaultListLimit applies when a wish-wall query does not specify one,
// MaxListLimit caps what a caller may request.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Wish is the ledger row for one settled payment. Content is unbounded:
// the sanitizer caps input at 200 characters before escaping, so the
// stored form can grow up to five times that once entities are expanded.
type Wish struct {
	ID        uint            `gorm:"primaryKey"`
	TxHash    string          `gorm:"size:66;uniqueIndex"`
	Payer     string          `gorm:"size:42;index"`
	Amount    decimal.Decimal `gorm:"type:numeric(16,6)"`
	Content   string          `gorm:"type:text"`
	Network   string          `gorm:"size:32"`
	CreatedAt time.Time
}

// Ledger is the persistence contract the server depends on.
type Ledger interface {
	// Record appends one settled wish. Failure after settlement is
	// reported to the caller but must not fail the payment.
	Record(ctx context.Context, wish *Wish) error

	// List returns the newest wishes first, plus the total row count.
	List(ctx context.Context, limit, offset int) ([]types.WishRecord, int64, error)
}

// Store is the gorm-backed Ledger.
type Store struct {
	db *gorm.DB
}

var _ Ledger = (*Store)(nil)

// Open connects to postgres and migrates the wish table.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&Wish{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Record(ctx context.Context, wish *Wish) error {
	if err := s.db.WithContext(ctx).Create(wish).Error; err != nil {
		return fmt.Errorf("failed to record wish: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, limit, offset int) ([]types.WishRecord, int64, error) {
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&Wish{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count wishes: %w", err)
	}

	var rows []Wish
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list wishes: %w", err)
	}

	records := make([]types.WishRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].Record())
	}
	return records, total, nil
}

// Record converts the ledger row to its API shape.
func (w *Wish) Record() types.WishRecord {
	amount, _ := w.Amount.Float64()
	return types.WishRecord{
		ID:        w.ID,
		TxHash:    w.TxHash,
		Payer:     w.Payer,
		Amount:    amount,
		Content:   w.Content,
		Network:   w.Network,
		CreatedAt: w.CreatedAt.Unix(),
	}
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
