// Package history indexes committed trades into a SQL database so that past
// activity of a bonding can be listed without replaying the ledger.
package history

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Trade is one executed buy or sell.
type Trade struct {
	Seq           uint64    `gorm:"primaryKey;autoIncrement" json:"seq"`
	ID            uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"id"`
	Bonding       string    `gorm:"index;not null" json:"bonding"`
	Side          string    `gorm:"not null" json:"side"`
	Trader        string    `gorm:"index" json:"trader"`
	Price         uint64    `json:"price"`
	TotalTarget   uint64    `json:"total_target"`
	BaseRoyalty   uint64    `json:"base_royalty"`
	TargetRoyalty uint64    `json:"target_royalty"`
	Reserves      uint64    `json:"reserves"`
	Supply        uint64    `json:"supply"`
	CreatedAt     time.Time `json:"created_at"`
}

// DefaultLimit caps List when the caller gives no limit.
const DefaultLimit = 100

var ErrNilStore = errors.New("history: store not configured")

// Store persists trades with gorm.
type Store struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the schema. postgres:// and
// postgresql:// DSNs use the postgres driver; anything else is a sqlite path
// or URI.
func Open(dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("history: dsn required")
	}
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	return New(db)
}

// New wraps an open gorm handle and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, ErrNilStore
	}
	if err := db.AutoMigrate(&Trade{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Record inserts trade, assigning an ID when missing.
func (s *Store) Record(ctx context.Context, trade *Trade) error {
	if s == nil || s.db == nil {
		return ErrNilStore
	}
	if trade.ID == uuid.Nil {
		trade.ID = uuid.New()
	}
	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(trade).Error
}

// List returns the newest trades of a bonding first. before, when non-zero,
// pages to trades older than that sequence.
func (s *Store) List(ctx context.Context, bonding string, before uint64, limit int) ([]Trade, error) {
	if s == nil || s.db == nil {
		return nil, ErrNilStore
	}
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}
	query := s.db.WithContext(ctx).Where("bonding = ?", bonding)
	if before > 0 {
		query = query.Where("seq < ?", before)
	}
	var trades []Trade
	if err := query.Order("seq DESC").Limit(limit).Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
