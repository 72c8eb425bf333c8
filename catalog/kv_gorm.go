package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/myresource/models"
)

// GormKV stores keys as rows of the kv_entries table.
type GormKV struct {
	db *gorm.DB
}

// NewGormKV expects models.KVEntry to be migrated already.
func NewGormKV(db *gorm.DB) *GormKV {
	return &GormKV{db: db}
}

func (g *GormKV) Get(ctx context.Context, key string) (string, error) {
	var entry models.KVEntry
	err := g.db.WithContext(ctx).Where("`key` = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("db get %s: %w", key, err)
	}
	return entry.Value, nil
}

func (g *GormKV) Set(ctx context.Context, key, value string) error {
	// Upsert so concurrent first writes never hit a duplicate key error
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"value": value, "updated_at": time.Now()}),
	}).Create(&models.KVEntry{Key: key, Value: value, UpdatedAt: time.Now()}).Error
	if err != nil {
		return fmt.Errorf("db set %s: %w", key, err)
	}
	return nil
}
