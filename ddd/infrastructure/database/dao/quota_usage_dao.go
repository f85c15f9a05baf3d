package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"media-pipeline-service/ddd/infrastructure/database/po"
	"media-pipeline-service/internal/resource"
)

type QuotaUsageDAO struct {
	db *gorm.DB
}

func NewQuotaUsageDAO() *QuotaUsageDAO {
	return &QuotaUsageDAO{db: resource.DefaultDatabaseResource().MainDB()}
}

func NewQuotaUsageDAOWith(db *gorm.DB) *QuotaUsageDAO {
	return &QuotaUsageDAO{db: db}
}

// Find 不存在时返回 nil, nil
func (d *QuotaUsageDAO) Find(ctx context.Context, identityKey, day string) (*po.QuotaUsage, error) {
	var row po.QuotaUsage
	err := d.db.WithContext(ctx).
		Where("identity_key = ? AND day = ?", identityKey, day).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Count 不存在的记录视为 0
func (d *QuotaUsageDAO) Count(ctx context.Context, identityKey, day string) (int64, error) {
	row, err := d.Find(ctx, identityKey, day)
	if err != nil || row == nil {
		return 0, err
	}
	return row.OpCount, nil
}

// Increment 插入或原子加一并累加字节数，返回加一后的计数
func (d *QuotaUsageDAO) Increment(ctx context.Context, identityKey, day string, bytes int64) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		row := po.QuotaUsage{
			BaseModel:      po.BaseModel{CreatedAt: now, UpdatedAt: now},
			IdentityKey:    identityKey,
			Day:            day,
			OpCount:        1,
			BytesProcessed: bytes,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "identity_key"}, {Name: "day"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"op_count":        gorm.Expr("quota_usages.op_count + 1"),
				"bytes_processed": gorm.Expr("quota_usages.bytes_processed + ?", bytes),
				"updated_at":      now,
			}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		return tx.Model(&po.QuotaUsage{}).
			Select("op_count").
			Where("identity_key = ? AND day = ?", identityKey, day).
			Scan(&count).Error
	})
	return count, err
}

// PurgeBefore 删除早于 day 的记录，返回删除行数
func (d *QuotaUsageDAO) PurgeBefore(ctx context.Context, day string) (int64, error) {
	res := d.db.WithContext(ctx).Where("day < ?", day).Delete(&po.QuotaUsage{})
	return res.RowsAffected, res.Error
}
