package repository

import (
	"context"
	"fmt"

	"github.com/blues/cleanfund/internal/model"
	"gorm.io/gorm"
)

// DispatchRecordRepository 派发审计记录
type DispatchRecordRepository struct {
	db *gorm.DB
}

func NewDispatchRecordRepository(db *gorm.DB) *DispatchRecordRepository {
	return &DispatchRecordRepository{db: db}
}

func (r *DispatchRecordRepository) Create(ctx context.Context, record *model.DispatchRecordModel) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("create dispatch record for %s: %w", record.TaskId, err)
	}
	return nil
}

// ListByTaskId 按时间倒序返回某活动的派发记录
func (r *DispatchRecordRepository) ListByTaskId(ctx context.Context, taskId string) ([]model.DispatchRecordModel, error) {
	var records []model.DispatchRecordModel
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskId).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list dispatch records for %s: %w", taskId, err)
	}
	return records, nil
}
