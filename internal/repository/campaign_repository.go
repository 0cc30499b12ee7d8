package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blues/cleanfund/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("campaign not found")

// CampaignRepository crowdfunding_submissions 表的读写
type CampaignRepository struct {
	db *gorm.DB
}

func NewCampaignRepository(db *gorm.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Upsert 按 task_id 插入或覆盖负载字段，部署和派发字段保持不变
func (r *CampaignRepository) Upsert(ctx context.Context, campaign *model.CampaignModel) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "task_id"}},
			DoUpdates: clause.AssignmentColumns(model.UpsertColumns),
		}).
		Create(campaign).Error
	if err != nil {
		return fmt.Errorf("upsert campaign %s: %w", campaign.TaskId, err)
	}
	return nil
}

// GetByTaskId 按 task_id 查询
func (r *CampaignRepository) GetByTaskId(ctx context.Context, taskId string) (*model.CampaignModel, error) {
	var campaign model.CampaignModel
	err := r.db.WithContext(ctx).Where("task_id = ?", taskId).First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get campaign %s: %w", taskId, err)
	}
	return &campaign, nil
}

// List 按 created_at 倒序分页
func (r *CampaignRepository) List(ctx context.Context, limit, offset int) ([]model.CampaignModel, int64, error) {
	var (
		campaigns []model.CampaignModel
		total     int64
	)

	q := r.db.WithContext(ctx).Model(&model.CampaignModel{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&campaigns).Error; err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	return campaigns, total, nil
}

// UpdateDeployment 写回部署结果；contractAddress 为空时只写交易哈希
func (r *CampaignRepository) UpdateDeployment(ctx context.Context, taskId, txHash string, contractAddress *string) error {
	updates := map[string]interface{}{
		"deploy_tx_hash": txHash,
	}
	if contractAddress != nil {
		updates["contract_address"] = *contractAddress
	}

	res := r.db.WithContext(ctx).Model(&model.CampaignModel{}).
		Where("task_id = ?", taskId).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update deployment for %s: %w", taskId, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetContractAddress 仅在地址尚未写入时补写
func (r *CampaignRepository) SetContractAddress(ctx context.Context, taskId, contractAddress string) error {
	res := r.db.WithContext(ctx).Model(&model.CampaignModel{}).
		Where("task_id = ? AND (contract_address IS NULL OR contract_address = '')", taskId).
		Update("contract_address", contractAddress)
	if res.Error != nil {
		return fmt.Errorf("set contract address for %s: %w", taskId, res.Error)
	}
	return nil
}

// ListPendingDispatch 已部署、尚未派发且已到重试时间的活动，按 id 游标分页
func (r *CampaignRepository) ListPendingDispatch(ctx context.Context, afterId int64, now time.Time, limit int) ([]model.CampaignModel, error) {
	var campaigns []model.CampaignModel
	err := r.db.WithContext(ctx).
		Where("id > ?", afterId).
		Where("contract_address IS NOT NULL AND contract_address <> ''").
		Where("dispatch_status IS NULL OR dispatch_status = ?", model.DispatchStatusNone).
		Where("next_dispatch_at IS NULL OR next_dispatch_at <= ?", now).
		Order("id ASC").
		Limit(limit).
		Find(&campaigns).Error
	if err != nil {
		return nil, fmt.Errorf("list pending dispatch: %w", err)
	}
	return campaigns, nil
}

// ListUnresolvedDeployments 已有交易哈希但合约地址未解析的活动
func (r *CampaignRepository) ListUnresolvedDeployments(ctx context.Context, limit int) ([]model.CampaignModel, error) {
	var campaigns []model.CampaignModel
	err := r.db.WithContext(ctx).
		Where("deploy_tx_hash IS NOT NULL AND deploy_tx_hash <> ''").
		Where("contract_address IS NULL OR contract_address = ''").
		Order("id ASC").
		Limit(limit).
		Find(&campaigns).Error
	if err != nil {
		return nil, fmt.Errorf("list unresolved deployments: %w", err)
	}
	return campaigns, nil
}

// ClaimDispatch 原子地抢占派发权；已放弃的活动可被显式请求重新抢占，
// 超过 staleAfter 的派发中状态视为失效可被重新抢占。
// 返回是否抢占成功以及当前状态。
func (r *CampaignRepository) ClaimDispatch(ctx context.Context, taskId string, staleAfter time.Duration) (bool, model.DispatchStatus, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&model.CampaignModel{}).
		Where("task_id = ?", taskId).
		Where("(dispatch_status IS NULL OR dispatch_status IN ?) OR (dispatch_status = ? AND updated_at < ?)",
			[]model.DispatchStatus{model.DispatchStatusNone, model.DispatchStatusAbandoned},
			model.DispatchStatusDispatching, now.Add(-staleAfter)).
		Updates(map[string]interface{}{
			"dispatch_status": model.DispatchStatusDispatching,
			"updated_at":      now,
		})
	if res.Error != nil {
		return false, "", fmt.Errorf("claim dispatch for %s: %w", taskId, res.Error)
	}
	if res.RowsAffected == 1 {
		return true, model.DispatchStatusDispatching, nil
	}

	current, err := r.GetByTaskId(ctx, taskId)
	if err != nil {
		return false, "", err
	}
	return false, current.DispatchStatus, nil
}

// CompleteDispatch 标记派发完成
func (r *CampaignRepository) CompleteDispatch(ctx context.Context, taskId string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.CampaignModel{}).
		Where("task_id = ? AND dispatch_status = ?", taskId, model.DispatchStatusDispatching).
		Updates(map[string]interface{}{
			"dispatch_status":  model.DispatchStatusDispatched,
			"dispatched_at":    at,
			"next_dispatch_at": nil,
		}).Error
	if err != nil {
		return fmt.Errorf("complete dispatch for %s: %w", taskId, err)
	}
	return nil
}

// ReleaseDispatch 派发失败时释放抢占并写入重试安排
func (r *CampaignRepository) ReleaseDispatch(ctx context.Context, taskId string, retry model.DispatchRetry) error {
	err := r.db.WithContext(ctx).Model(&model.CampaignModel{}).
		Where("task_id = ? AND dispatch_status = ?", taskId, model.DispatchStatusDispatching).
		Updates(map[string]interface{}{
			"dispatch_status":   retry.Status,
			"dispatch_attempts": retry.Attempts,
			"next_dispatch_at":  retry.NextAt,
		}).Error
	if err != nil {
		return fmt.Errorf("release dispatch for %s: %w", taskId, err)
	}
	return nil
}
